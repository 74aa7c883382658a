// Package graph is a minimal pull-based audio graph: a single-use source
// feeds a gain stage which feeds the context's destination.
//
// The context's rendered frame count is the hardware clock. Nothing advances
// it except rendering, so tests drive time by calling Render directly.
package graph

import (
	"encoding/binary"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// Channels is the fixed output channel count of every context.
const Channels = 2

// ErrInvalidContext is returned for a non-positive sample rate or quantum.
var ErrInvalidContext = errors.New("invalid audio context parameters")

// Destination receives every rendered quantum as interleaved stereo float32.
type Destination interface {
	Write(frames []float32) error
	// Latency is the delay between rendering a frame and it becoming audible.
	Latency() time.Duration
}

// Context owns the render loop and the clock.
type Context struct {
	sampleRate    int
	quantumFrames int

	mu     sync.Mutex
	dest   Destination
	gains  []*GainNode
	frames atomic.Int64
	closed atomic.Bool

	// clockMu guards lastTime, the highest hardware time reported so far.
	// It is separate from mu because Latency may block on a device Read
	// that is itself waiting for mu.
	clockMu  sync.Mutex
	lastTime float64
}

// NewContext creates a context rendering at sampleRate in quanta of
// quantumFrames frames. A nil dest discards output.
func NewContext(sampleRate, quantumFrames int, dest Destination) (*Context, error) {
	if sampleRate <= 0 || quantumFrames <= 0 {
		return nil, ErrInvalidContext
	}
	if dest == nil {
		dest = Discard
	}
	return &Context{
		sampleRate:    sampleRate,
		quantumFrames: quantumFrames,
		dest:          dest,
	}, nil
}

// SampleRate returns the output rate.
func (c *Context) SampleRate() int { return c.sampleRate }

// QuantumFrames returns the frames rendered per quantum.
func (c *Context) QuantumFrames() int { return c.quantumFrames }

// QuantumDuration returns the wall-clock length of one quantum.
func (c *Context) QuantumDuration() time.Duration {
	return time.Duration(c.quantumFrames) * time.Second / time.Duration(c.sampleRate)
}

// SetDestination replaces the output. A nil dest discards output.
func (c *Context) SetDestination(dest Destination) {
	if dest == nil {
		dest = Discard
	}
	c.mu.Lock()
	c.dest = dest
	c.mu.Unlock()
}

// FramesRendered returns the number of frames rendered so far.
func (c *Context) FramesRendered() int64 { return c.frames.Load() }

// CurrentTime returns the hardware clock in seconds: rendered frames minus
// output latency, never negative and never less than a previously returned
// value. A destination whose buffered latency grows between reads holds the
// clock still instead of stepping it back.
func (c *Context) CurrentTime() float64 {
	c.mu.Lock()
	dest := c.dest
	c.mu.Unlock()

	// Frames first: latency read afterwards may count newer frames, which
	// only underestimates.
	frames := c.frames.Load()
	t := float64(frames)/float64(c.sampleRate) - dest.Latency().Seconds()

	c.clockMu.Lock()
	defer c.clockMu.Unlock()
	c.lastTime = max(c.lastTime, t, 0)
	return c.lastTime
}

// NewGain creates a gain stage at unity, connected to the destination.
func (c *Context) NewGain() *GainNode {
	g := newGainNode()
	c.mu.Lock()
	c.gains = append(c.gains, g)
	c.mu.Unlock()
	return g
}

// Close stops rendering. Later Render calls return silence without advancing
// the clock and Read returns io.EOF.
func (c *Context) Close() error {
	c.closed.Store(true)
	return nil
}

// Render renders n quanta and returns the last one.
func (c *Context) Render(n int) []float32 {
	var out []float32
	for range n {
		out = c.RenderFrames(c.quantumFrames)
	}
	return out
}

// RenderFrames renders exactly frames frames as interleaved stereo, pushes
// them to the destination and advances the clock. Sources that end during
// this call have their OnEnded callbacks run after the graph is unlocked.
func (c *Context) RenderFrames(frames int) []float32 {
	out := make([]float32, frames*Channels)
	if frames <= 0 || c.closed.Load() {
		return out
	}

	var ended []*SourceNode

	c.mu.Lock()
	scratch := make([]float32, len(out))
	for _, g := range c.gains {
		clear(scratch)
		ended = g.render(scratch, c.sampleRate, ended)
		gain := float32(g.Gain())
		for i, v := range scratch {
			out[i] += v * gain
		}
	}
	dest := c.dest
	c.frames.Add(int64(frames))
	c.mu.Unlock()

	_ = dest.Write(out)

	for _, s := range ended {
		s.fireEnded()
	}
	return out
}

// Read renders len(p)/4 frames as signed 16-bit little-endian stereo. It is
// the pull interface for device players.
func (c *Context) Read(p []byte) (int, error) {
	if c.closed.Load() {
		return 0, io.EOF
	}
	frames := len(p) / (Channels * 2)
	if frames == 0 {
		return 0, nil
	}
	PutInt16(p, c.RenderFrames(frames))
	return frames * Channels * 2, nil
}

// PutInt16 writes samples to dst as clipped signed 16-bit little-endian.
// dst must hold at least 2*len(samples) bytes.
func PutInt16(dst []byte, samples []float32) {
	for i, v := range samples {
		v = min(max(v, -1), 1)
		binary.LittleEndian.PutUint16(dst[i*2:], uint16(int16(v*32767)))
	}
}

type discard struct{}

func (discard) Write([]float32) error  { return nil }
func (discard) Latency() time.Duration { return 0 }

// Discard is a destination that drops all output with zero latency.
var Discard Destination = discard{}
