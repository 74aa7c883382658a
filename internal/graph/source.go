package graph

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"
)

// ErrSourceUsed is returned when Start is called on a source that has already
// been started or stopped. Sources are single-use.
var ErrSourceUsed = errors.New("audio source already used")

// Buffer is decoded PCM a source can play.
type Buffer interface {
	SampleRate() int
	NumChannels() int
	Frames() int
	Channel(c int) []float32
}

const (
	sourceCreated int32 = iota
	sourcePlaying
	sourceStopped
	sourceEnded
)

// SourceNode plays a Buffer once from a given offset.
type SourceNode struct {
	buf   Buffer
	state atomic.Int32

	// pos is the read position in buffer frames; only the render goroutine
	// touches it after Start.
	pos float64

	endOnce sync.Once
	onEnded func()
}

// NewSource creates an unstarted source connected to gain.
func NewSource(buf Buffer, gain *GainNode) *SourceNode {
	s := &SourceNode{buf: buf}
	gain.connect(s)
	return s
}

// OnEnded registers fn to run once when playback runs off the end of the
// buffer. It is not called after Stop. Must be set before Start.
func (s *SourceNode) OnEnded(fn func()) { s.onEnded = fn }

// Start begins playback at offset seconds into the buffer. Offsets past the
// end produce no audio and end on the next rendered quantum.
func (s *SourceNode) Start(offset float64) error {
	if s.state.Load() != sourceCreated {
		return ErrSourceUsed
	}
	if math.IsNaN(offset) || offset < 0 {
		offset = 0
	}
	s.pos = offset * float64(s.buf.SampleRate())
	if !s.state.CompareAndSwap(sourceCreated, sourcePlaying) {
		return ErrSourceUsed
	}
	return nil
}

// Stop halts playback. It may be called from any goroutine, any number of
// times, before or after Start or natural end.
func (s *SourceNode) Stop() {
	for {
		st := s.state.Load()
		if st == sourceStopped || st == sourceEnded {
			return
		}
		if s.state.CompareAndSwap(st, sourceStopped) {
			return
		}
	}
}

// Playing reports whether the source is producing audio.
func (s *SourceNode) Playing() bool { return s.state.Load() == sourcePlaying }

func (s *SourceNode) finished() bool {
	st := s.state.Load()
	return st == sourceStopped || st == sourceEnded
}

func (s *SourceNode) fireEnded() {
	s.endOnce.Do(func() {
		if s.onEnded != nil {
			s.onEnded()
		}
	})
}

// render adds the source into out (interleaved stereo at rate) with linear
// interpolation. It returns true if the source reached its end during this
// call.
func (s *SourceNode) render(out []float32, rate int) bool {
	if s.state.Load() != sourcePlaying {
		return false
	}

	frames := s.buf.Frames()
	step := float64(s.buf.SampleRate()) / float64(rate)
	left := s.buf.Channel(0)
	right := left
	if s.buf.NumChannels() > 1 {
		right = s.buf.Channel(1)
	}

	for i := 0; i < len(out)/Channels; i++ {
		if s.pos >= float64(frames) {
			return s.state.CompareAndSwap(sourcePlaying, sourceEnded)
		}
		idx := int(s.pos)
		frac := float32(s.pos - float64(idx))
		next := min(idx+1, frames-1)

		out[i*Channels] += left[idx] + (left[next]-left[idx])*frac
		out[i*Channels+1] += right[idx] + (right[next]-right[idx])*frac
		s.pos += step
	}

	if s.pos >= float64(frames) {
		return s.state.CompareAndSwap(sourcePlaying, sourceEnded)
	}
	return false
}
