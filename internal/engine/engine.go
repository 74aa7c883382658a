// Package engine implements the transport state machine over the audio
// graph: one gain stage per context and at most one live source at a time.
package engine

import (
	"errors"
	"log/slog"
	"math"
	"sync"

	"github.com/skyclans/detectx-audio-detector-manus-ui-sub001/internal/graph"
)

// ErrNotLoaded is returned by transport operations before an asset is loaded.
// It is recoverable; the operation had no effect.
var ErrNotLoaded = errors.New("no audio loaded")

// State is the transport status.
type State int

// Transport states.
const (
	Idle State = iota
	Loaded
	Playing
	Paused
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loaded:
		return "loaded"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Engine owns the audio graph for the loaded asset. All methods are safe for
// concurrent use; each transition runs under one lock so graph mutations are
// serialized.
type Engine struct {
	ctx    *graph.Context
	gain   *graph.GainNode
	logger *slog.Logger

	mu       sync.Mutex
	state    State
	buf      graph.Buffer
	duration float64
	clock    *PlaybackClock
	source   *graph.SourceNode
	volume   float64
	sources  int
	onEnded  func()
}

// New creates an idle engine rendering into ctx at full volume.
func New(ctx *graph.Context, logger *slog.Logger) *Engine {
	return &Engine{
		ctx:    ctx,
		gain:   ctx.NewGain(),
		logger: logger,
		clock:  NewPlaybackClock(ctx),
		volume: 1,
	}
}

// SetOnEnded registers fn to be called from the render goroutine when the
// live source runs off the end of the asset.
func (e *Engine) SetOnEnded(fn func()) {
	e.mu.Lock()
	e.onEnded = fn
	e.mu.Unlock()
}

// Load replaces the current asset. Any live source is torn down and the
// engine moves to Loaded at position 0.
func (e *Engine) Load(buf graph.Buffer, duration float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.teardown()
	e.buf = buf
	e.duration = max(duration, 0)
	e.clock = NewPlaybackClock(e.ctx)
	e.state = Loaded
	e.logger.Info("asset loaded into engine", "duration", e.duration)
}

// Unload tears down playback and returns to Idle.
func (e *Engine) Unload() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.teardown()
	e.buf = nil
	e.duration = 0
	e.clock = NewPlaybackClock(e.ctx)
	e.state = Idle
}

// Play starts playback from the frozen position. Playing from a Stopped
// engine that sits at the end of the asset restarts from 0.
func (e *Engine) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case Idle:
		return ErrNotLoaded
	case Playing:
		return nil
	}

	offset := e.clock.Now()
	if offset >= e.duration {
		offset = 0
	}
	e.startSource(offset)
	e.state = Playing
	e.logger.Debug("play", "offset", offset)
	return nil
}

// Pause freezes the position and tears down the source.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case Idle:
		return ErrNotLoaded
	case Playing:
	default:
		return nil
	}

	at := e.clamp(e.clock.Freeze())
	e.clock.Set(at)
	e.teardown()
	e.state = Paused
	e.logger.Debug("pause", "offset", at)
	return nil
}

// Stop tears down the source and rewinds to 0.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == Idle {
		return ErrNotLoaded
	}

	e.teardown()
	e.clock.Freeze()
	e.clock.Set(0)
	if e.state == Playing || e.state == Paused {
		e.state = Stopped
	}
	e.logger.Debug("stop")
	return nil
}

// Finish handles reaching the end of the asset: the position is pinned to
// the duration, the source is torn down and the engine is Stopped. It
// reports whether a transition happened.
func (e *Engine) Finish() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != Playing {
		return false
	}
	e.teardown()
	e.clock.Freeze()
	e.clock.Set(e.duration)
	e.state = Stopped
	e.logger.Info("end of asset reached", "duration", e.duration)
	return true
}

// Seek moves to t clamped into [0, duration] and returns the applied
// position. While playing, the source is replaced by one starting at t.
func (e *Engine) Seek(t float64) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == Idle {
		return 0, ErrNotLoaded
	}

	t = e.clamp(t)
	if e.state == Playing {
		e.startSource(t)
	} else {
		e.clock.Set(t)
	}
	e.logger.Debug("seek", "offset", t, "state", e.state)
	return t, nil
}

// SetVolume clamps v into [0, 1] and applies it to the gain stage. It never
// touches the source and is accepted in every state, including Idle.
func (e *Engine) SetVolume(v float64) float64 {
	switch {
	case math.IsNaN(v):
		v = 0
	default:
		v = min(max(v, 0), 1)
	}

	e.mu.Lock()
	e.volume = v
	e.mu.Unlock()

	e.gain.SetGain(v)
	return v
}

// CurrentTime returns the playback position clamped into [0, duration].
func (e *Engine) CurrentTime() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == Idle {
		return 0
	}
	return e.clamp(e.clock.Now())
}

// State returns the transport status.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Duration returns the loaded asset duration, 0 when Idle.
func (e *Engine) Duration() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.duration
}

// Volume returns the last applied volume.
func (e *Engine) Volume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.volume
}

// SourcesCreated returns how many sources have been started since New.
func (e *Engine) SourcesCreated() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sources
}

// LiveSources returns the number of sources currently attached to the gain
// stage. It is at most 1.
func (e *Engine) LiveSources() int {
	return e.gain.ActiveSources()
}

// startSource replaces the live source with a fresh one at offset and
// restarts the clock there. Callers hold e.mu.
func (e *Engine) startSource(offset float64) {
	e.teardown()

	src := graph.NewSource(e.buf, e.gain)
	src.OnEnded(func() { e.sourceEnded(src) })
	if err := src.Start(offset); err != nil {
		// fresh sources are never used
		e.logger.Error("start source", "error", err)
		return
	}
	e.source = src
	e.sources++
	e.clock.Start(offset)
}

func (e *Engine) sourceEnded(src *graph.SourceNode) {
	e.mu.Lock()
	current := e.source == src
	fn := e.onEnded
	e.mu.Unlock()

	if current && fn != nil {
		fn()
	}
}

// teardown stops the live source, if any. Callers hold e.mu.
func (e *Engine) teardown() {
	if e.source == nil {
		return
	}
	e.source.Stop()
	e.source = nil
}

func (e *Engine) clamp(t float64) float64 {
	switch {
	case math.IsNaN(t):
		return 0
	case t < 0:
		return 0
	case t > e.duration:
		return e.duration
	}
	return t
}
