// Package transport composes the engine, waveform renderer and marker
// overlay into the single playback state object the rest of the service
// consumes.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/skyclans/detectx-audio-detector-manus-ui-sub001/internal/engine"
	"github.com/skyclans/detectx-audio-detector-manus-ui-sub001/internal/markers"
	"github.com/skyclans/detectx-audio-detector-manus-ui-sub001/internal/samples"
	"github.com/skyclans/detectx-audio-detector-manus-ui-sub001/internal/waveform"
)

var (
	// ErrMarkerNotFound is returned by SeekToMarker for an unknown index.
	ErrMarkerNotFound = errors.New("marker not found")
	// ErrInvalidSurface is returned by Click for a non-positive width.
	ErrInvalidSurface = errors.New("surface width must be positive")
)

// Options configures a Controller.
type Options struct {
	SkipSeconds  float64
	MarkerMargin float64
	// MarkerHitTolerance is how close, in pixels, a click must land to a
	// marker to seek to the marker's exact timestamp.
	MarkerHitTolerance float64
	FrameInterval      time.Duration
}

// DefaultOptions returns 10 second skips and a 60 fps update loop.
func DefaultOptions() Options {
	return Options{
		SkipSeconds:        10,
		MarkerMargin:       6,
		MarkerHitTolerance: 4,
		FrameInterval:      time.Second / 60,
	}
}

const subscriberBuffer = 16

// Controller serializes every transport operation and frame update behind
// one lock, so a seek always lands before the next frame reads the clock.
type Controller struct {
	engine   *engine.Engine
	renderer *waveform.Renderer
	overlay  markers.Overlay
	opts     Options
	logger   *slog.Logger

	mu          sync.Mutex
	seq         uint64
	assetID     string
	assetName   string
	decoding    bool
	decodeErr   string
	hasDuration bool
	verdict     string
	markers     []markers.Marker
	subs        map[chan Snapshot]struct{}

	wake chan struct{}
}

// New creates a controller over eng and renderer.
func New(eng *engine.Engine, renderer *waveform.Renderer, opts Options, logger *slog.Logger) *Controller {
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = DefaultOptions().FrameInterval
	}
	c := &Controller{
		engine:   eng,
		renderer: renderer,
		overlay:  markers.Overlay{Margin: opts.MarkerMargin},
		opts:     opts,
		logger:   logger,
		subs:     make(map[chan Snapshot]struct{}),
		wake:     make(chan struct{}, 1),
	}
	eng.SetOnEnded(c.nudge)
	return c
}

// BeginLoad marks a newly selected file as decoding. Playback of the old
// asset stops and transport operations report engine.ErrNotLoaded until Load.
func (c *Controller) BeginLoad(assetID, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.engine.Unload()
	c.renderer.SetAudio("", nil)
	c.assetID = assetID
	c.assetName = name
	c.decoding = true
	c.decodeErr = ""
	c.hasDuration = false
	c.verdict = ""
	c.markers = nil

	c.logger.Info("asset selected", "asset_id", assetID, "name", name)
	c.publishLocked()
}

// Load installs decoded audio. A result for an asset other than the one most
// recently passed to BeginLoad is ignored.
func (c *Controller) Load(audio *samples.DecodedAudio) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.assetID != "" && audio.ID != c.assetID {
		c.logger.Debug("ignoring stale decode result", "asset_id", audio.ID, "current", c.assetID)
		return
	}

	c.engine.Load(audio, audio.DurationSeconds())
	c.renderer.SetAudio(audio.ID, audio.Mono())
	c.assetID = audio.ID
	c.decoding = false
	c.decodeErr = ""
	c.hasDuration = true

	c.publishLocked()
}

// LoadFailed records a recoverable decode failure. The asset stays selected
// with an unknown duration and no waveform.
func (c *Controller) LoadFailed(assetID string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.assetID != "" && assetID != c.assetID {
		return
	}
	c.engine.Unload()
	c.renderer.SetAudio("", nil)
	c.decoding = false
	c.decodeErr = err.Error()
	c.hasDuration = false

	c.logger.Warn("asset unavailable for playback", "asset_id", assetID, "error", err)
	c.publishLocked()
}

// Play starts or resumes playback.
func (c *Controller) Play() error {
	return c.mutate("play", func() error {
		err := c.engine.Play()
		if err == nil {
			c.nudge()
		}
		return err
	})
}

// Pause freezes playback at the current position.
func (c *Controller) Pause() error {
	return c.mutate("pause", c.engine.Pause)
}

// Stop halts playback and rewinds to 0.
func (c *Controller) Stop() error {
	return c.mutate("stop", c.engine.Stop)
}

// Seek moves to t, clamped into [0, duration].
func (c *Controller) Seek(t float64) error {
	return c.mutate("seek", func() error {
		_, err := c.engine.Seek(t)
		return err
	})
}

// SkipForward seeks SkipSeconds ahead, stopping at the end.
func (c *Controller) SkipForward() error {
	return c.mutate("skip_forward", func() error {
		_, err := c.engine.Seek(c.engine.CurrentTime() + c.opts.SkipSeconds)
		return err
	})
}

// SkipBackward seeks SkipSeconds back, stopping at 0.
func (c *Controller) SkipBackward() error {
	return c.mutate("skip_backward", func() error {
		_, err := c.engine.Seek(c.engine.CurrentTime() - c.opts.SkipSeconds)
		return err
	})
}

// SetVolume applies v clamped into [0, 1] and returns the applied value.
func (c *Controller) SetVolume(v float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	applied := c.engine.SetVolume(v)
	c.logger.Debug("volume", "volume", applied)
	c.publishLocked()
	return applied
}

// Click seeks to the time under pointer x on a surface width pixels wide.
// A click on a marker seeks to that marker's timestamp.
func (c *Controller) Click(x float64, width int) error {
	if width <= 0 {
		return ErrInvalidSurface
	}
	return c.mutate("click", func() error {
		duration := c.engine.Duration()
		t := waveform.Layout{Width: width}.PixelToTime(x, duration)
		placed := c.overlay.Layout(c.markers, duration, width)
		if hit, ok := markers.HitTest(placed, x, c.opts.MarkerHitTolerance); ok {
			t = hit.TimestampSeconds
		}
		_, err := c.engine.Seek(t)
		return err
	})
}

// SeekToMarker seeks to the timestamp of marker index.
func (c *Controller) SeekToMarker(index int) error {
	return c.mutate("seek_marker", func() error {
		if index < 0 || index >= len(c.markers) {
			return fmt.Errorf("%w: %d", ErrMarkerNotFound, index)
		}
		_, err := c.engine.Seek(c.markers[index].TimestampSeconds)
		return err
	})
}

// mutate runs op under the lock and publishes a snapshot. NotLoaded is
// logged and returned without side effects.
func (c *Controller) mutate(name string, op func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := op(); err != nil {
		if errors.Is(err, engine.ErrNotLoaded) {
			c.logger.Debug("transport operation ignored", "op", name, "reason", err)
		}
		return err
	}
	c.logger.Debug("transport", "op", name, "state", c.engine.State(), "time", c.engine.CurrentTime())
	c.publishLocked()
	return nil
}

// Tick is one frame of the update loop. While playing it reads the clock and
// moves to Stopped once the end of the asset is reached. It returns the
// current snapshot.
func (c *Controller) Tick() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.engine.State() != engine.Playing {
		return c.snapshotLocked()
	}
	if c.engine.CurrentTime() >= c.engine.Duration() {
		c.engine.Finish()
	}
	return c.publishLocked()
}

// Run drives Tick at the configured frame rate while playing and sleeps
// otherwise. It returns nil once ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.opts.FrameInterval)
	defer ticker.Stop()

	for {
		if c.State() != engine.Playing {
			select {
			case <-ctx.Done():
				return nil
			case <-c.wake:
				continue
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.Tick()
		case <-c.wake:
			c.Tick()
		}
	}
}

func (c *Controller) nudge() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// State returns the transport status.
func (c *Controller) State() engine.State {
	return c.engine.State()
}

// Snapshot returns the current state without publishing it.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	current := c.engine.CurrentTime()
	s := Snapshot{
		Seq:          c.seq,
		Status:       c.engine.State().String(),
		CurrentTime:  current,
		Volume:       c.engine.Volume(),
		CurrentLabel: waveform.FormatTime(current),
		AssetID:      c.assetID,
		AssetName:    c.assetName,
		Decoding:     c.decoding,
		DecodeError:  c.decodeErr,
		Verdict:      c.verdict,
		MarkerCount:  len(c.markers),
	}
	if c.hasDuration {
		d := c.engine.Duration()
		s.Duration = &d
		s.DurationLabel = waveform.FormatTime(d)
	}
	return s
}

// publishLocked bumps the sequence number and fans the snapshot out to
// subscribers, dropping it for any whose buffer is full.
func (c *Controller) publishLocked() Snapshot {
	c.seq++
	s := c.snapshotLocked()
	for ch := range c.subs {
		select {
		case ch <- s:
		default:
		}
	}
	return s
}

// Subscribe returns a channel of snapshots and a function that removes the
// subscription and closes the channel.
func (c *Controller) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, subscriberBuffer)

	c.mu.Lock()
	c.subs[ch] = struct{}{}
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, ch)
			c.mu.Unlock()
			close(ch)
		})
	}
}
