package engine

import (
	"errors"
	"math"
	"testing"

	"github.com/skyclans/detectx-audio-detector-manus-ui-sub001/internal/graph"
	"github.com/skyclans/detectx-audio-detector-manus-ui-sub001/internal/logging"
	"github.com/skyclans/detectx-audio-detector-manus-ui-sub001/internal/samples"
)

const epsilon = 1e-9

// newTestEngine returns an engine on a 1 kHz context with 100-frame quanta,
// so each Render(1) advances the clock by exactly 0.1s.
func newTestEngine(t *testing.T) (*Engine, *graph.Context) {
	t.Helper()
	ctx, err := graph.NewContext(1000, 100, nil)
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	return New(ctx, logging.Discard()), ctx
}

func loadSeconds(t *testing.T, e *Engine, seconds float64) {
	t.Helper()
	frames := int(seconds * 1000)
	ch := make([]float32, frames)
	for i := range ch {
		ch[i] = 0.25
	}
	audio, err := samples.NewDecodedAudio("test", [][]float32{ch}, 1000)
	if err != nil {
		t.Fatalf("NewDecodedAudio: %v", err)
	}
	e.Load(audio, audio.DurationSeconds())
}

func assertTime(t *testing.T, e *Engine, want float64) {
	t.Helper()
	if got := e.CurrentTime(); math.Abs(got-want) > epsilon {
		t.Errorf("CurrentTime() = %v, want %v", got, want)
	}
}

func TestEngine_IdleOperationsAreNotLoaded(t *testing.T) {
	e, _ := newTestEngine(t)

	ops := map[string]func() error{
		"play":  e.Play,
		"pause": e.Pause,
		"stop":  e.Stop,
		"seek": func() error {
			_, err := e.Seek(1)
			return err
		},
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			if err := op(); !errors.Is(err, ErrNotLoaded) {
				t.Errorf("%s() error = %v, want %v", name, err, ErrNotLoaded)
			}
			if e.State() != Idle {
				t.Errorf("State() = %v, want idle", e.State())
			}
		})
	}
	assertTime(t, e, 0)
}

func TestEngine_LoadMovesToLoaded(t *testing.T) {
	e, _ := newTestEngine(t)
	loadSeconds(t, e, 10)

	if e.State() != Loaded {
		t.Errorf("State() = %v, want loaded", e.State())
	}
	if e.Duration() != 10 {
		t.Errorf("Duration() = %v, want 10", e.Duration())
	}
	assertTime(t, e, 0)
}

func TestEngine_PlayAdvancesWithHardwareClock(t *testing.T) {
	e, ctx := newTestEngine(t)
	loadSeconds(t, e, 10)

	ctx.Render(3)
	if err := e.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	assertTime(t, e, 0)

	ctx.Render(5)
	assertTime(t, e, 0.5)
	if e.State() != Playing {
		t.Errorf("State() = %v, want playing", e.State())
	}
}

func TestEngine_PlayPausePlayResumes(t *testing.T) {
	e, ctx := newTestEngine(t)
	loadSeconds(t, e, 10)

	e.Play()
	ctx.Render(5)
	if err := e.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	assertTime(t, e, 0.5)
	if e.LiveSources() != 0 {
		t.Errorf("LiveSources() = %d after pause, want 0", e.LiveSources())
	}

	ctx.Render(20)
	assertTime(t, e, 0.5)

	e.Play()
	ctx.Render(3)
	assertTime(t, e, 0.8)
	if e.SourcesCreated() != 2 {
		t.Errorf("SourcesCreated() = %d, want 2", e.SourcesCreated())
	}
}

func TestEngine_SeekClampsInEveryState(t *testing.T) {
	tests := []struct {
		name   string
		target float64
		want   float64
	}{
		{"inside", 3, 3},
		{"negative", -4, 0},
		{"past end", 25, 10},
		{"nan", math.NaN(), 0},
		{"plus inf", math.Inf(1), 10},
		{"minus inf", math.Inf(-1), 0},
	}

	setups := map[string]func(e *Engine, ctx *graph.Context){
		"loaded":  func(e *Engine, ctx *graph.Context) {},
		"playing": func(e *Engine, ctx *graph.Context) { e.Play(); ctx.Render(4) },
		"paused":  func(e *Engine, ctx *graph.Context) { e.Play(); ctx.Render(4); e.Pause() },
		"stopped": func(e *Engine, ctx *graph.Context) { e.Play(); ctx.Render(4); e.Stop() },
	}

	for state, setup := range setups {
		for _, tt := range tests {
			t.Run(state+"/"+tt.name, func(t *testing.T) {
				e, ctx := newTestEngine(t)
				loadSeconds(t, e, 10)
				setup(e, ctx)

				got, err := e.Seek(tt.target)
				if err != nil {
					t.Fatalf("Seek: %v", err)
				}
				if got != tt.want {
					t.Errorf("Seek() = %v, want %v", got, tt.want)
				}
				assertTime(t, e, tt.want)
			})
		}
	}
}

func TestEngine_SeekWhilePlayingReplacesSource(t *testing.T) {
	e, ctx := newTestEngine(t)
	loadSeconds(t, e, 10)

	e.Play()
	ctx.Render(10)
	e.Seek(7)

	if e.State() != Playing {
		t.Errorf("State() = %v, want playing", e.State())
	}
	if e.SourcesCreated() != 2 {
		t.Errorf("SourcesCreated() = %d, want 2", e.SourcesCreated())
	}
	if e.LiveSources() != 1 {
		t.Errorf("LiveSources() = %d, want 1", e.LiveSources())
	}

	ctx.Render(2)
	assertTime(t, e, 7.2)
}

func TestEngine_SeekWhilePausedKeepsPaused(t *testing.T) {
	e, ctx := newTestEngine(t)
	loadSeconds(t, e, 10)

	e.Play()
	ctx.Render(2)
	e.Pause()
	e.Seek(4)
	ctx.Render(10)

	assertTime(t, e, 4)
	if e.SourcesCreated() != 1 {
		t.Errorf("SourcesCreated() = %d, want 1", e.SourcesCreated())
	}

	e.Play()
	ctx.Render(1)
	assertTime(t, e, 4.1)
}

func TestEngine_SetVolumeNeverTearsDown(t *testing.T) {
	e, ctx := newTestEngine(t)
	loadSeconds(t, e, 10)

	e.Play()
	ctx.Render(1)

	if got := e.SetVolume(0); got != 0 {
		t.Errorf("SetVolume(0) = %v", got)
	}
	ctx.Render(1)
	if got := e.SetVolume(1); got != 1 {
		t.Errorf("SetVolume(1) = %v", got)
	}
	ctx.Render(1)

	if e.SourcesCreated() != 1 {
		t.Errorf("SourcesCreated() = %d, want 1", e.SourcesCreated())
	}
	if e.LiveSources() != 1 {
		t.Errorf("LiveSources() = %d, want 1", e.LiveSources())
	}
	if e.State() != Playing {
		t.Errorf("State() = %v, want playing", e.State())
	}
	assertTime(t, e, 0.3)
}

func TestEngine_SetVolumeClamps(t *testing.T) {
	e, ctx := newTestEngine(t)

	tests := []struct {
		in   float64
		want float64
	}{
		{0.4, 0.4},
		{1.5, 1},
		{-0.2, 0},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		if got := e.SetVolume(tt.in); got != tt.want {
			t.Errorf("SetVolume(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}

	loadSeconds(t, e, 1)
	e.SetVolume(0.5)
	e.Play()
	out := ctx.Render(1)
	if out[0] != 0.125 {
		t.Errorf("rendered sample = %v, want 0.125 at half volume", out[0])
	}
}

func TestEngine_StopIsIdempotent(t *testing.T) {
	e, ctx := newTestEngine(t)
	loadSeconds(t, e, 10)

	e.Play()
	ctx.Render(5)

	for i := range 3 {
		if err := e.Stop(); err != nil {
			t.Fatalf("Stop #%d: %v", i, err)
		}
	}
	if e.State() != Stopped {
		t.Errorf("State() = %v, want stopped", e.State())
	}
	assertTime(t, e, 0)
	if e.LiveSources() != 0 {
		t.Errorf("LiveSources() = %d, want 0", e.LiveSources())
	}
}

func TestEngine_StopFromPaused(t *testing.T) {
	e, ctx := newTestEngine(t)
	loadSeconds(t, e, 10)

	e.Play()
	ctx.Render(5)
	e.Pause()
	e.Stop()

	if e.State() != Stopped {
		t.Errorf("State() = %v, want stopped", e.State())
	}
	assertTime(t, e, 0)
}

func TestEngine_FinishPinsToDurationAndRestarts(t *testing.T) {
	e, ctx := newTestEngine(t)
	loadSeconds(t, e, 1)

	e.Play()
	ctx.Render(12)
	assertTime(t, e, 1)

	if !e.Finish() {
		t.Fatal("Finish() = false while playing")
	}
	if e.Finish() {
		t.Error("second Finish() = true")
	}
	if e.State() != Stopped {
		t.Errorf("State() = %v, want stopped", e.State())
	}
	assertTime(t, e, 1)

	e.Play()
	assertTime(t, e, 0)
	ctx.Render(2)
	assertTime(t, e, 0.2)
}

func TestEngine_OnEndedFiresForLiveSourceOnly(t *testing.T) {
	e, ctx := newTestEngine(t)
	loadSeconds(t, e, 1)

	ended := 0
	e.SetOnEnded(func() { ended++ })

	e.Play()
	ctx.Render(5)
	e.Seek(0.85)
	ctx.Render(1)
	if ended != 0 {
		t.Fatalf("ended = %d before the end, want 0", ended)
	}
	ctx.Render(1)
	if ended != 1 {
		t.Errorf("ended = %d, want 1", ended)
	}
}

func TestEngine_LoadReplacesPlayingAsset(t *testing.T) {
	e, ctx := newTestEngine(t)
	loadSeconds(t, e, 10)
	e.Play()
	ctx.Render(3)

	loadSeconds(t, e, 5)
	if e.State() != Loaded {
		t.Errorf("State() = %v, want loaded", e.State())
	}
	if e.LiveSources() != 0 {
		t.Errorf("LiveSources() = %d, want 0", e.LiveSources())
	}
	assertTime(t, e, 0)

	e.Unload()
	if e.State() != Idle {
		t.Errorf("State() = %v, want idle", e.State())
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		s    State
		want string
	}{
		{Idle, "idle"},
		{Loaded, "loaded"},
		{Playing, "playing"},
		{Paused, "paused"},
		{Stopped, "stopped"},
		{State(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
}
