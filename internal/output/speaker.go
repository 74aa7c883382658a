package output

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/skyclans/detectx-audio-detector-manus-ui-sub001/internal/graph"
)

// bytesPerFrame is one interleaved stereo s16le frame.
const bytesPerFrame = graph.Channels * 2

// Speaker plays the graph on the local sound card through oto. The oto
// player pulls from the graph context, so the device sets the render pace.
type Speaker struct {
	gctx   *graph.Context
	tap    Tap
	logger *slog.Logger

	otoCtx *oto.Context
	player atomic.Pointer[oto.Player]
}

// NewSpeaker opens the default output device at the context's rate and
// installs the speaker as the destination. It blocks until the device is
// ready.
func NewSpeaker(gctx *graph.Context, tap Tap, logger *slog.Logger) (*Speaker, error) {
	op := &oto.NewContextOptions{
		SampleRate:   gctx.SampleRate(),
		ChannelCount: graph.Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   2 * gctx.QuantumDuration(),
	}
	otoCtx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("open audio device: %w", err)
	}
	<-ready

	s := &Speaker{gctx: gctx, tap: tap, logger: logger, otoCtx: otoCtx}
	gctx.SetDestination(s)
	return s, nil
}

// Write forwards the quantum to the tap.
func (s *Speaker) Write(frames []float32) error {
	if s.tap == nil {
		return nil
	}
	return s.tap.Write(frames)
}

// Latency is the audio the player has pulled but not yet played.
func (s *Speaker) Latency() time.Duration {
	p := s.player.Load()
	if p == nil {
		return 0
	}
	frames := p.BufferedSize() / bytesPerFrame
	return time.Duration(frames) * time.Second / time.Duration(s.gctx.SampleRate())
}

// Run starts playback and blocks until ctx is done.
func (s *Speaker) Run(ctx context.Context) error {
	p := s.otoCtx.NewPlayer(s.gctx)
	s.player.Store(p)
	p.Play()
	s.logger.Info("speaker output started", "sample_rate", s.gctx.SampleRate())

	<-ctx.Done()

	p.Pause()
	s.logger.Info("speaker output stopped")
	if err := p.Err(); err != nil {
		return fmt.Errorf("speaker: %w", err)
	}
	return s.otoCtx.Suspend()
}
