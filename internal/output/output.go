// Package output drives the audio graph in real time. Each device is the
// graph's destination and forwards every rendered quantum to an optional
// tap for listen-along streaming.
package output

import (
	"context"
	"log/slog"
	"time"

	"github.com/skyclans/detectx-audio-detector-manus-ui-sub001/internal/graph"
)

// maxCatchUp caps how many late quanta the null device renders in one tick.
const maxCatchUp = 8

// Tap receives a copy of every rendered quantum.
type Tap interface {
	Write(frames []float32) error
}

// Device is a realtime graph destination.
type Device interface {
	graph.Destination
	// Run renders until ctx is done.
	Run(ctx context.Context) error
}

// Null renders the graph at wall-clock rate without any sound card.
type Null struct {
	gctx   *graph.Context
	tap    Tap
	logger *slog.Logger
}

// NewNull creates a null device for gctx and installs it as the destination.
func NewNull(gctx *graph.Context, tap Tap, logger *slog.Logger) *Null {
	n := &Null{gctx: gctx, tap: tap, logger: logger}
	gctx.SetDestination(n)
	return n
}

// Write forwards the quantum to the tap.
func (n *Null) Write(frames []float32) error {
	if n.tap == nil {
		return nil
	}
	return n.tap.Write(frames)
}

// Latency is zero: nothing is buffered after rendering.
func (n *Null) Latency() time.Duration { return 0 }

// Run renders one quantum per quantum period. A late tick renders the
// backlog, up to maxCatchUp quanta; anything older is skipped.
func (n *Null) Run(ctx context.Context) error {
	period := n.gctx.QuantumDuration()
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	n.logger.Info("null output started", "quantum", period, "sample_rate", n.gctx.SampleRate())

	start := time.Now()
	var rendered int64
	for {
		select {
		case <-ctx.Done():
			n.logger.Info("null output stopped")
			return nil
		case now := <-ticker.C:
			due := int64(now.Sub(start) / period)
			behind := due - rendered
			if behind > maxCatchUp {
				n.logger.Debug("null output skipping quanta", "skipped", behind-maxCatchUp)
				rendered += behind - maxCatchUp
				behind = maxCatchUp
			}
			if behind > 0 {
				n.gctx.Render(int(behind))
				rendered += behind
			}
		}
	}
}
