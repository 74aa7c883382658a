package playback

import (
	"context"
	"errors"
	"log/slog"

	"github.com/skyclans/detectx-audio-detector-manus-ui-sub001/internal/queue"
	"github.com/skyclans/detectx-audio-detector-manus-ui-sub001/internal/samples"
)

// ErrDecodeFailed is joined with the decoder's error when a file cannot be
// decoded. The asset stays selected with no waveform.
var ErrDecodeFailed = errors.New("audio decode failed")

// Decoder decodes a raw asset. samples.Store implements it.
type Decoder interface {
	Decode(ctx context.Context, asset *samples.RawAsset) (*samples.DecodedAudio, error)
}

// Loader receives decode outcomes. transport.Controller implements it.
type Loader interface {
	Load(audio *samples.DecodedAudio)
	LoadFailed(assetID string, err error)
}

// Handler turns queued decode jobs into loaded playback state.
type Handler struct {
	decoder Decoder
	loader  Loader
	logger  *slog.Logger
}

// NewHandler creates a new decode handler.
func NewHandler(decoder Decoder, loader Loader, logger *slog.Logger) *Handler {
	return &Handler{
		decoder: decoder,
		loader:  loader,
		logger:  logger,
	}
}

// Handle decodes a single job's asset.
// This is the function passed to queue.SetHandler.
func (h *Handler) Handle(ctx context.Context, job *queue.DecodeJob) error {
	asset := job.Asset
	h.logger.Info("decoding asset",
		"job_id", job.ID,
		"asset_id", asset.ID,
		"name", asset.Name,
		"bytes", len(asset.Data),
	)

	decoded, err := h.decoder.Decode(ctx, asset)
	if err != nil {
		if ctx.Err() != nil {
			h.logger.Info("decode interrupted", "job_id", job.ID, "asset_id", asset.ID)
			return ctx.Err()
		}

		h.logger.Warn("decode failed", "job_id", job.ID, "asset_id", asset.ID, "error", err)
		h.loader.LoadFailed(asset.ID, err)
		return errors.Join(ErrDecodeFailed, err)
	}

	if ctx.Err() != nil {
		// superseded after decoding finished; the newer job owns the transport
		return ctx.Err()
	}

	h.loader.Load(decoded)
	h.logger.Info("asset ready",
		"job_id", job.ID,
		"asset_id", asset.ID,
		"duration", decoded.DurationSeconds(),
		"sample_rate", decoded.SampleRate(),
	)
	return nil
}
