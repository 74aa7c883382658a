package samples

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/skyclans/detectx-audio-detector-manus-ui-sub001/internal/audio"
	"github.com/skyclans/detectx-audio-detector-manus-ui-sub001/internal/wav"
)

var (
	// ErrEmptyInput is returned when there are no bytes to decode.
	ErrEmptyInput = errors.New("empty audio input")
	// ErrUnsupportedFormat is returned when no decoder handles the input.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
)

// DecodeError reports a recoverable decode failure. The raw file stays
// usable; only waveform and duration are unavailable.
type DecodeError struct {
	Format audio.Format
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Format == audio.FormatUnknown {
		return "decode audio: " + e.Err.Error()
	}
	return fmt.Sprintf("decode %s audio: %v", e.Format, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decoder turns file bytes into DecodedAudio. WAV and MP3 are decoded
// natively; other containers go through ffmpeg when a converter is set.
type Decoder struct {
	converter *audio.Converter
	logger    *slog.Logger
}

// NewDecoder creates a decoder. converter may be nil, in which case only
// WAV and MP3 inputs are accepted.
func NewDecoder(converter *audio.Converter, logger *slog.Logger) *Decoder {
	return &Decoder{converter: converter, logger: logger}
}

// Decode decodes asset. Every failure other than context cancellation is a
// *DecodeError.
func (d *Decoder) Decode(ctx context.Context, asset *RawAsset) (*DecodedAudio, error) {
	if len(asset.Data) == 0 {
		return nil, &DecodeError{Err: ErrEmptyInput}
	}

	format := audio.Sniff(asset.Data, asset.MIME, asset.Name)
	d.logger.Debug("decoding asset", "asset_id", asset.ID, "format", format, "bytes", len(asset.Data))

	var (
		channels   [][]float32
		sampleRate int
		err        error
	)

	switch format {
	case audio.FormatWAV:
		channels, sampleRate, err = decodeWAV(asset.Data)
		if errors.Is(err, wav.ErrUnsupportedEncoding) && d.converter != nil {
			d.logger.Debug("wav encoding not handled natively, using ffmpeg", "asset_id", asset.ID, "error", err)
			channels, sampleRate, err = d.viaConverter(ctx, asset.Data)
		}
	case audio.FormatMP3:
		channels, sampleRate, err = audio.DecodeMP3(asset.Data)
	default:
		if d.converter == nil {
			return nil, &DecodeError{Format: format, Err: ErrUnsupportedFormat}
		}
		channels, sampleRate, err = d.viaConverter(ctx, asset.Data)
	}

	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &DecodeError{Format: format, Err: err}
	}

	decoded, err := NewDecodedAudio(asset.ID, channels, sampleRate)
	if err != nil {
		return nil, &DecodeError{Format: format, Err: err}
	}
	return decoded, nil
}

func (d *Decoder) viaConverter(ctx context.Context, data []byte) ([][]float32, int, error) {
	converted, err := d.converter.ConvertToWAV(ctx, data)
	if err != nil {
		return nil, 0, err
	}
	return decodeWAV(converted)
}

func decodeWAV(data []byte) ([][]float32, int, error) {
	r := wav.NewReader(bytes.NewReader(data))
	format, err := r.Format()
	if err != nil {
		return nil, 0, err
	}
	channels, err := r.ReadAll()
	if err != nil {
		return nil, 0, err
	}
	return channels, int(format.SampleRate), nil
}
