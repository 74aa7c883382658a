// Package samples holds decoded PCM for the loaded asset.
//
// A DecodedAudio is built once per successful decode and never mutated; the
// Store swaps it wholesale when a new file replaces it.
package samples

import (
	"errors"
	"math"
)

// ErrNoAudio is returned when a decode yields zero frames or an invalid rate.
var ErrNoAudio = errors.New("decoded audio contains no samples")

// DecodedAudio is immutable multi-channel PCM plus its mono mix.
type DecodedAudio struct {
	// ID is derived from the source bytes, so re-decoding the same file
	// yields the same ID.
	ID string

	channels        [][]float32
	mono            []float32
	sampleRate      int
	durationSeconds float64
}

// NewDecodedAudio takes ownership of channels. All channels must have the
// same length; shorter ones are zero-padded. Non-finite samples become 0.
func NewDecodedAudio(id string, channels [][]float32, sampleRate int) (*DecodedAudio, error) {
	if sampleRate <= 0 || len(channels) == 0 {
		return nil, ErrNoAudio
	}

	frames := 0
	for _, ch := range channels {
		frames = max(frames, len(ch))
	}
	if frames == 0 {
		return nil, ErrNoAudio
	}

	for c, ch := range channels {
		if len(ch) < frames {
			padded := make([]float32, frames)
			copy(padded, ch)
			channels[c] = padded
			ch = padded
		}
		for i, v := range ch {
			if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
				ch[i] = 0
			}
		}
	}

	return &DecodedAudio{
		ID:              id,
		channels:        channels,
		mono:            mixdown(channels, frames),
		sampleRate:      sampleRate,
		durationSeconds: float64(frames) / float64(sampleRate),
	}, nil
}

// mixdown averages all channels into one.
func mixdown(channels [][]float32, frames int) []float32 {
	if len(channels) == 1 {
		return channels[0]
	}
	mono := make([]float32, frames)
	scale := 1 / float32(len(channels))
	for _, ch := range channels {
		for i, v := range ch {
			mono[i] += v
		}
	}
	for i := range mono {
		mono[i] *= scale
	}
	return mono
}

// SampleRate returns the native rate of the decoded asset.
func (d *DecodedAudio) SampleRate() int { return d.sampleRate }

// DurationSeconds returns the asset length.
func (d *DecodedAudio) DurationSeconds() float64 { return d.durationSeconds }

// NumChannels returns the channel count.
func (d *DecodedAudio) NumChannels() int { return len(d.channels) }

// Frames returns the number of sample frames per channel.
func (d *DecodedAudio) Frames() int { return len(d.mono) }

// Channel returns the samples of channel c. Callers must not modify it.
func (d *DecodedAudio) Channel(c int) []float32 { return d.channels[c] }

// Mono returns the channel average. Callers must not modify it.
func (d *DecodedAudio) Mono() []float32 { return d.mono }
