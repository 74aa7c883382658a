package samples

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyclans/detectx-audio-detector-manus-ui-sub001/internal/audio"
	"github.com/skyclans/detectx-audio-detector-manus-ui-sub001/internal/logging"
	"github.com/skyclans/detectx-audio-detector-manus-ui-sub001/internal/wav"
)

func testWAV(frames, sampleRate int) []byte {
	left := make([]float32, frames)
	right := make([]float32, frames)
	for i := range left {
		left[i] = float32(math.Sin(2 * math.Pi * 440 * float64(i) / float64(sampleRate)))
		right[i] = -left[i] / 2
	}
	return wav.FromChannels([][]float32{left, right}, sampleRate)
}

func newTestStore() *Store {
	return NewStore(NewDecoder(nil, logging.Discard()), logging.Discard())
}

func TestNewDecodedAudio(t *testing.T) {
	d, err := NewDecodedAudio("x", [][]float32{{1, 0.5, 0}, {0, 0.5}}, 4)
	require.NoError(t, err)

	assert.Equal(t, 3, d.Frames())
	assert.Equal(t, 2, d.NumChannels())
	assert.Equal(t, 0.75, d.DurationSeconds())
	assert.Len(t, d.Channel(1), 3, "short channel is zero-padded")
	assert.Equal(t, []float32{0.5, 0.5, 0}, d.Mono())
}

func TestNewDecodedAudio_MonoSharesChannel(t *testing.T) {
	ch := []float32{0.1, 0.2}
	d, err := NewDecodedAudio("x", [][]float32{ch}, 8000)
	require.NoError(t, err)
	assert.Equal(t, ch, d.Mono())
}

func TestNewDecodedAudio_SanitizesNonFinite(t *testing.T) {
	d, err := NewDecodedAudio("x", [][]float32{{float32(math.NaN()), float32(math.Inf(1)), 0.25}}, 8000)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 0.25}, d.Channel(0))
}

func TestNewDecodedAudio_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		channels [][]float32
		rate     int
	}{
		{"no channels", nil, 8000},
		{"empty channels", [][]float32{{}, {}}, 8000},
		{"zero rate", [][]float32{{0.1}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDecodedAudio("x", tt.channels, tt.rate)
			assert.ErrorIs(t, err, ErrNoAudio)
		})
	}
}

func TestNewRawAsset_ContentAddressed(t *testing.T) {
	a := NewRawAsset("a.wav", "audio/wav", []byte("same bytes"))
	b := NewRawAsset("b.wav", "audio/x-wav", []byte("same bytes"))
	c := NewRawAsset("a.wav", "audio/wav", []byte("other bytes"))

	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, a.SHA256, b.SHA256)
	assert.NotEqual(t, a.ID, c.ID)
	assert.Len(t, a.SHA256, 64)
}

func TestDecoder_WAV(t *testing.T) {
	dec := NewDecoder(nil, logging.Discard())
	asset := NewRawAsset("tone.wav", "audio/wav", testWAV(4410, 44100))

	d, err := dec.Decode(context.Background(), asset)
	require.NoError(t, err)

	assert.Equal(t, asset.ID, d.ID)
	assert.Equal(t, 44100, d.SampleRate())
	assert.Equal(t, 2, d.NumChannels())
	assert.Equal(t, 4410, d.Frames())
	assert.InDelta(t, 0.1, d.DurationSeconds(), 1e-9)
}

func TestDecoder_Deterministic(t *testing.T) {
	dec := NewDecoder(nil, logging.Discard())
	data := testWAV(1000, 8000)

	first, err := dec.Decode(context.Background(), NewRawAsset("a.wav", "", data))
	require.NoError(t, err)
	second, err := dec.Decode(context.Background(), NewRawAsset("a.wav", "", data))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Channel(0), second.Channel(0))
	assert.Equal(t, first.Channel(1), second.Channel(1))
	assert.Equal(t, first.Mono(), second.Mono())
}

func TestDecoder_Errors(t *testing.T) {
	dec := NewDecoder(nil, logging.Discard())

	tests := []struct {
		name    string
		asset   *RawAsset
		wantErr error
		format  audio.Format
	}{
		{"empty", NewRawAsset("x.wav", "", nil), ErrEmptyInput, audio.FormatUnknown},
		{"unknown without converter", NewRawAsset("x.bin", "", []byte("not audio at all")), ErrUnsupportedFormat, audio.FormatUnknown},
		{"flac without converter", NewRawAsset("x.flac", "", []byte("fLaC\x00\x00\x00\x22")), ErrUnsupportedFormat, audio.FormatFLAC},
		{"corrupt wav", NewRawAsset("x.wav", "", []byte("RIFF\x04\x00\x00\x00WAVE")), wav.ErrFormatChunkMissing, audio.FormatWAV},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := dec.Decode(context.Background(), tt.asset)
			require.Error(t, err)

			var decErr *DecodeError
			require.True(t, errors.As(err, &decErr), "want *DecodeError, got %T", err)
			assert.Equal(t, tt.format, decErr.Format)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestStore_DecodeSuccess(t *testing.T) {
	s := newTestStore()
	_, ok := s.Duration()
	assert.False(t, ok)

	asset := NewRawAsset("tone.wav", "audio/wav", testWAV(8000, 8000))
	d, err := s.Decode(context.Background(), asset)
	require.NoError(t, err)

	assert.Same(t, d, s.Current())
	assert.Same(t, asset, s.Raw())
	assert.NoError(t, s.LastError())

	dur, ok := s.Duration()
	assert.True(t, ok)
	assert.InDelta(t, 1.0, dur, 1e-9)
}

func TestStore_DecodeFailureKeepsRaw(t *testing.T) {
	s := newTestStore()
	s.Decode(context.Background(), NewRawAsset("ok.wav", "", testWAV(100, 8000)))

	bad := NewRawAsset("bad.wav", "", []byte("RIFF\x04\x00\x00\x00WAVE"))
	_, err := s.Decode(context.Background(), bad)
	require.Error(t, err)

	assert.Nil(t, s.Current(), "previous decode must not survive a replacement")
	assert.Same(t, bad, s.Raw())
	assert.Error(t, s.LastError())
	_, ok := s.Duration()
	assert.False(t, ok)
}

func TestStore_DecodeAsync(t *testing.T) {
	s := newTestStore()
	res := <-s.DecodeAsync(context.Background(), NewRawAsset("a.wav", "", testWAV(800, 8000)))
	require.NoError(t, res.Err)
	assert.Same(t, res.Audio, s.Current())
}

func TestStore_Clear(t *testing.T) {
	s := newTestStore()
	s.Decode(context.Background(), NewRawAsset("a.wav", "", testWAV(800, 8000)))
	s.Clear()
	assert.Nil(t, s.Current())
	assert.Nil(t, s.Raw())
}
