package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
)

// ErrMP3Decode is returned when the MP3 stream cannot be decoded.
var ErrMP3Decode = errors.New("mp3 decode failed")

// DecodeMP3 decodes an MP3 file into per-channel float samples in [-1, 1].
// go-mp3 always produces 16-bit stereo, so mono sources come back with two
// identical channels.
func DecodeMP3(data []byte) (channels [][]float32, sampleRate int, err error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrMP3Decode, err)
	}

	pcm, err := io.ReadAll(dec)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, 0, fmt.Errorf("%w: %w", ErrMP3Decode, err)
	}

	// 2 channels * 2 bytes
	frames := len(pcm) / 4
	if frames == 0 {
		return nil, 0, fmt.Errorf("%w: no audio frames", ErrMP3Decode)
	}

	left := make([]float32, frames)
	right := make([]float32, frames)
	for i := 0; i < frames; i++ {
		left[i] = float32(int16(uint16(pcm[i*4])|uint16(pcm[i*4+1])<<8)) / 32768
		right[i] = float32(int16(uint16(pcm[i*4+2])|uint16(pcm[i*4+3])<<8)) / 32768
	}

	return [][]float32{left, right}, dec.SampleRate(), nil
}
