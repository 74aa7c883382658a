package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
)

var (
	// ErrFFmpegNotFound is returned when ffmpeg is not installed.
	ErrFFmpegNotFound = errors.New("ffmpeg not found in PATH")
	// ErrConversionFailed is returned when ffmpeg conversion fails.
	ErrConversionFailed = errors.New("audio conversion failed")
	// ErrEmptyInput is returned for zero-length input.
	ErrEmptyInput = errors.New("empty input data")
)

// Converter decodes container formats the native readers do not handle
// (FLAC, Ogg, AAC/M4A, ...) by piping them through ffmpeg.
type Converter struct {
	ffmpegPath string
}

// NewConverter creates a converter using the ffmpeg found in PATH.
func NewConverter() (*Converter, error) {
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, ErrFFmpegNotFound
	}
	return &Converter{ffmpegPath: path}, nil
}

// NewConverterWithPath creates a converter with a specific ffmpeg path.
func NewConverterWithPath(path string) *Converter {
	return &Converter{ffmpegPath: path}
}

// Path returns the ffmpeg binary the converter runs.
func (c *Converter) Path() string {
	return c.ffmpegPath
}

// ConvertToWAV decodes arbitrary audio bytes into a 16-bit PCM WAV file at the
// source's own sample rate and channel count. The output is deterministic for
// a given input and ffmpeg build.
func (c *Converter) ConvertToWAV(ctx context.Context, data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}

	// -i pipe:0: read from stdin, probe the container
	// -vn: ignore cover art streams
	// -acodec pcm_s16le -f wav: 16-bit little-endian WAV
	// -bitexact: no encoder tags, keeps output byte-stable
	args := []string{
		"-i", "pipe:0",
		"-vn",
		"-acodec", "pcm_s16le",
		"-f", "wav",
		"-bitexact",
		"-loglevel", "error",
		"pipe:1",
	}

	cmd := exec.CommandContext(ctx, c.ffmpegPath, args...)
	cmd.Stdin = bytes.NewReader(data)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s", ErrConversionFailed, stderr.String())
	}

	if stdout.Len() == 0 {
		return nil, fmt.Errorf("%w: no output", ErrConversionFailed)
	}

	return patchStreamedSizes(stdout.Bytes()), nil
}

// patchStreamedSizes fixes the RIFF and data sizes ffmpeg leaves unset when
// writing WAV to a non-seekable pipe.
func patchStreamedSizes(b []byte) []byte {
	if len(b) < 12 || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return b
	}
	putLE32(b[4:8], uint32(len(b)-8))

	offset := 12
	for offset+8 <= len(b) {
		id := string(b[offset : offset+4])
		size := int(le32(b[offset+4 : offset+8]))
		if id == "data" {
			putLE32(b[offset+4:offset+8], uint32(len(b)-offset-8))
			break
		}
		next := offset + 8 + size + size%2
		if next <= offset || next > len(b) {
			break
		}
		offset = next
	}
	return b
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func putLE32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
