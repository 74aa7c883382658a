package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/youpy/go-riff"
	"github.com/zaf/g711"
)

var (
	// ErrNotWAVE is returned when the RIFF file type is not WAVE.
	ErrNotWAVE = errors.New("riff file is not WAVE")
	// ErrFormatChunkMissing is returned when no "fmt " chunk exists.
	ErrFormatChunkMissing = errors.New("format chunk is not found")
	// ErrDataChunkMissing is returned when no "data" chunk exists.
	ErrDataChunkMissing = errors.New("data chunk is not found")
	// ErrUnsupportedEncoding is returned for format/bit-depth combinations the reader cannot decode.
	ErrUnsupportedEncoding = errors.New("unsupported wav encoding")
)

// Format mirrors the leading fields of a WAVE fmt chunk.
type Format struct {
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
}

// Reader decodes a WAV file held in a random-access reader.
type Reader struct {
	r         *riff.Reader
	riffChunk *riff.RIFFChunk
	format    *Format
	data      *riff.Chunk
}

// NewReader wraps r. Nothing is parsed until Format or ReadAll is called.
func NewReader(r riff.RIFFReader) *Reader {
	return &Reader{r: riff.NewReader(r)}
}

// Format returns the parsed fmt chunk. For WAVE_FORMAT_EXTENSIBLE files the
// returned AudioFormat is the effective code from the sub-format GUID.
func (r *Reader) Format() (*Format, error) {
	if r.format != nil {
		return r.format, nil
	}

	chunk, err := r.chunks()
	if err != nil {
		return nil, err
	}

	fmtChunk := findChunk(chunk, "fmt ")
	if fmtChunk == nil {
		return nil, ErrFormatChunkMissing
	}

	format := new(Format)
	if err := binary.Read(fmtChunk, binary.LittleEndian, format); err != nil {
		return nil, fmt.Errorf("read fmt chunk: %w", err)
	}

	if format.AudioFormat == FormatExtensible {
		// cbSize(2) validBits(2) channelMask(4), then the GUID whose first
		// two bytes carry the real format code.
		sub := make([]byte, 2)
		if _, err := fmtChunk.ReadAt(sub, 24); err != nil {
			return nil, fmt.Errorf("read extensible sub-format: %w", err)
		}
		format.AudioFormat = binary.LittleEndian.Uint16(sub)
	}

	if format.NumChannels == 0 || format.SampleRate == 0 {
		return nil, fmt.Errorf("%w: %d channels at %d Hz", ErrUnsupportedEncoding, format.NumChannels, format.SampleRate)
	}
	if format.BitsPerSample == 0 {
		return nil, fmt.Errorf("%w: BitsPerSample is 0", ErrUnsupportedEncoding)
	}
	if format.BlockAlign == 0 {
		format.BlockAlign = format.NumChannels * format.BitsPerSample / 8
	}

	r.format = format
	return format, nil
}

// Duration is derived from the data chunk size, block alignment and sample rate.
func (r *Reader) Duration() (time.Duration, error) {
	format, err := r.Format()
	if err != nil {
		return 0, err
	}
	data, err := r.dataChunk()
	if err != nil {
		return 0, err
	}

	frames := float64(data.ChunkSize) / float64(format.BlockAlign)
	sec := frames / float64(format.SampleRate)
	return time.Duration(sec * float64(time.Second)), nil
}

// ReadAll decodes the whole data chunk into one float slice per channel,
// normalized to [-1, 1]. A truncated trailing frame is dropped.
func (r *Reader) ReadAll() ([][]float32, error) {
	format, err := r.Format()
	if err != nil {
		return nil, err
	}

	decode, width, err := sampleDecoder(format)
	if err != nil {
		return nil, err
	}

	data, err := r.dataChunk()
	if err != nil {
		return nil, err
	}

	raw, err := io.ReadAll(io.LimitReader(data, int64(data.ChunkSize)))
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("read data chunk: %w", err)
	}

	numChannels := int(format.NumChannels)
	blockAlign := int(format.BlockAlign)
	frames := len(raw) / blockAlign

	channels := make([][]float32, numChannels)
	for c := range channels {
		channels[c] = make([]float32, frames)
	}

	for f := 0; f < frames; f++ {
		offset := f * blockAlign
		for c := 0; c < numChannels; c++ {
			soffset := offset + c*width
			channels[c][f] = decode(raw[soffset : soffset+width])
		}
	}

	return channels, nil
}

func (r *Reader) chunks() (*riff.RIFFChunk, error) {
	if r.riffChunk != nil {
		return r.riffChunk, nil
	}
	chunk, err := r.r.Read()
	if err != nil {
		return nil, err
	}
	if string(chunk.FileType[:]) != "WAVE" {
		return nil, ErrNotWAVE
	}
	r.riffChunk = chunk
	return chunk, nil
}

func (r *Reader) dataChunk() (*riff.Chunk, error) {
	if r.data != nil {
		return r.data, nil
	}
	chunk, err := r.chunks()
	if err != nil {
		return nil, err
	}
	data := findChunk(chunk, "data")
	if data == nil {
		return nil, ErrDataChunkMissing
	}
	r.data = data
	return data, nil
}

func findChunk(riffChunk *riff.RIFFChunk, id string) *riff.Chunk {
	for _, ch := range riffChunk.Chunks {
		if string(ch.ChunkID[:]) == id {
			return ch
		}
	}
	return nil
}

// sampleDecoder picks the per-sample conversion for a format and returns it
// with the sample width in bytes.
func sampleDecoder(format *Format) (func([]byte) float32, int, error) {
	bits := int(format.BitsPerSample)

	switch format.AudioFormat {
	case FormatPCM:
		switch bits {
		case 8:
			// 8-bit WAV is unsigned with a 128 bias.
			return func(b []byte) float32 { return (float32(b[0]) - 128) / 128 }, 1, nil
		case 16:
			return func(b []byte) float32 {
				return float32(int16(binary.LittleEndian.Uint16(b))) / 32768
			}, 2, nil
		case 24:
			return func(b []byte) float32 {
				v := int32(uint32(b[0])<<8|uint32(b[1])<<16|uint32(b[2])<<24) >> 8
				return float32(v) / 8388608
			}, 3, nil
		case 32:
			return func(b []byte) float32 {
				return float32(float64(int32(binary.LittleEndian.Uint32(b))) / 2147483648)
			}, 4, nil
		}

	case FormatIEEEFloat:
		switch bits {
		case 32:
			return func(b []byte) float32 {
				return math.Float32frombits(binary.LittleEndian.Uint32(b))
			}, 4, nil
		case 64:
			return func(b []byte) float32 {
				return float32(math.Float64frombits(binary.LittleEndian.Uint64(b)))
			}, 8, nil
		}

	case FormatALaw:
		if bits == 8 {
			return func(b []byte) float32 { return float32(g711.DecodeAlawFrame(b[0])) / 32768 }, 1, nil
		}

	case FormatMULaw:
		if bits == 8 {
			return func(b []byte) float32 { return float32(g711.DecodeUlawFrame(b[0])) / 32768 }, 1, nil
		}
	}

	return nil, 0, fmt.Errorf("%w: format %d with %d bits", ErrUnsupportedEncoding, format.AudioFormat, bits)
}
