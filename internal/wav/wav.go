// Package wav reads and writes RIFF/WAVE audio.
package wav

import "math"

// WAV format constants.
const (
	// HeaderSize is the size of a canonical 44-byte WAV header.
	HeaderSize = 44

	// FormatPCM is the audio format code for uncompressed integer PCM.
	FormatPCM = 1
	// FormatIEEEFloat is the audio format code for 32/64-bit float samples.
	FormatIEEEFloat = 3
	// FormatALaw is the audio format code for G.711 A-law.
	FormatALaw = 6
	// FormatMULaw is the audio format code for G.711 mu-law.
	FormatMULaw = 7
	// FormatExtensible marks a WAVE_FORMAT_EXTENSIBLE fmt chunk whose real
	// format lives in the sub-format GUID.
	FormatExtensible = 0xFFFE

	// StreamingSize is written into size fields when the length is unknown.
	StreamingSize = 0xFFFFFFFF
)

// Header builds a canonical 44-byte header for dataSize bytes of payload.
// Pass StreamingSize for an open-ended stream.
func Header(format uint16, sampleRate, channels, bitsPerSample int, dataSize uint32) []byte {
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	header := make([]byte, HeaderSize)

	// RIFF header
	copy(header[0:4], "RIFF")
	riffSize := uint32(StreamingSize)
	if dataSize != StreamingSize {
		riffSize = 36 + dataSize
	}
	PutLE32(header[4:8], riffSize)
	copy(header[8:12], "WAVE")

	// fmt subchunk
	copy(header[12:16], "fmt ")
	PutLE32(header[16:20], 16) // subchunk size
	PutLE16(header[20:22], format)
	PutLE16(header[22:24], uint16(channels))
	PutLE32(header[24:28], uint32(sampleRate))
	PutLE32(header[28:32], uint32(byteRate))
	PutLE16(header[32:34], uint16(blockAlign))
	PutLE16(header[34:36], uint16(bitsPerSample))

	// data subchunk
	copy(header[36:40], "data")
	PutLE32(header[40:44], dataSize)

	return header
}

// WrapRawPCM adds a WAV header to raw little-endian integer PCM data.
func WrapRawPCM(pcm []byte, sampleRate, channels, bitsPerSample int) []byte {
	header := Header(FormatPCM, sampleRate, channels, bitsPerSample, uint32(len(pcm)))
	return append(header, pcm...)
}

// PutLE16 writes a uint16 value in little-endian format to a byte slice.
func PutLE16(b []byte, v uint16) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}

// PutLE32 writes a uint32 value in little-endian format to a byte slice.
func PutLE32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

// EncodeInt16 interleaves per-channel float samples in [-1, 1] into
// 16-bit little-endian PCM. Values outside the range are clipped.
func EncodeInt16(channels [][]float32) []byte {
	if len(channels) == 0 {
		return nil
	}
	frames := len(channels[0])
	buf := make([]byte, frames*len(channels)*2)
	i := 0
	for f := 0; f < frames; f++ {
		for _, ch := range channels {
			PutLE16(buf[i:], uint16(FloatToInt16(ch[f])))
			i += 2
		}
	}
	return buf
}

// FromChannels builds a complete 16-bit PCM WAV file from per-channel samples.
func FromChannels(channels [][]float32, sampleRate int) []byte {
	return WrapRawPCM(EncodeInt16(channels), sampleRate, len(channels), 16)
}

// CreateMinimal creates a valid WAV file of numSamples frames of silence.
func CreateMinimal(numSamples, sampleRate, channels, bitsPerSample int) []byte {
	bytesPerSample := bitsPerSample / 8
	pcm := make([]byte, numSamples*channels*bytesPerSample)
	return WrapRawPCM(pcm, sampleRate, channels, bitsPerSample)
}

// FloatToInt16 converts a float sample to int16 with clipping.
func FloatToInt16(v float32) int16 {
	s := math.Round(float64(v) * 32767)
	if s > 32767 {
		return 32767
	}
	if s < -32768 {
		return -32768
	}
	return int16(s)
}
