package audio

import "time"

const (
	// OpusSampleRate is the sample rate Opus listen-along sinks encode at.
	OpusSampleRate = 48000
	// OpusChannels is the channel count for Opus listen-along sinks.
	OpusChannels = 2
	// OpusFrameSize is the number of samples per channel per frame (20ms at 48kHz).
	OpusFrameSize = 960
	// OpusFrameSamples is the interleaved sample count of one frame.
	OpusFrameSamples = OpusFrameSize * OpusChannels
	// OpusFrameDuration is the playback length of one frame.
	OpusFrameDuration = 20 * time.Millisecond
)

// Rechunker regroups interleaved int16 PCM of arbitrary block sizes into
// fixed-size frames, as codecs with strict frame lengths require.
type Rechunker struct {
	frameSamples int
	pending      []int16
}

// NewRechunker creates a rechunker emitting frames of frameSamples interleaved samples.
func NewRechunker(frameSamples int) *Rechunker {
	return &Rechunker{frameSamples: frameSamples}
}

// Push appends samples and returns every complete frame now available.
// Returned frames do not alias the input.
func (r *Rechunker) Push(samples []int16) [][]int16 {
	r.pending = append(r.pending, samples...)

	var frames [][]int16
	for len(r.pending) >= r.frameSamples {
		frame := make([]int16, r.frameSamples)
		copy(frame, r.pending[:r.frameSamples])
		frames = append(frames, frame)
		r.pending = r.pending[r.frameSamples:]
	}

	// Compact so the backing array does not grow without bound.
	if len(r.pending) > 0 {
		r.pending = append([]int16(nil), r.pending...)
	} else {
		r.pending = r.pending[:0]
	}
	return frames
}

// SamplesToBytes converts int16 samples to little-endian bytes.
func SamplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		buf[i*2] = byte(s)
		buf[i*2+1] = byte(uint16(s) >> 8)
	}
	return buf
}
