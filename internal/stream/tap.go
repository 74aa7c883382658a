package stream

import (
	"sync"

	"github.com/skyclans/detectx-audio-detector-manus-ui-sub001/internal/audio"
	"github.com/skyclans/detectx-audio-detector-manus-ui-sub001/internal/graph"
	"github.com/skyclans/detectx-audio-detector-manus-ui-sub001/internal/wav"
)

// Tap converts rendered float quanta into fixed 20ms int16 frames and
// publishes them. Output devices forward every rendered quantum to it.
type Tap struct {
	b *Broadcaster

	mu    sync.Mutex
	chunk *audio.Rechunker
}

// NewTap creates a tap publishing to b in frames of frameSize samples per
// channel.
func NewTap(b *Broadcaster, frameSize int) *Tap {
	return &Tap{
		b:     b,
		chunk: audio.NewRechunker(frameSize * graph.Channels),
	}
}

// Write accepts interleaved stereo float32 samples.
func (t *Tap) Write(samples []float32) error {
	pcm := make([]int16, len(samples))
	for i, v := range samples {
		pcm[i] = wav.FloatToInt16(v)
	}

	t.mu.Lock()
	frames := t.chunk.Push(pcm)
	t.mu.Unlock()

	for _, f := range frames {
		t.b.Publish(f)
	}
	return nil
}
