package graph

import (
	"math"
	"sync"
	"sync/atomic"
)

// GainNode scales the sum of its connected sources.
type GainNode struct {
	bits atomic.Uint64

	mu      sync.Mutex
	sources []*SourceNode
}

func newGainNode() *GainNode {
	g := &GainNode{}
	g.bits.Store(math.Float64bits(1))
	return g
}

// SetGain sets the multiplier. It is picked up by the next rendered quantum.
// Negative and non-finite values are treated as 0.
func (g *GainNode) SetGain(v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		v = 0
	}
	g.bits.Store(math.Float64bits(v))
}

// Gain returns the current multiplier.
func (g *GainNode) Gain() float64 {
	return math.Float64frombits(g.bits.Load())
}

// ActiveSources returns how many sources are connected and not finished.
func (g *GainNode) ActiveSources() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, s := range g.sources {
		if !s.finished() {
			n++
		}
	}
	return n
}

func (g *GainNode) connect(s *SourceNode) {
	g.mu.Lock()
	g.sources = append(g.sources, s)
	g.mu.Unlock()
}

// render mixes all playing sources into out and prunes finished ones,
// appending sources that ran off their buffer to ended.
func (g *GainNode) render(out []float32, rate int, ended []*SourceNode) []*SourceNode {
	g.mu.Lock()
	defer g.mu.Unlock()

	live := g.sources[:0]
	for _, s := range g.sources {
		if s.render(out, rate) {
			ended = append(ended, s)
		}
		if !s.finished() {
			live = append(live, s)
		}
	}
	clear(g.sources[len(live):])
	g.sources = live
	return ended
}
