// Package waveform reduces decoded samples to a per-pixel amplitude envelope
// and renders it as a cached static layer plus a cheap playhead layer.
package waveform

import "errors"

// Amplitude scale bounds.
const (
	MinScale = 1
	MaxScale = 4
)

// ErrInvalidScale is returned for an amplitude scale outside 1..4.
var ErrInvalidScale = errors.New("amplitude scale must be between 1 and 4")

// ValidateScale checks an amplitude scale.
func ValidateScale(scale int) error {
	if scale < MinScale || scale > MaxScale {
		return ErrInvalidScale
	}
	return nil
}

// Column is the raw amplitude range of one pixel column.
type Column struct {
	Min float32 `json:"min"`
	Max float32 `json:"max"`
}

// Envelope is a fixed-resolution min/max summary of a mono signal. Columns
// hold raw amplitudes; Scale is applied when drawing, so one envelope serves
// every scale.
type Envelope struct {
	Columns     []Column `json:"columns"`
	PixelWidth  int      `json:"pixel_width"`
	Scale       int      `json:"amplitude_scale"`
	SampleCount int      `json:"sample_count"`
}

// Build partitions mono into pixelWidth contiguous windows of
// floor(len/pixelWidth) samples, the last window taking the remainder, and
// records each window's min and max. With fewer samples than columns each
// column takes the single sample under it. It is linear in len(mono).
// Empty input or a width below 1 yields an envelope with no columns.
func Build(mono []float32, pixelWidth, scale int) *Envelope {
	env := &Envelope{
		PixelWidth:  max(pixelWidth, 0),
		Scale:       min(max(scale, MinScale), MaxScale),
		SampleCount: len(mono),
	}
	n := len(mono)
	if n == 0 || pixelWidth < 1 {
		return env
	}

	env.Columns = make([]Column, pixelWidth)
	per := n / pixelWidth

	if per == 0 {
		for i := range env.Columns {
			v := mono[i*n/pixelWidth]
			env.Columns[i] = Column{Min: v, Max: v}
		}
		return env
	}

	for i := range env.Columns {
		start := i * per
		end := start + per
		if i == pixelWidth-1 {
			end = n
		}
		lo, hi := mono[start], mono[start]
		for _, v := range mono[start+1 : end] {
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		env.Columns[i] = Column{Min: lo, Max: hi}
	}
	return env
}

// WithScale returns a copy of e drawn at a different scale. The columns are
// shared, not recomputed.
func (e *Envelope) WithScale(scale int) *Envelope {
	c := *e
	c.Scale = min(max(scale, MinScale), MaxScale)
	return &c
}

// Empty reports whether the envelope has no columns.
func (e *Envelope) Empty() bool { return e == nil || len(e.Columns) == 0 }

// Peak returns the largest absolute amplitude in the envelope.
func (e *Envelope) Peak() float32 {
	var peak float32
	for _, c := range e.Columns {
		peak = max(peak, -c.Min, c.Max)
	}
	return peak
}
