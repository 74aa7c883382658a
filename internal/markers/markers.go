// Package markers places externally supplied timeline markers on the
// waveform's time axis. Markers are display data: nothing here changes a
// marker's timestamp or kind.
package markers

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrInvalidTimestamp is returned for a negative or non-finite timestamp.
var ErrInvalidTimestamp = errors.New("marker timestamp must be a finite, non-negative number")

// Marker is a structural event reported by the detection service.
type Marker struct {
	TimestampSeconds float64 `json:"timestamp"`
	Kind             string  `json:"kind"`
	Label            string  `json:"label,omitempty"`
}

// Validate checks every marker's timestamp.
func Validate(ms []Marker) error {
	for i, m := range ms {
		if math.IsNaN(m.TimestampSeconds) || math.IsInf(m.TimestampSeconds, 0) || m.TimestampSeconds < 0 {
			return fmt.Errorf("marker %d: %w", i, ErrInvalidTimestamp)
		}
	}
	return nil
}

// Placed is a marker with its on-screen x coordinate. Index refers to the
// marker's position in the list it was laid out from.
type Placed struct {
	Marker
	Index int     `json:"index"`
	X     float64 `json:"x"`
}

// Overlay computes marker positions. Margin keeps markers at the very start
// or end of the asset inside the clickable area.
type Overlay struct {
	Margin float64
}

// Position returns (timestamp / duration) * width clamped into
// [Margin, width-Margin]. Surfaces narrower than two margins center the
// marker.
func (o Overlay) Position(m Marker, duration float64, width int) float64 {
	w := float64(width)
	if w <= 0 {
		return 0
	}
	if w < 2*o.Margin {
		return w / 2
	}

	x := o.Margin
	if duration > 0 {
		x = m.TimestampSeconds / duration * w
	}
	if math.IsNaN(x) {
		x = o.Margin
	}
	return min(max(x, o.Margin), w-o.Margin)
}

// Layout places all markers, ordered by timestamp. Equal timestamps keep
// their input order.
func (o Overlay) Layout(ms []Marker, duration float64, width int) []Placed {
	placed := make([]Placed, len(ms))
	for i, m := range ms {
		placed[i] = Placed{Marker: m, Index: i, X: o.Position(m, duration, width)}
	}
	sort.SliceStable(placed, func(i, j int) bool {
		return placed[i].TimestampSeconds < placed[j].TimestampSeconds
	})
	return placed
}

// HitTest returns the placed marker nearest to x within tolerance pixels.
func HitTest(placed []Placed, x, tolerance float64) (Placed, bool) {
	best := -1
	bestDist := math.Inf(1)
	for i, p := range placed {
		d := math.Abs(p.X - x)
		if d <= tolerance && d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return Placed{}, false
	}
	return placed[best], true
}
