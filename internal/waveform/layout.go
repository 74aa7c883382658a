package waveform

import (
	"fmt"
	"math"
)

// Layout is the drawing surface size in pixels.
type Layout struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// TimeToPixel maps t to an x coordinate. Both mappings go through the same
// fraction of duration so PixelToTime(TimeToPixel(t)) lands on t.
func (l Layout) TimeToPixel(t, duration float64) float64 {
	if l.Width <= 0 || !(duration > 0) {
		return 0
	}
	return clampUnit(t/duration) * float64(l.Width)
}

// PixelToTime maps a pointer x coordinate to a time:
// clamp(x/width, 0, 1) * duration.
func (l Layout) PixelToTime(x, duration float64) float64 {
	if l.Width <= 0 || !(duration > 0) {
		return 0
	}
	return clampUnit(x/float64(l.Width)) * duration
}

// PixelSeconds is the time covered by one pixel column.
func (l Layout) PixelSeconds(duration float64) float64 {
	if l.Width <= 0 {
		return 0
	}
	return duration / float64(l.Width)
}

func clampUnit(f float64) float64 {
	if math.IsNaN(f) {
		return 0
	}
	return min(max(f, 0), 1)
}

// FormatTime renders seconds as m:ss for transport readouts. Negative and
// non-finite input renders as 0:00.
func FormatTime(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		seconds = 0
	}
	total := int(math.Floor(seconds))
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
