package waveform

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLayout_ClickAtHalfOfTenSeconds(t *testing.T) {
	l := Layout{Width: 100, Height: 50}
	assert.Equal(t, 5.0, l.PixelToTime(50, 10))
	assert.Equal(t, 50.0, l.TimeToPixel(5, 10))
}

func TestLayout_PixelToTimeClamps(t *testing.T) {
	l := Layout{Width: 200, Height: 50}

	tests := []struct {
		x    float64
		want float64
	}{
		{-10, 0},
		{0, 0},
		{200, 30},
		{500, 30},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, l.PixelToTime(tt.x, 30), "x=%v", tt.x)
	}
}

func TestLayout_Inversion(t *testing.T) {
	durations := []float64{0.37, 1, 10, 61.5, 3600}
	widths := []int{1, 7, 100, 333, 1200, 4096}

	for _, d := range durations {
		for _, w := range widths {
			l := Layout{Width: w, Height: 10}
			tolerance := l.PixelSeconds(d)
			for i := 0; i <= 50; i++ {
				tm := d * float64(i) / 50
				got := l.PixelToTime(l.TimeToPixel(tm, d), d)
				if math.Abs(got-tm) > tolerance {
					t.Fatalf("width %d duration %v: PixelToTime(TimeToPixel(%v)) = %v", w, d, tm, got)
				}
				assert.InDelta(t, tm, got, 1e-9*math.Max(d, 1))
			}
		}
	}
}

func TestLayout_DegenerateInputs(t *testing.T) {
	assert.Equal(t, 0.0, Layout{Width: 0}.TimeToPixel(3, 10))
	assert.Equal(t, 0.0, Layout{Width: 100}.TimeToPixel(3, 0))
	assert.Equal(t, 0.0, Layout{Width: 100}.PixelToTime(30, math.NaN()))
	assert.Equal(t, 100.0, Layout{Width: 100}.TimeToPixel(30, 10))
}

func TestFormatTime(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0:00"},
		{5.9, "0:05"},
		{60, "1:00"},
		{125.2, "2:05"},
		{3600, "60:00"},
		{-3, "0:00"},
		{math.NaN(), "0:00"},
		{math.Inf(1), "0:00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatTime(tt.in), "FormatTime(%v)", tt.in)
	}
}
