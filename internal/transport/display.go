package transport

import (
	"github.com/skyclans/detectx-audio-detector-manus-ui-sub001/internal/markers"
	"github.com/skyclans/detectx-audio-detector-manus-ui-sub001/internal/waveform"
)

// SetMarkers replaces the marker list supplied by the detection service.
func (c *Controller) SetMarkers(ms []markers.Marker) error {
	if err := markers.Validate(ms); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.markers = append([]markers.Marker(nil), ms...)
	c.publishLocked()
	return nil
}

// AddMarkers appends markers to the current list.
func (c *Controller) AddMarkers(ms ...markers.Marker) error {
	if err := markers.Validate(ms); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.markers = append(c.markers, ms...)
	c.publishLocked()
	return nil
}

// Markers returns a copy of the marker list in arrival order.
func (c *Controller) Markers() []markers.Marker {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]markers.Marker(nil), c.markers...)
}

// PlacedMarkers lays the markers out on a surface width pixels wide.
func (c *Controller) PlacedMarkers(width int) []markers.Placed {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.overlay.Layout(c.markers, c.engine.Duration(), width)
}

// SetVerdict stores the detection verdict text for display.
func (c *Controller) SetVerdict(v string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.verdict = v
	c.publishLocked()
}

// Frame renders the waveform at the current playhead.
func (c *Controller) Frame(layout waveform.Layout, scale int) waveform.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.renderer.Render(layout, scale, c.engine.CurrentTime(), c.engine.Duration())
}

// Envelope returns the waveform envelope for width, or nil before decode.
func (c *Controller) Envelope(width, scale int) *waveform.Envelope {
	return c.renderer.Envelope(width, scale)
}
