package waveform

import (
	"image/color"
	"sync"
)

// OpKind is the kind of a drawing operation.
type OpKind string

// Drawing operations.
const (
	OpRect OpKind = "rect"
	OpLine OpKind = "line"
)

// DrawOp is one primitive in surface pixel coordinates. Lines are
// axis-aligned and one pixel wide.
type DrawOp struct {
	Kind  OpKind     `json:"kind"`
	X0    float64    `json:"x0"`
	Y0    float64    `json:"y0"`
	X1    float64    `json:"x1"`
	Y1    float64    `json:"y1"`
	Color color.RGBA `json:"color"`
}

// Theme holds the renderer colors. Translucent colors are alpha-premultiplied.
type Theme struct {
	Background  color.RGBA
	Placeholder color.RGBA
	Center      color.RGBA
	Wave        color.RGBA
	Played      color.RGBA
	Playhead    color.RGBA
}

// DefaultTheme matches the dark player panel.
var DefaultTheme = Theme{
	Background:  color.RGBA{0x11, 0x18, 0x27, 0xff},
	Placeholder: color.RGBA{0x37, 0x41, 0x51, 0xff},
	Center:      color.RGBA{0x37, 0x41, 0x51, 0xff},
	Wave:        color.RGBA{0x60, 0xa5, 0xfa, 0xff},
	Played:      color.RGBA{0x13, 0x2b, 0x52, 0x55},
	Playhead:    color.RGBA{0xf8, 0xfa, 0xfc, 0xff},
}

// Frame is one render result. Static is the cached layer, identical across
// frames until the structure changes; Playhead is rebuilt every call.
type Frame struct {
	Static        []DrawOp `json:"static"`
	Playhead      []DrawOp `json:"playhead"`
	StaticRebuilt bool     `json:"static_rebuilt"`
	Placeholder   bool     `json:"placeholder"`
}

// Ops returns static then playhead operations in paint order.
func (f Frame) Ops() []DrawOp {
	ops := make([]DrawOp, 0, len(f.Static)+len(f.Playhead))
	ops = append(ops, f.Static...)
	return append(ops, f.Playhead...)
}

type staticKey struct {
	env    *Envelope
	layout Layout
	scale  int
}

// Renderer owns the envelope cache for the current audio and the static
// layer cache built from it. Samples are scanned only when the audio or the
// width changes; the static layer is rebuilt only when the envelope, layout
// or scale changes.
type Renderer struct {
	theme Theme

	mu       sync.Mutex
	audioID  string
	mono     []float32
	env      *Envelope
	key      staticKey
	static   []DrawOp
	builds   int
	rebuilds int
}

// NewRenderer creates a renderer with no audio.
func NewRenderer(theme Theme) *Renderer {
	return &Renderer{theme: theme}
}

// SetAudio installs the mono signal to draw. A nil signal returns the
// renderer to placeholder mode. Installing the same id again is a no-op.
func (r *Renderer) SetAudio(id string, mono []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if mono != nil && id == r.audioID && r.mono != nil {
		return
	}
	r.audioID = id
	r.mono = mono
	r.env = nil
	r.static = nil
	r.key = staticKey{}
}

// Envelope returns the envelope for width at scale, building it only when
// the width changed. It returns nil when there is no audio.
func (r *Renderer) Envelope(width, scale int) *Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.envelopeLocked(width, scale)
}

func (r *Renderer) envelopeLocked(width, scale int) *Envelope {
	if len(r.mono) == 0 {
		return nil
	}
	scale = min(max(scale, MinScale), MaxScale)
	if r.env == nil || r.env.PixelWidth != width {
		r.env = Build(r.mono, width, scale)
		r.builds++
	}
	if r.env.Scale != scale {
		r.env = r.env.WithScale(scale)
	}
	return r.env
}

// Render produces the frame for the playhead at currentTime. Without audio
// it returns a neutral placeholder and no playhead.
func (r *Renderer) Render(layout Layout, scale int, currentTime, duration float64) Frame {
	r.mu.Lock()
	defer r.mu.Unlock()

	env := r.envelopeLocked(layout.Width, scale)
	if env.Empty() {
		return Frame{Static: r.placeholder(layout), Placeholder: true}
	}

	frame := Frame{}
	key := staticKey{env: env, layout: layout, scale: env.Scale}
	if r.static == nil || r.key != key {
		r.static = r.paintStatic(env, layout)
		r.key = key
		r.rebuilds++
		frame.StaticRebuilt = true
	}
	frame.Static = r.static
	frame.Playhead = r.paintPlayhead(layout, currentTime, duration)
	return frame
}

// Stats returns how many envelopes and static layers have been built.
func (r *Renderer) Stats() (envelopeBuilds, staticRebuilds int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.builds, r.rebuilds
}

func (r *Renderer) placeholder(layout Layout) []DrawOp {
	w, h := float64(layout.Width), float64(layout.Height)
	mid := h / 2
	return []DrawOp{
		{Kind: OpRect, X0: 0, Y0: 0, X1: w, Y1: h, Color: r.theme.Background},
		{Kind: OpLine, X0: 0, Y0: mid, X1: w, Y1: mid, Color: r.theme.Placeholder},
	}
}

func (r *Renderer) paintStatic(env *Envelope, layout Layout) []DrawOp {
	w, h := float64(layout.Width), float64(layout.Height)
	mid := h / 2
	scale := float32(env.Scale)

	ops := make([]DrawOp, 0, len(env.Columns)+2)
	ops = append(ops,
		DrawOp{Kind: OpRect, X0: 0, Y0: 0, X1: w, Y1: h, Color: r.theme.Background},
		DrawOp{Kind: OpLine, X0: 0, Y0: mid, X1: w, Y1: mid, Color: r.theme.Center},
	)

	for i, c := range env.Columns {
		hi := clampAmp(c.Max * scale)
		lo := clampAmp(c.Min * scale)
		x := float64(i)
		ops = append(ops, DrawOp{
			Kind:  OpLine,
			X0:    x,
			Y0:    mid - float64(hi)*mid,
			X1:    x,
			Y1:    mid - float64(lo)*mid,
			Color: r.theme.Wave,
		})
	}
	return ops
}

func (r *Renderer) paintPlayhead(layout Layout, currentTime, duration float64) []DrawOp {
	x := layout.TimeToPixel(currentTime, duration)
	h := float64(layout.Height)
	return []DrawOp{
		{Kind: OpRect, X0: 0, Y0: 0, X1: x, Y1: h, Color: r.theme.Played},
		{Kind: OpLine, X0: x, Y0: 0, X1: x, Y1: h, Color: r.theme.Playhead},
	}
}

func clampAmp(v float32) float32 {
	return min(max(v, -1), 1)
}
