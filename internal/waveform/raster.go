package waveform

import (
	"image"
	"image/draw"
	"image/png"
	"io"
	"math"
)

// Rasterize paints ops onto a new RGBA image of the layout size. Opaque
// colors replace, translucent ones blend over.
func Rasterize(layout Layout, ops []DrawOp) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, max(layout.Width, 0), max(layout.Height, 0)))
	for _, op := range ops {
		rect := opRect(op).Intersect(img.Bounds())
		if rect.Empty() {
			continue
		}
		mode := draw.Over
		if op.Color.A == 0xff {
			mode = draw.Src
		}
		draw.Draw(img, rect, &image.Uniform{op.Color}, image.Point{}, mode)
	}
	return img
}

// WritePNG rasterizes frame and encodes it as PNG.
func WritePNG(w io.Writer, layout Layout, frame Frame) error {
	return png.Encode(w, Rasterize(layout, frame.Ops()))
}

func opRect(op DrawOp) image.Rectangle {
	x0, x1 := math.Min(op.X0, op.X1), math.Max(op.X0, op.X1)
	y0, y1 := math.Min(op.Y0, op.Y1), math.Max(op.Y0, op.Y1)

	switch op.Kind {
	case OpLine:
		if x0 == x1 {
			x := int(math.Floor(x0))
			return image.Rect(x, int(math.Floor(y0)), x+1, int(math.Ceil(y1))+1)
		}
		y := int(math.Floor(y0))
		return image.Rect(int(math.Floor(x0)), y, int(math.Ceil(x1)), y+1)
	default:
		return image.Rect(int(math.Floor(x0)), int(math.Floor(y0)), int(math.Ceil(x1)), int(math.Ceil(y1)))
	}
}
