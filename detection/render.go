package detection

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	vehicleColor = color.RGBA{G: 255, A: 255}
	plateColor   = color.RGBA{R: 255, A: 255}
	otherColor   = color.RGBA{R: 255, G: 255, A: 255}
)

const lineWidth = 2

// Render copies frame and draws objs on the copy. Vehicles are green,
// plates red, and classified vehicles get their attributes written above
// the box.
func Render(frame image.Image, objs []Object) *image.RGBA {
	b := frame.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, frame, b.Min, draw.Src)

	for _, o := range objs {
		c := otherColor
		switch o.Label {
		case LabelVehicle:
			c = vehicleColor
		case LabelPlate:
			c = plateColor
		}
		outline(dst, o.Box, c)
		if o.Attributes != nil {
			label(dst, o.Box, o.Attributes.String(), c)
		}
	}
	return dst
}

func outline(dst draw.Image, r image.Rectangle, c color.Color) {
	src := image.NewUniform(c)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+lineWidth),
		image.Rect(r.Min.X, r.Max.Y-lineWidth, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+lineWidth, r.Max.Y),
		image.Rect(r.Max.X-lineWidth, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		e = e.Intersect(dst.Bounds())
		if e.Empty() {
			continue
		}
		draw.Draw(dst, e, src, image.Point{}, draw.Src)
	}
}

func label(dst draw.Image, r image.Rectangle, text string, c color.Color) {
	face := basicfont.Face7x13
	y := r.Min.Y - 3
	if y-face.Ascent < dst.Bounds().Min.Y {
		y = r.Min.Y + face.Ascent + lineWidth
	}
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(r.Min.X, y),
	}
	d.DrawString(text)
}
