package models

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const boxThickness = 3

var (
	BoxColor   = color.RGBA{0, 255, 0, 255}
	LabelColor = color.RGBA{0, 0, 0, 255}
)

// Plot renders the detections onto a copy of the frame. The frame itself is
// left untouched.
func (r *Result) Plot() image.Image {
	if r == nil || r.Frame == nil {
		return nil
	}

	bounds := r.Frame.Bounds()
	out := image.NewRGBA(bounds)
	draw.Draw(out, bounds, r.Frame, bounds.Min, draw.Src)

	for _, det := range r.Detections {
		rect := det.Box.Rect().Add(bounds.Min)
		drawRect(out, rect.Min.Y, rect.Min.X, rect.Max.Y, rect.Max.X, BoxColor)
		drawCaption(out, rect.Min, det.Caption())
	}

	return out
}

func drawRect(img *image.RGBA, y1, x1, y2, x2 int, col color.Color) {
	bounds := img.Bounds()

	setPixel := func(x, y int) {
		if x >= bounds.Min.X && x < bounds.Max.X && y >= bounds.Min.Y && y < bounds.Max.Y {
			img.Set(x, y, col)
		}
	}

	for t := 0; t < boxThickness; t++ {
		for x := x1; x <= x2; x++ {
			setPixel(x, y1+t)
			setPixel(x, y2-t)
		}
		for y := y1; y <= y2; y++ {
			setPixel(x1+t, y)
			setPixel(x2-t, y)
		}
	}
}

// drawCaption puts the caption on a filled strip just above the box, or just
// inside it when the box touches the top edge.
func drawCaption(img *image.RGBA, at image.Point, text string) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil() + 4
	height := face.Metrics().Height.Ceil() + 2

	top := at.Y - height
	if top < img.Bounds().Min.Y {
		top = at.Y
	}
	strip := image.Rect(at.X, top, at.X+width, top+height).Intersect(img.Bounds())
	if strip.Empty() {
		return
	}
	draw.Draw(img, strip, image.NewUniform(BoxColor), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(LabelColor),
		Face: face,
		Dot:  fixed.P(at.X+2, top+face.Metrics().Ascent.Ceil()+1),
	}
	d.DrawString(text)
}
