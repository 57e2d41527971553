package job

import (
	"image"

	"golang.org/x/image/draw"
)

// Resize scales frame to target. Frames already at the target size, and
// non-positive targets, pass through unchanged.
func Resize(frame image.Image, target image.Point) image.Image {
	b := frame.Bounds()
	if target.X <= 0 || target.Y <= 0 || (b.Dx() == target.X && b.Dy() == target.Y) {
		return frame
	}

	dst := image.NewRGBA(image.Rect(0, 0, target.X, target.Y))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), frame, b, draw.Src, nil)
	return dst
}
