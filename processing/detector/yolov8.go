package detector

import (
	"fmt"
	"image"
)

// Candidate is one pre-NMS box decoded from a YOLOv8 output tensor, scaled
// to frame pixels.
type Candidate struct {
	Rect    image.Rectangle
	ClassID int
	Score   float32
}

// DecodeYOLOv8 reads a YOLOv8 detection head of shape [1, 4+nc, n] laid out
// attribute-major: data[a*n+i] is attribute a of anchor i. Attributes 0..3
// are cx, cy, w, h in model input pixels; the rest are per-class scores.
// Boxes scoring below threshold are dropped. scaleX and scaleY map input
// pixels to frame pixels.
func DecodeYOLOv8(data []float32, attrs, n int, threshold, scaleX, scaleY float32) ([]Candidate, error) {
	if attrs < 5 {
		return nil, fmt.Errorf("yolov8 output has %d attributes, want at least 5", attrs)
	}
	if len(data) < attrs*n {
		return nil, fmt.Errorf("yolov8 output has %d values, want %d", len(data), attrs*n)
	}

	var out []Candidate
	for i := 0; i < n; i++ {
		best := float32(0)
		bestClass := 0
		for a := 4; a < attrs; a++ {
			if score := data[a*n+i]; score > best {
				best = score
				bestClass = a - 4
			}
		}
		if best < threshold {
			continue
		}

		cx := data[0*n+i]
		cy := data[1*n+i]
		w := data[2*n+i]
		h := data[3*n+i]

		out = append(out, Candidate{
			Rect: image.Rect(
				int((cx-w/2)*scaleX),
				int((cy-h/2)*scaleY),
				int((cx+w/2)*scaleX),
				int((cy+h/2)*scaleY),
			),
			ClassID: bestClass,
			Score:   best,
		})
	}
	return out, nil
}
