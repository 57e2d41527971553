package models

import (
	"fmt"
	"image"
)

type DetectionResult struct {
	Label      string  `json:"label"`
	ClassID    int     `json:"class_id"`
	Confidence float32 `json:"confidence"`
	Box        Box     `json:"box"`
}

// Box is a bounding box in pixel coordinates of the frame it was found in.
type Box struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

func (b Box) Rect() image.Rectangle {
	return image.Rect(b.X1, b.Y1, b.X2, b.Y2)
}

// Caption is the text drawn above a box, e.g. "face 0.87".
func (d DetectionResult) Caption() string {
	return fmt.Sprintf("%s %.2f", d.Label, d.Confidence)
}

// Result is what the detector produced for one frame.
type Result struct {
	Frame      image.Image
	Detections []DetectionResult
}

// ClassName returns the label for classID, or a generic name when the
// class list does not cover it.
func ClassName(names []string, classID int) string {
	if classID >= 0 && classID < len(names) {
		return names[classID]
	}
	return fmt.Sprintf("class %d", classID)
}
