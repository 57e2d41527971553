// Package detector is the boundary to the object-detection model. A Detector
// takes one decoded frame and returns a result that can render itself
// annotated.
package detector

import (
	"context"
	"image"

	"yoloface/internal/models"
)

// Detector implementations must be safe for concurrent use; one instance is
// shared by every running job.
type Detector interface {
	Detect(ctx context.Context, frame image.Image) (*models.Result, error)
	Close() error
}
