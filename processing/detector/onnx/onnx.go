// Package onnx runs a YOLOv8 ONNX export through the OpenCV DNN module.
package onnx

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"yoloface/internal/models"
	"yoloface/processing/detector"
)

type Config struct {
	ModelPath        string
	Classes          []string
	ConfidenceThresh float32
	NMSThresh        float32
	InputSize        int
}

// DefaultConfig returns YOLOv8 defaults for modelPath.
func DefaultConfig(modelPath string) Config {
	return Config{
		ModelPath:        modelPath,
		ConfidenceThresh: 0.25,
		NMSThresh:        0.45,
		InputSize:        640,
	}
}

type Detector struct {
	net       gocv.Net
	config    Config
	mu        sync.Mutex
	inputSize image.Point
}

var _ detector.Detector = (*Detector)(nil)

func New(cfg Config) (*Detector, error) {
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", cfg.ModelPath)
	}
	if cfg.InputSize <= 0 {
		cfg.InputSize = 640
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load YOLO model from %s", cfg.ModelPath)
	}

	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, fmt.Errorf("set backend: %w", err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, fmt.Errorf("set target: %w", err)
	}

	return &Detector{
		net:       net,
		config:    cfg,
		inputSize: image.Pt(cfg.InputSize, cfg.InputSize),
	}, nil
}

func (d *Detector) Detect(ctx context.Context, frame image.Image) (*models.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := gocv.ImageToMatRGB(frame)
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	defer img.Close()

	if img.Empty() {
		return nil, fmt.Errorf("empty image")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	blob := gocv.BlobFromImage(img, 1.0/255.0, d.inputSize, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")

	output := d.net.Forward("")
	defer output.Close()

	// [1, 4+nc, anchors]
	sizes := output.Size()
	if len(sizes) != 3 {
		return nil, fmt.Errorf("unexpected output shape %v", sizes)
	}
	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}

	scaleX := float32(img.Cols()) / float32(d.inputSize.X)
	scaleY := float32(img.Rows()) / float32(d.inputSize.Y)
	candidates, err := detector.DecodeYOLOv8(data, sizes[1], sizes[2], d.config.ConfidenceThresh, scaleX, scaleY)
	if err != nil {
		return nil, err
	}

	return &models.Result{
		Frame:      frame,
		Detections: d.suppress(candidates, frame.Bounds()),
	}, nil
}

func (d *Detector) suppress(candidates []detector.Candidate, bounds image.Rectangle) []models.DetectionResult {
	if len(candidates) == 0 {
		return nil
	}

	boxes := make([]image.Rectangle, len(candidates))
	scores := make([]float32, len(candidates))
	for i, c := range candidates {
		boxes[i] = c.Rect
		scores[i] = c.Score
	}

	indices := gocv.NMSBoxes(boxes, scores, d.config.ConfidenceThresh, d.config.NMSThresh)

	out := make([]models.DetectionResult, 0, len(indices))
	for _, idx := range indices {
		c := candidates[idx]
		r := c.Rect.Intersect(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		out = append(out, models.DetectionResult{
			Label:      models.ClassName(d.config.Classes, c.ClassID),
			ClassID:    c.ClassID,
			Confidence: c.Score,
			Box:        models.Box{X1: r.Min.X, Y1: r.Min.Y, X2: r.Max.X, Y2: r.Max.Y},
		})
	}
	return out
}

func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}
