package models

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blackFrame(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	return img
}

func TestResultPlot_DrawsBoxOnCopy(t *testing.T) {
	frame := blackFrame(100, 100)
	res := &Result{
		Frame: frame,
		Detections: []DetectionResult{
			{Label: "face", Confidence: 0.9, Box: Box{X1: 20, Y1: 40, X2: 60, Y2: 80}},
		},
	}

	out := res.Plot()
	require.NotNil(t, out)
	assert.Equal(t, frame.Bounds(), out.Bounds())

	assert.Equal(t, BoxColor, color.RGBAModel.Convert(out.At(50, 41)), "top edge")
	assert.Equal(t, BoxColor, color.RGBAModel.Convert(out.At(21, 60)), "left edge")
	assert.Equal(t, BoxColor, color.RGBAModel.Convert(out.At(59, 79)), "bottom right")
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, color.RGBAModel.Convert(out.At(40, 60)), "interior")

	assert.Equal(t, color.RGBA{0, 0, 0, 255}, frame.RGBAAt(50, 41), "source frame must not change")
}

func TestResultPlot_ClipsBoxesOutsideFrame(t *testing.T) {
	res := &Result{
		Frame: blackFrame(32, 32),
		Detections: []DetectionResult{
			{Label: "face", Confidence: 0.5, Box: Box{X1: -10, Y1: -10, X2: 50, Y2: 50}},
			{Label: "face", Confidence: 0.5, Box: Box{X1: 100, Y1: 100, X2: 120, Y2: 120}},
		},
	}

	assert.NotPanics(t, func() { res.Plot() })
}

func TestResultPlot_NoDetections(t *testing.T) {
	frame := blackFrame(10, 10)
	out := (&Result{Frame: frame}).Plot()

	require.NotNil(t, out)
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, color.RGBAModel.Convert(out.At(5, 5)))
}

func TestResultPlot_Nil(t *testing.T) {
	var res *Result
	assert.Nil(t, res.Plot())
	assert.Nil(t, (&Result{}).Plot())
}

func TestClassName(t *testing.T) {
	names := []string{"face", "person"}

	assert.Equal(t, "face", ClassName(names, 0))
	assert.Equal(t, "person", ClassName(names, 1))
	assert.Equal(t, "class 7", ClassName(names, 7))
	assert.Equal(t, "class -1", ClassName(nil, -1))
}

func TestDetectionResult_Caption(t *testing.T) {
	d := DetectionResult{Label: "face", Confidence: 0.876}
	assert.Equal(t, "face 0.88", d.Caption())
}
