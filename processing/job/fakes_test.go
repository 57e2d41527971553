package job

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"sync"

	"yoloface/internal/models"
	"yoloface/processing/capture"
)

// numbered returns a w x h frame whose first pixel encodes n.
func numbered(n, w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: uint8(n), A: 255})
	return img
}

func frameNumber(img image.Image) int {
	r, _, _, _ := img.At(img.Bounds().Min.X, img.Bounds().Min.Y).RGBA()
	return int(r >> 8)
}

type fakeSource struct {
	mu      sync.Mutex
	frames  []image.Image
	readErr error
	reads   int
	closed  int
}

func (s *fakeSource) Read() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reads >= len(s.frames) {
		if s.readErr != nil {
			return nil, s.readErr
		}
		return nil, io.EOF
	}
	f := s.frames[s.reads]
	s.reads++
	return f, nil
}

func (s *fakeSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func (s *fakeSource) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeOpener struct {
	mu      sync.Mutex
	sources map[string]*fakeSource
	err     error
	opened  []capture.Request
}

func (o *fakeOpener) open(req capture.Request) (capture.Source, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opened = append(o.opened, req)
	if o.err != nil {
		return nil, o.err
	}
	src, ok := o.sources[req.String()]
	if !ok {
		return nil, errors.New("no such source")
	}
	return src, nil
}

type fakeDetector struct {
	mu     sync.Mutex
	sizes  []image.Point
	err    error
	detect func(ctx context.Context, frame image.Image)
}

func (d *fakeDetector) Detect(ctx context.Context, frame image.Image) (*models.Result, error) {
	if d.detect != nil {
		d.detect(ctx, frame)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sizes = append(d.sizes, frame.Bounds().Size())
	if d.err != nil {
		return nil, d.err
	}
	return &models.Result{
		Frame:      frame,
		Detections: []models.DetectionResult{{Label: "face", Confidence: 0.9, Box: models.Box{X1: 1, Y1: 1, X2: 3, Y2: 3}}},
	}, nil
}

func (d *fakeDetector) Close() error { return nil }

func (d *fakeDetector) calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sizes)
}

type fakeSink struct {
	mu      sync.Mutex
	title   string
	shown   []image.Image
	keys    map[int]rune
	waited  int
	closed  int
	showErr error
}

func (s *fakeSink) Show(frame image.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.showErr != nil {
		return s.showErr
	}
	s.shown = append(s.shown, frame)
	return nil
}

func (s *fakeSink) PollKey() (rune, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.keys[len(s.shown)]
	return key, ok
}

func (s *fakeSink) WaitKey(ctx context.Context) rune {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waited++
	return ' '
}

func (s *fakeSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

type fakeDisplay struct {
	mu    sync.Mutex
	sinks []*fakeSink
	keys  map[int]rune
	err   error
}

func (d *fakeDisplay) open(title string) (Sink, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	s := &fakeSink{title: title, keys: d.keys}
	d.sinks = append(d.sinks, s)
	return s, nil
}

func (d *fakeDisplay) opened() []*fakeSink {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*fakeSink(nil), d.sinks...)
}

type fakeReporter struct {
	mu   sync.Mutex
	errs []error
}

func (r *fakeReporter) ReportError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *fakeReporter) reported() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}
