// Package job runs one detection session per user action: it pulls frames
// from a capture source, hands them to the detector and shows the annotated
// result in a window of its own.
package job

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"sync/atomic"
	"time"

	"yoloface/internal/log"
	"yoloface/processing/capture"
	"yoloface/processing/detector"
)

var (
	ErrSourceOpen    = errors.New("cannot open source")
	ErrImageNotFound = errors.New("image not found")
	ErrImageDecode   = errors.New("cannot read image")
)

// KeyWindowClosed is returned by a Sink when the user closed its window.
const KeyWindowClosed rune = -1

// Sink is one display window.
type Sink interface {
	Show(frame image.Image) error
	// PollKey reports a pending key press without blocking.
	PollKey() (rune, bool)
	// WaitKey blocks until a key is pressed, the window closes or ctx ends.
	WaitKey(ctx context.Context) rune
	Close() error
}

// DisplayFactory opens a new window with the given title.
type DisplayFactory func(title string) (Sink, error)

// Reporter shows an error to the user.
type Reporter interface {
	ReportError(err error)
}

type Runner struct {
	detector detector.Detector
	open     capture.Opener
	display  DisplayFactory
	reporter Reporter
	target   image.Point
	title    string

	windows atomic.Int64
}

func NewRunner(det detector.Detector, open capture.Opener, display DisplayFactory, reporter Reporter, target image.Point, title string) *Runner {
	return &Runner{
		detector: det,
		open:     open,
		display:  display,
		reporter: reporter,
		target:   target,
		title:    title,
	}
}

// windowTitle names the window of the next job. Native window backends key
// windows by name, so every job after the first gets a numbered title.
func (r *Runner) windowTitle() string {
	n := r.windows.Add(1)
	if n == 1 {
		return r.title
	}
	return fmt.Sprintf("%s (%d)", r.title, n)
}

// Run dispatches req to the stream or single-image mode.
func (r *Runner) Run(ctx context.Context, req capture.Request, stats *Stats) error {
	if err := ctx.Err(); err != nil {
		return nil
	}
	if req.Kind == capture.KindImage {
		return r.RunImage(ctx, req.Path, stats)
	}
	return r.RunStream(ctx, req, stats)
}

// RunStream plays a camera or video source until it is exhausted, the user
// presses q, the window is closed or ctx is cancelled. The capture handle and
// the window are released on every exit path.
func (r *Runner) RunStream(ctx context.Context, req capture.Request, stats *Stats) error {
	logger := log.With("kind", req.Kind, "source", req.String())

	src, err := r.open(req)
	if err != nil {
		return r.fail(fmt.Errorf("%w: %s: %v", ErrSourceOpen, req, err))
	}
	defer src.Close()

	sink, err := r.display(r.windowTitle())
	if err != nil {
		return r.fail(fmt.Errorf("open window: %w", err))
	}
	defer sink.Close()

	logger.Info("detection started")
	for {
		if ctx.Err() != nil {
			logger.Info("detection cancelled")
			return nil
		}

		frame, err := src.Read()
		if errors.Is(err, io.EOF) {
			logger.Info("source exhausted", "frames", stats.Frames())
			return nil
		}
		if err != nil {
			return r.fail(fmt.Errorf("read frame from %s: %w", req, err))
		}

		frame = Resize(frame, r.target)

		start := time.Now()
		res, err := r.detector.Detect(ctx, frame)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return r.fail(fmt.Errorf("detect: %w", err))
		}
		stats.record(time.Since(start))

		if err := sink.Show(res.Plot()); err != nil {
			return r.fail(fmt.Errorf("show frame: %w", err))
		}

		if key, ok := sink.PollKey(); ok && isQuit(key) {
			logger.Info("detection stopped by user", "frames", stats.Frames())
			return nil
		}
	}
}

// RunImage runs one detection pass on a still image and keeps the window open
// until any key is pressed.
func (r *Runner) RunImage(ctx context.Context, path string, stats *Stats) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return r.fail(fmt.Errorf("%w: %s", ErrImageNotFound, path))
		}
		return r.fail(fmt.Errorf("%w: %s: %v", ErrImageDecode, path, err))
	}

	img, err := capture.DecodeFile(path)
	if err != nil {
		return r.fail(fmt.Errorf("%w: %s: %v", ErrImageDecode, path, err))
	}

	start := time.Now()
	res, err := r.detector.Detect(ctx, img)
	if err != nil {
		return r.fail(fmt.Errorf("detect: %w", err))
	}
	stats.record(time.Since(start))

	sink, err := r.display(r.windowTitle())
	if err != nil {
		return r.fail(fmt.Errorf("open window: %w", err))
	}
	defer sink.Close()

	if err := sink.Show(res.Plot()); err != nil {
		return r.fail(fmt.Errorf("show image: %w", err))
	}

	log.Info("image detection shown", "path", path, "detections", len(res.Detections))
	sink.WaitKey(ctx)
	return nil
}

func (r *Runner) fail(err error) error {
	log.Error("job failed", "err", err)
	if r.reporter != nil {
		r.reporter.ReportError(err)
	}
	return err
}

func isQuit(key rune) bool {
	return key == 'q' || key == 'Q' || key == KeyWindowClosed
}
