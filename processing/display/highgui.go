// Package display shows job frames in an OpenCV highgui window.
package display

import (
	"context"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"yoloface/processing/job"
)

const (
	pollDelay = 1
	waitDelay = 50
)

type Window struct {
	closeOnce sync.Once

	win *gocv.Window
}

var _ job.Sink = (*Window)(nil)

// Open satisfies job.DisplayFactory. highgui identifies windows by name, so
// title must be unique among open windows; job.Runner numbers them.
func Open(title string) (job.Sink, error) {
	return &Window{win: gocv.NewWindow(title)}, nil
}

func (w *Window) Show(frame image.Image) error {
	mat, err := gocv.ImageToMatRGB(frame)
	if err != nil {
		return err
	}
	defer mat.Close()

	return w.win.IMShow(mat)
}

// closedByUser reports whether the native window was closed from its title
// bar. IsOpen only tracks our own Close.
func (w *Window) closedByUser() bool {
	return !w.win.IsOpen() || w.win.GetWindowProperty(gocv.WindowPropertyVisible) < 1
}

func (w *Window) PollKey() (rune, bool) {
	if w.closedByUser() {
		return job.KeyWindowClosed, true
	}
	key := w.win.WaitKey(pollDelay)
	if key < 0 {
		return 0, false
	}
	return rune(key & 0xFF), true
}

func (w *Window) WaitKey(ctx context.Context) rune {
	for ctx.Err() == nil {
		if w.closedByUser() {
			return job.KeyWindowClosed
		}
		if key := w.win.WaitKey(waitDelay); key >= 0 {
			return rune(key & 0xFF)
		}
	}
	return job.KeyWindowClosed
}

func (w *Window) Close() error {
	var err error
	w.closeOnce.Do(func() {
		err = w.win.Close()
	})
	return err
}
