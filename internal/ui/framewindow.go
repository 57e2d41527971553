package ui

import (
	"context"
	"image"
	"sync"
	"unicode"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"

	"yoloface/processing/job"
)

// FrameWindow is a fyne window that shows the annotated frames of one job
// and forwards key presses to it.
type FrameWindow struct {
	closeOnce  sync.Once
	closedOnce sync.Once

	win    fyne.Window
	canvas *canvas.Image

	keys   chan rune
	closed chan struct{}
}

var _ job.Sink = (*FrameWindow)(nil)

// NewWindowFactory returns a job.DisplayFactory opening windows in a.
func NewWindowFactory(a fyne.App, size fyne.Size) job.DisplayFactory {
	return func(title string) (job.Sink, error) {
		return OpenFrameWindow(a, title, size), nil
	}
}

func OpenFrameWindow(a fyne.App, title string, size fyne.Size) *FrameWindow {
	fw := &FrameWindow{
		keys:   make(chan rune, 1),
		closed: make(chan struct{}),
	}

	fyne.DoAndWait(func() {
		fw.win = a.NewWindow(title)

		fw.canvas = canvas.NewImageFromImage(nil)
		fw.canvas.FillMode = canvas.ImageFillContain
		fw.canvas.SetMinSize(fyne.NewSize(640, 360))

		fw.win.SetContent(fw.canvas)
		fw.win.Canvas().SetOnTypedKey(func(ev *fyne.KeyEvent) {
			fw.press(keyRune(ev.Name))
		})
		fw.win.SetOnClosed(fw.markClosed)

		fw.win.Resize(size)
		fw.win.Show()
	})

	return fw
}

// keyRune maps single-character key names to their lower-case rune and every
// other key to a space.
func keyRune(name fyne.KeyName) rune {
	r := []rune(string(name))
	if len(r) == 1 {
		return unicode.ToLower(r[0])
	}
	return ' '
}

func (fw *FrameWindow) press(r rune) {
	select {
	case fw.keys <- r:
	default:
	}
}

func (fw *FrameWindow) markClosed() {
	fw.closedOnce.Do(func() {
		close(fw.closed)
	})
}

func (fw *FrameWindow) Show(frame image.Image) error {
	select {
	case <-fw.closed:
		return nil
	default:
	}

	fyne.Do(func() {
		fw.canvas.Image = frame
		fw.canvas.Refresh()
	})
	return nil
}

func (fw *FrameWindow) PollKey() (rune, bool) {
	select {
	case r := <-fw.keys:
		return r, true
	case <-fw.closed:
		return job.KeyWindowClosed, true
	default:
		return 0, false
	}
}

func (fw *FrameWindow) WaitKey(ctx context.Context) rune {
	select {
	case r := <-fw.keys:
		return r
	case <-fw.closed:
		return job.KeyWindowClosed
	case <-ctx.Done():
		return job.KeyWindowClosed
	}
}

func (fw *FrameWindow) Close() error {
	fw.closeOnce.Do(func() {
		fw.markClosed()
		fyne.Do(func() {
			fw.win.Close()
		})
	})
	return nil
}
