package ui

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/dialog"
)

// ShowFatal shows err in a window of its own and blocks until the user
// dismisses it, after which the app quits.
func ShowFatal(a fyne.App, title string, err error) {
	w, _ := newFatalWindow(a, title, err, a.Quit)
	w.ShowAndRun()
}

func newFatalWindow(a fyne.App, title string, err error, onDismiss func()) (fyne.Window, dialog.Dialog) {
	w := a.NewWindow(title)
	w.Resize(fyne.NewSize(400, 250))
	w.SetOnClosed(onDismiss)

	d := dialog.NewError(err, w)
	d.SetOnClosed(onDismiss)
	d.Show()

	return w, d
}
