package ui

import (
	"errors"
	"testing"

	"fyne.io/fyne/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFatalWindow_QuitsOnDismiss(t *testing.T) {
	a := test.NewApp()
	t.Cleanup(a.Quit)

	dismissed := 0
	w, d := newFatalWindow(a, "Model Not Found", errors.New("no trained model"), func() {
		dismissed++
	})

	assert.Equal(t, "Model Not Found", w.Title())
	require.NotNil(t, w.Canvas().Overlays().Top(), "error dialog must be on screen")
	assert.Zero(t, dismissed)

	d.Hide()
	assert.Equal(t, 1, dismissed)
}
