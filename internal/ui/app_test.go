package ui

import (
	"context"
	"sync"
	"testing"
	"time"

	"fyne.io/fyne/v2/test"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yoloface/internal/config"
	"yoloface/processing/capture"
	"yoloface/processing/job"
)

type fakeLauncher struct {
	mu       sync.Mutex
	started  []capture.Request
	handles  []*job.Handle
	shutdown int
}

func (l *fakeLauncher) Start(req capture.Request) *job.Handle {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.started = append(l.started, req)
	h := &job.Handle{ID: uuid.New(), Request: req, Started: time.Now()}
	l.handles = append(l.handles, h)
	return h
}

func (l *fakeLauncher) Active() []*job.Handle {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*job.Handle(nil), l.handles...)
}

func (l *fakeLauncher) Shutdown(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.shutdown++
	return nil
}

func (l *fakeLauncher) requests() []capture.Request {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]capture.Request(nil), l.started...)
}

func newTestShell(t *testing.T) (*Shell, *fakeLauncher) {
	t.Helper()

	a := test.NewApp()
	t.Cleanup(a.Quit)

	s := NewShell(a, config.NewDefaultConfig())
	l := &fakeLauncher{}
	s.SetLauncher(l)
	return s, l
}

func TestShell_ChooseVideoStartsJob(t *testing.T) {
	s, l := newTestShell(t)

	var kinds []capture.Kind
	s.pick = func(kind capture.Kind, onChosen func(string)) {
		kinds = append(kinds, kind)
		onChosen("/videos/clip.mp4")
	}

	test.Tap(s.videoBtn)

	assert.Equal(t, []capture.Kind{capture.KindVideo}, kinds)
	require.Len(t, l.requests(), 1)
	assert.Equal(t, capture.VideoRequest("/videos/clip.mp4"), l.requests()[0])
}

func TestShell_ChooseImageStartsJob(t *testing.T) {
	s, l := newTestShell(t)

	var kinds []capture.Kind
	s.pick = func(kind capture.Kind, onChosen func(string)) {
		kinds = append(kinds, kind)
		onChosen("/images/face.jpg")
	}

	test.Tap(s.imageBtn)

	assert.Equal(t, []capture.Kind{capture.KindImage}, kinds)
	require.Len(t, l.requests(), 1)
	assert.Equal(t, capture.ImageRequest("/images/face.jpg"), l.requests()[0])
}

func TestShell_CancelledPickStartsNothing(t *testing.T) {
	s, l := newTestShell(t)
	s.pick = func(capture.Kind, func(string)) {}

	test.Tap(s.videoBtn)
	test.Tap(s.imageBtn)

	assert.Empty(t, l.requests())
}

func TestShell_UseCameraFollowsInput(t *testing.T) {
	s, l := newTestShell(t)

	test.Tap(s.cameraBtn)
	s.cameraInput.SetText("2")
	test.Tap(s.cameraBtn)

	assert.Equal(t, []capture.Request{
		capture.CameraRequest(0),
		capture.CameraRequest(2),
	}, l.requests())
	assert.Equal(t, 2, s.config.GetCameraIndex())
}

func TestShell_InvalidCameraIndexKeepsConfig(t *testing.T) {
	s, _ := newTestShell(t)

	s.cameraInput.SetText("-3")

	assert.Equal(t, 0, s.config.GetCameraIndex())
	assert.NotEmpty(t, s.cameraInput.ErrorText())
}

func TestShell_Status(t *testing.T) {
	s, _ := newTestShell(t)

	s.refreshStatus()
	assert.Equal(t, "No active detections", s.statusLabel.Text)

	test.Tap(s.cameraBtn)
	assert.Equal(t, "Active: 1 | camera 0: 0 frames, 0 ms", s.statusLabel.Text)
}

func TestShell_StatusWithoutLauncher(t *testing.T) {
	a := test.NewApp()
	t.Cleanup(a.Quit)

	s := NewShell(a, config.NewDefaultConfig())
	s.refreshStatus()

	assert.Equal(t, "No active detections", s.statusLabel.Text)
}

func TestKeyRune(t *testing.T) {
	assert.Equal(t, 'q', keyRune("Q"))
	assert.Equal(t, '1', keyRune("1"))
	assert.Equal(t, ' ', keyRune("Escape"))
	assert.Equal(t, ' ', keyRune("Space"))
}
