package job

import (
	"context"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yoloface/processing/capture"
)

type blockingRunner struct {
	started chan capture.Request
	ignore  bool
	release chan struct{}
}

func (r *blockingRunner) Run(ctx context.Context, req capture.Request, stats *Stats) error {
	r.started <- req
	if r.ignore {
		<-r.release
		return nil
	}
	<-ctx.Done()
	return nil
}

func TestManager_StartAndWait(t *testing.T) {
	src := &fakeSource{frames: frames(4, 640, 360)}
	f := newFixture(map[string]*fakeSource{"clip.mp4": src})
	m := NewManager(f.runner)

	h := m.Start(capture.VideoRequest("clip.mp4"))
	require.NoError(t, h.Wait())

	assert.Equal(t, capture.KindVideo, h.Request.Kind)
	assert.Equal(t, uint64(4), h.Stats().Frames())
	assert.Empty(t, m.Active())

	select {
	case <-h.Done():
	default:
		t.Fatal("done channel must be closed after Wait")
	}
}

func TestManager_StartReturnsImmediately(t *testing.T) {
	r := &blockingRunner{started: make(chan capture.Request, 2)}
	m := NewManager(r)

	a := m.Start(capture.CameraRequest(0))
	b := m.Start(capture.VideoRequest("clip.mp4"))
	<-r.started
	<-r.started

	assert.NotEqual(t, a.ID, b.ID)
	assert.Len(t, m.Active(), 2)

	a.Cancel()
	require.NoError(t, a.Wait())
	assert.Len(t, m.Active(), 1)
	assert.Equal(t, b.ID, m.Active()[0].ID)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))
	assert.Empty(t, m.Active())
}

func TestManager_ShutdownTimesOut(t *testing.T) {
	r := &blockingRunner{started: make(chan capture.Request, 1), ignore: true, release: make(chan struct{})}
	m := NewManager(r)
	h := m.Start(capture.CameraRequest(0))
	<-r.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, m.Shutdown(ctx), context.DeadlineExceeded)

	close(r.release)
	require.NoError(t, h.Wait())
}

func TestManager_ConcurrentJobsKeepTheirOrder(t *testing.T) {
	const n = 50
	camera := &fakeSource{frames: frames(n, 64, 48)}
	video := &fakeSource{frames: frames(n, 64, 48)}

	f := newFixture(map[string]*fakeSource{"camera 0": camera, "clip.mp4": video})
	f.runner.target = image.Pt(64, 48)

	var mu sync.Mutex
	running := 0
	overlapped := false
	f.det.detect = func(context.Context, image.Image) {
		mu.Lock()
		running++
		if running > 1 {
			overlapped = true
		}
		mu.Unlock()
		time.Sleep(time.Millisecond)
		mu.Lock()
		running--
		mu.Unlock()
	}

	m := NewManager(f.runner)
	a := m.Start(capture.CameraRequest(0))
	b := m.Start(capture.VideoRequest("clip.mp4"))
	require.NoError(t, a.Wait())
	require.NoError(t, b.Wait())

	sinks := f.display.opened()
	require.Len(t, sinks, 2)
	for _, s := range sinks {
		require.Len(t, s.shown, n)
		for i, frame := range s.shown {
			assert.Equal(t, i+1, frameNumber(frame))
		}
		assert.Equal(t, 1, s.closed)
	}
	assert.Equal(t, 1, camera.closeCount())
	assert.Equal(t, 1, video.closeCount())
	assert.True(t, overlapped, "jobs should run concurrently")
}

func TestManager_RefusesJobsAfterShutdown(t *testing.T) {
	r := &blockingRunner{started: make(chan capture.Request, 1)}
	m := NewManager(r)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))

	h := m.Start(capture.CameraRequest(0))
	assert.ErrorIs(t, h.Wait(), ErrShutdown)
	assert.Empty(t, m.Active())
	assert.Empty(t, r.started, "runner must not be called")
}

func TestStats_Nil(t *testing.T) {
	var s *Stats
	s.record(time.Second)
	assert.Zero(t, s.Frames())
	assert.Zero(t, s.Latency())
}
