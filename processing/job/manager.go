package job

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"yoloface/internal/log"
	"yoloface/processing/capture"
)

// ErrShutdown is the result of a job started after Shutdown.
var ErrShutdown = errors.New("job manager is shut down")

// JobRunner executes one job to completion.
type JobRunner interface {
	Run(ctx context.Context, req capture.Request, stats *Stats) error
}

// Stats are updated by the running job and read by the UI.
type Stats struct {
	mu      sync.RWMutex
	frames  uint64
	latency time.Duration
}

func (s *Stats) record(latency time.Duration) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames++
	s.latency = latency
}

// Frames is the number of frames run through the detector so far.
func (s *Stats) Frames() uint64 {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frames
}

// Latency is the detector time of the last frame.
func (s *Stats) Latency() time.Duration {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latency
}

// Handle tracks one started job.
type Handle struct {
	ID      uuid.UUID
	Request capture.Request
	Started time.Time

	stats  Stats
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Cancel asks the job to stop at its next loop iteration.
func (h *Handle) Cancel() { h.cancel() }

func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the job has finished and returns its error.
func (h *Handle) Wait() error {
	<-h.done
	return h.err
}

func (h *Handle) Stats() *Stats { return &h.stats }

// Manager starts jobs on their own goroutines and keeps track of the ones
// still running.
type Manager struct {
	runner JobRunner

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	jobs map[uuid.UUID]*Handle
	wg   sync.WaitGroup
}

func NewManager(runner JobRunner) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		runner: runner,
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(map[uuid.UUID]*Handle),
	}
}

// Start runs req in the background and returns immediately. Once Shutdown
// has been called the returned handle is already done with ErrShutdown.
func (m *Manager) Start(req capture.Request) *Handle {
	ctx, cancel := context.WithCancel(m.ctx)
	h := &Handle{
		ID:      uuid.New(),
		Request: req,
		Started: time.Now(),
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	m.mu.Lock()
	if m.ctx.Err() != nil {
		m.mu.Unlock()
		cancel()
		h.err = ErrShutdown
		close(h.done)
		log.Warn("job refused after shutdown", "source", req.String())
		return h
	}
	m.jobs[h.ID] = h
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		defer close(h.done)
		defer cancel()
		defer m.remove(h.ID)

		logger := log.With("job_id", h.ID, "kind", req.Kind, "source", req.String())
		logger.Info("job started")
		h.err = m.runner.Run(ctx, req, &h.stats)
		logger.Info("job finished", "frames", h.stats.Frames(), "err", h.err)
	}()

	return h
}

func (m *Manager) remove(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, id)
}

// Active returns the running jobs, oldest first.
func (m *Manager) Active() []*Handle {
	m.mu.Lock()
	out := make([]*Handle, 0, len(m.jobs))
	for _, h := range m.jobs {
		out = append(out, h)
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Started.Before(out[j].Started)
	})
	return out
}

// Shutdown cancels every job and waits for them to return, or for ctx to
// end, whichever comes first.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.cancel()
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		log.Warn("jobs still running at shutdown", "count", len(m.Active()))
		return ctx.Err()
	}
}
