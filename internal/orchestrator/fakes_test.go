package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"mpiterm/internal/launcher"
	"mpiterm/internal/rendezvous"
	"mpiterm/internal/surface"
)

type fakeJob struct {
	pid  int
	done chan struct{}
	once sync.Once
	err  error
	code int
}

func newFakeJob() *fakeJob {
	return &fakeJob{done: make(chan struct{})}
}

func (j *fakeJob) PID() int              { return j.pid }
func (j *fakeJob) Done() <-chan struct{} { return j.done }
func (j *fakeJob) Err() error            { return j.err }

func (j *fakeJob) ExitCode() int {
	select {
	case <-j.done:
		return j.code
	default:
		return -1
	}
}

func (j *fakeJob) exit(err error) {
	j.once.Do(func() {
		j.err = err
		close(j.done)
	})
}

type fakeSurface struct {
	set   *fakeSet
	index int
}

func (s fakeSurface) Inject(text string) error {
	return s.set.record(fmt.Sprintf("inject %d %s", s.index, text), s.set.injectErr)
}

func (s fakeSurface) Submit() error {
	err := s.set.record(fmt.Sprintf("submit %d", s.index), nil)
	s.set.mu.Lock()
	s.set.submits++
	all := s.set.submits == s.set.n
	s.set.mu.Unlock()
	if all && s.set.onReleased != nil {
		s.set.onReleased()
	}
	return err
}

type fakeSet struct {
	n          int
	injectErr  error
	onReleased func()

	mu      sync.Mutex
	events  []string
	submits int
	closed  int
}

func (s *fakeSet) record(event string, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return err
}

func (s *fakeSet) Len() int { return s.n }

func (s *fakeSet) Surface(i int) surface.Surface { return fakeSurface{set: s, index: i} }

func (s *fakeSet) Close() error {
	s.mu.Lock()
	s.closed++
	s.mu.Unlock()
	return nil
}

func (s *fakeSet) snapshot() ([]string, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...), s.closed
}

type fakePool struct {
	set *fakeSet
	err error
	// onAllocate runs before the set is handed back.
	onAllocate func()
}

func (p *fakePool) Allocate(_ context.Context, n int) (surface.Set, error) {
	if p.err != nil {
		return nil, p.err
	}
	if p.onAllocate != nil {
		p.onAllocate()
	}
	p.set.n = n
	return p.set, nil
}

// fakeWaiter returns one attach point per worker named after dir, unless
// block is set, in which case it waits for cancellation.
type fakeWaiter struct {
	block bool
	err   error
	panic bool

	mu   sync.Mutex
	dirs []string
}

func (w *fakeWaiter) Wait(ctx context.Context, dir string, want int) ([]rendezvous.AttachPoint, error) {
	w.mu.Lock()
	w.dirs = append(w.dirs, dir)
	w.mu.Unlock()
	if w.panic {
		panic("waiter exploded")
	}
	if w.err != nil {
		return nil, w.err
	}
	if w.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	points := make([]rendezvous.AttachPoint, want)
	for i := range points {
		points[i] = rendezvous.AttachPoint{Index: i, Path: filepath.Join(dir, fmt.Sprintf("w%d", i), "dtach.socket")}
	}
	return points, nil
}

type spawnRecorder struct {
	job   *fakeJob
	err   error
	specs []launcher.Spec
}

func (r *spawnRecorder) spawn(_ context.Context, spec launcher.Spec) (Job, error) {
	r.specs = append(r.specs, spec)
	if r.err != nil {
		return nil, r.err
	}
	return r.job, nil
}

type killRecorder struct {
	mu    sync.Mutex
	calls [][]int
}

func (k *killRecorder) kill(pids []int) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.calls = append(k.calls, append([]int(nil), pids...))
	if len(pids) > 0 && pids[0] < 0 {
		return errors.New("kill failed")
	}
	return nil
}
