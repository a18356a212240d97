// Package process stops what a run started: the launcher's process group
// and every descendant captured after rendezvous.
package process

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// DefaultGrace is how long a process gets between SIGTERM and SIGKILL.
const DefaultGrace = 3 * time.Second

const pollInterval = 50 * time.Millisecond

var ErrProcessNotFound = errors.New("process not running")

// Entry is a process to stop on teardown. When PGID is set the whole group is
// signalled. Exited, when set, reports the process has been reaped by its
// owner (typically the goroutine blocked in exec.Cmd.Wait); otherwise
// liveness is probed with signal 0.
type Entry struct {
	PID    int
	PGID   int
	Name   string
	Exited <-chan struct{}
}

// Registry tracks processes started by this run.
type Registry struct {
	grace time.Duration

	mu      sync.Mutex
	entries map[int]Entry
}

func NewRegistry() *Registry {
	return NewRegistryWithGrace(DefaultGrace)
}

func NewRegistryWithGrace(grace time.Duration) *Registry {
	if grace <= 0 {
		grace = DefaultGrace
	}
	return &Registry{grace: grace, entries: make(map[int]Entry)}
}

// Track adds entry. Non-positive pids are ignored.
func (r *Registry) Track(entry Entry) {
	if r == nil || entry.PID <= 0 {
		return
	}
	r.mu.Lock()
	r.entries[entry.PID] = entry
	r.mu.Unlock()
}

// Forget drops pid without signalling it, for processes that exited on
// their own.
func (r *Registry) Forget(pid int) {
	if r == nil {
		return
	}
	r.mu.Lock()
	delete(r.entries, pid)
	r.mu.Unlock()
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// StopAll terminates every tracked process, escalating from SIGTERM to
// SIGKILL after the grace period, and forgets them all. Processes that are
// already gone are not an error.
func (r *Registry) StopAll(ctx context.Context) error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	entries := make([]Entry, 0, len(r.entries))
	for _, entry := range r.entries {
		entries = append(entries, entry)
	}
	r.entries = make(map[int]Entry)
	r.mu.Unlock()
	sort.Slice(entries, func(i, j int) bool { return entries[i].PID < entries[j].PID })

	var stopErr error
	for _, entry := range entries {
		if err := terminate(ctx, entry, r.grace); err != nil && !errors.Is(err, ErrProcessNotFound) {
			stopErr = errors.Join(stopErr, err)
		}
	}
	return stopErr
}

// KillAll sends SIGKILL to each pid without waiting. Missing processes are
// skipped.
func KillAll(pids []int) error {
	var killErr error
	for _, pid := range pids {
		if err := kill(pid); err != nil && !errors.Is(err, ErrProcessNotFound) {
			killErr = errors.Join(killErr, err)
		}
	}
	return killErr
}

// awaitExit returns nil once entry has exited, or an error when grace runs
// out or ctx ends first.
func awaitExit(ctx context.Context, entry Entry, grace time.Duration) error {
	timer := time.NewTimer(grace)
	defer timer.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		if entry.Exited != nil {
			select {
			case <-entry.Exited:
				return nil
			default:
			}
		} else if !alive(entry.PID) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return context.DeadlineExceeded
		case <-entry.Exited:
			return nil
		case <-ticker.C:
		}
	}
}

func exited(entry Entry) bool {
	if entry.Exited != nil {
		select {
		case <-entry.Exited:
			return true
		default:
			return false
		}
	}
	return !alive(entry.PID)
}
