// Package cleanup holds the run-wide list of teardown actions.
//
// Actions are appended as resources are acquired and executed once, in
// registration order, by whichever exit path gets there first: normal
// completion, a termination signal, or a recovered panic.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"mpiterm/internal/logging"
)

const lateActionTimeout = 10 * time.Second

// Action tears down one resource. It must tolerate the resource being already
// gone or never fully initialized.
type Action func(context.Context) error

type entry struct {
	name   string
	action Action
}

// Registry runs registered actions at most once.
type Registry struct {
	logger *logging.Logger

	mu      sync.Mutex
	entries []entry

	once sync.Once
	done chan struct{}
}

func NewRegistry(logger *logging.Logger) *Registry {
	return &Registry{
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Add appends an action. An action added once teardown has started runs
// immediately instead, so a resource acquired during shutdown is not leaked.
func (r *Registry) Add(name string, action Action) {
	if r == nil || action == nil {
		return
	}
	item := entry{name: name, action: action}
	r.mu.Lock()
	select {
	case <-r.done:
		r.mu.Unlock()
		r.runLate(item)
		return
	default:
	}
	r.entries = append(r.entries, item)
	r.mu.Unlock()
}

func (r *Registry) runLate(item entry) {
	if r.logger != nil {
		r.logger.Warn("cleanup action registered after teardown, running now", map[string]string{
			"action": item.name,
		})
	}
	ctx, cancel := context.WithTimeout(context.Background(), lateActionTimeout)
	defer cancel()
	if err := runAction(ctx, item); err != nil && r.logger != nil {
		r.logger.Warn("cleanup action failed", map[string]string{
			"action": item.name,
			"error":  err.Error(),
		})
	}
}

// Run executes every action in order. Concurrent callers block until the
// first run finishes; only the first caller receives the joined error.
func (r *Registry) Run(ctx context.Context) error {
	if r == nil {
		return nil
	}
	var runErr error
	r.once.Do(func() {
		r.mu.Lock()
		close(r.done)
		entries := append([]entry(nil), r.entries...)
		r.mu.Unlock()

		for _, item := range entries {
			if r.logger != nil {
				r.logger.Debug("cleanup action starting", map[string]string{
					"action": item.name,
				})
			}
			if err := runAction(ctx, item); err != nil {
				runErr = errors.Join(runErr, err)
				if r.logger != nil {
					r.logger.Warn("cleanup action failed", map[string]string{
						"action": item.name,
						"error":  err.Error(),
					})
				}
			}
		}
	})
	return runErr
}

// Done is closed once Run has started.
func (r *Registry) Done() <-chan struct{} {
	return r.done
}

func runAction(ctx context.Context, item entry) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("%s: panic: %v", item.name, recovered)
		}
	}()
	if err := item.action(ctx); err != nil {
		return fmt.Errorf("%s: %w", item.name, err)
	}
	return nil
}

// BestEffort runs each step and joins their errors; a failing step never
// prevents the following ones from running.
func BestEffort(steps ...Action) Action {
	return func(ctx context.Context) error {
		var joined error
		for _, step := range steps {
			if step == nil {
				continue
			}
			if err := runAction(ctx, entry{name: "step", action: step}); err != nil {
				joined = errors.Join(joined, err)
			}
		}
		return joined
	}
}
