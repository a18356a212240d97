// Package rendezvous waits until every worker has published its attach-point.
//
// The workers are independent OS processes with no channel back to the
// orchestrator, so readiness is observed through the scope directory. Callers
// depend only on Waiter; the filesystem strategy can be swapped without
// touching them.
package rendezvous

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"mpiterm/internal/logging"
	"mpiterm/internal/scope"
)

const DefaultInterval = 200 * time.Millisecond

const (
	KindPoll   = "poll"
	KindNotify = "notify"
)

var (
	ErrTimeout      = errors.New("rendezvous timed out")
	ErrInvalidCount = errors.New("worker count must be at least 1")
)

// AttachPoint is one worker's dtach socket. Index is its position after
// sorting all discovered paths.
type AttachPoint struct {
	Index int
	Path  string
}

// Progress observes each attempt.
type Progress func(found, want int)

// Waiter blocks until exactly want attach-points exist under dir.
type Waiter interface {
	Wait(ctx context.Context, dir string, want int) ([]AttachPoint, error)
}

// Options configures both waiter implementations. A zero Timeout waits
// forever.
type Options struct {
	Interval time.Duration
	Timeout  time.Duration
	Progress Progress
	Logger   *logging.Logger
}

// New returns the waiter registered under kind.
func New(kind string, options Options) (Waiter, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", KindPoll:
		return NewPoller(options), nil
	case KindNotify:
		return NewNotifier(options), nil
	default:
		return nil, fmt.Errorf("unknown readiness strategy %q", kind)
	}
}

func (options Options) interval() time.Duration {
	if options.Interval <= 0 {
		return DefaultInterval
	}
	return options.Interval
}

// Discover lists the attach-points currently present under dir in sorted
// order. A missing dir is an error.
func Discover(dir string) ([]string, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, err
	}
	paths, err := filepath.Glob(scope.Pattern(dir))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// attempt runs one discovery pass and reports progress. It returns the
// attach-points once the count equals want.
func attempt(dir string, want int, options Options) ([]AttachPoint, bool, error) {
	paths, err := Discover(dir)
	if err != nil {
		return nil, false, fmt.Errorf("discover attach points: %w", err)
	}
	if options.Progress != nil {
		options.Progress(len(paths), want)
	}
	if options.Logger != nil {
		options.Logger.Debug("rendezvous attempt", map[string]string{
			"found": fmt.Sprint(len(paths)),
			"want":  fmt.Sprint(want),
		})
	}
	if len(paths) != want {
		return nil, false, nil
	}
	points := make([]AttachPoint, want)
	for i := 0; i < want; i++ {
		points[i] = AttachPoint{Index: i, Path: paths[i]}
	}
	return points, true, nil
}

func timeoutError(dir string, want int, options Options) error {
	found := 0
	if paths, err := Discover(dir); err == nil {
		found = len(paths)
	}
	return fmt.Errorf("%w after %s: found %d of %d", ErrTimeout, options.Timeout, found, want)
}

func deadlineChannel(timeout time.Duration) (<-chan time.Time, func()) {
	if timeout <= 0 {
		return nil, func() {}
	}
	timer := time.NewTimer(timeout)
	return timer.C, func() { timer.Stop() }
}
