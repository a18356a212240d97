package rendezvous

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Notifier re-evaluates on filesystem events in the scope directory and its
// worker subdirectories. The interval ticker stays as a fallback for events
// the platform drops.
type Notifier struct {
	options Options
}

func NewNotifier(options Options) *Notifier {
	return &Notifier{options: options}
}

func (n *Notifier) Wait(ctx context.Context, dir string, want int) ([]AttachPoint, error) {
	if want < 1 {
		return nil, ErrInvalidCount
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	deadline, stop := deadlineChannel(n.options.Timeout)
	defer stop()
	ticker := time.NewTicker(n.options.interval())
	defer ticker.Stop()

	watched := map[string]bool{}
	events := watcher.Events
	errs := watcher.Errors
	for {
		n.watchWorkerDirs(watcher, dir, watched)
		points, ok, err := attempt(dir, want, n.options)
		if err != nil {
			return nil, err
		}
		if ok {
			return points, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline:
			return nil, timeoutError(dir, want, n.options)
		case <-ticker.C:
		case _, open := <-events:
			if !open {
				events = nil
			}
		case err, open := <-errs:
			if !open {
				errs = nil
				continue
			}
			if n.options.Logger != nil && err != nil {
				n.options.Logger.Warn("scope watcher error", map[string]string{
					"error": err.Error(),
				})
			}
		}
	}
}

// watchWorkerDirs adds a watch for every worker subdirectory not seen yet, so
// socket creation inside it wakes the loop.
func (n *Notifier) watchWorkerDirs(watcher *fsnotify.Watcher, dir string, watched map[string]bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if watched[path] {
			continue
		}
		if err := watcher.Add(path); err != nil {
			if n.options.Logger != nil {
				n.options.Logger.Debug("watch worker dir failed", map[string]string{
					"path":  path,
					"error": err.Error(),
				})
			}
			continue
		}
		watched[path] = true
	}
}
