//go:build windows

package process

import (
	"context"
	"os"
	"time"
)

func GroupID(pid int) int {
	return 0
}

// Windows has no SIGTERM; the process is killed outright.
func terminate(ctx context.Context, entry Entry, grace time.Duration) error {
	if entry.Exited != nil && exited(entry) {
		return ErrProcessNotFound
	}
	if err := kill(entry.PID); err != nil {
		return err
	}
	return awaitExit(ctx, entry, grace)
}

func kill(pid int) error {
	if pid <= 0 {
		return nil
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return ErrProcessNotFound
	}
	return proc.Kill()
}

func alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	_, err := os.FindProcess(pid)
	return err == nil
}
