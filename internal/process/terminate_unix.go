//go:build !windows

package process

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"time"
)

// GroupID returns the process group of pid, or 0 when it cannot be read.
func GroupID(pid int) int {
	if pid <= 0 {
		return 0
	}
	pgid, err := syscall.Getpgid(pid)
	if err != nil {
		return 0
	}
	return pgid
}

func terminate(ctx context.Context, entry Entry, grace time.Duration) error {
	if exited(entry) {
		return ErrProcessNotFound
	}
	termErr := signal(entry, syscall.SIGTERM)
	if awaitExit(ctx, entry, grace) == nil {
		return termErr
	}
	killErr := signal(entry, syscall.SIGKILL)
	if err := awaitExit(ctx, entry, grace); err != nil {
		return errors.Join(termErr, killErr, fmt.Errorf("%s (pid %d) still running after SIGKILL: %w", entry.Name, entry.PID, err))
	}
	return errors.Join(termErr, killErr)
}

// signal targets the group when known so workers forked by the launcher go
// down with it.
func signal(entry Entry, sig syscall.Signal) error {
	target := entry.PID
	if entry.PGID > 0 {
		target = -entry.PGID
	}
	err := syscall.Kill(target, sig)
	if err == nil || errors.Is(err, syscall.ESRCH) {
		return nil
	}
	return fmt.Errorf("signal %s (pid %d): %w", entry.Name, entry.PID, err)
}

func kill(pid int) error {
	if pid <= 0 {
		return nil
	}
	err := syscall.Kill(pid, syscall.SIGKILL)
	if errors.Is(err, syscall.ESRCH) {
		return ErrProcessNotFound
	}
	return err
}

func alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}
