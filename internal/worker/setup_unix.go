//go:build !windows

package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/creack/pty"
	"golang.org/x/term"

	"mpiterm/internal/scope"
)

const outputDrainTimeout = 200 * time.Millisecond

// attachSetup runs dtach under a fresh pseudo-terminal; some MPI launchers
// only keep a rank alive when its stdio is a terminal.
func attachSetup(ctx context.Context, inv Invocation, options SetupOptions) (int, error) {
	pid := options.PID
	if pid <= 0 {
		pid = os.Getpid()
	}
	socket, err := scope.NewWorkerDir(inv.ScopeDir, pid)
	if err != nil {
		return 1, err
	}

	cmd := exec.CommandContext(ctx, options.dtach(), DtachArgs(socket, options.Self, inv)...)
	ptmx, err := pty.Start(cmd)
	if err != nil {
		return 1, fmt.Errorf("start dtach: %w", err)
	}
	defer ptmx.Close()
	if options.Logger != nil {
		options.Logger.Debug("worker session started", map[string]string{
			"socket": socket,
			"pid":    strconv.Itoa(cmd.Process.Pid),
		})
	}

	stdin := options.Stdin
	if stdin != nil {
		if term.IsTerminal(int(stdin.Fd())) {
			_ = pty.InheritSize(stdin, ptmx)
			if state, err := term.MakeRaw(int(stdin.Fd())); err == nil {
				defer func() { _ = term.Restore(int(stdin.Fd()), state) }()
			}
		}
		go func() {
			_, _ = io.Copy(ptmx, stdin)
		}()
	}

	stdout := options.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	drained := make(chan struct{})
	go func() {
		_, _ = io.Copy(stdout, ptmx)
		close(drained)
	}()

	waitErr := cmd.Wait()
	select {
	case <-drained:
	case <-time.After(outputDrainTimeout):
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return 1, fmt.Errorf("wait for dtach: %w", waitErr)
	}
	return 0, nil
}
