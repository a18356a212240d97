package worker

import (
	"context"
	"io"
	"os"

	"mpiterm/internal/logging"
)

// SetupOptions configures the attach-setup role.
type SetupOptions struct {
	// Self is the executable re-invoked inside dtach in exec mode.
	Self string
	// Dtach is the dtach executable.
	Dtach  string
	PID    int
	Stdin  *os.File
	Stdout io.Writer
	Logger *logging.Logger
}

// DtachArgs builds the dtach argv that creates a session at socket and runs
// this binary in exec mode inside it.
func DtachArgs(socket, self string, inv Invocation) []string {
	exec := Invocation{Mode: ModeExec, ScopeDir: inv.ScopeDir, Command: inv.Command}
	args := []string{"-N", socket, self}
	return append(args, exec.Args()...)
}

func (options SetupOptions) dtach() string {
	if options.Dtach == "" {
		return "dtach"
	}
	return options.Dtach
}

// AttachSetup runs the attach-setup role and returns the exit status of the
// dtach session.
func AttachSetup(ctx context.Context, inv Invocation, options SetupOptions) (int, error) {
	return attachSetup(ctx, inv, options)
}
