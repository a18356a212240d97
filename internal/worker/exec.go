package worker

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// ReleasePrompt is printed in every worker surface while it waits.
const ReleasePrompt = "Waiting for terminal windows to all be connected..."

// Execer replaces the current process image. LookPath resolves the command
// name the same way a shell would.
type Execer struct {
	LookPath func(file string) (string, error)
	Exec     func(argv0 string, argv []string, envv []string) error
}

// DefaultExecer uses the operating system's exec.
func DefaultExecer() Execer {
	return Execer{LookPath: exec.LookPath, Exec: systemExec}
}

// Exec blocks until one newline arrives on in, then replaces the process with
// the user command. On success it does not return.
func Exec(inv Invocation, in io.Reader, out io.Writer, execer Execer) error {
	if len(inv.Command) == 0 {
		return ErrMissingCommand
	}
	fmt.Fprintln(out, ReleasePrompt)
	if err := waitForNewline(in); err != nil {
		return fmt.Errorf("wait for release: %w", err)
	}

	lookPath := execer.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	path, err := lookPath(inv.Command[0])
	if err != nil {
		return fmt.Errorf("resolve %s: %w", inv.Command[0], err)
	}
	if execer.Exec == nil {
		return errors.New("exec unavailable")
	}
	return execer.Exec(path, inv.Command, os.Environ())
}

// waitForNewline reads byte by byte so nothing past the newline is consumed
// before the user command inherits the descriptor.
func waitForNewline(in io.Reader) error {
	buf := make([]byte, 1)
	for {
		n, err := in.Read(buf)
		if n == 1 && buf[0] == '\n' {
			return nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return io.ErrUnexpectedEOF
			}
			return err
		}
	}
}
