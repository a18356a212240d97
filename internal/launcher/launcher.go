// Package launcher starts the parallel job that fans out into the workers.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	shellwords "github.com/mattn/go-shellwords"

	"mpiterm/internal/worker"
)

// DefaultLauncher is used when no launcher is configured.
const DefaultLauncher = "mpiexec"

var (
	ErrLauncherNotFound = errors.New("launcher not found")
	ErrInvalidSpec      = errors.New("invalid launch spec")
)

// Spec describes one job launch.
type Spec struct {
	WorkerCount int
	Command     []string
	ScopeDir    string
}

// Spawner starts jobs through an external launcher such as mpiexec.
type Spawner struct {
	// Launcher is the argv prefix, for example ["mpiexec"] or
	// ["srun", "--pty"].
	Launcher []string
	// Self is this executable, re-invoked by every worker.
	Self   string
	Stdout io.Writer
	Stderr io.Writer
}

// ParseLauncher splits a shell-words launcher string. An empty string selects
// DefaultLauncher.
func ParseLauncher(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return []string{DefaultLauncher}, nil
	}
	words, err := shellwords.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse launcher %q: %w", raw, err)
	}
	if len(words) == 0 {
		return []string{DefaultLauncher}, nil
	}
	return words, nil
}

// Args renders the launcher argv for spec, without the launcher executable.
func (s *Spawner) Args(spec Spec) []string {
	launcher := s.launcher()
	inv := worker.Invocation{Mode: worker.ModeAttachSetup, ScopeDir: spec.ScopeDir, Command: spec.Command}
	args := append([]string(nil), launcher[1:]...)
	args = append(args, "-n", strconv.Itoa(spec.WorkerCount), s.Self)
	return append(args, inv.Args()...)
}

// Spawn starts the job. The job gets its own process group so teardown can
// signal the whole tree and a terminal interrupt reaches only this process.
func (s *Spawner) Spawn(ctx context.Context, spec Spec) (*Job, error) {
	if spec.WorkerCount < 1 || len(spec.Command) == 0 || spec.ScopeDir == "" {
		return nil, ErrInvalidSpec
	}
	if s.Self == "" {
		return nil, fmt.Errorf("%w: executable path is required", ErrInvalidSpec)
	}
	launcher := s.launcher()
	path, err := exec.LookPath(launcher[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLauncherNotFound, launcher[0], err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cmd := exec.Command(path, s.Args(spec)...)
	cmd.Stdin = nil
	cmd.Stdout = s.Stdout
	cmd.Stderr = s.Stderr
	setProcessGroup(cmd)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", launcher[0], err)
	}

	job := &Job{cmd: cmd, done: make(chan struct{})}
	go job.reap()
	return job, nil
}

func (s *Spawner) launcher() []string {
	if len(s.Launcher) == 0 {
		return []string{DefaultLauncher}
	}
	return s.Launcher
}

// Job is the running top-level launcher process.
type Job struct {
	cmd  *exec.Cmd
	done chan struct{}

	mu  sync.Mutex
	err error
}

func (j *Job) reap() {
	err := j.cmd.Wait()
	j.mu.Lock()
	j.err = err
	j.mu.Unlock()
	close(j.done)
}

func (j *Job) PID() int {
	if j == nil || j.cmd == nil || j.cmd.Process == nil {
		return 0
	}
	return j.cmd.Process.Pid
}

// Done is closed once the job process has exited and been reaped.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Err returns the exit error after Done is closed.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// ExitCode reports the job's exit status, or -1 while it is running or when
// it was killed by a signal.
func (j *Job) ExitCode() int {
	select {
	case <-j.done:
	default:
		return -1
	}
	if j.cmd.ProcessState == nil {
		return -1
	}
	return j.cmd.ProcessState.ExitCode()
}
