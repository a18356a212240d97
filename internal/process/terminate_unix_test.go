//go:build !windows

package process

import (
	"context"
	"os/exec"
	"syscall"
	"testing"
	"time"
)

// startGroup starts argv in its own process group and reaps it in the
// background.
func startGroup(t *testing.T, argv ...string) (*exec.Cmd, <-chan struct{}) {
	t.Helper()
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		t.Fatalf("start %v: %v", argv, err)
	}
	exited := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(exited)
	}()
	t.Cleanup(func() {
		_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		<-exited
	})
	return cmd, exited
}

func TestStopAllTerminatesGroup(t *testing.T) {
	cmd, exited := startGroup(t, "sh", "-c", "sleep 10 & sleep 10 & wait")
	pid := cmd.Process.Pid

	registry := NewRegistryWithGrace(time.Second)
	registry.Track(Entry{PID: pid, PGID: GroupID(pid), Name: "launcher", Exited: exited})
	if registry.Len() != 1 {
		t.Fatalf("expected 1 tracked process, got %d", registry.Len())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := registry.StopAll(ctx); err != nil {
		t.Fatalf("stop all: %v", err)
	}
	select {
	case <-exited:
	default:
		t.Fatalf("expected launcher to have exited")
	}
	if registry.Len() != 0 {
		t.Fatalf("expected registry to be drained")
	}
}

func TestStopAllEscalatesToKill(t *testing.T) {
	cmd, exited := startGroup(t, "sh", "-c", "trap '' TERM; while :; do sleep 0.05; done")
	pid := cmd.Process.Pid
	// Give the shell time to install the trap.
	time.Sleep(100 * time.Millisecond)

	registry := NewRegistryWithGrace(200 * time.Millisecond)
	registry.Track(Entry{PID: pid, PGID: pid, Name: "stubborn", Exited: exited})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := registry.StopAll(ctx); err != nil {
		t.Fatalf("stop all: %v", err)
	}
	select {
	case <-exited:
	default:
		t.Fatalf("expected SIGKILL to stop the process")
	}
}

func TestStopAllIgnoresExitedProcess(t *testing.T) {
	cmd, exited := startGroup(t, "true")
	<-exited

	registry := NewRegistry()
	registry.Track(Entry{PID: cmd.Process.Pid, Name: "true", Exited: exited})
	registry.Forget(0)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := registry.StopAll(ctx); err != nil {
		t.Fatalf("stop all: %v", err)
	}
}

func TestTrackIgnoresInvalidPID(t *testing.T) {
	registry := NewRegistry()
	registry.Track(Entry{PID: 0, Name: "fake"})
	registry.Track(Entry{PID: -3, Name: "fake"})
	if registry.Len() != 0 {
		t.Fatalf("expected nothing tracked")
	}
	var nilRegistry *Registry
	nilRegistry.Track(Entry{PID: 1})
	if err := nilRegistry.StopAll(context.Background()); err != nil {
		t.Fatalf("nil registry stop: %v", err)
	}
}

func TestForgetSkipsSignal(t *testing.T) {
	cmd, exited := startGroup(t, "sleep", "10")
	registry := NewRegistry()
	registry.Track(Entry{PID: cmd.Process.Pid, PGID: cmd.Process.Pid, Name: "sleep", Exited: exited})
	registry.Forget(cmd.Process.Pid)

	if err := registry.StopAll(context.Background()); err != nil {
		t.Fatalf("stop all: %v", err)
	}
	if !alive(cmd.Process.Pid) {
		t.Fatalf("forgotten process must not be signalled")
	}
}

func TestKillAllSkipsMissingProcesses(t *testing.T) {
	cmd, exited := startGroup(t, "sleep", "10")
	pid := cmd.Process.Pid

	if err := KillAll([]int{pid, 0}); err != nil {
		t.Fatalf("kill all: %v", err)
	}
	select {
	case <-exited:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected process to be killed")
	}
	if err := KillAll([]int{pid}); err != nil {
		t.Fatalf("second kill all: %v", err)
	}
}

func TestDescendantsFindsGrandchildren(t *testing.T) {
	cmd, _ := startGroup(t, "sh", "-c", "sleep 10 & sleep 10 & wait")

	deadline := time.Now().Add(2 * time.Second)
	var pids []int
	for time.Now().Before(deadline) {
		found, err := Descendants(context.Background(), cmd.Process.Pid)
		if err != nil {
			t.Fatalf("descendants: %v", err)
		}
		if len(found) >= 2 {
			pids = found
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if len(pids) < 2 {
		t.Fatalf("expected at least 2 descendants, got %v", pids)
	}
	for _, pid := range pids {
		if pid == cmd.Process.Pid {
			t.Fatalf("root pid must not be listed")
		}
	}
}

func TestDescendantsOfLeafIsEmpty(t *testing.T) {
	cmd, _ := startGroup(t, "sleep", "10")

	pids, err := Descendants(context.Background(), cmd.Process.Pid)
	if err != nil {
		t.Fatalf("descendants: %v", err)
	}
	if len(pids) != 0 {
		t.Fatalf("expected no descendants, got %v", pids)
	}
}
