package tmux

import (
	"errors"
	"os/exec"
	"testing"
)

type fakeRunner struct {
	calls  [][]string
	output []byte
	err    error
}

func (f *fakeRunner) Run(args []string) ([]byte, error) {
	f.calls = append(f.calls, append([]string(nil), args...))
	return f.output, f.err
}

func TestClientNewSessionReturnsWindowID(t *testing.T) {
	runner := &fakeRunner{output: []byte("@3\n")}
	client := NewClientWithRunner(runner)

	id, err := client.NewSession("run-1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if id != "@3" {
		t.Fatalf("expected window id @3, got %q", id)
	}
	expected := []string{"new-session", "-d", "-P", "-F", "#{window_id}", "-s", "run-1"}
	if !equalArgs(runner.calls[0], expected) {
		t.Fatalf("unexpected args: %#v", runner.calls[0])
	}
}

func TestClientNewWindowTargetsSession(t *testing.T) {
	runner := &fakeRunner{output: []byte("@4")}
	client := NewClientWithRunner(runner)

	id, err := client.NewWindow("run-1")
	if err != nil {
		t.Fatalf("new window: %v", err)
	}
	if id != "@4" {
		t.Fatalf("expected window id @4, got %q", id)
	}
	expected := []string{"new-window", "-d", "-P", "-F", "#{window_id}", "-t", "run-1:"}
	if !equalArgs(runner.calls[0], expected) {
		t.Fatalf("unexpected args: %#v", runner.calls[0])
	}
}

func TestClientNewWindowRequiresID(t *testing.T) {
	client := NewClientWithRunner(&fakeRunner{output: []byte("  \n")})
	if _, err := client.NewWindow("run-1"); err == nil {
		t.Fatalf("expected error for empty window id")
	}
}

func TestClientSendTextIsLiteral(t *testing.T) {
	runner := &fakeRunner{}
	client := NewClientWithRunner(runner)

	if err := client.SendText("@1", "dtach -a /tmp/x"); err != nil {
		t.Fatalf("send text: %v", err)
	}
	expected := []string{"send-keys", "-t", "@1", "-l", "dtach -a /tmp/x"}
	if !equalArgs(runner.calls[0], expected) {
		t.Fatalf("unexpected args: %#v", runner.calls[0])
	}
}

func TestClientErrorIncludesOutput(t *testing.T) {
	runner := &fakeRunner{output: []byte("no server running\n"), err: errors.New("exit status 1")}
	client := NewClientWithRunner(runner)

	err := client.KillSession("gone")
	if err == nil {
		t.Fatalf("expected error")
	}
	if err.Error() != "tmux kill-session failed: no server running" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClientHasSessionTreatsExitErrorAsMissing(t *testing.T) {
	runner := &fakeRunner{err: &exec.ExitError{}}
	client := NewClientWithRunner(runner)

	ok, err := client.HasSession("gone")
	if err != nil {
		t.Fatalf("has session: %v", err)
	}
	if ok {
		t.Fatalf("expected missing session")
	}
}

func TestNilClientReportsUnavailable(t *testing.T) {
	var client *Client
	if err := client.SelectWindow("@1"); err == nil {
		t.Fatalf("expected error from nil client")
	}
}

func equalArgs(got, expected []string) bool {
	if len(got) != len(expected) {
		return false
	}
	for i := range got {
		if got[i] != expected[i] {
			return false
		}
	}
	return true
}
