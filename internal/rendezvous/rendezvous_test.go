package rendezvous

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"mpiterm/internal/scope"
)

type progressLog struct {
	mu    sync.Mutex
	found []int
	want  []int
}

func (p *progressLog) record(found, want int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.found = append(p.found, found)
	p.want = append(p.want, want)
}

func (p *progressLog) snapshot() ([]int, []int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.found...), append([]int(nil), p.want...)
}

func makeSocket(t *testing.T, dir, name string) string {
	t.Helper()
	path, err := writeSocket(dir, name)
	if err != nil {
		t.Fatalf("write socket: %v", err)
	}
	return path
}

func writeSocket(dir, name string) (string, error) {
	worker := filepath.Join(dir, name)
	if err := os.MkdirAll(worker, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(worker, scope.SocketName)
	return path, os.WriteFile(path, nil, 0o600)
}

func TestDiscoverSortsAndIgnoresIncompleteWorkers(t *testing.T) {
	dir := t.TempDir()
	c := makeSocket(t, dir, "c")
	a := makeSocket(t, dir, "a")
	b := makeSocket(t, dir, "b")
	if err := os.Mkdir(filepath.Join(dir, "pending"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "stray"), nil, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	paths, err := Discover(dir)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	expected := []string{a, b, c}
	if len(paths) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, paths)
	}
	for i := range expected {
		if paths[i] != expected[i] {
			t.Fatalf("expected %v, got %v", expected, paths)
		}
	}
}

func TestPollerReturnsSortedAttachPoints(t *testing.T) {
	dir := t.TempDir()
	makeSocket(t, dir, "a")
	makeSocket(t, dir, "c")
	makeSocket(t, dir, "b")

	progress := &progressLog{}
	poller := NewPoller(Options{Interval: 5 * time.Millisecond, Progress: progress.record})
	points, err := poller.Wait(context.Background(), dir, 3)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	for i, name := range []string{"a", "b", "c"} {
		if points[i].Index != i {
			t.Fatalf("expected index %d, got %d", i, points[i].Index)
		}
		if filepath.Base(filepath.Dir(points[i].Path)) != name {
			t.Fatalf("expected point %d in %q, got %q", i, name, points[i].Path)
		}
	}
	found, want := progress.snapshot()
	if len(found) != 1 || found[0] != 3 || want[0] != 3 {
		t.Fatalf("expected a single 3 of 3 observation, got found=%v want=%v", found, want)
	}
}

func TestPollerWaitsForLateWorkers(t *testing.T) {
	dir := t.TempDir()
	makeSocket(t, dir, "1_a")

	progress := &progressLog{}
	poller := NewPoller(Options{Interval: 5 * time.Millisecond, Progress: progress.record})

	go func() {
		time.Sleep(30 * time.Millisecond)
		_, _ = writeSocket(dir, "2_b")
	}()

	points, err := poller.Wait(context.Background(), dir, 2)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}
	found, _ := progress.snapshot()
	if found[0] != 1 {
		t.Fatalf("expected first observation to report 1, got %v", found)
	}
	if found[len(found)-1] != 2 {
		t.Fatalf("expected last observation to report 2, got %v", found)
	}
	for _, count := range found[:len(found)-1] {
		if count == 2 {
			t.Fatalf("poller kept waiting after reaching the target: %v", found)
		}
	}
}

func TestPollerNeverProceedsWhenWorkerMissing(t *testing.T) {
	dir := t.TempDir()
	makeSocket(t, dir, "a")
	makeSocket(t, dir, "b")
	makeSocket(t, dir, "c")

	progress := &progressLog{}
	poller := NewPoller(Options{Interval: 5 * time.Millisecond, Progress: progress.record})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	points, err := poller.Wait(ctx, dir, 4)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context deadline, got %v", err)
	}
	if points != nil {
		t.Fatalf("expected no attach points, got %v", points)
	}
	found, want := progress.snapshot()
	if len(found) < 2 {
		t.Fatalf("expected repeated observations, got %v", found)
	}
	for i := range found {
		if found[i] != 3 || want[i] != 4 {
			t.Fatalf("expected every observation to be 3 of 4, got found=%v want=%v", found, want)
		}
	}
}

func TestPollerKeepsWaitingWhenTooManyAppear(t *testing.T) {
	dir := t.TempDir()
	makeSocket(t, dir, "a")
	makeSocket(t, dir, "b")
	makeSocket(t, dir, "c")

	poller := NewPoller(Options{Interval: 5 * time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := poller.Wait(ctx, dir, 2); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected poller to keep waiting, got %v", err)
	}
}

func TestPollerTimeout(t *testing.T) {
	dir := t.TempDir()
	makeSocket(t, dir, "a")

	poller := NewPoller(Options{Interval: 5 * time.Millisecond, Timeout: 30 * time.Millisecond})
	_, err := poller.Wait(context.Background(), dir, 2)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestPollerRejectsInvalidCount(t *testing.T) {
	if _, err := NewPoller(Options{}).Wait(context.Background(), t.TempDir(), 0); !errors.Is(err, ErrInvalidCount) {
		t.Fatalf("expected invalid count error, got %v", err)
	}
}

func TestPollerReportsMissingDirectory(t *testing.T) {
	_, err := NewPoller(Options{}).Wait(context.Background(), filepath.Join(t.TempDir(), "gone"), 1)
	if err == nil {
		t.Fatalf("expected error for missing scope dir")
	}
}

func TestNotifierWakesOnSocketCreation(t *testing.T) {
	dir := t.TempDir()
	progress := &progressLog{}
	notifier := NewNotifier(Options{Interval: 30 * time.Second, Progress: progress.record})

	go func() {
		time.Sleep(50 * time.Millisecond)
		_, _ = writeSocket(dir, "2_b")
		time.Sleep(20 * time.Millisecond)
		_, _ = writeSocket(dir, "1_a")
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	points, err := notifier.Wait(ctx, dir, 2)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if filepath.Base(filepath.Dir(points[0].Path)) != "1_a" {
		t.Fatalf("expected sorted points, got %v", points)
	}
	found, want := progress.snapshot()
	if found[0] != 0 || want[0] != 2 {
		t.Fatalf("expected first observation 0 of 2, got found=%v want=%v", found, want)
	}
}

func TestNotifierTimeout(t *testing.T) {
	notifier := NewNotifier(Options{Interval: 10 * time.Millisecond, Timeout: 40 * time.Millisecond})
	if _, err := notifier.Wait(context.Background(), t.TempDir(), 1); !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestNewSelectsStrategy(t *testing.T) {
	waiter, err := New("", Options{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, ok := waiter.(*Poller); !ok {
		t.Fatalf("expected poller by default, got %T", waiter)
	}
	waiter, err = New("Notify", Options{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, ok := waiter.(*Notifier); !ok {
		t.Fatalf("expected notifier, got %T", waiter)
	}
	if _, err := New("semaphore", Options{}); err == nil {
		t.Fatalf("expected unknown strategy error")
	}
}
