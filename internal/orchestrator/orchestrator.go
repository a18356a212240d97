// Package orchestrator drives one run: allocate surfaces, launch the job,
// wait for every attach-point, release the workers, then tear everything
// down.
package orchestrator

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"mpiterm/internal/broadcast"
	"mpiterm/internal/cleanup"
	"mpiterm/internal/launcher"
	"mpiterm/internal/logging"
	"mpiterm/internal/otel"
	"mpiterm/internal/process"
	"mpiterm/internal/rendezvous"
	"mpiterm/internal/scope"
	"mpiterm/internal/surface"
)

const (
	defaultCleanupDeadline = 15 * time.Second
	closePrompt            = "\nPress Enter to close the tmux session and quit"
)

var (
	ErrLaunchFailed         = errors.New("launch failed")
	ErrRendezvousTimeout    = errors.New("workers did not become ready in time")
	errJobExitedEarly       = errors.New("launcher exited before all workers were ready")
	errMissingCollaborators = errors.New("orchestrator requires a surface pool, waiter and spawn function")
)

// Job is the running top-level launcher process.
type Job interface {
	PID() int
	Done() <-chan struct{}
	Err() error
	// ExitCode is -1 while running or after death by signal.
	ExitCode() int
}

type SpawnFunc func(ctx context.Context, spec launcher.Spec) (Job, error)

// FromSpawner adapts a launcher.Spawner to SpawnFunc.
func FromSpawner(spawner *launcher.Spawner) SpawnFunc {
	return func(ctx context.Context, spec launcher.Spec) (Job, error) {
		job, err := spawner.Spawn(ctx, spec)
		if err != nil {
			return nil, err
		}
		return job, nil
	}
}

type Options struct {
	Pool        surface.Pool
	Waiter      rendezvous.Waiter
	Spawn       SpawnFunc
	Broadcaster broadcast.Broadcaster
	// Cleanup is shared with the caller so signal and panic paths can run
	// the same teardown. A private registry is created when nil.
	Cleanup   *cleanup.Registry
	Processes *process.Registry
	Snapshot  func(ctx context.Context, pid int) ([]int, error)
	Kill      func(pids []int) error

	ScopeParent      string
	PauseBeforeClose bool
	Prompt           io.Reader
	Output           io.Writer

	// StopGrace applies when Processes is nil.
	StopGrace time.Duration
	Logger    *logging.Logger
	Metrics   *otel.RunMetrics
	Tracer    trace.Tracer
}

type Orchestrator struct {
	options Options
}

func New(options Options) (*Orchestrator, error) {
	if options.Pool == nil || options.Waiter == nil || options.Spawn == nil {
		return nil, errMissingCollaborators
	}
	if options.Logger == nil {
		options.Logger = logging.Discard()
	}
	if options.Cleanup == nil {
		options.Cleanup = cleanup.NewRegistry(options.Logger)
	}
	if options.Processes == nil {
		options.Processes = process.NewRegistryWithGrace(options.StopGrace)
	}
	if options.Snapshot == nil {
		options.Snapshot = process.Descendants
	}
	if options.Kill == nil {
		options.Kill = process.KillAll
	}
	if options.Output == nil {
		options.Output = io.Discard
	}
	if options.Tracer == nil {
		options.Tracer = otel.Tracer()
	}
	if options.Broadcaster.Logger == nil {
		options.Broadcaster.Logger = options.Logger
	}
	return &Orchestrator{options: options}, nil
}

// Run executes one launch-rendezvous-cleanup cycle. Cleanup runs before Run
// returns on every path, including a panic, which is re-raised afterwards.
func (o *Orchestrator) Run(ctx context.Context, req LaunchRequest) (runErr error) {
	opts := o.options
	if req.WorkerCount < 1 || len(req.Command) == 0 {
		return fmt.Errorf("%w: invalid launch request", ErrUsage)
	}

	ctx, span := opts.Tracer.Start(ctx, "mpiterm.run", trace.WithAttributes(
		attribute.Int("mpiterm.workers", req.WorkerCount),
		attribute.String("mpiterm.command", strings.Join(req.Command, " ")),
	))
	defer span.End()

	logger := opts.Logger.With(map[string]string{
		"workers": strconv.Itoa(req.WorkerCount),
	})

	defer func() {
		recovered := recover()
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultCleanupDeadline)
		defer cancel()
		otel.RecordSpanEvent(ctx, "cleanup")
		if err := opts.Cleanup.Run(cleanupCtx); err != nil {
			logger.Warn("cleanup finished with errors", map[string]string{"error": err.Error()})
		}
		if recovered != nil {
			span.SetStatus(codes.Error, "panic")
			opts.Metrics.RecordRun(ctx, "panic", req.WorkerCount)
			panic(recovered)
		}
		opts.Metrics.RecordRun(ctx, outcome(runErr), req.WorkerCount)
		if runErr != nil {
			span.RecordError(runErr)
			span.SetStatus(codes.Error, runErr.Error())
		}
	}()

	otel.RecordSpanEvent(ctx, "allocate")
	set, err := opts.Pool.Allocate(ctx, req.WorkerCount)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLaunchFailed, err)
	}
	opts.Cleanup.Add("close terminal surfaces", func(context.Context) error {
		return set.Close()
	})
	if err := ctx.Err(); err != nil {
		return err
	}

	dir, err := scope.New(opts.ScopeParent, "")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLaunchFailed, err)
	}
	logger = logger.With(map[string]string{"scope": dir.Path()})
	snapshot := &pidSet{}
	opts.Cleanup.Add("stop workers", cleanup.BestEffort(
		func(context.Context) error { return dir.Remove() },
		func(ctx context.Context) error { return opts.Processes.StopAll(ctx) },
		func(context.Context) error { return opts.Kill(snapshot.get()) },
	))

	otel.RecordSpanEvent(ctx, "launch")
	job, err := opts.Spawn(ctx, launcher.Spec{
		WorkerCount: req.WorkerCount,
		Command:     req.Command,
		ScopeDir:    dir.Path(),
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLaunchFailed, err)
	}
	pid := job.PID()
	opts.Processes.Track(process.Entry{PID: pid, PGID: pid, Name: "launcher", Exited: job.Done()})
	logger.Info("job launched", map[string]string{"pid": strconv.Itoa(pid)})

	otel.RecordSpanEvent(ctx, "rendezvous")
	started := time.Now()
	points, err := o.rendezvous(ctx, job, dir.Path(), req.WorkerCount)
	if err != nil {
		return err
	}
	opts.Metrics.RecordRendezvous(ctx, time.Since(started))
	logger.Info("all workers ready", map[string]string{
		"elapsed": time.Since(started).Round(time.Millisecond).String(),
	})

	otel.RecordSpanEvent(ctx, "snapshot")
	pids, err := opts.Snapshot(ctx, pid)
	if err != nil {
		logger.Warn("process snapshot failed", map[string]string{"error": err.Error()})
	}
	snapshot.set(pids)
	logger.Debug("process snapshot taken", map[string]string{"count": strconv.Itoa(len(pids))})

	otel.RecordSpanEvent(ctx, "broadcast", attribute.Int("mpiterm.surfaces", set.Len()))
	if err := opts.Broadcaster.Broadcast(points, set); err != nil {
		return fmt.Errorf("%w: %w", ErrLaunchFailed, err)
	}

	otel.RecordSpanEvent(ctx, "wait")
	select {
	case <-job.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	opts.Processes.Forget(pid)
	exitFields := map[string]string{"exit_code": strconv.Itoa(job.ExitCode())}
	if jobErr := job.Err(); jobErr != nil {
		exitFields["error"] = jobErr.Error()
		logger.Warn("job exited with error", exitFields)
	} else {
		logger.Info("job finished", exitFields)
	}

	if opts.PauseBeforeClose {
		if err := o.pause(ctx); err != nil {
			return err
		}
	}
	return nil
}

// rendezvous waits for the attach-points, giving up early if the job exits
// first.
func (o *Orchestrator) rendezvous(ctx context.Context, job Job, dir string, want int) ([]rendezvous.AttachPoint, error) {
	waitCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	go func() {
		select {
		case <-job.Done():
			cancel(errJobExitedEarly)
		case <-waitCtx.Done():
		}
	}()

	points, err := o.options.Waiter.Wait(waitCtx, dir, want)
	if err == nil {
		return points, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if errors.Is(context.Cause(waitCtx), errJobExitedEarly) {
		if jobErr := job.Err(); jobErr != nil {
			return nil, fmt.Errorf("%w: %w: %v", ErrLaunchFailed, errJobExitedEarly, jobErr)
		}
		return nil, fmt.Errorf("%w: %w", ErrLaunchFailed, errJobExitedEarly)
	}
	if errors.Is(err, rendezvous.ErrTimeout) {
		return nil, fmt.Errorf("%w: %w", ErrRendezvousTimeout, err)
	}
	return nil, err
}

func (o *Orchestrator) pause(ctx context.Context) error {
	fmt.Fprint(o.options.Output, closePrompt)
	if o.options.Prompt == nil {
		return nil
	}
	read := make(chan struct{})
	go func() {
		_, _ = bufio.NewReader(o.options.Prompt).ReadString('\n')
		close(read)
	}()
	select {
	case <-read:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ProgressPrinter reports rendezvous progress to the user.
func ProgressPrinter(out io.Writer) rendezvous.Progress {
	return func(found, want int) {
		fmt.Fprintf(out, "Waiting for dtach sockets to appear. Found %d out of %d.\n", found, want)
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled):
		return "interrupted"
	case errors.Is(err, ErrRendezvousTimeout):
		return "timeout"
	default:
		return "failed"
	}
}

type pidSet struct {
	mu   sync.Mutex
	pids []int
}

func (s *pidSet) set(pids []int) {
	s.mu.Lock()
	s.pids = append([]int(nil), pids...)
	s.mu.Unlock()
}

func (s *pidSet) get() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.pids...)
}
