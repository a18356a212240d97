package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"mpiterm/internal/broadcast"
	"mpiterm/internal/cli"
	"mpiterm/internal/cleanup"
	"mpiterm/internal/launcher"
	"mpiterm/internal/logging"
	"mpiterm/internal/orchestrator"
	"mpiterm/internal/otel"
	"mpiterm/internal/process"
	"mpiterm/internal/rendezvous"
	"mpiterm/internal/surface"
	"mpiterm/internal/tmux"
	"mpiterm/internal/version"
)

const (
	telemetryFlushTimeout = 5 * time.Second
	forcedCleanupTimeout  = 10 * time.Second
)

type runContext struct {
	cfg    Config
	self   string
	in     *os.File
	out    io.Writer
	errOut io.Writer
	exit   func(code int)
}

func runOrchestrate(args []string, in *os.File, out io.Writer, errOut io.Writer, d deps) int {
	cfg, err := parseArgs(args, errOut, d.getenv)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitCodeSuccess
		}
		var usage *usageError
		if errors.As(err, &usage) {
			if !usage.reported {
				fmt.Fprintf(errOut, "mpiterm: %v\n", usage.err)
			}
			return exitCodeUsage
		}
		fmt.Fprintf(errOut, "mpiterm: %v\n", err)
		return exitCodeFailure
	}
	if cfg.ShowVersion {
		cli.PrintVersion(out, "mpiterm")
		return exitCodeSuccess
	}

	for _, tool := range []string{cfg.Settings.Dtach, cfg.Settings.Tmux} {
		if _, err := d.lookPath(tool); err != nil {
			fmt.Fprintf(errOut, "mpiterm: this tool requires %s, which was not found on PATH\n", tool)
			return exitCodeFailure
		}
	}
	self, err := d.executable()
	if err != nil {
		fmt.Fprintf(errOut, "mpiterm: locate own executable: %v\n", err)
		return exitCodeFailure
	}

	return d.orchestrate(runContext{
		cfg:    cfg,
		self:   self,
		in:     in,
		out:    out,
		errOut: errOut,
		exit:   d.exit,
	})
}

func orchestrate(rc runContext) int {
	settings := rc.cfg.Settings
	level, ok := logging.ParseLevel(settings.LogLevel)
	if !ok {
		level = logging.LevelInfo
	}
	logger := logging.NewLoggerWithOutput(level, rc.errOut)

	launcherArgs, err := launcher.ParseLauncher(settings.Launcher)
	if err != nil {
		fmt.Fprintf(rc.errOut, "mpiterm: %v\n", err)
		return exitCodeUsage
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTelemetry, err := otel.SetupSDK(ctx, otel.SDKOptionsFromEnv(otel.SDKOptions{
		Enabled:        settings.OTel.Enabled,
		HTTPEndpoint:   settings.OTel.Endpoint,
		ServiceName:    settings.OTel.ServiceName,
		ServiceVersion: version.Version,
	}))
	if err != nil {
		logger.Warn("telemetry setup failed", map[string]string{"error": err.Error()})
		shutdownTelemetry = func(context.Context) error { return nil }
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), telemetryFlushTimeout)
		defer flushCancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("telemetry flush failed", map[string]string{"error": err.Error()})
		}
	}()

	// Workers are re-invoked by the launcher and read the same config file.
	if rc.cfg.ConfigPath != "" {
		_ = os.Setenv(envConfig, rc.cfg.ConfigPath)
	}

	registry := cleanup.NewRegistry(logger)
	var interrupted atomic.Bool
	signalCh := make(chan os.Signal, 2)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(signalCh)
	stopWatching := watchSignals(logger, cancel, func() {
		forceCtx, forceCancel := context.WithTimeout(context.Background(), forcedCleanupTimeout)
		defer forceCancel()
		_ = registry.Run(forceCtx)
		rc.exit(exitCodeInterrupted)
	}, &interrupted, signalCh)
	defer stopWatching()

	pool := surface.NewTmuxPool(
		tmux.NewClientWithBinary(settings.Tmux),
		surface.SessionName(settings.SessionPrefix, os.Getpid()),
		logger,
	)

	waiter, err := rendezvous.New(settings.Readiness, rendezvous.Options{
		Interval: settings.PollInterval,
		Timeout:  settings.Timeout,
		Progress: orchestrator.ProgressPrinter(rc.out),
		Logger:   logger,
	})
	if err != nil {
		fmt.Fprintf(rc.errOut, "mpiterm: %v\n", err)
		return exitCodeUsage
	}

	metrics, err := otel.NewRunMetrics(nil)
	if err != nil {
		logger.Warn("metrics unavailable", map[string]string{"error": err.Error()})
	}

	options := orchestrator.Options{
		Pool:   pool,
		Waiter: waiter,
		Spawn: orchestrator.FromSpawner(&launcher.Spawner{
			Launcher: launcherArgs,
			Self:     rc.self,
			Stdout:   rc.out,
			Stderr:   rc.errOut,
		}),
		Broadcaster: broadcast.Broadcaster{
			Attach: broadcast.DtachAttach(settings.Dtach),
			Logger: logger,
		},
		Cleanup:          registry,
		Processes:        process.NewRegistry(),
		ScopeParent:      settings.ScopeParent,
		PauseBeforeClose: settings.PauseBeforeClose,
		Output:           rc.out,
		Logger:           logger,
		Metrics:          metrics,
	}
	if rc.in != nil {
		options.Prompt = rc.in
	}
	orch, err := orchestrator.New(options)
	if err != nil {
		fmt.Fprintf(rc.errOut, "mpiterm: %v\n", err)
		return exitCodeFailure
	}

	logger.Info("starting run", map[string]string{
		"session":   pool.SessionName(),
		"launcher":  strings.Join(launcherArgs, " "),
		"readiness": settings.Readiness,
		"timeout":   durationString(settings.Timeout),
	})
	fmt.Fprintf(rc.out, "Worker windows open in tmux session %[1]s. Attach with: tmux attach -t %[1]s\n", pool.SessionName())

	runErr := orch.Run(ctx, rc.cfg.Request)
	return exitCodeFor(runErr, interrupted.Load(), rc.errOut)
}

func exitCodeFor(err error, interrupted bool, errOut io.Writer) int {
	switch {
	case err == nil:
		return exitCodeSuccess
	case interrupted || errors.Is(err, context.Canceled):
		fmt.Fprintln(errOut, "mpiterm: interrupted")
		return exitCodeInterrupted
	case errors.Is(err, orchestrator.ErrUsage):
		fmt.Fprintf(errOut, "mpiterm: %v\n", err)
		return exitCodeUsage
	default:
		fmt.Fprintf(errOut, "mpiterm: %v\n", err)
		return exitCodeFailure
	}
}
