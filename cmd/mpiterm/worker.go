package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"mpiterm/internal/config"
	"mpiterm/internal/logging"
	"mpiterm/internal/worker"
)

func runAttachSetup(args []string, in *os.File, out io.Writer, errOut io.Writer, d deps) int {
	inv, err := worker.ParseInvocation(args)
	if err != nil {
		fmt.Fprintf(errOut, "mpiterm: %v\n", err)
		return exitCodeUsage
	}
	settings := workerSettings(d.getenv, errOut)
	level, ok := logging.ParseLevel(settings.LogLevel)
	if !ok {
		level = logging.LevelInfo
	}
	self, err := d.executable()
	if err != nil {
		fmt.Fprintf(errOut, "mpiterm: locate own executable: %v\n", err)
		return exitCodeFailure
	}

	code, err := worker.AttachSetup(context.Background(), inv, worker.SetupOptions{
		Self:   self,
		Dtach:  settings.Dtach,
		Stdin:  in,
		Stdout: out,
		Logger: logging.NewLoggerWithOutput(level, errOut),
	})
	if err != nil {
		fmt.Fprintf(errOut, "mpiterm %s: %v\n", inv.Mode, err)
		if code == exitCodeSuccess {
			return exitCodeFailure
		}
	}
	return code
}

func runExec(args []string, in *os.File, out io.Writer, errOut io.Writer, d deps) int {
	inv, err := worker.ParseInvocation(args)
	if err != nil {
		fmt.Fprintf(errOut, "mpiterm: %v\n", err)
		return exitCodeUsage
	}
	if in == nil {
		fmt.Fprintf(errOut, "mpiterm %s: no stdin to wait on\n", inv.Mode)
		return exitCodeFailure
	}
	// Exec only returns on failure.
	if err := worker.Exec(inv, in, out, worker.DefaultExecer()); err != nil {
		fmt.Fprintf(errOut, "mpiterm %s: %v\n", inv.Mode, err)
	}
	return exitCodeFailure
}

// workerSettings falls back to defaults when the shared config cannot be
// read; a worker has no user to report a config problem to.
func workerSettings(getenv func(string) string, errOut io.Writer) config.Settings {
	settings, err := config.LoadSettings(resolveConfigPath("", getenv), nil)
	if err == nil {
		return settings
	}
	fmt.Fprintf(errOut, "mpiterm: ignoring config: %v\n", err)
	settings, err = config.Defaults()
	if err != nil {
		return config.Settings{Dtach: "dtach", LogLevel: "info"}
	}
	return settings
}
