package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"mpiterm/internal/cli"
	"mpiterm/internal/config"
	"mpiterm/internal/orchestrator"
)

const (
	envConfig   = "MPITERM_CONFIG"
	envLauncher = "MPITERM_LAUNCHER"
)

type Config struct {
	ConfigPath  string
	Settings    config.Settings
	Request     orchestrator.LaunchRequest
	ShowVersion bool
}

// usageError maps to exitCodeUsage. reported is set when the flag package
// has already printed the problem.
type usageError struct {
	err      error
	reported bool
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func parseArgs(args []string, errOut io.Writer, getenv func(string) string) (Config, error) {
	fs := flag.NewFlagSet("mpiterm", flag.ContinueOnError)
	fs.SetOutput(errOut)
	configFlag := fs.String("config", "", "Config file (env: MPITERM_CONFIG)")
	launcherFlag := fs.String("launcher", "", "Launcher command prefix (env: MPITERM_LAUNCHER, default: mpiexec)")
	pollFlag := fs.Duration("poll-interval", 0, "Interval between attach-point scans")
	timeoutFlag := fs.Duration("timeout", 0, "Give up waiting for workers after this long (0 waits forever)")
	readinessFlag := fs.String("readiness", "", "Readiness strategy: poll or notify")
	pauseFlag := fs.Bool("pause-before-close", true, "Wait for Enter before closing the tmux session")
	prefixFlag := fs.String("session-prefix", "", "tmux session name prefix")
	logLevelFlag := fs.String("log-level", "", "Log level: debug, info, warning, error")
	helpVersion := cli.AddHelpVersionFlags(fs, "Show this help message", "Print version and exit")
	fs.Usage = func() {
		printHelp(fs.Output())
	}

	if err := fs.Parse(args); err != nil {
		return Config{}, &usageError{err: err, reported: true}
	}
	if helpVersion.Help {
		fs.Usage()
		return Config{}, flag.ErrHelp
	}
	if helpVersion.Version {
		return Config{ShowVersion: true}, nil
	}

	request, err := orchestrator.ParseLaunchRequest(fs.Args())
	if err != nil {
		fs.Usage()
		return Config{}, &usageError{err: err}
	}

	overrides := map[string]any{}
	if launcher := strings.TrimSpace(getenv(envLauncher)); launcher != "" {
		overrides["launcher"] = launcher
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "launcher":
			overrides["launcher"] = *launcherFlag
		case "poll-interval":
			overrides["poll-interval"] = *pollFlag
		case "timeout":
			overrides["timeout"] = *timeoutFlag
		case "readiness":
			overrides["readiness"] = *readinessFlag
		case "pause-before-close":
			overrides["pause-before-close"] = *pauseFlag
		case "session-prefix":
			overrides["session-prefix"] = *prefixFlag
		case "log-level":
			overrides["log-level"] = *logLevelFlag
		}
	})

	path := resolveConfigPath(*configFlag, getenv)
	settings, err := config.LoadSettings(path, overrides)
	if err != nil {
		if errors.Is(err, config.ErrInvalidSetting) {
			return Config{}, &usageError{err: err}
		}
		return Config{}, err
	}
	return Config{ConfigPath: path, Settings: settings, Request: request}, nil
}

func resolveConfigPath(flagValue string, getenv func(string) string) string {
	if path := strings.TrimSpace(flagValue); path != "" {
		return path
	}
	if path := strings.TrimSpace(getenv(envConfig)); path != "" {
		return path
	}
	return config.DefaultPath()
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out, "Usage: mpiterm [options] <workerCount> <command> [args...]")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Run <workerCount> copies of <command> under an MPI launcher, one tmux window")
	fmt.Fprintln(out, "per copy. Every copy starts only after all windows are connected.")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Options:")
	cli.WriteOption(out, "--config PATH", "Config file (env: MPITERM_CONFIG)")
	cli.WriteOption(out, "--launcher WORDS", "Launcher command prefix (env: MPITERM_LAUNCHER, default: mpiexec)")
	cli.WriteOption(out, "--poll-interval DURATION", "Interval between attach-point scans (default: 200ms)")
	cli.WriteOption(out, "--timeout DURATION", "Give up waiting for workers (default: 0, wait forever)")
	cli.WriteOption(out, "--readiness poll|notify", "Readiness strategy (default: poll)")
	cli.WriteOption(out, "--pause-before-close[=BOOL]", "Wait for Enter before closing the tmux session (default: true)")
	cli.WriteOption(out, "--session-prefix NAME", "tmux session name prefix (default: mpiterm)")
	cli.WriteOption(out, "--log-level LEVEL", "debug, info, warning or error (default: info)")
	cli.WriteOption(out, "--help", "Show this help message")
	cli.WriteOption(out, "--version", "Print version and exit")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Requires dtach and tmux on PATH.")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Examples:")
	fmt.Fprintln(out, "  mpiterm 4 python3 solver.py")
	fmt.Fprintln(out, "  mpiterm --launcher 'srun --mpi=pmix' 2 gdb ./a.out")
}

func durationString(d time.Duration) string {
	if d == 0 {
		return "none"
	}
	return d.String()
}
