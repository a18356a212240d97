package main

import (
	"io"
	"os"
	"os/exec"

	"mpiterm/internal/worker"
)

// deps holds the process-level hooks tests replace.
type deps struct {
	lookPath    func(file string) (string, error)
	executable  func() (string, error)
	getenv      func(key string) string
	orchestrate func(rc runContext) int
	exit        func(code int)
}

func defaultDeps() deps {
	return deps{
		lookPath:    exec.LookPath,
		executable:  os.Executable,
		getenv:      os.Getenv,
		orchestrate: orchestrate,
		exit:        os.Exit,
	}
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr, defaultDeps()))
}

// run dispatches on the execution role before any flag parsing; the worker
// roles take their argv verbatim.
func run(args []string, in *os.File, out io.Writer, errOut io.Writer, d deps) int {
	switch worker.ParseMode(args) {
	case worker.ModeAttachSetup:
		return runAttachSetup(args, in, out, errOut, d)
	case worker.ModeExec:
		return runExec(args, in, out, errOut, d)
	default:
		return runOrchestrate(args, in, out, errOut, d)
	}
}
