package worker

import (
	"errors"
	"fmt"
)

var ErrMissingCommand = errors.New("worker command is required")

// ParseInvocation parses the argv of a private sub-mode.
func ParseInvocation(args []string) (Invocation, error) {
	mode := ParseMode(args)
	if mode == ModeOrchestrate {
		return Invocation{}, fmt.Errorf("not a worker sub-mode: %q", first(args))
	}
	if len(args) < 2 || args[1] == "" {
		return Invocation{}, fmt.Errorf("%s: scope dir is required", mode)
	}
	if len(args) < 3 {
		return Invocation{}, fmt.Errorf("%s: %w", mode, ErrMissingCommand)
	}
	return Invocation{
		Mode:     mode,
		ScopeDir: args[1],
		Command:  append([]string(nil), args[2:]...),
	}, nil
}

// Args renders the invocation back into argv form.
func (inv Invocation) Args() []string {
	args := make([]string, 0, len(inv.Command)+2)
	args = append(args, inv.Mode.Arg(), inv.ScopeDir)
	return append(args, inv.Command...)
}

func first(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
