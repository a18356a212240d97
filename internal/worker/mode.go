// Package worker implements the two private roles this binary plays inside
// each launched worker: setting up the dtach session and, once released,
// replacing itself with the user command.
package worker

// Mode selects the role the binary plays for one invocation.
type Mode int

const (
	// ModeOrchestrate is the public entry point.
	ModeOrchestrate Mode = iota
	// ModeAttachSetup creates the worker's attach-point and wraps the rest of
	// the worker in dtach.
	ModeAttachSetup
	// ModeExec waits for the release newline and then execs the user command.
	ModeExec
)

const (
	attachSetupArg = "worker-attach-setup"
	execArg        = "worker-exec"
)

// Arg is the argv token that selects the mode on re-invocation.
func (m Mode) Arg() string {
	switch m {
	case ModeAttachSetup:
		return attachSetupArg
	case ModeExec:
		return execArg
	default:
		return ""
	}
}

func (m Mode) String() string {
	switch m {
	case ModeAttachSetup:
		return attachSetupArg
	case ModeExec:
		return execArg
	default:
		return "orchestrate"
	}
}

// ParseMode inspects the first argument. Anything that is not a private
// sub-mode token selects ModeOrchestrate.
func ParseMode(args []string) Mode {
	if len(args) == 0 {
		return ModeOrchestrate
	}
	switch args[0] {
	case attachSetupArg:
		return ModeAttachSetup
	case execArg:
		return ModeExec
	default:
		return ModeOrchestrate
	}
}

// Invocation is the parsed argument list of a private sub-mode:
// <mode> <scopeDir> <command...>.
type Invocation struct {
	Mode     Mode
	ScopeDir string
	Command  []string
}
