package orchestrator

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrUsage = errors.New("usage")

// LaunchRequest is the validated user input for one run.
type LaunchRequest struct {
	WorkerCount int
	Command     []string
}

func NewLaunchRequest(workerCount int, command []string) (LaunchRequest, error) {
	if workerCount < 1 {
		return LaunchRequest{}, fmt.Errorf("%w: worker count must be a positive integer, got %d", ErrUsage, workerCount)
	}
	if len(command) == 0 || strings.TrimSpace(command[0]) == "" {
		return LaunchRequest{}, fmt.Errorf("%w: command is required", ErrUsage)
	}
	return LaunchRequest{
		WorkerCount: workerCount,
		Command:     append([]string(nil), command...),
	}, nil
}

// ParseLaunchRequest reads `<workerCount> <command> [args...]`.
func ParseLaunchRequest(args []string) (LaunchRequest, error) {
	if len(args) < 2 {
		return LaunchRequest{}, fmt.Errorf("%w: expected <workerCount> <command> [args...]", ErrUsage)
	}
	count, err := strconv.Atoi(strings.TrimSpace(args[0]))
	if err != nil {
		return LaunchRequest{}, fmt.Errorf("%w: worker count %q is not an integer", ErrUsage, args[0])
	}
	return NewLaunchRequest(count, args[1:])
}
