package tmux

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// windowIDFormat makes new-session/new-window print the created window id.
const windowIDFormat = "#{window_id}"

// CommandRunner executes tmux commands.
type CommandRunner interface {
	Run(args []string) ([]byte, error)
}

// Client executes tmux commands.
type Client struct {
	runner CommandRunner
}

// NewClientWithBinary returns a client that runs the given tmux executable,
// or the tmux found on PATH when binary is empty.
func NewClientWithBinary(binary string) *Client {
	if strings.TrimSpace(binary) == "" {
		binary = "tmux"
	}
	return &Client{runner: execRunner{binary: binary}}
}

// NewClientWithRunner returns a tmux client using a custom command runner.
func NewClientWithRunner(runner CommandRunner) *Client {
	return &Client{runner: runner}
}

// NewSession creates a detached session and returns the id of its first window.
func (c *Client) NewSession(name string) (string, error) {
	args := []string{"new-session", "-d", "-P", "-F", windowIDFormat, "-s", name}
	return c.windowID(args)
}

// NewWindow adds a window to an existing session and returns its id.
func (c *Client) NewWindow(sessionName string) (string, error) {
	args := []string{"new-window", "-d", "-P", "-F", windowIDFormat, "-t", sessionName + ":"}
	return c.windowID(args)
}

// SelectWindow selects the target window.
func (c *Client) SelectWindow(target string) error {
	return c.run([]string{"select-window", "-t", target})
}

// SendText types text into the target pane without interpreting key names.
func (c *Client) SendText(target, text string) error {
	return c.run([]string{"send-keys", "-t", target, "-l", text})
}

// SendKeys sends key names (for example Enter) to a target pane.
func (c *Client) SendKeys(target string, keys ...string) error {
	args := append([]string{"send-keys", "-t", target}, keys...)
	return c.run(args)
}

// KillSession terminates a tmux session.
func (c *Client) KillSession(name string) error {
	return c.run([]string{"kill-session", "-t", name})
}

// HasSession reports whether the named session exists.
func (c *Client) HasSession(name string) (bool, error) {
	if c == nil || c.runner == nil {
		return false, errors.New("tmux runner unavailable")
	}
	output, err := c.runner.Run([]string{"has-session", "-t", name})
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return false, nil
		}
		if len(output) > 0 {
			return false, fmt.Errorf("tmux has-session failed: %s", bytes.TrimSpace(output))
		}
		return false, fmt.Errorf("tmux has-session failed: %w", err)
	}
	return true, nil
}

func (c *Client) windowID(args []string) (string, error) {
	output, err := c.runWithOutput(args)
	if err != nil {
		return "", err
	}
	id := strings.TrimSpace(string(output))
	if id == "" {
		return "", fmt.Errorf("tmux %s returned no window id", args[0])
	}
	if i := strings.IndexByte(id, '\n'); i >= 0 {
		id = strings.TrimSpace(id[:i])
	}
	return id, nil
}

func (c *Client) run(args []string) error {
	_, err := c.runWithOutput(args)
	return err
}

func (c *Client) runWithOutput(args []string) ([]byte, error) {
	if c == nil || c.runner == nil {
		return nil, errors.New("tmux runner unavailable")
	}
	output, err := c.runner.Run(args)
	if err != nil {
		if len(output) > 0 {
			return nil, fmt.Errorf("tmux %s failed: %s", args[0], bytes.TrimSpace(output))
		}
		return nil, fmt.Errorf("tmux %s failed: %w", args[0], err)
	}
	return output, nil
}

type execRunner struct {
	binary string
}

func (r execRunner) Run(args []string) ([]byte, error) {
	cmd := exec.Command(r.binary, args...)
	return cmd.CombinedOutput()
}
