//go:build windows

package launcher

import "os/exec"

func setProcessGroup(*exec.Cmd) {}
