//go:build !unix

package sandbox

import "os/exec"

// setProcessGroup is a no-op; CommandContext kills the direct child only.
func setProcessGroup(cmd *exec.Cmd) {}

func killProcessGroup(cmd *exec.Cmd) {}
