//go:build !windows

package sandbox

import (
	"context"
	"os/exec"
	"syscall"
)

// commandContext spawns argv[0] with argv[1:] directly. No shell is
// invoked at any point, by design: the sandbox never interprets shell
// metacharacters, it only validates and execs.
func commandContext(ctx context.Context, argv []string) *exec.Cmd {
	return exec.CommandContext(ctx, argv[0], argv[1:]...)
}

// setSysProcAttr sets Unix-specific process attributes.
func setSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}
