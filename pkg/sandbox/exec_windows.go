//go:build windows

package sandbox

import (
	"context"
	"os/exec"
)

// commandContext spawns argv[0] with argv[1:] directly; no shell is
// invoked on Windows either.
func commandContext(ctx context.Context, argv []string) *exec.Cmd {
	return exec.CommandContext(ctx, argv[0], argv[1:]...)
}

// setSysProcAttr is a no-op on Windows - Setpgid is not available there.
func setSysProcAttr(cmd *exec.Cmd) {
}
