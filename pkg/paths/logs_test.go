package paths

import (
	"os"
	"path/filepath"
	"testing"
)

func TestHopperLogsBaseDirDefaultsToRelativePath(t *testing.T) {
	t.Setenv(EnvHopperLogDir, "")
	if got := HopperLogsBaseDir(); got != filepath.Join(".hopper", "logs") {
		t.Fatalf("unexpected base logs dir: %q", got)
	}
}

func TestHopperLogsBaseDirExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(EnvHopperLogDir, "~/hopper/logs")
	want := filepath.Join(home, "hopper", "logs")
	if got := HopperLogsBaseDir(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestHopperLogsBaseDirSupportsBareHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(EnvHopperLogDir, "~")
	if got := HopperLogsBaseDir(); got != home {
		t.Fatalf("expected %q, got %q", home, got)
	}
}

func TestHopperLogsBaseDirForWorkdirAnchorsRelative(t *testing.T) {
	t.Setenv(EnvHopperLogDir, "relative/logs")
	workdir := t.TempDir()
	want := filepath.Join(workdir, "relative", "logs")
	if got := HopperLogsBaseDirForWorkdir(workdir); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestHopperLogsBaseDirForWorkdirDoesNotAnchorAbsolute(t *testing.T) {
	workdir := t.TempDir()
	abs := filepath.Join(os.TempDir(), "hopper-logs")
	t.Setenv(EnvHopperLogDir, abs)
	if got := HopperLogsBaseDirForWorkdir(workdir); got != abs {
		t.Fatalf("expected %q, got %q", abs, got)
	}
}
