package paths

import (
	"os"
	"path/filepath"
	"strings"
)

const EnvHopperLogDir = "HOPPER_LOG_DIR"

func HopperLogsBaseDir() string {
	if dir := strings.TrimSpace(os.Getenv(EnvHopperLogDir)); dir != "" {
		return filepath.Clean(expandHomePath(dir))
	}
	return filepath.Join(".hopper", "logs")
}

func expandHomePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil || strings.TrimSpace(home) == "" {
			return path
		}
		if path == "~" {
			return home
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~/"))
	}
	return path
}

func HopperLogsBaseDirForWorkdir(workdir string) string {
	base := HopperLogsBaseDir()
	if filepath.IsAbs(base) || strings.TrimSpace(workdir) == "" {
		return base
	}
	return filepath.Join(workdir, base)
}

func HopperLogsDir(identifier string) string {
	base := HopperLogsBaseDir()
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return base
	}
	return filepath.Join(base, identifier)
}
