package main

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// runtimeDirPlaceholder is the token in a manifest's secret_directory that
// is replaced with the per-user runtime directory.
const runtimeDirPlaceholder = "%r"

// UnsupportedOSError is returned when %r expansion is attempted on an
// operating system other than Linux or macOS.
type UnsupportedOSError struct {
	OS string
}

func (e *UnsupportedOSError) Error() string {
	return fmt.Sprintf("%%r substitution is not supported on %s", e.OS)
}

// expandSecretDirectory replaces runtimeDirPlaceholder in raw with the
// current OS's per-user runtime directory, if present.
func expandSecretDirectory(raw string) (string, error) {
	if !strings.Contains(raw, runtimeDirPlaceholder) {
		return raw, nil
	}
	runtimeDir, err := runtimeDirectory()
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(raw, runtimeDirPlaceholder, runtimeDir), nil
}

func runtimeDirectory() (string, error) {
	switch runtime.GOOS {
	case "linux":
		dir := os.Getenv("XDG_RUNTIME_DIR")
		if dir == "" {
			return "", fmt.Errorf("XDG_RUNTIME_DIR is not set")
		}
		return dir, nil
	case "darwin":
		out, err := exec.Command("getconf", "DARWIN_USER_TEMP_DIR").Output()
		if err != nil {
			return "", fmt.Errorf("failed to run getconf DARWIN_USER_TEMP_DIR: %w", err)
		}
		return strings.TrimSpace(string(out)), nil
	default:
		return "", &UnsupportedOSError{OS: runtime.GOOS}
	}
}
