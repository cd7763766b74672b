//go:build unix

package fileio

import (
	"os"

	"geektools.dev/cli/internal/core/domain"
)

// SetExecutable marks path as executable for everyone (0755)
func SetExecutable(path string) error {
	if err := os.Chmod(path, 0o755); err != nil {
		return domain.FileOperationFailed("chmod", path, err)
	}
	return nil
}

// SupportsExecutableBit reports whether SetExecutable changes anything here
func SupportsExecutableBit() bool {
	return true
}
