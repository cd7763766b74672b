//go:build !unix

package fileio

// SetExecutable is a no-op on platforms without an executable bit
func SetExecutable(path string) error {
	return nil
}

// SupportsExecutableBit reports whether SetExecutable changes anything here
func SupportsExecutableBit() bool {
	return false
}
