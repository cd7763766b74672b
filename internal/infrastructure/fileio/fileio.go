// Package fileio is the filesystem layer used by the plugin core. Every
// failure is reported as a domain FileOperationFailed error naming the path.
package fileio

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"geektools.dev/cli/internal/core/domain"
)

// MaxCopyDepth bounds directory nesting accepted by CopyTree.
const MaxCopyDepth = 64

// ReadBytes reads a whole file
func ReadBytes(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.FileOperationFailed("read", path, err)
	}
	return data, nil
}

// WriteBytes writes data to path, creating parent directories if needed
func WriteBytes(path string, data []byte, perm os.FileMode) error {
	if err := CreateDir(filepath.Dir(path)); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, perm); err != nil {
		return domain.FileOperationFailed("write", path, err)
	}
	return nil
}

// WriteFileAtomic replaces path with data through a sibling temporary file
// and a rename, so readers only ever see the old or the new content.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := CreateDir(dir); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return domain.FileOperationFailed("create", path, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return domain.FileOperationFailed("write", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return domain.FileOperationFailed("sync", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return domain.FileOperationFailed("close", tmpPath, err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		os.Remove(tmpPath)
		return domain.FileOperationFailed("chmod", tmpPath, err)
	}

	if err := Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// CreateDir creates path and any missing parents
func CreateDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return domain.FileOperationFailed("mkdir", path, err)
	}
	return nil
}

// RemoveDir removes path recursively. A missing path is not an error.
func RemoveDir(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return domain.FileOperationFailed("remove", path, err)
	}
	return nil
}

// RemoveFile removes a single file
func RemoveFile(path string) error {
	if err := os.Remove(path); err != nil {
		return domain.FileOperationFailed("remove", path, err)
	}
	return nil
}

// Rename moves from to to, creating the destination's parent directory
func Rename(from, to string) error {
	if err := CreateDir(filepath.Dir(to)); err != nil {
		return err
	}
	if err := os.Rename(from, to); err != nil {
		return domain.FileOperationFailed("rename", from, err)
	}
	return nil
}

// Exists reports whether path exists
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// IsDir reports whether path exists and is a directory
func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// IsFile reports whether path exists and is a regular file
func IsFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// CopyTree recursively copies the directory src into dst. Only directories
// and regular files are copied; file permissions are preserved.
func CopyTree(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return domain.FileOperationFailed("stat", src, err)
	}
	if !info.IsDir() {
		return domain.FileOperationFailed("copy", src, fmt.Errorf("not a directory"))
	}
	return copyDir(src, dst, 0)
}

func copyDir(src, dst string, depth int) error {
	if depth > MaxCopyDepth {
		return domain.FileOperationFailed("copy", src, fmt.Errorf("directory nesting exceeds %d levels", MaxCopyDepth))
	}
	if err := CreateDir(dst); err != nil {
		return err
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return domain.FileOperationFailed("readdir", src, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())

		switch {
		case entry.IsDir():
			if err := copyDir(srcPath, dstPath, depth+1); err != nil {
				return err
			}
		case entry.Type().IsRegular():
			if err := copyFile(srcPath, dstPath); err != nil {
				return err
			}
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return domain.FileOperationFailed("stat", src, err)
	}
	data, err := ReadBytes(src)
	if err != nil {
		return err
	}
	return WriteBytes(dst, data, info.Mode().Perm())
}

// ListDirs returns the names of the directories directly under path.
// A missing path yields an empty list.
func ListDirs(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, domain.FileOperationFailed("readdir", path, err)
	}

	var dirs []string
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, entry.Name())
		}
	}
	return dirs, nil
}
