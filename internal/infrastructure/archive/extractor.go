package archiveinfra

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"geektools.dev/cli/internal/core/domain"
	"geektools.dev/cli/internal/infrastructure/fileio"
)

// TempDirPrefix names the extraction directories created under the temp root
const TempDirPrefix = "geektools_plugin_"

// Extractor unpacks gzip-compressed tar archives into fresh temp directories
type Extractor struct {
	tempRoot string
	logger   hclog.Logger
}

// NewExtractor creates an extractor placing its directories under tempRoot,
// or the system temp directory when tempRoot is empty.
func NewExtractor(tempRoot string, logger hclog.Logger) *Extractor {
	if tempRoot == "" {
		tempRoot = os.TempDir()
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Extractor{
		tempRoot: tempRoot,
		logger:   logger.Named("extractor"),
	}
}

// Extract unpacks archivePath and returns the directory holding its tree.
// The caller owns the returned directory and must remove it. On failure
// nothing is left behind.
func (e *Extractor) Extract(archivePath string) (string, error) {
	info, err := os.Stat(archivePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", domain.ArchiveNotFound(archivePath, nil)
		}
		return "", domain.ArchiveNotFound(archivePath, err)
	}
	if info.IsDir() {
		return "", domain.ArchiveNotFound(archivePath, fmt.Errorf("path is a directory"))
	}

	if err := fileio.CreateDir(e.tempRoot); err != nil {
		return "", err
	}
	dest := filepath.Join(e.tempRoot, TempDirPrefix+uuid.NewString())
	if err := os.Mkdir(dest, 0o755); err != nil {
		return "", domain.FileOperationFailed("mkdir", dest, err)
	}

	if err := e.unpack(archivePath, dest); err != nil {
		if rmErr := fileio.RemoveDir(dest); rmErr != nil {
			e.logger.Warn("failed to clean up extraction directory", "path", dest, "error", rmErr)
		}
		return "", err
	}

	e.logger.Debug("extracted plugin archive", "archive", archivePath, "dest", dest)
	return dest, nil
}

func (e *Extractor) unpack(archivePath, dest string) error {
	file, err := os.Open(archivePath)
	if err != nil {
		return domain.FileOperationFailed("open", archivePath, err)
	}
	defer file.Close()

	gzReader, err := gzip.NewReader(file)
	if err != nil {
		return domain.ArchiveCorrupt(archivePath, fmt.Errorf("failed to create gzip reader: %w", err))
	}
	defer gzReader.Close()

	tarReader := tar.NewReader(gzReader)
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return domain.ArchiveCorrupt(archivePath, fmt.Errorf("failed to read tar header: %w", err))
		}

		name := filepath.FromSlash(header.Name)
		if !filepath.IsLocal(name) {
			return domain.ArchiveCorrupt(archivePath, fmt.Errorf("unsafe path in archive: %s", header.Name))
		}
		target := filepath.Join(dest, name)

		switch header.Typeflag {
		case tar.TypeDir:
			if err := fileio.CreateDir(target); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeEntry(target, tarReader, header.FileInfo().Mode().Perm()); err != nil {
				if errors.Is(err, domain.ErrFileOperationFailed) {
					return err
				}
				return domain.ArchiveCorrupt(archivePath, err)
			}
		default:
			e.logger.Debug("skipping unsupported archive entry", "name", header.Name, "type", string(header.Typeflag))
		}
	}

	return nil
}

// writeEntry streams one regular file out of the archive
func writeEntry(target string, r io.Reader, perm os.FileMode) error {
	if err := fileio.CreateDir(filepath.Dir(target)); err != nil {
		return err
	}

	// owner must keep read/write access for the later copy and cleanup
	file, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm|0o600)
	if err != nil {
		return domain.FileOperationFailed("create", target, err)
	}

	if _, err := io.Copy(file, r); err != nil {
		file.Close()
		return fmt.Errorf("failed to extract %s: %w", target, err)
	}
	if err := file.Close(); err != nil {
		return domain.FileOperationFailed("close", target, err)
	}
	return nil
}
