package scriptinfra

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"

	"geektools.dev/cli/internal/core/domain"
	"geektools.dev/cli/internal/core/scripts"
	"geektools.dev/cli/internal/infrastructure/fileio"
)

// Materializer writes script content below a work directory so it can be
// executed. Each source gets its own subdirectory.
type Materializer struct {
	dir    string
	logger hclog.Logger
}

// NewMaterializer creates a materializer rooted at dir
func NewMaterializer(dir string, logger hclog.Logger) *Materializer {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Materializer{
		dir:    dir,
		logger: logger.Named("materializer"),
	}
}

// Dir returns the directory scripts of namespace are written to
func (m *Materializer) Dir(namespace string) string {
	return filepath.Join(m.dir, namespace)
}

// Materialize writes data as namespace/name and returns its path. Names
// carrying the executable suffix get the executable bit. An existing file
// with identical content is left untouched.
func (m *Materializer) Materialize(namespace, name string, data []byte) (string, error) {
	if !filepath.IsLocal(namespace) || !filepath.IsLocal(filepath.FromSlash(name)) {
		return "", domain.FileOperationFailed("materialize", filepath.Join(namespace, name),
			fmt.Errorf("name escapes the scripts directory"))
	}
	dest := filepath.Join(m.Dir(namespace), filepath.FromSlash(name))

	if current, err := os.ReadFile(dest); err == nil && bytes.Equal(current, data) {
		m.logger.Trace("script already materialized", "path", dest)
		return dest, nil
	}

	if err := fileio.WriteBytes(dest, data, 0o644); err != nil {
		return "", err
	}
	if scripts.IsExecutable(name) {
		if err := fileio.SetExecutable(dest); err != nil {
			return "", err
		}
	}

	m.logger.Debug("materialized script", "path", dest)
	return dest, nil
}
