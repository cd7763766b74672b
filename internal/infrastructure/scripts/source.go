// Package scriptinfra provides the script sources the resolver reads from
// and the materializer that writes resolved scripts to disk.
package scriptinfra

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"

	"geektools.dev/cli/internal/core/domain"
	plugindomain "geektools.dev/cli/internal/core/domain/plugin"
	"geektools.dev/cli/internal/core/ports"
	"geektools.dev/cli/internal/core/scripts"
)

// BuiltinNamespace is the materialization namespace of embedded scripts
const BuiltinNamespace = "builtin"

const catalogueFile = "info.json"

//go:embed assets
var assets embed.FS

var (
	_ ports.BuiltinScripts = (*EmbeddedSource)(nil)
	_ ports.ScriptSource   = (*DirSource)(nil)
)

// EmbeddedSource serves the built-in scripts compiled into the binary
type EmbeddedSource struct {
	fsys fs.FS
}

// NewEmbeddedSource returns the source of built-in scripts
func NewEmbeddedSource() *EmbeddedSource {
	sub, err := fs.Sub(assets, "assets")
	if err != nil {
		// the embedded tree is fixed at build time
		panic(err)
	}
	return &EmbeddedSource{fsys: sub}
}

// NewFSSource serves scripts from an arbitrary fs.FS
func NewFSSource(fsys fs.FS) *EmbeddedSource {
	return &EmbeddedSource{fsys: fsys}
}

// Name implements ports.ScriptSource
func (s *EmbeddedSource) Name() string {
	return BuiltinNamespace
}

// Read implements ports.ScriptSource
func (s *EmbeddedSource) Read(name string) ([]byte, error) {
	if name == catalogueFile || !fs.ValidPath(name) {
		return nil, domain.ScriptNotFound(name)
	}
	data, err := fs.ReadFile(s.fsys, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ScriptNotFound(name)
		}
		return nil, domain.FileOperationFailed("read", path.Join(BuiltinNamespace, name), err)
	}
	return data, nil
}

// Catalogue returns the built-in scripts listed in the embedded info.json,
// sorted by name
func (s *EmbeddedSource) Catalogue() ([]scripts.CatalogueEntry, error) {
	data, err := fs.ReadFile(s.fsys, catalogueFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, domain.FileOperationFailed("read", catalogueFile, err)
	}

	var descriptions map[string]string
	if err := json.Unmarshal(data, &descriptions); err != nil {
		return nil, fmt.Errorf("failed to parse built-in script catalogue: %w", err)
	}

	entries := make([]scripts.CatalogueEntry, 0, len(descriptions))
	for name, desc := range descriptions {
		entries = append(entries, scripts.CatalogueEntry{Name: name, Description: desc})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// DirSource serves scripts from an installed plugin's scripts directory
type DirSource struct {
	namespace string
	dir       string
}

// NewDirSource creates a source reading scripts below dir
func NewDirSource(namespace, dir string) *DirSource {
	return &DirSource{namespace: namespace, dir: dir}
}

// NewPluginSource creates a source for an installed plugin's scripts
func NewPluginSource(p plugindomain.InstalledPlugin) *DirSource {
	return NewDirSource(p.Manifest.ID, p.ScriptsPath())
}

// Name implements ports.ScriptSource
func (s *DirSource) Name() string {
	return s.namespace
}

// Read implements ports.ScriptSource
func (s *DirSource) Read(name string) ([]byte, error) {
	rel := filepath.FromSlash(name)
	if !filepath.IsLocal(rel) {
		return nil, domain.ScriptNotFound(name)
	}

	full := filepath.Join(s.dir, rel)
	data, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ScriptNotFound(name)
		}
		return nil, domain.FileOperationFailed("read", full, err)
	}
	return data, nil
}
