package plugininfra

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"geektools.dev/cli/internal/core/domain"
	plugindomain "geektools.dev/cli/internal/core/domain/plugin"
	"geektools.dev/cli/internal/infrastructure/fileio"
)

// FileSystemRegistry persists installed plugin records as a JSON document
// mapping plugin id to record
type FileSystemRegistry struct {
	pluginsDir string
	filePath   string
}

// NewFileSystemRegistry creates a registry stored as registry.json inside pluginsDir
func NewFileSystemRegistry(pluginsDir string) *FileSystemRegistry {
	return &FileSystemRegistry{
		pluginsDir: pluginsDir,
		filePath:   filepath.Join(pluginsDir, plugindomain.RegistryFile),
	}
}

// Path returns the registry document location
func (r *FileSystemRegistry) Path() string {
	return r.filePath
}

// Load reads the registry. A missing document is an empty registry.
func (r *FileSystemRegistry) Load() (map[string]plugindomain.InstalledPlugin, error) {
	if !fileio.Exists(r.filePath) {
		return make(map[string]plugindomain.InstalledPlugin), nil
	}

	data, err := fileio.ReadBytes(r.filePath)
	if err != nil {
		return nil, err
	}

	var plugins map[string]plugindomain.InstalledPlugin
	if err := json.Unmarshal(data, &plugins); err != nil {
		return nil, domain.RegistryCorrupt(r.filePath, err)
	}
	if plugins == nil {
		plugins = make(map[string]plugindomain.InstalledPlugin)
	}

	for id, record := range plugins {
		if record.Manifest.ID != id {
			return nil, domain.RegistryCorrupt(r.filePath,
				fmt.Errorf("entry %q holds manifest for %q", id, record.Manifest.ID))
		}
	}

	return plugins, nil
}

// Save replaces the registry document atomically
func (r *FileSystemRegistry) Save(plugins map[string]plugindomain.InstalledPlugin) error {
	if err := fileio.CreateDir(r.pluginsDir); err != nil {
		return err
	}

	if plugins == nil {
		plugins = make(map[string]plugindomain.InstalledPlugin)
	}
	data, err := json.MarshalIndent(plugins, "", "  ")
	if err != nil {
		return domain.FileOperationFailed("encode", r.filePath, err)
	}

	return fileio.WriteFileAtomic(r.filePath, data, 0o644)
}
