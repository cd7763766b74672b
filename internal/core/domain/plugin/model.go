package plugindomain

import (
	"path/filepath"
	"time"
)

const (
	// ManifestFile is the manifest location relative to a plugin root.
	ManifestFile = "info.json"
	// ScriptsDir holds every script a plugin ships.
	ScriptsDir = "scripts"
	// RegistryFile is the registry document inside the plugins directory.
	RegistryFile = "registry.json"
)

// Manifest describes a plugin's identity, scripts and dependencies
type Manifest struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	Version        string        `json:"version"`
	Description    string        `json:"description"`
	Author         string        `json:"author"`
	Scripts        []ScriptEntry `json:"scripts"`
	Dependencies   []string      `json:"dependencies"`
	Tags           []string      `json:"tags"`
	MinToolVersion string        `json:"min_tool_version,omitempty"`
}

// ScriptEntry is a single script declared by a manifest
type ScriptEntry struct {
	Name        string `json:"name"`
	File        string `json:"file"`
	Description string `json:"description"`
	Executable  bool   `json:"executable"`
}

// InstalledPlugin is the registry record of an installed plugin
type InstalledPlugin struct {
	Manifest    Manifest  `json:"manifest"`
	InstallPath string    `json:"install_path"`
	InstalledAt time.Time `json:"installed_at"`
	Enabled     bool      `json:"enabled"`
}

// ScriptsPath returns the directory the plugin's scripts were installed to
func (p InstalledPlugin) ScriptsPath() string {
	return filepath.Join(p.InstallPath, ScriptsDir)
}

// ScriptPath returns the expected on-disk path of a declared script
func (p InstalledPlugin) ScriptPath(entry ScriptEntry) string {
	return filepath.Join(p.ScriptsPath(), filepath.FromSlash(entry.File))
}

// EnabledScript is a runnable script contributed by an enabled plugin
type EnabledScript struct {
	Label       string
	Description string
	Path        string
	PluginID    string
	File        string
}

// LabelFor combines script and plugin names so equal script names from
// different plugins stay distinguishable.
func LabelFor(script ScriptEntry, manifest Manifest) string {
	return script.Name + " - " + manifest.Name
}
