package plugininfra

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"

	"geektools.dev/cli/internal/core/domain"
	plugindomain "geektools.dev/cli/internal/core/domain/plugin"
	"geektools.dev/cli/internal/infrastructure/fileio"
)

// DevVersion is the tool version of unreleased builds; it satisfies any
// min_tool_version requirement.
const DevVersion = "dev"

// ManifestValidator checks an extracted plugin package before install
type ManifestValidator struct {
	toolVersion string
}

// NewManifestValidator creates a validator comparing min_tool_version
// against toolVersion
func NewManifestValidator(toolVersion string) *ManifestValidator {
	return &ManifestValidator{toolVersion: toolVersion}
}

// Validate reads the manifest in pluginDir and verifies that every script
// it declares is present. Checks run in a fixed order so the first failure
// is reported.
func (v *ManifestValidator) Validate(pluginDir string) (plugindomain.Manifest, error) {
	manifestPath := filepath.Join(pluginDir, plugindomain.ManifestFile)
	data, err := fileio.ReadBytes(manifestPath)
	if err != nil {
		if _, missing := domain.IsMissingFile(err); missing {
			return plugindomain.Manifest{}, domain.MissingManifest(pluginDir)
		}
		return plugindomain.Manifest{}, err
	}

	var manifest plugindomain.Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return plugindomain.Manifest{}, domain.InvalidManifest("manifest is not valid JSON", err)
	}

	if err := validateFields(manifest); err != nil {
		return plugindomain.Manifest{}, err
	}

	scriptsDir := filepath.Join(pluginDir, plugindomain.ScriptsDir)
	if info, err := os.Stat(scriptsDir); err != nil || !info.IsDir() {
		return plugindomain.Manifest{}, domain.MissingScriptsDir(scriptsDir)
	}

	for _, script := range manifest.Scripts {
		rel := filepath.FromSlash(script.File)
		if script.File == "" || !filepath.IsLocal(rel) {
			return plugindomain.Manifest{}, domain.MissingScriptFile(script.File)
		}
		info, err := os.Stat(filepath.Join(scriptsDir, rel))
		if err != nil || info.IsDir() {
			return plugindomain.Manifest{}, domain.MissingScriptFile(script.File)
		}
	}

	if err := v.checkToolVersion(manifest.MinToolVersion); err != nil {
		return plugindomain.Manifest{}, err
	}

	return manifest, nil
}

func validateFields(m plugindomain.Manifest) error {
	if strings.TrimSpace(m.ID) == "" {
		return domain.InvalidManifest("id is required", nil)
	}
	if !IsSafeID(m.ID) {
		return domain.InvalidManifest(fmt.Sprintf("id %q cannot name a plugin directory", m.ID), nil)
	}
	if strings.TrimSpace(m.Name) == "" {
		return domain.InvalidManifest("name is required", nil)
	}
	if strings.TrimSpace(m.Version) == "" {
		return domain.InvalidManifest("version is required", nil)
	}
	return nil
}

// IsSafeID reports whether id can name a directory inside the plugins
// directory without escaping it or colliding with the registry document
// and its temporary files
func IsSafeID(id string) bool {
	if id == "" || strings.HasPrefix(id, ".") {
		return false
	}
	if strings.ContainsAny(id, `/\`) {
		return false
	}
	if strings.EqualFold(id, plugindomain.RegistryFile) {
		return false
	}
	return filepath.IsLocal(id)
}

func (v *ManifestValidator) checkToolVersion(minVersion string) error {
	if minVersion == "" {
		return nil
	}
	required, err := semver.NewVersion(minVersion)
	if err != nil {
		return domain.InvalidManifest(fmt.Sprintf("min_tool_version %q is not a semantic version", minVersion), err)
	}

	if v.toolVersion == "" || v.toolVersion == DevVersion {
		return nil
	}
	current, err := semver.NewVersion(v.toolVersion)
	if err != nil {
		// unparsable local builds are treated like dev builds
		return nil
	}
	if current.LessThan(required) {
		return domain.IncompatibleToolVersion(required.String(), current.String())
	}
	return nil
}
