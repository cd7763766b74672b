package ports

import (
	"context"

	plugindomain "geektools.dev/cli/internal/core/domain/plugin"
	"geektools.dev/cli/internal/core/scripts"
)

// ArchiveExtractor unpacks a plugin archive into a fresh directory owned by the caller
type ArchiveExtractor interface {
	Extract(archivePath string) (string, error)
}

// ManifestValidator reads and checks the manifest of an extracted package
type ManifestValidator interface {
	Validate(pluginDir string) (plugindomain.Manifest, error)
}

// RegistryStore persists the id to record mapping as a whole
type RegistryStore interface {
	Load() (map[string]plugindomain.InstalledPlugin, error)
	Save(plugins map[string]plugindomain.InstalledPlugin) error
}

// Retrier runs an operation under the recovery policy
type Retrier interface {
	Run(ctx context.Context, op func(context.Context) error) error
}

// ScriptRunner executes one materialized script
type ScriptRunner interface {
	RunScript(ctx context.Context, script string, env map[string]string) error
}

// Downloader fetches a remote plugin archive to a local file
type Downloader interface {
	Download(ctx context.Context, ref string) (string, error)
}

// ScriptSource provides script content by name within one namespace
type ScriptSource interface {
	Name() string
	Read(name string) ([]byte, error)
}

// BuiltinScripts is the source of scripts shipped with the tool
type BuiltinScripts interface {
	ScriptSource
	Catalogue() ([]scripts.CatalogueEntry, error)
}

// ScriptMaterializer writes script content where it can be executed
type ScriptMaterializer interface {
	Materialize(namespace, name string, data []byte) (string, error)
	Dir(namespace string) string
}
