package services

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"geektools.dev/cli/internal/core/domain"
	plugindomain "geektools.dev/cli/internal/core/domain/plugin"
	"geektools.dev/cli/internal/core/ports"
	"geektools.dev/cli/internal/infrastructure/fileio"
)

// PluginRegistryOptions wires a PluginRegistry
type PluginRegistryOptions struct {
	PluginsDir string
	Store      ports.RegistryStore
	Extractor  ports.ArchiveExtractor
	Validator  ports.ManifestValidator
	Retrier    ports.Retrier
	Logger     hclog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// PluginRegistry owns the installed plugins. Every operation reads, mutates
// and persists the registry under one lock.
type PluginRegistry struct {
	mu      sync.Mutex
	plugins map[string]plugindomain.InstalledPlugin

	pluginsDir string
	store      ports.RegistryStore
	extractor  ports.ArchiveExtractor
	validator  ports.ManifestValidator
	retrier    ports.Retrier
	logger     hclog.Logger
	now        func() time.Time
}

// NewPluginRegistry loads the persisted registry and returns the manager
func NewPluginRegistry(opts PluginRegistryOptions) (*PluginRegistry, error) {
	if opts.Logger == nil {
		opts.Logger = hclog.NewNullLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Retrier == nil {
		opts.Retrier = directRetrier{}
	}

	plugins, err := opts.Store.Load()
	if err != nil {
		return nil, err
	}

	return &PluginRegistry{
		plugins:    plugins,
		pluginsDir: opts.PluginsDir,
		store:      opts.Store,
		extractor:  opts.Extractor,
		validator:  opts.Validator,
		retrier:    opts.Retrier,
		logger:     opts.Logger.Named("registry"),
		now:        opts.Now,
	}, nil
}

// PluginsDir returns the directory plugins are installed under
func (r *PluginRegistry) PluginsDir() string {
	return r.pluginsDir
}

// Install extracts and validates archivePath, copies it into the plugins
// directory and records it as enabled. The extraction directory is always
// removed.
func (r *PluginRegistry) Install(ctx context.Context, archivePath string) (plugindomain.InstalledPlugin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tempDir, err := r.extractor.Extract(archivePath)
	if err != nil {
		return plugindomain.InstalledPlugin{}, err
	}
	defer func() {
		if err := fileio.RemoveDir(tempDir); err != nil {
			r.logger.Warn("failed to remove extraction directory", "path", tempDir, "error", err)
		}
	}()

	manifest, err := r.validator.Validate(tempDir)
	if err != nil {
		return plugindomain.InstalledPlugin{}, err
	}

	if _, exists := r.plugins[manifest.ID]; exists {
		return plugindomain.InstalledPlugin{}, domain.PluginAlreadyInstalled(manifest.ID)
	}
	for _, dep := range manifest.Dependencies {
		if _, ok := r.plugins[dep]; !ok {
			return plugindomain.InstalledPlugin{}, domain.MissingDependency(dep)
		}
	}

	target := filepath.Join(r.pluginsDir, manifest.ID)
	err = r.retrier.Run(ctx, func(context.Context) error {
		// a directory without a registry record is left over from an earlier failure
		if err := fileio.RemoveDir(target); err != nil {
			return err
		}
		return fileio.CopyTree(tempDir, target)
	})
	if err != nil {
		r.discard(target)
		return plugindomain.InstalledPlugin{}, err
	}

	record := plugindomain.InstalledPlugin{
		Manifest:    manifest,
		InstallPath: target,
		InstalledAt: r.now().UTC(),
		Enabled:     true,
	}
	if err := markExecutable(record); err != nil {
		r.discard(target)
		return plugindomain.InstalledPlugin{}, err
	}

	r.plugins[manifest.ID] = record
	if err := r.persist(ctx); err != nil {
		delete(r.plugins, manifest.ID)
		return plugindomain.InstalledPlugin{}, fmt.Errorf("failed to record plugin %s: %w", manifest.ID, err)
	}

	r.logger.Info("installed plugin", "id", manifest.ID, "version", manifest.Version, "path", target)
	return record, nil
}

// Inspect extracts and validates archivePath without installing it. It
// reports the same errors Install would, except for copy and persist failures.
func (r *PluginRegistry) Inspect(archivePath string) (plugindomain.Manifest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tempDir, err := r.extractor.Extract(archivePath)
	if err != nil {
		return plugindomain.Manifest{}, err
	}
	defer func() {
		if err := fileio.RemoveDir(tempDir); err != nil {
			r.logger.Warn("failed to remove extraction directory", "path", tempDir, "error", err)
		}
	}()

	manifest, err := r.validator.Validate(tempDir)
	if err != nil {
		return plugindomain.Manifest{}, err
	}
	if _, exists := r.plugins[manifest.ID]; exists {
		return manifest, domain.PluginAlreadyInstalled(manifest.ID)
	}
	for _, dep := range manifest.Dependencies {
		if _, ok := r.plugins[dep]; !ok {
			return manifest, domain.MissingDependency(dep)
		}
	}
	return manifest, nil
}

// Uninstall removes the plugin's directory and its registry record
func (r *PluginRegistry) Uninstall(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.plugins[id]
	if !ok {
		return domain.PluginNotInstalled(id)
	}

	if err := fileio.RemoveDir(record.InstallPath); err != nil {
		return err
	}

	delete(r.plugins, id)
	if err := r.persist(ctx); err != nil {
		r.plugins[id] = record
		return fmt.Errorf("failed to record removal of plugin %s: %w", id, err)
	}

	r.logger.Info("uninstalled plugin", "id", id)
	return nil
}

// Toggle sets the enabled flag of a plugin
func (r *PluginRegistry) Toggle(ctx context.Context, id string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.plugins[id]
	if !ok {
		return domain.PluginNotInstalled(id)
	}
	if record.Enabled == enabled {
		return nil
	}

	previous := record
	record.Enabled = enabled
	r.plugins[id] = record
	if err := r.persist(ctx); err != nil {
		r.plugins[id] = previous
		return fmt.Errorf("failed to update plugin %s: %w", id, err)
	}

	r.logger.Info("toggled plugin", "id", id, "enabled", enabled)
	return nil
}

// List returns every installed plugin sorted by id
func (r *PluginRegistry) List() []plugindomain.InstalledPlugin {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := make([]plugindomain.InstalledPlugin, 0, len(r.plugins))
	for _, p := range r.plugins {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Manifest.ID < list[j].Manifest.ID })
	return list
}

// Get returns the record of an installed plugin
func (r *PluginRegistry) Get(id string) (plugindomain.InstalledPlugin, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.plugins[id]
	return p, ok
}

// EnabledScripts lists the scripts of enabled plugins whose files are
// present on disk, ordered by plugin id and then declaration order
func (r *PluginRegistry) EnabledScripts() []plugindomain.EnabledScript {
	var scripts []plugindomain.EnabledScript
	for _, p := range r.List() {
		if !p.Enabled {
			continue
		}
		for _, entry := range p.Manifest.Scripts {
			path := p.ScriptPath(entry)
			if !fileio.IsFile(path) {
				r.logger.Debug("skipping missing plugin script", "plugin", p.Manifest.ID, "path", path)
				continue
			}
			scripts = append(scripts, plugindomain.EnabledScript{
				Label:       plugindomain.LabelFor(entry, p.Manifest),
				Description: entry.Description,
				Path:        path,
				PluginID:    p.Manifest.ID,
				File:        entry.File,
			})
		}
	}
	return scripts
}

// Orphans lists directories in the plugins directory that have no
// registry record
func (r *PluginRegistry) Orphans() ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.orphans()
}

// Broken lists installed plugins whose directory no longer exists
func (r *PluginRegistry) Broken() []string {
	var broken []string
	for _, p := range r.List() {
		if !fileio.IsDir(p.InstallPath) {
			broken = append(broken, p.Manifest.ID)
		}
	}
	return broken
}

// RemoveOrphans deletes every orphaned directory and returns their names
func (r *PluginRegistry) RemoveOrphans() ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	orphans, err := r.orphans()
	if err != nil {
		return nil, err
	}
	for _, name := range orphans {
		if err := fileio.RemoveDir(filepath.Join(r.pluginsDir, name)); err != nil {
			return nil, err
		}
		r.logger.Info("removed orphaned plugin directory", "name", name)
	}
	return orphans, nil
}

func (r *PluginRegistry) orphans() ([]string, error) {
	dirs, err := fileio.ListDirs(r.pluginsDir)
	if err != nil {
		return nil, err
	}

	var orphans []string
	for _, name := range dirs {
		if _, ok := r.plugins[name]; !ok {
			orphans = append(orphans, name)
		}
	}
	sort.Strings(orphans)
	return orphans, nil
}

func (r *PluginRegistry) persist(ctx context.Context) error {
	return r.retrier.Run(ctx, func(context.Context) error {
		return r.store.Save(r.plugins)
	})
}

func (r *PluginRegistry) discard(dir string) {
	if err := fileio.RemoveDir(dir); err != nil {
		r.logger.Warn("failed to remove partial install", "path", dir, "error", err)
	}
}

func markExecutable(p plugindomain.InstalledPlugin) error {
	if !fileio.SupportsExecutableBit() {
		return nil
	}
	for _, entry := range p.Manifest.Scripts {
		if !entry.Executable {
			continue
		}
		if err := fileio.SetExecutable(p.ScriptPath(entry)); err != nil {
			return err
		}
	}
	return nil
}

// directRetrier runs operations once
type directRetrier struct{}

func (directRetrier) Run(ctx context.Context, op func(context.Context) error) error {
	return op(ctx)
}
