package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"

	"geektools.dev/cli/internal/core/domain"
	plugindomain "geektools.dev/cli/internal/core/domain/plugin"
	"geektools.dev/cli/internal/core/ports"
	"geektools.dev/cli/internal/core/scripts"
)

// ScriptsDirEnv tells a running script where its imports were placed
const ScriptsDirEnv = "GEEKTOOLS_SCRIPTS_DIR"

// ErrPluginDisabled is returned when running a script of a disabled plugin
var ErrPluginDisabled = errors.New("plugin is disabled")

// ScriptRef names a built-in script or, as "<plugin>:<script>", a plugin script
type ScriptRef struct {
	PluginID string
	Name     string
}

// ParseScriptRef parses "name" or "plugin:name"
func ParseScriptRef(s string) ScriptRef {
	if id, name, ok := strings.Cut(s, ":"); ok && id != "" && name != "" {
		return ScriptRef{PluginID: id, Name: name}
	}
	return ScriptRef{Name: s}
}

// IsBuiltin reports whether the ref names a built-in script
func (r ScriptRef) IsBuiltin() bool {
	return r.PluginID == ""
}

func (r ScriptRef) String() string {
	if r.IsBuiltin() {
		return r.Name
	}
	return r.PluginID + ":" + r.Name
}

// ScriptInfo is one runnable entry of the script catalogue
type ScriptInfo struct {
	Ref         string
	Label       string
	Description string
	Origin      string
}

// PreparedRun holds the on-disk scripts of a resolved entry
type PreparedRun struct {
	Ref        ScriptRef
	Resolution *scripts.Resolution
	// Dir holds every script of the run and is exported as GEEKTOOLS_SCRIPTS_DIR.
	Dir string
	// Paths lists the scripts to execute, imports first.
	Paths []string
}

// ScriptServiceOptions wires a ScriptService
type ScriptServiceOptions struct {
	Builtin      ports.BuiltinScripts
	Plugins      *PluginRegistry
	PluginSource func(plugindomain.InstalledPlugin) ports.ScriptSource
	Materializer ports.ScriptMaterializer
	Runner       ports.ScriptRunner
	Logger       hclog.Logger
}

// ScriptService resolves, materializes and runs scripts
type ScriptService struct {
	builtin      ports.BuiltinScripts
	plugins      *PluginRegistry
	pluginSource func(plugindomain.InstalledPlugin) ports.ScriptSource
	materializer ports.ScriptMaterializer
	runner       ports.ScriptRunner
	logger       hclog.Logger
}

// NewScriptService creates the service
func NewScriptService(opts ScriptServiceOptions) *ScriptService {
	if opts.Logger == nil {
		opts.Logger = hclog.NewNullLogger()
	}
	return &ScriptService{
		builtin:      opts.Builtin,
		plugins:      opts.Plugins,
		pluginSource: opts.PluginSource,
		materializer: opts.Materializer,
		runner:       opts.Runner,
		logger:       opts.Logger.Named("scripts"),
	}
}

// Resolve returns the execution order of ref and its imports
func (s *ScriptService) Resolve(ref ScriptRef) (*scripts.Resolution, error) {
	source, name, _, err := s.locate(ref)
	if err != nil {
		return nil, err
	}
	return scripts.NewResolver(source, s.logger).Resolve(name)
}

// Prepare resolves ref and makes every script of the run available on
// disk. Built-in scripts are materialized; plugin scripts are used in place.
func (s *ScriptService) Prepare(ref ScriptRef) (*PreparedRun, error) {
	source, name, plugin, err := s.locate(ref)
	if err != nil {
		return nil, err
	}
	res, err := scripts.NewResolver(source, s.logger).Resolve(name)
	if err != nil {
		return nil, err
	}

	run := &PreparedRun{Ref: ref, Resolution: res}
	if plugin != nil {
		run.Dir = plugin.ScriptsPath()
		for _, n := range res.Executable {
			run.Paths = append(run.Paths, filepath.Join(run.Dir, filepath.FromSlash(n)))
		}
		return run, nil
	}

	run.Dir = s.materializer.Dir(source.Name())
	for _, n := range res.Order {
		data, err := source.Read(n)
		if err != nil {
			return nil, err
		}
		path, err := s.materializer.Materialize(source.Name(), n, data)
		if err != nil {
			return nil, err
		}
		if scripts.IsExecutable(n) {
			run.Paths = append(run.Paths, path)
		}
	}
	return run, nil
}

// Run prepares ref and executes its scripts in order, stopping at the
// first failure
func (s *ScriptService) Run(ctx context.Context, ref ScriptRef) error {
	run, err := s.Prepare(ref)
	if err != nil {
		return err
	}

	env := map[string]string{ScriptsDirEnv: run.Dir}
	for _, path := range run.Paths {
		s.logger.Debug("executing script", "ref", ref.String(), "path", path)
		if err := s.runner.RunScript(ctx, path, env); err != nil {
			return fmt.Errorf("running %s: %w", filepath.Base(path), err)
		}
	}
	return nil
}

// Catalogue lists the built-in scripts followed by the scripts of enabled plugins
func (s *ScriptService) Catalogue() ([]ScriptInfo, error) {
	builtins, err := s.builtin.Catalogue()
	if err != nil {
		return nil, err
	}

	infos := make([]ScriptInfo, 0, len(builtins))
	for _, b := range builtins {
		infos = append(infos, ScriptInfo{
			Ref:         b.Name,
			Label:       b.Name,
			Description: b.Description,
			Origin:      s.builtin.Name(),
		})
	}
	if s.plugins == nil {
		return infos, nil
	}
	for _, e := range s.plugins.EnabledScripts() {
		infos = append(infos, ScriptInfo{
			Ref:         ScriptRef{PluginID: e.PluginID, Name: e.File}.String(),
			Label:       e.Label,
			Description: e.Description,
			Origin:      e.PluginID,
		})
	}
	return infos, nil
}

// locate picks the source for ref and maps a declared script name to its file
func (s *ScriptService) locate(ref ScriptRef) (ports.ScriptSource, string, *plugindomain.InstalledPlugin, error) {
	if ref.Name == "" {
		return nil, "", nil, domain.ScriptNotFound(ref.String())
	}
	if ref.IsBuiltin() {
		return s.builtin, ref.Name, nil, nil
	}

	if s.plugins == nil {
		return nil, "", nil, domain.PluginNotInstalled(ref.PluginID)
	}
	plugin, ok := s.plugins.Get(ref.PluginID)
	if !ok {
		return nil, "", nil, domain.PluginNotInstalled(ref.PluginID)
	}
	if !plugin.Enabled {
		return nil, "", nil, fmt.Errorf("%w: %s", ErrPluginDisabled, ref.PluginID)
	}

	name := ref.Name
	for _, entry := range plugin.Manifest.Scripts {
		if entry.Name == ref.Name {
			name = entry.File
			break
		}
	}
	return s.pluginSource(plugin), name, &plugin, nil
}
