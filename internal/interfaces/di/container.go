package di

import (
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-hclog"

	"geektools.dev/cli/internal/application/services"
	"geektools.dev/cli/internal/config"
	plugindomain "geektools.dev/cli/internal/core/domain/plugin"
	"geektools.dev/cli/internal/core/ports"
	archiveinfra "geektools.dev/cli/internal/infrastructure/archive"
	"geektools.dev/cli/internal/infrastructure/marketplace"
	plugininfra "geektools.dev/cli/internal/infrastructure/plugin"
	"geektools.dev/cli/internal/infrastructure/process"
	"geektools.dev/cli/internal/infrastructure/recovery"
	scriptinfra "geektools.dev/cli/internal/infrastructure/scripts"
	"geektools.dev/cli/internal/logging"
)

// Options carries what the container cannot read from the configuration
type Options struct {
	// ToolVersion gates plugins declaring min_tool_version.
	ToolVersion string
	Stdin       io.Reader
	Stdout      io.Writer
	Stderr      io.Writer
	// LogOutput defaults to Stderr.
	LogOutput io.Writer
}

// Container holds all application dependencies
type Container struct {
	Config *config.Config
	Logger hclog.Logger

	// Infrastructure
	Recovery    *recovery.Executor
	Marketplace *marketplace.Client

	// Application services
	Registry *services.PluginRegistry
	Scripts  *services.ScriptService
}

// NewContainer creates and wires every component from cfg
func NewContainer(cfg *config.Config, opts Options) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.LogOutput == nil {
		opts.LogOutput = opts.Stderr
	}
	if opts.ToolVersion == "" {
		opts.ToolVersion = plugininfra.DevVersion
	}

	c := &Container{
		Config: cfg,
		Logger: logging.New(logging.Options{
			Level:  cfg.LogLevel,
			Debug:  cfg.Debug,
			JSON:   cfg.LogFormat == "json",
			Output: opts.LogOutput,
		}),
	}

	if err := c.initializeComponents(opts); err != nil {
		return nil, fmt.Errorf("failed to initialize components: %w", err)
	}
	return c, nil
}

func (c *Container) initializeComponents(opts Options) error {
	cfg := c.Config

	// 1. Infrastructure
	c.Recovery = recovery.New(cfg.RetryPolicy(), c.Logger)
	c.Marketplace = marketplace.NewClient(marketplace.Options{
		BaseURL:   cfg.MarketplaceURL,
		TempDir:   cfg.TempDir,
		Timeout:   cfg.HTTPTimeout,
		UserAgent: "geektools-cli/" + opts.ToolVersion,
	}, c.Recovery, c.Logger)

	runner := process.NewExecutor(process.Options{
		Stdin:  opts.Stdin,
		Stdout: opts.Stdout,
		Stderr: opts.Stderr,
	}, c.Logger)

	// 2. Plugin registry
	registry, err := services.NewPluginRegistry(services.PluginRegistryOptions{
		PluginsDir: cfg.PluginsDir,
		Store:      plugininfra.NewFileSystemRegistry(cfg.PluginsDir),
		Extractor:  archiveinfra.NewExtractor(cfg.TempDir, c.Logger),
		Validator:  plugininfra.NewManifestValidator(opts.ToolVersion),
		Retrier:    c.Recovery,
		Logger:     c.Logger,
	})
	if err != nil {
		return err
	}
	c.Registry = registry

	// 3. Scripts
	c.Scripts = services.NewScriptService(services.ScriptServiceOptions{
		Builtin: scriptinfra.NewEmbeddedSource(),
		Plugins: registry,
		PluginSource: func(p plugindomain.InstalledPlugin) ports.ScriptSource {
			return scriptinfra.NewPluginSource(p)
		},
		Materializer: scriptinfra.NewMaterializer(cfg.ScriptsDir, c.Logger),
		Runner:       runner,
		Logger:       c.Logger,
	})

	c.Logger.Debug("container initialized",
		"plugins_dir", cfg.PluginsDir,
		"scripts_dir", cfg.ScriptsDir,
		"config", cfg.Source)
	return nil
}
