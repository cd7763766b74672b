package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"syscall"

	"github.com/spf13/cobra"

	"geektools.dev/cli/internal/config"
	"geektools.dev/cli/internal/core/domain"
	"geektools.dev/cli/internal/interfaces/di"
)

var (
	Version   = "dev"     // Overridden by ldflags
	BuildTime = "unknown" // Overridden by ldflags
)

// globalFlags are the persistent flags shared by every command
type globalFlags struct {
	configPath string
	debug      bool
	logLevel   string
	pluginsDir string
}

// app carries the state built before a command runs
type app struct {
	flags     globalFlags
	stdin     io.Reader
	stdout    io.Writer
	stderr    io.Writer
	container *di.Container
}

// NewRootCommand RootCommand represents the base command when called without any subcommands
func NewRootCommand() *cobra.Command {
	return newRootCommand(&app{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr})
}

func newRootCommand(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "geektools",
		Short: "geektools - plugin and script manager",
		Long: `geektools installs script plugins from local archives or a marketplace
and runs built-in and plugin scripts with their imports resolved.

Plugins are gzip tar archives holding an info.json manifest and a scripts
directory. Scripts may import other scripts with "#@import <name>".`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	rootCmd.SetIn(a.stdin)
	rootCmd.SetOut(a.stdout)
	rootCmd.SetErr(a.stderr)
	rootCmd.SetVersionTemplate(fmt.Sprintf("{{.Name}} version {{.Version}}\nBuild time: %s\nGo version: %s\nPlatform: %s/%s\n",
		BuildTime, goVersion(), runtime.GOOS, runtime.GOARCH))

	rootCmd.PersistentFlags().StringVar(&a.flags.configPath, "config", "", "Config file path (default is $HOME/.geektools/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&a.flags.debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&a.flags.logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&a.flags.pluginsDir, "plugins-dir", "", "Directory plugins are installed into")

	rootCmd.AddCommand(newPluginsCommand(a))
	rootCmd.AddCommand(newScriptsCommand(a))
	rootCmd.AddCommand(newConfigCommand(a))
	rootCmd.AddCommand(newValidateCommand(a))

	return rootCmd
}

// setup loads the configuration, applies flag overrides and builds the container
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.flags.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := a.applyOverrides(cmd, cfg); err != nil {
		return fmt.Errorf("failed to apply configuration overrides: %w", err)
	}

	container, err := di.NewContainer(cfg, di.Options{
		ToolVersion: Version,
		Stdin:       a.stdin,
		Stdout:      a.stdout,
		Stderr:      a.stderr,
	})
	if err != nil {
		return err
	}
	a.container = container
	return nil
}

// applyOverrides applies flags that were set explicitly on top of cfg
func (a *app) applyOverrides(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("debug") {
		cfg.Debug = a.flags.debug
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = a.flags.logLevel
	}
	if flags.Changed("plugins-dir") {
		dir, err := filepath.Abs(a.flags.pluginsDir)
		if err != nil {
			return err
		}
		cfg.PluginsDir = dir
	}
	return cfg.Validate()
}

// goVersion returns the Go version used to build the binary
func goVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		return info.GoVersion
	}
	return "unknown"
}

// exitCode maps an error returned by a command to the process exit status
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		return 130
	case domain.KindOf(err) != domain.KindUnknown:
		return 2
	default:
		return 1
	}
}

// Execute adds all child commands to the root command and runs it until
// completion or an interrupt, returning the exit status
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := NewRootCommand()
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return exitCode(err)
}
