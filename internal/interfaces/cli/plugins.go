package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"geektools.dev/cli/internal/infrastructure/fileio"
	"geektools.dev/cli/internal/infrastructure/marketplace"
)

// newPluginsCommand creates the plugins command tree
func newPluginsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "Manage geektools plugins",
		Long: `Install, remove, enable and disable script plugins.

A plugin is a gzip tar archive with an info.json manifest and a scripts
directory. Installed plugins live in the plugins directory and are recorded
in its registry.json.`,
		Example: `  # Install a local archive
  geektools plugins install ./net-tools-v1.2.0.tar.gz

  # Download and install from the marketplace
  geektools plugins install --url net-tools-v1.2.0.tar.gz

  # Hide a plugin's scripts without removing it
  geektools plugins disable net-tools

  # Remove a plugin
  geektools plugins uninstall net-tools`,
	}

	cmd.AddCommand(newPluginsInstallCommand(a))
	cmd.AddCommand(newPluginsUninstallCommand(a))
	cmd.AddCommand(newPluginsToggleCommand(a, true))
	cmd.AddCommand(newPluginsToggleCommand(a, false))
	cmd.AddCommand(newPluginsListCommand(a))
	cmd.AddCommand(newPluginsScriptsCommand(a))
	cmd.AddCommand(newPluginsReconcileCommand(a))
	cmd.AddCommand(newPluginsScanCommand(a))
	cmd.AddCommand(newPluginsManageCommand(a))

	return cmd
}

// newPluginsInstallCommand creates the install command
func newPluginsInstallCommand(a *app) *cobra.Command {
	var url string

	cmd := &cobra.Command{
		Use:   "install [archive]",
		Short: "Install a plugin archive",
		Long: `Install a plugin from a local .tar.gz archive, or download it first with --url.

--url accepts an absolute http(s) URL or a path relative to the configured
marketplace_url.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if url == "" && len(args) != 1 {
				return errors.New("requires an archive path or --url")
			}
			if url != "" && len(args) != 0 {
				return errors.New("an archive path cannot be combined with --url")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if url != "" {
				return runPluginsInstallURL(cmd, a, url)
			}
			return runPluginsInstall(cmd, a, args[0])
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "Download the archive from this URL or marketplace path")
	return cmd
}

func runPluginsInstall(cmd *cobra.Command, a *app, archive string) error {
	record, err := a.container.Registry.Install(cmd.Context(), archive)
	if err != nil {
		return fmt.Errorf("failed to install %s: %w", archive, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s %s (%d scripts)\n",
		titleStyle.Render("Installed"),
		record.Manifest.ID,
		record.Manifest.Version,
		len(record.Manifest.Scripts),
	)
	return nil
}

func runPluginsInstallURL(cmd *cobra.Command, a *app, ref string) error {
	fmt.Fprintf(cmd.OutOrStdout(), "Downloading %s...\n", ref)

	path, err := a.container.Marketplace.Download(cmd.Context(), ref)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", ref, err)
	}
	defer func() {
		if err := fileio.RemoveFile(path); err != nil {
			a.container.Logger.Warn("failed to remove downloaded archive", "path", path, "error", err)
		}
	}()

	return runPluginsInstall(cmd, a, path)
}

// newPluginsUninstallCommand creates the uninstall command
func newPluginsUninstallCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "uninstall <plugin-id>",
		Aliases: []string{"remove"},
		Short:   "Remove an installed plugin",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.container.Registry.Uninstall(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", titleStyle.Render("Uninstalled"), args[0])
			return nil
		},
	}
}

// newPluginsToggleCommand creates the enable or disable command
func newPluginsToggleCommand(a *app, enable bool) *cobra.Command {
	use, short := "disable", "Hide a plugin's scripts without removing it"
	if enable {
		use, short = "enable", "Make a disabled plugin's scripts available again"
	}

	return &cobra.Command{
		Use:   use + " <plugin-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.container.Registry.Toggle(cmd.Context(), args[0], enable); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", args[0], statusBadge(enable))
			return nil
		},
	}
}

// newPluginsListCommand creates the list command
func newPluginsListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List installed plugins",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			renderPlugins(cmd.OutOrStdout(), a.container.Registry.List())
			return nil
		},
	}
}

// newPluginsScriptsCommand creates the scripts command
func newPluginsScriptsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "scripts",
		Short: "List the scripts of enabled plugins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			renderEnabledScripts(cmd.OutOrStdout(), a.container.Registry.EnabledScripts())
			return nil
		},
	}
}

// newPluginsReconcileCommand creates the reconcile command
func newPluginsReconcileCommand(a *app) *cobra.Command {
	var remove bool

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Report plugin directories missing from the registry",
		Long: `Report directories in the plugins directory that have no registry record,
usually left behind by an interrupted install. With --remove they are deleted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := a.container.Registry
			out := cmd.OutOrStdout()

			if remove {
				removed, err := registry.RemoveOrphans()
				if err != nil {
					return err
				}
				if len(removed) == 0 {
					fmt.Fprintln(out, "No orphaned plugin directories.")
					return nil
				}
				fmt.Fprintf(out, "Removed %d orphaned directories: %s\n", len(removed), joinIDs(removed))
				return nil
			}

			orphans, err := registry.Orphans()
			if err != nil {
				return err
			}
			if len(orphans) == 0 {
				fmt.Fprintln(out, "No orphaned plugin directories.")
				return nil
			}
			fmt.Fprintf(out, "%s %s\n", warnStyle.Render("Orphaned directories:"), joinIDs(orphans))
			fmt.Fprintln(out, hintStyle.Render("Run 'geektools plugins reconcile --remove' to delete them."))
			return nil
		},
	}

	cmd.Flags().BoolVar(&remove, "remove", false, "Delete orphaned directories")
	return cmd
}

// newPluginsScanCommand creates the scan command
func newPluginsScanCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "scan [dir...]",
		Short: "Find plugin archives on disk",
		Long: `List .tar.gz and .tar files that look like plugin archives. Without
arguments the configured scan_dirs are searched, or the current directory
plus Downloads, Desktop and Documents in the home directory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dirs := args
			if len(dirs) == 0 {
				dirs = a.container.Config.DefaultScanDirs()
			}
			renderArchives(cmd.OutOrStdout(), marketplace.ScanArchives(dirs))
			return nil
		},
	}
}
