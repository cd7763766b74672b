package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"geektools.dev/cli/internal/application/services"
)

// newScriptsCommand creates the scripts command tree
func newScriptsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scripts",
		Short: "List, resolve and run scripts",
		Long: `Work with built-in scripts and the scripts of enabled plugins.

Built-in scripts are named directly ("sysinfo.sh"); plugin scripts are
named "<plugin-id>:<script>", where <script> is the declared name or file.`,
		Example: `  geektools scripts list
  geektools scripts resolve network_info.sh
  geektools scripts run net-tools:ping`,
	}

	cmd.AddCommand(newScriptsListCommand(a))
	cmd.AddCommand(newScriptsResolveCommand(a))
	cmd.AddCommand(newScriptsRunCommand(a))

	return cmd
}

func newScriptsListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List runnable scripts",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			infos, err := a.container.Scripts.Catalogue()
			if err != nil {
				return err
			}
			renderCatalogue(cmd.OutOrStdout(), infos)
			return nil
		},
	}
}

func newScriptsResolveCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <script>",
		Short: "Show the execution order of a script and its imports",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.container.Scripts.Resolve(services.ParseScriptRef(args[0]))
			if err != nil {
				return err
			}
			renderOrder(cmd.OutOrStdout(), res.Order, res.Executable)
			return nil
		},
	}
}

func newScriptsRunCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run <script>",
		Short: "Run a script after the scripts it imports",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref := services.ParseScriptRef(args[0])
			if err := a.container.Scripts.Run(cmd.Context(), ref); err != nil {
				return fmt.Errorf("script %s failed: %w", ref, err)
			}
			return nil
		},
	}
}
