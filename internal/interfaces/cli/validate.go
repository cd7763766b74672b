package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// errValidationFailed is returned when any check reports a problem
var errValidationFailed = errors.New("validation failed")

// newValidateCommand creates the validate command
func newValidateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [archive]",
		Short: "Check the installation and, optionally, a plugin archive",
		Long: `Validate the geektools installation.

This command will:
- Report the configuration in use
- Check that every installed plugin still has its directory
- Report plugin directories missing from the registry
- Check the built-in script catalogue
- With an archive argument, extract and validate it without installing`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.OutOrStdout(), a, args)
		},
	}
}

// runValidate handles the validation process
func runValidate(out io.Writer, a *app, args []string) error {
	c := a.container
	failed := false
	check := func(label string, err error, detail string) {
		fmt.Fprintf(out, "%-28s ", label+"...")
		if err != nil {
			failed = true
			fmt.Fprintln(out, warnStyle.Render("FAIL")+" "+err.Error())
			return
		}
		fmt.Fprintln(out, enabledStyle.Render("ok")+" "+detail)
	}

	source := c.Config.Source
	if source == "" {
		source = "defaults"
	}
	check("Configuration", c.Config.Validate(), source)

	var brokenErr error
	if broken := c.Registry.Broken(); len(broken) > 0 {
		brokenErr = fmt.Errorf("missing directories for %s", joinIDs(broken))
	}
	check("Installed plugins", brokenErr, fmt.Sprintf("%d installed", len(c.Registry.List())))

	orphans, err := c.Registry.Orphans()
	if err == nil && len(orphans) > 0 {
		err = fmt.Errorf("unregistered directories %s (run 'geektools plugins reconcile --remove')", joinIDs(orphans))
	}
	check("Plugins directory", err, c.Registry.PluginsDir())

	infos, err := c.Scripts.Catalogue()
	check("Script catalogue", err, fmt.Sprintf("%d scripts", len(infos)))

	if len(args) == 1 {
		manifest, err := c.Registry.Inspect(args[0])
		detail := ""
		if err == nil {
			detail = fmt.Sprintf("%s %s (%d scripts)", manifest.ID, manifest.Version, len(manifest.Scripts))
		}
		check("Archive", err, detail)
	}

	if failed {
		return errValidationFailed
	}
	return nil
}
