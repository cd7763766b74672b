package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"

	"geektools.dev/cli/internal/application/services"
	plugindomain "geektools.dev/cli/internal/core/domain/plugin"
	"geektools.dev/cli/internal/infrastructure/marketplace"
)

var (
	enabledStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("46"))
	disabledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	hintStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// statusBadge renders the enabled state of a plugin
func statusBadge(enabled bool) string {
	if enabled {
		return enabledStyle.Render("enabled")
	}
	return disabledStyle.Render("disabled")
}

func newTable(out io.Writer, header table.Row) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.Style().Options.DrawBorder = false
	t.Style().Options.SeparateColumns = false
	t.AppendHeader(header)
	return t
}

// renderPlugins writes the installed plugins as a table
func renderPlugins(out io.Writer, plugins []plugindomain.InstalledPlugin) {
	if len(plugins) == 0 {
		fmt.Fprintln(out, hintStyle.Render("No plugins installed."))
		return
	}

	t := newTable(out, table.Row{"ID", "NAME", "VERSION", "STATUS", "SCRIPTS", "INSTALLED"})
	for _, p := range plugins {
		t.AppendRow(table.Row{
			p.Manifest.ID,
			p.Manifest.Name,
			p.Manifest.Version,
			statusBadge(p.Enabled),
			len(p.Manifest.Scripts),
			p.InstalledAt.Local().Format("2006-01-02 15:04"),
		})
	}
	t.Render()
}

// renderEnabledScripts writes the scripts of enabled plugins
func renderEnabledScripts(out io.Writer, scripts []plugindomain.EnabledScript) {
	if len(scripts) == 0 {
		fmt.Fprintln(out, hintStyle.Render("No plugin scripts available."))
		return
	}

	t := newTable(out, table.Row{"SCRIPT", "REF", "DESCRIPTION"})
	for _, s := range scripts {
		ref := services.ScriptRef{PluginID: s.PluginID, Name: s.File}
		t.AppendRow(table.Row{s.Label, ref.String(), s.Description})
	}
	t.Render()
}

// renderCatalogue writes the runnable scripts grouped by origin
func renderCatalogue(out io.Writer, infos []services.ScriptInfo) {
	if len(infos) == 0 {
		fmt.Fprintln(out, hintStyle.Render("No scripts available."))
		return
	}

	t := newTable(out, table.Row{"REF", "ORIGIN", "DESCRIPTION"})
	for _, info := range infos {
		t.AppendRow(table.Row{info.Ref, info.Origin, info.Description})
	}
	t.Render()
}

// renderArchives writes the archives found by a local scan
func renderArchives(out io.Writer, archives []marketplace.LocalArchive) {
	if len(archives) == 0 {
		fmt.Fprintln(out, hintStyle.Render("No plugin archives found."))
		return
	}

	t := newTable(out, table.Row{"NAME", "VERSION", "SIZE", "MODIFIED", "PATH"})
	for _, a := range archives {
		t.AppendRow(table.Row{
			a.Name,
			a.Version,
			formatSize(a.Size),
			a.Modified.Local().Format("2006-01-02 15:04"),
			a.Path,
		})
	}
	t.Render()
}

// renderOrder writes a resolution order, marking entries that are not executed
func renderOrder(out io.Writer, order []string, executable []string) {
	runs := make(map[string]bool, len(executable))
	for _, name := range executable {
		runs[name] = true
	}

	step := 0
	for _, name := range order {
		if !runs[name] {
			fmt.Fprintf(out, "   %s %s\n", name, hintStyle.Render("(data)"))
			continue
		}
		step++
		fmt.Fprintf(out, "%2d %s\n", step, name)
	}
}

// formatSize formats a byte count for display
func formatSize(size int64) string {
	switch {
	case size < 1024:
		return fmt.Sprintf("%dB", size)
	case size < 1024*1024:
		return fmt.Sprintf("%.1fK", float64(size)/1024)
	default:
		return fmt.Sprintf("%.1fM", float64(size)/(1024*1024))
	}
}

// truncateString truncates a string to the specified length
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// joinIDs renders a list of plugin ids for messages
func joinIDs(ids []string) string {
	return strings.Join(ids, ", ")
}
