package cli

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	plugindomain "geektools.dev/cli/internal/core/domain/plugin"
)

// pluginToggler is the part of the registry the manage view needs
type pluginToggler interface {
	List() []plugindomain.InstalledPlugin
	Toggle(ctx context.Context, id string, enabled bool) error
}

// newPluginsManageCommand creates the interactive manage command
func newPluginsManageCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "manage",
		Short: "Enable and disable plugins interactively",
		Long: `Open a terminal view listing installed plugins.

Controls: [↑↓/jk] move, [space/enter] enable or disable, [q] quit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			model := newManageModel(cmd.Context(), a.container.Registry)
			program := tea.NewProgram(model,
				tea.WithAltScreen(),
				tea.WithContext(cmd.Context()),
				tea.WithInput(cmd.InOrStdin()),
				tea.WithOutput(cmd.OutOrStdout()),
			)
			if _, err := program.Run(); err != nil {
				return fmt.Errorf("plugin manager failed: %w", err)
			}
			return nil
		},
	}
}

// manageModel holds the state of the manage view
type manageModel struct {
	ctx      context.Context
	registry pluginToggler
	plugins  []plugindomain.InstalledPlugin
	cursor   int
	busy     bool
	status   string
	err      error
}

func newManageModel(ctx context.Context, registry pluginToggler) manageModel {
	return manageModel{
		ctx:      ctx,
		registry: registry,
		plugins:  registry.List(),
	}
}

// toggledMsg is sent when a toggle has been persisted or failed
type toggledMsg struct {
	id      string
	enabled bool
	err     error
}

// Init implements tea.Model
func (m manageModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model
func (m manageModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit

		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil

		case "down", "j":
			if m.cursor < len(m.plugins)-1 {
				m.cursor++
			}
			return m, nil

		case " ", "enter":
			if m.busy || len(m.plugins) == 0 {
				return m, nil
			}
			m.busy = true
			m.err = nil
			p := m.plugins[m.cursor]
			return m, m.toggleCmd(p.Manifest.ID, !p.Enabled)
		}

	case toggledMsg:
		m.busy = false
		if msg.err != nil {
			m.err = msg.err
			m.status = ""
		} else {
			m.status = msg.id + " disabled"
			if msg.enabled {
				m.status = msg.id + " enabled"
			}
		}
		m.plugins = m.registry.List()
		if m.cursor >= len(m.plugins) {
			m.cursor = max(len(m.plugins)-1, 0)
		}
		return m, nil
	}

	return m, nil
}

func (m manageModel) toggleCmd(id string, enabled bool) tea.Cmd {
	return func() tea.Msg {
		return toggledMsg{id: id, enabled: enabled, err: m.registry.Toggle(m.ctx, id, enabled)}
	}
}

// View implements tea.Model
func (m manageModel) View() string {
	header := titleStyle.Render("geektools plugins")

	var body string
	if len(m.plugins) == 0 {
		body = hintStyle.Render("\n  No plugins installed.\n")
	} else {
		rows := make([]string, 0, len(m.plugins))
		for i, p := range m.plugins {
			cursor := "  "
			rowStyle := lipgloss.NewStyle()
			if i == m.cursor {
				cursor = "> "
				rowStyle = rowStyle.Bold(true)
			}
			line := fmt.Sprintf("%s%-24s %-10s %s",
				cursor,
				truncateString(p.Manifest.ID, 24),
				truncateString(p.Manifest.Version, 10),
				statusBadge(p.Enabled),
			)
			rows = append(rows, rowStyle.Render(line))
		}
		body = lipgloss.JoinVertical(lipgloss.Left, rows...)
	}

	var footer strings.Builder
	switch {
	case m.err != nil:
		footer.WriteString(warnStyle.Render("Error: " + m.err.Error()))
		footer.WriteString("\n")
	case m.status != "":
		footer.WriteString(m.status)
		footer.WriteString("\n")
	}
	footer.WriteString(hintStyle.Render("Controls: [↑↓] Navigate | [Space] Enable/Disable | [q] Quit"))

	return lipgloss.JoinVertical(lipgloss.Left, header, "", body, "", footer.String())
}
