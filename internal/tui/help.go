package tui

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/lipgloss"
)

var (
	// HelpOverlayStyle defines the style for the help overlay container.
	HelpOverlayStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(1, 2).
		MarginTop(1)
)

// HelpModel wraps the bubbles help component.
type HelpModel struct {
	help   help.Model
	keymap KeyMap
}

// NewHelpModel creates a new help overlay model.
func NewHelpModel(keymap KeyMap) HelpModel {
	h := help.New()
	h.ShowAll = true

	return HelpModel{
		help:   h,
		keymap: keymap,
	}
}

// View renders the help overlay with a legend for card markers.
func (m HelpModel) View(width int) string {
	m.help.Width = max(width-8, 20) // Account for padding and border
	legend := dimStyle.Render("#N issue or PR number · (draft) draft item · ✓ closed · ⇄ merged")
	return HelpOverlayStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Keys"),
		m.help.View(m.keymap),
		"",
		legend,
	))
}
