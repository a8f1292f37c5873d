package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"
	"github.com/pkg/browser"

	"github.com/h0rv/ghp-dashboard/internal/domain"
)

// Layout constants
const (
	leftPanelRatio = 0.35
	minLeftWidth   = 30
	maxLeftWidth   = 50
	headerHeight   = 1
	footerHeight   = 1
	borderSize     = 2 // Top + bottom border
)

// Detail view styles
var (
	detailTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("205"))

	detailLabelStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("241"))

	detailValueStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252"))

	authorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")).
			Bold(true)

	bodyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	panelBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("240"))

	focusedPanelBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("205"))

	scrollIndicatorStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("205"))
)

// DetailModel is the read-only card view: metadata on the left, body on the right.
type DetailModel struct {
	item     domain.Item
	project  string
	viewport viewport.Model
	now      func() time.Time

	width  int
	height int
}

// NewDetailModel creates a detail view for item on the named project.
func NewDetailModel(item domain.Item, project string) DetailModel {
	vp := viewport.New(40, 10) // Resized on WindowSizeMsg
	vp.MouseWheelEnabled = true
	vp.MouseWheelDelta = 3

	m := DetailModel{
		item:     item,
		project:  project,
		viewport: vp,
		now:      time.Now,
	}
	m.updateViewportContent()
	return m
}

// Init requests the window size.
func (m DetailModel) Init() tea.Cmd {
	return tea.WindowSize()
}

// Update handles messages.
func (m DetailModel) Update(msg tea.Msg) (DetailModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		(&m).resizeComponents()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "esc", "q":
			return m, func() tea.Msg { return closeDetailMsg{} }
		case "o":
			if m.item.URL != "" {
				_ = browser.OpenURL(m.item.URL)
			}
			return m, nil
		case "g":
			m.viewport.GotoTop()
			return m, nil
		case "G":
			m.viewport.GotoBottom()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *DetailModel) resizeComponents() {
	leftWidth := panelWidth(m.width)
	rightWidth := max(m.width-leftWidth-1, 30)
	contentHeight := max(m.height-headerHeight-footerHeight, 10)

	m.viewport.Width = rightWidth - borderSize - 2      // Padding
	m.viewport.Height = contentHeight - borderSize - 1 // Panel title
	m.updateViewportContent()
}

func panelWidth(width int) int {
	w := int(float64(width) * leftPanelRatio)
	return min(max(w, minLeftWidth), maxLeftWidth)
}

// View renders the split-screen detail view.
func (m DetailModel) View() string {
	width := m.width
	height := m.height
	if width == 0 {
		width = 100
	}
	if height == 0 {
		height = 30
	}

	leftWidth := panelWidth(width)
	rightWidth := width - leftWidth - 1 // Gap
	contentHeight := max(height-headerHeight-footerHeight, 10)

	leftPanel := panelBorderStyle.
		Width(leftWidth - borderSize).
		Height(contentHeight - borderSize).
		Render(m.renderLeftPanel(leftWidth - borderSize))

	rightPanel := focusedPanelBorderStyle.
		Width(rightWidth - borderSize).
		Height(contentHeight - borderSize).
		Render(m.renderRightPanel())

	panels := lipgloss.JoinHorizontal(lipgloss.Top, leftPanel, " ", rightPanel)
	return lipgloss.JoinVertical(lipgloss.Left, m.renderHeader(), panels, m.renderFooter(width))
}

func (m DetailModel) renderHeader() string {
	parts := []string{"[q]back", "[j/k]scroll", "[g/G]top/bottom"}
	if m.item.URL != "" {
		parts = append(parts, "[o]open")
	}
	return dimStyle.Render(strings.Join(parts, " ")) + "  " + authorStyle.Render(m.project)
}

func (m DetailModel) renderFooter(width int) string {
	var left, right string
	if m.item.UpdatedAt != "" {
		left = "updated " + formatTimeAgoAt(m.item.UpdatedAt, m.now())
	}
	if m.viewport.TotalLineCount() > m.viewport.Height {
		switch {
		case m.viewport.AtTop():
			right = "TOP"
		case m.viewport.AtBottom():
			right = "END"
		default:
			right = fmt.Sprintf("%d%%", int(m.viewport.ScrollPercent()*100))
		}
	}

	padding := max(width-lipgloss.Width(left)-lipgloss.Width(right)-2, 1)
	return dimStyle.Render(left) + strings.Repeat(" ", padding) + dimStyle.Render(right)
}

func typeName(t domain.ItemType) string {
	switch t {
	case domain.ItemTypeIssue:
		return "Issue"
	case domain.ItemTypePullRequest:
		return "Pull request"
	case domain.ItemTypeDraftIssue:
		return "Draft"
	}
	return string(t)
}

// renderLeftPanel renders the item metadata.
func (m DetailModel) renderLeftPanel(width int) string {
	var b strings.Builder
	item := m.item

	typeStr := typeName(item.Type)
	if item.Number > 0 {
		typeStr = fmt.Sprintf("%s #%d", typeStr, item.Number)
	}
	b.WriteString(detailLabelStyle.Render(typeStr))
	b.WriteString("\n\n")

	b.WriteString(detailTitleStyle.Render(wordwrap.String(item.Title, max(width-2, 10))))
	b.WriteString("\n\n")

	field := func(label, value string) {
		if value == "" {
			return
		}
		value = truncate.StringWithTail(value, uint(max(width-len(label)-1, 5)), "...")
		b.WriteString(detailLabelStyle.Render(label + " "))
		b.WriteString(detailValueStyle.Render(value))
		b.WriteString("\n")
	}

	field("Repo:", item.Repository)

	if item.State != "" {
		stateStyle := detailValueStyle
		switch item.State {
		case domain.ItemStateOpen:
			stateStyle = stateStyle.Foreground(lipgloss.Color("34"))
		case domain.ItemStateClosed:
			stateStyle = stateStyle.Foreground(lipgloss.Color("196"))
		case domain.ItemStateMerged:
			stateStyle = stateStyle.Foreground(lipgloss.Color("141"))
		}
		b.WriteString(detailLabelStyle.Render("State: "))
		b.WriteString(stateStyle.Render(string(item.State)))
		b.WriteString("\n")
	}

	field("Author:", item.Author.Login)

	logins := make([]string, 0, len(item.Assignees))
	for _, u := range item.Assignees {
		logins = append(logins, u.Login)
	}
	field("Assigned:", strings.Join(logins, ", "))

	labels := make([]string, 0, len(item.Labels))
	for _, l := range item.Labels {
		labels = append(labels, l.Name)
	}
	field("Labels:", strings.Join(labels, ", "))

	if item.Milestone != nil {
		field("Milestone:", item.Milestone.Title)
	}
	if item.CreatedAt != "" {
		field("Created:", formatTimeAgoAt(item.CreatedAt, m.now()))
	}
	if item.ClosedAt != "" {
		field("Closed:", formatTimeAgoAt(item.ClosedAt, m.now()))
	}
	if item.MergedAt != "" {
		field("Merged:", formatTimeAgoAt(item.MergedAt, m.now()))
	}

	if len(item.ProjectFields) > 0 {
		b.WriteString("\n")
		b.WriteString(detailLabelStyle.Render("Fields"))
		b.WriteString("\n")
		for _, f := range item.ProjectFields {
			field(f.Name+":", f.Value)
		}
	}

	return b.String()
}

func (m DetailModel) renderRightPanel() string {
	var b strings.Builder

	scrollHint := ""
	if m.viewport.TotalLineCount() > m.viewport.Height {
		switch {
		case m.viewport.AtTop():
			scrollHint = " ↓"
		case m.viewport.AtBottom():
			scrollHint = " ↑"
		default:
			scrollHint = " ↕"
		}
	}
	b.WriteString(detailLabelStyle.Render("Description"))
	b.WriteString(scrollIndicatorStyle.Render(scrollHint))
	b.WriteString("\n")

	if strings.TrimSpace(m.item.Body) == "" {
		b.WriteString("\n")
		b.WriteString(dimStyle.Render("No description"))
		return b.String()
	}

	b.WriteString(m.viewport.View())
	return b.String()
}

// updateViewportContent wraps the body to the current viewport width.
func (m *DetailModel) updateViewportContent() {
	wrapWidth := max(m.viewport.Width-4, 30)

	var b strings.Builder
	b.WriteString(authorStyle.Render(m.item.Author.Login))
	if m.item.CreatedAt != "" {
		b.WriteString(" ")
		b.WriteString(dimStyle.Render(formatTimeAgoAt(m.item.CreatedAt, m.now())))
	}
	b.WriteString("\n")
	b.WriteString(bodyStyle.Render(wordwrap.String(m.item.Body, wrapWidth)))

	m.viewport.SetContent(b.String())
}

// formatTimeAgo renders an RFC3339 timestamp relative to the current time.
func formatTimeAgo(timestamp string) string {
	return formatTimeAgoAt(timestamp, time.Now())
}

// formatTimeAgoAt renders timestamp relative to now. Unparseable timestamps
// fall back to their date part.
func formatTimeAgoAt(timestamp string, now time.Time) string {
	t, err := time.Parse(time.RFC3339, timestamp)
	if err != nil {
		if len(timestamp) >= 10 {
			return timestamp[:10]
		}
		return timestamp
	}

	duration := now.Sub(t)

	ago := func(n int, unit string) string {
		return fmt.Sprintf("%d%s ago", n, unit)
	}

	switch {
	case duration < time.Minute:
		return "just now"
	case duration < time.Hour:
		return ago(int(duration.Minutes()), "m")
	case duration < 24*time.Hour:
		return ago(int(duration.Hours()), "h")
	case duration < 7*24*time.Hour:
		return ago(int(duration.Hours()/24), "d")
	case duration < 30*24*time.Hour:
		return ago(int(duration.Hours()/24/7), "w")
	case duration < 365*24*time.Hour:
		return ago(int(duration.Hours()/24/30), "mo")
	default:
		return ago(int(duration.Hours()/24/365), "y")
	}
}
