package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
	"github.com/pkg/browser"

	"github.com/h0rv/ghp-dashboard/internal/domain"
	"github.com/h0rv/ghp-dashboard/internal/store"
)

// Layout constants
const (
	minColumnWidth = 20
	maxColumnWidth = 35
	headerLines    = 2 // Tabs + status line
	pageJumpSize   = 10
)

// position remembers where the cursor was on one project.
type position struct {
	column       int
	columnOffset int
	card         map[string]int // Column name -> selected card index
	scroll       map[string]int // Column name -> scroll offset
}

func newPosition() *position {
	return &position{card: make(map[string]int), scroll: make(map[string]int)}
}

// BoardModel renders one project at a time as a Kanban board, with a tab
// per configured project.
type BoardModel struct {
	store *store.Store

	keymap      KeyMap
	help        HelpModel
	spinner     spinner.Model
	filterInput textinput.Model

	projects  []string // Loaded first, then failed
	selected  int
	columns   []store.Column // Current project, filter applied
	positions map[string]*position

	// View state
	width      int
	height     int
	showHelp   bool
	filterMode bool
	filterText string
	loading    bool
	errorToast string
	fetchedAt  string
}

// NewBoardModel creates a board reading from s.
func NewBoardModel(s *store.Store) BoardModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	ti := textinput.New()
	ti.Placeholder = "Filter..."
	ti.Prompt = "/ "

	return BoardModel{
		store:       s,
		keymap:      DefaultKeyMap(),
		help:        NewHelpModel(DefaultKeyMap()),
		spinner:     sp,
		filterInput: ti,
		positions:   make(map[string]*position),
		loading:     true,
	}
}

// Init starts the spinner.
func (m BoardModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tea.WindowSize())
}

// Update handles messages.
func (m BoardModel) Update(msg tea.Msg) (BoardModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		(&m).adjustColumnScroll()
		return m, nil

	case DashboardLoadedMsg:
		m.loading = false
		m.errorToast = ""
		if msg.Dashboard != nil {
			m.fetchedAt = msg.Dashboard.LastFetched
		}
		(&m).refresh()
		return m, nil

	case ErrorMsg:
		m.loading = false
		m.errorToast = errorText(msg.Err)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	}

	return m, nil
}

func (m BoardModel) handleKeyPress(msg tea.KeyMsg) (BoardModel, tea.Cmd) {
	if m.showHelp {
		switch msg.String() {
		case "?", "q", "esc":
			m.showHelp = false
		}
		return m, nil
	}

	if m.filterMode {
		switch msg.String() {
		case "enter":
			m.filterMode = false
			m.filterText = m.filterInput.Value()
			(&m).applyFilter()
			return m, nil
		case "esc":
			m.filterMode = false
			m.filterInput.SetValue(m.filterText)
			return m, nil
		default:
			var cmd tea.Cmd
			m.filterInput, cmd = m.filterInput.Update(msg)
			return m, cmd
		}
	}

	pos := m.position()
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "?":
		m.showHelp = true
	case "/":
		m.filterMode = true
		m.filterInput.Focus()
	case "tab":
		(&m).selectProject(m.selected + 1)
	case "shift+tab":
		(&m).selectProject(m.selected - 1)
	case "h", "left":
		if pos != nil && pos.column > 0 {
			pos.column--
			(&m).adjustColumnScroll()
		}
	case "l", "right":
		if pos != nil && pos.column < len(m.columns)-1 {
			pos.column++
			(&m).adjustColumnScroll()
		}
	case "j", "down":
		(&m).moveCardSelection(1)
	case "k", "up":
		(&m).moveCardSelection(-1)
	case "g":
		(&m).jumpToCard(0)
	case "G":
		(&m).jumpToCard(-1)
	case "ctrl+d":
		(&m).moveCardSelection(pageJumpSize)
	case "ctrl+u":
		(&m).moveCardSelection(-pageJumpSize)
	case "o":
		if item, ok := m.selectedItem(); ok && item.URL != "" {
			_ = browser.OpenURL(item.URL)
		} else if p, err := m.store.Project(m.currentProject()); err == nil && p.URL != "" {
			_ = browser.OpenURL(p.URL)
		}
	case "r":
		m.loading = true
		return m, func() tea.Msg { return refreshMsg{} }
	case "enter":
		if item, ok := m.selectedItem(); ok {
			return m, func() tea.Msg { return openDetailMsg{item: item} }
		}
	}

	return m, nil
}

// View renders the board to fill the terminal.
func (m BoardModel) View() string {
	width := m.width
	height := m.height
	if width == 0 {
		width = 80
	}
	if height == 0 {
		height = 24
	}

	sections := []string{m.renderTabs(width), m.renderHeader(width)}
	if m.filterMode {
		sections = append(sections, m.filterInput.View())
	}

	boardHeight := height - headerLines
	if m.filterMode {
		boardHeight--
	}
	if boardHeight < 5 {
		boardHeight = 5
	}

	var main string
	name := m.currentProject()
	switch {
	case m.showHelp:
		helpLines := strings.Split(m.help.View(width), "\n")
		if len(helpLines) > boardHeight {
			helpLines = helpLines[:boardHeight]
		}
		main = strings.Join(helpLines, "\n")
	case m.loading && len(m.projects) == 0:
		main = lipgloss.Place(width, boardHeight, lipgloss.Center, lipgloss.Center, m.spinner.View()+" Loading projects...")
	case len(m.projects) == 0:
		main = lipgloss.Place(width, boardHeight, lipgloss.Center, lipgloss.Center, "No projects loaded. Press 'r' to refresh.")
	default:
		if perr, failed := m.store.ProjectError(name); failed {
			main = lipgloss.Place(width, boardHeight, lipgloss.Center, lipgloss.Center, renderProjectError(perr))
		} else {
			main = m.renderBoard(width, boardHeight)
		}
	}
	sections = append(sections, main)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderTabs renders one tab per project; failed projects are red.
func (m BoardModel) renderTabs(width int) string {
	if len(m.projects) == 0 {
		return titleStyle.Render("GitHub Projects")
	}
	tabs := make([]string, 0, len(m.projects))
	for i, name := range m.projects {
		_, failed := m.store.ProjectError(name)
		switch {
		case i == m.selected:
			tabs = append(tabs, activeTabStyle.Render(name))
		case failed:
			tabs = append(tabs, failedTabStyle.Render(name))
		default:
			tabs = append(tabs, tabStyle.Render(name))
		}
	}
	return truncate.StringWithTail(lipgloss.JoinHorizontal(lipgloss.Top, tabs...), uint(width), "…")
}

// renderHeader renders the project title on the left and status on the right.
func (m BoardModel) renderHeader(width int) string {
	var title string
	if p, err := m.store.Project(m.currentProject()); err == nil {
		title = fmt.Sprintf("%s/#%d - %s", p.Owner, p.ProjectNumber, p.Title)
		if p.Repository != "" {
			title += " (" + p.Repository + ")"
		}
	}

	var statusParts []string
	if m.loading {
		statusParts = append(statusParts, m.spinner.View()+"loading")
	}
	if m.errorToast != "" {
		statusParts = append(statusParts, errorStyle.Render(m.errorToast))
	}
	if p, err := m.store.Project(m.currentProject()); err == nil {
		statusParts = append(statusParts, fmt.Sprintf("%d todo / %d items", p.Stats.Todo, p.Stats.Total))
	}
	if m.filterText != "" {
		statusParts = append(statusParts, "/"+m.filterText)
	}
	if m.fetchedAt != "" {
		statusParts = append(statusParts, "fetched "+formatTimeAgo(m.fetchedAt))
	}
	statusParts = append(statusParts, "[?]help")
	status := strings.Join(statusParts, " | ")

	padding := width - lipgloss.Width(title) - lipgloss.Width(status) - 2
	if padding < 1 {
		padding = 1
	}
	return titleStyle.Render(title) + strings.Repeat(" ", padding) + dimStyle.Render(status)
}

func renderProjectError(e domain.ProjectError) string {
	lines := []string{
		errorStyle.Render(e.ProjectName + " failed to load"),
		"",
		e.Error,
		dimStyle.Render(e.Code),
	}
	switch {
	case e.RetryAfterSeconds > 0:
		lines = append(lines, dimStyle.Render(fmt.Sprintf("Retrying in %ds.", e.RetryAfterSeconds)))
	case e.Retryable:
		lines = append(lines, dimStyle.Render("Will retry on the next refresh."))
	}
	return lipgloss.JoinVertical(lipgloss.Center, lines...)
}

// renderBoard renders the visible columns. Columns that do not fit scroll
// horizontally.
func (m BoardModel) renderBoard(totalWidth, totalHeight int) string {
	numCols := len(m.columns)
	if numCols == 0 {
		return lipgloss.Place(totalWidth, totalHeight, lipgloss.Center, lipgloss.Center, "No columns configured.")
	}
	pos := m.position()

	// Border adds 2 lines to the content height.
	colContentHeight := totalHeight - 2
	if colContentHeight < 3 {
		colContentHeight = 3
	}

	visibleCols := visibleColumns(totalWidth, numCols)

	colWidth := totalWidth / visibleCols
	if colWidth > maxColumnWidth {
		colWidth = maxColumnWidth
	}
	if colWidth < minColumnWidth {
		colWidth = minColumnWidth
	}

	// Border (2) and padding (2)
	innerWidth := colWidth - 4
	if innerWidth < 10 {
		innerWidth = 10
	}

	maxCardLines := colContentHeight - 1
	if maxCardLines < 1 {
		maxCardLines = 1
	}

	startCol := pos.columnOffset
	endCol := startCol + visibleCols
	if endCol > numCols {
		endCol = numCols
		startCol = max(endCol-visibleCols, 0)
	}

	columnViews := make([]string, 0, visibleCols+2)
	if startCol > 0 {
		columnViews = append(columnViews, scrollArrow("◀", colContentHeight+2))
	}
	for i := startCol; i < endCol; i++ {
		columnViews = append(columnViews, m.renderColumn(m.columns[i], i == pos.column, colWidth, colContentHeight, innerWidth, maxCardLines))
	}
	if endCol < numCols {
		columnViews = append(columnViews, scrollArrow("▶", colContentHeight+2))
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, columnViews...)
}

func scrollArrow(arrow string, height int) string {
	return lipgloss.NewStyle().
		Width(2).
		Height(height).
		Foreground(lipgloss.Color("205")).
		Align(lipgloss.Center, lipgloss.Center).
		Render(arrow)
}

// renderColumn renders a single column. innerHeight excludes the border;
// maxCardLines excludes the header line.
func (m BoardModel) renderColumn(col store.Column, selected bool, width, innerHeight, innerWidth, maxCardLines int) string {
	pos := m.position()
	cards := col.Items

	headerText := truncate.StringWithTail(fmt.Sprintf("%s (%d)", col.Name, len(cards)), uint(innerWidth), "…")

	scrollOffset := pos.scroll[col.Name]
	selectedIdx := pos.card[col.Name]

	cardSlots := maxCardLines - 1
	if cardSlots < 1 {
		cardSlots = 1
	}

	needUp := scrollOffset > 0
	availableSlots := cardSlots
	if needUp {
		availableSlots--
	}

	endIdx := min(scrollOffset+availableSlots, len(cards))
	needDown := false
	if endIdx < len(cards) {
		needDown = true
		availableSlots--
		endIdx = min(scrollOffset+availableSlots, len(cards))
	}

	lines := []string{columnHeaderStyle.Render(headerText)}
	if needUp {
		lines = append(lines, dimStyle.Render(fmt.Sprintf("↑ %d more", scrollOffset)))
	}
	for i := scrollOffset; i < endIdx; i++ {
		text := formatCardText(cards[i], innerWidth-3) // "> " prefix
		if selected && i == selectedIdx {
			lines = append(lines, selectedCardStyle.Render("> "+text))
		} else {
			lines = append(lines, cardStyle.Render("  "+text))
		}
	}
	if remaining := len(cards) - endIdx; needDown && remaining > 0 {
		lines = append(lines, dimStyle.Render(fmt.Sprintf("↓ %d more", remaining)))
	}
	if len(cards) == 0 {
		lines = append(lines, dimStyle.Render("(empty)"))
	}

	borderColor := lipgloss.Color("240")
	if selected {
		borderColor = lipgloss.Color("205")
	}

	// Height sets the content area; MaxHeight would cut the border.
	return lipgloss.NewStyle().
		Width(width-2).
		Height(innerHeight).
		Padding(0, 1).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Render(strings.Join(lines, "\n"))
}

// cardSuffix marks the item kind and terminal state.
func cardSuffix(item domain.Item) string {
	var parts []string
	switch item.Type {
	case domain.ItemTypeIssue, domain.ItemTypePullRequest:
		if item.Number > 0 {
			parts = append(parts, fmt.Sprintf("#%d", item.Number))
		}
	case domain.ItemTypeDraftIssue:
		parts = append(parts, "(draft)")
	}
	switch item.State {
	case domain.ItemStateClosed:
		parts = append(parts, "✓")
	case domain.ItemStateMerged:
		parts = append(parts, "⇄")
	}
	return strings.Join(parts, " ")
}

// formatCardText fits a card title into maxWidth cells with the suffix
// right-aligned.
func formatCardText(item domain.Item, maxWidth int) string {
	title := item.Title
	suffix := cardSuffix(item)
	if suffix == "" {
		return truncate.StringWithTail(title, uint(max(maxWidth, 1)), "…")
	}

	suffixLen := lipgloss.Width(suffix)
	available := max(maxWidth-suffixLen-1, 5)
	title = truncate.StringWithTail(title, uint(available), "…")

	padding := max(maxWidth-lipgloss.Width(title)-suffixLen, 1)
	return title + strings.Repeat(" ", padding) + dimStyle.Render(suffix)
}

// refresh rebuilds the tab list and columns after a new snapshot.
func (m *BoardModel) refresh() {
	current := m.currentProject()
	m.projects = m.store.ProjectNames()

	m.selected = 0
	for i, name := range m.projects {
		if name == current {
			m.selected = i
			break
		}
	}
	m.applyFilter()
}

func (m *BoardModel) selectProject(i int) {
	if len(m.projects) == 0 {
		return
	}
	n := len(m.projects)
	m.selected = ((i % n) + n) % n
	m.applyFilter()
	m.adjustColumnScroll()
}

func (m BoardModel) currentProject() string {
	if m.selected < 0 || m.selected >= len(m.projects) {
		return ""
	}
	return m.projects[m.selected]
}

// position returns the cursor state of the current project, or nil when no
// project is selected.
func (m BoardModel) position() *position {
	name := m.currentProject()
	if name == "" {
		return nil
	}
	pos, ok := m.positions[name]
	if !ok {
		pos = newPosition()
		m.positions[name] = pos
	}
	return pos
}

// applyFilter regroups the current project and drops cards whose title does
// not contain the filter text.
func (m *BoardModel) applyFilter() {
	m.columns = nil
	p, err := m.store.Project(m.currentProject())
	if err != nil {
		return
	}

	needle := strings.ToLower(m.filterText)
	for _, col := range store.GroupByColumn(*p) {
		if needle != "" {
			kept := make([]domain.Item, 0, len(col.Items))
			for _, item := range col.Items {
				if strings.Contains(strings.ToLower(item.Title), needle) {
					kept = append(kept, item)
				}
			}
			col.Items = kept
		}
		m.columns = append(m.columns, col)
	}

	pos := m.position()
	if pos.column >= len(m.columns) {
		pos.column = max(len(m.columns)-1, 0)
	}
	// Reset scroll so "↑ N more" is not shown when results fit.
	for _, col := range m.columns {
		pos.scroll[col.Name] = 0
		if pos.card[col.Name] >= len(col.Items) {
			pos.card[col.Name] = max(len(col.Items)-1, 0)
		}
	}
}

func (m *BoardModel) moveCardSelection(delta int) {
	pos := m.position()
	if pos == nil || len(m.columns) == 0 {
		return
	}
	col := m.columns[pos.column]
	if len(col.Items) == 0 {
		return
	}
	idx := pos.card[col.Name] + delta
	idx = max(min(idx, len(col.Items)-1), 0)
	pos.card[col.Name] = idx
	m.adjustScroll(col.Name)
}

// jumpToCard selects the card at idx; -1 selects the last card.
func (m *BoardModel) jumpToCard(idx int) {
	pos := m.position()
	if pos == nil || len(m.columns) == 0 {
		return
	}
	col := m.columns[pos.column]
	if len(col.Items) == 0 {
		return
	}
	if idx < 0 || idx >= len(col.Items) {
		idx = len(col.Items) - 1
	}
	pos.card[col.Name] = idx
	m.adjustScroll(col.Name)
}

// adjustScroll keeps the selected card visible.
func (m *BoardModel) adjustScroll(column string) {
	pos := m.position()
	selectedIdx := pos.card[column]

	contentHeight := m.height - headerLines - 2 // Column borders
	if m.filterMode {
		contentHeight--
	}
	visibleCards := max(contentHeight-3, 3) // Header and scroll indicators

	if selectedIdx < pos.scroll[column] {
		pos.scroll[column] = selectedIdx
	}
	if selectedIdx >= pos.scroll[column]+visibleCards {
		pos.scroll[column] = selectedIdx - visibleCards + 1
	}
}

// adjustColumnScroll keeps the selected column inside the visible range.
func (m *BoardModel) adjustColumnScroll() {
	pos := m.position()
	if pos == nil || len(m.columns) == 0 || m.width == 0 {
		return
	}
	visibleCols := visibleColumns(m.width, len(m.columns))
	if pos.column < pos.columnOffset {
		pos.columnOffset = pos.column
	}
	if pos.column >= pos.columnOffset+visibleCols {
		pos.columnOffset = pos.column - visibleCols + 1
	}
}

func visibleColumns(width, numCols int) int {
	return max(min(width/minColumnWidth, numCols), 1)
}

func (m BoardModel) selectedItem() (domain.Item, bool) {
	pos := m.position()
	if pos == nil || len(m.columns) == 0 {
		return domain.Item{}, false
	}
	col := m.columns[pos.column]
	if len(col.Items) == 0 {
		return domain.Item{}, false
	}
	idx := pos.card[col.Name]
	if idx >= len(col.Items) {
		idx = 0
	}
	return col.Items[idx], true
}
