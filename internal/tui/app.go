package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/h0rv/ghp-dashboard/internal/apperr"
	"github.com/h0rv/ghp-dashboard/internal/broadcast"
	"github.com/h0rv/ghp-dashboard/internal/domain"
	"github.com/h0rv/ghp-dashboard/internal/store"
)

// reconnectDelay is how long to wait before resubscribing to a closed event stream.
const reconnectDelay = 5 * time.Second

// AppModel is the root Bubble Tea model. It owns loading, polling and the
// live event subscription, and switches between the board and detail views.
type AppModel struct {
	// Dependencies
	ctx      context.Context
	source   Source
	events   EventSource // Optional
	interval time.Duration
	store    *store.Store

	// Views
	board      BoardModel
	detail     DetailModel
	showDetail bool

	// generation invalidates scheduled polls once a newer load has finished.
	generation int
	eventsCh   <-chan broadcast.Message

	width  int
	height int
}

// NewAppModel creates the root model. events may be nil, in which case the
// board only refreshes on its polling interval and on demand.
func NewAppModel(ctx context.Context, source Source, events EventSource, interval time.Duration) AppModel {
	s := store.New()
	return AppModel{
		ctx:      ctx,
		source:   source,
		events:   events,
		interval: interval,
		store:    s,
		board:    NewBoardModel(s),
	}
}

// Init starts the first load and the event subscription.
func (m AppModel) Init() tea.Cmd {
	return tea.Batch(m.load(), m.subscribe(), m.board.Init())
}

// Update handles messages and routes the rest to the active view.
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.board, _ = m.board.Update(msg)
		if m.showDetail {
			m.detail, _ = m.detail.Update(msg)
		}
		return m, nil

	case QuitMsg:
		return m, tea.Quit

	case DashboardLoadedMsg:
		m.store.SetDashboard(msg.Dashboard)
		m.board, _ = m.board.Update(msg)
		m.generation++
		return m, m.schedulePoll(nextPollDelay(msg.Dashboard, m.interval))

	case ErrorMsg:
		m.board, _ = m.board.Update(msg)
		m.generation++
		return m, m.schedulePoll(errorPollDelay(msg.Err, m.interval))

	case pollMsg:
		if msg.generation != m.generation {
			return m, nil
		}
		m.board.loading = true
		return m, m.load()

	case refreshMsg:
		m.board.loading = true
		return m, m.load()

	case eventsStartedMsg:
		m.eventsCh = msg.events
		return m, waitForEvent(m.eventsCh)

	case UpdateEventMsg:
		next := waitForEvent(m.eventsCh)
		if msg.Message.Type == broadcast.TypeProjectItemUpdated {
			m.board.loading = true
			return m, tea.Batch(m.load(), next)
		}
		return m, next

	case eventsClosedMsg:
		m.eventsCh = nil
		if m.ctx.Err() != nil {
			return m, nil
		}
		return m, tea.Tick(reconnectDelay, func(time.Time) tea.Msg { return reconnectMsg{} })

	case reconnectMsg:
		return m, m.subscribe()

	case openDetailMsg:
		m.detail = NewDetailModel(msg.item, m.board.currentProject())
		if m.width > 0 {
			m.detail, _ = m.detail.Update(tea.WindowSizeMsg{Width: m.width, Height: m.height})
		}
		m.showDetail = true
		return m, nil

	case closeDetailMsg:
		m.showDetail = false
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.board, cmd = m.board.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	if m.showDetail {
		m.detail, cmd = m.detail.Update(msg)
	} else {
		m.board, cmd = m.board.Update(msg)
	}
	return m, cmd
}

// View renders the active view.
func (m AppModel) View() string {
	if m.showDetail {
		return m.detail.View()
	}
	return m.board.View()
}

func (m AppModel) load() tea.Cmd {
	return func() tea.Msg {
		dash, err := m.source.Load(m.ctx)
		if err != nil {
			return ErrorMsg{Err: err}
		}
		return DashboardLoadedMsg{Dashboard: dash}
	}
}

func (m AppModel) schedulePoll(delay time.Duration) tea.Cmd {
	if delay <= 0 {
		return nil
	}
	gen := m.generation
	return tea.Tick(delay, func(time.Time) tea.Msg { return pollMsg{generation: gen} })
}

func (m AppModel) subscribe() tea.Cmd {
	if m.events == nil {
		return nil
	}
	return func() tea.Msg {
		ch, err := m.events.Events(m.ctx)
		if err != nil {
			return eventsClosedMsg{}
		}
		return eventsStartedMsg{events: ch}
	}
}

func waitForEvent(ch <-chan broadcast.Message) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return eventsClosedMsg{}
		}
		return UpdateEventMsg{Message: msg}
	}
}

// nextPollDelay waits at least interval, longer when a project reported a
// rate limit reset further out. The rate limit wait is capped at
// apperr.MaxRateLimitWait.
func nextPollDelay(d *domain.Dashboard, interval time.Duration) time.Duration {
	delay := interval
	if d == nil {
		return delay
	}
	for _, e := range d.Errors {
		if e.RetryAfterSeconds <= 0 {
			continue
		}
		wait := min(time.Duration(e.RetryAfterSeconds)*time.Second, apperr.MaxRateLimitWait)
		delay = max(delay, wait)
	}
	return delay
}

func errorPollDelay(err error, interval time.Duration) time.Duration {
	return max(interval, apperr.RateLimitWait(err))
}

// errorText renders an error without internal detail.
func errorText(err error) string {
	e := apperr.Classify(err)
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Kind)
}
