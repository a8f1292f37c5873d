// Package tui provides the Bubble Tea terminal board.
package tui

import (
	"github.com/h0rv/ghp-dashboard/internal/broadcast"
	"github.com/h0rv/ghp-dashboard/internal/domain"
)

// DashboardLoadedMsg is emitted when a refresh completes.
type DashboardLoadedMsg struct {
	Dashboard *domain.Dashboard
}

// ErrorMsg is emitted when a refresh fails as a whole.
type ErrorMsg struct {
	Err error
}

// UpdateEventMsg carries one message from the live event stream.
type UpdateEventMsg struct {
	Message broadcast.Message
}

// QuitMsg is emitted when the user requests to quit.
type QuitMsg struct{}

type (
	pollMsg          struct{ generation int }
	eventsClosedMsg  struct{}
	reconnectMsg     struct{}
	openDetailMsg    struct{ item domain.Item }
	refreshMsg       struct{}
	closeDetailMsg   struct{}
	eventsStartedMsg struct{ events <-chan broadcast.Message }
)
