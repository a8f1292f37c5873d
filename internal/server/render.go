package server

import (
	"embed"
	"html/template"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/muesli/reflow/truncate"

	"github.com/h0rv/ghp-dashboard/internal/domain"
	"github.com/h0rv/ghp-dashboard/internal/store"
)

//go:embed templates/*.html
var templateFS embed.FS

const maxCardBody = 140

type templateRenderer struct {
	templates *template.Template
}

func newRenderer() (*templateRenderer, error) {
	funcs := template.FuncMap{
		"truncate": func(s string) string {
			return truncate.StringWithTail(strings.TrimSpace(s), maxCardBody, "…")
		},
		"typeLabel": typeLabel,
		"lower":     strings.ToLower,
	}
	t, err := template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &templateRenderer{templates: t}, nil
}

// Render implements echo.Renderer.
func (r *templateRenderer) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	return r.templates.ExecuteTemplate(w, name, data)
}

func typeLabel(t domain.ItemType) string {
	switch t {
	case domain.ItemTypePullRequest:
		return "PR"
	case domain.ItemTypeDraftIssue:
		return "Draft"
	default:
		return "Issue"
	}
}

type boardView struct {
	Project domain.Project
	Columns []store.Column
}

type pageView struct {
	Boards         []boardView
	Errors         []domain.ProjectError
	LastFetched    string
	RefreshSeconds int
	Failure        string
}

// handleBoard renders every project as a Kanban board. The page reloads on a
// timer and whenever the event stream reports an update.
func (s *Server) handleBoard(c echo.Context) error {
	s.setNoCache(c.Response().Header())
	view := pageView{RefreshSeconds: int(s.refreshInterval.Seconds())}

	dash, appErr := s.build(c)
	if appErr != nil {
		view.Failure = appErr.Message
		return c.Render(appErr.StatusCode, "board.html", view)
	}

	snapshot := store.New()
	snapshot.SetDashboard(dash)
	view.LastFetched = dash.LastFetched
	for _, name := range snapshot.ProjectNames() {
		if pe, failed := snapshot.ProjectError(name); failed {
			view.Errors = append(view.Errors, pe)
			continue
		}
		p, err := snapshot.Project(name)
		if err != nil {
			continue
		}
		view.Boards = append(view.Boards, boardView{Project: *p, Columns: store.GroupByColumn(*p)})
	}
	return c.Render(http.StatusOK, "board.html", view)
}
