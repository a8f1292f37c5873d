package transform

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/h0rv/ghp-dashboard/internal/domain"
	"github.com/h0rv/ghp-dashboard/internal/gh"
)

func strPtr(s string) *string { return &s }

func statusField(name, value string) gh.RawFieldValue {
	return gh.RawFieldValue{Field: strPtr(name), Value: gh.SingleSelectValue{Name: value}}
}

func itemWithStatus(id, field, status string) domain.Item {
	return domain.Item{ID: id, ProjectFields: []domain.FieldValue{{Name: field, Value: status}}}
}

func TestNormalizeItem_NilContentIsDraft(t *testing.T) {
	for _, reported := range []string{"ISSUE", "PULL_REQUEST", "DRAFT_ISSUE", "REDACTED", ""} {
		t.Run(reported, func(t *testing.T) {
			item := NormalizeItem(gh.RawItem{ID: "PVTI_1", Type: reported})

			assert.Equal(t, domain.ItemTypeDraftIssue, item.Type)
			assert.Equal(t, "Draft Item", item.Title)
			assert.Equal(t, "Unknown", item.Author.Login)
			assert.NotNil(t, item.Assignees)
			assert.Empty(t, item.Assignees)
			assert.NotNil(t, item.Labels)
			assert.Empty(t, item.Labels)
			assert.Equal(t, domain.ItemStateOpen, item.State)
		})
	}
}

func TestNormalizeItem_Issue(t *testing.T) {
	raw := gh.RawItem{
		ID:        "PVTI_1",
		Type:      "ISSUE",
		CreatedAt: "2024-01-01T00:00:00Z",
		Content: &gh.IssueContent{
			Body:       "details",
			URL:        "https://github.com/acme/widgets/issues/7",
			Number:     7,
			State:      "CLOSED",
			ClosedAt:   "2024-02-01T00:00:00Z",
			Repository: "acme/widgets",
			Assignees:  []domain.User{{Login: "hubot"}, {Login: "octocat"}},
			Labels:     []domain.Label{{Name: "bug"}, {Name: "p1"}},
			Milestone:  &domain.Milestone{Title: "v1"},
		},
		FieldValues: []gh.RawFieldValue{
			{Field: strPtr("Estimate"), Value: gh.NumberValue{Number: 2.5}},
			{Field: nil, Value: gh.TextValue{Text: "orphan"}},
			{Field: strPtr("Due"), Value: gh.DateValue{Date: "2024-03-01"}},
			statusField("Status", "TODO"),
			{Field: strPtr("Ignored"), Value: nil},
		},
	}

	item := NormalizeItem(raw)

	assert.Equal(t, domain.ItemTypeIssue, item.Type)
	assert.Equal(t, "Untitled", item.Title)
	assert.Equal(t, domain.ItemStateClosed, item.State)
	assert.Equal(t, "2024-01-01T00:00:00Z", item.CreatedAt)
	assert.Equal(t, "2024-02-01T00:00:00Z", item.ClosedAt)
	assert.Equal(t, "Unknown", item.Author.Login)
	assert.Equal(t, []string{"hubot", "octocat"}, []string{item.Assignees[0].Login, item.Assignees[1].Login})
	assert.Equal(t, "bug", item.Labels[0].Name)
	require.NotNil(t, item.Milestone)
	assert.Equal(t, "v1", item.Milestone.Title)
	assert.Equal(t, []domain.FieldValue{
		{Name: "Estimate", Value: "2.5"},
		{Name: "Unknown", Value: "orphan"},
		{Name: "Due", Value: "2024-03-01"},
		{Name: "Status", Value: "TODO"},
	}, item.ProjectFields)
}

func TestNormalizeItem_PullRequestStates(t *testing.T) {
	tests := []struct {
		name   string
		state  string
		merged bool
		want   domain.ItemState
	}{
		{"open", "OPEN", false, domain.ItemStateOpen},
		{"closed", "CLOSED", false, domain.ItemStateClosed},
		{"merged state", "MERGED", false, domain.ItemStateMerged},
		{"merged flag", "CLOSED", true, domain.ItemStateMerged},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := NormalizeItem(gh.RawItem{Content: &gh.PullRequestContent{
				Title:  "Ship it",
				State:  tt.state,
				Merged: tt.merged,
				Author: &domain.User{Login: "octocat"},
			}})
			assert.Equal(t, domain.ItemTypePullRequest, item.Type)
			assert.Equal(t, tt.want, item.State)
			assert.Equal(t, "Ship it", item.Title)
			assert.Equal(t, "octocat", item.Author.Login)
		})
	}
}

func TestNormalizeItem_DraftContent(t *testing.T) {
	item := NormalizeItem(gh.RawItem{Content: &gh.DraftIssueContent{
		Title:   "Idea",
		Creator: &domain.User{Login: "octocat"},
	}})
	assert.Equal(t, domain.ItemTypeDraftIssue, item.Type)
	assert.Equal(t, "Idea", item.Title)
	assert.Equal(t, "octocat", item.Author.Login)
	assert.Empty(t, item.URL)

	untitled := NormalizeItem(gh.RawItem{Content: &gh.DraftIssueContent{}})
	assert.Equal(t, "Draft Item", untitled.Title)
}

func TestFilterToTodoColumns_EmptyColumnsKeepsEverything(t *testing.T) {
	items := []domain.Item{
		itemWithStatus("1", "Status", "Done"),
		{ID: "2"},
	}
	assert.Equal(t, items, FilterToTodoColumns(items, nil))
	assert.Equal(t, items, FilterToTodoColumns(items, []string{}))
}

func TestFilterToTodoColumns_MixedFieldNames(t *testing.T) {
	items := []domain.Item{
		itemWithStatus("status", "Status", "TODO"),
		itemWithStatus("column", "Column", "TODO"),
		itemWithStatus("phase", "Phase", "Done"),
		itemWithStatus("stage", "Stage", "Backlog"),
		itemWithStatus("lower", "Status", "todo"),
		itemWithStatus("other", "Priority", "TODO"),
		{ID: "none"},
	}

	got := FilterToTodoColumns(items, []string{"TODO", "Backlog"})

	ids := make([]string, 0, len(got))
	for _, item := range got {
		ids = append(ids, item.ID)
	}
	assert.Equal(t, []string{"status", "column", "stage"}, ids)
}

func TestFilterToTodoColumns_FirstStatusFieldWins(t *testing.T) {
	item := domain.Item{ID: "1", ProjectFields: []domain.FieldValue{
		{Name: "Phase", Value: "Done"},
		{Name: "Status", Value: "TODO"},
	}}
	assert.Empty(t, FilterToTodoColumns([]domain.Item{item}, []string{"TODO"}))
}

func TestComputeStats(t *testing.T) {
	items := []domain.Item{
		{Type: domain.ItemTypeIssue, State: domain.ItemStateOpen, ProjectFields: []domain.FieldValue{{Name: "Status", Value: "TODO"}}},
		{Type: domain.ItemTypeIssue, State: domain.ItemStateClosed, ProjectFields: []domain.FieldValue{{Name: "Status", Value: "done"}}},
		{Type: domain.ItemTypePullRequest, State: domain.ItemStateOpen, ProjectFields: []domain.FieldValue{{Name: "Column", Value: "In Review"}}},
		{Type: domain.ItemTypeDraftIssue, State: domain.ItemStateOpen, ProjectFields: []domain.FieldValue{{Name: "Status", Value: "Icebox"}}},
		{Type: domain.ItemTypeIssue, State: domain.ItemStateOpen},
	}

	stats := ComputeStats(items, DefaultVocabulary())

	assert.Equal(t, 5, stats.Total)
	assert.Equal(t, 1, stats.Todo)
	assert.Equal(t, 1, stats.InProgress)
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, 2, stats.OpenIssues)
	assert.Equal(t, 1, stats.PullRequests)
	assert.Equal(t, map[string]int{
		"TODO":      1,
		"done":      1,
		"In Review": 1,
		"Icebox":    1,
		"No Status": 1,
	}, stats.ByStatus)
}

func TestComputeStats_CustomVocabulary(t *testing.T) {
	items := []domain.Item{itemWithStatus("1", "Status", "Icebox")}
	stats := ComputeStats(items, Vocabulary{Todo: []string{"icebox"}})
	assert.Equal(t, 1, stats.Todo)
}

func TestNormalizeProject_DemoScenario(t *testing.T) {
	d := domain.ProjectDescriptor{
		Name:          "Demo",
		Owner:         "acme",
		Repo:          "widgets",
		ProjectNumber: 3,
		TodoColumns:   []string{"TODO", "Backlog"},
	}
	raw := &gh.RawProject{
		ID:    "PVT_1",
		Title: "Widgets",
		Scope: gh.ScopeOrganization,
		Items: []gh.RawItem{
			{ID: "todo", Content: &gh.IssueContent{Title: "Open work", State: "OPEN"}, FieldValues: []gh.RawFieldValue{statusField("Status", "TODO")}},
			{ID: "done", Content: &gh.IssueContent{Title: "Finished", State: "CLOSED"}, FieldValues: []gh.RawFieldValue{statusField("Status", "Done")}},
		},
	}
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	p := NormalizeProject(raw, d, now)

	require.Len(t, p.Items, 1)
	assert.Equal(t, "todo", p.Items[0].ID)
	assert.Equal(t, []domain.FieldValue{{Name: "Status", Value: "TODO"}}, p.Items[0].ProjectFields)

	assert.Equal(t, "Demo", p.Name)
	assert.Equal(t, "acme", p.Owner)
	assert.Equal(t, "widgets", p.Repository)
	assert.Equal(t, "Widgets", p.Title)
	assert.Equal(t, []string{"TODO", "Backlog"}, p.TodoColumns)
	assert.Equal(t, "2024-05-01T12:00:00Z", p.LastFetched)
	assert.Equal(t, 2, p.Stats.Total)
	assert.Equal(t, 1, p.Stats.Todo)
	assert.Equal(t, 1, p.Stats.Completed)
}

func TestNormalizeProject_NilRaw(t *testing.T) {
	p := NormalizeProject(nil, domain.ProjectDescriptor{Name: "Empty", TodoColumns: []string{"TODO"}}, time.Now())
	assert.Equal(t, "Empty", p.Title)
	assert.NotNil(t, p.Items)
	assert.Empty(t, p.Items)
	assert.Zero(t, p.Stats.Total)
}

func TestSanitize(t *testing.T) {
	p := domain.Project{
		Title: "Board\x07",
		Items: []domain.Item{{
			Title: "Ping jane.doe@example.com\x1b[31m",
			Body:  "line one\nline two\t" + strings.Repeat("x", 50),
		}},
	}

	out := Sanitize(p, SanitizeOptions{MaxBodyWidth: 20, RedactEmails: true})

	assert.Equal(t, "Board", out.Title)
	assert.Equal(t, "Ping [email][31m", out.Items[0].Title)
	assert.True(t, strings.HasPrefix(out.Items[0].Body, "line one\nline two"))
	assert.True(t, strings.HasSuffix(out.Items[0].Body, "…"))
	assert.Less(t, len([]rune(out.Items[0].Body)), 40)

	// The input is not modified.
	assert.Equal(t, "Ping jane.doe@example.com\x1b[31m", p.Items[0].Title)
}

func TestSanitize_KeepsEmailsWhenDisabled(t *testing.T) {
	p := domain.Project{Items: []domain.Item{{Title: "jane@example.com"}}}
	out := Sanitize(p, SanitizeOptions{})
	assert.Equal(t, "jane@example.com", out.Items[0].Title)
}
