// Package transform converts upstream project data into the dashboard's
// display shape. Every function here is pure and never fails.
package transform

import (
	"strconv"
	"time"

	"github.com/h0rv/ghp-dashboard/internal/domain"
	"github.com/h0rv/ghp-dashboard/internal/gh"
)

// Title defaults.
const (
	UntitledTitle = "Untitled"
	DraftTitle    = "Draft Item"
)

// UnknownFieldName names field values whose field reference was missing.
const UnknownFieldName = "Unknown"

// NormalizeItem converts a raw item. Nil content is always treated as a draft,
// whatever type upstream reported.
func NormalizeItem(raw gh.RawItem) domain.Item {
	item := domain.Item{
		ID:            raw.ID,
		CreatedAt:     raw.CreatedAt,
		UpdatedAt:     raw.UpdatedAt,
		State:         domain.ItemStateOpen,
		Author:        domain.UnknownUser,
		Assignees:     []domain.User{},
		Labels:        []domain.Label{},
		ProjectFields: normalizeFields(raw.FieldValues),
	}

	switch c := raw.Content.(type) {
	case *gh.IssueContent:
		item.Type = domain.ItemTypeIssue
		item.Title = orDefault(c.Title, UntitledTitle)
		item.Body = c.Body
		item.URL = c.URL
		item.Number = c.Number
		item.Repository = c.Repository
		item.State = issueState(c.State)
		item.CreatedAt = orDefault(c.CreatedAt, raw.CreatedAt)
		item.UpdatedAt = orDefault(c.UpdatedAt, raw.UpdatedAt)
		item.ClosedAt = c.ClosedAt
		item.Author = userOrUnknown(c.Author)
		item.Assignees = nonNilUsers(c.Assignees)
		item.Labels = nonNilLabels(c.Labels)
		item.Milestone = c.Milestone

	case *gh.PullRequestContent:
		item.Type = domain.ItemTypePullRequest
		item.Title = orDefault(c.Title, UntitledTitle)
		item.Body = c.Body
		item.URL = c.URL
		item.Number = c.Number
		item.Repository = c.Repository
		item.State = pullRequestState(c.State, c.Merged)
		item.CreatedAt = orDefault(c.CreatedAt, raw.CreatedAt)
		item.UpdatedAt = orDefault(c.UpdatedAt, raw.UpdatedAt)
		item.ClosedAt = c.ClosedAt
		item.MergedAt = c.MergedAt
		item.Author = userOrUnknown(c.Author)
		item.Assignees = nonNilUsers(c.Assignees)
		item.Labels = nonNilLabels(c.Labels)
		item.Milestone = c.Milestone

	case *gh.DraftIssueContent:
		item.Type = domain.ItemTypeDraftIssue
		item.Title = orDefault(c.Title, DraftTitle)
		item.Body = c.Body
		item.CreatedAt = orDefault(c.CreatedAt, raw.CreatedAt)
		item.UpdatedAt = orDefault(c.UpdatedAt, raw.UpdatedAt)
		item.Author = userOrUnknown(c.Creator)
		item.Assignees = nonNilUsers(c.Assignees)

	default:
		item.Type = domain.ItemTypeDraftIssue
		item.Title = DraftTitle
	}

	return item
}

// NormalizeProject normalizes every item, computes stats over all of them and
// keeps only the items in the descriptor's TODO columns.
func NormalizeProject(raw *gh.RawProject, d domain.ProjectDescriptor, now time.Time) domain.Project {
	p := domain.Project{
		Name:          d.Name,
		Owner:         d.Owner,
		Repository:    d.Repo,
		ProjectNumber: d.ProjectNumber,
		Title:         d.Name,
		TodoColumns:   append([]string{}, d.TodoColumns...),
		Items:         []domain.Item{},
		Stats:         ComputeStats(nil, DefaultVocabulary()),
		LastFetched:   now.UTC().Format(time.RFC3339),
	}
	if raw == nil {
		return p
	}

	p.Title = orDefault(raw.Title, d.Name)
	p.URL = raw.URL
	p.Description = raw.Description

	items := make([]domain.Item, 0, len(raw.Items))
	for _, ri := range raw.Items {
		items = append(items, NormalizeItem(ri))
	}
	p.Stats = ComputeStats(items, DefaultVocabulary())
	p.Items = FilterToTodoColumns(items, d.TodoColumns)
	return p
}

func normalizeFields(values []gh.RawFieldValue) []domain.FieldValue {
	fields := make([]domain.FieldValue, 0, len(values))
	for _, fv := range values {
		value, ok := fieldValueString(fv.Value)
		if !ok {
			continue
		}
		name := UnknownFieldName
		if fv.Field != nil && *fv.Field != "" {
			name = *fv.Field
		}
		fields = append(fields, domain.FieldValue{Name: name, Value: value})
	}
	return fields
}

func fieldValueString(v gh.FieldVariant) (string, bool) {
	switch v := v.(type) {
	case gh.TextValue:
		return v.Text, true
	case gh.NumberValue:
		return strconv.FormatFloat(v.Number, 'f', -1, 64), true
	case gh.SingleSelectValue:
		return v.Name, true
	case gh.DateValue:
		return v.Date, true
	default:
		return "", false
	}
}

func issueState(s string) domain.ItemState {
	if s == string(domain.ItemStateClosed) {
		return domain.ItemStateClosed
	}
	return domain.ItemStateOpen
}

func pullRequestState(s string, merged bool) domain.ItemState {
	switch {
	case merged || s == string(domain.ItemStateMerged):
		return domain.ItemStateMerged
	case s == string(domain.ItemStateClosed):
		return domain.ItemStateClosed
	default:
		return domain.ItemStateOpen
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func userOrUnknown(u *domain.User) domain.User {
	if u == nil || u.Login == "" {
		return domain.UnknownUser
	}
	return *u
}

func nonNilUsers(users []domain.User) []domain.User {
	if users == nil {
		return []domain.User{}
	}
	return users
}

func nonNilLabels(labels []domain.Label) []domain.Label {
	if labels == nil {
		return []domain.Label{}
	}
	return labels
}
