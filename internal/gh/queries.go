package gh

import (
	"context"
	"fmt"

	"github.com/machinebox/graphql"
	"go.uber.org/zap"

	"github.com/h0rv/ghp-dashboard/internal/apperr"
	"github.com/h0rv/ghp-dashboard/internal/domain"
)

const (
	itemsPageSize = 100
	maxItemPages  = 10
)

// projectQuery is formatted with the owner field: organization or user.
const projectQuery = `
	query($login: String!, $number: Int!, $first: Int!, $after: String) {
		%s(login: $login) {
			projectV2(number: $number) {
				id
				title
				url
				shortDescription
				number
				items(first: $first, after: $after) {
					totalCount
					pageInfo {
						hasNextPage
						endCursor
					}
					nodes {
						id
						type
						createdAt
						updatedAt
						fieldValues(first: 20) {
							nodes {
								__typename
								... on ProjectV2ItemFieldTextValue {
									text
									field { ... on ProjectV2FieldCommon { name } }
								}
								... on ProjectV2ItemFieldNumberValue {
									number
									field { ... on ProjectV2FieldCommon { name } }
								}
								... on ProjectV2ItemFieldSingleSelectValue {
									name
									field { ... on ProjectV2FieldCommon { name } }
								}
								... on ProjectV2ItemFieldDateValue {
									date
									field { ... on ProjectV2FieldCommon { name } }
								}
							}
						}
						content {
							__typename
							... on Issue {
								title
								body
								url
								number
								state
								createdAt
								updatedAt
								closedAt
								author { login avatarUrl url }
								repository { nameWithOwner }
								assignees(first: 10) { nodes { login name avatarUrl url } }
								labels(first: 10) { nodes { name color } }
								milestone { title dueOn url }
							}
							... on PullRequest {
								title
								body
								url
								number
								state
								merged
								createdAt
								updatedAt
								closedAt
								mergedAt
								author { login avatarUrl url }
								repository { nameWithOwner }
								assignees(first: 10) { nodes { login name avatarUrl url } }
								labels(first: 10) { nodes { name color } }
								milestone { title dueOn url }
							}
							... on DraftIssue {
								title
								body
								createdAt
								updatedAt
								creator { login avatarUrl url }
								assignees(first: 10) { nodes { login name avatarUrl url } }
							}
						}
					}
				}
			}
		}
	}
`

type actorNode struct {
	Login     string `json:"login"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl"`
	URL       string `json:"url"`
}

type contentNode struct {
	Typename   string     `json:"__typename"`
	Title      string     `json:"title"`
	Body       string     `json:"body"`
	URL        string     `json:"url"`
	Number     int        `json:"number"`
	State      string     `json:"state"`
	Merged     bool       `json:"merged"`
	CreatedAt  string     `json:"createdAt"`
	UpdatedAt  string     `json:"updatedAt"`
	ClosedAt   string     `json:"closedAt"`
	MergedAt   string     `json:"mergedAt"`
	Author     *actorNode `json:"author"`
	Creator    *actorNode `json:"creator"`
	Repository *struct {
		NameWithOwner string `json:"nameWithOwner"`
	} `json:"repository"`
	Assignees *struct {
		Nodes []actorNode `json:"nodes"`
	} `json:"assignees"`
	Labels *struct {
		Nodes []struct {
			Name  string `json:"name"`
			Color string `json:"color"`
		} `json:"nodes"`
	} `json:"labels"`
	Milestone *struct {
		Title string `json:"title"`
		DueOn string `json:"dueOn"`
		URL   string `json:"url"`
	} `json:"milestone"`
}

type fieldValueNode struct {
	Typename string   `json:"__typename"`
	Text     *string  `json:"text"`
	Number   *float64 `json:"number"`
	Name     *string  `json:"name"`
	Date     *string  `json:"date"`
	Field    *struct {
		Name *string `json:"name"`
	} `json:"field"`
}

type itemNode struct {
	ID          string       `json:"id"`
	Type        string       `json:"type"`
	CreatedAt   string       `json:"createdAt"`
	UpdatedAt   string       `json:"updatedAt"`
	Content     *contentNode `json:"content"`
	FieldValues struct {
		Nodes []fieldValueNode `json:"nodes"`
	} `json:"fieldValues"`
}

type projectNode struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	URL              string `json:"url"`
	ShortDescription string `json:"shortDescription"`
	Number           int    `json:"number"`
	Items            struct {
		TotalCount int `json:"totalCount"`
		PageInfo   struct {
			HasNextPage bool   `json:"hasNextPage"`
			EndCursor   string `json:"endCursor"`
		} `json:"pageInfo"`
		Nodes []itemNode `json:"nodes"`
	} `json:"items"`
}

type ownerNode struct {
	ProjectV2 *projectNode `json:"projectV2"`
}

type projectResponse struct {
	Organization *ownerNode `json:"organization"`
	User         *ownerNode `json:"user"`
}

// scopeStrategy is one way of looking a project up. Strategies are tried in order.
type scopeStrategy struct {
	scope Scope
	query string
	owner func(*projectResponse) *ownerNode
}

var scopeStrategies = []scopeStrategy{
	{
		scope: ScopeOrganization,
		query: fmt.Sprintf(projectQuery, "organization"),
		owner: func(r *projectResponse) *ownerNode { return r.Organization },
	},
	{
		scope: ScopeUser,
		query: fmt.Sprintf(projectQuery, "user"),
		owner: func(r *projectResponse) *ownerNode { return r.User },
	},
}

// fetchScope fetches all item pages of a project under one scope. Absence is
// reported as a retryable NOT_FOUND so the retry policy treats it as transient.
func (c *Client) fetchScope(ctx context.Context, s scopeStrategy, d domain.ProjectDescriptor) (*RawProject, error) {
	var (
		project *RawProject
		cursor  string
	)

	for page := 0; page < maxItemPages; page++ {
		req := graphql.NewRequest(s.query)
		req.Var("login", d.Owner)
		req.Var("number", d.ProjectNumber)
		req.Var("first", itemsPageSize)
		if cursor != "" {
			req.Var("after", cursor)
		} else {
			req.Var("after", nil)
		}

		var resp projectResponse
		if err := c.makeRequest(ctx, req, &resp); err != nil {
			e := apperr.Classify(err)
			if e.Kind == apperr.KindNotFound {
				return nil, e.WithRetryable(true)
			}
			return nil, e
		}

		owner := s.owner(&resp)
		if owner == nil || owner.ProjectV2 == nil {
			return nil, apperr.New(apperr.KindNotFound,
				fmt.Sprintf("Project #%d not found for %s %s.", d.ProjectNumber, s.scope, d.Owner)).
				WithRetryable(true)
		}
		node := owner.ProjectV2

		if project == nil {
			project = &RawProject{
				ID:          node.ID,
				Title:       node.Title,
				URL:         node.URL,
				Description: node.ShortDescription,
				Number:      node.Number,
				Scope:       s.scope,
				TotalCount:  node.Items.TotalCount,
				Items:       make([]RawItem, 0, min(node.Items.TotalCount, itemsPageSize*maxItemPages)),
			}
		}
		for _, n := range node.Items.Nodes {
			project.Items = append(project.Items, convertItem(n))
		}

		if !node.Items.PageInfo.HasNextPage || node.Items.PageInfo.EndCursor == "" {
			return project, nil
		}
		cursor = node.Items.PageInfo.EndCursor
	}

	c.logger.Warn("item pages capped",
		zap.String("project", d.Name),
		zap.Int("pages", maxItemPages),
		zap.Int("total_count", project.TotalCount),
	)
	return project, nil
}

func convertItem(n itemNode) RawItem {
	item := RawItem{
		ID:        n.ID,
		Type:      n.Type,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
		Content:   convertContent(n.Content),
	}

	for _, fv := range n.FieldValues.Nodes {
		v := convertFieldVariant(fv)
		if v == nil {
			// Iteration, user, label and other field types carry no display value here.
			continue
		}
		var name *string
		if fv.Field != nil {
			name = fv.Field.Name
		}
		item.FieldValues = append(item.FieldValues, RawFieldValue{Field: name, Value: v})
	}
	return item
}

func convertFieldVariant(fv fieldValueNode) FieldVariant {
	switch {
	case fv.Text != nil:
		return TextValue{Text: *fv.Text}
	case fv.Number != nil:
		return NumberValue{Number: *fv.Number}
	case fv.Name != nil:
		return SingleSelectValue{Name: *fv.Name}
	case fv.Date != nil:
		return DateValue{Date: *fv.Date}
	default:
		return nil
	}
}

func convertContent(n *contentNode) Content {
	if n == nil {
		return nil
	}

	switch n.Typename {
	case "Issue":
		return &IssueContent{
			Title:      n.Title,
			Body:       n.Body,
			URL:        n.URL,
			Number:     n.Number,
			State:      n.State,
			Repository: repositoryName(n),
			CreatedAt:  n.CreatedAt,
			UpdatedAt:  n.UpdatedAt,
			ClosedAt:   n.ClosedAt,
			Author:     convertActor(n.Author),
			Assignees:  convertAssignees(n),
			Labels:     convertLabels(n),
			Milestone:  convertMilestone(n),
		}
	case "PullRequest":
		return &PullRequestContent{
			Title:      n.Title,
			Body:       n.Body,
			URL:        n.URL,
			Number:     n.Number,
			State:      n.State,
			Merged:     n.Merged,
			Repository: repositoryName(n),
			CreatedAt:  n.CreatedAt,
			UpdatedAt:  n.UpdatedAt,
			ClosedAt:   n.ClosedAt,
			MergedAt:   n.MergedAt,
			Author:     convertActor(n.Author),
			Assignees:  convertAssignees(n),
			Labels:     convertLabels(n),
			Milestone:  convertMilestone(n),
		}
	case "DraftIssue":
		return &DraftIssueContent{
			Title:     n.Title,
			Body:      n.Body,
			CreatedAt: n.CreatedAt,
			UpdatedAt: n.UpdatedAt,
			Creator:   convertActor(n.Creator),
			Assignees: convertAssignees(n),
		}
	default:
		return nil
	}
}

func repositoryName(n *contentNode) string {
	if n.Repository == nil {
		return ""
	}
	return n.Repository.NameWithOwner
}

func convertActor(a *actorNode) *domain.User {
	if a == nil || a.Login == "" {
		return nil
	}
	return &domain.User{Login: a.Login, Name: a.Name, AvatarURL: a.AvatarURL, URL: a.URL}
}

func convertAssignees(n *contentNode) []domain.User {
	if n.Assignees == nil {
		return nil
	}
	users := make([]domain.User, 0, len(n.Assignees.Nodes))
	for _, a := range n.Assignees.Nodes {
		users = append(users, domain.User{Login: a.Login, Name: a.Name, AvatarURL: a.AvatarURL, URL: a.URL})
	}
	return users
}

func convertLabels(n *contentNode) []domain.Label {
	if n.Labels == nil {
		return nil
	}
	labels := make([]domain.Label, 0, len(n.Labels.Nodes))
	for _, l := range n.Labels.Nodes {
		labels = append(labels, domain.Label{Name: l.Name, Color: l.Color})
	}
	return labels
}

func convertMilestone(n *contentNode) *domain.Milestone {
	if n.Milestone == nil {
		return nil
	}
	return &domain.Milestone{Title: n.Milestone.Title, DueOn: n.Milestone.DueOn, URL: n.Milestone.URL}
}
