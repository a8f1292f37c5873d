// Package domain defines the normalized domain types for the project dashboard.
// These types represent the display shape independent of the GitHub GraphQL API structure.
package domain

// ProjectDescriptor identifies one GitHub Project v2 board to display.
type ProjectDescriptor struct {
	Name          string   `json:"name"`          // Display label, unique within a configuration
	Owner         string   `json:"owner"`         // Organization or user login
	Repo          string   `json:"repo"`          // Repository name (display only)
	ProjectNumber int      `json:"projectNumber"` // Project number within the owner's namespace
	TodoColumns   []string `json:"todoColumns"`   // Status values shown on the board, in order
}

// ItemType is the kind of content behind a project item.
type ItemType string

// ItemType values as reported by the Projects v2 API.
const (
	ItemTypeIssue       ItemType = "ISSUE"
	ItemTypePullRequest ItemType = "PULL_REQUEST"
	ItemTypeDraftIssue  ItemType = "DRAFT_ISSUE"
)

// ItemState is the lifecycle state of an item.
type ItemState string

// ItemState values.
const (
	ItemStateOpen   ItemState = "OPEN"
	ItemStateClosed ItemState = "CLOSED"
	ItemStateMerged ItemState = "MERGED"
)

// User is an author or assignee.
type User struct {
	Login     string `json:"login"`
	Name      string `json:"name,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	URL       string `json:"url,omitempty"`
}

// UnknownUser is used when an item has no resolvable author (deleted accounts, drafts).
var UnknownUser = User{Login: "Unknown"}

// Label is an issue or pull request label.
type Label struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// Milestone is the milestone an issue or pull request belongs to.
type Milestone struct {
	Title string `json:"title"`
	DueOn string `json:"dueOn,omitempty"`
	URL   string `json:"url,omitempty"`
}

// FieldValue is one project field collapsed to a display string.
type FieldValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Item represents a project item (Issue, PR, or Draft) in a normalized format.
type Item struct {
	ID            string       `json:"id"`                   // ProjectV2Item node ID
	Title         string       `json:"title"`                // Defaults to "Untitled" or "Draft Item"
	Body          string       `json:"body"`                 // Issue/PR/draft body
	URL           string       `json:"url"`                  // Empty for drafts
	Number        int          `json:"number,omitempty"`     // Issue/PR number
	Repository    string       `json:"repository,omitempty"` // nameWithOwner for issues and PRs
	State         ItemState    `json:"state"`
	Type          ItemType     `json:"type"`
	CreatedAt     string       `json:"createdAt,omitempty"` // ISO8601
	UpdatedAt     string       `json:"updatedAt,omitempty"` // ISO8601
	ClosedAt      string       `json:"closedAt,omitempty"`  // ISO8601, closed issues and PRs only
	MergedAt      string       `json:"mergedAt,omitempty"`  // ISO8601, merged PRs only
	Author        User         `json:"author"`
	Assignees     []User       `json:"assignees"`
	Labels        []Label      `json:"labels"`
	Milestone     *Milestone   `json:"milestone,omitempty"`
	ProjectFields []FieldValue `json:"projectFields"`
}

// StatusFieldNames are the field names treated as the board column, checked in field order.
var StatusFieldNames = []string{"Status", "Column", "State", "Phase", "Stage"}

// NoStatus labels items without any status field.
const NoStatus = "No Status"

// Status returns the value of the first field whose name is a status field name.
func (i Item) Status() (string, bool) {
	for _, f := range i.ProjectFields {
		for _, name := range StatusFieldNames {
			if f.Name == name {
				return f.Value, true
			}
		}
	}
	return "", false
}

// Stats summarizes all items of a project, before TODO filtering.
type Stats struct {
	Total        int            `json:"total"`
	Todo         int            `json:"todo"`
	InProgress   int            `json:"inProgress"`
	Completed    int            `json:"completed"`
	OpenIssues   int            `json:"openIssues"`
	PullRequests int            `json:"pullRequests"`
	ByStatus     map[string]int `json:"byStatus"`
}

// Project is a fetched project with items filtered to its TODO columns.
type Project struct {
	Name          string   `json:"name"`
	Owner         string   `json:"owner"`
	Repository    string   `json:"repository"`
	ProjectNumber int      `json:"projectNumber"`
	Title         string   `json:"title"`
	URL           string   `json:"url,omitempty"`
	Description   string   `json:"description,omitempty"`
	TodoColumns   []string `json:"todoColumns"`
	Items         []Item   `json:"items"`
	Stats         Stats    `json:"stats"`
	LastFetched   string   `json:"lastFetched"` // ISO8601
}

// ProjectError reports a project that failed to load.
type ProjectError struct {
	ProjectName       string `json:"projectName"`
	Error             string `json:"error"`
	Code              string `json:"code"`
	Retryable         bool   `json:"retryable"`
	RetryAfterSeconds int    `json:"retryAfterSeconds,omitempty"`
}

// Dashboard is one full refresh of every configured project.
type Dashboard struct {
	Projects    []Project      `json:"projects"`
	LastFetched string         `json:"lastFetched"` // ISO8601
	Errors      []ProjectError `json:"errors"`
}
