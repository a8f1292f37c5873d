package gh

import "github.com/h0rv/ghp-dashboard/internal/domain"

// Scope is the kind of account a project is looked up under.
type Scope string

const (
	ScopeOrganization Scope = "organization"
	ScopeUser         Scope = "user"
)

// RawProject is a project as returned upstream, converted to closed variants.
type RawProject struct {
	ID          string
	Title       string
	URL         string
	Description string
	Number      int
	Scope       Scope // Scope the project was found under
	TotalCount  int   // Items upstream, which may exceed len(Items) when pages were capped
	Items       []RawItem
}

// RawItem is a project item. Content is nil for redacted or deleted items and
// for any content type this client does not model.
type RawItem struct {
	ID          string
	Type        string // Upstream item type, not trusted when Content is nil
	CreatedAt   string
	UpdatedAt   string
	Content     Content
	FieldValues []RawFieldValue
}

// Content is one of *IssueContent, *PullRequestContent or *DraftIssueContent.
type Content interface {
	isContent()
}

// IssueContent is the content of an issue item.
type IssueContent struct {
	Title      string
	Body       string
	URL        string
	Number     int
	State      string
	Repository string
	CreatedAt  string
	UpdatedAt  string
	ClosedAt   string
	Author     *domain.User
	Assignees  []domain.User
	Labels     []domain.Label
	Milestone  *domain.Milestone
}

// PullRequestContent is the content of a pull request item.
type PullRequestContent struct {
	Title      string
	Body       string
	URL        string
	Number     int
	State      string
	Merged     bool
	Repository string
	CreatedAt  string
	UpdatedAt  string
	ClosedAt   string
	MergedAt   string
	Author     *domain.User
	Assignees  []domain.User
	Labels     []domain.Label
	Milestone  *domain.Milestone
}

// DraftIssueContent is the content of a draft item.
type DraftIssueContent struct {
	Title     string
	Body      string
	CreatedAt string
	UpdatedAt string
	Creator   *domain.User
	Assignees []domain.User
}

func (*IssueContent) isContent()       {}
func (*PullRequestContent) isContent() {}
func (*DraftIssueContent) isContent()  {}

// RawFieldValue is one field value of an item. Field is nil when upstream did
// not return the field reference.
type RawFieldValue struct {
	Field *string
	Value FieldVariant
}

// FieldVariant is one of TextValue, NumberValue, SingleSelectValue or DateValue.
type FieldVariant interface {
	isFieldVariant()
}

type TextValue struct{ Text string }
type NumberValue struct{ Number float64 }
type SingleSelectValue struct{ Name string }
type DateValue struct{ Date string }

func (TextValue) isFieldVariant()         {}
func (NumberValue) isFieldVariant()       {}
func (SingleSelectValue) isFieldVariant() {}
func (DateValue) isFieldVariant()         {}
