package gh

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/h0rv/ghp-dashboard/internal/apperr"
	"github.com/h0rv/ghp-dashboard/internal/domain"
)

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// fakeGitHub stands in for the GraphQL endpoint and counts calls per scope.
type fakeGitHub struct {
	t       *testing.T
	respond func(scope Scope, req graphqlRequest, call int) (int, http.Header, string)

	mu       sync.Mutex
	calls    map[Scope]int
	requests []graphqlRequest
	headers  []http.Header
}

func newFakeGitHub(t *testing.T, respond func(scope Scope, req graphqlRequest, call int) (int, http.Header, string)) (*fakeGitHub, *httptest.Server) {
	f := &fakeGitHub{t: t, respond: respond, calls: map[Scope]int{}}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeGitHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req graphqlRequest
	if !assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&req)) {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	scope := ScopeUser
	if strings.Contains(req.Query, "organization(login") {
		scope = ScopeOrganization
	}

	f.mu.Lock()
	f.calls[scope]++
	call := f.calls[scope]
	f.requests = append(f.requests, req)
	f.headers = append(f.headers, r.Header.Clone())
	f.mu.Unlock()

	status, header, body := f.respond(scope, req, call)
	for k, vs := range header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func (f *fakeGitHub) callCount(scope Scope) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[scope]
}

// instantRetry records sleeps instead of waiting and adds no jitter.
func instantRetry(sleeps *[]time.Duration) RetryPolicy {
	p := DefaultRetryPolicy()
	p.Jitter = func(time.Duration) time.Duration { return 0 }
	p.Sleep = func(_ context.Context, d time.Duration) error {
		*sleeps = append(*sleeps, d)
		return nil
	}
	return p
}

func newTestClient(srv *httptest.Server, sleeps *[]time.Duration) *Client {
	return New("test-token", WithEndpoint(srv.URL), WithRetryPolicy(instantRetry(sleeps)))
}

var demo = domain.ProjectDescriptor{
	Name:          "Demo",
	Owner:         "acme",
	Repo:          "widgets",
	ProjectNumber: 3,
	TodoColumns:   []string{"TODO", "Backlog"},
}

const demoProjectJSON = `{
	"id": "PVT_1", "title": "Widgets Roadmap", "url": "https://github.com/orgs/acme/projects/3",
	"shortDescription": "Quarterly plan", "number": 3,
	"items": {
		"totalCount": 3,
		"pageInfo": {"hasNextPage": false, "endCursor": "c1"},
		"nodes": [
			{
				"id": "PVTI_1", "type": "ISSUE", "createdAt": "2024-01-01T00:00:00Z", "updatedAt": "2024-01-02T00:00:00Z",
				"fieldValues": {"nodes": [
					{"__typename": "ProjectV2ItemFieldTextValue", "text": "Fix login", "field": {"name": "Title"}},
					{"__typename": "ProjectV2ItemFieldSingleSelectValue", "name": "TODO", "field": {"name": "Status"}},
					{"__typename": "ProjectV2ItemFieldIterationValue"}
				]},
				"content": {
					"__typename": "Issue", "title": "Fix login", "body": "It breaks", "url": "https://github.com/acme/widgets/issues/7",
					"number": 7, "state": "OPEN", "createdAt": "2024-01-01T00:00:00Z",
					"author": {"login": "octocat"},
					"repository": {"nameWithOwner": "acme/widgets"},
					"assignees": {"nodes": [{"login": "hubot"}]},
					"labels": {"nodes": [{"name": "bug", "color": "d73a4a"}]},
					"milestone": {"title": "v1"}
				}
			},
			{
				"id": "PVTI_2", "type": "PULL_REQUEST",
				"fieldValues": {"nodes": [
					{"__typename": "ProjectV2ItemFieldSingleSelectValue", "name": "Done", "field": {"name": "Status"}},
					{"__typename": "ProjectV2ItemFieldNumberValue", "number": 5, "field": null}
				]},
				"content": {
					"__typename": "PullRequest", "title": "Ship it", "url": "https://github.com/acme/widgets/pull/8",
					"number": 8, "state": "MERGED", "merged": true, "mergedAt": "2024-01-03T00:00:00Z",
					"author": null
				}
			},
			{
				"id": "PVTI_3", "type": "REDACTED",
				"fieldValues": {"nodes": []},
				"content": null
			}
		]
	}
}`

func okBody(scope Scope, project string) string {
	return `{"data": {"` + string(scope) + `": {"projectV2": ` + project + `}}}`
}

func notFoundBody(scope Scope) string {
	return `{"data": {"` + string(scope) + `": null}, "errors": [{"type": "NOT_FOUND", "message": "Could not resolve to an Organization with the login of 'acme'."}]}`
}

func TestFetchProject_OrganizationScope(t *testing.T) {
	fake, srv := newFakeGitHub(t, func(scope Scope, _ graphqlRequest, _ int) (int, http.Header, string) {
		return http.StatusOK, nil, okBody(scope, demoProjectJSON)
	})
	var sleeps []time.Duration

	project, err := newTestClient(srv, &sleeps).FetchProject(context.Background(), demo)
	require.NoError(t, err)

	assert.Equal(t, 1, fake.callCount(ScopeOrganization))
	assert.Equal(t, 0, fake.callCount(ScopeUser))
	assert.Empty(t, sleeps)

	assert.Equal(t, "PVT_1", project.ID)
	assert.Equal(t, "Widgets Roadmap", project.Title)
	assert.Equal(t, "Quarterly plan", project.Description)
	assert.Equal(t, ScopeOrganization, project.Scope)
	require.Len(t, project.Items, 3)

	issue, ok := project.Items[0].Content.(*IssueContent)
	require.True(t, ok)
	assert.Equal(t, "Fix login", issue.Title)
	assert.Equal(t, "acme/widgets", issue.Repository)
	require.NotNil(t, issue.Author)
	assert.Equal(t, "octocat", issue.Author.Login)
	assert.Equal(t, []domain.User{{Login: "hubot"}}, issue.Assignees)
	assert.Equal(t, []domain.Label{{Name: "bug", Color: "d73a4a"}}, issue.Labels)
	require.NotNil(t, issue.Milestone)
	assert.Equal(t, "v1", issue.Milestone.Title)

	// The iteration value has no display variant and is skipped.
	require.Len(t, project.Items[0].FieldValues, 2)
	assert.Equal(t, SingleSelectValue{Name: "TODO"}, project.Items[0].FieldValues[1].Value)
	require.NotNil(t, project.Items[0].FieldValues[1].Field)
	assert.Equal(t, "Status", *project.Items[0].FieldValues[1].Field)

	pr, ok := project.Items[1].Content.(*PullRequestContent)
	require.True(t, ok)
	assert.True(t, pr.Merged)
	assert.Nil(t, pr.Author)
	assert.Nil(t, project.Items[1].FieldValues[1].Field)
	assert.Equal(t, NumberValue{Number: 5}, project.Items[1].FieldValues[1].Value)

	assert.Nil(t, project.Items[2].Content)
}

func TestFetchProject_RequestShape(t *testing.T) {
	fake, srv := newFakeGitHub(t, func(scope Scope, _ graphqlRequest, _ int) (int, http.Header, string) {
		return http.StatusOK, nil, okBody(scope, demoProjectJSON)
	})
	var sleeps []time.Duration
	client := newTestClient(srv, &sleeps)

	_, err := client.FetchProject(context.Background(), demo)
	require.NoError(t, err)
	_, err = client.FetchProject(context.Background(), demo)
	require.NoError(t, err)

	require.Len(t, fake.requests, 2)
	h := fake.headers[0]
	assert.Equal(t, "Bearer test-token", h.Get("Authorization"))
	assert.Equal(t, "no-cache, no-store, must-revalidate", h.Get("Cache-Control"))
	assert.Equal(t, "no-cache", h.Get("Pragma"))

	vars := fake.requests[0].Variables
	assert.Equal(t, "acme", vars["login"])
	assert.EqualValues(t, 3, vars["number"])
	assert.EqualValues(t, 100, vars["first"])
	assert.Nil(t, vars["after"])

	first, _ := fake.requests[0].Variables["nonce"].(string)
	second, _ := fake.requests[1].Variables["nonce"].(string)
	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}

func TestFetchProject_FallsBackToUserScope(t *testing.T) {
	fake, srv := newFakeGitHub(t, func(scope Scope, _ graphqlRequest, _ int) (int, http.Header, string) {
		if scope == ScopeOrganization {
			return http.StatusOK, nil, notFoundBody(scope)
		}
		return http.StatusOK, nil, okBody(scope, demoProjectJSON)
	})
	var sleeps []time.Duration

	project, err := newTestClient(srv, &sleeps).FetchProject(context.Background(), demo)
	require.NoError(t, err)

	assert.Equal(t, ScopeUser, project.Scope)
	assert.Equal(t, 3, fake.callCount(ScopeOrganization), "not found is retried within its scope")
	assert.Equal(t, 1, fake.callCount(ScopeUser))
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sleeps)
}

func TestFetchProject_NullOwnerFallsBack(t *testing.T) {
	fake, srv := newFakeGitHub(t, func(scope Scope, _ graphqlRequest, _ int) (int, http.Header, string) {
		if scope == ScopeOrganization {
			return http.StatusOK, nil, `{"data": {"organization": {"projectV2": null}}}`
		}
		return http.StatusOK, nil, okBody(scope, demoProjectJSON)
	})
	var sleeps []time.Duration

	_, err := newTestClient(srv, &sleeps).FetchProject(context.Background(), demo)
	require.NoError(t, err)
	assert.Equal(t, 3, fake.callCount(ScopeOrganization))
	assert.Equal(t, 1, fake.callCount(ScopeUser))
}

func TestFetchProject_RateLimitSkipsUserScope(t *testing.T) {
	fake, srv := newFakeGitHub(t, func(Scope, graphqlRequest, int) (int, http.Header, string) {
		h := http.Header{}
		h.Set("X-RateLimit-Remaining", "0")
		h.Set("Retry-After", "30")
		return http.StatusForbidden, h, `{"message": "API rate limit exceeded for user ID 1."}`
	})
	var sleeps []time.Duration

	project, err := newTestClient(srv, &sleeps).FetchProject(context.Background(), demo)
	assert.Nil(t, project)

	var e *apperr.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, apperr.KindRateLimit, e.Kind)
	assert.True(t, e.Retryable)
	assert.Equal(t, 30*time.Second, e.RetryAfter)
	assert.Equal(t, "Demo", e.Project)

	assert.Equal(t, 1, fake.callCount(ScopeOrganization))
	assert.Equal(t, 0, fake.callCount(ScopeUser))
	assert.Empty(t, sleeps)
}

func TestFetchProject_GraphQLRateLimitSkipsUserScope(t *testing.T) {
	fake, srv := newFakeGitHub(t, func(Scope, graphqlRequest, int) (int, http.Header, string) {
		return http.StatusOK, nil, `{"data": null, "errors": [{"type": "RATE_LIMITED", "message": "API rate limit exceeded for user ID 1."}]}`
	})
	var sleeps []time.Duration

	_, err := newTestClient(srv, &sleeps).FetchProject(context.Background(), demo)
	assert.True(t, apperr.Is(err, apperr.KindRateLimit))
	assert.Equal(t, 1, fake.callCount(ScopeOrganization))
	assert.Equal(t, 0, fake.callCount(ScopeUser))
}

func TestFetchProject_NotFoundInBothScopes(t *testing.T) {
	fake, srv := newFakeGitHub(t, func(scope Scope, _ graphqlRequest, _ int) (int, http.Header, string) {
		return http.StatusOK, nil, notFoundBody(scope)
	})
	var sleeps []time.Duration

	_, err := newTestClient(srv, &sleeps).FetchProject(context.Background(), demo)

	var e *apperr.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, apperr.KindNotFound, e.Kind)
	assert.False(t, e.Retryable)
	assert.Equal(t, 3, fake.callCount(ScopeOrganization))
	assert.Equal(t, 3, fake.callCount(ScopeUser))
	assert.Len(t, sleeps, 4)
}

func TestFetchProject_AuthErrorSkipsUserScope(t *testing.T) {
	fake, srv := newFakeGitHub(t, func(Scope, graphqlRequest, int) (int, http.Header, string) {
		return http.StatusUnauthorized, nil, `{"message": "Bad credentials"}`
	})
	var sleeps []time.Duration

	_, err := newTestClient(srv, &sleeps).FetchProject(context.Background(), demo)

	assert.True(t, apperr.Is(err, apperr.KindAuth))
	assert.False(t, apperr.IsRetryable(err))
	assert.Equal(t, 1, fake.callCount(ScopeOrganization))
	assert.Equal(t, 0, fake.callCount(ScopeUser))
	assert.Empty(t, sleeps)
}

func TestFetchProject_OtherErrorWinsOverNotFound(t *testing.T) {
	_, srv := newFakeGitHub(t, func(scope Scope, _ graphqlRequest, _ int) (int, http.Header, string) {
		if scope == ScopeOrganization {
			return http.StatusForbidden, nil, `{"message": "Resource not accessible by integration"}`
		}
		return http.StatusOK, nil, notFoundBody(scope)
	})
	var sleeps []time.Duration

	_, err := newTestClient(srv, &sleeps).FetchProject(context.Background(), demo)
	assert.True(t, apperr.Is(err, apperr.KindProjectAccessDenied))
}

func TestFetchProject_ServerErrorsAreRetried(t *testing.T) {
	fake, srv := newFakeGitHub(t, func(scope Scope, _ graphqlRequest, call int) (int, http.Header, string) {
		if call < 3 {
			return http.StatusBadGateway, nil, `{"message": "Server Error"}`
		}
		return http.StatusOK, nil, okBody(scope, demoProjectJSON)
	})
	var sleeps []time.Duration

	project, err := newTestClient(srv, &sleeps).FetchProject(context.Background(), demo)
	require.NoError(t, err)
	assert.Equal(t, ScopeOrganization, project.Scope)
	assert.Equal(t, 3, fake.callCount(ScopeOrganization))
	assert.Len(t, sleeps, 2)
}

func TestFetchProject_MalformedResponse(t *testing.T) {
	_, srv := newFakeGitHub(t, func(Scope, graphqlRequest, int) (int, http.Header, string) {
		return http.StatusOK, nil, `{"data": {"organization": {"projectV2": {"number": "three"}}}}`
	})
	var sleeps []time.Duration

	_, err := newTestClient(srv, &sleeps).FetchProject(context.Background(), demo)
	assert.True(t, apperr.Is(err, apperr.KindParse))
	assert.Empty(t, sleeps)
}

func TestFetchProject_Timeout(t *testing.T) {
	_, srv := newFakeGitHub(t, func(scope Scope, _ graphqlRequest, _ int) (int, http.Header, string) {
		time.Sleep(200 * time.Millisecond)
		return http.StatusOK, nil, okBody(scope, demoProjectJSON)
	})
	var sleeps []time.Duration
	client := New("test-token",
		WithEndpoint(srv.URL),
		WithTimeout(20*time.Millisecond),
		WithRetryPolicy(instantRetry(&sleeps)),
	)

	_, err := client.FetchProject(context.Background(), demo)

	var e *apperr.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, apperr.KindTimeout, e.Kind)
	assert.True(t, e.Retryable)
}

func TestFetchProject_Paginates(t *testing.T) {
	page := func(id, cursor string, hasNext bool) string {
		next := "false"
		if hasNext {
			next = "true"
		}
		return `{"id": "PVT_1", "title": "T", "number": 3, "items": {"totalCount": 2,
			"pageInfo": {"hasNextPage": ` + next + `, "endCursor": "` + cursor + `"},
			"nodes": [{"id": "` + id + `", "type": "DRAFT_ISSUE", "fieldValues": {"nodes": []},
				"content": {"__typename": "DraftIssue", "title": "` + id + `"}}]}}`
	}
	fake, srv := newFakeGitHub(t, func(scope Scope, req graphqlRequest, _ int) (int, http.Header, string) {
		if req.Variables["after"] == "c1" {
			return http.StatusOK, nil, okBody(scope, page("B", "c2", false))
		}
		return http.StatusOK, nil, okBody(scope, page("A", "c1", true))
	})
	var sleeps []time.Duration

	project, err := newTestClient(srv, &sleeps).FetchProject(context.Background(), demo)
	require.NoError(t, err)
	require.Len(t, project.Items, 2)
	assert.Equal(t, "A", project.Items[0].ID)
	assert.Equal(t, "B", project.Items[1].ID)
	assert.Equal(t, 2, fake.callCount(ScopeOrganization))

	draft, ok := project.Items[1].Content.(*DraftIssueContent)
	require.True(t, ok)
	assert.Equal(t, "B", draft.Title)
}
