// Package gh provides a GraphQL client for the GitHub Projects v2 API.
// It hides the query shapes, scope fallback and retries behind FetchProject.
package gh

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/machinebox/graphql"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/h0rv/ghp-dashboard/internal/apperr"
)

// DefaultEndpoint is the public GitHub GraphQL endpoint.
const DefaultEndpoint = "https://api.github.com/graphql"

// DefaultTimeout bounds a single outbound HTTP call.
const DefaultTimeout = 30 * time.Second

// Client is a read-only GitHub GraphQL client for Projects v2.
type Client struct {
	gql      *graphql.Client
	endpoint string
	timeout  time.Duration
	base     http.RoundTripper
	retry    RetryPolicy
	scopes   []scopeStrategy
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoint overrides the GraphQL endpoint.
func WithEndpoint(url string) Option {
	return func(c *Client) { c.endpoint = url }
}

// WithTimeout overrides the per-call HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithTransport sets the base transport under authentication and status handling.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.base = rt }
}

// WithRetryPolicy overrides the per-scope retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) { c.retry = p }
}

// WithLogger sets the logger used for retries and scope fallbacks.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client that authenticates with token.
func New(token string, opts ...Option) *Client {
	c := &Client{
		endpoint: DefaultEndpoint,
		timeout:  DefaultTimeout,
		base:     http.DefaultTransport,
		retry:    DefaultRetryPolicy(),
		scopes:   scopeStrategies,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	// oauth2 wraps whichever client it finds in the context.
	baseClient := &http.Client{Transport: &statusTransport{base: c.base, now: c.now}}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, baseClient)
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	httpClient.Timeout = c.timeout

	c.gql = graphql.NewClient(c.endpoint, graphql.WithHTTPClient(httpClient))
	return c
}

// makeRequest executes a GraphQL request with cache-defeating headers and a nonce variable.
func (c *Client) makeRequest(ctx context.Context, req *graphql.Request, resp interface{}) error {
	req.Header.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	req.Header.Set("Pragma", "no-cache")
	req.Var("nonce", fmt.Sprintf("%d-%s", c.now().UnixNano(), uuid.NewString()))
	return c.gql.Run(ctx, req, resp)
}

// statusTransport turns non-2xx responses into *apperr.HTTPError. The GraphQL
// client would otherwise decode a JSON error body and drop the status code.
type statusTransport struct {
	base http.RoundTripper
	now  func() time.Time
}

const maxErrorBody = 64 * 1024

func (t *statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var payload struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &payload)

	httpErr := &apperr.HTTPError{
		StatusCode:  resp.StatusCode,
		Message:     payload.Message,
		RateLimited: resp.Header.Get("X-RateLimit-Remaining") == "0",
		RetryAfter:  t.retryAfter(resp.Header),
	}
	if strings.Contains(strings.ToLower(payload.Message), "rate limit") {
		httpErr.RateLimited = true
	}
	return nil, httpErr
}

// retryAfter reads Retry-After (seconds) or X-RateLimit-Reset (unix seconds).
func (t *statusTransport) retryAfter(h http.Header) time.Duration {
	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	if v := h.Get("X-RateLimit-Reset"); v != "" {
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
			if d := time.Unix(epoch, 0).Sub(t.now()); d > 0 {
				return d
			}
		}
	}
	return 0
}
