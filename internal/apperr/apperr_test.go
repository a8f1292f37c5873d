package apperr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	tests := []struct {
		kind      Kind
		status    int
		retryable bool
	}{
		{KindRateLimit, http.StatusTooManyRequests, true},
		{KindAuth, http.StatusUnauthorized, false},
		{KindNotFound, http.StatusNotFound, false},
		{KindNetwork, http.StatusServiceUnavailable, true},
		{KindTimeout, http.StatusGatewayTimeout, true},
		{KindProjectAccessDenied, http.StatusForbidden, false},
		{KindWebhook, http.StatusInternalServerError, false},
		{KindParse, http.StatusBadGateway, false},
		{KindGeneric, http.StatusInternalServerError, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			e := New(tt.kind, "")
			assert.Equal(t, tt.kind, e.Kind)
			assert.Equal(t, tt.status, e.StatusCode)
			assert.Equal(t, tt.retryable, e.Retryable)
			assert.NotEmpty(t, e.Message)
			assert.False(t, e.Timestamp.IsZero())
		})
	}
}

func TestNew_UnknownKindFallsBackToGeneric(t *testing.T) {
	e := New(Kind("SOMETHING_ELSE"), "boom")
	assert.Equal(t, KindGeneric, e.Kind)
	assert.Equal(t, "boom", e.Message)
}

func TestWithStatus_GenericRetryableOnlyForServerErrors(t *testing.T) {
	assert.False(t, New(KindGeneric, "").WithStatus(http.StatusBadRequest).Retryable)
	assert.True(t, New(KindGeneric, "").WithStatus(http.StatusBadGateway).Retryable)
	// Other kinds keep their own flag.
	assert.False(t, New(KindAuth, "").WithStatus(http.StatusInternalServerError).Retryable)
}

func TestWithHelpers_DoNotMutate(t *testing.T) {
	orig := New(KindNotFound, "missing")
	changed := orig.WithRetryable(true).WithContext("fetchProject", "Demo")

	assert.False(t, orig.Retryable)
	assert.Empty(t, orig.Operation)
	assert.True(t, changed.Retryable)
	assert.Equal(t, "fetchProject", changed.Operation)
	assert.Equal(t, "Demo", changed.Project)
}

func TestClassify_Nil(t *testing.T) {
	assert.Nil(t, Classify(nil))
}

func TestClassify_Idempotent(t *testing.T) {
	first := Classify(errors.New("connection refused"), WithOperation("fetch"), WithProject("Demo"))
	require.NotNil(t, first)

	second := Classify(first, WithProject("Other"))
	assert.Same(t, first, second)

	wrapped := fmt.Errorf("outer: %w", first)
	assert.Same(t, first, Classify(wrapped))
}

func TestClassify_HTTPErrors(t *testing.T) {
	tests := []struct {
		name      string
		err       *HTTPError
		kind      Kind
		retryable bool
	}{
		{"rate limit by header", &HTTPError{StatusCode: 403, RateLimited: true}, KindRateLimit, true},
		{"rate limit by message", &HTTPError{StatusCode: 403, Message: "API rate limit exceeded for user"}, KindRateLimit, true},
		{"too many requests", &HTTPError{StatusCode: 429}, KindRateLimit, true},
		{"unauthorized", &HTTPError{StatusCode: 401, Message: "Bad credentials"}, KindAuth, false},
		{"forbidden", &HTTPError{StatusCode: 403, Message: "Resource not accessible by integration"}, KindProjectAccessDenied, false},
		{"not found", &HTTPError{StatusCode: 404}, KindNotFound, false},
		{"bad gateway", &HTTPError{StatusCode: 502}, KindGeneric, true},
		{"bad request", &HTTPError{StatusCode: 400}, KindGeneric, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := Classify(tt.err)
			assert.Equal(t, tt.kind, e.Kind)
			assert.Equal(t, tt.retryable, e.Retryable)
		})
	}
}

func TestClassify_RateLimitKeepsRetryAfter(t *testing.T) {
	e := Classify(&HTTPError{StatusCode: 403, RateLimited: true, RetryAfter: 42 * time.Second})
	assert.Equal(t, KindRateLimit, e.Kind)
	assert.Equal(t, 42*time.Second, e.RetryAfter)
	assert.Equal(t, 403, e.StatusCode)
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o deadline" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestClassify_Transport(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind Kind
	}{
		{"deadline", context.DeadlineExceeded, KindTimeout},
		{"net timeout", timeoutErr{}, KindTimeout},
		{"dial", &net.OpError{Op: "dial", Err: errors.New("boom")}, KindNetwork},
		{"refused text", errors.New("dial tcp: connection refused"), KindNetwork},
		{"json", &json.SyntaxError{}, KindParse},
		{"decoding", errors.New("decoding response: invalid character"), KindParse},
		{"graphql rate limit", errors.New("graphql: API rate limit exceeded"), KindRateLimit},
		{"graphql not found", errors.New("graphql: Could not resolve to an Organization with the login of 'x'."), KindNotFound},
		{"graphql credentials", errors.New("graphql: Bad credentials"), KindAuth},
		{"graphql saml", errors.New("graphql: Resource protected by organization SAML enforcement"), KindProjectAccessDenied},
		{"unknown", errors.New("something odd"), KindGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, Classify(tt.err).Kind)
		})
	}
}

func TestClassify_CancelledIsNotRetryable(t *testing.T) {
	e := Classify(context.Canceled)
	assert.Equal(t, KindGeneric, e.Kind)
	assert.False(t, e.Retryable)
}

func TestClassify_KeepsCause(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	e := Classify(cause, WithOperation("fetchProject"))
	assert.ErrorIs(t, e, cause)
	assert.Equal(t, "fetchProject", e.Operation)
	assert.Contains(t, e.Error(), "NETWORK_ERROR")
}

func TestBody_DoesNotLeakCause(t *testing.T) {
	e := Wrap(errors.New("secret upstream detail"), KindNetwork, "")
	body := e.Body()
	assert.Equal(t, "NETWORK_ERROR", body.Code)
	assert.True(t, body.Retryable)
	assert.NotContains(t, body.Error, "secret upstream detail")
}

func TestIsHelpers(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", New(KindTimeout, ""))
	assert.True(t, Is(err, KindTimeout))
	assert.False(t, Is(err, KindAuth))
	assert.True(t, IsRetryable(err))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestRateLimitWait(t *testing.T) {
	assert.Zero(t, RateLimitWait(New(KindNetwork, "")))
	assert.Equal(t, time.Minute, RateLimitWait(New(KindRateLimit, "")))
	assert.Equal(t, 10*time.Second, RateLimitWait(New(KindRateLimit, "").WithRetryAfter(10*time.Second)))
	assert.Equal(t, MaxRateLimitWait, RateLimitWait(New(KindRateLimit, "").WithRetryAfter(time.Hour)))
}
