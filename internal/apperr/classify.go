package apperr

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPError is a non-2xx upstream response, produced by the GitHub transport.
type HTTPError struct {
	StatusCode  int
	Message     string        // Upstream message, kept for logs only
	RateLimited bool          // X-RateLimit-Remaining was 0 or the message mentions a rate limit
	RetryAfter  time.Duration // From Retry-After or X-RateLimit-Reset
}

// Error implements error.
func (e *HTTPError) Error() string {
	if e.Message == "" {
		return "github responded with status " + http.StatusText(e.StatusCode)
	}
	return "github responded with status " + http.StatusText(e.StatusCode) + ": " + e.Message
}

// ClassifyOption annotates a classification with context.
type ClassifyOption func(*Error)

// WithOperation records the operation that failed.
func WithOperation(op string) ClassifyOption {
	return func(e *Error) { e.Operation = op }
}

// WithProject records the project the operation was for.
func WithProject(name string) ClassifyOption {
	return func(e *Error) { e.Project = name }
}

// Classify maps any error onto the taxonomy. Classifying an already classified
// error returns it unchanged, options included. Classify(nil) returns nil.
func Classify(err error, opts ...ClassifyOption) *Error {
	if err == nil {
		return nil
	}

	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}

	e := classify(err)
	e.cause = err
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func classify(err error) *Error {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return fromHTTPError(httpErr)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return New(KindTimeout, "")
	}
	if errors.Is(err, context.Canceled) {
		return New(KindGeneric, "The request was cancelled.").WithStatus(499)
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return New(KindParse, "")
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return New(KindTimeout, "")
	}

	if kind, ok := classifyMessage(err.Error()); ok {
		return New(kind, "")
	}

	var opErr *net.OpError
	var dnsErr *net.DNSError
	var urlErr *url.Error
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) || errors.As(err, &urlErr) ||
		errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return New(KindNetwork, "")
	}

	return New(KindGeneric, "")
}

func fromHTTPError(h *HTTPError) *Error {
	lower := strings.ToLower(h.Message)
	switch {
	case h.StatusCode == http.StatusTooManyRequests,
		h.StatusCode == http.StatusForbidden && (h.RateLimited || strings.Contains(lower, "rate limit")):
		return New(KindRateLimit, "").WithStatus(h.StatusCode).WithRetryAfter(h.RetryAfter)
	case h.StatusCode == http.StatusUnauthorized:
		return New(KindAuth, "")
	case h.StatusCode == http.StatusForbidden:
		return New(KindProjectAccessDenied, "")
	case h.StatusCode == http.StatusNotFound:
		return New(KindNotFound, "")
	case h.StatusCode == http.StatusRequestTimeout || h.StatusCode == http.StatusGatewayTimeout:
		return New(KindTimeout, "").WithStatus(h.StatusCode)
	default:
		return New(KindGeneric, "").WithStatus(h.StatusCode)
	}
}

// classifyMessage recognizes GraphQL error messages, which arrive with HTTP 200.
func classifyMessage(msg string) (Kind, bool) {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "rate limit"), strings.Contains(lower, "abuse detection"):
		return KindRateLimit, true
	case strings.Contains(lower, "bad credentials"), strings.Contains(lower, "requires authentication"):
		return KindAuth, true
	case strings.Contains(lower, "could not resolve to"), strings.Contains(lower, "not found"):
		return KindNotFound, true
	case strings.Contains(lower, "resource not accessible"), strings.Contains(lower, "saml"),
		strings.Contains(lower, "insufficient scopes"), strings.Contains(lower, "forbidden"):
		return KindProjectAccessDenied, true
	case strings.Contains(lower, "decoding response"):
		return KindParse, true
	case strings.Contains(lower, "timeout"), strings.Contains(lower, "timed out"):
		return KindTimeout, true
	case strings.Contains(lower, "connection refused"), strings.Contains(lower, "no such host"),
		strings.Contains(lower, "connection reset"), strings.Contains(lower, "broken pipe"):
		return KindNetwork, true
	}
	return "", false
}
