// Package apperr defines the classified error taxonomy shared by the fetcher,
// the fan-out orchestrator and the HTTP boundary.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kind is a taxonomy key. Its string value is exposed to clients as "code".
type Kind string

// Error kinds.
const (
	KindRateLimit           Kind = "RATE_LIMIT"
	KindAuth                Kind = "AUTH_ERROR"
	KindNotFound            Kind = "NOT_FOUND"
	KindNetwork             Kind = "NETWORK_ERROR"
	KindTimeout             Kind = "TIMEOUT"
	KindProjectAccessDenied Kind = "PROJECT_ACCESS_DENIED"
	KindWebhook             Kind = "WEBHOOK_ERROR"
	KindParse               Kind = "PARSE_ERROR"
	KindGeneric             Kind = "GENERIC_ERROR"
)

// MaxRateLimitWait caps how long a caller waits out a rate limit window.
const MaxRateLimitWait = 5 * time.Minute

// defaultRateLimitWait is used when upstream gave no reset hint.
const defaultRateLimitWait = time.Minute

type kindDefaults struct {
	status    int
	retryable bool
	message   string
}

var defaults = map[Kind]kindDefaults{
	KindRateLimit:           {http.StatusTooManyRequests, true, "GitHub API rate limit exceeded. Please try again later."},
	KindAuth:                {http.StatusUnauthorized, false, "GitHub authentication failed. Check the configured token."},
	KindNotFound:            {http.StatusNotFound, false, "Project not found."},
	KindNetwork:             {http.StatusServiceUnavailable, true, "Network error while contacting GitHub."},
	KindTimeout:             {http.StatusGatewayTimeout, true, "Request to GitHub timed out."},
	KindProjectAccessDenied: {http.StatusForbidden, false, "Access to the project was denied."},
	KindWebhook:             {http.StatusInternalServerError, false, "Webhook processing failed."},
	KindParse:               {http.StatusBadGateway, false, "Unexpected response from GitHub."},
	KindGeneric:             {http.StatusInternalServerError, true, "An unexpected error occurred."},
}

// Error is a classified error. Values are never mutated after construction;
// the With* methods return modified copies.
type Error struct {
	Kind       Kind
	Message    string // Human-readable, safe to show to clients
	StatusCode int
	Retryable  bool
	RetryAfter time.Duration // Only meaningful for KindRateLimit
	Operation  string
	Project    string
	Timestamp  time.Time

	cause error
}

// New creates an error of the given kind with the kind's default status and retry flag.
// An empty message uses the kind's default message.
func New(kind Kind, message string) *Error {
	d, ok := defaults[kind]
	if !ok {
		kind = KindGeneric
		d = defaults[KindGeneric]
	}
	if message == "" {
		message = d.message
	}
	return &Error{
		Kind:       kind,
		Message:    message,
		StatusCode: d.status,
		Retryable:  d.retryable,
		Timestamp:  time.Now().UTC(),
	}
}

// Wrap creates an error of the given kind that keeps cause for logging and errors.Is.
func Wrap(cause error, kind Kind, message string) *Error {
	e := New(kind, message)
	e.cause = cause
	return e
}

// Error implements error.
func (e *Error) Error() string {
	var prefix string
	switch {
	case e.Project != "" && e.Operation != "":
		prefix = fmt.Sprintf("%s %s: ", e.Operation, e.Project)
	case e.Operation != "":
		prefix = e.Operation + ": "
	case e.Project != "":
		prefix = e.Project + ": "
	}
	if e.cause != nil {
		return fmt.Sprintf("%s%s: %s (%v)", prefix, e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s%s: %s", prefix, e.Kind, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// WithContext returns a copy annotated with operation and project name.
// Empty arguments keep the existing values.
func (e *Error) WithContext(operation, project string) *Error {
	c := *e
	if operation != "" {
		c.Operation = operation
	}
	if project != "" {
		c.Project = project
	}
	return &c
}

// WithRetryable returns a copy with the retry flag replaced.
func (e *Error) WithRetryable(retryable bool) *Error {
	c := *e
	c.Retryable = retryable
	return &c
}

// WithStatus returns a copy with the status code replaced. GENERIC_ERROR
// re-derives its retry flag from the new status.
func (e *Error) WithStatus(status int) *Error {
	c := *e
	c.StatusCode = status
	if c.Kind == KindGeneric {
		c.Retryable = status >= http.StatusInternalServerError
	}
	return &c
}

// WithRetryAfter returns a copy carrying a rate limit wait hint.
func (e *Error) WithRetryAfter(d time.Duration) *Error {
	c := *e
	c.RetryAfter = d
	return &c
}

// Body is the JSON shape returned at the HTTP boundary.
type Body struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable"`
}

// Body returns the client-facing representation. It never includes the cause.
func (e *Error) Body() Body {
	return Body{
		Error:     e.Message,
		Code:      string(e.Kind),
		Retryable: e.Retryable,
	}
}

// Is reports whether err is a classified error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// IsRetryable reports whether err is classified and retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// RateLimitWait returns how long to wait before retrying a rate limited call,
// capped at MaxRateLimitWait. It returns 0 for other errors.
func RateLimitWait(err error) time.Duration {
	var e *Error
	if !errors.As(err, &e) || e.Kind != KindRateLimit {
		return 0
	}
	wait := e.RetryAfter
	if wait <= 0 {
		wait = defaultRateLimitWait
	}
	if wait > MaxRateLimitWait {
		wait = MaxRateLimitWait
	}
	return wait
}
