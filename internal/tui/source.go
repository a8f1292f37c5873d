package tui

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/h0rv/ghp-dashboard/internal/apperr"
	"github.com/h0rv/ghp-dashboard/internal/broadcast"
	"github.com/h0rv/ghp-dashboard/internal/domain"
)

// Source loads a full dashboard snapshot.
type Source interface {
	Load(ctx context.Context) (*domain.Dashboard, error)
}

// EventSource streams live update notifications. The returned channel is
// closed when the stream ends.
type EventSource interface {
	Events(ctx context.Context) (<-chan broadcast.Message, error)
}

// Builder is satisfied by the dashboard pipeline.
type Builder interface {
	Build(ctx context.Context) (*domain.Dashboard, error)
}

// LocalSource builds dashboards in-process.
type LocalSource struct {
	Builder Builder
}

// Load implements Source.
func (s LocalSource) Load(ctx context.Context) (*domain.Dashboard, error) {
	return s.Builder.Build(ctx)
}

// RemoteSource reads dashboards and events from a running dashboard server.
type RemoteSource struct {
	baseURL string
	client  *http.Client
	stream  *http.Client
}

// NewRemoteSource creates a source for the server at baseURL. The timeout
// applies to snapshot requests only; the event stream stays open until its
// context ends.
func NewRemoteSource(baseURL string, timeout time.Duration) *RemoteSource {
	return &RemoteSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		stream:  &http.Client{},
	}
}

// Load implements Source. Non-200 responses are decoded into classified errors.
func (s *RemoteSource) Load(ctx context.Context) (*domain.Dashboard, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/projects", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, apperr.Classify(err, apperr.WithOperation("loadDashboard"))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeFailure(resp)
	}

	var dash domain.Dashboard
	if err := json.NewDecoder(resp.Body).Decode(&dash); err != nil {
		return nil, apperr.Wrap(err, apperr.KindParse, "Unexpected response from the dashboard server.")
	}
	return &dash, nil
}

func decodeFailure(resp *http.Response) error {
	var body apperr.Body
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err := json.Unmarshal(raw, &body); err != nil || body.Code == "" {
		return apperr.Classify(&apperr.HTTPError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))})
	}
	return apperr.New(apperr.Kind(body.Code), body.Error).
		WithStatus(resp.StatusCode).
		WithRetryable(body.Retryable)
}

// Events implements EventSource by reading the server's SSE stream.
func (s *RemoteSource) Events(ctx context.Context) (<-chan broadcast.Message, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/events", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := s.stream.Do(req)
	if err != nil {
		return nil, apperr.Classify(err, apperr.WithOperation("subscribe"))
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, decodeFailure(resp)
	}

	out := make(chan broadcast.Message)
	go func() {
		defer close(out)
		defer resp.Body.Close()
		readEvents(ctx, resp.Body, out)
	}()
	return out, nil
}

// readEvents forwards every well-formed data frame. Comment lines and
// unparseable payloads are skipped.
func readEvents(ctx context.Context, r io.Reader, out chan<- broadcast.Message) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		data, ok := strings.CutPrefix(scanner.Text(), "data: ")
		if !ok {
			continue
		}
		var msg broadcast.Message
		if err := json.Unmarshal([]byte(data), &msg); err != nil {
			continue
		}
		select {
		case out <- msg:
		case <-ctx.Done():
			return
		}
	}
}
