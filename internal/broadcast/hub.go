package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/h0rv/ghp-dashboard/internal/metrics"
)

// DefaultHeartbeatInterval is how often Serve writes a heartbeat.
const DefaultHeartbeatInterval = 30 * time.Second

// ErrClosed is returned by a sink written to after it was closed.
var ErrClosed = errors.New("sink closed")

// Sink is one live connection. Send must be safe for concurrent use.
type Sink interface {
	Send(data []byte) error
}

// Hub is the set of live connections. Create one per process with NewHub and
// share it between the stream handlers and the webhook handler.
type Hub struct {
	mu    sync.RWMutex
	sinks map[Sink]struct{}

	done      chan struct{}
	closeOnce sync.Once

	heartbeat time.Duration
	now       func() time.Time
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// Option configures a Hub.
type Option func(*Hub)

// WithHeartbeat overrides the heartbeat interval used by Serve.
func WithHeartbeat(d time.Duration) Option {
	return func(h *Hub) { h.heartbeat = d }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(h *Hub) { h.logger = l }
}

// WithMetrics records broadcasts and open connections.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Hub) { h.metrics = m }
}

// WithClock overrides time.Now for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(h *Hub) { h.now = now }
}

// NewHub creates an empty hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		sinks:     make(map[Sink]struct{}),
		done:      make(chan struct{}),
		heartbeat: DefaultHeartbeatInterval,
		now:       time.Now,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register adds a sink.
func (h *Hub) Register(s Sink) {
	h.mu.Lock()
	h.sinks[s] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a sink. Removing an unknown sink is a no-op.
func (h *Hub) Unregister(s Sink) {
	h.mu.Lock()
	delete(h.sinks, s)
	h.mu.Unlock()
}

// Len returns the number of registered sinks.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sinks)
}

// Close ends every running Serve call and makes later ones return at once.
// Broadcast keeps working for sinks still registered. Close is idempotent.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// Now returns the hub's current time.
func (h *Hub) Now() time.Time {
	return h.now()
}

// Broadcast writes msg to every sink and returns how many writes succeeded.
// Sinks whose write fails are removed. Failed deliveries are not retried.
func (h *Hub) Broadcast(msg Message) int {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to encode broadcast", zap.Error(err))
		return 0
	}

	h.mu.RLock()
	sinks := make([]Sink, 0, len(h.sinks))
	for s := range h.sinks {
		sinks = append(sinks, s)
	}
	h.mu.RUnlock()

	delivered := 0
	var failed []Sink
	for _, s := range sinks {
		if err := s.Send(data); err != nil {
			failed = append(failed, s)
			continue
		}
		delivered++
	}

	for _, s := range failed {
		h.Unregister(s)
	}
	if len(failed) > 0 {
		h.logger.Debug("removed failed sinks", zap.Int("count", len(failed)))
	}

	if h.metrics != nil {
		h.metrics.Broadcasts.WithLabelValues(string(msg.Type)).Inc()
		h.metrics.BroadcastDropped.Add(float64(len(failed)))
	}
	return delivered
}

// Deliver writes msg to a single sink, removing it on failure.
func (h *Hub) Deliver(s Sink, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := s.Send(data); err != nil {
		h.Unregister(s)
		if h.metrics != nil {
			h.metrics.BroadcastDropped.Inc()
		}
		return err
	}
	return nil
}

// Serve runs one connection: it registers s, sends the connected message and
// a heartbeat every interval until ctx ends, the hub is closed or a write
// fails. s is always unregistered on return. transport labels the connection
// in metrics.
func (h *Hub) Serve(ctx context.Context, s Sink, transport string) error {
	select {
	case <-h.done:
		return nil
	default:
	}

	h.Register(s)
	defer h.Unregister(s)

	if h.metrics != nil {
		gauge := h.metrics.StreamConnections.WithLabelValues(transport)
		gauge.Inc()
		defer gauge.Dec()
	}

	if err := h.Deliver(s, Connected(h.now())); err != nil {
		return err
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-h.done:
			return nil
		case <-ticker.C:
			if err := h.Deliver(s, Heartbeat(h.now())); err != nil {
				h.logger.Debug("heartbeat failed, closing connection",
					zap.String("transport", transport),
					zap.Error(err),
				)
				return err
			}
		}
	}
}
