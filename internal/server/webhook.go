package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/go-github/v57/github"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/h0rv/ghp-dashboard/internal/apperr"
	"github.com/h0rv/ghp-dashboard/internal/broadcast"
)

const maxWebhookBody = 1 << 20 // 1MB

// Webhook result labels.
const (
	webhookAccepted     = "accepted"
	webhookIgnored      = "ignored"
	webhookUnauthorized = "unauthorized"
	webhookRateLimited  = "rate_limited"
	webhookFailed       = "error"
)

// WebhookResponse is the body of an accepted webhook.
type WebhookResponse struct {
	Received bool `json:"received"`
}

// limiterSet hands out one token bucket per client IP. Buckets are dropped
// wholesale every hour to bound memory.
type limiterSet struct {
	mu          sync.Mutex
	limiters    map[string]*rate.Limiter
	limit       rate.Limit
	burst       int
	lastCleanup time.Time
}

func newLimiterSet(perSecond float64, burst int) *limiterSet {
	return &limiterSet{
		limiters:    make(map[string]*rate.Limiter),
		limit:       rate.Limit(perSecond),
		burst:       burst,
		lastCleanup: time.Now(),
	}
}

func (l *limiterSet) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if time.Since(l.lastCleanup) > time.Hour {
		l.limiters = make(map[string]*rate.Limiter)
		l.lastCleanup = time.Now()
	}

	limiter, ok := l.limiters[ip]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[ip] = limiter
	}
	return limiter.Allow()
}

// handleWebhook verifies and acknowledges a GitHub webhook delivery and tells
// every open connection that a project probably changed.
func (s *Server) handleWebhook(c echo.Context) error {
	r := c.Request()
	clientIP := c.RealIP()

	if !s.limiters.allow(clientIP) {
		s.logger.Warn("webhook rate limit exceeded", zap.String("ip", clientIP))
		s.countWebhook(webhookRateLimited)
		return c.JSON(http.StatusTooManyRequests, apperr.New(apperr.KindRateLimit, "Too many webhook requests.").Body())
	}

	r.Body = http.MaxBytesReader(c.Response(), r.Body, maxWebhookBody)

	secret := s.webhookSecret()
	var key []byte
	if secret.IsSet() {
		key = []byte(secret.Value())
		// ValidatePayload would fall back to the SHA-1 header.
		if r.Header.Get(github.SHA256SignatureHeader) == "" {
			return s.webhookUnauthorized(c, clientIP, errors.New("missing "+github.SHA256SignatureHeader+" header"))
		}
	}

	// Without a key ValidatePayload only checks the content type and reads the body.
	payload, err := github.ValidatePayload(r, key)
	if err != nil {
		if secret.IsSet() {
			return s.webhookUnauthorized(c, clientIP, err)
		}
		return s.webhookFailed(c, err)
	}

	eventType := github.WebHookType(r)
	var msg broadcast.Message
	if event, err := github.ParseWebHook(eventType, payload); err == nil {
		if _, ok := event.(*github.PingEvent); ok {
			s.logger.Info("webhook ping received")
			s.countWebhook(webhookIgnored)
			return c.JSON(http.StatusOK, WebhookResponse{Received: true})
		}
		msg = s.updateMessage(eventType, event)
	} else {
		// Missing or unknown event type: any JSON object still counts as a change.
		if msg, err = s.genericMessage(eventType, payload); err != nil {
			return s.webhookFailed(c, err)
		}
	}

	delivered := s.hub.Broadcast(msg)

	s.logger.Info("webhook accepted",
		zap.String("event", eventType),
		zap.String("action", msg.Action),
		zap.String("item_id", msg.ItemID),
		zap.String("delivery", github.DeliveryID(r)),
		zap.Int("delivered", delivered),
	)
	s.countWebhook(webhookAccepted)
	return c.JSON(http.StatusOK, WebhookResponse{Received: true})
}

// updateMessage extracts what the board needs from a parsed event. Project
// item events carry node IDs; other events only their action and sender.
func (s *Server) updateMessage(eventType string, event interface{}) broadcast.Message {
	var action, itemID, projectID, sender string

	switch e := event.(type) {
	case *github.ProjectV2ItemEvent:
		action = e.GetAction()
		itemID = e.GetProjectV2Item().GetNodeID()
		projectID = e.GetProjectV2Item().GetProjectNodeID()
		sender = e.GetSender().GetLogin()
	default:
		if a, ok := event.(interface{ GetAction() string }); ok {
			action = a.GetAction()
		}
		if u, ok := event.(interface{ GetSender() *github.User }); ok {
			sender = u.GetSender().GetLogin()
		}
	}

	return broadcast.ProjectItemUpdated(s.hub.Now(), eventType, action, itemID, projectID, sender)
}

// genericEvent is the part of any webhook payload the board can use.
type genericEvent struct {
	Action string `json:"action"`
	Sender struct {
		Login string `json:"login"`
	} `json:"sender"`
}

func (s *Server) genericMessage(eventType string, payload []byte) (broadcast.Message, error) {
	var e genericEvent
	if err := json.Unmarshal(payload, &e); err != nil {
		return broadcast.Message{}, err
	}
	return broadcast.ProjectItemUpdated(s.hub.Now(), eventType, e.Action, "", "", e.Sender.Login), nil
}

func (s *Server) webhookUnauthorized(c echo.Context, clientIP string, err error) error {
	s.logger.Warn("invalid webhook signature", zap.String("ip", clientIP), zap.Error(err))
	s.countWebhook(webhookUnauthorized)
	return c.JSON(http.StatusUnauthorized, apperr.New(apperr.KindWebhook, "Invalid webhook signature.").
		WithStatus(http.StatusUnauthorized).Body())
}

func (s *Server) webhookFailed(c echo.Context, err error) error {
	s.logger.Error("webhook processing failed",
		zap.String("event", github.WebHookType(c.Request())),
		zap.String("delivery", github.DeliveryID(c.Request())),
		zap.Error(err),
	)
	s.countWebhook(webhookFailed)
	appErr := apperr.Wrap(err, apperr.KindWebhook, "")
	return c.JSON(appErr.StatusCode, appErr.Body())
}

func (s *Server) countWebhook(result string) {
	if s.metrics != nil {
		s.metrics.WebhookRequests.WithLabelValues(result).Inc()
	}
}
