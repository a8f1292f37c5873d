package server

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/h0rv/ghp-dashboard/internal/broadcast"
)

// handleEvents streams hub messages as Server-Sent Events until the client
// goes away or a write fails.
func (s *Server) handleEvents(c echo.Context) error {
	sink, err := broadcast.NewSSESink(c.Response())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "streaming not supported")
	}
	defer sink.Close()

	if err := s.hub.Serve(c.Request().Context(), sink, "sse"); err != nil {
		s.logger.Debug("event stream closed", zap.Error(err))
	}
	return nil
}

// handleWebSocket mirrors /events over a WebSocket. Client messages are
// read and discarded; a read error ends the connection.
func (s *Server) handleWebSocket(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already written the error response.
		s.logger.Debug("websocket upgrade failed", zap.Error(err))
		return nil
	}
	sink := broadcast.NewWebSocketSink(conn)
	defer func() { _ = sink.Close() }()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := s.hub.Serve(ctx, sink, "ws"); err != nil {
		s.logger.Debug("websocket closed", zap.Error(err))
	}
	return nil
}
