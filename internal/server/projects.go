package server

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/h0rv/ghp-dashboard/internal/apperr"
	"github.com/h0rv/ghp-dashboard/internal/domain"
)

// setNoCache marks a response as never cacheable and stamps it with a fresh validator.
func (s *Server) setNoCache(h http.Header) {
	h.Set("Cache-Control", "no-store, no-cache, must-revalidate, proxy-revalidate, max-age=0")
	h.Set("Pragma", "no-cache")
	h.Set("Expires", "0")
	h.Set("ETag", `"`+uuid.NewString()+`"`)
	h.Set("Last-Modified", s.now().UTC().Format(http.TimeFormat))
}

// build runs one refresh. Upstream fetches outlive a disconnecting client;
// each call is bounded by the GitHub client timeout instead.
func (s *Server) build(c echo.Context) (*domain.Dashboard, *apperr.Error) {
	ctx := context.WithoutCancel(c.Request().Context())
	dash, err := s.builder.Build(ctx)
	if err != nil {
		appErr := apperr.Classify(err, apperr.WithOperation("buildDashboard"))
		s.logger.Error("dashboard build failed",
			zap.String("code", string(appErr.Kind)),
			zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			zap.Error(err),
		)
		return nil, appErr
	}
	return dash, nil
}

// handleProjects returns every configured project, fetched fresh. Project
// failures are reported inline with status 200.
func (s *Server) handleProjects(c echo.Context) error {
	s.setNoCache(c.Response().Header())

	dash, appErr := s.build(c)
	if appErr != nil {
		return c.JSON(appErr.StatusCode, appErr.Body())
	}
	return c.JSON(http.StatusOK, dash)
}
