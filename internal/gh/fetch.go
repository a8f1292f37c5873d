package gh

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/h0rv/ghp-dashboard/internal/apperr"
	"github.com/h0rv/ghp-dashboard/internal/domain"
)

const opFetchProject = "fetchProject"

// FetchProject looks the project up under each scope in turn, organization
// first. It stops at the first success and returns a rate limit error without
// trying further scopes. Every error returned is an *apperr.Error.
func (c *Client) FetchProject(ctx context.Context, d domain.ProjectDescriptor) (*RawProject, error) {
	var lastErr *apperr.Error

	for _, s := range c.scopes {
		var project *RawProject
		start := c.now()
		err := c.retry.Do(ctx, func(ctx context.Context) error {
			p, err := c.fetchScope(ctx, s, d)
			if err != nil {
				c.logger.Debug("scope attempt failed",
					zap.String("project", d.Name),
					zap.String("scope", string(s.scope)),
					zap.Error(err),
				)
				return err
			}
			project = p
			return nil
		})
		if err == nil {
			c.logger.Debug("project fetched",
				zap.String("project", d.Name),
				zap.String("scope", string(s.scope)),
				zap.Int("items", len(project.Items)),
				zap.Duration("duration", c.now().Sub(start)),
			)
			return project, nil
		}

		e := apperr.Classify(err).WithContext(opFetchProject, d.Name)
		// The token is shared by every scope, so these fail the same way everywhere.
		if e.Kind == apperr.KindRateLimit || e.Kind == apperr.KindAuth {
			return nil, e
		}
		if e.Kind != apperr.KindNotFound {
			lastErr = e
		}
		c.logger.Info("scope lookup failed, trying next scope",
			zap.String("project", d.Name),
			zap.String("scope", string(s.scope)),
			zap.String("code", string(e.Kind)),
		)
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, apperr.New(apperr.KindNotFound,
		fmt.Sprintf("Project #%d was not found for owner %q.", d.ProjectNumber, d.Owner)).
		WithRetryable(false).
		WithContext(opFetchProject, d.Name)
}

// WaitForRateLimit blocks for the wait a rate limit error asks for, capped at
// apperr.MaxRateLimitWait. It returns immediately for other errors.
func WaitForRateLimit(ctx context.Context, err error) error {
	wait := apperr.RateLimitWait(err)
	if wait <= 0 {
		return nil
	}
	return sleepContext(ctx, wait)
}
