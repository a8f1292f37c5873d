package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/h0rv/ghp-dashboard/internal/apperr"
	"github.com/h0rv/ghp-dashboard/internal/config"
	"github.com/h0rv/ghp-dashboard/internal/domain"
)

func TestWriteReport(t *testing.T) {
	dash := &domain.Dashboard{
		Projects: []domain.Project{{
			Name:          "Frontend",
			Owner:         "acme",
			ProjectNumber: 1,
			Title:         "Web board",
			TodoColumns:   []string{"Todo", "Ready"},
			Items:         []domain.Item{{ID: "PVTI_1"}, {ID: "PVTI_2"}, {ID: "PVTI_3"}},
			// Stats.Todo only counts the default vocabulary, which "Ready" is not part of.
			Stats: domain.Stats{Total: 12, Todo: 1},
		}},
		Errors: []domain.ProjectError{{
			ProjectName:       "Backend",
			Error:             "GitHub API rate limit exceeded. Please try again later.",
			Code:              "RATE_LIMIT",
			Retryable:         true,
			RetryAfterSeconds: 60,
		}},
		LastFetched: "2024-05-01T12:00:00Z",
	}

	var buf bytes.Buffer
	writeReport(&buf, dash)
	out := buf.String()

	assert.Contains(t, out, "Projects fetched at 2024-05-01T12:00:00Z")
	assert.Contains(t, out, `✓ Frontend  acme/#1 "Web board"`)
	assert.Contains(t, out, "12 items, 3 in [Todo Ready]")
	assert.Contains(t, out, "✗ Backend  RATE_LIMIT")
	assert.Contains(t, out, "  GitHub API rate limit exceeded.")
	assert.Contains(t, out, "retry after 60s")
}

func TestRootHelpNamesLoaderVariables(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{config.EnvProjectsConfig, config.EnvOwner, config.EnvRepo, config.EnvProjectNumber} {
		assert.Contains(t, root.Long, name)
	}
	assert.NotContains(t, root.Long, "GITHUB_PROJECT_NUMBER")
}

func TestRateLimitError(t *testing.T) {
	assert.Nil(t, rateLimitError(&domain.Dashboard{}))
	assert.Nil(t, rateLimitError(&domain.Dashboard{Errors: []domain.ProjectError{{Code: "NOT_FOUND"}}}))

	err := rateLimitError(&domain.Dashboard{Errors: []domain.ProjectError{
		{Code: "RATE_LIMIT", RetryAfterSeconds: 30},
		{Code: "RATE_LIMIT", RetryAfterSeconds: 120},
	}})
	if assert.NotNil(t, err) {
		assert.Equal(t, 2*time.Minute, apperr.RateLimitWait(err))
	}
}
