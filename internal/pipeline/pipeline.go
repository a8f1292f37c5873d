// Package pipeline builds one dashboard refresh: token, configuration,
// parallel fetch, normalization.
package pipeline

import (
	"context"
	"errors"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/h0rv/ghp-dashboard/internal/apperr"
	"github.com/h0rv/ghp-dashboard/internal/auth"
	"github.com/h0rv/ghp-dashboard/internal/config"
	"github.com/h0rv/ghp-dashboard/internal/domain"
	"github.com/h0rv/ghp-dashboard/internal/fanout"
	"github.com/h0rv/ghp-dashboard/internal/transform"
)

const opBuild = "buildDashboard"

// FetcherFactory returns a fetcher authenticated with token.
type FetcherFactory func(token string) fanout.ProjectFetcher

// Pipeline produces dashboards. It is safe for concurrent use.
type Pipeline struct {
	tokens       auth.TokenProvider
	newFetcher   FetcherFactory
	lookup       config.LookupFunc
	orchestrator *fanout.Orchestrator
	sanitize     transform.SanitizeOptions
	now          func() time.Time
	logger       *zap.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLookup overrides where project configuration is read from.
func WithLookup(lookup config.LookupFunc) Option {
	return func(p *Pipeline) { p.lookup = lookup }
}

// WithOrchestrator replaces the default fan-out orchestrator.
func WithOrchestrator(o *fanout.Orchestrator) Option {
	return func(p *Pipeline) { p.orchestrator = o }
}

// WithSanitizeOptions controls how project text is cleaned before display.
func WithSanitizeOptions(opts transform.SanitizeOptions) Option {
	return func(p *Pipeline) { p.sanitize = opts }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// New creates a Pipeline. Tokens and configuration are read on every Build.
func New(tokens auth.TokenProvider, newFetcher FetcherFactory, opts ...Option) *Pipeline {
	p := &Pipeline{
		tokens:     tokens,
		newFetcher: newFetcher,
		sanitize:   transform.DefaultSanitizeOptions(),
		now:        time.Now,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.lookup == nil {
		p.lookup = os.LookupEnv
	}
	if p.orchestrator == nil {
		p.orchestrator = fanout.New(fanout.WithLogger(p.logger))
	}
	return p
}

// Descriptors loads and validates the project configuration.
func (p *Pipeline) Descriptors() ([]domain.ProjectDescriptor, error) {
	descriptors, err := config.Load(p.lookup)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindGeneric, configMessage(err)).
			WithRetryable(false).
			WithContext(opBuild, "")
	}
	return descriptors, nil
}

// Build fetches every configured project. A missing token or invalid
// configuration fails the whole build with a classified error; individual
// project failures are reported in Dashboard.Errors instead.
func (p *Pipeline) Build(ctx context.Context) (*domain.Dashboard, error) {
	token, err := p.tokens.GetToken()
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindGeneric, "GitHub token is not configured.").
			WithRetryable(false).
			WithContext(opBuild, "")
	}

	descriptors, err := p.Descriptors()
	if err != nil {
		return nil, err
	}

	outcomes := p.orchestrator.FetchAll(ctx, p.newFetcher(token), descriptors)
	return p.assemble(outcomes), nil
}

func (p *Pipeline) assemble(outcomes []fanout.Outcome) *domain.Dashboard {
	now := p.now()
	dash := &domain.Dashboard{
		Projects:    make([]domain.Project, 0, len(outcomes)),
		Errors:      []domain.ProjectError{},
		LastFetched: now.UTC().Format(time.RFC3339),
	}

	for _, out := range outcomes {
		if !out.Success() {
			dash.Errors = append(dash.Errors, ProjectError(out.Descriptor.Name, out.Err))
			continue
		}
		project := transform.NormalizeProject(out.Project, out.Descriptor, now)
		dash.Projects = append(dash.Projects, transform.Sanitize(project, p.sanitize))
	}

	p.logger.Info("dashboard built",
		zap.Int("projects", len(dash.Projects)),
		zap.Int("errors", len(dash.Errors)),
	)
	return dash
}

// ProjectError converts a classified failure into its display record.
func ProjectError(name string, err *apperr.Error) domain.ProjectError {
	pe := domain.ProjectError{
		ProjectName: name,
		Error:       err.Message,
		Code:        string(err.Kind),
		Retryable:   err.Retryable,
	}
	if wait := apperr.RateLimitWait(err); wait > 0 {
		pe.RetryAfterSeconds = int(wait.Round(time.Second) / time.Second)
	}
	return pe
}

// configMessage exposes configuration problems to the client; they name
// environment variables, never secrets.
func configMessage(err error) string {
	var cfgErr *config.Error
	if errors.As(err, &cfgErr) {
		return cfgErr.Error()
	}
	return "Project configuration is invalid."
}
