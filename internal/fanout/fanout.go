// Package fanout fetches many projects concurrently and isolates their failures.
package fanout

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/h0rv/ghp-dashboard/internal/apperr"
	"github.com/h0rv/ghp-dashboard/internal/domain"
	"github.com/h0rv/ghp-dashboard/internal/gh"
	"github.com/h0rv/ghp-dashboard/internal/metrics"
)

// ProjectFetcher fetches one project. *gh.Client implements it.
type ProjectFetcher interface {
	FetchProject(ctx context.Context, d domain.ProjectDescriptor) (*gh.RawProject, error)
}

// Outcome is the result for one descriptor. Exactly one of Project and Err is set.
type Outcome struct {
	Descriptor domain.ProjectDescriptor
	Project    *gh.RawProject
	Err        *apperr.Error
}

// Success reports whether the fetch succeeded.
func (o Outcome) Success() bool {
	return o.Err == nil
}

// Orchestrator runs fetches in parallel.
type Orchestrator struct {
	limit      int
	logger     *zap.Logger
	metrics    *metrics.Metrics
	onProgress func(completed, total int)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLimit caps concurrent fetches. Zero or less means no cap.
func WithLimit(n int) Option {
	return func(o *Orchestrator) { o.limit = n }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithMetrics records fetch outcomes and durations.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithProgress sets a callback invoked after each fetch completes.
func WithProgress(fn func(completed, total int)) Option {
	return func(o *Orchestrator) { o.onProgress = fn }
}

// New creates an Orchestrator.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// FetchAll fetches every descriptor and waits for all of them. The result has
// the same length and order as descriptors. A failing or panicking fetch only
// affects its own outcome.
func (o *Orchestrator) FetchAll(ctx context.Context, fetcher ProjectFetcher, descriptors []domain.ProjectDescriptor) []Outcome {
	outcomes := make([]Outcome, len(descriptors))
	total := len(descriptors)
	var completed int32

	// A plain Group: one failure must not cancel the others.
	var g errgroup.Group
	if o.limit > 0 {
		g.SetLimit(o.limit)
	}

	for i, d := range descriptors {
		g.Go(func() error {
			outcomes[i] = o.fetchOne(ctx, fetcher, d)
			if o.onProgress != nil {
				o.onProgress(int(atomic.AddInt32(&completed, 1)), total)
			}
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func (o *Orchestrator) fetchOne(ctx context.Context, fetcher ProjectFetcher, d domain.ProjectDescriptor) (out Outcome) {
	out.Descriptor = d
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			out.Project = nil
			out.Err = apperr.Wrap(fmt.Errorf("panic: %v", r), apperr.KindGeneric, "").
				WithContext("fetchAll", d.Name)
			o.logger.Error("project fetch panicked",
				zap.String("project", d.Name),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
		}
		o.record(out, time.Since(start))
	}()

	project, err := fetcher.FetchProject(ctx, d)
	switch {
	case err != nil:
		out.Err = apperr.Classify(err, apperr.WithOperation("fetchAll"), apperr.WithProject(d.Name))
	case project == nil:
		out.Err = apperr.New(apperr.KindNotFound, "").WithContext("fetchAll", d.Name)
	default:
		out.Project = project
	}
	return out
}

func (o *Orchestrator) record(out Outcome, elapsed time.Duration) {
	code := "ok"
	if !out.Success() {
		code = string(out.Err.Kind)
		o.logger.Warn("project fetch failed",
			zap.String("project", out.Descriptor.Name),
			zap.String("owner", out.Descriptor.Owner),
			zap.Int("project_number", out.Descriptor.ProjectNumber),
			zap.String("code", code),
			zap.Bool("retryable", out.Err.Retryable),
			zap.Error(out.Err),
		)
	} else {
		o.logger.Debug("project fetch succeeded",
			zap.String("project", out.Descriptor.Name),
			zap.Int("items", len(out.Project.Items)),
			zap.Duration("duration", elapsed),
		)
	}

	if o.metrics != nil {
		o.metrics.FetchOutcomes.WithLabelValues(code).Inc()
		o.metrics.FetchDuration.WithLabelValues(code).Observe(elapsed.Seconds())
	}
}
