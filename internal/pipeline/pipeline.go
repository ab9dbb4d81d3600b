package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/era5-etl/internal/domain"
	"github.com/couchcryptid/era5-etl/internal/observability"
)

// Unit outcome labels.
const (
	outcomeCompleted = "completed"
	outcomeNotFound  = "not_found"
	outcomeFailed    = "failed"
)

// Options carries the per-run settings of a Pipeline.
type Options struct {
	Label     string
	Region    domain.Region
	RemoveRaw bool
	Notifier  Notifier // optional
}

// Pipeline runs fetch, select, normalize and persist for each unit in turn.
type Pipeline struct {
	fetcher    *Fetcher
	selector   *Selector
	normalizer *Normalizer
	store      *Store
	opts       Options
	logger     *slog.Logger
	metrics    *observability.Metrics
	ready      atomic.Bool

	mu     sync.Mutex
	report domain.RunReport
}

// New creates a Pipeline with the given stages and observability.
func New(fetcher *Fetcher, selector *Selector, normalizer *Normalizer, store *Store, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		fetcher:    fetcher,
		selector:   selector,
		normalizer: normalizer,
		store:      store,
		opts:       opts,
		logger:     logger,
		metrics:    metrics,
	}
}

// CheckReadiness returns nil once at least one unit has produced an artifact.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed any unit yet")
	}
	return nil
}

// Status returns the outcomes recorded so far.
func (p *Pipeline) Status() domain.RunReport {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.report.Clone()
}

// Run processes keys in order. Missing or failed units are recorded and
// skipped; a local write failure stops the run. Cancellation is honoured
// between units and reported as the context's error.
func (p *Pipeline) Run(ctx context.Context, keys []domain.ArchiveKey) (domain.RunReport, error) {
	p.logger.Info("pipeline started", "region", p.opts.Label, "units", len(keys))
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			p.logger.Info("pipeline stopping", "reason", err)
			return p.Status(), err
		}

		path, err := p.ProcessUnit(ctx, key)
		switch {
		case err == nil:
			p.record(outcomeCompleted, key, nil)
			p.ready.Store(true)
			p.logger.Info("unit completed", "key", key.String(), "path", path)
		case errors.Is(err, domain.ErrWrite):
			p.record(outcomeFailed, key, err)
			p.logger.Error("write failed, stopping", "key", key.String(), "error", err)
			return p.Status(), err
		case errors.Is(err, domain.ErrNotFound):
			p.record(outcomeNotFound, key, nil)
			p.logger.Warn("unit not in archive", "key", key.String(), "error", err)
		default:
			p.record(outcomeFailed, key, err)
			p.logger.Error("unit failed", "key", key.String(), "error", err)
		}
	}

	report := p.Status()
	p.logger.Info("pipeline finished",
		"completed", len(report.Completed),
		"not_found", len(report.NotFound),
		"failed", len(report.Failed),
	)
	return report, nil
}

// ProcessUnit produces the artifact for one key and returns its path.
func (p *Pipeline) ProcessUnit(ctx context.Context, key domain.ArchiveKey) (string, error) {
	if err := key.Validate(); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrInvalidField, err)
	}

	start := time.Now()
	rawPath, err := p.fetcher.Fetch(ctx, key)
	if err != nil {
		return "", err
	}
	p.observe(observability.StageFetch, start)

	start = time.Now()
	cropped, err := p.selector.Select(rawPath, p.opts.Region)
	if err != nil {
		return "", err
	}
	p.observe(observability.StageSelect, start)

	start = time.Now()
	sorted, tmpPath, err := p.normalizer.Normalize(cropped, key)
	if err != nil {
		return "", err
	}
	p.observe(observability.StageNormalize, start)

	// The temp artifact now holds the unit's data, so the raw copy can go.
	if p.opts.RemoveRaw {
		if err := p.fetcher.Evict(key); err != nil {
			return "", err
		}
	}

	start = time.Now()
	path, err := p.store.Persist(sorted, key, tmpPath)
	if err != nil {
		return "", err
	}
	p.observe(observability.StagePersist, start)

	p.notify(ctx, domain.NewArtifactEvent(key, p.opts.Label, p.opts.Region, path, sorted))
	return path, nil
}

func (p *Pipeline) notify(ctx context.Context, event domain.ArtifactEvent) {
	if p.opts.Notifier == nil {
		return
	}
	if err := p.opts.Notifier.Notify(ctx, event); err != nil {
		p.logger.Warn("artifact notification failed", "path", event.Path, "error", err)
	}
}

func (p *Pipeline) observe(stage string, start time.Time) {
	p.metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

func (p *Pipeline) record(outcome string, key domain.ArchiveKey, err error) {
	p.metrics.Units.WithLabelValues(outcome).Inc()

	p.mu.Lock()
	defer p.mu.Unlock()
	switch outcome {
	case outcomeCompleted:
		p.report.Completed = append(p.report.Completed, key.String())
	case outcomeNotFound:
		p.report.NotFound = append(p.report.NotFound, key.String())
	default:
		p.report.Failed = append(p.report.Failed, domain.UnitFailure{Key: key.String(), Error: err.Error()})
	}
}
