package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/atmosguard/atmosguard/internal/environment"
	"github.com/atmosguard/atmosguard/internal/geo"
	"github.com/atmosguard/atmosguard/internal/publisher"
	"github.com/atmosguard/atmosguard/internal/regional"
)

// OverviewFetcher fetches the overview reading for a coordinate.
// *environment.Service implements it.
type OverviewFetcher interface {
	FetchOverview(ctx context.Context, coord geo.Coordinate) (*environment.Reading, error)
}

// RefreshJob refreshes the overview reading of every configured region.
type RefreshJob struct {
	config    RefreshConfig
	logger    zerolog.Logger
	fetcher   OverviewFetcher
	repo      regional.Repository
	publisher publisher.Publisher
	now       func() time.Time

	metrics *RefreshMetrics
}

// RefreshMetrics tracks refresh job statistics.
type RefreshMetrics struct {
	mu sync.RWMutex

	// Counters
	TotalRefreshes    int64
	SuccessfulRefresh int64
	FailedRefreshes   int64
	PublishFailures   int64

	// Timings
	LastRefreshAt       time.Time
	LastRefreshDuration time.Duration
	TotalDuration       time.Duration
}

// RefreshJobConfig holds configuration for creating a RefreshJob.
type RefreshJobConfig struct {
	Config     RefreshConfig
	Logger     zerolog.Logger
	Fetcher    OverviewFetcher
	Repository regional.Repository
	Publisher  publisher.Publisher // default publisher.NoopPublisher
	Now        func() time.Time    // default time.Now
}

// NewRefreshJob creates a new refresh job processor.
func NewRefreshJob(cfg RefreshJobConfig) *RefreshJob {
	pub := cfg.Publisher
	if pub == nil {
		pub = publisher.NoopPublisher{}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &RefreshJob{
		config:    cfg.Config.withDefaults(),
		logger:    cfg.Logger,
		fetcher:   cfg.Fetcher,
		repo:      cfg.Repository,
		publisher: pub,
		now:       now,
		metrics:   &RefreshMetrics{},
	}
}

// RefreshResult contains the result of a refresh operation.
type RefreshResult struct {
	StartTime       time.Time
	EndTime         time.Time
	Duration        time.Duration
	TotalTargets    int
	Successful      int
	Failed          int
	PublishFailures int
	Errors          []RefreshError
}

// RefreshError records why a region could not be refreshed.
type RefreshError struct {
	Region string
	Stage  string // fetch or save
	Error  string
}

type targetResult struct {
	published bool
	err       *RefreshError
}

// Run refreshes every target. A region that fails keeps its previous reading.
func (j *RefreshJob) Run(ctx context.Context) *RefreshResult {
	startTime := time.Now()
	targets := j.config.Ordered()
	result := &RefreshResult{
		StartTime:    startTime,
		TotalTargets: len(targets),
	}

	j.logger.Info().
		Int("total_targets", result.TotalTargets).
		Int("concurrency", j.config.Concurrency).
		Msg("starting regional refresh job")

	results := make([]targetResult, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.config.Concurrency)
	for i, target := range targets {
		g.Go(func() error {
			results[i] = j.refreshTarget(gctx, target)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		if r.err != nil {
			result.Failed++
			result.Errors = append(result.Errors, *r.err)
			continue
		}
		result.Successful++
		if !r.published {
			result.PublishFailures++
		}
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Int("publish_failures", result.PublishFailures).
		Msg("regional refresh job completed")

	return result
}

func (j *RefreshJob) refreshTarget(ctx context.Context, target RefreshTarget) targetResult {
	if err := ctx.Err(); err != nil {
		return targetResult{err: &RefreshError{Region: target.Name, Stage: "fetch", Error: err.Error()}}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	reading, err := j.fetcher.FetchOverview(fetchCtx, target.Coordinate)
	if err != nil {
		j.logger.Warn().Err(err).Str("region", target.Name).Msg("regional fetch failed, keeping previous reading")
		return targetResult{err: &RefreshError{Region: target.Name, Stage: "fetch", Error: err.Error()}}
	}

	row := regional.Reading{
		Region:      target.Name,
		Coordinate:  target.Coordinate,
		Reading:     *reading,
		RefreshedAt: j.now().UTC(),
	}
	if err := j.repo.Save(ctx, row); err != nil {
		j.logger.Error().Err(err).Str("region", target.Name).Msg("failed to save regional reading")
		return targetResult{err: &RefreshError{Region: target.Name, Stage: "save", Error: err.Error()}}
	}

	if err := j.publisher.Publish(ctx, row); err != nil {
		j.logger.Warn().Err(err).Str("region", target.Name).Msg("failed to publish regional reading")
		return targetResult{}
	}
	return targetResult{published: true}
}

// ErrNoTargets is returned by Check when no region is configured.
var ErrNoTargets = errors.New("no refresh targets configured")

// Check fetches the highest-priority region without saving it, to verify
// upstream connectivity.
func (j *RefreshJob) Check(ctx context.Context) error {
	targets := j.config.Ordered()
	if len(targets) == 0 {
		return ErrNoTargets
	}

	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	_, err := j.fetcher.FetchOverview(ctx, targets[0].Coordinate)
	return err
}

// RunEvery runs the job immediately and then every interval until ctx is done.
func (j *RefreshJob) RunEvery(ctx context.Context, interval time.Duration) {
	j.logger.Info().Dur("interval", interval).Msg("starting refresh ticker")

	j.Run(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info().Msg("refresh ticker stopped")
			return
		case <-ticker.C:
			j.Run(ctx)
		}
	}
}

func (j *RefreshJob) updateMetrics(result *RefreshResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRefreshes++
	j.metrics.SuccessfulRefresh += int64(result.Successful)
	j.metrics.FailedRefreshes += int64(result.Failed)
	j.metrics.PublishFailures += int64(result.PublishFailures)
	j.metrics.LastRefreshAt = result.EndTime
	j.metrics.LastRefreshDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *RefreshJob) GetMetrics() RefreshMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return RefreshMetrics{
		TotalRefreshes:      j.metrics.TotalRefreshes,
		SuccessfulRefresh:   j.metrics.SuccessfulRefresh,
		FailedRefreshes:     j.metrics.FailedRefreshes,
		PublishFailures:     j.metrics.PublishFailures,
		LastRefreshAt:       j.metrics.LastRefreshAt,
		LastRefreshDuration: j.metrics.LastRefreshDuration,
		TotalDuration:       j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *RefreshJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_refreshes":       m.TotalRefreshes,
		"successful_refreshes":  m.SuccessfulRefresh,
		"failed_refreshes":      m.FailedRefreshes,
		"publish_failures":      m.PublishFailures,
		"last_refresh_at":       m.LastRefreshAt,
		"last_refresh_duration": m.LastRefreshDuration.String(),
		"total_duration":        m.TotalDuration.String(),
	}
}
