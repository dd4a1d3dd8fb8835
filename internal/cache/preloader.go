package cache

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"cellpulse/internal/dataprocessing"
	"cellpulse/internal/infrastructure"
)

// Candidate is one file the preloader should warm the cache with.
type Candidate struct {
	ID   string
	Name string
}

// FetchFunc retrieves the raw bytes of a remote file.
type FetchFunc func(ctx context.Context, id string) ([]byte, error)

// Preloader warms the cache by fetching, parsing and preprocessing files
// ahead of the first request. Fetches are paced so a cold start does not
// hammer the remote store, and a failing candidate never aborts the batch.
type Preloader struct {
	store   *Store
	fetch   FetchFunc
	limiter *rate.Limiter
	logger  *slog.Logger
	metrics *infrastructure.CacheMetrics
}

// NewPreloader builds a preloader that paces fetches at one per pause
// interval. A non-positive pause disables pacing.
func NewPreloader(store *Store, fetch FetchFunc, pause time.Duration, logger *slog.Logger, metrics *infrastructure.CacheMetrics) *Preloader {
	if logger == nil {
		logger = slog.Default()
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if pause > 0 {
		limiter = rate.NewLimiter(rate.Every(pause), 1)
	}
	return &Preloader{
		store:   store,
		fetch:   fetch,
		limiter: limiter,
		logger:  logger.With(slog.String("component", "preloader")),
		metrics: metrics,
	}
}

// Preload warms the cache with up to limit candidates and returns how many
// were newly populated. Candidates that are already fresh are skipped
// without a fetch and without counting; candidates that fail to fetch,
// parse or cache are logged and skipped. A cancelled context stops the
// batch between candidates.
func (p *Preloader) Preload(ctx context.Context, candidates []Candidate, limit int) int {
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	start := time.Now()
	warmed := 0

	for _, candidate := range candidates {
		if ctx.Err() != nil {
			p.logger.InfoContext(ctx, "preload cancelled",
				slog.Int("warmed", warmed))
			break
		}

		if p.store.IsValid(candidate.ID) {
			p.logger.DebugContext(ctx, "preload skipping fresh entry",
				slog.String("id", candidate.ID),
				slog.String("name", candidate.Name))
			continue
		}

		if err := p.limiter.Wait(ctx); err != nil {
			break
		}

		if err := p.warm(ctx, candidate); err != nil {
			p.logger.WarnContext(ctx, "preload candidate failed",
				slog.String("id", candidate.ID),
				slog.String("name", candidate.Name),
				slog.String("error", err.Error()))
			continue
		}

		warmed++
		if p.metrics != nil {
			p.metrics.PreloadFilesTotal.Add(ctx, 1)
		}
	}

	if p.metrics != nil {
		p.metrics.PreloadDuration.Record(ctx, time.Since(start).Seconds())
	}
	p.logger.InfoContext(ctx, "preload finished",
		slog.Int("candidates", len(candidates)),
		slog.Int("warmed", warmed),
		slog.Duration("elapsed", time.Since(start)))

	return warmed
}

// warm runs the full pipeline for one candidate: fetch, parse, preprocess,
// cache.
func (p *Preloader) warm(ctx context.Context, candidate Candidate) error {
	content, err := p.fetch(ctx, candidate.ID)
	if err != nil {
		return err
	}

	raw, err := dataprocessing.ParseContent(candidate.Name, content)
	if err != nil {
		return err
	}

	processed := dataprocessing.Preprocess(raw)
	return p.store.Put(ctx, candidate.ID, candidate.Name, processed)
}
