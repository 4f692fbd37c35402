package syncer

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"leeksaver/internal/models"
	"leeksaver/internal/ratelimit"
	"leeksaver/internal/repository"
	"leeksaver/internal/upstream"
)

// coldStartWindow is how far back news.go looks on its very first run
// (no prior articles stored yet). Subsequent runs use lastSuccessOverlap
// instead, per SPEC_FULL.md's resolved incremental-window behavior.
const coldStartWindow = 24 * time.Hour

// lastSuccessOverlap re-fetches a few minutes before the last stored
// article's publish_time, so a feed that publishes out of strict
// chronological order doesn't leave gaps between runs.
const lastSuccessOverlap = 5 * time.Minute

// NewsSyncer pulls new articles published since the high-water mark and
// inserts them append-only (a published article is immutable once seen).
type NewsSyncer struct {
	adapter  upstream.Adapter
	gate     *ratelimit.Gate
	news     *repository.NewsRepository
	syncErrs *repository.SyncErrorRepository
	logger   *zap.Logger
}

func NewNewsSyncer(adapter upstream.Adapter, gate *ratelimit.Gate, news *repository.NewsRepository, syncErrs *repository.SyncErrorRepository, logger *zap.Logger) *NewsSyncer {
	return &NewsSyncer{adapter: adapter, gate: gate, news: news, syncErrs: syncErrs, logger: logger}
}

func (s *NewsSyncer) Name() string { return "news" }

func (s *NewsSyncer) Run(ctx context.Context, scope Scope) (Report, error) {
	var report Report

	since, err := s.news.MaxPublishTime(ctx)
	if err != nil {
		recordSyncError(ctx, s.syncErrs, s.logger, s.Name(), "*", err)
		return report, err
	}
	if since.IsZero() {
		since = time.Now().Add(-coldStartWindow)
	} else {
		since = since.Add(-lastSuccessOverlap)
	}

	var rows []models.NewsArticle
	callErr := s.gate.Do(ctx, func(ctx context.Context) error {
		f, fetchErr := s.adapter.NewsSince(ctx, since)
		if fetchErr != nil {
			return fetchErr
		}
		for _, row := range f.Rows() {
			publishTime, ok := row.DateTime("publish_time")
			if !ok {
				continue
			}
			rows = append(rows, models.NewsArticle{
				SourceID:       row.String("source_id"),
				Source:         row.String("source"),
				URL:            row.String("url"),
				Title:          row.String("title"),
				Body:           row.String("body"),
				PublishTime:    publishTime,
				RelatedSymbols: strings.TrimSpace(row.String("related_symbols")),
				CreatedAt:      time.Now(),
			})
		}
		return nil
	})
	if callErr != nil {
		recordSyncError(ctx, s.syncErrs, s.logger, s.Name(), "*", callErr)
		return report, callErr
	}
	report.Fetched = len(rows)

	if err := s.news.BulkInsertIgnore(ctx, rows); err != nil {
		recordSyncError(ctx, s.syncErrs, s.logger, s.Name(), "*", err)
		return report, err
	}
	report.Accepted, report.Written = len(rows), len(rows)
	resolveSyncError(ctx, s.syncErrs, s.logger, s.Name(), "*")
	return report, nil
}
