package syncer

import (
	"context"
	"time"

	"go.uber.org/zap"

	"leeksaver/internal/config"
	"leeksaver/internal/repository"
)

// NewsCleanupSyncer runs weekly (SPECIAL tier) and deletes articles older
// than NewsRetentionDays. Per the resolved Open Question (SPEC_FULL.md
// §9), "watchlist-protected" means: skip deletion of any article whose
// related_symbols overlaps the current watchlist, checked by substring
// match against the comma-joined column rather than a foreign key, since
// related_symbols is a denormalized free-text field, not a join table.
type NewsCleanupSyncer struct {
	news            *repository.NewsRepository
	watchlist       *repository.WatchlistRepository
	logger          *zap.Logger
	retentionDays   int
	protectWatchlist bool
}

func NewNewsCleanupSyncer(news *repository.NewsRepository, watchlist *repository.WatchlistRepository, logger *zap.Logger, cfg config.SyncConfig) *NewsCleanupSyncer {
	return &NewsCleanupSyncer{news: news, watchlist: watchlist, logger: logger, retentionDays: cfg.NewsRetentionDays, protectWatchlist: cfg.NewsCleanupProtectWatch}
}

func (s *NewsCleanupSyncer) Name() string { return "news_cleanup" }

func (s *NewsCleanupSyncer) Run(ctx context.Context, _ Scope) (Report, error) {
	var report Report
	cutoff := time.Now().AddDate(0, 0, -s.retentionDays)

	var protected []string
	if s.protectWatchlist {
		codes, err := s.watchlist.Codes(ctx)
		if err != nil {
			s.logger.Warn("failed to load watchlist for news cleanup, proceeding unprotected", zap.Error(err))
		} else {
			protected = codes
		}
	}

	deleted, err := s.news.DeleteOlderThanUnlessRelated(ctx, cutoff, protected)
	if err != nil {
		return report, err
	}
	report.Accepted = int(deleted)
	report.Written = int(deleted)
	return report, nil
}
