package syncer

import (
	"context"

	"go.uber.org/zap"

	"leeksaver/internal/realtime"
	"leeksaver/internal/repository"
	"leeksaver/internal/upstream"
)

// RealtimeRefreshSyncer is the other L2-tier task: it proactively warms
// the Realtime Cache for every watchlist code, so on-demand reads never
// pay the upstream round trip. The cache itself (internal/realtime)
// already dedups concurrent callers via singleflight; this syncer just
// drives the TTL refresh on a schedule rather than waiting for the first
// cache miss.
type RealtimeRefreshSyncer struct {
	adapter   upstream.Adapter
	cache     *realtime.Cache
	watchlist *repository.WatchlistRepository
	logger    *zap.Logger
}

func NewRealtimeRefreshSyncer(adapter upstream.Adapter, cache *realtime.Cache, watchlist *repository.WatchlistRepository, logger *zap.Logger) *RealtimeRefreshSyncer {
	return &RealtimeRefreshSyncer{adapter: adapter, cache: cache, watchlist: watchlist, logger: logger}
}

func (s *RealtimeRefreshSyncer) Name() string { return "realtime_refresh" }

func (s *RealtimeRefreshSyncer) Run(ctx context.Context, scope Scope) (Report, error) {
	codes := scope.Codes
	if len(codes) == 0 {
		wcodes, err := s.watchlist.Codes(ctx)
		if err != nil {
			return Report{}, err
		}
		codes = wcodes
	}

	var report Report
	for _, code := range codes {
		code := code
		_, err := s.cache.Get(ctx, realtime.Key("realtime_quote", code), func(ctx context.Context) (interface{}, error) {
			return s.adapter.RealtimeQuote(ctx, code)
		})
		report.Fetched++
		if err != nil {
			s.logger.Warn("realtime refresh miss", zap.String("code", code), zap.Error(err))
			report.Errors++
			continue
		}
		report.Accepted++
		report.Written++
	}
	return report, nil
}
