package syncer

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"leeksaver/internal/models"
	"leeksaver/internal/ratelimit"
	"leeksaver/internal/repository"
	"leeksaver/internal/upstream"
)

// MinuteQuotesSyncer is the L2-tier intraday poller: scope is always the
// watchlist, never all active symbols, and it runs every
// L2IntervalSeconds rather than once a day.
type MinuteQuotesSyncer struct {
	adapter     upstream.Adapter
	gate        *ratelimit.Gate
	bars        *repository.Repository[models.MinuteBar]
	watchlist   *repository.WatchlistRepository
	syncErrs    *repository.SyncErrorRepository
	logger      *zap.Logger
	concurrency int
}

func NewMinuteQuotesSyncer(adapter upstream.Adapter, gate *ratelimit.Gate, bars *repository.Repository[models.MinuteBar], watchlist *repository.WatchlistRepository, syncErrs *repository.SyncErrorRepository, logger *zap.Logger, concurrency int) *MinuteQuotesSyncer {
	if concurrency <= 0 {
		concurrency = 10
	}
	return &MinuteQuotesSyncer{adapter: adapter, gate: gate, bars: bars, watchlist: watchlist, syncErrs: syncErrs, logger: logger, concurrency: concurrency}
}

func (s *MinuteQuotesSyncer) Name() string { return "minute_quotes" }

func (s *MinuteQuotesSyncer) Run(ctx context.Context, scope Scope) (Report, error) {
	codes := scope.Codes
	if len(codes) == 0 {
		wcodes, err := s.watchlist.Codes(ctx)
		if err != nil {
			return Report{}, err
		}
		codes = wcodes
	}
	if len(codes) == 0 {
		return Report{}, nil // empty watchlist is not an error
	}

	tradeDate := time.Now().Format("20060102")
	var report Report
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, code := range codes {
		code := code
		g.Go(func() error {
			var rows []models.MinuteBar
			callErr := s.gate.Do(gctx, func(ctx context.Context) error {
				f, err := s.adapter.MinuteBars(ctx, code, tradeDate)
				if err != nil {
					return err
				}
				for _, row := range f.Rows() {
					ts, ok := row.DateTime("timestamp")
					if !ok {
						continue
					}
					rows = append(rows, models.MinuteBar{
						Code:      code,
						Timestamp: ts,
						Open:      decimalOf(row.Float("open")),
						High:      decimalOf(row.Float("high")),
						Low:       decimalOf(row.Float("low")),
						Close:     decimalOf(row.Float("close")),
						Volume:    row.Int("vol"),
						Amount:    decimalOf(row.Float("amount")),
					})
				}
				return nil
			})
			mu.Lock()
			defer mu.Unlock()
			if callErr != nil {
				recordSyncError(gctx, s.syncErrs, s.logger, s.Name(), code, callErr)
				report.Errors++
				return nil
			}
			report.Fetched += len(rows)
			if err := s.bars.Upsert(gctx, rows); err != nil {
				recordSyncError(gctx, s.syncErrs, s.logger, s.Name(), code, err)
				report.Errors++
				return nil
			}
			report.Accepted += len(rows)
			report.Written += len(rows)
			resolveSyncError(gctx, s.syncErrs, s.logger, s.Name(), code)
			return nil
		})
	}
	_ = g.Wait()
	return report, nil
}
