package syncer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"leeksaver/internal/frame"
	"leeksaver/internal/ratelimit"
	"leeksaver/internal/repository"
	"leeksaver/internal/transform"
	"leeksaver/internal/upstream"
)

// DailyQuotesSyncer is the incremental daily-bar syncer: for each symbol,
// start-date = max(stored trade_date, symbol.list_date); else a 7-day
// safety window to absorb late upstream corrections (spec.md §4.5).
// Concurrency is grounded directly on the teacher's
// FetchDailyDataOptimized: an errgroup.WithContext fanned out per
// symbol, bounded by SetLimit, where one symbol's failure does not abort
// the group — it's recorded and the rest proceed (spec.md's "exceptions
// bubble to the shard boundary", not below it).
type DailyQuotesSyncer struct {
	adapter   upstream.Adapter
	gate      *ratelimit.Gate
	bars      *repository.DailyBarRepository
	symbols   *repository.SymbolRepository
	syncErrs  *repository.SyncErrorRepository
	logger    *zap.Logger
	concurrency int
}

func NewDailyQuotesSyncer(adapter upstream.Adapter, gate *ratelimit.Gate, bars *repository.DailyBarRepository, symbols *repository.SymbolRepository, syncErrs *repository.SyncErrorRepository, logger *zap.Logger, concurrency int) *DailyQuotesSyncer {
	if concurrency <= 0 {
		concurrency = 10
	}
	return &DailyQuotesSyncer{adapter: adapter, gate: gate, bars: bars, symbols: symbols, syncErrs: syncErrs, logger: logger, concurrency: concurrency}
}

func (s *DailyQuotesSyncer) Name() string { return "daily_quotes" }

const safetyWindowDays = 7

func (s *DailyQuotesSyncer) Run(ctx context.Context, scope Scope) (Report, error) {
	codes := scope.Codes
	if len(codes) == 0 {
		active, err := s.symbols.ListActive(ctx)
		if err != nil {
			return Report{}, err
		}
		for _, sym := range active {
			codes = append(codes, sym.Code)
		}
	}

	var total Report
	for _, shard := range Shard(codes, ShardThreshold) {
		if err := checkCancelled(ctx); err != nil {
			return total, err
		}
		rep, err := s.runShard(ctx, shard)
		total.merge(rep)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (s *DailyQuotesSyncer) runShard(ctx context.Context, codes []string) (Report, error) {
	var report Report
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	today := time.Now().Format("20060102")

	for _, code := range codes {
		code := code
		g.Go(func() error {
			startDate, err := s.startDateFor(gctx, code)
			if err != nil {
				recordSyncError(gctx, s.syncErrs, s.logger, s.Name(), code, err)
				mu.Lock()
				report.Errors++
				mu.Unlock()
				return nil // does not abort the group — same as FetchDailyDataOptimized
			}

			var f *frame.Frame
			callErr := s.gate.Do(gctx, func(ctx context.Context) error {
				result, err := s.adapter.DailyBars(ctx, code, startDate, today)
				if err != nil {
					return err
				}
				f = result
				return nil
			})
			if callErr != nil {
				recordSyncError(gctx, s.syncErrs, s.logger, s.Name(), code, callErr)
				mu.Lock()
				report.Errors++
				mu.Unlock()
				return nil
			}

			rows, ohlcRows := parseDailyBarFrame(code, f)
			cleaned, _, cleanErr := transform.CleanOHLC(s.Name(), ohlcRows)
			if cleanErr != nil {
				recordSyncError(gctx, s.syncErrs, s.logger, s.Name(), code, cleanErr)
				mu.Lock()
				report.Errors++
				mu.Unlock()
				return nil
			}
			keep := make(map[string]bool, len(cleaned))
			for _, r := range cleaned {
				keep[r.Key] = true
			}
			final := rows[:0:0]
			for _, r := range rows {
				if keep[fmt.Sprintf("%s|%s", r.Code, r.TradeDate.Format("20060102"))] {
					final = append(final, r)
				}
			}

			if err := s.bars.Upsert(gctx, final); err != nil {
				recordSyncError(gctx, s.syncErrs, s.logger, s.Name(), code, err)
				mu.Lock()
				report.Errors++
				mu.Unlock()
				return nil
			}
			resolveSyncError(gctx, s.syncErrs, s.logger, s.Name(), code)

			mu.Lock()
			report.Fetched += len(f.Items)
			report.Accepted += len(final)
			report.Written += len(final)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // individual failures are already recorded per-symbol; never abort the shard
	return report, nil
}

// startDateFor implements spec.md §4.5's
// `start-date = max(stored trade_date, symbol.list_date)`: the
// safety-window backdate always applies against the stored max, but a
// symbol with no stored bars yet starts from its own listing date
// (however long ago that was) rather than an arbitrary 7-day window.
func (s *DailyQuotesSyncer) startDateFor(ctx context.Context, code string) (string, error) {
	maxDate, err := s.bars.MaxTradeDate(ctx, code)
	if err != nil {
		return "", err
	}
	if !maxDate.IsZero() {
		return maxDate.AddDate(0, 0, -safetyWindowDays).Format("20060102"), nil
	}

	listDate, err := s.symbols.ListDate(ctx, code)
	if err != nil {
		return "", err
	}
	fallback := time.Now().AddDate(0, 0, -safetyWindowDays)
	if listDate.IsZero() {
		return fallback.Format("20060102"), nil
	}
	start := listDate
	if fallback.Before(start) {
		start = fallback
	}
	return start.Format("20060102"), nil
}
