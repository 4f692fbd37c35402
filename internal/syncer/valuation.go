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

// ValuationSyncer fetches one daily valuation snapshot per active symbol.
// Grounded on the same per-symbol errgroup fan-out as DailyQuotesSyncer,
// trimmed to the single-date shape the valuation endpoint returns.
type ValuationSyncer struct {
	adapter     upstream.Adapter
	gate        *ratelimit.Gate
	valuations  *repository.Repository[models.Valuation]
	symbols     *repository.SymbolRepository
	syncErrs    *repository.SyncErrorRepository
	logger      *zap.Logger
	concurrency int
}

func NewValuationSyncer(adapter upstream.Adapter, gate *ratelimit.Gate, valuations *repository.Repository[models.Valuation], symbols *repository.SymbolRepository, syncErrs *repository.SyncErrorRepository, logger *zap.Logger, concurrency int) *ValuationSyncer {
	if concurrency <= 0 {
		concurrency = 10
	}
	return &ValuationSyncer{adapter: adapter, gate: gate, valuations: valuations, symbols: symbols, syncErrs: syncErrs, logger: logger, concurrency: concurrency}
}

func (s *ValuationSyncer) Name() string { return "valuation" }

func (s *ValuationSyncer) Run(ctx context.Context, scope Scope) (Report, error) {
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
	tradeDate := scope.Date
	if tradeDate == "" {
		tradeDate = time.Now().Format("20060102")
	}

	var total Report
	for _, shard := range Shard(codes, ShardThreshold) {
		if err := checkCancelled(ctx); err != nil {
			return total, err
		}
		rep := s.runShard(ctx, shard, tradeDate)
		total.merge(rep)
	}
	return total, nil
}

func (s *ValuationSyncer) runShard(ctx context.Context, codes []string, tradeDate string) Report {
	var report Report
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, code := range codes {
		code := code
		g.Go(func() error {
			var rows []models.Valuation
			callErr := s.gate.Do(gctx, func(ctx context.Context) error {
				f, err := s.adapter.Valuation(ctx, code, tradeDate)
				if err != nil {
					return err
				}
				for _, row := range f.Rows() {
					d, ok := row.Date("trade_date")
					if !ok {
						continue
					}
					rows = append(rows, models.Valuation{
						Code:          code,
						TradeDate:     d,
						PETTM:         decimalOf(row.Float("pe_ttm")),
						PB:            decimalOf(row.Float("pb")),
						PS:            decimalOf(row.Float("ps")),
						PEG:           decimalOf(row.Float("peg")),
						MarketCap:     decimalOf(row.Float("market_cap")),
						DividendYield: decimalOf(row.Float("dividend_yield")),
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
			if err := s.valuations.Upsert(gctx, rows); err != nil {
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
	return report
}
