package syncer

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"leeksaver/internal/models"
	"leeksaver/internal/ratelimit"
	"leeksaver/internal/repository"
	"leeksaver/internal/upstream"
)

// FinancialStatementsSyncer runs weekly (SPECIAL tier) and does a full
// rescan per active symbol — quarterly reports change rarely and arrive
// with revisions, so there's no incremental start-date to track; every run
// re-fetches each code's full reported history and upserts on
// (code, end_date).
type FinancialStatementsSyncer struct {
	adapter     upstream.Adapter
	gate        *ratelimit.Gate
	financials  *repository.Repository[models.Financial]
	symbols     *repository.SymbolRepository
	syncErrs    *repository.SyncErrorRepository
	logger      *zap.Logger
	concurrency int
}

func NewFinancialStatementsSyncer(adapter upstream.Adapter, gate *ratelimit.Gate, financials *repository.Repository[models.Financial], symbols *repository.SymbolRepository, syncErrs *repository.SyncErrorRepository, logger *zap.Logger, concurrency int) *FinancialStatementsSyncer {
	if concurrency <= 0 {
		concurrency = 10
	}
	return &FinancialStatementsSyncer{adapter: adapter, gate: gate, financials: financials, symbols: symbols, syncErrs: syncErrs, logger: logger, concurrency: concurrency}
}

func (s *FinancialStatementsSyncer) Name() string { return "financial_statements" }

func (s *FinancialStatementsSyncer) Run(ctx context.Context, scope Scope) (Report, error) {
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
		total.merge(s.runShard(ctx, shard))
	}
	return total, nil
}

func (s *FinancialStatementsSyncer) runShard(ctx context.Context, codes []string) Report {
	var report Report
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, code := range codes {
		code := code
		g.Go(func() error {
			var rows []models.Financial
			callErr := s.gate.Do(gctx, func(ctx context.Context) error {
				f, err := s.adapter.Financial(ctx, code)
				if err != nil {
					return err
				}
				for _, row := range f.Rows() {
					endDate, ok := row.Date("end_date")
					if !ok {
						continue
					}
					pubDate, _ := row.Date("pub_date")
					rows = append(rows, models.Financial{
						Code:             code,
						EndDate:          endDate,
						PubDate:          pubDate,
						Revenue:          decimalOf(row.Float("revenue")),
						NetProfit:        decimalOf(row.Float("net_profit")),
						EPS:              decimalOf(row.Float("eps")),
						ROE:              decimalOf(row.Float("roe")),
						TotalAssets:      decimalOf(row.Float("total_assets")),
						TotalLiabilities: decimalOf(row.Float("total_liabilities")),
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
			if err := s.financials.Upsert(gctx, rows); err != nil {
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
