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

// FundFlowSyncer fetches one daily main/retail capital-flow row per active
// symbol, same fan-out shape as ValuationSyncer.
type FundFlowSyncer struct {
	adapter     upstream.Adapter
	gate        *ratelimit.Gate
	flows       *repository.Repository[models.FundFlow]
	symbols     *repository.SymbolRepository
	syncErrs    *repository.SyncErrorRepository
	logger      *zap.Logger
	concurrency int
}

func NewFundFlowSyncer(adapter upstream.Adapter, gate *ratelimit.Gate, flows *repository.Repository[models.FundFlow], symbols *repository.SymbolRepository, syncErrs *repository.SyncErrorRepository, logger *zap.Logger, concurrency int) *FundFlowSyncer {
	if concurrency <= 0 {
		concurrency = 10
	}
	return &FundFlowSyncer{adapter: adapter, gate: gate, flows: flows, symbols: symbols, syncErrs: syncErrs, logger: logger, concurrency: concurrency}
}

func (s *FundFlowSyncer) Name() string { return "fund_flow" }

func (s *FundFlowSyncer) Run(ctx context.Context, scope Scope) (Report, error) {
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
		total.merge(s.runShard(ctx, shard, tradeDate))
	}
	return total, nil
}

func (s *FundFlowSyncer) runShard(ctx context.Context, codes []string, tradeDate string) Report {
	var report Report
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, code := range codes {
		code := code
		g.Go(func() error {
			var rows []models.FundFlow
			callErr := s.gate.Do(gctx, func(ctx context.Context) error {
				f, err := s.adapter.FundFlow(ctx, code, tradeDate)
				if err != nil {
					return err
				}
				for _, row := range f.Rows() {
					d, ok := row.Date("trade_date")
					if !ok {
						continue
					}
					rows = append(rows, models.FundFlow{
						Code:          code,
						TradeDate:     d,
						MainNetFlow:   decimalOf(row.Float("main_net_flow")),
						RetailNetFlow: decimalOf(row.Float("retail_net_flow")),
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
			if err := s.flows.Upsert(gctx, rows); err != nil {
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
