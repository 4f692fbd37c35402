package syncer

import (
	"context"
	"time"

	"go.uber.org/zap"

	"leeksaver/internal/config"
	"leeksaver/internal/errkind"
	"leeksaver/internal/frame"
	"leeksaver/internal/models"
	"leeksaver/internal/ratelimit"
	"leeksaver/internal/repository"
	"leeksaver/internal/upstream"
)

// SymbolListSyncer refreshes the Symbol table from the primary listing
// endpoint, enriched by a secondary industry/list-date endpoint. Per
// spec.md §4.1 and the resolved Open Question (SPEC_FULL.md §9), the
// primary source wins on any conflicting non-empty field; the secondary
// only fills gaps the primary left blank — unless preferSecondary is set.
type SymbolListSyncer struct {
	adapter         upstream.Adapter
	gate            *ratelimit.Gate
	symbols         *repository.SymbolRepository
	syncErrs        *repository.SyncErrorRepository
	logger          *zap.Logger
	preferSecondary bool
}

func NewSymbolListSyncer(adapter upstream.Adapter, gate *ratelimit.Gate, symbols *repository.SymbolRepository, syncErrs *repository.SyncErrorRepository, logger *zap.Logger, cfg config.SyncConfig) *SymbolListSyncer {
	return &SymbolListSyncer{adapter: adapter, gate: gate, symbols: symbols, syncErrs: syncErrs, logger: logger, preferSecondary: cfg.SymbolMergePreferSecond}
}

func (s *SymbolListSyncer) Name() string { return "symbol_list" }

type secondaryFields struct {
	Industry string
	ListDate string
}

func (s *SymbolListSyncer) Run(ctx context.Context, _ Scope) (Report, error) {
	var report Report
	const task = "symbol_list"

	var primary *frame.Frame
	err := s.gate.Do(ctx, func(ctx context.Context) error {
		f, callErr := s.adapter.SymbolList(ctx)
		if callErr != nil {
			return callErr
		}
		primary = f
		return nil
	})
	if err != nil {
		recordSyncError(ctx, s.syncErrs, s.logger, task, "*", err)
		return report, err
	}
	report.Fetched = len(primary.Items)

	secondary := map[string]secondaryFields{}
	var secFrame *frame.Frame
	secErr := s.gate.Do(ctx, func(ctx context.Context) error {
		f, callErr := s.adapter.SymbolIndustrySecondary(ctx)
		if callErr != nil {
			return callErr
		}
		secFrame = f
		return nil
	})
	if secErr == nil && secFrame != nil {
		for _, row := range secFrame.Rows() {
			secondary[row.String("code")] = secondaryFields{
				Industry: row.String("industry"),
				ListDate: row.String("list_date"),
			}
		}
	} else if secErr != nil && !errkind.Is(secErr, errkind.Empty) {
		s.logger.Warn("secondary symbol enrichment unavailable", zap.Error(secErr))
	}

	rows := make([]models.Symbol, 0, len(primary.Items))
	now := time.Now()
	seen := make(map[string]bool, len(primary.Items))
	for _, row := range primary.Rows() {
		code := row.String("code")
		if code == "" {
			continue
		}
		seen[code] = true
		industry := row.String("industry")
		listDateStr := row.String("list_date")
		if sec, ok := secondary[code]; ok {
			if s.preferSecondary {
				if sec.Industry != "" {
					industry = sec.Industry
				}
				if sec.ListDate != "" {
					listDateStr = sec.ListDate
				}
			} else {
				if industry == "" && sec.Industry != "" {
					industry = sec.Industry
				}
				if listDateStr == "" && sec.ListDate != "" {
					listDateStr = sec.ListDate
				}
			}
		}
		listDate, _ := time.Parse("20060102", listDateStr)

		rows = append(rows, models.Symbol{
			Code:      code,
			Name:      row.String("name"),
			Market:    row.String("market"),
			AssetType: defaultAssetType(row.String("asset_type")),
			Industry:  industry,
			ListDate:  listDate,
			Active:    true,
			UpdatedAt: now,
		})
	}
	report.Accepted = len(rows)

	if err := s.symbols.Upsert(ctx, rows); err != nil {
		recordSyncError(ctx, s.syncErrs, s.logger, task, "*", err)
		return report, err
	}
	report.Written = len(rows)

	active, err := s.symbols.ListActive(ctx)
	if err == nil {
		var stale []string
		for _, sym := range active {
			if !seen[sym.Code] {
				stale = append(stale, sym.Code)
			}
		}
		if len(stale) > 0 {
			if err := s.symbols.Deactivate(ctx, stale); err != nil {
				s.logger.Warn("failed to deactivate stale symbols", zap.Error(err))
			}
		}
	}

	resolveSyncError(ctx, s.syncErrs, s.logger, task, "*")
	return report, nil
}

func defaultAssetType(v string) string {
	if v == "" {
		return "stock"
	}
	return v
}
