// Package doctor implements the Data Doctor's daily audit, transliterated
// from original_source/app/monitoring/data_doctor.py's DataDoctor class:
// coverage, freshness and quality checks, plus the
// shard-and-enqueue-backfill auto-repair behavior. It has no metadata
// completeness check.
package doctor

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"leeksaver/internal/config"
	"leeksaver/internal/jobrun"
	"leeksaver/internal/models"
	"leeksaver/internal/repository"
	"leeksaver/internal/syncer"
)

// DatasetCheck is one audited dataset's outcome.
type DatasetCheck struct {
	Dataset           string   `json:"dataset"`
	CoveragePct       float64  `json:"coverage_pct"`
	Fresh             bool     `json:"fresh"`
	QualityViolations int      `json:"quality_violations"`
	MissingSymbols    []string `json:"missing_symbols,omitempty"`
	ActionRequired    bool     `json:"action_required"`
}

// Report is the Data Doctor's full run output — JSON-marshalable for the
// `doctor run` CLI and for persistence.
type Report struct {
	RunAt            time.Time      `json:"run_at"`
	Checks           []DatasetCheck `json:"checks"`
	BackfillsQueued  int            `json:"backfills_queued"`
}

// Doctor audits coverage/freshness/quality for each tracked dataset and,
// when auto-repair is wired to a Job Runtime, enqueues chunked backfill
// jobs for whatever it finds missing.
type Doctor struct {
	bars       *repository.DailyBarRepository
	valuations *repository.Repository[models.Valuation]
	financials *repository.Repository[models.Financial]
	symbols    *repository.SymbolRepository
	healthRepo *repository.Repository[models.HealthReport]
	runtime    *jobrun.Runtime
	registry   syncer.Registry
	logger     *zap.Logger
	cfg        config.DoctorConfig
}

func New(bars *repository.DailyBarRepository, valuations *repository.Repository[models.Valuation], financials *repository.Repository[models.Financial], symbols *repository.SymbolRepository, healthRepo *repository.Repository[models.HealthReport], runtime *jobrun.Runtime, reg syncer.Registry, logger *zap.Logger, cfg config.DoctorConfig) *Doctor {
	return &Doctor{bars: bars, valuations: valuations, financials: financials, symbols: symbols, healthRepo: healthRepo, runtime: runtime, registry: reg, logger: logger, cfg: cfg}
}

// Run executes the full audit: coverage, freshness, and quality for
// daily_quotes, valuation, and financial_statements (the datasets
// original_source's _check_quote_coverage/_check_data_freshness cover),
// persists one HealthReport row per dataset, and — when auto-repair is
// enabled — enqueues shard backfill jobs for any dataset under the
// coverage target.
func (d *Doctor) Run(ctx context.Context) (Report, error) {
	report := Report{RunAt: time.Now()}

	active, err := d.symbols.ListActive(ctx)
	if err != nil {
		return report, err
	}
	allCodes := make([]string, 0, len(active))
	for _, sym := range active {
		allCodes = append(allCodes, sym.Code)
	}

	checks := []struct {
		dataset string
		covered func(ctx context.Context, since time.Time) ([]string, error)
		maxDate func(ctx context.Context) (time.Time, error)
		quality func(ctx context.Context, since time.Time) (int, error)
	}{
		{
			dataset: "daily_quotes",
			covered: d.bars.CoveredCodesSince,
			maxDate: d.bars.MaxTradeDateOverall,
			quality: func(ctx context.Context, since time.Time) (int, error) {
				n, err := d.bars.CountWhere(ctx, "trade_date", since, "high < low OR open <= 0 OR close <= 0")
				return int(n), err
			},
		},
		{
			dataset: "valuation",
			covered: func(ctx context.Context, since time.Time) ([]string, error) {
				return d.valuations.DistinctCodesSince(ctx, "trade_date", since)
			},
			maxDate: func(ctx context.Context) (time.Time, error) {
				return d.valuations.MaxColumnDate(ctx, "trade_date")
			},
			quality: func(ctx context.Context, since time.Time) (int, error) {
				n, err := d.valuations.CountWhere(ctx, "trade_date", since, "pe_ttm < 0 OR pb < 0")
				return int(n), err
			},
		},
		{
			dataset: "financial_statements",
			covered: func(ctx context.Context, since time.Time) ([]string, error) {
				return d.financials.DistinctCodesSince(ctx, "end_date", since)
			},
			maxDate: func(ctx context.Context) (time.Time, error) {
				return d.financials.MaxColumnDate(ctx, "end_date")
			},
			quality: func(ctx context.Context, since time.Time) (int, error) {
				n, err := d.financials.CountWhere(ctx, "end_date", since, "revenue < 0 OR total_assets < 0")
				return int(n), err
			},
		},
	}

	for _, c := range checks {
		check, missing := d.checkCoverage(ctx, c.dataset, allCodes, c.covered, c.maxDate, c.quality)
		report.Checks = append(report.Checks, check)
		d.persist(ctx, check)

		if check.ActionRequired && len(missing) > 0 {
			queued := d.enqueueBackfill(c.dataset, missing)
			report.BackfillsQueued += queued
		}
	}

	return report, nil
}

// checkCoverage implements _check_quote_coverage/_check_data_freshness:
// coverage = fraction of active symbols with at least one row in the
// lookback window; freshness = whether the dataset's max date is at most
// 3 calendar days old (no trading calendar is consulted, and an empty
// table or a failed lookup counts as fresh); quality = count of rows in
// the window that violate the dataset's sanity rule.
func (d *Doctor) checkCoverage(ctx context.Context, dataset string, allCodes []string, covered func(context.Context, time.Time) ([]string, error), maxDate func(context.Context) (time.Time, error), quality func(context.Context, time.Time) (int, error)) (DatasetCheck, []string) {
	since := time.Now().AddDate(0, 0, -d.cfg.CoverageWindowDays)
	coveredCodes, err := covered(ctx, since)
	if err != nil {
		d.logger.Warn("coverage check failed", zap.String("dataset", dataset), zap.Error(err))
		return DatasetCheck{Dataset: dataset, ActionRequired: true}, nil
	}
	coveredSet := make(map[string]bool, len(coveredCodes))
	for _, c := range coveredCodes {
		coveredSet[c] = true
	}
	var missing []string
	for _, c := range allCodes {
		if !coveredSet[c] {
			missing = append(missing, c)
		}
	}
	coveragePct := 100.0
	if len(allCodes) > 0 {
		coveragePct = float64(len(coveredSet)) / float64(len(allCodes)) * 100
	}

	fresh := true
	if max, err := maxDate(ctx); err == nil && !max.IsZero() {
		fresh = time.Since(max) <= 3*24*time.Hour // weekends/holidays tolerance
	}

	violations := 0
	if n, err := quality(ctx, since); err != nil {
		d.logger.Warn("quality check failed", zap.String("dataset", dataset), zap.Error(err))
	} else {
		violations = n
	}

	actionRequired := coveragePct < d.cfg.CoverageTargetPct || !fresh

	return DatasetCheck{
		Dataset:           dataset,
		CoveragePct:       coveragePct,
		Fresh:             fresh,
		QualityViolations: violations,
		MissingSymbols:    missing,
		ActionRequired:    actionRequired,
	}, missing
}

// enqueueBackfill implements _auto_repair_smart's shard-and-enqueue
// behavior: split missing codes into shards of at most ShardSize and
// submit one dedup-keyed backfill job per shard, so a doctor run that
// fires while a prior backfill is still in flight doesn't double-enqueue
// it.
func (d *Doctor) enqueueBackfill(dataset string, missing []string) int {
	if d.runtime == nil {
		return 0
	}
	s, err := d.registry.Get(dataset)
	if err != nil {
		d.logger.Warn("no syncer registered for backfill dataset", zap.String("dataset", dataset))
		return 0
	}

	shards := syncer.Shard(missing, d.cfg.ShardSize)
	queued := 0
	for _, shard := range shards {
		shard := shard
		key := fmt.Sprintf("backfill:%s:%s", dataset, shardHash(shard))
		submitted := d.runtime.Submit(&jobrun.Job{
			Name:     fmt.Sprintf("doctor-backfill-%s", dataset),
			DedupKey: key,
			Deadline: 10 * time.Minute,
			Run: func(ctx context.Context) error {
				_, err := s.Run(ctx, syncer.Scope{Codes: shard})
				return err
			},
		})
		if submitted {
			queued++
		}
	}
	return queued
}

func shardHash(codes []string) string {
	h := sha1.New()
	h.Write([]byte(strings.Join(codes, ",")))
	return hex.EncodeToString(h.Sum(nil))[:12]
}

func (d *Doctor) persist(ctx context.Context, check DatasetCheck) {
	row := models.HealthReport{
		Dataset:           check.Dataset,
		RunAt:             time.Now(),
		CoveragePct:       check.CoveragePct,
		Fresh:             check.Fresh,
		QualityViolations: check.QualityViolations,
		MissingSymbols:    strings.Join(check.MissingSymbols, ","),
		ActionRequired:    check.ActionRequired,
		CreatedAt:         time.Now(),
	}
	if err := d.healthRepo.Upsert(ctx, []models.HealthReport{row}); err != nil {
		d.logger.Warn("failed to persist health report", zap.String("dataset", check.Dataset), zap.Error(err))
	}
}
