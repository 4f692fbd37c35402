package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"leeksaver/internal/models"
)

// SymbolRepository adds read methods the Symbol table's consumers need
// beyond the generic Upsert (active-symbol scope resolution for syncers,
// deactivation, listing-date lookup).
type SymbolRepository struct {
	*Repository[models.Symbol]
}

func NewSymbolRepository(db *gorm.DB, chunkSize int) *SymbolRepository {
	return &SymbolRepository{New[models.Symbol](db, []string{"code"},
		[]string{"name", "market", "asset_type", "industry", "list_date", "active", "updated_at"}, chunkSize)}
}

func (r *SymbolRepository) ListActive(ctx context.Context) ([]models.Symbol, error) {
	var out []models.Symbol
	err := r.DB().WithContext(ctx).Where("active = ?", true).Find(&out).Error
	return out, err
}

func (r *SymbolRepository) Deactivate(ctx context.Context, codes []string) error {
	if len(codes) == 0 {
		return nil
	}
	return r.DB().WithContext(ctx).Model(&models.Symbol{}).
		Where("code IN ?", codes).Update("active", false).Error
}

// ListDate returns code's listing date, or the zero time if the symbol
// isn't known yet — used by daily_quotes to seed a newly-listed symbol's
// incremental start-date with its full history since listing, per
// spec.md §4.5's `start-date = max(stored trade_date, symbol.list_date)`.
func (r *SymbolRepository) ListDate(ctx context.Context, code string) (time.Time, error) {
	var sym models.Symbol
	err := r.DB().WithContext(ctx).Where("code = ?", code).First(&sym).Error
	if err == gorm.ErrRecordNotFound {
		return time.Time{}, nil
	}
	return sym.ListDate, err
}

// DailyBarRepository adds the MaxTradeDate lookup daily_quotes needs to
// compute its incremental start-date per code.
type DailyBarRepository struct {
	*Repository[models.DailyBar]
}

func NewDailyBarRepository(db *gorm.DB, chunkSize int) *DailyBarRepository {
	return &DailyBarRepository{New[models.DailyBar](db, []string{"code", "trade_date"},
		[]string{"open", "high", "low", "close", "volume", "amount", "change", "change_pct", "turnover_rate", "updated_at"}, chunkSize)}
}

// MaxTradeDate returns the latest stored trade_date for code, or the zero
// time if no rows exist.
func (r *DailyBarRepository) MaxTradeDate(ctx context.Context, code string) (time.Time, error) {
	var bar models.DailyBar
	err := r.DB().WithContext(ctx).
		Where("code = ?", code).
		Order("trade_date DESC").
		Limit(1).
		First(&bar).Error
	if err == gorm.ErrRecordNotFound {
		return time.Time{}, nil
	}
	return bar.TradeDate, err
}

// RangeByCode returns DailyBar rows for code within [start,end], always
// constraining trade_date per spec.md §4.4's partition-pruning guidance.
func (r *DailyBarRepository) RangeByCode(ctx context.Context, code string, start, end time.Time) ([]models.DailyBar, error) {
	var out []models.DailyBar
	err := r.DB().WithContext(ctx).
		Where("code = ? AND trade_date BETWEEN ? AND ?", code, start, end).
		Order("trade_date ASC").
		Find(&out).Error
	return out, err
}

// CoveredCodesSince returns the distinct codes with at least one row on
// or after since — used by the Data Doctor's coverage check.
func (r *DailyBarRepository) CoveredCodesSince(ctx context.Context, since time.Time) ([]string, error) {
	var codes []string
	err := r.DB().WithContext(ctx).
		Model(&models.DailyBar{}).
		Where("trade_date >= ?", since).
		Distinct("code").
		Pluck("code", &codes).Error
	return codes, err
}

// MaxTradeDateOverall returns the latest trade_date across all codes.
func (r *DailyBarRepository) MaxTradeDateOverall(ctx context.Context) (time.Time, error) {
	var bar models.DailyBar
	err := r.DB().WithContext(ctx).Order("trade_date DESC").Limit(1).First(&bar).Error
	if err == gorm.ErrRecordNotFound {
		return time.Time{}, nil
	}
	return bar.TradeDate, err
}

// SyncErrorRepository implements the SyncError lifecycle of spec.md §3:
// insert on failure, resolve on subsequent success, quarantine check.
type SyncErrorRepository struct {
	db *gorm.DB
}

func NewSyncErrorRepository(db *gorm.DB) *SyncErrorRepository {
	return &SyncErrorRepository{db: db}
}

// Record inserts a new unresolved SyncError, or bumps retry_count on the
// existing unresolved row for (taskName, targetCode).
func (r *SyncErrorRepository) Record(ctx context.Context, taskName, targetCode, kind, message string) error {
	var existing models.SyncError
	err := r.db.WithContext(ctx).
		Where("task_name = ? AND target_code = ? AND resolved_at IS NULL", taskName, targetCode).
		First(&existing).Error
	switch err {
	case nil:
		existing.RetryCount++
		existing.LastRetryAt = time.Now()
		existing.ErrorKind = kind
		existing.Message = message
		return r.db.WithContext(ctx).Save(&existing).Error
	case gorm.ErrRecordNotFound:
		row := models.SyncError{
			TaskName:    taskName,
			TargetCode:  targetCode,
			ErrorKind:   kind,
			Message:     message,
			RetryCount:  1,
			LastRetryAt: time.Now(),
			CreatedAt:   time.Now(),
		}
		return r.db.WithContext(ctx).Create(&row).Error
	default:
		return err
	}
}

// Resolve marks the unresolved SyncError for (taskName, targetCode) as
// resolved, if one exists. No-op (not an error) when there's nothing to
// resolve — most successful runs never had a prior failure.
func (r *SyncErrorRepository) Resolve(ctx context.Context, taskName, targetCode string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&models.SyncError{}).
		Where("task_name = ? AND target_code = ? AND resolved_at IS NULL", taskName, targetCode).
		Update("resolved_at", &now).Error
}

// Unresolved returns unresolved SyncError rows below the quarantine
// threshold, for operator review or retry scheduling.
func (r *SyncErrorRepository) Unresolved(ctx context.Context, quarantineAfter int) ([]models.SyncError, error) {
	var out []models.SyncError
	err := r.db.WithContext(ctx).
		Where("resolved_at IS NULL AND retry_count < ?", quarantineAfter).
		Find(&out).Error
	return out, err
}
