package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"leeksaver/internal/models"
)

func NewFinancialRepository(db *gorm.DB, chunkSize int) *Repository[models.Financial] {
	return New[models.Financial](db, []string{"code", "end_date"},
		[]string{"pub_date", "revenue", "net_profit", "eps", "roe", "total_assets", "total_liabilities", "updated_at"}, chunkSize)
}

func NewValuationRepository(db *gorm.DB, chunkSize int) *Repository[models.Valuation] {
	return New[models.Valuation](db, []string{"code", "trade_date"},
		[]string{"pe_ttm", "pb", "ps", "peg", "market_cap", "dividend_yield", "updated_at"}, chunkSize)
}

func NewFundFlowRepository(db *gorm.DB, chunkSize int) *Repository[models.FundFlow] {
	return New[models.FundFlow](db, []string{"code", "trade_date"}, []string{"main_net_flow", "retail_net_flow"}, chunkSize)
}

func NewMarginRepository(db *gorm.DB, chunkSize int) *Repository[models.Margin] {
	return New[models.Margin](db, []string{"code", "trade_date"}, []string{"margin_balance", "short_balance"}, chunkSize)
}

func NewDragonTigerRepository(db *gorm.DB, chunkSize int) *Repository[models.DragonTiger] {
	return New[models.DragonTiger](db, []string{"code", "trade_date", "reason"}, nil, chunkSize)
}

func NewNorthboundFlowRepository(db *gorm.DB, chunkSize int) *Repository[models.NorthboundFlow] {
	return New[models.NorthboundFlow](db, []string{"code", "trade_date"}, []string{"net_flow"}, chunkSize)
}

func NewMarketSentimentRepository(db *gorm.DB, chunkSize int) *Repository[models.MarketSentiment] {
	return New[models.MarketSentiment](db, []string{"trade_date"},
		[]string{"advance_count", "decline_count", "limit_up_count", "limit_down_count"}, chunkSize)
}

func NewLimitUpStockRepository(db *gorm.DB, chunkSize int) *Repository[models.LimitUpStock] {
	return New[models.LimitUpStock](db, []string{"code", "trade_date"}, []string{"reason", "seal_amount"}, chunkSize)
}

func NewSectorRepository(db *gorm.DB, chunkSize int) *Repository[models.Sector] {
	return New[models.Sector](db, []string{"code"}, []string{"name", "parent_code", "level"}, chunkSize)
}

func NewSectorQuoteRepository(db *gorm.DB, chunkSize int) *Repository[models.SectorQuote] {
	return New[models.SectorQuote](db, []string{"sector_code", "trade_date"}, []string{"close", "change_pct"}, chunkSize)
}

// TechIndicatorRepository adds a per-code MaxTradeDate lookup. It does
// not read the bar lookback window (that goes through
// DailyBarRepository.RangeByCode) and does not bump SourceVersion; the
// value the caller sets is written as-is.
type TechIndicatorRepository struct {
	*Repository[models.TechIndicator]
}

func NewTechIndicatorRepository(db *gorm.DB, chunkSize int) *TechIndicatorRepository {
	return &TechIndicatorRepository{New[models.TechIndicator](db, []string{"code", "trade_date"},
		[]string{"ma5", "ma10", "ma20", "ma60", "macd", "macd_signal", "macd_hist", "rsi14",
			"kdj_k", "kdj_d", "kdj_j", "boll_upper", "boll_mid", "boll_lower", "cci", "atr", "obv",
			"source_version", "updated_at"}, chunkSize)}
}

func (r *TechIndicatorRepository) MaxTradeDate(ctx context.Context, code string) (time.Time, error) {
	var row models.TechIndicator
	err := r.DB().WithContext(ctx).Where("code = ?", code).Order("trade_date DESC").Limit(1).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return time.Time{}, nil
	}
	return row.TradeDate, err
}

// NewsRepository adds the lookups news.go and news_cleanup.go need beyond
// the generic BulkInsertIgnore (append-only: a news article is never
// updated once ingested).
type NewsRepository struct {
	*Repository[models.NewsArticle]
}

func NewNewsRepository(db *gorm.DB, chunkSize int) *NewsRepository {
	return &NewsRepository{New[models.NewsArticle](db, []string{"source", "url"}, nil, chunkSize)}
}

func (r *NewsRepository) MaxPublishTime(ctx context.Context) (time.Time, error) {
	var row models.NewsArticle
	err := r.DB().WithContext(ctx).Order("publish_time DESC").Limit(1).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return time.Time{}, nil
	}
	return row.PublishTime, err
}

// WithoutEmbedding returns up to limit articles whose Embedding is still
// unset, oldest first, for embeddings.go's backfill loop.
func (r *NewsRepository) WithoutEmbedding(ctx context.Context, limit int) ([]models.NewsArticle, error) {
	var out []models.NewsArticle
	err := r.DB().WithContext(ctx).
		Where("embedding IS NULL").
		Order("id ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (r *NewsRepository) SetEmbedding(ctx context.Context, id uint64, embedding []byte) error {
	return r.DB().WithContext(ctx).Model(&models.NewsArticle{}).Where("id = ?", id).Update("embedding", embedding).Error
}

// DeleteOlderThanUnlessRelated deletes news articles published before
// cutoff, excluding any whose related_symbols overlaps protectedCodes (the
// watchlist-protection rule resolved in SPEC_FULL.md §9).
func (r *NewsRepository) DeleteOlderThanUnlessRelated(ctx context.Context, cutoff time.Time, protectedCodes []string) (int64, error) {
	tx := r.DB().WithContext(ctx).Where("publish_time < ?", cutoff)
	for _, code := range protectedCodes {
		tx = tx.Where("related_symbols NOT LIKE ?", "%"+code+"%")
	}
	result := tx.Delete(&models.NewsArticle{})
	return result.RowsAffected, result.Error
}

// WatchlistRepository backs L2 scope resolution (minute_quotes,
// realtime_refresh both scope to the watchlist, not all active symbols).
type WatchlistRepository struct {
	db *gorm.DB
}

func NewWatchlistRepository(db *gorm.DB) *WatchlistRepository {
	return &WatchlistRepository{db: db}
}

func (r *WatchlistRepository) Codes(ctx context.Context) ([]string, error) {
	var codes []string
	err := r.db.WithContext(ctx).Model(&models.Watchlist{}).Pluck("code", &codes).Error
	return codes, err
}

// NewHealthReportRepository backs the Data Doctor's persisted audit
// trail. Conflict column is the autoincrement id, which is zero on every
// new row, so Upsert degenerates to a plain insert-per-call here — there
// is no natural update key for an append-only audit log.
func NewHealthReportRepository(db *gorm.DB, chunkSize int) *Repository[models.HealthReport] {
	return New[models.HealthReport](db, []string{"id"}, nil, chunkSize)
}

func NewMinuteBarRepository(db *gorm.DB, chunkSize int) *Repository[models.MinuteBar] {
	return New[models.MinuteBar](db, []string{"code", "timestamp"}, []string{"open", "high", "low", "close", "volume", "amount"}, chunkSize)
}
