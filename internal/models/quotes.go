package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailyBar is a single code's end-of-day OHLCV row, keyed by
// (code, trade_date). Invariants (enforced by the transform package before
// a row ever reaches here): low <= open,close <= high; |change_pct| <= 30.
type DailyBar struct {
	Code         string          `gorm:"type:varchar(20);primaryKey" json:"code"`
	TradeDate    time.Time       `gorm:"type:date;primaryKey" json:"trade_date"`
	Open         decimal.Decimal `gorm:"type:decimal(12,3)" json:"open"`
	High         decimal.Decimal `gorm:"type:decimal(12,3)" json:"high"`
	Low          decimal.Decimal `gorm:"type:decimal(12,3)" json:"low"`
	Close        decimal.Decimal `gorm:"type:decimal(12,3)" json:"close"`
	Volume       int64           `gorm:"type:bigint" json:"volume"` // shares
	Amount       decimal.Decimal `gorm:"type:decimal(20,3)" json:"amount"` // yuan
	Change       decimal.Decimal `gorm:"type:decimal(12,3)" json:"change"`
	ChangePct    decimal.Decimal `gorm:"type:decimal(8,4)" json:"change_pct"`
	TurnoverRate decimal.Decimal `gorm:"type:decimal(8,4)" json:"turnover_rate"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (DailyBar) TableName() string { return "daily_bars" }

// MinuteBar is the 1-minute-cadence equivalent of DailyBar, retained only
// for watchlist symbols.
type MinuteBar struct {
	Code      string          `gorm:"type:varchar(20);primaryKey" json:"code"`
	Timestamp time.Time       `gorm:"primaryKey" json:"timestamp"`
	Open      decimal.Decimal `gorm:"type:decimal(12,3)" json:"open"`
	High      decimal.Decimal `gorm:"type:decimal(12,3)" json:"high"`
	Low       decimal.Decimal `gorm:"type:decimal(12,3)" json:"low"`
	Close     decimal.Decimal `gorm:"type:decimal(12,3)" json:"close"`
	Volume    int64           `gorm:"type:bigint" json:"volume"`
	Amount    decimal.Decimal `gorm:"type:decimal(20,3)" json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}

func (MinuteBar) TableName() string { return "minute_bars" }

// Financial is one quarterly/annual report row, keyed by (code, end_date).
type Financial struct {
	Code          string          `gorm:"type:varchar(20);primaryKey" json:"code"`
	EndDate       time.Time       `gorm:"type:date;primaryKey" json:"end_date"`
	PubDate       time.Time       `gorm:"type:date" json:"pub_date"`
	Revenue       decimal.Decimal `gorm:"type:decimal(20,3)" json:"revenue"`
	NetProfit     decimal.Decimal `gorm:"type:decimal(20,3)" json:"net_profit"`
	EPS           decimal.Decimal `gorm:"type:decimal(12,4)" json:"eps"`
	ROE           decimal.Decimal `gorm:"type:decimal(8,4)" json:"roe"`
	TotalAssets   decimal.Decimal `gorm:"type:decimal(20,3)" json:"total_assets"`
	TotalLiabilities decimal.Decimal `gorm:"type:decimal(20,3)" json:"total_liabilities"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (Financial) TableName() string { return "financials" }

// Valuation is a daily valuation snapshot, keyed by (code, trade_date).
type Valuation struct {
	Code          string          `gorm:"type:varchar(20);primaryKey" json:"code"`
	TradeDate     time.Time       `gorm:"type:date;primaryKey" json:"trade_date"`
	PETTM         decimal.Decimal `gorm:"type:decimal(12,4)" json:"pe_ttm"`
	PB            decimal.Decimal `gorm:"type:decimal(12,4)" json:"pb"`
	PS            decimal.Decimal `gorm:"type:decimal(12,4)" json:"ps"`
	PEG           decimal.Decimal `gorm:"type:decimal(12,4)" json:"peg"`
	MarketCap     decimal.Decimal `gorm:"type:decimal(24,3)" json:"market_cap"`
	DividendYield decimal.Decimal `gorm:"type:decimal(8,4)" json:"dividend_yield"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (Valuation) TableName() string { return "valuations" }

// TechIndicator is derived solely from DailyBar, keyed by (code, trade_date).
type TechIndicator struct {
	Code      string          `gorm:"type:varchar(20);primaryKey" json:"code"`
	TradeDate time.Time       `gorm:"type:date;primaryKey" json:"trade_date"`
	MA5       decimal.Decimal `gorm:"type:decimal(12,3)" json:"ma5"`
	MA10      decimal.Decimal `gorm:"type:decimal(12,3)" json:"ma10"`
	MA20      decimal.Decimal `gorm:"type:decimal(12,3)" json:"ma20"`
	MA60      decimal.Decimal `gorm:"type:decimal(12,3)" json:"ma60"`
	MACD      decimal.Decimal `gorm:"type:decimal(12,4)" json:"macd"`
	MACDSignal decimal.Decimal `gorm:"type:decimal(12,4)" json:"macd_signal"`
	MACDHist  decimal.Decimal `gorm:"type:decimal(12,4)" json:"macd_hist"`
	RSI14     decimal.Decimal `gorm:"type:decimal(8,4)" json:"rsi14"`
	KDJ_K     decimal.Decimal `gorm:"type:decimal(8,4)" json:"kdj_k"`
	KDJ_D     decimal.Decimal `gorm:"type:decimal(8,4)" json:"kdj_d"`
	KDJ_J     decimal.Decimal `gorm:"type:decimal(8,4)" json:"kdj_j"`
	BOLLUpper decimal.Decimal `gorm:"type:decimal(12,3)" json:"boll_upper"`
	BOLLMid   decimal.Decimal `gorm:"type:decimal(12,3)" json:"boll_mid"`
	BOLLLower decimal.Decimal `gorm:"type:decimal(12,3)" json:"boll_lower"`
	CCI       decimal.Decimal `gorm:"type:decimal(12,4)" json:"cci"`
	ATR       decimal.Decimal `gorm:"type:decimal(12,4)" json:"atr"`
	OBV       decimal.Decimal `gorm:"type:decimal(20,3)" json:"obv"`
	SourceVersion int64       `gorm:"not null" json:"source_version"` // written as 1 by TechIndicatorSyncer; not incremented on recompute
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (TechIndicator) TableName() string { return "tech_indicators" }
