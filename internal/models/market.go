package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// FundFlow is a daily main/retail capital-flow aggregate for a code.
type FundFlow struct {
	Code         string          `gorm:"type:varchar(20);primaryKey" json:"code"`
	TradeDate    time.Time       `gorm:"type:date;primaryKey" json:"trade_date"`
	MainNetFlow  decimal.Decimal `gorm:"type:decimal(20,3)" json:"main_net_flow"`
	RetailNetFlow decimal.Decimal `gorm:"type:decimal(20,3)" json:"retail_net_flow"`
	CreatedAt    time.Time       `json:"created_at"`
}

func (FundFlow) TableName() string { return "fund_flows" }

// Margin is a daily margin-trading (两融) balance row.
type Margin struct {
	Code        string          `gorm:"type:varchar(20);primaryKey" json:"code"`
	TradeDate   time.Time       `gorm:"type:date;primaryKey" json:"trade_date"`
	MarginBalance  decimal.Decimal `gorm:"type:decimal(20,3)" json:"margin_balance"`
	ShortBalance   decimal.Decimal `gorm:"type:decimal(20,3)" json:"short_balance"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (Margin) TableName() string { return "margins" }

// DragonTiger is one 龙虎榜 (dragon-tiger list) row; append-only, so the
// repository for this table uses BulkInsertIgnore rather than Upsert.
type DragonTiger struct {
	ID          uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Code        string          `gorm:"type:varchar(20);not null;uniqueIndex:idx_dt_code_date_reason" json:"code"`
	TradeDate   time.Time       `gorm:"type:date;not null;uniqueIndex:idx_dt_code_date_reason" json:"trade_date"`
	Reason      string          `gorm:"type:varchar(128);uniqueIndex:idx_dt_code_date_reason" json:"reason"`
	NetBuy      decimal.Decimal `gorm:"type:decimal(20,3)" json:"net_buy"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (DragonTiger) TableName() string { return "dragon_tiger" }

// NorthboundFlow is a daily Stock-Connect net-flow row for a code.
type NorthboundFlow struct {
	Code      string          `gorm:"type:varchar(20);primaryKey" json:"code"`
	TradeDate time.Time       `gorm:"type:date;primaryKey" json:"trade_date"`
	NetFlow   decimal.Decimal `gorm:"type:decimal(20,3)" json:"net_flow"`
	CreatedAt time.Time       `json:"created_at"`
}

func (NorthboundFlow) TableName() string { return "northbound_flows" }

// MarketSentiment is a market-wide daily breadth snapshot.
type MarketSentiment struct {
	TradeDate    time.Time `gorm:"type:date;primaryKey" json:"trade_date"`
	AdvanceCount int       `json:"advance_count"`
	DeclineCount int       `json:"decline_count"`
	LimitUpCount int       `json:"limit_up_count"`
	LimitDownCount int     `json:"limit_down_count"`
	CreatedAt    time.Time `json:"created_at"`
}

func (MarketSentiment) TableName() string { return "market_sentiment" }

// LimitUpStock records one code hitting its daily limit on a given day.
type LimitUpStock struct {
	Code       string          `gorm:"type:varchar(20);primaryKey" json:"code"`
	TradeDate  time.Time       `gorm:"type:date;primaryKey" json:"trade_date"`
	Reason     string          `gorm:"type:varchar(64)" json:"reason"`
	SealAmount decimal.Decimal `gorm:"type:decimal(20,3)" json:"seal_amount"`
	CreatedAt  time.Time       `json:"created_at"`
}

func (LimitUpStock) TableName() string { return "limit_up_stocks" }

// Sector is an industry/concept hierarchy node.
type Sector struct {
	Code       string `gorm:"type:varchar(20);primaryKey" json:"code"`
	Name       string `gorm:"type:varchar(64)" json:"name"`
	ParentCode string `gorm:"type:varchar(20)" json:"parent_code"`
	Level      int    `json:"level"`
}

func (Sector) TableName() string { return "sectors" }

// SectorQuote is a sector's daily index value, keyed by (sector_code, trade_date).
type SectorQuote struct {
	SectorCode string          `gorm:"type:varchar(20);primaryKey" json:"sector_code"`
	TradeDate  time.Time       `gorm:"type:date;primaryKey" json:"trade_date"`
	Close      decimal.Decimal `gorm:"type:decimal(12,3)" json:"close"`
	ChangePct  decimal.Decimal `gorm:"type:decimal(8,4)" json:"change_pct"`
	CreatedAt  time.Time       `json:"created_at"`
}

func (SectorQuote) TableName() string { return "sector_quotes" }
