// Package models holds the gorm-mapped entities of the analytical store
// (spec §3). Decimal-typed fields use shopspring/decimal rather than
// float64 so price arithmetic never drifts off the exchange's tick size.
package models

import "time"

// Symbol is a tradable instrument. Rows are never hard-deleted: when the
// upstream symbol list omits a previously-known code, Active is flipped to
// false instead.
type Symbol struct {
	Code      string    `gorm:"type:varchar(20);primaryKey" json:"code"`
	Name      string    `gorm:"type:varchar(64)" json:"name"`
	Market    string    `gorm:"type:varchar(4);not null" json:"market"` // SH | SZ | BJ
	AssetType string    `gorm:"type:varchar(8);not null" json:"asset_type"` // stock | etf
	Industry  string    `gorm:"type:varchar(64)" json:"industry"`
	ListDate  time.Time `gorm:"type:date" json:"list_date"`
	Active    bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Symbol) TableName() string { return "symbols" }

// Watchlist is the user-maintained set of codes that drives L2 scope and
// MinuteBar retention.
type Watchlist struct {
	Code      string    `gorm:"type:varchar(20);primaryKey" json:"code"`
	AddedAt   time.Time `json:"added_at"`
	Note      string    `gorm:"type:varchar(255)" json:"note"`
}

func (Watchlist) TableName() string { return "watchlist" }
