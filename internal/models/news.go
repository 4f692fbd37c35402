package models

import "time"

// NewsArticle is deduplicated by SourceID when present, otherwise by
// (Source, URL) — enforced by a unique index on each pair, since the
// upstream feed doesn't always hand back a stable native id.
type NewsArticle struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	SourceID       string    `gorm:"type:varchar(128);uniqueIndex:idx_news_source_id" json:"source_id"`
	Source         string    `gorm:"type:varchar(64);uniqueIndex:idx_news_source_url" json:"source"`
	URL            string    `gorm:"type:varchar(512);uniqueIndex:idx_news_source_url" json:"url"`
	Title          string    `gorm:"type:varchar(512)" json:"title"`
	Body           string    `gorm:"type:text" json:"body"`
	PublishTime    time.Time `json:"publish_time"`
	RelatedSymbols string    `gorm:"type:varchar(512)" json:"related_symbols"` // comma-joined codes
	Embedding      []byte    `gorm:"type:bytea" json:"-"`                     // JSON-encoded []float32, written by syncer.EmbeddingsSyncer
	CreatedAt      time.Time `json:"created_at"`
}

func (NewsArticle) TableName() string { return "news_articles" }
