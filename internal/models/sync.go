package models

import "time"

// SyncError is inserted on syncer failure, keyed by (task_name,
// target_code). ResolvedAt is set when the same pair subsequently
// succeeds. A row with RetryCount >= the configured quarantine threshold
// is excluded from automatic retry.
type SyncError struct {
	ID          uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TaskName    string     `gorm:"type:varchar(64);uniqueIndex:idx_sync_error_task_code" json:"task_name"`
	TargetCode  string     `gorm:"type:varchar(20);uniqueIndex:idx_sync_error_task_code" json:"target_code"`
	ErrorKind   string     `gorm:"type:varchar(32)" json:"error_kind"`
	Message     string     `gorm:"type:text" json:"message"`
	RetryCount  int        `json:"retry_count"`
	LastRetryAt time.Time  `json:"last_retry_at"`
	CreatedAt   time.Time  `json:"created_at"`
	ResolvedAt  *time.Time `json:"resolved_at"`
}

func (SyncError) TableName() string { return "sync_errors" }

// HealthReport is the Data Doctor's persisted audit output, one row per
// dataset for each audit run.
type HealthReport struct {
	ID              uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Dataset         string    `gorm:"type:varchar(64);index" json:"dataset"`
	RunAt           time.Time `json:"run_at"`
	CoveragePct     float64   `json:"coverage_pct"`
	Fresh           bool      `json:"fresh"`
	QualityViolations int     `json:"quality_violations"`
	MissingSymbols  string    `gorm:"type:text" json:"missing_symbols"` // comma-joined
	ActionRequired  bool      `json:"action_required"`
	CreatedAt       time.Time `json:"created_at"`
}

func (HealthReport) TableName() string { return "health_reports" }
