package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"leeksaver/internal/errkind"
)

// Config is the top-level configuration tree, loaded from YAML and
// overridden by environment variables (SYNC_*, UPSTREAM_*, ...).
type Config struct {
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Doctor   DoctorConfig   `mapstructure:"doctor"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
}

// UpstreamConfig holds the free A-share feed's connection parameters.
type UpstreamConfig struct {
	Token   string `mapstructure:"token"`
	BaseURL string `mapstructure:"base_url"`
	Timeout int    `mapstructure:"timeout"`
}

// DatabaseConfig mirrors the teacher's database config shape; DSN
// construction follows the same postgres/mysql switch.
type DatabaseConfig struct {
	Type            string `mapstructure:"type"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

// ServerConfig configures the thin HTTP surface (read/trigger handlers).
type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// ScheduleConfig holds the four policy knobs the Schedule Generator
// consumes (spec §4.6), plus the two weekly SPECIAL schedules.
type ScheduleConfig struct {
	L1DailyTime         string `mapstructure:"l1_daily_time"`
	L2IntervalSeconds   int    `mapstructure:"l2_interval_seconds"`
	L2TaskOffsetSeconds int    `mapstructure:"l2_task_offset_seconds"`
	RealtimeCacheTTL    int    `mapstructure:"realtime_cache_ttl"`
	StaleGraceSeconds   int    `mapstructure:"stale_grace_seconds"`

	FinancialDayOfWeek int `mapstructure:"financial_day_of_week"`
	FinancialHour      int `mapstructure:"financial_hour"`
	FinancialMinute    int `mapstructure:"financial_minute"`

	NewsCleanupDayOfWeek int `mapstructure:"news_cleanup_day_of_week"`
	NewsCleanupHour      int `mapstructure:"news_cleanup_hour"`
	NewsCleanupMinute    int `mapstructure:"news_cleanup_minute"`
}

// SyncConfig holds the runtime knobs shared by syncers and the rate gate.
type SyncConfig struct {
	BatchSize                int    `mapstructure:"batch_size"`
	WorkerPoolSize           int    `mapstructure:"worker_pool_size"`
	RateQPS                  int    `mapstructure:"rate_qps"`
	RateBurst                int    `mapstructure:"rate_burst"`
	RetryMaxAttempts         int    `mapstructure:"retry_max_attempts"`
	RetryBaseSeconds         int    `mapstructure:"retry_base_seconds"`
	CallDeadlineSeconds      int    `mapstructure:"call_deadline_seconds"`
	ChunkSize                int    `mapstructure:"chunk_size"`
	NewsRetentionDays        int    `mapstructure:"news_retention_days"`
	NewsCleanupProtectWatch  bool   `mapstructure:"news_cleanup_protect_watchlist"`
	TechIndicatorRecomputeBy string `mapstructure:"tech_indicator_recompute_scope"` // "latest" | "all_changed"
	SymbolMergePreferSecond  bool   `mapstructure:"symbol_merge_prefer_secondary"`
	SyncErrorQuarantineAfter int    `mapstructure:"sync_error_quarantine_after"`
}

// DoctorConfig holds the Data Doctor's audit thresholds.
type DoctorConfig struct {
	CoverageTargetPct float64 `mapstructure:"coverage_target_pct"`
	CoverageWindowDays int    `mapstructure:"coverage_window_days"`
	ShardSize         int     `mapstructure:"shard_size"`
}

// RedisConfig backs the sync-status surface; when Addr is empty the
// in-memory fallback store is used instead.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LogConfig matches the teacher's log config shape.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

var GlobalConfig *Config

// LoadConfig loads configPath as YAML, applies SYNC_*/UPSTREAM_*/etc.
// environment overrides via viper.AutomaticEnv, and validates the result.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errkind.New(errkind.ConfigError, "LoadConfig", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errkind.New(errkind.ConfigError, "LoadConfig", fmt.Errorf("parse config: %w", err))
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	GlobalConfig = &cfg
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("schedule.l1_daily_time", "17:30")
	v.SetDefault("schedule.l2_interval_seconds", 300)
	v.SetDefault("schedule.l2_task_offset_seconds", 120)
	v.SetDefault("schedule.realtime_cache_ttl", 10)
	v.SetDefault("schedule.stale_grace_seconds", 60)
	v.SetDefault("schedule.financial_day_of_week", 6) // Saturday
	v.SetDefault("schedule.financial_hour", 20)
	v.SetDefault("schedule.financial_minute", 0)
	v.SetDefault("schedule.news_cleanup_day_of_week", 1) // Monday
	v.SetDefault("schedule.news_cleanup_hour", 2)
	v.SetDefault("schedule.news_cleanup_minute", 0)

	v.SetDefault("sync.batch_size", 50)
	v.SetDefault("sync.worker_pool_size", 4)
	v.SetDefault("sync.rate_qps", 5)
	v.SetDefault("sync.rate_burst", 5)
	v.SetDefault("sync.retry_max_attempts", 3)
	v.SetDefault("sync.retry_base_seconds", 1)
	v.SetDefault("sync.call_deadline_seconds", 60)
	v.SetDefault("sync.chunk_size", 3000)
	v.SetDefault("sync.news_retention_days", 90)
	v.SetDefault("sync.news_cleanup_protect_watchlist", true)
	v.SetDefault("sync.tech_indicator_recompute_scope", "latest")
	v.SetDefault("sync.symbol_merge_prefer_secondary", false)
	v.SetDefault("sync.sync_error_quarantine_after", 5)

	v.SetDefault("doctor.coverage_target_pct", 95.0)
	v.SetDefault("doctor.coverage_window_days", 5)
	v.SetDefault("doctor.shard_size", 100)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "./logs/leeksaver.log")
}

// bindEnv wires the exact environment variable names spec.md §6 names,
// since their prefixes (SYNC_, UPSTREAM_, REALTIME_, CLEANUP_, NEWS_) don't
// match the dotted mapstructure keys the AutomaticEnv replacer would derive.
func bindEnv(v *viper.Viper) {
	binds := map[string]string{
		"schedule.l1_daily_time":            "SYNC_L1_DAILY_TIME",
		"schedule.l2_interval_seconds":      "SYNC_L2_INTERVAL_SECONDS",
		"schedule.l2_task_offset_seconds":   "SYNC_L2_TASK_OFFSET_SECONDS",
		"schedule.realtime_cache_ttl":       "REALTIME_CACHE_TTL",
		"schedule.financial_day_of_week":    "SYNC_FINANCIAL_DAY_OF_WEEK",
		"schedule.financial_hour":           "SYNC_FINANCIAL_HOUR",
		"schedule.financial_minute":         "SYNC_FINANCIAL_MINUTE",
		"schedule.news_cleanup_day_of_week": "CLEANUP_NEWS_DAY_OF_WEEK",
		"schedule.news_cleanup_hour":        "CLEANUP_NEWS_HOUR",
		"schedule.news_cleanup_minute":      "CLEANUP_NEWS_MINUTE",
		"sync.batch_size":                   "SYNC_BATCH_SIZE",
		"sync.rate_qps":                     "UPSTREAM_RATE_QPS",
		"sync.news_retention_days":          "NEWS_RETENTION_DAYS",
		"sync.news_cleanup_protect_watchlist": "NEWS_CLEANUP_PROTECT_WATCHLIST",
	}
	for key, env := range binds {
		_ = v.BindEnv(key, env)
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Database.Type != "" && cfg.Database.Type != "postgres" && cfg.Database.Type != "mysql" {
		return errkind.New(errkind.ConfigError, "validateConfig", fmt.Errorf("database type must be postgres or mysql, got %q", cfg.Database.Type))
	}
	if cfg.Sync.WorkerPoolSize <= 0 {
		cfg.Sync.WorkerPoolSize = 4
	}
	if cfg.Sync.BatchSize <= 0 {
		cfg.Sync.BatchSize = 50
	}
	if cfg.Sync.ChunkSize <= 0 {
		cfg.Sync.ChunkSize = 3000
	}
	if cfg.Sync.TechIndicatorRecomputeBy != "latest" && cfg.Sync.TechIndicatorRecomputeBy != "all_changed" {
		cfg.Sync.TechIndicatorRecomputeBy = "latest"
	}
	return nil
}

// GetDSN builds the gorm connection string for the configured dialect,
// following the teacher's postgres/mysql switch exactly.
func (c *DatabaseConfig) GetDSN() string {
	switch c.Type {
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable TimeZone=Asia/Shanghai",
			c.Host, c.Port, c.User, c.Password, c.DBName)
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			c.User, c.Password, c.Host, c.Port, c.DBName)
	default:
		return ""
	}
}
