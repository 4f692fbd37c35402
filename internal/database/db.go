package database

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"leeksaver/internal/config"
	"leeksaver/internal/errkind"
	"leeksaver/internal/models"
)

var DB *gorm.DB

// InitDB opens the configured dialect and tunes the connection pool,
// following the teacher's mysql/postgres dialector switch exactly.
func InitDB(cfg *config.DatabaseConfig) error {
	var dialector gorm.Dialector

	dsn := cfg.GetDSN()

	switch cfg.Type {
	case "mysql":
		dialector = mysql.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return errkind.New(errkind.ConfigError, "InitDB", fmt.Errorf("unsupported database type: %s", cfg.Type))
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time {
			return time.Now().Local()
		},
	}
	var err error
	DB, err = gorm.Open(dialector, gormConfig)
	if err != nil {
		return errkind.New(errkind.UpstreamUnavailable, "InitDB", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("get underlying connection: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	return nil
}

// AutoMigrate creates/updates every table this module owns. Called
// explicitly by operators (not on every boot), mirroring the teacher's
// commented-out autoMigrate but wired up since this module owns many more
// tables than the single-table teacher did.
func AutoMigrate() error {
	return DB.AutoMigrate(
		&models.Symbol{},
		&models.Watchlist{},
		&models.DailyBar{},
		&models.MinuteBar{},
		&models.Financial{},
		&models.Valuation{},
		&models.TechIndicator{},
		&models.FundFlow{},
		&models.Margin{},
		&models.DragonTiger{},
		&models.NorthboundFlow{},
		&models.MarketSentiment{},
		&models.LimitUpStock{},
		&models.Sector{},
		&models.SectorQuote{},
		&models.NewsArticle{},
		&models.SyncError{},
		&models.HealthReport{},
	)
}

// Close releases the underlying connection pool.
func Close() error {
	if DB != nil {
		sqlDB, err := DB.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}

// GetDB returns the shared *gorm.DB instance.
func GetDB() *gorm.DB {
	return DB
}
