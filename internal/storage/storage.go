// Package storage persists exit order results and session summaries so a
// run leaves an audit trail beyond the log file.
package storage

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/web3guy0/exitwave/internal/executor"
)

type Database struct {
	db  *gorm.DB
	log zerolog.Logger
}

// ExitOrder is one persisted exit order result.
type ExitOrder struct {
	ID              uint   `gorm:"primaryKey;autoIncrement"`
	SessionID       string `gorm:"index"`
	TradingSymbol   string
	Exchange        string
	TransactionType string
	Quantity        int
	OrderID         string
	Success         bool
	Error           string
	CreatedAt       time.Time
}

// SessionSummary is the final record of one monitoring run.
type SessionSummary struct {
	ID           string          `gorm:"primaryKey"`
	Polls        int
	LastPnL      decimal.Decimal `gorm:"type:decimal(20,6)"`
	PeakLoss     decimal.Decimal `gorm:"type:decimal(20,6)"`
	Threshold    decimal.Decimal `gorm:"type:decimal(20,6)"`
	ExitEvents   int
	OrdersOK     int
	OrdersFailed int
	StopReason   string
	DryRun       bool
	StartedAt    time.Time
	EndedAt      time.Time
	CreatedAt    time.Time
}

// New opens the database. A postgres:// DSN selects PostgreSQL, anything
// else is treated as a SQLite file path (directories created as needed).
func New(path string, log zerolog.Logger) (*Database, error) {
	slog := log.With().Str("component", "storage").Logger()

	var db *gorm.DB
	var err error

	if strings.HasPrefix(path, "postgres://") || strings.HasPrefix(path, "postgresql://") {
		db, err = gorm.Open(postgres.Open(path), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, err
		}
		slog.Info().Msg("💾 Database connected (PostgreSQL)")
	} else {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
		db, err = gorm.Open(sqlite.Open(path), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, err
		}
		slog.Info().Str("path", path).Msg("💾 Database initialized (SQLite)")
	}

	if err := db.AutoMigrate(&ExitOrder{}, &SessionSummary{}); err != nil {
		return nil, err
	}

	return &Database{db: db, log: slog}, nil
}

// Close releases the underlying connection pool.
func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveExitResults writes one exit batch under the given session id.
func (d *Database) SaveExitResults(sessionID string, results []executor.ExitOrderResult) error {
	if len(results) == 0 {
		return nil
	}

	rows := make([]ExitOrder, 0, len(results))
	for _, r := range results {
		rows = append(rows, ExitOrder{
			SessionID:       sessionID,
			TradingSymbol:   r.TradingSymbol,
			Exchange:        r.Exchange,
			TransactionType: r.TransactionType,
			Quantity:        r.Quantity,
			OrderID:         r.OrderID,
			Success:         r.Success,
			Error:           r.Error,
		})
	}
	return d.db.Create(&rows).Error
}

// SaveSummary upserts the session summary.
func (d *Database) SaveSummary(s *SessionSummary) error {
	return d.db.Save(s).Error
}

// ExitOrdersForSession returns a session's exit orders, oldest first.
func (d *Database) ExitOrdersForSession(sessionID string) ([]ExitOrder, error) {
	var rows []ExitOrder
	err := d.db.Where("session_id = ?", sessionID).Order("id ASC").Find(&rows).Error
	return rows, err
}

// RecentSummaries returns the most recent session summaries.
func (d *Database) RecentSummaries(limit int) ([]SessionSummary, error) {
	var rows []SessionSummary
	err := d.db.Order("started_at DESC").Limit(limit).Find(&rows).Error
	return rows, err
}
