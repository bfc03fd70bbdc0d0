package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/percyitchy/xleaderboard/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// executionRow is the gorm model of an execution record.
type executionRow struct {
	SessionID  string `gorm:"primaryKey"`
	TokenID    string `gorm:"index;not null"`
	Side       string
	Kind       string
	Shares     string
	Price      string
	Total      string
	Attempts   int
	AttemptIDs string // comma-separated
	Salts      string // comma-separated
	Outcome    string `gorm:"index"`
	OrderID    string
	Status     string
	TxHashes   string // comma-separated
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time `gorm:"index"`
}

func (executionRow) TableName() string {
	return "trade_executions"
}

// SQLiteStorage implements Storage with an embedded SQLite file.
type SQLiteStorage struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewSQLiteStorage opens (creating if needed) the database at path.
// Use ":memory:" for a throwaway database.
func NewSQLiteStorage(path string, log *zap.Logger) (*SQLiteStorage, error) {
	if path != ":memory:" {
		err := os.MkdirAll(filepath.Dir(path), 0o755)
		if err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = db.AutoMigrate(&executionRow{})
	if err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	log.Info("sqlite-storage-initialized", zap.String("path", path))

	return &SQLiteStorage{db: db, logger: log}, nil
}

// StoreExecution stores a finished session.
func (s *SQLiteStorage) StoreExecution(ctx context.Context, record *types.ExecutionRecord) error {
	row := executionRow{
		SessionID:  record.SessionID,
		TokenID:    record.TokenID,
		Side:       string(record.Side),
		Kind:       string(record.Kind),
		Shares:     record.Shares.String(),
		Price:      record.Price.String(),
		Total:      record.Total.String(),
		Attempts:   record.Attempts,
		AttemptIDs: strings.Join(record.AttemptIDs, ","),
		Salts:      strings.Join(record.Salts, ","),
		Outcome:    record.Outcome,
		OrderID:    record.OrderID,
		Status:     record.Status,
		TxHashes:   strings.Join(record.TxHashes, ","),
		Error:      record.Error,
		StartedAt:  record.StartedAt,
		FinishedAt: record.FinishedAt,
	}

	err := s.db.WithContext(ctx).Create(&row).Error
	if err != nil {
		return fmt.Errorf("insert execution: %w", err)
	}

	s.logger.Debug("execution-stored",
		zap.String("session-id", record.SessionID),
		zap.String("outcome", record.Outcome))

	return nil
}

// RecentExecutions returns up to limit records, newest first.
func (s *SQLiteStorage) RecentExecutions(ctx context.Context, limit int) ([]*types.ExecutionRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows []executionRow
	err := s.db.WithContext(ctx).Order("finished_at DESC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query executions: %w", err)
	}

	records := make([]*types.ExecutionRecord, 0, len(rows))
	for i := range rows {
		record, err := rows[i].record()
		if err != nil {
			return nil, fmt.Errorf("decode execution %s: %w", rows[i].SessionID, err)
		}
		records = append(records, record)
	}

	return records, nil
}

func (r *executionRow) record() (*types.ExecutionRecord, error) {
	shares, err := decimal.NewFromString(orZero(r.Shares))
	if err != nil {
		return nil, fmt.Errorf("parse shares: %w", err)
	}
	price, err := decimal.NewFromString(orZero(r.Price))
	if err != nil {
		return nil, fmt.Errorf("parse price: %w", err)
	}
	total, err := decimal.NewFromString(orZero(r.Total))
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}

	return &types.ExecutionRecord{
		SessionID:  r.SessionID,
		TokenID:    r.TokenID,
		Side:       types.Side(r.Side),
		Kind:       types.OrderKind(r.Kind),
		Shares:     shares,
		Price:      price,
		Total:      total,
		Attempts:   r.Attempts,
		AttemptIDs: splitList(r.AttemptIDs),
		Salts:      splitList(r.Salts),
		Outcome:    r.Outcome,
		OrderID:    r.OrderID,
		Status:     r.Status,
		TxHashes:   splitList(r.TxHashes),
		Error:      r.Error,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}, nil
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	s.logger.Info("closing-sqlite-storage")

	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get database handle: %w", err)
	}
	return sqlDB.Close()
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func orZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}
