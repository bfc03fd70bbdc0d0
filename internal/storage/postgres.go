package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/percyitchy/xleaderboard/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PostgresStorage implements Storage using PostgreSQL.
type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

// PostgresConfig holds PostgreSQL configuration.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	Logger   *zap.Logger
}

// Schema is the DDL for the execution history table.
const Schema = `
CREATE TABLE IF NOT EXISTS trade_executions (
	session_id   TEXT PRIMARY KEY,
	token_id     TEXT NOT NULL,
	side         TEXT NOT NULL,
	kind         TEXT NOT NULL,
	shares       NUMERIC NOT NULL,
	price        NUMERIC NOT NULL,
	total        NUMERIC NOT NULL,
	attempts     INTEGER NOT NULL,
	attempt_ids  TEXT[] NOT NULL,
	salts        TEXT[] NOT NULL,
	outcome      TEXT NOT NULL,
	order_id     TEXT,
	status       TEXT,
	tx_hashes    TEXT[],
	error        TEXT,
	started_at   TIMESTAMPTZ NOT NULL,
	finished_at  TIMESTAMPTZ NOT NULL
)`

// NewPostgresStorage creates a new PostgreSQL storage.
func NewPostgresStorage(cfg *PostgresConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Test connection
	err = db.Ping()
	if err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	_, err = db.Exec(Schema)
	if err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}

	cfg.Logger.Info("postgres-storage-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return NewPostgresStorageWithDB(db, cfg.Logger), nil
}

// NewPostgresStorageWithDB wraps an open database handle.
func NewPostgresStorageWithDB(db *sql.DB, logger *zap.Logger) *PostgresStorage {
	return &PostgresStorage{
		db:     db,
		logger: logger,
	}
}

// StoreExecution stores a finished session in PostgreSQL.
func (p *PostgresStorage) StoreExecution(ctx context.Context, record *types.ExecutionRecord) error {
	query := `
		INSERT INTO trade_executions (
			session_id, token_id, side, kind, shares, price, total,
			attempts, attempt_ids, salts, outcome, order_id, status,
			tx_hashes, error, started_at, finished_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17
		)
	`

	_, err := p.db.ExecContext(ctx, query,
		record.SessionID,
		record.TokenID,
		string(record.Side),
		string(record.Kind),
		record.Shares.String(),
		record.Price.String(),
		record.Total.String(),
		record.Attempts,
		pq.Array(record.AttemptIDs),
		pq.Array(record.Salts),
		record.Outcome,
		record.OrderID,
		record.Status,
		pq.Array(record.TxHashes),
		record.Error,
		record.StartedAt,
		record.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert execution: %w", err)
	}

	p.logger.Debug("execution-stored",
		zap.String("session-id", record.SessionID),
		zap.String("outcome", record.Outcome),
		zap.Int("attempts", record.Attempts))

	return nil
}

// RecentExecutions returns up to limit records, newest first.
func (p *PostgresStorage) RecentExecutions(ctx context.Context, limit int) ([]*types.ExecutionRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT session_id, token_id, side, kind, shares, price, total,
			attempts, attempt_ids, salts, outcome, order_id, status,
			tx_hashes, error, started_at, finished_at
		FROM trade_executions
		ORDER BY finished_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query executions: %w", err)
	}
	defer rows.Close()

	var records []*types.ExecutionRecord
	for rows.Next() {
		var (
			r                    types.ExecutionRecord
			side, kind           string
			shares, price, total string
			orderID, status, msg sql.NullString
		)

		err = rows.Scan(
			&r.SessionID, &r.TokenID, &side, &kind, &shares, &price, &total,
			&r.Attempts, pq.Array(&r.AttemptIDs), pq.Array(&r.Salts), &r.Outcome,
			&orderID, &status, pq.Array(&r.TxHashes), &msg, &r.StartedAt, &r.FinishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}

		r.Side = types.Side(side)
		r.Kind = types.OrderKind(kind)
		r.OrderID = orderID.String
		r.Status = status.String
		r.Error = msg.String

		r.Shares, err = decimal.NewFromString(shares)
		if err != nil {
			return nil, fmt.Errorf("parse shares: %w", err)
		}
		r.Price, err = decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("parse price: %w", err)
		}
		r.Total, err = decimal.NewFromString(total)
		if err != nil {
			return nil, fmt.Errorf("parse total: %w", err)
		}

		records = append(records, &r)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate executions: %w", err)
	}

	return records, nil
}

// Close closes the database connection.
func (p *PostgresStorage) Close() error {
	p.logger.Info("closing-postgres-storage")
	return p.db.Close()
}
