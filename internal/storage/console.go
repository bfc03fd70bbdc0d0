package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/percyitchy/xleaderboard/pkg/types"
	"go.uber.org/zap"
)

// consoleHistory is how many records console storage keeps for queries.
const consoleHistory = 100

// ConsoleStorage implements Storage by pretty-printing to console. The most
// recent records are kept in memory.
type ConsoleStorage struct {
	out    io.Writer
	logger *zap.Logger

	mu      sync.Mutex
	records []*types.ExecutionRecord
}

// NewConsoleStorage creates a new console storage writing to stdout.
func NewConsoleStorage(logger *zap.Logger) *ConsoleStorage {
	return NewConsoleStorageWriter(os.Stdout, logger)
}

// NewConsoleStorageWriter creates a console storage writing to out.
func NewConsoleStorageWriter(out io.Writer, logger *zap.Logger) *ConsoleStorage {
	logger.Info("console-storage-initialized")
	return &ConsoleStorage{
		out:    out,
		logger: logger,
	}
}

// StoreExecution pretty-prints a finished session.
func (c *ConsoleStorage) StoreExecution(ctx context.Context, record *types.ExecutionRecord) error {
	rule := strings.Repeat("━", 72)

	var b strings.Builder
	fmt.Fprintln(&b, "\n"+rule)
	fmt.Fprintf(&b, "TRADE EXECUTION %s\n", strings.ToUpper(record.Outcome))
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "Session:  %s\n", shortID(record.SessionID))
	fmt.Fprintf(&b, "Token:    %s\n", shortID(record.TokenID))
	fmt.Fprintf(&b, "Order:    %s %s %s shares @ %s ($%s)\n",
		record.Kind, record.Side, record.Shares.String(), record.Price.String(), record.Total.StringFixed(2))
	fmt.Fprintf(&b, "Attempts: %d (salts: %s)\n", record.Attempts, strings.Join(record.Salts, ", "))
	fmt.Fprintf(&b, "Duration: %s\n", record.Duration())
	if record.OrderID != "" {
		fmt.Fprintf(&b, "Order ID: %s (%s)\n", record.OrderID, record.Status)
	}
	if record.Error != "" {
		fmt.Fprintf(&b, "Error:    %s\n", record.Error)
	}
	fmt.Fprintln(&b, rule)

	_, err := io.WriteString(c.out, b.String())
	if err != nil {
		return fmt.Errorf("write record: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, record)
	if len(c.records) > consoleHistory {
		c.records = c.records[len(c.records)-consoleHistory:]
	}

	return nil
}

// RecentExecutions returns the in-memory records, newest first.
func (c *ConsoleStorage) RecentExecutions(ctx context.Context, limit int) ([]*types.ExecutionRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*types.ExecutionRecord, 0, len(c.records))
	for i := len(c.records) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, c.records[i])
	}
	return out, nil
}

// Close is a no-op for console storage.
func (c *ConsoleStorage) Close() error {
	c.logger.Info("closing-console-storage")
	return nil
}

func shortID(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:8] + "…" + id[len(id)-4:]
}
