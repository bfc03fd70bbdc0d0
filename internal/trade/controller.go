package trade

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/percyitchy/xleaderboard/internal/execution"
	"github.com/percyitchy/xleaderboard/internal/pricing"
	"github.com/percyitchy/xleaderboard/internal/quote"
	"github.com/percyitchy/xleaderboard/internal/storage"
	"github.com/percyitchy/xleaderboard/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	// ErrSessionInProgress is returned by Confirm while an attempt is running.
	ErrSessionInProgress = errors.New("execution session in progress")

	// ErrDialogClosed is returned by operations on a closed dialog.
	ErrDialogClosed = errors.New("trade dialog closed")

	// ErrDialogNotFound is returned for unknown dialog ids.
	ErrDialogNotFound = errors.New("trade dialog not found")
)

// QuoteSource fetches depth quotes and remembers best prices.
type QuoteSource interface {
	quote.Source
	BestPrice(ctx context.Context, tokenID string, side types.Side) (decimal.Decimal, error)
	LastKnownBestPrice(tokenID string, side types.Side) (decimal.Decimal, bool)
}

// Executor runs execution sessions.
type Executor interface {
	Execute(ctx context.Context, session *execution.Session) (*execution.Result, error)
}

// Controller owns the open trade dialogs.
type Controller struct {
	quotes   QuoteSource
	resolver *pricing.Resolver
	executor Executor
	storage  storage.Storage
	debounce time.Duration
	logger   *zap.Logger

	ctx    context.Context
	events *broker

	mu      sync.RWMutex
	dialogs map[string]*Dialog
}

// Config holds controller configuration.
type Config struct {
	Quotes   QuoteSource
	Resolver *pricing.Resolver
	Executor Executor
	Storage  storage.Storage // optional
	Debounce time.Duration
	Logger   *zap.Logger
}

// New creates a controller. Background quote fetches run with ctx.
func New(ctx context.Context, cfg *Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Controller{
		quotes:   cfg.Quotes,
		resolver: cfg.Resolver,
		executor: cfg.Executor,
		storage:  cfg.Storage,
		debounce: cfg.Debounce,
		logger:   logger,
		ctx:      ctx,
		events:   newBroker(),
		dialogs:  make(map[string]*Dialog),
	}
}

// Subscribe registers fn for all dialog events. The returned func
// unsubscribes.
func (c *Controller) Subscribe(fn func(Event)) func() {
	return c.events.subscribe(fn)
}

// Intent is what the user is editing in a dialog.
type Intent struct {
	TokenID        string
	Side           types.Side
	Kind           types.OrderKind
	Shares         decimal.Decimal
	LimitPrice     decimal.Decimal
	ReferencePrice decimal.Decimal
}

// Open creates a dialog for token/side. referencePrice is the market price
// shown when the dialog was opened.
func (c *Controller) Open(tokenID string, side types.Side, kind types.OrderKind, referencePrice decimal.Decimal) (*Dialog, error) {
	if tokenID == "" {
		return nil, fmt.Errorf("token id cannot be empty")
	}
	if !referencePrice.IsPositive() || referencePrice.GreaterThan(decimal.NewFromInt(1)) {
		return nil, &types.ValidationError{Kind: types.InvalidPrice, Amount: referencePrice}
	}

	d := &Dialog{
		id:         uuid.NewString(),
		controller: c,
		intent: Intent{
			TokenID:        tokenID,
			Side:           side,
			Kind:           kind,
			LimitPrice:     referencePrice,
			ReferencePrice: referencePrice,
		},
	}
	d.scheduler = quote.NewScheduler(c.ctx, &quote.SchedulerConfig{
		Source:   c.quotes,
		Delay:    c.debounce,
		OnResult: d.applyQuote,
		Logger:   c.logger,
	})

	c.mu.Lock()
	c.dialogs[d.id] = d
	c.mu.Unlock()

	c.logger.Info("trade-dialog-opened",
		zap.String("dialog-id", d.id),
		zap.String("token-id", tokenID),
		zap.String("side", string(side)),
		zap.String("kind", string(kind)))

	go c.seedBestPrice(tokenID, side)

	c.events.publish(Event{DialogID: d.id, Type: EventOpened})
	return d, nil
}

// Dialog returns an open dialog by id.
func (c *Controller) Dialog(id string) (*Dialog, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	d, ok := c.dialogs[id]
	if !ok {
		return nil, ErrDialogNotFound
	}
	return d, nil
}

// OpenDialogs returns how many dialogs are open.
func (c *Controller) OpenDialogs() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.dialogs)
}

// CloseAll closes every open dialog.
func (c *Controller) CloseAll() {
	c.mu.RLock()
	dialogs := make([]*Dialog, 0, len(c.dialogs))
	for _, d := range c.dialogs {
		dialogs = append(dialogs, d)
	}
	c.mu.RUnlock()

	for _, d := range dialogs {
		d.Close()
	}
}

func (c *Controller) seedBestPrice(tokenID string, side types.Side) {
	ctx, cancel := context.WithTimeout(c.ctx, 10*time.Second)
	defer cancel()

	_, err := c.quotes.BestPrice(ctx, tokenID, side)
	if err != nil {
		c.logger.Debug("best-price-seed-failed",
			zap.String("token-id", tokenID),
			zap.Error(err))
	}
}

func (c *Controller) remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.dialogs, id)
}

func (c *Controller) record(ctx context.Context, session *execution.Session) {
	if c.storage == nil {
		return
	}

	err := c.storage.StoreExecution(context.WithoutCancel(ctx), session.Record())
	if err != nil {
		c.logger.Error("store-execution-failed",
			zap.String("session-id", session.ID()),
			zap.Error(err))
	}
}
