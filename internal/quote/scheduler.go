package quote

import (
	"context"
	"sync"
	"time"

	"github.com/percyitchy/xleaderboard/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Params identifies one quote request.
type Params struct {
	TokenID  string
	Side     types.Side
	Notional decimal.Decimal
}

// Result is delivered for every fetch that is still current when it returns.
// Summary is nil with a nil Err when the notional was below the minimum.
type Result struct {
	Params     Params
	Summary    *Summary
	Err        error
	Generation uint64
}

// Source fetches one quote.
type Source interface {
	Fetch(ctx context.Context, tokenID string, side types.Side, notional decimal.Decimal) (*Summary, error)
}

// Scheduler debounces quote requests: only the params of the last edit in a
// quiet period are fetched, and results whose generation has been superseded
// are dropped.
type Scheduler struct {
	source   Source
	delay    time.Duration
	onResult func(Result)
	logger   *zap.Logger

	ctx context.Context

	mu         sync.Mutex
	timer      *time.Timer
	generation uint64
	stopped    bool

	// deliverMu serializes callbacks so results reach onResult in
	// generation order.
	deliverMu sync.Mutex
}

// SchedulerConfig holds configuration for the scheduler.
type SchedulerConfig struct {
	Source   Source
	Delay    time.Duration
	OnResult func(Result)
	Logger   *zap.Logger
}

// NewScheduler creates a new debounced scheduler. Fetches run with ctx.
func NewScheduler(ctx context.Context, cfg *SchedulerConfig) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scheduler{
		source:   cfg.Source,
		delay:    cfg.Delay,
		onResult: cfg.OnResult,
		logger:   logger,
		ctx:      ctx,
	}
}

// Update records new params and restarts the quiet period. It returns the
// generation assigned to the edit.
func (s *Scheduler) Update(p Params) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return s.generation
	}

	s.generation++
	gen := s.generation

	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.delay, func() {
		s.fire(gen, p)
	})

	return gen
}

// Generation returns the current generation.
func (s *Scheduler) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Stop cancels any pending fetch and discards results still in flight.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	s.generation++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Scheduler) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.stopped && gen == s.generation
}

func (s *Scheduler) fire(gen uint64, p Params) {
	if !s.current(gen) {
		return
	}

	SchedulerFiredTotal.Inc()
	summary, err := s.source.Fetch(s.ctx, p.TokenID, p.Side, p.Notional)

	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	if !s.current(gen) {
		StaleResultsTotal.Inc()
		s.logger.Debug("quote-result-discarded",
			zap.Uint64("generation", gen),
			zap.String("token-id", p.TokenID))
		return
	}

	if s.onResult != nil {
		s.onResult(Result{
			Params:     p,
			Summary:    summary,
			Err:        err,
			Generation: gen,
		})
	}
}
