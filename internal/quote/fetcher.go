package quote

import (
	"context"
	"fmt"
	"time"

	"github.com/percyitchy/xleaderboard/pkg/cache"
	"github.com/percyitchy/xleaderboard/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DepthSource is the subset of the backend client the fetcher needs.
type DepthSource interface {
	Depth(ctx context.Context, tokenID string, side types.Side, amount decimal.Decimal) (*types.DepthResponse, error)
	BestPrice(ctx context.Context, tokenID string, side types.Side) (*types.BestPriceResponse, error)
}

// Summary is the immutable result of one depth lookup.
type Summary struct {
	TokenID  string
	Side     types.Side
	Notional decimal.Decimal

	VolumeWeightedPrice       decimal.Decimal
	BestPrice                 decimal.Decimal
	WorstPriceAtFullFill      decimal.Decimal
	TotalShares               decimal.Decimal
	LevelsConsumed            int
	IsFullyFillable           bool
	RemainingNotionalUnfilled decimal.Decimal

	FetchedAt time.Time
}

// Fetcher asks the backend for fill estimates and remembers the last
// single-level price per token side.
type Fetcher struct {
	source      DepthSource
	prices      cache.Cache
	priceTTL    time.Duration
	minNotional decimal.Decimal
	clock       cache.Clock
	logger      *zap.Logger
}

// Config holds configuration for the quote fetcher.
type Config struct {
	Source      DepthSource
	Cache       cache.Cache // last known best prices
	CacheTTL    time.Duration
	MinNotional decimal.Decimal
	Clock       cache.Clock
	Logger      *zap.Logger
}

// NewFetcher creates a new quote fetcher.
func NewFetcher(cfg *Config) *Fetcher {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Fetcher{
		source:      cfg.Source,
		prices:      cfg.Cache,
		priceTTL:    cfg.CacheTTL,
		minNotional: cfg.MinNotional,
		clock:       clock,
		logger:      logger,
	}
}

// Fetch returns the depth summary for spending notional on token/side.
// Below the minimum notional it returns (nil, nil) without any request.
// Any failure wraps types.ErrQuoteUnavailable.
func (f *Fetcher) Fetch(ctx context.Context, tokenID string, side types.Side, notional decimal.Decimal) (*Summary, error) {
	if notional.LessThan(f.minNotional) {
		SkippedTotal.Inc()
		return nil, nil
	}

	start := time.Now()
	depth, err := f.source.Depth(ctx, tokenID, side, notional)
	FetchDurationSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		FetchesTotal.WithLabelValues("error").Inc()
		f.logger.Debug("quote-fetch-failed",
			zap.String("token-id", tokenID),
			zap.String("side", string(side)),
			zap.Error(err))
		return nil, fmt.Errorf("fetch depth: %w: %w", types.ErrQuoteUnavailable, err)
	}
	FetchesTotal.WithLabelValues("ok").Inc()

	summary := &Summary{
		TokenID:                   tokenID,
		Side:                      side,
		Notional:                  notional,
		VolumeWeightedPrice:       depth.VWAP.Decimal,
		BestPrice:                 depth.BestPrice,
		WorstPriceAtFullFill:      depth.WorstPrice,
		TotalShares:               depth.TotalShares,
		LevelsConsumed:            depth.LevelsUsed,
		IsFullyFillable:           depth.IsFillable,
		RemainingNotionalUnfilled: depth.RemainingUSDC,
		FetchedAt:                 f.clock(),
	}

	f.remember(tokenID, side, depth.BestPrice)

	f.logger.Debug("quote-fetched",
		zap.String("token-id", tokenID),
		zap.String("side", string(side)),
		zap.String("notional", notional.String()),
		zap.String("worst-price", depth.WorstPrice.String()),
		zap.Bool("fillable", depth.IsFillable))

	return summary, nil
}

// BestPrice fetches the top-of-book price and records it.
func (f *Fetcher) BestPrice(ctx context.Context, tokenID string, side types.Side) (decimal.Decimal, error) {
	resp, err := f.source.BestPrice(ctx, tokenID, side)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fetch best price: %w: %w", types.ErrQuoteUnavailable, err)
	}

	f.remember(tokenID, side, resp.Price)
	return resp.Price, nil
}

// LastKnownBestPrice returns the most recent single-level price for
// token/side if it has not expired.
func (f *Fetcher) LastKnownBestPrice(tokenID string, side types.Side) (decimal.Decimal, bool) {
	if f.prices == nil {
		return decimal.Zero, false
	}

	value, found := f.prices.Get(priceKey(tokenID, side))
	if !found {
		return decimal.Zero, false
	}

	price, ok := value.(decimal.Decimal)
	return price, ok
}

func (f *Fetcher) remember(tokenID string, side types.Side, price decimal.Decimal) {
	if f.prices == nil || !price.IsPositive() {
		return
	}
	f.prices.Set(priceKey(tokenID, side), price, f.priceTTL)
}

func priceKey(tokenID string, side types.Side) string {
	return "best:" + tokenID + ":" + string(side)
}
