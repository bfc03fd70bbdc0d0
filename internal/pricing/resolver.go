package pricing

import (
	"github.com/percyitchy/xleaderboard/internal/quote"
	"github.com/percyitchy/xleaderboard/pkg/config"
	"github.com/percyitchy/xleaderboard/pkg/types"
	"github.com/shopspring/decimal"
)

// pricePlaces is the precision execution prices are rounded to.
const pricePlaces = 4

// sizePlaces is the precision the backend accepts for share counts.
const sizePlaces = 2

// Source names where an execution price came from.
type Source string

const (
	SourceQuote     Source = "quote"
	SourceLastBest  Source = "last-best"
	SourceReference Source = "reference"
	SourceLimit     Source = "limit"
)

// Policy holds the price bounds and thresholds.
type Policy struct {
	MarketBuyMaxPrice  decimal.Decimal
	MarketSellMinPrice decimal.Decimal
	SlippageBuffer     decimal.Decimal
	MinOrderValue      decimal.Decimal
}

// DefaultPolicy returns the production bounds.
func DefaultPolicy() Policy {
	return Policy{
		MarketBuyMaxPrice:  decimal.RequireFromString("0.99"),
		MarketSellMinPrice: decimal.RequireFromString("0.01"),
		SlippageBuffer:     decimal.RequireFromString("1.01"),
		MinOrderValue:      decimal.NewFromInt(1),
	}
}

// PolicyFromConfig builds a policy from application config.
func PolicyFromConfig(cfg *config.Config) Policy {
	return Policy{
		MarketBuyMaxPrice:  decimal.NewFromFloat(cfg.MarketBuyMaxPrice),
		MarketSellMinPrice: decimal.NewFromFloat(cfg.MarketSellMinPrice),
		SlippageBuffer:     decimal.NewFromFloat(cfg.SlippageBuffer),
		MinOrderValue:      decimal.NewFromFloat(cfg.MinOrderValue),
	}
}

// Input is everything the resolver looks at for one intent.
type Input struct {
	Side   types.Side
	Kind   types.OrderKind
	Shares decimal.Decimal

	// LimitPrice is only used for LIMIT orders.
	LimitPrice decimal.Decimal

	// Quote is the latest depth summary, nil if none is available.
	Quote *quote.Summary

	// LastKnownBest is the last single-level price for the order side,
	// best ask for BUY and best bid for SELL.
	LastKnownBest decimal.NullDecimal

	// ReferencePrice is the market price the dialog was opened with.
	ReferencePrice decimal.Decimal
}

// Resolution is the price the order will be prepared with.
type Resolution struct {
	ExecutionPrice decimal.Decimal
	EstimatedTotal decimal.Decimal
	Source         Source
}

// Resolver turns an intent and the latest quote into an execution price.
type Resolver struct {
	policy Policy
}

// NewResolver creates a resolver with the given policy.
func NewResolver(policy Policy) *Resolver {
	return &Resolver{policy: policy}
}

// Policy returns the resolver's policy.
func (r *Resolver) Policy() Policy {
	return r.policy
}

// Resolve computes the execution price and estimated total. When a price
// could be derived but confirmation must be blocked, the resolution is
// returned together with a *types.ValidationError.
func (r *Resolver) Resolve(in Input) (*Resolution, error) {
	var res *Resolution
	if in.Kind == types.Limit {
		if !in.LimitPrice.IsPositive() || in.LimitPrice.GreaterThan(decimal.NewFromInt(1)) {
			return nil, &types.ValidationError{Kind: types.InvalidPrice, Amount: in.LimitPrice}
		}
		res = &Resolution{ExecutionPrice: in.LimitPrice, Source: SourceLimit}
	} else {
		price, source, ok := r.marketPrice(in)
		if !ok {
			return nil, &types.ValidationError{Kind: types.InvalidPrice, Amount: decimal.Zero}
		}
		res = &Resolution{ExecutionPrice: price, Source: source}
	}

	res.EstimatedTotal = res.ExecutionPrice.Mul(in.Shares)

	if in.Kind == types.Market && in.Quote != nil && !in.Quote.IsFullyFillable {
		return res, &types.ValidationError{
			Kind:   types.InsufficientLiquidity,
			Amount: res.EstimatedTotal.Sub(in.Quote.RemainingNotionalUnfilled),
		}
	}

	if res.EstimatedTotal.LessThan(r.policy.MinOrderValue) {
		return res, &types.ValidationError{Kind: types.BelowMinimumOrder, Amount: res.EstimatedTotal}
	}

	return res, nil
}

func (r *Resolver) marketPrice(in Input) (decimal.Decimal, Source, bool) {
	if in.Quote != nil && in.Quote.WorstPriceAtFullFill.IsPositive() {
		return r.bound(in.Side, in.Quote.WorstPriceAtFullFill), SourceQuote, true
	}

	// Fallbacks carry the slippage buffer on the buy side only.
	if in.LastKnownBest.Valid && in.LastKnownBest.Decimal.IsPositive() {
		return r.bound(in.Side, r.buffered(in.Side, in.LastKnownBest.Decimal)), SourceLastBest, true
	}

	if in.ReferencePrice.IsPositive() {
		return r.bound(in.Side, r.buffered(in.Side, in.ReferencePrice)), SourceReference, true
	}

	return decimal.Zero, "", false
}

func (r *Resolver) buffered(side types.Side, price decimal.Decimal) decimal.Decimal {
	if side == types.Buy {
		return price.Mul(r.policy.SlippageBuffer)
	}
	return price
}

func (r *Resolver) bound(side types.Side, price decimal.Decimal) decimal.Decimal {
	price = price.Round(pricePlaces)
	if side == types.Buy {
		return decimal.Min(price, r.policy.MarketBuyMaxPrice)
	}
	return decimal.Max(price, r.policy.MarketSellMinPrice)
}

// SharesForPercent returns pct percent of a position, rounded down to the
// backend's size precision.
func SharesForPercent(position, pct decimal.Decimal) decimal.Decimal {
	if !position.IsPositive() || !pct.IsPositive() {
		return decimal.Zero
	}
	if pct.GreaterThan(decimal.NewFromInt(100)) {
		pct = decimal.NewFromInt(100)
	}
	return position.Mul(pct).Div(decimal.NewFromInt(100)).RoundFloor(sizePlaces)
}
