package trade

import (
	"context"
	"errors"
	"sync"

	"github.com/percyitchy/xleaderboard/internal/execution"
	"github.com/percyitchy/xleaderboard/internal/pricing"
	"github.com/percyitchy/xleaderboard/internal/quote"
	"github.com/percyitchy/xleaderboard/internal/signing"
	"github.com/percyitchy/xleaderboard/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Dialog is one open trade dialog: an editable intent, its debounced quote
// and at most one running execution session.
type Dialog struct {
	id         string
	controller *Controller
	scheduler  *quote.Scheduler

	mu          sync.Mutex
	intent      Intent
	quote       *quote.Summary
	quoteParams quote.Params
	quoteErr    error
	session     *execution.Session
	closed      bool
}

// ID returns the dialog id.
func (d *Dialog) ID() string {
	return d.id
}

// Intent returns a copy of the current intent.
func (d *Dialog) Intent() Intent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.intent
}

// SetShares updates the share count and schedules a quote.
func (d *Dialog) SetShares(shares decimal.Decimal) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrDialogClosed
	}
	d.intent.Shares = shares
	params := d.paramsLocked()
	d.mu.Unlock()

	d.scheduler.Update(params)
	return nil
}

// SetSharesFromPercent sells or buys pct percent of position.
func (d *Dialog) SetSharesFromPercent(position, pct decimal.Decimal) error {
	return d.SetShares(pricing.SharesForPercent(position, pct))
}

// SetLimitPrice updates the limit price used by LIMIT orders.
func (d *Dialog) SetLimitPrice(price decimal.Decimal) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrDialogClosed
	}
	d.intent.LimitPrice = price
	return nil
}

// SetKind switches between MARKET and LIMIT.
func (d *Dialog) SetKind(kind types.OrderKind) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrDialogClosed
	}
	d.intent.Kind = kind
	return nil
}

// Preview resolves the current intent. A non-nil resolution may accompany a
// validation error.
func (d *Dialog) Preview() (*pricing.Resolution, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.previewLocked()
}

// Confirm freezes the intent and runs one execution session to completion.
func (d *Dialog) Confirm(ctx context.Context) (*execution.Result, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, ErrDialogClosed
	}
	if d.session != nil && !d.session.State().Phase.Terminal() {
		d.mu.Unlock()
		return nil, ErrSessionInProgress
	}

	res, err := d.previewLocked()
	if err != nil {
		d.mu.Unlock()
		return nil, err
	}

	session := execution.NewSession(signing.OrderRequest{
		TokenID: d.intent.TokenID,
		Side:    d.intent.Side,
		Kind:    d.intent.Kind,
		Price:   res.ExecutionPrice,
		Shares:  d.intent.Shares,
	})
	session.Subscribe(func(s execution.State) {
		d.controller.events.publish(sessionEvent(d.id, s))
	})
	d.session = session
	d.mu.Unlock()

	d.controller.logger.Info("trade-confirmed",
		zap.String("dialog-id", d.id),
		zap.String("session-id", session.ID()),
		zap.String("price", res.ExecutionPrice.String()),
		zap.String("price-source", string(res.Source)),
		zap.String("estimated-total", res.EstimatedTotal.String()))

	result, err := d.controller.executor.Execute(ctx, session)
	d.controller.record(ctx, session)
	return result, err
}

// LastQuote returns the latest quote result applied to the dialog.
func (d *Dialog) LastQuote() (*quote.Summary, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.quote, d.quoteErr
}

// Session returns the latest execution session, if any.
func (d *Dialog) Session() *execution.Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.session
}

// Close discards pending quotes and detaches a running session.
func (d *Dialog) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	session := d.session
	d.mu.Unlock()

	d.scheduler.Stop()
	if session != nil {
		session.Detach()
	}

	d.controller.remove(d.id)
	d.controller.events.publish(Event{DialogID: d.id, Type: EventClosed})
	d.controller.logger.Info("trade-dialog-closed", zap.String("dialog-id", d.id))
}

func (d *Dialog) paramsLocked() quote.Params {
	return quote.Params{
		TokenID:  d.intent.TokenID,
		Side:     d.intent.Side,
		Notional: d.intent.Shares.Mul(d.intent.ReferencePrice),
	}
}

// currentQuoteLocked returns the latest quote if it was fetched for the
// params the intent has now.
func (d *Dialog) currentQuoteLocked() *quote.Summary {
	if d.quote == nil {
		return nil
	}

	p := d.paramsLocked()
	if d.quoteParams.TokenID != p.TokenID || d.quoteParams.Side != p.Side || !d.quoteParams.Notional.Equal(p.Notional) {
		return nil
	}
	return d.quote
}

func (d *Dialog) previewLocked() (*pricing.Resolution, error) {
	in := pricing.Input{
		Side:           d.intent.Side,
		Kind:           d.intent.Kind,
		Shares:         d.intent.Shares,
		LimitPrice:     d.intent.LimitPrice,
		Quote:          d.currentQuoteLocked(),
		ReferencePrice: d.intent.ReferencePrice,
	}

	if best, ok := d.controller.quotes.LastKnownBestPrice(d.intent.TokenID, d.intent.Side); ok {
		in.LastKnownBest = decimal.NewNullDecimal(best)
	}

	return d.controller.resolver.Resolve(in)
}

func (d *Dialog) applyQuote(r quote.Result) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}

	view := &QuoteView{Notional: r.Params.Notional.String()}

	d.quoteParams = r.Params
	d.quote = r.Summary
	d.quoteErr = r.Err

	switch {
	case r.Err != nil:
		// Pricing falls back to the last known best price.
		view.Unavailable = errors.Is(r.Err, types.ErrQuoteUnavailable)
	case r.Summary != nil:
		view.VWAP = r.Summary.VolumeWeightedPrice.String()
		view.BestPrice = r.Summary.BestPrice.String()
		view.WorstPrice = r.Summary.WorstPriceAtFullFill.String()
		view.Fillable = r.Summary.IsFullyFillable
		view.Remaining = r.Summary.RemainingNotionalUnfilled.String()
	}

	res, err := d.previewLocked()
	if res != nil {
		view.ExecutionPrice = res.ExecutionPrice.String()
		view.EstimatedTotal = res.EstimatedTotal.StringFixed(2)
	}
	if err != nil {
		view.Validation = err.Error()
	}
	d.mu.Unlock()

	d.controller.events.publish(Event{DialogID: d.id, Type: EventQuote, Quote: view})
}
