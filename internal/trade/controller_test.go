package trade

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/percyitchy/xleaderboard/internal/backend"
	"github.com/percyitchy/xleaderboard/internal/execution"
	"github.com/percyitchy/xleaderboard/internal/pricing"
	"github.com/percyitchy/xleaderboard/internal/quote"
	"github.com/percyitchy/xleaderboard/internal/signing"
	"github.com/percyitchy/xleaderboard/internal/storage"
	"github.com/percyitchy/xleaderboard/internal/testutil"
	"github.com/percyitchy/xleaderboard/pkg/cache"
	"github.com/percyitchy/xleaderboard/pkg/types"
	"github.com/percyitchy/xleaderboard/pkg/wallet"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) add(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) ofType(typ string) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Event
	for _, ev := range l.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

type testEnv struct {
	mock       *testutil.MockBackend
	controller *Controller
	history    *storage.ConsoleStorage
	events     *eventLog
}

func newTestEnv(t *testing.T, executor Executor) *testEnv {
	t.Helper()

	mock := testutil.NewMockBackend()
	t.Cleanup(mock.Close)

	client := backend.NewClient(&backend.Config{BaseURL: mock.URL, Timeout: 5 * time.Second})

	prices, err := cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 1000,
		MaxCost:     100,
		BufferItems: 64,
	})
	require.NoError(t, err)
	t.Cleanup(prices.Close)

	fetcher := quote.NewFetcher(&quote.Config{
		Source:      client,
		Cache:       prices,
		CacheTTL:    time.Minute,
		MinNotional: decimal.NewFromInt(1),
	})

	if executor == nil {
		signer, err := wallet.NewLocalSigner(&wallet.SignerConfig{PrivateKey: testutil.TestPrivateKey})
		require.NoError(t, err)

		session := wallet.NewSession(&wallet.SessionConfig{
			Signer:       signer,
			ProxyAddress: testutil.TestProxyAddress,
			Credentials:  testutil.TestCredentials(),
		})

		executor = execution.New(&execution.Config{
			Signer: signing.New(&signing.Config{
				Preparer: client,
				Signer:   session,
				Identity: session,
			}),
			Submitter:   client,
			Credentials: session,
			MaxRetries:  2,
		})
	}

	history := storage.NewConsoleStorageWriter(&bytes.Buffer{}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	controller := New(ctx, &Config{
		Quotes:   fetcher,
		Resolver: pricing.NewResolver(pricing.DefaultPolicy()),
		Executor: executor,
		Storage:  history,
		Debounce: 20 * time.Millisecond,
		Logger:   zap.NewNop(),
	})

	events := &eventLog{}
	controller.Subscribe(events.add)

	return &testEnv{mock: mock, controller: controller, history: history, events: events}
}

func waitForQuote(t *testing.T, env *testEnv, count int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(env.events.ofType(EventQuote)) >= count
	}, 2*time.Second, 5*time.Millisecond)
}

func TestDialog_ConfirmFillableOrder(t *testing.T) {
	env := newTestEnv(t, nil)
	env.mock.SetDepth(testutil.FillableDepth("0.205", "0.20", "0.21"))

	dialog, err := env.controller.Open(testutil.TestTokenID, types.Buy, types.Market, decimal.RequireFromString("0.20"))
	require.NoError(t, err)
	defer dialog.Close()

	require.NoError(t, dialog.SetShares(decimal.NewFromInt(10)))
	waitForQuote(t, env, 1)

	call, ok := env.mock.LastDepthCall()
	require.True(t, ok)
	assert.Equal(t, "2", call.Amount)

	res, err := dialog.Preview()
	require.NoError(t, err)
	assert.True(t, res.ExecutionPrice.Equal(decimal.RequireFromString("0.21")))
	assert.True(t, res.EstimatedTotal.Equal(decimal.RequireFromString("2.10")))
	assert.Equal(t, pricing.SourceQuote, res.Source)

	quoteEvent := env.events.ofType(EventQuote)[0]
	assert.Equal(t, "0.21", quoteEvent.Quote.ExecutionPrice)
	assert.Equal(t, "2.10", quoteEvent.Quote.EstimatedTotal)

	result, err := dialog.Confirm(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "matched", result.Status)

	prepared := env.mock.Prepared()
	require.Len(t, prepared, 1)
	assert.InDelta(t, 0.21, prepared[0].Price, 1e-9)
	assert.InDelta(t, 10.0, prepared[0].Size, 1e-9)

	phases := []string{}
	for _, ev := range env.events.ofType(EventSession) {
		phases = append(phases, ev.Phase)
	}
	assert.Equal(t, []string{"preparing", "signing", "submitting", "success"}, phases)

	records, err := env.history.RecentExecutions(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, types.OutcomeSuccess, records[0].Outcome)
}

func TestDialog_InsufficientLiquidityBlocksConfirm(t *testing.T) {
	env := newTestEnv(t, nil)
	env.mock.SetDepth(testutil.ThinDepth("0.20", "1.00"))

	dialog, err := env.controller.Open(testutil.TestTokenID, types.Buy, types.Market, decimal.RequireFromString("0.20"))
	require.NoError(t, err)
	defer dialog.Close()

	require.NoError(t, dialog.SetShares(decimal.NewFromInt(10)))
	waitForQuote(t, env, 1)

	_, err = dialog.Confirm(context.Background())
	require.Error(t, err)

	var vErr *types.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, types.InsufficientLiquidity, vErr.Kind)
	assert.True(t, vErr.Amount.Equal(decimal.RequireFromString("1.00")))

	assert.Empty(t, env.mock.Prepared())
}

func TestDialog_BelowMinimumSkipsQuote(t *testing.T) {
	env := newTestEnv(t, nil)
	env.mock.SetDepth(testutil.FillableDepth("0.2", "0.2", "0.2"))

	dialog, err := env.controller.Open(testutil.TestTokenID, types.Buy, types.Market, decimal.RequireFromString("0.20"))
	require.NoError(t, err)
	defer dialog.Close()

	require.NoError(t, dialog.SetShares(decimal.NewFromInt(2)))
	waitForQuote(t, env, 1)

	assert.Equal(t, 0, env.mock.DepthCallCount())

	_, err = dialog.Preview()
	assert.True(t, types.IsValidation(err, types.BelowMinimumOrder), "got %v", err)
}

func TestDialog_RapidEditsUseLastValue(t *testing.T) {
	env := newTestEnv(t, nil)
	env.mock.SetDepth(testutil.FillableDepth("0.5", "0.5", "0.5"))

	dialog, err := env.controller.Open(testutil.TestTokenID, types.Sell, types.Market, decimal.RequireFromString("0.50"))
	require.NoError(t, err)
	defer dialog.Close()

	for _, shares := range []int64{4, 8, 12, 16} {
		require.NoError(t, dialog.SetShares(decimal.NewFromInt(shares)))
	}
	waitForQuote(t, env, 1)
	time.Sleep(60 * time.Millisecond)

	assert.Equal(t, 1, env.mock.DepthCallCount())
	call, _ := env.mock.LastDepthCall()
	assert.Equal(t, "8", call.Amount)
}

func TestDialog_CloseDiscardsQuotes(t *testing.T) {
	env := newTestEnv(t, nil)
	env.mock.SetDepth(testutil.FillableDepth("0.5", "0.5", "0.5"))

	dialog, err := env.controller.Open(testutil.TestTokenID, types.Buy, types.Market, decimal.RequireFromString("0.50"))
	require.NoError(t, err)
	assert.Equal(t, 1, env.controller.OpenDialogs())

	require.NoError(t, dialog.SetShares(decimal.NewFromInt(10)))
	dialog.Close()
	time.Sleep(60 * time.Millisecond)

	assert.Empty(t, env.events.ofType(EventQuote))
	assert.Len(t, env.events.ofType(EventClosed), 1)
	assert.Equal(t, 0, env.controller.OpenDialogs())

	_, err = env.controller.Dialog(dialog.ID())
	assert.ErrorIs(t, err, ErrDialogNotFound)

	_, err = dialog.Confirm(context.Background())
	assert.ErrorIs(t, err, ErrDialogClosed)
	assert.ErrorIs(t, dialog.SetShares(decimal.NewFromInt(1)), ErrDialogClosed)
}

// blockingExecutor holds Execute until released.
type blockingExecutor struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingExecutor) Execute(ctx context.Context, session *execution.Session) (*execution.Result, error) {
	close(b.started)
	<-b.release
	return &execution.Result{OrderID: "0x1", Status: "matched"}, nil
}

func TestDialog_ConfirmWhileRunning(t *testing.T) {
	executor := &blockingExecutor{started: make(chan struct{}), release: make(chan struct{})}
	env := newTestEnv(t, executor)

	dialog, err := env.controller.Open(testutil.TestTokenID, types.Buy, types.Limit, decimal.RequireFromString("0.50"))
	require.NoError(t, err)
	require.NoError(t, dialog.SetShares(decimal.NewFromInt(10)))

	done := make(chan error, 1)
	go func() {
		_, err := dialog.Confirm(context.Background())
		done <- err
	}()
	<-executor.started

	_, err = dialog.Confirm(context.Background())
	assert.ErrorIs(t, err, ErrSessionInProgress)

	// Closing detaches the running session without interrupting it.
	dialog.Close()
	assert.True(t, dialog.Session().Detached())

	close(executor.release)
	assert.NoError(t, <-done)
}

func TestController_OpenValidation(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := env.controller.Open("", types.Buy, types.Market, decimal.RequireFromString("0.5"))
	assert.Error(t, err)

	_, err = env.controller.Open(testutil.TestTokenID, types.Buy, types.Market, decimal.Zero)
	assert.True(t, types.IsValidation(err, types.InvalidPrice))
}
