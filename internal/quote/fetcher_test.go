package quote

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/percyitchy/xleaderboard/internal/backend"
	"github.com/percyitchy/xleaderboard/internal/testutil"
	"github.com/percyitchy/xleaderboard/pkg/cache"
	"github.com/percyitchy/xleaderboard/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// syncCache is a map-backed cache.Cache that applies writes immediately.
type syncCache struct {
	mu      sync.Mutex
	clock   cache.Clock
	entries map[string]syncEntry
}

type syncEntry struct {
	value     interface{}
	expiresAt time.Time
}

func newSyncCache(clock cache.Clock) *syncCache {
	return &syncCache{clock: clock, entries: make(map[string]syncEntry)}
}

func (c *syncCache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || (!e.expiresAt.IsZero() && !c.clock().Before(e.expiresAt)) {
		return nil, false
	}
	return e.value, true
}

func (c *syncCache) Set(key string, value interface{}, ttl time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := syncEntry{value: value}
	if ttl > 0 {
		e.expiresAt = c.clock().Add(ttl)
	}
	c.entries[key] = e
	return true
}

func (c *syncCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *syncCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]syncEntry)
}

func (c *syncCache) Close() {}

func newTestFetcher(t *testing.T, mock *testutil.MockBackend, clock *fakeClock) *Fetcher {
	t.Helper()

	client := backend.NewClient(&backend.Config{
		BaseURL: mock.URL,
		Timeout: 5 * time.Second,
		Logger:  zap.NewNop(),
	})

	return NewFetcher(&Config{
		Source:      client,
		Cache:       newSyncCache(clock.Now),
		CacheTTL:    30 * time.Second,
		MinNotional: decimal.NewFromInt(1),
		Clock:       clock.Now,
		Logger:      zap.NewNop(),
	})
}

func TestFetcher_Fetch(t *testing.T) {
	mock := testutil.NewMockBackend()
	defer mock.Close()
	mock.SetDepth(testutil.FillableDepth("0.205", "0.20", "0.21"))

	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	fetcher := newTestFetcher(t, mock, clock)

	summary, err := fetcher.Fetch(context.Background(), testutil.TestTokenID, types.Buy, decimal.NewFromInt(2))
	require.NoError(t, err)
	require.NotNil(t, summary)

	assert.True(t, summary.VolumeWeightedPrice.Equal(testutil.Dec("0.205")))
	assert.True(t, summary.WorstPriceAtFullFill.Equal(testutil.Dec("0.21")))
	assert.True(t, summary.IsFullyFillable)
	assert.Equal(t, clock.Now(), summary.FetchedAt)

	best, ok := fetcher.LastKnownBestPrice(testutil.TestTokenID, types.Buy)
	require.True(t, ok)
	assert.True(t, best.Equal(testutil.Dec("0.20")))

	_, ok = fetcher.LastKnownBestPrice(testutil.TestTokenID, types.Sell)
	assert.False(t, ok)
}

func TestFetcher_LastKnownPriceExpires(t *testing.T) {
	mock := testutil.NewMockBackend()
	defer mock.Close()
	mock.SetBestPrice(testutil.TestTokenID, types.Sell, "0.55")

	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	fetcher := newTestFetcher(t, mock, clock)

	price, err := fetcher.BestPrice(context.Background(), testutil.TestTokenID, types.Sell)
	require.NoError(t, err)
	assert.True(t, price.Equal(testutil.Dec("0.55")))

	clock.Advance(29 * time.Second)
	_, ok := fetcher.LastKnownBestPrice(testutil.TestTokenID, types.Sell)
	assert.True(t, ok)

	clock.Advance(time.Second)
	_, ok = fetcher.LastKnownBestPrice(testutil.TestTokenID, types.Sell)
	assert.False(t, ok)
}

func TestFetcher_Unavailable(t *testing.T) {
	mock := testutil.NewMockBackend()
	defer mock.Close()
	mock.DepthStatus = 404

	clock := &fakeClock{now: time.Now()}
	fetcher := newTestFetcher(t, mock, clock)

	summary, err := fetcher.Fetch(context.Background(), testutil.TestTokenID, types.Buy, decimal.NewFromInt(5))
	assert.Nil(t, summary)
	assert.True(t, errors.Is(err, types.ErrQuoteUnavailable))
}

func TestFetcher_BelowMinimumNeverCallsBackend(t *testing.T) {
	mock := testutil.NewMockBackend()
	defer mock.Close()
	mock.SetDepth(testutil.FillableDepth("0.5", "0.5", "0.5"))

	clock := &fakeClock{now: time.Now()}
	fetcher := newTestFetcher(t, mock, clock)

	rapid.Check(t, func(t *rapid.T) {
		cents := rapid.Int64Range(0, 99).Draw(t, "cents")
		notional := decimal.New(cents, -2)

		summary, err := fetcher.Fetch(context.Background(), testutil.TestTokenID, types.Buy, notional)
		if err != nil || summary != nil {
			t.Fatalf("expected (nil, nil) for notional %s, got (%v, %v)", notional, summary, err)
		}
	})

	assert.Equal(t, 0, mock.DepthCallCount())
}
