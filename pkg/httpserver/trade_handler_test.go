package httpserver

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/percyitchy/xleaderboard/internal/execution"
	"github.com/percyitchy/xleaderboard/internal/pricing"
	"github.com/percyitchy/xleaderboard/internal/quote"
	"github.com/percyitchy/xleaderboard/internal/storage"
	"github.com/percyitchy/xleaderboard/internal/trade"
	"github.com/percyitchy/xleaderboard/pkg/healthprobe"
	"github.com/percyitchy/xleaderboard/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testToken = "71321045679252212594626385532706912750332728571942532289631379312455583992563"

type noQuotes struct{}

func (noQuotes) Fetch(ctx context.Context, tokenID string, side types.Side, notional decimal.Decimal) (*quote.Summary, error) {
	return nil, nil
}

func (noQuotes) BestPrice(ctx context.Context, tokenID string, side types.Side) (decimal.Decimal, error) {
	return decimal.Zero, types.ErrQuoteUnavailable
}

func (noQuotes) LastKnownBestPrice(tokenID string, side types.Side) (decimal.Decimal, bool) {
	return decimal.Zero, false
}

type stubExecutor struct {
	err error
}

func (s *stubExecutor) Execute(ctx context.Context, session *execution.Session) (*execution.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &execution.Result{OrderID: "0xorder", Status: "matched"}, nil
}

type stubOrders struct {
	canceled []string
}

func (s *stubOrders) Cancel(ctx context.Context, orderID string) (*types.CancelResult, error) {
	s.canceled = append(s.canceled, orderID)
	return &types.CancelResult{Canceled: []string{orderID}}, nil
}

func (s *stubOrders) Open(ctx context.Context) ([]types.OpenOrder, error) {
	return []types.OpenOrder{{ID: "0x1", Status: "LIVE", Side: "BUY"}}, nil
}

type apiHarness struct {
	handler  http.Handler
	executor *stubExecutor
	orders   *stubOrders
}

func newAPIHarness(t *testing.T) *apiHarness {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	history := storage.NewConsoleStorageWriter(&bytes.Buffer{}, zap.NewNop())
	executor := &stubExecutor{}
	orders := &stubOrders{}

	controller := trade.New(ctx, &trade.Config{
		Quotes:   noQuotes{},
		Resolver: pricing.NewResolver(pricing.DefaultPolicy()),
		Executor: executor,
		Storage:  history,
		Debounce: 10 * time.Millisecond,
		Logger:   zap.NewNop(),
	})
	t.Cleanup(controller.CloseAll)

	server := New(&Config{
		Port:          "0",
		Logger:        zap.NewNop(),
		HealthChecker: healthprobe.New(),
		Controller:    controller,
		Orders:        orders,
		History:       history,
	})

	return &apiHarness{handler: server.Handler(), executor: executor, orders: orders}
}

func (h *apiHarness) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	h.handler.ServeHTTP(w, req)
	return w
}

func (h *apiHarness) open(t *testing.T, kind string) DialogResponse {
	t.Helper()

	w := h.do(t, http.MethodPost, "/api/dialogs", map[string]string{
		"token_id":        testToken,
		"side":            "BUY",
		"kind":            kind,
		"reference_price": "0.50",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp DialogResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestTradeAPI_LimitOrderFlow(t *testing.T) {
	h := newAPIHarness(t)
	dialog := h.open(t, "LIMIT")
	assert.NotEmpty(t, dialog.DialogID)
	assert.Equal(t, "LIMIT", dialog.Kind)

	w := h.do(t, http.MethodPatch, "/api/dialogs/"+dialog.DialogID, map[string]string{"shares": "10"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var edited DialogResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &edited))
	assert.Equal(t, "0.5", edited.ExecutionPrice)
	assert.Equal(t, "5.00", edited.EstimatedTotal)
	assert.Equal(t, "limit", edited.PriceSource)
	assert.Empty(t, edited.Validation)

	w = h.do(t, http.MethodPost, "/api/dialogs/"+dialog.DialogID+"/confirm", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var confirmed ConfirmResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &confirmed))
	assert.Equal(t, "0xorder", confirmed.OrderID)
	assert.Equal(t, "matched", confirmed.Status)
	assert.NotEmpty(t, confirmed.SessionID)

	w = h.do(t, http.MethodGet, "/api/executions?limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var executions []ExecutionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &executions))
	require.Len(t, executions, 1)
	assert.Equal(t, confirmed.SessionID, executions[0].SessionID)
	assert.Equal(t, testToken, executions[0].TokenID)
}

func TestTradeAPI_ValidationBlocksConfirm(t *testing.T) {
	h := newAPIHarness(t)
	dialog := h.open(t, "LIMIT")

	w := h.do(t, http.MethodPatch, "/api/dialogs/"+dialog.DialogID, map[string]string{"shares": "1"})
	require.Equal(t, http.StatusOK, w.Code)

	var edited DialogResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &edited))
	assert.NotEmpty(t, edited.Validation)

	w = h.do(t, http.MethodPost, "/api/dialogs/"+dialog.DialogID+"/confirm", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, string(types.BelowMinimumOrder), resp.Kind)
}

func TestTradeAPI_WalletRejection(t *testing.T) {
	h := newAPIHarness(t)
	h.executor.err = &types.WalletError{Code: types.UserRejectedCode, Message: "User rejected the request."}

	dialog := h.open(t, "LIMIT")
	h.do(t, http.MethodPatch, "/api/dialogs/"+dialog.DialogID, map[string]string{"shares": "10"})

	w := h.do(t, http.MethodPost, "/api/dialogs/"+dialog.DialogID+"/confirm", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestTradeAPI_EditValidation(t *testing.T) {
	h := newAPIHarness(t)
	dialog := h.open(t, "MARKET")
	path := "/api/dialogs/" + dialog.DialogID

	tests := []struct {
		name   string
		body   interface{}
		status int
	}{
		{name: "percent-without-position", body: map[string]string{"sell_percent": "50"}, status: http.StatusBadRequest},
		{name: "negative-shares", body: map[string]string{"shares": "-1"}, status: http.StatusBadRequest},
		{name: "unknown-kind", body: map[string]string{"kind": "STOP"}, status: http.StatusBadRequest},
		{name: "malformed", body: "not an object", status: http.StatusBadRequest},
		{name: "percent-of-position", body: map[string]string{"sell_percent": "50", "position": "12.345"}, status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := h.do(t, http.MethodPatch, path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}

	w := h.do(t, http.MethodGet, path, nil)
	var resp DialogResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "6.17", resp.Shares)
}

func TestTradeAPI_OpenValidation(t *testing.T) {
	h := newAPIHarness(t)

	tests := []struct {
		name   string
		body   map[string]string
		status int
	}{
		{name: "bad-side", body: map[string]string{"token_id": testToken, "side": "HOLD", "reference_price": "0.5"}, status: http.StatusBadRequest},
		{name: "bad-kind", body: map[string]string{"token_id": testToken, "side": "BUY", "kind": "STOP", "reference_price": "0.5"}, status: http.StatusBadRequest},
		{name: "zero-reference", body: map[string]string{"token_id": testToken, "side": "BUY", "reference_price": "0"}, status: http.StatusUnprocessableEntity},
		{name: "missing-token", body: map[string]string{"side": "SELL", "reference_price": "0.5"}, status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := h.do(t, http.MethodPost, "/api/dialogs", tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestTradeAPI_CloseDialog(t *testing.T) {
	h := newAPIHarness(t)
	dialog := h.open(t, "MARKET")
	path := "/api/dialogs/" + dialog.DialogID

	w := h.do(t, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = h.do(t, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = h.do(t, http.MethodPost, path+"/confirm", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTradeAPI_Orders(t *testing.T) {
	h := newAPIHarness(t)

	w := h.do(t, http.MethodGet, "/api/orders", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var orders []types.OpenOrder
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &orders))
	require.Len(t, orders, 1)
	assert.Equal(t, "0x1", orders[0].ID)

	w = h.do(t, http.MethodDelete, "/api/orders/0xabc", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"0xabc"}, h.orders.canceled)
}

func TestTradeAPI_ExecutionsLimit(t *testing.T) {
	h := newAPIHarness(t)

	w := h.do(t, http.MethodGet, "/api/executions?limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
