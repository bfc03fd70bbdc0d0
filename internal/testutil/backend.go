package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/percyitchy/xleaderboard/pkg/types"
	"github.com/shopspring/decimal"
)

// SubmitStep scripts one answer of the submit endpoint.
// A zero Status answers 200 with a matched order.
type SubmitStep struct {
	Status int
	Detail string
	Code   string
	Result *types.OrderSubmissionResponse
}

// MockBackend is a mock HTTP server that simulates the dashboard trading API.
type MockBackend struct {
	*httptest.Server

	mu sync.Mutex

	Ready bool

	// Depth answers; DepthStatus != 0 forces an error status.
	DepthResponse *types.DepthResponse
	DepthStatus   int
	DepthCalls    []DepthCall

	// BestPrices is keyed by token + "/" + side.
	BestPrices     map[string]decimal.Decimal
	BestPriceCalls int

	// PrepareReject makes prepare answer 400 with this detail.
	PrepareReject   string
	PrepareRequests []types.PrepareOrderRequest
	// FixedSalt makes every prepared order carry the same salt.
	FixedSalt string
	saltSeq   int64

	SubmitScript   []SubmitStep
	SubmitRequests []types.SubmitOrderRequest

	CancelRequests []types.CancelOrderRequest
	OpenOrders     []types.OpenOrder
}

// DepthCall records one depth query.
type DepthCall struct {
	TokenID string
	Side    string
	Amount  string
}

// NewMockBackend creates a new mock trading backend.
func NewMockBackend() *MockBackend {
	mock := &MockBackend{
		Ready:      true,
		BestPrices: make(map[string]decimal.Decimal),
		saltSeq:    1700000000000,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/trade/status", mock.handleStatus)
	mux.HandleFunc("/api/trade/best-price", mock.handleBestPrice)
	mux.HandleFunc("/api/trade/orderbook-depth", mock.handleDepth)
	mux.HandleFunc("/api/trade/prepare-order", mock.handlePrepare)
	mux.HandleFunc("/api/trade/submit-order", mock.handleSubmit)
	mux.HandleFunc("/api/trade/cancel-order", mock.handleCancel)
	mux.HandleFunc("/api/trade/open-orders", mock.handleOpenOrders)

	mock.Server = httptest.NewServer(mux)
	return mock
}

// SetBestPrice sets the best-price answer for a token side.
func (m *MockBackend) SetBestPrice(tokenID string, side types.Side, price string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BestPrices[tokenID+"/"+string(side)] = Dec(price)
}

// SetReady sets the status endpoint answer.
func (m *MockBackend) SetReady(ready bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Ready = ready
}

// SetDepth sets the depth answer.
func (m *MockBackend) SetDepth(depth *types.DepthResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DepthResponse = depth
	m.DepthStatus = 0
}

// SetSubmitScript replaces the scripted submit answers.
func (m *MockBackend) SetSubmitScript(steps ...SubmitStep) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SubmitScript = steps
}

// DepthCallCount returns how many depth queries were served.
func (m *MockBackend) DepthCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.DepthCalls)
}

// LastDepthCall returns the most recent depth query.
func (m *MockBackend) LastDepthCall() (DepthCall, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.DepthCalls) == 0 {
		return DepthCall{}, false
	}
	return m.DepthCalls[len(m.DepthCalls)-1], true
}

// Prepared returns a copy of all prepare requests.
func (m *MockBackend) Prepared() []types.PrepareOrderRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.PrepareOrderRequest(nil), m.PrepareRequests...)
}

// Submitted returns a copy of all submit requests.
func (m *MockBackend) Submitted() []types.SubmitOrderRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.SubmitOrderRequest(nil), m.SubmitRequests...)
}

func (m *MockBackend) handleStatus(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	ready := m.Ready
	m.mu.Unlock()

	writeJSON(w, http.StatusOK, types.StatusResponse{Ready: ready})
}

func (m *MockBackend) handleBestPrice(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BestPriceCalls++

	tokenID := r.URL.Query().Get("token_id")
	side := strings.ToUpper(r.URL.Query().Get("side"))
	price, ok := m.BestPrices[tokenID+"/"+side]
	if !ok {
		writeDetail(w, http.StatusNotFound, "No liquidity in orderbook")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"price": price.InexactFloat64(),
		"side":  side,
	})
}

func (m *MockBackend) handleDepth(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q := r.URL.Query()
	m.DepthCalls = append(m.DepthCalls, DepthCall{
		TokenID: q.Get("token_id"),
		Side:    q.Get("side"),
		Amount:  q.Get("amount"),
	})

	if m.DepthStatus != 0 {
		writeDetail(w, m.DepthStatus, "Could not calculate VWAP - no orderbook data")
		return
	}
	if m.DepthResponse == nil {
		writeDetail(w, http.StatusNotFound, "Could not calculate VWAP - no orderbook data")
		return
	}

	writeJSON(w, http.StatusOK, m.DepthResponse)
}

func (m *MockBackend) handlePrepare(w http.ResponseWriter, r *http.Request) {
	var req types.PrepareOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.PrepareRequests = append(m.PrepareRequests, req)

	if m.PrepareReject != "" {
		writeDetail(w, http.StatusBadRequest, m.PrepareReject)
		return
	}

	salt := m.FixedSalt
	if salt == "" {
		m.saltSeq++
		salt = fmt.Sprintf("%d", m.saltSeq)
	}

	writeJSON(w, http.StatusOK, BuildUnsignedOrder(req, salt))
}

func (m *MockBackend) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req types.SubmitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.SubmitRequests = append(m.SubmitRequests, req)

	var step SubmitStep
	if len(m.SubmitScript) > 0 {
		step = m.SubmitScript[0]
		m.SubmitScript = m.SubmitScript[1:]
	}

	if step.Status != 0 && step.Status != http.StatusOK {
		body := map[string]interface{}{"detail": step.Detail}
		if step.Code != "" {
			body["code"] = step.Code
		}
		writeJSON(w, step.Status, body)
		return
	}

	result := step.Result
	if result == nil {
		result = &types.OrderSubmissionResponse{
			Success:           true,
			OrderID:           fmt.Sprintf("0xorder%d", len(m.SubmitRequests)),
			Status:            "matched",
			TransactionHashes: []string{"0xabc"},
		}
	}

	writeJSON(w, http.StatusOK, types.SubmitOrderResponse{Success: true, Result: *result})
}

func (m *MockBackend) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req types.CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.CancelRequests = append(m.CancelRequests, req)

	if req.UserAPIKey == "" {
		writeDetail(w, http.StatusBadRequest, "missing credentials")
		return
	}

	writeJSON(w, http.StatusOK, types.CancelOrderResponse{
		Success: true,
		Result:  types.CancelResult{Canceled: []string{req.OrderID}},
	})
}

func (m *MockBackend) handleOpenOrders(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	writeJSON(w, http.StatusOK, types.OpenOrdersResponse{Orders: m.OpenOrders})
}

// BuildUnsignedOrder mirrors the backend's typed-data construction.
func BuildUnsignedOrder(req types.PrepareOrderRequest, salt string) *types.UnsignedOrder {
	price := decimal.NewFromFloat(req.Price)
	size := decimal.NewFromFloat(req.Size)
	scale := decimal.New(1, 6)

	shares := size.Mul(scale).Truncate(0)
	notional := size.Mul(price).Mul(scale).Truncate(0)

	makerAmount, takerAmount := notional, shares
	sideCode := "0"
	if strings.ToUpper(req.Side) == string(types.Sell) {
		makerAmount, takerAmount = shares, notional
		sideCode = "1"
	}

	return &types.UnsignedOrder{
		Types: map[string][]types.TypedField{
			"Order": {
				{Name: "salt", Type: "uint256"},
				{Name: "maker", Type: "address"},
				{Name: "signer", Type: "address"},
				{Name: "taker", Type: "address"},
				{Name: "tokenId", Type: "uint256"},
				{Name: "makerAmount", Type: "uint256"},
				{Name: "takerAmount", Type: "uint256"},
				{Name: "expiration", Type: "uint256"},
				{Name: "nonce", Type: "uint256"},
				{Name: "feeRateBps", Type: "uint256"},
				{Name: "side", Type: "uint8"},
				{Name: "signatureType", Type: "uint8"},
			},
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
		},
		Domain: types.OrderDomain{
			Name:              "Polymarket CTF Exchange",
			Version:           "1",
			ChainID:           "137",
			VerifyingContract: ExchangeAddress,
		},
		PrimaryType: "Order",
		Message: map[string]types.FlexString{
			"salt":          types.FlexString(salt),
			"maker":         types.FlexString(strings.ToLower(req.ProxyAddress)),
			"signer":        types.FlexString(strings.ToLower(req.UserAddress)),
			"taker":         "0x0000000000000000000000000000000000000000",
			"tokenId":       types.FlexString(req.TokenID),
			"makerAmount":   types.FlexString(makerAmount.String()),
			"takerAmount":   types.FlexString(takerAmount.String()),
			"expiration":    "0",
			"nonce":         "0",
			"feeRateBps":    "0",
			"side":          types.FlexString(sideCode),
			"signatureType": "2",
		},
		Summary: &types.OrderSummary{
			Side:         strings.ToUpper(req.Side),
			Price:        req.Price,
			Size:         req.Size,
			TotalUSDC:    req.Price * req.Size,
			UserAddress:  req.UserAddress,
			ProxyAddress: req.ProxyAddress,
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
