package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/percyitchy/xleaderboard/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Route paths on the dashboard backend.
const (
	pathStatus     = "/api/trade/status"
	pathBestPrice  = "/api/trade/best-price"
	pathDepth      = "/api/trade/orderbook-depth"
	pathPrepare    = "/api/trade/prepare-order"
	pathSubmit     = "/api/trade/submit-order"
	pathCancel     = "/api/trade/cancel-order"
	pathOpenOrders = "/api/trade/open-orders"
)

// maxErrorBody caps how much of an error body is kept in error messages.
const maxErrorBody = 500

// Client is an HTTP client for the dashboard trading API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// Config holds configuration for the backend client.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client // Optional; overrides Timeout
	Logger     *zap.Logger
}

// NewClient creates a new backend client.
func NewClient(cfg *Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// Status reports whether the backend trading service is ready.
func (c *Client) Status(ctx context.Context) (*types.StatusResponse, error) {
	var status types.StatusResponse
	err := c.getJSON(ctx, pathStatus, nil, &status)
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// BestPrice fetches the top-of-book price for immediate execution.
func (c *Client) BestPrice(ctx context.Context, tokenID string, side types.Side) (*types.BestPriceResponse, error) {
	params := url.Values{}
	params.Set("token_id", tokenID)
	params.Set("side", string(side))

	var price types.BestPriceResponse
	err := c.getJSON(ctx, pathBestPrice, params, &price)
	if err != nil {
		return nil, err
	}
	return &price, nil
}

// Depth fetches the volume-weighted fill summary for a notional amount.
func (c *Client) Depth(ctx context.Context, tokenID string, side types.Side, amount decimal.Decimal) (*types.DepthResponse, error) {
	params := url.Values{}
	params.Set("token_id", tokenID)
	params.Set("side", string(side))
	params.Set("amount", amount.String())

	var depth types.DepthResponse
	err := c.getJSON(ctx, pathDepth, params, &depth)
	if err != nil {
		return nil, err
	}
	return &depth, nil
}

// PrepareOrder requests a fresh unsigned typed-data order.
// A 4xx answer becomes a PrepareRejectedError carrying the backend's reason.
func (c *Client) PrepareOrder(ctx context.Context, req *types.PrepareOrderRequest) (*types.UnsignedOrder, error) {
	status, body, err := c.do(ctx, http.MethodPost, pathPrepare, nil, req)
	if err != nil {
		return nil, err
	}

	if !isSuccess(status) {
		apiErr := parseErrorBody(status, body)
		if status >= 400 && status < 500 {
			return nil, &types.PrepareRejectedError{Reason: apiErr.Detail}
		}
		return nil, apiErr
	}

	var order types.UnsignedOrder
	err = json.Unmarshal(body, &order)
	if err != nil {
		return nil, fmt.Errorf("parse prepare response: %w", err)
	}

	return &order, nil
}

// SubmitOrder submits a signed order. Rejections come back as a classified
// SubmissionError.
func (c *Client) SubmitOrder(ctx context.Context, req *types.SubmitOrderRequest) (*types.SubmitOrderResponse, error) {
	status, body, err := c.do(ctx, http.MethodPost, pathSubmit, nil, req)
	if err != nil {
		return nil, err
	}

	if !isSuccess(status) {
		apiErr := parseErrorBody(status, body)
		return nil, types.NewSubmissionError(status, apiErr.Code, apiErr.Detail)
	}

	var resp types.SubmitOrderResponse
	err = json.Unmarshal(body, &resp)
	if err != nil {
		return nil, fmt.Errorf("parse submit response: %w", err)
	}

	return &resp, nil
}

// CancelOrder cancels a resting order with the user's credentials.
func (c *Client) CancelOrder(ctx context.Context, req *types.CancelOrderRequest) (*types.CancelOrderResponse, error) {
	status, body, err := c.do(ctx, http.MethodPost, pathCancel, nil, req)
	if err != nil {
		return nil, err
	}

	if !isSuccess(status) {
		return nil, parseErrorBody(status, body)
	}

	var resp types.CancelOrderResponse
	err = json.Unmarshal(body, &resp)
	if err != nil {
		return nil, fmt.Errorf("parse cancel response: %w", err)
	}

	return &resp, nil
}

// OpenOrders lists the user's resting orders.
func (c *Client) OpenOrders(ctx context.Context, req *types.OpenOrdersRequest) (*types.OpenOrdersResponse, error) {
	status, body, err := c.do(ctx, http.MethodPost, pathOpenOrders, nil, req)
	if err != nil {
		return nil, err
	}

	if !isSuccess(status) {
		return nil, parseErrorBody(status, body)
	}

	var resp types.OpenOrdersResponse
	err = json.Unmarshal(body, &resp)
	if err != nil {
		return nil, fmt.Errorf("parse open orders response: %w", err)
	}

	return &resp, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	status, body, err := c.do(ctx, http.MethodGet, path, params, nil)
	if err != nil {
		return err
	}

	if !isSuccess(status) {
		return parseErrorBody(status, body)
	}

	err = json.Unmarshal(body, out)
	if err != nil {
		return fmt.Errorf("parse response: %w", err)
	}

	return nil
}

// do performs one request and returns the status and the full body.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, payload interface{}) (int, []byte, error) {
	requestURL := c.baseURL + path
	if len(params) > 0 {
		requestURL += "?" + params.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "xleaderboard-trader/1.0")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("backend-request",
		zap.String("method", method),
		zap.String("path", path))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		RequestsTotal.WithLabelValues(path, "error").Inc()
		return 0, nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	RequestDurationSeconds.WithLabelValues(path).Observe(time.Since(start).Seconds())
	RequestsTotal.WithLabelValues(path, strconv.Itoa(resp.StatusCode)).Inc()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response body: %w", err)
	}

	if !isSuccess(resp.StatusCode) {
		c.logger.Warn("backend-error-response",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", truncate(string(body), maxErrorBody)))
	}

	return resp.StatusCode, body, nil
}

// errorBody covers FastAPI's {"detail": "..."} shape as well as a structured
// {"detail": {"code": "...", "message": "..."}} or top-level "code".
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
	Code   string          `json:"code"`
}

type structuredDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func parseErrorBody(status int, body []byte) *types.APIError {
	apiErr := &types.APIError{
		StatusCode: status,
		Detail:     truncate(strings.TrimSpace(string(body)), maxErrorBody),
	}

	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return apiErr
	}

	apiErr.Code = parsed.Code
	raw := bytes.TrimSpace(parsed.Detail)

	switch {
	case len(raw) == 0:
	case raw[0] == '"':
		var detail string
		if err := json.Unmarshal(raw, &detail); err == nil {
			apiErr.Detail = truncate(detail, maxErrorBody)
		}
	case raw[0] == '{':
		var detail structuredDetail
		if err := json.Unmarshal(raw, &detail); err == nil {
			if detail.Code != "" {
				apiErr.Code = detail.Code
			}
			if detail.Message != "" {
				apiErr.Detail = truncate(detail.Message, maxErrorBody)
			}
		}
	default:
		apiErr.Detail = truncate(string(raw), maxErrorBody)
	}

	return apiErr
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
