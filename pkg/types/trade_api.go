package types

import (
	"github.com/shopspring/decimal"
)

// DepthResponse is returned by GET /api/trade/orderbook-depth.
// The backend walks the book for the requested notional and reports the
// volume-weighted fill.
type DepthResponse struct {
	VWAP          decimal.NullDecimal `json:"vwap"`
	BestPrice     decimal.Decimal     `json:"best_price"`
	WorstPrice    decimal.Decimal     `json:"worst_price"`
	TotalShares   decimal.Decimal     `json:"total_shares"`
	LevelsUsed    int                 `json:"levels_used"`
	IsFillable    bool                `json:"is_fillable"`
	RemainingUSDC decimal.Decimal     `json:"remaining_usdc"`
}

// BestPriceResponse is returned by GET /api/trade/best-price.
// For BUY it is the lowest ask, for SELL the highest bid.
type BestPriceResponse struct {
	Price decimal.Decimal `json:"price"`
	Side  string          `json:"side"`
}

// StatusResponse is returned by GET /api/trade/status.
type StatusResponse struct {
	Ready bool `json:"ready"`
}

// PrepareOrderRequest is the body of POST /api/trade/prepare-order.
type PrepareOrderRequest struct {
	UserAddress  string  `json:"user_address"`
	ProxyAddress string  `json:"proxy_address"`
	TokenID      string  `json:"token_id"`
	Price        float64 `json:"price"`
	Size         float64 `json:"size"`
	Side         string  `json:"side"`
	OrderType    string  `json:"order_type"` // FOK or GTC
	AttemptID    string  `json:"attempt_id,omitempty"`
}

// TypedField is one member of an EIP-712 struct type.
type TypedField struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// OrderDomain is the EIP-712 domain of the exchange contract.
type OrderDomain struct {
	Name              string     `json:"name"`
	Version           string     `json:"version"`
	ChainID           FlexString `json:"chainId"`
	VerifyingContract string     `json:"verifyingContract"`
}

// OrderSummary echoes the human-readable order back from prepare.
type OrderSummary struct {
	Side         string  `json:"side"`
	Price        float64 `json:"price"`
	Size         float64 `json:"size"`
	TotalUSDC    float64 `json:"total_usdc"`
	UserAddress  string  `json:"user_address"`
	ProxyAddress string  `json:"proxy_address"`
}

// UnsignedOrder is the backend-issued typed-data payload for one attempt.
// Message values are kept as their literal JSON text; integer fields are
// converted to big integers before signing.
type UnsignedOrder struct {
	Types       map[string][]TypedField `json:"types"`
	Domain      OrderDomain             `json:"domain"`
	PrimaryType string                  `json:"primaryType"`
	Message     map[string]FlexString   `json:"message"`
	Summary     *OrderSummary           `json:"order_summary,omitempty"`
}

// SignedTypedOrder is the typed data plus the wallet signature, as the
// submit endpoint expects it.
type SignedTypedOrder struct {
	Types       map[string][]TypedField `json:"types"`
	Domain      OrderDomain             `json:"domain"`
	PrimaryType string                  `json:"primaryType"`
	Message     map[string]string       `json:"message"`
	Signature   string                  `json:"signature"`
}

// SubmitOrderRequest is the body of POST /api/trade/submit-order.
type SubmitOrderRequest struct {
	SignedOrder    SignedTypedOrder `json:"signed_order"`
	UserAPIKey     string           `json:"user_api_key"`
	UserAPISecret  string           `json:"user_api_secret"`
	UserPassphrase string           `json:"user_passphrase"`
	OrderType      string           `json:"order_type"`
}

// SubmitOrderResponse wraps the CLOB response relayed by the backend.
type SubmitOrderResponse struct {
	Success bool                    `json:"success"`
	Result  OrderSubmissionResponse `json:"result"`
}

// OrderSubmissionResponse is the CLOB response to POST /order.
type OrderSubmissionResponse struct {
	Success           bool     `json:"success"`
	ErrorMsg          string   `json:"errorMsg"`
	OrderID           string   `json:"orderID"`
	TransactionHashes []string `json:"transactionsHashes"`
	Status            string   `json:"status"` // matched, live, delayed, unmatched
	TakingAmount      string   `json:"takingAmount"`
	MakingAmount      string   `json:"makingAmount"`
}

// CancelOrderRequest is the body of POST /api/trade/cancel-order.
type CancelOrderRequest struct {
	OrderID        string `json:"order_id"`
	UserAddress    string `json:"user_address"`
	UserAPIKey     string `json:"user_api_key"`
	UserAPISecret  string `json:"user_api_secret"`
	UserPassphrase string `json:"user_passphrase"`
}

// CancelResult is the CLOB cancel outcome.
type CancelResult struct {
	Canceled    []string          `json:"canceled"`
	NotCanceled map[string]string `json:"not_canceled"`
}

// CancelOrderResponse is returned by POST /api/trade/cancel-order.
type CancelOrderResponse struct {
	Success bool         `json:"success"`
	Result  CancelResult `json:"result"`
}

// OpenOrdersRequest is the body of POST /api/trade/open-orders.
type OpenOrdersRequest struct {
	UserAddress    string `json:"user_address"`
	UserAPIKey     string `json:"user_api_key"`
	UserAPISecret  string `json:"user_api_secret"`
	UserPassphrase string `json:"user_passphrase"`
}

// OpenOrder is one resting order as reported by the CLOB.
type OpenOrder struct {
	ID           string          `json:"id"`
	Status       string          `json:"status"`
	TokenID      string          `json:"asset_id"`
	Side         string          `json:"side"`
	Price        decimal.Decimal `json:"price"`
	OriginalSize decimal.Decimal `json:"original_size"`
	SizeMatched  decimal.Decimal `json:"size_matched"`
	Outcome      string          `json:"outcome"`
	OrderType    string          `json:"order_type"`
	CreatedAt    FlexString      `json:"created_at"`
}

// OpenOrdersResponse is returned by POST /api/trade/open-orders.
type OpenOrdersResponse struct {
	Orders []OpenOrder `json:"orders"`
}
