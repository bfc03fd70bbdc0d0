package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/percyitchy/xleaderboard/internal/storage"
	"github.com/percyitchy/xleaderboard/internal/trade"
	"github.com/percyitchy/xleaderboard/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const confirmTimeout = 2 * time.Minute

// OrderManager cancels and lists resting orders.
type OrderManager interface {
	Cancel(ctx context.Context, orderID string) (*types.CancelResult, error)
	Open(ctx context.Context) ([]types.OpenOrder, error)
}

// TradeHandler serves the dashboard trade API.
type TradeHandler struct {
	controller *trade.Controller
	orders     OrderManager
	history    storage.Storage
	logger     *zap.Logger
}

// NewTradeHandler creates a trade handler. orders and history may be nil.
func NewTradeHandler(controller *trade.Controller, orders OrderManager, history storage.Storage, logger *zap.Logger) *TradeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &TradeHandler{
		controller: controller,
		orders:     orders,
		history:    history,
		logger:     logger,
	}
}

// Register mounts the trade routes.
func (h *TradeHandler) Register(r chi.Router) {
	r.Post("/dialogs", h.HandleOpen)
	r.Get("/dialogs/{id}", h.HandleGet)
	r.Patch("/dialogs/{id}", h.HandleEdit)
	r.Post("/dialogs/{id}/confirm", h.HandleConfirm)
	r.Delete("/dialogs/{id}", h.HandleClose)

	r.Get("/executions", h.HandleExecutions)

	r.Get("/orders", h.HandleOpenOrders)
	r.Delete("/orders/{id}", h.HandleCancel)
}

// OpenRequest is the body of POST /api/dialogs.
type OpenRequest struct {
	TokenID        string          `json:"token_id"`
	Side           types.Side      `json:"side"`
	Kind           types.OrderKind `json:"kind"`
	ReferencePrice decimal.Decimal `json:"reference_price"`
}

// EditRequest is the body of PATCH /api/dialogs/{id}. Absent fields are
// left unchanged.
type EditRequest struct {
	Shares      *decimal.Decimal `json:"shares,omitempty"`
	Position    *decimal.Decimal `json:"position,omitempty"`
	SellPercent *decimal.Decimal `json:"sell_percent,omitempty"`
	LimitPrice  *decimal.Decimal `json:"limit_price,omitempty"`
	Kind        *types.OrderKind `json:"kind,omitempty"`
}

// DialogResponse describes a dialog and its current preview.
type DialogResponse struct {
	DialogID       string `json:"dialog_id"`
	TokenID        string `json:"token_id"`
	Side           string `json:"side"`
	Kind           string `json:"kind"`
	Shares         string `json:"shares"`
	LimitPrice     string `json:"limit_price"`
	ReferencePrice string `json:"reference_price"`
	ExecutionPrice string `json:"execution_price,omitempty"`
	EstimatedTotal string `json:"estimated_total,omitempty"`
	PriceSource    string `json:"price_source,omitempty"`
	Validation     string `json:"validation,omitempty"`
	Phase          string `json:"phase,omitempty"`
}

// ConfirmResponse is the result of a confirmed order.
type ConfirmResponse struct {
	SessionID         string   `json:"session_id"`
	OrderID           string   `json:"order_id"`
	Status            string   `json:"status"`
	TransactionHashes []string `json:"transaction_hashes,omitempty"`
	Pending           bool     `json:"pending"`
	Attempts          int      `json:"attempts"`
}

// ExecutionResponse is one stored execution.
type ExecutionResponse struct {
	SessionID  string    `json:"session_id"`
	TokenID    string    `json:"token_id"`
	Side       string    `json:"side"`
	Kind       string    `json:"kind"`
	Shares     string    `json:"shares"`
	Price      string    `json:"price"`
	Attempts   int       `json:"attempts"`
	Outcome    string    `json:"outcome"`
	OrderID    string    `json:"order_id,omitempty"`
	Error      string    `json:"error,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}

// ErrorResponse represents an HTTP error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// HandleOpen handles POST /api/dialogs.
func (h *TradeHandler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	var req OpenRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		h.writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.TokenID == "" {
		h.writeError(w, "token_id is required", http.StatusBadRequest)
		return
	}
	if req.Side != types.Buy && req.Side != types.Sell {
		h.writeError(w, "side must be BUY or SELL", http.StatusBadRequest)
		return
	}
	if req.Kind == "" {
		req.Kind = types.Market
	}
	if req.Kind != types.Market && req.Kind != types.Limit {
		h.writeError(w, "kind must be MARKET or LIMIT", http.StatusBadRequest)
		return
	}

	dialog, err := h.controller.Open(req.TokenID, req.Side, req.Kind, req.ReferencePrice)
	if err != nil {
		h.writeTradeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, h.describe(dialog))
}

// HandleGet handles GET /api/dialogs/{id}.
func (h *TradeHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	dialog, err := h.controller.Dialog(chi.URLParam(r, "id"))
	if err != nil {
		h.writeTradeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, h.describe(dialog))
}

// HandleEdit handles PATCH /api/dialogs/{id}.
func (h *TradeHandler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	dialog, err := h.controller.Dialog(chi.URLParam(r, "id"))
	if err != nil {
		h.writeTradeError(w, err)
		return
	}

	var req EditRequest
	err = json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		h.writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	err = applyEdit(dialog, &req)
	if err != nil {
		h.writeTradeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, h.describe(dialog))
}

func applyEdit(dialog *trade.Dialog, req *EditRequest) error {
	if req.Kind != nil {
		if *req.Kind != types.Market && *req.Kind != types.Limit {
			return &badRequestError{msg: "kind must be MARKET or LIMIT"}
		}
		err := dialog.SetKind(*req.Kind)
		if err != nil {
			return err
		}
	}

	if req.LimitPrice != nil {
		err := dialog.SetLimitPrice(*req.LimitPrice)
		if err != nil {
			return err
		}
	}

	switch {
	case req.SellPercent != nil:
		if req.Position == nil {
			return &badRequestError{msg: "sell_percent requires position"}
		}
		return dialog.SetSharesFromPercent(*req.Position, *req.SellPercent)
	case req.Shares != nil:
		if req.Shares.IsNegative() {
			return &badRequestError{msg: "shares cannot be negative"}
		}
		return dialog.SetShares(*req.Shares)
	}

	return nil
}

// HandleConfirm handles POST /api/dialogs/{id}/confirm. The execution
// outlives the request so a dropped connection does not abort a submit.
func (h *TradeHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	dialog, err := h.controller.Dialog(chi.URLParam(r, "id"))
	if err != nil {
		h.writeTradeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), confirmTimeout)
	defer cancel()

	result, err := dialog.Confirm(ctx)
	if err != nil {
		h.writeTradeError(w, err)
		return
	}

	resp := ConfirmResponse{
		OrderID:           result.OrderID,
		Status:            result.Status,
		TransactionHashes: result.TransactionHashes,
		Pending:           result.Pending,
	}
	if session := dialog.Session(); session != nil {
		resp.SessionID = session.ID()
		resp.Attempts = session.State().Attempt
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// HandleClose handles DELETE /api/dialogs/{id}.
func (h *TradeHandler) HandleClose(w http.ResponseWriter, r *http.Request) {
	dialog, err := h.controller.Dialog(chi.URLParam(r, "id"))
	if err != nil {
		h.writeTradeError(w, err)
		return
	}

	dialog.Close()
	w.WriteHeader(http.StatusNoContent)
}

// HandleExecutions handles GET /api/executions?limit=N.
func (h *TradeHandler) HandleExecutions(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.writeError(w, "execution history not configured", http.StatusNotFound)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.writeError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	records, err := h.history.RecentExecutions(r.Context(), limit)
	if err != nil {
		h.logger.Error("recent-executions-failed", zap.Error(err))
		h.writeError(w, "failed to load executions", http.StatusInternalServerError)
		return
	}

	out := make([]ExecutionResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, ExecutionResponse{
			SessionID:  rec.SessionID,
			TokenID:    rec.TokenID,
			Side:       string(rec.Side),
			Kind:       string(rec.Kind),
			Shares:     rec.Shares.String(),
			Price:      rec.Price.String(),
			Attempts:   rec.Attempts,
			Outcome:    rec.Outcome,
			OrderID:    rec.OrderID,
			Error:      rec.Error,
			FinishedAt: rec.FinishedAt,
		})
	}

	h.writeJSON(w, http.StatusOK, out)
}

// HandleOpenOrders handles GET /api/orders.
func (h *TradeHandler) HandleOpenOrders(w http.ResponseWriter, r *http.Request) {
	if h.orders == nil {
		h.writeError(w, "order management not configured", http.StatusNotFound)
		return
	}

	orders, err := h.orders.Open(r.Context())
	if err != nil {
		h.writeTradeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, orders)
}

// HandleCancel handles DELETE /api/orders/{id}.
func (h *TradeHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	if h.orders == nil {
		h.writeError(w, "order management not configured", http.StatusNotFound)
		return
	}

	result, err := h.orders.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeTradeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

func (h *TradeHandler) describe(dialog *trade.Dialog) DialogResponse {
	intent := dialog.Intent()
	resp := DialogResponse{
		DialogID:       dialog.ID(),
		TokenID:        intent.TokenID,
		Side:           string(intent.Side),
		Kind:           string(intent.Kind),
		Shares:         intent.Shares.String(),
		LimitPrice:     intent.LimitPrice.String(),
		ReferencePrice: intent.ReferencePrice.String(),
	}

	res, err := dialog.Preview()
	if res != nil {
		resp.ExecutionPrice = res.ExecutionPrice.String()
		resp.EstimatedTotal = res.EstimatedTotal.StringFixed(2)
		resp.PriceSource = string(res.Source)
	}
	if err != nil {
		resp.Validation = err.Error()
	}

	if session := dialog.Session(); session != nil {
		resp.Phase = session.State().Phase.String()
	}

	return resp
}

type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string {
	return e.msg
}

func (h *TradeHandler) writeTradeError(w http.ResponseWriter, err error) {
	var (
		vErr   *types.ValidationError
		badReq *badRequestError
	)

	switch {
	case errors.As(err, &badReq):
		h.writeError(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &vErr):
		h.writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Kind: string(vErr.Kind)})
	case errors.Is(err, trade.ErrDialogNotFound):
		h.writeError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, trade.ErrDialogClosed):
		h.writeError(w, err.Error(), http.StatusGone)
	case errors.Is(err, trade.ErrSessionInProgress):
		h.writeError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, types.ErrCredentialsUnavailable):
		h.writeError(w, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, types.ErrWalletRejected):
		h.writeError(w, err.Error(), http.StatusForbidden)
	default:
		h.logger.Warn("trade-request-failed", zap.Error(err))
		h.writeError(w, err.Error(), http.StatusBadGateway)
	}
}

func (h *TradeHandler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		h.logger.Error("failed-to-encode-response", zap.Error(err))
	}
}

// writeError writes a JSON error response.
func (h *TradeHandler) writeError(w http.ResponseWriter, message string, statusCode int) {
	h.writeJSON(w, statusCode, ErrorResponse{Error: message})
}
