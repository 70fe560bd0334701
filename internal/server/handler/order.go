package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ghost-db/flowpay/internal/domain"
)

// OrderService defines the order operations the handler requires from the
// trading facade.
type OrderService interface {
	CreateOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error)
	CancelOrder(ctx context.Context, orderID string) error
	CancelAllOrders(ctx context.Context, tokenID string) (domain.CancelAllResult, error)
	GetOrders(ctx context.Context, tokenID string) ([]domain.Order, error)
}

// OrderHandler serves order management HTTP endpoints.
type OrderHandler struct {
	orders OrderService
	logger *slog.Logger
}

// NewOrderHandler creates an OrderHandler with the given service and logger.
func NewOrderHandler(orders OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		orders: orders,
		logger: logger,
	}
}

type createOrderResponse struct {
	Success bool               `json:"success"`
	Order   domain.OrderResult `json:"order"`
}

type listOrdersResponse struct {
	Success bool           `json:"success"`
	Count   int            `json:"count"`
	Orders  []domain.Order `json:"orders"`
}

type cancelOrderResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type cancelAllResponse struct {
	Success        bool `json:"success"`
	CancelledCount int  `json:"cancelledCount"`
	FailedCount    int  `json:"failedCount"`
}

// CreateOrder validates and places a limit order.
// POST /orders
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req domain.OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := req.Validate(); err != nil {
		writeFacadeError(w, err)
		return
	}

	result, err := h.orders.CreateOrder(r.Context(), req)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: create order failed",
			slog.String("token_id", req.TokenID),
			slog.String("error", err.Error()),
		)
		writeFacadeError(w, err)
		return
	}

	// A rejected order is a valid outcome, not a transport failure; the
	// envelope carries the exchange's verdict.
	writeJSON(w, http.StatusOK, createOrderResponse{
		Success: result.Success,
		Order:   result,
	})
}

// ListOrders returns the open orders, optionally scoped to one token.
// GET /orders
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	tokenID := r.URL.Query().Get("tokenId")

	orders, err := h.orders.GetOrders(r.Context(), tokenID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list orders failed",
			slog.String("error", err.Error()),
		)
		writeFacadeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, listOrdersResponse{
		Success: true,
		Count:   len(orders),
		Orders:  orders,
	})
}

// CancelOrder cancels a single open order by id.
// DELETE /orders/{orderId}
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := pathParam(r, "orderId")
	if orderID == "" {
		writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	if err := h.orders.CancelOrder(r.Context(), orderID); err != nil {
		h.logger.ErrorContext(r.Context(), "handler: cancel order failed",
			slog.String("order_id", orderID),
			slog.String("error", err.Error()),
		)
		writeFacadeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, cancelOrderResponse{
		Success: true,
		Message: "order cancelled",
	})
}

// CancelAllOrders cancels every open order, optionally scoped to one token.
// DELETE /orders
func (h *OrderHandler) CancelAllOrders(w http.ResponseWriter, r *http.Request) {
	tokenID := r.URL.Query().Get("tokenId")

	result, err := h.orders.CancelAllOrders(r.Context(), tokenID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: cancel all orders failed",
			slog.String("error", err.Error()),
		)
		writeFacadeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, cancelAllResponse{
		Success:        true,
		CancelledCount: result.Cancelled,
		FailedCount:    len(result.Failed),
	})
}
