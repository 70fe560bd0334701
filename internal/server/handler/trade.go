package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ghost-db/flowpay/internal/domain"
)

// TradeService defines the trade history lookup the handler requires.
type TradeService interface {
	GetTrades(ctx context.Context, tokenID string) ([]domain.Trade, error)
}

// TradeHandler serves trade history HTTP endpoints.
type TradeHandler struct {
	trades TradeService
	logger *slog.Logger
}

// NewTradeHandler creates a TradeHandler with the given service and logger.
func NewTradeHandler(trades TradeService, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{
		trades: trades,
		logger: logger,
	}
}

type listTradesResponse struct {
	Success bool           `json:"success"`
	Count   int            `json:"count"`
	Trades  []domain.Trade `json:"trades"`
}

// ListTrades returns the authenticated account's trade history, optionally
// scoped to one token.
// GET /trades
func (h *TradeHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	tokenID := r.URL.Query().Get("tokenId")

	trades, err := h.trades.GetTrades(r.Context(), tokenID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list trades failed",
			slog.String("error", err.Error()),
		)
		writeFacadeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, listTradesResponse{
		Success: true,
		Count:   len(trades),
		Trades:  trades,
	})
}
