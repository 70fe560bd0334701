package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ghost-db/flowpay/internal/domain"
)

// BalanceService defines the methods the balance handler requires from the
// trading facade.
type BalanceService interface {
	GetBalance(ctx context.Context) (domain.Balance, error)
	GetTokenBalance(ctx context.Context, tokenID string) (domain.TokenBalance, error)
}

// BalanceHandler serves balance HTTP endpoints.
type BalanceHandler struct {
	balances BalanceService
	logger   *slog.Logger
}

// NewBalanceHandler creates a BalanceHandler with the given service and
// logger.
func NewBalanceHandler(balances BalanceService, logger *slog.Logger) *BalanceHandler {
	return &BalanceHandler{
		balances: balances,
		logger:   logger,
	}
}

// GetBalance returns the collateral balance and allowance.
// GET /balance
func (h *BalanceHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.balances.GetBalance(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: get balance failed",
			slog.String("error", err.Error()),
		)
		writeFacadeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"balance": balance,
	})
}

// GetTokenBalance returns the balance scoped to one outcome token.
// GET /balance/{tokenId}
func (h *BalanceHandler) GetTokenBalance(w http.ResponseWriter, r *http.Request) {
	tokenID := pathParam(r, "tokenId")
	if tokenID == "" {
		writeError(w, http.StatusBadRequest, "missing token id")
		return
	}

	balance, err := h.balances.GetTokenBalance(r.Context(), tokenID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: get token balance failed",
			slog.String("token_id", tokenID),
			slog.String("error", err.Error()),
		)
		writeFacadeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"balance": balance,
	})
}
