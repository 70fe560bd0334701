package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ghost-db/flowpay/internal/domain"
)

// defaultSettlementLimit applies when the listing request omits ?limit.
const defaultSettlementLimit = 50

// SettlementService defines the ledger surface the settlement handler reads.
type SettlementService interface {
	ListRecent(ctx context.Context, limit int) ([]domain.Settlement, error)
}

// SettlementHandler serves the settled-payment audit listing. It is only
// registered when a settlement ledger is configured.
type SettlementHandler struct {
	ledger SettlementService
	logger *slog.Logger
}

// NewSettlementHandler creates a SettlementHandler over the given ledger.
func NewSettlementHandler(ledger SettlementService, logger *slog.Logger) *SettlementHandler {
	return &SettlementHandler{
		ledger: ledger,
		logger: logger,
	}
}

// listSettlementsResponse wraps the settlements listing output.
type listSettlementsResponse struct {
	Success     bool                `json:"success"`
	Count       int                 `json:"count"`
	Settlements []domain.Settlement `json:"settlements"`
}

// ListSettlements returns the most recently settled payments.
// GET /settlements?limit=50
func (h *SettlementHandler) ListSettlements(w http.ResponseWriter, r *http.Request) {
	limit := defaultSettlementLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	settlements, err := h.ledger.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list settlements failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "settlement ledger unavailable")
		return
	}

	if settlements == nil {
		settlements = []domain.Settlement{}
	}

	writeJSON(w, http.StatusOK, listSettlementsResponse{
		Success:     true,
		Count:       len(settlements),
		Settlements: settlements,
	})
}
