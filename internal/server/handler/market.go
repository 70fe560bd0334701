package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ghost-db/flowpay/internal/domain"
)

// defaultMarketLimit applies when the listing request omits ?limit.
const defaultMarketLimit = 50

// MarketDataService defines the methods the market handler requires from
// the trading facade. It is declared locally so the handler package does not
// depend on the concrete facade implementation.
type MarketDataService interface {
	GetMarkets(ctx context.Context, filter domain.MarketFilter) ([]domain.Market, error)
	GetMarket(ctx context.Context, id string) (domain.Market, error)
	GetOrderBook(ctx context.Context, tokenID string) (domain.OrderBookSnapshot, error)
	GetQuote(ctx context.Context, tokenID string) (domain.Quote, error)
}

// MarketHandler serves market-data HTTP endpoints.
type MarketHandler struct {
	markets MarketDataService
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler with the given service and logger.
func NewMarketHandler(markets MarketDataService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		markets: markets,
		logger:  logger,
	}
}

// listMarketsResponse wraps the list endpoint output.
type listMarketsResponse struct {
	Success bool            `json:"success"`
	Count   int             `json:"count"`
	Markets []domain.Market `json:"markets"`
}

// ListMarkets returns market metadata with optional status filters.
// GET /markets?active=true&closed=false&archived=false&limit=50
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	var filter domain.MarketFilter
	var err error

	if filter.Active, err = parseOptionalBool(r, "active"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if filter.Closed, err = parseOptionalBool(r, "closed"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if filter.Archived, err = parseOptionalBool(r, "archived"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	filter.Limit = defaultMarketLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}

	markets, err := h.markets.GetMarkets(r.Context(), filter)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list markets failed",
			slog.String("error", err.Error()),
		)
		writeFacadeError(w, err)
		return
	}

	if markets == nil {
		markets = []domain.Market{}
	}

	writeJSON(w, http.StatusOK, listMarketsResponse{
		Success: true,
		Count:   len(markets),
		Markets: markets,
	})
}

// marketResponse wraps the single-market endpoint output.
type marketResponse struct {
	Success bool          `json:"success"`
	Market  domain.Market `json:"market"`
}

// GetMarket returns one market's metadata by its Gamma ID.
// GET /markets/{marketId}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "marketId")
	if marketID == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	market, err := h.markets.GetMarket(r.Context(), marketID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: get market failed",
			slog.String("market_id", marketID),
			slog.String("error", err.Error()),
		)
		writeFacadeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, marketResponse{Success: true, Market: market})
}

// orderBookResponse wraps the orderbook endpoint output.
type orderBookResponse struct {
	Success bool                     `json:"success"`
	Data    domain.OrderBookSnapshot `json:"data"`
}

// GetOrderBook returns the normalized book snapshot for one outcome token.
// GET /markets/{tokenId}/orderbook
func (h *MarketHandler) GetOrderBook(w http.ResponseWriter, r *http.Request) {
	tokenID := pathParam(r, "tokenId")
	if tokenID == "" {
		writeError(w, http.StatusBadRequest, "missing token id")
		return
	}

	snap, err := h.markets.GetOrderBook(r.Context(), tokenID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: get orderbook failed",
			slog.String("token_id", tokenID),
			slog.String("error", err.Error()),
		)
		writeFacadeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, orderBookResponse{Success: true, Data: snap})
}

// quoteResponse wraps the quote endpoint output.
type quoteResponse struct {
	Success bool         `json:"success"`
	Quote   domain.Quote `json:"quote"`
}

// GetQuote returns the derived bid/ask/spread quote for one outcome token.
// GET /markets/{tokenId}/quote
func (h *MarketHandler) GetQuote(w http.ResponseWriter, r *http.Request) {
	tokenID := pathParam(r, "tokenId")
	if tokenID == "" {
		writeError(w, http.StatusBadRequest, "missing token id")
		return
	}

	quote, err := h.markets.GetQuote(r.Context(), tokenID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: get quote failed",
			slog.String("token_id", tokenID),
			slog.String("error", err.Error()),
		)
		writeFacadeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, quoteResponse{Success: true, Quote: quote})
}
