package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghost-db/flowpay/internal/domain"
)

func level(price, size string) domain.PriceLevel {
	return domain.PriceLevel{
		Price: decimal.RequireFromString(price),
		Size:  decimal.RequireFromString(size),
	}
}

// stubMarketService is a scriptable MarketDataService.
type stubMarketService struct {
	filter  domain.MarketFilter
	markets []domain.Market
	err     error

	market domain.Market
	snap   domain.OrderBookSnapshot
	quote  domain.Quote
}

func (s *stubMarketService) GetMarkets(ctx context.Context, filter domain.MarketFilter) ([]domain.Market, error) {
	s.filter = filter
	return s.markets, s.err
}

func (s *stubMarketService) GetMarket(ctx context.Context, id string) (domain.Market, error) {
	return s.market, s.err
}

func (s *stubMarketService) GetOrderBook(ctx context.Context, tokenID string) (domain.OrderBookSnapshot, error) {
	return s.snap, s.err
}

func (s *stubMarketService) GetQuote(ctx context.Context, tokenID string) (domain.Quote, error) {
	return s.quote, s.err
}

func TestListMarketsFilterParsing(t *testing.T) {
	t.Run("filters and limit forwarded", func(t *testing.T) {
		svc := &stubMarketService{markets: []domain.Market{{ID: "m1"}}}
		h := NewMarketHandler(svc, testLogger())

		req := httptest.NewRequest(http.MethodGet, "/markets?active=true&closed=false&limit=7", nil)
		rec := httptest.NewRecorder()
		h.ListMarkets(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, svc.filter.Active)
		assert.True(t, *svc.filter.Active)
		require.NotNil(t, svc.filter.Closed)
		assert.False(t, *svc.filter.Closed)
		assert.Nil(t, svc.filter.Archived)
		assert.Equal(t, 7, svc.filter.Limit)
	})

	t.Run("unset filters stay nil and limit defaults", func(t *testing.T) {
		svc := &stubMarketService{}
		h := NewMarketHandler(svc, testLogger())

		rec := httptest.NewRecorder()
		h.ListMarkets(rec, httptest.NewRequest(http.MethodGet, "/markets", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Nil(t, svc.filter.Active)
		assert.Equal(t, defaultMarketLimit, svc.filter.Limit)
	})

	t.Run("bad boolean is a 400", func(t *testing.T) {
		h := NewMarketHandler(&stubMarketService{}, testLogger())

		rec := httptest.NewRecorder()
		h.ListMarkets(rec, httptest.NewRequest(http.MethodGet, "/markets?active=maybe", nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("bad limit is a 400", func(t *testing.T) {
		h := NewMarketHandler(&stubMarketService{}, testLogger())

		rec := httptest.NewRecorder()
		h.ListMarkets(rec, httptest.NewRequest(http.MethodGet, "/markets?limit=-1", nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("empty result serializes as an empty array", func(t *testing.T) {
		h := NewMarketHandler(&stubMarketService{}, testLogger())

		rec := httptest.NewRecorder()
		h.ListMarkets(rec, httptest.NewRequest(http.MethodGet, "/markets", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"markets":[]`)
	})
}

func TestGetMarket(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		svc := &stubMarketService{market: domain.Market{ID: "m1", Question: "will it rain"}}
		h := NewMarketHandler(svc, testLogger())

		req := httptest.NewRequest(http.MethodGet, "/markets/m1", nil)
		req.SetPathValue("marketId", "m1")
		rec := httptest.NewRecorder()
		h.GetMarket(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"question":"will it rain"`)
	})

	t.Run("unknown id is a 404", func(t *testing.T) {
		svc := &stubMarketService{err: domain.ErrNotFound}
		h := NewMarketHandler(svc, testLogger())

		req := httptest.NewRequest(http.MethodGet, "/markets/nope", nil)
		req.SetPathValue("marketId", "nope")
		rec := httptest.NewRecorder()
		h.GetMarket(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestGetQuoteEnvelope(t *testing.T) {
	snap := domain.NewOrderBookSnapshot("tok",
		[]domain.PriceLevel{level("0.97", "10")},
		[]domain.PriceLevel{level("0.975", "10")},
	)
	svc := &stubMarketService{quote: domain.DeriveQuote(snap)}
	h := NewMarketHandler(svc, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/markets/tok/quote", nil)
	req.SetPathValue("tokenId", "tok")
	rec := httptest.NewRecorder()
	h.GetQuote(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success bool            `json:"success"`
		Quote   json.RawMessage `json:"quote"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)

	// Decimal fields serialize as strings so clients never see float drift.
	var quote map[string]any
	require.NoError(t, json.Unmarshal(resp.Quote, &quote))
	assert.Equal(t, "0.97", quote["bestBid"])
	assert.Equal(t, "0.975", quote["bestAsk"])
	assert.Equal(t, "0.005", quote["spread"])
	assert.Equal(t, "0.515", quote["spreadPercentage"])
}

func TestGetOrderBookRemoteFailure(t *testing.T) {
	svc := &stubMarketService{err: domain.ErrRemoteFetch}
	h := NewMarketHandler(svc, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/markets/tok/orderbook", nil)
	req.SetPathValue("tokenId", "tok")
	rec := httptest.NewRecorder()
	h.GetOrderBook(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)
}
