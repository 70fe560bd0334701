package trading

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghost-db/flowpay/internal/crypto"
	"github.com/ghost-db/flowpay/internal/domain"
	"github.com/ghost-db/flowpay/internal/polymarket"
)

const (
	testPrivateKey   = "0000000000000000000000000000000000000000000000000000000000000001"
	testExchangeAddr = "0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E"
)

// stubClob is a scriptable ClobAPI implementation.
type stubClob struct {
	mu sync.Mutex

	deriveCalls atomic.Int32
	deriveErr   error

	balance    polymarket.APIBalanceAllowance
	balanceErr error

	postResult domain.OrderResult
	postErr    error
	posted     []crypto.OrderPayload

	orders    []domain.Order
	trades    []domain.Trade
	cancelErr map[string]error
	cancelled []string
}

func (s *stubClob) DeriveAPIKey(ctx context.Context) error {
	s.deriveCalls.Add(1)
	return s.deriveErr
}

func (s *stubClob) GetOrderBook(ctx context.Context, tokenID string) (domain.OrderBookSnapshot, error) {
	return domain.OrderBookSnapshot{TokenID: tokenID}, nil
}

func (s *stubClob) GetBalanceAllowance(ctx context.Context, assetType, tokenID string) (polymarket.APIBalanceAllowance, error) {
	return s.balance, s.balanceErr
}

func (s *stubClob) PostOrder(ctx context.Context, payload crypto.OrderPayload, orderType domain.OrderType) (domain.OrderResult, error) {
	s.mu.Lock()
	s.posted = append(s.posted, payload)
	s.mu.Unlock()
	return s.postResult, s.postErr
}

func (s *stubClob) CancelOrder(ctx context.Context, orderID string) error {
	if err, ok := s.cancelErr[orderID]; ok {
		return err
	}
	s.mu.Lock()
	s.cancelled = append(s.cancelled, orderID)
	s.mu.Unlock()
	return nil
}

func (s *stubClob) GetOpenOrders(ctx context.Context) ([]domain.Order, error) {
	return s.orders, nil
}

func (s *stubClob) GetTrades(ctx context.Context) ([]domain.Trade, error) {
	return s.trades, nil
}

// stubGamma is a scriptable MarketAPI implementation.
type stubGamma struct {
	markets []domain.Market
	market  domain.Market
	err     error
}

func (s *stubGamma) GetMarkets(ctx context.Context, filter domain.MarketFilter) ([]domain.Market, error) {
	return s.markets, s.err
}

func (s *stubGamma) GetMarket(ctx context.Context, id string) (domain.Market, error) {
	return s.market, s.err
}

func newTestFacade(t *testing.T, clob *stubClob, gamma *stubGamma) *Facade {
	t.Helper()
	signer, err := crypto.NewSigner(testPrivateKey, 137, testExchangeAddr)
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(clob, gamma, signer, 0, logger)
}

func TestInitializeCollapsesConcurrentCallers(t *testing.T) {
	clob := &stubClob{}
	f := newTestFacade(t, clob, &stubGamma{})

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, f.Initialize(context.Background()))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), clob.deriveCalls.Load(), "credential derivation must happen exactly once")

	// Later calls short-circuit.
	require.NoError(t, f.Initialize(context.Background()))
	assert.Equal(t, int32(1), clob.deriveCalls.Load())
}

func TestInitializeFailureAllowsRetry(t *testing.T) {
	clob := &stubClob{deriveErr: errors.New("boom")}
	f := newTestFacade(t, clob, &stubGamma{})

	err := f.Initialize(context.Background())
	require.ErrorIs(t, err, domain.ErrInitFailed)

	clob.deriveErr = nil
	require.NoError(t, f.Initialize(context.Background()))
	assert.Equal(t, int32(2), clob.deriveCalls.Load())
}

func TestGetBalanceScalesAtomicUnits(t *testing.T) {
	clob := &stubClob{
		balance: polymarket.APIBalanceAllowance{Balance: "1234560000", Allowance: "500000"},
	}
	f := newTestFacade(t, clob, &stubGamma{})

	bal, err := f.GetBalance(context.Background())
	require.NoError(t, err)

	assert.True(t, bal.BalanceUSD.Equal(decimal.RequireFromString("1234.56")), "balance: %s", bal.BalanceUSD)
	assert.True(t, bal.AllowanceUSD.Equal(decimal.RequireFromString("0.5")), "allowance: %s", bal.AllowanceUSD)
}

func TestGetBalanceUnparseableRemoteValue(t *testing.T) {
	clob := &stubClob{
		balance: polymarket.APIBalanceAllowance{Balance: "not-a-number", Allowance: "0"},
	}
	f := newTestFacade(t, clob, &stubGamma{})

	_, err := f.GetBalance(context.Background())
	require.ErrorIs(t, err, domain.ErrRemoteFetch)
	// The raw remote value must not leak into the normalized error.
	assert.NotContains(t, err.Error(), "not-a-number")
}

func TestCreateOrderRejectionIsAResultNotAnError(t *testing.T) {
	clob := &stubClob{
		postResult: domain.OrderResult{Success: false, Message: "not enough balance / allowance"},
	}
	f := newTestFacade(t, clob, &stubGamma{})

	result, err := f.CreateOrder(context.Background(), domain.OrderRequest{
		TokenID: "tok",
		Price:   decimal.RequireFromString("0.55"),
		Size:    decimal.RequireFromString("10"),
		Side:    domain.OrderSideBuy,
	})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "not enough balance / allowance", result.Message)
}

func TestCreateOrderBuildsSignedAmounts(t *testing.T) {
	clob := &stubClob{postResult: domain.OrderResult{Success: true, OrderID: "o1"}}
	f := newTestFacade(t, clob, &stubGamma{})

	_, err := f.CreateOrder(context.Background(), domain.OrderRequest{
		TokenID: "tok",
		Price:   decimal.RequireFromString("0.55"),
		Size:    decimal.RequireFromString("10"),
		Side:    domain.OrderSideBuy,
	})
	require.NoError(t, err)

	require.Len(t, clob.posted, 1)
	p := clob.posted[0]
	assert.Equal(t, 0, p.Side)
	assert.Equal(t, "5500000", p.MakerAmount, "buy maker amount is price*size in 6-decimal units")
	assert.Equal(t, "10000000", p.TakerAmount)
	assert.NotEmpty(t, p.Salt)

	// Sell flips the legs.
	_, err = f.CreateOrder(context.Background(), domain.OrderRequest{
		TokenID: "tok",
		Price:   decimal.RequireFromString("0.55"),
		Size:    decimal.RequireFromString("10"),
		Side:    domain.OrderSideSell,
	})
	require.NoError(t, err)

	p = clob.posted[1]
	assert.Equal(t, 1, p.Side)
	assert.Equal(t, "10000000", p.MakerAmount)
	assert.Equal(t, "5500000", p.TakerAmount)
}

func TestCancelAllOrdersCollectsFailures(t *testing.T) {
	clob := &stubClob{
		orders: []domain.Order{
			{ID: "a", TokenID: "tok1"},
			{ID: "b", TokenID: "tok1"},
			{ID: "c", TokenID: "tok2"},
		},
		cancelErr: map[string]error{"b": errors.New("remote refusal")},
	}
	f := newTestFacade(t, clob, &stubGamma{})

	result, err := f.CancelAllOrders(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, 2, result.Cancelled)
	assert.Equal(t, []string{"b"}, result.Failed)
}

func TestCancelAllOrdersScopedToToken(t *testing.T) {
	clob := &stubClob{
		orders: []domain.Order{
			{ID: "a", TokenID: "tok1"},
			{ID: "b", TokenID: "tok2"},
		},
	}
	f := newTestFacade(t, clob, &stubGamma{})

	result, err := f.CancelAllOrders(context.Background(), "tok2")
	require.NoError(t, err)

	assert.Equal(t, 1, result.Cancelled)
	assert.Equal(t, []string{"b"}, clob.cancelled)
}

func TestGetOrdersFiltersByToken(t *testing.T) {
	clob := &stubClob{
		orders: []domain.Order{
			{ID: "a", TokenID: "tok1"},
			{ID: "b", TokenID: "tok2"},
			{ID: "c", TokenID: "tok1"},
		},
	}
	f := newTestFacade(t, clob, &stubGamma{})

	orders, err := f.GetOrders(context.Background(), "tok1")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "a", orders[0].ID)
	assert.Equal(t, "c", orders[1].ID)
}

func TestPublicCallsSkipInitialization(t *testing.T) {
	clob := &stubClob{deriveErr: errors.New("must not be called")}
	gamma := &stubGamma{markets: []domain.Market{{ID: "m1"}}}
	f := newTestFacade(t, clob, gamma)

	_, err := f.GetMarkets(context.Background(), domain.MarketFilter{})
	require.NoError(t, err)

	_, err = f.GetMarket(context.Background(), "m1")
	require.NoError(t, err)

	_, err = f.GetOrderBook(context.Background(), "tok")
	require.NoError(t, err)

	_, err = f.GetQuote(context.Background(), "tok")
	require.NoError(t, err)

	assert.Equal(t, int32(0), clob.deriveCalls.Load())
}

func TestGetMarketNotFoundPassesThrough(t *testing.T) {
	gamma := &stubGamma{err: fmt.Errorf("polymarket/gamma: get market m1: %w: body", domain.ErrNotFound)}
	f := newTestFacade(t, &stubClob{}, gamma)

	_, err := f.GetMarket(context.Background(), "m1")
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.NotContains(t, err.Error(), "body", "upstream response bodies must not leak")
}
