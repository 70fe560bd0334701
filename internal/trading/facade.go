// Package trading is the single choke point for calls to the Polymarket
// trading stack. The Facade hides the credential lifecycle and normalizes
// every remote response before it reaches a handler.
package trading

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/ghost-db/flowpay/internal/crypto"
	"github.com/ghost-db/flowpay/internal/domain"
	"github.com/ghost-db/flowpay/internal/polymarket"
)

// ClobAPI defines the CLOB client surface the facade consumes. It is
// declared here so tests can substitute a stub.
type ClobAPI interface {
	DeriveAPIKey(ctx context.Context) error
	GetOrderBook(ctx context.Context, tokenID string) (domain.OrderBookSnapshot, error)
	GetBalanceAllowance(ctx context.Context, assetType, tokenID string) (polymarket.APIBalanceAllowance, error)
	PostOrder(ctx context.Context, payload crypto.OrderPayload, orderType domain.OrderType) (domain.OrderResult, error)
	CancelOrder(ctx context.Context, orderID string) error
	GetOpenOrders(ctx context.Context) ([]domain.Order, error)
	GetTrades(ctx context.Context) ([]domain.Trade, error)
}

// MarketAPI defines the Gamma client surface the facade consumes.
type MarketAPI interface {
	GetMarkets(ctx context.Context, filter domain.MarketFilter) ([]domain.Market, error)
	GetMarket(ctx context.Context, id string) (domain.Market, error)
}

// Facade wraps the CLOB and Gamma clients behind typed operations. It has
// exactly two states, uninitialized and initialized; the transition is
// one-way and happens on the first credentialed call.
type Facade struct {
	clob    ClobAPI
	gamma   MarketAPI
	signer  *crypto.Signer
	sigType int
	logger  *slog.Logger

	initialized atomic.Bool
	initGroup   singleflight.Group
}

// New creates a Facade. sigType is the Polymarket signature type submitted
// with orders (0 = EOA, 2 = Gnosis Safe).
func New(clob ClobAPI, gamma MarketAPI, signer *crypto.Signer, sigType int, logger *slog.Logger) *Facade {
	return &Facade{
		clob:    clob,
		gamma:   gamma,
		signer:  signer,
		sigType: sigType,
		logger:  logger,
	}
}

// Initialize derives HMAC API credentials from the wallet key. It is
// idempotent and safe under concurrent first use: simultaneous callers are
// collapsed into a single derivation and all observe its outcome. A failed
// derivation leaves the facade uninitialized so a later call may retry.
func (f *Facade) Initialize(ctx context.Context) error {
	if f.initialized.Load() {
		return nil
	}

	_, err, _ := f.initGroup.Do("derive-api-key", func() (any, error) {
		if f.initialized.Load() {
			return nil, nil
		}
		if err := f.clob.DeriveAPIKey(ctx); err != nil {
			f.logger.Error("trading: credential derivation failed",
				slog.String("error", err.Error()),
			)
			return nil, fmt.Errorf("trading: %w", domain.ErrInitFailed)
		}
		f.initialized.Store(true)
		f.logger.Info("trading: api credentials derived",
			slog.String("address", f.signer.Address().Hex()),
		)
		return nil, nil
	})
	return err
}

// GetBalance fetches the collateral (USDC) balance and allowance for the
// gateway wallet, scaled from the CLOB's 6-decimal integer representation.
func (f *Facade) GetBalance(ctx context.Context) (domain.Balance, error) {
	if err := f.Initialize(ctx); err != nil {
		return domain.Balance{}, err
	}

	raw, err := f.clob.GetBalanceAllowance(ctx, polymarket.AssetTypeCollateral, "")
	if err != nil {
		return domain.Balance{}, f.remoteErr("fetch balance", err)
	}

	balance, allowance, err := scaleBalance(raw)
	if err != nil {
		return domain.Balance{}, f.remoteErr("fetch balance", err)
	}

	return domain.Balance{BalanceUSD: balance, AllowanceUSD: allowance}, nil
}

// GetTokenBalance is GetBalance scoped to one outcome token.
func (f *Facade) GetTokenBalance(ctx context.Context, tokenID string) (domain.TokenBalance, error) {
	if err := f.Initialize(ctx); err != nil {
		return domain.TokenBalance{}, err
	}

	raw, err := f.clob.GetBalanceAllowance(ctx, polymarket.AssetTypeConditional, tokenID)
	if err != nil {
		return domain.TokenBalance{}, f.remoteErr("fetch token balance", err)
	}

	balance, allowance, err := scaleBalance(raw)
	if err != nil {
		return domain.TokenBalance{}, f.remoteErr("fetch token balance", err)
	}

	return domain.TokenBalance{TokenID: tokenID, BalanceUSD: balance, AllowanceUSD: allowance}, nil
}

// GetOrderBook returns the normalized book snapshot for one outcome token.
func (f *Facade) GetOrderBook(ctx context.Context, tokenID string) (domain.OrderBookSnapshot, error) {
	snap, err := f.clob.GetOrderBook(ctx, tokenID)
	if err != nil {
		return domain.OrderBookSnapshot{}, f.remoteErr("fetch orderbook", err)
	}
	return snap, nil
}

// GetQuote fetches the book and derives the bid/ask/spread quote.
func (f *Facade) GetQuote(ctx context.Context, tokenID string) (domain.Quote, error) {
	snap, err := f.GetOrderBook(ctx, tokenID)
	if err != nil {
		return domain.Quote{}, err
	}
	return domain.DeriveQuote(snap), nil
}

// CreateOrder signs and submits a good-till-cancelled limit order. Input
// validation is the router's responsibility; the facade assumes req is well
// formed. A CLOB rejection comes back as a result with Success=false and a
// nil error.
func (f *Facade) CreateOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	if err := f.Initialize(ctx); err != nil {
		return domain.OrderResult{}, err
	}

	payload := f.buildOrderPayload(req)

	result, err := f.clob.PostOrder(ctx, payload, domain.OrderTypeGTC)
	if err != nil {
		return domain.OrderResult{}, f.remoteErr("post order", err)
	}

	if !result.Success {
		f.logger.Warn("trading: order rejected",
			slog.String("token_id", req.TokenID),
			slog.String("message", result.Message),
		)
	}

	return result, nil
}

// CancelOrder cancels a single order by its ID.
func (f *Facade) CancelOrder(ctx context.Context, orderID string) error {
	if err := f.Initialize(ctx); err != nil {
		return err
	}

	if err := f.clob.CancelOrder(ctx, orderID); err != nil {
		return f.remoteErr("cancel order", err)
	}
	return nil
}

// CancelAllOrders lists open orders, optionally filtered to one outcome
// token, and cancels each individually. A failure cancelling one order never
// aborts the rest: the result counts successful cancellations and carries
// the IDs that failed, which are logged rather than raised.
func (f *Facade) CancelAllOrders(ctx context.Context, tokenID string) (domain.CancelAllResult, error) {
	if err := f.Initialize(ctx); err != nil {
		return domain.CancelAllResult{}, err
	}

	orders, err := f.clob.GetOpenOrders(ctx)
	if err != nil {
		return domain.CancelAllResult{}, f.remoteErr("list orders", err)
	}

	var result domain.CancelAllResult
	for _, o := range orders {
		if tokenID != "" && o.TokenID != tokenID {
			continue
		}
		if err := f.clob.CancelOrder(ctx, o.ID); err != nil {
			f.logger.Warn("trading: cancel failed",
				slog.String("order_id", o.ID),
				slog.String("error", err.Error()),
			)
			result.Failed = append(result.Failed, o.ID)
			continue
		}
		result.Cancelled++
	}

	return result, nil
}

// GetOrders returns open orders, optionally filtered to one outcome token.
func (f *Facade) GetOrders(ctx context.Context, tokenID string) ([]domain.Order, error) {
	if err := f.Initialize(ctx); err != nil {
		return nil, err
	}

	orders, err := f.clob.GetOpenOrders(ctx)
	if err != nil {
		return nil, f.remoteErr("list orders", err)
	}

	if tokenID == "" {
		return orders, nil
	}

	filtered := make([]domain.Order, 0, len(orders))
	for _, o := range orders {
		if o.TokenID == tokenID {
			filtered = append(filtered, o)
		}
	}
	return filtered, nil
}

// GetTrades returns the wallet's trade history, optionally filtered to one
// outcome token.
func (f *Facade) GetTrades(ctx context.Context, tokenID string) ([]domain.Trade, error) {
	if err := f.Initialize(ctx); err != nil {
		return nil, err
	}

	trades, err := f.clob.GetTrades(ctx)
	if err != nil {
		return nil, f.remoteErr("list trades", err)
	}

	if tokenID == "" {
		return trades, nil
	}

	filtered := make([]domain.Trade, 0, len(trades))
	for _, t := range trades {
		if t.TokenID == tokenID {
			filtered = append(filtered, t)
		}
	}
	return filtered, nil
}

// GetMarkets queries the public Gamma metadata service. No credentials are
// involved, so this never triggers initialization.
func (f *Facade) GetMarkets(ctx context.Context, filter domain.MarketFilter) ([]domain.Market, error) {
	markets, err := f.gamma.GetMarkets(ctx, filter)
	if err != nil {
		return nil, f.remoteErr("list markets", err)
	}
	return markets, nil
}

// GetMarket returns one market's metadata by its Gamma ID. Like GetMarkets
// this is public and never triggers initialization. A missing market comes
// back as domain.ErrNotFound rather than a normalized remote error.
func (f *Facade) GetMarket(ctx context.Context, id string) (domain.Market, error) {
	market, err := f.gamma.GetMarket(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Market{}, fmt.Errorf("%w: market %s", domain.ErrNotFound, id)
		}
		return domain.Market{}, f.remoteErr("fetch market", err)
	}
	return market, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// amountScale converts display decimals to the 6-decimal fixed-point wire
// representation.
const amountScale = 6

// buildOrderPayload maps an order request onto the 12 signed EIP-712 fields.
// Maker/taker amounts are floored so an order can never commit more
// collateral than price*size.
func (f *Facade) buildOrderPayload(req domain.OrderRequest) crypto.OrderPayload {
	wallet := f.signer.Address().Hex()
	notional := req.Price.Mul(req.Size)

	var side int
	var makerAmount, takerAmount decimal.Decimal
	if req.Side == domain.OrderSideSell {
		side = 1
		makerAmount = req.Size
		takerAmount = notional
	} else {
		side = 0
		makerAmount = notional
		takerAmount = req.Size
	}

	return crypto.OrderPayload{
		Salt:          newSalt(),
		Maker:         wallet,
		Signer:        wallet,
		Taker:         "0x0000000000000000000000000000000000000000",
		TokenID:       req.TokenID,
		MakerAmount:   makerAmount.Shift(amountScale).Floor().String(),
		TakerAmount:   takerAmount.Shift(amountScale).Floor().String(),
		Expiration:    "0",
		Nonce:         "0",
		FeeRateBps:    "0",
		Side:          side,
		SignatureType: f.sigType,
	}
}

// newSalt returns a random uint256-ranged decimal string for the order salt.
func newSalt() string {
	u := uuid.New()
	return new(big.Int).SetBytes(u[:]).String()
}

// scaleBalance converts the CLOB's 6-decimal integer strings into display
// decimals.
func scaleBalance(raw polymarket.APIBalanceAllowance) (balance, allowance decimal.Decimal, err error) {
	balance, err = decimal.NewFromString(raw.Balance)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("parse balance %q: %w", raw.Balance, err)
	}
	allowance, err = decimal.NewFromString(raw.Allowance)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("parse allowance %q: %w", raw.Allowance, err)
	}
	return balance.Shift(-amountScale), allowance.Shift(-amountScale), nil
}

// remoteErr logs the raw remote error server-side and returns a normalized
// error with a stable message so raw remote payloads never leak upward.
func (f *Facade) remoteErr(op string, err error) error {
	f.logger.Error("trading: remote call failed",
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
	return fmt.Errorf("%w: %s", domain.ErrRemoteFetch, op)
}
