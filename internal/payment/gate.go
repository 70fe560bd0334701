package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ghost-db/flowpay/internal/domain"
)

// Facilitator is the verify/settle surface the gate consumes, declared here
// so tests can substitute a stub.
type Facilitator interface {
	Verify(ctx context.Context, p Payload, reqs Requirements) (VerifyResult, error)
	Settle(ctx context.Context, p Payload, reqs Requirements) (SettleResult, error)
}

// GateConfig holds the payment terms advertised on priced routes.
type GateConfig struct {
	PayTo             string // receiving address
	Network           string // e.g. "base", "polygon"
	Asset             string // ERC-20 contract address of the payment asset
	AssetName         string // EIP-712 domain name of the asset, e.g. "USD Coin"
	AssetVersion      string // EIP-712 domain version of the asset
	Description       string
	MaxTimeoutSeconds int
	ReplayTTL         time.Duration // nonce retention window
}

// Gate decides whether a request has paid. It prices routes, checks payment
// proofs for replay, delegates verification and settlement to the
// facilitator, and records settled payments in the ledger when one is
// configured.
type Gate struct {
	prices      *PriceTable
	facilitator Facilitator
	guard       domain.ReplayGuard
	ledger      domain.SettlementStore // optional
	cfg         GateConfig
	logger      *slog.Logger
}

// NewGate creates a Gate. guard must be non-nil; ledger may be nil to skip
// settlement records.
func NewGate(prices *PriceTable, fac Facilitator, guard domain.ReplayGuard, ledger domain.SettlementStore, cfg GateConfig, logger *slog.Logger) *Gate {
	return &Gate{
		prices:      prices,
		facilitator: fac,
		guard:       guard,
		ledger:      ledger,
		cfg:         cfg,
		logger:      logger,
	}
}

// RequirementsFor prices a request. The second return is false for free
// routes.
func (g *Gate) RequirementsFor(r *http.Request) (Requirements, bool) {
	amount, priced := g.prices.Price(r.Method, r.URL.Path)
	if !priced {
		return Requirements{}, false
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}

	return Requirements{
		Scheme:            "exact",
		Network:           g.cfg.Network,
		MaxAmountRequired: amount,
		Resource:          fmt.Sprintf("%s://%s%s", scheme, r.Host, r.URL.Path),
		Description:       g.cfg.Description,
		MimeType:          "application/json",
		PayTo:             g.cfg.PayTo,
		MaxTimeoutSeconds: g.cfg.MaxTimeoutSeconds,
		Asset:             g.cfg.Asset,
		Extra: map[string]string{
			"name":    g.cfg.AssetName,
			"version": g.cfg.AssetVersion,
		},
	}, true
}

// Verify decodes a payment header, asks the facilitator for a verdict, and
// registers the nonce against replays. Malformed proofs and replays come
// back as invalid results, not errors; an error means the facilitator itself
// was unreachable.
//
// The nonce is registered only after a positive verdict, so a proof that
// fails verification (wrong amount, expired window) stays usable elsewhere.
// Registration is first-wins, which keeps concurrent requests carrying the
// same nonce down to a single winner.
func (g *Gate) Verify(ctx context.Context, headerValue string, reqs Requirements) (Payload, VerifyResult, error) {
	p, err := DecodePayload(headerValue)
	if err != nil {
		return Payload{}, VerifyResult{InvalidReason: "malformed payment payload"}, nil
	}

	nonce := p.Payload.Authorization.Nonce
	if nonce == "" {
		return p, VerifyResult{InvalidReason: "missing payment nonce"}, nil
	}

	result, err := g.facilitator.Verify(ctx, p, reqs)
	if err != nil {
		return p, VerifyResult{}, err
	}
	if !result.IsValid {
		return p, result, nil
	}

	if err := g.guard.Register(ctx, nonce, g.cfg.ReplayTTL); err != nil {
		if errors.Is(err, domain.ErrReplayDetected) {
			g.logger.Warn("payment: replayed nonce rejected",
				slog.String("nonce", nonce),
			)
			return p, VerifyResult{InvalidReason: "payment already used"}, nil
		}
		return p, VerifyResult{}, fmt.Errorf("payment: replay guard: %w", err)
	}

	return p, result, nil
}

// Settle broadcasts settlement for a verified proof and appends a ledger
// record on success. Ledger failures are logged, never surfaced: the payer
// already paid and the response must go out.
func (g *Gate) Settle(ctx context.Context, p Payload, reqs Requirements, routeKey string) (SettleResult, error) {
	result, err := g.facilitator.Settle(ctx, p, reqs)
	if err != nil {
		return SettleResult{}, err
	}

	if result.Success && g.ledger != nil {
		record := domain.Settlement{
			ID:        uuid.New().String(),
			Route:     routeKey,
			Payer:     result.Payer,
			PayTo:     reqs.PayTo,
			Asset:     reqs.Asset,
			Amount:    reqs.MaxAmountRequired,
			Network:   result.Network,
			TxHash:    result.Transaction,
			Nonce:     p.Payload.Authorization.Nonce,
			CreatedAt: time.Now().UTC(),
		}
		if err := g.ledger.Insert(ctx, record); err != nil {
			g.logger.Error("payment: settlement record failed",
				slog.String("route", routeKey),
				slog.String("tx_hash", result.Transaction),
				slog.String("error", err.Error()),
			)
		}
	}

	return result, nil
}

// RouteKey exposes the canonical priced-route key for a request.
func (g *Gate) RouteKey(r *http.Request) string {
	return g.prices.RouteKey(r.Method, r.URL.Path)
}
