package middleware

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghost-db/flowpay/internal/payment"
)

// stubFacilitator is a scriptable payment.Facilitator.
type stubFacilitator struct {
	verify      payment.VerifyResult
	settle      payment.SettleResult
	settleCalls atomic.Int32
}

func (s *stubFacilitator) Verify(ctx context.Context, p payment.Payload, reqs payment.Requirements) (payment.VerifyResult, error) {
	return s.verify, nil
}

func (s *stubFacilitator) Settle(ctx context.Context, p payment.Payload, reqs payment.Requirements) (payment.SettleResult, error) {
	s.settleCalls.Add(1)
	return s.settle, nil
}

func newGate(fac payment.Facilitator) *payment.Gate {
	return payment.NewGate(
		payment.NewPriceTable(map[string]string{
			"GET /markets": "1000",
			"POST /orders": "10000",
		}),
		fac,
		payment.NewMemoryReplayGuard(),
		nil,
		payment.GateConfig{
			PayTo:             "0x11",
			Network:           "base-sepolia",
			Asset:             "0xusdc",
			AssetName:         "USDC",
			AssetVersion:      "2",
			MaxTimeoutSeconds: 60,
			ReplayTTL:         10 * time.Minute,
		},
		testLogger(),
	)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func proofHeader(t *testing.T, nonce string) string {
	t.Helper()
	p := payment.Payload{
		Version: payment.ProtocolVersion,
		Scheme:  "exact",
		Network: "base-sepolia",
		Payload: payment.ExactPayload{
			Signature:     "0xsig",
			Authorization: payment.Authorization{Nonce: nonce, Value: "1000"},
		},
	}
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(raw)
}

func decodeRequired(t *testing.T, body []byte) payment.RequiredResponse {
	t.Helper()
	var resp payment.RequiredResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp
}

func TestPaymentMiddleware(t *testing.T) {
	var handlerCalls atomic.Int32
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true}`))
	})

	t.Run("free route passes through untouched", func(t *testing.T) {
		handlerCalls.Store(0)
		fac := &stubFacilitator{}
		h := Payment(newGate(fac), testLogger())(okHandler)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, int32(1), handlerCalls.Load())
		assert.Empty(t, rec.Header().Get(payment.PaymentResponseHeader))
	})

	t.Run("missing header gets 402 without reaching the handler", func(t *testing.T) {
		handlerCalls.Store(0)
		fac := &stubFacilitator{}
		h := Payment(newGate(fac), testLogger())(okHandler)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/markets", nil))

		assert.Equal(t, http.StatusPaymentRequired, rec.Code)
		assert.Equal(t, int32(0), handlerCalls.Load())

		resp := decodeRequired(t, rec.Body.Bytes())
		assert.Equal(t, payment.ProtocolVersion, resp.Version)
		assert.Equal(t, "X-PAYMENT header is required", resp.Error)
		require.Len(t, resp.Accepts, 1)
		assert.Equal(t, "1000", resp.Accepts[0].MaxAmountRequired)
	})

	t.Run("invalid proof gets 402 with the facilitator reason", func(t *testing.T) {
		handlerCalls.Store(0)
		fac := &stubFacilitator{verify: payment.VerifyResult{InvalidReason: "insufficient funds"}}
		h := Payment(newGate(fac), testLogger())(okHandler)

		req := httptest.NewRequest(http.MethodGet, "/markets", nil)
		req.Header.Set(payment.PaymentHeader, proofHeader(t, "0xn1"))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusPaymentRequired, rec.Code)
		assert.Equal(t, int32(0), handlerCalls.Load())
		assert.Equal(t, "insufficient funds", decodeRequired(t, rec.Body.Bytes()).Error)
		assert.Equal(t, int32(0), fac.settleCalls.Load())
	})

	t.Run("valid proof settles and attaches the receipt header", func(t *testing.T) {
		handlerCalls.Store(0)
		fac := &stubFacilitator{
			verify: payment.VerifyResult{IsValid: true, Payer: "0x22"},
			settle: payment.SettleResult{Success: true, Transaction: "0xtx", Network: "base-sepolia"},
		}
		h := Payment(newGate(fac), testLogger())(okHandler)

		req := httptest.NewRequest(http.MethodGet, "/markets", nil)
		req.Header.Set(payment.PaymentHeader, proofHeader(t, "0xn2"))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, int32(1), handlerCalls.Load())
		assert.Equal(t, int32(1), fac.settleCalls.Load())
		assert.JSONEq(t, `{"success":true}`, rec.Body.String())

		encoded := rec.Header().Get(payment.PaymentResponseHeader)
		require.NotEmpty(t, encoded)
		raw, err := base64.StdEncoding.DecodeString(encoded)
		require.NoError(t, err)
		var receipt payment.SettleResult
		require.NoError(t, json.Unmarshal(raw, &receipt))
		assert.Equal(t, "0xtx", receipt.Transaction)
	})

	t.Run("handler failure skips settlement", func(t *testing.T) {
		fac := &stubFacilitator{verify: payment.VerifyResult{IsValid: true}}
		failing := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"success":false,"error":"bad input"}`))
		})
		h := Payment(newGate(fac), testLogger())(failing)

		req := httptest.NewRequest(http.MethodPost, "/orders", nil)
		req.Header.Set(payment.PaymentHeader, proofHeader(t, "0xn3"))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, int32(0), fac.settleCalls.Load())
		assert.Empty(t, rec.Header().Get(payment.PaymentResponseHeader))
	})

	t.Run("failed settlement discards the handler response", func(t *testing.T) {
		fac := &stubFacilitator{
			verify: payment.VerifyResult{IsValid: true},
			settle: payment.SettleResult{Success: false, ErrorReason: "authorization expired"},
		}
		h := Payment(newGate(fac), testLogger())(okHandler)

		req := httptest.NewRequest(http.MethodGet, "/markets", nil)
		req.Header.Set(payment.PaymentHeader, proofHeader(t, "0xn4"))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusPaymentRequired, rec.Code)
		assert.Equal(t, "authorization expired", decodeRequired(t, rec.Body.Bytes()).Error)
		assert.NotContains(t, rec.Body.String(), `"success":true`)
	})

	t.Run("replayed proof is rejected before the handler", func(t *testing.T) {
		handlerCalls.Store(0)
		fac := &stubFacilitator{
			verify: payment.VerifyResult{IsValid: true},
			settle: payment.SettleResult{Success: true},
		}
		h := Payment(newGate(fac), testLogger())(okHandler)

		header := proofHeader(t, "0xn5")

		first := httptest.NewRequest(http.MethodGet, "/markets", nil)
		first.Header.Set(payment.PaymentHeader, header)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, first)
		require.Equal(t, http.StatusOK, rec.Code)

		second := httptest.NewRequest(http.MethodGet, "/markets", nil)
		second.Header.Set(payment.PaymentHeader, header)
		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, second)

		assert.Equal(t, http.StatusPaymentRequired, rec.Code)
		assert.Equal(t, "payment already used", decodeRequired(t, rec.Body.Bytes()).Error)
		assert.Equal(t, int32(1), handlerCalls.Load())
	})
}
