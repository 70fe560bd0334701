package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ghost-db/flowpay/internal/payment"
)

// Payment returns the micropayment gate middleware. Free routes pass
// straight through. For priced routes it requires a valid payment proof in
// the X-Payment header, buffers the handler's response, and settles the
// payment only when the handler produced a sub-400 status. The settlement
// receipt is attached as the X-Payment-Response header.
func Payment(gate *payment.Gate, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqs, priced := gate.RequirementsFor(r)
			if !priced {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get(payment.PaymentHeader)
			if header == "" {
				writePaymentRequired(w, reqs, "X-PAYMENT header is required")
				return
			}

			proof, verdict, err := gate.Verify(r.Context(), header, reqs)
			if err != nil {
				logger.ErrorContext(r.Context(), "payment: verification unavailable",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				writeGateError(w, http.StatusBadGateway, "payment verification unavailable")
				return
			}
			if !verdict.IsValid {
				writePaymentRequired(w, reqs, verdict.InvalidReason)
				return
			}

			// Buffer the handler response: settlement must complete before
			// anything is written, so a failed settlement can still turn
			// into a 402.
			buf := &bufferedWriter{header: make(http.Header), status: http.StatusOK}
			next.ServeHTTP(buf, r)

			if buf.status < http.StatusBadRequest {
				receipt, err := gate.Settle(r.Context(), proof, reqs, gate.RouteKey(r))
				if err != nil || !receipt.Success {
					reason := "settlement failed"
					if err != nil {
						logger.ErrorContext(r.Context(), "payment: settlement unavailable",
							slog.String("path", r.URL.Path),
							slog.String("error", err.Error()),
						)
					} else if receipt.ErrorReason != "" {
						reason = receipt.ErrorReason
					}
					writePaymentRequired(w, reqs, reason)
					return
				}

				if encoded, err := payment.EncodeSettleResult(receipt); err == nil {
					buf.header.Set(payment.PaymentResponseHeader, encoded)
				}
			}

			buf.flush(w)
		})
	}
}

// writePaymentRequired emits the 402 envelope advertising how to pay.
func writePaymentRequired(w http.ResponseWriter, reqs payment.Requirements, reason string) {
	if reason == "" {
		reason = "payment invalid"
	}

	body := payment.RequiredResponse{
		Version: payment.ProtocolVersion,
		Error:   reason,
		Accepts: []payment.Requirements{reqs},
	}

	data, err := json.Marshal(body)
	if err != nil {
		http.Error(w, `{"success":false,"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusPaymentRequired)
	w.Write(data)
}

func writeGateError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   msg,
	})
}

// bufferedWriter is an http.ResponseWriter that holds the full response in
// memory until flush. Gateway responses are small JSON bodies, so buffering
// one request is cheap.
type bufferedWriter struct {
	header      http.Header
	body        bytes.Buffer
	status      int
	wroteHeader bool
}

func (b *bufferedWriter) Header() http.Header {
	return b.header
}

func (b *bufferedWriter) WriteHeader(code int) {
	if !b.wroteHeader {
		b.status = code
		b.wroteHeader = true
	}
}

func (b *bufferedWriter) Write(p []byte) (int, error) {
	if !b.wroteHeader {
		b.wroteHeader = true
	}
	return b.body.Write(p)
}

// flush copies the buffered response onto the real writer.
func (b *bufferedWriter) flush(w http.ResponseWriter) {
	for k, vals := range b.header {
		for _, v := range vals {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(b.status)
	w.Write(b.body.Bytes())
}
