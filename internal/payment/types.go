// Package payment implements the per-request micropayment gate: route
// pricing, payment-proof transport, and the facilitator verify/settle
// client. The verification and settlement cryptography itself lives in the
// remote facilitator; this package only moves proofs and bookkeeping.
package payment

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// ProtocolVersion is the payment-protocol version the gateway speaks.
const ProtocolVersion = 1

// Header names used on priced routes.
const (
	PaymentHeader         = "X-Payment"
	PaymentResponseHeader = "X-Payment-Response"
)

// Requirements describes one acceptable way to pay for a route. It is
// returned inside a 402 body so clients can construct a payment proof.
type Requirements struct {
	Scheme            string            `json:"scheme"`
	Network           string            `json:"network"`
	MaxAmountRequired string            `json:"maxAmountRequired"` // atomic units
	Resource          string            `json:"resource"`
	Description       string            `json:"description"`
	MimeType          string            `json:"mimeType"`
	PayTo             string            `json:"payTo"`
	MaxTimeoutSeconds int               `json:"maxTimeoutSeconds"`
	Asset             string            `json:"asset"` // ERC-20 contract address
	Extra             map[string]string `json:"extra,omitempty"`
}

// RequiredResponse is the 402 body listing every acceptable payment.
type RequiredResponse struct {
	Version int            `json:"x402Version"`
	Error   string         `json:"error"`
	Accepts []Requirements `json:"accepts"`
}

// Authorization is the EIP-3009 transfer authorization carried inside a
// payment proof. All values are decimal or hex strings as produced by the
// payer's wallet.
type Authorization struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	ValidAfter  string `json:"validAfter"`
	ValidBefore string `json:"validBefore"`
	Nonce       string `json:"nonce"`
}

// ExactPayload is the scheme-specific proof body for the "exact" scheme.
type ExactPayload struct {
	Signature     string        `json:"signature"`
	Authorization Authorization `json:"authorization"`
}

// Payload is the decoded X-Payment header.
type Payload struct {
	Version int          `json:"x402Version"`
	Scheme  string       `json:"scheme"`
	Network string       `json:"network"`
	Payload ExactPayload `json:"payload"`
}

// DecodePayload parses a base64-encoded X-Payment header value.
func DecodePayload(headerValue string) (Payload, error) {
	raw, err := base64.StdEncoding.DecodeString(headerValue)
	if err != nil {
		return Payload{}, fmt.Errorf("payment: decode header: %w", err)
	}

	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, fmt.Errorf("payment: parse payload: %w", err)
	}

	if p.Version != ProtocolVersion {
		return Payload{}, fmt.Errorf("payment: unsupported version %d", p.Version)
	}

	return p, nil
}

// VerifyResult is the facilitator's verdict on a payment proof.
type VerifyResult struct {
	IsValid       bool   `json:"isValid"`
	InvalidReason string `json:"invalidReason,omitempty"`
	Payer         string `json:"payer,omitempty"`
}

// SettleResult is the facilitator's report after broadcasting settlement.
type SettleResult struct {
	Success     bool   `json:"success"`
	ErrorReason string `json:"errorReason,omitempty"`
	Transaction string `json:"transaction,omitempty"`
	Network     string `json:"network,omitempty"`
	Payer       string `json:"payer,omitempty"`
}

// EncodeSettleResult serializes a settlement receipt for the
// X-Payment-Response header.
func EncodeSettleResult(r SettleResult) (string, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("payment: encode settle result: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
