package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ghost-db/flowpay/internal/domain"
)

// FacilitatorClient is the REST client for the remote payment facilitator,
// which performs the actual proof verification and on-chain settlement.
type FacilitatorClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewFacilitatorClient creates a facilitator client.
//
// baseURL is the facilitator root, e.g. "https://x402.org/facilitator".
func NewFacilitatorClient(baseURL string, timeout time.Duration) *FacilitatorClient {
	return &FacilitatorClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// facilitatorRequest is the body shared by the verify and settle endpoints.
type facilitatorRequest struct {
	Version      int          `json:"x402Version"`
	Payload      Payload      `json:"paymentPayload"`
	Requirements Requirements `json:"paymentRequirements"`
}

// Verify asks the facilitator whether a payment proof is valid for the given
// requirements. A negative verdict is a result, not an error.
func (c *FacilitatorClient) Verify(ctx context.Context, p Payload, reqs Requirements) (VerifyResult, error) {
	body, err := c.doPost(ctx, "/verify", facilitatorRequest{
		Version:      ProtocolVersion,
		Payload:      p,
		Requirements: reqs,
	})
	if err != nil {
		return VerifyResult{}, fmt.Errorf("payment/facilitator: verify: %w", err)
	}

	var result VerifyResult
	if err := json.Unmarshal(body, &result); err != nil {
		return VerifyResult{}, fmt.Errorf("payment/facilitator: decode verify response: %w", err)
	}

	return result, nil
}

// Settle asks the facilitator to broadcast settlement for a verified proof.
// A declined settlement is a result, not an error.
func (c *FacilitatorClient) Settle(ctx context.Context, p Payload, reqs Requirements) (SettleResult, error) {
	body, err := c.doPost(ctx, "/settle", facilitatorRequest{
		Version:      ProtocolVersion,
		Payload:      p,
		Requirements: reqs,
	})
	if err != nil {
		return SettleResult{}, fmt.Errorf("payment/facilitator: settle: %w", err)
	}

	var result SettleResult
	if err := json.Unmarshal(body, &result); err != nil {
		return SettleResult{}, fmt.Errorf("payment/facilitator: decode settle response: %w", err)
	}

	return result, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// doPost sends a JSON POST to the facilitator and returns the raw body.
func (c *FacilitatorClient) doPost(ctx context.Context, path string, payload any) ([]byte, error) {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnauthorized, string(body))
		}
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}
