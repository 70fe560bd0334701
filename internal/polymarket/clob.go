// Package polymarket implements REST clients for the Polymarket CLOB
// (trading) and Gamma (market metadata) APIs.
package polymarket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/ghost-db/flowpay/internal/crypto"
	"github.com/ghost-db/flowpay/internal/domain"
)

// Asset types accepted by the balance-allowance endpoint.
const (
	AssetTypeCollateral  = "COLLATERAL"
	AssetTypeConditional = "CONDITIONAL"
)

// ClobClient is the REST client for the Polymarket CLOB (Central Limit
// Order Book) API. It handles order placement, cancellation, and queries.
type ClobClient struct {
	baseURL    string
	httpClient *http.Client
	signer     *crypto.Signer

	// hmacAuth is written once by DeriveAPIKey and read by every request.
	// Public endpoints (the order book) may be hit concurrently with the
	// first credentialed call's derivation, so access goes through an
	// atomic pointer.
	hmacAuth atomic.Pointer[crypto.HMACAuth]
}

// NewClobClient creates a new CLOB REST client.
//
// baseURL is the CLOB API root, e.g. "https://clob.polymarket.com".
// timeout bounds every request; it comes from config, never hardcoded.
// signer is the EIP-712 signer for order signatures and auth messages.
func NewClobClient(baseURL string, timeout time.Duration, signer *crypto.Signer) *ClobClient {
	return &ClobClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		signer:     signer,
	}
}

// DeriveAPIKey performs the CLOB auth flow to obtain HMAC credentials. It
// signs a ClobAuth EIP-712 message and sends it with L1 headers to the
// derive-api-key endpoint. Per Polymarket docs, L1 requires POLY_ADDRESS,
// POLY_SIGNATURE, POLY_TIMESTAMP, POLY_NONCE. On success it populates the
// client's hmacAuth field.
func (c *ClobClient) DeriveAPIKey(ctx context.Context) error {
	address := c.signer.Address().Hex()
	timestamp := time.Now().Unix()
	nonce := int64(0)

	sig, err := c.signer.SignAuthMessage(address, timestamp, nonce)
	if err != nil {
		return fmt.Errorf("polymarket/clob: sign auth message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/derive-api-key", nil)
	if err != nil {
		return fmt.Errorf("polymarket/clob: create auth request: %w", err)
	}
	req.Header.Set("POLY_ADDRESS", address)
	req.Header.Set("POLY_SIGNATURE", sig)
	req.Header.Set("POLY_TIMESTAMP", fmt.Sprintf("%d", timestamp))
	req.Header.Set("POLY_NONCE", fmt.Sprintf("%d", nonce))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("polymarket/clob: auth request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("polymarket/clob: read auth response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("polymarket/clob: auth failed (HTTP %d): %s", resp.StatusCode, string(respBody))
	}

	var authResp struct {
		APIKey     string `json:"apiKey"`
		Secret     string `json:"secret"`
		Passphrase string `json:"passphrase"`
	}
	if err := json.Unmarshal(respBody, &authResp); err != nil {
		return fmt.Errorf("polymarket/clob: decode auth response: %w", err)
	}

	c.hmacAuth.Store(&crypto.HMACAuth{
		Key:        authResp.APIKey,
		Secret:     authResp.Secret,
		Passphrase: authResp.Passphrase,
	})

	return nil
}

// GetOrderBook fetches the raw bid/ask levels for one outcome token and
// returns the normalized snapshot. The book endpoint is public.
func (c *ClobClient) GetOrderBook(ctx context.Context, tokenID string) (domain.OrderBookSnapshot, error) {
	path := "/book?token_id=" + url.QueryEscape(tokenID)

	respBody, err := c.doAuthenticatedRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return domain.OrderBookSnapshot{}, fmt.Errorf("polymarket/clob: get book %s: %w", tokenID, err)
	}

	var book APIBook
	if err := json.Unmarshal(respBody, &book); err != nil {
		return domain.OrderBookSnapshot{}, fmt.Errorf("polymarket/clob: decode book: %w", err)
	}

	return book.ToDomainSnapshot(tokenID), nil
}

// GetBalanceAllowance fetches the balance and exchange allowance for the
// authenticated wallet. assetType is AssetTypeCollateral or
// AssetTypeConditional; tokenID is required only for the latter.
func (c *ClobClient) GetBalanceAllowance(ctx context.Context, assetType, tokenID string) (APIBalanceAllowance, error) {
	params := url.Values{}
	params.Set("asset_type", assetType)
	if tokenID != "" {
		params.Set("token_id", tokenID)
	}
	path := "/balance-allowance?" + params.Encode()

	respBody, err := c.doAuthenticatedRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return APIBalanceAllowance{}, fmt.Errorf("polymarket/clob: get balance-allowance: %w", err)
	}

	var ba APIBalanceAllowance
	if err := json.Unmarshal(respBody, &ba); err != nil {
		return APIBalanceAllowance{}, fmt.Errorf("polymarket/clob: decode balance-allowance: %w", err)
	}

	return ba, nil
}

// PostOrder submits a signed order to the CLOB API. A business rejection
// (the CLOB declining the order) is reported as a result with Success=false
// and a nil error; only transport and decode failures return an error.
func (c *ClobClient) PostOrder(ctx context.Context, payload crypto.OrderPayload, orderType domain.OrderType) (domain.OrderResult, error) {
	sig, err := c.signer.SignOrder(payload)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket/clob: %w: %v", domain.ErrSigningFailed, err)
	}

	body := map[string]any{
		"order": map[string]any{
			"salt":          payload.Salt,
			"maker":         payload.Maker,
			"signer":        payload.Signer,
			"taker":         payload.Taker,
			"tokenID":       payload.TokenID,
			"makerAmount":   payload.MakerAmount,
			"takerAmount":   payload.TakerAmount,
			"expiration":    payload.Expiration,
			"nonce":         payload.Nonce,
			"feeRateBps":    payload.FeeRateBps,
			"side":          sideString(payload.Side),
			"signatureType": payload.SignatureType,
			"signature":     sig,
		},
		"owner":     c.ownerKey(),
		"orderType": string(orderType),
	}

	status, respBody, err := c.do(ctx, http.MethodPost, "/order", body)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket/clob: post order: %w", err)
	}

	// The CLOB reports rejections as success=false, sometimes with a 4xx
	// status. Treat anything with a decodable result body as a business
	// outcome rather than a transport failure.
	var apiResult APIOrderResult
	if decodeErr := json.Unmarshal(respBody, &apiResult); decodeErr != nil {
		if err := checkHTTPStatus(status, respBody); err != nil {
			return domain.OrderResult{}, fmt.Errorf("polymarket/clob: post order: %w", err)
		}
		return domain.OrderResult{}, fmt.Errorf("polymarket/clob: decode order result: %w", decodeErr)
	}

	return apiResult.ToDomainResult(), nil
}

// CancelOrder cancels a single order by its ID.
func (c *ClobClient) CancelOrder(ctx context.Context, orderID string) error {
	body := map[string]any{
		"orderID": orderID,
	}

	respBody, err := c.doAuthenticatedRequest(ctx, http.MethodDelete, "/order", body)
	if err != nil {
		return fmt.Errorf("polymarket/clob: cancel order %s: %w", orderID, err)
	}

	var result struct {
		Success  bool   `json:"success"`
		ErrorMsg string `json:"errorMsg"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("polymarket/clob: decode cancel response: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("polymarket/clob: cancel failed: %s", result.ErrorMsg)
	}

	return nil
}

// GetOpenOrders returns all open orders for the authenticated wallet.
func (c *ClobClient) GetOpenOrders(ctx context.Context) ([]domain.Order, error) {
	respBody, err := c.doAuthenticatedRequest(ctx, http.MethodGet, "/orders", nil)
	if err != nil {
		return nil, fmt.Errorf("polymarket/clob: get open orders: %w", err)
	}

	var apiOrders []APIOrder
	if err := json.Unmarshal(respBody, &apiOrders); err != nil {
		return nil, fmt.Errorf("polymarket/clob: decode orders: %w", err)
	}

	orders := make([]domain.Order, 0, len(apiOrders))
	for i := range apiOrders {
		orders = append(orders, apiOrders[i].ToDomainOrder())
	}

	return orders, nil
}

// GetTrades returns the trade history for the authenticated wallet.
func (c *ClobClient) GetTrades(ctx context.Context) ([]domain.Trade, error) {
	respBody, err := c.doAuthenticatedRequest(ctx, http.MethodGet, "/trades", nil)
	if err != nil {
		return nil, fmt.Errorf("polymarket/clob: get trades: %w", err)
	}

	var apiTrades []APITrade
	if err := json.Unmarshal(respBody, &apiTrades); err != nil {
		return nil, fmt.Errorf("polymarket/clob: decode trades: %w", err)
	}

	trades := make([]domain.Trade, 0, len(apiTrades))
	for i := range apiTrades {
		trades = append(trades, apiTrades[i].ToDomainTrade())
	}

	return trades, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// ownerKey returns the API key used as the order owner, or the wallet
// address before credentials exist.
func (c *ClobClient) ownerKey() string {
	if auth := c.hmacAuth.Load(); auth != nil {
		return auth.Key
	}
	return c.signer.Address().Hex()
}

func sideString(side int) string {
	if side == 1 {
		return string(domain.OrderSideSell)
	}
	return string(domain.OrderSideBuy)
}

// doAuthenticatedRequest builds, signs (HMAC), sends, and reads an HTTP
// request against the CLOB API, mapping non-2xx statuses to domain errors.
// It returns the raw response body.
func (c *ClobClient) doAuthenticatedRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	status, respBody, err := c.do(ctx, method, path, body)
	if err != nil {
		return nil, err
	}

	if err := checkHTTPStatus(status, respBody); err != nil {
		return nil, err
	}

	return respBody, nil
}

// do is the transport-level helper: it marshals the body, applies HMAC
// headers when credentials exist, sends the request, and returns the status
// code with the raw response body. Status interpretation is the caller's.
func (c *ClobClient) do(ctx context.Context, method, path string, body any) (int, []byte, error) {
	var bodyReader io.Reader
	var bodyStr string

	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyStr = string(jsonBody)
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if auth := c.hmacAuth.Load(); auth != nil {
		address := c.signer.Address().Hex()
		headers := auth.L2Headers(address, method, path, bodyStr)
		for k, v := range headers {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}

	return resp.StatusCode, respBody, nil
}

// checkHTTPStatus maps non-2xx status codes to appropriate domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}
