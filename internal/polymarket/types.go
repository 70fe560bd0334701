package polymarket

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ghost-db/flowpay/internal/domain"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether "active" is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// --------------------------------------------------------------------------
// CLOB API DTOs
// --------------------------------------------------------------------------

// APILevel is a raw price level. The CLOB sends prices and sizes as decimal
// strings.
type APILevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// APIBook is the raw orderbook response from GET /book.
type APIBook struct {
	Market  string     `json:"market"`
	AssetID string     `json:"asset_id"`
	Bids    []APILevel `json:"bids"`
	Asks    []APILevel `json:"asks"`
	Hash    string     `json:"hash"`
}

// ToDomainSnapshot converts the raw book into a normalized snapshot with
// derived best-bid/best-ask/spread. Levels that fail to parse are dropped.
func (b APIBook) ToDomainSnapshot(tokenID string) domain.OrderBookSnapshot {
	return domain.NewOrderBookSnapshot(tokenID, toDomainLevels(b.Bids), toDomainLevels(b.Asks))
}

func toDomainLevels(raw []APILevel) []domain.PriceLevel {
	levels := make([]domain.PriceLevel, 0, len(raw))
	for _, lvl := range raw {
		price, err := decimal.NewFromString(lvl.Price)
		if err != nil {
			continue
		}
		size, err := decimal.NewFromString(lvl.Size)
		if err != nil {
			continue
		}
		levels = append(levels, domain.PriceLevel{Price: price, Size: size})
	}
	return levels
}

// APIOrder represents an open order as returned by the CLOB API.
type APIOrder struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	MarketID     string `json:"market"`
	AssetID      string `json:"asset_id"`
	Side         string `json:"side"` // "BUY" or "SELL"
	OriginalSize string `json:"original_size"`
	SizeMatched  string `json:"size_matched"`
	Price        string `json:"price"`
	Owner        string `json:"owner"`
	Expiration   string `json:"expiration"`
	OrderType    string `json:"order_type"`
	CreatedAt    int64  `json:"created_at"`
}

// ToDomainOrder converts the DTO into a domain order. Unparseable decimal
// fields become zero.
func (o APIOrder) ToDomainOrder() domain.Order {
	price, _ := decimal.NewFromString(o.Price)
	size, _ := decimal.NewFromString(o.OriginalSize)
	filled, _ := decimal.NewFromString(o.SizeMatched)

	return domain.Order{
		ID:         o.ID,
		TokenID:    o.AssetID,
		Side:       domain.OrderSide(strings.ToUpper(o.Side)),
		Price:      price,
		Size:       size,
		SizeFilled: filled,
		Status:     o.Status,
		CreatedAt:  time.Unix(o.CreatedAt, 0).UTC(),
	}
}

// APIOrderResult is the response from placing an order via the CLOB API.
type APIOrderResult struct {
	Success     bool   `json:"success"`
	ErrorMsg    string `json:"errorMsg,omitempty"`
	OrderID     string `json:"orderID,omitempty"`
	Status      string `json:"status,omitempty"`
	TransactID  string `json:"transactID,omitempty"`
	ShouldRetry bool   `json:"shouldRetry,omitempty"`
}

// ToDomainResult converts the DTO into a domain order result.
func (r APIOrderResult) ToDomainResult() domain.OrderResult {
	msg := r.ErrorMsg
	if r.Success && msg == "" {
		msg = "order placed"
	}
	return domain.OrderResult{
		OrderID: r.OrderID,
		Success: r.Success,
		Message: msg,
	}
}

// APIBalanceAllowance is the raw response from GET /balance-allowance.
// Both fields are 6-decimal fixed-point integers encoded as strings.
type APIBalanceAllowance struct {
	Balance   string `json:"balance"`
	Allowance string `json:"allowance"`
}

// APITrade represents one execution as returned by GET /trades.
type APITrade struct {
	ID         string `json:"id"`
	MarketID   string `json:"market"`
	AssetID    string `json:"asset_id"`
	Side       string `json:"side"`
	Price      string `json:"price"`
	Size       string `json:"size"`
	FeeRateBps string `json:"fee_rate_bps"`
	Status     string `json:"status"`
	MatchTime  string `json:"match_time"` // unix seconds as string
}

// ToDomainTrade converts the DTO into a domain trade.
func (t APITrade) ToDomainTrade() domain.Trade {
	price, _ := decimal.NewFromString(t.Price)
	size, _ := decimal.NewFromString(t.Size)

	var ts time.Time
	if secs, err := strconv.ParseInt(t.MatchTime, 10, 64); err == nil {
		ts = time.Unix(secs, 0).UTC()
	}

	// fee = feeRateBps/10000 * price * size
	var fee decimal.Decimal
	if bps, err := decimal.NewFromString(t.FeeRateBps); err == nil {
		fee = bps.Div(decimal.NewFromInt(10_000)).Mul(price).Mul(size)
	}

	return domain.Trade{
		ID:        t.ID,
		TokenID:   t.AssetID,
		Side:      domain.OrderSide(strings.ToUpper(t.Side)),
		Price:     price,
		Size:      size,
		FeeUSD:    fee,
		Status:    t.Status,
		Timestamp: ts,
	}
}

// --------------------------------------------------------------------------
// Gamma API DTOs
// --------------------------------------------------------------------------

// APIToken is one outcome token inside a Gamma market.
type APIToken struct {
	TokenID string  `json:"token_id"`
	Outcome string  `json:"outcome"`
	Price   float64 `json:"price"`
	Winner  bool    `json:"winner"`
}

// APIMarket represents a market as returned by the Gamma API.
type APIMarket struct {
	ID          string     `json:"id"`
	Question    string     `json:"question"`
	Slug        string     `json:"slug"`
	ConditionID string     `json:"conditionId"`
	Category    string     `json:"category"`
	Active      flexBool   `json:"active"`
	Closed      flexBool   `json:"closed"`
	Archived    flexBool   `json:"archived"`
	Volume      string     `json:"volume"`
	Liquidity   string     `json:"liquidity"`
	EndDate     string     `json:"endDate"`
	Tokens      []APIToken `json:"tokens"`
}

// ToDomainMarket converts the DTO into a domain market. Numeric strings that
// fail to parse become zero; a malformed end date becomes the zero time.
func (m APIMarket) ToDomainMarket() domain.Market {
	volume, _ := strconv.ParseFloat(m.Volume, 64)
	liquidity, _ := strconv.ParseFloat(m.Liquidity, 64)
	endDate, _ := time.Parse(time.RFC3339, m.EndDate)

	tokens := make([]domain.MarketToken, 0, len(m.Tokens))
	for _, t := range m.Tokens {
		tokens = append(tokens, domain.MarketToken{
			TokenID: t.TokenID,
			Outcome: t.Outcome,
			Price:   t.Price,
			Winner:  t.Winner,
		})
	}

	return domain.Market{
		ID:          m.ID,
		Question:    m.Question,
		Slug:        m.Slug,
		ConditionID: m.ConditionID,
		Category:    m.Category,
		Active:      bool(m.Active),
		Closed:      bool(m.Closed),
		Archived:    bool(m.Archived),
		Volume:      volume,
		Liquidity:   liquidity,
		EndDate:     endDate,
		Tokens:      tokens,
	}
}
