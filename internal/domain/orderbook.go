package domain

import "github.com/shopspring/decimal"

// PriceLevel is a single price+size entry in an orderbook.
type PriceLevel struct {
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
}

// OrderBookSnapshot is a normalized view of the CLOB book for one outcome
// token. BestBid is the maximum bid price (zero when the bid side is empty)
// and BestAsk is the minimum ask price (zero when the ask side is empty).
// Spread is BestAsk - BestBid and may be negative for a one-sided book;
// callers that need a liquidity signal must check both sides themselves.
type OrderBookSnapshot struct {
	TokenID string          `json:"tokenId"`
	BestBid decimal.Decimal `json:"bestBid"`
	BestAsk decimal.Decimal `json:"bestAsk"`
	Spread  decimal.Decimal `json:"spread"`
	Bids    []PriceLevel    `json:"bids"`
	Asks    []PriceLevel    `json:"asks"`
}

// NewOrderBookSnapshot derives the best-bid/best-ask/spread fields from raw
// levels. The input slices are kept as-is; no ordering is assumed.
func NewOrderBookSnapshot(tokenID string, bids, asks []PriceLevel) OrderBookSnapshot {
	snap := OrderBookSnapshot{
		TokenID: tokenID,
		Bids:    bids,
		Asks:    asks,
	}

	for _, lvl := range bids {
		if lvl.Price.GreaterThan(snap.BestBid) {
			snap.BestBid = lvl.Price
		}
	}

	for i, lvl := range asks {
		if i == 0 || lvl.Price.LessThan(snap.BestAsk) {
			snap.BestAsk = lvl.Price
		}
	}

	snap.Spread = snap.BestAsk.Sub(snap.BestBid)
	return snap
}

// Quote is the derived bid/ask summary for one outcome token.
// SpreadPercentage is spread/bestBid*100 formatted to three decimals; when
// BestBid is zero the percentage is undefined and "0.000" is emitted so the
// field stays present and deterministic.
type Quote struct {
	TokenID          string          `json:"tokenId"`
	BestBid          decimal.Decimal `json:"bestBid"`
	BestAsk          decimal.Decimal `json:"bestAsk"`
	Spread           decimal.Decimal `json:"spread"`
	SpreadPercentage string          `json:"spreadPercentage"`
}

// DeriveQuote computes a Quote from an orderbook snapshot.
func DeriveQuote(snap OrderBookSnapshot) Quote {
	q := Quote{
		TokenID:          snap.TokenID,
		BestBid:          snap.BestBid,
		BestAsk:          snap.BestAsk,
		Spread:           snap.Spread,
		SpreadPercentage: "0.000",
	}

	if !snap.BestBid.IsZero() {
		pct := snap.Spread.Div(snap.BestBid).Mul(decimal.NewFromInt(100))
		q.SpreadPercentage = pct.StringFixed(3)
	}

	return q
}
