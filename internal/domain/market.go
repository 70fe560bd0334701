package domain

import "time"

// MarketToken names one outcome of a market and its CLOB token identifier.
type MarketToken struct {
	TokenID string  `json:"tokenId"`
	Outcome string  `json:"outcome"`
	Price   float64 `json:"price"`
	Winner  bool    `json:"winner"`
}

// Market is prediction-market metadata from the public Gamma API.
type Market struct {
	ID          string        `json:"id"`
	Question    string        `json:"question"`
	Slug        string        `json:"slug"`
	ConditionID string        `json:"conditionId"`
	Category    string        `json:"category"`
	Active      bool          `json:"active"`
	Closed      bool          `json:"closed"`
	Archived    bool          `json:"archived"`
	Volume      float64       `json:"volume"`
	Liquidity   float64       `json:"liquidity"`
	EndDate     time.Time     `json:"endDate"`
	Tokens      []MarketToken `json:"tokens"`
}

// MarketFilter narrows a market listing. Nil booleans are not sent upstream.
type MarketFilter struct {
	Active   *bool
	Closed   *bool
	Archived *bool
	Limit    int
}
