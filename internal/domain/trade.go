package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is one execution for the gateway wallet as reported by the CLOB.
type Trade struct {
	ID        string          `json:"id"`
	TokenID   string          `json:"tokenId"`
	Side      OrderSide       `json:"side"`
	Price     decimal.Decimal `json:"price"`
	Size      decimal.Decimal `json:"size"`
	FeeUSD    decimal.Decimal `json:"fee"`
	Status    string          `json:"status"`
	Timestamp time.Time       `json:"timestamp"`
}
