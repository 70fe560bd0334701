package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderType indicates the time-in-force policy. The gateway submits all
// orders as GTC.
type OrderType string

const (
	OrderTypeGTC OrderType = "GTC" // Good-Till-Cancelled
	OrderTypeGTD OrderType = "GTD" // Good-Till-Date
	OrderTypeFOK OrderType = "FOK" // Fill-Or-Kill
)

// OrderRequest is a validated request to place a limit order on one outcome
// token. Price must lie strictly inside (0,1) and size must be positive.
type OrderRequest struct {
	TokenID string          `json:"tokenId"`
	Price   decimal.Decimal `json:"price"`
	Size    decimal.Decimal `json:"size"`
	Side    OrderSide       `json:"side"`
}

var (
	priceFloor = decimal.Zero
	priceCeil  = decimal.NewFromInt(1)
)

// Validate checks the request invariants and returns a ErrValidation-wrapped
// error naming the first violated field.
func (r OrderRequest) Validate() error {
	if r.TokenID == "" {
		return fmt.Errorf("%w: tokenId is required", ErrValidation)
	}
	if !r.Price.GreaterThan(priceFloor) || !r.Price.LessThan(priceCeil) {
		return fmt.Errorf("%w: price must be between 0 and 1 exclusive, got %s", ErrValidation, r.Price)
	}
	if !r.Size.GreaterThan(decimal.Zero) {
		return fmt.Errorf("%w: size must be positive, got %s", ErrValidation, r.Size)
	}
	if r.Side != OrderSideBuy && r.Side != OrderSideSell {
		return fmt.Errorf("%w: side must be BUY or SELL, got %q", ErrValidation, r.Side)
	}
	return nil
}

// Order is an open order as reported by the CLOB.
type Order struct {
	ID         string          `json:"id"`
	TokenID    string          `json:"tokenId"`
	Side       OrderSide       `json:"side"`
	Price      decimal.Decimal `json:"price"`
	Size       decimal.Decimal `json:"size"`
	SizeFilled decimal.Decimal `json:"sizeFilled"`
	Status     string          `json:"status"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// OrderResult is the outcome of an order placement or cancellation. A remote
// business rejection is reported as Success=false with a message, never as
// an error.
type OrderResult struct {
	OrderID string `json:"orderId"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// CancelAllResult reports a bulk cancellation. Cancelled counts only the
// orders the CLOB acknowledged; Failed carries the IDs whose cancellation
// errored (those errors are logged, not raised).
type CancelAllResult struct {
	Cancelled int      `json:"cancelledCount"`
	Failed    []string `json:"-"`
}
