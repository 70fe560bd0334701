package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestOrderRequestValidate(t *testing.T) {
	valid := OrderRequest{
		TokenID: "123456",
		Price:   dec("0.55"),
		Size:    dec("10"),
		Side:    OrderSideBuy,
	}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*OrderRequest)
	}{
		{"missing token id", func(r *OrderRequest) { r.TokenID = "" }},
		{"price zero", func(r *OrderRequest) { r.Price = decimal.Zero }},
		{"price one", func(r *OrderRequest) { r.Price = dec("1") }},
		{"price negative", func(r *OrderRequest) { r.Price = dec("-0.1") }},
		{"price above one", func(r *OrderRequest) { r.Price = dec("1.5") }},
		{"size zero", func(r *OrderRequest) { r.Size = decimal.Zero }},
		{"size negative", func(r *OrderRequest) { r.Size = dec("-5") }},
		{"unknown side", func(r *OrderRequest) { r.Side = "HOLD" }},
		{"empty side", func(r *OrderRequest) { r.Side = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)

			err := req.Validate()
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}
