package domain

import (
	"context"
	"time"
)

// Settlement is one settled micropayment, recorded for audit after the
// facilitator confirms on-chain settlement. Amount is in atomic units of the
// payment asset.
type Settlement struct {
	ID        string    `json:"id"`
	Route     string    `json:"route"` // "METHOD /path" as priced
	Payer     string    `json:"payer"`
	PayTo     string    `json:"payTo"`
	Asset     string    `json:"asset"`
	Amount    string    `json:"amount"`
	Network   string    `json:"network"`
	TxHash    string    `json:"txHash"`
	Nonce     string    `json:"nonce"`
	CreatedAt time.Time `json:"createdAt"`
}

// SettlementStore persists settled payments.
type SettlementStore interface {
	Insert(ctx context.Context, s Settlement) error
	ListRecent(ctx context.Context, limit int) ([]Settlement, error)
}
