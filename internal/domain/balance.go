package domain

import "github.com/shopspring/decimal"

// Balance is the collateral (USDC) balance and exchange allowance for the
// gateway wallet, scaled from the CLOB's 6-decimal integer representation.
type Balance struct {
	BalanceUSD   decimal.Decimal `json:"balance"`
	AllowanceUSD decimal.Decimal `json:"allowance"`
}

// TokenBalance is the per-outcome-token variant of Balance.
type TokenBalance struct {
	TokenID      string          `json:"tokenId"`
	BalanceUSD   decimal.Decimal `json:"balance"`
	AllowanceUSD decimal.Decimal `json:"allowance"`
}
