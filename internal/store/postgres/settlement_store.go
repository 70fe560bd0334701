package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ghost-db/flowpay/internal/domain"
)

// SettlementStore implements domain.SettlementStore using PostgreSQL.
type SettlementStore struct {
	pool *pgxpool.Pool
}

// NewSettlementStore creates a SettlementStore backed by the given pool.
func NewSettlementStore(pool *pgxpool.Pool) *SettlementStore {
	return &SettlementStore{pool: pool}
}

// Insert appends one settled payment. Duplicate nonces are skipped via
// ON CONFLICT DO NOTHING; the replay guard already rejected the request
// path, so a conflict here only means a retried ledger write.
func (s *SettlementStore) Insert(ctx context.Context, rec domain.Settlement) error {
	const query = `
		INSERT INTO settlements (
			id, route, payer, pay_to, asset, amount, network, tx_hash, nonce, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (nonce) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		rec.ID, rec.Route, rec.Payer, rec.PayTo, rec.Asset,
		rec.Amount, rec.Network, rec.TxHash, rec.Nonce, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert settlement: %w", err)
	}
	return nil
}

// ListRecent returns the newest settlements, most recent first.
func (s *SettlementStore) ListRecent(ctx context.Context, limit int) ([]domain.Settlement, error) {
	if limit <= 0 {
		limit = 50
	}

	const query = `
		SELECT id, route, payer, pay_to, asset, amount, network, tx_hash, nonce, created_at
		FROM settlements
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list settlements: %w", err)
	}
	defer rows.Close()

	var out []domain.Settlement
	for rows.Next() {
		var rec domain.Settlement
		if err := rows.Scan(
			&rec.ID, &rec.Route, &rec.Payer, &rec.PayTo, &rec.Asset,
			&rec.Amount, &rec.Network, &rec.TxHash, &rec.Nonce, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan settlement: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate settlements: %w", err)
	}

	return out, nil
}

// Compile-time interface check.
var _ domain.SettlementStore = (*SettlementStore)(nil)
