package postgres

import (
	"context"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/0xlarry/basearb/internal/domain"
)

// AttemptStore implements domain.AttemptStore using PostgreSQL. Wei amounts
// are stored as NUMERIC and moved through the driver as decimal strings so
// they survive uint256 magnitudes.
type AttemptStore struct {
	pool *pgxpool.Pool
}

// NewAttemptStore creates a new AttemptStore backed by the given connection
// pool.
func NewAttemptStore(pool *pgxpool.Pool) *AttemptStore {
	return &AttemptStore{pool: pool}
}

// Insert appends one execution attempt.
func (s *AttemptStore) Insert(ctx context.Context, rec domain.AttemptRecord) error {
	const query = `
		INSERT INTO attempts
			(id, direction, amount_wei, expected_profit, tx_hash, gas_used,
			 gas_price_wei, success, failure_reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.pool.Exec(ctx, query,
		rec.ID,
		string(rec.Direction),
		numeric(rec.AmountWei),
		numeric(rec.ExpectedProfit),
		rec.TxHash,
		int64(rec.GasUsed),
		numeric(rec.GasPriceWei),
		rec.Success,
		rec.FailureReason,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert attempt %s: %w", rec.ID, err)
	}
	return nil
}

// ListRecent returns up to limit attempts, newest first.
func (s *AttemptStore) ListRecent(ctx context.Context, limit int) ([]domain.AttemptRecord, error) {
	const query = `
		SELECT id, direction, amount_wei::TEXT, expected_profit::TEXT, tx_hash,
		       gas_used, gas_price_wei::TEXT, success, failure_reason, created_at
		FROM attempts
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list attempts: %w", err)
	}
	defer rows.Close()

	var out []domain.AttemptRecord
	for rows.Next() {
		var (
			rec                         domain.AttemptRecord
			direction                   string
			amountStr, profitStr, gpStr string
			gasUsed                     int64
		)
		if err := rows.Scan(&rec.ID, &direction, &amountStr, &profitStr, &rec.TxHash,
			&gasUsed, &gpStr, &rec.Success, &rec.FailureReason, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan attempt: %w", err)
		}
		rec.Direction = domain.Direction(direction)
		rec.GasUsed = uint64(gasUsed)
		rec.AmountWei = parseNumeric(amountStr)
		rec.ExpectedProfit = parseNumeric(profitStr)
		rec.GasPriceWei = parseNumeric(gpStr)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate attempts: %w", err)
	}
	return out, nil
}

func numeric(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseNumeric(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return new(big.Int)
	}
	return v
}

// Compile-time interface check.
var _ domain.AttemptStore = (*AttemptStore)(nil)
