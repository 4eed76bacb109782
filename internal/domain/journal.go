package domain

import (
	"context"
	"math/big"
	"time"
)

// AttemptRecord is one settled execution attempt, successful or not. Records
// are append-only audit rows; the engine never reads them back for its own
// decisions.
type AttemptRecord struct {
	ID             string
	Direction      Direction
	AmountWei      *big.Int
	ExpectedProfit *big.Int
	TxHash         string
	GasUsed        uint64
	GasPriceWei    *big.Int
	Success        bool
	FailureReason  string
	CreatedAt      time.Time
}

// AttemptStore persists execution attempts.
type AttemptStore interface {
	Insert(ctx context.Context, rec AttemptRecord) error
	ListRecent(ctx context.Context, limit int) ([]AttemptRecord, error)
}

// LockManager provides process-exclusive distributed locks. The engine holds
// one lock per signing key so two instances never race the account nonce.
type LockManager interface {
	// Acquire obtains the lock or returns ErrLockHeld. The returned release
	// function is safe to call multiple times.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}
