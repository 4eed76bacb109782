package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"
	"time"
)

type stubReader struct {
	backing *big.Int
	supply  *big.Int
	err     error

	backingCalls int
	supplyCalls  int
}

func (r *stubReader) Backing(ctx context.Context) (*big.Int, error) {
	r.backingCalls++
	if r.err != nil {
		return nil, r.err
	}
	return new(big.Int).Set(r.backing), nil
}

func (r *stubReader) TotalSupply(ctx context.Context) (*big.Int, error) {
	r.supplyCalls++
	if r.err != nil {
		return nil, r.err
	}
	return new(big.Int).Set(r.supply), nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newCached(t *testing.T, backing, supply int64) *CurveState {
	t.Helper()
	c := NewCurveState(&stubReader{backing: big.NewInt(backing), supply: big.NewInt(supply)},
		5*time.Second, discard())
	c.RefreshIfStale(context.Background())
	return c
}

func TestEstimateIntermediateOutFormula(t *testing.T) {
	tests := []struct {
		name             string
		backing, supply  int64
		assetIn          int64
		want             int64
	}{
		{"exact division", 1000, 2000, 200, 500},      // 200*2000/(1000-200)
		{"floor division", 1000, 3000, 100, 333},      // 100*3000/900 = 333.33
		{"asset equals backing", 1000, 2000, 1000, 0}, // no liquidity left
		{"asset exceeds backing", 1000, 2000, 1500, 0},
		{"tiny amount floors to zero", 1000, 1, 1, 0}, // 1*1/999
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCached(t, tt.backing, tt.supply)
			got := c.EstimateIntermediateOut(big.NewInt(tt.assetIn))
			if got.Cmp(big.NewInt(tt.want)) != 0 {
				t.Errorf("EstimateIntermediateOut(%d) = %s, want %d", tt.assetIn, got, tt.want)
			}
		})
	}
}

func TestEstimateAssetOutFormula(t *testing.T) {
	tests := []struct {
		name            string
		backing, supply int64
		intermediateIn  int64
		want            int64
	}{
		{"exact division", 1000, 2000, 500, 250}, // 500*1000/2000
		{"floor division", 999, 1000, 7, 6},      // 7*999/1000 = 6.993
		{"zero supply", 1000, 0, 500, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCached(t, tt.backing, tt.supply)
			got := c.EstimateAssetOut(big.NewInt(tt.intermediateIn))
			if got.Cmp(big.NewInt(tt.want)) != 0 {
				t.Errorf("EstimateAssetOut(%d) = %s, want %d", tt.intermediateIn, got, tt.want)
			}
		})
	}
}

func TestEstimatesZeroBeforeFirstRefresh(t *testing.T) {
	c := NewCurveState(&stubReader{backing: big.NewInt(1000), supply: big.NewInt(2000)},
		5*time.Second, discard())

	if got := c.EstimateIntermediateOut(big.NewInt(100)); got.Sign() != 0 {
		t.Errorf("unpopulated cache priced intermediate out as %s", got)
	}
	if got := c.EstimateAssetOut(big.NewInt(100)); got.Sign() != 0 {
		t.Errorf("unpopulated cache priced asset out as %s", got)
	}
}

func TestRefreshIfStaleHonorsTTL(t *testing.T) {
	reader := &stubReader{backing: big.NewInt(1000), supply: big.NewInt(2000)}
	c := NewCurveState(reader, 5*time.Second, discard())

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	c.SetClock(func() time.Time { return now })

	ctx := context.Background()
	c.RefreshIfStale(ctx)
	c.RefreshIfStale(ctx)
	c.RefreshIfStale(ctx)
	if reader.backingCalls != 1 || reader.supplyCalls != 1 {
		t.Errorf("reads within TTL = %d/%d, want 1/1", reader.backingCalls, reader.supplyCalls)
	}

	// Exactly at the TTL the entry is still fresh.
	now = base.Add(5 * time.Second)
	c.RefreshIfStale(ctx)
	if reader.backingCalls != 1 {
		t.Errorf("read at exactly the TTL boundary, want none")
	}

	now = base.Add(5*time.Second + time.Millisecond)
	c.RefreshIfStale(ctx)
	if reader.backingCalls != 2 {
		t.Errorf("reads after TTL = %d, want 2", reader.backingCalls)
	}
}

func TestRefreshFailureKeepsPreviousValues(t *testing.T) {
	reader := &stubReader{backing: big.NewInt(1000), supply: big.NewInt(2000)}
	c := NewCurveState(reader, time.Nanosecond, discard())

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	c.SetClock(func() time.Time { return now })

	ctx := context.Background()
	c.RefreshIfStale(ctx)

	reader.err = errors.New("rpc down")
	now = base.Add(time.Second)
	c.RefreshIfStale(ctx)

	if got := c.EstimateAssetOut(big.NewInt(500)); got.Cmp(big.NewInt(250)) != 0 {
		t.Errorf("after failed refresh estimate = %s, want previous-state 250", got)
	}
	if !c.LastRefresh().Equal(base) {
		t.Errorf("failed refresh moved LastRefresh to %s", c.LastRefresh())
	}
}
