package gas

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"
)

type stubPriceSource struct {
	price *big.Int
	err   error
}

func (s *stubPriceSource) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return s.price, s.err
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGasPriceNormalMarkup(t *testing.T) {
	e := NewEstimator(&stubPriceSource{price: big.NewInt(1000)}, discard())

	price, err := e.GasPrice(context.Background())
	if err != nil {
		t.Fatalf("GasPrice: %v", err)
	}
	if price.Cmp(big.NewInt(1100)) != 0 {
		t.Errorf("price = %s, want 1100 (1.1x markup)", price)
	}
}

func TestGasPriceCongestedMarkup(t *testing.T) {
	e := NewEstimator(&stubPriceSource{price: big.NewInt(1000)}, discard())

	// Six samples whose recent average far exceeds 1.5x the base fee.
	for i := 0; i < 6; i++ {
		e.RecordActual(10_000)
	}

	price, err := e.GasPrice(context.Background())
	if err != nil {
		t.Fatalf("GasPrice: %v", err)
	}
	if price.Cmp(big.NewInt(1300)) != 0 {
		t.Errorf("price = %s, want 1300 (1.3x markup under congestion)", price)
	}
}

func TestGasPriceSourceError(t *testing.T) {
	wantErr := errors.New("rpc down")
	e := NewEstimator(&stubPriceSource{err: wantErr}, discard())

	if _, err := e.GasPrice(context.Background()); !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
}

func TestEstimatedGasUsedDefaultsUntilEnoughSamples(t *testing.T) {
	e := NewEstimator(&stubPriceSource{price: big.NewInt(1)}, discard())

	if got := e.EstimatedGasUsed(); got != 600_000 {
		t.Fatalf("initial estimate = %d, want 600000", got)
	}

	e.RecordActual(100)
	e.RecordActual(200)
	e.RecordActual(300)
	if got := e.EstimatedGasUsed(); got != 600_000 {
		t.Errorf("estimate with 3 samples = %d, want default 600000", got)
	}

	e.RecordActual(400)
	if got := e.EstimatedGasUsed(); got != 400 {
		t.Errorf("p90 of [100 200 300 400] = %d, want 400", got)
	}
}

func TestRecordActualEvictsOldest(t *testing.T) {
	e := NewEstimator(&stubPriceSource{price: big.NewInt(1)}, discard())

	// Fill the window with high observations, then push them out with low
	// ones; the estimate must follow the surviving samples.
	for i := 0; i < 20; i++ {
		e.RecordActual(900_000)
	}
	for i := 0; i < 20; i++ {
		e.RecordActual(100_000)
	}
	if got := e.EstimatedGasUsed(); got != 100_000 {
		t.Errorf("estimate after eviction = %d, want 100000", got)
	}
}

func TestPercentileNearestRank(t *testing.T) {
	tests := []struct {
		values []uint64
		p      int
		want   uint64
	}{
		{[]uint64{100, 200, 300, 400}, 90, 400},
		{[]uint64{400, 100, 300, 200}, 90, 400},
		{[]uint64{100, 200, 300, 400, 500, 600, 700, 800, 900, 1000}, 90, 900},
		{[]uint64{42}, 90, 42},
		{[]uint64{5, 1, 9}, 50, 5},
	}
	for _, tt := range tests {
		if got := percentile(tt.values, tt.p); got != tt.want {
			t.Errorf("percentile(%v, %d) = %d, want %d", tt.values, tt.p, got, tt.want)
		}
	}
}

func TestEstimatedCost(t *testing.T) {
	e := NewEstimator(&stubPriceSource{price: big.NewInt(100)}, discard())

	cost, err := e.EstimatedCost(context.Background())
	if err != nil {
		t.Fatalf("EstimatedCost: %v", err)
	}
	// 100 * 1.1 = 110 per gas, default 600000 gas.
	want := new(big.Int).Mul(big.NewInt(110), big.NewInt(600_000))
	if cost.Cmp(want) != 0 {
		t.Errorf("cost = %s, want %s", cost, want)
	}
}
