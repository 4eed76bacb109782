// Package gas maintains a rolling window of observed gas consumption and
// derives a conservative price and cost estimate for the settlement
// transaction.
package gas

import (
	"context"
	"log/slog"
	"math/big"
	"sort"
	"sync"
)

const (
	// defaultGasUsed is the conservative starting estimate before any real
	// receipts have been observed.
	defaultGasUsed = 600_000

	// windowBound caps the sample window; oldest samples are evicted first.
	windowBound = 20

	// minSamples is the window size required before the percentile estimate
	// replaces the default.
	minSamples = 4

	// congestionLookback is how many recent samples feed the congestion
	// heuristic.
	congestionLookback = 5
)

// PriceSource supplies the venue's current base fee.
type PriceSource interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// Estimator tracks recent gas usage and recommends a marked-up gas price.
// The usage estimate trends toward the window's 90th percentile rather than
// the mean, so the transaction gas limit stays above recent worst cases.
type Estimator struct {
	source PriceSource
	logger *slog.Logger

	mu        sync.Mutex
	window    []uint64
	estimated uint64
}

// NewEstimator creates an Estimator reading base fees from source.
func NewEstimator(source PriceSource, logger *slog.Logger) *Estimator {
	return &Estimator{
		source:    source,
		logger:    logger.With(slog.String("component", "gas_estimator")),
		estimated: defaultGasUsed,
	}
}

// GasPrice returns the base fee with a congestion-dependent markup: 1.3x
// when the recent average usage exceeds 1.5x the base fee, 1.1x otherwise.
// On a source failure the unmarked base fee request error is returned.
func (e *Estimator) GasPrice(ctx context.Context) (*big.Int, error) {
	base, err := e.source.SuggestGasPrice(ctx)
	if err != nil {
		return nil, err
	}

	markupNum := int64(11)
	if e.congested(base) {
		markupNum = 13
	}

	price := new(big.Int).Mul(base, big.NewInt(markupNum))
	return price.Div(price, big.NewInt(10)), nil
}

// congested applies the congestion heuristic over the last few samples.
func (e *Estimator) congested(base *big.Int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.window) <= congestionLookback {
		return false
	}
	recent := e.window[len(e.window)-congestionLookback:]
	sum := new(big.Int)
	for _, v := range recent {
		sum.Add(sum, new(big.Int).SetUint64(v))
	}
	avg := sum.Div(sum, big.NewInt(congestionLookback))

	// avg > 1.5 * base  <=>  2*avg > 3*base
	lhs := new(big.Int).Mul(avg, big.NewInt(2))
	rhs := new(big.Int).Mul(base, big.NewInt(3))
	return lhs.Cmp(rhs) > 0
}

// EstimatedCost returns GasPrice multiplied by the current usage estimate.
func (e *Estimator) EstimatedCost(ctx context.Context) (*big.Int, error) {
	price, err := e.GasPrice(ctx)
	if err != nil {
		return nil, err
	}
	return price.Mul(price, new(big.Int).SetUint64(e.EstimatedGasUsed())), nil
}

// EstimatedGasUsed returns the current usage estimate, also used as the
// transaction gas limit.
func (e *Estimator) EstimatedGasUsed() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.estimated
}

// RecordActual appends a realized gas-used observation. Once enough samples
// exist, the estimate is recomputed as the nearest-rank 90th percentile of
// the window.
func (e *Estimator) RecordActual(gasUsed uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.window = append(e.window, gasUsed)
	if len(e.window) > windowBound {
		e.window = e.window[len(e.window)-windowBound:]
	}
	if len(e.window) < minSamples {
		return
	}

	e.estimated = percentile(e.window, 90)
	e.logger.Debug("gas estimate updated",
		slog.Uint64("estimated_gas_used", e.estimated),
		slog.Int("samples", len(e.window)),
	)
}

// percentile computes the nearest-rank p-th percentile of values.
func percentile(values []uint64, p int) uint64 {
	sorted := make([]uint64, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	rank := (p*len(sorted) + 99) / 100 // ceil(p/100 * n)
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}
