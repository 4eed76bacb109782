package engine

import (
	"context"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/0xlarry/basearb/internal/chain"
	"github.com/0xlarry/basearb/internal/domain"
)

// With profit monotonically increasing in the principal, every sampled
// bracket is fully profitable, the interval walks upward, and the best
// opportunity seen is the bracket maximum.
func TestRefineMonotonicProfit(t *testing.T) {
	routes := &stubRoutes{fn: func(tokenIn, tokenOut string, amountIn *big.Int) (*domain.Route, error) {
		return &domain.Route{AmountOut: big.NewInt(1000), Summary: json.RawMessage(`{}`)}, nil
	}}
	curve := &stubCurve{
		assetOut: func(*big.Int) *big.Int { return big.NewInt(1) },
	}
	sim := &stubSim{fn: func(amountIn, counterLeg *big.Int, direction bool) (chain.SimulationResult, error) {
		return chain.SimulationResult{
			WouldExecute:   true,
			ExpectedReturn: new(big.Int).Set(amountIn),
			ExpectedProfit: new(big.Int).Div(amountIn, big.NewInt(1_000_000_000)),
		}, nil
	}}

	s, _ := newSearcher(routes, curve, sim, 0)
	lo := big.NewInt(1_000_000_000_000_000)
	hi := big.NewInt(2_000_000_000_000_000)

	best := s.Refine(context.Background(), domain.DirectionAggregatorFirst, lo, hi)
	if best == nil {
		t.Fatal("expected a refined opportunity")
	}
	if best.AmountWei.Cmp(hi) != 0 {
		t.Errorf("best principal = %s, want the bracket maximum %s", best.AmountWei, hi)
	}
	if best.Direction != domain.DirectionAggregatorFirst {
		t.Errorf("direction = %s", best.Direction)
	}

	// Refinement was asked for one ordering only.
	for _, call := range sim.calls {
		if !call.direction {
			t.Fatal("curve-first ordering simulated during aggregator-first refinement")
		}
	}
}

func TestRefineNothingProfitable(t *testing.T) {
	routes := &stubRoutes{fn: func(tokenIn, tokenOut string, amountIn *big.Int) (*domain.Route, error) {
		return &domain.Route{AmountOut: big.NewInt(1000), Summary: json.RawMessage(`{}`)}, nil
	}}
	curve := &stubCurve{
		assetOut: func(*big.Int) *big.Int { return big.NewInt(1) },
	}
	sim := &stubSim{fn: func(amountIn, counterLeg *big.Int, direction bool) (chain.SimulationResult, error) {
		return chain.SimulationResult{WouldExecute: false}, nil
	}}

	s, _ := newSearcher(routes, curve, sim, 0)
	best := s.Refine(context.Background(), domain.DirectionAggregatorFirst,
		big.NewInt(1_000_000_000_000_000), big.NewInt(2_000_000_000_000_000))
	if best != nil {
		t.Fatalf("expected nil, got %s", best)
	}
}

// An interval already narrower than the convergence epsilon is not sampled
// at all.
func TestRefineSkipsNarrowInterval(t *testing.T) {
	routes := &stubRoutes{fn: func(tokenIn, tokenOut string, amountIn *big.Int) (*domain.Route, error) {
		t.Error("no quotes expected for a converged interval")
		return nil, nil
	}}
	curve := &stubCurve{}
	sim := &stubSim{fn: func(amountIn, counterLeg *big.Int, direction bool) (chain.SimulationResult, error) {
		return chain.SimulationResult{}, nil
	}}

	s, _ := newSearcher(routes, curve, sim, 0)
	lo := big.NewInt(1_000_000_000_000_000)
	hi := new(big.Int).Add(lo, refineEpsilonWei) // width exactly epsilon

	if best := s.Refine(context.Background(), domain.DirectionAggregatorFirst, lo, hi); best != nil {
		t.Fatalf("expected nil, got %s", best)
	}
	if curve.refreshes != 0 {
		t.Errorf("refreshes = %d, want 0", curve.refreshes)
	}
}

// Refinement is bounded: even when the narrowing rule cannot shrink the
// interval, the iteration cap terminates it and the best seen is returned.
func TestRefineIterationBound(t *testing.T) {
	routes := &stubRoutes{fn: func(tokenIn, tokenOut string, amountIn *big.Int) (*domain.Route, error) {
		return &domain.Route{AmountOut: big.NewInt(1000), Summary: json.RawMessage(`{}`)}, nil
	}}
	curve := &stubCurve{
		assetOut: func(*big.Int) *big.Int { return big.NewInt(1) },
	}
	// Only the exact midpoint of the initial bracket is profitable, so the
	// narrowing rule keeps the full interval every iteration.
	mid := big.NewInt(1_500_000_000_000_000)
	sim := &stubSim{fn: func(amountIn, counterLeg *big.Int, direction bool) (chain.SimulationResult, error) {
		if amountIn.Cmp(mid) != 0 {
			return chain.SimulationResult{WouldExecute: false}, nil
		}
		return chain.SimulationResult{
			WouldExecute:   true,
			ExpectedReturn: new(big.Int).Set(amountIn),
			ExpectedProfit: big.NewInt(42),
		}, nil
	}}

	s, _ := newSearcher(routes, curve, sim, 0)
	best := s.Refine(context.Background(), domain.DirectionAggregatorFirst,
		big.NewInt(1_000_000_000_000_000), big.NewInt(2_000_000_000_000_000))
	if best == nil {
		t.Fatal("expected the midpoint opportunity")
	}
	if best.AmountWei.Cmp(mid) != 0 {
		t.Errorf("best principal = %s, want %s", best.AmountWei, mid)
	}
	// Ten iterations, three samples each.
	if got := curve.refreshes; got != refineMaxIterations {
		t.Errorf("evaluation passes = %d, want %d", got, refineMaxIterations)
	}
}
