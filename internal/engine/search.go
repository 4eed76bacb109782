// Package engine contains the opportunity discovery loop, the amount
// optimizer, and the simulate-then-commit execution controller.
package engine

import (
	"context"
	"log/slog"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/0xlarry/basearb/internal/chain"
	"github.com/0xlarry/basearb/internal/domain"
)

// RouteSource fetches aggregator quotes. A nil route with nil error means
// "no route available this pass".
type RouteSource interface {
	GetRoute(ctx context.Context, tokenIn, tokenOut string, amountIn *big.Int) (*domain.Route, error)
}

// CurveQuoter prices the bonding-curve legs from cached state.
type CurveQuoter interface {
	RefreshIfStale(ctx context.Context)
	EstimateIntermediateOut(assetIn *big.Int) *big.Int
	EstimateAssetOut(intermediateIn *big.Int) *big.Int
}

// Simulator is the settlement contract's pre-flight simulation.
type Simulator interface {
	Simulate(ctx context.Context, amountIn, counterLeg *big.Int, direction bool) (chain.SimulationResult, error)
}

// SearchConfig parameterizes a Searcher.
type SearchConfig struct {
	AssetToken        string   // base asset address on the aggregator (ETH pseudo-address)
	IntermediateToken string   // intermediate token address
	MinProfitWei      *big.Int // simulated profit must exceed this
}

// Searcher drives the quote sources across candidate trade sizes and returns
// the most profitable trade that passes on-chain simulation.
type Searcher struct {
	routes RouteSource
	curve  CurveQuoter
	sim    Simulator
	stats  *domain.RunStats
	cfg    SearchConfig
	logger *slog.Logger
}

// NewSearcher creates a Searcher.
func NewSearcher(routes RouteSource, curve CurveQuoter, sim Simulator, stats *domain.RunStats, cfg SearchConfig, logger *slog.Logger) *Searcher {
	if cfg.MinProfitWei == nil {
		cfg.MinProfitWei = new(big.Int)
	}
	return &Searcher{
		routes: routes,
		curve:  curve,
		sim:    sim,
		stats:  stats,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "search")),
	}
}

// FindBest evaluates every candidate amount in both directions concurrently
// and returns the best simulated opportunity, or nil when none passes. The
// cache is refreshed once, synchronously, before the fan-out so every
// evaluation observes the same curve snapshot. Partial failures never cancel
// sibling evaluations.
func (s *Searcher) FindBest(ctx context.Context, amounts []*big.Int) (*domain.Opportunity, error) {
	if len(amounts) == 0 {
		return nil, nil
	}

	opps := s.evaluate(ctx, amounts, "")
	if len(opps) == 0 {
		return nil, nil
	}

	for i, opp := range opps {
		if i >= 3 {
			break
		}
		s.logger.Info("opportunity candidate", slog.String("opportunity", opp.String()))
	}
	return opps[0], nil
}

// evaluate runs the concurrent fan-out. When direction is non-empty, only
// that ordering is evaluated; both otherwise. Results are sorted by profit
// descending with ties broken by smaller principal.
func (s *Searcher) evaluate(ctx context.Context, amounts []*big.Int, direction domain.Direction) []*domain.Opportunity {
	directions := []domain.Direction{domain.DirectionAggregatorFirst, domain.DirectionCurveFirst}
	if direction != "" {
		directions = []domain.Direction{direction}
	}
	s.stats.RecordChecked(int64(len(amounts) * len(directions)))

	s.curve.RefreshIfStale(ctx)

	var (
		mu   sync.Mutex
		opps []*domain.Opportunity
	)
	g, ctx := errgroup.WithContext(ctx)
	for _, amount := range amounts {
		for _, dir := range directions {
			amount, dir := amount, dir
			g.Go(func() error {
				opp, err := s.checkOne(ctx, amount, dir)
				if err != nil {
					// Per-candidate failures are logged and dropped; they
					// must not abort sibling evaluations.
					s.logger.Debug("candidate evaluation failed",
						slog.String("direction", string(dir)),
						slog.String("amount_wei", amount.String()),
						slog.String("error", err.Error()),
					)
					return nil
				}
				if opp != nil {
					mu.Lock()
					opps = append(opps, opp)
					mu.Unlock()
				}
				return nil
			})
		}
	}
	_ = g.Wait()

	sort.Slice(opps, func(i, j int) bool {
		if c := opps[i].ExpectedProfit.Cmp(opps[j].ExpectedProfit); c != 0 {
			return c > 0
		}
		return opps[i].AmountWei.Cmp(opps[j].AmountWei) < 0
	})
	s.stats.RecordProfitable(int64(len(opps)))
	return opps
}

// checkOne evaluates a single (amount, direction) candidate. A nil result
// with nil error means the candidate is simply not viable this pass.
func (s *Searcher) checkOne(ctx context.Context, amountWei *big.Int, dir domain.Direction) (*domain.Opportunity, error) {
	var (
		intermediateOut *big.Int
		counterLeg      *big.Int
		summary         []byte
	)

	switch dir {
	case domain.DirectionAggregatorFirst:
		route, err := s.routes.GetRoute(ctx, s.cfg.AssetToken, s.cfg.IntermediateToken, amountWei)
		if err != nil {
			return nil, err
		}
		if route == nil {
			return nil, nil
		}
		intermediateOut = route.AmountOut
		summary = route.Summary

		// Cheap pre-filter: the curve must be able to price the reverse leg
		// at all before we spend a simulation call.
		if s.curve.EstimateAssetOut(intermediateOut).Sign() == 0 {
			return nil, nil
		}
		// The contract verifies the intermediate amount expected from the
		// aggregator leg.
		counterLeg = intermediateOut

	case domain.DirectionCurveFirst:
		intermediateOut = s.curve.EstimateIntermediateOut(amountWei)
		if intermediateOut.Sign() == 0 {
			return nil, nil
		}
		route, err := s.routes.GetRoute(ctx, s.cfg.IntermediateToken, s.cfg.AssetToken, intermediateOut)
		if err != nil {
			return nil, err
		}
		if route == nil {
			return nil, nil
		}
		summary = route.Summary
		// Here the contract verifies the asset amount expected back from
		// the aggregator leg.
		counterLeg = route.AmountOut

	default:
		return nil, nil
	}

	return s.simulate(ctx, amountWei, intermediateOut, counterLeg, summary, dir)
}

// simulate runs the on-chain simulation gate and assembles the opportunity.
func (s *Searcher) simulate(ctx context.Context, amountWei, intermediateOut, counterLeg *big.Int, summary []byte, dir domain.Direction) (*domain.Opportunity, error) {
	result, err := s.sim.Simulate(ctx, amountWei, counterLeg, dir.Flag())
	if err != nil {
		return nil, err
	}
	if !result.WouldExecute {
		return nil, nil
	}
	if result.ExpectedProfit == nil || result.ExpectedProfit.Cmp(s.cfg.MinProfitWei) <= 0 {
		return nil, nil
	}

	profitPct := 0.0
	if amountWei.Sign() > 0 {
		pf, _ := new(big.Float).Quo(
			new(big.Float).SetInt(result.ExpectedProfit),
			new(big.Float).SetInt(amountWei),
		).Float64()
		profitPct = pf * 100
	}

	return &domain.Opportunity{
		ID:              uuid.New().String(),
		Direction:       dir,
		AmountWei:       new(big.Int).Set(amountWei),
		IntermediateOut: intermediateOut,
		ExpectedReturn:  result.ExpectedReturn,
		ExpectedProfit:  result.ExpectedProfit,
		ProfitPct:       profitPct,
		RouteSummary:    summary,
		CreatedAt:       time.Now().UTC(),
	}, nil
}
