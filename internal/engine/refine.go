package engine

import (
	"context"
	"log/slog"
	"math/big"

	"github.com/0xlarry/basearb/internal/domain"
)

const refineMaxIterations = 10

// refineEpsilonWei stops the refinement once the bracketing interval is
// narrower than 0.0001 ETH.
var refineEpsilonWei = big.NewInt(100_000_000_000_000)

// Refine narrows a bracketing interval around the most profitable amount
// for one direction by repeatedly sampling {min, mid, max}. It is a
// best-effort optimization over the coarse grid search: the narrowing rule
// is heuristic and bounded, and the best opportunity seen across all
// iterations is returned even when the interval fails to converge.
func (s *Searcher) Refine(ctx context.Context, dir domain.Direction, minWei, maxWei *big.Int) *domain.Opportunity {
	lo := new(big.Int).Set(minWei)
	hi := new(big.Int).Set(maxWei)

	var best *domain.Opportunity

	for iter := 0; iter < refineMaxIterations; iter++ {
		width := new(big.Int).Sub(hi, lo)
		if width.Cmp(refineEpsilonWei) <= 0 {
			break
		}
		if ctx.Err() != nil {
			break
		}

		mid := new(big.Int).Add(lo, hi)
		mid.Div(mid, big.NewInt(2))
		amounts := []*big.Int{new(big.Int).Set(lo), mid, new(big.Int).Set(hi)}

		opps := s.evaluate(ctx, amounts, dir)
		if len(opps) == 0 {
			break
		}

		if best == nil || opps[0].ExpectedProfit.Cmp(best.ExpectedProfit) > 0 {
			best = opps[0]
		}

		profitable := func(amount *big.Int) bool {
			for _, o := range opps {
				if o.AmountWei.Cmp(amount) == 0 {
					return true
				}
			}
			return false
		}

		switch countProfitable(amounts, profitable) {
		case 3:
			// The whole bracket is profitable; search higher.
			lo.Set(amounts[1])
		case 2:
			if profitable(amounts[0]) && profitable(amounts[1]) {
				// Ambiguous branch: the boundary between profitable and
				// unprofitable lies in the upper half, but the rule keeps
				// the bracket as-is and relies on the iteration bound.
				hi.Set(amounts[2])
			} else {
				lo.Set(amounts[0])
				hi.Set(amounts[1])
			}
		case 1:
			switch {
			case profitable(amounts[0]):
				hi.Set(amounts[1])
			case profitable(amounts[2]):
				lo.Set(amounts[1])
			default:
				// Middle point profitable; keep both sides in play.
				lo.Set(amounts[0])
				hi.Set(amounts[2])
			}
		}
	}

	if best != nil {
		s.logger.Debug("refinement finished",
			slog.String("direction", string(dir)),
			slog.String("best", best.String()),
		)
	}
	return best
}

func countProfitable(amounts []*big.Int, profitable func(*big.Int) bool) int {
	n := 0
	for _, a := range amounts {
		if profitable(a) {
			n++
		}
	}
	return n
}
