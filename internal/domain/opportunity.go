package domain

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// weiPerETH converts between wei and whole-ETH display units.
var weiPerETH = decimal.NewFromBigInt(big.NewInt(1), 18)

// Opportunity is a candidate round-trip trade found during a discovery pass.
// Its expected profit always comes from the settlement contract's simulation
// call, never from an off-chain estimate alone. Opportunities are created
// fresh each pass, never mutated, and discarded once the pass completes.
type Opportunity struct {
	ID              string
	Direction       Direction
	AmountWei       *big.Int // principal, smallest denomination
	IntermediateOut *big.Int // intermediate token obtained from the first leg
	ExpectedReturn  *big.Int // final asset amount per simulation
	ExpectedProfit  *big.Int // simulated profit, smallest denomination
	ProfitPct       float64  // profit as a percentage of principal
	RouteSummary    json.RawMessage
	CreatedAt       time.Time
}

// AmountETH returns the principal in whole-ETH display units.
func (o *Opportunity) AmountETH() decimal.Decimal {
	return decimal.NewFromBigInt(o.AmountWei, 0).Div(weiPerETH)
}

// ProfitETH returns the expected profit in whole-ETH display units.
func (o *Opportunity) ProfitETH() decimal.Decimal {
	return decimal.NewFromBigInt(o.ExpectedProfit, 0).Div(weiPerETH)
}

// String renders a short summary suitable for logs.
func (o *Opportunity) String() string {
	return fmt.Sprintf("%s ETH %s: +%s ETH (%.2f%%)",
		o.AmountETH().StringFixed(4), o.Direction, o.ProfitETH().StringFixed(6), o.ProfitPct)
}

// SimulateCounterLeg returns the counter-leg amount that must be passed to
// the settlement contract's simulation for this opportunity: the aggregator
// output for the aggregator-first ordering, the expected final return
// otherwise. Discovery and the pre-commit re-check must use the same value.
func (o *Opportunity) SimulateCounterLeg() *big.Int {
	if o.Direction.Flag() {
		return o.IntermediateOut
	}
	return o.ExpectedReturn
}

// ETHToWei converts a whole-ETH decimal amount to wei, truncating any
// fraction below one wei.
func ETHToWei(amount decimal.Decimal) *big.Int {
	return amount.Mul(weiPerETH).BigInt()
}

// WeiToETH converts a wei amount to whole-ETH display units.
func WeiToETH(wei *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(wei, 0).Div(weiPerETH)
}
