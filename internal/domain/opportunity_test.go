package domain

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
)

func TestDirectionFlag(t *testing.T) {
	if !DirectionAggregatorFirst.Flag() {
		t.Error("aggregator-first direction should map to flag true")
	}
	if DirectionCurveFirst.Flag() {
		t.Error("curve-first direction should map to flag false")
	}
}

func TestETHWeiConversion(t *testing.T) {
	tests := []struct {
		eth string
		wei string
	}{
		{"1", "1000000000000000000"},
		{"0.001", "1000000000000000"},
		{"0.00002", "20000000000000"},
		{"0", "0"},
	}
	for _, tt := range tests {
		d, err := decimal.NewFromString(tt.eth)
		if err != nil {
			t.Fatalf("parse %q: %v", tt.eth, err)
		}
		got := ETHToWei(d)
		if got.String() != tt.wei {
			t.Errorf("ETHToWei(%s) = %s, want %s", tt.eth, got, tt.wei)
		}
		back := WeiToETH(got)
		if !back.Equal(d) {
			t.Errorf("WeiToETH(%s) = %s, want %s", got, back, tt.eth)
		}
	}
}

func TestSimulateCounterLeg(t *testing.T) {
	opp := &Opportunity{
		Direction:       DirectionAggregatorFirst,
		IntermediateOut: big.NewInt(500),
		ExpectedReturn:  big.NewInt(900),
	}
	if got := opp.SimulateCounterLeg(); got.Cmp(big.NewInt(500)) != 0 {
		t.Errorf("aggregator-first counter leg = %s, want intermediate out 500", got)
	}

	opp.Direction = DirectionCurveFirst
	if got := opp.SimulateCounterLeg(); got.Cmp(big.NewInt(900)) != 0 {
		t.Errorf("curve-first counter leg = %s, want expected return 900", got)
	}
}
