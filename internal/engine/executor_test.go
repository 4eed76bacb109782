package engine

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/0xlarry/basearb/internal/chain"
	"github.com/0xlarry/basearb/internal/domain"
)

type stubBuilder struct {
	payload string
	err     error
}

func (s *stubBuilder) BuildSwap(ctx context.Context, routeSummary json.RawMessage, contract string) (string, error) {
	return s.payload, s.err
}

type stubSettlement struct {
	mu       sync.Mutex
	simCalls []simCall
	simFn    func() (chain.SimulationResult, error)
	packErr  error
}

func (s *stubSettlement) Simulate(ctx context.Context, amountIn, counterLeg *big.Int, direction bool) (chain.SimulationResult, error) {
	s.mu.Lock()
	s.simCalls = append(s.simCalls, simCall{new(big.Int).Set(amountIn), new(big.Int).Set(counterLeg), direction})
	s.mu.Unlock()
	return s.simFn()
}

func (s *stubSettlement) ExecuteCallData(swapPayload []byte, direction bool) ([]byte, error) {
	if s.packErr != nil {
		return nil, s.packErr
	}
	return append([]byte{0x01}, swapPayload...), nil
}

func (s *stubSettlement) Address() common.Address {
	return common.HexToAddress("0x9999999999999999999999999999999999999999")
}

type sentTx struct {
	to       common.Address
	value    *big.Int
	nonce    uint64
	gasLimit uint64
	gasPrice *big.Int
}

type stubSender struct {
	mu      sync.Mutex
	sends   []sentTx
	receipt *types.Receipt
	waitErr error
}

func (s *stubSender) PendingNonce(ctx context.Context) (uint64, error) { return 7, nil }

func (s *stubSender) SendTransaction(ctx context.Context, to common.Address, value *big.Int, nonce uint64, gasLimit uint64, gasPrice *big.Int, data []byte) (*types.Transaction, error) {
	s.mu.Lock()
	s.sends = append(s.sends, sentTx{to, new(big.Int).Set(value), nonce, gasLimit, new(big.Int).Set(gasPrice)})
	s.mu.Unlock()
	return types.NewTransaction(nonce, to, value, gasLimit, gasPrice, data), nil
}

func (s *stubSender) WaitMined(ctx context.Context, tx *types.Transaction, timeout time.Duration) (*types.Receipt, error) {
	return s.receipt, s.waitErr
}

type stubGas struct {
	mu       sync.Mutex
	actuals  []uint64
	price    *big.Int
	estimate uint64
}

func (s *stubGas) GasPrice(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(s.price), nil
}

func (s *stubGas) EstimatedGasUsed() uint64 { return s.estimate }

func (s *stubGas) RecordActual(gasUsed uint64) {
	s.mu.Lock()
	s.actuals = append(s.actuals, gasUsed)
	s.mu.Unlock()
}

type memJournal struct {
	mu   sync.Mutex
	recs []domain.AttemptRecord
}

func (m *memJournal) Insert(ctx context.Context, rec domain.AttemptRecord) error {
	m.mu.Lock()
	m.recs = append(m.recs, rec)
	m.mu.Unlock()
	return nil
}

func (m *memJournal) ListRecent(ctx context.Context, limit int) ([]domain.AttemptRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.AttemptRecord(nil), m.recs...), nil
}

type memNotifier struct {
	mu     sync.Mutex
	events []string
}

func (m *memNotifier) Notify(ctx context.Context, event, title, message string) error {
	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()
	return nil
}

func testOpportunity() *domain.Opportunity {
	return &domain.Opportunity{
		ID:              "attempt-1",
		Direction:       domain.DirectionAggregatorFirst,
		AmountWei:       big.NewInt(2_000_000_000_000_000),
		IntermediateOut: big.NewInt(1000),
		ExpectedReturn:  big.NewInt(2_010_000_000_000_000),
		ExpectedProfit:  big.NewInt(10_000_000_000_000),
		ProfitPct:       0.5,
		RouteSummary:    json.RawMessage(`{}`),
		CreatedAt:       time.Now().UTC(),
	}
}

func TestExecuteConfirmedTrade(t *testing.T) {
	builder := &stubBuilder{payload: "0xdeadbeef"}
	settlement := &stubSettlement{simFn: func() (chain.SimulationResult, error) {
		return chain.SimulationResult{WouldExecute: true}, nil
	}}
	sender := &stubSender{receipt: &types.Receipt{Status: types.ReceiptStatusSuccessful, GasUsed: 540_000}}
	gas := &stubGas{price: big.NewInt(100), estimate: 600_000}
	journal := &memJournal{}
	notifier := &memNotifier{}
	stats := domain.NewRunStats(time.Now())

	ex := NewExecutor(builder, settlement, sender, gas, stats, journal, notifier, time.Minute, discard())
	opp := testOpportunity()

	if !ex.Execute(context.Background(), opp) {
		t.Fatal("Execute = false, want true")
	}

	if len(sender.sends) != 1 {
		t.Fatalf("submissions = %d, want 1", len(sender.sends))
	}
	sent := sender.sends[0]
	if sent.to != settlement.Address() {
		t.Errorf("submitted to %s, want the settlement contract", sent.to.Hex())
	}
	if sent.value.Cmp(opp.AmountWei) != 0 {
		t.Errorf("value = %s, want the principal %s", sent.value, opp.AmountWei)
	}
	if sent.nonce != 7 || sent.gasLimit != 600_000 {
		t.Errorf("nonce/gasLimit = %d/%d, want 7/600000", sent.nonce, sent.gasLimit)
	}

	// The pre-commit re-check uses the discovery parameters verbatim.
	if len(settlement.simCalls) != 1 {
		t.Fatalf("simulation calls = %d, want 1", len(settlement.simCalls))
	}
	sim := settlement.simCalls[0]
	if sim.amountIn.Cmp(opp.AmountWei) != 0 || sim.counterLeg.Cmp(opp.IntermediateOut) != 0 || !sim.direction {
		t.Errorf("re-check saw (%s, %s, %v)", sim.amountIn, sim.counterLeg, sim.direction)
	}

	// Realized usage feeds the gas window and the run totals.
	if len(gas.actuals) != 1 || gas.actuals[0] != 540_000 {
		t.Errorf("recorded actuals = %v, want [540000]", gas.actuals)
	}
	snap := stats.Snapshot(time.Now())
	if snap.SuccessfulTrades != 1 || snap.FailedTrades != 0 {
		t.Errorf("trades = %d ok / %d failed", snap.SuccessfulTrades, snap.FailedTrades)
	}
	wantVolume := new(big.Int).Mul(opp.AmountWei, big.NewInt(2))
	if snap.TotalVolumeWei.Cmp(wantVolume) != 0 {
		t.Errorf("volume = %s, want %s", snap.TotalVolumeWei, wantVolume)
	}
	wantGasCost := big.NewInt(100 * 540_000)
	if snap.GasSpentWei.Cmp(wantGasCost) != 0 {
		t.Errorf("gas spent = %s, want %s", snap.GasSpentWei, wantGasCost)
	}

	if len(journal.recs) != 1 || !journal.recs[0].Success || journal.recs[0].TxHash == "" {
		t.Errorf("journal = %+v, want one successful record with a tx hash", journal.recs)
	}
	if len(notifier.events) != 1 || notifier.events[0] != "trade_executed" {
		t.Errorf("events = %v, want [trade_executed]", notifier.events)
	}
}

// A failed pre-commit re-check must abort before anything reaches the chain.
func TestExecuteFailedRecheckSubmitsNothing(t *testing.T) {
	builder := &stubBuilder{payload: "0xdeadbeef"}
	settlement := &stubSettlement{simFn: func() (chain.SimulationResult, error) {
		return chain.SimulationResult{WouldExecute: false}, nil
	}}
	sender := &stubSender{}
	gas := &stubGas{price: big.NewInt(100), estimate: 600_000}
	journal := &memJournal{}
	stats := domain.NewRunStats(time.Now())

	ex := NewExecutor(builder, settlement, sender, gas, stats, journal, nil, time.Minute, discard())

	if ex.Execute(context.Background(), testOpportunity()) {
		t.Fatal("Execute = true, want false")
	}
	if len(sender.sends) != 0 {
		t.Fatalf("submissions = %d, want 0", len(sender.sends))
	}
	snap := stats.Snapshot(time.Now())
	if snap.FailedTrades != 1 || snap.SuccessfulTrades != 0 {
		t.Errorf("trades = %d ok / %d failed", snap.SuccessfulTrades, snap.FailedTrades)
	}
	if len(journal.recs) != 1 || journal.recs[0].Success || journal.recs[0].FailureReason != "conditions changed" {
		t.Errorf("journal = %+v, want one aborted record", journal.recs)
	}
}

func TestExecuteRevertedTransaction(t *testing.T) {
	builder := &stubBuilder{payload: "0xdeadbeef"}
	settlement := &stubSettlement{simFn: func() (chain.SimulationResult, error) {
		return chain.SimulationResult{WouldExecute: true}, nil
	}}
	sender := &stubSender{receipt: &types.Receipt{Status: types.ReceiptStatusFailed, GasUsed: 580_000}}
	gas := &stubGas{price: big.NewInt(100), estimate: 600_000}
	journal := &memJournal{}
	notifier := &memNotifier{}
	stats := domain.NewRunStats(time.Now())

	ex := NewExecutor(builder, settlement, sender, gas, stats, journal, notifier, time.Minute, discard())

	if ex.Execute(context.Background(), testOpportunity()) {
		t.Fatal("Execute = true, want false")
	}
	// Reverted usage must not pollute the gas window.
	if len(gas.actuals) != 0 {
		t.Errorf("recorded actuals = %v, want none", gas.actuals)
	}
	if stats.Snapshot(time.Now()).FailedTrades != 1 {
		t.Error("revert not counted as a failure")
	}
	if len(journal.recs) != 1 || journal.recs[0].FailureReason != "reverted" {
		t.Errorf("journal = %+v, want one reverted record", journal.recs)
	}
	if len(notifier.events) != 1 || notifier.events[0] != "trade_failed" {
		t.Errorf("events = %v, want [trade_failed]", notifier.events)
	}
}

func TestExecuteConfirmationTimeout(t *testing.T) {
	builder := &stubBuilder{payload: "0xdeadbeef"}
	settlement := &stubSettlement{simFn: func() (chain.SimulationResult, error) {
		return chain.SimulationResult{WouldExecute: true}, nil
	}}
	sender := &stubSender{waitErr: errors.New("context deadline exceeded")}
	gas := &stubGas{price: big.NewInt(100), estimate: 600_000}
	journal := &memJournal{}
	stats := domain.NewRunStats(time.Now())

	ex := NewExecutor(builder, settlement, sender, gas, stats, journal, nil, time.Minute, discard())

	if ex.Execute(context.Background(), testOpportunity()) {
		t.Fatal("Execute = true, want false")
	}
	// Submitted but unconfirmed: exactly one submission, no retry, recorded
	// with its hash for later inspection.
	if len(sender.sends) != 1 {
		t.Fatalf("submissions = %d, want 1", len(sender.sends))
	}
	if len(journal.recs) != 1 || journal.recs[0].TxHash == "" || journal.recs[0].FailureReason != "confirmation timeout" {
		t.Errorf("journal = %+v, want one timeout record with a tx hash", journal.recs)
	}
	if stats.Snapshot(time.Now()).FailedTrades != 1 {
		t.Error("timeout not counted as a failure")
	}
}

func TestExecuteBuildFailureAborts(t *testing.T) {
	builder := &stubBuilder{err: errors.New("encode failed")}
	settlement := &stubSettlement{simFn: func() (chain.SimulationResult, error) {
		t.Error("simulation must not run after a build failure")
		return chain.SimulationResult{}, nil
	}}
	sender := &stubSender{}
	gas := &stubGas{price: big.NewInt(100), estimate: 600_000}
	stats := domain.NewRunStats(time.Now())

	ex := NewExecutor(builder, settlement, sender, gas, stats, nil, nil, time.Minute, discard())

	if ex.Execute(context.Background(), testOpportunity()) {
		t.Fatal("Execute = true, want false")
	}
	if len(sender.sends) != 0 {
		t.Fatalf("submissions = %d, want 0", len(sender.sends))
	}
}
