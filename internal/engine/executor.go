package engine

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/0xlarry/basearb/internal/domain"
)

// SwapBuilder finalizes a discovered route into an executable payload.
type SwapBuilder interface {
	BuildSwap(ctx context.Context, routeSummary json.RawMessage, contract string) (string, error)
}

// TxSender is the slice of the chain client the executor needs to submit
// and confirm the settlement transaction.
type TxSender interface {
	PendingNonce(ctx context.Context) (uint64, error)
	SendTransaction(ctx context.Context, to common.Address, value *big.Int, nonce uint64, gasLimit uint64, gasPrice *big.Int, data []byte) (*types.Transaction, error)
	WaitMined(ctx context.Context, tx *types.Transaction, timeout time.Duration) (*types.Receipt, error)
}

// GasPricer supplies the submission gas price and limit and absorbs the
// realized usage after confirmation.
type GasPricer interface {
	GasPrice(ctx context.Context) (*big.Int, error)
	EstimatedGasUsed() uint64
	RecordActual(gasUsed uint64)
}

// SettlementCaller packs the execution call data and re-runs the pre-commit
// simulation.
type SettlementCaller interface {
	Simulator
	ExecuteCallData(swapPayload []byte, direction bool) ([]byte, error)
	Address() common.Address
}

// Notifier delivers operator alerts. Events not in the operator's allow
// list are dropped by the implementation.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Executor commits a discovered opportunity on-chain. Execution is strictly
// sequential: the settlement account's sequence number tolerates no
// concurrent submissions.
type Executor struct {
	builder    SwapBuilder
	settlement SettlementCaller
	sender     TxSender
	gas        GasPricer
	stats      *domain.RunStats
	journal    domain.AttemptStore // optional
	notifier   Notifier            // optional
	logger     *slog.Logger

	confirmTimeout time.Duration
}

// NewExecutor creates an Executor. journal and notifier may be nil.
func NewExecutor(builder SwapBuilder, settlement SettlementCaller, sender TxSender, gas GasPricer, stats *domain.RunStats, journal domain.AttemptStore, notifier Notifier, confirmTimeout time.Duration, logger *slog.Logger) *Executor {
	if confirmTimeout <= 0 {
		confirmTimeout = 120 * time.Second
	}
	return &Executor{
		builder:        builder,
		settlement:     settlement,
		sender:         sender,
		gas:            gas,
		stats:          stats,
		journal:        journal,
		notifier:       notifier,
		logger:         logger.With(slog.String("component", "executor")),
		confirmTimeout: confirmTimeout,
	}
}

// Execute runs the simulate-then-commit pipeline for one opportunity and
// reports whether the trade confirmed successfully. Every outcome is
// recorded in the run statistics; nothing is retried once a transaction has
// been submitted.
func (e *Executor) Execute(ctx context.Context, opp *domain.Opportunity) bool {
	e.stats.RecordAttempt()

	log := e.logger.With(
		slog.String("opportunity_id", opp.ID),
		slog.String("direction", string(opp.Direction)),
		slog.String("amount_wei", opp.AmountWei.String()),
	)
	log.Info("executing trade",
		slog.String("expected_profit_wei", opp.ExpectedProfit.String()),
		slog.Float64("profit_pct", opp.ProfitPct),
	)

	// 1. Build the swap payload for the aggregator leg.
	swapHex, err := e.builder.BuildSwap(ctx, opp.RouteSummary, e.settlement.Address().Hex())
	if err != nil {
		return e.fail(ctx, opp, log, "swap build failed", err)
	}
	swapPayload, err := hex.DecodeString(strings.TrimPrefix(swapHex, "0x"))
	if err != nil {
		return e.fail(ctx, opp, log, "swap payload not hex", err)
	}

	// 2. Re-simulate with the discovery parameters. Market state may have
	// moved between discovery and now; abort before anything is signed.
	sim, err := e.settlement.Simulate(ctx, opp.AmountWei, opp.SimulateCounterLeg(), opp.Direction.Flag())
	if err != nil {
		return e.fail(ctx, opp, log, "pre-commit simulation failed", err)
	}
	if !sim.WouldExecute {
		return e.fail(ctx, opp, log, "conditions changed", domain.ErrNotExecutable)
	}

	// 3. Acquire nonce and gas price, then sign and submit.
	nonce, err := e.sender.PendingNonce(ctx)
	if err != nil {
		return e.fail(ctx, opp, log, "nonce fetch failed", err)
	}
	gasPrice, err := e.gas.GasPrice(ctx)
	if err != nil {
		return e.fail(ctx, opp, log, "gas price fetch failed", err)
	}
	callData, err := e.settlement.ExecuteCallData(swapPayload, opp.Direction.Flag())
	if err != nil {
		return e.fail(ctx, opp, log, "call data pack failed", err)
	}

	gasLimit := e.gas.EstimatedGasUsed()
	tx, err := e.sender.SendTransaction(ctx, e.settlement.Address(), opp.AmountWei, nonce, gasLimit, gasPrice, callData)
	if err != nil {
		return e.fail(ctx, opp, log, "transaction submit failed", err)
	}
	log.Info("transaction submitted",
		slog.String("tx_hash", tx.Hash().Hex()),
		slog.Uint64("nonce", nonce),
		slog.String("gas_price_wei", gasPrice.String()),
	)

	// 4. Wait for confirmation. A submitted transaction is never abandoned
	// or replaced; on timeout the attempt is marked failed and left to
	// external inspection.
	receipt, err := e.sender.WaitMined(ctx, tx, e.confirmTimeout)
	if err != nil {
		e.record(ctx, opp, tx.Hash().Hex(), 0, gasPrice, false, "confirmation timeout")
		e.stats.RecordFailure()
		log.Error("confirmation wait failed", slog.String("error", err.Error()))
		e.notify(ctx, "trade_failed", "Trade failed", fmt.Sprintf("%s: confirmation timeout (%s)", opp, tx.Hash().Hex()))
		return false
	}

	gasCost := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(receipt.GasUsed))

	if receipt.Status != types.ReceiptStatusSuccessful {
		e.record(ctx, opp, tx.Hash().Hex(), receipt.GasUsed, gasPrice, false, "reverted")
		e.stats.RecordFailure()
		log.Error("transaction reverted", slog.String("tx_hash", tx.Hash().Hex()))
		e.notify(ctx, "trade_failed", "Trade reverted", fmt.Sprintf("%s (%s)", opp, tx.Hash().Hex()))
		return false
	}

	// Round trip moves the principal twice.
	volume := new(big.Int).Mul(opp.AmountWei, big.NewInt(2))
	e.stats.RecordSuccess(volume, opp.ExpectedProfit, gasCost)
	e.gas.RecordActual(receipt.GasUsed)
	e.record(ctx, opp, tx.Hash().Hex(), receipt.GasUsed, gasPrice, true, "")

	log.Info("trade confirmed",
		slog.String("tx_hash", tx.Hash().Hex()),
		slog.Uint64("gas_used", receipt.GasUsed),
		slog.String("gas_cost_wei", gasCost.String()),
	)
	e.notify(ctx, "trade_executed", "Trade executed",
		fmt.Sprintf("%s, gas %s ETH (%s)", opp, domain.WeiToETH(gasCost).StringFixed(6), tx.Hash().Hex()))
	return true
}

// fail handles every abort that happens before a transaction is submitted.
func (e *Executor) fail(ctx context.Context, opp *domain.Opportunity, log *slog.Logger, reason string, err error) bool {
	e.stats.RecordFailure()
	e.record(ctx, opp, "", 0, nil, false, reason)
	log.Warn("execution aborted",
		slog.String("reason", reason),
		slog.String("error", err.Error()),
	)
	e.notify(ctx, "trade_failed", "Trade aborted", fmt.Sprintf("%s: %s", opp, reason))
	return false
}

// record writes the attempt to the journal when one is configured.
func (e *Executor) record(ctx context.Context, opp *domain.Opportunity, txHash string, gasUsed uint64, gasPrice *big.Int, success bool, reason string) {
	if e.journal == nil {
		return
	}
	rec := domain.AttemptRecord{
		ID:             opp.ID,
		Direction:      opp.Direction,
		AmountWei:      opp.AmountWei,
		ExpectedProfit: opp.ExpectedProfit,
		TxHash:         txHash,
		GasUsed:        gasUsed,
		GasPriceWei:    gasPrice,
		Success:        success,
		FailureReason:  reason,
		CreatedAt:      time.Now().UTC(),
	}
	if err := e.journal.Insert(ctx, rec); err != nil {
		e.logger.Warn("journal insert failed", slog.String("error", err.Error()))
	}
}

func (e *Executor) notify(ctx context.Context, event, title, message string) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, event, title, message); err != nil {
		e.logger.Warn("notification failed", slog.String("error", err.Error()))
	}
}
