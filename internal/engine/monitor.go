package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/0xlarry/basearb/internal/domain"
)

// BalanceSource reports the trading account's spendable balance.
type BalanceSource interface {
	Balance(ctx context.Context) (*big.Int, error)
}

// Trader commits a discovered opportunity. The monitor only ever runs one
// execution at a time.
type Trader interface {
	Execute(ctx context.Context, opp *domain.Opportunity) bool
}

// MonitorConfig parameterizes the monitoring loop.
type MonitorConfig struct {
	CandidateAmounts []*big.Int    // trade sizes to probe each pass, wei
	MaxTradeWei      *big.Int      // hard ceiling on any single trade
	MinBalanceWei    *big.Int      // below this the loop idles
	ExecTimeout      time.Duration // bound on a detached execution
	DryRun           bool          // discover and log, never execute
	RefineEnabled    bool          // sharpen the winning amount before commit

	lowBalanceSleep time.Duration
	errorSleep      time.Duration
	successSleep    time.Duration
	failureSleep    time.Duration
}

func (c *MonitorConfig) applyDefaults() {
	if c.MinBalanceWei == nil {
		// 0.002 ETH
		c.MinBalanceWei = big.NewInt(2_000_000_000_000_000)
	}
	if c.ExecTimeout <= 0 {
		c.ExecTimeout = 5 * time.Minute
	}
	if c.lowBalanceSleep <= 0 {
		c.lowBalanceSleep = 5 * time.Minute
	}
	if c.errorSleep <= 0 {
		c.errorSleep = time.Minute
	}
	if c.successSleep <= 0 {
		c.successSleep = 5 * time.Second
	}
	if c.failureSleep <= 0 {
		c.failureSleep = 30 * time.Second
	}
}

// Monitor is the engine's outer loop: probe the market, execute when a
// simulated opportunity clears the profit bar, and adapt the polling cadence
// to how often the market is paying.
type Monitor struct {
	searcher *Searcher
	trader   Trader
	balance  BalanceSource
	stats    *domain.RunStats
	notifier Notifier // optional
	cfg      MonitorConfig
	logger   *slog.Logger

	consecutiveMisses int
	loopErrors        int
}

// NewMonitor creates a Monitor. notifier may be nil.
func NewMonitor(searcher *Searcher, trader Trader, balance BalanceSource, stats *domain.RunStats, notifier Notifier, cfg MonitorConfig, logger *slog.Logger) *Monitor {
	cfg.applyDefaults()
	return &Monitor{
		searcher: searcher,
		trader:   trader,
		balance:  balance,
		stats:    stats,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "monitor")),
	}
}

// CandidateGrid returns the configured candidate trade sizes.
func (m *Monitor) CandidateGrid() []*big.Int {
	return m.cfg.CandidateAmounts
}

// Run drives the loop until ctx is canceled. It always returns ctx.Err();
// every other failure mode is absorbed, logged, and retried after a pause.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("monitor started",
		slog.Int("candidate_amounts", len(m.cfg.CandidateAmounts)),
		slog.Bool("dry_run", m.cfg.DryRun),
	)

	lastSummary := int64(0)
	for {
		if err := ctx.Err(); err != nil {
			m.flushStats()
			return err
		}

		sleepFor, err := m.tick(ctx)
		if err != nil {
			m.loopErrors++
			m.logger.Error("loop iteration failed",
				slog.String("error", err.Error()),
				slog.Int("loop_errors", m.loopErrors),
			)
			m.notify(ctx, "engine_error", "Loop error", err.Error())
			sleepFor = m.cfg.errorSleep
		}

		if checked := m.stats.Checked(); checked/50 > lastSummary/50 {
			m.logSummary()
			lastSummary = checked
		}

		if !sleepCtx(ctx, sleepFor) {
			m.flushStats()
			return ctx.Err()
		}
	}
}

// tick runs one discovery pass and returns how long to sleep before the
// next one.
func (m *Monitor) tick(ctx context.Context) (time.Duration, error) {
	bal, err := m.balance.Balance(ctx)
	if err != nil {
		return 0, fmt.Errorf("engine: balance check: %w", err)
	}
	if bal.Cmp(m.cfg.MinBalanceWei) < 0 {
		m.logger.Warn("balance below floor",
			slog.String("balance_eth", domain.WeiToETH(bal).StringFixed(6)),
			slog.String("floor_eth", domain.WeiToETH(m.cfg.MinBalanceWei).StringFixed(6)),
		)
		m.notify(ctx, "low_balance", "Low balance",
			fmt.Sprintf("balance %s ETH below floor", domain.WeiToETH(bal).StringFixed(6)))
		return m.cfg.lowBalanceSleep, nil
	}

	amounts := m.boundedAmounts(bal)
	if len(amounts) == 0 {
		m.logger.Warn("no candidate amounts fit current balance")
		return m.cfg.lowBalanceSleep, nil
	}

	opp, err := m.searcher.FindBest(ctx, amounts)
	if err != nil {
		return 0, err
	}
	if opp == nil {
		m.consecutiveMisses++
		return m.missInterval(), nil
	}
	m.consecutiveMisses = 0

	if m.cfg.RefineEnabled {
		opp = m.refine(ctx, opp, amounts)
	}

	if m.cfg.DryRun {
		m.logger.Info("dry run, skipping execution", slog.String("opportunity", opp.String()))
		return m.cfg.successSleep, nil
	}

	// Detach confirmation from loop cancellation: a submitted transaction
	// must be waited on even while the engine is shutting down.
	execCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.ExecTimeout)
	ok := m.trader.Execute(execCtx, opp)
	cancel()

	if ok {
		return m.cfg.successSleep, nil
	}
	return m.cfg.failureSleep, nil
}

// refine sharpens the trade size around the winning direction. Any failure
// falls back to the originally discovered opportunity.
func (m *Monitor) refine(ctx context.Context, opp *domain.Opportunity, amounts []*big.Int) *domain.Opportunity {
	lo, hi := amounts[0], amounts[len(amounts)-1]
	refined := m.searcher.Refine(ctx, opp.Direction, lo, hi)
	if refined == nil {
		return opp
	}
	if refined.ExpectedProfit.Cmp(opp.ExpectedProfit) > 0 {
		m.logger.Info("refined trade size",
			slog.String("amount_eth", refined.AmountETH().StringFixed(6)),
			slog.String("profit_wei", refined.ExpectedProfit.String()),
		)
		return refined
	}
	return opp
}

// boundedAmounts filters the candidate grid to sizes the account can fund,
// capped at 90% of balance and the configured ceiling.
func (m *Monitor) boundedAmounts(balance *big.Int) []*big.Int {
	cap90 := new(big.Int).Mul(balance, big.NewInt(9))
	cap90.Div(cap90, big.NewInt(10))
	if m.cfg.MaxTradeWei != nil && m.cfg.MaxTradeWei.Sign() > 0 && cap90.Cmp(m.cfg.MaxTradeWei) > 0 {
		cap90.Set(m.cfg.MaxTradeWei)
	}

	out := make([]*big.Int, 0, len(m.cfg.CandidateAmounts))
	for _, amt := range m.cfg.CandidateAmounts {
		if amt.Sign() > 0 && amt.Cmp(cap90) <= 0 {
			out = append(out, amt)
		}
	}
	return out
}

// missInterval backs the polling cadence off as dry spells lengthen.
func (m *Monitor) missInterval() time.Duration {
	switch {
	case m.consecutiveMisses > 20:
		return 60 * time.Second
	case m.consecutiveMisses > 10:
		return 30 * time.Second
	case m.consecutiveMisses > 5:
		return 20 * time.Second
	default:
		return 10 * time.Second
	}
}

func (m *Monitor) logSummary() {
	snap := m.stats.Snapshot(time.Now())
	m.logger.Info("session summary",
		slog.Int64("opportunities_checked", snap.OpportunitiesChecked),
		slog.Int64("profitable_found", snap.ProfitableFound),
		slog.Int64("trades", snap.TotalTrades),
		slog.Int64("successful", snap.SuccessfulTrades),
		slog.Float64("success_rate", snap.SuccessRate),
		slog.String("net_profit_eth", domain.WeiToETH(snap.NetProfitWei).StringFixed(6)),
		slog.String("gas_spent_eth", domain.WeiToETH(snap.GasSpentWei).StringFixed(6)),
		slog.Float64("uptime_hours", snap.UptimeHours),
	)
}

func (m *Monitor) flushStats() {
	m.logger.Info("monitor stopping")
	m.logSummary()
}

func (m *Monitor) notify(ctx context.Context, event, title, message string) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Notify(ctx, event, title, message); err != nil {
		m.logger.Warn("notification failed", slog.String("error", err.Error()))
	}
}

// sleepCtx pauses for d or until ctx is canceled, reporting whether the full
// pause elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
