package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/0xlarry/basearb/internal/domain"
)

// RunMode runs the full engine: discovery, execution, and the optional
// status server.
func (a *App) RunMode(ctx context.Context, deps *Dependencies) error {
	a.logStartup(ctx, deps)

	g, ctx := errgroup.WithContext(ctx)

	if deps.Server != nil {
		g.Go(deps.Server.Start)
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return deps.Server.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		return deps.Monitor.Run(ctx)
	})

	return g.Wait()
}

// MonitorMode runs discovery without execution. The monitor was wired in
// dry-run mode, so the loop logs opportunities and never submits.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	return a.RunMode(ctx, deps)
}

// OnceMode runs a single discovery pass over the candidate grid, prints the
// outcome, and exits.
func (a *App) OnceMode(ctx context.Context, deps *Dependencies) error {
	a.logStartup(ctx, deps)

	amounts := deps.Monitor.CandidateGrid()
	opp, err := deps.Searcher.FindBest(ctx, amounts)
	if err != nil {
		return fmt.Errorf("app: discovery pass: %w", err)
	}
	if opp == nil {
		a.logger.Info("no profitable opportunity found",
			slog.Int("amounts_checked", len(amounts)),
		)
		return nil
	}

	a.logger.Info("opportunity found",
		slog.String("opportunity", opp.String()),
		slog.String("expected_profit_wei", opp.ExpectedProfit.String()),
		slog.Float64("profit_pct", opp.ProfitPct),
	)

	// Cross-check the cached estimates against live venue quotes.
	if opp.Direction == domain.DirectionCurveFirst {
		live, err := deps.CurvePool.GetBuy(ctx, opp.AmountWei)
		if err == nil {
			a.logger.Info("live venue quote",
				slog.String("cached_intermediate_out", opp.IntermediateOut.String()),
				slog.String("live_intermediate_out", live.String()),
			)
		}
	} else {
		live, err := deps.CurvePool.ToBase(ctx, opp.IntermediateOut)
		if err == nil {
			a.logger.Info("live venue quote",
				slog.String("cached_asset_out", opp.ExpectedReturn.String()),
				slog.String("live_asset_out", live.String()),
			)
		}
	}
	return nil
}

// logStartup records the settlement contract parameters the engine depends
// on so misconfigured deployments surface immediately.
func (a *App) logStartup(ctx context.Context, deps *Dependencies) {
	log := a.logger.With(
		slog.String("account", deps.Chain.Address().Hex()),
		slog.Int64("chain_id", a.cfg.Chain.ChainID),
	)

	reimbursement, err := deps.Settlement.GasReimbursement(ctx)
	if err != nil {
		log.Warn("reading gas reimbursement failed", slog.String("error", err.Error()))
	}
	recipient, err := deps.Settlement.ProfitRecipient(ctx)
	if err != nil {
		log.Warn("reading profit recipient failed", slog.String("error", err.Error()))
	}

	attrs := []any{
		slog.String("settlement", deps.Settlement.Address().Hex()),
	}
	if reimbursement != nil {
		attrs = append(attrs, slog.String("gas_reimbursement_wei", reimbursement.String()))
	}
	attrs = append(attrs, slog.String("profit_recipient", recipient.Hex()))

	log.Info("engine ready", attrs...)
}
