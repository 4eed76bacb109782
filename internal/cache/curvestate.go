// Package cache memoizes the bonding-curve venue's two state variables so a
// discovery pass can price many candidate amounts without repeated RPC
// round trips.
package cache

import (
	"context"
	"log/slog"
	"math/big"
	"time"
)

// StateReader performs the two on-chain view calls backing the cache.
type StateReader interface {
	Backing(ctx context.Context) (*big.Int, error)
	TotalSupply(ctx context.Context) (*big.Int, error)
}

// CurveState caches the curve's reserve backing and total supply with a
// time-to-live. Refresh happens synchronously before a discovery pass fans
// out; the estimate methods then consume only in-memory values and are safe
// for concurrent readers.
type CurveState struct {
	reader StateReader
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time

	backing     *big.Int
	totalSupply *big.Int
	lastRefresh time.Time
}

// NewCurveState creates an empty cache over reader with the given TTL.
func NewCurveState(reader StateReader, ttl time.Duration, logger *slog.Logger) *CurveState {
	return &CurveState{
		reader: reader,
		ttl:    ttl,
		logger: logger.With(slog.String("component", "curve_cache")),
		now:    time.Now,
	}
}

// RefreshIfStale re-reads both state variables when the cached entry is
// older than the TTL. A read failure keeps the previous values in place:
// stale-but-available is preferred over blocking the pass.
func (c *CurveState) RefreshIfStale(ctx context.Context) {
	now := c.now()
	if !c.lastRefresh.IsZero() && now.Sub(c.lastRefresh) <= c.ttl {
		return
	}

	backing, err := c.reader.Backing(ctx)
	if err != nil {
		c.logger.Warn("curve backing read failed", slog.String("error", err.Error()))
		return
	}
	supply, err := c.reader.TotalSupply(ctx)
	if err != nil {
		c.logger.Warn("curve supply read failed", slog.String("error", err.Error()))
		return
	}

	c.backing = backing
	c.totalSupply = supply
	c.lastRefresh = now
	c.logger.Debug("curve state refreshed",
		slog.String("backing", backing.String()),
		slog.String("total_supply", supply.String()),
	)
}

// EstimateIntermediateOut prices asset → intermediate using the cached
// bonding curve: (assetIn × totalSupply) / (backing − assetIn), floor
// division. Returns zero when the cache is unpopulated or assetIn meets or
// exceeds the backing. Never issues an RPC.
func (c *CurveState) EstimateIntermediateOut(assetIn *big.Int) *big.Int {
	if c.backing == nil || c.totalSupply == nil {
		return new(big.Int)
	}
	if c.backing.Cmp(assetIn) <= 0 {
		return new(big.Int)
	}
	num := new(big.Int).Mul(assetIn, c.totalSupply)
	den := new(big.Int).Sub(c.backing, assetIn)
	return num.Div(num, den)
}

// EstimateAssetOut prices intermediate → asset via the inverse curve:
// (intermediateIn × backing) / totalSupply, floor division. Returns zero
// when the cache is unpopulated or supply is zero.
func (c *CurveState) EstimateAssetOut(intermediateIn *big.Int) *big.Int {
	if c.backing == nil || c.totalSupply == nil || c.totalSupply.Sign() == 0 {
		return new(big.Int)
	}
	num := new(big.Int).Mul(intermediateIn, c.backing)
	return num.Div(num, c.totalSupply)
}

// LastRefresh returns the time of the last successful refresh.
func (c *CurveState) LastRefresh() time.Time {
	return c.lastRefresh
}

// SetClock replaces the time source. Test hook.
func (c *CurveState) SetClock(now func() time.Time) {
	c.now = now
}
