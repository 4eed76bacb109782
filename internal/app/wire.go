package app

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/0xlarry/basearb/internal/cache"
	"github.com/0xlarry/basearb/internal/cache/redis"
	"github.com/0xlarry/basearb/internal/chain"
	"github.com/0xlarry/basearb/internal/config"
	"github.com/0xlarry/basearb/internal/crypto"
	"github.com/0xlarry/basearb/internal/domain"
	"github.com/0xlarry/basearb/internal/engine"
	"github.com/0xlarry/basearb/internal/gas"
	"github.com/0xlarry/basearb/internal/notify"
	"github.com/0xlarry/basearb/internal/platform/kyber"
	"github.com/0xlarry/basearb/internal/ratelimit"
	"github.com/0xlarry/basearb/internal/server"
	"github.com/0xlarry/basearb/internal/server/handler"
	"github.com/0xlarry/basearb/internal/server/ws"
	"github.com/0xlarry/basearb/internal/store/postgres"
)

// engineLockTTL is the Redis lock TTL; the holder renews at a third of this.
const engineLockTTL = 30 * time.Second

// Dependencies bundles everything the operating modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Chain      *chain.Client
	CurvePool  *chain.CurvePool
	Settlement *chain.Settlement
	CurveState *cache.CurveState
	Kyber      *kyber.Client
	Gas        *gas.Estimator
	Stats      *domain.RunStats

	Searcher *engine.Searcher
	Executor *engine.Executor
	Monitor  *engine.Monitor

	AttemptStore domain.AttemptStore // nil when no DSN configured
	Notifier     *notify.Notifier    // nil when no channel configured
	Server       *server.Server      // nil when disabled
	Hub          *ws.Hub             // nil when server disabled
}

// Wire constructs all concrete dependencies from the configuration and
// returns them with a cleanup function to call on shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, func() {}, err
	}

	deps := &Dependencies{
		Stats: domain.NewRunStats(time.Now()),
	}

	// --- Signing key and chain client ---
	keyHex, err := signingKey(cfg)
	if err != nil {
		return fail(err)
	}
	chainClient, err := chain.Dial(ctx, cfg.Chain.RPCURL, keyHex, cfg.Chain.ChainID)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, chainClient.Close)
	deps.Chain = chainClient

	deps.CurvePool, err = chain.NewCurvePool(chainClient, common.HexToAddress(cfg.Chain.CurvePool))
	if err != nil {
		return fail(err)
	}
	deps.Settlement, err = chain.NewSettlement(chainClient, common.HexToAddress(cfg.Chain.SettlementContract))
	if err != nil {
		return fail(err)
	}

	// --- Redis engine lock (one engine per signing key) ---
	if cfg.Redis.Addr != "" && cfg.Mode == "run" {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
		})
		if err != nil {
			return fail(err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		locks := redis.NewLockManager(redisClient)
		release, err := locks.Hold(ctx, "engine:"+chainClient.Address().Hex(), engineLockTTL, logger)
		if err != nil {
			return fail(fmt.Errorf("app: engine lock: %w", err))
		}
		closers = append(closers, release)
	}

	// --- Attempt journal ---
	if cfg.Postgres.DSN != "" {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail(err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail(err)
			}
		}
		deps.AttemptStore = postgres.NewAttemptStore(pgClient.Pool())
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	if len(senders) > 0 {
		deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)
	}

	// --- Market access ---
	limiter := ratelimit.NewWindow(cfg.Kyber.RateLimit, cfg.Kyber.RateInterval.Duration)
	deps.Kyber = kyber.NewClient(cfg.Kyber.BaseURL, limiter, cfg.Kyber.SlippageBps,
		time.Duration(cfg.Kyber.DeadlineSec)*time.Second, cfg.Kyber.MaxRetries, logger)
	deps.CurveState = cache.NewCurveState(deps.CurvePool, cfg.Engine.CacheTTL.Duration, logger)
	deps.Gas = gas.NewEstimator(chainClient, logger)

	// --- Status server ---
	var events engine.Notifier
	if cfg.Server.Enabled {
		deps.Hub = ws.NewHub(logger)
		closers = append(closers, deps.Hub.Close)

		deps.Server = server.NewServer(
			server.Config{Port: cfg.Server.Port, CORSOrigins: cfg.Server.CORSOrigins},
			server.Handlers{
				Health:   handler.NewHealthHandler(),
				Status:   handler.NewStatusHandler(cfg.Mode, chainClient.Address().Hex(), cfg.Chain.ChainID, time.Now()),
				Stats:    handler.NewStatsHandler(deps.Stats),
				Attempts: handler.NewAttemptsHandler(deps.AttemptStore),
			},
			deps.Hub,
			logger,
		)
	}
	events = eventSink{notifier: deps.Notifier, hub: deps.Hub}

	// --- Engine ---
	deps.Searcher = engine.NewSearcher(deps.Kyber, deps.CurveState, deps.Settlement, deps.Stats,
		engine.SearchConfig{
			AssetToken:        cfg.Chain.NativeToken,
			IntermediateToken: cfg.Chain.IntermediateToken,
			MinProfitWei:      cfg.Engine.MinProfitWei(),
		}, logger)

	deps.Executor = engine.NewExecutor(deps.Kyber, deps.Settlement, chainClient, deps.Gas,
		deps.Stats, deps.AttemptStore, events, cfg.Chain.ConfirmTimeout.Duration, logger)

	deps.Monitor = engine.NewMonitor(deps.Searcher, deps.Executor, chainClient, deps.Stats, events,
		engine.MonitorConfig{
			CandidateAmounts: cfg.Engine.CandidateAmountsWei(),
			MaxTradeWei:      cfg.Engine.MaxTradeWei(),
			MinBalanceWei:    cfg.Engine.MinBalanceWei(),
			ExecTimeout:      cfg.Engine.ExecTimeout.Duration,
			DryRun:           cfg.Mode == "monitor",
			RefineEnabled:    cfg.Engine.RefineEnabled,
		}, logger)

	return deps, cleanup, nil
}

// signingKey resolves the configured key, or generates an ephemeral one for
// read-only modes so the RPC client can still populate eth_call sender
// fields.
func signingKey(cfg *config.Config) (string, error) {
	if cfg.Wallet.PrivateKey == "" && cfg.Wallet.EncryptedKeyPath == "" && cfg.Mode != "run" {
		key, err := ethcrypto.GenerateKey()
		if err != nil {
			return "", fmt.Errorf("app: generate ephemeral key: %w", err)
		}
		return hex.EncodeToString(ethcrypto.FromECDSA(key)), nil
	}
	return crypto.LoadKey(crypto.KeyConfig{
		RawPrivateKey:    cfg.Wallet.PrivateKey,
		EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
		KeyPassword:      cfg.Wallet.KeyPassword,
	})
}

// eventSink forwards engine events to the operator channels and the
// WebSocket hub. Either target may be nil.
type eventSink struct {
	notifier *notify.Notifier
	hub      *ws.Hub
}

func (s eventSink) Notify(ctx context.Context, event, title, message string) error {
	if s.hub != nil {
		s.hub.Broadcast(event, map[string]string{"title": title, "message": message})
	}
	if s.notifier != nil {
		return s.notifier.Notify(ctx, event, title, message)
	}
	return nil
}
