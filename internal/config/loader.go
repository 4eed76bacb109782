package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies BASEARB_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known BASEARB_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// Chain
	setStr(&cfg.Chain.RPCURL, "BASEARB_CHAIN_RPC_URL")
	setInt64(&cfg.Chain.ChainID, "BASEARB_CHAIN_CHAIN_ID")
	setStr(&cfg.Chain.SettlementContract, "BASEARB_CHAIN_SETTLEMENT_CONTRACT")
	setStr(&cfg.Chain.CurvePool, "BASEARB_CHAIN_CURVE_POOL")
	setStr(&cfg.Chain.IntermediateToken, "BASEARB_CHAIN_INTERMEDIATE_TOKEN")
	setStr(&cfg.Chain.NativeToken, "BASEARB_CHAIN_NATIVE_TOKEN")
	setDuration(&cfg.Chain.ConfirmTimeout, "BASEARB_CHAIN_CONFIRM_TIMEOUT")

	// Wallet
	setStr(&cfg.Wallet.PrivateKey, "BASEARB_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "BASEARB_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "BASEARB_WALLET_KEY_PASSWORD")

	// Kyber
	setStr(&cfg.Kyber.BaseURL, "BASEARB_KYBER_BASE_URL")
	setInt(&cfg.Kyber.SlippageBps, "BASEARB_KYBER_SLIPPAGE_BPS")
	setInt64(&cfg.Kyber.DeadlineSec, "BASEARB_KYBER_DEADLINE_SEC")
	setInt(&cfg.Kyber.RateLimit, "BASEARB_KYBER_RATE_LIMIT")
	setDuration(&cfg.Kyber.RateInterval, "BASEARB_KYBER_RATE_INTERVAL")
	setInt(&cfg.Kyber.MaxRetries, "BASEARB_KYBER_MAX_RETRIES")

	// Engine
	setStr(&cfg.Engine.MinProfitETH, "BASEARB_ENGINE_MIN_PROFIT_ETH")
	setStr(&cfg.Engine.MaxTradeETH, "BASEARB_ENGINE_MAX_TRADE_ETH")
	setStr(&cfg.Engine.MinBalanceETH, "BASEARB_ENGINE_MIN_BALANCE_ETH")
	setStringSlice(&cfg.Engine.CandidateAmounts, "BASEARB_ENGINE_CANDIDATE_AMOUNTS")
	setDuration(&cfg.Engine.CacheTTL, "BASEARB_ENGINE_CACHE_TTL")
	setDuration(&cfg.Engine.ExecTimeout, "BASEARB_ENGINE_EXEC_TIMEOUT")
	setBool(&cfg.Engine.RefineEnabled, "BASEARB_ENGINE_REFINE_ENABLED")

	// Postgres
	setStr(&cfg.Postgres.DSN, "BASEARB_POSTGRES_DSN")
	setInt(&cfg.Postgres.PoolMaxConns, "BASEARB_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "BASEARB_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "BASEARB_POSTGRES_RUN_MIGRATIONS")

	// Redis
	setStr(&cfg.Redis.Addr, "BASEARB_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "BASEARB_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "BASEARB_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "BASEARB_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "BASEARB_REDIS_MAX_RETRIES")

	// Server
	setBool(&cfg.Server.Enabled, "BASEARB_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "BASEARB_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "BASEARB_SERVER_CORS_ORIGINS")

	// Notify
	setStr(&cfg.Notify.TelegramToken, "BASEARB_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "BASEARB_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "BASEARB_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "BASEARB_NOTIFY_EVENTS")

	// Top-level
	setStr(&cfg.Mode, "BASEARB_MODE")
	setStr(&cfg.LogLevel, "BASEARB_LOG_LEVEL")
	setStr(&cfg.LogFile, "BASEARB_LOG_FILE")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
