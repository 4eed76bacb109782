// Package config defines the top-level configuration for the arbitrage
// engine and provides validation helpers.
package config

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by BASEARB_* environment
// variables.
type Config struct {
	Chain    ChainConfig    `toml:"chain"`
	Wallet   WalletConfig   `toml:"wallet"`
	Kyber    KyberConfig    `toml:"kyber"`
	Engine   EngineConfig   `toml:"engine"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
	LogFile  string         `toml:"log_file"`
}

// ChainConfig holds RPC endpoint and contract addresses.
type ChainConfig struct {
	RPCURL             string   `toml:"rpc_url"`
	ChainID            int64    `toml:"chain_id"`
	SettlementContract string   `toml:"settlement_contract"`
	CurvePool          string   `toml:"curve_pool"`
	IntermediateToken  string   `toml:"intermediate_token"`
	NativeToken        string   `toml:"native_token"`
	ConfirmTimeout     duration `toml:"confirm_timeout"`
}

// WalletConfig holds the signing key source.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// KyberConfig holds aggregator API parameters.
type KyberConfig struct {
	BaseURL      string   `toml:"base_url"`
	SlippageBps  int      `toml:"slippage_bps"`
	DeadlineSec  int64    `toml:"deadline_sec"`
	RateLimit    int      `toml:"rate_limit"`
	RateInterval duration `toml:"rate_interval"`
	MaxRetries   int      `toml:"max_retries"`
}

// EngineConfig holds trading parameters. ETH-denominated fields are decimal
// strings so sub-wei rounding never sneaks in via float parsing.
type EngineConfig struct {
	MinProfitETH     string   `toml:"min_profit_eth"`
	MaxTradeETH      string   `toml:"max_trade_eth"`
	MinBalanceETH    string   `toml:"min_balance_eth"`
	CandidateAmounts []string `toml:"candidate_amounts"`
	CacheTTL         duration `toml:"cache_ttl"`
	ExecTimeout      duration `toml:"exec_timeout"`
	RefineEnabled    bool     `toml:"refine_enabled"`
}

// PostgresConfig holds the optional attempt-journal database parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds the optional engine-lock connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
}

// ServerConfig holds status HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Chain: ChainConfig{
			RPCURL:         "https://mainnet.base.org",
			ChainID:        8453,
			NativeToken:    "0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE",
			ConfirmTimeout: duration{120 * time.Second},
		},
		Kyber: KyberConfig{
			BaseURL:      "https://aggregator-api.kyberswap.com/base/api/v1",
			SlippageBps:  300,
			DeadlineSec:  300,
			RateLimit:    50,
			RateInterval: duration{time.Minute},
			MaxRetries:   3,
		},
		Engine: EngineConfig{
			MinProfitETH:  "0.00002",
			MaxTradeETH:   "1.0",
			MinBalanceETH: "0.002",
			CandidateAmounts: []string{
				"0.001", "0.005", "0.01", "0.05", "0.1", "0.25", "0.5", "1.0",
			},
			CacheTTL:    duration{5 * time.Second},
			ExecTimeout: duration{5 * time.Minute},
		},
		Postgres: PostgresConfig{
			PoolMaxConns:  4,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "",
			PoolSize:   10,
			MaxRetries: 3,
		},
		Server: ServerConfig{
			Enabled: false,
			Port:    8080,
		},
		Notify: NotifyConfig{
			Events: []string{"trade_executed", "trade_failed", "low_balance", "engine_error"},
		},
		Mode:     "run",
		LogLevel: "info",
	}
}

var validModes = map[string]bool{
	"run":     true,
	"monitor": true,
	"once":    true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks the configuration for internal consistency and returns a
// single error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: run, monitor, once)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Chain
	if c.Chain.RPCURL == "" {
		errs = append(errs, "chain: rpc_url must not be empty")
	}
	if c.Chain.ChainID <= 0 {
		errs = append(errs, "chain: chain_id must be positive")
	}
	for _, f := range []struct{ name, addr string }{
		{"settlement_contract", c.Chain.SettlementContract},
		{"curve_pool", c.Chain.CurvePool},
		{"intermediate_token", c.Chain.IntermediateToken},
	} {
		if f.addr == "" {
			errs = append(errs, fmt.Sprintf("chain: %s must not be empty", f.name))
		} else if !common.IsHexAddress(f.addr) {
			errs = append(errs, fmt.Sprintf("chain: %s %q is not a valid address", f.name, f.addr))
		}
	}

	// Wallet is required whenever the engine may submit transactions.
	needsWallet := strings.ToLower(c.Mode) == "run"
	if needsWallet {
		if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
			errs = append(errs, "wallet: either private_key or encrypted_key_path must be set for mode "+c.Mode)
		}
		if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
			errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
		}
	}

	// Kyber
	if c.Kyber.BaseURL == "" {
		errs = append(errs, "kyber: base_url must not be empty")
	}
	if c.Kyber.SlippageBps <= 0 || c.Kyber.SlippageBps > 10_000 {
		errs = append(errs, fmt.Sprintf("kyber: slippage_bps must be in (0, 10000], got %d", c.Kyber.SlippageBps))
	}
	if c.Kyber.RateLimit <= 0 {
		errs = append(errs, "kyber: rate_limit must be positive")
	}

	// Engine
	if _, err := parseETH(c.Engine.MinProfitETH); err != nil {
		errs = append(errs, "engine: min_profit_eth: "+err.Error())
	}
	if v, err := parseETH(c.Engine.MaxTradeETH); err != nil {
		errs = append(errs, "engine: max_trade_eth: "+err.Error())
	} else if v.Sign() <= 0 {
		errs = append(errs, "engine: max_trade_eth must be positive")
	}
	if _, err := parseETH(c.Engine.MinBalanceETH); err != nil {
		errs = append(errs, "engine: min_balance_eth: "+err.Error())
	}
	if len(c.Engine.CandidateAmounts) == 0 {
		errs = append(errs, "engine: candidate_amounts must not be empty")
	}
	for _, s := range c.Engine.CandidateAmounts {
		if v, err := parseETH(s); err != nil {
			errs = append(errs, fmt.Sprintf("engine: candidate amount %q: %v", s, err))
		} else if v.Sign() <= 0 {
			errs = append(errs, fmt.Sprintf("engine: candidate amount %q must be positive", s))
		}
	}
	if c.Engine.CacheTTL.Duration <= 0 {
		errs = append(errs, "engine: cache_ttl must be positive")
	}

	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		errs = append(errs, fmt.Sprintf("server: port %d out of range", c.Server.Port))
	}

	// Telegram credentials must be set together.
	tt := c.Notify.TelegramToken != ""
	tc := c.Notify.TelegramChatID != ""
	if tt != tc {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// MinProfitWei returns the profit threshold in wei. Call Validate first.
func (c *EngineConfig) MinProfitWei() *big.Int {
	v, _ := parseETH(c.MinProfitETH)
	return v
}

// MaxTradeWei returns the trade ceiling in wei. Call Validate first.
func (c *EngineConfig) MaxTradeWei() *big.Int {
	v, _ := parseETH(c.MaxTradeETH)
	return v
}

// MinBalanceWei returns the balance floor in wei. Call Validate first.
func (c *EngineConfig) MinBalanceWei() *big.Int {
	v, _ := parseETH(c.MinBalanceETH)
	return v
}

// CandidateAmountsWei returns the candidate grid in wei, in the configured
// order. Call Validate first.
func (c *EngineConfig) CandidateAmountsWei() []*big.Int {
	out := make([]*big.Int, 0, len(c.CandidateAmounts))
	for _, s := range c.CandidateAmounts {
		v, err := parseETH(s)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

func parseETH(s string) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid decimal %q", s)
	}
	return d.Shift(18).BigInt(), nil
}
