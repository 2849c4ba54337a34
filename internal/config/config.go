// Package config defines the top-level configuration for rangekeeper and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by RANGEKEEPER_* environment
// variables.
type Config struct {
	Wallet     WalletConfig     `toml:"wallet"`
	Chain      ChainConfig      `toml:"chain"`
	Pool       PoolConfig       `toml:"pool"`
	Aggregator AggregatorConfig `toml:"aggregator"`
	Monitor    MonitorConfig    `toml:"monitor"`
	Rebalance  RebalanceConfig  `toml:"rebalance"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// WalletConfig holds the operator's wallet credentials.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	Address          string `toml:"address"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// ChainConfig holds RPC endpoint and chain parameters.
type ChainConfig struct {
	RPCURL         string   `toml:"rpc_url"`
	ChainID        int64    `toml:"chain_id"`
	ConfirmTimeout duration `toml:"confirm_timeout"`
	CallTimeout    duration `toml:"call_timeout"`
}

// PoolConfig identifies the bin pool and its two assets.
type PoolConfig struct {
	// PairAddress is the bin pool (pair) contract.
	PairAddress string `toml:"pair_address"`
	// ManagerAddress is the position manager contract.
	ManagerAddress string `toml:"manager_address"`
	// TokenX is the ERC-20 address of asset X.
	TokenX string `toml:"token_x"`
	// TokenY is the address of asset Y, or "native" when Y is the chain's
	// native asset.
	TokenY string `toml:"token_y"`
}

// AggregatorConfig holds the swap route service parameters.
type AggregatorConfig struct {
	BaseURL     string `toml:"base_url"`
	SlippageBps int    `toml:"slippage_bps"`
}

// MonitorConfig holds the range-monitoring cycle parameters.
type MonitorConfig struct {
	// Interval is the period between check cycles.
	Interval duration `toml:"interval"`
	// PoolID labels cache keys and dashboard events for this pool.
	PoolID string `toml:"pool_id"`
}

// RebalanceConfig holds the rebalance pipeline parameters.
type RebalanceConfig struct {
	// RangeHalfWidth is the number of bins on each side of the active bin
	// for a redeposited position.
	RangeHalfWidth int `toml:"range_half_width"`
	// SettleWait is the fixed post-swap wait before balances are re-read.
	SettleWait duration `toml:"settle_wait"`
	// SettlePoll enables polling balances during the settle wait and
	// returning early once the post-swap delta is visible.
	SettlePoll bool `toml:"settle_poll"`
	// GasReserve is the amount of the native asset, in whole units, kept
	// out of deposits to pay future transaction fees.
	GasReserve float64 `toml:"gas_reserve"`
	SlippageBps int    `toml:"slippage_bps"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
	// Enabled turns persistence on; with it off the bot runs purely in
	// memory.
	Enabled bool `toml:"enabled"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	Enabled    bool   `toml:"enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	// ArchiveAfter is the age past which records are archived.
	ArchiveAfter duration `toml:"archive_after"`
	Enabled      bool     `toml:"enabled"`
}

// ServerConfig holds the HTTP API parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	APIKey      string   `toml:"api_key"`
	CORSOrigins []string `toml:"cors_origins"`
}

// NotifyConfig holds notification channel parameters.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	// Events is the allow-list of event types to forward; empty forwards
	// everything.
	Events []string `toml:"events"`
}

var validModes = map[string]bool{
	"monitor": true,
	"auto":    true,
	"status":  true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Defaults returns the built-in configuration defaults. Load merges the TOML
// file on top of these.
func Defaults() Config {
	return Config{
		Chain: ChainConfig{
			ChainID:        43114,
			ConfirmTimeout: duration{90 * time.Second},
			CallTimeout:    duration{15 * time.Second},
		},
		Aggregator: AggregatorConfig{
			SlippageBps: 50,
		},
		Monitor: MonitorConfig{
			Interval: duration{5 * time.Minute},
			PoolID:   "default",
		},
		Rebalance: RebalanceConfig{
			RangeHalfWidth: 5,
			SettleWait:     duration{50 * time.Second},
			SettlePoll:     false,
			GasReserve:     0.07,
			SlippageBps:    50,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "rangekeeper",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Region:         "us-east-1",
			Bucket:         "rangekeeper-data",
			ForcePathStyle: true,
			ArchiveAfter:   duration{30 * 24 * time.Hour},
		},
		Server: ServerConfig{
			Port: 8080,
		},
		Mode:     "monitor",
		LogLevel: "info",
	}
}

// Validate checks the configuration for internal consistency and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: monitor, auto, status)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Chain.RPCURL == "" {
		errs = append(errs, "chain: rpc_url must not be empty")
	}
	if c.Chain.ChainID <= 0 {
		errs = append(errs, fmt.Sprintf("chain: chain_id must be positive, got %d", c.Chain.ChainID))
	}

	if c.Pool.PairAddress == "" {
		errs = append(errs, "pool: pair_address must not be empty")
	}
	if c.Pool.ManagerAddress == "" {
		errs = append(errs, "pool: manager_address must not be empty")
	}
	if c.Pool.TokenX == "" {
		errs = append(errs, "pool: token_x must not be empty")
	}

	if c.Wallet.Address == "" {
		errs = append(errs, "wallet: address must not be empty")
	}

	// Auto mode signs transactions, so it needs a key source.
	if strings.ToLower(c.Mode) == "auto" {
		if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
			errs = append(errs, "wallet: either private_key or encrypted_key_path must be set for mode auto")
		}
		if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
			errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
		}
		if c.Aggregator.BaseURL == "" {
			errs = append(errs, "aggregator: base_url must not be empty for mode auto")
		}
	}

	if c.Monitor.Interval.Duration < time.Second {
		errs = append(errs, "monitor: interval must be at least 1s")
	}

	if c.Rebalance.RangeHalfWidth < 1 {
		errs = append(errs, fmt.Sprintf("rebalance: range_half_width must be >= 1, got %d", c.Rebalance.RangeHalfWidth))
	}
	if c.Rebalance.SettleWait.Duration < 0 {
		errs = append(errs, "rebalance: settle_wait must not be negative")
	}
	if c.Rebalance.GasReserve < 0 {
		errs = append(errs, "rebalance: gas_reserve must not be negative")
	}
	if c.Rebalance.SlippageBps < 0 || c.Rebalance.SlippageBps > 10_000 {
		errs = append(errs, fmt.Sprintf("rebalance: slippage_bps must be 0-10000, got %d", c.Rebalance.SlippageBps))
	}

	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}

	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}

	if c.Notify.TelegramToken != "" && c.Notify.TelegramChatID == "" {
		errs = append(errs, "notify: telegram_chat_id is required when telegram_token is set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// duration wraps time.Duration so TOML values like "5m" parse naturally.
type duration struct {
	time.Duration
}

// UnmarshalText parses a duration string such as "50s" or "5m".
func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// MarshalText renders the duration back to its string form.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}
