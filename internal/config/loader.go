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
// built-in defaults, applies RANGEKEEPER_* environment variable overrides,
// and returns the final Config. The returned Config has NOT been validated;
// the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known RANGEKEEPER_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e.
// not empty). This lets operators inject secrets at deploy time without
// touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "RANGEKEEPER_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.Address, "RANGEKEEPER_WALLET_ADDRESS")
	setStr(&cfg.Wallet.EncryptedKeyPath, "RANGEKEEPER_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "RANGEKEEPER_WALLET_KEY_PASSWORD")

	// ── Chain ──
	setStr(&cfg.Chain.RPCURL, "RANGEKEEPER_CHAIN_RPC_URL")
	setInt64(&cfg.Chain.ChainID, "RANGEKEEPER_CHAIN_ID")
	setDuration(&cfg.Chain.ConfirmTimeout, "RANGEKEEPER_CHAIN_CONFIRM_TIMEOUT")
	setDuration(&cfg.Chain.CallTimeout, "RANGEKEEPER_CHAIN_CALL_TIMEOUT")

	// ── Pool ──
	setStr(&cfg.Pool.PairAddress, "RANGEKEEPER_POOL_PAIR_ADDRESS")
	setStr(&cfg.Pool.ManagerAddress, "RANGEKEEPER_POOL_MANAGER_ADDRESS")
	setStr(&cfg.Pool.TokenX, "RANGEKEEPER_POOL_TOKEN_X")
	setStr(&cfg.Pool.TokenY, "RANGEKEEPER_POOL_TOKEN_Y")

	// ── Aggregator ──
	setStr(&cfg.Aggregator.BaseURL, "RANGEKEEPER_AGGREGATOR_BASE_URL")
	setInt(&cfg.Aggregator.SlippageBps, "RANGEKEEPER_AGGREGATOR_SLIPPAGE_BPS")

	// ── Monitor ──
	setDuration(&cfg.Monitor.Interval, "RANGEKEEPER_MONITOR_INTERVAL")
	setStr(&cfg.Monitor.PoolID, "RANGEKEEPER_MONITOR_POOL_ID")

	// ── Rebalance ──
	setInt(&cfg.Rebalance.RangeHalfWidth, "RANGEKEEPER_REBALANCE_RANGE_HALF_WIDTH")
	setDuration(&cfg.Rebalance.SettleWait, "RANGEKEEPER_REBALANCE_SETTLE_WAIT")
	setBool(&cfg.Rebalance.SettlePoll, "RANGEKEEPER_REBALANCE_SETTLE_POLL")
	setFloat64(&cfg.Rebalance.GasReserve, "RANGEKEEPER_REBALANCE_GAS_RESERVE")
	setInt(&cfg.Rebalance.SlippageBps, "RANGEKEEPER_REBALANCE_SLIPPAGE_BPS")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "RANGEKEEPER_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "RANGEKEEPER_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "RANGEKEEPER_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "RANGEKEEPER_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "RANGEKEEPER_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "RANGEKEEPER_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "RANGEKEEPER_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "RANGEKEEPER_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "RANGEKEEPER_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "RANGEKEEPER_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "RANGEKEEPER_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "RANGEKEEPER_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "RANGEKEEPER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "RANGEKEEPER_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "RANGEKEEPER_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "RANGEKEEPER_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "RANGEKEEPER_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "RANGEKEEPER_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "RANGEKEEPER_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "RANGEKEEPER_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "RANGEKEEPER_S3_REGION")
	setStr(&cfg.S3.Bucket, "RANGEKEEPER_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "RANGEKEEPER_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "RANGEKEEPER_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "RANGEKEEPER_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "RANGEKEEPER_S3_FORCE_PATH_STYLE")
	setDuration(&cfg.S3.ArchiveAfter, "RANGEKEEPER_S3_ARCHIVE_AFTER")

	// ── Server ──
	setInt(&cfg.Server.Port, "RANGEKEEPER_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "RANGEKEEPER_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "RANGEKEEPER_SERVER_CORS_ORIGINS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "RANGEKEEPER_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "RANGEKEEPER_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "RANGEKEEPER_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "RANGEKEEPER_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "RANGEKEEPER_MODE")
	setStr(&cfg.LogLevel, "RANGEKEEPER_LOG_LEVEL")
}

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

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
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
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			*dst = out
		}
	}
}
