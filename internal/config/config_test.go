package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validConfig returns a Config that passes Validate in monitor mode.
func validConfig() Config {
	cfg := Defaults()
	cfg.Chain.RPCURL = "https://rpc.example.com"
	cfg.Pool.PairAddress = "0xpair"
	cfg.Pool.ManagerAddress = "0xmanager"
	cfg.Pool.TokenX = "0xtokenx"
	cfg.Pool.TokenY = "native"
	cfg.Wallet.Address = "0xowner"
	return cfg
}

func TestValidateMonitorMode(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidateAutoModeRequiresKeyAndAggregator(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "auto"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "private_key or encrypted_key_path")
	assert.Contains(t, err.Error(), "aggregator: base_url")

	cfg.Wallet.PrivateKey = "deadbeef"
	cfg.Aggregator.BaseURL = "https://agg.example.com"
	require.NoError(t, cfg.Validate())
}

func TestValidateEncryptedKeyNeedsPassword(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "auto"
	cfg.Aggregator.BaseURL = "https://agg.example.com"
	cfg.Wallet.EncryptedKeyPath = "/keys/wallet.enc"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key_password is required")
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Config{Mode: "banana", LogLevel: "loud"}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown mode "banana"`)
	assert.Contains(t, err.Error(), `unknown log_level "loud"`)
	assert.Contains(t, err.Error(), "rpc_url must not be empty")
	assert.Contains(t, err.Error(), "pair_address must not be empty")
}

func TestValidateBackendsCheckedOnlyWhenEnabled(t *testing.T) {
	cfg := validConfig()
	cfg.Postgres = PostgresConfig{}
	cfg.Redis = RedisConfig{}
	cfg.S3 = S3Config{}
	require.NoError(t, cfg.Validate(), "disabled backends are not validated")

	cfg.Postgres.Enabled = true
	cfg.Redis.Enabled = true
	cfg.S3.Enabled = true

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: host must not be empty")
	assert.Contains(t, err.Error(), "redis: addr must not be empty")
	assert.Contains(t, err.Error(), "s3: bucket must not be empty")
}

func TestValidateSlippageBounds(t *testing.T) {
	cfg := validConfig()
	cfg.Rebalance.SlippageBps = 10_001

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slippage_bps must be 0-10000")
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := writeTOML(t, `
mode = "auto"

[chain]
rpc_url = "https://rpc.example.com"
confirm_timeout = "2m"

[monitor]
interval = "30s"

[rebalance]
gas_reserve = 0.1
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "auto", cfg.Mode)
	assert.Equal(t, 2*time.Minute, cfg.Chain.ConfirmTimeout.Duration)
	assert.Equal(t, 30*time.Second, cfg.Monitor.Interval.Duration)
	assert.Equal(t, 0.1, cfg.Rebalance.GasReserve)

	// Untouched fields keep their defaults.
	assert.Equal(t, int64(43114), cfg.Chain.ChainID)
	assert.Equal(t, 50*time.Second, cfg.Rebalance.SettleWait.Duration)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadEnvOverridesWin(t *testing.T) {
	path := writeTOML(t, `
[chain]
rpc_url = "https://file.example.com"

[redis]
enabled = false
`)

	t.Setenv("RANGEKEEPER_CHAIN_RPC_URL", "https://env.example.com")
	t.Setenv("RANGEKEEPER_REDIS_ENABLED", "true")
	t.Setenv("RANGEKEEPER_MONITOR_INTERVAL", "45s")
	t.Setenv("RANGEKEEPER_NOTIFY_EVENTS", "range_exit, range_enter")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://env.example.com", cfg.Chain.RPCURL)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 45*time.Second, cfg.Monitor.Interval.Duration)
	assert.Equal(t, []string{"range_exit", "range_enter"}, cfg.Notify.Events)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}

func TestDurationUnmarshalText(t *testing.T) {
	var d duration
	require.NoError(t, d.UnmarshalText([]byte("90s")))
	assert.Equal(t, 90*time.Second, d.Duration)

	require.Error(t, d.UnmarshalText([]byte("soon")))

	out, err := duration{5 * time.Minute}.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "5m0s", string(out))
}

func writeTOML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}
