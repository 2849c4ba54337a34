package app

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	s3blob "github.com/lpwatch/rangekeeper/internal/blob/s3"
	"github.com/lpwatch/rangekeeper/internal/cache/redis"
	"github.com/lpwatch/rangekeeper/internal/config"
	rkcrypto "github.com/lpwatch/rangekeeper/internal/crypto"
	"github.com/lpwatch/rangekeeper/internal/domain"
	"github.com/lpwatch/rangekeeper/internal/notify"
	"github.com/lpwatch/rangekeeper/internal/platform/aggregator"
	"github.com/lpwatch/rangekeeper/internal/platform/binpool"
	"github.com/lpwatch/rangekeeper/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function. Optional backends (Postgres, Redis, S3) leave
// their fields nil when disabled.
type Dependencies struct {
	// Chain access
	Pool   *binpool.Client
	Signer *rkcrypto.Signer // nil in read-only modes

	// Swap routing
	Router domain.SwapRouter

	// Stores
	RebalanceStore domain.RebalanceStore
	AlertStore     domain.AlertStore

	// Caches
	BinCache    domain.BinCache
	LockManager domain.LockManager
	Bus         *redis.Bus

	// Blob storage
	BlobWriter domain.BlobWriter
	Archiver   *s3blob.ArchiveImpl

	// Notifications
	Notifier *notify.Notifier
	Alerter  *notify.Alerter
}

// Owner returns the wallet address positions belong to: the signer's address
// when a key is loaded, otherwise the configured watch address.
func (d *Dependencies) Owner(cfg *config.Config) string {
	if d.Signer != nil {
		return d.Signer.Address().Hex()
	}
	return cfg.Wallet.Address
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Wallet signer (only for auto mode) ---
	if strings.ToLower(cfg.Mode) == "auto" {
		keyHex, err := rkcrypto.LoadKey(rkcrypto.KeyConfig{
			RawPrivateKey:    cfg.Wallet.PrivateKey,
			EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
			KeyPassword:      cfg.Wallet.KeyPassword,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("wire: wallet key: %w", err)
		}
		signer, err := rkcrypto.NewSigner(keyHex, cfg.Chain.ChainID)
		if err != nil {
			return nil, nil, fmt.Errorf("wire: signer: %w", err)
		}
		deps.Signer = signer
	}

	// --- Pool client ---
	pool, err := binpool.NewClient(ctx, cfg.Chain.RPCURL, binpool.ClientConfig{
		PairAddress:    cfg.Pool.PairAddress,
		ManagerAddress: cfg.Pool.ManagerAddress,
		TokenX:         cfg.Pool.TokenX,
		TokenY:         cfg.Pool.TokenY,
		CallTimeout:    cfg.Chain.CallTimeout.Duration,
		ConfirmTimeout: cfg.Chain.ConfirmTimeout.Duration,
	}, deps.Signer, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: pool client: %w", err)
	}
	closers = append(closers, pool.Close)
	deps.Pool = pool

	// --- Swap aggregator ---
	if cfg.Aggregator.BaseURL != "" {
		deps.Router = aggregator.NewClient(cfg.Aggregator.BaseURL)
	}

	// --- PostgreSQL ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		p := pgClient.Pool()
		deps.RebalanceStore = postgres.NewRebalanceStore(p)
		deps.AlertStore = postgres.NewAlertStore(p)
	}

	// --- Redis ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.BinCache = redis.NewBinCache(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.Bus = redis.NewBus(redisClient)
	}

	// --- S3 blob storage ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		if deps.RebalanceStore != nil && deps.AlertStore != nil {
			deps.Archiver = s3blob.NewArchiver(deps.BlobWriter, deps.RebalanceStore, deps.AlertStore, logger)
		}
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	var pub domain.Publisher
	if deps.Bus != nil {
		pub = deps.Bus
	}
	deps.Alerter = notify.NewAlerter(deps.Notifier, deps.AlertStore, pub, logger)

	return deps, cleanup, nil
}

// gasReserveBase converts the configured native-unit gas reserve to base
// units (wei).
func gasReserveBase(reserve float64) *big.Int {
	f := new(big.Float).Mul(big.NewFloat(reserve), big.NewFloat(1e18))
	out, _ := f.Int(nil)
	if out.Sign() < 0 {
		return new(big.Int)
	}
	return out
}
