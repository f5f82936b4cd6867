package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	localblob "github.com/alanyoungcy/auctiondb/internal/blob/local"
	s3blob "github.com/alanyoungcy/auctiondb/internal/blob/s3"
	sqliteblob "github.com/alanyoungcy/auctiondb/internal/blob/sqlite"
	"github.com/alanyoungcy/auctiondb/internal/bonus"
	"github.com/alanyoungcy/auctiondb/internal/cache/filecache"
	"github.com/alanyoungcy/auctiondb/internal/cache/redis"
	"github.com/alanyoungcy/auctiondb/internal/config"
	"github.com/alanyoungcy/auctiondb/internal/dbfile"
	"github.com/alanyoungcy/auctiondb/internal/domain"
	"github.com/alanyoungcy/auctiondb/internal/notify"
	"github.com/alanyoungcy/auctiondb/internal/pipeline"
	"github.com/alanyoungcy/auctiondb/internal/store/postgres"
	"github.com/alanyoungcy/auctiondb/internal/upstream/blizzard"
)

// Dependencies bundles every domain-level dependency that the application modes
// need to operate. It is constructed by Wire and torn down by the returned
// cleanup function. Optional members are nil when their backend is disabled.
type Dependencies struct {
	// Storage
	Files   *dbfile.Helper
	Remote  domain.FileStore
	Forker  *dbfile.Forker
	Exports domain.FileStore

	// Coordination and read models
	Locks    domain.LockManager
	Values   domain.ValueCache
	Cycles   domain.CycleStore
	EventBus *redis.EventBus

	// Update inputs
	Bonus  *bonus.Table
	Source pipeline.ListingsSource

	// Alerts is nil when no sender is configured.
	Alerts *notify.Notifier

	// Checks are run by the health endpoint, keyed by backend name.
	Checks map[string]func(context.Context) error
}

// needsUpstream returns true for modes that pull listings.
func needsUpstream(mode string) bool {
	return mode == "update" || mode == "daemon"
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
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	mode := strings.ToLower(cfg.Mode)
	deps := &Dependencies{Checks: map[string]func(context.Context) error{}}

	// --- Data backend ---
	var files domain.FileStore
	switch cfg.Data.Backend {
	case "sqlite":
		if err := os.MkdirAll(cfg.Data.Path, 0o755); err != nil {
			return fail(fmt.Errorf("wire: data path: %w", err))
		}
		db, err := sqliteblob.Open(filepath.Join(cfg.Data.Path, cfg.Data.SQLiteFile))
		if err != nil {
			return fail(fmt.Errorf("wire: sqlite: %w", err))
		}
		closers = append(closers, func() { _ = db.Close() })
		files = db
	default:
		dir, err := localblob.New(cfg.Data.Path)
		if err != nil {
			return fail(fmt.Errorf("wire: data path: %w", err))
		}
		files = dir
	}
	deps.Files = dbfile.NewHelper(files, cfg.Data.Compress, logger)

	if cfg.Export.Enabled || mode == "export" {
		exports, err := localblob.New(cfg.Export.Path)
		if err != nil {
			return fail(fmt.Errorf("wire: export path: %w", err))
		}
		deps.Exports = exports
	}

	// --- S3 (fork source and publish target) ---
	if cfg.Fork.Enabled || cfg.Publish.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			Prefix:         cfg.S3.Prefix,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		closers = append(closers, func() { _ = s3Client.Close() })
		deps.Remote = s3Client
		if cfg.Fork.Enabled {
			deps.Forker = dbfile.NewForker(files, s3Client, logger)
		}
	}

	// --- PostgreSQL audit log ---
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
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}
		deps.Cycles = postgres.NewCycleStore(pgClient.Pool())
		deps.Checks["postgres"] = pgClient.Ping
	}

	// --- Redis ---
	var responses domain.ResponseCache
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.Checks["redis"] = redisClient.Ping
		deps.Locks = redis.NewLockManager(redisClient)
		deps.Values = redis.NewValueCache(redisClient, cfg.Redis.ValueTTL.Duration)
		deps.EventBus = redis.NewEventBus(redisClient, logger)
		responses = redis.NewResponseCache(redisClient)
	} else {
		deps.Locks = pipeline.NewLocalLocks()
	}

	// --- Update inputs ---
	if needsUpstream(mode) {
		deps.Bonus = bonus.NewTable(nil)
		if cfg.Bonus.TablePath != "" {
			table, err := bonus.Load(cfg.Bonus.TablePath)
			if err != nil {
				return fail(fmt.Errorf("wire: %w", err))
			}
			deps.Bonus = table
		} else {
			logger.Warn("no bonus table configured, item level keys are disabled")
		}

		client := blizzard.NewClient(blizzard.Config{
			BaseURL:      cfg.Upstream.BaseURL,
			TokenURL:     cfg.Upstream.TokenURL,
			ClientID:     cfg.Upstream.ClientID,
			ClientSecret: cfg.Upstream.ClientSecret,
			RPS:          cfg.Upstream.RPS,
			Burst:        cfg.Upstream.Burst,
			Timeout:      cfg.Upstream.Timeout.Duration,
		}, logger)
		if cc := cfg.Upstream.Cache; cc.Enabled {
			if responses == nil {
				dir, err := localblob.New(cc.Dir)
				if err != nil {
					return fail(fmt.Errorf("wire: cache dir: %w", err))
				}
				responses = filecache.New(dir)
			}
			client.WithCache(responses, cc.RealmTTL.Duration, cc.ListingsTTL.Duration)
		}
		deps.Source = client
	}

	// --- Alerts ---
	var senders []notify.Sender
	if cfg.Notify.DiscordWebhook != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhook))
	}
	if cfg.Notify.TelegramToken != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if len(senders) > 0 {
		deps.Alerts = notify.NewNotifier(senders, cfg.Notify.Events, logger)
	}

	return deps, cleanup, nil
}
