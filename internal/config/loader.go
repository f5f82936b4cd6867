package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies AUCTIONDB_* environment variable overrides, and
// returns the final Config. A missing file leaves the defaults in place. The
// returned Config has NOT been validated; the caller should invoke
// Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known AUCTIONDB_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Data ──
	setStr(&cfg.Data.Path, "AUCTIONDB_DATA_PATH")
	setStr(&cfg.Data.Backend, "AUCTIONDB_DATA_BACKEND")
	setStr(&cfg.Data.SQLiteFile, "AUCTIONDB_DATA_SQLITE_FILE")
	setBool(&cfg.Data.Compress, "AUCTIONDB_DATA_COMPRESS")

	// ── Bonus ──
	setStr(&cfg.Bonus.TablePath, "AUCTIONDB_BONUS_TABLE_PATH")

	// ── Upstream ──
	setStr(&cfg.Upstream.BaseURL, "AUCTIONDB_UPSTREAM_BASE_URL")
	setStr(&cfg.Upstream.TokenURL, "AUCTIONDB_UPSTREAM_TOKEN_URL")
	setStr(&cfg.Upstream.ClientID, "AUCTIONDB_UPSTREAM_CLIENT_ID")
	setStr(&cfg.Upstream.ClientSecret, "AUCTIONDB_UPSTREAM_CLIENT_SECRET")
	setFloat64(&cfg.Upstream.RPS, "AUCTIONDB_UPSTREAM_RPS")
	setInt(&cfg.Upstream.Burst, "AUCTIONDB_UPSTREAM_BURST")
	setDuration(&cfg.Upstream.Timeout, "AUCTIONDB_UPSTREAM_TIMEOUT")
	setBool(&cfg.Upstream.Cache.Enabled, "AUCTIONDB_UPSTREAM_CACHE_ENABLED")
	setStr(&cfg.Upstream.Cache.Dir, "AUCTIONDB_UPSTREAM_CACHE_DIR")
	setDuration(&cfg.Upstream.Cache.RealmTTL, "AUCTIONDB_UPSTREAM_CACHE_REALM_TTL")
	setDuration(&cfg.Upstream.Cache.ListingsTTL, "AUCTIONDB_UPSTREAM_CACHE_LISTINGS_TTL")

	// ── Update ──
	setStringSlice(&cfg.Update.Regions, "AUCTIONDB_UPDATE_REGIONS")
	setStr(&cfg.Update.GameVersion, "AUCTIONDB_UPDATE_GAME_VERSION")
	setStringSlice(&cfg.Update.Factions, "AUCTIONDB_UPDATE_FACTIONS")
	setDuration(&cfg.Update.RecordsExpiresIn, "AUCTIONDB_UPDATE_RECORDS_EXPIRES_IN")
	setBool(&cfg.Update.Compaction, "AUCTIONDB_UPDATE_COMPACTION")
	setDuration(&cfg.Update.Interval, "AUCTIONDB_UPDATE_INTERVAL")
	setDuration(&cfg.Update.SnapshotInterval, "AUCTIONDB_UPDATE_SNAPSHOT_INTERVAL")
	setInt(&cfg.Update.MaxSnapshots, "AUCTIONDB_UPDATE_MAX_SNAPSHOTS")

	// ── Fork / Publish ──
	setBool(&cfg.Fork.Enabled, "AUCTIONDB_FORK_ENABLED")
	setBool(&cfg.Publish.Enabled, "AUCTIONDB_PUBLISH_ENABLED")
	setStr(&cfg.Publish.Cron, "AUCTIONDB_PUBLISH_CRON")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "AUCTIONDB_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "AUCTIONDB_S3_REGION")
	setStr(&cfg.S3.Bucket, "AUCTIONDB_S3_BUCKET")
	setStr(&cfg.S3.Prefix, "AUCTIONDB_S3_PREFIX")
	setStr(&cfg.S3.AccessKey, "AUCTIONDB_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "AUCTIONDB_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "AUCTIONDB_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "AUCTIONDB_S3_FORCE_PATH_STYLE")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "AUCTIONDB_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "AUCTIONDB_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "AUCTIONDB_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "AUCTIONDB_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "AUCTIONDB_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "AUCTIONDB_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "AUCTIONDB_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.KeyPrefix, "AUCTIONDB_REDIS_KEY_PREFIX")
	setDuration(&cfg.Redis.LockTTL, "AUCTIONDB_REDIS_LOCK_TTL")
	setDuration(&cfg.Redis.ValueTTL, "AUCTIONDB_REDIS_VALUE_TTL")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "AUCTIONDB_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "AUCTIONDB_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "AUCTIONDB_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "AUCTIONDB_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "AUCTIONDB_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "AUCTIONDB_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "AUCTIONDB_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "AUCTIONDB_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "AUCTIONDB_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "AUCTIONDB_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "AUCTIONDB_POSTGRES_RUN_MIGRATIONS")

	// ── Export ──
	setBool(&cfg.Export.Enabled, "AUCTIONDB_EXPORT_ENABLED")
	setStr(&cfg.Export.Path, "AUCTIONDB_EXPORT_PATH")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "AUCTIONDB_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "AUCTIONDB_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "AUCTIONDB_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "AUCTIONDB_SERVER_API_KEY")
	setFloat64(&cfg.Server.RateLimit, "AUCTIONDB_SERVER_RATE_LIMIT")
	setInt(&cfg.Server.RateBurst, "AUCTIONDB_SERVER_RATE_BURST")

	// ── Notify ──
	setStringSlice(&cfg.Notify.Events, "AUCTIONDB_NOTIFY_EVENTS")
	setStr(&cfg.Notify.DiscordWebhook, "AUCTIONDB_NOTIFY_DISCORD_WEBHOOK")
	setStr(&cfg.Notify.TelegramToken, "AUCTIONDB_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "AUCTIONDB_NOTIFY_TELEGRAM_CHAT_ID")

	// ── Log ──
	setStr(&cfg.Log.File, "AUCTIONDB_LOG_FILE")
	setInt(&cfg.Log.MaxSizeMB, "AUCTIONDB_LOG_MAX_SIZE_MB")
	setInt(&cfg.Log.MaxBackups, "AUCTIONDB_LOG_MAX_BACKUPS")
	setInt(&cfg.Log.MaxAgeDays, "AUCTIONDB_LOG_MAX_AGE_DAYS")
	setBool(&cfg.Log.Compress, "AUCTIONDB_LOG_COMPRESS")

	// ── Top-level ──
	setStr(&cfg.Mode, "AUCTIONDB_MODE")
	setStr(&cfg.LogLevel, "AUCTIONDB_LOG_LEVEL")
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
