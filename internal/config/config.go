// Package config defines the top-level configuration for auctiondb and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/alanyoungcy/auctiondb/internal/domain"
)

// MinRecordsExpiresIn is the shortest accepted retention. Historical values
// look back this far, so a shorter horizon would starve them.
const MinRecordsExpiresIn = 60 * 24 * time.Hour

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by AUCTIONDB_* environment variables.
type Config struct {
	Data     DataConfig     `toml:"data"`
	Bonus    BonusConfig    `toml:"bonus"`
	Upstream UpstreamConfig `toml:"upstream"`
	Update   UpdateConfig   `toml:"update"`
	Fork     ForkConfig     `toml:"fork"`
	Publish  PublishConfig  `toml:"publish"`
	S3       S3Config       `toml:"s3"`
	Redis    RedisConfig    `toml:"redis"`
	Postgres PostgresConfig `toml:"postgres"`
	Export   ExportConfig   `toml:"export"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Log      LogConfig      `toml:"log"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// DataConfig selects where store files live.
type DataConfig struct {
	Path string `toml:"path"`
	// Backend is "local" (one file per store under Path) or "sqlite" (a
	// files table in Path/SQLiteFile).
	Backend    string `toml:"backend"`
	SQLiteFile string `toml:"sqlite_file"`
	// Compress gzips store files and names them *.gz.
	Compress bool `toml:"compress"`
}

// BonusConfig points at the bonus metadata table.
type BonusConfig struct {
	TablePath string `toml:"table_path"`
}

// UpstreamConfig holds the game data API client settings.
type UpstreamConfig struct {
	BaseURL      string      `toml:"base_url"`
	TokenURL     string      `toml:"token_url"`
	ClientID     string      `toml:"client_id"`
	ClientSecret string      `toml:"client_secret"`
	RPS          float64     `toml:"rps"`
	Burst        int         `toml:"burst"`
	Timeout      duration    `toml:"timeout"`
	Cache        CacheConfig `toml:"cache"`
}

// CacheConfig keeps upstream responses for a while so repeated cycles do
// not refetch unchanged data. Responses go to Redis when it is enabled and
// to files under Dir otherwise.
type CacheConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
	// RealmTTL covers the connected realm index and each connected realm.
	RealmTTL duration `toml:"realm_ttl"`
	// ListingsTTL covers auction and commodity snapshots.
	ListingsTTL duration `toml:"listings_ttl"`
}

// UpdateConfig tunes the update cycle.
type UpdateConfig struct {
	Regions          []string `toml:"regions"`
	GameVersion      string   `toml:"game_version"`
	Factions         []string `toml:"factions"`
	RecordsExpiresIn duration `toml:"records_expires_in"`
	Compaction       bool     `toml:"compaction"`
	Interval         duration `toml:"interval"`
	// SnapshotInterval and MaxSnapshots bound the host load samples kept in
	// the meta file of each cycle.
	SnapshotInterval duration `toml:"snapshot_interval"`
	MaxSnapshots     int      `toml:"max_snapshots"`
}

// ForkConfig enables seeding missing local files from the S3 bucket.
type ForkConfig struct {
	Enabled bool `toml:"enabled"`
}

// PublishConfig enables copying local files to the S3 bucket on a schedule.
type PublishConfig struct {
	Enabled bool   `toml:"enabled"`
	Cron    string `toml:"cron"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	Prefix         string `toml:"prefix"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// RedisConfig holds Redis connection parameters. When disabled, store locks
// are process local and readouts are not published.
type RedisConfig struct {
	Enabled    bool     `toml:"enabled"`
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	KeyPrefix  string   `toml:"key_prefix"`
	LockTTL    duration `toml:"lock_ttl"`
	ValueTTL   duration `toml:"value_ttl"`
}

// PostgresConfig holds the audit database connection parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
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
}

// ExportConfig controls the LoadData export files.
type ExportConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	RateLimit   float64  `toml:"rate_limit"`
	RateBurst   int      `toml:"rate_burst"`
}

// NotifyConfig configures alert delivery. A sender is active when its
// credentials are set. Events filters by event type; empty means all.
type NotifyConfig struct {
	Events         []string `toml:"events"`
	DiscordWebhook string   `toml:"discord_webhook"`
	TelegramToken  string   `toml:"telegram_token"`
	TelegramChatID string   `toml:"telegram_chat_id"`
}

// LogConfig sends logs to a rotating file instead of stdout when File is
// set.
type LogConfig struct {
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
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
		Data: DataConfig{
			Path:       "data",
			Backend:    "local",
			SQLiteFile: "auctiondb.sqlite",
			Compress:   true,
		},
		Upstream: UpstreamConfig{
			BaseURL:  "https://{region}.api.blizzard.com",
			TokenURL: "https://oauth.battle.net/token",
			RPS:      20,
			Burst:    20,
			Timeout:  duration{30 * time.Second},
			Cache: CacheConfig{
				Enabled:     true,
				Dir:         "cache",
				RealmTTL:    duration{7 * 24 * time.Hour},
				ListingsTTL: duration{time.Hour},
			},
		},
		Update: UpdateConfig{
			Regions:          []string{"us", "eu", "kr", "tw"},
			GameVersion:      "retail",
			RecordsExpiresIn: duration{MinRecordsExpiresIn},
			Compaction:       true,
			Interval:         duration{time.Hour},
			SnapshotInterval: duration{10 * time.Second},
			MaxSnapshots:     360,
		},
		Publish: PublishConfig{
			Cron: "30 * * * *",
		},
		S3: S3Config{
			Region:         "us-east-1",
			Bucket:         "auctiondb-data",
			UseSSL:         true,
			ForcePathStyle: false,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   10,
			MaxRetries: 3,
			KeyPrefix:  "auctiondb:",
			LockTTL:    duration{10 * time.Minute},
			ValueTTL:   duration{3 * time.Hour},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "auctiondb",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  5,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		Export: ExportConfig{
			Enabled: true,
			Path:    "export",
		},
		Server: ServerConfig{
			Enabled:     false,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   20,
			RateBurst:   40,
		},
		Notify: NotifyConfig{
			Events: []string{"region_failed"},
		},
		Log: LogConfig{
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
		Mode:     "update",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"update": true,
	"daemon": true,
	"serve":  true,
	"export": true,
}

var validNotifyEvents = map[string]bool{
	"region_updated": true,
	"region_failed":  true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Regions parses Update.Regions.
func (c *Config) Regions() ([]domain.Region, error) {
	out := make([]domain.Region, 0, len(c.Update.Regions))
	for _, r := range c.Update.Regions {
		region, err := domain.ParseRegion(strings.ToLower(strings.TrimSpace(r)))
		if err != nil {
			return nil, err
		}
		out = append(out, region)
	}
	return out, nil
}

// GameVersion parses Update.GameVersion.
func (c *Config) GameVersion() (domain.GameVersion, error) {
	return domain.ParseGameVersion(strings.ToLower(strings.TrimSpace(c.Update.GameVersion)))
}

// Factions parses Update.Factions. An empty list means both factions.
func (c *Config) Factions() ([]domain.Faction, error) {
	out := make([]domain.Faction, 0, len(c.Update.Factions))
	for _, f := range c.Update.Factions {
		switch strings.ToLower(strings.TrimSpace(f)) {
		case "a", "alliance":
			out = append(out, domain.FactionAlliance)
		case "h", "horde":
			out = append(out, domain.FactionHorde)
		default:
			return nil, fmt.Errorf("unknown faction %q", f)
		}
	}
	return out, nil
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	mode := strings.ToLower(c.Mode)
	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: update, daemon, serve, export)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Data
	if c.Data.Path == "" {
		errs = append(errs, "data: path must not be empty")
	}
	switch c.Data.Backend {
	case "local":
	case "sqlite":
		if c.Data.SQLiteFile == "" {
			errs = append(errs, "data: sqlite_file must not be empty for the sqlite backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("data: unknown backend %q (valid: local, sqlite)", c.Data.Backend))
	}

	// Update
	if len(c.Update.Regions) == 0 {
		errs = append(errs, "update: regions must not be empty")
	}
	if _, err := c.Regions(); err != nil {
		errs = append(errs, "update: "+err.Error())
	}
	version, err := c.GameVersion()
	if err != nil {
		errs = append(errs, "update: "+err.Error())
	}
	if _, err := c.Factions(); err != nil {
		errs = append(errs, "update: "+err.Error())
	} else if len(c.Update.Factions) > 0 && !version.IsClassic() {
		errs = append(errs, "update: factions only apply to classic game versions")
	}
	if c.Update.RecordsExpiresIn.Duration < MinRecordsExpiresIn {
		errs = append(errs, fmt.Sprintf("update: records_expires_in must be at least %s, got %s",
			MinRecordsExpiresIn, c.Update.RecordsExpiresIn.Duration))
	}
	if c.Update.SnapshotInterval.Duration <= 0 {
		errs = append(errs, "update: snapshot_interval must be > 0")
	}
	if c.Update.MaxSnapshots < 1 {
		errs = append(errs, "update: max_snapshots must be >= 1")
	}
	if mode == "daemon" && c.Update.Interval.Duration <= 0 {
		errs = append(errs, "update: interval must be > 0 in daemon mode")
	}

	// Upstream, needed whenever listings are pulled.
	if mode == "update" || mode == "daemon" {
		if c.Upstream.ClientID == "" || c.Upstream.ClientSecret == "" {
			errs = append(errs, "upstream: client_id and client_secret are required for mode "+mode)
		}
		if c.Upstream.BaseURL == "" || c.Upstream.TokenURL == "" {
			errs = append(errs, "upstream: base_url and token_url must not be empty")
		}
		if cc := c.Upstream.Cache; cc.Enabled {
			if cc.RealmTTL.Duration <= 0 || cc.ListingsTTL.Duration <= 0 {
				errs = append(errs, "upstream: cache realm_ttl and listings_ttl must be > 0")
			}
			if cc.Dir == "" && !c.Redis.Enabled {
				errs = append(errs, "upstream: cache dir must not be empty without redis")
			}
		}
	}

	// S3
	if c.Fork.Enabled || c.Publish.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when fork or publish is enabled")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty when fork or publish is enabled")
		}
	}
	if c.Publish.Enabled {
		if c.Publish.Cron == "" {
			errs = append(errs, "publish: cron must not be empty when enabled")
		} else if _, err := cron.ParseStandard(c.Publish.Cron); err != nil {
			errs = append(errs, fmt.Sprintf("publish: invalid cron %q: %v", c.Publish.Cron, err))
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
		if c.Redis.LockTTL.Duration <= 0 {
			errs = append(errs, "redis: lock_ttl must be > 0")
		}
	}

	// Postgres
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
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Export
	if (c.Export.Enabled || mode == "export") && c.Export.Path == "" {
		errs = append(errs, "export: path must not be empty")
	}

	// Server
	if c.Server.Enabled || mode == "serve" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	// Notify
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}
	for _, e := range c.Notify.Events {
		if !validNotifyEvents[strings.TrimSpace(e)] {
			errs = append(errs, fmt.Sprintf("notify: unknown event %q (valid: region_updated, region_failed)", e))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
