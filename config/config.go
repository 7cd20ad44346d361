// Package config loads the runtime configuration of a dream client from
// environment variables with defaults, an optional .env file and an
// optional YAML file, and validates the result.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rvohealth/dream-sub006/dialect"
)

// LogConfig selects the level and format of the client logger.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug|info|warn|error
	Format string `yaml:"format"` // text|json
}

// PoolConfig tunes the database/sql pool of each connection.
type PoolConfig struct {
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// PreloadConfig bounds batched preloading.
type PreloadConfig struct {
	Parallelism int `yaml:"parallelism"` // concurrent queries per level
	BatchSize   int `yaml:"batch_size"`  // keys per IN list
}

// CacheConfig controls query result caching.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl"`
	MaxSize int           `yaml:"max_size"`
}

// Config holds the client settings.
type Config struct {
	Driver         string        `yaml:"driver"`          // sqlite3|postgres|mysql
	PrimaryDSN     string        `yaml:"primary_dsn"`     // primary connection
	ReplicaDSN     string        `yaml:"replica_dsn"`     // optional read replica
	ReplicaEnabled bool          `yaml:"replica_enabled"` // route replica-safe reads to the replica
	SlowQuery      time.Duration `yaml:"slow_query"`      // slow query log threshold, 0 disables

	Pool    PoolConfig    `yaml:"pool"`
	Log     LogConfig     `yaml:"log"`
	Preload PreloadConfig `yaml:"preload"`
	Cache   CacheConfig   `yaml:"cache"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Driver:         dialect.SQLite,
		PrimaryDSN:     "dream.db",
		ReplicaEnabled: true,
		SlowQuery:      200 * time.Millisecond,
		Log:            LogConfig{Level: "info", Format: "text"},
		Preload:        PreloadConfig{Parallelism: 4, BatchSize: 1000},
		Cache:          CacheConfig{TTL: 5 * time.Minute, MaxSize: 10000},
	}
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads DREAM_ENV_FILE (default .env) into the environment without
// overriding variables already set, then loads the YAML file named by
// DREAM_CONFIG, if any, through LoadFile.
func Load() (Config, error) {
	if err := godotenv.Load(getenv("DREAM_ENV_FILE", ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: loading env file: %w", err)
	}
	return LoadFile(os.Getenv("DREAM_CONFIG"))
}

// LoadFile applies the YAML file at path, when path is not empty, over
// the defaults, then environment variables over the result, and
// validates it.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}
	cfg.Driver = strings.ToLower(getenv("DREAM_DRIVER", cfg.Driver))
	cfg.PrimaryDSN = getenv("DREAM_PRIMARY_DSN", cfg.PrimaryDSN)
	cfg.ReplicaDSN = getenv("DREAM_REPLICA_DSN", cfg.ReplicaDSN)
	cfg.ReplicaEnabled = getbool("DREAM_REPLICA_ENABLED", cfg.ReplicaEnabled)
	cfg.SlowQuery = getdur("DREAM_SLOW_QUERY", cfg.SlowQuery)

	cfg.Pool.MaxOpenConns = getint("DREAM_POOL_MAX_OPEN", cfg.Pool.MaxOpenConns)
	cfg.Pool.MaxIdleConns = getint("DREAM_POOL_MAX_IDLE", cfg.Pool.MaxIdleConns)
	cfg.Pool.ConnMaxLifetime = getdur("DREAM_POOL_MAX_LIFETIME", cfg.Pool.ConnMaxLifetime)

	cfg.Log.Level = strings.ToLower(getenv("DREAM_LOG_LEVEL", cfg.Log.Level))
	cfg.Log.Format = strings.ToLower(getenv("DREAM_LOG_FORMAT", cfg.Log.Format))

	cfg.Preload.Parallelism = getint("DREAM_PRELOAD_PARALLELISM", cfg.Preload.Parallelism)
	cfg.Preload.BatchSize = getint("DREAM_PRELOAD_BATCH_SIZE", cfg.Preload.BatchSize)

	cfg.Cache.Enabled = getbool("DREAM_CACHE_ENABLED", cfg.Cache.Enabled)
	cfg.Cache.TTL = getdur("DREAM_CACHE_TTL", cfg.Cache.TTL)
	cfg.Cache.MaxSize = getint("DREAM_CACHE_MAX_SIZE", cfg.Cache.MaxSize)

	if cfg.Log.Level == "warning" {
		cfg.Log.Level = "warn"
	}
	if cfg.Driver == "sqlite" {
		cfg.Driver = dialect.SQLite
	}
	return cfg, cfg.Validate()
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.Driver {
	case dialect.SQLite, dialect.Postgres, dialect.MySQL:
	default:
		return fmt.Errorf("config: DREAM_DRIVER must be one of: %s, %s, %s", dialect.SQLite, dialect.Postgres, dialect.MySQL)
	}
	if strings.TrimSpace(c.PrimaryDSN) == "" {
		return errors.New("config: DREAM_PRIMARY_DSN must not be empty")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.New("config: DREAM_LOG_LEVEL must be one of: debug, info, warn, error")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return errors.New("config: DREAM_LOG_FORMAT must be one of: text, json")
	}
	if c.SlowQuery < 0 {
		return errors.New("config: DREAM_SLOW_QUERY must be >= 0")
	}
	if c.Pool.MaxOpenConns < 0 || c.Pool.MaxIdleConns < 0 || c.Pool.ConnMaxLifetime < 0 {
		return errors.New("config: pool settings must be >= 0")
	}
	if c.Preload.Parallelism < 1 {
		return errors.New("config: DREAM_PRELOAD_PARALLELISM must be >= 1")
	}
	if c.Preload.BatchSize < 1 {
		return errors.New("config: DREAM_PRELOAD_BATCH_SIZE must be >= 1")
	}
	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		return errors.New("config: DREAM_CACHE_TTL must be > 0 when caching is enabled")
	}
	if c.Cache.MaxSize < 0 {
		return errors.New("config: DREAM_CACHE_MAX_SIZE must be >= 0")
	}
	return nil
}

// HasReplica reports whether a replica connection is configured.
func (c Config) HasReplica() bool {
	return strings.TrimSpace(c.ReplicaDSN) != ""
}

// Logger returns a logger writing to w with the configured level and
// format.
func (c LogConfig) Logger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.level()}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func (c LogConfig) level() slog.Level {
	switch c.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
