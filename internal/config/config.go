// Package config loads Hako's server configuration from environment
// variables and flags via spf13/viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds the server's runtime configuration.
type Config struct {
	BindAddr string `mapstructure:"bind_addr"`

	// StoreEngine selects the chunk-store backend: "sqlite" or "postgres".
	StoreEngine      string `mapstructure:"store_engine"`
	SQLiteDBFilename string `mapstructure:"sqlite_db_filename"`
	PostgresDSN      string `mapstructure:"postgres_dsn"`

	// Expiry is the object lifetime in seconds. Zero disables GC.
	Expiry          int64 `mapstructure:"expiry"`
	DeleteInterval  int64 `mapstructure:"delete_interval"`
	ChunkCountLimit int64 `mapstructure:"chunk_count_limit"`

	RedisAddr string `mapstructure:"redis_addr"`

	RateLimitPerSecond float64 `mapstructure:"rate_limit_per_second"`
	RateLimitBurst     int     `mapstructure:"rate_limit_burst"`

	MetricsAddr string `mapstructure:"metrics_addr"`
}

func defaults(v *viper.Viper) {
	v.SetDefault("bind_addr", "127.0.0.1:12321")
	v.SetDefault("store_engine", "sqlite")
	v.SetDefault("sqlite_db_filename", "hako.db")
	v.SetDefault("postgres_dsn", "")
	v.SetDefault("expiry", 0)
	v.SetDefault("delete_interval", 60)
	v.SetDefault("chunk_count_limit", 128)
	v.SetDefault("redis_addr", "")
	v.SetDefault("rate_limit_per_second", 5.0)
	v.SetDefault("rate_limit_burst", 20)
	v.SetDefault("metrics_addr", "")
}

// Load reads configuration from HAKO_-prefixed environment variables,
// overridden by flags parsed from args (typically os.Args[1:]).
func Load(args []string) (*Config, error) {
	v := viper.New()
	defaults(v)

	v.SetEnvPrefix("hako")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fs := pflag.NewFlagSet("hako-server", pflag.ContinueOnError)
	fs.String("bind-addr", v.GetString("bind_addr"), "address to listen on")
	fs.String("store-engine", v.GetString("store_engine"), "chunk store backend: sqlite or postgres")
	fs.String("sqlite-db-filename", v.GetString("sqlite_db_filename"), "sqlite database file path")
	fs.String("postgres-dsn", v.GetString("postgres_dsn"), "postgres connection string")
	fs.Int64("expiry", v.GetInt64("expiry"), "object lifetime in seconds, 0 disables GC")
	fs.Int64("delete-interval", v.GetInt64("delete_interval"), "GC tick interval in seconds")
	fs.Int64("chunk-count-limit", v.GetInt64("chunk_count_limit"), "maximum chunks per object")
	fs.String("redis-addr", v.GetString("redis_addr"), "redis address for metadata caching, empty disables")
	fs.String("metrics-addr", v.GetString("metrics_addr"), "address to serve /metrics on, empty disables")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("config: parse flags: %w", err)
	}
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("config: bind flags: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if cfg.DeleteInterval <= 0 {
		cfg.DeleteInterval = 60
	}
	if cfg.ChunkCountLimit <= 0 {
		cfg.ChunkCountLimit = 128
	}

	return cfg, nil
}

// DeleteIntervalDuration returns DeleteInterval as a time.Duration.
func (c *Config) DeleteIntervalDuration() time.Duration {
	return time.Duration(c.DeleteInterval) * time.Second
}
