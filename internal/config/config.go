package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Ingest   IngestConfig   `yaml:"ingest" mapstructure:"ingest"`
	Backfill BackfillConfig `yaml:"backfill" mapstructure:"backfill"`
	Sources  SourcesConfig  `yaml:"sources" mapstructure:"sources"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the Postgres backend.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// IngestConfig configures incremental indicator ingestion.
type IngestConfig struct {
	UserAgent     string `yaml:"user_agent" mapstructure:"user_agent"`
	MaxRetries    int    `yaml:"max_retries" mapstructure:"max_retries"`
	Parallel      int    `yaml:"parallel" mapstructure:"parallel"`
	ErrorCapCount int    `yaml:"error_cap_count" mapstructure:"error_cap_count"`
	ErrorCapBytes int    `yaml:"error_cap_bytes" mapstructure:"error_cap_bytes"`
}

// BackfillConfig configures the historical bulk loader.
type BackfillConfig struct {
	BatchSize   int `yaml:"batch_size" mapstructure:"batch_size"`
	PageDelayMS int `yaml:"page_delay_ms" mapstructure:"page_delay_ms"`
	PerPage     int `yaml:"per_page" mapstructure:"per_page"`
	MaxPages    int `yaml:"max_pages" mapstructure:"max_pages"`
}

// SourcesConfig holds per-provider endpoints and the local ETag cache path.
type SourcesConfig struct {
	WorldBankBaseURL string `yaml:"worldbank_base_url" mapstructure:"worldbank_base_url"`
	RatesBaseURL     string `yaml:"rates_base_url" mapstructure:"rates_base_url"`
	ETagCachePath    string `yaml:"etag_cache_path" mapstructure:"etag_cache_path"`
}

// ServerConfig configures the read-only query API.
type ServerConfig struct {
	Port            int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins  []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	CacheTTLSeconds int      `yaml:"cache_ttl_seconds" mapstructure:"cache_ttl_seconds"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ECONSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.cache_ttl_seconds", 300)
	v.SetDefault("ingest.user_agent", "econsync/1.0")
	v.SetDefault("ingest.max_retries", 3)
	v.SetDefault("ingest.parallel", 1)
	v.SetDefault("ingest.error_cap_count", 5)
	v.SetDefault("ingest.error_cap_bytes", 500)
	v.SetDefault("backfill.batch_size", 500)
	v.SetDefault("backfill.page_delay_ms", 1500)
	v.SetDefault("backfill.per_page", 1000)
	v.SetDefault("backfill.max_pages", 200)
	v.SetDefault("sources.worldbank_base_url", "https://api.worldbank.org/v2")
	v.SetDefault("sources.rates_base_url", "https://open.er-api.com/v6")
	v.SetDefault("sources.etag_cache_path", ".econsync/etags.db")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
