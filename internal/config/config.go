// Package config loads application configuration from config.yaml and
// TRANSPARENCIA_* environment variables, and initializes the global logger.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Blob    BlobConfig    `yaml:"blob" mapstructure:"blob"`
	Acquire AcquireConfig `yaml:"acquire" mapstructure:"acquire"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the relational store.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// BlobConfig configures the raw artifact store.
type BlobConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// AcquireConfig configures outbound fetching.
type AcquireConfig struct {
	RateLimitMS int    `yaml:"rate_limit_ms" mapstructure:"rate_limit_ms"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
}

// RateLimitInterval returns the minimum delay between outbound requests.
func (c AcquireConfig) RateLimitInterval() time.Duration {
	return time.Duration(c.RateLimitMS) * time.Millisecond
}

// Timeout returns the network fetch timeout.
func (c AcquireConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads config.yaml (optional) and environment variables into a Config.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("TRANSPARENCIA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.database_url", "")
	v.SetDefault("blob.dir", "./data/raw")
	v.SetDefault("acquire.rate_limit_ms", 1000)
	v.SetDefault("acquire.timeout_secs", 60)
	v.SetDefault("acquire.max_retries", 3)
	v.SetDefault("acquire.user_agent", "EstadoTransparente/1.0 (portal ciudadano independiente)")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// InitLogger replaces the global zap logger per the log config.
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
