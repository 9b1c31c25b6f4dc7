// Package config provides configuration management for cryptolens.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"cryptolens/internal/analysis"
	"cryptolens/internal/analysis/series"
	apperrors "cryptolens/internal/errors"
	"cryptolens/internal/logging"
	"cryptolens/internal/market"
	"cryptolens/internal/resilience"
	"cryptolens/internal/server"
	"cryptolens/internal/store"
	"cryptolens/pkg/utils"
)

// FileName is the config file name inside the config directory.
const FileName = "config.toml"

// Config holds all application configuration.
type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Store    StoreConfig    `mapstructure:"store"`
	Server   ServerConfig   `mapstructure:"server"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Log      LogConfig      `mapstructure:"log"`
	UI       UIConfig       `mapstructure:"ui"`

	// Path is the file the config was read from, empty when defaults were used.
	Path string `mapstructure:"-"`
}

// APIConfig configures the remote listing API client.
type APIConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxAttempts       int           `mapstructure:"max_attempts"`
	BreakerThreshold  int           `mapstructure:"breaker_threshold"`
	BreakerCooldown   time.Duration `mapstructure:"breaker_cooldown"`
}

// AnalysisConfig holds indicator parameters.
type AnalysisConfig struct {
	DefaultPeriod   string  `mapstructure:"default_period"`
	SMAPeriod       int     `mapstructure:"sma_period"`
	EMAPeriod       int     `mapstructure:"ema_period"`
	RSIPeriod       int     `mapstructure:"rsi_period"`
	MACDFast        int     `mapstructure:"macd_fast"`
	MACDSlow        int     `mapstructure:"macd_slow"`
	BollingerPeriod int     `mapstructure:"bollinger_period"`
	BollingerStdDev float64 `mapstructure:"bollinger_stddev"`
	Workers         int     `mapstructure:"workers"`
}

// StoreConfig holds the local cache location.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	AllowOrigin  string        `mapstructure:"allow_origin"`
}

// SyncConfig configures cache refreshes.
type SyncConfig struct {
	Schedule   string        `mapstructure:"schedule"` // cron with seconds; empty disables scheduled sync
	StaleAfter time.Duration `mapstructure:"stale_after"`
	Workers    int           `mapstructure:"workers"`
	TopN       int           `mapstructure:"top_n"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

// UIConfig holds UI-related configuration.
type UIConfig struct {
	ColorEnabled bool   `mapstructure:"color_enabled"`
	DateFormat   string `mapstructure:"date_format"`
	PageSize     int    `mapstructure:"page_size"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/cryptolens"
	}
	return filepath.Join(home, ".config", "cryptolens")
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	v := viper.New()
	setDefaults(v, DefaultConfigDir())
	// Defaults are plain values, so unmarshalling cannot fail.
	_ = v.Unmarshal(cfg)
	return cfg
}

func setDefaults(v *viper.Viper, configDir string) {
	apiDef := market.DefaultConfig()
	v.SetDefault("api.base_url", apiDef.BaseURL)
	v.SetDefault("api.requests_per_second", apiDef.RequestsPerSecond)
	v.SetDefault("api.burst", apiDef.Burst)
	v.SetDefault("api.timeout", apiDef.Timeout)
	v.SetDefault("api.max_attempts", apiDef.Retry.MaxAttempts)
	v.SetDefault("api.breaker_threshold", apiDef.Breaker.FailureThreshold)
	v.SetDefault("api.breaker_cooldown", apiDef.Breaker.Cooldown)

	params := analysis.DefaultParams()
	v.SetDefault("analysis.default_period", string(series.DefaultPeriod))
	v.SetDefault("analysis.sma_period", params.SMAPeriod)
	v.SetDefault("analysis.ema_period", params.EMAPeriod)
	v.SetDefault("analysis.rsi_period", params.RSIPeriod)
	v.SetDefault("analysis.macd_fast", params.MACDFast)
	v.SetDefault("analysis.macd_slow", params.MACDSlow)
	v.SetDefault("analysis.bollinger_period", params.BollingerPeriod)
	v.SetDefault("analysis.bollinger_stddev", params.BollingerStdDev)
	v.SetDefault("analysis.workers", params.Workers)

	v.SetDefault("store.path", filepath.Join(configDir, "cryptolens.db"))

	srvDef := server.DefaultConfig()
	v.SetDefault("server.addr", srvDef.Addr)
	v.SetDefault("server.read_timeout", srvDef.ReadTimeout)
	v.SetDefault("server.write_timeout", srvDef.WriteTimeout)
	v.SetDefault("server.allow_origin", srvDef.AllowOrigin)

	syncDef := store.DefaultSyncConfig()
	v.SetDefault("sync.schedule", server.DefaultSyncSchedule)
	v.SetDefault("sync.stale_after", syncDef.StaleAfter)
	v.SetDefault("sync.workers", syncDef.Workers)
	v.SetDefault("sync.top_n", syncDef.TopN)

	logDef := logging.DefaultLogConfig()
	v.SetDefault("log.level", logDef.Level)
	v.SetDefault("log.file", logDef.File)
	v.SetDefault("log.file_path", filepath.Join(configDir, "logs", "cryptolens.log"))
	v.SetDefault("log.max_size", logDef.MaxSize)
	v.SetDefault("log.max_backups", logDef.MaxBackups)
	v.SetDefault("log.max_age", logDef.MaxAge)

	v.SetDefault("ui.color_enabled", true)
	v.SetDefault("ui.date_format", "2006-01-02")
	v.SetDefault("ui.page_size", 20)
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. A missing
// config file is created from the template and defaults are used.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v, configDir)

	cfg := &Config{}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("loading %s: %w", FileName, err)
		}
		if err := createTemplateConfig(configDir); err != nil {
			return nil, err
		}
	} else {
		cfg.Path = v.ConfigFileUsed()
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", FileName, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CRYPTOLENS_API_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("CRYPTOLENS_DB_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("CRYPTOLENS_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("CRYPTOLENS_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	invalid := func(format string, args ...interface{}) error {
		return fmt.Errorf("%w: %s", apperrors.ErrConfigInvalid, fmt.Sprintf(format, args...))
	}

	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return invalid("api.base_url must be an absolute URL, got %q", c.API.BaseURL)
	}
	if c.API.RequestsPerSecond <= 0 {
		return invalid("api.requests_per_second must be positive")
	}

	if !series.Token(c.Analysis.DefaultPeriod).Valid() {
		return invalid("analysis.default_period must be one of %v", series.Tokens())
	}
	for name, p := range map[string]int{
		"sma_period":       c.Analysis.SMAPeriod,
		"ema_period":       c.Analysis.EMAPeriod,
		"rsi_period":       c.Analysis.RSIPeriod,
		"macd_fast":        c.Analysis.MACDFast,
		"macd_slow":        c.Analysis.MACDSlow,
		"bollinger_period": c.Analysis.BollingerPeriod,
	} {
		if p <= 0 {
			return invalid("analysis.%s must be positive", name)
		}
	}
	if c.Analysis.MACDFast >= c.Analysis.MACDSlow {
		return invalid("analysis.macd_fast must be below macd_slow")
	}
	if c.Analysis.BollingerStdDev <= 0 {
		return invalid("analysis.bollinger_stddev must be positive")
	}

	if c.Store.Path == "" {
		return invalid("store.path must be set")
	}
	if c.Server.Addr == "" {
		return invalid("server.addr must be set")
	}

	if c.Sync.Schedule != "" {
		parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
		if _, err := parser.Parse(c.Sync.Schedule); err != nil {
			return invalid("sync.schedule: %v", err)
		}
	}
	if c.Sync.TopN < 0 {
		return invalid("sync.top_n must not be negative")
	}
	return nil
}

// AnalysisParams converts the analysis section to analyzer parameters.
func (c *Config) AnalysisParams() analysis.Params {
	return analysis.Params{
		SMAPeriod:       c.Analysis.SMAPeriod,
		EMAPeriod:       c.Analysis.EMAPeriod,
		RSIPeriod:       c.Analysis.RSIPeriod,
		MACDFast:        c.Analysis.MACDFast,
		MACDSlow:        c.Analysis.MACDSlow,
		BollingerPeriod: c.Analysis.BollingerPeriod,
		BollingerStdDev: c.Analysis.BollingerStdDev,
		Workers:         c.Analysis.Workers,
	}
}

// MarketConfig converts the api section to a market client config.
func (c *Config) MarketConfig() market.Config {
	retry := utils.DefaultRetryConfig()
	if c.API.MaxAttempts > 0 {
		retry.MaxAttempts = c.API.MaxAttempts
	}
	breaker := resilience.DefaultBreakerConfig()
	if c.API.BreakerThreshold > 0 {
		breaker.FailureThreshold = c.API.BreakerThreshold
	}
	if c.API.BreakerCooldown > 0 {
		breaker.Cooldown = c.API.BreakerCooldown
	}
	return market.Config{
		BaseURL:           c.API.BaseURL,
		RequestsPerSecond: c.API.RequestsPerSecond,
		Burst:             c.API.Burst,
		Timeout:           c.API.Timeout,
		Retry:             retry,
		Breaker:           breaker,
	}
}

// ServerConfig converts the server section.
func (c *Config) ServerConfig() server.Config {
	cfg := server.DefaultConfig()
	cfg.Addr = c.Server.Addr
	if c.Server.ReadTimeout > 0 {
		cfg.ReadTimeout = c.Server.ReadTimeout
	}
	if c.Server.WriteTimeout > 0 {
		cfg.WriteTimeout = c.Server.WriteTimeout
	}
	cfg.AllowOrigin = c.Server.AllowOrigin
	return cfg
}

// SyncerConfig converts the sync section.
func (c *Config) SyncerConfig() store.SyncConfig {
	return store.SyncConfig{
		StaleAfter: c.Sync.StaleAfter,
		Workers:    c.Sync.Workers,
		TopN:       c.Sync.TopN,
	}
}

// LoggingConfig converts the log section. Debug forces the debug level.
func (c *Config) LoggingConfig(debug bool) logging.LogConfig {
	lc := logging.DefaultLogConfig()
	lc.Level = c.Log.Level
	if debug {
		lc.Level = "debug"
	}
	lc.File = c.Log.File
	lc.FilePath = c.Log.FilePath
	lc.MaxSize = c.Log.MaxSize
	lc.MaxBackups = c.Log.MaxBackups
	lc.MaxAge = c.Log.MaxAge
	return lc
}
