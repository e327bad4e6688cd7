package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration to support YAML unmarshalling.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	raw := value.Value
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

type Config struct {
	Env          string `yaml:"env"`
	DatabasePath string `yaml:"database"`

	Log       LogConfig       `yaml:"log"`
	Engine    EngineConfig    `yaml:"engine"`
	Slippage  SlippageConfig  `yaml:"slippage"`
	Providers ProvidersConfig `yaml:"providers"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	HTTP      HTTPConfig      `yaml:"http"`
	Tracker   TrackerConfig   `yaml:"tracker"`

	// RPC endpoints by EVM chain ID, used by the uniswap quoter and the tracker.
	RPCEndpoints map[uint64]string `yaml:"rpc_endpoints"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type EngineConfig struct {
	RefreshInterval     Duration `yaml:"refresh_interval"`
	RefreshCeiling      Duration `yaml:"refresh_ceiling"`
	ProviderConcurrency int      `yaml:"provider_concurrency"`
	// Slippage is the default tolerance as a fraction, e.g. "0.005".
	Slippage string `yaml:"default_slippage"`
}

type SlippageConfig struct {
	BufferBps int64 `yaml:"buffer_bps"`
	StepBps   int64 `yaml:"step_bps"`
	MaxBps    int64 `yaml:"max_bps"`
}

type ProvidersConfig struct {
	CowSwap     ProviderConfig    `yaml:"cowswap"`
	Uniswap     ProviderConfig    `yaml:"uniswap"`
	Thorchain   ThorchainConfig   `yaml:"thorchain"`
	NearIntents NearIntentsConfig `yaml:"nearintents"`
	SimpleSwap  SimpleSwapConfig  `yaml:"simpleswap"`
	Houdini     HoudiniConfig     `yaml:"houdini"`
	Across      ProviderConfig    `yaml:"across"`
}

type ProviderConfig struct {
	Disabled bool   `yaml:"disabled"`
	BaseURL  string `yaml:"base_url"`
}

type ThorchainConfig struct {
	ProviderConfig `yaml:",inline"`
	RequestsPerSec float64  `yaml:"requests_per_second"`
	PoolsTTL       Duration `yaml:"pools_ttl"`
}

type NearIntentsConfig struct {
	ProviderConfig `yaml:",inline"`
	APIKey         string `yaml:"api_key"`
}

type SimpleSwapConfig struct {
	ProviderConfig `yaml:",inline"`
	APIKey         string `yaml:"api_key"`
}

type HoudiniConfig struct {
	ProviderConfig `yaml:",inline"`
	APIKey         string `yaml:"api_key"`
	APISecret      string `yaml:"api_secret"`
}

type TelegramConfig struct {
	Token        string  `yaml:"token"`
	AllowedUsers []int64 `yaml:"allowed_users"`
	// EditsPerSecond throttles status message edits per chat.
	EditsPerSecond float64 `yaml:"edits_per_second"`
}

type HTTPConfig struct {
	Listen        string `yaml:"listen"`
	AdminPassword string `yaml:"admin_password"`
}

type TrackerConfig struct {
	Interval Duration `yaml:"interval"`
}

// Load reads configuration from path, applies environment overrides and
// defaults, then validates.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()
		if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// applyEnv lets secrets live outside the config file. Set variables win.
func applyEnv(cfg *Config) error {
	overrides := map[string]*string{
		"QUOTEFLOW_TELEGRAM_TOKEN":   &cfg.Telegram.Token,
		"QUOTEFLOW_NEARINTENTS_KEY":  &cfg.Providers.NearIntents.APIKey,
		"QUOTEFLOW_SIMPLESWAP_KEY":   &cfg.Providers.SimpleSwap.APIKey,
		"QUOTEFLOW_HOUDINI_KEY":      &cfg.Providers.Houdini.APIKey,
		"QUOTEFLOW_HOUDINI_SECRET":   &cfg.Providers.Houdini.APISecret,
		"QUOTEFLOW_ADMIN_PASSWORD":   &cfg.HTTP.AdminPassword,
		"QUOTEFLOW_DATABASE":         &cfg.DatabasePath,
		"QUOTEFLOW_HTTP_LISTEN":      &cfg.HTTP.Listen,
		"QUOTEFLOW_ENV":              &cfg.Env,
		"QUOTEFLOW_LOG_LEVEL":        &cfg.Log.Level,
		"QUOTEFLOW_DEFAULT_SLIPPAGE": &cfg.Engine.Slippage,
	}
	for name, dst := range overrides {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("QUOTEFLOW_REFRESH_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("QUOTEFLOW_REFRESH_INTERVAL: %w", err)
		}
		cfg.Engine.RefreshInterval.Duration = d
	}
	if v := os.Getenv("QUOTEFLOW_PROVIDER_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("QUOTEFLOW_PROVIDER_CONCURRENCY: %w", err)
		}
		cfg.Engine.ProviderConcurrency = n
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Env == "" {
		cfg.Env = "production"
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = "quoteflow.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.MaxSizeMB == 0 {
		cfg.Log.MaxSizeMB = 100
	}
	if cfg.Log.MaxBackups == 0 {
		cfg.Log.MaxBackups = 5
	}
	if cfg.Log.MaxAgeDays == 0 {
		cfg.Log.MaxAgeDays = 28
	}
	if cfg.Engine.RefreshInterval.Duration == 0 {
		cfg.Engine.RefreshInterval.Duration = 30 * time.Second
	}
	if cfg.Engine.RefreshCeiling.Duration == 0 {
		cfg.Engine.RefreshCeiling.Duration = 2 * time.Minute
	}
	if cfg.Engine.ProviderConcurrency <= 0 {
		cfg.Engine.ProviderConcurrency = 8
	}
	if cfg.Engine.Slippage == "" {
		cfg.Engine.Slippage = "0.005"
	}
	if cfg.Slippage.BufferBps == 0 {
		cfg.Slippage.BufferBps = 50
	}
	if cfg.Slippage.StepBps == 0 {
		cfg.Slippage.StepBps = 25
	}
	if cfg.Slippage.MaxBps == 0 {
		cfg.Slippage.MaxBps = 300
	}
	if cfg.Providers.Thorchain.RequestsPerSec <= 0 {
		cfg.Providers.Thorchain.RequestsPerSec = 1
	}
	if cfg.Providers.Thorchain.PoolsTTL.Duration == 0 {
		cfg.Providers.Thorchain.PoolsTTL.Duration = 10 * time.Minute
	}
	if cfg.Telegram.EditsPerSecond <= 0 {
		cfg.Telegram.EditsPerSecond = 1
	}
	if cfg.HTTP.Listen == "" {
		cfg.HTTP.Listen = ":8080"
	}
	if cfg.Tracker.Interval.Duration == 0 {
		cfg.Tracker.Interval.Duration = 15 * time.Second
	}
}

func (c *Config) validate() error {
	if c.Engine.RefreshInterval.Duration < time.Second {
		return errors.New("engine.refresh_interval must be at least 1s")
	}
	if c.Engine.RefreshCeiling.Duration < 0 {
		return errors.New("engine.refresh_ceiling must not be negative")
	}
	if _, err := c.DefaultSlippage(); err != nil {
		return err
	}
	if c.Slippage.BufferBps > c.Slippage.MaxBps {
		return fmt.Errorf("slippage.buffer_bps (%d) exceeds slippage.max_bps (%d)", c.Slippage.BufferBps, c.Slippage.MaxBps)
	}
	return nil
}

// DefaultSlippage parses the default tolerance.
func (c *Config) DefaultSlippage() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(c.Engine.Slippage)
	if err != nil {
		return decimal.Zero, fmt.Errorf("engine.default_slippage %q: %w", c.Engine.Slippage, err)
	}
	if d.IsNegative() || d.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("engine.default_slippage %s out of range", d)
	}
	return d, nil
}

// IsAuthorized reports whether a telegram user may use the bot. An empty
// allow list admits everyone.
func (c *Config) IsAuthorized(userID int64) bool {
	if len(c.Telegram.AllowedUsers) == 0 {
		return true
	}
	for _, id := range c.Telegram.AllowedUsers {
		if id == userID {
			return true
		}
	}
	return false
}
