// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Harness() HarnessConfig
	Fixtures() FixturesConfig
	Runner() RunnerConfig

	// Browser Setters
	SetBrowserHeadless(bool)
	SetBrowserDisableCache(bool)
	SetBrowserIgnoreTLSErrors(bool)

	// Harness Setters
	SetHarnessNavigationTimeout(d time.Duration)
	SetHarnessActionTimeout(d time.Duration)
	SetHarnessPollInterval(d time.Duration)

	// Runner Setters
	SetRunnerConcurrency(int)
	SetRunnerManifest(string)
}

// Config holds the entire application configuration.
// It uses private fields to enforce access through the Interface's getter methods.
type Config struct {
	logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	harness  HarnessConfig  `mapstructure:"harness" yaml:"harness"`
	fixtures FixturesConfig `mapstructure:"fixtures" yaml:"fixtures"`
	runner   RunnerConfig   `mapstructure:"runner" yaml:"runner"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig     { return c.logger }
func (c *Config) Browser() BrowserConfig   { return c.browser }
func (c *Config) Harness() HarnessConfig   { return c.harness }
func (c *Config) Fixtures() FixturesConfig { return c.fixtures }
func (c *Config) Runner() RunnerConfig     { return c.runner }

// --- Interface Method Implementations (Setters) ---

// Browser Setters
func (c *Config) SetBrowserHeadless(b bool)        { c.browser.Headless = b }
func (c *Config) SetBrowserDisableCache(b bool)    { c.browser.DisableCache = b }
func (c *Config) SetBrowserIgnoreTLSErrors(b bool) { c.browser.IgnoreTLSErrors = b }

// Harness Setters
func (c *Config) SetHarnessNavigationTimeout(d time.Duration) { c.harness.NavigationTimeout = d }
func (c *Config) SetHarnessActionTimeout(d time.Duration)     { c.harness.ActionTimeout = d }
func (c *Config) SetHarnessPollInterval(d time.Duration)      { c.harness.PollInterval = d }

// Runner Setters
func (c *Config) SetRunnerConcurrency(n int)    { c.runner.Concurrency = n }
func (c *Config) SetRunnerManifest(path string) { c.runner.Manifest = path }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// BrowserConfig holds settings for the headless browser process.
type BrowserConfig struct {
	Headless        bool     `mapstructure:"headless" yaml:"headless"`
	DisableCache    bool     `mapstructure:"disable_cache" yaml:"disable_cache"`
	IgnoreTLSErrors bool     `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Debug           bool     `mapstructure:"debug" yaml:"debug"`
	Args            []string `mapstructure:"args" yaml:"args"`
}

// HarnessConfig tunes the timing behavior of sessions: how long navigation may
// take, how long an element has to become actionable, and how frequently
// awaited reads poll the page.
type HarnessConfig struct {
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	ActionTimeout     time.Duration `mapstructure:"action_timeout" yaml:"action_timeout"`
	ConditionTimeout  time.Duration `mapstructure:"condition_timeout" yaml:"condition_timeout"`
	PollInterval      time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	NetworkIdleQuiet  time.Duration `mapstructure:"network_idle_quiet" yaml:"network_idle_quiet"`
}

// FixturesConfig configures the embedded demo-page server.
type FixturesConfig struct {
	Addr      string  `mapstructure:"addr" yaml:"addr"`
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst" yaml:"rate_burst"`
}

// RunnerConfig configures the suite runner.
type RunnerConfig struct {
	Concurrency int    `mapstructure:"concurrency" yaml:"concurrency"`
	Manifest    string `mapstructure:"manifest" yaml:"manifest"`
}

// configFile mirrors Config with exported fields so viper can decode into it.
// Decoding lands here first and is then copied behind the getter surface.
type configFile struct {
	Logger   LoggerConfig   `mapstructure:"logger"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Harness  HarnessConfig  `mapstructure:"harness"`
	Fixtures FixturesConfig `mapstructure:"fixtures"`
	Runner   RunnerConfig   `mapstructure:"runner"`
}

func (c *Config) fromFile(f configFile) {
	c.logger = f.Logger
	c.browser = f.Browser
	c.harness = f.Harness
	c.fixtures = f.Fixtures
	c.runner = f.Runner
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var f configFile
	if err := v.Unmarshal(&f); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	var cfg Config
	cfg.fromFile(f)
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "demoprobe")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.disable_cache", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.debug", false)

	// -- Harness --
	v.SetDefault("harness.navigation_timeout", "30s")
	v.SetDefault("harness.action_timeout", "15s")
	v.SetDefault("harness.condition_timeout", "10s")
	v.SetDefault("harness.poll_interval", "100ms")
	v.SetDefault("harness.network_idle_quiet", "500ms")

	// -- Fixtures --
	v.SetDefault("fixtures.addr", "127.0.0.1:0")
	v.SetDefault("fixtures.rate_limit", 200.0)
	v.SetDefault("fixtures.rate_burst", 50)

	// -- Runner --
	v.SetDefault("runner.concurrency", 4)
	v.SetDefault("runner.manifest", "")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
// Defaults are applied first so a sparse config file or bare environment still
// yields a complete configuration.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var f configFile
	if err := v.Unmarshal(&f); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	var cfg Config
	cfg.fromFile(f)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.harness.NavigationTimeout <= 0 {
		return fmt.Errorf("harness.navigation_timeout must be a positive duration")
	}
	if c.harness.ActionTimeout <= 0 {
		return fmt.Errorf("harness.action_timeout must be a positive duration")
	}
	if c.harness.ConditionTimeout <= 0 {
		return fmt.Errorf("harness.condition_timeout must be a positive duration")
	}
	if c.harness.PollInterval <= 0 {
		return fmt.Errorf("harness.poll_interval must be a positive duration")
	}
	if c.harness.NetworkIdleQuiet <= 0 {
		return fmt.Errorf("harness.network_idle_quiet must be a positive duration")
	}
	if c.runner.Concurrency <= 0 {
		return fmt.Errorf("runner.concurrency must be a positive integer")
	}
	if c.fixtures.RateLimit <= 0 {
		return fmt.Errorf("fixtures.rate_limit must be positive")
	}
	return nil
}
