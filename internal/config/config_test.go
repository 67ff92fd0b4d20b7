package config_test

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WangZhewei1027/demoprobe/internal/config"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := config.NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger().Level)
	assert.Equal(t, "console", cfg.Logger().Format)
	assert.True(t, cfg.Browser().Headless)
	assert.Equal(t, 30*time.Second, cfg.Harness().NavigationTimeout)
	assert.Equal(t, 15*time.Second, cfg.Harness().ActionTimeout)
	assert.Equal(t, 10*time.Second, cfg.Harness().ConditionTimeout)
	assert.Equal(t, 100*time.Millisecond, cfg.Harness().PollInterval)
	assert.Equal(t, 500*time.Millisecond, cfg.Harness().NetworkIdleQuiet)
	assert.Equal(t, "127.0.0.1:0", cfg.Fixtures().Addr)
	assert.Equal(t, 4, cfg.Runner().Concurrency)

	require.NoError(t, cfg.Validate())
}

func TestNewConfigFromViperOverrides(t *testing.T) {
	v := viper.New()
	v.Set("harness.navigation_timeout", "5s")
	v.Set("harness.poll_interval", "25ms")
	v.Set("runner.concurrency", 2)
	v.Set("browser.headless", false)

	cfg, err := config.NewConfigFromViper(v)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Harness().NavigationTimeout)
	assert.Equal(t, 25*time.Millisecond, cfg.Harness().PollInterval)
	assert.Equal(t, 2, cfg.Runner().Concurrency)
	assert.False(t, cfg.Browser().Headless)
	// Untouched sections still carry defaults.
	assert.Equal(t, 15*time.Second, cfg.Harness().ActionTimeout)
}

func TestNewConfigFromViperRejectsInvalid(t *testing.T) {
	v := viper.New()
	v.Set("runner.concurrency", 0)

	_, err := config.NewConfigFromViper(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "runner.concurrency")
}

func TestNewConfigFromViperRejectsZeroDurations(t *testing.T) {
	cases := map[string]string{
		"harness.network_idle_quiet": "0s",
		"harness.condition_timeout":  "0s",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			v := viper.New()
			v.Set(key, val)

			_, err := config.NewConfigFromViper(v)
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestSetters(t *testing.T) {
	cfg := config.NewDefaultConfig()

	cfg.SetBrowserHeadless(false)
	assert.False(t, cfg.Browser().Headless)

	cfg.SetHarnessNavigationTimeout(2 * time.Second)
	assert.Equal(t, 2*time.Second, cfg.Harness().NavigationTimeout)

	cfg.SetHarnessActionTimeout(3 * time.Second)
	assert.Equal(t, 3*time.Second, cfg.Harness().ActionTimeout)

	cfg.SetHarnessPollInterval(10 * time.Millisecond)
	assert.Equal(t, 10*time.Millisecond, cfg.Harness().PollInterval)

	cfg.SetRunnerConcurrency(8)
	assert.Equal(t, 8, cfg.Runner().Concurrency)

	cfg.SetRunnerManifest("suites.yaml")
	assert.Equal(t, "suites.yaml", cfg.Runner().Manifest)
}

func TestValidate(t *testing.T) {
	cfg := config.NewDefaultConfig()

	cfg.SetHarnessNavigationTimeout(0)
	require.Error(t, cfg.Validate())

	cfg.SetHarnessNavigationTimeout(time.Second)
	require.NoError(t, cfg.Validate())

	cfg.SetHarnessPollInterval(-time.Millisecond)
	require.Error(t, cfg.Validate())
}
