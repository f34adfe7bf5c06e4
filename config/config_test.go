package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/signalbot/config"
	"github.com/alejandrodnm/signalbot/internal/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_ExampleFile(t *testing.T) {
	cfg, err := config.Load("../config.example.yaml")
	require.NoError(t, err)

	assert.Equal(t, time.Minute, cfg.Interval())
	assert.Equal(t, 8, cfg.Scheduler.Workers)

	bots, err := cfg.DomainBots()
	require.NoError(t, err)
	require.Len(t, bots, 2)

	btc := bots[0]
	assert.Equal(t, "btc-trend", btc.ID)
	assert.Equal(t, domain.Granularity1h, btc.Granularity)
	assert.Equal(t, domain.Warm, btc.MinTemperature)
	assert.Equal(t, 5*time.Minute, btc.ConfirmationWindow())
	assert.Equal(t, []string{"macd", "rsi", "sma_crossover"}, btc.EnabledTypes())

	eth := bots[1]
	assert.Equal(t, []string{"ema_crossover", "rsi"}, eth.EnabledTypes())
	assert.True(t, eth.Renormalize)
	assert.Equal(t, "sensitive", eth.Profile)

	profiles, err := cfg.TemperatureProfiles()
	require.NoError(t, err)
	_, err = profiles.Lookup("scalper")
	assert.NoError(t, err)
}

func TestLoad_BotDefaults(t *testing.T) {
	path := writeConfig(t, `
bots:
  - id: minimal
    asset: SOL-USD
    signal_config:
      rsi:
        weight: 1
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	bots, err := cfg.DomainBots()
	require.NoError(t, err)
	require.Len(t, bots, 1)

	b := bots[0]
	assert.Equal(t, domain.Granularity5m, b.Granularity)
	assert.Equal(t, 120, b.Lookback)
	assert.Equal(t, 0.05, b.BuyThreshold)
	assert.Equal(t, -0.05, b.SellThreshold)
	assert.Equal(t, 30*time.Minute, b.Cooldown())
	assert.Equal(t, 25.0, b.PositionSize)
	assert.Equal(t, 500.0, b.MaxPositionSize)
	assert.Equal(t, 100.0, b.DailyLossCap)
	assert.Equal(t, domain.Warm, b.MinTemperature)
	assert.Equal(t, "conservative", b.Profile)
	assert.True(t, b.Signals["rsi"].Enabled)

	assert.Equal(t, "signalbot.db", cfg.Storage.DSN)
	assert.Equal(t, 10*time.Second, cfg.FetchTimeout())
	assert.Equal(t, 15*time.Second, cfg.ExecuteTimeout())
	assert.Equal(t, 30*time.Second, cfg.CacheTTL())
}

func TestLoad_ExplicitZerosDisableRiskControls(t *testing.T) {
	path := writeConfig(t, `
bots:
  - id: eager
    asset: SOL-USD
    signal_config:
      rsi:
        weight: 1
    confirmation_minutes: 0
    cooldown_minutes: 0
    daily_loss_cap: 0
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	bots, err := cfg.DomainBots()
	require.NoError(t, err)
	require.Len(t, bots, 1)

	b := bots[0]
	assert.Zero(t, b.ConfirmationMinutes)
	assert.Zero(t, b.CooldownMinutes)
	assert.Zero(t, b.DailyLossCap)
	assert.Equal(t, time.Duration(0), b.ConfirmationWindow())
	assert.Equal(t, time.Duration(0), b.Cooldown())
}

func TestLoad_RejectsInvalidBots(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"weights above one", `
bots:
  - id: b
    asset: BTC-USD
    signal_config:
      rsi: {weight: 0.6}
      macd: {weight: 0.5}
`},
		{"unknown granularity", `
bots:
  - id: b
    asset: BTC-USD
    granularity: 7m
    signal_config:
      rsi: {weight: 1}
`},
		{"unknown indicator", `
bots:
  - id: b
    asset: BTC-USD
    signal_config:
      bollinger: {weight: 1}
`},
		{"bad indicator params", `
bots:
  - id: b
    asset: BTC-USD
    signal_config:
      ema_crossover: {weight: 1, params: {fast: 30, slow: 10}}
`},
		{"lookback shorter than slowest indicator", `
bots:
  - id: b
    asset: BTC-USD
    lookback: 20
    signal_config:
      macd: {weight: 1}
`},
		{"no signals", `
bots:
  - id: b
    asset: BTC-USD
`},
		{"unknown profile", `
bots:
  - id: b
    asset: BTC-USD
    temperature_profile: aggressive
    signal_config:
      rsi: {weight: 1}
`},
		{"duplicate id", `
bots:
  - id: b
    asset: BTC-USD
    signal_config:
      rsi: {weight: 1}
  - id: b
    asset: ETH-USD
    signal_config:
      rsi: {weight: 1}
`},
		{"bad profile", `
temperature_profiles:
  - name: broken
    frozen_max: 0.3
    cool_max: 0.2
    warm_max: 0.1
`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tc.body))
			require.Error(t, err)
			assert.True(t, domain.IsConfigurationError(err), "got %v", err)
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("EXCHANGE_API_KEY", "secret")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("SIGNALBOT_DB", ":memory:")

	cfg, err := config.Load(writeConfig(t, "log:\n  level: warn\n"))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "secret", cfg.Exchange.APIKey)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, ":memory:", cfg.Storage.DSN)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
