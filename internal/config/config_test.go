package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("TELEGRAM_TOKEN", "123:abc")
	t.Setenv("POSTGRES_DSN", "postgres://bot@localhost/flights?sslmode=disable")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 30*time.Minute, cfg.CheckInterval)
	assert.Equal(t, 20*time.Minute, cfg.CycleWaitTimeout)
	assert.Equal(t, 3, cfg.MaxMonitors)
	assert.Equal(t, 5, cfg.MaxWorkers)
	assert.Equal(t, 5, cfg.FileWorkers)
	assert.Equal(t, 30, cfg.DataRetentionDays)
	assert.Equal(t, 7, cfg.ConfigRetentionDays)
	assert.Equal(t, 3, cfg.StoreFailureLimit)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 30*24*time.Hour, cfg.DataRetention())
	assert.Empty(t, cfg.AdminIDs)
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("CHECK_INTERVAL", "10m")
	t.Setenv("CYCLE_WAIT_TIMEOUT", "5m")
	t.Setenv("MAX_MONITORS", "5")
	t.Setenv("ADMIN_IDS", "11, 22,33")
	t.Setenv("FLIGHTS_BASE_URL", "http://localhost:9000/")
	t.Setenv("FETCH_RATE_PER_SEC", "0.5")

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 10*time.Minute, cfg.CheckInterval)
	assert.Equal(t, 5*time.Minute, cfg.CycleWaitTimeout)
	assert.Equal(t, 5, cfg.MaxMonitors)
	assert.Equal(t, []int64{11, 22, 33}, cfg.AdminIDs)
	assert.Equal(t, "http://localhost:9000", cfg.FlightsBaseURL)
	assert.InDelta(t, 0.5, cfg.FetchRatePerSec, 1e-9)
}

func TestLoadRequiresToken(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "")
	t.Setenv("POSTGRES_DSN", "postgres://x")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	for key, value := range map[string]string{
		"CHECK_INTERVAL": "often",
		"MAX_WORKERS":    "five",
		"ADMIN_IDS":      "1,abc",
	} {
		t.Run(key, func(t *testing.T) {
			setRequired(t)
			t.Setenv(key, value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			TelegramToken:       "t",
			PostgresDSN:         "dsn",
			CheckInterval:       30 * time.Minute,
			CycleWaitTimeout:    20 * time.Minute,
			FetchTimeout:        time.Minute,
			FetchRatePerSec:     1,
			MaxMonitors:         3,
			MaxWorkers:          5,
			FileWorkers:         5,
			StoreFailureLimit:   3,
			DataRetentionDays:   30,
			ConfigRetentionDays: 7,
			LogLevel:            "info",
		}
	}
	require.NoError(t, valid().Validate())

	tests := map[string]func(c *Config){
		"short interval":     func(c *Config) { c.CheckInterval = time.Second },
		"wait over interval": func(c *Config) { c.CycleWaitTimeout = time.Hour },
		"zero workers":       func(c *Config) { c.MaxWorkers = 0 },
		"zero quota":         func(c *Config) { c.MaxMonitors = 0 },
		"bad level":          func(c *Config) { c.LogLevel = "loud" },
		"zero retention":     func(c *Config) { c.DataRetentionDays = 0 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
