package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{"REPORT_TIMEZONE": "UTC"}))
	require.NoError(t, err)

	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Empty(t, cfg.AllowedOrigins)
	assert.Equal(t, "es", cfg.CatalogLocale.String())
	assert.Equal(t, time.UTC, cfg.ReportLocation)
	assert.Equal(t, 30*time.Minute, cfg.CartIdleTTL)
	assert.Equal(t, zapcore.InfoLevel, cfg.LogLevel)
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{
		"DATABASE_URL":    "postgres://localhost/inv",
		"SERVER_PORT":     "9000",
		"ALLOWED_ORIGINS": "http://a.test, ,http://b.test",
		"CATALOG_LOCALE":  "en-US",
		"REPORT_TIMEZONE": "America/Argentina/Buenos_Aires",
		"CART_IDLE_TTL":   "5m",
		"LOG_LEVEL":       "debug",
	}))
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/inv", cfg.DatabaseURL)
	assert.Equal(t, "9000", cfg.ServerPort)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins)
	assert.Equal(t, "en-US", cfg.CatalogLocale.String())
	assert.Equal(t, "America/Argentina/Buenos_Aires", cfg.ReportLocation.String())
	assert.Equal(t, 5*time.Minute, cfg.CartIdleTTL)
	assert.Equal(t, zapcore.DebugLevel, cfg.LogLevel)
}

func TestFromEnv_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"locale":   {"CATALOG_LOCALE": "not a locale!"},
		"timezone": {"REPORT_TIMEZONE": "Mars/Olympus"},
		"ttl":      {"CART_IDLE_TTL": "soon"},
		"zero ttl": {"CART_IDLE_TTL": "0s"},
		"level":    {"LOG_LEVEL": "loud"},
	}
	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromEnv(env(vars))
			assert.Error(t, err)
		})
	}
}

func TestNewLogger(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{"LOG_LEVEL": "warn", "REPORT_TIMEZONE": "UTC"}))
	require.NoError(t, err)
	logger, err := cfg.NewLogger()
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
}
