package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for name := range envKeys {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
}

func writeSettings(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_FromFile(t *testing.T) {
	clearEnv(t)
	path := writeSettings(t, `{
		"billing": {"costPerMile": 0.5, "readingUrl": "https://example.com/api/odometer/"},
		"breaker": {"consecutiveFailures": 3}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.5", cfg.Billing.CostPerMile.String())
	assert.Equal(t, "https://example.com/api/odometer/", cfg.Billing.ReadingURL)
	assert.Equal(t, 3, cfg.Breaker.ConsecutiveFailures)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 4, cfg.Billing.MaxConcurrency)
	assert.Equal(t, 30, cfg.Breaker.OpenTimeoutSeconds)
	assert.Equal(t, int64(600), cfg.RateLimit.ReadingsPerMinute)
	assert.Equal(t, "none", cfg.Telemetry.Exporter)
	assert.Empty(t, cfg.Redis.Addr)
}

func TestLoad_FileRateKeepsAllDigits(t *testing.T) {
	clearEnv(t)
	path := writeSettings(t, `{
		"billing": {"costPerMile": 0.12345678901234567891, "readingUrl": "https://example.com/a/", "maxConcurrency": 2},
		"breaker": {"disabled": true}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.12345678901234567891", cfg.Billing.CostPerMile.String())
	assert.Equal(t, 2, cfg.Billing.MaxConcurrency)
	assert.True(t, cfg.Breaker.Disabled)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeSettings(t, `{"billing": {"costPerMile": "0.5", "readingUrl": "https://example.com/a/"}}`)
	t.Setenv("BILLING_COST_PER_MILE", "0.125")
	t.Setenv("PORT", "9090")
	t.Setenv("BILLING_MAX_CONCURRENCY", "1")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("METRICS_DISABLED", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.125", cfg.Billing.CostPerMile.String())
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 1, cfg.Billing.MaxConcurrency)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.True(t, cfg.Metrics.Disabled)
}

func TestLoad_MissingFileUsesEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("BILLING_COST_PER_MILE", "1.10")
	t.Setenv("BILLING_READING_URL", "http://telemetry.local/odometer/")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, "1.1", cfg.Billing.CostPerMile.String())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing rate", map[string]string{"BILLING_READING_URL": "https://x/"}, "billing.costPerMile is required"},
		{"bad rate", map[string]string{"BILLING_COST_PER_MILE": "cheap", "BILLING_READING_URL": "https://x/"}, "invalid billing.costPerMile"},
		{"negative rate", map[string]string{"BILLING_COST_PER_MILE": "-1", "BILLING_READING_URL": "https://x/"}, "must not be negative"},
		{"missing url", map[string]string{"BILLING_COST_PER_MILE": "1"}, "billing.readingUrl is required"},
		{"relative url", map[string]string{"BILLING_COST_PER_MILE": "1", "BILLING_READING_URL": "/odometer/"}, "absolute http(s) URL"},
		{"exporter", map[string]string{"BILLING_COST_PER_MILE": "1", "BILLING_READING_URL": "https://x/", "OTEL_EXPORTER_TYPE": "zipkin"}, "unknown telemetry.exporter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	clearEnv(t)
	path := writeSettings(t, `{"billing": `)
	_, err := Load(path)
	assert.Error(t, err)
}
