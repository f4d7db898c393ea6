package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	kjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"
)

// DefaultPath is the optional JSON settings file read when no path is given.
const DefaultPath = "local.settings.json"

type Config struct {
	Server    ServerConfig    `json:"server"`
	Billing   BillingConfig   `json:"billing"`
	Breaker   BreakerConfig   `json:"breaker"`
	Redis     RedisConfig     `json:"redis"`
	RateLimit RateLimitConfig `json:"rateLimit"`
	Telemetry TelemetryConfig `json:"telemetry"`
	Metrics   MetricsConfig   `json:"metrics"`
}

type ServerConfig struct {
	Port string `json:"port"` // default: 8080
}

type BillingConfig struct {
	// CostPerMileRaw is kept as text so the rate is never rounded through a float.
	CostPerMileRaw string `json:"costPerMile"`
	ReadingURL     string `json:"readingUrl"`
	MaxConcurrency int    `json:"maxConcurrency"` // default: 4
	// RequestTimeoutSeconds bounds each reading call; 0 keeps the transport default.
	RequestTimeoutSeconds int `json:"requestTimeoutSeconds"`

	CostPerMile decimal.Decimal `json:"-"`
}

func (c BillingConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

type BreakerConfig struct {
	Disabled            bool `json:"disabled"`
	ConsecutiveFailures int  `json:"consecutiveFailures"` // default: 5
	OpenTimeoutSeconds  int  `json:"openTimeoutSeconds"`  // default: 30
}

type RedisConfig struct {
	// Addr enables per-customer rate limiting when set.
	Addr string `json:"addr"`
}

type RateLimitConfig struct {
	ReadingsPerMinute int64 `json:"readingsPerMinute"` // default: 600
}

type TelemetryConfig struct {
	Exporter string `json:"exporter"` // "none", "stdout" or "otlp"
	Endpoint string `json:"endpoint"` // default: localhost:4317
}

type MetricsConfig struct {
	Disabled bool `json:"disabled"`
}

var envKeys = map[string]string{
	"PORT":                            "server.port",
	"BILLING_COST_PER_MILE":           "billing.costPerMile",
	"BILLING_READING_URL":             "billing.readingUrl",
	"BILLING_MAX_CONCURRENCY":         "billing.maxConcurrency",
	"BILLING_REQUEST_TIMEOUT_SECONDS": "billing.requestTimeoutSeconds",
	"BREAKER_DISABLED":                "breaker.disabled",
	"BREAKER_CONSECUTIVE_FAILURES":    "breaker.consecutiveFailures",
	"BREAKER_OPEN_TIMEOUT_SECONDS":    "breaker.openTimeoutSeconds",
	"REDIS_ADDR":                      "redis.addr",
	"RATE_LIMIT_READINGS_PER_MINUTE":  "rateLimit.readingsPerMinute",
	"OTEL_EXPORTER_TYPE":              "telemetry.exporter",
	"OTEL_EXPORTER_ENDPOINT":          "telemetry.endpoint",
	"METRICS_DISABLED":                "metrics.disabled",
}

// numberParser decodes settings with numbers kept as json.Number, so
// costPerMile reaches decimal parsing with every digit written in the file.
type numberParser struct {
	*kjson.JSON
}

func (numberParser) Unmarshal(b []byte) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var out map[string]interface{}
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// Load reads .env (if present) into the environment, then the JSON settings
// file at path (skipped when missing), then environment overrides.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if path == "" {
		path = DefaultPath
	}
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), numberParser{kjson.Parser()}); err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	if err := k.Load(env.Provider("", ".", func(s string) string {
		return envKeys[s]
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) SetDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Billing.MaxConcurrency == 0 {
		c.Billing.MaxConcurrency = 4
	}
	if c.Breaker.ConsecutiveFailures == 0 {
		c.Breaker.ConsecutiveFailures = 5
	}
	if c.Breaker.OpenTimeoutSeconds == 0 {
		c.Breaker.OpenTimeoutSeconds = 30
	}
	if c.RateLimit.ReadingsPerMinute == 0 {
		c.RateLimit.ReadingsPerMinute = 600
	}
	if c.Telemetry.Exporter == "" {
		c.Telemetry.Exporter = "none"
	}
	if c.Telemetry.Endpoint == "" {
		c.Telemetry.Endpoint = "localhost:4317"
	}
}

// Validate checks mandatory fields and parses the rate into CostPerMile.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Billing.CostPerMileRaw) == "" {
		return fmt.Errorf("billing.costPerMile is required")
	}
	rate, err := decimal.NewFromString(strings.TrimSpace(c.Billing.CostPerMileRaw))
	if err != nil {
		return fmt.Errorf("invalid billing.costPerMile: %w", err)
	}
	if rate.IsNegative() {
		return fmt.Errorf("billing.costPerMile must not be negative")
	}
	c.Billing.CostPerMile = rate

	if c.Billing.ReadingURL == "" {
		return fmt.Errorf("billing.readingUrl is required")
	}
	u, err := url.Parse(c.Billing.ReadingURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("billing.readingUrl must be an absolute http(s) URL, got %q", c.Billing.ReadingURL)
	}
	if c.Billing.MaxConcurrency < 0 {
		return fmt.Errorf("billing.maxConcurrency must not be negative")
	}
	if c.Billing.RequestTimeoutSeconds < 0 {
		return fmt.Errorf("billing.requestTimeoutSeconds must not be negative")
	}
	if c.Breaker.ConsecutiveFailures < 0 || c.Breaker.OpenTimeoutSeconds < 0 {
		return fmt.Errorf("breaker settings must not be negative")
	}
	if c.RateLimit.ReadingsPerMinute < 0 {
		return fmt.Errorf("rateLimit.readingsPerMinute must not be negative")
	}
	switch c.Telemetry.Exporter {
	case "none", "stdout", "otlp":
	default:
		return fmt.Errorf("unknown telemetry.exporter %q", c.Telemetry.Exporter)
	}
	return nil
}
