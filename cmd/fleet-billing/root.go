package main

import (
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/vnmchuo/fleet-billing/config"
	"github.com/vnmchuo/fleet-billing/internal/billing"
	"github.com/vnmchuo/fleet-billing/internal/logger"
	"github.com/vnmchuo/fleet-billing/internal/metrics"
	"github.com/vnmchuo/fleet-billing/internal/odometer"
)

const serviceName = "fleet-billing"

var cfgPath string

var rootCmd = &cobra.Command{
	Use:          serviceName,
	Short:        "Mileage billing for fleet customers",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", config.DefaultPath, "JSON settings file")
}

// newCalculator wires the reading client, breaker and calculator from cfg.
func newCalculator(cfg *config.Config, sink metrics.Sink) *billing.Calculator {
	tracer := otel.GetTracerProvider().Tracer(serviceName)
	httpClient := &http.Client{Timeout: cfg.Billing.RequestTimeout()}

	var source odometer.Source = odometer.NewClient(cfg.Billing.ReadingURL, httpClient,
		odometer.WithLogger(logger.New("odometer")),
		odometer.WithTracer(tracer),
		odometer.WithObserver(sink),
	)
	if !cfg.Breaker.Disabled {
		source = odometer.NewBreakerSource(source, odometer.BreakerConfig{
			ConsecutiveFailures: uint32(cfg.Breaker.ConsecutiveFailures),
			OpenTimeout:         secondsToDuration(cfg.Breaker.OpenTimeoutSeconds),
			MaxRequests:         uint32(cfg.Billing.MaxConcurrency),
		})
	}

	return billing.NewCalculator(source, billing.Options{
		CostPerMile:    cfg.Billing.CostPerMile,
		MaxConcurrency: cfg.Billing.MaxConcurrency,
	}, logger.New("billing"), tracer)
}

func secondsToDuration(s int) time.Duration {
	return time.Duration(s) * time.Second
}
