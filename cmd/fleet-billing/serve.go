package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/vnmchuo/fleet-billing/config"
	"github.com/vnmchuo/fleet-billing/internal/api"
	"github.com/vnmchuo/fleet-billing/internal/logger"
	"github.com/vnmchuo/fleet-billing/internal/metrics"
	"github.com/vnmchuo/fleet-billing/internal/telemetry"
	"github.com/vnmchuo/fleet-billing/pkg/ratelimit"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the billing HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	log := logger.New("main")

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	shutdownTracer, err := telemetry.InitTracer(serviceName, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer shutdownTracer()

	var sink metrics.Sink = metrics.NopSink{}
	var metricsHandler http.Handler
	if !cfg.Metrics.Disabled {
		prom, err := metrics.NewPromSink(prometheus.DefaultRegisterer)
		if err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		sink = prom
		metricsHandler = promhttp.Handler()
	}

	var limiter api.RateLimiter
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		log.Infof("Redis connected, rate limiting %d readings/min per customer", cfg.RateLimit.ReadingsPerMinute)
		limiter = ratelimit.NewLimiter(rdb, cfg.RateLimit.ReadingsPerMinute)
	}

	calc := newCalculator(cfg, sink)
	tracer := otel.GetTracerProvider().Tracer(serviceName)
	handler := api.NewHandler(calc, limiter, sink, tracer, logger.New("api"))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      api.NewRouter(handler, logger.New("http"), metricsHandler),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Fleet billing starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	log.Infof("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	log.Infof("Server stopped")
	return nil
}
