package odometer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/vnmchuo/fleet-billing/internal/logger"
)

// Observer is notified of every reading service call. outcome is the HTTP
// status code, or "error"/"canceled" when no response was received.
type Observer interface {
	ObserveReading(outcome string, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveReading(string, time.Duration) {}

type Client struct {
	baseURL  string
	http     *http.Client
	log      logger.Logger
	tracer   trace.Tracer
	observer Observer
}

type Option func(*Client)

func WithLogger(l logger.Logger) Option { return func(c *Client) { c.log = l } }

func WithTracer(t trace.Tracer) Option { return func(c *Client) { c.tracer = t } }

func WithObserver(o Observer) Option { return func(c *Client) { c.observer = o } }

// NewClient returns a Client issuing GET {baseURL}{timestamp}. A nil
// httpClient uses http.DefaultClient.
func NewClient(baseURL string, httpClient *http.Client, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c := &Client{
		baseURL:  baseURL,
		http:     httpClient,
		log:      logger.NopLogger{},
		tracer:   noop.NewTracerProvider().Tracer("odometer"),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchReading returns the odometer reading of vehicleID at the given time,
// in miles. A vehicle missing from the service response reads as zero.
func (c *Client) FetchReading(ctx context.Context, vehicleID string, at time.Time) (decimal.Decimal, error) {
	ts := FormatTimestamp(at)
	ctx, span := c.tracer.Start(ctx, "odometer.fetch_reading", trace.WithAttributes(
		attribute.String("vehicle_id", vehicleID),
		attribute.String("timestamp", ts),
	))
	defer span.End()

	start := time.Now()
	miles, outcome, err := c.fetch(ctx, vehicleID, at, ts)
	c.observer.ObserveReading(outcome, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return decimal.Zero, err
	}
	span.SetAttributes(attribute.String("miles", miles.String()))
	return miles, nil
}

func (c *Client) fetch(ctx context.Context, vehicleID string, at time.Time, ts string) (decimal.Decimal, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+ts, nil)
	if err != nil {
		return decimal.Zero, "error", &ReadingServiceError{VehicleID: vehicleID, Timestamp: at, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return decimal.Zero, "canceled", fmt.Errorf("fetch odometer reading for %s: %w", vehicleID, ctxErr)
		}
		c.log.Errorf("odometer request for vehicle %s at %s failed: %v", vehicleID, ts, err)
		return decimal.Zero, "error", &ReadingServiceError{VehicleID: vehicleID, Timestamp: at, Err: err}
	}
	defer resp.Body.Close()
	outcome := strconv.Itoa(resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Errorf("failed to fetch odometer reading for vehicle %s at %s: status %d", vehicleID, ts, resp.StatusCode)
		var cause error
		if msg := strings.TrimSpace(string(body)); msg != "" {
			cause = errors.New(msg)
		}
		return decimal.Zero, outcome, &ReadingServiceError{
			VehicleID:  vehicleID,
			Timestamp:  at,
			StatusCode: resp.StatusCode,
			Err:        cause,
		}
	}

	var records []Record
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return decimal.Zero, outcome, &ReadingServiceError{
			VehicleID:  vehicleID,
			Timestamp:  at,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("decode odometer response: %w", err),
		}
	}

	for _, r := range records {
		if r.LicensePlate == vehicleID {
			return MetersToMiles(r.State.OdometerInMeters), outcome, nil
		}
	}
	c.log.Warnf("no odometer data found for vehicle %s at %s", vehicleID, ts)
	return decimal.Zero, outcome, nil
}
