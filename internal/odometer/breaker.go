package odometer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
)

type BreakerConfig struct {
	// ConsecutiveFailures trips the breaker. Zero disables it.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
	// MaxRequests is how many trial calls a half-open breaker lets through.
	// Default: 3.
	MaxRequests uint32
}

// halfOpenPoll is how often a call turned away by a half-open breaker
// checks whether the trial calls have settled.
const halfOpenPoll = 5 * time.Millisecond

// BreakerSource fails fast once the reading service has failed
// ConsecutiveFailures times in a row. It never retries.
type BreakerSource struct {
	next Source
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerSource wraps next. With ConsecutiveFailures == 0 it returns next
// unchanged.
func NewBreakerSource(next Source, cfg BreakerConfig) Source {
	if cfg.ConsecutiveFailures == 0 {
		return next
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 3
	}
	settings := gobreaker.Settings{
		Name:        "odometer",
		MaxRequests: cfg.MaxRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		// A caller giving up says nothing about the service's health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}
	return &BreakerSource{next: next, cb: gobreaker.NewCircuitBreaker(settings)}
}

// FetchReading calls through the breaker. A call turned away while the
// breaker is half-open waits for the trial calls to settle and tries again,
// so only an open breaker fails it.
func (b *BreakerSource) FetchReading(ctx context.Context, vehicleID string, at time.Time) (decimal.Decimal, error) {
	for {
		result, err := b.cb.Execute(func() (interface{}, error) {
			return b.next.FetchReading(ctx, vehicleID, at)
		})
		switch {
		case err == nil:
			return result.(decimal.Decimal), nil
		case errors.Is(err, gobreaker.ErrTooManyRequests):
			select {
			case <-ctx.Done():
				return decimal.Zero, fmt.Errorf("fetch odometer reading for %s: %w", vehicleID, ctx.Err())
			case <-time.After(halfOpenPoll):
			}
		case errors.Is(err, gobreaker.ErrOpenState):
			return decimal.Zero, &ReadingServiceError{VehicleID: vehicleID, Timestamp: at, Err: err}
		default:
			return decimal.Zero, err
		}
	}
}

// State reports the breaker state, e.g. "closed" or "open".
func (b *BreakerSource) State() string {
	return b.cb.State().String()
}
