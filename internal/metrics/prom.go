package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// Bill outcomes.
const (
	OutcomeBilled      = "billed"
	OutcomeRejected    = "rejected"
	OutcomeUpstream    = "upstream_error"
	OutcomeCanceled    = "canceled"
	OutcomeRateLimited = "rate_limited"
)

// Sink records billing activity.
type Sink interface {
	ObserveBill(outcome string)
	AddBilledMiles(miles decimal.Decimal)
	ObserveReading(outcome string, elapsed time.Duration)
}

type NopSink struct{}

func (NopSink) ObserveBill(string)                   {}
func (NopSink) AddBilledMiles(decimal.Decimal)       {}
func (NopSink) ObserveReading(string, time.Duration) {}

// PromSink records billing activity in Prometheus metrics.
type PromSink struct {
	bills           *prometheus.CounterVec
	miles           prometheus.Counter
	readings        *prometheus.CounterVec
	readingDuration prometheus.Histogram
}

// NewPromSink registers the billing metrics on reg, or on the default
// registerer when reg is nil. Already registered collectors are reused.
func NewPromSink(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	bills := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_billing_bills_total",
		Help: "Bill calculations by outcome",
	}, []string{"outcome"})
	miles := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fleet_billing_billed_miles_total",
		Help: "Miles billed across all successful calculations",
	})
	readings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_billing_reading_requests_total",
		Help: "Odometer reading service calls by HTTP status",
	}, []string{"status"})
	readingDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "fleet_billing_reading_duration_seconds",
		Help:    "Latency of odometer reading service calls",
		Buckets: prometheus.DefBuckets,
	})

	var err error
	if bills, err = register(reg, bills); err != nil {
		return nil, err
	}
	if miles, err = register(reg, miles); err != nil {
		return nil, err
	}
	if readings, err = register(reg, readings); err != nil {
		return nil, err
	}
	if readingDuration, err = register(reg, readingDuration); err != nil {
		return nil, err
	}
	return &PromSink{bills: bills, miles: miles, readings: readings, readingDuration: readingDuration}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (s *PromSink) ObserveBill(outcome string) {
	s.bills.WithLabelValues(outcome).Inc()
}

func (s *PromSink) AddBilledMiles(miles decimal.Decimal) {
	if miles.IsPositive() {
		s.miles.Add(miles.InexactFloat64())
	}
}

func (s *PromSink) ObserveReading(outcome string, elapsed time.Duration) {
	s.readings.WithLabelValues(outcome).Inc()
	s.readingDuration.Observe(elapsed.Seconds())
}
