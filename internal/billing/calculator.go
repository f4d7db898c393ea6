package billing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/vnmchuo/fleet-billing/internal/logger"
	"github.com/vnmchuo/fleet-billing/internal/odometer"
)

const DefaultMaxConcurrency = 4

type Options struct {
	CostPerMile decimal.Decimal
	// MaxConcurrency bounds how many vehicles are looked up at once.
	// 1 fetches vehicles strictly one after another.
	MaxConcurrency int
}

type Calculator struct {
	source         odometer.Source
	costPerMile    decimal.Decimal
	maxConcurrency int
	log            logger.Logger
	tracer         trace.Tracer
}

func NewCalculator(source odometer.Source, opts Options, log logger.Logger, tracer trace.Tracer) *Calculator {
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = DefaultMaxConcurrency
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("billing")
	}
	return &Calculator{
		source:         source,
		costPerMile:    opts.CostPerMile,
		maxConcurrency: opts.MaxConcurrency,
		log:            log,
		tracer:         tracer,
	}
}

// Bill validates req and calculates its amount.
func (c *Calculator) Bill(ctx context.Context, req *BillingRequest) (*BillResult, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	miles, err := c.TotalMiles(ctx, req)
	if err != nil {
		return nil, err
	}
	return &BillResult{
		Customer: req.Customer,
		Amount:   c.Price(miles),
		Miles:    miles,
	}, nil
}

// Calculate returns the amount owed for req, rounded to cents with banker's
// rounding. Any failed reading fails the whole calculation.
func (c *Calculator) Calculate(ctx context.Context, req *BillingRequest) (decimal.Decimal, error) {
	miles, err := c.TotalMiles(ctx, req)
	if err != nil {
		return decimal.Zero, err
	}
	return c.Price(miles), nil
}

// Price applies the per-mile rate to a distance.
func (c *Calculator) Price(miles decimal.Decimal) decimal.Decimal {
	return miles.Mul(c.costPerMile).RoundBank(2)
}

// TotalMiles sums the distance travelled by every vehicle of req. Vehicles
// are looked up concurrently but summed in request order.
func (c *Calculator) TotalMiles(ctx context.Context, req *BillingRequest) (decimal.Decimal, error) {
	ctx, span := c.tracer.Start(ctx, "billing.total_miles", trace.WithAttributes(
		attribute.String("customer", req.Customer),
		attribute.Int("vehicles", len(req.Vehicles)),
	))
	defer span.End()

	travelled := make([]decimal.Decimal, len(req.Vehicles))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxConcurrency)
	for i, vehicleID := range req.Vehicles {
		g.Go(func() error {
			miles, err := c.travelled(gctx, vehicleID, req.StartDate, req.EndDate)
			if err != nil {
				return err
			}
			travelled[i] = miles
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return decimal.Zero, err
	}
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, miles := range travelled {
		total = total.Add(miles)
	}
	span.SetAttributes(attribute.String("total_miles", total.String()))
	return total, nil
}

func (c *Calculator) travelled(ctx context.Context, vehicleID string, from, to time.Time) (decimal.Decimal, error) {
	start, err := c.source.FetchReading(ctx, vehicleID, from)
	if err != nil {
		return decimal.Zero, err
	}
	end, err := c.source.FetchReading(ctx, vehicleID, to)
	if err != nil {
		return decimal.Zero, err
	}

	miles := end.Sub(start)
	if miles.IsNegative() {
		c.log.Warnf("odometer for vehicle %s went backwards (%s -> %s miles), billing 0", vehicleID, start, end)
		return decimal.Zero, nil
	}
	return miles, nil
}
