// Package odometer fetches cumulative vehicle distance readings from the
// external telemetry service.
package odometer

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TimestampLayout renders timestamps in the ISO-8601 round-trip form the
// reading service expects, e.g. 2025-05-05T10:00:00.0000000Z.
const TimestampLayout = "2006-01-02T15:04:05.0000000Z07:00"

// metersPerMile converts the service's meter readings to billed miles.
var metersPerMile = decimal.RequireFromString("1609.34")

// Source returns a vehicle's odometer reading, in miles, as of a timestamp.
type Source interface {
	FetchReading(ctx context.Context, vehicleID string, at time.Time) (decimal.Decimal, error)
}

// Record is one entry of the reading service response.
type Record struct {
	VIN          string       `json:"vin"`
	LicensePlate string       `json:"licensePlate"`
	Make         string       `json:"make"`
	Model        string       `json:"model"`
	State        VehicleState `json:"state"`
}

type VehicleState struct {
	OdometerInMeters decimal.Decimal `json:"odometerInMeters"`
	SpeedInMph       decimal.Decimal `json:"speedInMph"`
	AsAt             string          `json:"asAt"`
}

// ReadingServiceError reports a reading that could not be obtained from the
// service. It is fatal to the bill being calculated.
type ReadingServiceError struct {
	VehicleID  string
	Timestamp  time.Time
	StatusCode int
	Err        error
}

func (e *ReadingServiceError) Error() string {
	msg := fmt.Sprintf("failed to get odometer reading for %s at %s", e.VehicleID, FormatTimestamp(e.Timestamp))
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ReadingServiceError) Unwrap() error { return e.Err }

// FormatTimestamp renders t in UTC using TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// MetersToMiles converts a raw odometer value to miles.
func MetersToMiles(meters decimal.Decimal) decimal.Decimal {
	return meters.Div(metersPerMile)
}
