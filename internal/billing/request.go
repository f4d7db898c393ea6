package billing

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// BillingRequest asks for the mileage bill of a customer's vehicles between
// StartDate and EndDate.
type BillingRequest struct {
	Customer  string    `json:"customer" validate:"required,notblank"`
	Vehicles  []string  `json:"vehicles" validate:"required,min=1"`
	StartDate time.Time `json:"startDate" validate:"ltfield=EndDate"`
	EndDate   time.Time `json:"endDate"`
}

type BillResult struct {
	Customer string
	Amount   decimal.Decimal
	// Miles is the total billed distance. It is not rendered.
	Miles decimal.Decimal
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTimestamp accepts RFC 3339 timestamps and the offset-less ISO-8601
// forms, which are read as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

func (r *BillingRequest) UnmarshalJSON(data []byte) error {
	var raw struct {
		Customer  string   `json:"customer"`
		Vehicles  []string `json:"vehicles"`
		StartDate *string  `json:"startDate"`
		EndDate   *string  `json:"endDate"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := BillingRequest{Customer: raw.Customer, Vehicles: raw.Vehicles}
	if raw.StartDate != nil {
		t, err := ParseTimestamp(*raw.StartDate)
		if err != nil {
			return fmt.Errorf("startDate: %w", err)
		}
		out.StartDate = t
	}
	if raw.EndDate != nil {
		t, err := ParseTimestamp(*raw.EndDate)
		if err != nil {
			return fmt.Errorf("endDate: %w", err)
		}
		out.EndDate = t
	}
	*r = out
	return nil
}
