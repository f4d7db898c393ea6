package api

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vnmchuo/fleet-billing/internal/billing"
)

// Formatter renders a bill for one content type.
type Formatter struct {
	ContentType string
	Format      func(res *billing.BillResult) ([]byte, error)
}

// Formatters selects a Formatter by Accept header, falling back to JSON.
type Formatters struct {
	byType   map[string]Formatter
	fallback Formatter
}

var JSONFormatter = Formatter{ContentType: "application/json", Format: formatJSON}

var TextFormatter = Formatter{ContentType: "text/plain", Format: formatText}

func NewFormatters(formatters ...Formatter) *Formatters {
	f := &Formatters{byType: map[string]Formatter{}, fallback: JSONFormatter}
	for _, fm := range formatters {
		f.byType[strings.ToLower(fm.ContentType)] = fm
	}
	return f
}

func DefaultFormatters() *Formatters {
	return NewFormatters(JSONFormatter, TextFormatter)
}

// For returns the first registered formatter named in accept.
func (f *Formatters) For(accept string) Formatter {
	for _, part := range strings.Split(accept, ",") {
		mediaType, _, _ := strings.Cut(part, ";")
		mediaType = strings.ToLower(strings.TrimSpace(mediaType))
		if fm, ok := f.byType[mediaType]; ok {
			return fm
		}
	}
	return f.fallback
}

type billResponse struct {
	Customer string      `json:"customer"`
	Amount   json.Number `json:"amount"`
}

func formatJSON(res *billing.BillResult) ([]byte, error) {
	return json.Marshal(billResponse{
		Customer: res.Customer,
		Amount:   json.Number(res.Amount.StringFixed(2)),
	})
}

func formatText(res *billing.BillResult) ([]byte, error) {
	return []byte(fmt.Sprintf("customer: %s\namount: %s\n", res.Customer, res.Amount.StringFixed(2))), nil
}
