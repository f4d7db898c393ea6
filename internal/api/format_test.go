package api

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vnmchuo/fleet-billing/internal/billing"
)

func TestFormatters_For(t *testing.T) {
	f := DefaultFormatters()

	tests := []struct {
		accept string
		want   string
	}{
		{"", "application/json"},
		{"*/*", "application/json"},
		{"application/json", "application/json"},
		{"TEXT/PLAIN", "text/plain"},
		{"text/html, text/plain;q=0.9", "text/plain"},
		{"application/xml", "application/json"},
	}
	for _, tt := range tests {
		t.Run(tt.accept, func(t *testing.T) {
			assert.Equal(t, tt.want, f.For(tt.accept).ContentType)
		})
	}
}

func TestJSONFormatter_AmountIsTwoDecimalNumber(t *testing.T) {
	body, err := JSONFormatter.Format(&billing.BillResult{Customer: "Bob's Taxis", Amount: decimal.NewFromInt(5)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"customer":"Bob's Taxis","amount":5.00}`, string(body))
	assert.Equal(t, `{"customer":"Bob's Taxis","amount":5.00}`, string(body))
}
