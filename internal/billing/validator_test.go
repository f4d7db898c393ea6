package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	now := time.Date(2025, 5, 5, 12, 0, 0, 0, time.UTC)
	weekAgo := now.AddDate(0, 0, -7)

	tests := []struct {
		name string
		req  *BillingRequest
		want []string
	}{
		{
			name: "valid",
			req:  &BillingRequest{Customer: "Bob's Taxis", Vehicles: []string{"vehicle1", "vehicle2"}, StartDate: weekAgo, EndDate: now},
		},
		{
			name: "customer missing",
			req:  &BillingRequest{Customer: "", Vehicles: []string{"vehicle1"}, StartDate: weekAgo, EndDate: now},
			want: []string{MsgCustomerRequired},
		},
		{
			name: "customer blank",
			req:  &BillingRequest{Customer: "   ", Vehicles: []string{"vehicle1"}, StartDate: weekAgo, EndDate: now},
			want: []string{MsgCustomerRequired},
		},
		{
			name: "customer whitespace only",
			req:  &BillingRequest{Customer: "\t\n", Vehicles: []string{"vehicle1"}, StartDate: weekAgo, EndDate: now},
			want: []string{MsgCustomerRequired},
		},
		{
			name: "vehicles empty",
			req:  &BillingRequest{Customer: "Bob's Taxis", Vehicles: []string{}, StartDate: weekAgo, EndDate: now},
			want: []string{MsgVehiclesRequired},
		},
		{
			name: "vehicles nil",
			req:  &BillingRequest{Customer: "Bob's Taxis", StartDate: weekAgo, EndDate: now},
			want: []string{MsgVehiclesRequired},
		},
		{
			name: "start after end",
			req:  &BillingRequest{Customer: "Bob's Taxis", Vehicles: []string{"vehicle1"}, StartDate: now, EndDate: weekAgo},
			want: []string{MsgDateOrder},
		},
		{
			name: "start equals end",
			req:  &BillingRequest{Customer: "Bob's Taxis", Vehicles: []string{"vehicle1"}, StartDate: now, EndDate: now},
			want: []string{MsgDateOrder},
		},
		{
			name: "dates missing",
			req:  &BillingRequest{Customer: "Bob's Taxis", Vehicles: []string{"vehicle1"}},
			want: []string{MsgDateOrder},
		},
		{
			name: "everything wrong",
			req:  &BillingRequest{StartDate: now, EndDate: weekAgo},
			want: []string{MsgCustomerRequired, MsgVehiclesRequired, MsgDateOrder},
		},
		{
			name: "nil request",
			req:  nil,
			want: []string{MsgInvalidRequest},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.req)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.want, verr.Messages)
		})
	}
}

func TestValidationErrorJoinsMessages(t *testing.T) {
	err := Validate(&BillingRequest{})
	require.Error(t, err)
	assert.Equal(t,
		"Customer name is required.; Vehicles list is required.; Start date must be earlier than end date.",
		err.Error())
}
