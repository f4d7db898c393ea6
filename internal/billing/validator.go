package billing

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

const (
	MsgInvalidRequest   = "Invalid request."
	MsgCustomerRequired = "Customer name is required."
	MsgVehiclesRequired = "Vehicles list is required."
	MsgDateOrder        = "Start date must be earlier than end date."
)

// fieldMessages maps a failing BillingRequest field to the message reported
// for it.
var fieldMessages = map[string]string{
	"Customer":  MsgCustomerRequired,
	"Vehicles":  MsgVehiclesRequired,
	"StartDate": MsgDateOrder,
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	return v
}

// ValidationError lists every rule a request violates, in rule order.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Messages, "; ")
}

// Validate checks req before any reading is fetched. All rules are evaluated;
// the returned error is a *ValidationError or nil.
func Validate(req *BillingRequest) error {
	if req == nil {
		return &ValidationError{Messages: []string{MsgInvalidRequest}}
	}

	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &ValidationError{Messages: []string{MsgInvalidRequest}}
	}

	// Errors come back in field order, which is the rule order.
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if msg, ok := fieldMessages[fe.StructField()]; ok {
			msgs = append(msgs, msg)
		}
	}
	return &ValidationError{Messages: msgs}
}
