package validation

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

// Request envelope types accepted by the intent endpoint
const (
	RequestTypeLaunch       = "LaunchRequest"
	RequestTypeIntent       = "IntentRequest"
	RequestTypeSessionEnded = "SessionEndedRequest"
)

func init() {
	Validate = validator.New()

	if err := Validate.RegisterValidation("request_type", validateRequestType); err != nil {
		panic(fmt.Sprintf("failed to register request_type validator: %v", err))
	}
}

// validateRequestType validates that a string is a known envelope type
func validateRequestType(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case RequestTypeLaunch, RequestTypeIntent, RequestTypeSessionEnded:
		return true
	default:
		return false
	}
}
