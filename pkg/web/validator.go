package web

import (
	"reflect"

	"github.com/go-playground/validator/v10"
)

// NewValidator returns the request validator with the trigger API tags registered.
func NewValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())

	// Registering a static tag on a fresh instance only fails on an empty name.
	_ = validate.RegisterValidation("recipients", hasRecipients)

	return validate
}

// hasRecipients rejects empty recipient lists. Single entries of any shape
// pass; their validity is decided by the dispatcher.
func hasRecipients(fl validator.FieldLevel) bool {
	field := fl.Field()

	switch field.Kind() {
	case reflect.Invalid:
		return false
	case reflect.Slice, reflect.Array:
		return field.Len() > 0
	default:
		return true
	}
}
