package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// CustomMessage returns per-field overrides for validation failures
func CustomMessage(field string) map[string]string {
	var customValidationMessages = map[string]map[string]string{
		"Email": {
			"required": "email must not be empty",
			"email":    "email is not a valid address",
		},
		"Password": {
			"required":          "password must not be empty",
			"min":               "password must be at least 8 characters",
			"password_strength": "password must contain an uppercase letter, a lowercase letter and a digit",
		},
		"NewPassword": {
			"required":          "new password must not be empty",
			"min":               "new password must be at least 8 characters",
			"password_strength": "new password must contain an uppercase letter, a lowercase letter and a digit",
		},
		"Code": {
			"required": "verification code must not be empty",
		},
		"FirstName": {
			"required": "first name must not be empty",
		},
		"LastName": {
			"required": "last name must not be empty",
		},
		"RefreshToken": {
			"required": "refresh token must not be empty",
		},
	}
	return customValidationMessages[field]
}

// DefaultMessage covers tags without a per-field override
func DefaultMessage(field, tag string) string {
	field = strings.ToLower(field)

	switch tag {
	case "required":
		return fmt.Sprintf("%s must not be empty", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "min":
		return fmt.Sprintf("%s is below the minimum length or value", field)
	case "max":
		return fmt.Sprintf("%s exceeds the maximum length or value", field)
	case "len":
		return fmt.Sprintf("%s has the wrong length", field)
	case "numeric":
		return fmt.Sprintf("%s must be numeric", field)
	case "eqfield":
		return fmt.Sprintf("%s must match its confirmation field", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of the allowed values", field)
	case "alphanum":
		return fmt.Sprintf("%s may only contain letters and digits", field)
	case "password_strength":
		return fmt.Sprintf("%s must contain an uppercase letter, a lowercase letter and a digit", field)
	default:
		return fmt.Sprintf("%s is not valid", field)
	}
}

// Translate flattens validator errors into a field -> message map for
// response bodies. Non-validation errors come back under a single key.
func Translate(err error) map[string]string {
	details := make(map[string]string)

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		details["body"] = "request body is not valid"
		return details
	}

	for _, fieldErr := range validationErrors {
		field := fieldErr.Field()
		if custom := CustomMessage(field); custom != nil {
			if msg, ok := custom[fieldErr.Tag()]; ok {
				details[strings.ToLower(field)] = msg
				continue
			}
		}
		details[strings.ToLower(field)] = DefaultMessage(field, fieldErr.Tag())
	}

	return details
}
