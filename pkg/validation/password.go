package validation

import (
	"unicode"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// passwordStrength requires at least one uppercase letter, one lowercase
// letter and one digit. Length is enforced separately by the min tag.
func passwordStrength(fl validator.FieldLevel) bool {
	var hasUpper, hasLower, hasDigit bool

	for _, r := range fl.Field().String() {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	return hasUpper && hasLower && hasDigit
}

// RegisterCustomValidators wires the custom tags into gin's binding
// validator. Called once at startup.
func RegisterCustomValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	return v.RegisterValidation("password_strength", passwordStrength)
}
