package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-authgate/meshgate/internal/fingerprint"
	"github.com/go-authgate/meshgate/internal/models"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("devicetype", func(fl validator.FieldLevel) bool {
		return models.DeviceType(fl.Field().String()).IsValid()
	})
	_ = v.RegisterValidation("fingerprint", func(fl validator.FieldLevel) bool {
		return fingerprint.Valid(fl.Field().String())
	})
	return v
}

// validateRequest runs struct-tag validation and folds every failure into a
// single ErrValidation whose message can be shown to the caller.
func validateRequest(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describeFieldError(fe))
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(msgs, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	field := toSnake(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "devicetype":
		return field + " must be one of laptop, desktop, mobile, tablet, windows, macos"
	case "fingerprint":
		return field + " must be 1-128 letters, digits or hyphens"
	default:
		return fmt.Sprintf("%s is invalid (%s)", field, fe.Tag())
	}
}

func toSnake(s string) string {
	var b strings.Builder
	prevLower := false
	for _, r := range s {
		upper := r >= 'A' && r <= 'Z'
		if upper && prevLower {
			b.WriteByte('_')
		}
		if upper {
			r += 'a' - 'A'
		}
		b.WriteRune(r)
		prevLower = !upper
	}
	return b.String()
}
