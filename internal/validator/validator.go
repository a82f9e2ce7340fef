package validator

import (
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

func GetValidator() *validator.Validate {
	return validate
}

// ValidateConfig validates a configuration struct against its validate tags.
func ValidateConfig(cfg interface{}) error {
	if err := validate.Struct(cfg); err != nil {
		details := make(map[string]any)
		var validateErrs validator.ValidationErrors
		if ierr.As(err, &validateErrs) {
			for _, fieldErr := range validateErrs {
				details[fieldErr.Field()] = fieldErr.Error()
			}
		}
		return ierr.WithError(err).
			WithHint("Configuration validation failed").
			WithReportableDetails(details).
			Mark(ierr.ErrValidation)
	}
	return nil
}
