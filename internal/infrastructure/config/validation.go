package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator is a wrapper around go-playground/validator
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a new validator instance with custom validation rules
func NewValidator() *Validator {
	v := validator.New()

	v.RegisterStructValidation(validateScoreWeights, ScoreWeights{})

	return &Validator{
		validate: v,
	}
}

// validateScoreWeights requires the four scoring weights to sum to 1.
// A zero struct is allowed: per-commodity profiles leave weights unset
// to inherit the default profile.
func validateScoreWeights(sl validator.StructLevel) {
	w := sl.Current().Interface().(ScoreWeights)
	if w == (ScoreWeights{}) {
		return
	}
	sum := w.Quality + w.Price + w.Delivery + w.Risk
	if math.Abs(sum-1.0) > 0.001 {
		sl.ReportError(w.Quality, "Quality", "quality", "weights_sum", "")
	}
}

// Validate validates a struct using validation tags
func (v *Validator) Validate(i interface{}) error {
	if err := v.validate.Struct(i); err != nil {
		return v.formatValidationError(err)
	}
	return nil
}

// formatValidationError converts validator errors into readable messages
func (v *Validator) formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		var messages []string
		for _, e := range validationErrs {
			messages = append(messages, fmt.Sprintf(
				"field '%s' failed validation: %s (value: '%v')",
				e.Field(),
				e.Tag(),
				e.Value(),
			))
		}
		return fmt.Errorf("validation failed:\n  %s", strings.Join(messages, "\n  "))
	}
	return err
}

// ValidateConfig validates the entire configuration
func ValidateConfig(cfg *Config) error {
	v := NewValidator()
	return v.Validate(cfg)
}
