// Package validation wraps go-playground/validator with the custom rules
// used by request payloads.
package validation

import (
	"example.com/eventwave/internal/models"

	"github.com/go-playground/validator/v10"
)

const (
	// MaxSearchRadiusKm bounds the user search radius
	MaxSearchRadiusKm = 500
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	RegisterCustomValidations()
}

// ValidateStruct validates a struct using validation tags
func ValidateStruct(s interface{}) error {
	if err := validate.Struct(s); err != nil {
		return err
	}
	return nil
}

// ValidateLocation checks the coordinate ranges of loc
func ValidateLocation(loc models.Location) error {
	return ValidateStruct(loc)
}

// IsKnownCategory reports whether category is one of the offered filters
func IsKnownCategory(category string) bool {
	if category == "" {
		return true
	}
	for _, c := range models.Categories {
		if c == category {
			return true
		}
	}
	return false
}

// RegisterCustomValidations registers custom validation functions
func RegisterCustomValidations() {
	_ = validate.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return IsKnownCategory(fl.Field().String())
	})
}
