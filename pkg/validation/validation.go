// Package validation checks request bodies at the HTTP boundary and turns
// failures into validation_failed domain errors naming the offending JSON
// field.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	dErrors "purchasegate/pkg/domain-errors"
	s "purchasegate/pkg/platform/strings"
)

var (
	currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)
	categoryPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)
)

var defaultValidator = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Messages use the wire name; untagged fields fall back to snake_case.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			return ""
		case "":
			return s.ToSnakeCase(f.Name)
		}
		return name
	})

	rules := map[string]validator.Func{
		"notblank": func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		},
		// ISO 4217 alphabetic code.
		"currency": func(fl validator.FieldLevel) bool {
			return currencyPattern.MatchString(fl.Field().String())
		},
		// Content category slug as used by the catalog and consent allow-lists.
		"category": func(fl validator.FieldLevel) bool {
			c := fl.Field().String()
			return len(c) <= MaxCategoryLength && categoryPattern.MatchString(c)
		},
		// Opaque payment method token: printable ASCII without whitespace.
		"paytoken": func(fl validator.FieldLevel) bool {
			t := fl.Field().String()
			if t == "" || len(t) > MaxPaymentTokenLength {
				return false
			}
			for i := 0; i < len(t); i++ {
				if t[i] <= ' ' || t[i] > '~' {
					return false
				}
			}
			return true
		},
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("validation: register %s: %v", tag, err))
		}
	}
	return v
}

// Validate checks req's struct tags.
func Validate(req any) error {
	if err := defaultValidator.Struct(req); err != nil {
		return dErrors.New(dErrors.CodeValidation, ErrorMessage(err))
	}
	return nil
}

// ErrorMessage describes the first failing field.
func ErrorMessage(err error) string {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) || len(validationErrs) == 0 {
		return "invalid request body"
	}

	fe := validationErrs[0]
	field := fe.Field()
	if field == "" {
		field = s.ToSnakeCase(fe.StructField())
	}

	switch fe.ActualTag() {
	case "required":
		return field + " is required"
	case "uuid":
		return field + " must be a valid uuid"
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "notblank":
		return field + " must not be blank"
	case "currency":
		return field + " must be a three-letter currency code"
	case "category":
		return field + " must be a lowercase category slug"
	case "paytoken":
		return fmt.Sprintf("%s must be a token of at most %d printable characters", field, MaxPaymentTokenLength)
	default:
		if field == "" {
			return "invalid request body"
		}
		return field + " is invalid"
	}
}
