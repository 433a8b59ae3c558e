package validation

import (
	"fmt"

	dErrors "purchasegate/pkg/domain-errors"
)

// MaxBodySize is the maximum allowed request body size (64 KB).
const MaxBodySize = 64 * 1024

const (
	// MaxCategories bounds a consent record's category allow-list.
	MaxCategories = 50

	// MaxCategoryLength bounds a single category name.
	MaxCategoryLength = 64

	// MaxPaymentTokenLength bounds the opaque payment method token.
	MaxPaymentTokenLength = 256
)

// CheckSliceCount validates that a slice does not exceed the maximum count.
func CheckSliceCount(fieldName string, count, limit int) error {
	if count > limit {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("too many %s: max %d allowed", fieldName, limit))
	}
	return nil
}

// CheckEachStringLength validates every element of values against limit.
func CheckEachStringLength(fieldName string, values []string, limit int) error {
	for _, v := range values {
		if len(v) > limit {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s exceeds max length of %d", fieldName, limit))
		}
	}
	return nil
}

// CheckCategories rejects values that are not category slugs. Callers
// normalize (trim, lowercase) first.
func CheckCategories(fieldName string, values []string) error {
	for _, v := range values {
		if !categoryPattern.MatchString(v) {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s: %q is not a category slug", fieldName, v))
		}
	}
	return nil
}
