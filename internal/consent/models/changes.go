package models

import (
	"slices"

	dErrors "purchasegate/pkg/domain-errors"
	s "purchasegate/pkg/platform/strings"
	"purchasegate/pkg/validation"
)

// Changes is a partial update to a child's consent. Nil fields are left as
// they were on the prior record.
type Changes struct {
	PurchasesAllowed       *bool
	AnalyticsAllowed       *bool
	PersonalizationAllowed *bool
	SpendingLimit          *int64
	// RemoveSpendingLimit clears an existing limit. It cannot be combined
	// with SpendingLimit.
	RemoveSpendingLimit bool
	// AllowedCategories replaces the allow-set. A non-nil empty slice lifts
	// every restriction.
	AllowedCategories *[]string
}

// Validate checks the change set and normalizes the category set in place.
func (c *Changes) Validate() error {
	if c.IsEmpty() {
		return dErrors.New(dErrors.CodeValidation, "no consent changes supplied")
	}
	if c.SpendingLimit != nil && c.RemoveSpendingLimit {
		return dErrors.New(dErrors.CodeValidation, "spending_limit and remove_spending_limit are mutually exclusive")
	}
	if c.SpendingLimit != nil && *c.SpendingLimit < 0 {
		return dErrors.New(dErrors.CodeValidation, "spending_limit must be zero or positive")
	}
	if c.AllowedCategories != nil {
		cats := *c.AllowedCategories
		if err := validation.CheckSliceCount("allowed_categories", len(cats), validation.MaxCategories); err != nil {
			return err
		}
		if err := validation.CheckEachStringLength("allowed_categories", cats, validation.MaxCategoryLength); err != nil {
			return err
		}
		normalized := s.NormalizeSet(cats)
		if err := validation.CheckCategories("allowed_categories", normalized); err != nil {
			return err
		}
		c.AllowedCategories = &normalized
	}
	return nil
}

func (c *Changes) IsEmpty() bool {
	return c.PurchasesAllowed == nil &&
		c.AnalyticsAllowed == nil &&
		c.PersonalizationAllowed == nil &&
		c.SpendingLimit == nil &&
		!c.RemoveSpendingLimit &&
		c.AllowedCategories == nil
}

func (c Changes) applyTo(r *Record) {
	if c.PurchasesAllowed != nil {
		r.PurchasesAllowed = *c.PurchasesAllowed
	}
	if c.AnalyticsAllowed != nil {
		r.AnalyticsAllowed = *c.AnalyticsAllowed
	}
	if c.PersonalizationAllowed != nil {
		r.PersonalizationAllowed = *c.PersonalizationAllowed
	}
	if c.RemoveSpendingLimit {
		r.SpendingLimit = nil
	}
	if c.SpendingLimit != nil {
		v := *c.SpendingLimit
		r.SpendingLimit = &v
	}
	if c.AllowedCategories != nil {
		r.AllowedCategories = slices.Clone(*c.AllowedCategories)
	}
}
