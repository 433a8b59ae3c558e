package models

import (
	"strconv"
	"strings"

	"purchasegate/internal/audit"
)

// Audit decisions and reasons for consent trail entries.
const (
	AuditDecisionGranted    = "granted"    // purchases allowed after the change
	AuditDecisionRestricted = "restricted" // purchases disallowed after the change
	AuditDecisionWithdrawn  = "withdrawn"

	AuditReasonParentInitiated = "parent_initiated"
)

// Diff lists the fields that differ between prior (nil for a first record)
// and next. A nil next means the record was withdrawn without a successor.
func Diff(prior, next *Record) []audit.FieldChange {
	var p, n fieldValues
	if prior != nil {
		p = valuesOf(prior)
	}
	if next != nil {
		n = valuesOf(next)
	}
	var changes []audit.FieldChange
	for i, name := range fieldNames {
		if p[i] != n[i] {
			changes = append(changes, audit.FieldChange{Field: name, Prior: p[i], Current: n[i]})
		}
	}
	return changes
}

var fieldNames = [...]string{
	"purchases_allowed",
	"analytics_allowed",
	"personalization_allowed",
	"spending_limit",
	"allowed_categories",
}

type fieldValues [len(fieldNames)]string

func valuesOf(r *Record) fieldValues {
	limit := "none"
	if r.SpendingLimit != nil {
		limit = strconv.FormatInt(*r.SpendingLimit, 10)
	}
	return fieldValues{
		strconv.FormatBool(r.PurchasesAllowed),
		strconv.FormatBool(r.AnalyticsAllowed),
		strconv.FormatBool(r.PersonalizationAllowed),
		limit,
		strings.Join(r.AllowedCategories, ","),
	}
}
