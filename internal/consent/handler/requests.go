package handler

import (
	"purchasegate/internal/consent/models"
)

// UpdateConsentRequest is a partial update; omitted fields keep their
// current value.
type UpdateConsentRequest struct {
	PurchasesAllowed       *bool     `json:"purchases_allowed"`
	AnalyticsAllowed       *bool     `json:"analytics_allowed"`
	PersonalizationAllowed *bool     `json:"personalization_allowed"`
	SpendingLimit          *int64    `json:"spending_limit" validate:"omitempty,gte=0"`
	RemoveSpendingLimit    bool      `json:"remove_spending_limit"`
	AllowedCategories      *[]string `json:"allowed_categories"`
}

func (r *UpdateConsentRequest) Validate() error {
	changes := r.toChanges()
	return changes.Validate()
}

func (r *UpdateConsentRequest) toChanges() models.Changes {
	return models.Changes{
		PurchasesAllowed:       r.PurchasesAllowed,
		AnalyticsAllowed:       r.AnalyticsAllowed,
		PersonalizationAllowed: r.PersonalizationAllowed,
		SpendingLimit:          r.SpendingLimit,
		RemoveSpendingLimit:    r.RemoveSpendingLimit,
		AllowedCategories:      r.AllowedCategories,
	}
}
