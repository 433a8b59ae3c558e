package handler

import (
	"time"

	"purchasegate/internal/consent/models"
)

type ConsentResponse struct {
	ID                     string     `json:"id"`
	ChildID                string     `json:"child_id"`
	ParentID               string     `json:"parent_id"`
	PurchasesAllowed       bool       `json:"purchases_allowed"`
	AnalyticsAllowed       bool       `json:"analytics_allowed"`
	PersonalizationAllowed bool       `json:"personalization_allowed"`
	SpendingLimit          *int64     `json:"spending_limit"`
	AllowedCategories      []string   `json:"allowed_categories"`
	ConsentGivenAt         time.Time  `json:"consent_given_at"`
	WithdrawnAt            *time.Time `json:"withdrawn_at,omitempty"`
	Supersedes             *string    `json:"supersedes,omitempty"`
}

type HistoryResponse struct {
	Records []ConsentResponse `json:"records"`
}

type StatusResponse struct {
	ChildID          string     `json:"child_id"`
	Age              int        `json:"age"`
	COPPAApplicable  bool       `json:"coppa_applicable"`
	HasConsent       bool       `json:"has_consent"`
	PurchasesAllowed bool       `json:"purchases_allowed"`
	CanPurchase      bool       `json:"can_purchase"`
	SpendingLimit    *int64     `json:"spending_limit"`
	ConsentGivenAt   *time.Time `json:"consent_given_at,omitempty"`
}

func toConsentResponse(r *models.Record) ConsentResponse {
	resp := ConsentResponse{
		ID:                     r.ID.String(),
		ChildID:                r.ChildID.String(),
		ParentID:               r.ParentID.String(),
		PurchasesAllowed:       r.PurchasesAllowed,
		AnalyticsAllowed:       r.AnalyticsAllowed,
		PersonalizationAllowed: r.PersonalizationAllowed,
		SpendingLimit:          r.SpendingLimit,
		AllowedCategories:      r.AllowedCategories,
		ConsentGivenAt:         r.ConsentGivenAt,
		WithdrawnAt:            r.WithdrawnAt,
	}
	if resp.AllowedCategories == nil {
		resp.AllowedCategories = []string{}
	}
	if r.Supersedes != nil {
		id := r.Supersedes.String()
		resp.Supersedes = &id
	}
	return resp
}

func toStatusResponse(s *models.Status) StatusResponse {
	return StatusResponse{
		ChildID:          s.ChildID.String(),
		Age:              s.Age,
		COPPAApplicable:  s.COPPAApplicable,
		HasConsent:       s.HasConsent,
		PurchasesAllowed: s.PurchasesAllowed,
		CanPurchase:      s.CanPurchase(),
		SpendingLimit:    s.SpendingLimit,
		ConsentGivenAt:   s.ConsentGivenAt,
	}
}
