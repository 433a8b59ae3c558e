package handler

import (
	"strings"

	"purchasegate/internal/purchase/models"
	"purchasegate/pkg/domain"
)

// InitiateRequest is sent by the child's device through the parent's
// session. ExpectedPrice and Currency echo what the child was shown; a
// mismatch with the catalog fails with conflict.
type InitiateRequest struct {
	ChildID            string `json:"child_id" validate:"required,uuid"`
	PackID             string `json:"pack_id" validate:"required,uuid"`
	ExpectedPrice      *int64 `json:"expected_price" validate:"omitempty,gte=0"`
	Currency           string `json:"currency" validate:"omitempty,currency"`
	PaymentMethodToken string `json:"payment_method_token" validate:"required,paytoken"`
	FamilyWide         bool   `json:"family_wide"`
}

func (r *InitiateRequest) Normalize() {
	r.ChildID = strings.TrimSpace(r.ChildID)
	r.PackID = strings.TrimSpace(r.PackID)
	r.Currency = strings.ToUpper(strings.TrimSpace(r.Currency))
	r.PaymentMethodToken = strings.TrimSpace(r.PaymentMethodToken)
}

func (r *InitiateRequest) toModel(parentID domain.ParentID) (models.Request, error) {
	childID, err := domain.ParseChildID(r.ChildID)
	if err != nil {
		return models.Request{}, err
	}
	packID, err := domain.ParsePackID(r.PackID)
	if err != nil {
		return models.Request{}, err
	}
	return models.Request{
		ChildID:            childID,
		PackID:             packID,
		ParentID:           parentID,
		ExpectedPrice:      r.ExpectedPrice,
		Currency:           r.Currency,
		PaymentMethodToken: r.PaymentMethodToken,
		FamilyWide:         r.FamilyWide,
	}, nil
}

type ResolveRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approve deny"`
}

func (r *ResolveRequest) Normalize() {
	r.Decision = strings.ToLower(strings.TrimSpace(r.Decision))
}

type ResolveLinkRequest struct {
	Link     string `json:"link" validate:"required"`
	Decision string `json:"decision" validate:"required,oneof=approve deny"`
}

func (r *ResolveLinkRequest) Normalize() {
	r.Link = strings.TrimSpace(r.Link)
	r.Decision = strings.ToLower(strings.TrimSpace(r.Decision))
}
