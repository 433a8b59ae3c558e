package models

import (
	"time"

	"purchasegate/pkg/domain"
)

// Status summarizes whether a child can currently make purchases.
type Status struct {
	ChildID          domain.ChildID
	Age              int
	COPPAApplicable  bool
	HasConsent       bool
	PurchasesAllowed bool
	SpendingLimit    *int64
	ConsentGivenAt   *time.Time
}

// CanPurchase reports whether the consent gate lets a purchase through.
// Children at or over 13 are not gated by consent.
func (s Status) CanPurchase() bool {
	if !s.COPPAApplicable {
		return true
	}
	return s.HasConsent && s.PurchasesAllowed
}
