package handler

import (
	"time"

	"purchasegate/internal/purchase/models"
)

// PurchaseResponse never carries the approval token or the payment method:
// the token goes to the parent only, through the notifier.
type PurchaseResponse struct {
	ID            string     `json:"id"`
	ChildID       string     `json:"child_id"`
	PackID        string     `json:"pack_id"`
	FamilyWide    bool       `json:"family_wide"`
	Amount        int64      `json:"amount"`
	Currency      string     `json:"currency"`
	State         string     `json:"state"`
	RejectReason  string     `json:"reject_reason,omitempty"`
	CreatorShare  int64      `json:"creator_share"`
	PlatformShare int64      `json:"platform_share"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

type HistoryResponse struct {
	ChildID   string             `json:"child_id"`
	Purchases []PurchaseResponse `json:"purchases"`
}

func toPurchaseResponse(a *models.Attempt) PurchaseResponse {
	return PurchaseResponse{
		ID:            a.ID.String(),
		ChildID:       a.ChildID.String(),
		PackID:        a.PackID.String(),
		FamilyWide:    a.FamilyWide,
		Amount:        a.Amount,
		Currency:      a.Currency,
		State:         string(a.State),
		RejectReason:  string(a.RejectReason),
		CreatorShare:  a.CreatorShare,
		PlatformShare: a.PlatformShare,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
		CompletedAt:   a.CompletedAt,
	}
}
