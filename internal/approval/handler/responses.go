package handler

import (
	"time"

	"purchasegate/internal/approval/models"
)

type ApprovalResponse struct {
	Token      string     `json:"token"`
	PurchaseID string     `json:"purchase_id"`
	ChildID    string     `json:"child_id"`
	PackID     string     `json:"pack_id"`
	Amount     int64      `json:"amount"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

type InboxResponse struct {
	Approvals []ApprovalResponse `json:"approvals"`
}

func toApprovalResponse(r *models.Request) ApprovalResponse {
	return ApprovalResponse{
		Token:      r.Token.String(),
		PurchaseID: r.PurchaseID.String(),
		ChildID:    r.ChildID.String(),
		PackID:     r.PackID.String(),
		Amount:     r.Amount,
		Status:     string(r.Status),
		CreatedAt:  r.CreatedAt,
		ExpiresAt:  r.ExpiresAt,
		ResolvedAt: r.ResolvedAt,
	}
}
