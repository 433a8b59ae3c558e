// Package notification delivers parent-facing events (approval requests,
// purchase outcomes) over pluggable sinks. Delivery is fire-and-forget: the
// purchase flow never waits on, or fails because of, a notification.
package notification

import (
	"time"

	"purchasegate/pkg/domain"
)

// Event names the parent-facing occurrence. Values are stable identifiers
// consumed by the mobile client and the email templates.
type Event string

const (
	EventApprovalRequested Event = "approval_requested"
	EventApprovalExpired   Event = "approval_expired"
	EventPurchaseCompleted Event = "purchase_completed"
	EventPurchaseRejected  Event = "purchase_rejected"
	EventPurchaseRefunded  Event = "purchase_refunded"
)

// Payload carries the typed details of an event. Fields irrelevant to an
// event are left zero and omitted on the wire.
type Payload struct {
	PurchaseID string     `json:"purchase_id,omitempty"`
	ChildID    string     `json:"child_id,omitempty"`
	PackID     string     `json:"pack_id,omitempty"`
	PackTitle  string     `json:"pack_title,omitempty"`
	Amount     int64      `json:"amount,omitempty"`
	Currency   string     `json:"currency,omitempty"`
	DeepLink   string     `json:"deep_link,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	Reason     string     `json:"reason,omitempty"`
}

// Message is one addressed notification.
type Message struct {
	ParentID   domain.ParentID `json:"parent_id"`
	Event      Event           `json:"event"`
	Payload    Payload         `json:"payload"`
	OccurredAt time.Time       `json:"occurred_at"`
	RequestID  string          `json:"request_id,omitempty"`
}
