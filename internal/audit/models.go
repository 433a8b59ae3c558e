package audit

import "time"

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID        int64 // store-assigned append sequence
	Timestamp time.Time
	ActorID   string // parent performing the action, empty for system actions
	SubjectID string // child the action concerns
	Action    string
	Decision  string
	Reason    string
	RequestID string
	Changes   []FieldChange
}

// FieldChange records one field's prior and new value. Values are rendered as
// strings so the trail stays readable without knowing the record type.
type FieldChange struct {
	Field   string `json:"field"`
	Prior   string `json:"prior"`
	Current string `json:"current"`
}

const (
	ActionConsentUpdated      = "consent_updated"
	ActionConsentWithdrawn    = "consent_withdrawn"
	ActionPurchaseInitiated   = "purchase_initiated"
	ActionPurchaseRejected    = "purchase_rejected"
	ActionApprovalResolved    = "approval_resolved"
	ActionEntitlementGranted  = "entitlement_granted"
	ActionEntitlementReversed = "entitlement_reversed"
	ActionPurchaseRefunded    = "purchase_refunded"
)
