// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"github.com/google/uuid"

	dErrors "purchasegate/pkg/domain-errors"
)

// Distinct ID types - compiler prevents passing a ChildID where a ParentID is expected.
type (
	FamilyID      uuid.UUID
	ParentID      uuid.UUID
	ChildID       uuid.UUID
	PackID        uuid.UUID
	PurchaseID    uuid.UUID
	ConsentID     uuid.UUID
	EntitlementID uuid.UUID
	EntryID       uuid.UUID
)

// ApprovalToken is the opaque, single-use credential handed to a parent.
// It is not a UUID: tokens carry 256 bits of entropy and are base64url encoded.
type ApprovalToken string

// Parse functions - use at trust boundaries (handlers, API inputs).

func ParseFamilyID(s string) (FamilyID, error) {
	id, err := parseUUID(s, "family ID")
	return FamilyID(id), err
}

func ParseParentID(s string) (ParentID, error) {
	id, err := parseUUID(s, "parent ID")
	return ParentID(id), err
}

func ParseChildID(s string) (ChildID, error) {
	id, err := parseUUID(s, "child ID")
	return ChildID(id), err
}

func ParsePackID(s string) (PackID, error) {
	id, err := parseUUID(s, "pack ID")
	return PackID(id), err
}

func ParsePurchaseID(s string) (PurchaseID, error) {
	id, err := parseUUID(s, "purchase ID")
	return PurchaseID(id), err
}

func ParseApprovalToken(s string) (ApprovalToken, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "approval token cannot be empty")
	}
	return ApprovalToken(s), nil
}

// New ID constructors.

func NewPurchaseID() PurchaseID       { return PurchaseID(uuid.New()) }
func NewConsentID() ConsentID         { return ConsentID(uuid.New()) }
func NewEntitlementID() EntitlementID { return EntitlementID(uuid.New()) }
func NewEntryID() EntryID             { return EntryID(uuid.New()) }

// String methods - for logging and debugging.

func (id FamilyID) String() string      { return uuid.UUID(id).String() }
func (id ParentID) String() string      { return uuid.UUID(id).String() }
func (id ChildID) String() string       { return uuid.UUID(id).String() }
func (id PackID) String() string        { return uuid.UUID(id).String() }
func (id PurchaseID) String() string    { return uuid.UUID(id).String() }
func (id ConsentID) String() string     { return uuid.UUID(id).String() }
func (id EntitlementID) String() string { return uuid.UUID(id).String() }
func (id EntryID) String() string       { return uuid.UUID(id).String() }
func (t ApprovalToken) String() string  { return string(t) }

// IsNil checks - used for service-layer validation.

func (id FamilyID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id ParentID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id ChildID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id PackID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id PurchaseID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id ConsentID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id EntitlementID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id EntryID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (t ApprovalToken) IsNil() bool  { return t == "" }

// parseUUID is the shared validation logic.
// Nil UUIDs are allowed here; services reject them with IsNil so that store
// lookups keep returning consistent "not found" errors.
func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label+" format")
	}
	return id, nil
}

// Text marshaling - IDs travel as canonical UUID strings in JSON payloads
// (notifications, cached records) instead of raw byte arrays.

func (id FamilyID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }
func (id ParentID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }
func (id ChildID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }
func (id PackID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }
func (id PurchaseID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *FamilyID) UnmarshalText(b []byte) error   { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ParentID) UnmarshalText(b []byte) error   { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ChildID) UnmarshalText(b []byte) error    { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *PackID) UnmarshalText(b []byte) error     { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *PurchaseID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
