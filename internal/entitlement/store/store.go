package store

import (
	"context"
	"time"

	"purchasegate/internal/entitlement/models"
	"purchasegate/pkg/domain"
)

// Store persists entitlements.
// Error Contract:
//   - Insert returns already_owned when an active record with the same scope
//     exists and duplicate_purchase when the purchase already granted one
//   - FindByPurchase returns not_found when no record references the purchase
//   - MarkRefunded returns not_found for unknown IDs and conflict when the
//     record is no longer active
type Store interface {
	Insert(ctx context.Context, rec *models.Record) error
	HasActive(ctx context.Context, familyID domain.FamilyID, childID domain.ChildID, packID domain.PackID) (bool, error)
	FindByPurchase(ctx context.Context, purchaseID domain.PurchaseID) (*models.Record, error)
	MarkRefunded(ctx context.Context, id domain.EntitlementID, at time.Time) error
	// ListForChild returns the child's records and the family-wide ones.
	ListForChild(ctx context.Context, familyID domain.FamilyID, childID domain.ChildID) ([]*models.Record, error)
}
