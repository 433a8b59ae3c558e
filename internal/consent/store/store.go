package store

import (
	"context"
	"time"

	"purchasegate/internal/consent/models"
	"purchasegate/pkg/domain"
)

// Store persists consent records.
// Error Contract:
// - FindActive returns a not_found domain error when the child has no effective record
// - Insert returns a conflict domain error when an active record already exists for the child
// - MarkWithdrawn returns not_found for unknown IDs and conflict when already withdrawn
// - Other failures are wrapped infrastructure errors
type Store interface {
	FindActive(ctx context.Context, childID domain.ChildID) (*models.Record, error)
	Insert(ctx context.Context, record *models.Record) error
	MarkWithdrawn(ctx context.Context, consentID domain.ConsentID, at time.Time) error
	ListByChild(ctx context.Context, childID domain.ChildID) ([]*models.Record, error)
}
