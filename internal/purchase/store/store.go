package store

import (
	"context"

	"purchasegate/internal/purchase/models"
	"purchasegate/pkg/domain"
)

// UpdateFunc mutates an attempt in place. Returning an error aborts the
// update and nothing is written.
type UpdateFunc func(a *models.Attempt) error

// Store persists purchase attempts.
// Error Contract:
//   - Create returns conflict when the purchase ID exists
//   - Get and Update return not_found for unknown IDs
type Store interface {
	Create(ctx context.Context, a *models.Attempt) error
	Get(ctx context.Context, id domain.PurchaseID) (*models.Attempt, error)
	Update(ctx context.Context, id domain.PurchaseID, fn UpdateFunc) (*models.Attempt, error)
	ListByChild(ctx context.Context, childID domain.ChildID, limit int) ([]*models.Attempt, error)
}
