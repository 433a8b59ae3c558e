package store

import (
	"context"
	"time"

	"purchasegate/internal/ledger/models"
	"purchasegate/pkg/domain"
)

// Store is the append-only ledger.
// Error Contract:
// - Append returns a duplicate_purchase domain error when (PurchaseID, Kind) exists
// - FindByPurchase returns a not_found domain error when no such entry exists
// - LockChild serializes writers for one child until the enclosing transaction ends
type Store interface {
	Append(ctx context.Context, entry *models.Entry) error
	SumBetween(ctx context.Context, childID domain.ChildID, from, to time.Time) (int64, error)
	ListBetween(ctx context.Context, childID domain.ChildID, from, to time.Time) ([]*models.Entry, error)
	FindByPurchase(ctx context.Context, purchaseID domain.PurchaseID, kind models.Kind) (*models.Entry, error)
	LockChild(ctx context.Context, childID domain.ChildID) error
}
