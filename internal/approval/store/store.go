package store

import (
	"context"
	"time"

	"purchasegate/internal/approval/models"
	"purchasegate/pkg/domain"
)

// UpdateFunc mutates a request inside the store's atomic section. Returning
// an error aborts the update and nothing is written.
type UpdateFunc func(r *models.Request) error

// Store persists approval requests.
// Error Contract:
//   - Get and Update return a token_not_found domain error for unknown tokens
//   - Create returns a conflict domain error when the token or purchase exists
//   - Update runs fn with the request locked (mutex, row lock or WATCH), so
//     two concurrent redemptions of one token cannot both observe RedeemedAt nil
type Store interface {
	Create(ctx context.Context, req *models.Request) error
	Get(ctx context.Context, token domain.ApprovalToken) (*models.Request, error)
	Update(ctx context.Context, token domain.ApprovalToken, fn UpdateFunc) (*models.Request, error)
	ListPendingByParent(ctx context.Context, parentID domain.ParentID) ([]*models.Request, error)
	// ListStale returns up to limit pending tokens whose TTL elapsed before now.
	ListStale(ctx context.Context, now time.Time, limit int) ([]domain.ApprovalToken, error)
	// DeleteResolvedBefore removes non-pending requests that expired before cutoff.
	DeleteResolvedBefore(ctx context.Context, cutoff time.Time) (int, error)
}
