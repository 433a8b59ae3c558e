package family

import (
	"context"

	"purchasegate/pkg/domain"
)

// Directory answers family membership questions.
// Error Contract:
// - Child and ParentContact return a not_found domain error for unknown IDs
// - IsParentOf returns false (not an error) when either side is unknown
type Directory interface {
	IsParentOf(ctx context.Context, parentID domain.ParentID, childID domain.ChildID) (bool, error)
	Child(ctx context.Context, childID domain.ChildID) (*Child, error)
	ParentContact(ctx context.Context, parentID domain.ParentID) (*Parent, error)
}

// Writer adds directory entries. Implemented by both directories for the
// dev seeder; production directories are owned by the account service.
type Writer interface {
	AddParent(ctx context.Context, p *Parent) error
	AddChild(ctx context.Context, c *Child) error
}
