package family

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"purchasegate/pkg/domain"
	dErrors "purchasegate/pkg/domain-errors"
)

func TestInMemoryDirectory(t *testing.T) {
	ctx := context.Background()
	dir := NewInMemoryDirectory()

	fam := domain.FamilyID(uuid.New())
	other := domain.FamilyID(uuid.New())
	parent := &Parent{ID: domain.ParentID(uuid.New()), FamilyID: fam, Email: "p@example.com"}
	stranger := &Parent{ID: domain.ParentID(uuid.New()), FamilyID: other, Email: "s@example.com"}
	child := &Child{ID: domain.ChildID(uuid.New()), FamilyID: fam, BirthDate: time.Date(2017, 5, 1, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, dir.AddParent(ctx, parent))
	require.NoError(t, dir.AddParent(ctx, stranger))
	require.NoError(t, dir.AddChild(ctx, child))

	t.Run("parent in same family", func(t *testing.T) {
		ok, err := dir.IsParentOf(ctx, parent.ID, child.ID)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("parent in another family", func(t *testing.T) {
		ok, err := dir.IsParentOf(ctx, stranger.ID, child.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("unknown child is not an error", func(t *testing.T) {
		ok, err := dir.IsParentOf(ctx, parent.ID, domain.ChildID(uuid.New()))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("child lookup returns a copy", func(t *testing.T) {
		got, err := dir.Child(ctx, child.ID)
		require.NoError(t, err)
		got.DisplayName = "mutated"
		again, err := dir.Child(ctx, child.ID)
		require.NoError(t, err)
		assert.Empty(t, again.DisplayName)
	})

	t.Run("unknown parent", func(t *testing.T) {
		_, err := dir.ParentContact(ctx, domain.ParentID(uuid.New()))
		assert.True(t, errors.Is(err, dErrors.ErrNotFound))
	})
}

func TestChild_COPPAApplicable(t *testing.T) {
	c := &Child{BirthDate: time.Date(2014, 3, 1, 0, 0, 0, 0, time.UTC)}
	assert.True(t, c.COPPAApplicable(time.Date(2027, 2, 28, 23, 0, 0, 0, time.UTC)))
	assert.False(t, c.COPPAApplicable(time.Date(2027, 3, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 12, c.Age(time.Date(2027, 2, 28, 0, 0, 0, 0, time.UTC)))
}
