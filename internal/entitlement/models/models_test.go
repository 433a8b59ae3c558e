package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"purchasegate/pkg/domain"
)

func TestCovers(t *testing.T) {
	family := domain.FamilyID(uuid.New())
	pack := domain.PackID(uuid.New())
	child := domain.ChildID(uuid.New())
	sibling := domain.ChildID(uuid.New())

	perChild := &Record{FamilyID: family, ChildID: &child, PackID: pack, Status: StatusActive}
	familyWide := &Record{FamilyID: family, PackID: pack, Status: StatusActive}

	assert.True(t, perChild.Covers(family, child, pack))
	assert.False(t, perChild.Covers(family, sibling, pack))
	assert.True(t, familyWide.Covers(family, sibling, pack), "family-wide satisfies any child")
	assert.False(t, familyWide.Covers(domain.FamilyID(uuid.New()), child, pack))
	assert.False(t, familyWide.Covers(family, child, domain.PackID(uuid.New())))

	perChild.Status = StatusRefunded
	assert.False(t, perChild.Covers(family, child, pack))
}

func TestSameScope(t *testing.T) {
	family := domain.FamilyID(uuid.New())
	pack := domain.PackID(uuid.New())
	child := domain.ChildID(uuid.New())
	other := domain.ChildID(uuid.New())

	a := &Record{FamilyID: family, ChildID: &child, PackID: pack}
	b := &Record{FamilyID: family, ChildID: &child, PackID: pack}
	c := &Record{FamilyID: family, ChildID: &other, PackID: pack}
	wide := &Record{FamilyID: family, PackID: pack}

	assert.True(t, a.SameScope(b))
	assert.False(t, a.SameScope(c))
	assert.False(t, a.SameScope(wide))
	assert.True(t, wide.SameScope(wide.Clone()))
}
