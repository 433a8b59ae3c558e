package family

import (
	"context"
	"sync"

	"purchasegate/pkg/domain"
	dErrors "purchasegate/pkg/domain-errors"
)

// InMemoryDirectory keeps the family directory in maps. Used by tests and by
// the dev seeder.
type InMemoryDirectory struct {
	mu       sync.RWMutex
	parents  map[domain.ParentID]*Parent
	children map[domain.ChildID]*Child
}

func NewInMemoryDirectory() *InMemoryDirectory {
	return &InMemoryDirectory{
		parents:  make(map[domain.ParentID]*Parent),
		children: make(map[domain.ChildID]*Child),
	}
}

func (d *InMemoryDirectory) AddParent(_ context.Context, p *Parent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *p
	d.parents[p.ID] = &cp
	return nil
}

func (d *InMemoryDirectory) AddChild(_ context.Context, c *Child) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *c
	d.children[c.ID] = &cp
	return nil
}

func (d *InMemoryDirectory) IsParentOf(_ context.Context, parentID domain.ParentID, childID domain.ChildID) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.parents[parentID]
	if !ok {
		return false, nil
	}
	c, ok := d.children[childID]
	if !ok {
		return false, nil
	}
	return p.FamilyID == c.FamilyID, nil
}

func (d *InMemoryDirectory) Child(_ context.Context, childID domain.ChildID) (*Child, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.children[childID]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "child not found")
	}
	cp := *c
	return &cp, nil
}

func (d *InMemoryDirectory) ParentContact(_ context.Context, parentID domain.ParentID) (*Parent, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.parents[parentID]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "parent not found")
	}
	cp := *p
	return &cp, nil
}
