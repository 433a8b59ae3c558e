// Package catalog serves read-only content pack metadata: price, category,
// age range and creator. Pricing lives in a versioned catalog file, not in
// the purchase flow.
package catalog

import (
	"purchasegate/pkg/domain"
)

type Pack struct {
	ID          domain.PackID
	Title       string
	Category    string
	PackType    string
	MinAge      int
	MaxAge      int
	Price       int64
	Currency    string
	CreatorID   string
	FamilyShare bool
}

// IsFree reports whether the pack can be granted without a charge.
func (p *Pack) IsFree() bool { return p.Price == 0 }

// SuitableFor reports whether age falls inside the pack's range. A zero
// bound is open.
func (p *Pack) SuitableFor(age int) bool {
	if p.MinAge > 0 && age < p.MinAge {
		return false
	}
	if p.MaxAge > 0 && age > p.MaxAge {
		return false
	}
	return true
}

type packFile struct {
	Version int         `yaml:"version"`
	Packs   []packEntry `yaml:"packs"`
}

type packEntry struct {
	ID          string `yaml:"id"`
	Title       string `yaml:"title"`
	Category    string `yaml:"category"`
	PackType    string `yaml:"pack_type"`
	MinAge      int    `yaml:"age_min"`
	MaxAge      int    `yaml:"age_max"`
	Price       int64  `yaml:"price"`
	Currency    string `yaml:"currency"`
	CreatorID   string `yaml:"creator_id"`
	FamilyShare bool   `yaml:"family_share"`
}
