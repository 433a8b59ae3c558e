// Package family is the family directory: which parents and children belong
// to which family. It answers the authorization question the consent registry
// and the purchase flow ask before acting on a child.
package family

import (
	"time"

	"purchasegate/pkg/domain"
)

type Parent struct {
	ID          domain.ParentID
	FamilyID    domain.FamilyID
	Email       string
	DisplayName string
}

type Child struct {
	ID          domain.ChildID
	FamilyID    domain.FamilyID
	DisplayName string
	BirthDate   time.Time
}

// Age returns the child's age in whole years at now.
func (c *Child) Age(now time.Time) int {
	return domain.AgeAt(c.BirthDate, now)
}

// COPPAApplicable reports whether verifiable parental consent is required.
func (c *Child) COPPAApplicable(now time.Time) bool {
	return domain.IsCOPPAApplicable(c.BirthDate, now)
}
