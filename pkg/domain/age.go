package domain

import "time"

// COPPAAge is the age below which verifiable parental consent is required.
const COPPAAge = 13

// AgeAt returns the person's age in whole years at the reference time. Uses
// calendar arithmetic (AddDate) so birthdays land on the correct day.
func AgeAt(birthDate, now time.Time) int {
	b := birthDate.UTC()
	n := now.UTC()
	age := n.Year() - b.Year()
	if n.Before(b.AddDate(age, 0, 0)) {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}

// IsCOPPAApplicable reports whether the child is under 13 at the reference time.
//
// Example:
//
//	birthDate := time.Date(2014, 3, 1, 0, 0, 0, 0, time.UTC)
//	now := time.Date(2027, 3, 1, 0, 0, 0, 0, time.UTC) // 13th birthday
//	IsCOPPAApplicable(birthDate, now) // returns false
func IsCOPPAApplicable(birthDate, now time.Time) bool {
	thirteenAt := birthDate.UTC().AddDate(COPPAAge, 0, 0)
	return now.UTC().Before(thirteenAt)
}
