package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

// AgeSuite tests age calculation functions.
//
// Pure date arithmetic with birthday edge cases. The invariant "a child is no
// longer COPPA-applicable on their 13th birthday" must be preserved.
type AgeSuite struct {
	suite.Suite
}

func TestAgeSuite(t *testing.T) {
	suite.Run(t, new(AgeSuite))
}

func (s *AgeSuite) TestIsCOPPAApplicable_BirthdayBoundaries() {
	birthDate := time.Date(2014, 1, 15, 0, 0, 0, 0, time.UTC)

	s.Run("exactly 13th birthday is not applicable", func() {
		now := time.Date(2027, 1, 15, 0, 0, 0, 0, time.UTC)
		s.False(IsCOPPAApplicable(birthDate, now))
	})

	s.Run("second before 13th birthday is applicable", func() {
		now := time.Date(2027, 1, 14, 23, 59, 59, 0, time.UTC)
		s.True(IsCOPPAApplicable(birthDate, now))
	})

	s.Run("young child is applicable", func() {
		now := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
		s.True(IsCOPPAApplicable(birthDate, now))
	})
}

func (s *AgeSuite) TestIsCOPPAApplicable_LeapDay() {
	birthDate := time.Date(2012, 2, 29, 0, 0, 0, 0, time.UTC)
	// AddDate normalizes Feb 29 + 13y to Mar 1 2025.
	s.True(IsCOPPAApplicable(birthDate, time.Date(2025, 2, 28, 12, 0, 0, 0, time.UTC)))
	s.False(IsCOPPAApplicable(birthDate, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)))
}

func (s *AgeSuite) TestAgeAt() {
	birthDate := time.Date(2018, 7, 10, 0, 0, 0, 0, time.UTC)
	s.Equal(5, AgeAt(birthDate, time.Date(2024, 7, 9, 0, 0, 0, 0, time.UTC)))
	s.Equal(6, AgeAt(birthDate, time.Date(2024, 7, 10, 0, 0, 0, 0, time.UTC)))
	s.Equal(0, AgeAt(birthDate, time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)))
}
