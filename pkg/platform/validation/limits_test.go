package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	dErrors "tenantplane/pkg/domain-errors"
)

type LimitsSuite struct {
	suite.Suite
}

func TestLimitsSuite(t *testing.T) {
	suite.Run(t, new(LimitsSuite))
}

func (s *LimitsSuite) TestCheckSliceCount() {
	s.Run("passes at max", func() {
		s.NoError(CheckSliceCount("modules", MaxSubscribedModules, MaxSubscribedModules))
	})

	s.Run("fails above max", func() {
		err := CheckSliceCount("modules", MaxSubscribedModules+1, MaxSubscribedModules)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Contains(err.Error(), "too many modules")
	})
}

func (s *LimitsSuite) TestCheckStringLength() {
	s.Run("passes at max", func() {
		s.NoError(CheckStringLength("name", strings.Repeat("a", MaxTenantNameLength), MaxTenantNameLength))
	})

	s.Run("fails above max", func() {
		err := CheckStringLength("name", strings.Repeat("a", MaxTenantNameLength+1), MaxTenantNameLength)
		s.Require().Error(err)
		s.Contains(err.Error(), "name exceeds max length of 200")
	})
}
