package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

type DomainErrorsSuite struct {
	suite.Suite
}

func TestDomainErrorsSuite(t *testing.T) {
	suite.Run(t, new(DomainErrorsSuite))
}

func (s *DomainErrorsSuite) TestMessageFallsBackToCode() {
	s.Equal("tenant not found", New(CodeTenantNotFound, "tenant not found").Error())
	s.Equal("tenant_required", (&Error{Code: CodeTenantRequired}).Error())
	s.Equal(`module "crm" is not active`, Newf(CodeModuleNotSubscribed, "module %q is not active", "crm").Error())
}

// A store miss travels service -> handler wrapped twice; the outer layers
// must not mask the original code.
func (s *DomainErrorsSuite) TestCodeSurvivesLayers() {
	storeErr := New(CodeNotFound, "tenant acme not found")
	serviceErr := Wrap(storeErr, CodeInternal, "failed to load tenant")
	handlerErr := fmt.Errorf("suspend acme: %w", serviceErr)

	s.True(HasCode(handlerErr, CodeNotFound))
	s.False(HasCode(handlerErr, CodeInternal))
	s.Equal(CodeNotFound, CodeOf(handlerErr))
	s.True(errors.Is(handlerErr, storeErr))
	s.Equal("failed to load tenant", serviceErr.Error())
}

func (s *DomainErrorsSuite) TestWrapInfrastructureError() {
	root := errors.New("dial tcp 10.0.0.7:5432: connection refused")
	err := Wrap(root, CodeUnavailable, "tenant store unavailable")

	s.Equal(CodeUnavailable, CodeOf(err))
	s.ErrorIs(err, root)
	s.Equal(root, errors.Unwrap(err))
	s.NotContains(err.Error(), "10.0.0.7")
}

func (s *DomainErrorsSuite) TestIsMatchesByCode() {
	cases := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{name: "same code different message", err: New(CodeConflict, "slug taken"), target: &Error{Code: CodeConflict}, want: true},
		{name: "different code", err: New(CodeConflict, "slug taken"), target: &Error{Code: CodeNotFound}, want: false},
		{name: "plain target", err: New(CodeNotFound, "x"), target: errors.New("x"), want: false},
		{name: "inner code through chain", err: &Error{Code: CodeInternal, Err: New(CodeForbidden, "gate")}, target: &Error{Code: CodeForbidden}, want: true},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			s.Equal(tc.want, errors.Is(tc.err, tc.target))
		})
	}
}

func (s *DomainErrorsSuite) TestPlainErrors() {
	s.False(HasCode(nil, CodeNotFound))
	s.False(HasCode(errors.New("boom"), CodeInternal))
	s.Equal(CodeInternal, CodeOf(errors.New("boom")))
	s.Nil(errors.Unwrap(New(CodeBadRequest, "tenant header malformed")))
}
