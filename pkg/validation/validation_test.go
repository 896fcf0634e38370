package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "tenantplane/pkg/domain-errors"
)

type signup struct {
	Slug    string   `json:"slug" validate:"required,slug"`
	Name    string   `json:"name" validate:"notblank,max=10"`
	Modules []string `json:"modules" validate:"max=2"`
}

func TestIsSlug(t *testing.T) {
	for _, ok := range []string{"acme", "a1", "acme-corp", "9lives"} {
		assert.True(t, IsSlug(ok), ok)
	}
	for _, bad := range []string{"", "a", "-acme", "Acme", "acme_corp", "acme corp"} {
		assert.False(t, IsSlug(bad), bad)
	}
}

func TestValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, Validate(signup{Slug: "acme", Name: "Acme"}))
	})

	t.Run("missing slug", func(t *testing.T) {
		err := Validate(signup{Name: "Acme"})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		assert.Contains(t, err.Error(), "slug is required")
	})

	t.Run("bad slug", func(t *testing.T) {
		err := Validate(signup{Slug: "Bad Slug", Name: "Acme"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "slug must be 2-63 lowercase letters")
	})

	t.Run("blank name", func(t *testing.T) {
		err := Validate(signup{Slug: "acme", Name: "   "})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "name must not be blank")
	})

	t.Run("too many modules", func(t *testing.T) {
		err := Validate(signup{Slug: "acme", Name: "Acme", Modules: []string{"a", "b", "c"}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "modules must be at most 2")
	})
}

func TestToSnakeCase(t *testing.T) {
	assert.Equal(t, "subscribed_modules", toSnakeCase("SubscribedModules"))
	assert.Equal(t, "database_uri", toSnakeCase("DatabaseURI"))
	assert.Equal(t, "slug", toSnakeCase("slug"))
}
