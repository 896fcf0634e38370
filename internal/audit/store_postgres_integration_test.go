//go:build integration

package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"tenantplane/pkg/testutil/containers"
)

func TestPostgresStore(t *testing.T) {
	pg := containers.GetManager().GetPostgres(t)
	suite.Run(t, &StoreSuite{reset: func() Store {
		if err := pg.TruncateAll(context.Background()); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		return NewPostgresStore(pg.DB)
	}})
}
