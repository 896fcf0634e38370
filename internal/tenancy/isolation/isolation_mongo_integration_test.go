//go:build integration

package isolation

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/suite"

	"tenantplane/internal/platform/docstore"
	"tenantplane/pkg/testutil/containers"
)

// TestIsolationSuiteOnMongo runs the boundary checks against a real server
// so the rewritten filters are exercised by MongoDB's own query engine.
func TestIsolationSuiteOnMongo(t *testing.T) {
	mc := containers.GetManager().GetMongo(t)
	var n atomic.Int64
	suite.Run(t, &IsolationSuite{open: func() docstore.Database {
		return docstore.NewMongo(mc.Database(t, fmt.Sprintf("isolation_%d", n.Add(1))))
	}})
}
