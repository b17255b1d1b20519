package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/investment-ledger/internal/testutil"
	"github.com/ndewijer/investment-ledger/internal/version"
)

// TestSystemService tests health and version reporting.
//
// WHY: Health checks drive container restarts; they must fail when the store is gone.
func TestSystemService(t *testing.T) {
	t.Run("healthy with open database", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestSystemService(t, db)

		assert.NoError(t, svc.CheckHealth())
		assert.Equal(t, version.Version, svc.CheckVersion())

		v, err := svc.SchemaVersion(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(1), v)
	})

	t.Run("unhealthy with closed database", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestSystemService(t, db)
		db.Close()

		assert.Error(t, svc.CheckHealth())
	})
}
