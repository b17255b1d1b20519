package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/investment-ledger/internal/api/request"
	"github.com/ndewijer/investment-ledger/internal/apperrors"
	"github.com/ndewijer/investment-ledger/internal/model"
	"github.com/ndewijer/investment-ledger/internal/testutil"
	"github.com/ndewijer/investment-ledger/internal/validation"
)

// TestAssetService_CreateAsset tests asset registration.
//
// WHY: Assets are keyed by class and code for the valuation provider. Two assets with
// the same pair would receive each other's NAV series.
func TestAssetService_CreateAsset(t *testing.T) {
	ctx := context.Background()

	t.Run("creates asset", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestAssetService(t, db)

		// Execute
		asset, err := svc.CreateAsset(ctx, request.CreateAssetRequest{Class: model.ClassFund, Code: " 110011 ", Name: "Growth Fund"})

		// Assert
		require.NoError(t, err)
		assert.NotEmpty(t, asset.ID)
		assert.Equal(t, "110011", asset.Code)

		stored, err := svc.GetAsset(ctx, asset.ID)
		require.NoError(t, err)
		assert.Equal(t, asset.Name, stored.Name)
	})

	t.Run("rejects duplicate class and code", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestAssetService(t, db)
		existing := testutil.NewAsset().WithCode("AAPL").WithClass(model.ClassStock).Build(t, db)

		// Execute
		_, err := svc.CreateAsset(ctx, request.CreateAssetRequest{Class: existing.Class, Code: "AAPL", Name: "Apple"})

		// Assert
		assert.ErrorIs(t, err, apperrors.ErrDuplicateAsset)
	})

	t.Run("same code in another class is allowed", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestAssetService(t, db)
		testutil.NewAsset().WithCode("X1").WithClass(model.ClassStock).Build(t, db)

		// Execute
		_, err := svc.CreateAsset(ctx, request.CreateAssetRequest{Class: model.ClassBond, Code: "X1", Name: "Bond"})

		// Assert
		assert.NoError(t, err)
	})

	t.Run("rejects invalid request", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestAssetService(t, db)

		// Execute
		_, err := svc.CreateAsset(ctx, request.CreateAssetRequest{Class: "crypto"})

		// Assert
		var verr *validation.Error
		require.True(t, errors.As(err, &verr))
		assert.Contains(t, verr.Fields, "class")
		assert.Contains(t, verr.Fields, "code")
		assert.Contains(t, verr.Fields, "name")
	})
}

// TestAssetService_GetAssets tests listing assets.
//
// WHY: The class filter is shared with the portfolio endpoint; unknown classes must be
// rejected rather than silently returning nothing.
func TestAssetService_GetAssets(t *testing.T) {
	ctx := context.Background()

	t.Run("filters by class", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestAssetService(t, db)
		testutil.CreateAsset(t, db, model.ClassFund)
		testutil.CreateAsset(t, db, model.ClassFund)
		testutil.CreateAsset(t, db, model.ClassStock)

		// Execute
		all, err := svc.GetAssets(ctx, "")
		require.NoError(t, err)
		funds, err := svc.GetAssets(ctx, model.ClassFund)
		require.NoError(t, err)

		// Assert
		assert.Len(t, all, 3)
		assert.Len(t, funds, 2)
	})

	t.Run("rejects unknown class", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestAssetService(t, db)

		// Execute
		_, err := svc.GetAssets(ctx, "crypto")

		// Assert
		assert.ErrorIs(t, err, apperrors.ErrInvalidAssetClass)
	})
}

// TestAssetService_DeleteAsset tests asset removal.
//
// WHY: Deleting an asset must take its ledger, valuation and cached rates with it, or
// a new asset reusing nothing would still see stale rows in aggregate queries.
func TestAssetService_DeleteAsset(t *testing.T) {
	ctx := context.Background()

	t.Run("removes dependent rows", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		svcs := testutil.NewTestServices(t, db)
		asset := testutil.CreateAsset(t, db, model.ClassFund)
		_, err := svcs.Ledger.PutLedger(ctx, asset.ID, request.PutLedgerRequest{Rows: []request.LedgerRow{
			buyRow("2024-01-01", 100, 10),
			sellRow("2024-01-05", 110, 10),
		}})
		require.NoError(t, err)
		_, err = svcs.Valuation.PutValuation(ctx, asset.ID, testutil.NAVSeries(testutil.Day("2024-01-01"), 5, constant(10)))
		require.NoError(t, err)

		// Execute
		err = svcs.Asset.DeleteAsset(ctx, asset.ID)

		// Assert
		require.NoError(t, err)
		testutil.AssertRowCount(t, db, "asset", 0)
		testutil.AssertRowCount(t, db, "ledger_row", 0)
		testutil.AssertRowCount(t, db, "nav_point", 0)
		testutil.AssertRowCount(t, db, "valuation_point", 0)
		testutil.AssertRowCount(t, db, "rate_cache", 0)
	})

	t.Run("returns not found", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestAssetService(t, db)

		// Execute
		err := svc.DeleteAsset(ctx, testutil.MakeID())

		// Assert
		assert.ErrorIs(t, err, apperrors.ErrAssetNotFound)
	})
}
