package testutil

import (
	"database/sql"
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ndewijer/investment-ledger/internal/ledger"
	"github.com/ndewijer/investment-ledger/internal/portfolio"
	"github.com/ndewijer/investment-ledger/internal/repository"
	"github.com/ndewijer/investment-ledger/internal/service"
)

// Services bundles every service wired against one test database, with change
// notifications routed to the portfolio service as in the server.
type Services struct {
	Asset     *service.AssetService
	Ledger    *service.LedgerService
	Valuation *service.ValuationService
	Portfolio *service.PortfolioService
	System    *service.SystemService
}

// NewTestServices wires all services against db with default engine options and no metrics.
func NewTestServices(t *testing.T, db *sql.DB) *Services {
	t.Helper()
	return NewTestServicesWithConfig(t, db, ledger.DefaultConfig(), portfolio.DefaultOptions())
}

// NewTestServicesWithConfig wires all services against db with custom engine and
// aggregator options.
func NewTestServicesWithConfig(t *testing.T, db *sql.DB, cfg ledger.Config, opts portfolio.Options) *Services {
	t.Helper()

	logger := zerolog.Nop()
	assetRepo := repository.NewAssetRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	valuationRepo := repository.NewValuationRepository(db)
	rateRepo := repository.NewRateRepository(db)
	snapshotRepo := repository.NewSnapshotRepository(db)

	ledgerService := service.NewLedgerService(db, assetRepo, ledgerRepo, valuationRepo, rateRepo, cfg, nil, logger)
	valuationService := service.NewValuationService(db, assetRepo, valuationRepo, ledgerService, cfg, logger)
	assetService := service.NewAssetService(db, assetRepo, rateRepo)
	portfolioService := service.NewPortfolioService(db, assetRepo, valuationRepo, rateRepo, snapshotRepo, ledgerService, opts, 2, nil, logger)

	ledgerService.SetNotifier(portfolioService)
	valuationService.SetNotifier(portfolioService)
	assetService.SetNotifier(portfolioService)

	return &Services{
		Asset:     assetService,
		Ledger:    ledgerService,
		Valuation: valuationService,
		Portfolio: portfolioService,
		System:    service.NewSystemService(db),
	}
}

// NewTestLedgerService creates a LedgerService with default engine options.
func NewTestLedgerService(t *testing.T, db *sql.DB) *service.LedgerService {
	t.Helper()
	return NewTestServices(t, db).Ledger
}

// NewTestValuationService creates a ValuationService with default engine options.
func NewTestValuationService(t *testing.T, db *sql.DB) *service.ValuationService {
	t.Helper()
	return NewTestServices(t, db).Valuation
}

// NewTestAssetService creates an AssetService.
func NewTestAssetService(t *testing.T, db *sql.DB) *service.AssetService {
	t.Helper()
	return NewTestServices(t, db).Asset
}

// NewTestPortfolioService creates a PortfolioService with default aggregator options.
func NewTestPortfolioService(t *testing.T, db *sql.DB) *service.PortfolioService {
	t.Helper()
	return NewTestServices(t, db).Portfolio
}

func NewTestSystemService(t *testing.T, db *sql.DB) *service.SystemService {
	t.Helper()
	return service.NewSystemService(db)
}

// MakeID generates a UUID string for use in tests.
//
// Example usage:
//
//	id := testutil.MakeID()
//	// Returns: "550e8400-e29b-41d4-a716-446655440000"
func MakeID() string {
	return uuid.New().String()
}

// MakeCode generates a unique external asset code for testing.
//
// Example usage:
//
//	code := testutil.MakeCode("F")
//	// Returns: "F1A2B3C"
func MakeCode(prefix string) string {
	if prefix == "" {
		prefix = "A"
	}
	return prefix + randomAlphanumeric(6)
}

// MakeAssetName generates a unique asset name for testing.
//
// Example usage:
//
//	name := testutil.MakeAssetName("Tech Fund")
//	// Returns: "Tech Fund XYZ789"
func MakeAssetName(base string) string {
	if base == "" {
		base = "Asset"
	}
	return base + " " + randomAlphanumeric(6)
}

// randomAlphanumeric generates a random alphanumeric string of specified length.
func randomAlphanumeric(length int) string {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	result := make([]byte, length)
	for i := range result {
		//nolint:gosec // G404: Using math/rand for test data generation is acceptable
		result[i] = charset[rand.Intn(len(charset))]
	}
	return string(result)
}
