package apperrors

import "errors"

// Domain entity errors represent missing or invalid entities in the system.
// These errors indicate that a requested resource does not exist.
var (
	// ErrAssetNotFound indicates that an asset with the given ID does not exist.
	ErrAssetNotFound = errors.New("asset not found")

	// ErrSnapshotNotFound indicates that no portfolio snapshot has been materialized for the class.
	ErrSnapshotNotFound = errors.New("portfolio snapshot not found")

	// ErrRateNotFound indicates that no cached rate exists under the given key.
	ErrRateNotFound = errors.New("cached rate not found")
)

// Ledger error kinds. Every LedgerError matches exactly one of these with errors.Is,
// so callers can branch on the category without inspecting the message.
var (
	// ErrSchema indicates wrong, missing or extra columns.
	ErrSchema = errors.New("schema error")

	// ErrIndex indicates that rows do not form a dense 0..N sequence.
	ErrIndex = errors.New("index error")

	// ErrType indicates a wrongly typed field, e.g. a missing date or a non-finite number.
	ErrType = errors.New("type error")

	// ErrBusinessRule indicates a bookkeeping rule violation.
	ErrBusinessRule = errors.New("business rule error")

	// ErrConvergence indicates that the rate solver exhausted its iteration budget.
	ErrConvergence = errors.New("convergence error")
)

// Business logic errors represent bookkeeping rule violations.
// They are wrapped inside a LedgerError of kind ErrBusinessRule or ErrType.
var (
	// ErrOverselling indicates that a sell would leave a negative share balance.
	ErrOverselling = errors.New("selling share exceeded")

	// ErrDividendExceedsBasis indicates that a cash dividend would leave a non-positive cost basis.
	ErrDividendExceedsBasis = errors.New("dividend amount exceeded")

	// ErrNonAscendingDates indicates that dates within the ledger go backwards.
	ErrNonAscendingDates = errors.New("dates must be ascending")

	// ErrMixedTransaction indicates that a row is not exactly one of buy, sell or dividend.
	ErrMixedTransaction = errors.New("single transaction data is required")

	// ErrMissingShare indicates a dividend amount without its dividend share.
	ErrMissingShare = errors.New("share data is missing")

	// ErrMissingAmountOrShare indicates a buy or sell with only one of amount and share.
	ErrMissingAmountOrShare = errors.New("amount or share data is missing")

	// ErrNonPositiveShare indicates a buy or sell share that is not strictly positive.
	ErrNonPositiveShare = errors.New("share data must be positive")

	// ErrNegativeShare indicates a dividend share below zero.
	ErrNegativeShare = errors.New("share data must not be negative")

	// ErrNegativeAmount indicates an amount below zero.
	ErrNegativeAmount = errors.New("amount data must not be negative")

	// ErrNonFiniteRatio indicates that amount/share does not divide to a finite number.
	ErrNonFiniteRatio = errors.New("amount/share must be finite")

	// ErrNonFinite indicates an infinite or NaN number in a field that participates in computation.
	ErrNonFinite = errors.New("a finite number is required")

	// ErrInvalidDate indicates a date that is not in "2006-01-02" or RFC3339 form.
	ErrInvalidDate = errors.New("date format is invalid")

	// ErrMissingDate indicates a row without a date.
	ErrMissingDate = errors.New("date type is required")

	// ErrColumnTitle indicates unexpected column titles.
	ErrColumnTitle = errors.New("column title error")

	// ErrTransactionDateMissing indicates a ledger date with no matching valuation date.
	ErrTransactionDateMissing = errors.New("transaction date does not exist")

	// ErrInvalidAssetClass indicates an asset class outside the supported set.
	ErrInvalidAssetClass = errors.New("unsupported asset class")

	// ErrDuplicateAsset indicates that an asset with the same class and code already exists.
	ErrDuplicateAsset = errors.New("duplicated asset is not allowed")

	// ErrInvalidDateRange indicates that the provided date range is invalid
	// (e.g., start date is after end date).
	ErrInvalidDateRange = errors.New("invalid date range")

	// ErrInvalidUUID indicates that a provided ID is not a valid UUID format.
	ErrInvalidUUID = errors.New("invalid UUID format")
)

// Operation failure errors represent system-level failures when retrieving or processing data.
var (
	ErrFailedToRetrieveAssets    = errors.New("failed to retrieve assets")
	ErrFailedToRetrieveLedger    = errors.New("failed to retrieve ledger")
	ErrFailedToStoreLedger       = errors.New("failed to store ledger")
	ErrFailedToRetrieveValuation = errors.New("failed to retrieve valuation")
	ErrFailedToStoreValuation    = errors.New("failed to store valuation")
	ErrFailedToRefreshPortfolio  = errors.New("failed to refresh portfolio")
)
