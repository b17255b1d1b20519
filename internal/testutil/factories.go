package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/ndewijer/investment-ledger/internal/model"
)

// AssetBuilder provides a fluent interface for creating test assets.
//
// Example usage:
//
//	// Simple creation with defaults
//	asset := testutil.NewAsset().Build(t, db)
//
//	// Customized asset
//	asset := testutil.NewAsset().
//	    WithClass(model.ClassStock).
//	    WithCode("AAPL").
//	    Build(t, db)
type AssetBuilder struct {
	ID        string
	Class     string
	Code      string
	Name      string
	CreatedAt time.Time
}

// NewAsset creates an AssetBuilder with sensible defaults.
func NewAsset() *AssetBuilder {
	return &AssetBuilder{
		ID:        MakeID(),
		Class:     model.ClassFund,
		Code:      MakeCode("F"),
		Name:      MakeAssetName("Test Fund"),
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

// WithID sets a custom ID.
func (b *AssetBuilder) WithID(id string) *AssetBuilder {
	b.ID = id
	return b
}

// WithClass sets the asset class.
func (b *AssetBuilder) WithClass(class string) *AssetBuilder {
	b.Class = class
	return b
}

// WithCode sets the external code.
func (b *AssetBuilder) WithCode(code string) *AssetBuilder {
	b.Code = code
	return b
}

// WithName sets a custom name.
func (b *AssetBuilder) WithName(name string) *AssetBuilder {
	b.Name = name
	return b
}

// Build creates the asset in the database and returns it.
func (b *AssetBuilder) Build(t *testing.T, db *sql.DB) model.Asset {
	t.Helper()

	query := `
		INSERT INTO asset (id, class, code, name, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := db.Exec(query, b.ID, b.Class, b.Code, b.Name, b.CreatedAt.Format(time.RFC3339))
	if err != nil {
		t.Fatalf("Failed to create test asset: %v", err)
	}

	return model.Asset{
		ID:        b.ID,
		Class:     b.Class,
		Code:      b.Code,
		Name:      b.Name,
		CreatedAt: b.CreatedAt,
	}
}

// Convenience functions

// CreateAsset creates an asset of the given class with default values.
func CreateAsset(t *testing.T, db *sql.DB, class string) model.Asset {
	t.Helper()
	return NewAsset().WithClass(class).Build(t, db)
}

// CreateLedger stores rows as the ledger of assetID.
//
// Example usage:
//
//	testutil.CreateLedger(t, db, asset.ID,
//	    model.Buy(testutil.Day("2024-01-01"), 100, 10),
//	    model.Sell(testutil.Day("2024-07-01"), 60, 5),
//	)
func CreateLedger(t *testing.T, db *sql.DB, assetID string, rows ...model.Transaction) model.Ledger {
	t.Helper()

	query := `
		INSERT INTO ledger_row (asset_id, row_index, date, kind, amount, share)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	for i, r := range rows {
		_, err := db.Exec(query, assetID, i, r.Date.Format("2006-01-02"), r.Kind.String(), r.Amount, r.Share)
		if err != nil {
			t.Fatalf("Failed to create test ledger row: %v", err)
		}
	}

	return model.Ledger{AssetID: assetID, Rows: rows}
}

// NAVSeries builds a daily series from start over days days. price returns the unit value
// of day i; net value equals unit value.
//
// Example usage:
//
//	nav := testutil.NAVSeries(testutil.Day("2024-01-01"), 366, func(int) float64 { return 10 })
func NAVSeries(start time.Time, days int, price func(i int) float64) []model.NAVPoint {
	nav := make([]model.NAVPoint, days)
	for i := range nav {
		v := price(i)
		nav[i] = model.NAVPoint{Date: start.AddDate(0, 0, i), UnitValue: v, NetValue: v}
	}
	return nav
}

// CreateNAV stores nav as the provider series of assetID.
func CreateNAV(t *testing.T, db *sql.DB, assetID string, nav []model.NAVPoint) {
	t.Helper()

	query := `
		INSERT INTO nav_point (asset_id, date, unit_value, net_value)
		VALUES (?, ?, ?, ?)
	`
	for _, p := range nav {
		if _, err := db.Exec(query, assetID, p.Date.Format("2006-01-02"), p.UnitValue, p.NetValue); err != nil {
			t.Fatalf("Failed to create test nav point: %v", err)
		}
	}
}

// Day parses a "2006-01-02" date and panics on malformed input.
func Day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}
