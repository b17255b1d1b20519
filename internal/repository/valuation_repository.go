package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ndewijer/investment-ledger/internal/model"
)

// ValuationRepository provides data access methods for the nav_point and valuation_point tables.
// nav_point holds the series as the valuation provider supplied it; valuation_point holds
// the same series aligned with the asset's ledger.
type ValuationRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewValuationRepository creates a new ValuationRepository with the provided database connection.
func NewValuationRepository(db *sql.DB) *ValuationRepository {
	return &ValuationRepository{db: db}
}

func (r *ValuationRepository) WithTx(tx *sql.Tx) *ValuationRepository {
	return &ValuationRepository{
		db: r.db,
		tx: tx,
	}
}

func (r *ValuationRepository) getQuerier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

// GetNAV retrieves the provider series of an asset, oldest date first.
func (r *ValuationRepository) GetNAV(ctx context.Context, assetID string) ([]model.NAVPoint, error) {
	query := `
        SELECT date, unit_value, net_value
        FROM nav_point
        WHERE asset_id = ?
        ORDER BY date ASC
    `

	rows, err := r.getQuerier().QueryContext(ctx, query, assetID)
	if err != nil {
		return nil, fmt.Errorf("failed to query nav_point table: %w", err)
	}
	defer rows.Close()

	nav := []model.NAVPoint{}
	for rows.Next() {
		var p model.NAVPoint
		var dateStr string

		if err := rows.Scan(&dateStr, &p.UnitValue, &p.NetValue); err != nil {
			return nil, fmt.Errorf("failed to scan nav_point table results: %w", err)
		}
		p.Date, err = parseDay(dateStr)
		if err != nil {
			return nil, err
		}
		nav = append(nav, p)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating nav_point table: %w", err)
	}

	return nav, nil
}

// PutNAV replaces the provider series of an asset.
// Duplicate dates keep the last value given.
func (r *ValuationRepository) PutNAV(ctx context.Context, assetID string, nav []model.NAVPoint) error {
	q := r.getQuerier()

	if _, err := q.ExecContext(ctx, `DELETE FROM nav_point WHERE asset_id = ?`, assetID); err != nil {
		return fmt.Errorf("failed to clear nav_point: %w", err)
	}

	query := `
        INSERT OR REPLACE INTO nav_point (asset_id, date, unit_value, net_value)
        VALUES (?, ?, ?, ?)
    `
	for _, p := range nav {
		if _, err := q.ExecContext(ctx, query, assetID, formatDate(p.Date), p.UnitValue, p.NetValue); err != nil {
			return fmt.Errorf("failed to insert nav_point: %w", err)
		}
	}

	return nil
}

// GetAligned retrieves the aligned valuation series of an asset, newest date first.
func (r *ValuationRepository) GetAligned(ctx context.Context, assetID string) ([]model.ValuationPoint, error) {
	query := `
        SELECT date, unit_value, net_value, holding_amount, holding_share, holding_price,
               adjusted_price, transaction_amount, transaction_share
        FROM valuation_point
        WHERE asset_id = ?
        ORDER BY date DESC
    `

	rows, err := r.getQuerier().QueryContext(ctx, query, assetID)
	if err != nil {
		return nil, fmt.Errorf("failed to query valuation_point table: %w", err)
	}
	defer rows.Close()

	points := []model.ValuationPoint{}
	for rows.Next() {
		var p model.ValuationPoint
		var dateStr string
		var adjusted, txAmount, txShare sql.NullFloat64

		err := rows.Scan(
			&dateStr,
			&p.UnitValue,
			&p.NetValue,
			&p.HoldingAmount,
			&p.HoldingShare,
			&p.HoldingPrice,
			&adjusted,
			&txAmount,
			&txShare,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan valuation_point table results: %w", err)
		}

		p.Date, err = parseDay(dateStr)
		if err != nil {
			return nil, err
		}
		p.AdjustedPrice = floatPtr(adjusted)
		p.TransactionAmount = floatPtr(txAmount)
		p.TransactionShare = floatPtr(txShare)
		points = append(points, p)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating valuation_point table: %w", err)
	}

	return points, nil
}

// PutAligned replaces the aligned valuation series of an asset.
func (r *ValuationRepository) PutAligned(ctx context.Context, assetID string, points []model.ValuationPoint) error {
	q := r.getQuerier()

	if _, err := q.ExecContext(ctx, `DELETE FROM valuation_point WHERE asset_id = ?`, assetID); err != nil {
		return fmt.Errorf("failed to clear valuation_point: %w", err)
	}

	query := `
        INSERT INTO valuation_point (
            asset_id, date, unit_value, net_value, holding_amount, holding_share, holding_price,
            adjusted_price, transaction_amount, transaction_share
        )
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	for _, p := range points {
		_, err := q.ExecContext(ctx, query,
			assetID,
			formatDate(p.Date),
			p.UnitValue,
			p.NetValue,
			p.HoldingAmount,
			p.HoldingShare,
			p.HoldingPrice,
			nullFloat(p.AdjustedPrice),
			nullFloat(p.TransactionAmount),
			nullFloat(p.TransactionShare),
		)
		if err != nil {
			return fmt.Errorf("failed to insert valuation_point: %w", err)
		}
	}

	return nil
}
