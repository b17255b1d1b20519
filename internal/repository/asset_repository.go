package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ndewijer/investment-ledger/internal/apperrors"
	"github.com/ndewijer/investment-ledger/internal/model"
)

// AssetRepository provides data access methods for the asset table.
type AssetRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewAssetRepository creates a new AssetRepository with the provided database connection.
func NewAssetRepository(db *sql.DB) *AssetRepository {
	return &AssetRepository{db: db}
}

func (r *AssetRepository) WithTx(tx *sql.Tx) *AssetRepository {
	return &AssetRepository{
		db: r.db,
		tx: tx,
	}
}

func (r *AssetRepository) getQuerier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

// GetAssets retrieves all assets, optionally restricted to one class.
// An empty class returns every asset. Results are ordered by class, then code.
func (r *AssetRepository) GetAssets(ctx context.Context, class string) ([]model.Asset, error) {
	query := `SELECT id, class, code, name, created_at FROM asset`

	var args []any
	if class != "" {
		query += ` WHERE class = ?`
		args = append(args, class)
	}
	query += ` ORDER BY class, code`

	rows, err := r.getQuerier().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query asset table: %w", err)
	}
	defer rows.Close()

	assets := []model.Asset{}
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating asset table: %w", err)
	}

	return assets, nil
}

// GetAsset retrieves a single asset by ID.
// Returns apperrors.ErrAssetNotFound if no asset with that ID exists.
func (r *AssetRepository) GetAsset(ctx context.Context, assetID string) (model.Asset, error) {
	query := `SELECT id, class, code, name, created_at FROM asset WHERE id = ?`

	a, err := scanAsset(r.getQuerier().QueryRowContext(ctx, query, assetID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Asset{}, apperrors.ErrAssetNotFound
	}
	if err != nil {
		return model.Asset{}, err
	}
	return a, nil
}

// InsertAsset stores a new asset.
// Returns apperrors.ErrDuplicateAsset when the class and code are already taken.
func (r *AssetRepository) InsertAsset(ctx context.Context, a model.Asset) error {
	query := `
        INSERT INTO asset (id, class, code, name, created_at)
        VALUES (?, ?, ?, ?, ?)
    `

	_, err := r.getQuerier().ExecContext(ctx, query,
		a.ID,
		a.Class,
		a.Code,
		a.Name,
		a.CreatedAt.UTC().Format(time.RFC3339),
	)
	if isUniqueViolation(err) {
		return apperrors.ErrDuplicateAsset
	}
	if err != nil {
		return fmt.Errorf("failed to insert asset: %w", err)
	}

	return nil
}

// DeleteAsset removes an asset together with its ledger, valuation and digest.
// Returns apperrors.ErrAssetNotFound if no asset with that ID exists.
func (r *AssetRepository) DeleteAsset(ctx context.Context, assetID string) error {
	query := `DELETE FROM asset WHERE id = ?`

	result, err := r.getQuerier().ExecContext(ctx, query, assetID)
	if err != nil {
		return fmt.Errorf("failed to delete asset: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return apperrors.ErrAssetNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAsset(s rowScanner) (model.Asset, error) {
	var a model.Asset
	var createdAt string
	if err := s.Scan(&a.ID, &a.Class, &a.Code, &a.Name, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Asset{}, err
		}
		return model.Asset{}, fmt.Errorf("failed to scan asset table results: %w", err)
	}

	t, err := ParseTime(createdAt)
	if err != nil {
		return model.Asset{}, err
	}
	a.CreatedAt = t
	return a, nil
}
