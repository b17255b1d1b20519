package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ndewijer/investment-ledger/internal/apperrors"
	"github.com/ndewijer/investment-ledger/internal/model"
)

// allClasses is the stored class of the unfiltered snapshot.
const allClasses = "all"

// SnapshotRepository provides data access methods for the portfolio_snapshot and
// asset_digest tables: the materialized aggregate per class and the per-asset digests it
// was computed from.
type SnapshotRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewSnapshotRepository creates a new SnapshotRepository with the provided database connection.
func NewSnapshotRepository(db *sql.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

func (r *SnapshotRepository) WithTx(tx *sql.Tx) *SnapshotRepository {
	return &SnapshotRepository{
		db: r.db,
		tx: tx,
	}
}

func (r *SnapshotRepository) getQuerier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

func classKey(class string) string {
	if class == "" {
		return allClasses
	}
	return class
}

// GetSnapshot retrieves the materialized snapshot of a class ("" for all classes).
// Returns apperrors.ErrSnapshotNotFound if none has been stored yet.
func (r *SnapshotRepository) GetSnapshot(ctx context.Context, class string) (*model.PortfolioSnapshot, error) {
	query := `SELECT data FROM portfolio_snapshot WHERE class = ?`

	var data string
	err := r.getQuerier().QueryRowContext(ctx, query, classKey(class)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolio_snapshot table: %w", err)
	}

	var s model.PortfolioSnapshot
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, fmt.Errorf("failed to decode portfolio snapshot: %w", err)
	}
	return &s, nil
}

// PutSnapshot stores s as the snapshot of s.Class, replacing the previous one.
func (r *SnapshotRepository) PutSnapshot(ctx context.Context, s *model.PortfolioSnapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode portfolio snapshot: %w", err)
	}

	query := `
        INSERT INTO portfolio_snapshot (class, digest, data, calculated_at)
        VALUES (?, ?, ?, ?)
        ON CONFLICT(class) DO UPDATE SET
            digest = excluded.digest,
            data = excluded.data,
            calculated_at = excluded.calculated_at
    `
	_, err = r.getQuerier().ExecContext(ctx, query,
		classKey(s.Class),
		s.Digest,
		string(data),
		s.CalculatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to store portfolio snapshot: %w", err)
	}
	return nil
}

// DeleteSnapshots removes every stored snapshot, forcing a full recompute on the next refresh.
func (r *SnapshotRepository) DeleteSnapshots(ctx context.Context) error {
	if _, err := r.getQuerier().ExecContext(ctx, `DELETE FROM portfolio_snapshot`); err != nil {
		return fmt.Errorf("failed to delete portfolio snapshots: %w", err)
	}
	return nil
}

// GetDigests retrieves the last stored digest of every asset, keyed by asset ID.
func (r *SnapshotRepository) GetDigests(ctx context.Context) (map[string]string, error) {
	rows, err := r.getQuerier().QueryContext(ctx, `SELECT asset_id, digest FROM asset_digest`)
	if err != nil {
		return nil, fmt.Errorf("failed to query asset_digest table: %w", err)
	}
	defer rows.Close()

	digests := make(map[string]string)
	for rows.Next() {
		var id, digest string
		if err := rows.Scan(&id, &digest); err != nil {
			return nil, fmt.Errorf("failed to scan asset_digest table results: %w", err)
		}
		digests[id] = digest
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating asset_digest table: %w", err)
	}

	return digests, nil
}

// PutDigests upserts asset digests keyed by asset ID.
func (r *SnapshotRepository) PutDigests(ctx context.Context, digests map[string]string) error {
	query := `
        INSERT INTO asset_digest (asset_id, digest, updated_at)
        VALUES (?, ?, ?)
        ON CONFLICT(asset_id) DO UPDATE SET
            digest = excluded.digest,
            updated_at = excluded.updated_at
    `
	now := time.Now().UTC().Format(time.RFC3339)

	for id, digest := range digests {
		if _, err := r.getQuerier().ExecContext(ctx, query, id, digest, now); err != nil {
			return fmt.Errorf("failed to upsert asset digest: %w", err)
		}
	}
	return nil
}
