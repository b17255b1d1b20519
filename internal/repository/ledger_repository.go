package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ndewijer/investment-ledger/internal/model"
)

// LedgerRepository provides data access methods for the ledger_row table.
// A ledger is stored and replaced as a whole; rows keep their position in row_index.
type LedgerRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewLedgerRepository creates a new LedgerRepository with the provided database connection.
func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) WithTx(tx *sql.Tx) *LedgerRepository {
	return &LedgerRepository{
		db: r.db,
		tx: tx,
	}
}

func (r *LedgerRepository) getQuerier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

// GetLedger retrieves the ledger of an asset in row order.
// An asset without rows yields an empty ledger, not an error.
func (r *LedgerRepository) GetLedger(ctx context.Context, assetID string) (model.Ledger, error) {
	query := `
        SELECT date, kind, amount, share
        FROM ledger_row
        WHERE asset_id = ?
        ORDER BY row_index ASC
    `

	rows, err := r.getQuerier().QueryContext(ctx, query, assetID)
	if err != nil {
		return model.Ledger{}, fmt.Errorf("failed to query ledger_row table: %w", err)
	}
	defer rows.Close()

	l := model.Ledger{AssetID: assetID, Rows: []model.Transaction{}}
	for rows.Next() {
		var t model.Transaction
		var dateStr, kind string

		if err := rows.Scan(&dateStr, &kind, &t.Amount, &t.Share); err != nil {
			return model.Ledger{}, fmt.Errorf("failed to scan ledger_row table results: %w", err)
		}

		t.Date, err = parseDay(dateStr)
		if err != nil {
			return model.Ledger{}, err
		}
		if err := t.Kind.UnmarshalText([]byte(kind)); err != nil {
			return model.Ledger{}, fmt.Errorf("failed to parse transaction kind: %w", err)
		}
		l.Rows = append(l.Rows, t)
	}

	if err = rows.Err(); err != nil {
		return model.Ledger{}, fmt.Errorf("error iterating ledger_row table: %w", err)
	}

	return l, nil
}

// PutLedger replaces the stored rows of l.AssetID with l.Rows.
// Callers should run it inside a transaction (WithTx) so readers never see a half-written ledger.
func (r *LedgerRepository) PutLedger(ctx context.Context, l model.Ledger) error {
	q := r.getQuerier()

	if _, err := q.ExecContext(ctx, `DELETE FROM ledger_row WHERE asset_id = ?`, l.AssetID); err != nil {
		return fmt.Errorf("failed to clear ledger_row: %w", err)
	}

	query := `
        INSERT INTO ledger_row (asset_id, row_index, date, kind, amount, share)
        VALUES (?, ?, ?, ?, ?, ?)
    `
	for i, t := range l.Rows {
		_, err := q.ExecContext(ctx, query,
			l.AssetID,
			i,
			formatDate(t.Date),
			t.Kind.String(),
			t.Amount,
			t.Share,
		)
		if err != nil {
			return fmt.Errorf("failed to insert ledger_row %d: %w", i, err)
		}
	}

	return nil
}
