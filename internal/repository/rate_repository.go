package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ndewijer/investment-ledger/internal/apperrors"
	"github.com/ndewijer/investment-ledger/internal/model"
)

// RateRepository provides data access methods for the rate_cache table.
// Solved rates are cached under string keys so later solves can be seeded with them:
//
//	asset:<id>                   average rate of one asset
//	asset:<id>:event:<row>       per-event rate of one ledger row
//	class:<class|all>:year:<y>   yearly aggregate rate
//	class:<class|all>:quarter:<y>Q<q>
//
// Undefined rates are stored as NULL.
type RateRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewRateRepository creates a new RateRepository with the provided database connection.
func NewRateRepository(db *sql.DB) *RateRepository {
	return &RateRepository{db: db}
}

func (r *RateRepository) WithTx(tx *sql.Tx) *RateRepository {
	return &RateRepository{
		db: r.db,
		tx: tx,
	}
}

func (r *RateRepository) getQuerier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

// GetRate retrieves one cached rate.
// Returns apperrors.ErrRateNotFound if nothing is cached under key.
func (r *RateRepository) GetRate(ctx context.Context, key string) (model.RateResult, error) {
	query := `SELECT key, rate, valid, iterations FROM rate_cache WHERE key = ?`

	res, err := scanRate(r.getQuerier().QueryRowContext(ctx, query, key))
	if errors.Is(err, sql.ErrNoRows) {
		return model.RateResult{}, apperrors.ErrRateNotFound
	}
	return res, err
}

// GetRatesByPrefix retrieves every cached rate whose key starts with prefix, keyed by full key.
func (r *RateRepository) GetRatesByPrefix(ctx context.Context, prefix string) (map[string]model.RateResult, error) {
	query := `SELECT key, rate, valid, iterations FROM rate_cache WHERE substr(key, 1, ?) = ?`

	rows, err := r.getQuerier().QueryContext(ctx, query, len(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to query rate_cache table: %w", err)
	}
	defer rows.Close()

	rates := make(map[string]model.RateResult)
	for rows.Next() {
		res, err := scanRate(rows)
		if err != nil {
			return nil, err
		}
		rates[res.Key] = res
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rate_cache table: %w", err)
	}

	return rates, nil
}

// PutRates upserts rates by key.
func (r *RateRepository) PutRates(ctx context.Context, rates []model.RateResult) error {
	query := `
        INSERT INTO rate_cache (key, rate, valid, iterations, updated_at)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT(key) DO UPDATE SET
            rate = excluded.rate,
            valid = excluded.valid,
            iterations = excluded.iterations,
            updated_at = excluded.updated_at
    `
	now := time.Now().UTC().Format(time.RFC3339)

	for _, res := range rates {
		_, err := r.getQuerier().ExecContext(ctx, query,
			res.Key,
			nullFloat(model.Finite(res.Rate)),
			res.Valid,
			res.Iterations,
			now,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert rate %s: %w", res.Key, err)
		}
	}

	return nil
}

// DeleteRatesByPrefix removes every cached rate whose key starts with prefix.
func (r *RateRepository) DeleteRatesByPrefix(ctx context.Context, prefix string) error {
	query := `DELETE FROM rate_cache WHERE substr(key, 1, ?) = ?`

	if _, err := r.getQuerier().ExecContext(ctx, query, len(prefix), prefix); err != nil {
		return fmt.Errorf("failed to delete rates: %w", err)
	}
	return nil
}

func scanRate(s rowScanner) (model.RateResult, error) {
	var res model.RateResult
	var rate sql.NullFloat64

	if err := s.Scan(&res.Key, &rate, &res.Valid, &res.Iterations); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.RateResult{}, err
		}
		return model.RateResult{}, fmt.Errorf("failed to scan rate_cache table results: %w", err)
	}

	res.Rate = math.NaN()
	if rate.Valid {
		res.Rate = rate.Float64
	}
	return res, nil
}
