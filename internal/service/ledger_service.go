package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ndewijer/investment-ledger/internal/api/request"
	"github.com/ndewijer/investment-ledger/internal/apperrors"
	"github.com/ndewijer/investment-ledger/internal/ledger"
	"github.com/ndewijer/investment-ledger/internal/metrics"
	"github.com/ndewijer/investment-ledger/internal/model"
	"github.com/ndewijer/investment-ledger/internal/repository"
	"github.com/ndewijer/investment-ledger/internal/validation"
)

// ChangeNotifier is told whenever stored data that feeds the portfolio aggregate changes.
type ChangeNotifier interface {
	Invalidate()
}

// LedgerService handles ledger import, computation and rate caching.
type LedgerService struct {
	db            *sql.DB
	assetRepo     *repository.AssetRepository
	ledgerRepo    *repository.LedgerRepository
	valuationRepo *repository.ValuationRepository
	rateRepo      *repository.RateRepository
	cfg           ledger.Config
	metrics       *metrics.Registry
	logger        zerolog.Logger
	notifier      ChangeNotifier
}

// NewLedgerService creates a new LedgerService with the provided dependencies.
// cfg must already be validated; m may be nil.
func NewLedgerService(
	db *sql.DB,
	assetRepo *repository.AssetRepository,
	ledgerRepo *repository.LedgerRepository,
	valuationRepo *repository.ValuationRepository,
	rateRepo *repository.RateRepository,
	cfg ledger.Config,
	m *metrics.Registry,
	logger zerolog.Logger,
) *LedgerService {
	return &LedgerService{
		db:            db,
		assetRepo:     assetRepo,
		ledgerRepo:    ledgerRepo,
		valuationRepo: valuationRepo,
		rateRepo:      rateRepo,
		cfg:           cfg,
		metrics:       m,
		logger:        logger,
	}
}

// SetNotifier registers the receiver of change notifications.
func (s *LedgerService) SetNotifier(n ChangeNotifier) {
	s.notifier = n
}

// PutLedger validates an imported ledger table, computes it and replaces the stored ledger.
//
// The flow is:
//  1. The table is validated; the first failing rule is returned as a *apperrors.LedgerError.
//  2. The ledger is computed, seeded with the rates cached from the previous computation.
//  3. Ledger rows and rates are stored in one transaction, and the asset's aligned
//     valuation is rebuilt from its stored NAV series.
//
// Parameters:
//   - ctx: Context for the operation
//   - assetID: The asset whose ledger is replaced
//   - req: Column titles and raw rows
//
// Returns the computed ledger. The response is non-nil together with an error in two
// cases: a soft error (only the pending tail row was rejected; the committed rows were
// stored) and a ConvergenceError (positions are valid, unsolved rates are null).
// Validation and bookkeeping errors store nothing.
func (s *LedgerService) PutLedger(ctx context.Context, assetID string, req request.PutLedgerRequest) (*model.LedgerResponse, error) {
	if _, err := s.assetRepo.GetAsset(ctx, assetID); err != nil {
		return nil, err
	}

	raw, err := req.RawRows()
	if err != nil {
		s.metrics.RecordValidationFailure(err)
		return nil, err
	}

	l, err := validation.ValidateTable(req.TableColumns(), raw, validation.LedgerOptions{AllowPendingTail: req.AllowPendingTail})
	var soft error
	if err != nil {
		if le, ok := apperrors.AsLedgerError(err); ok && le.Soft {
			soft = err
		} else {
			s.metrics.RecordValidationFailure(err)
			return nil, err
		}
	}
	l.AssetID = assetID

	prev, err := s.previous(ctx, assetID)
	if err != nil {
		return nil, err
	}

	res, computeErr := ledger.Compute(l, s.cfg, prev)
	s.metrics.ObserveSolve(iterations(res), computeErr)
	if res == nil {
		s.metrics.RecordValidationFailure(computeErr)
		return nil, computeErr
	}

	if err := s.store(ctx, l, res); err != nil {
		return nil, err
	}
	if s.notifier != nil {
		s.notifier.Invalidate()
	}

	resp := ledgerResponse(l, res)
	if computeErr != nil {
		return resp, computeErr
	}
	return resp, soft
}

func (s *LedgerService) store(ctx context.Context, l model.Ledger, res *ledger.Result) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := s.ledgerRepo.WithTx(tx).PutLedger(ctx, l); err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrFailedToStoreLedger, err)
	}

	rateRepo := s.rateRepo.WithTx(tx)
	if err := rateRepo.DeleteRatesByPrefix(ctx, model.AssetRateKey(l.AssetID)+":"); err != nil {
		return err
	}
	if err := rateRepo.PutRates(ctx, assetRates(l.AssetID, res)); err != nil {
		return err
	}

	valuationRepo := s.valuationRepo.WithTx(tx)
	if err := realign(ctx, valuationRepo, l, res.Positions); err != nil {
		if !errors.Is(err, apperrors.ErrTransactionDateMissing) {
			return err
		}
		// The NAV series does not cover the new ledger yet; the aligned series is rebuilt
		// once the provider pushes the missing dates.
		s.logger.Warn().Str("asset", l.AssetID).Err(err).Msg("valuation no longer aligns with ledger")
		if err := valuationRepo.PutAligned(ctx, l.AssetID, nil); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit ledger: %w", err)
	}
	return nil
}

// GetLedger retrieves the stored ledger of an asset with its derived columns.
// A ConvergenceError is returned together with the response.
func (s *LedgerService) GetLedger(ctx context.Context, assetID string) (*model.LedgerResponse, error) {
	l, res, err := s.Load(ctx, assetID)
	if res == nil {
		return nil, err
	}
	return ledgerResponse(l, res), err
}

// GetRates retrieves the per-event and average rates of an asset.
// A ConvergenceError is returned together with the rates that were solved.
func (s *LedgerService) GetRates(ctx context.Context, assetID string) (*model.AssetRates, error) {
	_, res, err := s.Load(ctx, assetID)
	if res == nil {
		return nil, err
	}

	rates := assetRates(assetID, res)
	return &model.AssetRates{
		AssetID: assetID,
		Events:  rates[:len(rates)-1],
		Average: rates[len(rates)-1],
	}, err
}

// Load retrieves and computes the stored ledger of an asset.
//
// The Result is nil only when the asset does not exist, the store fails, or the stored
// ledger breaks a bookkeeping rule under the current engine options. A ConvergenceError
// comes with a usable Result.
func (s *LedgerService) Load(ctx context.Context, assetID string) (model.Ledger, *ledger.Result, error) {
	if _, err := s.assetRepo.GetAsset(ctx, assetID); err != nil {
		return model.Ledger{}, nil, err
	}

	l, err := s.ledgerRepo.GetLedger(ctx, assetID)
	if err != nil {
		return model.Ledger{}, nil, fmt.Errorf("%w: %w", apperrors.ErrFailedToRetrieveLedger, err)
	}

	prev, err := s.previous(ctx, assetID)
	if err != nil {
		return model.Ledger{}, nil, err
	}

	res, err := ledger.Compute(l, s.cfg, prev)
	s.metrics.ObserveSolve(iterations(res), err)
	return l, res, err
}

// previous loads the cached rates of an asset as solver seeds.
func (s *LedgerService) previous(ctx context.Context, assetID string) (*ledger.Previous, error) {
	cached, err := s.rateRepo.GetRatesByPrefix(ctx, model.AssetRateKey(assetID))
	if err != nil {
		return nil, err
	}
	if len(cached) == 0 {
		return nil, nil
	}

	prev := &ledger.Previous{}
	eventPrefix := model.AssetRateKey(assetID) + ":event:"
	for key, r := range cached {
		if key == model.AssetRateKey(assetID) {
			prev.Average = r.Seed()
			continue
		}
		row, err := strconv.Atoi(strings.TrimPrefix(key, eventPrefix))
		if err != nil || row < 0 || !strings.HasPrefix(key, eventPrefix) {
			continue
		}
		for len(prev.Rates) <= row {
			prev.Rates = append(prev.Rates, math.NaN())
		}
		if seed := r.Seed(); seed != nil {
			prev.Rates[row] = *seed
		}
	}
	return prev, nil
}

// assetRates lists the cacheable rates of a computed ledger: one per event, then the average.
func assetRates(assetID string, res *ledger.Result) []model.RateResult {
	rates := make([]model.RateResult, 0, len(res.Flows)+1)
	for _, f := range res.Flows {
		r := res.Rates[f.Event]
		rates = append(rates, model.RateResult{
			Key:   model.EventRateKey(assetID, f.Event),
			Rate:  r,
			Valid: !math.IsNaN(r),
		})
	}
	avg := res.Average
	avg.Key = model.AssetRateKey(assetID)
	return append(rates, avg)
}

func ledgerResponse(l model.Ledger, res *ledger.Result) *model.LedgerResponse {
	rows := make([]model.LedgerRowResponse, len(l.Rows))
	for i, t := range l.Rows {
		pos := res.Positions[i]
		rows[i] = model.LedgerRowResponse{
			RawRow:       model.RawFromTransaction(i, t),
			Kind:         t.Kind,
			HoldingShare: pos.HoldingShare,
			HoldingPrice: model.Finite(pos.HoldingPrice),
			Rate:         model.Finite(res.Rates[i]),
		}
	}

	avg := res.Average
	avg.Key = model.AssetRateKey(l.AssetID)
	return &model.LedgerResponse{
		AssetID: l.AssetID,
		Columns: append(append([]string(nil), model.InputColumns...), model.DerivedColumns...),
		Rows:    rows,
		Average: avg,
	}
}

func iterations(res *ledger.Result) int {
	if res == nil {
		return 0
	}
	return res.Average.Iterations
}
