package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ndewijer/investment-ledger/internal/apperrors"
	"github.com/ndewijer/investment-ledger/internal/ledger"
	"github.com/ndewijer/investment-ledger/internal/model"
	"github.com/ndewijer/investment-ledger/internal/repository"
	"github.com/ndewijer/investment-ledger/internal/validation"
	"github.com/ndewijer/investment-ledger/internal/valuation"
)

// ValuationService handles the NAV series pushed by the valuation provider and the
// valuation aligned with each ledger.
type ValuationService struct {
	db            *sql.DB
	assetRepo     *repository.AssetRepository
	valuationRepo *repository.ValuationRepository
	ledgerService *LedgerService
	cfg           ledger.Config
	logger        zerolog.Logger
	notifier      ChangeNotifier
}

// NewValuationService creates a new ValuationService with the provided dependencies.
func NewValuationService(
	db *sql.DB,
	assetRepo *repository.AssetRepository,
	valuationRepo *repository.ValuationRepository,
	ledgerService *LedgerService,
	cfg ledger.Config,
	logger zerolog.Logger,
) *ValuationService {
	return &ValuationService{
		db:            db,
		assetRepo:     assetRepo,
		valuationRepo: valuationRepo,
		ledgerService: ledgerService,
		cfg:           cfg,
		logger:        logger,
	}
}

// SetNotifier registers the receiver of change notifications.
func (s *ValuationService) SetNotifier(n ChangeNotifier) {
	s.notifier = n
}

// PutValuation replaces the NAV series of an asset and realigns it with the stored ledger.
//
// Calendar gaps are filled forward before storing. Every ledger date must exist in the
// filled series; otherwise a LedgerError wrapping ErrTransactionDateMissing is returned,
// located at the offending ledger date cells, and nothing is stored.
func (s *ValuationService) PutValuation(ctx context.Context, assetID string, nav []model.NAVPoint) ([]model.ValuationPoint, error) {
	if err := validation.ValidateNAV(nav); err != nil {
		return nil, err
	}

	l, res, err := s.ledgerService.Load(ctx, assetID)
	if res == nil {
		return nil, err
	}

	filled := valuation.FillGaps(nav)
	points, err := valuation.Align(l, res.Positions, filled)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	repo := s.valuationRepo.WithTx(tx)
	if err := repo.PutNAV(ctx, assetID, filled); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrFailedToStoreValuation, err)
	}
	if err := repo.PutAligned(ctx, assetID, points); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrFailedToStoreValuation, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit valuation: %w", err)
	}

	s.logger.Debug().Str("asset", assetID).Int("points", len(points)).Msg("valuation stored")
	if s.notifier != nil {
		s.notifier.Invalidate()
	}
	return points, nil
}

// GetValuation retrieves the aligned valuation of an asset, newest first.
// Zero from or to leave that side of the range open.
func (s *ValuationService) GetValuation(ctx context.Context, assetID string, from, to time.Time) ([]model.ValuationPoint, error) {
	if _, err := s.assetRepo.GetAsset(ctx, assetID); err != nil {
		return nil, err
	}

	points, err := s.valuationRepo.GetAligned(ctx, assetID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrFailedToRetrieveValuation, err)
	}

	out := points[:0:0]
	for _, p := range points {
		if !from.IsZero() && p.Date.Before(from) {
			continue
		}
		if !to.IsZero() && p.Date.After(to) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// GetSummary builds the overview row of one asset.
// A ConvergenceError is returned together with the summary amounts.
func (s *ValuationService) GetSummary(ctx context.Context, assetID string) (model.AssetSummary, error) {
	asset, err := s.assetRepo.GetAsset(ctx, assetID)
	if err != nil {
		return model.AssetSummary{}, err
	}
	return s.summarize(ctx, asset)
}

// GetSummaries builds the overview rows of every asset in class ("" for all), sorted by
// holding amount, class and code. Assets whose rates do not converge are listed without them.
func (s *ValuationService) GetSummaries(ctx context.Context, class string) ([]model.AssetSummary, error) {
	assets, err := s.assetRepo.GetAssets(ctx, class)
	if err != nil {
		return nil, err
	}

	summaries := make([]model.AssetSummary, 0, len(assets))
	for _, a := range assets {
		sum, err := s.summarize(ctx, a)
		if err != nil {
			if _, ok := apperrors.AsLedgerError(err); !ok {
				return nil, err
			}
			s.logger.Warn().Str("asset", a.ID).Err(err).Msg("asset summary incomplete")
		}
		summaries = append(summaries, sum)
	}
	valuation.SortSummaries(summaries)
	return summaries, nil
}

func (s *ValuationService) summarize(ctx context.Context, asset model.Asset) (model.AssetSummary, error) {
	l, res, err := s.ledgerService.Load(ctx, asset.ID)
	if res == nil {
		return model.AssetSummary{Asset: asset}, err
	}

	points, err := s.valuationRepo.GetAligned(ctx, asset.ID)
	if err != nil {
		return model.AssetSummary{}, fmt.Errorf("%w: %w", apperrors.ErrFailedToRetrieveValuation, err)
	}
	return valuation.Summarize(asset, l, res, points, s.cfg)
}

// realign rebuilds the aligned valuation of a ledger from the stored NAV series.
// An asset with no NAV series yet has nothing to align.
func realign(ctx context.Context, repo *repository.ValuationRepository, l model.Ledger, positions []ledger.Position) error {
	nav, err := repo.GetNAV(ctx, l.AssetID)
	if err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrFailedToRetrieveValuation, err)
	}
	if len(nav) == 0 {
		return nil
	}

	points, err := valuation.Align(l, positions, nav)
	if err != nil {
		return err
	}
	return repo.PutAligned(ctx, l.AssetID, points)
}
