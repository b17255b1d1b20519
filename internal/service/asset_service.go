package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ndewijer/investment-ledger/internal/api/request"
	"github.com/ndewijer/investment-ledger/internal/apperrors"
	"github.com/ndewijer/investment-ledger/internal/model"
	"github.com/ndewijer/investment-ledger/internal/repository"
	"github.com/ndewijer/investment-ledger/internal/validation"
)

// AssetService handles asset-related business logic operations.
type AssetService struct {
	db        *sql.DB
	assetRepo *repository.AssetRepository
	rateRepo  *repository.RateRepository
	notifier  ChangeNotifier
}

// NewAssetService creates a new AssetService with the provided repository dependencies.
func NewAssetService(
	db *sql.DB,
	assetRepo *repository.AssetRepository,
	rateRepo *repository.RateRepository,
) *AssetService {
	return &AssetService{
		db:        db,
		assetRepo: assetRepo,
		rateRepo:  rateRepo,
	}
}

// SetNotifier registers the receiver of change notifications.
func (s *AssetService) SetNotifier(n ChangeNotifier) {
	s.notifier = n
}

// GetAssets retrieves all assets of a class, or every asset when class is empty.
func (s *AssetService) GetAssets(ctx context.Context, class string) ([]model.Asset, error) {
	if class != "" && !model.AssetClasses[class] {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrInvalidAssetClass, class)
	}
	assets, err := s.assetRepo.GetAssets(ctx, class)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrFailedToRetrieveAssets, err)
	}
	return assets, nil
}

// GetAsset retrieves a single asset by ID.
// Returns apperrors.ErrAssetNotFound if it does not exist.
func (s *AssetService) GetAsset(ctx context.Context, assetID string) (model.Asset, error) {
	return s.assetRepo.GetAsset(ctx, assetID)
}

// CreateAsset registers a new asset. The (class, code) pair must be unique.
func (s *AssetService) CreateAsset(ctx context.Context, req request.CreateAssetRequest) (model.Asset, error) {
	if err := validation.ValidateCreateAsset(req); err != nil {
		return model.Asset{}, err
	}

	asset := model.Asset{
		ID:        uuid.New().String(),
		Class:     req.Class,
		Code:      strings.TrimSpace(req.Code),
		Name:      strings.TrimSpace(req.Name),
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	if err := s.assetRepo.InsertAsset(ctx, asset); err != nil {
		return model.Asset{}, err
	}

	if s.notifier != nil {
		s.notifier.Invalidate()
	}
	return asset, nil
}

// DeleteAsset removes an asset with its ledger, valuation and cached rates.
func (s *AssetService) DeleteAsset(ctx context.Context, assetID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := s.assetRepo.WithTx(tx).DeleteAsset(ctx, assetID); err != nil {
		return err
	}
	if err := s.rateRepo.WithTx(tx).DeleteRatesByPrefix(ctx, model.AssetRateKey(assetID)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit asset deletion: %w", err)
	}

	if s.notifier != nil {
		s.notifier.Invalidate()
	}
	return nil
}
