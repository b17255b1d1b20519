package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ndewijer/investment-ledger/internal/api/request"
	"github.com/ndewijer/investment-ledger/internal/apperrors"
	"github.com/ndewijer/investment-ledger/internal/metrics"
	"github.com/ndewijer/investment-ledger/internal/model"
	"github.com/ndewijer/investment-ledger/internal/portfolio"
	"github.com/ndewijer/investment-ledger/internal/repository"
)

// PortfolioService materializes the portfolio aggregate of every class filter and
// serves it from memory.
//
// Snapshots are recomputed by Refresh, either on the refresh schedule or on the first
// read after a ledger or valuation change. A recompute only re-solves the dates and
// buckets whose inputs changed since the stored snapshot; when the watermark of a class
// is unchanged the stored snapshot is reused as is. Readers always receive a copy, so a
// published snapshot is never mutated.
type PortfolioService struct {
	db            *sql.DB
	assetRepo     *repository.AssetRepository
	valuationRepo *repository.ValuationRepository
	rateRepo      *repository.RateRepository
	snapshotRepo  *repository.SnapshotRepository
	ledgerService *LedgerService
	opts          portfolio.Options
	workers       int
	metrics       *metrics.Registry
	logger        zerolog.Logger

	mu    sync.Mutex // serializes refreshes
	cache atomic.Pointer[map[string]*model.PortfolioSnapshot]
	stale atomic.Bool
}

// NewPortfolioService creates a new PortfolioService with the provided dependencies.
// workers bounds how many assets are loaded concurrently; values below 1 mean 1.
func NewPortfolioService(
	db *sql.DB,
	assetRepo *repository.AssetRepository,
	valuationRepo *repository.ValuationRepository,
	rateRepo *repository.RateRepository,
	snapshotRepo *repository.SnapshotRepository,
	ledgerService *LedgerService,
	opts portfolio.Options,
	workers int,
	m *metrics.Registry,
	logger zerolog.Logger,
) *PortfolioService {
	if workers < 1 {
		workers = 1
	}
	s := &PortfolioService{
		db:            db,
		assetRepo:     assetRepo,
		valuationRepo: valuationRepo,
		rateRepo:      rateRepo,
		snapshotRepo:  snapshotRepo,
		ledgerService: ledgerService,
		opts:          opts,
		workers:       workers,
		metrics:       m,
		logger:        logger,
	}
	s.stale.Store(true)
	return s
}

// Invalidate marks the cached snapshots as stale. The next read refreshes them.
func (s *PortfolioService) Invalidate() {
	s.stale.Store(true)
}

// Classes lists every class filter a refresh materializes: "" (all assets) first, then
// each asset class in name order.
func Classes() []string {
	classes := make([]string, 0, len(model.AssetClasses)+1)
	for c := range model.AssetClasses {
		classes = append(classes, c)
	}
	sort.Strings(classes)
	return append([]string{""}, classes...)
}

// Refresh recomputes the snapshot of every class filter and stores it together with the
// year and quarter rates it solved.
//
// Assets whose stored ledger no longer computes are logged and aggregated without
// realized flows. Dates and buckets whose rate does not converge are kept with a NaN
// rate and counted as failures in the report.
func (s *PortfolioService) Refresh(ctx context.Context) (*model.RefreshReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refresh(ctx)
}

// Rebuild drops every materialized snapshot and recomputes all of them from scratch.
// Use it after changing aggregator options, which digests do not cover.
func (s *PortfolioService) Rebuild(ctx context.Context) (*model.RefreshReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.snapshotRepo.DeleteSnapshots(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrFailedToRefreshPortfolio, err)
	}
	s.cache.Store(nil)
	s.logger.Info().Msg("portfolio snapshots dropped, rebuilding")
	return s.refresh(ctx)
}

func (s *PortfolioService) refresh(ctx context.Context) (*model.RefreshReport, error) {
	start := time.Now()
	defer s.metrics.ObserveRefresh(start)

	// Cleared before loading so a change that lands during the refresh marks it stale again.
	s.stale.Store(false)

	inputs, err := s.prepare(ctx)
	if err != nil {
		s.stale.Store(true)
		return nil, fmt.Errorf("%w: %w", apperrors.ErrFailedToRefreshPortfolio, err)
	}

	stored, err := s.snapshotRepo.GetDigests(ctx)
	if err != nil {
		s.stale.Store(true)
		return nil, fmt.Errorf("%w: %w", apperrors.ErrFailedToRefreshPortfolio, err)
	}

	report := &model.RefreshReport{StartedAt: start.UTC(), Assets: len(inputs)}
	for _, in := range inputs {
		if stored[in.Asset.ID] != in.Digest {
			report.ChangedAssets = append(report.ChangedAssets, in.Asset.ID)
		}
	}
	if len(report.ChangedAssets) > 0 {
		s.logger.Debug().Strs("assets", report.ChangedAssets).Msg("assets changed since last refresh")
	}
	cached := s.cache.Load()
	next := make(map[string]*model.PortfolioSnapshot, len(Classes()))

	for _, class := range Classes() {
		prev, err := s.previous(ctx, cached, class)
		if err != nil {
			s.stale.Store(true)
			return nil, fmt.Errorf("%w: %w", apperrors.ErrFailedToRefreshPortfolio, err)
		}

		out, err := portfolio.Aggregate(portfolio.Input{Class: class, Assets: inputs}, prev, s.opts)
		if err != nil {
			s.stale.Store(true)
			return nil, fmt.Errorf("%w: %w", apperrors.ErrFailedToRefreshPortfolio, err)
		}

		cr := model.ClassRefresh{
			Class:         class,
			Skipped:       out.Skipped,
			Recomputed:    out.Recomputed,
			Failures:      out.Failures,
			DirtyYears:    out.DirtyYears,
			DirtyQuarters: out.DirtyQuarters,
		}
		if !out.ChangedFrom.IsZero() {
			from := out.ChangedFrom
			cr.ChangedFrom = &from
		}

		if out.Skipped {
			s.metrics.RecordClass("skipped", 0)
		} else {
			if err := s.store(ctx, out.Snapshot); err != nil {
				s.stale.Store(true)
				return nil, fmt.Errorf("%w: %w", apperrors.ErrFailedToRefreshPortfolio, err)
			}
			result := "recomputed"
			if out.Failures > 0 {
				result = "partial"
			}
			s.metrics.RecordClass(result, out.Recomputed)
		}

		s.logger.Info().
			Str("class", classLabel(class)).
			Bool("skipped", out.Skipped).
			Int("recomputed", out.Recomputed).
			Int("failures", out.Failures).
			Msg("portfolio class refreshed")

		next[class] = out.Snapshot
		report.Classes = append(report.Classes, cr)
	}

	digests := make(map[string]string, len(inputs))
	for _, in := range inputs {
		digests[in.Asset.ID] = in.Digest
	}
	if err := s.snapshotRepo.PutDigests(ctx, digests); err != nil {
		s.stale.Store(true)
		return nil, fmt.Errorf("%w: %w", apperrors.ErrFailedToRefreshPortfolio, err)
	}

	s.cache.Store(&next)
	report.Duration = time.Since(start).String()
	return report, nil
}

// GetPortfolio returns the portfolio snapshot of q.Class.
//
// Without a date window the materialized snapshot is returned, refreshed first when it
// is stale. A window is aggregated on demand from scratch and never stored.
func (s *PortfolioService) GetPortfolio(ctx context.Context, q request.PortfolioQuery) (*model.PortfolioSnapshot, error) {
	window := portfolio.Window{From: q.StartDate, To: q.EndDate}
	if !window.IsZero() {
		inputs, err := s.prepare(ctx)
		if err != nil {
			return nil, err
		}
		out, err := portfolio.Aggregate(portfolio.Input{Class: q.Class, Window: window, Assets: inputs}, nil, s.opts)
		if err != nil {
			return nil, err
		}
		return out.Snapshot, nil
	}

	cached := s.cache.Load()
	if cached == nil || s.stale.Load() {
		if _, err := s.Refresh(ctx); err != nil {
			return nil, err
		}
		cached = s.cache.Load()
	}

	snap, ok := (*cached)[q.Class]
	if !ok {
		return nil, apperrors.ErrSnapshotNotFound
	}
	return snap.Clone(), nil
}

// prepare loads and computes every asset concurrently.
func (s *PortfolioService) prepare(ctx context.Context) ([]portfolio.AssetInput, error) {
	assets, err := s.assetRepo.GetAssets(ctx, "")
	if err != nil {
		return nil, err
	}

	inputs := make([]portfolio.AssetInput, len(assets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i, a := range assets {
		g.Go(func() error {
			l, res, err := s.ledgerService.Load(gctx, a.ID)
			if res == nil && err != nil {
				if _, ok := apperrors.AsLedgerError(err); !ok {
					return err
				}
				s.logger.Warn().Str("asset", a.ID).Err(err).Msg("stored ledger does not compute, aggregating without it")
			} else if err != nil {
				s.logger.Warn().Str("asset", a.ID).Err(err).Msg("ledger rates incomplete")
			}

			points, err := s.valuationRepo.GetAligned(gctx, a.ID)
			if err != nil {
				return fmt.Errorf("%w: %w", apperrors.ErrFailedToRetrieveValuation, err)
			}

			inputs[i] = portfolio.AssetInput{
				Asset:     a,
				Ledger:    l,
				Result:    res,
				Valuation: points,
				Digest:    portfolio.AssetDigest(a, l, points),
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return inputs, nil
}

// previous returns the snapshot the next aggregate of class builds on: the cached one,
// else the stored one, else nil.
func (s *PortfolioService) previous(ctx context.Context, cached *map[string]*model.PortfolioSnapshot, class string) (*model.PortfolioSnapshot, error) {
	if cached != nil {
		if snap, ok := (*cached)[class]; ok {
			return snap, nil
		}
	}
	snap, err := s.snapshotRepo.GetSnapshot(ctx, class)
	if errors.Is(err, apperrors.ErrSnapshotNotFound) {
		return nil, nil
	}
	return snap, err
}

// store persists a recomputed snapshot and its bucket rates in one transaction.
func (s *PortfolioService) store(ctx context.Context, snap *model.PortfolioSnapshot) error {
	rates := make([]model.RateResult, 0, len(snap.Years)+len(snap.Quarters))
	for y, r := range snap.Years {
		r.Key = portfolio.BucketKey(snap.Class, "year", fmt.Sprint(y))
		rates = append(rates, r)
	}
	for q, r := range snap.Quarters {
		r.Key = portfolio.BucketKey(snap.Class, "quarter", q.String())
		rates = append(rates, r)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := s.snapshotRepo.WithTx(tx).PutSnapshot(ctx, snap); err != nil {
		return err
	}

	rateRepo := s.rateRepo.WithTx(tx)
	if err := rateRepo.DeleteRatesByPrefix(ctx, "class:"+classLabel(snap.Class)+":"); err != nil {
		return err
	}
	if err := rateRepo.PutRates(ctx, rates); err != nil {
		return err
	}
	return tx.Commit()
}

func classLabel(class string) string {
	if class == "" {
		return "all"
	}
	return class
}
