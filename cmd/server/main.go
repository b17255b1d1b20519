package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ndewijer/investment-ledger/internal/api"
	"github.com/ndewijer/investment-ledger/internal/config"
	"github.com/ndewijer/investment-ledger/internal/database"
	"github.com/ndewijer/investment-ledger/internal/logging"
	"github.com/ndewijer/investment-ledger/internal/metrics"
	"github.com/ndewijer/investment-ledger/internal/repository"
	"github.com/ndewijer/investment-ledger/internal/service"
	"github.com/ndewijer/investment-ledger/internal/version"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger, err := logging.Setup(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure logging")
	}

	// Open database connection and bring the schema up to date
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}
	logger.Info().Str("path", cfg.Database.Path).Msg("connected to database")

	// Create repositories
	assetRepo := repository.NewAssetRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	valuationRepo := repository.NewValuationRepository(db)
	rateRepo := repository.NewRateRepository(db)
	snapshotRepo := repository.NewSnapshotRepository(db)

	m := metrics.New()

	// Create services
	ledgerService := service.NewLedgerService(
		db,
		assetRepo,
		ledgerRepo,
		valuationRepo,
		rateRepo,
		cfg.Engine,
		m,
		logger.With().Str("component", "ledger").Logger(),
	)
	valuationService := service.NewValuationService(
		db,
		assetRepo,
		valuationRepo,
		ledgerService,
		cfg.Engine,
		logger.With().Str("component", "valuation").Logger(),
	)
	assetService := service.NewAssetService(db, assetRepo, rateRepo)
	portfolioService := service.NewPortfolioService(
		db,
		assetRepo,
		valuationRepo,
		rateRepo,
		snapshotRepo,
		ledgerService,
		cfg.AggregateOptions(),
		cfg.Aggregator.Workers,
		m,
		logger.With().Str("component", "portfolio").Logger(),
	)
	systemService := service.NewSystemService(db)

	ledgerService.SetNotifier(portfolioService)
	valuationService.SetNotifier(portfolioService)
	assetService.SetNotifier(portfolioService)

	scheduler, err := service.NewScheduler(cfg.Schedule.Refresh, portfolioService,
		logger.With().Str("component", "scheduler").Logger())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create refresh scheduler")
	}

	// Create router
	router := api.NewRouter(api.Services{
		System:    systemService,
		Asset:     assetService,
		Ledger:    ledgerService,
		Valuation: valuationService,
		Portfolio: portfolioService,
	}, m, cfg, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start server in a goroutine
	go func() {
		logger.Info().Str("addr", cfg.Server.Addr).Str("version", version.Version).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()
	scheduler.Start()

	// Wait for interrupt signal for graceful shutdown
	<-ctx.Done()
	logger.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	scheduler.Stop(shutdownCtx)
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server exited")
}
