package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/ndewijer/investment-ledger/internal/api/handlers"
	custommiddleware "github.com/ndewijer/investment-ledger/internal/api/middleware"
	"github.com/ndewijer/investment-ledger/internal/config"
	"github.com/ndewijer/investment-ledger/internal/metrics"
	"github.com/ndewijer/investment-ledger/internal/service"
)

// Services bundles the services the router dispatches to.
type Services struct {
	System    *service.SystemService
	Asset     *service.AssetService
	Ledger    *service.LedgerService
	Valuation *service.ValuationService
	Portfolio *service.PortfolioService
}

// NewRouter creates and configures the HTTP router
func NewRouter(svcs Services, m *metrics.Registry, cfg *config.Config, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(custommiddleware.Logger(logger))
	r.Use(middleware.Recoverer)

	// CORS middleware
	corsMiddleware := custommiddleware.NewCORS(cfg.CORS.AllowedOrigins)
	r.Use(corsMiddleware.Handler)

	if m != nil {
		r.Handle("/metrics", m.Handler())
	}

	auth := custommiddleware.NewAPIKeyAuth(cfg.Auth.TimeTokenTTL)

	// API routes
	r.Route("/api", func(r chi.Router) {
		// System namespace
		r.Route("/system", func(r chi.Router) {
			systemHandler := handlers.NewSystemHandler(svcs.System)
			r.Get("/health", systemHandler.Health)
			r.Get("/version", systemHandler.Version)
		})

		r.Route("/assets", func(r chi.Router) {
			assetHandler := handlers.NewAssetHandler(svcs.Asset, svcs.Valuation)
			ledgerHandler := handlers.NewLedgerHandler(svcs.Ledger)
			valuationHandler := handlers.NewValuationHandler(svcs.Valuation)

			r.Get("/", assetHandler.Assets)
			r.Get("/summary", assetHandler.Summaries)
			r.With(auth).Post("/", assetHandler.CreateAsset)

			r.Route("/{assetId}", func(r chi.Router) {
				r.Use(custommiddleware.ValidateAssetIDMiddleware)

				r.Get("/", assetHandler.Asset)
				r.With(auth).Delete("/", assetHandler.DeleteAsset)
				r.Get("/summary", assetHandler.Summary)

				r.Get("/ledger", ledgerHandler.Ledger)
				r.With(auth).Put("/ledger", ledgerHandler.PutLedger)
				r.Get("/rates", ledgerHandler.Rates)

				r.Get("/valuation", valuationHandler.Valuation)
				r.With(auth).Put("/valuation", valuationHandler.PutValuation)
			})
		})

		r.Route("/portfolio", func(r chi.Router) {
			portfolioHandler := handlers.NewPortfolioHandler(svcs.Portfolio)
			r.Get("/", portfolioHandler.Portfolio)
			r.With(auth).Post("/refresh", portfolioHandler.Refresh)
		})
	})

	return r
}
