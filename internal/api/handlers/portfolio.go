package handlers

import (
	"net/http"

	"github.com/ndewijer/investment-ledger/internal/api/request"
	"github.com/ndewijer/investment-ledger/internal/service"
)

// PortfolioHandler handles portfolio-related HTTP requests
type PortfolioHandler struct {
	portfolioService *service.PortfolioService
}

// NewPortfolioHandler creates a new PortfolioHandler
func NewPortfolioHandler(portfolioService *service.PortfolioService) *PortfolioHandler {
	return &PortfolioHandler{
		portfolioService: portfolioService,
	}
}

// Portfolio handles GET requests for the aggregated portfolio.
//
// Without a date window the materialized snapshot is served; with one, the window is
// aggregated on demand.
//
// Endpoint: GET /api/portfolio?class=fund&start_date=2024-01-01&end_date=2024-12-31
// Response: 200 OK with model.PortfolioSnapshot
// Error: 400 Bad Request for an unknown class or malformed dates
func (h *PortfolioHandler) Portfolio(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query, err := request.ParsePortfolioQuery(q.Get("class"), q.Get("start_date"), q.Get("end_date"))
	if err != nil {
		respondServiceError(w, r, "invalid portfolio query", err)
		return
	}

	snapshot, err := h.portfolioService.GetPortfolio(r.Context(), query)
	if err != nil {
		respondServiceError(w, r, "failed to retrieve portfolio", err)
		return
	}
	respondJSON(w, http.StatusOK, snapshot)
}

// Refresh handles POST requests forcing a portfolio refresh. With full=true every
// snapshot is dropped and recomputed from scratch.
//
// Endpoint: POST /api/portfolio/refresh?full=true
// Response: 200 OK with model.RefreshReport
func (h *PortfolioHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	refresh := h.portfolioService.Refresh
	if r.URL.Query().Get("full") == "true" {
		refresh = h.portfolioService.Rebuild
	}

	report, err := refresh(r.Context())
	if err != nil {
		respondServiceError(w, r, "failed to refresh portfolio", err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}
