package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ndewijer/investment-ledger/internal/api/request"
	"github.com/ndewijer/investment-ledger/internal/api/response"
	"github.com/ndewijer/investment-ledger/internal/apperrors"
	"github.com/ndewijer/investment-ledger/internal/service"
	"github.com/ndewijer/investment-ledger/internal/validation"
)

// ValuationHandler handles HTTP requests for valuation endpoints.
type ValuationHandler struct {
	valuationService *service.ValuationService
}

// NewValuationHandler creates a new ValuationHandler.
func NewValuationHandler(valuationService *service.ValuationService) *ValuationHandler {
	return &ValuationHandler{
		valuationService: valuationService,
	}
}

// Valuation handles GET requests for the aligned valuation of an asset, newest first.
//
// Endpoint: GET /api/assets/{assetId}/valuation?start_date=2024-01-01&end_date=2024-12-31
// Response: 200 OK with array of model.ValuationPoint
// Error: 400 Bad Request for malformed dates, 404 Not Found
func (h *ValuationHandler) Valuation(w http.ResponseWriter, r *http.Request) {
	from, err := queryDate(r, "start_date")
	if err != nil {
		respondServiceError(w, r, "invalid start_date", err)
		return
	}
	to, err := queryDate(r, "end_date")
	if err != nil {
		respondServiceError(w, r, "invalid end_date", err)
		return
	}
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		respondServiceError(w, r, "invalid date range", apperrors.ErrInvalidDateRange)
		return
	}

	points, err := h.valuationService.GetValuation(r.Context(), chi.URLParam(r, "assetId"), from, to)
	if err != nil {
		respondServiceError(w, r, "failed to retrieve valuation", err)
		return
	}
	respondJSON(w, http.StatusOK, points)
}

// PutValuation handles PUT requests from the valuation provider replacing the NAV series
// of an asset.
//
// Endpoint: PUT /api/assets/{assetId}/valuation
// Request: request.PutValuationRequest
// Response: 200 OK with the aligned series, newest first
// Error: 400 Bad Request for malformed points, 422 when a ledger date is missing from the series
func (h *ValuationHandler) PutValuation(w http.ResponseWriter, r *http.Request) {
	var req request.PutValuationRequest
	if !decodeBody(w, r, &req) {
		return
	}

	nav, err := req.NAV()
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid valuation series", err.Error())
		return
	}

	points, err := h.valuationService.PutValuation(r.Context(), chi.URLParam(r, "assetId"), nav)
	if err != nil {
		respondServiceError(w, r, "failed to store valuation", err)
		return
	}
	respondJSON(w, http.StatusOK, points)
}

func queryDate(r *http.Request, key string) (time.Time, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := validation.ParseTime(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s", apperrors.ErrInvalidDate, key)
	}
	return t, nil
}
