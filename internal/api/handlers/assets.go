package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ndewijer/investment-ledger/internal/api/request"
	"github.com/ndewijer/investment-ledger/internal/service"
)

// AssetHandler handles HTTP requests for asset endpoints.
type AssetHandler struct {
	assetService     *service.AssetService
	valuationService *service.ValuationService
}

// NewAssetHandler creates a new AssetHandler.
func NewAssetHandler(assetService *service.AssetService, valuationService *service.ValuationService) *AssetHandler {
	return &AssetHandler{
		assetService:     assetService,
		valuationService: valuationService,
	}
}

// Assets handles GET requests listing assets, optionally filtered by class.
//
// Endpoint: GET /api/assets?class=fund
// Response: 200 OK with array of model.Asset
// Error: 400 Bad Request for an unknown class
func (h *AssetHandler) Assets(w http.ResponseWriter, r *http.Request) {
	assets, err := h.assetService.GetAssets(r.Context(), r.URL.Query().Get("class"))
	if err != nil {
		respondServiceError(w, r, "failed to retrieve assets", err)
		return
	}
	respondJSON(w, http.StatusOK, assets)
}

// Summaries handles GET requests for the per-asset overview.
//
// Endpoint: GET /api/assets/summary?class=fund
// Response: 200 OK with array of model.AssetSummary, largest holding first
func (h *AssetHandler) Summaries(w http.ResponseWriter, r *http.Request) {
	class := r.URL.Query().Get("class")
	if _, err := h.assetService.GetAssets(r.Context(), class); err != nil {
		respondServiceError(w, r, "failed to retrieve asset summaries", err)
		return
	}

	summaries, err := h.valuationService.GetSummaries(r.Context(), class)
	if err != nil {
		respondServiceError(w, r, "failed to retrieve asset summaries", err)
		return
	}
	respondJSON(w, http.StatusOK, summaries)
}

// Asset handles GET requests for a single asset.
//
// Endpoint: GET /api/assets/{assetId}
// Response: 200 OK with model.Asset
// Error: 404 Not Found
func (h *AssetHandler) Asset(w http.ResponseWriter, r *http.Request) {
	asset, err := h.assetService.GetAsset(r.Context(), chi.URLParam(r, "assetId"))
	if err != nil {
		respondServiceError(w, r, "failed to retrieve asset", err)
		return
	}
	respondJSON(w, http.StatusOK, asset)
}

// Summary handles GET requests for the overview row of one asset.
//
// Endpoint: GET /api/assets/{assetId}/summary
// Response: 200 OK with model.AssetSummary
// Error: 404 Not Found, 422 when the current rate does not converge
func (h *AssetHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.valuationService.GetSummary(r.Context(), chi.URLParam(r, "assetId"))
	if err != nil {
		respondServiceError(w, r, "failed to summarize asset", err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// CreateAsset handles POST requests registering an asset.
//
// Endpoint: POST /api/assets
// Request: request.CreateAssetRequest
// Response: 201 Created with model.Asset
// Error: 400 Bad Request on validation failure, 409 Conflict on duplicate class and code
func (h *AssetHandler) CreateAsset(w http.ResponseWriter, r *http.Request) {
	var req request.CreateAssetRequest
	if !decodeBody(w, r, &req) {
		return
	}

	asset, err := h.assetService.CreateAsset(r.Context(), req)
	if err != nil {
		respondServiceError(w, r, "failed to create asset", err)
		return
	}
	respondJSON(w, http.StatusCreated, asset)
}

// DeleteAsset handles DELETE requests removing an asset with everything stored for it.
//
// Endpoint: DELETE /api/assets/{assetId}
// Response: 204 No Content
// Error: 404 Not Found
func (h *AssetHandler) DeleteAsset(w http.ResponseWriter, r *http.Request) {
	if err := h.assetService.DeleteAsset(r.Context(), chi.URLParam(r, "assetId")); err != nil {
		respondServiceError(w, r, "failed to delete asset", err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}
