package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ndewijer/investment-ledger/internal/api/request"
	"github.com/ndewijer/investment-ledger/internal/apperrors"
	"github.com/ndewijer/investment-ledger/internal/model"
	"github.com/ndewijer/investment-ledger/internal/service"
)

// LedgerHandler handles HTTP requests for ledger endpoints.
type LedgerHandler struct {
	ledgerService *service.LedgerService
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledgerService *service.LedgerService) *LedgerHandler {
	return &LedgerHandler{
		ledgerService: ledgerService,
	}
}

// PutLedgerResponse is the body of an accepted ledger. Warning is set when the pending
// tail row was dropped.
type PutLedgerResponse struct {
	*model.LedgerResponse
	Warning *LedgerErrorResponse `json:"warning,omitempty"`
}

// Ledger handles GET requests exporting the stored ledger with derived columns.
//
// Endpoint: GET /api/assets/{assetId}/ledger
// Response: 200 OK with model.LedgerResponse
// Error: 404 Not Found, 422 with the ledger attached when rates do not converge
func (h *LedgerHandler) Ledger(w http.ResponseWriter, r *http.Request) {
	resp, err := h.ledgerService.GetLedger(r.Context(), chi.URLParam(r, "assetId"))
	h.respond(w, r, resp, err)
}

// PutLedger handles PUT requests replacing the ledger of an asset.
//
// Endpoint: PUT /api/assets/{assetId}/ledger
// Request: request.PutLedgerRequest
// Response: 200 OK with PutLedgerResponse
// Error: 422 Unprocessable Entity with kind and locations when validation fails
func (h *LedgerHandler) PutLedger(w http.ResponseWriter, r *http.Request) {
	var req request.PutLedgerRequest
	if !decodeBody(w, r, &req) {
		return
	}

	resp, err := h.ledgerService.PutLedger(r.Context(), chi.URLParam(r, "assetId"), req)
	h.respond(w, r, resp, err)
}

func (h *LedgerHandler) respond(w http.ResponseWriter, r *http.Request, resp *model.LedgerResponse, err error) {
	if err == nil {
		respondJSON(w, http.StatusOK, PutLedgerResponse{LedgerResponse: resp})
		return
	}

	le, ok := apperrors.AsLedgerError(err)
	if !ok || resp == nil {
		respondServiceError(w, r, "failed to process ledger", err)
		return
	}

	body := ledgerErrorBody(le)
	if le.Soft {
		respondJSON(w, http.StatusOK, PutLedgerResponse{LedgerResponse: resp, Warning: &body})
		return
	}
	body.Ledger = resp
	respondJSON(w, http.StatusUnprocessableEntity, body)
}

// Rates handles GET requests for the per-event and average rates of an asset.
//
// Endpoint: GET /api/assets/{assetId}/rates
// Response: 200 OK with model.AssetRates
// Error: 404 Not Found, 422 when rates do not converge
func (h *LedgerHandler) Rates(w http.ResponseWriter, r *http.Request) {
	rates, err := h.ledgerService.GetRates(r.Context(), chi.URLParam(r, "assetId"))
	if err != nil {
		respondServiceError(w, r, "failed to compute rates", err)
		return
	}
	respondJSON(w, http.StatusOK, rates)
}
