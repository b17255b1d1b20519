package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/ndewijer/investment-ledger/internal/api/response"
	"github.com/ndewijer/investment-ledger/internal/apperrors"
	"github.com/ndewijer/investment-ledger/internal/validation"
)

// respondJSON sends a JSON response with the given status code
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	response.RespondJSON(w, status, data)
}

// LedgerErrorResponse is the body of a rejected ledger. Locations address cells of the
// submitted table so a client can highlight them.
type LedgerErrorResponse struct {
	Error     string           `json:"error"`
	Kind      string           `json:"kind"`
	Cause     string           `json:"cause,omitempty"`
	Message   string           `json:"message,omitempty"`
	Locations []apperrors.Rect `json:"locations,omitempty"`
	Soft      bool             `json:"soft,omitempty"`
	// Ledger carries the computed positions when only rate solving failed.
	Ledger any `json:"ledger,omitempty"`
}

func ledgerErrorBody(le *apperrors.LedgerError) LedgerErrorResponse {
	body := LedgerErrorResponse{
		Error:     le.Error(),
		Kind:      apperrors.KindName(le.Kind),
		Message:   le.Message,
		Locations: le.Locations,
		Soft:      le.Soft,
	}
	if le.Err != nil {
		body.Cause = le.Err.Error()
	}
	return body
}

// respondServiceError maps service errors to HTTP responses:
//   - ledger errors: 422 with kind and locations
//   - field validation and malformed parameters: 400
//   - missing asset or snapshot: 404
//   - duplicate asset: 409
//   - anything else: 500
func respondServiceError(w http.ResponseWriter, r *http.Request, message string, err error) {
	if le, ok := apperrors.AsLedgerError(err); ok {
		respondJSON(w, http.StatusUnprocessableEntity, ledgerErrorBody(le))
		return
	}

	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		response.RespondError(w, http.StatusBadRequest, "validation failed", verr.Fields)
	case errors.Is(err, apperrors.ErrAssetNotFound), errors.Is(err, apperrors.ErrSnapshotNotFound):
		response.RespondError(w, http.StatusNotFound, message, err.Error())
	case errors.Is(err, apperrors.ErrDuplicateAsset):
		response.RespondError(w, http.StatusConflict, message, err.Error())
	case errors.Is(err, apperrors.ErrInvalidAssetClass),
		errors.Is(err, apperrors.ErrInvalidDateRange),
		errors.Is(err, apperrors.ErrInvalidDate),
		errors.Is(err, apperrors.ErrInvalidUUID):
		response.RespondError(w, http.StatusBadRequest, message, err.Error())
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg(message)
		response.RespondError(w, http.StatusInternalServerError, message, err.Error())
	}
}

// decodeBody decodes a JSON request body into v, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return false
	}
	return true
}
