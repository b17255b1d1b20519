// Package middleware provides HTTP middleware for request validation and processing.
package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ndewijer/investment-ledger/internal/api/response"
	"github.com/ndewijer/investment-ledger/internal/validation"
)

// ValidateAssetIDMiddleware validates that the assetId URL parameter is present and is a valid UUID.
// Returns 400 Bad Request if the asset ID is missing or invalid.
//
// Example usage in router:
//
//	r.Route("/{assetId}", func(r chi.Router) {
//	    r.Use(middleware.ValidateAssetIDMiddleware)
//	    r.Get("/ledger", handler.GetLedger)
//	})
func ValidateAssetIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assetID := chi.URLParam(r, "assetId")

		if assetID == "" {
			response.RespondError(w, http.StatusBadRequest, "asset ID is required", "")
			return
		}

		if err := validation.ValidateUUID(assetID); err != nil {
			response.RespondError(w, http.StatusBadRequest, "invalid asset ID format", err.Error())
			return
		}

		next.ServeHTTP(w, r)
	})
}
