package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ndewijer/investment-ledger/internal/apperrors"
	"github.com/ndewijer/investment-ledger/internal/model"
	"github.com/ndewijer/investment-ledger/internal/validation"
)

// TestRespondJSON tests the respondJSON helper function.
// This is an internal test (package handlers, not handlers_test) because
// respondJSON is unexported.
func TestRespondJSON(t *testing.T) {
	t.Run("sets content-type and status code correctly", func(t *testing.T) {
		w := httptest.NewRecorder()
		data := map[string]string{"message": "success"}

		respondJSON(w, 200, data)

		if w.Code != 200 {
			t.Errorf("Expected status 200, got %d", w.Code)
		}

		if w.Header().Get("Content-Type") != "application/json" {
			t.Errorf("Expected Content-Type 'application/json', got '%s'", w.Header().Get("Content-Type"))
		}
	})

	t.Run("handles nil data without error", func(t *testing.T) {
		w := httptest.NewRecorder()

		respondJSON(w, 204, nil)

		if w.Code != 204 {
			t.Errorf("Expected status 204, got %d", w.Code)
		}
	})

	t.Run("handles un-encodable data gracefully", func(t *testing.T) {
		w := httptest.NewRecorder()

		// Channels cannot be JSON encoded
		data := map[string]interface{}{
			"channel": make(chan int),
		}

		// Should not panic, just log the error
		respondJSON(w, 200, data)

		// Status should still be set even if encoding fails
		if w.Code != 200 {
			t.Errorf("Expected status 200, got %d", w.Code)
		}

		// Content-Type should still be set
		if w.Header().Get("Content-Type") != "application/json" {
			t.Errorf("Expected Content-Type to be set")
		}
	})

	t.Run("encodes valid data successfully", func(t *testing.T) {
		w := httptest.NewRecorder()
		data := map[string]string{
			"name":  "test",
			"value": "data",
		}

		respondJSON(w, 200, data)

		if w.Body.Len() == 0 {
			t.Error("Expected response body to contain JSON data")
		}

		body := w.Body.String()
		if body == "" {
			t.Error("Expected non-empty response body")
		}
	})
}

// TestRespondServiceError tests the mapping of service errors to status codes.
//
// WHY: Clients branch on the status code. A ledger error must come back as 422 with
// the cells to highlight, and a wrapped sentinel must map the same as the bare one.
func TestRespondServiceError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"ledger error", apperrors.NewLedgerError(apperrors.ErrBusinessRule, apperrors.ErrOverselling, apperrors.Cell(model.ColSellShare, 3)), http.StatusUnprocessableEntity},
		{"field validation", &validation.Error{Fields: map[string]string{"code": "code is required"}}, http.StatusBadRequest},
		{"asset not found", apperrors.ErrAssetNotFound, http.StatusNotFound},
		{"wrapped not found", fmt.Errorf("loading: %w", apperrors.ErrAssetNotFound), http.StatusNotFound},
		{"duplicate", apperrors.ErrDuplicateAsset, http.StatusConflict},
		{"bad class", fmt.Errorf("%w: crypto", apperrors.ErrInvalidAssetClass), http.StatusBadRequest},
		{"unexpected", errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/api/assets", nil)

			respondServiceError(w, r, "request failed", tt.err)

			if w.Code != tt.status {
				t.Errorf("Expected %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
		})
	}

	t.Run("ledger error carries kind and locations", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPut, "/api/assets/x/ledger", nil)
		err := apperrors.NewLedgerError(apperrors.ErrBusinessRule, apperrors.ErrOverselling, apperrors.Cell(model.ColSellShare, 3))

		respondServiceError(w, r, "invalid ledger", err)

		var body LedgerErrorResponse
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if body.Kind != "business_rule" {
			t.Errorf("Expected kind 'business_rule', got '%s'", body.Kind)
		}
		if body.Cause != apperrors.ErrOverselling.Error() {
			t.Errorf("Expected cause %q, got %q", apperrors.ErrOverselling.Error(), body.Cause)
		}
		if len(body.Locations) != 1 || body.Locations[0] != apperrors.Cell(model.ColSellShare, 3) {
			t.Errorf("Unexpected locations %v", body.Locations)
		}
	})
}
