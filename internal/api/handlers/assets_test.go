package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ndewijer/investment-ledger/internal/api/handlers"
	"github.com/ndewijer/investment-ledger/internal/api/request"
	"github.com/ndewijer/investment-ledger/internal/api/response"
	"github.com/ndewijer/investment-ledger/internal/model"
	"github.com/ndewijer/investment-ledger/internal/testutil"
)

func newAssetHandler(t *testing.T, svcs *testutil.Services) *handlers.AssetHandler {
	t.Helper()
	return handlers.NewAssetHandler(svcs.Asset, svcs.Valuation)
}

func TestAssetHandler_Assets(t *testing.T) {
	t.Run("returns empty array when no assets exist", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := newAssetHandler(t, testutil.NewTestServices(t, db))

		req := httptest.NewRequest(http.MethodGet, "/api/assets", nil)
		w := httptest.NewRecorder()

		handler.Assets(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("Expected status 200, got %d", w.Code)
		}
		if ct := w.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("Expected Content-Type 'application/json', got '%s'", ct)
		}

		var resp []model.Asset
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if len(resp) != 0 {
			t.Errorf("Expected empty array, got %d items", len(resp))
		}
	})

	t.Run("filters by class", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := newAssetHandler(t, testutil.NewTestServices(t, db))
		fund := testutil.CreateAsset(t, db, model.ClassFund)
		testutil.CreateAsset(t, db, model.ClassStock)

		req := testutil.NewRequestWithQueryParams(http.MethodGet, "/api/assets", map[string]string{"class": model.ClassFund})
		w := httptest.NewRecorder()

		handler.Assets(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
		}

		var resp []model.Asset
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if len(resp) != 1 || resp[0].ID != fund.ID {
			t.Errorf("Expected only fund %s, got %+v", fund.ID, resp)
		}
	})

	t.Run("returns 400 for unknown class", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := newAssetHandler(t, testutil.NewTestServices(t, db))

		req := testutil.NewRequestWithQueryParams(http.MethodGet, "/api/assets", map[string]string{"class": "crypto"})
		w := httptest.NewRecorder()

		handler.Assets(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Code)
		}
	})
}

func TestAssetHandler_Asset(t *testing.T) {
	t.Run("returns asset", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := newAssetHandler(t, testutil.NewTestServices(t, db))
		asset := testutil.NewAsset().WithCode("VWRL").WithName("All World").Build(t, db)

		req := testutil.NewRequestWithURLParams(http.MethodGet, "/api/assets/"+asset.ID, map[string]string{"assetId": asset.ID})
		w := httptest.NewRecorder()

		handler.Asset(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", w.Code)
		}

		var resp model.Asset
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if resp.Code != "VWRL" || resp.Name != "All World" {
			t.Errorf("Expected VWRL/All World, got %s/%s", resp.Code, resp.Name)
		}
	})

	t.Run("returns 404 for unknown asset", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := newAssetHandler(t, testutil.NewTestServices(t, db))
		id := testutil.MakeID()

		req := testutil.NewRequestWithURLParams(http.MethodGet, "/api/assets/"+id, map[string]string{"assetId": id})
		w := httptest.NewRecorder()

		handler.Asset(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("Expected status 404, got %d", w.Code)
		}
	})
}

func TestAssetHandler_CreateAsset(t *testing.T) {
	t.Run("creates asset", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := newAssetHandler(t, testutil.NewTestServices(t, db))

		req := testutil.NewJSONRequestWithURLParams(t, http.MethodPost, "/api/assets",
			request.CreateAssetRequest{Class: model.ClassFund, Code: "110011", Name: "Growth Fund"}, nil)
		w := httptest.NewRecorder()

		handler.CreateAsset(w, req)

		if w.Code != http.StatusCreated {
			t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
		}

		var resp model.Asset
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if resp.ID == "" {
			t.Error("Expected generated ID")
		}
		testutil.AssertRowCount(t, db, "asset", 1)
	})

	t.Run("returns 400 with field errors", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := newAssetHandler(t, testutil.NewTestServices(t, db))

		req := testutil.NewJSONRequestWithURLParams(t, http.MethodPost, "/api/assets",
			request.CreateAssetRequest{Class: model.ClassFund}, nil)
		w := httptest.NewRecorder()

		handler.CreateAsset(w, req)

		if w.Code != http.StatusBadRequest {
			t.Fatalf("Expected status 400, got %d", w.Code)
		}

		var resp response.ErrorResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		fields, ok := resp.Details.(map[string]any)
		if !ok {
			t.Fatalf("Expected field map in details, got %T", resp.Details)
		}
		if _, ok := fields["code"]; !ok {
			t.Errorf("Expected error for field 'code', got %v", fields)
		}
	})

	t.Run("returns 400 for malformed JSON", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := newAssetHandler(t, testutil.NewTestServices(t, db))

		req := testutil.NewJSONRequestWithURLParams(t, http.MethodPost, "/api/assets", `{"class":`, nil)
		w := httptest.NewRecorder()

		handler.CreateAsset(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Code)
		}
	})

	t.Run("returns 409 for duplicate", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := newAssetHandler(t, testutil.NewTestServices(t, db))
		existing := testutil.NewAsset().WithClass(model.ClassStock).WithCode("AAPL").Build(t, db)

		req := testutil.NewJSONRequestWithURLParams(t, http.MethodPost, "/api/assets",
			request.CreateAssetRequest{Class: existing.Class, Code: existing.Code, Name: "Apple"}, nil)
		w := httptest.NewRecorder()

		handler.CreateAsset(w, req)

		if w.Code != http.StatusConflict {
			t.Errorf("Expected status 409, got %d", w.Code)
		}
	})
}

func TestAssetHandler_DeleteAsset(t *testing.T) {
	t.Run("deletes asset", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := newAssetHandler(t, testutil.NewTestServices(t, db))
		asset := testutil.CreateAsset(t, db, model.ClassFund)

		req := testutil.NewRequestWithURLParams(http.MethodDelete, "/api/assets/"+asset.ID, map[string]string{"assetId": asset.ID})
		w := httptest.NewRecorder()

		handler.DeleteAsset(w, req)

		if w.Code != http.StatusNoContent {
			t.Errorf("Expected status 204, got %d", w.Code)
		}
		if w.Body.Len() != 0 {
			t.Errorf("Expected empty body, got %q", w.Body.String())
		}
		testutil.AssertRowCount(t, db, "asset", 0)
	})

	t.Run("returns 404 for unknown asset", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := newAssetHandler(t, testutil.NewTestServices(t, db))
		id := testutil.MakeID()

		req := testutil.NewRequestWithURLParams(http.MethodDelete, "/api/assets/"+id, map[string]string{"assetId": id})
		w := httptest.NewRecorder()

		handler.DeleteAsset(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("Expected status 404, got %d", w.Code)
		}
	})
}

func TestAssetHandler_Summaries(t *testing.T) {
	t.Run("returns summary per asset", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svcs := testutil.NewTestServices(t, db)
		handler := newAssetHandler(t, svcs)
		asset := testutil.CreateAsset(t, db, model.ClassFund)
		testutil.CreateLedger(t, db, asset.ID, model.Buy(testutil.Day("2024-01-01"), 100, 10))
		nav := testutil.NAVSeries(testutil.Day("2024-01-01"), 3, func(int) float64 { return 12 })
		if _, err := svcs.Valuation.PutValuation(context.Background(), asset.ID, nav); err != nil {
			t.Fatalf("Failed to store valuation: %v", err)
		}

		req := httptest.NewRequest(http.MethodGet, "/api/assets/summary", nil)
		w := httptest.NewRecorder()

		handler.Summaries(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
		}

		var resp []model.AssetSummary
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if len(resp) != 1 {
			t.Fatalf("Expected 1 summary, got %d", len(resp))
		}
		if resp[0].InvestAmount != 100 {
			t.Errorf("Expected invest amount 100, got %v", resp[0].InvestAmount)
		}
	})

	t.Run("returns 400 for unknown class", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := newAssetHandler(t, testutil.NewTestServices(t, db))

		req := testutil.NewRequestWithQueryParams(http.MethodGet, "/api/assets/summary", map[string]string{"class": "crypto"})
		w := httptest.NewRecorder()

		handler.Summaries(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Code)
		}
	})
}
