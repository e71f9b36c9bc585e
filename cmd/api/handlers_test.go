package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nemonet1337/medstock/pkg/inventory"
	"github.com/nemonet1337/medstock/pkg/inventory/storage"
)

var fixedNow = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

type testResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func seedItems() []inventory.InventoryItem {
	expiry := time.Date(2024, 6, 16, 0, 0, 0, 0, time.UTC)
	return []inventory.InventoryItem{
		{ItemCode: "MED-001", ItemName: "Paracetamol 500mg", Category: "Medicine", Quantity: 400, ReorderLevel: 100, UnitCost: decimal.RequireFromString("0.12"), ExpiryDate: &expiry, FacilityName: inventory.DefaultFacilityName},
		{ItemCode: "MED-002", ItemName: "Amoxicillin 250mg", Category: "Medicine", Quantity: 30, ReorderLevel: 50, UnitCost: decimal.RequireFromString("0.45"), FacilityName: inventory.DefaultFacilityName},
		{ItemCode: "PPE-001", ItemName: "Surgical Gloves (M)", Category: "PPE", Quantity: 0, ReorderLevel: 200, UnitCost: decimal.RequireFromString("0.08"), FacilityName: inventory.DefaultFacilityName},
		{ItemCode: "PPE-002", ItemName: "Surgical Gloves (L)", Category: "PPE", Quantity: 1200, ReorderLevel: 200, UnitCost: decimal.RequireFromString("0.08"), FacilityName: inventory.DefaultFacilityName},
	}
}

func newTestServer(t *testing.T) http.Handler {
	t.Helper()

	registry := prometheus.NewRegistry()
	engine := inventory.NewEngine(
		storage.NewMemoryStorage(seedItems()...),
		nil,
		inventory.NewMetrics(registry),
		zap.NewNop(),
		inventory.DefaultConfig(),
	)
	handlers := NewHandlers(engine, engine.Config(), zap.NewNop())
	handlers.clock = func() time.Time { return fixedNow }

	return setupRouter(handlers, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), true)
}

func doRequest(t *testing.T, h http.Handler, method, target string, body interface{}) (*httptest.ResponseRecorder, testResponse) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp testResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestHealthCheck(t *testing.T) {
	rec, resp := doRequest(t, newTestServer(t), "GET", "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
}

func TestListItems_Search(t *testing.T) {
	rec, resp := doRequest(t, newTestServer(t), "GET", "/api/v1/items?q=GLOVE", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var page ItemPage
	require.NoError(t, json.Unmarshal(resp.Data, &page))
	assert.Equal(t, 2, page.TotalMatches)
	assert.Equal(t, 1, page.TotalPages)
	assert.Equal(t, []int{1}, page.PageLinks)
	require.Len(t, page.Items, 2)
	assert.Equal(t, inventory.StatusOutOfStock, page.Items[0].Status)
	assert.Equal(t, "In Stock", page.Items[1].StatusLabel)
}

func TestListItems_StatusFilter(t *testing.T) {
	rec, resp := doRequest(t, newTestServer(t), "GET", "/api/v1/items?status=Near+Expiry&as_of=2024-06-01", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var page ItemPage
	require.NoError(t, json.Unmarshal(resp.Data, &page))
	require.Equal(t, 1, page.TotalMatches)
	assert.Equal(t, "MED-001", page.Items[0].ItemCode)
	require.NotNil(t, page.Items[0].DaysUntilExpiry)
	assert.Equal(t, 15, *page.Items[0].DaysUntilExpiry)
}

func TestListItems_AsOfShiftsWindow(t *testing.T) {
	// 2024-05-01時点では期限まで46日
	rec, resp := doRequest(t, newTestServer(t), "GET", "/api/v1/items?status=near_expiry&as_of=2024-05-01", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var page ItemPage
	require.NoError(t, json.Unmarshal(resp.Data, &page))
	assert.True(t, page.NoResults)
}

func TestListItems_HugePageSize(t *testing.T) {
	target := fmt.Sprintf("/api/v1/items?page_size=%d", math.MaxInt)
	rec, resp := doRequest(t, newTestServer(t), "GET", target, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var page ItemPage
	require.NoError(t, json.Unmarshal(resp.Data, &page))
	assert.Equal(t, 4, page.TotalMatches)
	assert.Equal(t, 1, page.TotalPages)
	assert.Len(t, page.Items, 4)
	assert.Equal(t, []int{1}, page.PageLinks)
}

func TestListItems_NoResults(t *testing.T) {
	rec, resp := doRequest(t, newTestServer(t), "GET", "/api/v1/items?q=syringe&page=4", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var page ItemPage
	require.NoError(t, json.Unmarshal(resp.Data, &page))
	assert.True(t, page.NoResults)
	assert.Equal(t, 0, page.TotalPages)
	assert.Equal(t, 1, page.Page)
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)
}

func TestListItems_BadParameters(t *testing.T) {
	h := newTestServer(t)

	for _, target := range []string{
		"/api/v1/items?status=expired",
		"/api/v1/items?page=two",
		"/api/v1/items?as_of=01/06/2024",
	} {
		rec, resp := doRequest(t, h, "GET", target, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.False(t, resp.Success, target)
	}
}

func TestGetItem(t *testing.T) {
	h := newTestServer(t)

	rec, resp := doRequest(t, h, "GET", "/api/v1/items/Central%20Warehouse/MED-002", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var view inventory.ItemView
	require.NoError(t, json.Unmarshal(resp.Data, &view))
	assert.Equal(t, inventory.StatusLowStock, view.Status)
	assert.Equal(t, "13.5", view.LineValue.String())

	rec, _ = doRequest(t, h, "GET", "/api/v1/items/Central%20Warehouse/NOPE", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpsertItems(t *testing.T) {
	h := newTestServer(t)

	body := map[string]interface{}{
		"items": []map[string]interface{}{
			{"item_code": "SYR-001", "item_name": "Syringe 5ml", "category": "Consumables", "quantity": 500, "reorder_level": 100, "unit_cost": "0.05", "expiry_date": "0000-00-00"},
			{"item_code": "SYR-002", "item_name": "Syringe 10ml", "quantity": 50, "reorder_level": 100, "unit_cost": 0.07, "expiry_date": "2024-06-20"},
		},
	}
	rec, resp := doRequest(t, h, "PUT", "/api/v1/items", body)
	require.Equal(t, http.StatusOK, rec.Code, resp.Error)

	rec, resp = doRequest(t, h, "GET", "/api/v1/items/Central%20Warehouse/SYR-001", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view inventory.ItemView
	require.NoError(t, json.Unmarshal(resp.Data, &view))
	assert.Nil(t, view.ExpiryDate)
	assert.Equal(t, inventory.StatusInStock, view.Status)
}

func TestUpsertItems_Rejected(t *testing.T) {
	h := newTestServer(t)

	tests := []struct {
		name string
		body interface{}
		code int
	}{
		{"空", map[string]interface{}{"items": []interface{}{}}, http.StatusBadRequest},
		{"負の数量", map[string]interface{}{"items": []map[string]interface{}{
			{"item_code": "X", "item_name": "X", "quantity": -1},
		}}, http.StatusBadRequest},
		{"重複", map[string]interface{}{"items": []map[string]interface{}{
			{"item_code": "X", "item_name": "X"},
			{"item_code": "X", "item_name": "Y"},
		}}, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := doRequest(t, h, "PUT", "/api/v1/items", tt.body)
			assert.Equal(t, tt.code, rec.Code)
			assert.False(t, resp.Success)
		})
	}

	// 何も書き込まれていない
	rec, _ := doRequest(t, h, "GET", "/api/v1/items/Central%20Warehouse/X", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteItem(t *testing.T) {
	h := newTestServer(t)

	rec, _ := doRequest(t, h, "DELETE", "/api/v1/items/Central%20Warehouse/PPE-002", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = doRequest(t, h, "DELETE", "/api/v1/items/Central%20Warehouse/PPE-002", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDashboard(t *testing.T) {
	rec, resp := doRequest(t, newTestServer(t), "GET", "/api/v1/dashboard?preview=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var dashboard DashboardResponse
	require.NoError(t, json.Unmarshal(resp.Data, &dashboard))
	assert.Equal(t, 4, dashboard.TotalItems)
	assert.Equal(t, "2024-06-01", dashboard.AsOf)
	assert.Equal(t, "157.50", dashboard.TotalValue)
	assert.Equal(t, 1, dashboard.Counts[inventory.StatusOutOfStock])
	assert.Equal(t, 1, dashboard.Counts[inventory.StatusLowStock])
	assert.Equal(t, 1, dashboard.Counts[inventory.StatusNearExpiry])
	assert.Equal(t, 1, dashboard.Counts[inventory.StatusInStock])
	assert.Equal(t, "Out of Stock", dashboard.Labels[inventory.StatusOutOfStock])
	assert.Len(t, dashboard.Previews[inventory.StatusInStock], 1)
}

func TestMovements(t *testing.T) {
	h := newTestServer(t)

	body := map[string]interface{}{
		"item_code":    "MED-001",
		"type":         "dispatch",
		"delta":        -20,
		"counterparty": "Ward 3",
	}
	req := httptest.NewRequest("POST", "/api/v1/movements", bytes.NewReader(mustJSON(t, body)))
	req.Header.Set("X-User-ID", "pharmacist-01")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, resp := doRequest(t, h, "GET", "/api/v1/movements/Central%20Warehouse/MED-001", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var movements []inventory.StockMovement
	require.NoError(t, json.Unmarshal(resp.Data, &movements))
	require.Len(t, movements, 1)
	assert.Equal(t, "pharmacist-01", movements[0].CreatedBy)
	assert.Equal(t, int64(-20), movements[0].Delta)

	rec, _ = doRequest(t, h, "POST", "/api/v1/movements", map[string]interface{}{"item_code": "MED-001", "type": "theft", "delta": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScanAlerts(t *testing.T) {
	rec, resp := doRequest(t, newTestServer(t), "POST", "/api/v1/alerts/scan", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result inventory.AlertScanResult
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	assert.Equal(t, 4, result.Scanned)
	assert.Len(t, result.Events, 3)
	assert.Equal(t, 0, result.Raised)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(t)
	doRequest(t, h, "GET", "/api/v1/dashboard", nil)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "medstock_items")
}

func TestCORSPreflight(t *testing.T) {
	req := httptest.NewRequest("OPTIONS", "/health", nil)
	rec := httptest.NewRecorder()
	newTestServer(t).ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"品目なし", fmt.Errorf("取得: %w", inventory.ErrItemNotFound), http.StatusNotFound},
		{"品目重複", inventory.ErrDuplicateItem, http.StatusConflict},
		{"移動記録重複", fmt.Errorf("移動記録 x: %w", inventory.ErrDuplicateMovement), http.StatusConflict},
		{"検証エラー", inventory.NewValidationError("quantity", "負の値", "-1"), http.StatusBadRequest},
		{"その他", fmt.Errorf("接続失敗"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusCode(tt.err))
		})
	}
}
