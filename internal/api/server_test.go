package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/guarzo/markethub/internal/cache"
	"github.com/guarzo/markethub/internal/history"
	"github.com/guarzo/markethub/internal/model"
	"github.com/guarzo/markethub/internal/service"
	"github.com/guarzo/markethub/internal/store"
)

type fixedAcquirer struct{ price float64 }

func (a fixedAcquirer) Acquire(_ context.Context, _ string, _ model.Platform) model.PriceSample {
	return model.PriceSample{Price: a.price, Availability: true, Timestamp: time.Now().UTC(), Scraped: true}
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	svc := service.New(store.NewMemory(), cache.NewMemory(), history.NewLedger(),
		fixedAcquirer{price: 999.99}, 0, zerolog.Nop())
	srv := httptest.NewServer(NewServer(svc, zerolog.Nop()).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any, out any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("X-User-ID", "u1")
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
	}
	return resp
}

func createProduct(t *testing.T, srv *httptest.Server, price float64) string {
	t.Helper()
	var created struct {
		Product model.Listing `json:"product"`
	}
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/products", map[string]any{
		"name":         "Test Phone",
		"url":          "https://www.amazon.in/dp/B0TEST",
		"platform":     "Amazon",
		"currentPrice": price,
	}, &created)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	return created.Product.ID
}

func TestMissingUserIdentity(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/products")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestProductLifecycle(t *testing.T) {
	srv := newTestServer(t)
	id := createProduct(t, srv, 50000)

	var list service.ListResult
	if resp := doJSON(t, http.MethodGet, srv.URL+"/api/products", nil, &list); resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	if len(list.Listings) != 1 {
		t.Fatalf("got %d products, want 1", len(list.Listings))
	}

	var updated struct {
		Product model.Listing `json:"product"`
	}
	resp := doJSON(t, http.MethodPut, srv.URL+"/api/products/"+id,
		map[string]any{"targetPrice": 45000}, &updated)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d", resp.StatusCode)
	}
	if updated.Product.TargetPrice == nil || *updated.Product.TargetPrice != 45000 {
		t.Errorf("target price not applied: %+v", updated.Product.TargetPrice)
	}

	var checked struct {
		Product model.Listing     `json:"product"`
		Sample  model.PriceSample `json:"sample"`
	}
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/products/"+id+"/check", nil, &checked)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("check status = %d", resp.StatusCode)
	}
	if checked.Sample.Price != 999.99 {
		t.Errorf("sample price = %v, want 999.99", checked.Sample.Price)
	}
	if checked.Product.CurrentPrice != 999.99 {
		t.Errorf("current price = %v, want 999.99", checked.Product.CurrentPrice)
	}

	if resp := doJSON(t, http.MethodDelete, srv.URL+"/api/products/"+id, nil, nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	if resp := doJSON(t, http.MethodGet, srv.URL+"/api/products/"+id, nil, nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", resp.StatusCode)
	}
}

func TestCreateValidation(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/products", map[string]any{
		"name":         "Bad Target",
		"url":          "https://www.amazon.in/dp/B0BAD",
		"platform":     "Amazon",
		"currentPrice": 1000,
		"targetPrice":  1500,
	}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for target >= current", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/products", map[string]any{
		"name":     "Bad Platform",
		"url":      "https://example.com/x",
		"platform": "Wish",
	}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for unknown platform", resp.StatusCode)
	}
}

func TestAnalyticsEndpoints(t *testing.T) {
	srv := newTestServer(t)
	for _, price := range []float64{100, 200, 300} {
		createProduct(t, srv, price)
	}

	var ov struct {
		TotalProducts int     `json:"totalProducts"`
		AvgPrice      float64 `json:"avgPrice"`
		PriceAlerts   int     `json:"priceAlerts"`
	}
	if resp := doJSON(t, http.MethodGet, srv.URL+"/api/analytics/overview", nil, &ov); resp.StatusCode != http.StatusOK {
		t.Fatalf("overview status = %d", resp.StatusCode)
	}
	if ov.TotalProducts != 3 || ov.AvgPrice != 200 {
		t.Errorf("overview = %+v, want 3 products avg 200", ov)
	}

	var trends struct {
		Trends []model.TrendPoint `json:"trends"`
	}
	if resp := doJSON(t, http.MethodGet, srv.URL+"/api/analytics/trends?days=30", nil, &trends); resp.StatusCode != http.StatusOK {
		t.Fatalf("trends status = %d", resp.StatusCode)
	}
	if len(trends.Trends) != 1 {
		t.Errorf("trend points = %d, want 1", len(trends.Trends))
	}

	var perf struct {
		Performance []struct {
			Product string `json:"product"`
		} `json:"performance"`
	}
	if resp := doJSON(t, http.MethodGet, srv.URL+"/api/analytics/performance?limit=2", nil, &perf); resp.StatusCode != http.StatusOK {
		t.Fatalf("performance status = %d", resp.StatusCode)
	}
	if len(perf.Performance) != 2 {
		t.Errorf("performance entries = %d, want 2", len(perf.Performance))
	}
}

func TestHistoryEndpoint(t *testing.T) {
	srv := newTestServer(t)
	id := createProduct(t, srv, 50000)

	doJSON(t, http.MethodPost, srv.URL+"/api/products/"+id+"/check", nil, nil)

	var hist struct {
		History []history.Entry `json:"history"`
	}
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/analytics/history?ids="+id, nil, &hist)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("history status = %d", resp.StatusCode)
	}
	if len(hist.History) != 2 {
		t.Errorf("history entries = %d, want 2 (seed + check)", len(hist.History))
	}

	if resp := doJSON(t, http.MethodGet, srv.URL+"/api/analytics/history", nil, nil); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("history without ids = %d, want 400", resp.StatusCode)
	}
}
