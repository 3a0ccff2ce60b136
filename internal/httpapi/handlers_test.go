package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"warungpos/backend/internal/cache"
	"warungpos/backend/internal/domain"
	"warungpos/backend/internal/service"
	"warungpos/backend/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store and a real Service so
// handler tests exercise the complete request path.
func newTestAPI(t *testing.T) (*API, *memory.Store) {
	t.Helper()

	repo := memory.New()
	svc := service.New(repo, cache.NoopReportCache{}, 5*time.Second, 10)
	return New(svc, "*"), repo
}

func doJSON(t *testing.T, handler http.Handler, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	api, _ := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleSales_Created(t *testing.T) {
	api, repo := newTestAPI(t)
	handler := api.Handler()

	customer, err := repo.CreateCustomer(context.Background(), domain.Customer{Name: "BUDI"})
	if err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	product, err := repo.CreateProduct(context.Background(), domain.Product{
		Code: "PRD-NASI", Name: "NASI GORENG", PriceCents: 13000, Status: "Active", Stock: 10,
	})
	if err != nil {
		t.Fatalf("seed product: %v", err)
	}

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/sales", map[string]any{
		"customer_id": customer.ID,
		"sale_date":   "2024-08-01T10:00:00Z",
		"items": []map[string]any{
			{"product_id": product.ID, "qty": 2, "price_cents": 13000},
			{"product_id": product.ID, "qty": 999, "price_cents": 13000},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var result domain.SaleResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if result.ItemsTotal != 2 {
		t.Fatalf("expected items total 2, got %d", result.ItemsTotal)
	}
	if len(result.Items) != 2 || result.Items[1].Status != domain.ItemStatusFailed {
		t.Fatalf("expected second item Failed, got %+v", result.Items)
	}
}

func TestHandleSales_UnknownProductReturnsErrorList(t *testing.T) {
	api, repo := newTestAPI(t)
	handler := api.Handler()

	customer, err := repo.CreateCustomer(context.Background(), domain.Customer{Name: "SITI"})
	if err != nil {
		t.Fatalf("seed customer: %v", err)
	}

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/sales", map[string]any{
		"customer_id": customer.ID,
		"items": []map[string]any{
			{"product_id": "prd-missing", "qty": 1, "price_cents": 1000},
		},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	var body struct {
		Errors []domain.SaleItemError `json:"errors"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Errors) != 1 || body.Errors[0].ProductID != "prd-missing" {
		t.Fatalf("unexpected error payload: %+v", body)
	}
}

func TestHandleSales_UnknownCustomer(t *testing.T) {
	api, _ := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/sales", map[string]any{
		"customer_id": "cus-missing",
		"items":       []map[string]any{},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] != "Customer not found" {
		t.Fatalf("expected customer-not-found message, got %v", body["error"])
	}
}

func TestHandleTransactionsReport_InvalidRange(t *testing.T) {
	api, _ := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/reports/transactions?period_start=2024-08-01", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for half-open range, got %d", rec.Code)
	}
}

func TestHandleTransactionsReport_Paging(t *testing.T) {
	api, repo := newTestAPI(t)
	handler := api.Handler()

	customer, err := repo.CreateCustomer(context.Background(), domain.Customer{Name: "BUDI"})
	if err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	product, err := repo.CreateProduct(context.Background(), domain.Product{
		Code: "PRD-NASI", Name: "NASI GORENG", PriceCents: 13000, Status: "Active", Stock: 100,
	})
	if err != nil {
		t.Fatalf("seed product: %v", err)
	}

	for i := 0; i < 2; i++ {
		rec := doJSON(t, handler, http.MethodPost, "/api/v1/sales", map[string]any{
			"customer_id": customer.ID,
			"sale_date":   "2024-08-01T10:00:00Z",
			"items": []map[string]any{
				{"product_id": product.ID, "qty": 1, "price_cents": 13000},
			},
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("seed sale failed: %d", rec.Code)
		}
	}

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/reports/transactions?period_start=2024-08-01&period_end=2024-08-01&page_size=10", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var page domain.TransactionPage
	if err := json.NewDecoder(rec.Body).Decode(&page); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if page.TotalData != 2 || page.TotalPages != 1 || len(page.Rows) != 2 {
		t.Fatalf("expected 2 rows on one page, got %+v", page)
	}
}

func TestHandleCustomerSearch_RejectsBadKeyword(t *testing.T) {
	api, _ := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/customers/search?customer_name=%27%3B+DROP", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleProductByCode(t *testing.T) {
	api, repo := newTestAPI(t)
	handler := api.Handler()

	if _, err := repo.CreateProduct(context.Background(), domain.Product{
		Code: "PRD-HOLD", Name: "RENDANG", PriceCents: 22000, Status: "Hold", Stock: 0,
	}); err != nil {
		t.Fatalf("seed product: %v", err)
	}

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/products/by-code?product_code=PRD-HOLD", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var lookup domain.ProductLookupResponse
	if err := json.NewDecoder(rec.Body).Decode(&lookup); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(lookup.Messages) != 1 || lookup.Messages[0] != "Product is on hold and out of stock." {
		t.Fatalf("unexpected messages: %v", lookup.Messages)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/products/by-code?product_code=PRD-NOPE", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown code, got %d", rec.Code)
	}
}

func TestHandleCustomers_CreateAndDelete(t *testing.T) {
	api, _ := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/customers", map[string]any{"name": "BUDI"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var created domain.Customer
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected generated customer id")
	}

	rec = doJSON(t, handler, http.MethodDelete, "/api/v1/customers/"+created.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on delete, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/customers/"+created.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestHandleCustomersByIDs(t *testing.T) {
	api, repo := newTestAPI(t)
	handler := api.Handler()

	first, err := repo.CreateCustomer(context.Background(), domain.Customer{Name: "BUDI"})
	if err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	second, err := repo.CreateCustomer(context.Background(), domain.Customer{Name: "SITI"})
	if err != nil {
		t.Fatalf("seed customer: %v", err)
	}

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/customers/by-ids?ids="+first.ID+","+second.ID+",cus-missing", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body struct {
		Customers []domain.Customer `json:"customers"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Customers) != 2 {
		t.Fatalf("expected unknown id to be skipped, got %d customers", len(body.Customers))
	}
}

func TestHandleMethodNotAllowed(t *testing.T) {
	api, _ := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodDelete, "/api/v1/sales", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
