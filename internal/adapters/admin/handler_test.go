package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pharmacore/internal/core"
	blobmemory "pharmacore/internal/infra/blob/memory"
	"pharmacore/internal/infra/persistence/memory"
	"pharmacore/pkg/domain"
)

func newTestHandler(t *testing.T) (*Handler, *core.Service) {
	t.Helper()
	store := memory.NewStore(core.NewDefaultRulesEngine())
	service := core.NewService(store)
	handler := NewHandler(service, blobmemory.New(), nil)
	return handler, service
}

func doJSON(t *testing.T, h http.Handler, method, target string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body %s)", err, rec.Body.String())
	}
}

func seedProducts(t *testing.T, service *core.Service, n int) []core.Product {
	t.Helper()
	products := make([]core.Product, 0, n)
	for i := 0; i < n; i++ {
		product, _, err := service.CreateProduct(context.Background(), core.Product{
			SKU:           fmt.Sprintf("SKU-%02d", i),
			Name:          fmt.Sprintf("Product %02d", i),
			Category:      "analgesics",
			StockQuantity: 50,
		})
		if err != nil {
			t.Fatalf("seed product %d: %v", i, err)
		}
		products = append(products, product)
	}
	return products
}

type listResponse[T any] struct {
	Data []T      `json:"data"`
	Meta listMeta `json:"meta"`
}

func TestListProductsPaginates(t *testing.T) {
	handler, service := newTestHandler(t)
	seedProducts(t, service, 45)

	rec := doJSON(t, handler, http.MethodGet, "/api/admin/products?page=3&page_size=20", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var resp listResponse[core.Product]
	decodeResponse(t, rec, &resp)
	if resp.Meta.Total != 45 || resp.Meta.Page != 3 || resp.Meta.PageSize != 20 {
		t.Fatalf("unexpected meta: %+v", resp.Meta)
	}
	if len(resp.Data) != 5 {
		t.Fatalf("expected 5 items on the last page, got %d", len(resp.Data))
	}
}

func TestListProductsPagePastEnd(t *testing.T) {
	handler, service := newTestHandler(t)
	seedProducts(t, service, 3)

	rec := doJSON(t, handler, http.MethodGet, "/api/admin/products?page=9", nil, nil)
	var resp listResponse[core.Product]
	decodeResponse(t, rec, &resp)
	if len(resp.Data) != 0 {
		t.Fatalf("expected empty page, got %d items", len(resp.Data))
	}
	if resp.Meta.Total != 3 {
		t.Fatalf("expected real total on empty page, got %+v", resp.Meta)
	}
}

func TestListProductsFilters(t *testing.T) {
	handler, service := newTestHandler(t)
	ctx := context.Background()
	if _, _, err := service.CreateProduct(ctx, core.Product{SKU: "PARA-500", Name: "Paracetamol", StockQuantity: 0}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, _, err := service.CreateProduct(ctx, core.Product{SKU: "IBU-200", Name: "Ibuprofen", StockQuantity: 80}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec := doJSON(t, handler, http.MethodGet, "/api/admin/products?stock_status=OUT_OF_STOCK", nil, nil)
	var resp listResponse[core.Product]
	decodeResponse(t, rec, &resp)
	if len(resp.Data) != 1 || resp.Data[0].SKU != "PARA-500" {
		t.Fatalf("unexpected filter result: %+v", resp.Data)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/admin/products?search=ibupro", nil, nil)
	decodeResponse(t, rec, &resp)
	if len(resp.Data) != 1 || resp.Data[0].SKU != "IBU-200" {
		t.Fatalf("case-insensitive search failed: %+v", resp.Data)
	}
}

func TestListOrdersRejectsUnknownStatusFilter(t *testing.T) {
	handler, _ := newTestHandler(t)
	rec := doJSON(t, handler, http.MethodGet, "/api/admin/orders?status=TELEPORTED", nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", rec.Code)
	}
}

func TestListOrdersStatusAliasFilter(t *testing.T) {
	handler, service := newTestHandler(t)
	ctx := context.Background()
	order, _, err := service.CreateOrder(ctx, core.Order{Number: "ORD-1", CustomerID: "c1"})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, _, err := service.CreateOrder(ctx, core.Order{Number: "ORD-2", CustomerID: "c1"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, _, err := service.CancelOrder(ctx, order.ID, "duplicate"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	rec := doJSON(t, handler, http.MethodGet, "/api/admin/orders?status=CANCELED", nil, nil)
	var resp listResponse[core.Order]
	decodeResponse(t, rec, &resp)
	if len(resp.Data) != 1 || resp.Data[0].Number != "ORD-1" {
		t.Fatalf("alias status filter failed: %+v", resp.Data)
	}
}

func TestGetMissingProductReturns404(t *testing.T) {
	handler, _ := newTestHandler(t)
	rec := doJSON(t, handler, http.MethodGet, "/api/admin/products/nope", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestUpdateStock(t *testing.T) {
	handler, service := newTestHandler(t)
	product := seedProducts(t, service, 1)[0]

	rec := doJSON(t, handler, http.MethodPut, "/api/admin/products/"+product.ID+"/stock",
		map[string]any{"stock_quantity": 5, "actor": "admin"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var updated core.Product
	decodeResponse(t, rec, &updated)
	if updated.StockQuantity != 5 || updated.StockStatus != domain.StockLowStock {
		t.Fatalf("unexpected product: %+v", updated)
	}
}

func TestUpdateStockMissingProductReturns404(t *testing.T) {
	handler, _ := newTestHandler(t)

	rec := doJSON(t, handler, http.MethodPut, "/api/admin/products/nope/stock",
		map[string]any{"stock_quantity": 5, "actor": "admin"}, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown product, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRouteRequiresSegmentBoundary(t *testing.T) {
	handler, service := newTestHandler(t)
	seedProducts(t, service, 1)

	for _, target := range []string{
		"/api/admin/productsxyz",
		"/api/admin/ordersarchive",
		"/api/orders-legacy",
	} {
		rec := doJSON(t, handler, http.MethodGet, target, nil, nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404 for %s, got %d", target, rec.Code)
		}
	}
}

func TestUpdateStockRequiresQuantity(t *testing.T) {
	handler, service := newTestHandler(t)
	product := seedProducts(t, service, 1)[0]

	rec := doJSON(t, handler, http.MethodPut, "/api/admin/products/"+product.ID+"/stock",
		map[string]any{"actor": "admin"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing stock_quantity, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestUpdateStockNegativeBlocked(t *testing.T) {
	handler, service := newTestHandler(t)
	product := seedProducts(t, service, 1)[0]

	rec := doJSON(t, handler, http.MethodPut, "/api/admin/products/"+product.ID+"/stock",
		map[string]any{"stock_quantity": -1}, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for negative stock, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Error      string   `json:"error"`
		Violations []string `json:"violations"`
	}
	decodeResponse(t, rec, &body)
	if len(body.Violations) == 0 {
		t.Fatalf("expected violations in response, got %+v", body)
	}
}

func fetchCSRFToken(t *testing.T, handler http.Handler, resource string) string {
	t.Helper()
	rec := doJSON(t, handler, http.MethodGet, "/api/"+resource+"/csrf", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("csrf fetch: %d", rec.Code)
	}
	var body struct {
		Token string `json:"token"`
	}
	decodeResponse(t, rec, &body)
	if body.Token == "" {
		t.Fatal("expected non-empty token")
	}
	return body.Token
}

func TestOrderTransitionRequiresCSRF(t *testing.T) {
	handler, service := newTestHandler(t)
	order, _, err := service.CreateOrder(context.Background(), core.Order{Number: "ORD-1", CustomerID: "c1"})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec := doJSON(t, handler, http.MethodPatch, "/api/orders/"+order.ID,
		map[string]any{"status": "PROCESSING"}, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without token, got %d", rec.Code)
	}

	token := fetchCSRFToken(t, handler, "orders")
	rec = doJSON(t, handler, http.MethodPatch, "/api/orders/"+order.ID,
		map[string]any{"status": "PROCESSING"}, map[string]string{"X-CSRF-Token": token})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d: %s", rec.Code, rec.Body.String())
	}
	var updated core.Order
	decodeResponse(t, rec, &updated)
	if updated.Status != domain.OrderProcessing {
		t.Fatalf("expected PROCESSING, got %s", updated.Status)
	}

	// Tokens are single use.
	rec = doJSON(t, handler, http.MethodPatch, "/api/orders/"+order.ID,
		map[string]any{"status": "READY"}, map[string]string{"X-CSRF-Token": token})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected replay to be rejected, got %d", rec.Code)
	}
}

func TestOrderTransitionSkipBlocked(t *testing.T) {
	handler, service := newTestHandler(t)
	order, _, err := service.CreateOrder(context.Background(), core.Order{Number: "ORD-1", CustomerID: "c1"})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	token := fetchCSRFToken(t, handler, "orders")
	rec := doJSON(t, handler, http.MethodPatch, "/api/orders/"+order.ID,
		map[string]any{"status": "DISPATCHED"}, map[string]string{"X-CSRF-Token": token})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for skipped stage, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestPrescriptionTransitionWithAliasStatus(t *testing.T) {
	handler, service := newTestHandler(t)
	prescription, _, err := service.CreatePrescription(context.Background(), core.Prescription{CustomerID: "c1"})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	token := fetchCSRFToken(t, handler, "prescriptions")
	rec := doJSON(t, handler, http.MethodPatch, "/api/prescriptions/"+prescription.ID,
		map[string]any{
			"status":                "AWAITING_CLARIFICATION",
			"clarification_request": "please send a sharper photo",
			"reviewed_by":           "pharmacist-1",
		}, map[string]string{"X-CSRF-Token": token})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var updated core.Prescription
	decodeResponse(t, rec, &updated)
	if updated.Status != domain.PrescriptionClarification {
		t.Fatalf("expected NEEDS_CLARIFICATION, got %s", updated.Status)
	}
	if updated.ClarificationRequest == nil || *updated.ClarificationRequest == "" {
		t.Fatal("expected clarification request recorded")
	}
}

func TestPrescriptionRejectWithoutReason(t *testing.T) {
	handler, service := newTestHandler(t)
	prescription, _, err := service.CreatePrescription(context.Background(), core.Prescription{CustomerID: "c1"})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	token := fetchCSRFToken(t, handler, "prescriptions")
	rec := doJSON(t, handler, http.MethodPatch, "/api/prescriptions/"+prescription.ID,
		map[string]any{"status": "REJECTED"}, map[string]string{"X-CSRF-Token": token})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for missing reason, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestPrescriptionUnknownStatusRejected(t *testing.T) {
	handler, service := newTestHandler(t)
	prescription, _, err := service.CreatePrescription(context.Background(), core.Prescription{CustomerID: "c1"})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	token := fetchCSRFToken(t, handler, "prescriptions")
	rec := doJSON(t, handler, http.MethodPatch, "/api/prescriptions/"+prescription.ID,
		map[string]any{"status": "SHIPPED"}, map[string]string{"X-CSRF-Token": token})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestDashboard(t *testing.T) {
	handler, service := newTestHandler(t)
	ctx := context.Background()
	if _, _, err := service.CreateProduct(ctx, core.Product{SKU: "A", Name: "A", StockQuantity: 0}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, _, err := service.CreateOrder(ctx, core.Order{Number: "ORD-1", CustomerID: "c1"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec := doJSON(t, handler, http.MethodGet, "/api/admin/dashboard", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var summary core.DashboardSummary
	decodeResponse(t, rec, &summary)
	if summary.TotalProducts != 1 || summary.OutOfStockProducts != 1 {
		t.Fatalf("unexpected product counts: %+v", summary)
	}
	if summary.TotalOrders != 1 || summary.ActiveOrders != 1 {
		t.Fatalf("unexpected order counts: %+v", summary)
	}
}

func TestPrescriptionFileFlow(t *testing.T) {
	handler, service := newTestHandler(t)
	prescription, _, err := service.CreatePrescription(context.Background(), core.Prescription{CustomerID: "c1"})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	// Request an upload grant. The memory blob driver cannot presign, so the
	// grant points at the direct upload route.
	rec := doJSON(t, handler, http.MethodPost, "/api/prescriptions/"+prescription.ID+"/files",
		map[string]any{"file_name": "scan.png", "content_type": "image/png", "size": 4}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("grant: %d %s", rec.Code, rec.Body.String())
	}
	var grant struct {
		Key       string `json:"key"`
		UploadURL string `json:"upload_url"`
		Direct    bool   `json:"direct"`
	}
	decodeResponse(t, rec, &grant)
	if !grant.Direct {
		t.Fatalf("expected direct upload for memory driver, got %+v", grant)
	}
	if !strings.HasPrefix(grant.Key, "prescriptions/"+prescription.ID+"/") {
		t.Fatalf("unexpected key: %s", grant.Key)
	}

	// Upload the bytes to the direct route.
	req := httptest.NewRequest(http.MethodPut, grant.UploadURL, strings.NewReader("png!"))
	req.Header.Set("Content-Type", "image/png")
	uploadRec := httptest.NewRecorder()
	handler.ServeHTTP(uploadRec, req)
	if uploadRec.Code != http.StatusCreated {
		t.Fatalf("upload: %d %s", uploadRec.Code, uploadRec.Body.String())
	}

	// Attach the uploaded file to the prescription.
	rec = doJSON(t, handler, http.MethodPatch, "/api/prescriptions/"+prescription.ID+"/files",
		map[string]any{"key": grant.Key, "file_name": "scan.png", "size": 4, "content_type": "image/png"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("attach: %d %s", rec.Code, rec.Body.String())
	}

	// Listing resolves the descriptor with the inferred kind.
	rec = doJSON(t, handler, http.MethodGet, "/api/prescriptions/"+prescription.ID+"/files", nil, nil)
	var listing struct {
		Files []fileDescriptor `json:"files"`
	}
	decodeResponse(t, rec, &listing)
	if len(listing.Files) != 1 {
		t.Fatalf("expected one file, got %+v", listing.Files)
	}
	file := listing.Files[0]
	if file.Kind != "image" || file.Name != "scan.png" {
		t.Fatalf("unexpected descriptor: %+v", file)
	}

	// Download through the content route.
	req = httptest.NewRequest(http.MethodGet, file.URL, nil)
	downloadRec := httptest.NewRecorder()
	handler.ServeHTTP(downloadRec, req)
	if downloadRec.Code != http.StatusOK {
		t.Fatalf("download: %d", downloadRec.Code)
	}
	if downloadRec.Body.String() != "png!" {
		t.Fatalf("content mismatch: %q", downloadRec.Body.String())
	}
}

func TestFileContentRejectsForeignKey(t *testing.T) {
	handler, service := newTestHandler(t)
	prescription, _, err := service.CreatePrescription(context.Background(), core.Prescription{CustomerID: "c1"})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet,
		"/api/prescriptions/"+prescription.ID+"/files/content?key=prescriptions/other/file.png", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for key outside the prescription, got %d", rec.Code)
	}
}

func TestUnknownBodyFieldRejected(t *testing.T) {
	handler, service := newTestHandler(t)
	product := seedProducts(t, service, 1)[0]

	rec := doJSON(t, handler, http.MethodPut, "/api/admin/products/"+product.ID+"/stock",
		map[string]any{"stock_quantity": 5, "bogus": true}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}
}
