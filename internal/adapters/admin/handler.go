// Package admin serves the REST API consumed by the pharmacy admin clients.
package admin

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"pharmacore/internal/blob"
	"pharmacore/internal/core"
	"pharmacore/pkg/domain"
)

// Handler routes the admin API. All list endpoints answer with a
// `{data, meta}` envelope; mutating status endpoints require a single-use
// CSRF token from the matching /csrf endpoint.
type Handler struct {
	service *core.Service
	blobs   blob.Store
	csrf    *csrfRegistry
	logger  *slog.Logger
}

// NewHandler constructs the admin HTTP handler.
func NewHandler(service *core.Service, blobs blob.Store, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		service: service,
		blobs:   blobs,
		csrf:    newCSRFRegistry(),
		logger:  logger,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSuffix(r.URL.Path, "/")
	if path == "/api/admin/dashboard" {
		h.handleDashboard(w, r)
		return
	}
	if remainder, ok := routeRemainder(path, "/api/admin/products"); ok {
		h.handleProducts(w, r, remainder)
		return
	}
	if remainder, ok := routeRemainder(path, "/api/admin/orders"); ok {
		h.handleAdminList(w, r, remainder, h.listOrders, h.getOrder, h.createOrder)
		return
	}
	if remainder, ok := routeRemainder(path, "/api/admin/customers"); ok {
		h.handleAdminList(w, r, remainder, h.listCustomers, h.getCustomer, h.createCustomer)
		return
	}
	if remainder, ok := routeRemainder(path, "/api/admin/prescriptions"); ok {
		h.handleAdminList(w, r, remainder, h.listPrescriptions, h.getPrescription, h.createPrescription)
		return
	}
	if remainder, ok := routeRemainder(path, "/api/admin/movements"); ok {
		h.handleAdminList(w, r, remainder, h.listMovements, nil, nil)
		return
	}
	if remainder, ok := routeRemainder(path, "/api/prescriptions"); ok {
		h.handlePrescriptions(w, r, remainder)
		return
	}
	if remainder, ok := routeRemainder(path, "/api/orders"); ok {
		h.handleOrders(w, r, remainder)
		return
	}
	http.NotFound(w, r)
}

// routeRemainder matches path against prefix on a whole-segment boundary, so
// "/api/admin/products" matches itself and "/api/admin/products/p1" but not
// "/api/admin/productsxyz".
func routeRemainder(path, prefix string) (string, bool) {
	if path == prefix {
		return "", true
	}
	if strings.HasPrefix(path, prefix+"/") {
		return strings.TrimPrefix(path, prefix), true
	}
	return "", false
}

type listFunc func(w http.ResponseWriter, r *http.Request)
type getFunc func(w http.ResponseWriter, r *http.Request, id string)
type createFunc func(w http.ResponseWriter, r *http.Request)

// handleAdminList dispatches `/api/admin/<resource>` collection and item routes.
func (h *Handler) handleAdminList(w http.ResponseWriter, r *http.Request, remainder string, list listFunc, get getFunc, create createFunc) {
	if remainder == "" {
		switch r.Method {
		case http.MethodGet:
			list(w, r)
		case http.MethodPost:
			if create == nil {
				writeError(w, http.StatusMethodNotAllowed, "method not allowed")
				return
			}
			create(w, r)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}
	id := strings.TrimPrefix(remainder, "/")
	if id == "" || strings.Contains(id, "/") || get == nil {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	get(w, r, id)
}

func (h *Handler) handleProducts(w http.ResponseWriter, r *http.Request, remainder string) {
	if remainder == "" {
		switch r.Method {
		case http.MethodGet:
			h.listProducts(w, r)
		case http.MethodPost:
			h.createProduct(w, r)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}
	segments := strings.Split(strings.TrimPrefix(remainder, "/"), "/")
	switch {
	case len(segments) == 1 && segments[0] != "":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.getProduct(w, r, segments[0])
	case len(segments) == 2 && segments[1] == "stock":
		if r.Method != http.MethodPut {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.updateStock(w, r, segments[0])
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	params, err := parseListParams(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filtered := filterProducts(h.service.ListProducts(r.Context()), params)
	page, meta := paginate(filtered, params)
	writeList(w, page, meta)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request, id string) {
	product, ok := h.service.GetProduct(r.Context(), id)
	if !ok {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var product domain.Product
	if err := decodeBody(r, &product); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	created, _, err := h.service.CreateProduct(r.Context(), product)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// updateStock applies a single-field absolute stock update and returns the
// updated record with its recomputed stock status.
func (h *Handler) updateStock(w http.ResponseWriter, r *http.Request, id string) {
	var body struct {
		StockQuantity *int   `json:"stock_quantity"`
		Actor         string `json:"actor"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.StockQuantity == nil {
		writeError(w, http.StatusBadRequest, "stock_quantity is required")
		return
	}
	updated, _, err := h.service.SetStockQuantity(r.Context(), id, *body.StockQuantity, body.Actor)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	params, err := parseListParams(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filtered, err := filterOrders(h.service.ListOrders(r.Context()), params)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	page, meta := paginate(filtered, params)
	writeList(w, page, meta)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request, id string) {
	order, ok := h.service.GetOrder(r.Context(), id)
	if !ok {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var order domain.Order
	if err := decodeBody(r, &order); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	created, _, err := h.service.CreateOrder(r.Context(), order)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	params, err := parseListParams(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filtered := filterCustomers(h.service.ListCustomers(r.Context()), params)
	page, meta := paginate(filtered, params)
	writeList(w, page, meta)
}

func (h *Handler) getCustomer(w http.ResponseWriter, r *http.Request, id string) {
	customer, ok := h.service.GetCustomer(r.Context(), id)
	if !ok {
		writeError(w, http.StatusNotFound, "customer not found")
		return
	}
	writeJSON(w, http.StatusOK, customer)
}

func (h *Handler) createCustomer(w http.ResponseWriter, r *http.Request) {
	var customer domain.Customer
	if err := decodeBody(r, &customer); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	created, _, err := h.service.CreateCustomer(r.Context(), customer)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) listPrescriptions(w http.ResponseWriter, r *http.Request) {
	params, err := parseListParams(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filtered, err := filterPrescriptions(h.service.ListPrescriptions(r.Context()), params)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	page, meta := paginate(filtered, params)
	writeList(w, page, meta)
}

func (h *Handler) getPrescription(w http.ResponseWriter, r *http.Request, id string) {
	prescription, ok := h.service.GetPrescription(r.Context(), id)
	if !ok {
		writeError(w, http.StatusNotFound, "prescription not found")
		return
	}
	writeJSON(w, http.StatusOK, prescription)
}

func (h *Handler) createPrescription(w http.ResponseWriter, r *http.Request) {
	var prescription domain.Prescription
	if err := decodeBody(r, &prescription); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	created, _, err := h.service.CreatePrescription(r.Context(), prescription)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) listMovements(w http.ResponseWriter, r *http.Request) {
	params, err := parseListParams(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filtered, err := filterMovements(h.service.ListStockMovements(r.Context()), params)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	page, meta := paginate(filtered, params)
	writeList(w, page, meta)
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	summary, err := h.service.Dashboard(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handlePrescriptions covers the public prescription surface: csrf token
// issuance, status transitions, and the file endpoints.
func (h *Handler) handlePrescriptions(w http.ResponseWriter, r *http.Request, remainder string) {
	remainder = strings.TrimPrefix(remainder, "/")
	if remainder == "csrf" {
		h.handleCSRF(w, r)
		return
	}
	segments := strings.Split(remainder, "/")
	switch {
	case len(segments) == 1 && segments[0] != "":
		if r.Method != http.MethodPatch {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.patchPrescription(w, r, segments[0])
	case len(segments) == 2 && segments[1] == "files":
		h.handlePrescriptionFiles(w, r, segments[0])
	case len(segments) == 3 && segments[1] == "files" && segments[2] == "content":
		h.servePrescriptionFile(w, r, segments[0])
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) handleOrders(w http.ResponseWriter, r *http.Request, remainder string) {
	remainder = strings.TrimPrefix(remainder, "/")
	if remainder == "csrf" {
		h.handleCSRF(w, r)
		return
	}
	if remainder == "" || strings.Contains(remainder, "/") {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPatch {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	h.patchOrder(w, r, remainder)
}

func (h *Handler) handleCSRF(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": h.csrf.Issue()})
}

func (h *Handler) requireCSRF(w http.ResponseWriter, r *http.Request) bool {
	if !h.csrf.Consume(r.Header.Get("X-CSRF-Token")) {
		writeError(w, http.StatusForbidden, "missing or invalid csrf token")
		return false
	}
	return true
}

func (h *Handler) patchPrescription(w http.ResponseWriter, r *http.Request, id string) {
	if !h.requireCSRF(w, r) {
		return
	}
	var body struct {
		Status               string `json:"status"`
		RejectionReason      string `json:"rejection_reason"`
		ClarificationRequest string `json:"clarification_request"`
		Notes                string `json:"notes"`
		ReviewedBy           string `json:"reviewed_by"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	status, err := domain.ParsePrescriptionStatus(body.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	payload := domain.TransitionPayload{
		RejectionReason:      body.RejectionReason,
		ClarificationRequest: body.ClarificationRequest,
		Notes:                body.Notes,
	}
	updated, _, err := h.service.ReviewPrescription(r.Context(), id, status, payload, body.ReviewedBy)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) patchOrder(w http.ResponseWriter, r *http.Request, id string) {
	if !h.requireCSRF(w, r) {
		return
	}
	var body struct {
		Status       string `json:"status"`
		CancelReason string `json:"cancel_reason"`
		Notes        string `json:"notes"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	status, err := domain.ParseOrderStatus(body.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	payload := domain.TransitionPayload{CancelReason: body.CancelReason, Notes: body.Notes}
	updated, _, err := h.service.AdvanceOrder(r.Context(), id, status, payload)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// writeServiceError maps domain errors onto HTTP statuses: rule violations
// and validation failures are 422, missing records 404.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var notFound domain.ErrNotFound
	if errors.As(err, &notFound) {
		writeError(w, http.StatusNotFound, notFound.Error())
		return
	}
	var validation domain.ValidationError
	if errors.As(err, &validation) {
		writeError(w, http.StatusUnprocessableEntity, validation.Error())
		return
	}
	var ruleErr domain.RuleViolationError
	if errors.As(err, &ruleErr) {
		messages := make([]string, 0, len(ruleErr.Result.Violations))
		for _, v := range ruleErr.Result.Violations {
			if v.Severity == domain.SeverityBlock {
				messages = append(messages, v.Message)
			}
		}
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":      "transaction blocked by rules",
			"violations": messages,
		})
		return
	}
	h.logger.ErrorContext(r.Context(), "admin api request failed",
		"method", r.Method, "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeList[T any](w http.ResponseWriter, data []T, meta listMeta) {
	writeJSON(w, http.StatusOK, map[string]any{"data": data, "meta": meta})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
