package adminclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"pharmacore/pkg/domain"
)

// Client talks to the admin REST API. Response envelopes are normalized here,
// at one boundary: `{data: [...]}`, `{<resource>: [...]}`, and bare arrays
// all decode to the same result.
type Client struct {
	baseURL string
	httpc   *http.Client
}

// ClientOption configures optional client behavior.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying http.Client.
func WithHTTPClient(httpc *http.Client) ClientOption {
	return func(c *Client) {
		if httpc != nil {
			c.httpc = httpc
		}
	}
}

// NewClient constructs a client for the API at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpc:   http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a non-2xx response; Message carries the server's error string
// when one was present.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api error %d", e.StatusCode)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, headers map[string]string) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: extractErrorMessage(payload)}
	}
	return payload, nil
}

func extractErrorMessage(payload []byte) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(payload, &body); err == nil && body.Error != "" {
		return body.Error
	}
	return ""
}

// normalizeListEnvelope decodes the three envelope shapes the API family has
// historically produced into one (records, meta) pair. Missing meta is
// synthesized from the record count.
func normalizeListEnvelope(payload []byte, resource string, q ListQuery) ([]json.RawMessage, Meta, error) {
	trimmed := bytes.TrimLeft(payload, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var records []json.RawMessage
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, Meta{}, fmt.Errorf("decode bare list: %w", err)
		}
		return records, Meta{Total: len(records), Page: q.Page, PageSize: q.PageSize}, nil
	}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, Meta{}, fmt.Errorf("decode list envelope: %w", err)
	}
	raw, ok := envelope["data"]
	if !ok {
		raw, ok = envelope[resource]
	}
	if !ok {
		return nil, Meta{}, fmt.Errorf("list envelope has neither data nor %s field", resource)
	}
	var records []json.RawMessage
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, Meta{}, fmt.Errorf("decode %s records: %w", resource, err)
	}
	meta := Meta{Total: len(records), Page: q.Page, PageSize: q.PageSize}
	if rawMeta, ok := envelope["meta"]; ok {
		if err := json.Unmarshal(rawMeta, &meta); err != nil {
			return nil, Meta{}, fmt.Errorf("decode list meta: %w", err)
		}
	}
	return records, meta, nil
}

// List fetches one page of the resource and returns the raw records.
func (c *Client) List(ctx context.Context, q ListQuery) ([]json.RawMessage, Meta, error) {
	payload, err := c.do(ctx, http.MethodGet, "/api/admin/"+q.Resource, q.Encode(), nil, nil)
	if err != nil {
		return nil, Meta{}, err
	}
	return normalizeListEnvelope(payload, q.Resource, q)
}

// listAs decodes one page of the resource into typed records.
func listAs[T any](ctx context.Context, c *Client, q ListQuery) ([]T, Meta, error) {
	raw, meta, err := c.List(ctx, q)
	if err != nil {
		return nil, Meta{}, err
	}
	out := make([]T, 0, len(raw))
	for _, rec := range raw {
		var v T
		if err := json.Unmarshal(rec, &v); err != nil {
			return nil, Meta{}, fmt.Errorf("decode %s record: %w", q.Resource, err)
		}
		out = append(out, v)
	}
	return out, meta, nil
}

// ListProducts fetches one page of products.
func (c *Client) ListProducts(ctx context.Context, q ListQuery) ([]domain.Product, Meta, error) {
	return listAs[domain.Product](ctx, c, q)
}

// ListOrders fetches one page of orders.
func (c *Client) ListOrders(ctx context.Context, q ListQuery) ([]domain.Order, Meta, error) {
	return listAs[domain.Order](ctx, c, q)
}

// ListCustomers fetches one page of customers.
func (c *Client) ListCustomers(ctx context.Context, q ListQuery) ([]domain.Customer, Meta, error) {
	return listAs[domain.Customer](ctx, c, q)
}

// ListPrescriptions fetches one page of prescriptions.
func (c *Client) ListPrescriptions(ctx context.Context, q ListQuery) ([]domain.Prescription, Meta, error) {
	return listAs[domain.Prescription](ctx, c, q)
}

// ListStockMovements fetches one page of stock movements.
func (c *Client) ListStockMovements(ctx context.Context, q ListQuery) ([]domain.StockMovement, Meta, error) {
	return listAs[domain.StockMovement](ctx, c, q)
}

// UpdateStock applies a single-field absolute stock update and returns the
// updated product with its server-derived stock status.
func (c *Client) UpdateStock(ctx context.Context, productID string, quantity int) (domain.Product, error) {
	body := map[string]any{"stock_quantity": quantity}
	payload, err := c.do(ctx, http.MethodPut, "/api/admin/products/"+productID+"/stock", nil, body, nil)
	if err != nil {
		return domain.Product{}, err
	}
	var product domain.Product
	if err := json.Unmarshal(payload, &product); err != nil {
		return domain.Product{}, fmt.Errorf("decode product: %w", err)
	}
	return product, nil
}

// fetchCSRF obtains a single-use token for the resource's mutation endpoints.
func (c *Client) fetchCSRF(ctx context.Context, resource string) (string, error) {
	payload, err := c.do(ctx, http.MethodGet, "/api/"+resource+"/csrf", nil, nil, nil)
	if err != nil {
		return "", err
	}
	var body struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return "", fmt.Errorf("decode csrf token: %w", err)
	}
	if body.Token == "" {
		return "", fmt.Errorf("empty csrf token")
	}
	return body.Token, nil
}

// TransitionPrescription PATCHes a prescription status change, fetching a
// CSRF token first and replaying it in X-CSRF-Token.
func (c *Client) TransitionPrescription(ctx context.Context, id string, to domain.PrescriptionStatus, payload domain.TransitionPayload) (domain.Prescription, error) {
	token, err := c.fetchCSRF(ctx, "prescriptions")
	if err != nil {
		return domain.Prescription{}, err
	}
	body := map[string]any{"status": string(to)}
	if payload.RejectionReason != "" {
		body["rejection_reason"] = payload.RejectionReason
	}
	if payload.ClarificationRequest != "" {
		body["clarification_request"] = payload.ClarificationRequest
	}
	if payload.Notes != "" {
		body["notes"] = payload.Notes
	}
	raw, err := c.do(ctx, http.MethodPatch, "/api/prescriptions/"+id, nil, body, map[string]string{"X-CSRF-Token": token})
	if err != nil {
		return domain.Prescription{}, err
	}
	var prescription domain.Prescription
	if err := json.Unmarshal(raw, &prescription); err != nil {
		return domain.Prescription{}, fmt.Errorf("decode prescription: %w", err)
	}
	return prescription, nil
}

// TransitionOrder PATCHes an order status change with the same CSRF scheme.
func (c *Client) TransitionOrder(ctx context.Context, id string, to domain.OrderStatus, payload domain.TransitionPayload) (domain.Order, error) {
	token, err := c.fetchCSRF(ctx, "orders")
	if err != nil {
		return domain.Order{}, err
	}
	body := map[string]any{"status": string(to)}
	if payload.CancelReason != "" {
		body["cancel_reason"] = payload.CancelReason
	}
	if payload.Notes != "" {
		body["notes"] = payload.Notes
	}
	raw, err := c.do(ctx, http.MethodPatch, "/api/orders/"+id, nil, body, map[string]string{"X-CSRF-Token": token})
	if err != nil {
		return domain.Order{}, err
	}
	var order domain.Order
	if err := json.Unmarshal(raw, &order); err != nil {
		return domain.Order{}, fmt.Errorf("decode order: %w", err)
	}
	return order, nil
}

// PrescriptionFile describes a stored prescription file: a signed URL plus
// the inferred kind used to pick a viewer.
type PrescriptionFile struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
	Kind        string `json:"kind"`
	URL         string `json:"url"`
}

// PrescriptionFiles lists the files attached to a prescription.
func (c *Client) PrescriptionFiles(ctx context.Context, id string) ([]PrescriptionFile, error) {
	payload, err := c.do(ctx, http.MethodGet, "/api/prescriptions/"+id+"/files", nil, nil, nil)
	if err != nil {
		return nil, err
	}
	var body struct {
		Files []PrescriptionFile `json:"files"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("decode files: %w", err)
	}
	return body.Files, nil
}

// UploadPrescriptionFile runs the three-step upload flow: request a signed
// upload URL, PUT the bytes to storage, then PATCH the owning record with
// the storage key, filename, and size.
func (c *Client) UploadPrescriptionFile(ctx context.Context, id, fileName, contentType string, data []byte) (domain.Prescription, error) {
	grantPayload, err := c.do(ctx, http.MethodPost, "/api/prescriptions/"+id+"/files", nil, map[string]any{
		"file_name":    fileName,
		"content_type": contentType,
		"size":         len(data),
	}, nil)
	if err != nil {
		return domain.Prescription{}, err
	}
	var grant struct {
		Key       string `json:"key"`
		UploadURL string `json:"upload_url"`
		Direct    bool   `json:"direct"`
	}
	if err := json.Unmarshal(grantPayload, &grant); err != nil {
		return domain.Prescription{}, fmt.Errorf("decode upload grant: %w", err)
	}
	uploadURL := grant.UploadURL
	if strings.HasPrefix(uploadURL, "/") {
		uploadURL = c.baseURL + uploadURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(data))
	if err != nil {
		return domain.Prescription{}, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return domain.Prescription{}, fmt.Errorf("upload file: %w", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.Prescription{}, &APIError{StatusCode: resp.StatusCode, Message: "file upload failed"}
	}
	attachPayload, err := c.do(ctx, http.MethodPatch, "/api/prescriptions/"+id+"/files", nil, map[string]any{
		"key":          grant.Key,
		"file_name":    fileName,
		"size":         len(data),
		"content_type": contentType,
	}, nil)
	if err != nil {
		return domain.Prescription{}, err
	}
	var prescription domain.Prescription
	if err := json.Unmarshal(attachPayload, &prescription); err != nil {
		return domain.Prescription{}, fmt.Errorf("decode prescription: %w", err)
	}
	return prescription, nil
}
