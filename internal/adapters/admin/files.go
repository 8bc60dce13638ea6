package admin

import (
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"pharmacore/internal/blob"
	"pharmacore/pkg/domain"
)

const uploadURLTTL = 15 * time.Minute

// fileDescriptor is the wire shape for a prescription file: a signed (or
// local fallback) URL plus the inferred kind the client uses to pick a viewer.
type fileDescriptor struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
	Kind        string `json:"kind"`
	URL         string `json:"url"`
}

// inferFileKind buckets a file into image, pdf, or other from its content
// type, falling back to the filename extension.
func inferFileKind(contentType, name string) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	switch {
	case strings.HasPrefix(ct, "image/"):
		return "image"
	case ct == "application/pdf":
		return "pdf"
	}
	switch strings.ToLower(path.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
		return "image"
	case ".pdf":
		return "pdf"
	}
	return "other"
}

func (h *Handler) handlePrescriptionFiles(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		h.listPrescriptionFiles(w, r, id)
	case http.MethodPost:
		h.requestUpload(w, r, id)
	case http.MethodPatch:
		h.attachPrescriptionFile(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) listPrescriptionFiles(w http.ResponseWriter, r *http.Request, id string) {
	prescription, ok := h.service.GetPrescription(r.Context(), id)
	if !ok {
		writeError(w, http.StatusNotFound, "prescription not found")
		return
	}
	files := []fileDescriptor{}
	if prescription.FileKey != nil && *prescription.FileKey != "" {
		desc := fileDescriptor{Key: *prescription.FileKey}
		if prescription.FileName != nil {
			desc.Name = *prescription.FileName
		}
		if prescription.FileSize != nil {
			desc.Size = *prescription.FileSize
		}
		if prescription.FileContentType != nil {
			desc.ContentType = *prescription.FileContentType
		}
		desc.Kind = inferFileKind(desc.ContentType, desc.Name)
		desc.URL = h.fileURL(r, id, desc.Key)
		files = append(files, desc)
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

// fileURL prefers a presigned GET URL; drivers without presign support fall
// back to the API download route.
func (h *Handler) fileURL(r *http.Request, prescriptionID, key string) string {
	signed, err := h.blobs.PresignURL(r.Context(), key, blob.SignedURLOptions{Method: http.MethodGet, Expiry: uploadURLTTL})
	if err == nil && signed != "" {
		return signed
	}
	return fmt.Sprintf("/api/prescriptions/%s/files/content?key=%s", prescriptionID, key)
}

// requestUpload issues a signed upload URL. When the blob driver cannot
// presign PUTs the response points at the direct upload route instead.
func (h *Handler) requestUpload(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := h.service.GetPrescription(r.Context(), id); !ok {
		writeError(w, http.StatusNotFound, "prescription not found")
		return
	}
	var body struct {
		FileName    string `json:"file_name"`
		ContentType string `json:"content_type"`
		Size        int64  `json:"size"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	name := strings.TrimSpace(body.FileName)
	if name == "" || strings.Contains(name, "/") {
		writeError(w, http.StatusBadRequest, "file_name is required and must not contain '/'")
		return
	}
	key := fmt.Sprintf("prescriptions/%s/%s/%s", id, uuid.NewString(), name)
	uploadURL, err := h.blobs.PresignURL(r.Context(), key, blob.SignedURLOptions{
		Method:  http.MethodPut,
		Expiry:  uploadURLTTL,
		Headers: map[string]string{"Content-Type": body.ContentType},
	})
	direct := false
	if err != nil {
		uploadURL = fmt.Sprintf("/api/prescriptions/%s/files/content?key=%s", id, key)
		direct = true
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"key":        key,
		"upload_url": uploadURL,
		"direct":     direct,
	})
}

// attachPrescriptionFile records the storage key, name, and size on the
// owning prescription after the upload completed.
func (h *Handler) attachPrescriptionFile(w http.ResponseWriter, r *http.Request, id string) {
	var body struct {
		Key         string `json:"key"`
		FileName    string `json:"file_name"`
		Size        int64  `json:"size"`
		ContentType string `json:"content_type"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(body.Key) == "" {
		writeError(w, http.StatusBadRequest, "key is required")
		return
	}
	updated, _, err := h.service.UpdatePrescription(r.Context(), id, func(p *domain.Prescription) error {
		p.FileKey = &body.Key
		if body.FileName != "" {
			p.FileName = &body.FileName
		}
		if body.Size > 0 {
			p.FileSize = &body.Size
		}
		if body.ContentType != "" {
			p.FileContentType = &body.ContentType
		}
		return nil
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// servePrescriptionFile is the non-presigned path: GET streams the blob, PUT
// accepts a direct upload addressed by the key issued at upload request time.
func (h *Handler) servePrescriptionFile(w http.ResponseWriter, r *http.Request, id string) {
	key := r.URL.Query().Get("key")
	if key == "" || !strings.HasPrefix(key, "prescriptions/"+id+"/") {
		writeError(w, http.StatusBadRequest, "invalid or missing key")
		return
	}
	switch r.Method {
	case http.MethodGet:
		info, rc, err := h.blobs.Get(r.Context(), key)
		if err != nil {
			writeError(w, http.StatusNotFound, "file not found")
			return
		}
		defer rc.Close()
		if info.ContentType != "" {
			w.Header().Set("Content-Type", info.ContentType)
		}
		w.Header().Set("Content-Length", fmt.Sprintf("%d", info.Size))
		_, _ = io.Copy(w, rc)
	case http.MethodPut:
		info, err := h.blobs.Put(r.Context(), key, r.Body, blob.PutOptions{ContentType: r.Header.Get("Content-Type")})
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, info)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}
