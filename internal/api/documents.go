package api

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mboehler/aktis/internal/channel"
	"github.com/mboehler/aktis/internal/digest"
	"github.com/mboehler/aktis/internal/storage"
	"github.com/mboehler/aktis/internal/tenant"
)

type UploadRequest struct {
	TenantCode   string `json:"tenant_code"`
	Filename     string `json:"filename"`
	Title        string `json:"title"`
	Content      string `json:"content"` // base64
	EmployeeID   string `json:"employee_id"`
	DocumentDate string `json:"document_date"` // YYYY-MM-DD
}

func handleUpload(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBodySize)
		defer r.Body.Close()

		var req UploadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if !tenant.ValidCode(req.TenantCode) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "tenant_code must be %d digits", tenant.CodeLength)
			return
		}
		if req.Filename == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "filename is required")
			return
		}
		content, err := base64.StdEncoding.DecodeString(req.Content)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "content must be base64")
			return
		}
		if len(content) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "content is required")
			return
		}

		candidate := channel.Candidate{
			Name:       req.Filename,
			Title:      req.Title,
			Content:    content,
			TenantCode: req.TenantCode,
			EmployeeID: req.EmployeeID,
		}
		if req.DocumentDate != "" {
			d, err := time.Parse("2006-01-02", req.DocumentDate)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "document_date must be YYYY-MM-DD")
				return
			}
			candidate.DocumentDate = &d
		}

		report, err := deps.Runner.Run(r.Context(), &channel.Upload{Candidates: []channel.Candidate{candidate}})
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "upload failed: %v", err)
			return
		}

		switch {
		case report.Duplicates > 0:
			id, err := deps.Store.FindDocumentIDByDigest(req.TenantCode, digest.HashBytes(content))
			if err != nil {
				id = ""
			}
			w.WriteHeader(http.StatusConflict)
			writeJSON(w, map[string]string{"status": "duplicate", "document_id": id})
		case report.Failed > 0:
			httpError(w, http.StatusUnprocessableEntity, "api_error", "document rejected, see audit log")
		default:
			id, err := deps.Store.FindDocumentIDByDigest(req.TenantCode, digest.HashBytes(content))
			if err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "locating stored document: %v", err)
				return
			}
			w.WriteHeader(http.StatusCreated)
			writeJSON(w, map[string]string{"status": "stored", "document_id": id})
		}
	}
}

type documentResponse struct {
	ID               string     `json:"id"`
	TenantCode       string     `json:"tenant_code"`
	Title            string     `json:"title"`
	OriginalFilename string     `json:"original_filename"`
	MimeType         string     `json:"mime_type"`
	FileSize         int64      `json:"file_size"`
	Digest           string     `json:"digest"`
	Source           string     `json:"source"`
	CategoryCode     string     `json:"category_code,omitempty"`
	EmployeeID       string     `json:"employee_id,omitempty"`
	Status           string     `json:"status"`
	DocumentDate     *time.Time `json:"document_date,omitempty"`
	RetentionExpiry  *time.Time `json:"retention_expiry,omitempty"`
	Tags             []string   `json:"tags,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

func toDocumentResponse(d storage.Document, tags []string) documentResponse {
	return documentResponse{
		ID:               d.ID,
		TenantCode:       d.TenantCode,
		Title:            d.Title,
		OriginalFilename: d.OriginalFilename,
		MimeType:         d.MimeType,
		FileSize:         d.FileSize,
		Digest:           d.Digest,
		Source:           d.Source,
		CategoryCode:     d.CategoryCode,
		EmployeeID:       d.EmployeeID,
		Status:           d.Status,
		DocumentDate:     d.DocumentDate,
		RetentionExpiry:  d.RetentionExpiry,
		Tags:             tags,
		CreatedAt:        d.CreatedAt,
	}
}

func handleListDocuments(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantCode := r.URL.Query().Get("tenant")
		limit := parseIntParam(r, "limit", 50, 500)

		docs, err := deps.Store.ListDocuments(tenantCode, limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing documents: %v", err)
			return
		}

		out := make([]documentResponse, 0, len(docs))
		for _, d := range docs {
			out = append(out, toDocumentResponse(d, nil))
		}
		writeJSON(w, map[string]any{"documents": out})
	}
}

func handleGetDocument(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		doc, err := deps.Store.GetDocument(id)
		if err == storage.ErrNotFound {
			httpError(w, http.StatusNotFound, "not_found_error", "document %s not found", id)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "loading document: %v", err)
			return
		}
		tags, err := deps.Store.GetDocumentTags(id)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "loading tags: %v", err)
			return
		}
		writeJSON(w, toDocumentResponse(doc, tags))
	}
}

// handleGetContent streams the decrypted original. The sealed bytes never
// leave the process as-is.
func handleGetContent(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		doc, err := deps.Store.GetDocument(id)
		if err == storage.ErrNotFound {
			httpError(w, http.StatusNotFound, "not_found_error", "document %s not found", id)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "loading document: %v", err)
			return
		}

		plain, err := deps.Sealer.Open(doc.Content)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "unsealing document: %v", err)
			return
		}

		w.Header().Set("Content-Type", doc.MimeType)
		w.Header().Set("Content-Disposition", `attachment; filename="`+doc.OriginalFilename+`"`)
		w.Write(plain)
	}
}

func handleListVersions(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		versions, err := deps.Store.ListDocumentVersions(id)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing versions: %v", err)
			return
		}

		type versionResponse struct {
			ID             string    `json:"id"`
			PriorVersionID string    `json:"prior_version_id,omitempty"`
			Digest         string    `json:"digest"`
			FileSize       int64     `json:"file_size"`
			CreatedAt      time.Time `json:"created_at"`
		}
		out := make([]versionResponse, 0, len(versions))
		for _, v := range versions {
			out = append(out, versionResponse{
				ID:             v.ID,
				PriorVersionID: v.PriorVersionID,
				Digest:         v.Digest,
				FileSize:       v.FileSize,
				CreatedAt:      v.CreatedAt,
			})
		}
		writeJSON(w, map[string]any{"versions": out})
	}
}

// handleSupersede replaces a document's content with a new revision; the old
// content moves into the version history.
func handleSupersede(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var req struct {
			Content string `json:"content"` // base64
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBodySize)
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "parsing request: %v", err)
			return
		}
		content, err := base64.StdEncoding.DecodeString(req.Content)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "content must be base64")
			return
		}
		if len(content) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "content is required")
			return
		}

		sealed, err := deps.Sealer.Seal(content)
		if err != nil {
			httpError(w, http.StatusUnprocessableEntity, "invalid_request_error", "sealing content: %v", err)
			return
		}

		version, err := deps.Store.SupersedeDocument(id, sealed, digest.HashBytes(content), int64(len(content)))
		switch {
		case err == storage.ErrNotFound:
			httpError(w, http.StatusNotFound, "not_found_error", "document %s not found", id)
			return
		case err == storage.ErrDuplicateDigest:
			httpError(w, http.StatusConflict, "invalid_request_error", "content already stored for this tenant")
			return
		case err != nil:
			httpError(w, http.StatusInternalServerError, "api_error", "superseding document: %v", err)
			return
		}

		writeJSON(w, map[string]string{"status": "superseded", "version_id": version.ID})
	}
}

func handleListTenants(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenants, err := deps.Store.ListTenants()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing tenants: %v", err)
			return
		}
		writeJSON(w, map[string]any{"tenants": tenants})
	}
}

func handleListAudit(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 100, 1000)
		entries, err := deps.Store.ListAudit(limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing audit log: %v", err)
			return
		}
		writeJSON(w, map[string]any{"entries": entries})
	}
}
