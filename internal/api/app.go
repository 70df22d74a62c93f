// Package api exposes the document service over HTTP: uploads, document
// retrieval, scan triggers and the HR feed intake. All routes require the
// configured bearer token.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mboehler/aktis/internal/pipeline"
	"github.com/mboehler/aktis/internal/seal"
	"github.com/mboehler/aktis/internal/storage"
)

const maxUploadBodySize = 110 << 20 // sealed ceiling plus headroom for encoding

type AppDeps struct {
	Store  *storage.Store
	Sealer *seal.Service
	Runner *pipeline.Pipeline
	Token  string
}

func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(BearerAuth(deps.Token))

	r.Post("/documents", handleUpload(deps))
	r.Get("/documents", handleListDocuments(deps))
	r.Get("/documents/{id}", handleGetDocument(deps))
	r.Get("/documents/{id}/content", handleGetContent(deps))
	r.Get("/documents/{id}/versions", handleListVersions(deps))
	r.Post("/documents/{id}/supersede", handleSupersede(deps))
	r.Get("/tenants", handleListTenants(deps))
	r.Get("/audit", handleListAudit(deps))
	r.Post("/feed/leave-requests", handleLeaveRequest(deps))
	r.Post("/feed/timesheets", handleTimesheet(deps))

	return r
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func parseIntParam(r *http.Request, name string, def, max int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	if max > 0 && n > max {
		return max
	}
	return n
}
