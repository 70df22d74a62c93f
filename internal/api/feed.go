package api

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mboehler/aktis/internal/channel"
	"github.com/mboehler/aktis/internal/digest"
	"github.com/mboehler/aktis/internal/storage"
	"github.com/mboehler/aktis/internal/tenant"
)

// The HR feed delivers rendered documents (approved leave requests, monthly
// timesheets) with an upstream idempotency key. Re-deliveries are acknowledged
// without creating anything.

type LeaveRequestFeed struct {
	RequestID  string `json:"request_id"`
	TenantCode string `json:"tenant_code"`
	EmployeeID string `json:"employee_id"`
	Filename   string `json:"filename"`
	Content    string `json:"content"` // base64, rendered document
}

type TimesheetFeed struct {
	TenantCode string `json:"tenant_code"`
	EmployeeID string `json:"employee_id"`
	Year       int    `json:"year"`
	Month      int    `json:"month"`
	Filename   string `json:"filename"`
	Content    string `json:"content"` // base64, rendered document
}

func handleLeaveRequest(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBodySize)
		defer r.Body.Close()

		var req LeaveRequestFeed
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.RequestID == "" || req.EmployeeID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "request_id and employee_id are required")
			return
		}

		docID, status, err := storeFeedDocument(deps, r, req.TenantCode, req.EmployeeID, req.Filename, req.Content,
			fmt.Sprintf("Urlaubsantrag %s", req.EmployeeID))
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		inserted, err := deps.Store.RecordLeaveRequest(storage.LeaveRequest{
			RequestID:  req.RequestID,
			TenantCode: req.TenantCode,
			EmployeeID: req.EmployeeID,
			DocumentID: docID,
		})
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "recording leave request: %v", err)
			return
		}
		if !inserted {
			writeJSON(w, map[string]string{"status": "already_imported", "document_id": docID})
			return
		}

		writeJSON(w, map[string]string{"status": status, "document_id": docID})
	}
}

func handleTimesheet(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBodySize)
		defer r.Body.Close()

		var req TimesheetFeed
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.EmployeeID == "" || req.Year == 0 || req.Month < 1 || req.Month > 12 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "employee_id, year and month are required")
			return
		}

		docID, status, err := storeFeedDocument(deps, r, req.TenantCode, req.EmployeeID, req.Filename, req.Content,
			fmt.Sprintf("Stundenzettel %s %04d-%02d", req.EmployeeID, req.Year, req.Month))
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		inserted, err := deps.Store.RecordTimesheet(storage.Timesheet{
			TenantCode: req.TenantCode,
			EmployeeID: req.EmployeeID,
			Year:       req.Year,
			Month:      req.Month,
			DocumentID: docID,
		})
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "recording timesheet: %v", err)
			return
		}
		if !inserted {
			writeJSON(w, map[string]string{"status": "already_imported", "document_id": docID})
			return
		}

		writeJSON(w, map[string]string{"status": status, "document_id": docID})
	}
}

// storeFeedDocument pushes a rendered feed document through the upload
// channel. A duplicate is not an error here: the feed may re-render an
// identical document, and the existing one is referenced instead.
func storeFeedDocument(deps AppDeps, r *http.Request, tenantCode, employeeID, filename, content, title string) (docID, status string, err error) {
	if !tenant.ValidCode(tenantCode) {
		return "", "", fmt.Errorf("tenant_code must be %d digits", tenant.CodeLength)
	}
	if filename == "" {
		return "", "", fmt.Errorf("filename is required")
	}
	raw, err := base64.StdEncoding.DecodeString(content)
	if err != nil || len(raw) == 0 {
		return "", "", fmt.Errorf("content must be non-empty base64")
	}

	now := time.Now().UTC()
	report, err := deps.Runner.Run(r.Context(), &channel.Upload{Candidates: []channel.Candidate{{
		Name:         filename,
		Title:        title,
		Content:      raw,
		TenantCode:   tenantCode,
		EmployeeID:   employeeID,
		DocumentDate: &now,
	}}})
	if err != nil {
		return "", "", fmt.Errorf("storing feed document: %w", err)
	}
	if report.Failed > 0 {
		return "", "", fmt.Errorf("feed document rejected")
	}

	id, err := deps.Store.FindDocumentIDByDigest(tenantCode, digest.HashBytes(raw))
	if err != nil {
		return "", "", fmt.Errorf("locating feed document: %w", err)
	}
	if report.Duplicates > 0 {
		return id, "duplicate", nil
	}
	return id, "stored", nil
}
