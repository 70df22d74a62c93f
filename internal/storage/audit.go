package storage

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AppendAudit records an ingestion outcome. The audit log is append-only.
func (s *Store) AppendAudit(e AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.Details == "" {
		e.Details = "{}"
	}
	_, err := s.db.Exec(`
		INSERT INTO audit_log (id, document_id, tenant_code, channel, outcome, message, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.DocumentID, e.TenantCode, e.Channel, e.Outcome, e.Message, e.Details,
		e.CreatedAt.Format(time.RFC3339),
	)
	return err
}

// ListAudit returns the newest audit entries, up to limit.
func (s *Store) ListAudit(limit int) ([]AuditEntry, error) {
	rows, err := s.db.Query(`
		SELECT id, document_id, tenant_code, channel, outcome, message, details, created_at
		FROM audit_log ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var createdAt string
		if err := rows.Scan(&e.ID, &e.DocumentID, &e.TenantCode, &e.Channel, &e.Outcome,
			&e.Message, &e.Details, &createdAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		e.CreatedAt = t
		results = append(results, e)
	}
	return results, rows.Err()
}

// CountAuditByOutcome returns how many audit entries exist for a document with
// the given outcome. Used to verify idempotence of re-scans.
func (s *Store) CountAuditByOutcome(documentID, outcome string) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM audit_log WHERE document_id = ? AND outcome = ?`,
		documentID, outcome,
	).Scan(&n)
	return n, err
}
