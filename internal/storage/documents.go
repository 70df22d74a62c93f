package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const documentColumns = `id, tenant_code, title, original_filename, file_extension, mime_type,
	file_size, digest, source, category_code, employee_id, status, document_date,
	retention_expiry, created_at, updated_at`

// FindDocumentIDByDigest queries the tenant-scoped digest index. Returns
// ErrNotFound when no document with that digest exists for the tenant.
func (s *Store) FindDocumentIDByDigest(tenantCode, digest string) (string, error) {
	var id string
	err := s.db.QueryRow(
		`SELECT id FROM documents WHERE tenant_code = ? AND digest = ?`,
		tenantCode, digest,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return id, err
}

// InsertDocumentBatch writes a batch of documents and their tags in a single
// transaction. Either every row in the batch becomes durable or none does;
// the caller must not treat any item as committed until this returns nil.
func (s *Store) InsertDocumentBatch(docs []Document, tags map[string][]string) error {
	if len(docs) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning batch transaction: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO documents (id, tenant_code, title, original_filename, file_extension, mime_type,
			content, file_size, digest, source, category_code, employee_id, status, document_date,
			retention_expiry, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing document insert: %w", err)
	}
	defer stmt.Close()

	for _, d := range docs {
		createdAt := d.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		if _, err := stmt.Exec(
			d.ID, d.TenantCode, d.Title, d.OriginalFilename, d.FileExtension, d.MimeType,
			d.Content, d.FileSize, d.Digest, d.Source, d.CategoryCode, d.EmployeeID, d.Status,
			formatDate(d.DocumentDate), formatDate(d.RetentionExpiry),
			createdAt.Format(time.RFC3339), createdAt.Format(time.RFC3339),
		); err != nil {
			tx.Rollback()
			if isUniqueViolation(err) {
				return ErrDuplicateDigest
			}
			return fmt.Errorf("inserting document %s: %w", d.ID, err)
		}

		for _, tag := range tags[d.ID] {
			if _, err := tx.Exec(
				`INSERT OR IGNORE INTO document_tags (document_id, tag) VALUES (?, ?)`,
				d.ID, tag,
			); err != nil {
				tx.Rollback()
				return fmt.Errorf("inserting tag %q for document %s: %w", tag, d.ID, err)
			}
		}
	}

	return tx.Commit()
}

// isUniqueViolation reports whether err is a SQLite unique-constraint failure.
// modernc.org/sqlite surfaces these as plain errors carrying the constraint text.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// GetDocument loads a single document including its sealed content.
func (s *Store) GetDocument(id string) (Document, error) {
	row := s.db.QueryRow(`SELECT `+documentColumns+`, content FROM documents WHERE id = ?`, id)

	var d Document
	var docDate, expiry sql.NullString
	var createdAt, updatedAt string
	err := row.Scan(
		&d.ID, &d.TenantCode, &d.Title, &d.OriginalFilename, &d.FileExtension, &d.MimeType,
		&d.FileSize, &d.Digest, &d.Source, &d.CategoryCode, &d.EmployeeID, &d.Status,
		&docDate, &expiry, &createdAt, &updatedAt, &d.Content,
	)
	if err == sql.ErrNoRows {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, err
	}
	if err := parseDocumentTimes(&d, docDate, expiry, createdAt, updatedAt); err != nil {
		return Document{}, err
	}
	return d, nil
}

// ListDocuments returns documents of one tenant, newest first, without content.
// ListDocuments returns documents newest first. Empty tenantCode means all
// tenants; limit <= 0 means no limit. Content is not loaded.
func (s *Store) ListDocuments(tenantCode string, limit int) ([]Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents`
	args := []any{}
	if tenantCode != "" {
		query += ` WHERE tenant_code = ?`
		args = append(args, tenantCode)
	}
	query += ` ORDER BY created_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Document
	for rows.Next() {
		var d Document
		var docDate, expiry sql.NullString
		var createdAt, updatedAt string
		if err := rows.Scan(
			&d.ID, &d.TenantCode, &d.Title, &d.OriginalFilename, &d.FileExtension, &d.MimeType,
			&d.FileSize, &d.Digest, &d.Source, &d.CategoryCode, &d.EmployeeID, &d.Status,
			&docDate, &expiry, &createdAt, &updatedAt,
		); err != nil {
			return nil, err
		}
		if err := parseDocumentTimes(&d, docDate, expiry, createdAt, updatedAt); err != nil {
			return nil, err
		}
		results = append(results, d)
	}
	return results, rows.Err()
}

// ListUnclassified returns documents without a category, optionally scoped to a tenant.
func (s *Store) ListUnclassified(tenantCode string) ([]Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE category_code = ''`
	args := []any{}
	if tenantCode != "" {
		query += ` AND tenant_code = ?`
		args = append(args, tenantCode)
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Document
	for rows.Next() {
		var d Document
		var docDate, expiry sql.NullString
		var createdAt, updatedAt string
		if err := rows.Scan(
			&d.ID, &d.TenantCode, &d.Title, &d.OriginalFilename, &d.FileExtension, &d.MimeType,
			&d.FileSize, &d.Digest, &d.Source, &d.CategoryCode, &d.EmployeeID, &d.Status,
			&docDate, &expiry, &createdAt, &updatedAt,
		); err != nil {
			return nil, err
		}
		if err := parseDocumentTimes(&d, docDate, expiry, createdAt, updatedAt); err != nil {
			return nil, err
		}
		results = append(results, d)
	}
	return results, rows.Err()
}

// GetDocumentTags returns the tag set of a document in lexical order.
func (s *Store) GetDocumentTags(id string) ([]string, error) {
	rows, err := s.db.Query(`SELECT tag FROM document_tags WHERE document_id = ? ORDER BY tag`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// UpdateClassification sets category and retention expiry for a stored document
// and merges the given tags into its tag set. Used by explicit reclassification;
// the pipeline itself never rewrites a stored document.
func (s *Store) UpdateClassification(id, categoryCode string, expiry *time.Time, tags []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning classification transaction: %w", err)
	}

	res, err := tx.Exec(
		`UPDATE documents SET category_code = ?, retention_expiry = ?, updated_at = ? WHERE id = ?`,
		categoryCode, formatDate(expiry), time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		tx.Rollback()
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		tx.Rollback()
		return err
	}
	if n == 0 {
		tx.Rollback()
		return ErrNotFound
	}

	for _, tag := range tags {
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO document_tags (document_id, tag) VALUES (?, ?)`,
			id, tag,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("adding tag %q: %w", tag, err)
		}
	}

	return tx.Commit()
}

// SetRetentionExpiry writes a recomputed expiry date for a document.
func (s *Store) SetRetentionExpiry(id string, expiry *time.Time) error {
	res, err := s.db.Exec(
		`UPDATE documents SET retention_expiry = ?, updated_at = ? WHERE id = ?`,
		formatDate(expiry), time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DocumentsPendingExpiry returns categorized documents whose retention expiry
// is still deferred (exit-triggered categories where the exit date was unknown
// at ingestion time).
func (s *Store) DocumentsPendingExpiry(tenantCode string) ([]Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents
		WHERE retention_expiry IS NULL AND category_code != ''`
	args := []any{}
	if tenantCode != "" {
		query += ` AND tenant_code = ?`
		args = append(args, tenantCode)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Document
	for rows.Next() {
		var d Document
		var docDate, expiry sql.NullString
		var createdAt, updatedAt string
		if err := rows.Scan(
			&d.ID, &d.TenantCode, &d.Title, &d.OriginalFilename, &d.FileExtension, &d.MimeType,
			&d.FileSize, &d.Digest, &d.Source, &d.CategoryCode, &d.EmployeeID, &d.Status,
			&docDate, &expiry, &createdAt, &updatedAt,
		); err != nil {
			return nil, err
		}
		if err := parseDocumentTimes(&d, docDate, expiry, createdAt, updatedAt); err != nil {
			return nil, err
		}
		results = append(results, d)
	}
	return results, rows.Err()
}

// SupersedeDocument replaces a document's content with a new revision, moving
// the previous content into an append-only version record. The digest index is
// updated atomically so dedup keeps tracking the live content.
func (s *Store) SupersedeDocument(id string, newContent []byte, newDigest string, newSize int64) (DocumentVersion, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return DocumentVersion{}, fmt.Errorf("beginning supersede transaction: %w", err)
	}

	var oldContent []byte
	var oldDigest string
	var oldSize int64
	err = tx.QueryRow(`SELECT content, digest, file_size FROM documents WHERE id = ?`, id).
		Scan(&oldContent, &oldDigest, &oldSize)
	if err == sql.ErrNoRows {
		tx.Rollback()
		return DocumentVersion{}, ErrNotFound
	}
	if err != nil {
		tx.Rollback()
		return DocumentVersion{}, err
	}

	// Link the new version to the latest existing one, if any.
	var priorID string
	err = tx.QueryRow(
		`SELECT id FROM document_versions WHERE document_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`,
		id,
	).Scan(&priorID)
	if err != nil && err != sql.ErrNoRows {
		tx.Rollback()
		return DocumentVersion{}, err
	}

	now := time.Now().UTC()
	v := DocumentVersion{
		ID:             uuid.New().String(),
		DocumentID:     id,
		PriorVersionID: priorID,
		Digest:         oldDigest,
		Content:        oldContent,
		FileSize:       oldSize,
		CreatedAt:      now,
	}
	if _, err := tx.Exec(
		`INSERT INTO document_versions (id, document_id, prior_version_id, digest, content, file_size, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.DocumentID, v.PriorVersionID, v.Digest, v.Content, v.FileSize, now.Format(time.RFC3339),
	); err != nil {
		tx.Rollback()
		return DocumentVersion{}, fmt.Errorf("inserting version: %w", err)
	}

	if _, err := tx.Exec(
		`UPDATE documents SET content = ?, digest = ?, file_size = ?, updated_at = ? WHERE id = ?`,
		newContent, newDigest, newSize, now.Format(time.RFC3339), id,
	); err != nil {
		tx.Rollback()
		if isUniqueViolation(err) {
			return DocumentVersion{}, ErrDuplicateDigest
		}
		return DocumentVersion{}, fmt.Errorf("updating document content: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return DocumentVersion{}, err
	}
	return v, nil
}

// ListDocumentVersions returns a document's version history, oldest first.
func (s *Store) ListDocumentVersions(documentID string) ([]DocumentVersion, error) {
	rows, err := s.db.Query(
		`SELECT id, document_id, prior_version_id, digest, file_size, created_at
		 FROM document_versions WHERE document_id = ? ORDER BY created_at ASC, id ASC`,
		documentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []DocumentVersion
	for rows.Next() {
		var v DocumentVersion
		var createdAt string
		if err := rows.Scan(&v.ID, &v.DocumentID, &v.PriorVersionID, &v.Digest, &v.FileSize, &createdAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		v.CreatedAt = t
		results = append(results, v)
	}
	return results, rows.Err()
}

// CountDocuments returns the number of documents for a tenant ("" = all tenants).
func (s *Store) CountDocuments(tenantCode string) (int, error) {
	var n int
	var err error
	if tenantCode == "" {
		err = s.db.QueryRow(`SELECT COUNT(*) FROM documents`).Scan(&n)
	} else {
		err = s.db.QueryRow(`SELECT COUNT(*) FROM documents WHERE tenant_code = ?`, tenantCode).Scan(&n)
	}
	return n, err
}

const dateFormat = "2006-01-02"

func formatDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(dateFormat)
}

func parseDocumentTimes(d *Document, docDate, expiry sql.NullString, createdAt, updatedAt string) error {
	if docDate.Valid {
		t, err := time.Parse(dateFormat, docDate.String)
		if err != nil {
			return fmt.Errorf("parsing document_date: %w", err)
		}
		d.DocumentDate = &t
	}
	if expiry.Valid {
		t, err := time.Parse(dateFormat, expiry.String)
		if err != nil {
			return fmt.Errorf("parsing retention_expiry: %w", err)
		}
		d.RetentionExpiry = &t
	}
	c, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return fmt.Errorf("parsing created_at: %w", err)
	}
	d.CreatedAt = c
	u, err := time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return fmt.Errorf("parsing updated_at: %w", err)
	}
	d.UpdatedAt = u
	return nil
}
