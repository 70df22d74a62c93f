package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// --- Tenants ---

// GetOrCreateTenant returns the tenant with the given code, creating it on
// first sight. The created flag reports whether a new record was inserted.
func (s *Store) GetOrCreateTenant(code, name string) (Tenant, bool, error) {
	t, err := s.GetTenant(code)
	if err == nil {
		return t, false, nil
	}
	if err != ErrNotFound {
		return Tenant{}, false, err
	}

	now := time.Now().UTC()
	_, err = s.db.Exec(
		`INSERT INTO tenants (code, name, active, created_at) VALUES (?, ?, 1, ?)
		 ON CONFLICT(code) DO NOTHING`,
		code, name, now.Format(time.RFC3339),
	)
	if err != nil {
		return Tenant{}, false, fmt.Errorf("creating tenant %s: %w", code, err)
	}
	t, err = s.GetTenant(code)
	return t, true, err
}

func (s *Store) GetTenant(code string) (Tenant, error) {
	var t Tenant
	var createdAt string
	err := s.db.QueryRow(
		`SELECT code, name, active, created_at FROM tenants WHERE code = ?`, code,
	).Scan(&t.Code, &t.Name, &t.Active, &createdAt)
	if err == sql.ErrNoRows {
		return Tenant{}, ErrNotFound
	}
	if err != nil {
		return Tenant{}, err
	}
	ts, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return Tenant{}, fmt.Errorf("parsing created_at: %w", err)
	}
	t.CreatedAt = ts
	return t, nil
}

func (s *Store) ListTenants() ([]Tenant, error) {
	rows, err := s.db.Query(`SELECT code, name, active, created_at FROM tenants ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Tenant
	for rows.Next() {
		var t Tenant
		var createdAt string
		if err := rows.Scan(&t.Code, &t.Name, &t.Active, &createdAt); err != nil {
			return nil, err
		}
		ts, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		t.CreatedAt = ts
		results = append(results, t)
	}
	return results, rows.Err()
}

// --- File categories ---

// UpsertCategory inserts or updates a filing-plan node.
func (s *Store) UpsertCategory(c FileCategory) error {
	_, err := s.db.Exec(`
		INSERT INTO file_categories (code, parent_code, name, description, retention_trigger,
			retention_years, retention_years_max, mandatory, sort_order)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			parent_code = excluded.parent_code,
			name = excluded.name,
			description = excluded.description,
			retention_trigger = excluded.retention_trigger,
			retention_years = excluded.retention_years,
			retention_years_max = excluded.retention_years_max,
			mandatory = excluded.mandatory,
			sort_order = excluded.sort_order`,
		c.Code, nullIfEmpty(c.ParentCode), c.Name, c.Description, c.RetentionTrigger,
		c.RetentionYears, c.RetentionYearsMax, c.Mandatory, c.SortOrder,
	)
	return err
}

func (s *Store) GetCategory(code string) (FileCategory, error) {
	var c FileCategory
	var parent sql.NullString
	err := s.db.QueryRow(`
		SELECT code, parent_code, name, description, retention_trigger,
			retention_years, retention_years_max, mandatory, sort_order
		FROM file_categories WHERE code = ?`, code,
	).Scan(&c.Code, &parent, &c.Name, &c.Description, &c.RetentionTrigger,
		&c.RetentionYears, &c.RetentionYearsMax, &c.Mandatory, &c.SortOrder)
	if err == sql.ErrNoRows {
		return FileCategory{}, ErrNotFound
	}
	if err != nil {
		return FileCategory{}, err
	}
	c.ParentCode = parent.String
	return c, nil
}

func (s *Store) ListCategories() ([]FileCategory, error) {
	rows, err := s.db.Query(`
		SELECT code, parent_code, name, description, retention_trigger,
			retention_years, retention_years_max, mandatory, sort_order
		FROM file_categories ORDER BY sort_order, code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []FileCategory
	for rows.Next() {
		var c FileCategory
		var parent sql.NullString
		if err := rows.Scan(&c.Code, &parent, &c.Name, &c.Description, &c.RetentionTrigger,
			&c.RetentionYears, &c.RetentionYearsMax, &c.Mandatory, &c.SortOrder); err != nil {
			return nil, err
		}
		c.ParentCode = parent.String
		results = append(results, c)
	}
	return results, rows.Err()
}

// --- Matching rules ---

// InsertRule stores a matching rule. An empty ID is filled with a fresh UUID.
func (s *Store) InsertRule(r MatchingRule) (MatchingRule, error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO matching_rules (id, name, strategy, pattern, category_code, tag, priority, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Name, r.Strategy, r.Pattern, r.CategoryCode, r.Tag, r.Priority, r.Active,
		r.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return MatchingRule{}, err
	}
	return r, nil
}

// ListActiveRules returns active rules ordered ascending by priority, the
// evaluation order of the matching engine.
func (s *Store) ListActiveRules() ([]MatchingRule, error) {
	rows, err := s.db.Query(`
		SELECT id, name, strategy, pattern, category_code, tag, priority, active, created_at
		FROM matching_rules WHERE active = 1 ORDER BY priority ASC, created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []MatchingRule
	for rows.Next() {
		var r MatchingRule
		var createdAt string
		if err := rows.Scan(&r.ID, &r.Name, &r.Strategy, &r.Pattern, &r.CategoryCode, &r.Tag,
			&r.Priority, &r.Active, &createdAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		r.CreatedAt = t
		results = append(results, r)
	}
	return results, rows.Err()
}

// --- Employees ---

// UpsertEmployee inserts or updates an employee keyed by (tenant, employee_id).
func (s *Store) UpsertEmployee(e Employee) (Employee, error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	_, err := s.db.Exec(`
		INSERT INTO employees (id, tenant_code, employee_id, first_name, last_name, entry_date, exit_date, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_code, employee_id) DO UPDATE SET
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			entry_date = excluded.entry_date,
			exit_date = excluded.exit_date,
			active = excluded.active`,
		e.ID, e.TenantCode, e.EmployeeID, e.FirstName, e.LastName,
		formatDate(e.EntryDate), formatDate(e.ExitDate), e.Active,
	)
	if err != nil {
		return Employee{}, err
	}
	return s.GetEmployee(e.TenantCode, e.EmployeeID)
}

func (s *Store) GetEmployee(tenantCode, employeeID string) (Employee, error) {
	var e Employee
	var entry, exit sql.NullString
	err := s.db.QueryRow(`
		SELECT id, tenant_code, employee_id, first_name, last_name, entry_date, exit_date, active
		FROM employees WHERE tenant_code = ? AND employee_id = ?`,
		tenantCode, employeeID,
	).Scan(&e.ID, &e.TenantCode, &e.EmployeeID, &e.FirstName, &e.LastName, &entry, &exit, &e.Active)
	if err == sql.ErrNoRows {
		return Employee{}, ErrNotFound
	}
	if err != nil {
		return Employee{}, err
	}
	if entry.Valid {
		t, err := time.Parse(dateFormat, entry.String)
		if err != nil {
			return Employee{}, fmt.Errorf("parsing entry_date: %w", err)
		}
		e.EntryDate = &t
	}
	if exit.Valid {
		t, err := time.Parse(dateFormat, exit.String)
		if err != nil {
			return Employee{}, fmt.Errorf("parsing exit_date: %w", err)
		}
		e.ExitDate = &t
	}
	return e, nil
}

// --- Mailbox cursors ---

// GetMailCursor returns the last-processed cursor for a mailbox, or "" if the
// mailbox has never been polled.
func (s *Store) GetMailCursor(mailbox string) (string, error) {
	var cursor string
	err := s.db.QueryRow(`SELECT cursor FROM mail_cursors WHERE mailbox = ?`, mailbox).Scan(&cursor)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return cursor, err
}

// AdvanceMailCursor moves the mailbox cursor forward. The cursor only ever
// advances; an equal or smaller value is a no-op so a lagging scan cannot
// cause messages to be reprocessed.
func (s *Store) AdvanceMailCursor(mailbox, cursor string) error {
	_, err := s.db.Exec(`
		INSERT INTO mail_cursors (mailbox, cursor, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(mailbox) DO UPDATE SET
			cursor = excluded.cursor,
			updated_at = excluded.updated_at
		WHERE excluded.cursor > mail_cursors.cursor`,
		mailbox, cursor, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// --- Imported HR-feed records ---

// RecordLeaveRequest marks a feed leave request as imported. Returns false if
// the request ID was already recorded (idempotent re-delivery).
func (s *Store) RecordLeaveRequest(r LeaveRequest) (bool, error) {
	if r.ImportedAt.IsZero() {
		r.ImportedAt = time.Now().UTC()
	}
	res, err := s.db.Exec(`
		INSERT OR IGNORE INTO leave_requests (request_id, tenant_code, employee_id, document_id, imported_at)
		VALUES (?, ?, ?, ?, ?)`,
		r.RequestID, r.TenantCode, r.EmployeeID, r.DocumentID, r.ImportedAt.Format(time.RFC3339),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// RecordTimesheet marks a monthly timesheet as imported. Returns false if the
// (tenant, employee, year, month) period was already recorded.
func (s *Store) RecordTimesheet(t Timesheet) (bool, error) {
	if t.ImportedAt.IsZero() {
		t.ImportedAt = time.Now().UTC()
	}
	res, err := s.db.Exec(`
		INSERT OR IGNORE INTO timesheets (tenant_code, employee_id, year, month, document_id, imported_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.TenantCode, t.EmployeeID, t.Year, t.Month, t.DocumentID, t.ImportedAt.Format(time.RFC3339),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
