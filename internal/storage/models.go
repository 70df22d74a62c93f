package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateDigest is returned when a document with the same content digest
// already exists for the tenant. It is a normal skip outcome, not a failure.
var ErrDuplicateDigest = errors.New("duplicate digest for tenant")

// Document statuses.
const (
	StatusPending = "pending"
	StatusStored  = "stored"
	StatusFailed  = "failed"
)

// Source channels.
const (
	SourceArchive = "archive"
	SourceIntake  = "intake"
	SourceUpload  = "upload"
	SourceMailbox = "mailbox"
)

type Document struct {
	ID               string
	TenantCode       string
	Title            string
	OriginalFilename string
	FileExtension    string
	MimeType         string
	Content          []byte // sealed (encrypted) bytes
	FileSize         int64
	Digest           string // lowercase hex sha256 of the plaintext
	Source           string
	CategoryCode     string // empty = uncategorized, awaiting manual triage
	EmployeeID       string
	Status           string
	DocumentDate     *time.Time
	RetentionExpiry  *time.Time // nil = pending (e.g. exit date not yet known)
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// DocumentVersion is an append-only history entry created when a document is
// explicitly superseded. Versions are never deleted.
type DocumentVersion struct {
	ID             string
	DocumentID     string
	PriorVersionID string
	Digest         string
	Content        []byte
	FileSize       int64
	CreatedAt      time.Time
}

type Tenant struct {
	Code      string // fixed-width numeric, from the archive folder name
	Name      string
	Active    bool
	CreatedAt time.Time
}

// Retention trigger keywords.
const (
	TriggerCreation     = "creation"
	TriggerExit         = "exit"
	TriggerDocumentDate = "document-date"
)

// FileCategory is a node in the hierarchical filing plan. RetentionYearsMax is
// zero unless the law specifies a year range instead of a single duration.
type FileCategory struct {
	Code              string
	ParentCode        string
	Name              string
	Description       string
	RetentionTrigger  string
	RetentionYears    int
	RetentionYearsMax int
	Mandatory         bool
	SortOrder         int
}

type MatchingRule struct {
	ID           string
	Name         string
	Strategy     string // ANY, ALL, EXACT, REGEX, FUZZY
	Pattern      string
	CategoryCode string
	Tag          string
	Priority     int // lower = evaluated first
	Active       bool
	CreatedAt    time.Time
}

// Audit outcomes.
const (
	AuditCreated   = "created"
	AuditDuplicate = "duplicate"
	AuditFailed    = "failed"
	AuditRuleError = "rule_error"
)

type AuditEntry struct {
	ID         string
	DocumentID string
	TenantCode string
	Channel    string
	Outcome    string
	Message    string
	Details    string // JSON object stored as text
	CreatedAt  time.Time
}

type Employee struct {
	ID         string
	TenantCode string
	EmployeeID string
	FirstName  string
	LastName   string
	EntryDate  *time.Time
	ExitDate   *time.Time
	Active     bool
}

// LeaveRequest tracks an imported HR-feed leave request. RequestID is the
// feed's idempotency key.
type LeaveRequest struct {
	RequestID  string
	TenantCode string
	EmployeeID string
	DocumentID string
	ImportedAt time.Time
}

// Timesheet tracks an imported monthly timesheet, keyed by employee and period.
type Timesheet struct {
	TenantCode string
	EmployeeID string
	Year       int
	Month      int
	DocumentID string
	ImportedAt time.Time
}
