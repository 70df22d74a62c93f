// Package channel provides the per-channel scanners feeding the ingestion
// pipeline and each channel's post-commit finalization semantics.
package channel

import (
	"context"
	"time"
)

// Candidate is one unit of work discovered by a scanner. File-backed channels
// set Path/RelPath and leave Content nil; buffer-backed channels (upload,
// mailbox) carry Content and a pre-resolved tenant.
type Candidate struct {
	Name         string // original filename
	Title        string
	Path         string // absolute source path (file channels)
	RelPath      string // path relative to the channel root, for tenant resolution
	Content      []byte // in-memory content (buffer channels)
	TenantCode   string // pre-resolved tenant ("" = resolve from RelPath)
	EmployeeID   string
	DocumentDate *time.Time
	Cursor       string // mailbox message cursor, empty elsewhere
}

// Outcome of processing one candidate, as seen by finalization.
type Outcome int

const (
	OutcomeStored Outcome = iota
	OutcomeDuplicate
	OutcomeFailed
)

// Scanner produces a channel's candidate sequence and applies its
// finalization contract. Enumeration is sequential; the pipeline consumes
// candidates with a bounded worker pool.
type Scanner interface {
	// Name identifies the channel ("archive", "intake", "upload", "mailbox").
	Name() string
	// Scan enumerates candidates, calling emit for each. Returning an error
	// from emit stops enumeration.
	Scan(ctx context.Context, emit func(Candidate) error) error
	// Finalize runs the channel's post-action for one candidate after its
	// outcome is durable. It must be idempotent: a crash between commit and
	// finalization is recovered by re-scanning, where the item dedup-skips.
	Finalize(c Candidate, outcome Outcome) error
	// SharedSource reports whether the channel reads a location shared
	// between invocations (a folder, a mailbox cursor). Such scans are
	// mutually excluded per channel; scans over private per-invocation
	// buffers may run concurrently.
	SharedSource() bool
}

// SupportedExtensions are the file types the file-backed channels ingest.
var SupportedExtensions = map[string]bool{
	".pdf":  true,
	".doc":  true,
	".docx": true,
	".xls":  true,
	".xlsx": true,
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".tiff": true,
	".txt":  true,
}
