package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mboehler/aktis/internal/channel"
	"github.com/mboehler/aktis/internal/digest"
	"github.com/mboehler/aktis/internal/extract"
	"github.com/mboehler/aktis/internal/match"
	"github.com/mboehler/aktis/internal/retention"
	"github.com/mboehler/aktis/internal/seal"
	"github.com/mboehler/aktis/internal/storage"
	"github.com/mboehler/aktis/internal/tenant"
)

// Options tunes a pipeline run. Zero values fall back to the defaults
// documented on each field.
type Options struct {
	// Workers is the number of concurrent item processors. Defaults to 4.
	Workers int
	// BatchSize is the number of documents buffered before a transactional
	// flush. Defaults to 25.
	BatchSize int
	// ItemTimeout bounds the processing of a single candidate. Defaults to
	// one minute.
	ItemTimeout time.Duration
	// MaxFileSize is the per-file byte ceiling. Files above it fail before
	// any content is read. Defaults to seal.DefaultMaxSize.
	MaxFileSize int64
	// FallbackTenant receives intake files that carry no tenant folder.
	// Empty means such files fail instead.
	FallbackTenant string
	// LockDir, when set, holds per-channel lock files so that at most one
	// scan per channel runs at a time.
	LockDir string
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 25
	}
	if o.ItemTimeout <= 0 {
		o.ItemTimeout = time.Minute
	}
	if o.MaxFileSize <= 0 {
		o.MaxFileSize = seal.DefaultMaxSize
	}
	return o
}

// Report summarizes a completed scan.
type Report struct {
	Channel    string        `json:"channel"`
	Processed  int           `json:"processed"`
	Duplicates int           `json:"duplicates"`
	Failed     int           `json:"failed"`
	NewTenants int           `json:"new_tenants"`
	RuleErrors int           `json:"rule_errors"`
	Elapsed    time.Duration `json:"elapsed"`
}

// Pipeline moves candidates from a channel scanner through hashing,
// dedup, classification, retention and sealing into the store.
type Pipeline struct {
	store  *storage.Store
	engine *match.Engine
	sealer *seal.Service
	cache  *digest.Cache
	opts   Options
	logger *slog.Logger

	mu         sync.Mutex
	report     Report
	newTenants map[string]bool
}

// New creates a Pipeline. The digest cache persists across runs when the
// same Pipeline is reused, so repeated scans of an unchanged archive skip
// rehashing.
func New(store *storage.Store, engine *match.Engine, sealer *seal.Service, opts Options) *Pipeline {
	return &Pipeline{
		store:  store,
		engine: engine,
		sealer: sealer,
		cache:  digest.NewCache(),
		opts:   opts.withDefaults(),
		logger: slog.Default(),
	}
}

// Run drains the scanner and returns a report. Item failures are isolated:
// they are counted and audited but never abort the run. Run returns an
// error only when the scan itself cannot proceed, for example when another
// scan of the same channel holds the lock.
func (p *Pipeline) Run(ctx context.Context, scanner channel.Scanner) (Report, error) {
	if scanner.SharedSource() {
		release, err := acquireLock(p.opts.LockDir, scanner.Name())
		if err != nil {
			return Report{}, err
		}
		defer release()
	}

	start := time.Now()
	p.mu.Lock()
	p.report = Report{Channel: scanner.Name()}
	p.newTenants = make(map[string]bool)
	p.mu.Unlock()

	p.auditBadRules(scanner.Name())

	committer := newCommitter(p.store, p.opts.BatchSize)
	seen := make(map[string]bool)
	var seenMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)

	scanErr := scanner.Scan(gctx, func(c channel.Candidate) error {
		if c.Path != "" {
			seenMu.Lock()
			seen[c.Path] = true
			seenMu.Unlock()
		}
		g.Go(func() error {
			p.processItem(gctx, scanner, committer, c)
			return nil
		})
		return gctx.Err()
	})

	if err := g.Wait(); err != nil {
		return p.snapshot(start), err
	}
	p.finalizeBatch(committer.flush())

	p.cache.Sweep(seen)

	if scanErr != nil {
		return p.snapshot(start), fmt.Errorf("scanning %s: %w", scanner.Name(), scanErr)
	}
	return p.snapshot(start), nil
}

func (p *Pipeline) snapshot(start time.Time) Report {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.report.Elapsed = time.Since(start)
	return p.report
}

// auditBadRules records one rule_error audit entry per rule that failed to
// compile. Bad rules stay inert for the rest of the run.
func (p *Pipeline) auditBadRules(channelName string) {
	for _, re := range p.engine.BadRules() {
		p.logger.Warn("matching rule disabled",
			"rule_id", re.Rule.ID, "pattern", re.Rule.Pattern, "error", re.Err)
		entry := storage.AuditEntry{
			Channel: channelName,
			Outcome: storage.AuditRuleError,
			Message: fmt.Sprintf("rule %s disabled: %s", re.Rule.Name, re.Err),
			Details: fmt.Sprintf(`{"rule_id":%q,"pattern":%q}`, re.Rule.ID, re.Rule.Pattern),
		}
		if err := p.store.AppendAudit(entry); err != nil {
			p.logger.Error("recording rule error", "error", err)
		}
		p.mu.Lock()
		p.report.RuleErrors++
		p.mu.Unlock()
	}
}

// processItem runs one candidate through the full state machine. All
// failures end in failItem; nothing propagates.
func (p *Pipeline) processItem(ctx context.Context, scanner channel.Scanner, committer *committer, c channel.Candidate) {
	ctx, cancel := context.WithTimeout(ctx, p.opts.ItemTimeout)
	defer cancel()

	code, err := p.resolveTenant(scanner.Name(), c)
	if err != nil {
		p.failItem(scanner, c, "", fmt.Errorf("resolving tenant for %s: %w", c.Name, err))
		return
	}

	if err := p.ensureTenant(code); err != nil {
		p.failItem(scanner, c, code, err)
		return
	}

	dig, size, err := p.digestCandidate(ctx, c)
	if err != nil {
		p.failItem(scanner, c, code, err)
		return
	}

	// Check the store and reserve the digest against concurrent workers in
	// one step, so identical files in the same run cannot both commit.
	existingID, reserved, err := committer.checkAndReserve(code, dig)
	if err != nil {
		p.failItem(scanner, c, code, fmt.Errorf("checking digest for %s: %w", c.Name, err))
		return
	}
	if !reserved {
		p.duplicateItem(scanner, c, code, existingID)
		return
	}

	doc, tags, err := p.buildDocument(ctx, c, scanner.Name(), code, dig, size)
	if err != nil {
		committer.unreserve(code, dig)
		p.failItem(scanner, c, code, err)
		return
	}

	p.finalizeBatch(committer.add(pendingItem{
		doc:       doc,
		tags:      tags,
		candidate: c,
		scanner:   scanner,
	}))
}

// resolveTenant returns the tenant code for a candidate. Pre-resolved
// candidates (upload, mailbox) win; file candidates derive the code from
// the first path segment. The intake channel alone may fall back to the
// configured default tenant.
func (p *Pipeline) resolveTenant(channelName string, c channel.Candidate) (string, error) {
	if c.TenantCode != "" {
		if !tenant.ValidCode(c.TenantCode) {
			return "", fmt.Errorf("invalid tenant code %q", c.TenantCode)
		}
		return c.TenantCode, nil
	}
	code, err := tenant.Resolve(c.RelPath)
	if err == nil {
		return code, nil
	}
	if channelName == "intake" && p.opts.FallbackTenant != "" {
		return p.opts.FallbackTenant, nil
	}
	return "", err
}

func (p *Pipeline) ensureTenant(code string) error {
	name := tenant.DefaultName(code)
	_, created, err := p.store.GetOrCreateTenant(code, name)
	if err != nil {
		return fmt.Errorf("ensuring tenant %s: %w", code, err)
	}
	if created {
		p.logger.Info("registered new tenant", "tenant", code)
		p.mu.Lock()
		if !p.newTenants[code] {
			p.newTenants[code] = true
			p.report.NewTenants++
		}
		p.mu.Unlock()
	}
	return nil
}

// runWithDeadline executes op on its own goroutine so a read that blocks
// indefinitely (a stuck mount, a writer-less pipe) cannot hold a worker
// slot past the item deadline. On expiry the goroutine is abandoned; the
// buffered channel lets it finish and be collected whenever the read
// returns.
func runWithDeadline(ctx context.Context, op func() error) error {
	done := make(chan error, 1)
	go func() { done <- op() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// digestCandidate hashes the candidate without loading oversized files.
// File-backed candidates go through the stat cache; in-memory ones are
// hashed directly. File I/O is bounded by the item deadline.
func (p *Pipeline) digestCandidate(ctx context.Context, c channel.Candidate) (string, int64, error) {
	if c.Path == "" {
		size := int64(len(c.Content))
		if size > p.opts.MaxFileSize {
			return "", 0, fmt.Errorf("%s: %d bytes: %w", c.Name, size, seal.ErrTooLarge)
		}
		return digest.HashBytes(c.Content), size, nil
	}

	var dig string
	var size int64
	err := runWithDeadline(ctx, func() error {
		info, err := os.Stat(c.Path)
		if err != nil {
			return fmt.Errorf("stat %s: %w", c.Path, err)
		}
		if info.Size() > p.opts.MaxFileSize {
			return fmt.Errorf("%s: %d bytes: %w", c.Path, info.Size(), seal.ErrTooLarge)
		}
		size = info.Size()
		dig, err = p.cache.Lookup(c.Path)
		if err != nil {
			return fmt.Errorf("hashing %s: %w", c.Path, err)
		}
		return nil
	})
	if err != nil {
		return "", 0, err
	}
	return dig, size, nil
}

// buildDocument classifies, computes retention and seals the content. The
// returned document is ready for a batch insert.
func (p *Pipeline) buildDocument(ctx context.Context, c channel.Candidate, source, code, dig string, size int64) (storage.Document, []string, error) {
	if err := ctx.Err(); err != nil {
		return storage.Document{}, nil, err
	}

	content := c.Content
	if c.Path != "" {
		var data []byte
		err := runWithDeadline(ctx, func() error {
			var err error
			data, err = os.ReadFile(c.Path)
			return err
		})
		if err != nil {
			return storage.Document{}, nil, fmt.Errorf("reading %s: %w", c.Path, err)
		}
		content = data
	}

	matches := p.engine.Evaluate(classificationText(c, content))
	categoryCode := match.CategoryOf(matches)
	tags := match.TagsOf(matches)

	now := time.Now().UTC()
	expiry, err := p.retentionExpiry(categoryCode, code, c, now)
	if err != nil {
		// A broken filing plan entry must not lose the document; it stays
		// unclassified and can be picked up by a later reclassify run.
		p.logger.Warn("retention unavailable, leaving unclassified",
			"category", categoryCode, "file", c.Name, "error", err)
		categoryCode = ""
		tags = nil
		expiry = nil
	}

	sealed, err := p.sealer.Seal(content)
	if err != nil {
		return storage.Document{}, nil, fmt.Errorf("sealing %s: %w", c.Name, err)
	}

	ext := strings.ToLower(filepath.Ext(c.Name))
	title := c.Title
	if title == "" {
		title = strings.TrimSuffix(c.Name, ext)
	}

	doc := storage.Document{
		ID:               uuid.New().String(),
		TenantCode:       code,
		Title:            title,
		OriginalFilename: c.Name,
		FileExtension:    ext,
		MimeType:         mimeType(ext),
		Content:          sealed,
		FileSize:         size,
		Digest:           dig,
		Source:           source,
		CategoryCode:     categoryCode,
		EmployeeID:       c.EmployeeID,
		Status:           storage.StatusStored,
		DocumentDate:     c.DocumentDate,
		RetentionExpiry:  expiry,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	return doc, tags, nil
}

// retentionExpiry resolves the category's policy and computes the expiry
// date. A nil result with nil error means the policy defers until the
// missing reference date arrives.
func (p *Pipeline) retentionExpiry(categoryCode, tenantCode string, c channel.Candidate, now time.Time) (*time.Time, error) {
	if categoryCode == "" {
		return nil, nil
	}
	cat, err := p.store.GetCategory(categoryCode)
	if err != nil {
		return nil, fmt.Errorf("loading category %s: %w", categoryCode, err)
	}

	dates := retention.Dates{CreatedAt: now, DocumentDate: c.DocumentDate}
	if c.EmployeeID != "" {
		emp, err := p.store.GetEmployee(tenantCode, c.EmployeeID)
		if err == nil {
			dates.ExitDate = emp.ExitDate
		} else if err != storage.ErrNotFound {
			return nil, fmt.Errorf("loading employee %s: %w", c.EmployeeID, err)
		}
	}

	policy := retention.Policy{Trigger: retention.Trigger(cat.RetentionTrigger), Years: cat.RetentionYears}
	expiry, err := retention.Expiry(policy, dates)
	if err != nil {
		return nil, fmt.Errorf("computing retention for %s: %w", categoryCode, err)
	}
	return expiry, nil
}

// classificationText combines filename, title and extracted body text into
// the haystack the matching engine evaluates.
func classificationText(c channel.Candidate, content []byte) string {
	parts := []string{c.Name}
	if c.Title != "" && c.Title != c.Name {
		parts = append(parts, c.Title)
	}
	body, err := extract.Text(c.Name, content)
	if err != nil {
		// Unextractable content still classifies by filename and title.
		slog.Warn("text extraction failed", "file", c.Name, "error", err)
	}
	if body != "" {
		parts = append(parts, body)
	}
	return strings.Join(parts, "\n")
}

func (p *Pipeline) duplicateItem(scanner channel.Scanner, c channel.Candidate, code, existingID string) {
	p.logger.Info("duplicate skipped",
		"channel", scanner.Name(), "tenant", code, "file", c.Name, "document_id", existingID)
	entry := storage.AuditEntry{
		TenantCode: code,
		DocumentID: existingID,
		Channel:    scanner.Name(),
		Outcome:    storage.AuditDuplicate,
		Message:    "content already stored",
		Details:    fmt.Sprintf(`{"filename":%q}`, c.Name),
	}
	if err := p.store.AppendAudit(entry); err != nil {
		p.logger.Error("recording duplicate", "error", err)
	}
	if err := scanner.Finalize(c, channel.OutcomeDuplicate); err != nil {
		p.logger.Error("finalizing duplicate", "file", c.Name, "error", err)
	}
	p.mu.Lock()
	p.report.Duplicates++
	p.mu.Unlock()
}

func (p *Pipeline) failItem(scanner channel.Scanner, c channel.Candidate, code string, cause error) {
	p.logger.Warn("item failed",
		"channel", scanner.Name(), "tenant", code, "file", c.Name, "error", cause)
	entry := storage.AuditEntry{
		TenantCode: code,
		Channel:    scanner.Name(),
		Outcome:    storage.AuditFailed,
		Message:    cause.Error(),
		Details:    fmt.Sprintf(`{"filename":%q}`, c.Name),
	}
	if err := p.store.AppendAudit(entry); err != nil {
		p.logger.Error("recording failure", "error", err)
	}
	if err := scanner.Finalize(c, channel.OutcomeFailed); err != nil {
		p.logger.Error("finalizing failed item", "file", c.Name, "error", err)
	}
	p.mu.Lock()
	p.report.Failed++
	p.mu.Unlock()
}

// finalizeBatch handles the result of a committer flush: stored items are
// audited and finalized, a failed flush counts every buffered item as
// failed so its source file stays put for a retry.
func (p *Pipeline) finalizeBatch(items []pendingItem, err error) {
	if len(items) == 0 && err == nil {
		return
	}
	if err != nil {
		p.logger.Error("batch commit failed", "items", len(items), "error", err)
		p.mu.Lock()
		p.report.Failed += len(items)
		p.mu.Unlock()
		return
	}
	for _, item := range items {
		entry := storage.AuditEntry{
			TenantCode: item.doc.TenantCode,
			DocumentID: item.doc.ID,
			Channel:    item.doc.Source,
			Outcome:    storage.AuditCreated,
			Message:    "document stored",
			Details:    fmt.Sprintf(`{"filename":%q,"category":%q}`, item.doc.OriginalFilename, item.doc.CategoryCode),
		}
		if auditErr := p.store.AppendAudit(entry); auditErr != nil {
			p.logger.Error("recording creation", "document_id", item.doc.ID, "error", auditErr)
		}
		if finErr := item.scanner.Finalize(item.candidate, channel.OutcomeStored); finErr != nil {
			p.logger.Error("finalizing stored item", "file", item.candidate.Name, "error", finErr)
		}
	}
	p.mu.Lock()
	p.report.Processed += len(items)
	p.mu.Unlock()
}

func mimeType(ext string) string {
	if mt := mime.TypeByExtension(ext); mt != "" {
		return mt
	}
	return "application/octet-stream"
}
