package storage

import (
	"strings"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testDocument(id, tenantCode, digest string) Document {
	now := time.Now().UTC()
	return Document{
		ID:               id,
		TenantCode:       tenantCode,
		Title:            "Arbeitsvertrag",
		OriginalFilename: "vertrag.pdf",
		FileExtension:    ".pdf",
		MimeType:         "application/pdf",
		Content:          []byte("sealed-bytes"),
		FileSize:         12,
		Digest:           digest,
		Source:           SourceArchive,
		Status:           StatusStored,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("reading migrations: %v", err)
	}
	if len(v1) == 0 {
		t.Fatal("no migrations applied")
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer s2.Close()
	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("reading migrations: %v", err)
	}
	if len(v2) != len(v1) {
		t.Fatalf("migrations re-applied: %v vs %v", v1, v2)
	}
	for i := 1; i < len(v2); i++ {
		if v2[i] <= v2[i-1] {
			t.Fatalf("migration versions not ascending: %v", v2)
		}
	}
}

func TestGetOrCreateTenant(t *testing.T) {
	store := newTestStore(t)

	tn, created, err := store.GetOrCreateTenant("12345678", "Mandant 12345678")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !created || tn.Code != "12345678" {
		t.Fatalf("expected new tenant, got created=%v %+v", created, tn)
	}

	_, created, err = store.GetOrCreateTenant("12345678", "different name")
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if created {
		t.Fatal("tenant reported as created twice")
	}

	again, err := store.GetTenant("12345678")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if again.Name != "Mandant 12345678" {
		t.Errorf("name overwritten on second call: %q", again.Name)
	}
}

func TestDigestUniquePerTenant(t *testing.T) {
	store := newTestStore(t)

	if err := store.InsertDocumentBatch([]Document{testDocument("d1", "11111111", "abc")}, nil); err != nil {
		t.Fatalf("first insert: %v", err)
	}

	// Same digest, same tenant: rejected.
	err := store.InsertDocumentBatch([]Document{testDocument("d2", "11111111", "abc")}, nil)
	if err != ErrDuplicateDigest {
		t.Fatalf("expected ErrDuplicateDigest, got %v", err)
	}

	// Same digest, different tenant: allowed.
	if err := store.InsertDocumentBatch([]Document{testDocument("d3", "22222222", "abc")}, nil); err != nil {
		t.Fatalf("cross-tenant insert: %v", err)
	}

	id, err := store.FindDocumentIDByDigest("11111111", "abc")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if id != "d1" {
		t.Errorf("expected d1, got %s", id)
	}
	if _, err := store.FindDocumentIDByDigest("33333333", "abc"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound for unknown tenant, got %v", err)
	}
}

func TestBatchIsAtomic(t *testing.T) {
	store := newTestStore(t)

	if err := store.InsertDocumentBatch([]Document{testDocument("d1", "11111111", "abc")}, nil); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// A batch with one conflicting row must not commit the clean rows either.
	batch := []Document{
		testDocument("d2", "11111111", "def"),
		testDocument("d3", "11111111", "abc"),
	}
	if err := store.InsertDocumentBatch(batch, nil); err != ErrDuplicateDigest {
		t.Fatalf("expected ErrDuplicateDigest, got %v", err)
	}
	if _, err := store.FindDocumentIDByDigest("11111111", "def"); err != ErrNotFound {
		t.Errorf("partial batch leaked into store: %v", err)
	}
}

func TestDocumentTagsRoundTrip(t *testing.T) {
	store := newTestStore(t)

	doc := testDocument("d1", "11111111", "abc")
	tags := map[string][]string{"d1": {"payroll", "urgent"}}
	if err := store.InsertDocumentBatch([]Document{doc}, tags); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := store.GetDocumentTags("d1")
	if err != nil {
		t.Fatalf("tags: %v", err)
	}
	if len(got) != 2 || got[0] != "payroll" || got[1] != "urgent" {
		t.Errorf("unexpected tags %v", got)
	}
}

func TestUpdateClassification(t *testing.T) {
	store := newTestStore(t)

	if err := store.UpsertCategory(FileCategory{
		Code: "03", Name: "Entgeltabrechnung", RetentionTrigger: TriggerCreation, RetentionYears: 6,
	}); err != nil {
		t.Fatalf("category: %v", err)
	}
	if err := store.InsertDocumentBatch([]Document{testDocument("d1", "11111111", "abc")}, nil); err != nil {
		t.Fatalf("insert: %v", err)
	}

	unclassified, err := store.ListUnclassified("11111111")
	if err != nil {
		t.Fatalf("list unclassified: %v", err)
	}
	if len(unclassified) != 1 {
		t.Fatalf("expected 1 unclassified, got %d", len(unclassified))
	}

	expiry := time.Date(2032, 3, 1, 0, 0, 0, 0, time.UTC)
	if err := store.UpdateClassification("d1", "03", &expiry, []string{"payroll"}); err != nil {
		t.Fatalf("update: %v", err)
	}

	doc, err := store.GetDocument("d1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc.CategoryCode != "03" {
		t.Errorf("category not updated: %q", doc.CategoryCode)
	}
	if doc.RetentionExpiry == nil || !doc.RetentionExpiry.Equal(expiry) {
		t.Errorf("expiry not updated: %v", doc.RetentionExpiry)
	}

	unclassified, err = store.ListUnclassified("11111111")
	if err != nil {
		t.Fatalf("list unclassified: %v", err)
	}
	if len(unclassified) != 0 {
		t.Errorf("document still listed as unclassified")
	}

	if err := store.UpdateClassification("missing", "03", nil, nil); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDocumentsPendingExpiry(t *testing.T) {
	store := newTestStore(t)

	if err := store.UpsertCategory(FileCategory{
		Code: "07", Name: "Austritt", RetentionTrigger: TriggerExit, RetentionYears: 10,
	}); err != nil {
		t.Fatalf("category: %v", err)
	}

	classified := testDocument("d1", "11111111", "abc")
	deferred := testDocument("d2", "11111111", "def")
	if err := store.InsertDocumentBatch([]Document{classified, deferred}, nil); err != nil {
		t.Fatalf("insert: %v", err)
	}
	expiry := time.Date(2036, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := store.UpdateClassification("d1", "07", &expiry, nil); err != nil {
		t.Fatalf("classify d1: %v", err)
	}
	if err := store.UpdateClassification("d2", "07", nil, nil); err != nil {
		t.Fatalf("classify d2: %v", err)
	}

	pending, err := store.DocumentsPendingExpiry("11111111")
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "d2" {
		t.Fatalf("expected only the deferred document, got %+v", pending)
	}
}

func TestSupersedeDocument(t *testing.T) {
	store := newTestStore(t)

	if err := store.InsertDocumentBatch([]Document{testDocument("d1", "11111111", "abc")}, nil); err != nil {
		t.Fatalf("insert: %v", err)
	}

	v1, err := store.SupersedeDocument("d1", []byte("revision-2"), "digest-2", 10)
	if err != nil {
		t.Fatalf("first supersede: %v", err)
	}
	if v1.Digest != "abc" {
		t.Errorf("version must carry the prior digest, got %q", v1.Digest)
	}
	if v1.PriorVersionID != "" {
		t.Errorf("first version has no predecessor, got %q", v1.PriorVersionID)
	}

	doc, err := store.GetDocument("d1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc.Digest != "digest-2" || string(doc.Content) != "revision-2" {
		t.Errorf("live document not updated: %+v", doc)
	}

	// Dedup now tracks the live content.
	if id, err := store.FindDocumentIDByDigest("11111111", "digest-2"); err != nil || id != "d1" {
		t.Errorf("digest index not moved: %s %v", id, err)
	}
	if _, err := store.FindDocumentIDByDigest("11111111", "abc"); err != ErrNotFound {
		t.Errorf("old digest still live: %v", err)
	}

	v2, err := store.SupersedeDocument("d1", []byte("revision-3"), "digest-3", 10)
	if err != nil {
		t.Fatalf("second supersede: %v", err)
	}
	if v2.PriorVersionID != v1.ID {
		t.Errorf("version chain broken: %q != %q", v2.PriorVersionID, v1.ID)
	}

	history, err := store.ListDocumentVersions("d1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 versions, got %d", len(history))
	}

	if _, err := store.SupersedeDocument("missing", nil, "x", 0); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMailCursorIsMonotonic(t *testing.T) {
	store := newTestStore(t)

	cursor, err := store.GetMailCursor("inbox")
	if err != nil {
		t.Fatalf("initial cursor: %v", err)
	}
	if cursor != "" {
		t.Fatalf("expected empty initial cursor, got %q", cursor)
	}

	if err := store.AdvanceMailCursor("inbox", "0005"); err != nil {
		t.Fatalf("advance: %v", err)
	}
	// An out-of-order worker finishing late must not rewind the cursor.
	if err := store.AdvanceMailCursor("inbox", "0003"); err != nil {
		t.Fatalf("stale advance: %v", err)
	}

	cursor, err = store.GetMailCursor("inbox")
	if err != nil {
		t.Fatalf("cursor: %v", err)
	}
	if cursor != "0005" {
		t.Fatalf("cursor rewound to %q", cursor)
	}
}

func TestHRFeedIdempotency(t *testing.T) {
	store := newTestStore(t)

	leave := LeaveRequest{RequestID: "lr-1", TenantCode: "11111111", EmployeeID: "E-42", DocumentID: "d1"}
	inserted, err := store.RecordLeaveRequest(leave)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if !inserted {
		t.Fatal("first record not inserted")
	}
	inserted, err = store.RecordLeaveRequest(leave)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if inserted {
		t.Fatal("replayed leave request inserted twice")
	}

	sheet := Timesheet{TenantCode: "11111111", EmployeeID: "E-42", Year: 2026, Month: 7, DocumentID: "d2"}
	inserted, err = store.RecordTimesheet(sheet)
	if err != nil {
		t.Fatalf("timesheet: %v", err)
	}
	if !inserted {
		t.Fatal("first timesheet not inserted")
	}
	inserted, err = store.RecordTimesheet(sheet)
	if err != nil {
		t.Fatalf("timesheet replay: %v", err)
	}
	if inserted {
		t.Fatal("replayed timesheet inserted twice")
	}
}

func TestAuditLog(t *testing.T) {
	store := newTestStore(t)

	entries := []AuditEntry{
		{TenantCode: "11111111", DocumentID: "d1", Channel: "archive", Outcome: AuditCreated, Message: "document stored"},
		{TenantCode: "11111111", DocumentID: "d1", Channel: "intake", Outcome: AuditDuplicate, Message: "content already stored"},
		{TenantCode: "11111111", Channel: "intake", Outcome: AuditFailed, Message: "unreadable"},
	}
	for _, e := range entries {
		if err := store.AppendAudit(e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	got, err := store.ListAudit(10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	for _, e := range got {
		if e.ID == "" || e.CreatedAt.IsZero() {
			t.Errorf("entry missing defaults: %+v", e)
		}
		if !strings.HasPrefix(e.Details, "{") {
			t.Errorf("details not JSON: %q", e.Details)
		}
	}

	n, err := store.CountAuditByOutcome("d1", AuditDuplicate)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 duplicate entry, got %d", n)
	}
}

func TestRulePriorityOrdering(t *testing.T) {
	store := newTestStore(t)

	for _, r := range []MatchingRule{
		{Name: "later", Strategy: "ANY", Pattern: "x", Priority: 5, Active: true},
		{Name: "first", Strategy: "ANY", Pattern: "y", Priority: 1, Active: true},
		{Name: "inactive", Strategy: "ANY", Pattern: "z", Priority: 0, Active: false},
	} {
		if _, err := store.InsertRule(r); err != nil {
			t.Fatalf("insert rule: %v", err)
		}
	}

	rules, err := store.ListActiveRules()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("expected 2 active rules, got %d", len(rules))
	}
	if rules[0].Name != "first" || rules[1].Name != "later" {
		t.Errorf("rules not ordered by priority: %v", rules)
	}
}
