package channel

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"
)

func collect(t *testing.T, s Scanner) []Candidate {
	t.Helper()
	var got []Candidate
	err := s.Scan(context.Background(), func(c Candidate) error {
		got = append(got, c)
		return nil
	})
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	return got
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func names(cs []Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Name
	}
	sort.Strings(out)
	return out
}

func TestArchiveScanEmitsTenantFiles(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"12345678/vertrag.pdf":       "a",
		"12345678/2020/zeugnis.docx": "b",
		"87654321/abrechnung.txt":    "c",
		"not-a-tenant/ignored.pdf":   "d",
		"12345678/unsupported.xyz":   "e",
		"readme.txt":                 "top-level files are emitted, resolution decides",
	})

	got := collect(t, &Archive{Root: root})

	want := []string{"abrechnung.txt", "readme.txt", "vertrag.pdf", "zeugnis.docx"}
	if g := names(got); strings.Join(g, ",") != strings.Join(want, ",") {
		t.Fatalf("got %v, want %v", g, want)
	}

	for _, c := range got {
		if c.Name == "zeugnis.docx" {
			if c.RelPath != filepath.Join("12345678", "2020", "zeugnis.docx") {
				t.Errorf("unexpected rel path %q", c.RelPath)
			}
			if c.Title != "zeugnis" {
				t.Errorf("unexpected title %q", c.Title)
			}
		}
	}
}

func TestArchiveSkipsNonTenantDirs(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"backup/deep/nested/file.pdf": "x",
		"1234/short.pdf":              "y",
	})

	if got := collect(t, &Archive{Root: root}); len(got) != 0 {
		t.Fatalf("expected no candidates, got %v", names(got))
	}
}

func TestIntakeScanSkipsProcessed(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"12345678/neu.pdf":                    "a",
		"12345678/processed/20260101_old.pdf": "b",
		"direct.txt":                          "c",
		"processed/done.txt":                  "d",
	})

	got := collect(t, &Intake{Root: root})

	want := []string{"direct.txt", "neu.pdf"}
	if g := names(got); strings.Join(g, ",") != strings.Join(want, ",") {
		t.Fatalf("got %v, want %v", g, want)
	}
}

func TestIntakeFinalizeMovesWithTimestamp(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"12345678/doc.pdf": "x"})

	fixed := time.Date(2026, 1, 15, 14, 5, 9, 0, time.UTC)
	intake := &Intake{Root: root, Now: func() time.Time { return fixed }}

	got := collect(t, intake)
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(got))
	}

	if err := intake.Finalize(got[0], OutcomeStored); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	moved := filepath.Join(root, "12345678", "processed", "20260115_140509_doc.pdf")
	if _, err := os.Stat(moved); err != nil {
		t.Fatalf("expected file at %s: %v", moved, err)
	}
	if _, err := os.Stat(got[0].Path); !os.IsNotExist(err) {
		t.Fatalf("source file still present: %v", err)
	}

	// A retried finalize after the move already happened is a no-op.
	if err := intake.Finalize(got[0], OutcomeStored); err != nil {
		t.Fatalf("repeated finalize: %v", err)
	}
}

func TestIntakeFinalizeDuplicateMarker(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"12345678/twice.pdf": "x"})

	fixed := time.Date(2026, 1, 15, 14, 5, 9, 0, time.UTC)
	intake := &Intake{Root: root, Now: func() time.Time { return fixed }}

	got := collect(t, intake)
	if err := intake.Finalize(got[0], OutcomeDuplicate); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	moved := filepath.Join(root, "12345678", "processed", "20260115_140509_dup_twice.pdf")
	if _, err := os.Stat(moved); err != nil {
		t.Fatalf("expected dup-marked file at %s: %v", moved, err)
	}
}

func TestIntakeFinalizeFailedLeavesFile(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"12345678/broken.pdf": "x"})

	intake := &Intake{Root: root}
	got := collect(t, intake)
	if err := intake.Finalize(got[0], OutcomeFailed); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if _, err := os.Stat(got[0].Path); err != nil {
		t.Fatalf("failed file must stay in place: %v", err)
	}
}

type fakeSource struct {
	messages  []Message
	gotCursor string
}

func (s *fakeSource) Messages(_ context.Context, afterCursor string) ([]Message, error) {
	s.gotCursor = afterCursor
	var out []Message
	for _, m := range s.messages {
		if m.ID > afterCursor {
			out = append(out, m)
		}
	}
	return out, nil
}

type fakeCursors struct {
	cursor string
}

func (c *fakeCursors) GetMailCursor(string) (string, error) { return c.cursor, nil }

func (c *fakeCursors) AdvanceMailCursor(_, cursor string) error {
	if cursor > c.cursor {
		c.cursor = cursor
	}
	return nil
}

func TestMailboxEmitsBodyAndAttachments(t *testing.T) {
	source := &fakeSource{messages: []Message{
		{
			ID:      "0001",
			Subject: "Krankmeldung Müller",
			Body:    []byte("<html><body>siehe Anhang</body></html>"),
			Attachments: []Attachment{
				{Name: "au-bescheinigung.pdf", ContentType: "application/pdf", Content: []byte("pdf")},
			},
		},
	}}
	cursors := &fakeCursors{}
	mb := &Mailbox{Source: source, Cursors: cursors, Mailbox: "inbox", TenantCode: "12345678"}

	got := collect(t, mb)
	if len(got) != 2 {
		t.Fatalf("expected body + attachment, got %d", len(got))
	}

	body := got[0]
	if !strings.HasSuffix(body.Name, ".eml") {
		t.Errorf("body candidate name %q", body.Name)
	}
	if body.Title != "Email: Krankmeldung Müller" {
		t.Errorf("body title %q", body.Title)
	}
	if body.TenantCode != "12345678" || body.Cursor != "0001" {
		t.Errorf("body candidate %+v", body)
	}
	if got[1].Name != "au-bescheinigung.pdf" {
		t.Errorf("attachment name %q", got[1].Name)
	}
}

func TestMailboxCursorAdvancesAndFilters(t *testing.T) {
	source := &fakeSource{messages: []Message{
		{ID: "0001", Subject: "first", Body: []byte("a")},
		{ID: "0002", Subject: "second", Body: []byte("b")},
	}}
	cursors := &fakeCursors{}
	mb := &Mailbox{Source: source, Cursors: cursors, Mailbox: "inbox", TenantCode: "12345678"}

	got := collect(t, mb)
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	for _, c := range got {
		if err := mb.Finalize(c, OutcomeStored); err != nil {
			t.Fatalf("finalize: %v", err)
		}
	}
	if cursors.cursor != "0002" {
		t.Fatalf("cursor not advanced, got %q", cursors.cursor)
	}

	// Second poll resumes after the cursor and sees nothing new.
	if got := collect(t, mb); len(got) != 0 {
		t.Fatalf("expected empty second poll, got %d", len(got))
	}
	if source.gotCursor != "0002" {
		t.Fatalf("poll did not resume from cursor, got %q", source.gotCursor)
	}
}

func TestSafeName(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Krankmeldung Müller", "Krankmeldung_Mller"},
		{"///", "message"},
		{"", "message"},
		{strings.Repeat("a", 80), strings.Repeat("a", 50)},
	}
	for _, tc := range cases {
		if got := safeName(tc.in); got != tc.want {
			t.Errorf("safeName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFileFeedFiltersByCursor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.json")
	payload := `[
		{"id": "0002", "subject": "second", "body": "b"},
		{"id": "0001", "subject": "first", "body": "a",
		 "attachments": [{"name": "a.pdf", "content_type": "application/pdf", "content": "cGRm"}]}
	]`
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatal(err)
	}

	feed := &FileFeed{Path: path}
	msgs, err := feed.Messages(context.Background(), "")
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if len(msgs) != 2 || msgs[0].ID != "0001" || msgs[1].ID != "0002" {
		t.Fatalf("messages not sorted by id: %+v", msgs)
	}
	if len(msgs[0].Attachments) != 1 || string(msgs[0].Attachments[0].Content) != "pdf" {
		t.Fatalf("attachment not decoded: %+v", msgs[0].Attachments)
	}

	msgs, err = feed.Messages(context.Background(), "0001")
	if err != nil {
		t.Fatalf("messages after cursor: %v", err)
	}
	if len(msgs) != 1 || msgs[0].ID != "0002" {
		t.Fatalf("cursor filter failed: %+v", msgs)
	}
}

func TestUploadOneShot(t *testing.T) {
	up := &Upload{Candidates: []Candidate{
		{Name: "a.pdf", Content: []byte("a"), TenantCode: "12345678"},
		{Name: "b.pdf", Content: []byte("b"), TenantCode: "12345678"},
	}}
	got := collect(t, up)
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	if err := up.Finalize(got[0], OutcomeStored); err != nil {
		t.Fatalf("finalize must be a no-op: %v", err)
	}
}
