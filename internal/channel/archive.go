package channel

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/mboehler/aktis/internal/tenant"
)

// Archive scans the read-only archive drop: a root whose immediate
// subdirectories are 8-digit tenant codes. Sources are never modified.
type Archive struct {
	Root string
}

func (a *Archive) Name() string { return "archive" }

func (a *Archive) SharedSource() bool { return true }

func (a *Archive) Scan(ctx context.Context, emit func(Candidate) error) error {
	return filepath.WalkDir(a.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// An unreadable subtree is skipped, not fatal for the scan.
			slog.Warn("archive walk error", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, relErr := filepath.Rel(a.Root, path)
		if relErr != nil {
			return relErr
		}

		if d.IsDir() {
			if path == a.Root {
				return nil
			}
			// Skip top-level directories that are not tenant folders.
			if !strings.Contains(rel, string(filepath.Separator)) && !tenant.ValidCode(d.Name()) {
				return fs.SkipDir
			}
			return nil
		}

		if !SupportedExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		return emit(Candidate{
			Name:    d.Name(),
			Title:   strings.TrimSuffix(d.Name(), filepath.Ext(d.Name())),
			Path:    path,
			RelPath: rel,
		})
	})
}

// Finalize is a no-op: the archive channel only reads and records.
func (a *Archive) Finalize(Candidate, Outcome) error { return nil }
