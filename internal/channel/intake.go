package channel

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mboehler/aktis/internal/tenant"
)

// processedDirName is where the intake channel moves consumed files.
const processedDirName = "processed"

// Intake scans the manual drop folder under a consume-and-move contract:
// after a successful commit (or duplicate skip) the source file is moved into
// processed/. Files may sit at the root (fallback tenant) or inside an 8-digit
// tenant subfolder.
type Intake struct {
	Root string
	// Now is swappable for tests; defaults to time.Now.
	Now func() time.Time
}

func (i *Intake) Name() string { return "intake" }

// SharedSource: two concurrent intake scans would race the same
// move-on-completion files.
func (i *Intake) SharedSource() bool { return true }

func (i *Intake) Scan(ctx context.Context, emit func(Candidate) error) error {
	entries, err := os.ReadDir(i.Root)
	if err != nil {
		return fmt.Errorf("reading intake directory: %w", err)
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		if entry.IsDir() {
			if entry.Name() == processedDirName || !tenant.ValidCode(entry.Name()) {
				continue
			}
			if err := i.scanTenantDir(ctx, entry.Name(), emit); err != nil {
				return err
			}
			continue
		}

		if !SupportedExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		if err := emit(i.candidate(entry.Name(), "")); err != nil {
			return err
		}
	}
	return nil
}

func (i *Intake) scanTenantDir(ctx context.Context, code string, emit func(Candidate) error) error {
	entries, err := os.ReadDir(filepath.Join(i.Root, code))
	if err != nil {
		return fmt.Errorf("reading intake tenant directory %s: %w", code, err)
	}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if entry.IsDir() || !SupportedExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		if err := emit(i.candidate(entry.Name(), code)); err != nil {
			return err
		}
	}
	return nil
}

func (i *Intake) candidate(name, tenantCode string) Candidate {
	rel := name
	if tenantCode != "" {
		rel = filepath.Join(tenantCode, name)
	}
	return Candidate{
		Name:    name,
		Title:   strings.TrimSuffix(name, filepath.Ext(name)),
		Path:    filepath.Join(i.Root, rel),
		RelPath: rel,
	}
}

// Finalize moves a consumed file into processed/, prefixed with a timestamp
// (and a dup marker for duplicates). Failed items stay in place for manual
// remediation. The move is idempotent retry-wise: if the file is already gone
// a previous finalization won, which is fine because the content is recorded.
func (i *Intake) Finalize(c Candidate, outcome Outcome) error {
	if outcome == OutcomeFailed {
		return nil
	}

	now := time.Now
	if i.Now != nil {
		now = i.Now
	}

	dest := filepath.Join(filepath.Dir(c.Path), processedDirName)
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("creating processed directory: %w", err)
	}

	prefix := now().Format("20060102_150405")
	if outcome == OutcomeDuplicate {
		prefix += "_dup"
	}

	target := filepath.Join(dest, prefix+"_"+c.Name)
	if err := os.Rename(c.Path, target); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("moving %s to processed: %w", c.Name, err)
	}
	return nil
}
