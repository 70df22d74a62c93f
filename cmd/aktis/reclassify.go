package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mboehler/aktis/internal/extract"
	"github.com/mboehler/aktis/internal/match"
	"github.com/mboehler/aktis/internal/retention"
	"github.com/mboehler/aktis/internal/storage"
)

var reclassifyCmd = &cobra.Command{
	Use:   "reclassify",
	Short: "Re-run classification rules over stored documents",
	Long: `Re-run classification rules over stored documents.

Rule changes never apply retroactively on their own; this command is the
explicit way to bring stored documents up to date. By default only
uncategorized documents are considered; --all re-evaluates everything.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		tenantCode, _ := cmd.Flags().GetString("tenant")
		all, _ := cmd.Flags().GetBool("all")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		engine, err := a.engine()
		if err != nil {
			return err
		}
		for _, bad := range engine.BadRules() {
			printWarning("rule %s disabled: %v", bad.Rule.Name, bad.Err)
		}

		var docs []storage.Document
		if all {
			docs, err = a.store.ListDocuments(tenantCode, 0)
		} else {
			docs, err = a.store.ListUnclassified(tenantCode)
		}
		if err != nil {
			return err
		}

		var changed, unchanged, failed int
		for _, doc := range docs {
			newCategory, tags, err := a.classify(engine, doc)
			if err != nil {
				printError("%s (%s): %v", doc.OriginalFilename, doc.ID, err)
				failed++
				continue
			}
			if newCategory == doc.CategoryCode && newCategory == "" {
				unchanged++
				continue
			}
			if newCategory == doc.CategoryCode && !all {
				unchanged++
				continue
			}

			expiry, err := a.expiryFor(newCategory, doc)
			if err != nil {
				printError("%s (%s): %v", doc.OriginalFilename, doc.ID, err)
				failed++
				continue
			}

			if dryRun {
				printStep("%s: %q -> %q [%s]", doc.OriginalFilename, doc.CategoryCode, newCategory, strings.Join(tags, ","))
				changed++
				continue
			}
			if err := a.store.UpdateClassification(doc.ID, newCategory, expiry, tags); err != nil {
				printError("%s (%s): %v", doc.OriginalFilename, doc.ID, err)
				failed++
				continue
			}
			changed++
		}

		verb := "reclassified"
		if dryRun {
			verb = "would reclassify"
		}
		printSuccess("%s %d of %d document(s), %d unchanged, %d failed", verb, changed, len(docs), unchanged, failed)
		if failed > 0 {
			return fmt.Errorf("%d document(s) failed", failed)
		}
		return nil
	},
}

// classify re-runs the matching engine over a stored document's name, title
// and decrypted text.
func (a *app) classify(engine *match.Engine, doc storage.Document) (string, []string, error) {
	full, err := a.store.GetDocument(doc.ID)
	if err != nil {
		return "", nil, err
	}
	plain, err := a.sealer.Open(full.Content)
	if err != nil {
		return "", nil, fmt.Errorf("unsealing: %w", err)
	}

	text := classificationText(doc, plain)
	matches := engine.Evaluate(text)
	return match.CategoryOf(matches), match.TagsOf(matches), nil
}

// classificationText rebuilds the haystack the pipeline classified at
// ingestion time: filename, title and extracted body text.
func classificationText(doc storage.Document, content []byte) string {
	parts := []string{doc.OriginalFilename}
	if doc.Title != "" && doc.Title != doc.OriginalFilename {
		parts = append(parts, doc.Title)
	}
	if body, err := extract.Text(doc.OriginalFilename, content); err == nil && body != "" {
		parts = append(parts, body)
	}
	return strings.Join(parts, "\n")
}

// expiryFor mirrors the ingestion-time retention computation for the given
// category, resolving the employee's exit date when the trigger needs it.
func (a *app) expiryFor(categoryCode string, doc storage.Document) (*time.Time, error) {
	if categoryCode == "" {
		return nil, nil
	}
	cat, err := a.store.GetCategory(categoryCode)
	if err != nil {
		return nil, fmt.Errorf("loading category %s: %w", categoryCode, err)
	}

	dates := retention.Dates{CreatedAt: doc.CreatedAt, DocumentDate: doc.DocumentDate}
	if doc.EmployeeID != "" {
		emp, err := a.store.GetEmployee(doc.TenantCode, doc.EmployeeID)
		if err == nil {
			dates.ExitDate = emp.ExitDate
		} else if err != storage.ErrNotFound {
			return nil, err
		}
	}

	policy := retention.Policy{Trigger: retention.Trigger(cat.RetentionTrigger), Years: cat.RetentionYears}
	return retention.Expiry(policy, dates)
}

func init() {
	reclassifyCmd.Flags().String("tenant", "", "limit to one tenant code")
	reclassifyCmd.Flags().Bool("all", false, "re-evaluate categorized documents too")
	reclassifyCmd.Flags().Bool("dry-run", false, "show changes without writing them")
}
