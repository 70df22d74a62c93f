package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mboehler/aktis/internal/pipeline"
)

// Status lines go to stderr so piped stdout stays machine-readable
// (tabwriter listings, downloaded content).
var statusOut io.Writer = os.Stderr

const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printMarked(color, mark, format string, args ...any) {
	fmt.Fprintln(statusOut, colorize(color, mark+fmt.Sprintf(format, args...)))
}

func printSuccess(format string, args ...any) { printMarked(colorGreen, "✓ ", format, args...) }

func printError(format string, args ...any) { printMarked(colorRed, "✗ ", format, args...) }

func printWarning(format string, args ...any) { printMarked(colorYellow, "⚠ ", format, args...) }

func printStep(format string, args ...any) { printMarked(colorCyan, "→ ", format, args...) }

func printStatus(label string, format string, args ...any) {
	fmt.Fprintf(statusOut, "  %s %s\n", colorize(colorBold, label+":"), fmt.Sprintf(format, args...))
}

// printReport renders the end-of-scan summary. Zero-count optional lines
// are omitted.
func printReport(r pipeline.Report) {
	printSuccess("Scan of %s channel complete in %s", r.Channel, r.Elapsed.Round(time.Millisecond))
	printStatus("Stored", "%d", r.Processed)
	printStatus("Duplicates", "%d", r.Duplicates)
	printStatus("Failed", "%d", r.Failed)
	if r.NewTenants > 0 {
		printStatus("New tenants", "%d", r.NewTenants)
	}
	if r.RuleErrors > 0 {
		printStatus("Rule errors", "%d", r.RuleErrors)
	}
}
