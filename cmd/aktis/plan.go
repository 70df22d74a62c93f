package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mboehler/aktis/internal/plan"
	"github.com/mboehler/aktis/internal/storage"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Manage the filing plan",
}

var planInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Load the default filing plan and starter rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		categories, rules, err := plan.Seed(a.store)
		if err != nil {
			return err
		}
		printSuccess("Filing plan loaded: %d categories, %d new rules", categories, rules)
		return nil
	},
}

var planShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the filing plan with retention policies",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		categories, err := a.store.ListCategories()
		if err != nil {
			return err
		}
		if len(categories) == 0 {
			printWarning("No filing plan loaded, run: aktis plan init")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CODE\tNAME\tRETENTION\tTRIGGER")
		for _, c := range categories {
			indent := ""
			if c.ParentCode != "" {
				indent = "  "
			}
			fmt.Fprintf(w, "%s%s\t%s\t%dy\t%s\n", indent, c.Code, c.Name, c.RetentionYears, c.RetentionTrigger)
		}
		return w.Flush()
	},
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage classification rules",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active classification rules in evaluation order",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		rules, err := a.store.ListActiveRules()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PRIO\tNAME\tSTRATEGY\tPATTERN\tCATEGORY\tTAG")
		for _, r := range rules {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", r.Priority, r.Name, r.Strategy, r.Pattern, r.CategoryCode, r.Tag)
		}
		return w.Flush()
	},
}

var rulesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a classification rule",
	Long: `Add a classification rule.

The rule applies to future scans only; run "aktis reclassify" to apply it
to already stored documents.

Example:
  aktis rules add --name "Bonus" --strategy ANY --pattern "bonus prämie" --category 05.01 --tag bonus --priority 25`,
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		strategy, _ := cmd.Flags().GetString("strategy")
		pattern, _ := cmd.Flags().GetString("pattern")
		category, _ := cmd.Flags().GetString("category")
		tag, _ := cmd.Flags().GetString("tag")
		priority, _ := cmd.Flags().GetInt("priority")

		if name == "" || pattern == "" {
			return fmt.Errorf("--name and --pattern are required")
		}
		strategy = strings.ToUpper(strategy)
		switch strategy {
		case "ANY", "ALL", "EXACT", "REGEX", "FUZZY":
		default:
			return fmt.Errorf("invalid strategy %q (want ANY, ALL, EXACT, REGEX or FUZZY)", strategy)
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		if category != "" {
			if _, err := a.store.GetCategory(category); err == storage.ErrNotFound {
				return fmt.Errorf("category %s not in filing plan", category)
			} else if err != nil {
				return err
			}
		}

		rule, err := a.store.InsertRule(storage.MatchingRule{
			Name:         name,
			Strategy:     strategy,
			Pattern:      pattern,
			CategoryCode: category,
			Tag:          tag,
			Priority:     priority,
			Active:       true,
		})
		if err != nil {
			return err
		}
		printSuccess("Added rule %s (%s)", rule.Name, rule.ID)
		return nil
	},
}

func init() {
	planCmd.AddCommand(planInitCmd)
	planCmd.AddCommand(planShowCmd)

	rulesAddCmd.Flags().String("name", "", "rule name")
	rulesAddCmd.Flags().String("strategy", "ANY", "matching strategy (ANY, ALL, EXACT, REGEX, FUZZY)")
	rulesAddCmd.Flags().String("pattern", "", "pattern to match")
	rulesAddCmd.Flags().String("category", "", "filing plan category code to assign")
	rulesAddCmd.Flags().String("tag", "", "tag to attach on match")
	rulesAddCmd.Flags().Int("priority", 100, "evaluation priority (lower wins category)")
	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesAddCmd)
}
