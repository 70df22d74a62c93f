package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mboehler/aktis/internal/storage"
	"github.com/mboehler/aktis/internal/tenant"
)

var retentionCmd = &cobra.Command{
	Use:   "retention",
	Short: "Manage retention expiry dates",
}

var retentionRecomputeCmd = &cobra.Command{
	Use:   "recompute",
	Short: "Compute deferred expiry dates that are now resolvable",
	Long: `Compute deferred expiry dates that are now resolvable.

Exit-triggered documents ingested before the employee's exit date was known
carry no expiry. Once the exit date is recorded (aktis employee set), this
command fills them in.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		tenantCode, _ := cmd.Flags().GetString("tenant")

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		docs, err := a.store.DocumentsPendingExpiry(tenantCode)
		if err != nil {
			return err
		}

		var resolved, deferred, failed int
		for _, doc := range docs {
			expiry, err := a.expiryFor(doc.CategoryCode, doc)
			if err != nil {
				printError("%s (%s): %v", doc.OriginalFilename, doc.ID, err)
				failed++
				continue
			}
			if expiry == nil {
				deferred++
				continue
			}
			if err := a.store.SetRetentionExpiry(doc.ID, expiry); err != nil {
				printError("%s (%s): %v", doc.OriginalFilename, doc.ID, err)
				failed++
				continue
			}
			resolved++
		}

		printSuccess("Resolved %d expiry date(s), %d still deferred, %d failed", resolved, deferred, failed)
		if failed > 0 {
			return fmt.Errorf("%d document(s) failed", failed)
		}
		return nil
	},
}

var employeeCmd = &cobra.Command{
	Use:   "employee",
	Short: "Manage employee records",
}

var employeeSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Create or update an employee record",
	Long: `Create or update an employee record.

Example:
  aktis employee set --tenant 12345678 --id E-42 --first-name Anna --last-name Beispiel --exit-date 2026-06-30`,
	RunE: func(cmd *cobra.Command, args []string) error {
		tenantCode, _ := cmd.Flags().GetString("tenant")
		employeeID, _ := cmd.Flags().GetString("id")
		firstName, _ := cmd.Flags().GetString("first-name")
		lastName, _ := cmd.Flags().GetString("last-name")
		entryDateStr, _ := cmd.Flags().GetString("entry-date")
		exitDateStr, _ := cmd.Flags().GetString("exit-date")

		if !tenant.ValidCode(tenantCode) {
			return fmt.Errorf("--tenant must be a %d-digit code", tenant.CodeLength)
		}
		if employeeID == "" {
			return fmt.Errorf("--id is required")
		}

		parseDate := func(flag, v string) (*time.Time, error) {
			if v == "" {
				return nil, nil
			}
			d, err := time.Parse("2006-01-02", v)
			if err != nil {
				return nil, fmt.Errorf("--%s must be YYYY-MM-DD", flag)
			}
			return &d, nil
		}
		entryDate, err := parseDate("entry-date", entryDateStr)
		if err != nil {
			return err
		}
		exitDate, err := parseDate("exit-date", exitDateStr)
		if err != nil {
			return err
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		emp, err := a.store.UpsertEmployee(storage.Employee{
			TenantCode: tenantCode,
			EmployeeID: employeeID,
			FirstName:  firstName,
			LastName:   lastName,
			EntryDate:  entryDate,
			ExitDate:   exitDate,
			Active:     exitDate == nil,
		})
		if err != nil {
			return err
		}

		printSuccess("Saved employee %s for tenant %s", emp.EmployeeID, emp.TenantCode)
		if exitDate != nil {
			printStep("Run \"aktis retention recompute --tenant %s\" to resolve deferred expiry dates", tenantCode)
		}
		return nil
	},
}

func init() {
	retentionRecomputeCmd.Flags().String("tenant", "", "limit to one tenant code")
	retentionCmd.AddCommand(retentionRecomputeCmd)

	employeeSetCmd.Flags().String("tenant", "", "tenant code")
	employeeSetCmd.Flags().String("id", "", "employee identifier")
	employeeSetCmd.Flags().String("first-name", "", "employee first name")
	employeeSetCmd.Flags().String("last-name", "", "employee last name")
	employeeSetCmd.Flags().String("entry-date", "", "entry date (YYYY-MM-DD)")
	employeeSetCmd.Flags().String("exit-date", "", "exit date (YYYY-MM-DD)")
	employeeCmd.AddCommand(employeeSetCmd)
}
