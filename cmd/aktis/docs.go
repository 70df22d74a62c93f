package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

type documentJSON struct {
	ID               string     `json:"id"`
	TenantCode       string     `json:"tenant_code"`
	Title            string     `json:"title"`
	OriginalFilename string     `json:"original_filename"`
	MimeType         string     `json:"mime_type"`
	FileSize         int64      `json:"file_size"`
	Digest           string     `json:"digest"`
	Source           string     `json:"source"`
	CategoryCode     string     `json:"category_code"`
	EmployeeID       string     `json:"employee_id"`
	Status           string     `json:"status"`
	DocumentDate     *time.Time `json:"document_date"`
	RetentionExpiry  *time.Time `json:"retention_expiry"`
	Tags             []string   `json:"tags"`
	CreatedAt        time.Time  `json:"created_at"`
}

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Query documents via the running server",
}

var docsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		tenantCode, _ := cmd.Flags().GetString("tenant")
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		q := url.Values{}
		if tenantCode != "" {
			q.Set("tenant", tenantCode)
		}
		if limit > 0 {
			q.Set("limit", strconv.Itoa(limit))
		}

		resp, err := client.get(cmd.Context(), "/documents?"+q.Encode())
		if err != nil {
			return err
		}

		var result struct {
			Documents []documentJSON `json:"documents"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if len(result.Documents) == 0 {
			printStatus("Documents", "none")
			return nil
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tTENANT\tCATEGORY\tFILENAME\tCREATED")
		for _, d := range result.Documents {
			cat := d.CategoryCode
			if cat == "" {
				cat = "-"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				d.ID, d.TenantCode, cat, d.OriginalFilename, d.CreatedAt.Format("2006-01-02 15:04"))
		}
		return tw.Flush()
	},
}

var docsGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one document's metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/documents/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}

		var d documentJSON
		if err := decodeJSON(resp, &d); err != nil {
			return err
		}

		printStatus("ID", "%s", d.ID)
		printStatus("Tenant", "%s", d.TenantCode)
		printStatus("Filename", "%s", d.OriginalFilename)
		printStatus("Title", "%s", d.Title)
		printStatus("Size", "%d bytes", d.FileSize)
		printStatus("Digest", "%s", d.Digest)
		printStatus("Source", "%s", d.Source)
		printStatus("Status", "%s", d.Status)
		if d.CategoryCode != "" {
			printStatus("Category", "%s", d.CategoryCode)
		}
		if d.EmployeeID != "" {
			printStatus("Employee", "%s", d.EmployeeID)
		}
		if d.RetentionExpiry != nil {
			printStatus("Retention until", "%s", d.RetentionExpiry.Format("2006-01-02"))
		}
		if len(d.Tags) > 0 {
			printStatus("Tags", "%v", d.Tags)
		}
		return nil
	},
}

var docsUploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a file through the API",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tenantCode, _ := cmd.Flags().GetString("tenant")
		employeeID, _ := cmd.Flags().GetString("employee")
		title, _ := cmd.Flags().GetString("title")

		if tenantCode == "" {
			return fmt.Errorf("--tenant is required")
		}

		content, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/documents", map[string]any{
			"tenant_code": tenantCode,
			"filename":    filepath.Base(args[0]),
			"title":       title,
			"content":     base64.StdEncoding.EncodeToString(content),
			"employee_id": employeeID,
		})
		if err != nil {
			return err
		}

		// A duplicate reply carries the existing document's ID; treat it as
		// informational rather than a failure.
		if resp.StatusCode == http.StatusConflict {
			var result map[string]string
			defer resp.Body.Close()
			if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
				return err
			}
			printWarning("Already stored as %s", result["document_id"])
			return nil
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Stored as %s", result["document_id"])
		return nil
	},
}

func init() {
	docsListCmd.Flags().String("tenant", "", "filter by tenant code")
	docsListCmd.Flags().Int("limit", 0, "maximum number of documents")
	docsUploadCmd.Flags().String("tenant", "", "tenant code")
	docsUploadCmd.Flags().String("employee", "", "employee identifier")
	docsUploadCmd.Flags().String("title", "", "document title")
	docsCmd.AddCommand(docsListCmd)
	docsCmd.AddCommand(docsGetCmd)
	docsCmd.AddCommand(docsUploadCmd)
}
