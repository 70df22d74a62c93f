package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mboehler/aktis/internal/channel"
)

var scanCmd = &cobra.Command{
	Use:   "scan <archive|intake|mailbox>",
	Short: "Run an ingestion scan over one channel",
	Long: `Run an ingestion scan over one channel.

Examples:
  aktis scan archive
  aktis scan intake
  aktis scan mailbox --feed ./mail-export.json --tenant 12345678`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		scanner, err := buildScanner(cmd, a, args[0])
		if err != nil {
			return err
		}

		engine, err := a.engine()
		if err != nil {
			return err
		}
		if len(engine.BadRules()) > 0 {
			printWarning("%d matching rule(s) disabled, see audit log", len(engine.BadRules()))
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		printStep("Scanning %s channel...", scanner.Name())
		report, err := a.pipeline(engine).Run(ctx, scanner)
		if err != nil {
			return err
		}

		printReport(report)
		if report.Failed > 0 {
			return fmt.Errorf("%d item(s) failed", report.Failed)
		}
		return nil
	},
}

func buildScanner(cmd *cobra.Command, a *app, name string) (channel.Scanner, error) {
	switch name {
	case "archive":
		return &channel.Archive{Root: a.cfg.Channels.ArchiveDir}, nil
	case "intake":
		return &channel.Intake{Root: a.cfg.Channels.IntakeDir}, nil
	case "mailbox":
		feed, _ := cmd.Flags().GetString("feed")
		tenantCode, _ := cmd.Flags().GetString("tenant")
		if feed == "" || tenantCode == "" {
			return nil, fmt.Errorf("mailbox scan requires --feed and --tenant")
		}
		return &channel.Mailbox{
			Source:     &channel.FileFeed{Path: feed},
			Cursors:    a.store,
			Mailbox:    a.cfg.Channels.Mailbox,
			TenantCode: tenantCode,
		}, nil
	default:
		return nil, fmt.Errorf("unknown channel %q (want archive, intake or mailbox)", name)
	}
}

func init() {
	scanCmd.Flags().String("feed", "", "mail export file for the mailbox channel")
	scanCmd.Flags().String("tenant", "", "tenant code for the mailbox channel")
}
