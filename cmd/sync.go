package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	knowsync "github.com/knowbase/knowbase/internal/sync"
)

var syncFlags struct {
	tickets   string
	documents string
	schedule  bool
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Index ticket and document exports",
	Long: `Runs the ticket and document sync drivers over local JSON export
files. Tickets are re-indexed every run (the store replaces their
chunks atomically); documents already indexed are skipped. Document
page IDs and tenants come from the document_pages config list.

With --schedule the sync re-runs on the configured interval until
interrupted.`,
	Example: `  knowbase sync --tickets resolved.json
  knowbase sync --documents pages.json --schedule`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if syncFlags.tickets == "" && syncFlags.documents == "" {
			return fmt.Errorf("at least one of --tickets or --documents is required")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		app, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer app.cleanup()

		run, err := buildSyncRun(app)
		if err != nil {
			return err
		}

		if err := run(ctx); err != nil {
			return err
		}
		if !syncFlags.schedule {
			return nil
		}

		interval := app.cfg.SyncIntervalDuration()
		app.logger.Info("sync scheduled", "interval", interval.String())
		knowsync.NewScheduler(interval, run, app.logger).Run(ctx)
		return nil
	},
}

// buildSyncRun assembles one function running every configured syncer.
// A syncer reports per-item failures in its Result; only a failure to
// run at all aborts the pass.
func buildSyncRun(app *app) (func(context.Context) error, error) {
	var syncers []interface {
		Sync(ctx context.Context) (*knowsync.Result, error)
	}

	if syncFlags.tickets != "" {
		source, err := newFileTicketSource(syncFlags.tickets)
		if err != nil {
			return nil, err
		}
		syncer, err := knowsync.NewTicketSyncer(source, app.engine, app.cfg.DefaultTenant, app.logger)
		if err != nil {
			return nil, err
		}
		syncers = append(syncers, syncer)
	}

	if syncFlags.documents != "" {
		source, err := newFileDocumentSource(syncFlags.documents)
		if err != nil {
			return nil, err
		}
		pages := make([]knowsync.Page, len(app.cfg.DocumentPages))
		for i, p := range app.cfg.DocumentPages {
			pages[i] = knowsync.Page{PageID: p.PageID, TenantID: p.TenantID}
		}
		syncer, err := knowsync.NewDocumentSyncer(source, app.engine, pages, app.cfg.DefaultTenant, app.logger)
		if err != nil {
			return nil, err
		}
		syncers = append(syncers, syncer)
	}

	return func(ctx context.Context) error {
		for _, s := range syncers {
			if _, err := s.Sync(ctx); err != nil {
				return err
			}
		}
		return nil
	}, nil
}

func init() {
	syncCmd.Flags().StringVar(&syncFlags.tickets, "tickets", "", "JSON export of resolved tickets")
	syncCmd.Flags().StringVar(&syncFlags.documents, "documents", "", "JSON export of documentation pages")
	syncCmd.Flags().BoolVar(&syncFlags.schedule, "schedule", false, "re-run on the configured interval")
	rootCmd.AddCommand(syncCmd)
}
