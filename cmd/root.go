// Package cmd provides the knowbase CLI.
//
// Commands:
//   - migrate: apply embedded database migrations
//   - ingest:  index one piece of content into the knowledge base
//   - search:  similarity search within a tenant
//   - remove:  delete all chunks of a source
//   - sync:    index ticket/document exports, once or on a schedule
//   - version: show version and configuration
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/knowbase/knowbase/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "knowbase",
	Short: "Knowbase - help-desk knowledge ingestion and retrieval",
	Long: `Knowbase indexes resolved support tickets and documentation pages
into a tenant-scoped vector store and answers similarity queries
against it. Embeddings come from a self-hosted embedding service or
the OpenAI API, depending on configuration.`,
	SilenceUsage: true,
}

// Execute is the entry point called from main.
func Execute() error {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(log.New(log.Config{Level: level}))

	return rootCmd.Execute()
}
