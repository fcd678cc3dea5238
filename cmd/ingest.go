package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/knowbase/knowbase/internal/knowledge"
)

var ingestFlags struct {
	tenant     string
	sourceType string
	sourceID   string
	title      string
	file       string
	meta       []string
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Index one piece of content into the knowledge base",
	Long: `Reads content from --file (or stdin), normalizes and chunks it,
embeds the chunks, and stores them under the given tenant and source.
Re-ingesting an existing source ID replaces its chunks atomically.`,
	Example: `  knowbase ingest --tenant acme --type ticket --id ACME-42 --title "Login broken" --file ticket.txt
  cat runbook.txt | knowbase ingest --tenant acme --type document --id page-7 --meta space_id=IT`,
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := readContent(ingestFlags.file)
		if err != nil {
			return err
		}

		metadata, err := parseMetadata(ingestFlags.meta)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		app, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer app.cleanup()

		err = app.engine.Ingest(ctx, knowledge.IngestRequest{
			TenantID:    ingestFlags.tenant,
			SourceType:  knowledge.SourceType(ingestFlags.sourceType),
			SourceID:    ingestFlags.sourceID,
			SourceTitle: ingestFlags.title,
			Content:     content,
			Metadata:    metadata,
		})
		if err != nil {
			return err
		}
		fmt.Printf("ingested %s\n", ingestFlags.sourceID)
		return nil
	},
}

// readContent returns the content to ingest, from a file when path is
// set, from stdin otherwise.
func readContent(path string) (string, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("reading content file: %w", err)
		}
		return string(data), nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return string(data), nil
}

// parseMetadata turns repeated key=value flags into a metadata map.
func parseMetadata(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	metadata := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid metadata %q, expected key=value", pair)
		}
		metadata[key] = value
	}
	return metadata, nil
}

func init() {
	ingestCmd.Flags().StringVar(&ingestFlags.tenant, "tenant", "", "tenant the content belongs to (required)")
	ingestCmd.Flags().StringVar(&ingestFlags.sourceType, "type", "document", "source type: ticket or document")
	ingestCmd.Flags().StringVar(&ingestFlags.sourceID, "id", "", "source ID, the re-index key (required)")
	ingestCmd.Flags().StringVar(&ingestFlags.title, "title", "", "human-readable source title")
	ingestCmd.Flags().StringVar(&ingestFlags.file, "file", "", "content file; stdin when omitted")
	ingestCmd.Flags().StringArrayVar(&ingestFlags.meta, "meta", nil, "metadata key=value, repeatable")
	_ = ingestCmd.MarkFlagRequired("tenant")
	_ = ingestCmd.MarkFlagRequired("id")
	rootCmd.AddCommand(ingestCmd)
}
