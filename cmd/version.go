package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/knowbase/knowbase/internal/config"
)

// Version information (injected at build time via ldflags)
var (
	AppVersion = "development"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			// Version must work even with a broken config file.
			fmt.Printf("Knowbase %s\n", AppVersion)
			fmt.Printf("Build Time: %s\n", BuildTime)
			fmt.Printf("Git Commit: %s\n", GitCommit)
			fmt.Println()
			fmt.Printf("Configuration: unavailable (%v)\n", err)
			return nil
		}
		return runVersion(cfg)
	},
}

func runVersion(cfg *config.Config) error {
	fmt.Printf("Knowbase %s\n", AppVersion)
	fmt.Printf("Build Time: %s\n", BuildTime)
	fmt.Printf("Git Commit: %s\n", GitCommit)
	fmt.Println()

	fmt.Println("Configuration:")
	fmt.Printf("  Embedding provider: %s\n", cfg.EmbeddingProvider)
	if cfg.EmbeddingProvider == config.ProviderHTTP {
		fmt.Printf("  Embedding URL: %s\n", cfg.EmbeddingURL)
	}
	fmt.Printf("  Embedding dimension: %d\n", cfg.EmbeddingDimension)
	fmt.Printf("  Chunking: size %d, overlap %d\n", cfg.ChunkSize, cfg.ChunkOverlap)
	fmt.Printf("  Retrieval: top %d, threshold %.2f\n", cfg.RetrievalTopK, cfg.ScoreThreshold)
	fmt.Printf("  Database: %s@%s:%d/%s\n",
		cfg.PostgresUser, cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresDBName)

	if cfg.EmbeddingProvider == config.ProviderOpenAI {
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			fmt.Println("  OPENAI_API_KEY: configured")
		} else {
			fmt.Println("  OPENAI_API_KEY: Not set")
			fmt.Println()
			fmt.Println("Hint: Please set OPENAI_API_KEY environment variable")
			fmt.Println("  export OPENAI_API_KEY=your-api-key")
		}
	}

	return nil
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
