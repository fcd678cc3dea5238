package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var searchFlags struct {
	tenant    string
	topK      int
	threshold float64
	scores    bool
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Similarity search within a tenant",
	Long: `Embeds the query and returns the most similar stored chunks for
the tenant. With --scores, each chunk carries an exact similarity score
and results under the threshold are dropped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")

		ctx := cmd.Context()
		app, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer app.cleanup()

		topK := searchFlags.topK
		if topK <= 0 {
			topK = app.cfg.RetrievalTopK
		}
		threshold := searchFlags.threshold
		if threshold < 0 {
			threshold = app.cfg.ScoreThreshold
		}

		if searchFlags.scores {
			results, err := app.engine.RetrieveWithScore(ctx, searchFlags.tenant, query, topK, threshold)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Println("no results")
				return nil
			}
			for i, r := range results {
				fmt.Printf("%d. [%.3f] %s %s (%s)\n%s\n\n",
					i+1, r.Score, r.Chunk.SourceType, r.Chunk.SourceID, r.Chunk.SourceTitle, r.Chunk.Content)
			}
			return nil
		}

		chunks, err := app.engine.Retrieve(ctx, searchFlags.tenant, query, topK)
		if err != nil {
			return err
		}
		if len(chunks) == 0 {
			fmt.Println("no results")
			return nil
		}
		for i, c := range chunks {
			fmt.Printf("%d. %s %s (%s)\n%s\n\n",
				i+1, c.SourceType, c.SourceID, c.SourceTitle, c.Content)
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchFlags.tenant, "tenant", "", "tenant to search in (required)")
	searchCmd.Flags().IntVar(&searchFlags.topK, "top-k", 0, "max results; config default when 0")
	searchCmd.Flags().Float64Var(&searchFlags.threshold, "threshold", -1, "min similarity score for --scores; config default when negative")
	searchCmd.Flags().BoolVar(&searchFlags.scores, "scores", false, "attach similarity scores and filter by threshold")
	_ = searchCmd.MarkFlagRequired("tenant")
	rootCmd.AddCommand(searchCmd)
}
