package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var removeCmd = &cobra.Command{
	Use:   "remove <source-id>",
	Short: "Delete all chunks of a source",
	Long: `Removes every stored chunk belonging to the given source ID.
Removing an unknown source is a no-op.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer app.cleanup()

		count, err := app.engine.Remove(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("removed %d chunks of %s\n", count, args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(removeCmd)
}
