package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/utafrali/catalog-search/internal/app"
)

func newSeedCommand() *cobra.Command {
	var (
		count   int
		batch   int
		reindex bool
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Args:  cobra.NoArgs,
		Short: "Insert generated catalog items for local development",
		Long: `Insert deterministically generated catalog items into PostgreSQL.
With --reindex the search index is rebuilt from the database afterwards.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return fmt.Errorf("--count must be positive, got %d", count)
			}
			if batch < 1 {
				return fmt.Errorf("--batch must be positive, got %d", batch)
			}
			return withInfra(cmd.Context(), func(ctx context.Context, infra *app.Infra) error {
				items := app.GenerateItems(app.NewSeedRand(), count)
				n, err := app.Seed(ctx, infra.Items, items, batch, infra.Logger)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "inserted %d items\n", n)

				if !reindex {
					return nil
				}
				indexed, err := app.Reindex(ctx, infra.Items, infra.Indexer, app.ReindexOptions{}, infra.Logger)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "indexed %d items into %s\n", indexed, infra.Indexes.Name())
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&count, "count", 10000, "number of items to insert")
	cmd.Flags().IntVar(&batch, "batch", app.DefaultSeedBatch, "rows per INSERT statement")
	cmd.Flags().BoolVar(&reindex, "reindex", false, "reindex the search engine after seeding")
	return cmd
}
