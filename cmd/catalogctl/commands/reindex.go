package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/utafrali/catalog-search/internal/app"
)

func newReindexCommand() *cobra.Command {
	var (
		fresh bool
		chunk int
	)

	cmd := &cobra.Command{
		Use:   "reindex",
		Args:  cobra.NoArgs,
		Short: "Index every catalog item into the search engine",
		Long: `Copy every catalog item from PostgreSQL into the search index in
id-ordered chunks. The index is created when missing; --fresh drops and
recreates it first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if chunk < 1 {
				return fmt.Errorf("--chunk must be positive, got %d", chunk)
			}
			return withInfra(cmd.Context(), func(ctx context.Context, infra *app.Infra) error {
				n, err := app.Reindex(ctx, infra.Items, infra.Indexer, app.ReindexOptions{
					Fresh: fresh,
					Chunk: chunk,
				}, infra.Logger)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "indexed %d items into %s\n", n, infra.Indexes.Name())
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&fresh, "fresh", false, "drop and recreate the index before indexing")
	cmd.Flags().IntVar(&chunk, "chunk", app.DefaultReindexChunk, "items per bulk request")
	return cmd
}
