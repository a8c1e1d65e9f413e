package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/utafrali/catalog-search/internal/app"
	"github.com/utafrali/catalog-search/internal/search"
)

func newIndexCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Args:  cobra.NoArgs,
		Short: "Search index commands",
	}

	cmd.AddCommand(
		newIndexCreateCommand(),
		newIndexDropCommand(),
	)

	return cmd
}

func newIndexCreateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Args:  cobra.NoArgs,
		Short: "Create the search index with its mapping when it does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withInfra(cmd.Context(), func(ctx context.Context, infra *app.Infra) error {
				outcome, err := infra.Indexes.Create(ctx)
				if err != nil {
					return err
				}
				if outcome == search.CreateFailed {
					return fmt.Errorf("create index %s: %w", infra.Indexes.Name(), search.ErrUnreachable)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "index %s: %s\n", infra.Indexes.Name(), outcome)
				return nil
			})
		},
	}
}

func newIndexDropCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "drop",
		Args:  cobra.NoArgs,
		Short: "Delete the search index",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withInfra(cmd.Context(), func(ctx context.Context, infra *app.Infra) error {
				if err := infra.Indexes.Delete(ctx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "index %s dropped\n", infra.Indexes.Name())
				return nil
			})
		},
	}
}
