package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/utafrali/catalog-search/internal/app"
	"github.com/utafrali/catalog-search/internal/config"
	"github.com/utafrali/catalog-search/pkg/logger"
)

// serviceName tags log lines and traces of the admin tool.
const serviceName = "catalogctl"

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          serviceName,
		Short:        "Catalog search administration",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newReindexCommand(),
		newIndexCommand(),
		newSeedCommand(),
	)

	return rootCmd
}

// withInfra loads configuration, connects to the stores and runs fn.
func withInfra(ctx context.Context, fn func(ctx context.Context, infra *app.Infra) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.NewWithOptions(logger.Options{
		Service: serviceName,
		Level:   cfg.LogLevel,
		Format:  "text",
		Writer:  os.Stderr,
	})

	infra, err := app.NewInfra(cfg, log, app.InfraOptions{Service: serviceName})
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer func() {
		if err := infra.Close(context.Background()); err != nil {
			log.Warn("close connections", slog.String("error", err.Error()))
		}
	}()

	return fn(ctx, infra)
}
