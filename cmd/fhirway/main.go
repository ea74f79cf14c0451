// Command fhirway is the platform's server/worker/admin entrypoint,
// grounded on the teacher's cmd/ehr-server/main.go cobra root command
// (serve / migrate / tenant), extended with the `worker` subcommand
// spec §6's CLI table calls for.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/fhirway/fhirway/internal/config"
	"github.com/fhirway/fhirway/internal/platform/db"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "fhirway",
		Short: "Multi-tenant FHIR platform",
	}

	rootCmd.AddCommand(serverCmd())
	rootCmd.AddCommand(workerCmd())
	rootCmd.AddCommand(tenantCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger builds the process-wide zerolog.Logger, console-formatted
// in development, following the teacher's runServer logger setup.
func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// loadConfigAndPool is the common bootstrap every subcommand needs:
// config plus a connected pool.
func loadConfigAndPool(ctx context.Context) (*config.Config, *pgxpool.Pool, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, zerolog.Logger{}, fmt.Errorf("loading config: %w", err)
	}
	logger := newLogger(cfg)

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, logger, fmt.Errorf("connecting to database: %w", err)
	}
	return cfg, pool, logger, nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			_, pool, logger, err := loadConfigAndPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
			return db.Migrate(ctx, pool, logger)
		},
	}
}
