package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/fhirway/fhirway/internal/domain/ids"
	"github.com/fhirway/fhirway/internal/platform/indexer"
	"github.com/fhirway/fhirway/internal/platform/repository/pg"
	"github.com/fhirway/fhirway/internal/platform/search"
	"github.com/fhirway/fhirway/internal/platform/search/searchparams"
)

// workerCmd runs the indexing worker loop (spec §4.4, spec §6's
// `worker` CLI entry), standalone from the HTTP server so it can be
// scaled and deployed independently.
func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the asynchronous indexing worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker()
		},
	}
}

func runWorker() error {
	ctx := context.Background()
	cfg, pool, logger, err := loadConfigAndPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	repo := pg.New(pool)

	searchEngine, err := search.New(search.Config{
		Addresses: []string{cfg.OpenSearchURL},
		Username:  cfg.OpenSearchUsername,
		Password:  cfg.OpenSearchPassword,
	})
	if err != nil {
		return err
	}

	defs, err := searchparams.Load()
	if err != nil {
		return err
	}
	deriver := search.NewFieldDeriver(defs)

	candidates, err := loadCandidateTenants(ctx, pool)
	if err != nil {
		return err
	}
	logger.Info().Int("tenant_count", len(candidates)).Msg("worker claiming candidate tenants")

	w := indexer.New(repo, searchEngine, deriver, indexer.Config{
		BatchSize:        256,
		CandidateTenants: candidates,
	}, logger)

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info().Msg("starting indexing worker")
	err = w.Run(runCtx)
	if err != nil && runCtx.Err() != nil {
		logger.Info().Msg("worker stopped")
		return nil
	}
	return err
}

// loadCandidateTenants lists every known tenant id so the worker
// competes for locks over the full candidate set (spec §8's SKIP
// LOCKED fairness scenario: multiple workers with overlapping
// candidate sets claim disjoint rows).
func loadCandidateTenants(ctx context.Context, pool *pgxpool.Pool) ([]ids.TenantID, error) {
	rows, err := pool.Query(ctx, `SELECT id FROM tenants`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ids.TenantID
	for rows.Next() {
		var id ids.TenantID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
