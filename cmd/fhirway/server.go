package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/fhirway/fhirway/internal/config"
	"github.com/fhirway/fhirway/internal/domain/customops"
	"github.com/fhirway/fhirway/internal/platform/accesscontrol"
	"github.com/fhirway/fhirway/internal/platform/db"
	"github.com/fhirway/fhirway/internal/platform/fhirclient"
	"github.com/fhirway/fhirway/internal/platform/oidc"
	"github.com/fhirway/fhirway/internal/platform/pipeline"
	"github.com/fhirway/fhirway/internal/platform/repository/pg"
	"github.com/fhirway/fhirway/internal/platform/router"
	"github.com/fhirway/fhirway/internal/platform/search"
	"github.com/fhirway/fhirway/internal/platform/search/searchparams"
	"github.com/fhirway/fhirway/internal/platform/session"
	"github.com/fhirway/fhirway/internal/platform/terminology"
)

func serverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "Run the FHIR API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// runServer wires every collaborator the request pipeline depends on
// and starts the Echo server, following the teacher's runServer shape
// (cmd/ehr-server/main.go): logger → config → pool → domain services →
// route registration → graceful shutdown on SIGINT/SIGTERM.
func runServer() error {
	ctx := context.Background()
	cfg, pool, logger, err := loadConfigAndPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	if err := db.Migrate(ctx, pool, logger); err != nil {
		return err
	}

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
	if err := searchEngine.Migrate(ctx, "4.0.1", searchparams.AsSearchParameters(defs)); err != nil {
		logger.Warn().Err(err).Msg("search engine migration failed, continuing")
	}

	term := terminology.New(repo)
	client := fhirclient.New(repo, searchEngine, term, customops.New(repo, term))
	evaluator := accesscontrol.New(repo)

	keys, err := oidc.LoadOrCreateKeyPair(cfg.CertificationDir)
	if err != nil {
		return err
	}
	issuer := oidc.NewIssuer(keys, cfg.APIURL, cfg.APIURL)

	sessionStore := newSessionStore(cfg, logger)
	sessionManager := session.NewManager(sessionStore, 24*time.Hour, !cfg.IsDev())

	oidcSvc := oidc.NewService(repo, issuer, sessionManager, noFederatedIDPs)

	e := router.New(router.Dependencies{
		State: &pipeline.State{
			Repo:        repo,
			Search:      searchEngine,
			Terminology: term,
			Client:      client,
			Config:      cfg,
		},
		Verifier:  issuer,
		Evaluator: evaluator,
		OIDC:      oidcSvc,
		Config:    cfg,
		Logger:    logger,
	})
	e.GET("/health/db", db.HealthHandler(pool))

	addr := ":" + cfg.Port
	go func() {
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	shutdownCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-shutdownCtx.Done()

	logger.Info().Msg("shutting down server")
	drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(drainCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

// newSessionStore picks the Redis-backed Store when REDIS_URL is
// configured, falling back to the in-memory Store for local
// development — saaskit's pkg/session split between a production Redis
// store and a dev in-memory one.
func newSessionStore(cfg *config.Config, logger zerolog.Logger) session.Store {
	if cfg.RedisURL == "" {
		logger.Warn().Msg("REDIS_URL not set, using in-memory session store (not safe for multi-instance deployment)")
		return session.NewMemoryStore()
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Warn().Err(err).Msg("invalid REDIS_URL, falling back to in-memory session store")
		return session.NewMemoryStore()
	}
	return session.NewRedisStore(redis.NewClient(opts), "fhirway:session:")
}

// noFederatedIDPs is the default FederatedIDPs resolver: no federated
// identity providers are configured unless a deployment wires project
// records carrying them (spec §3's Project.identity_providers is a
// reference list this binary doesn't yet resolve from storage).
func noFederatedIDPs(tenant, project, idpID string) (*oidc.FederatedIDP, error) {
	return nil, nil
}
