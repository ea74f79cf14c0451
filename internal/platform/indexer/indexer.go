// Package indexer implements the asynchronous sequence-based indexing
// worker (spec §4.4): a long-running loop that claims per-tenant row
// locks with `FOR UPDATE SKIP LOCKED`, pulls each claimed tenant's new
// resource_versions rows, bulk-submits them to the search engine, and
// advances index_sequence_position. Grounded on the teacher's
// cobra-driven background-loop shape (cmd/ehr-server/main.go's worker
// subcommand pattern) and spec §4.4/§5's fairness and failure-recovery
// guarantees.
package indexer

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/fhirway/fhirway/internal/domain/ids"
	"github.com/fhirway/fhirway/internal/platform/fhirmodel"
	"github.com/fhirway/fhirway/internal/platform/ferrors"
	"github.com/fhirway/fhirway/internal/platform/repository"
	"github.com/fhirway/fhirway/internal/platform/search"
)

// Config tunes one Worker's batching and polling behavior.
type Config struct {
	// BatchSize bounds how many sequence rows are pulled per claimed
	// tenant per tick (spec §4.4 step 3/§5's "batch size caps the hold
	// time" note).
	BatchSize int
	// PollInterval is the fixed interval between Run's ticks, whether
	// or not the previous tick claimed any work.
	PollInterval time.Duration
	// CandidateTenants is the fixed tenant set this worker competes
	// for locks over. In a single-process deployment this is every
	// known tenant; spec §8's SKIP LOCKED fairness scenario assumes
	// overlapping candidate sets across workers.
	CandidateTenants []ids.TenantID
}

// DefaultConfig matches spec §8 scenario 5's batch size.
func DefaultConfig() Config {
	return Config{BatchSize: 256, PollInterval: time.Second}
}

// Worker runs the indexing loop described in spec §4.4.
type Worker struct {
	repo    repository.Repository
	search  search.Engine
	deriver *search.FieldDeriver
	cfg     Config
	logger  zerolog.Logger
}

// New builds a Worker. repo must be a non-transaction-bound handle
// capable of producing fresh transactions via Transaction (spec §4.4
// step 1); deriver supplies the indexed_fields mapping for each
// resource (nil is valid — entries are then indexed with no derived
// fields beyond the identity columns search.Engine.Index always sets).
func New(repo repository.Repository, engine search.Engine, deriver *search.FieldDeriver, cfg Config, logger zerolog.Logger) *Worker {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	return &Worker{repo: repo, search: engine, deriver: deriver, cfg: cfg, logger: logger}
}

// Run loops until ctx is cancelled, ticking at cfg.PollInterval.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Tick(ctx); err != nil {
				w.logger.Error().Err(err).Msg("indexer tick failed")
			}
		}
	}
}

// Tick runs a single pass of the spec §4.4 loop: claim locks, pull and
// index each claimed tenant's batch, advance cursors, commit. A
// tenant whose batch fails to index does not block the others in the
// same tick — its cursor simply isn't advanced, so the next tick
// retries it (spec §4.4's failure-recovery guarantee), while sibling
// tenants in the same pass still make progress.
func (w *Worker) Tick(ctx context.Context) error {
	tx, err := w.repo.Transaction(ctx)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	claimed, err := tx.ClaimTenantLocks(ctx, w.cfg.CandidateTenants)
	if err != nil {
		return err
	}

	for _, tenant := range claimed {
		if err := w.processTenant(ctx, tx, tenant); err != nil {
			w.logger.Error().Err(err).Str("tenant", tenant.ID.String()).Msg("indexing tenant batch failed")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	committed = true
	return nil
}

// processTenant pulls one batch for tenant, indexes it, and advances
// the cursor. Errors are returned to the caller (which logs and moves
// on to the next tenant) rather than aborting the whole tick.
func (w *Worker) processTenant(ctx context.Context, tx repository.Repository, tenant repository.Tenant) error {
	rows, err := tx.GetSequence(ctx, tenant.ID, tenant.IndexSequencePosition+1, w.cfg.BatchSize)
	if err != nil {
		return ferrors.Wrap(err, "pulling sequence batch for tenant %s", tenant.ID)
	}
	if len(rows) == 0 {
		return nil
	}

	entries := make([]search.Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, w.entryFor(row))
	}

	var fhirVersion string
	if len(rows) > 0 {
		fhirVersion = fhirVersionOf(rows[0].Resource)
	}

	if _, err := w.search.Index(ctx, fhirVersion, tenant.ID, entries); err != nil {
		return ferrors.Wrap(err, "bulk indexing batch for tenant %s", tenant.ID)
	}

	lastSequence := rows[len(rows)-1].Sequence
	if err := tx.AdvanceIndexSequence(ctx, tenant.ID, lastSequence); err != nil {
		return ferrors.Wrap(err, "advancing index sequence for tenant %s", tenant.ID)
	}
	return nil
}

// entryFor partitions a sequence row into an index or remove request
// (spec §4.4 step 4) and, for non-removals, attaches the derived
// indexed_fields mapping.
func (w *Worker) entryFor(row repository.SequenceEntry) search.Entry {
	entry := search.Entry{
		Tenant:       row.Tenant,
		Project:      row.Project,
		ResourceType: row.ResourceType,
		ResourceID:   row.ResourceID,
		VersionID:    row.VersionID,
		Remove:       row.Method == repository.MethodDelete,
	}
	if !entry.Remove && w.deriver != nil && row.Resource != nil {
		entry.Fields = w.deriver.Derive(row.Resource)
	}
	return entry
}

// fhirVersionOf reads meta.fhirVersion off the first row's resource,
// falling back to "4.0.1" (FHIR R4) since spec §3 fixes the platform
// to a single FHIR version per project and this package doesn't have
// the project record in hand at this point in the pipeline.
func fhirVersionOf(resource fhirmodel.Resource) string {
	meta, _ := resource["meta"].(map[string]any)
	if meta == nil {
		return "4.0.1"
	}
	if v, ok := meta["fhirVersion"].(string); ok && v != "" {
		return v
	}
	return "4.0.1"
}
