// Package pg is the PostgreSQL-backed implementation of
// repository.Repository: an append-only resource_versions table plus
// the administrative tables (tenants, projects, users, memberships,
// client applications, authorization codes, scopes), grounded on the
// teacher's per-aggregate repo_pg.go files
// (internal/domain/admin/repo_pg.go) and the Rust source's fhir.rs /
// admin.rs trait shapes.
package pg

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fhirway/fhirway/internal/platform/canonicalcache"
	"github.com/fhirway/fhirway/internal/platform/fhirmodel"
	"github.com/fhirway/fhirway/internal/platform/ferrors"
	"github.com/fhirway/fhirway/internal/platform/repository"
)

// queryer abstracts pgxpool.Pool and pgx.Tx, the two connection shapes
// a Repository may run its queries against, the same way the teacher's
// queryable interface abstracts pool and tenant-scoped connections.
type queryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository is the pgx-backed repository.Repository. A zero-value
// instance is never valid; use New.
type Repository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx

	latestCache *canonicalcache.LRUCache[latestCacheKey, fhirmodel.Resource]
}

// latestCacheKey identifies one ReadLatest result.
type latestCacheKey struct {
	tenant, project, resourceType, resourceID string
}

// cacheCapacity bounds the ReadLatest cache. Unlike the Rust source's
// equivalent resolver cache, this bound is enforced (see
// internal/platform/canonicalcache).
const cacheCapacity = 4096

// New builds a pool-bound Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{
		pool:        pool,
		latestCache: canonicalcache.New[latestCacheKey, fhirmodel.Resource](cacheCapacity),
	}
}

func (r *Repository) conn() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

// Transaction starts a new transaction-bound Repository sharing this
// instance's cache. Nested calls on an already transaction-bound
// Repository return the same instance, matching the Rust source's
// PGConnection::PgTransaction reuse.
func (r *Repository) Transaction(ctx context.Context) (repository.Repository, error) {
	if r.tx != nil {
		return r, nil
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, ferrors.Wrap(err, "beginning transaction")
	}
	return &Repository{pool: r.pool, tx: tx, latestCache: r.latestCache}, nil
}

// InTransaction reports whether this handle is transaction-bound.
func (r *Repository) InTransaction() bool { return r.tx != nil }

// Commit commits the bound transaction.
func (r *Repository) Commit(ctx context.Context) error {
	if r.tx == nil {
		return ferrors.Invalidf("", "commit called on a non-transactional repository")
	}
	if err := r.tx.Commit(ctx); err != nil {
		return ferrors.Wrap(err, "committing transaction")
	}
	return nil
}

// Rollback rolls back the bound transaction.
func (r *Repository) Rollback(ctx context.Context) error {
	if r.tx == nil {
		return ferrors.Invalidf("", "rollback called on a non-transactional repository")
	}
	if err := r.tx.Rollback(ctx); err != nil {
		return ferrors.Wrap(err, "rolling back transaction")
	}
	return nil
}

var _ repository.Repository = (*Repository)(nil)
