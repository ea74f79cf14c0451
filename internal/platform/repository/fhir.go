package repository

import (
	"context"

	"github.com/fhirway/fhirway/internal/domain/ids"
	"github.com/fhirway/fhirway/internal/platform/fhirmodel"
)

// FHIRRepository is the append-only versioned store described in spec
// §4.2. Every operation is scoped to a (tenant, project) pair and
// attributed to an author.
type FHIRRepository interface {
	// Create assigns an id if the resource doesn't already carry one,
	// always assigns a fresh versionId, and appends a "create" row.
	Create(ctx context.Context, tenant ids.TenantID, project ids.ProjectID, author Author, fhirVersion string, resource fhirmodel.Resource) (fhirmodel.Resource, error)

	// Update appends a new version, or behaves as Create when no prior
	// version exists for id (upsert semantics, per spec §4.2).
	Update(ctx context.Context, tenant ids.TenantID, project ids.ProjectID, author Author, fhirVersion string, resourceType string, id ids.ResourceID, resource fhirmodel.Resource) (fhirmodel.Resource, error)

	// Delete appends a tombstone row. Prior versions remain queryable.
	Delete(ctx context.Context, tenant ids.TenantID, project ids.ProjectID, author Author, resourceType string, id ids.ResourceID) error

	// ReadLatest returns the current non-deleted version, or (nil, nil)
	// if none exists.
	ReadLatest(ctx context.Context, tenant ids.TenantID, project ids.ProjectID, resourceType string, id ids.ResourceID, policy CachePolicy) (fhirmodel.Resource, error)

	// ReadByVersionIDs bulk-fetches specific versions, honoring policy.
	ReadByVersionIDs(ctx context.Context, tenant ids.TenantID, project ids.ProjectID, versionIDs []ids.VersionID, policy CachePolicy) ([]fhirmodel.Resource, error)

	// History returns rows matching req ordered by sequence descending.
	History(ctx context.Context, tenant ids.TenantID, project ids.ProjectID, req HistoryRequest) ([]ResourceVersion, error)

	// GetSequence returns rows with sequence >= start, ordered
	// ascending, for use by the indexing worker. count == 0 means no
	// limit.
	GetSequence(ctx context.Context, tenant ids.TenantID, start int64, count int) ([]SequenceEntry, error)

	// Transaction returns a Repository bound to a new transaction. The
	// caller must Commit or Rollback the returned value.
	Transaction(ctx context.Context) (Repository, error)

	// InTransaction reports whether this Repository handle is already
	// transaction-bound (nested Transaction calls share it).
	InTransaction() bool

	// Commit commits the underlying transaction. Only valid when
	// InTransaction() is true.
	Commit(ctx context.Context) error

	// Rollback rolls back the underlying transaction. Only valid when
	// InTransaction() is true.
	Rollback(ctx context.Context) error
}
