package pg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fhirway/fhirway/internal/domain/ids"
	"github.com/fhirway/fhirway/internal/platform/fhirmodel"
	"github.com/fhirway/fhirway/internal/platform/ferrors"
	"github.com/fhirway/fhirway/internal/platform/repository"
)

// Create appends a "create" row, keeping the resource's id when it
// carries one and assigning a fresh resource id otherwise, assigning a
// fresh version id and stamping meta.versionId/meta.lastUpdated (spec
// §4.2).
func (r *Repository) Create(ctx context.Context, tenant ids.TenantID, project ids.ProjectID, author repository.Author, fhirVersion string, resource fhirmodel.Resource) (fhirmodel.Resource, error) {
	out := resource.Clone()
	id := ids.ResourceID(out.ID())
	if id == "" {
		id = ids.NewResourceID()
		out.SetID(string(id))
	}
	return r.appendVersion(ctx, tenant, project, author, out.TypeName(), id, repository.MethodCreate, out, false)
}

// Update appends a new version for id, or behaves as Create when no
// prior version exists — the append-only model makes both cases the
// same insert, so no prior lookup is required (spec §4.2 upsert
// semantics).
func (r *Repository) Update(ctx context.Context, tenant ids.TenantID, project ids.ProjectID, author repository.Author, fhirVersion string, resourceType string, id ids.ResourceID, resource fhirmodel.Resource) (fhirmodel.Resource, error) {
	out := resource.Clone()
	out.SetID(string(id))
	return r.appendVersion(ctx, tenant, project, author, resourceType, id, repository.MethodUpdate, out, false)
}

// Delete appends a tombstone row. Prior versions remain queryable
// through History.
func (r *Repository) Delete(ctx context.Context, tenant ids.TenantID, project ids.ProjectID, author repository.Author, resourceType string, id ids.ResourceID) error {
	tomb := fhirmodel.Resource{"resourceType": resourceType, "id": string(id)}
	_, err := r.appendVersion(ctx, tenant, project, author, resourceType, id, repository.MethodDelete, tomb, true)
	return err
}

func (r *Repository) appendVersion(ctx context.Context, tenant ids.TenantID, project ids.ProjectID, author repository.Author, resourceType string, id ids.ResourceID, method repository.FHIRMethod, resource fhirmodel.Resource, deleted bool) (fhirmodel.Resource, error) {
	versionID := ids.NewVersionID()
	now := time.Now().UTC().Format(time.RFC3339Nano)
	resource.SetMeta(string(versionID), now)

	raw, err := json.Marshal(resource)
	if err != nil {
		return nil, ferrors.Wrap(err, "marshaling resource %s/%s", resourceType, id)
	}

	_, err = r.conn().Exec(ctx, `
		INSERT INTO resource_versions
			(tenant, project, resource_type, resource_id, version_id, fhir_method, author_id, author_kind, resource, deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		tenant, project, resourceType, id, versionID, string(method), author.ID, author.Kind, raw, deleted,
	)
	if err != nil {
		return nil, ferrors.Wrap(err, "inserting resource_versions row for %s/%s", resourceType, id)
	}

	r.latestCache.Invalidate(latestCacheKey{tenant.String(), project.String(), resourceType, id.String()})
	return resource, nil
}

// ReadLatest returns the current non-deleted version, or (nil, nil) if
// the resource doesn't exist or its latest version is a tombstone.
func (r *Repository) ReadLatest(ctx context.Context, tenant ids.TenantID, project ids.ProjectID, resourceType string, id ids.ResourceID, policy repository.CachePolicy) (fhirmodel.Resource, error) {
	key := latestCacheKey{tenant.String(), project.String(), resourceType, id.String()}
	if policy == repository.Cache {
		if cached, ok := r.latestCache.Get(key); ok {
			return cached, nil
		}
	}

	var raw []byte
	var deleted bool
	err := r.conn().QueryRow(ctx, `
		SELECT resource, deleted FROM resource_versions
		WHERE tenant = $1 AND project = $2 AND resource_type = $3 AND resource_id = $4
		ORDER BY sequence DESC LIMIT 1`,
		tenant, project, resourceType, id,
	).Scan(&raw, &deleted)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, ferrors.Wrap(err, "reading latest version of %s/%s", resourceType, id)
	}
	if deleted {
		return nil, nil
	}

	res, err := fhirmodel.ParseResource(raw)
	if err != nil {
		return nil, ferrors.Wrap(err, "parsing stored resource %s/%s", resourceType, id)
	}

	if policy == repository.Cache {
		r.latestCache.Put(key, res)
	}
	return res, nil
}

// ReadByVersionIDs bulk-fetches specific versions by their version id,
// in no particular order. policy only matters for the caller's own
// bookkeeping here: version-pinned reads are immutable by definition,
// so this method never consults or populates the ReadLatest cache.
func (r *Repository) ReadByVersionIDs(ctx context.Context, tenant ids.TenantID, project ids.ProjectID, versionIDs []ids.VersionID, policy repository.CachePolicy) ([]fhirmodel.Resource, error) {
	if len(versionIDs) == 0 {
		return nil, nil
	}

	raws := make([]string, len(versionIDs))
	for i, v := range versionIDs {
		raws[i] = v.String()
	}

	rows, err := r.conn().Query(ctx, `
		SELECT resource FROM resource_versions
		WHERE tenant = $1 AND project = $2 AND version_id = ANY($3)`,
		tenant, project, raws,
	)
	if err != nil {
		return nil, ferrors.Wrap(err, "bulk reading resource versions")
	}
	defer rows.Close()

	var out []fhirmodel.Resource
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, ferrors.Wrap(err, "scanning resource version row")
		}
		res, err := fhirmodel.ParseResource(raw)
		if err != nil {
			return nil, ferrors.Wrap(err, "parsing stored resource")
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// History returns rows matching req ordered by sequence descending,
// per the system/type/instance scopes spec §4.2 defines.
func (r *Repository) History(ctx context.Context, tenant ids.TenantID, project ids.ProjectID, req repository.HistoryRequest) ([]repository.ResourceVersion, error) {
	query := `
		SELECT tenant, project, resource_type, resource_id, version_id, sequence,
		       fhir_method, author_id, author_kind, created_at, resource, deleted
		FROM resource_versions
		WHERE tenant = $1 AND project = $2`
	args := []any{tenant, project}

	switch req.Scope {
	case repository.ScopeType:
		query += " AND resource_type = $3"
		args = append(args, req.ResourceType)
	case repository.ScopeInstance:
		query += " AND resource_type = $3 AND resource_id = $4"
		args = append(args, req.ResourceType, req.ResourceID)
	}

	if req.Before > 0 {
		query += fmt.Sprintf(" AND sequence < $%d", len(args)+1)
		args = append(args, req.Before)
	}

	query += " ORDER BY sequence DESC"
	if req.Count > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, req.Count)
	}

	rows, err := r.conn().Query(ctx, query, args...)
	if err != nil {
		return nil, ferrors.Wrap(err, "querying history")
	}
	defer rows.Close()

	var out []repository.ResourceVersion
	for rows.Next() {
		var v repository.ResourceVersion
		var method string
		var raw []byte
		if err := rows.Scan(&v.Tenant, &v.Project, &v.ResourceType, &v.ResourceID, &v.VersionID, &v.Sequence,
			&method, &v.AuthorID, &v.AuthorKind, &v.CreatedAt, &raw, &v.Deleted); err != nil {
			return nil, ferrors.Wrap(err, "scanning history row")
		}
		v.Method = repository.FHIRMethod(method)
		res, err := fhirmodel.ParseResource(raw)
		if err != nil {
			return nil, ferrors.Wrap(err, "parsing history row resource")
		}
		v.Resource = res
		out = append(out, v)
	}
	return out, rows.Err()
}

// GetSequence returns rows with sequence >= start ordered ascending,
// the feed the indexing worker polls (spec §9).
func (r *Repository) GetSequence(ctx context.Context, tenant ids.TenantID, start int64, count int) ([]repository.SequenceEntry, error) {
	query := `
		SELECT tenant, project, resource_type, resource_id, version_id, sequence, fhir_method, resource
		FROM resource_versions
		WHERE tenant = $1 AND sequence >= $2
		ORDER BY sequence ASC`
	args := []any{tenant, start}
	if count > 0 {
		query += " LIMIT $3"
		args = append(args, count)
	}

	rows, err := r.conn().Query(ctx, query, args...)
	if err != nil {
		return nil, ferrors.Wrap(err, "querying sequence feed")
	}
	defer rows.Close()

	var out []repository.SequenceEntry
	for rows.Next() {
		var e repository.SequenceEntry
		var method string
		var raw []byte
		if err := rows.Scan(&e.Tenant, &e.Project, &e.ResourceType, &e.ResourceID, &e.VersionID, &e.Sequence, &method, &raw); err != nil {
			return nil, ferrors.Wrap(err, "scanning sequence row")
		}
		e.Method = repository.FHIRMethod(method)
		res, err := fhirmodel.ParseResource(raw)
		if err != nil {
			return nil, ferrors.Wrap(err, "parsing sequence row resource")
		}
		e.Resource = res
		out = append(out, e)
	}
	return out, rows.Err()
}
