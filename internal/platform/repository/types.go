package repository

import (
	"time"

	"github.com/fhirway/fhirway/internal/domain/ids"
	"github.com/fhirway/fhirway/internal/platform/fhirmodel"
)

// FHIRMethod records which verb produced a ResourceVersion row.
type FHIRMethod string

const (
	MethodCreate FHIRMethod = "create"
	MethodUpdate FHIRMethod = "update"
	MethodDelete FHIRMethod = "delete"
)

// CachePolicy controls whether ReadLatest is allowed to answer from an
// in-process cache. Per SPEC_FULL.md's resolution of the repository's
// Open Question: reads default to Cache, writes always pass NoCache
// explicitly at their call site.
type CachePolicy int

const (
	Cache CachePolicy = iota
	NoCache
)

// ResourceVersion is one immutable row of the append-only history.
type ResourceVersion struct {
	Tenant       ids.TenantID
	Project      ids.ProjectID
	ResourceType string
	ResourceID   ids.ResourceID
	VersionID    ids.VersionID
	Sequence     int64
	Method       FHIRMethod
	AuthorID     ids.AuthorID
	AuthorKind   string
	CreatedAt    time.Time
	Resource     fhirmodel.Resource
	Deleted      bool
}

// HistoryScope selects the breadth of a history query.
type HistoryScope int

const (
	ScopeSystem HistoryScope = iota
	ScopeType
	ScopeInstance
)

// HistoryRequest parameterizes History per spec §4.2.
type HistoryRequest struct {
	Scope        HistoryScope
	ResourceType string   // required for ScopeType/ScopeInstance
	ResourceID   ids.ResourceID // required for ScopeInstance
	Count        int            // 0 means unpaged
	Before       int64          // sequence cursor, 0 means newest
}

// SequenceEntry is one row returned by GetSequence, carrying enough
// information for the indexing worker to build an index or remove
// request without a second round trip to the repository.
type SequenceEntry struct {
	Tenant       ids.TenantID
	Project      ids.ProjectID
	ResourceType string
	ResourceID   ids.ResourceID
	VersionID    ids.VersionID
	Sequence     int64
	Method       FHIRMethod
	Resource     fhirmodel.Resource
}

// Author identifies the principal making a write, carried through the
// pipeline Context into every repository call.
type Author struct {
	ID   ids.AuthorID
	Kind string // "user", "client", "system"
}
