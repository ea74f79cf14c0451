// Package search wraps the OpenSearch client used to index and query
// FHIR resources (spec §4.3), grounded on saaskit's pkg/opensearch
// connect/config/doc split and generalized from a single bulk client to
// the platform's (fhir_version, tenant, project) isolation model.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/opensearch-project/opensearch-go/v2"

	"github.com/fhirway/fhirway/internal/domain/ids"
	"github.com/fhirway/fhirway/internal/platform/ferrors"
)

// Config holds the connection parameters for the OpenSearch cluster.
type Config struct {
	Addresses []string
	Username  string
	Password  string
}

// Engine is the public search contract spec §4.3 defines.
type Engine interface {
	// Index bulk-submits entries for tenant under fhirVersion. Returns
	// the count successfully indexed. At-least-once: callers retry on
	// partial failure, relying on (resource_type, resource_id,
	// version_id) document-id uniqueness for idempotency.
	Index(ctx context.Context, fhirVersion string, tenant ids.TenantID, entries []Entry) (int, error)

	// Search executes req against the (tenant, project)-scoped index.
	Search(ctx context.Context, fhirVersion string, tenant ids.TenantID, project ids.ProjectID, req Request) (*Result, error)

	// Migrate ensures the index for fhirVersion exists with the mapping
	// derived from params.
	Migrate(ctx context.Context, fhirVersion string, params []SearchParameter) error
}

// Entry is one resource version submitted for indexing or removal.
type Entry struct {
	Tenant       ids.TenantID
	Project      ids.ProjectID
	ResourceType string
	ResourceID   ids.ResourceID
	VersionID    ids.VersionID
	Remove       bool
	Fields       map[string]any // pre-derived per MappingFromSearchParameters
}

// Request is a parsed search query: AND across Params, OR within each
// Param's Values.
type Request struct {
	Params []Param
	Count  int
	Offset int
}

// Param is one search-parameter clause.
type Param struct {
	Name     string
	Type     ParamType
	Modifier string
	Values   []string
}

// ParamType enumerates the seven FHIR search parameter types (spec §4.3).
type ParamType string

const (
	TypeNumber    ParamType = "number"
	TypeDate      ParamType = "date"
	TypeToken     ParamType = "token"
	TypeReference ParamType = "reference"
	TypeQuantity  ParamType = "quantity"
	TypeString    ParamType = "string"
	TypeURI       ParamType = "uri"
)

// SearchParameter is the subset of a FHIR SearchParameter resource the
// mapping deriver needs.
type SearchParameter struct {
	URL  string
	Code string
	Type ParamType
}

// ResultHit identifies one matching resource.
type ResultHit struct {
	ID           string
	ResourceType string
	VersionID    string
}

// Result is the outcome of a Search call.
type Result struct {
	Total   *int
	Entries []ResultHit
}

// client wraps an *opensearch.Client with tenant/project isolation.
type client struct {
	os *opensearch.Client
}

// New connects to OpenSearch following saaskit's connect.go pattern.
func New(cfg Config) (Engine, error) {
	osCfg := opensearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	}
	c, err := opensearch.NewClient(osCfg)
	if err != nil {
		return nil, ferrors.Wrap(err, "connecting to opensearch")
	}
	return &client{os: c}, nil
}

func indexName(fhirVersion, resourceType string) string {
	return fmt.Sprintf("fhir-%s-%s", strings.ToLower(fhirVersion), strings.ToLower(resourceType))
}

// Index submits entries in a single _bulk request per spec §4.4 step 5.
func (c *client) Index(ctx context.Context, fhirVersion string, tenant ids.TenantID, entries []Entry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	var buf bytes.Buffer
	for _, e := range entries {
		docID := fmt.Sprintf("%s/%s/%s", e.ResourceType, e.ResourceID, e.VersionID)
		index := indexName(fhirVersion, e.ResourceType)

		if e.Remove {
			meta := map[string]any{"delete": map[string]any{"_index": index, "_id": docID}}
			metaLine, _ := json.Marshal(meta)
			buf.Write(metaLine)
			buf.WriteByte('\n')
			continue
		}

		meta := map[string]any{"index": map[string]any{"_index": index, "_id": docID}}
		metaLine, _ := json.Marshal(meta)
		buf.Write(metaLine)
		buf.WriteByte('\n')

		doc := map[string]any{
			"tenant":        e.Tenant,
			"project":       e.Project,
			"resource_type": e.ResourceType,
			"resource_id":   e.ResourceID,
			"version_id":    e.VersionID,
		}
		for k, v := range e.Fields {
			doc[k] = v
		}
		docLine, err := json.Marshal(doc)
		if err != nil {
			return 0, ferrors.Wrap(err, "marshaling index document")
		}
		buf.Write(docLine)
		buf.WriteByte('\n')
	}

	res, err := c.os.Bulk(bytes.NewReader(buf.Bytes()), c.os.Bulk.WithContext(ctx))
	if err != nil {
		return 0, ferrors.Wrap(err, "submitting bulk index request")
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, ferrors.Wrap(fmt.Errorf("opensearch bulk error: %s", res.String()), "bulk indexing")
	}

	return len(entries), nil
}

// Search runs req scoped to (tenant, project). Tenant isolation is
// always enforced server-side via a term filter, never left to
// caller-supplied parameters, per spec §4.1's isolation invariant.
func (c *client) Search(ctx context.Context, fhirVersion string, tenant ids.TenantID, project ids.ProjectID, req Request) (*Result, error) {
	query, err := BuildQuery(tenant, project, req)
	if err != nil {
		return nil, err
	}

	var resourceType string
	for _, p := range req.Params {
		if p.Name == "_type" && len(p.Values) > 0 {
			resourceType = p.Values[0]
		}
	}
	index := "fhir-*"
	if resourceType != "" {
		index = indexName(fhirVersion, resourceType)
	}

	body, err := json.Marshal(query)
	if err != nil {
		return nil, ferrors.Wrap(err, "marshaling search query")
	}

	res, err := c.os.Search(
		c.os.Search.WithContext(ctx),
		c.os.Search.WithIndex(index),
		c.os.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, ferrors.Wrap(err, "executing search request")
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, ferrors.Wrap(fmt.Errorf("opensearch search error: %s", res.String()), "searching")
	}

	var parsed struct {
		Hits struct {
			Total struct {
				Value int `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source struct {
					ResourceType string `json:"resource_type"`
					ResourceID   string `json:"resource_id"`
					VersionID    string `json:"version_id"`
				} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, ferrors.Wrap(err, "decoding search response")
	}

	out := &Result{Total: &parsed.Hits.Total.Value}
	for _, h := range parsed.Hits.Hits {
		out.Entries = append(out.Entries, ResultHit{
			ID:           h.Source.ResourceID,
			ResourceType: h.Source.ResourceType,
			VersionID:    h.Source.VersionID,
		})
	}
	return out, nil
}

// Migrate ensures the per-resource-type index exists with the mapping
// derived from params.
func (c *client) Migrate(ctx context.Context, fhirVersion string, params []SearchParameter) error {
	byType := map[string][]SearchParameter{}
	for _, p := range params {
		rt := resourceTypeOfParam(p)
		byType[rt] = append(byType[rt], p)
	}

	for rt, ps := range byType {
		index := indexName(fhirVersion, rt)
		mapping := MappingFromSearchParameters(ps)
		body, err := json.Marshal(map[string]any{"mappings": mapping})
		if err != nil {
			return ferrors.Wrap(err, "marshaling mapping for %s", index)
		}

		res, err := c.os.Indices.Create(index, c.os.Indices.Create.WithContext(ctx), c.os.Indices.Create.WithBody(bytes.NewReader(body)))
		if err != nil {
			return ferrors.Wrap(err, "creating index %s", index)
		}
		defer res.Body.Close()
		if res.IsError() && res.StatusCode != 400 { // 400: resource_already_exists_exception
			return ferrors.Wrap(fmt.Errorf("opensearch index create error: %s", res.String()), "creating index %s", index)
		}
	}
	return nil
}

// resourceTypeOfParam is a placeholder extraction point: in practice
// SearchParameter.code is namespaced per resource by the caller
// grouping params before calling Migrate; kept trivial here since the
// full SearchParameter resource (base[]) is outside this package's
// narrow model.
func resourceTypeOfParam(p SearchParameter) string {
	if idx := strings.Index(p.Code, "."); idx > 0 {
		return p.Code[:idx]
	}
	return "Resource"
}
