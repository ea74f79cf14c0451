// Package txbundle processes FHIR Bundle resources of type "transaction"
// or "batch" (spec §9). It resolves fullUrl references created in the
// same bundle, topologically orders entries so a referenced resource is
// written before its referrer, and executes them against a Repository:
// transaction entries share one repository transaction and roll back
// together on any failure; batch entries run independently and the
// bundle always returns with a per-entry outcome.
package txbundle

import (
	"context"
	"fmt"
	"strings"

	"github.com/fhirway/fhirway/internal/domain/ids"
	"github.com/fhirway/fhirway/internal/platform/ferrors"
	"github.com/fhirway/fhirway/internal/platform/fhirmodel"
	"github.com/fhirway/fhirway/internal/platform/repository"
)

type entry struct {
	index    int
	fullURL  string
	method   string // POST, PUT, DELETE, GET
	typeHint string
	idHint   ids.ResourceID
	resource fhirmodel.Resource
}

// Process executes bundle against repo, scoped to tenant/project/author,
// and returns the response Bundle. transactional selects "transaction"
// (atomic, single repository transaction) versus "batch" (independent,
// best-effort) semantics.
func Process(ctx context.Context, repo repository.Repository, tenant ids.TenantID, project ids.ProjectID, author repository.Author, fhirVersion string, bundle fhirmodel.Resource, transactional bool) (fhirmodel.Resource, error) {
	entries, err := parseEntries(bundle)
	if err != nil {
		return nil, err
	}

	fullURLMap := assignIDs(entries)

	order, err := topoSort(entries)
	if err != nil {
		return nil, err
	}

	rewriteReferences(entries, fullURLMap)

	if transactional {
		return runTransaction(ctx, repo, tenant, project, author, fhirVersion, entries, order)
	}
	return runBatch(ctx, repo, tenant, project, author, fhirVersion, entries, order), nil
}

func parseEntries(bundle fhirmodel.Resource) ([]*entry, error) {
	raw, _ := bundle.Get("entry")
	arr, ok := raw.([]any)
	if !ok {
		return nil, ferrors.Invalidf("invalid", "bundle has no entry array")
	}

	entries := make([]*entry, 0, len(arr))
	for i, rawEntry := range arr {
		m, ok := rawEntry.(map[string]any)
		if !ok {
			return nil, ferrors.Invalidf("invalid", "bundle entry %d is not an object", i)
		}

		e := &entry{index: i}
		if fu, ok := m["fullUrl"].(string); ok {
			e.fullURL = fu
		}
		if res, ok := m["resource"].(map[string]any); ok {
			e.resource = fhirmodel.Resource(res)
		}
		req, _ := m["request"].(map[string]any)
		method, _ := req["method"].(string)
		e.method = strings.ToUpper(method)
		url, _ := req["url"].(string)
		e.typeHint, e.idHint = splitURL(url)
		if e.typeHint == "" && e.resource != nil {
			e.typeHint = e.resource.TypeName()
		}
		if e.idHint == "" && e.resource != nil && e.resource.ID() != "" {
			e.idHint = ids.ResourceID(e.resource.ID())
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func splitURL(url string) (resourceType string, id ids.ResourceID) {
	parts := strings.SplitN(url, "/", 2)
	if len(parts) == 0 || parts[0] == "" {
		return "", ""
	}
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], ids.ResourceID(parts[1])
}

// assignIDs gives every POST/create entry a server-assigned id and
// returns the fullUrl -> "ResourceType/id" map used for reference
// rewriting and ordering.
func assignIDs(entries []*entry) map[string]string {
	fullURLMap := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.method == "POST" && e.idHint == "" {
			e.idHint = ids.NewResourceID()
		}
		if e.resource != nil {
			e.resource.SetID(e.idHint.String())
		}
		if e.fullURL != "" && e.typeHint != "" {
			fullURLMap[e.fullURL] = fmt.Sprintf("%s/%s", e.typeHint, e.idHint)
		}
	}
	return fullURLMap
}

// rewriteReferences does the single reference-rewrite pass spec §9
// calls for: every "reference" string matching a fullUrl in the bundle
// is replaced by the resolved "ResourceType/id" form.
func rewriteReferences(entries []*entry, fullURLMap map[string]string) {
	for _, e := range entries {
		if e.resource == nil {
			continue
		}
		e.resource.WalkReferences(func(_ []string, value string) string {
			if resolved, ok := fullURLMap[value]; ok {
				return resolved
			}
			return value
		})
	}
}

// topoSort orders entries so that any entry referencing another
// bundle-local entry (by fullUrl) executes after the one it depends on.
func topoSort(entries []*entry) ([]int, error) {
	n := len(entries)
	deps := make(map[int]map[int]bool, n)
	fullURLToEntry := make(map[string]int, n)
	for i, e := range entries {
		deps[i] = map[int]bool{}
		if e.fullURL != "" {
			fullURLToEntry[e.fullURL] = i
		}
	}
	for i, e := range entries {
		if e.resource == nil {
			continue
		}
		e.resource.WalkReferences(func(_ []string, value string) string {
			if ref, ok := fullURLToEntry[value]; ok && ref != i {
				deps[i][ref] = true
			}
			return value
		})
	}

	var order []int
	visited := make([]int, n) // 0=unvisited, 1=visiting, 2=done
	var visit func(i int) error
	visit = func(i int) error {
		switch visited[i] {
		case 2:
			return nil
		case 1:
			return ferrors.Invalidf("invalid", "bundle entries form a reference cycle")
		}
		visited[i] = 1
		for dep := range deps[i] {
			if err := visit(dep); err != nil {
				return err
			}
		}
		visited[i] = 2
		order = append(order, i)
		return nil
	}
	for i := 0; i < n; i++ {
		if err := visit(i); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func runTransaction(ctx context.Context, repo repository.Repository, tenant ids.TenantID, project ids.ProjectID, author repository.Author, fhirVersion string, entries []*entry, order []int) (fhirmodel.Resource, error) {
	txRepo, err := repo.Transaction(ctx)
	if err != nil {
		return nil, err
	}

	responses := make([]fhirmodel.Resource, len(entries))
	for _, i := range order {
		res, err := execute(ctx, txRepo, tenant, project, author, fhirVersion, entries[i])
		if err != nil {
			_ = txRepo.Rollback(ctx)
			return nil, err
		}
		responses[i] = res
	}

	if err := txRepo.Commit(ctx); err != nil {
		return nil, err
	}
	return buildResponseBundle("transaction-response", entries, responses, nil), nil
}

func runBatch(ctx context.Context, repo repository.Repository, tenant ids.TenantID, project ids.ProjectID, author repository.Author, fhirVersion string, entries []*entry, order []int) fhirmodel.Resource {
	responses := make([]fhirmodel.Resource, len(entries))
	errs := make([]error, len(entries))
	for _, i := range order {
		res, err := execute(ctx, repo, tenant, project, author, fhirVersion, entries[i])
		responses[i] = res
		errs[i] = err
	}
	return buildResponseBundle("batch-response", entries, responses, errs)
}

func execute(ctx context.Context, repo repository.Repository, tenant ids.TenantID, project ids.ProjectID, author repository.Author, fhirVersion string, e *entry) (fhirmodel.Resource, error) {
	switch e.method {
	case "POST":
		return repo.Create(ctx, tenant, project, author, fhirVersion, e.resource)
	case "PUT":
		return repo.Update(ctx, tenant, project, author, fhirVersion, e.typeHint, e.idHint, e.resource)
	case "DELETE":
		return nil, repo.Delete(ctx, tenant, project, author, e.typeHint, e.idHint)
	case "GET":
		res, err := repo.ReadLatest(ctx, tenant, project, e.typeHint, e.idHint, repository.Cache)
		if err != nil {
			return nil, err
		}
		if res == nil {
			return nil, ferrors.NotFoundf("%s/%s not found", e.typeHint, e.idHint)
		}
		return res, nil
	default:
		return nil, ferrors.Invalidf("invalid", "unsupported bundle entry method %q", e.method)
	}
}

func buildResponseBundle(typ string, entries []*entry, responses []fhirmodel.Resource, errs []error) fhirmodel.Resource {
	responseEntries := make([]any, len(entries))
	for i, e := range entries {
		var entryErr error
		if errs != nil {
			entryErr = errs[i]
		}
		status := statusFor(e.method, entryErr)
		respEntry := map[string]any{
			"response": map[string]any{"status": status},
		}
		if entryErr != nil {
			respEntry["response"].(map[string]any)["outcome"] = ferrors.FromError(entryErr).ToOperationOutcome()
		} else if responses[i] != nil {
			respEntry["resource"] = responses[i]
		}
		responseEntries[i] = respEntry
	}
	return fhirmodel.Resource{
		"resourceType": "Bundle",
		"type":         typ,
		"entry":        responseEntries,
	}
}

func statusFor(method string, err error) string {
	if err != nil {
		fe := ferrors.FromError(err)
		return fmt.Sprintf("%d %s", fe.HTTPStatus(), fe.Code)
	}
	switch method {
	case "POST":
		return "201 Created"
	case "DELETE":
		return "204 No Content"
	default:
		return "200 OK"
	}
}
