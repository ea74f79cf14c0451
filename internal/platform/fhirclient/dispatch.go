package fhirclient

import (
	"context"

	"github.com/fhirway/fhirway/internal/domain/ids"
	"github.com/fhirway/fhirway/internal/platform/ferrors"
	"github.com/fhirway/fhirway/internal/platform/fhirmodel"
	"github.com/fhirway/fhirway/internal/platform/repository"
	"github.com/fhirway/fhirway/internal/platform/search"
)

// Request is the uniform envelope the pipeline's terminal RepositoryDispatch
// layer builds once access control has cleared: every FHIR interaction
// (CRUD, search, history, invoke, transaction/batch) flows through
// Dispatch via one Request/Response shape, per spec §9's pipeline design.
type Request struct {
	Kind         string // "read", "vread", "create", "update", "patch", "conditional-update", "delete", "search", "history", "invoke", "transaction", "batch"
	ResourceType string
	ResourceID   ids.ResourceID
	VersionID    ids.VersionID
	Resource     fhirmodel.Resource
	Patch        map[string]any
	SearchParams map[string][]string
	SearchRequest search.Request
	History      repository.HistoryRequest
	Operation    string
	Bundle       fhirmodel.Resource
}

// Response is the uniform result of a Dispatch call.
type Response struct {
	Resource     fhirmodel.Resource
	SearchResult *search.Result
	History      []repository.ResourceVersion
}

// Dispatch routes req to the matching typed Client method. It is the
// single call site the pipeline's terminal layer uses, so that layer
// needs no type switch of its own.
func Dispatch(ctx context.Context, c Client, rc RequestContext, req Request) (Response, error) {
	switch req.Kind {
	case "read":
		res, err := c.Read(ctx, rc, req.ResourceType, req.ResourceID)
		return Response{Resource: res}, err
	case "vread":
		res, err := c.VRead(ctx, rc, req.VersionID)
		return Response{Resource: res}, err
	case "create":
		res, err := c.Create(ctx, rc, req.Resource)
		return Response{Resource: res}, err
	case "update":
		res, err := c.Update(ctx, rc, req.ResourceType, req.ResourceID, req.Resource)
		return Response{Resource: res}, err
	case "patch":
		res, err := c.Patch(ctx, rc, req.ResourceType, req.ResourceID, req.Patch)
		return Response{Resource: res}, err
	case "conditional-update":
		res, err := c.ConditionalUpdate(ctx, rc, req.ResourceType, req.SearchParams, req.Resource)
		return Response{Resource: res}, err
	case "delete":
		err := c.Delete(ctx, rc, req.ResourceType, req.ResourceID)
		return Response{}, err
	case "search":
		result, err := c.Search(ctx, rc, req.SearchRequest)
		return Response{SearchResult: result}, err
	case "history":
		versions, err := c.History(ctx, rc, req.History)
		return Response{History: versions}, err
	case "invoke":
		res, err := c.Invoke(ctx, rc, req.Operation, req.ResourceType, req.ResourceID, req.Resource)
		return Response{Resource: res}, err
	case "transaction":
		res, err := c.Transaction(ctx, rc, req.Bundle)
		return Response{Resource: res}, err
	case "batch":
		res, err := c.Batch(ctx, rc, req.Bundle)
		return Response{Resource: res}, err
	default:
		return Response{}, ferrors.Invalidf("invalid", "unknown dispatch kind %q", req.Kind)
	}
}
