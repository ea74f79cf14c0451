package router

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fhirway/fhirway/internal/domain/ids"
	"github.com/fhirway/fhirway/internal/platform/fhirclient"
	"github.com/fhirway/fhirway/internal/platform/fhirmodel"
	"github.com/fhirway/fhirway/internal/platform/pipeline"
	"github.com/fhirway/fhirway/internal/platform/repository"
	"github.com/fhirway/fhirway/internal/platform/search"
)

// fhirVersion is the only FHIR version this platform serves (spec.md's
// OVERVIEW: "exposes a FHIR R4 REST API").
const fhirVersion = "R4"

// registerFHIRRoutes wires the spec §6 HTTP surface table onto cs.
func registerFHIRRoutes(e *echo.Echo, cs chains) {
	g := e.Group(basePath)

	g.GET("/metadata", metadataHandler)

	g.GET("/:resource_type", searchHandler(cs))
	g.POST("/:resource_type", createHandler(cs))
	g.GET("/:resource_type/:id", readHandler(cs))
	g.PUT("/:resource_type/:id", updateHandler(cs))
	g.PATCH("/:resource_type/:id", patchHandler(cs))
	g.DELETE("/:resource_type/:id", deleteHandler(cs))

	g.GET("/:resource_type/:id/_history", instanceHistoryHandler(cs))
	g.GET("/:resource_type/:id/_history/:vid", versionReadHandler(cs))
	g.GET("/_history", systemHistoryHandler(cs))

	g.POST("/_search", formSearchHandler(cs))

	g.GET("/$:op", systemOperationHandler(cs))
	g.POST("/$:op", systemOperationHandler(cs))
	g.POST("/:resource_type/$:op", typeOperationHandler(cs))
	g.POST("/:resource_type/:id/$:op", instanceOperationHandler(cs))

	g.POST("", transactionHandler(cs))
}

// requestContext builds the per-request pipeline.Context and the
// context.Context carrying the raw bearer header and path tenant/
// project, from c's path params and Authorization header.
func requestContext(c echo.Context) (pipeline.Context, echo.Context) {
	tenant := ids.TenantID(c.Param("tenant"))
	project := ids.ProjectID(c.Param("project"))

	ctx := pipeline.WithAuthHeader(c.Request().Context(), c.Request().Header.Get("Authorization"))
	ctx = pipeline.WithPathTenantProject(ctx, tenant, project)
	c.SetRequest(c.Request().WithContext(ctx))

	return pipeline.Context{FHIRVersion: fhirVersion}, c
}

func bindResourceBody(c echo.Context) (fhirmodel.Resource, error) {
	var res fhirmodel.Resource
	if err := json.NewDecoder(c.Request().Body).Decode(&res); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "request body is not valid JSON")
	}
	return res, nil
}

func metadataHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, fhirmodel.Resource{
		"resourceType": "CapabilityStatement",
		"status":       "active",
		"kind":         "instance",
		"fhirVersion":  fhirVersion,
		"format":       []string{"application/fhir+json", "application/json"},
	})
}

func searchHandler(cs chains) echo.HandlerFunc {
	return func(c echo.Context) error {
		rc, c := requestContext(c)
		resourceType := c.Param("resource_type")

		resp, err := cs.chainFor(resourceType).Execute(c.Request().Context(), nil, rc, fhirclient.Request{
			Kind:          "search",
			ResourceType:  resourceType,
			SearchRequest: searchRequestFromQuery(c),
		})
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, searchBundle(resp.SearchResult))
	}
}

func createHandler(cs chains) echo.HandlerFunc {
	return func(c echo.Context) error {
		rc, c := requestContext(c)
		body, err := bindResourceBody(c)
		if err != nil {
			return writeError(c, err)
		}

		resp, err := cs.chainFor(c.Param("resource_type")).Execute(c.Request().Context(), nil, rc, fhirclient.Request{
			Kind:         "create",
			ResourceType: c.Param("resource_type"),
			Resource:     body,
		})
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusCreated, resp.Resource)
	}
}

func readHandler(cs chains) echo.HandlerFunc {
	return func(c echo.Context) error {
		rc, c := requestContext(c)
		resourceType := c.Param("resource_type")

		resp, err := cs.chainFor(resourceType).Execute(c.Request().Context(), nil, rc, fhirclient.Request{
			Kind:         "read",
			ResourceType: resourceType,
			ResourceID:   ids.ResourceID(c.Param("id")),
		})
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, resp.Resource)
	}
}

func updateHandler(cs chains) echo.HandlerFunc {
	return func(c echo.Context) error {
		rc, c := requestContext(c)
		body, err := bindResourceBody(c)
		if err != nil {
			return writeError(c, err)
		}
		resourceType := c.Param("resource_type")

		resp, err := cs.chainFor(resourceType).Execute(c.Request().Context(), nil, rc, fhirclient.Request{
			Kind:         "update",
			ResourceType: resourceType,
			ResourceID:   ids.ResourceID(c.Param("id")),
			Resource:     body,
		})
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, resp.Resource)
	}
}

func patchHandler(cs chains) echo.HandlerFunc {
	return func(c echo.Context) error {
		rc, c := requestContext(c)
		var patch map[string]any
		if err := json.NewDecoder(c.Request().Body).Decode(&patch); err != nil {
			return writeError(c, echo.NewHTTPError(http.StatusBadRequest, "request body is not valid JSON"))
		}
		resourceType := c.Param("resource_type")

		resp, err := cs.chainFor(resourceType).Execute(c.Request().Context(), nil, rc, fhirclient.Request{
			Kind:         "patch",
			ResourceType: resourceType,
			ResourceID:   ids.ResourceID(c.Param("id")),
			Patch:        patch,
		})
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, resp.Resource)
	}
}

func deleteHandler(cs chains) echo.HandlerFunc {
	return func(c echo.Context) error {
		rc, c := requestContext(c)
		resourceType := c.Param("resource_type")

		_, err := cs.chainFor(resourceType).Execute(c.Request().Context(), nil, rc, fhirclient.Request{
			Kind:         "delete",
			ResourceType: resourceType,
			ResourceID:   ids.ResourceID(c.Param("id")),
		})
		if err != nil {
			return writeError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func instanceHistoryHandler(cs chains) echo.HandlerFunc {
	return func(c echo.Context) error {
		rc, c := requestContext(c)
		resourceType := c.Param("resource_type")

		resp, err := cs.chainFor(resourceType).Execute(c.Request().Context(), nil, rc, fhirclient.Request{
			Kind: "history",
			History: repository.HistoryRequest{
				Scope:        repository.ScopeInstance,
				ResourceType: resourceType,
				ResourceID:   ids.ResourceID(c.Param("id")),
			},
		})
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, historyBundle(resp.History))
	}
}

func versionReadHandler(cs chains) echo.HandlerFunc {
	return func(c echo.Context) error {
		rc, c := requestContext(c)
		resourceType := c.Param("resource_type")

		resp, err := cs.chainFor(resourceType).Execute(c.Request().Context(), nil, rc, fhirclient.Request{
			Kind:      "vread",
			VersionID: ids.VersionID(c.Param("vid")),
		})
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, resp.Resource)
	}
}

func systemHistoryHandler(cs chains) echo.HandlerFunc {
	return func(c echo.Context) error {
		rc, c := requestContext(c)

		resp, err := cs.crud.Execute(c.Request().Context(), nil, rc, fhirclient.Request{
			Kind:    "history",
			History: repository.HistoryRequest{Scope: repository.ScopeSystem},
		})
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, historyBundle(resp.History))
	}
}

func formSearchHandler(cs chains) echo.HandlerFunc {
	return func(c echo.Context) error {
		rc, c := requestContext(c)
		if err := c.Request().ParseForm(); err != nil {
			return writeError(c, echo.NewHTTPError(http.StatusBadRequest, "malformed form body"))
		}
		resourceType := c.FormValue("_type")

		resp, err := cs.chainFor(resourceType).Execute(c.Request().Context(), nil, rc, fhirclient.Request{
			Kind:          "search",
			ResourceType:  resourceType,
			SearchRequest: searchRequestFromValues(c.Request().PostForm),
		})
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, searchBundle(resp.SearchResult))
	}
}

func systemOperationHandler(cs chains) echo.HandlerFunc {
	return func(c echo.Context) error {
		rc, c := requestContext(c)
		params, _ := bindResourceBody(c)

		resp, err := cs.operation.Execute(c.Request().Context(), nil, rc, fhirclient.Request{
			Kind:      "invoke",
			Operation: c.Param("op"),
			Resource:  params,
		})
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, resp.Resource)
	}
}

func typeOperationHandler(cs chains) echo.HandlerFunc {
	return func(c echo.Context) error {
		rc, c := requestContext(c)
		params, _ := bindResourceBody(c)

		resp, err := cs.operation.Execute(c.Request().Context(), nil, rc, fhirclient.Request{
			Kind:         "invoke",
			Operation:    c.Param("op"),
			ResourceType: c.Param("resource_type"),
			Resource:     params,
		})
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, resp.Resource)
	}
}

func instanceOperationHandler(cs chains) echo.HandlerFunc {
	return func(c echo.Context) error {
		rc, c := requestContext(c)
		params, _ := bindResourceBody(c)

		resp, err := cs.operation.Execute(c.Request().Context(), nil, rc, fhirclient.Request{
			Kind:         "invoke",
			Operation:    c.Param("op"),
			ResourceType: c.Param("resource_type"),
			ResourceID:   ids.ResourceID(c.Param("id")),
			Resource:     params,
		})
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, resp.Resource)
	}
}

// transactionHandler implements FHIR's standard root-level Bundle
// submission (spec §4.7); the bundle's own `type` field (`transaction`
// or `batch`) selects the dispatch kind.
func transactionHandler(cs chains) echo.HandlerFunc {
	return func(c echo.Context) error {
		rc, c := requestContext(c)
		bundle, err := bindResourceBody(c)
		if err != nil {
			return writeError(c, err)
		}

		kind := "batch"
		if t, _ := bundle["type"].(string); t == "transaction" {
			kind = "transaction"
		}

		resp, err := cs.crud.Execute(c.Request().Context(), nil, rc, fhirclient.Request{
			Kind:   kind,
			Bundle: bundle,
		})
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, resp.Resource)
	}
}

func searchRequestFromQuery(c echo.Context) search.Request {
	return searchRequestFromValues(c.QueryParams())
}

func searchRequestFromValues(values map[string][]string) search.Request {
	var req search.Request
	for name, vals := range values {
		if name == "_type" {
			continue
		}
		req.Params = append(req.Params, search.Param{Name: name, Type: search.TypeString, Values: vals})
	}
	return req
}

func searchBundle(result *search.Result) fhirmodel.Resource {
	entries := make([]fhirmodel.Resource, 0)
	if result != nil {
		for _, hit := range result.Entries {
			entries = append(entries, fhirmodel.Resource{
				"fullUrl": hit.ResourceType + "/" + hit.ID,
				"resource": fhirmodel.Resource{
					"resourceType": hit.ResourceType,
					"id":           hit.ID,
				},
			})
		}
	}
	bundle := fhirmodel.Resource{
		"resourceType": "Bundle",
		"type":         "searchset",
		"entry":        entries,
	}
	if result != nil && result.Total != nil {
		bundle["total"] = *result.Total
	}
	return bundle
}

func historyBundle(versions []repository.ResourceVersion) fhirmodel.Resource {
	entries := make([]fhirmodel.Resource, 0, len(versions))
	for _, v := range versions {
		entries = append(entries, fhirmodel.Resource{
			"fullUrl":  v.ResourceType + "/" + v.ResourceID.String(),
			"resource": v.Resource,
		})
	}
	return fhirmodel.Resource{
		"resourceType": "Bundle",
		"type":         "history",
		"entry":        entries,
	}
}
