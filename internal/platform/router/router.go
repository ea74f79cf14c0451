// Package router maps the HTTP surface in spec §6 onto the generic
// middleware pipeline (internal/platform/pipeline), built on Echo (the
// teacher's framework). Each route group is backed by one pre-built
// *pipeline.Chain rather than a per-request layer lookup, matching the
// static-composition decision already recorded against
// internal/platform/pipeline in DESIGN.md.
package router

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/fhirway/fhirway/internal/config"
	"github.com/fhirway/fhirway/internal/platform/accesscontrol"
	"github.com/fhirway/fhirway/internal/platform/middleware"
	"github.com/fhirway/fhirway/internal/platform/oidc"
	"github.com/fhirway/fhirway/internal/platform/pipeline"
)

// basePath is the FHIR HTTP surface's path prefix (spec §6).
const basePath = "/w/:tenant/:project/api/v1"

// oidcBasePath is the OIDC subsystem's path prefix (spec §6's
// "Authentication endpoints").
const oidcBasePath = "/w/:tenant/:project/oidc"

// Dependencies are the collaborators New assembles routes from.
type Dependencies struct {
	State     *pipeline.State
	Verifier  pipeline.TokenVerifier
	Evaluator *accesscontrol.Evaluator
	OIDC      *oidc.Service
	Config    *config.Config
	Logger    zerolog.Logger
}

// New builds the Echo server for deps: global middleware, the FHIR
// route groups, and the OIDC route group.
func New(deps Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = httpErrorHandler(deps.Logger)

	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{
		RequestIDHandler: func(c echo.Context, rid string) { c.Set("request_id", rid) },
	}))
	e.Use(middleware.Recovery(deps.Logger))
	e.Use(middleware.Logger(deps.Logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("1M"))

	cs := buildChains(deps.Verifier, deps.Evaluator)
	registerFHIRRoutes(e, cs)
	registerOIDCRoutes(e, deps.OIDC)

	return e
}

// httpErrorHandler renders every unhandled error as a FHIR
// OperationOutcome (spec §6/§7), the one place the router itself needs
// to know about ferrors.
func httpErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status, outcome := operationOutcomeFor(err)
		if status >= http.StatusInternalServerError {
			logger.Error().Err(err).Str("path", c.Request().URL.Path).Msg("unhandled error")
		}
		if writeErr := c.JSON(status, outcome); writeErr != nil {
			logger.Error().Err(writeErr).Msg("failed to write error response")
		}
	}
}
