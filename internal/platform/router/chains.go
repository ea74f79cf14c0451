package router

import (
	"github.com/fhirway/fhirway/internal/platform/accesscontrol"
	"github.com/fhirway/fhirway/internal/platform/pipeline"
)

// artifactResourceTypes are the resource types stored cross-tenant under
// the reserved system tenant/project (spec §4.1 step 6, spec.md's
// "Artifact" glossary entry: profiles and search parameters), plus the
// CodeSystem and ValueSet terminology resources.
var artifactResourceTypes = map[string]bool{
	"StructureDefinition": true,
	"SearchParameter":     true,
	"CodeSystem":          true,
	"ValueSet":            true,
}

// chains holds the pre-built *pipeline.Chain per route group (spec §9's
// static-composition decision, recorded in DESIGN.md): each chain is
// composed once at startup from the default layer ordering, varying
// only in the route-group-specific layers it adds.
type chains struct {
	crud      *pipeline.Chain
	artifact  *pipeline.Chain
	operation *pipeline.Chain
}

func buildChains(verifier pipeline.TokenVerifier, evaluator *accesscontrol.Evaluator) chains {
	acl := pipeline.AccessControlEvaluation(evaluator)
	return chains{
		crud: pipeline.NewChain(
			pipeline.RepositoryDispatch,
			pipeline.SessionJWTExtraction(verifier),
			pipeline.ProjectAccessCheck,
			acl,
		),
		artifact: pipeline.NewChain(
			pipeline.RepositoryDispatch,
			pipeline.SessionJWTExtraction(verifier),
			pipeline.ProjectAccessCheck,
			acl,
			pipeline.ArtifactTenantSubstitution,
		),
		operation: pipeline.NewChain(
			pipeline.RepositoryDispatch,
			pipeline.SessionJWTExtraction(verifier),
			pipeline.ProjectAccessCheck,
			acl,
			pipeline.CustomOperationDispatch,
		),
	}
}

// chainFor picks the crud or artifact chain for a {resource_type} route
// based on whether resourceType is one of the cross-tenant artifacts.
func (c chains) chainFor(resourceType string) *pipeline.Chain {
	if artifactResourceTypes[resourceType] {
		return c.artifact
	}
	return c.crud
}
