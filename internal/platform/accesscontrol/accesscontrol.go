// Package accesscontrol evaluates the AccessPolicy resources
// referenced by a request's JWT, per spec §4.6: FullAccess allows
// unconditionally, Null denies unconditionally, RuleEngine iterates
// rules until one matches and applies its effect (default deny).
// Multiple policies compose by intersection — every policy must allow.
package accesscontrol

import (
	"context"

	"github.com/fhirway/fhirway/internal/domain/ids"
	"github.com/fhirway/fhirway/internal/platform/ferrors"
	"github.com/fhirway/fhirway/internal/platform/fhirmodel"
	"github.com/fhirway/fhirway/internal/platform/fhirpathmini"
	"github.com/fhirway/fhirway/internal/platform/repository"
)

// Engine enumerates how an AccessPolicy resource evaluates requests.
type Engine string

const (
	FullAccess Engine = "full-access"
	RuleEngine Engine = "rule-engine"
	Null       Engine = "null"
)

// Effect is a rule's outcome when it matches.
type Effect string

const (
	Allow Effect = "allow"
	Deny  Effect = "deny"
)

// Rule matches a request by kind, resource type, and an optional
// FHIRPath-lite predicate evaluated against the resource in scope.
type Rule struct {
	RequestKinds  []string // "read", "create", "update", "delete", "search", "history"
	ResourceTypes []string // empty means any
	Predicate     string   // FHIRPath-lite expression; empty means always match
	Effect        Effect
}

// Policy is the evaluated form of an AccessPolicy resource.
type Policy struct {
	VersionID ids.VersionID
	Engine    Engine
	Rules     []Rule
}

// Request is the subset of request context a policy needs to decide.
type Request struct {
	Kind         string
	ResourceType string
	Resource     fhirmodel.Resource // nil for requests without a resource body (e.g. plain read)
	Author       repository.Author
}

// Evaluator evaluates every policy referenced by a request's JWT.
type Evaluator struct {
	repo repository.Repository
	fhir fhirpathmini.Evaluator
}

// New builds an Evaluator resolving policy resources via repo.
func New(repo repository.Repository) *Evaluator {
	return &Evaluator{repo: repo, fhir: fhirpathmini.New()}
}

// Evaluate loads each policy in policyVersionIDs from the reserved
// system tenant/project and checks req against it; any denial
// short-circuits with a Forbidden error (spec §4.6's "deny on first
// non-allowing policy").
func (e *Evaluator) Evaluate(ctx context.Context, tenant ids.TenantID, policyVersionIDs []ids.VersionID, req Request) error {
	if len(policyVersionIDs) == 0 {
		return ferrors.Forbiddenf("no access policy referenced by token")
	}

	resources, err := e.repo.ReadByVersionIDs(ctx, ids.SystemTenant, ids.SystemProject, policyVersionIDs, repository.Cache)
	if err != nil {
		return err
	}
	if len(resources) != len(policyVersionIDs) {
		return ferrors.Forbiddenf("one or more access policy versions could not be resolved")
	}

	for _, pr := range resources {
		policy, err := parsePolicy(pr)
		if err != nil {
			return err
		}
		if err := e.evaluateOne(policy, req); err != nil {
			return err
		}
	}
	return nil
}

func (e *Evaluator) evaluateOne(p Policy, req Request) error {
	switch p.Engine {
	case FullAccess:
		return nil
	case Null:
		return ferrors.Forbiddenf("access policy %s denies all access", p.VersionID)
	case RuleEngine:
		for _, rule := range p.Rules {
			if !matchesKind(rule.RequestKinds, req.Kind) {
				continue
			}
			if !matchesResourceType(rule.ResourceTypes, req.ResourceType) {
				continue
			}
			if rule.Predicate != "" {
				if req.Resource == nil {
					continue
				}
				if !fhirpathmini.Truthy(e.fhir.Evaluate(rule.Predicate, req.Resource)) {
					continue
				}
			}
			if rule.Effect == Allow {
				return nil
			}
			return ferrors.Forbiddenf("access policy %s rule denies %s on %s", p.VersionID, req.Kind, req.ResourceType)
		}
		return ferrors.Forbiddenf("access policy %s: no rule matched (default deny)", p.VersionID)
	default:
		return ferrors.Forbiddenf("access policy %s has an unknown engine %q", p.VersionID, p.Engine)
	}
}

func matchesKind(kinds []string, kind string) bool {
	if len(kinds) == 0 {
		return true
	}
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}

func matchesResourceType(types []string, resourceType string) bool {
	if len(types) == 0 {
		return true
	}
	for _, t := range types {
		if t == resourceType {
			return true
		}
	}
	return false
}

func parsePolicy(r fhirmodel.Resource) (Policy, error) {
	engine, _ := r.Get("engine")
	engineStr, _ := engine.(string)

	var rules []Rule
	rawRules, _ := r.Get("rule")
	if arr, ok := rawRules.([]any); ok {
		for _, raw := range arr {
			m, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			rules = append(rules, Rule{
				RequestKinds:  toStringSlice(m["requestKinds"]),
				ResourceTypes: toStringSlice(m["resourceTypes"]),
				Predicate:     toString(m["predicate"]),
				Effect:        Effect(toString(m["effect"])),
			})
		}
	}

	return Policy{
		VersionID: ids.VersionID(r.VersionID()),
		Engine:    Engine(engineStr),
		Rules:     rules,
	}, nil
}

func toString(v any) string {
	s, _ := v.(string)
	return s
}

func toStringSlice(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
