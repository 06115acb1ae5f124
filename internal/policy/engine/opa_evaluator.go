package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"

	"data-portal/backend/internal/policy/repository"
)

const allowQuery = "data.portal.access.allow"

// Built-in access policy. Stored policies may add allow or deny rules to the
// same package; any deny wins.
const defaultRegoPolicy = `package portal.access

default allow := false

default deny := false

allow if {
	input.role == "admin"
	not deny
}

allow if {
	input.role == "guest"
	not startswith(input.path, "/api/admin/")
	not deny
}
`

// OPAEvaluator evaluates route access using OPA Rego.
type OPAEvaluator struct {
	policyRepo repository.Repository
	log        *slog.Logger

	mu    sync.RWMutex
	query *rego.PreparedEvalQuery
}

// NewOPAEvaluator returns an evaluator prepared with the built-in policy.
// policyRepo may be nil; call Reload to pick up stored policies.
func NewOPAEvaluator(policyRepo repository.Repository, log *slog.Logger) (*OPAEvaluator, error) {
	if log == nil {
		log = slog.Default()
	}
	e := &OPAEvaluator{policyRepo: policyRepo, log: log}
	q, err := prepare(context.Background(), []string{defaultRegoPolicy})
	if err != nil {
		return nil, err
	}
	e.query = q
	return e, nil
}

// Reload compiles the built-in policy together with the enabled stored
// policies. When loading or compiling fails the current query is kept and the
// error returned.
func (e *OPAEvaluator) Reload(ctx context.Context) error {
	if e.policyRepo == nil {
		return nil
	}
	stored, err := e.policyRepo.ListEnabled(ctx)
	if err != nil {
		return fmt.Errorf("load policies: %w", err)
	}
	modules := []string{defaultRegoPolicy}
	for _, p := range stored {
		if p.Enabled && p.Rules != "" {
			modules = append(modules, p.Rules)
		}
	}
	q, err := prepare(ctx, modules)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.query = q
	e.mu.Unlock()
	e.log.Info("policy: loaded access policies", "stored", len(modules)-1)
	return nil
}

func prepare(ctx context.Context, policies []string) (*rego.PreparedEvalQuery, error) {
	modules := make(map[string]string, len(policies))
	for i, p := range policies {
		modules[fmt.Sprintf("policy_%d.rego", i)] = p
	}
	compiler, err := ast.CompileModules(modules)
	if err != nil {
		return nil, fmt.Errorf("compile policies: %w", err)
	}
	q, err := rego.New(
		rego.Query(allowQuery),
		rego.Compiler(compiler),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare policy query: %w", err)
	}
	return &q, nil
}

// Allow evaluates the access policy for in. Evaluation errors deny.
func (e *OPAEvaluator) Allow(ctx context.Context, in Input) (bool, error) {
	e.mu.RLock()
	q := e.query
	e.mu.RUnlock()

	rs, err := q.Eval(ctx, rego.EvalInput(map[string]interface{}{
		"user_id": in.UserID,
		"role":    in.Role,
		"method":  in.Method,
		"path":    in.Path,
	}))
	if err != nil {
		return false, fmt.Errorf("eval access policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, nil
	}
	allowed, _ := rs[0].Expressions[0].Value.(bool)
	return allowed, nil
}

// HealthCheck verifies that the in-process OPA engine evaluates the current
// policy and still grants an admin access. Does not call the policy repo.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	ok, err := e.Allow(ctx, Input{Role: "admin", Method: "GET", Path: "/api/session"})
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("policy denies admin access")
	}
	return nil
}
