package policy

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"
	"github.com/rs/zerolog"

	"github.com/flowport/flowport/pkg/migrate"
)

// Engine evaluates policies against migration units. It implements
// migrate.Gate.
type Engine struct {
	mu       sync.RWMutex
	policies map[string]*compiledPolicy
	logger   zerolog.Logger
}

// compiledPolicy caches the prepared deny query of one policy.
type compiledPolicy struct {
	policy   *Policy
	query    rego.PreparedEvalQuery
	compiled time.Time
}

// NewEngine creates a policy engine preloaded with the built-in
// policies.
func NewEngine(logger zerolog.Logger) (*Engine, error) {
	e := &Engine{
		policies: make(map[string]*compiledPolicy),
		logger:   logger.With().Str("component", "policy-engine").Logger(),
	}

	builtin := BuiltinPolicies()
	for i := range builtin {
		if err := e.compileAndStore(context.Background(), &builtin[i]); err != nil {
			return nil, fmt.Errorf("failed to compile built-in policy %s: %w", builtin[i].Name, err)
		}
	}
	e.logger.Info().Int("count", len(builtin)).Msg("Built-in policies loaded")
	return e, nil
}

// Check evaluates every enabled policy against one unit. Each policy
// yields one decision; a policy is denied only when it produces an
// error-severity violation.
func (e *Engine) Check(ctx context.Context, input *migrate.GateInput) ([]migrate.GateDecision, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, 0, len(e.policies))
	for name := range e.policies {
		names = append(names, name)
	}
	sort.Strings(names)

	var decisions []migrate.GateDecision
	for _, name := range names {
		cp := e.policies[name]
		if !cp.policy.Enabled {
			continue
		}

		violations, err := e.evaluate(ctx, cp, input)
		if err != nil {
			return nil, migrate.NewPermanentError(
				fmt.Sprintf("policy %s evaluation failed", name), err).
				WithCode(migrate.ErrCodePolicyDenied)
		}

		decision := migrate.GateDecision{Policy: name, Allowed: true}
		for _, v := range violations {
			if v.Severity == string(SeverityError) {
				decision.Allowed = false
				decision.Reason = v.Message
				break
			}
			if decision.Reason == "" {
				decision.Reason = v.Message
			}
			e.logger.Warn().
				Str("policy", name).
				Str("entity", input.Stub.Ref).
				Msg(v.Message)
		}
		decisions = append(decisions, decision)
	}
	return decisions, nil
}

// Evaluate runs all policies and aggregates violations, for the
// validate command and tests.
func (e *Engine) Evaluate(ctx context.Context, input *migrate.GateInput) (*Result, error) {
	decisions, err := e.Check(ctx, input)
	if err != nil {
		return nil, err
	}

	result := &Result{Allowed: true, EvaluatedAt: time.Now()}
	for _, d := range decisions {
		if d.Allowed {
			if d.Reason != "" {
				result.Warnings = append(result.Warnings, d.Policy+": "+d.Reason)
			}
			continue
		}
		result.Allowed = false
		result.Violations = append(result.Violations, Violation{
			Policy:   d.Policy,
			Severity: string(SeverityError),
			Message:  d.Reason,
		})
	}
	return result, nil
}

// LoadPolicies adds policies from files or directories. File policies
// with the same name replace built-ins.
func (e *Engine) LoadPolicies(ctx context.Context, paths []string) error {
	loader := NewLoader(e.logger)
	policies, err := loader.LoadFromPaths(ctx, paths)
	if err != nil {
		return fmt.Errorf("failed to load policies: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range policies {
		if err := e.compileAndStore(ctx, &policies[i]); err != nil {
			return fmt.Errorf("failed to compile policy %s: %w", policies[i].Name, err)
		}
	}
	e.logger.Info().Int("count", len(policies)).Msg("Policies loaded")
	return nil
}

// ListPolicies returns all loaded policies sorted by name.
func (e *Engine) ListPolicies() []Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()

	policies := make([]Policy, 0, len(e.policies))
	for _, cp := range e.policies {
		policies = append(policies, *cp.policy)
	}
	sort.Slice(policies, func(i, j int) bool { return policies[i].Name < policies[j].Name })
	return policies
}

// SetEnabled toggles a policy by name.
func (e *Engine) SetEnabled(name string, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cp, exists := e.policies[name]
	if !exists {
		return fmt.Errorf("policy not found: %s", name)
	}
	cp.policy.Enabled = enabled
	return nil
}

// evaluate runs one policy's deny query.
func (e *Engine) evaluate(ctx context.Context, cp *compiledPolicy, input *migrate.GateInput) ([]Violation, error) {
	results, err := cp.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("policy evaluation error: %w", err)
	}

	var violations []Violation
	for _, result := range results {
		for _, expr := range result.Expressions {
			denySet, ok := expr.Value.([]interface{})
			if !ok {
				continue
			}
			for _, d := range denySet {
				violations = append(violations, e.toViolation(cp.policy, d))
			}
		}
	}
	return violations, nil
}

// toViolation normalizes one deny result.
func (e *Engine) toViolation(policy *Policy, result interface{}) Violation {
	v := Violation{
		Policy:   policy.Name,
		Severity: string(policy.Severity),
	}
	switch r := result.(type) {
	case string:
		v.Message = r
	case map[string]interface{}:
		if msg, ok := r["message"].(string); ok {
			v.Message = msg
		}
		if sev, ok := r["severity"].(string); ok {
			v.Severity = sev
		}
	default:
		v.Message = fmt.Sprintf("%v", result)
	}
	return v
}

// compileAndStore prepares the policy's deny query for reuse.
func (e *Engine) compileAndStore(ctx context.Context, policy *Policy) error {
	if _, err := ast.ParseModule(policy.Name, policy.Rego); err != nil {
		return fmt.Errorf("failed to parse policy: %w", err)
	}

	query := fmt.Sprintf("data.%s.deny", packageName(policy.Rego))
	prepared, err := rego.New(
		rego.Module(policy.Name, policy.Rego),
		rego.Query(query),
	).PrepareForEval(ctx)
	if err != nil {
		return fmt.Errorf("failed to prepare query: %w", err)
	}

	e.policies[policy.Name] = &compiledPolicy{
		policy:   policy,
		query:    prepared,
		compiled: time.Now(),
	}
	e.logger.Debug().Str("policy", policy.Name).Msg("Policy compiled")
	return nil
}

// packageName extracts the package declaration from Rego source.
func packageName(src string) string {
	for _, line := range strings.Split(src, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "package ") {
			parts := strings.Fields(trimmed)
			if len(parts) >= 2 {
				return parts[1]
			}
		}
	}
	return "flowport.policies"
}
