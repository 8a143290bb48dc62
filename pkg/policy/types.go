// Package policy gates migrations with Rego rules. Policies inspect
// the transformed workflow before it is pushed and can deny units that
// violate organizational constraints.
package policy

import "time"

// Severity indicates how a policy violation is treated.
type Severity string

const (
	// SeverityWarning reports the violation but allows the unit through.
	SeverityWarning Severity = "warning"

	// SeverityError denies the unit.
	SeverityError Severity = "error"
)

// Policy is one Rego policy.
type Policy struct {
	// Name identifies the policy in decisions and logs.
	Name string `json:"name"`

	// Description explains what the policy checks.
	Description string `json:"description"`

	// Severity controls whether violations deny the unit.
	Severity Severity `json:"severity"`

	// Enabled toggles evaluation.
	Enabled bool `json:"enabled"`

	// Rego is the policy source. Violations are collected from the
	// deny rule of the policy's package.
	Rego string `json:"rego"`

	// Source records where the policy came from: builtin or a file path.
	Source string `json:"source,omitempty"`
}

// Violation is one deny result from a policy.
type Violation struct {
	Policy   string `json:"policy"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// Result is the outcome of evaluating all policies against one unit.
type Result struct {
	Allowed     bool        `json:"allowed"`
	Violations  []Violation `json:"violations,omitempty"`
	Warnings    []string    `json:"warnings,omitempty"`
	EvaluatedAt time.Time   `json:"evaluated_at"`
}
