package policy

// BuiltinPolicies returns the policies shipped with the tool. They
// encode the safety checks every migration should pass regardless of
// site-specific rules.
func BuiltinPolicies() []Policy {
	return []Policy{
		denyArchivedPolicy(),
		workflowNamingPolicy(),
		maxStepsPolicy(),
		minConfidencePolicy(),
	}
}

// denyArchivedPolicy blocks entities the vendor marks as archived.
func denyArchivedPolicy() Policy {
	return Policy{
		Name:        "deny-archived",
		Description: "Blocks migration of entities archived at the source",
		Severity:    SeverityError,
		Enabled:     true,
		Source:      "builtin",
		Rego: `package flowport.policies.archived

import rego.v1

deny contains violation if {
	input.stub.labels.archived == "true"
	violation := {
		"message": sprintf("entity %s is archived at the source", [input.stub.ref]),
		"severity": "error",
	}
}
`,
	}
}

// workflowNamingPolicy requires a usable workflow name.
func workflowNamingPolicy() Policy {
	return Policy{
		Name:        "workflow-naming",
		Description: "Requires every workflow and step to carry a non-empty name",
		Severity:    SeverityError,
		Enabled:     true,
		Source:      "builtin",
		Rego: `package flowport.policies.naming

import rego.v1

deny contains violation if {
	trim_space(input.result.workflow.name) == ""
	violation := {
		"message": sprintf("workflow for %s has an empty name", [input.stub.ref]),
		"severity": "error",
	}
}

deny contains violation if {
	some step in input.result.workflow.steps
	trim_space(step.name) == ""
	violation := {
		"message": sprintf("step %s has an empty name", [step.id]),
		"severity": "error",
	}
}
`,
	}
}

// maxStepsPolicy caps workflow size.
func maxStepsPolicy() Policy {
	return Policy{
		Name:        "max-steps",
		Description: "Caps workflows at 500 steps",
		Severity:    SeverityError,
		Enabled:     true,
		Source:      "builtin",
		Rego: `package flowport.policies.size

import rego.v1

max_steps := 500

deny contains violation if {
	count(input.result.workflow.steps) > max_steps
	violation := {
		"message": sprintf("workflow for %s has %d steps, limit is %d",
			[input.stub.ref, count(input.result.workflow.steps), max_steps]),
		"severity": "error",
	}
}
`,
	}
}

// minConfidencePolicy warns on very low conversion confidence. Sites
// that want a hard floor override this with a file policy.
func minConfidencePolicy() Policy {
	return Policy{
		Name:        "min-confidence",
		Description: "Warns when conversion confidence drops below 0.3",
		Severity:    SeverityWarning,
		Enabled:     true,
		Source:      "builtin",
		Rego: `package flowport.policies.confidence

import rego.v1

deny contains violation if {
	input.result.confidence < 0.3
	violation := {
		"message": sprintf("conversion confidence %v is below 0.3", [input.result.confidence]),
		"severity": "warning",
	}
}
`,
	}
}
