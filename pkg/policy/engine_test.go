package policy

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/flowport/flowport/pkg/migrate"
	"github.com/flowport/flowport/pkg/target"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(zerolog.Nop())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	return e
}

func gateInput(stub migrate.EntityStub, w *target.Workflow, confidence float64) *migrate.GateInput {
	return &migrate.GateInput{
		Vendor: "asana",
		Stub:   stub,
		Result: &migrate.TransformResult{Workflow: w, Confidence: confidence},
	}
}

func cleanWorkflow() *target.Workflow {
	return &target.Workflow{
		ExternalRef: "proj-1",
		Name:        "Onboarding",
		Steps: []target.Step{
			{ID: "s1", Name: "Prepare", Kind: target.StepKindTask},
		},
	}
}

func TestNewEngine_LoadsBuiltins(t *testing.T) {
	e := testEngine(t)
	policies := e.ListPolicies()
	if len(policies) != 4 {
		t.Fatalf("Expected 4 built-in policies, got %d", len(policies))
	}
	want := []string{"deny-archived", "max-steps", "min-confidence", "workflow-naming"}
	for i, name := range want {
		if policies[i].Name != name {
			t.Errorf("Expected policy %s at %d, got %s", name, i, policies[i].Name)
		}
	}
}

func TestEngine_Check_CleanUnitAllowed(t *testing.T) {
	e := testEngine(t)
	stub := migrate.EntityStub{Ref: "proj-1", Kind: "project", Name: "Onboarding"}

	decisions, err := e.Check(context.Background(), gateInput(stub, cleanWorkflow(), 0.95))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(decisions) != 4 {
		t.Fatalf("Expected 4 decisions, got %d", len(decisions))
	}
	for _, d := range decisions {
		if !d.Allowed {
			t.Errorf("Expected %s to allow the unit: %s", d.Policy, d.Reason)
		}
	}
}

func TestEngine_Check_DeniesArchived(t *testing.T) {
	e := testEngine(t)
	stub := migrate.EntityStub{
		Ref: "proj-1", Kind: "project", Name: "Onboarding",
		Labels: map[string]string{"archived": "true"},
	}

	decisions, err := e.Check(context.Background(), gateInput(stub, cleanWorkflow(), 0.95))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	denied := false
	for _, d := range decisions {
		if d.Policy == "deny-archived" {
			if d.Allowed {
				t.Error("Expected deny-archived to deny the unit")
			}
			if !strings.Contains(d.Reason, "archived") {
				t.Errorf("Expected archival reason, got %q", d.Reason)
			}
			denied = true
		}
	}
	if !denied {
		t.Error("Expected a deny-archived decision")
	}
}

func TestEngine_Check_DeniesEmptyStepName(t *testing.T) {
	e := testEngine(t)
	w := cleanWorkflow()
	w.Steps = append(w.Steps, target.Step{ID: "s2", Name: "  ", Kind: target.StepKindTask})

	decisions, err := e.Check(context.Background(),
		gateInput(migrate.EntityStub{Ref: "proj-1"}, w, 0.95))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	for _, d := range decisions {
		if d.Policy == "workflow-naming" && d.Allowed {
			t.Errorf("Expected workflow-naming to deny a blank step name: %+v", d)
		}
	}
}

func TestEngine_Check_LowConfidenceWarnsOnly(t *testing.T) {
	e := testEngine(t)

	decisions, err := e.Check(context.Background(),
		gateInput(migrate.EntityStub{Ref: "proj-1"}, cleanWorkflow(), 0.1))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	for _, d := range decisions {
		if d.Policy != "min-confidence" {
			continue
		}
		if !d.Allowed {
			t.Error("Expected warning-severity policy to allow the unit")
		}
		if d.Reason == "" {
			t.Error("Expected the warning message carried as the reason")
		}
	}
}

func TestEngine_Evaluate_CollectsWarnings(t *testing.T) {
	e := testEngine(t)

	result, err := e.Evaluate(context.Background(),
		gateInput(migrate.EntityStub{Ref: "proj-1"}, cleanWorkflow(), 0.1))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !result.Allowed {
		t.Errorf("Expected unit allowed, got violations: %v", result.Violations)
	}
	if len(result.Warnings) != 1 || !strings.HasPrefix(result.Warnings[0], "min-confidence:") {
		t.Errorf("Expected one min-confidence warning, got %v", result.Warnings)
	}
}

func TestEngine_Evaluate_CollectsViolations(t *testing.T) {
	e := testEngine(t)
	stub := migrate.EntityStub{Ref: "proj-1", Labels: map[string]string{"archived": "true"}}

	result, err := e.Evaluate(context.Background(), gateInput(stub, cleanWorkflow(), 0.95))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if result.Allowed {
		t.Error("Expected unit denied")
	}
	if len(result.Violations) != 1 || result.Violations[0].Policy != "deny-archived" {
		t.Errorf("Expected one deny-archived violation, got %v", result.Violations)
	}
}

func TestEngine_SetEnabled(t *testing.T) {
	e := testEngine(t)
	stub := migrate.EntityStub{Ref: "proj-1", Labels: map[string]string{"archived": "true"}}

	if err := e.SetEnabled("deny-archived", false); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	decisions, err := e.Check(context.Background(), gateInput(stub, cleanWorkflow(), 0.95))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(decisions) != 3 {
		t.Errorf("Expected disabled policy skipped, got %d decisions", len(decisions))
	}
	for _, d := range decisions {
		if d.Policy == "deny-archived" {
			t.Error("Expected no decision from the disabled policy")
		}
	}

	if err := e.SetEnabled("absent", false); err == nil {
		t.Error("Expected error for unknown policy name")
	}
}

func TestEngine_LoadPolicies_FileOverridesBuiltin(t *testing.T) {
	e := testEngine(t)

	dir := t.TempDir()
	src := `# Hard floor on conversion confidence
package flowport.policies.confidence

import rego.v1

deny contains violation if {
	input.result.confidence < 0.5
	violation := {
		"message": sprintf("confidence %v is below 0.5", [input.result.confidence]),
		"severity": "error",
	}
}
`
	if err := os.WriteFile(filepath.Join(dir, "min-confidence.rego"), []byte(src), 0o644); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if err := e.LoadPolicies(context.Background(), []string{dir}); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(e.ListPolicies()) != 4 {
		t.Errorf("Expected replacement, not addition, got %d policies", len(e.ListPolicies()))
	}

	decisions, err := e.Check(context.Background(),
		gateInput(migrate.EntityStub{Ref: "proj-1"}, cleanWorkflow(), 0.4))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	for _, d := range decisions {
		if d.Policy == "min-confidence" && d.Allowed {
			t.Errorf("Expected the file policy to deny at 0.4: %+v", d)
		}
	}
}
