package transform

import (
	"context"
	"testing"

	"github.com/flowport/flowport/pkg/target"
	"github.com/flowport/flowport/pkg/telemetry"
)

func testLogger(t *testing.T) *telemetry.Logger {
	t.Helper()
	log, err := telemetry.NewLogger(telemetry.LoggingConfig{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("Failed to build logger: %v", err)
	}
	return log
}

func TestOverrides_Find(t *testing.T) {
	overrides := Overrides{
		{Match: "task-1", Rename: "exact"},
		{Match: "legacy-*", Skip: true},
		{Match: "*", Kind: "approval"},
	}

	tests := []struct {
		ref  string
		want string
	}{
		{"task-1", "task-1"},
		{"legacy-42", "legacy-*"},
		{"anything", "*"},
	}
	for _, tt := range tests {
		o := overrides.Find(tt.ref)
		if o == nil || o.Match != tt.want {
			t.Errorf("Find(%q) matched %+v, want %q", tt.ref, o, tt.want)
		}
	}

	if o := Overrides(nil).Find("task-1"); o != nil {
		t.Errorf("Expected nil from empty overrides, got %+v", o)
	}
}

func TestOverrides_FirstMatchWins(t *testing.T) {
	overrides := Overrides{
		{Match: "t-*", Rename: "first"},
		{Match: "t-1", Rename: "second"},
	}
	if o := overrides.Find("t-1"); o == nil || o.Rename != "first" {
		t.Errorf("Expected first registered override to win, got %+v", o)
	}
}

func TestApplyOverride(t *testing.T) {
	step := &target.Step{ID: "s1", Name: "Old", Kind: target.StepKindTask, Roles: []string{"a"}}
	o := &Override{Match: "s1", Rename: "New", Kind: "approval", Roles: []string{"b", "c"}}

	skip, err := applyOverride(context.Background(), o, step, nil)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if skip {
		t.Error("Expected step kept")
	}
	if step.Name != "New" || step.Kind != target.StepKindApproval {
		t.Errorf("Override not applied: %+v", step)
	}
	if len(step.Roles) != 2 || step.Roles[0] != "b" {
		t.Errorf("Expected roles replaced, got %v", step.Roles)
	}
}

func TestApplyOverride_Skip(t *testing.T) {
	skip, err := applyOverride(context.Background(), &Override{Match: "s1", Skip: true}, &target.Step{}, nil)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !skip {
		t.Error("Expected skip")
	}
}

func TestApplyOverride_HookWithoutHookFile(t *testing.T) {
	o := &Override{Match: "s1", Hook: "rewrite"}
	if _, err := applyOverride(context.Background(), o, &target.Step{}, nil); err == nil {
		t.Error("Expected error when a hook is named but no hook file is loaded")
	}
}

func TestCollectRoles(t *testing.T) {
	w := &target.Workflow{
		Name:  "roles",
		Roles: []target.Role{{Name: "Existing"}},
		Steps: []target.Step{
			{ID: "a", Roles: []string{"Zeta", "Alpha"}},
			{ID: "b", Roles: []string{"Alpha", "Existing"}},
		},
	}
	collectRoles(w)

	if len(w.Roles) != 3 {
		t.Fatalf("Expected 3 roles, got %+v", w.Roles)
	}
	// Sorted by name.
	if w.Roles[0].Name != "Alpha" || w.Roles[1].Name != "Existing" || w.Roles[2].Name != "Zeta" {
		t.Errorf("Expected sorted de-duplicated roles, got %+v", w.Roles)
	}
}
