package transform

import (
	"context"
	"strings"
	"testing"

	"github.com/flowport/flowport/pkg/migrate"
	"github.com/flowport/flowport/pkg/target"
	"github.com/flowport/flowport/pkg/vendors/asana"
)

func asanaEntity(p *asana.Project) *migrate.Entity {
	return &migrate.Entity{
		EntityStub: migrate.EntityStub{Ref: p.GID, Kind: "project", Name: p.Name},
		Payload:    p,
	}
}

func sampleProject() *asana.Project {
	return &asana.Project{
		GID:   "proj-1",
		Name:  "Onboarding",
		Notes: "New hire onboarding",
		Owner: &asana.User{GID: "u1", Name: "Dana"},
		Sections: []asana.Section{
			{GID: "sec-1", Name: "Preparation"},
			{GID: "sec-2", Name: "First week"},
		},
		Tasks: []asana.Task{
			{
				GID: "t1", Name: "Create accounts",
				Assignee:    &asana.User{GID: "u2", Name: "IT"},
				Memberships: []asana.Membership{{Section: &asana.Section{GID: "sec-1"}}},
			},
			{
				GID: "t2", Name: "Assign desk",
				Memberships:  []asana.Membership{{Section: &asana.Section{GID: "sec-1"}}},
				Dependencies: []asana.TaskRef{{GID: "t1"}},
			},
			{
				GID: "t3", Name: "Team intro",
				Memberships: []asana.Membership{{Section: &asana.Section{GID: "sec-2"}}},
			},
		},
	}
}

func TestAsanaTransformer_Transform_Basic(t *testing.T) {
	tr := NewAsanaTransformer(nil, nil, testLogger(t))
	res, err := tr.Transform(context.Background(), asanaEntity(sampleProject()))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	w := res.Workflow
	if w.Source != "asana" || w.ExternalRef != "proj-1" {
		t.Errorf("Unexpected workflow identity: %+v", w)
	}
	if len(w.Steps) != 3 {
		t.Fatalf("Expected 3 steps, got %d", len(w.Steps))
	}

	s1 := w.StepByID("t1")
	if s1.Group != "Preparation" {
		t.Errorf("Expected section name as group, got %q", s1.Group)
	}
	if len(s1.Roles) != 1 || s1.Roles[0] != "IT" {
		t.Errorf("Expected assignee as role, got %v", s1.Roles)
	}

	s2 := w.StepByID("t2")
	if len(s2.DependsOn) != 1 || s2.DependsOn[0] != "t1" {
		t.Errorf("Expected task dependency carried over, got %v", s2.DependsOn)
	}

	// Owner and assignees appear in the workflow role list.
	if !w.HasRole("Dana") || !w.HasRole("IT") {
		t.Errorf("Expected owner and assignee roles, got %+v", w.Roles)
	}

	if res.Confidence != 1.0 {
		t.Errorf("Expected full confidence for a plain project, got %f", res.Confidence)
	}
}

func TestAsanaTransformer_Transform_WrongPayload(t *testing.T) {
	tr := NewAsanaTransformer(nil, nil, testLogger(t))
	_, err := tr.Transform(context.Background(), &migrate.Entity{Payload: "not a project"})
	if err == nil {
		t.Fatal("Expected payload type error")
	}
	if !migrate.IsPermanent(err) {
		t.Errorf("Expected permanent error, got: %v", err)
	}
}

func TestAsanaTransformer_Transform_CompletedTasks(t *testing.T) {
	p := sampleProject()
	p.Tasks[2].Completed = true

	tr := NewAsanaTransformer(nil, nil, testLogger(t))
	res, err := tr.Transform(context.Background(), asanaEntity(p))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(res.Workflow.Steps) != 2 {
		t.Errorf("Expected completed task dropped, got %d steps", len(res.Workflow.Steps))
	}

	tr = NewAsanaTransformer(nil, nil, testLogger(t), WithCompletedTasks())
	res, err = tr.Transform(context.Background(), asanaEntity(p))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(res.Workflow.Steps) != 3 {
		t.Errorf("Expected completed task kept, got %d steps", len(res.Workflow.Steps))
	}
}

func TestAsanaTransformer_Transform_DanglingDependencyDropped(t *testing.T) {
	p := sampleProject()
	p.Tasks[0].Completed = true // t2 depends on t1

	tr := NewAsanaTransformer(nil, nil, testLogger(t))
	res, err := tr.Transform(context.Background(), asanaEntity(p))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	s2 := res.Workflow.StepByID("t2")
	if len(s2.DependsOn) != 0 {
		t.Errorf("Expected dependency on excluded task dropped, got %v", s2.DependsOn)
	}
	found := false
	for _, n := range res.Notes {
		if strings.Contains(n, "dropped dependency") {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected a note about the dropped dependency, got %v", res.Notes)
	}
}

func TestAsanaTransformer_Transform_DueDates(t *testing.T) {
	p := sampleProject()
	p.Tasks[0].DueOn = "2026-09-15"

	tr := NewAsanaTransformer(nil, nil, testLogger(t))
	res, err := tr.Transform(context.Background(), asanaEntity(p))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	s1 := res.Workflow.StepByID("t1")
	if !strings.Contains(s1.Description, "Due: 2026-09-15") {
		t.Errorf("Expected due date recorded in description, got %q", s1.Description)
	}
	if res.Confidence >= 1.0 {
		t.Errorf("Expected reduced confidence for non-portable due date, got %f", res.Confidence)
	}
}

func TestAsanaTransformer_Transform_CustomFields(t *testing.T) {
	p := sampleProject()
	p.Tasks[0].CustomFields = []asana.CustomField{
		{GID: "cf1", Name: "Priority", Type: "enum",
			EnumOptions: []asana.EnumOption{{Name: "High"}, {Name: "Low"}}},
		{GID: "cf2", Name: "Budget", Type: "number"},
		{GID: "cf3", Name: "Formula", Type: "formula"},
	}

	tr := NewAsanaTransformer(nil, nil, testLogger(t))
	res, err := tr.Transform(context.Background(), asanaEntity(p))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	s1 := res.Workflow.StepByID("t1")
	if s1.Kind != target.StepKindForm {
		t.Errorf("Expected task with custom fields to become a form step, got %s", s1.Kind)
	}
	if len(s1.Fields) != 2 {
		t.Fatalf("Expected 2 mapped fields, got %d", len(s1.Fields))
	}
	if s1.Fields[0].Type != target.FieldTypeDropdown {
		t.Errorf("Expected enum mapped to dropdown, got %s", s1.Fields[0].Type)
	}
	if len(s1.Fields[0].Options) != 2 || s1.Fields[0].Options[0] != "High" {
		t.Errorf("Expected enum options carried over, got %v", s1.Fields[0].Options)
	}
	if s1.Fields[1].Type != target.FieldTypeNumber {
		t.Errorf("Expected number field, got %s", s1.Fields[1].Type)
	}

	// The formula field is unmapped: noted and penalized.
	found := false
	for _, n := range res.Notes {
		if strings.Contains(n, "Formula") {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected note about the unmapped field, got %v", res.Notes)
	}
	if res.Confidence >= 1.0 {
		t.Errorf("Expected reduced confidence, got %f", res.Confidence)
	}
}

func TestAsanaTransformer_Transform_Overrides(t *testing.T) {
	overrides := Overrides{
		{Match: "t2", Skip: true},
		{Match: "t3", Rename: "Meet the team", Kind: "approval"},
	}

	tr := NewAsanaTransformer(overrides, nil, testLogger(t))
	res, err := tr.Transform(context.Background(), asanaEntity(sampleProject()))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	w := res.Workflow
	if w.StepByID("t2") != nil {
		t.Error("Expected t2 skipped by override")
	}
	s3 := w.StepByID("t3")
	if s3.Name != "Meet the team" || s3.Kind != target.StepKindApproval {
		t.Errorf("Expected override applied, got %+v", s3)
	}
}

func TestAsanaTransformer_Transform_ArchivedTag(t *testing.T) {
	p := sampleProject()
	p.Archived = true

	tr := NewAsanaTransformer(nil, nil, testLogger(t))
	res, err := tr.Transform(context.Background(), asanaEntity(p))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(res.Workflow.Tags) != 1 || res.Workflow.Tags[0] != "archived" {
		t.Errorf("Expected archived tag, got %v", res.Workflow.Tags)
	}
}
