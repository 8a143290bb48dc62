package transform

import (
	"context"
	"strings"
	"testing"

	"github.com/flowport/flowport/pkg/bpmn"
	"github.com/flowport/flowport/pkg/migrate"
)

func bpmnProcess() *bpmn.Process {
	return &bpmn.Process{
		ID:   "p1",
		Name: "Approval",
		Elements: []bpmn.Element{
			{ID: "start", Kind: bpmn.KindStartEvent},
			{ID: "prep", Kind: bpmn.KindUserTask, Name: "Prepare request"},
			{ID: "review", Kind: bpmn.KindUserTask, Name: "Review request"},
			{ID: "end", Kind: bpmn.KindEndEvent},
		},
		Flows: []bpmn.Flow{
			{ID: "f1", Source: "start", Target: "prep"},
			{ID: "f2", Source: "prep", Target: "review"},
			{ID: "f3", Source: "review", Target: "end"},
		},
	}
}

func bpmnEntity(p *bpmn.Process) *migrate.Entity {
	return &migrate.Entity{
		EntityStub: migrate.EntityStub{Ref: "proc:" + p.ID, Kind: "process", Name: p.Name},
		Payload:    p,
	}
}

func TestBPMNTransformer_Transform_Basic(t *testing.T) {
	tr := NewBPMNTransformer(nil, nil, nil, testLogger(t))
	res, err := tr.Transform(context.Background(), bpmnEntity(bpmnProcess()))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	w := res.Workflow
	if w.ExternalRef != "proc:p1" {
		t.Errorf("Expected entity ref as external ref, got %q", w.ExternalRef)
	}
	if len(w.Steps) != 2 {
		t.Fatalf("Expected 2 steps, got %d", len(w.Steps))
	}
	review := w.StepByID("review")
	if review == nil || len(review.DependsOn) != 1 || review.DependsOn[0] != "prep" {
		t.Errorf("Expected review to depend on prep, got %+v", review)
	}
	if res.Confidence != 1.0 {
		t.Errorf("Expected full confidence, got %f", res.Confidence)
	}
}

func TestBPMNTransformer_Transform_WrongPayload(t *testing.T) {
	tr := NewBPMNTransformer(nil, nil, nil, testLogger(t))
	_, err := tr.Transform(context.Background(), &migrate.Entity{Payload: struct{}{}})
	if err == nil {
		t.Fatal("Expected payload type error")
	}
	if !migrate.IsPermanent(err) {
		t.Errorf("Expected permanent error, got: %v", err)
	}
}

func TestBPMNTransformer_Transform_OverrideSkipPrunesDependencies(t *testing.T) {
	overrides := Overrides{{Match: "prep", Skip: true}}

	tr := NewBPMNTransformer(nil, overrides, nil, testLogger(t))
	res, err := tr.Transform(context.Background(), bpmnEntity(bpmnProcess()))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	w := res.Workflow
	if w.StepByID("prep") != nil {
		t.Error("Expected prep skipped by override")
	}
	review := w.StepByID("review")
	if review == nil {
		t.Fatal("Expected review step kept")
	}
	if len(review.DependsOn) != 0 {
		t.Errorf("Expected dependency on skipped step pruned, got %v", review.DependsOn)
	}
}

func TestBPMNTransformer_Transform_OverrideRename(t *testing.T) {
	overrides := Overrides{{Match: "review", Rename: "Manager review", Kind: "approval"}}

	tr := NewBPMNTransformer(nil, overrides, nil, testLogger(t))
	res, err := tr.Transform(context.Background(), bpmnEntity(bpmnProcess()))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	review := res.Workflow.StepByID("review")
	if review.Name != "Manager review" {
		t.Errorf("Expected renamed step, got %q", review.Name)
	}
}

func TestBPMNTransformer_Transform_ReviewNotes(t *testing.T) {
	p := bpmnProcess()
	p.Elements = append(p.Elements, bpmn.Element{ID: "script", Kind: bpmn.KindScriptTask, Name: "Recalculate"})
	p.Flows = []bpmn.Flow{
		{ID: "f1", Source: "start", Target: "prep"},
		{ID: "f2", Source: "prep", Target: "review"},
		{ID: "f3", Source: "review", Target: "script"},
		{ID: "f4", Source: "script", Target: "end"},
	}

	tr := NewBPMNTransformer(nil, nil, nil, testLogger(t))
	res, err := tr.Transform(context.Background(), bpmnEntity(p))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	found := false
	for _, n := range res.Notes {
		if strings.HasPrefix(n, "review: ") && strings.Contains(n, "script") {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected a review note for the script task, got %v", res.Notes)
	}
	if res.Confidence >= 1.0 {
		t.Errorf("Expected reduced confidence, got %f", res.Confidence)
	}
}
