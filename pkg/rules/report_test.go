package rules

import (
	"math"
	"testing"

	"github.com/flowport/flowport/pkg/bpmn"
)

func TestReport_Finalize_WeightsStepElements(t *testing.T) {
	r := &Report{
		Results: []ElementResult{
			{ElementID: "approve", Kind: bpmn.KindUserTask, Confidence: 1.0, StepID: "approve"},
			{ElementID: "branch", Kind: bpmn.KindExclusiveGateway, Confidence: 0.5},
		},
	}
	r.finalize(0.7)

	// The step-producing element weighs double.
	want := (2.0 + 0.5) / 3.0
	if math.Abs(r.Confidence-want) > 1e-9 {
		t.Errorf("Expected confidence %.4f, got %.4f", want, r.Confidence)
	}
	if len(r.ReviewNeeded) != 1 || r.ReviewNeeded[0] != "branch" {
		t.Errorf("Expected branch flagged for review, got %v", r.ReviewNeeded)
	}
}

func TestReport_Finalize_EmptyProcess(t *testing.T) {
	r := &Report{}
	r.finalize(0.7)
	if r.Confidence != 1.0 {
		t.Errorf("Expected confidence 1.0 for an empty report, got %f", r.Confidence)
	}
}
