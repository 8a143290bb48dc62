package transform

import (
	"context"
	"strings"
	"testing"

	"github.com/flowport/flowport/pkg/migrate"
	"github.com/flowport/flowport/pkg/target"
	"github.com/flowport/flowport/pkg/vendors/typeform"
)

func typeformEntity(f *typeform.Form) *migrate.Entity {
	return &migrate.Entity{
		EntityStub: migrate.EntityStub{Ref: f.ID, Kind: "form", Name: f.Title},
		Payload:    f,
	}
}

func sampleForm() *typeform.Form {
	return &typeform.Form{
		ID:    "form-1",
		Title: "Vendor intake",
		Fields: []typeform.Field{
			{ID: "f1", Ref: "name", Title: "Company name", Type: "short_text",
				Validations: &typeform.Validations{Required: true}},
			{ID: "f2", Ref: "size", Title: "Head count", Type: "number"},
			{ID: "f3", Ref: "contact", Title: "Contact email", Type: "email"},
		},
	}
}

func TestTypeformTransformer_Transform_LinearChain(t *testing.T) {
	tr := NewTypeformTransformer(nil, nil, testLogger(t))
	res, err := tr.Transform(context.Background(), typeformEntity(sampleForm()))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	w := res.Workflow
	if w.Source != "typeform" || w.ExternalRef != "form-1" {
		t.Errorf("Unexpected workflow identity: %+v", w)
	}
	if len(w.Steps) != 3 {
		t.Fatalf("Expected 3 steps, got %d", len(w.Steps))
	}

	if len(w.Steps[0].DependsOn) != 0 {
		t.Errorf("Expected first step unblocked, got %v", w.Steps[0].DependsOn)
	}
	if got := w.Steps[1].DependsOn; len(got) != 1 || got[0] != "name" {
		t.Errorf("Expected second step to follow the first, got %v", got)
	}
	if got := w.Steps[2].DependsOn; len(got) != 1 || got[0] != "size" {
		t.Errorf("Expected third step to follow the second, got %v", got)
	}

	s1 := w.StepByID("name")
	if s1.Kind != target.StepKindForm {
		t.Errorf("Expected form step, got %s", s1.Kind)
	}
	if len(s1.Fields) != 1 || !s1.Fields[0].Required {
		t.Errorf("Expected one required field, got %+v", s1.Fields)
	}
	if res.Confidence != 1.0 {
		t.Errorf("Expected full confidence, got %f", res.Confidence)
	}
}

func TestTypeformTransformer_Transform_WrongPayload(t *testing.T) {
	tr := NewTypeformTransformer(nil, nil, testLogger(t))
	_, err := tr.Transform(context.Background(), &migrate.Entity{Payload: 42})
	if err == nil {
		t.Fatal("Expected payload type error")
	}
	if !migrate.IsPermanent(err) {
		t.Errorf("Expected permanent error, got: %v", err)
	}
}

func TestMapFormField_Types(t *testing.T) {
	tests := []struct {
		fieldType string
		props     *typeform.Properties
		wantType  target.FieldType
		wantConf  float64
	}{
		{"short_text", nil, target.FieldTypeText, 1.0},
		{"long_text", nil, target.FieldTypeTextarea, 1.0},
		{"number", nil, target.FieldTypeNumber, 1.0},
		{"date", nil, target.FieldTypeDate, 1.0},
		{"email", nil, target.FieldTypeEmail, 1.0},
		{"website", nil, target.FieldTypeURL, 1.0},
		{"file_upload", nil, target.FieldTypeFile, 1.0},
		{"dropdown", nil, target.FieldTypeDropdown, 1.0},
		{"multiple_choice", nil, target.FieldTypeRadio, 1.0},
		{"multiple_choice", &typeform.Properties{AllowMultipleSelection: true}, target.FieldTypeCheckbox, 1.0},
		{"yes_no", nil, target.FieldTypeRadio, 1.0},
		{"rating", nil, target.FieldTypeNumber, 0.7},
		{"opinion_scale", nil, target.FieldTypeNumber, 0.7},
		{"legal", nil, target.FieldTypeCheckbox, 0.7},
		{"ranking", nil, target.FieldTypeText, 0.5},
	}

	for _, tt := range tests {
		f := &typeform.Field{ID: "f", Ref: "r", Title: "Q", Type: tt.fieldType, Properties: tt.props}
		step, conf, ok := mapFormField(f)
		if !ok {
			t.Errorf("%s: expected a mapping", tt.fieldType)
			continue
		}
		if step.Fields[0].Type != tt.wantType {
			t.Errorf("%s: expected field type %s, got %s", tt.fieldType, tt.wantType, step.Fields[0].Type)
		}
		if conf != tt.wantConf {
			t.Errorf("%s: expected confidence %f, got %f", tt.fieldType, tt.wantConf, conf)
		}
	}
}

func TestMapFormField_Dropped(t *testing.T) {
	for _, fieldType := range []string{"statement", "group"} {
		f := &typeform.Field{ID: "f", Ref: "r", Title: "Q", Type: fieldType}
		if _, _, ok := mapFormField(f); ok {
			t.Errorf("Expected %s fields to be dropped", fieldType)
		}
	}
}

func TestMapFormField_YesNoOptions(t *testing.T) {
	f := &typeform.Field{ID: "f", Ref: "r", Title: "Approve?", Type: "yes_no"}
	step, _, ok := mapFormField(f)
	if !ok {
		t.Fatal("Expected a mapping")
	}
	opts := step.Fields[0].Options
	if len(opts) != 2 || opts[0] != "Yes" || opts[1] != "No" {
		t.Errorf("Expected Yes/No options, got %v", opts)
	}
}

func TestMapFormField_Choices(t *testing.T) {
	f := &typeform.Field{
		ID: "f", Ref: "r", Title: "Region", Type: "dropdown",
		Properties: &typeform.Properties{Choices: []typeform.Choice{
			{Label: "EMEA"}, {Label: "APAC"},
		}},
	}
	step, _, ok := mapFormField(f)
	if !ok {
		t.Fatal("Expected a mapping")
	}
	opts := step.Fields[0].Options
	if len(opts) != 2 || opts[0] != "EMEA" || opts[1] != "APAC" {
		t.Errorf("Expected choice labels as options, got %v", opts)
	}
}

func TestTypeformTransformer_Transform_StatementDroppedFromChain(t *testing.T) {
	form := sampleForm()
	form.Fields = append(form.Fields[:1], append([]typeform.Field{
		{ID: "fs", Ref: "intro", Title: "Welcome", Type: "statement"},
	}, form.Fields[1:]...)...)

	tr := NewTypeformTransformer(nil, nil, testLogger(t))
	res, err := tr.Transform(context.Background(), typeformEntity(form))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(res.Workflow.Steps) != 3 {
		t.Fatalf("Expected statement dropped, got %d steps", len(res.Workflow.Steps))
	}
	// The chain skips the dropped field.
	if got := res.Workflow.StepByID("size").DependsOn; len(got) != 1 || got[0] != "name" {
		t.Errorf("Expected chain to skip the statement, got %v", got)
	}
	found := false
	for _, n := range res.Notes {
		if strings.Contains(n, "no step mapping") {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected a note about the dropped field, got %v", res.Notes)
	}
}

func TestTypeformTransformer_Transform_LogicJump(t *testing.T) {
	form := sampleForm()
	form.Logic = []typeform.Logic{{
		Type: "field",
		Ref:  "size",
		Actions: []typeform.Action{{
			Action:  "jump",
			Details: typeform.Details{To: &typeform.Target{Type: "field", Value: "contact"}},
			Condition: typeform.Condition{
				Op: "greater_than",
				Vars: []typeform.Var{
					{Type: "field", Value: "size"},
					{Type: "constant", Value: 50},
				},
			},
		}},
	}}

	tr := NewTypeformTransformer(nil, nil, testLogger(t))
	res, err := tr.Transform(context.Background(), typeformEntity(form))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	s := res.Workflow.StepByID("contact")
	if len(s.Conditions) != 1 {
		t.Fatalf("Expected 1 condition on the jump target, got %d", len(s.Conditions))
	}
	c := s.Conditions[0]
	if c.Field != "size" || c.Operator != "greater_than" || c.Value != "50" {
		t.Errorf("Unexpected condition: %+v", c)
	}
	if res.Confidence != 1.0 {
		t.Errorf("Expected full confidence for an exact operator, got %f", res.Confidence)
	}
}

func TestTypeformTransformer_Transform_UnknownLogicOp(t *testing.T) {
	form := sampleForm()
	form.Logic = []typeform.Logic{{
		Type: "field",
		Ref:  "name",
		Actions: []typeform.Action{{
			Action:  "jump",
			Details: typeform.Details{To: &typeform.Target{Type: "field", Value: "size"}},
			Condition: typeform.Condition{
				Op: "contains",
				Vars: []typeform.Var{
					{Type: "field", Value: "name"},
					{Type: "constant", Value: "Inc"},
				},
			},
		}},
	}}

	tr := NewTypeformTransformer(nil, nil, testLogger(t))
	res, err := tr.Transform(context.Background(), typeformEntity(form))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	s := res.Workflow.StepByID("size")
	if len(s.Conditions) != 1 {
		t.Fatalf("Expected 1 condition, got %d", len(s.Conditions))
	}
	if s.Conditions[0].Expression != "contains(name, Inc)" {
		t.Errorf("Expected raw expression, got %q", s.Conditions[0].Expression)
	}
	if res.Confidence >= 1.0 {
		t.Errorf("Expected reduced confidence for inexact operator, got %f", res.Confidence)
	}
}

func TestMapCondition(t *testing.T) {
	vars := []typeform.Var{
		{Type: "field", Value: "q1"},
		{Type: "constant", Value: "yes"},
	}
	tests := []struct {
		op        string
		wantOp    string
		wantExact bool
	}{
		{"is", "equals", true},
		{"equal", "equals", true},
		{"is_not", "not_equals", true},
		{"not_equal", "not_equals", true},
		{"greater_than", "greater_than", true},
		{"lower_than", "less_than", true},
	}
	for _, tt := range tests {
		cond, exact := mapCondition("q1", typeform.Condition{Op: tt.op, Vars: vars})
		if cond == nil {
			t.Errorf("%s: expected a condition", tt.op)
			continue
		}
		if cond.Operator != tt.wantOp || cond.Field != "q1" || cond.Value != "yes" {
			t.Errorf("%s: unexpected condition %+v", tt.op, cond)
		}
		if exact != tt.wantExact {
			t.Errorf("%s: expected exact=%v", tt.op, tt.wantExact)
		}
	}

	if cond, exact := mapCondition("q1", typeform.Condition{Op: "always"}); cond != nil || !exact {
		t.Errorf("Expected always to map to no condition, got %+v", cond)
	}
}
