package transform

import (
	"context"
	"fmt"

	"github.com/flowport/flowport/pkg/migrate"
	"github.com/flowport/flowport/pkg/target"
	"github.com/flowport/flowport/pkg/telemetry"
	"github.com/flowport/flowport/pkg/vendors/typeform"
)

// TypeformTransformer maps a form onto a workflow of form steps: each
// question becomes one step, answered in order, and logic jumps become
// step conditions.
type TypeformTransformer struct {
	overrides Overrides
	hooks     *HookSet
	log       *telemetry.Logger
}

// NewTypeformTransformer builds the Typeform transformer.
func NewTypeformTransformer(overrides Overrides, hooks *HookSet, log *telemetry.Logger) *TypeformTransformer {
	return &TypeformTransformer{
		overrides: overrides,
		hooks:     hooks,
		log:       log.NewComponentLogger("transform.typeform"),
	}
}

func (t *TypeformTransformer) Transform(ctx context.Context, e *migrate.Entity) (*migrate.TransformResult, error) {
	form, ok := e.Payload.(*typeform.Form)
	if !ok {
		return nil, payloadError("typeform", "*typeform.Form", e.Payload)
	}

	w := &target.Workflow{
		ExternalRef: form.ID,
		Name:        form.Title,
		Source:      "typeform",
	}

	var notes []string
	var confSum float64
	prevID := ""

	for i := range form.Fields {
		field := &form.Fields[i]

		step, conf, ok := mapFormField(field)
		if !ok {
			notes = append(notes, fmt.Sprintf(
				"field %q (%s) has no step mapping, dropped", field.Title, field.Type))
			continue
		}

		// Fields are answered in declaration order unless logic says
		// otherwise.
		if prevID != "" {
			step.DependsOn = []string{prevID}
		}

		skip, err := applyOverride(ctx, t.overrides.Find(field.Ref), step, t.hooks)
		if err != nil {
			return nil, err
		}
		if skip {
			continue
		}

		w.Steps = append(w.Steps, *step)
		prevID = step.ID
		confSum += conf
	}

	t.applyLogic(w, form, &notes, &confSum)
	collectRoles(w)

	confidence := 1.0
	if len(w.Steps) > 0 {
		confidence = confSum / float64(len(w.Steps))
		if confidence > 1 {
			confidence = 1
		}
		if confidence < 0 {
			confidence = 0
		}
	}

	t.log.WithEntity(e.Ref).Debugf("mapped form: %d steps, confidence %.2f",
		len(w.Steps), confidence)

	if err := w.Validate(); err != nil {
		return nil, migrate.NewPermanentError("mapped form is invalid", err).
			WithVendor("typeform").WithCode(migrate.ErrCodeValidation)
	}
	return &migrate.TransformResult{
		Workflow:   w,
		Confidence: confidence,
		Notes:      notes,
	}, nil
}

// applyLogic folds jump rules into step conditions: a jump from field A
// to field B under condition C makes step B conditional on C.
func (t *TypeformTransformer) applyLogic(w *target.Workflow, form *typeform.Form, notes *[]string, confSum *float64) {
	for _, logic := range form.Logic {
		if logic.Type != "field" {
			continue
		}
		for _, action := range logic.Actions {
			if action.Action != "jump" || action.Details.To == nil {
				continue
			}
			if action.Details.To.Type != "field" {
				continue
			}
			targetStep := w.StepByID(action.Details.To.Value)
			if targetStep == nil {
				*notes = append(*notes, fmt.Sprintf(
					"logic on %s jumps to unknown field %s", logic.Ref, action.Details.To.Value))
				continue
			}
			cond, exact := mapCondition(logic.Ref, action.Condition)
			if cond == nil {
				continue
			}
			targetStep.Conditions = append(targetStep.Conditions, *cond)
			if !exact {
				*notes = append(*notes, fmt.Sprintf(
					"step %s: condition op %q kept as raw expression", targetStep.ID, action.Condition.Op))
				*confSum -= 0.3
			}
		}
	}
}

// mapCondition translates a logic condition. The second return reports
// whether the operator mapped exactly.
func mapCondition(fieldRef string, c typeform.Condition) (*target.Condition, bool) {
	if c.Op == "always" {
		return nil, true
	}

	field := fieldRef
	value := ""
	for _, v := range c.Vars {
		switch v.Type {
		case "field":
			if s, ok := v.Value.(string); ok {
				field = s
			}
		case "constant", "choice":
			value = fmt.Sprintf("%v", v.Value)
		}
	}

	switch c.Op {
	case "is", "equal":
		return &target.Condition{Field: field, Operator: "equals", Value: value}, true
	case "is_not", "not_equal":
		return &target.Condition{Field: field, Operator: "not_equals", Value: value}, true
	case "greater_than":
		return &target.Condition{Field: field, Operator: "greater_than", Value: value}, true
	case "lower_than":
		return &target.Condition{Field: field, Operator: "less_than", Value: value}, true
	default:
		return &target.Condition{
			Field:      field,
			Expression: fmt.Sprintf("%s(%s, %v)", c.Op, field, value),
		}, false
	}
}

// mapFormField converts one question into a single-field form step.
func mapFormField(f *typeform.Field) (*target.Step, float64, bool) {
	step := &target.Step{
		ID:          f.Ref,
		ExternalRef: f.ID,
		Name:        f.Title,
		Kind:        target.StepKindForm,
	}
	if f.Properties != nil {
		step.Description = f.Properties.Description
	}

	field := target.FormField{
		ID:    f.Ref,
		Label: f.Title,
	}
	if f.Validations != nil {
		field.Required = f.Validations.Required
	}

	conf := 1.0
	switch f.Type {
	case "short_text":
		field.Type = target.FieldTypeText
	case "long_text":
		field.Type = target.FieldTypeTextarea
	case "number":
		field.Type = target.FieldTypeNumber
	case "date":
		field.Type = target.FieldTypeDate
	case "email":
		field.Type = target.FieldTypeEmail
	case "website":
		field.Type = target.FieldTypeURL
	case "file_upload":
		field.Type = target.FieldTypeFile
	case "dropdown":
		field.Type = target.FieldTypeDropdown
	case "multiple_choice":
		if f.Properties != nil && f.Properties.AllowMultipleSelection {
			field.Type = target.FieldTypeCheckbox
		} else {
			field.Type = target.FieldTypeRadio
		}
	case "yes_no":
		field.Type = target.FieldTypeRadio
		field.Options = []string{"Yes", "No"}
	case "rating", "opinion_scale":
		field.Type = target.FieldTypeNumber
		conf = 0.7
	case "legal":
		field.Type = target.FieldTypeCheckbox
		conf = 0.7
	case "statement", "group":
		return nil, 0, false
	default:
		field.Type = target.FieldTypeText
		conf = 0.5
	}

	if f.Properties != nil {
		for _, c := range f.Properties.Choices {
			field.Options = append(field.Options, c.Label)
		}
	}

	step.Fields = []target.FormField{field}
	return step, conf, true
}
