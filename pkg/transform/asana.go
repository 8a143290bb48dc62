package transform

import (
	"context"
	"fmt"

	"github.com/flowport/flowport/pkg/migrate"
	"github.com/flowport/flowport/pkg/target"
	"github.com/flowport/flowport/pkg/telemetry"
	"github.com/flowport/flowport/pkg/vendors/asana"
)

// AsanaTransformer maps a loaded Asana project onto a workflow:
// sections become step groups, tasks become steps, task dependencies
// become step dependencies, and custom fields become form fields.
type AsanaTransformer struct {
	overrides     Overrides
	hooks         *HookSet
	skipCompleted bool
	log           *telemetry.Logger
}

// AsanaOption configures an AsanaTransformer.
type AsanaOption func(*AsanaTransformer)

// WithCompletedTasks includes tasks already completed in Asana. By
// default they are dropped.
func WithCompletedTasks() AsanaOption {
	return func(t *AsanaTransformer) { t.skipCompleted = false }
}

// NewAsanaTransformer builds the Asana transformer.
func NewAsanaTransformer(overrides Overrides, hooks *HookSet, log *telemetry.Logger, opts ...AsanaOption) *AsanaTransformer {
	t := &AsanaTransformer{
		overrides:     overrides,
		hooks:         hooks,
		skipCompleted: true,
		log:           log.NewComponentLogger("transform.asana"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *AsanaTransformer) Transform(ctx context.Context, e *migrate.Entity) (*migrate.TransformResult, error) {
	project, ok := e.Payload.(*asana.Project)
	if !ok {
		return nil, payloadError("asana", "*asana.Project", e.Payload)
	}

	w := &target.Workflow{
		ExternalRef: project.GID,
		Name:        project.Name,
		Description: project.Notes,
		Source:      "asana",
	}
	if project.Archived {
		w.Tags = append(w.Tags, "archived")
	}

	sectionName := map[string]string{}
	for _, s := range project.Sections {
		sectionName[s.GID] = s.Name
	}

	var notes []string
	var confSum float64
	kept := map[string]bool{}

	for i := range project.Tasks {
		task := &project.Tasks[i]
		if task.Completed && t.skipCompleted {
			continue
		}

		step, conf, stepNotes := t.mapTask(task, sectionName)
		notes = append(notes, stepNotes...)

		skip, err := applyOverride(ctx, t.overrides.Find(task.GID), step, t.hooks)
		if err != nil {
			return nil, err
		}
		if skip {
			continue
		}

		w.Steps = append(w.Steps, *step)
		kept[task.GID] = true
		confSum += conf
	}

	// Dependencies can only point at steps that survived the mapping.
	for i := range w.Steps {
		step := &w.Steps[i]
		deps := step.DependsOn[:0]
		for _, d := range step.DependsOn {
			if kept[d] {
				deps = append(deps, d)
			} else {
				notes = append(notes, fmt.Sprintf(
					"step %s: dropped dependency on excluded task %s", step.ID, d))
			}
		}
		step.DependsOn = deps
	}

	collectRoles(w)
	if project.Owner != nil {
		w.AddRole(project.Owner.Name)
	}

	confidence := 1.0
	if len(w.Steps) > 0 {
		confidence = confSum / float64(len(w.Steps))
	}

	t.log.WithEntity(e.Ref).Debugf("mapped project: %d steps, confidence %.2f",
		len(w.Steps), confidence)

	if err := w.Validate(); err != nil {
		return nil, migrate.NewPermanentError("mapped project is invalid", err).
			WithVendor("asana").WithCode(migrate.ErrCodeValidation)
	}
	return &migrate.TransformResult{
		Workflow:   w,
		Confidence: confidence,
		Notes:      notes,
	}, nil
}

// mapTask converts one task into a step with a per-step confidence.
func (t *AsanaTransformer) mapTask(task *asana.Task, sectionName map[string]string) (*target.Step, float64, []string) {
	step := &target.Step{
		ID:          task.GID,
		ExternalRef: task.GID,
		Name:        task.Name,
		Kind:        target.StepKindTask,
		Description: task.Notes,
	}
	if sec := task.SectionOf(); sec != "" {
		step.Group = sectionName[sec]
	}
	if task.Assignee != nil && task.Assignee.Name != "" {
		step.Roles = append(step.Roles, task.Assignee.Name)
	}
	for _, d := range task.Dependencies {
		step.DependsOn = append(step.DependsOn, d.GID)
	}

	conf := 1.0
	var notes []string

	// Absolute due dates do not survive as relative deadlines.
	if task.DueOn != "" || task.DueAt != "" {
		notes = append(notes, fmt.Sprintf(
			"step %s: absolute due date not portable, recorded in description", step.ID))
		if step.Description != "" {
			step.Description += "\n"
		}
		due := task.DueAt
		if due == "" {
			due = task.DueOn
		}
		step.Description += "Due: " + due
		conf -= 0.1
	}

	if len(task.CustomFields) > 0 {
		step.Kind = target.StepKindForm
		for _, cf := range task.CustomFields {
			field, ok := mapCustomField(cf)
			if !ok {
				notes = append(notes, fmt.Sprintf(
					"step %s: custom field %q has unmapped type %s", step.ID, cf.Name, cf.Type))
				conf -= 0.2
				continue
			}
			step.Fields = append(step.Fields, field)
		}
	}

	if conf < 0 {
		conf = 0
	}
	return step, conf, notes
}

// mapCustomField translates an Asana custom field type to a form field.
func mapCustomField(cf asana.CustomField) (target.FormField, bool) {
	field := target.FormField{
		ID:    cf.GID,
		Label: cf.Name,
	}
	switch cf.Type {
	case "text":
		field.Type = target.FieldTypeText
	case "number":
		field.Type = target.FieldTypeNumber
	case "date":
		field.Type = target.FieldTypeDate
	case "enum":
		field.Type = target.FieldTypeDropdown
	case "multi_enum":
		field.Type = target.FieldTypeCheckbox
	case "people":
		field.Type = target.FieldTypeText
	default:
		return target.FormField{}, false
	}
	for _, opt := range cf.EnumOptions {
		field.Options = append(field.Options, opt.Name)
	}
	return field, true
}
