// Package target defines the data model of the destination workflow platform
// and the client used to push migrated entities into it.
package target

import "time"

// StepKind distinguishes the behavior of a workflow step.
type StepKind string

const (
	// StepKindTask is a plain work item completed by an assignee.
	StepKindTask StepKind = "task"

	// StepKindApproval requires an approve/reject decision.
	StepKindApproval StepKind = "approval"

	// StepKindForm collects structured input via form fields.
	StepKindForm StepKind = "form"
)

// FieldType enumerates the form field types the target platform supports.
type FieldType string

const (
	FieldTypeText     FieldType = "text"
	FieldTypeTextarea FieldType = "textarea"
	FieldTypeNumber   FieldType = "number"
	FieldTypeDate     FieldType = "date"
	FieldTypeDropdown FieldType = "dropdown"
	FieldTypeCheckbox FieldType = "checkbox"
	FieldTypeRadio    FieldType = "radio"
	FieldTypeFile     FieldType = "file"
	FieldTypeEmail    FieldType = "email"
	FieldTypeURL      FieldType = "url"
)

// Workflow is a migrated workflow definition in the target model.
// Steps form a directed acyclic graph via DependsOn references.
type Workflow struct {
	// ID is the target-side identifier, empty until pushed.
	ID string `json:"id,omitempty" yaml:"id,omitempty"`

	// ExternalRef is the vendor-side identifier this workflow was migrated
	// from. Used for idempotent upsert on push.
	ExternalRef string `json:"external_ref" yaml:"external_ref"`

	// Name is the workflow display name.
	Name string `json:"name" yaml:"name"`

	// Description is an optional long description.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Steps are the workflow steps in declaration order.
	Steps []Step `json:"steps" yaml:"steps"`

	// Roles are the roles referenced by step assignments.
	Roles []Role `json:"roles,omitempty" yaml:"roles,omitempty"`

	// Tags are free-form labels carried over from the vendor.
	Tags []string `json:"tags,omitempty" yaml:"tags,omitempty"`

	// Source names the vendor this workflow was migrated from.
	Source string `json:"source,omitempty" yaml:"source,omitempty"`
}

// Step is a single node in a target workflow.
type Step struct {
	// ID is the step identifier, unique within the workflow.
	ID string `json:"id" yaml:"id"`

	// ExternalRef is the vendor-side element this step was derived from.
	ExternalRef string `json:"external_ref,omitempty" yaml:"external_ref,omitempty"`

	// Name is the step display name.
	Name string `json:"name" yaml:"name"`

	// Kind controls step behavior.
	Kind StepKind `json:"kind" yaml:"kind"`

	// Description is optional documentation text.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// DependsOn lists step IDs that must complete before this step starts.
	DependsOn []string `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`

	// Conditions gate step activation; all must hold.
	Conditions []Condition `json:"conditions,omitempty" yaml:"conditions,omitempty"`

	// Roles lists role names assigned to this step.
	Roles []string `json:"roles,omitempty" yaml:"roles,omitempty"`

	// Fields are form fields collected by this step.
	Fields []FormField `json:"fields,omitempty" yaml:"fields,omitempty"`

	// Deadline is an optional completion deadline relative to activation.
	Deadline *Deadline `json:"deadline,omitempty" yaml:"deadline,omitempty"`

	// Group labels steps that were flattened from a vendor sub-structure.
	Group string `json:"group,omitempty" yaml:"group,omitempty"`
}

// Condition gates a step on a field value produced by an earlier step.
type Condition struct {
	// Field is the field identifier the condition reads.
	Field string `json:"field" yaml:"field"`

	// Operator is the comparison operator (equals, not_equals, contains,
	// greater_than, greater_than_or_equal, less_than, less_than_or_equal,
	// is_set).
	Operator string `json:"operator" yaml:"operator"`

	// Value is the comparison operand, unused for is_set.
	Value string `json:"value,omitempty" yaml:"value,omitempty"`

	// Expression preserves the original vendor expression when it could
	// not be decomposed into field/operator/value.
	Expression string `json:"expression,omitempty" yaml:"expression,omitempty"`
}

// FormField is a typed input collected by a form or task step.
type FormField struct {
	// ID is the field identifier, unique within the workflow.
	ID string `json:"id" yaml:"id"`

	// Label is the user-facing field label.
	Label string `json:"label" yaml:"label"`

	// Type is the field type.
	Type FieldType `json:"type" yaml:"type"`

	// Required marks the field as mandatory.
	Required bool `json:"required,omitempty" yaml:"required,omitempty"`

	// Options are choices for dropdown/radio/checkbox fields.
	Options []string `json:"options,omitempty" yaml:"options,omitempty"`

	// DefaultValue is an optional default.
	DefaultValue string `json:"default_value,omitempty" yaml:"default_value,omitempty"`
}

// Role is a named group of assignees.
type Role struct {
	// Name is the role name, unique within the workflow.
	Name string `json:"name" yaml:"name"`

	// Description is optional.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Deadline is a completion deadline relative to step activation.
type Deadline struct {
	// Duration is the time allowed after activation.
	Duration time.Duration `json:"duration" yaml:"duration"`

	// Source describes where the deadline came from (due_date, timer_event).
	Source string `json:"source,omitempty" yaml:"source,omitempty"`
}

// StepByID returns the step with the given ID, or nil.
func (w *Workflow) StepByID(id string) *Step {
	for i := range w.Steps {
		if w.Steps[i].ID == id {
			return &w.Steps[i]
		}
	}
	return nil
}

// HasRole reports whether the workflow declares a role with the given name.
func (w *Workflow) HasRole(name string) bool {
	for _, r := range w.Roles {
		if r.Name == name {
			return true
		}
	}
	return false
}

// AddRole appends a role if it is not already declared.
func (w *Workflow) AddRole(name string) {
	if name == "" || w.HasRole(name) {
		return
	}
	w.Roles = append(w.Roles, Role{Name: name})
}
