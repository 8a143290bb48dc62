package typeform

// Form is a full Typeform form definition.
type Form struct {
	ID     string  `json:"id"`
	Title  string  `json:"title"`
	Fields []Field `json:"fields"`
	Logic  []Logic `json:"logic"`
}

// Field is one question of a form.
type Field struct {
	ID          string       `json:"id"`
	Ref         string       `json:"ref"`
	Title       string       `json:"title"`
	Type        string       `json:"type"`
	Properties  *Properties  `json:"properties"`
	Validations *Validations `json:"validations"`
}

// Properties carries the type-specific settings of a field.
type Properties struct {
	Description            string   `json:"description"`
	Choices                []Choice `json:"choices"`
	AllowMultipleSelection bool     `json:"allow_multiple_selection"`
	Steps                  int      `json:"steps"`
}

// Choice is one option of a choice field.
type Choice struct {
	ID    string `json:"id"`
	Ref   string `json:"ref"`
	Label string `json:"label"`
}

// Validations holds the constraints of a field.
type Validations struct {
	Required bool `json:"required"`
}

// Logic is a per-field rule set: jump and branching actions evaluated
// after the field is answered.
type Logic struct {
	Type    string   `json:"type"` // field or hidden
	Ref     string   `json:"ref"`  // the field the rules hang off
	Actions []Action `json:"actions"`
}

// Action is one logic action, usually a jump to another field.
type Action struct {
	Action    string    `json:"action"` // jump, add, subtract...
	Details   Details   `json:"details"`
	Condition Condition `json:"condition"`
}

// Details names the jump target.
type Details struct {
	To *Target `json:"to"`
}

// Target is a jump destination: another field or the thank-you screen.
type Target struct {
	Type  string `json:"type"` // field or thankyou
	Value string `json:"value"`
}

// Condition is a boolean expression over answered fields.
type Condition struct {
	Op   string `json:"op"` // is, is_not, always, greater_than...
	Vars []Var  `json:"vars"`
}

// Var is one operand of a condition: a field reference, a constant, or
// a nested condition.
type Var struct {
	Type  string      `json:"type"` // field, constant, choice
	Value interface{} `json:"value"`
}

// FieldByRef finds a field by its ref.
func (f *Form) FieldByRef(ref string) *Field {
	for i := range f.Fields {
		if f.Fields[i].Ref == ref {
			return &f.Fields[i]
		}
	}
	return nil
}

// LogicFor returns the logic rules attached to a field ref.
func (f *Form) LogicFor(ref string) *Logic {
	for i := range f.Logic {
		if f.Logic[i].Ref == ref && f.Logic[i].Type == "field" {
			return &f.Logic[i]
		}
	}
	return nil
}
