package asana

import "time"

// Project is a fully loaded Asana project: the fields of the project
// itself plus its sections and tasks.
type Project struct {
	GID        string    `json:"gid"`
	Name       string    `json:"name"`
	Notes      string    `json:"notes"`
	Archived   bool      `json:"archived"`
	Color      string    `json:"color"`
	Owner      *User     `json:"owner"`
	Members    []User    `json:"members"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
	Sections   []Section `json:"-"`
	Tasks      []Task    `json:"-"`
}

// User is an Asana user reference.
type User struct {
	GID  string `json:"gid"`
	Name string `json:"name"`
}

// Section is a column or grouping within a project.
type Section struct {
	GID  string `json:"gid"`
	Name string `json:"name"`
}

// Task is an Asana task with the fields relevant to migration.
type Task struct {
	GID          string        `json:"gid"`
	Name         string        `json:"name"`
	Notes        string        `json:"notes"`
	Completed    bool          `json:"completed"`
	Assignee     *User         `json:"assignee"`
	DueOn        string        `json:"due_on"`
	DueAt        string        `json:"due_at"`
	Memberships  []Membership  `json:"memberships"`
	CustomFields []CustomField `json:"custom_fields"`
	Dependencies []TaskRef     `json:"dependencies"`
}

// Membership ties a task to a section.
type Membership struct {
	Section *Section `json:"section"`
}

// TaskRef is a reference to another task by GID.
type TaskRef struct {
	GID string `json:"gid"`
}

// CustomField is a typed per-task field definition and value.
type CustomField struct {
	GID         string       `json:"gid"`
	Name        string       `json:"name"`
	Type        string       `json:"type"` // text, number, enum, multi_enum, date, people
	EnumOptions []EnumOption `json:"enum_options"`
}

// EnumOption is one choice of an enum custom field.
type EnumOption struct {
	GID  string `json:"gid"`
	Name string `json:"name"`
}

// SectionOf returns the GID of the first section the task belongs to,
// or empty when it is unsectioned.
func (t *Task) SectionOf() string {
	for _, m := range t.Memberships {
		if m.Section != nil {
			return m.Section.GID
		}
	}
	return ""
}
