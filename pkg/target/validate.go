package target

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidWorkflow marks every validation failure, so callers can
// classify with errors.Is.
var ErrInvalidWorkflow = errors.New("invalid workflow")

func invalidf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidWorkflow, fmt.Sprintf(format, args...))
}

// Validate checks structural soundness of a workflow: non-empty name,
// unique step and field IDs, resolvable dependency and role references,
// and an acyclic dependency graph.
func (w *Workflow) Validate() error {
	if strings.TrimSpace(w.Name) == "" {
		return invalidf("workflow name is empty")
	}

	steps := make(map[string]*Step, len(w.Steps))
	fields := make(map[string]bool)
	for i := range w.Steps {
		step := &w.Steps[i]
		if step.ID == "" {
			return invalidf("step %q has empty ID", step.Name)
		}
		if _, dup := steps[step.ID]; dup {
			return invalidf("duplicate step ID: %s", step.ID)
		}
		steps[step.ID] = step

		for _, f := range step.Fields {
			if f.ID == "" {
				return invalidf("step %s has field with empty ID", step.ID)
			}
			if fields[f.ID] {
				return invalidf("duplicate field ID: %s", f.ID)
			}
			fields[f.ID] = true
		}
	}

	for i := range w.Steps {
		step := &w.Steps[i]
		for _, dep := range step.DependsOn {
			if _, ok := steps[dep]; !ok {
				return invalidf("step %s depends on unknown step %s", step.ID, dep)
			}
			if dep == step.ID {
				return invalidf("step %s depends on itself", step.ID)
			}
		}
		for _, role := range step.Roles {
			if !w.HasRole(role) {
				return invalidf("step %s references unknown role %s", step.ID, role)
			}
		}
	}

	if cycle := w.findCycle(); len(cycle) > 0 {
		return invalidf("dependency cycle: %s", strings.Join(cycle, " -> "))
	}

	return nil
}

// findCycle runs DFS over the dependency graph and returns the first cycle
// found as a step ID path, or nil when the graph is acyclic.
func (w *Workflow) findCycle() []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(w.Steps))
	deps := make(map[string][]string, len(w.Steps))
	for i := range w.Steps {
		deps[w.Steps[i].ID] = w.Steps[i].DependsOn
	}

	var path []string
	var visit func(id string) []string
	visit = func(id string) []string {
		color[id] = gray
		path = append(path, id)
		for _, dep := range deps[id] {
			switch color[dep] {
			case white:
				if cycle := visit(dep); cycle != nil {
					return cycle
				}
			case gray:
				for i, p := range path {
					if p == dep {
						return append(append([]string{}, path[i:]...), dep)
					}
				}
			}
		}
		color[id] = black
		path = path[:len(path)-1]
		return nil
	}

	for i := range w.Steps {
		id := w.Steps[i].ID
		if color[id] == white {
			path = path[:0]
			if cycle := visit(id); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}
