// Package transform converts loaded vendor entities into target
// workflows. Each vendor has a dedicated transformer; all of them share
// the mapping-override and Starlark-hook machinery.
package transform

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/flowport/flowport/pkg/migrate"
	"github.com/flowport/flowport/pkg/target"
)

// Override customizes how a single source object maps to the target. It
// is matched by the object's external ref or, when Match is a glob-like
// prefix ending in "*", by prefix.
type Override struct {
	// Match selects the source object by external ref.
	Match string `json:"match" yaml:"match"`

	// Skip drops the object entirely.
	Skip bool `json:"skip,omitempty" yaml:"skip,omitempty"`

	// Rename replaces the object's name.
	Rename string `json:"rename,omitempty" yaml:"rename,omitempty"`

	// Kind forces the step kind (task, approval, form).
	Kind string `json:"kind,omitempty" yaml:"kind,omitempty"`

	// Roles replaces the step's roles.
	Roles []string `json:"roles,omitempty" yaml:"roles,omitempty"`

	// Hook names a Starlark function to run against the step after the
	// built-in mapping.
	Hook string `json:"hook,omitempty" yaml:"hook,omitempty"`
}

// Overrides is an ordered override list. First match wins.
type Overrides []Override

// Find returns the first override matching ref, or nil.
func (os Overrides) Find(ref string) *Override {
	for i := range os {
		o := &os[i]
		if o.Match == ref {
			return o
		}
		if strings.HasSuffix(o.Match, "*") && strings.HasPrefix(ref, strings.TrimSuffix(o.Match, "*")) {
			return o
		}
	}
	return nil
}

// applyOverride rewrites a step in place per the override and runs its
// hook, if any. A true skip return means the step must be dropped.
func applyOverride(ctx context.Context, o *Override, step *target.Step, hooks *HookSet) (skip bool, err error) {
	if o == nil {
		return false, nil
	}
	if o.Skip {
		return true, nil
	}
	if o.Rename != "" {
		step.Name = o.Rename
	}
	if o.Kind != "" {
		step.Kind = target.StepKind(o.Kind)
	}
	if len(o.Roles) > 0 {
		step.Roles = append([]string{}, o.Roles...)
	}
	if o.Hook != "" {
		if hooks == nil {
			return false, migrate.NewPermanentError(
				fmt.Sprintf("override %s names hook %q but no hook file is configured", o.Match, o.Hook), nil).
				WithCode(migrate.ErrCodeValidation)
		}
		if err := hooks.ApplyStep(ctx, o.Hook, step); err != nil {
			return false, err
		}
	}
	return false, nil
}

// collectRoles rebuilds the workflow role list from its steps, sorted
// and de-duplicated.
func collectRoles(w *target.Workflow) {
	seen := map[string]bool{}
	for _, r := range w.Roles {
		seen[r.Name] = true
	}
	for _, s := range w.Steps {
		for _, r := range s.Roles {
			if !seen[r] {
				seen[r] = true
				w.Roles = append(w.Roles, target.Role{Name: r})
			}
		}
	}
	sort.Slice(w.Roles, func(i, j int) bool { return w.Roles[i].Name < w.Roles[j].Name })
}

// payloadError reports a Load/Transform contract violation: the entity
// payload is not the type this transformer expects.
func payloadError(vendor string, want string, got interface{}) error {
	return migrate.NewPermanentError(
		fmt.Sprintf("unexpected payload type %T, want %s", got, want), nil).
		WithVendor(vendor).WithCode(migrate.ErrCodeValidation)
}
