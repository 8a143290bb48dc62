package transform

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/flowport/flowport/pkg/migrate"
	"github.com/flowport/flowport/pkg/target"
)

// HookSet executes user-supplied Starlark mapping hooks. A hook is a
// function in the hook file that takes a step dict and returns a
// (possibly modified) step dict, or None to leave the step unchanged.
type HookSet struct {
	globals starlark.StringDict
	timeout time.Duration
}

// LoadHooks parses a Starlark hook file and returns the set of
// functions it defines.
func LoadHooks(path string, timeout time.Duration) (*HookSet, error) {
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return nil, migrate.NewPermanentError("failed to read hook file", err).
			WithCode(migrate.ErrCodeValidation)
	}

	thread := &starlark.Thread{
		Name:  "flowport-hooks",
		Print: func(_ *starlark.Thread, msg string) {},
	}
	predeclared := starlark.StringDict{
		"struct": starlarkstruct.Default,
	}
	globals, err := starlark.ExecFile(thread, path, src, predeclared)
	if err != nil {
		return nil, migrate.NewPermanentError("hook file failed to load", err).
			WithCode(migrate.ErrCodeValidation)
	}
	return &HookSet{globals: globals, timeout: timeout}, nil
}

// Has reports whether the hook file defines the named function.
func (hs *HookSet) Has(name string) bool {
	if hs == nil {
		return false
	}
	_, ok := hs.globals[name].(starlark.Callable)
	return ok
}

// ApplyStep runs the named hook against a step and merges the returned
// dict back into it.
func (hs *HookSet) ApplyStep(ctx context.Context, name string, step *target.Step) error {
	fn, ok := hs.globals[name].(starlark.Callable)
	if !ok {
		return migrate.NewPermanentError(
			fmt.Sprintf("hook %q is not defined", name), nil).
			WithCode(migrate.ErrCodeValidation)
	}

	input, err := stepToStarlark(step)
	if err != nil {
		return migrate.NewPermanentError("failed to encode step for hook", err).
			WithCode(migrate.ErrCodeValidation)
	}

	evalCtx, cancel := context.WithTimeout(ctx, hs.timeout)
	defer cancel()

	thread := &starlark.Thread{
		Name:  "flowport-hooks",
		Print: func(_ *starlark.Thread, msg string) {},
	}
	// Cancel interrupts the interpreter, so a looping hook cannot
	// outlive its deadline.
	watcherDone := make(chan struct{})
	go func() {
		select {
		case <-evalCtx.Done():
			thread.Cancel("timeout")
		case <-watcherDone:
		}
	}()

	out, callErr := starlark.Call(thread, fn, starlark.Tuple{input}, nil)
	close(watcherDone)
	if callErr != nil {
		if evalCtx.Err() != nil {
			return migrate.NewPermanentError(
				fmt.Sprintf("hook %q timed out after %v", name, hs.timeout), nil).
				WithCode(migrate.ErrCodeValidation)
		}
		return migrate.NewPermanentError(
			fmt.Sprintf("hook %q failed", name), callErr).
			WithCode(migrate.ErrCodeValidation)
	}
	return mergeStep(out, step)
}

// stepToStarlark encodes the hook-visible step fields as a dict.
func stepToStarlark(step *target.Step) (*starlark.Dict, error) {
	d := starlark.NewDict(6)
	pairs := []struct {
		key string
		val starlark.Value
	}{
		{"id", starlark.String(step.ID)},
		{"name", starlark.String(step.Name)},
		{"kind", starlark.String(step.Kind)},
		{"description", starlark.String(step.Description)},
		{"group", starlark.String(step.Group)},
		{"roles", stringsToList(step.Roles)},
	}
	for _, p := range pairs {
		if err := d.SetKey(starlark.String(p.key), p.val); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// mergeStep applies the hook's returned dict onto the step. None means
// no change; any other non-dict value is an error.
func mergeStep(out starlark.Value, step *target.Step) error {
	if _, isNone := out.(starlark.NoneType); isNone {
		return nil
	}
	dict, ok := out.(*starlark.Dict)
	if !ok {
		return migrate.NewPermanentError(
			fmt.Sprintf("hook returned %s, want dict or None", out.Type()), nil).
			WithCode(migrate.ErrCodeValidation)
	}

	for _, item := range dict.Items() {
		key, ok := item[0].(starlark.String)
		if !ok {
			return migrate.NewPermanentError("hook dict key must be a string", nil).
				WithCode(migrate.ErrCodeValidation)
		}
		switch string(key) {
		case "name":
			step.Name = asString(item[1], step.Name)
		case "kind":
			step.Kind = target.StepKind(asString(item[1], string(step.Kind)))
		case "description":
			step.Description = asString(item[1], step.Description)
		case "group":
			step.Group = asString(item[1], step.Group)
		case "roles":
			if list, ok := item[1].(*starlark.List); ok {
				roles := make([]string, 0, list.Len())
				for i := 0; i < list.Len(); i++ {
					if s, ok := list.Index(i).(starlark.String); ok {
						roles = append(roles, string(s))
					}
				}
				step.Roles = roles
			}
		case "id":
			// Step identity is not hookable.
		default:
			return migrate.NewPermanentError(
				fmt.Sprintf("hook set unknown step key %q", key), nil).
				WithCode(migrate.ErrCodeValidation)
		}
	}
	return nil
}

func asString(v starlark.Value, fallback string) string {
	if s, ok := v.(starlark.String); ok {
		return string(s)
	}
	return fallback
}

func stringsToList(values []string) *starlark.List {
	items := make([]starlark.Value, len(values))
	for i, v := range values {
		items[i] = starlark.String(v)
	}
	return starlark.NewList(items)
}
