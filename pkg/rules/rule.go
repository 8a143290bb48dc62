// Package rules implements the BPMN-to-workflow rule engine. Each BPMN
// element is dispatched against an ordered rule table keyed by element kind;
// the matching rule emits target constructs with a confidence score. A
// conversion pass then resolves sequence flows into step dependencies and
// applies optimization heuristics, producing a target workflow together with
// a per-element conversion report.
package rules

import (
	"sort"

	"github.com/flowport/flowport/pkg/bpmn"
	"github.com/flowport/flowport/pkg/target"
)

// Context carries the element under conversion and its graph surroundings
// into rule predicates and actions.
type Context struct {
	// Graph is the indexed process graph.
	Graph *bpmn.Graph

	// Element is the element being converted.
	Element *bpmn.Element

	// Group is the flattened sub-process path of the element, empty for
	// top-level elements.
	Group string
}

// OutDegree returns the number of outgoing sequence flows of the element.
func (c *Context) OutDegree() int {
	return len(c.Graph.Outgoing(c.Element.ID))
}

// InDegree returns the number of incoming sequence flows of the element.
func (c *Context) InDegree() int {
	return len(c.Graph.Incoming(c.Element.ID))
}

// LaneName returns the name of the lane holding the element, or "".
func (c *Context) LaneName() string {
	if c.Element.Lane == "" {
		return ""
	}
	for _, lane := range c.Graph.Process.Lanes {
		if lane.ID == c.Element.Lane {
			if lane.Name != "" {
				return lane.Name
			}
			return lane.ID
		}
	}
	return ""
}

// Outcome is what a rule produces for one element.
type Outcome struct {
	// Step is the target step derived from the element, nil when the
	// element maps to pure structure (gateways, plain events).
	Step *target.Step

	// Confidence is the rule's confidence in the mapping, in [0,1].
	Confidence float64

	// Notes are manual-review remarks attached to the element result.
	Notes []string
}

// Rule maps one shape of BPMN element to target constructs.
type Rule struct {
	// Name identifies the rule in conversion reports.
	Name string

	// Kind is the element kind this rule dispatches on.
	Kind bpmn.ElementKind

	// Match is an optional extra predicate. A nil Match always matches.
	Match func(c *Context) bool

	// Apply produces the outcome for a matched element.
	Apply func(c *Context) Outcome
}

// Set is an ordered rule registry with per-kind dispatch and a catch-all
// fallback. Dispatch is deterministic: rules are tried in registration
// order and the first match wins.
type Set struct {
	byKind   map[bpmn.ElementKind][]Rule
	fallback Rule
}

// NewSet creates an empty rule set with the given fallback rule.
func NewSet(fallback Rule) *Set {
	return &Set{
		byKind:   make(map[bpmn.ElementKind][]Rule),
		fallback: fallback,
	}
}

// Register appends a rule to the dispatch table for its kind.
func (s *Set) Register(r Rule) {
	s.byKind[r.Kind] = append(s.byKind[r.Kind], r)
}

// Dispatch finds the first rule matching the context and applies it.
// The rule name is returned alongside the outcome for reporting.
func (s *Set) Dispatch(c *Context) (string, Outcome) {
	for _, r := range s.byKind[c.Element.Kind] {
		if r.Match == nil || r.Match(c) {
			return r.Name, r.Apply(c)
		}
	}
	return s.fallback.Name, s.fallback.Apply(c)
}

// Len returns the total number of registered rules, fallback excluded.
func (s *Set) Len() int {
	n := 0
	for _, rs := range s.byKind {
		n += len(rs)
	}
	return n
}

// Kinds returns the element kinds with registered rules, sorted.
func (s *Set) Kinds() []bpmn.ElementKind {
	kinds := make([]bpmn.ElementKind, 0, len(s.byKind))
	for k := range s.byKind {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
