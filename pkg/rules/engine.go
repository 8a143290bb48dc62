package rules

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/flowport/flowport/pkg/bpmn"
	"github.com/flowport/flowport/pkg/migrate"
	"github.com/flowport/flowport/pkg/target"
)

// DefaultReviewThreshold is the confidence below which an element lands on
// the manual-review list.
const DefaultReviewThreshold = 0.7

// cycleAttenuation is multiplied into the confidence of elements whose
// flows were dropped to break a loop.
const cycleAttenuation = 0.6

// Converter runs the rule engine over BPMN processes.
type Converter struct {
	rules     *Set
	threshold float64
	logger    zerolog.Logger
}

// Option configures a Converter.
type Option func(*Converter)

// WithRuleSet replaces the builtin rule table.
func WithRuleSet(s *Set) Option {
	return func(c *Converter) { c.rules = s }
}

// WithReviewThreshold sets the manual-review confidence threshold.
func WithReviewThreshold(t float64) Option {
	return func(c *Converter) { c.threshold = t }
}

// WithLogger sets the converter logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Converter) { c.logger = logger.With().Str("component", "rule-engine").Logger() }
}

// NewConverter creates a converter with the builtin rule set.
func NewConverter(opts ...Option) *Converter {
	c := &Converter{
		rules:     DefaultSet(),
		threshold: DefaultReviewThreshold,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Convert transforms one BPMN process into a target workflow and a
// conversion report. Conversion is deterministic: the same process always
// yields the same workflow.
func (c *Converter) Convert(p *bpmn.Process) (*target.Workflow, *Report, error) {
	if p == nil {
		return nil, nil, migrate.NewPermanentError("process is nil", nil).
			WithCode(migrate.ErrCodeValidation)
	}

	report := &Report{ProcessID: p.ID, ProcessName: p.Name}
	w := &target.Workflow{
		ExternalRef: p.ID,
		Name:        p.Name,
		Description: p.Documentation,
		Source:      "bpmn",
	}
	if w.Name == "" {
		w.Name = p.ID
	}

	cv := &conversion{
		conv:    c,
		report:  report,
		stepOf:  make(map[string]*target.Step),
		dropped: make(map[string]bool),
	}

	flat := cv.flatten(p, "")
	cv.graph = bpmn.NewGraph(flat)

	cv.prune(flat)
	cv.breakCycles()
	cv.dispatchAll(flat)
	cv.resolveDependencies(flat, w)
	cv.applyBoundaryDeadlines(flat, w)
	report.RemovedDependencies = reduceDependencies(w)

	for i := range w.Steps {
		for _, role := range w.Steps[i].Roles {
			w.AddRole(role)
		}
	}

	report.finalize(c.threshold)

	if err := w.Validate(); err != nil {
		return nil, report, migrate.NewPermanentError(
			fmt.Sprintf("converted workflow for process %s is invalid", p.ID), err).
			WithCode(migrate.ErrCodeInternal)
	}

	c.logger.Debug().
		Str("process", p.ID).
		Int("elements", len(report.Results)).
		Int("steps", len(w.Steps)).
		Float64("confidence", report.Confidence).
		Msg("process converted")

	return w, report, nil
}

// conversion is the per-process working state.
type conversion struct {
	conv    *Converter
	graph   *bpmn.Graph
	report  *Report
	stepOf  map[string]*target.Step
	groups  map[string]string
	skipped map[string]bool
	dropped map[string]bool
}

// flatten inlines sub-process contents into a single flat process. Nested
// element and flow IDs are prefixed with the sub-process ID; flows entering
// the sub-process are retargeted to its start events and flows leaving it
// are re-sourced from its end events.
func (cv *conversion) flatten(p *bpmn.Process, group string) *bpmn.Process {
	if cv.groups == nil {
		cv.groups = make(map[string]string)
	}
	flat := &bpmn.Process{
		ID:            p.ID,
		Name:          p.Name,
		Documentation: p.Documentation,
		Lanes:         p.Lanes,
	}

	for i := range p.Elements {
		e := p.Elements[i]
		if e.Kind != bpmn.KindSubProcess {
			cv.groups[e.ID] = group
			flat.Elements = append(flat.Elements, e)
			continue
		}

		subGroup := e.Label()
		if group != "" {
			subGroup = group + "/" + subGroup
		}
		sub := cv.flatten(e.Sub, subGroup)

		prefix := e.ID + "."
		var starts, ends []string
		for j := range sub.Elements {
			se := sub.Elements[j]
			se.ID = prefix + se.ID
			if se.AttachedTo != "" {
				se.AttachedTo = prefix + se.AttachedTo
			}
			if se.Default != "" {
				se.Default = prefix + se.Default
			}
			cv.groups[se.ID] = cv.groups[strings.TrimPrefix(se.ID, prefix)]
			if cv.groups[se.ID] == "" {
				cv.groups[se.ID] = subGroup
			}
			switch se.Kind {
			case bpmn.KindStartEvent:
				starts = append(starts, se.ID)
			case bpmn.KindEndEvent:
				ends = append(ends, se.ID)
			}
			flat.Elements = append(flat.Elements, se)
		}
		for _, sf := range sub.Flows {
			sf.ID = prefix + sf.ID
			sf.Source = prefix + sf.Source
			sf.Target = prefix + sf.Target
			flat.Flows = append(flat.Flows, sf)
		}

		cv.report.Results = append(cv.report.Results, ElementResult{
			ElementID:   e.ID,
			ElementName: e.Name,
			Kind:        bpmn.KindSubProcess,
			Rule:        "structure/flatten-subprocess",
			Confidence:  confGood,
			Notes: []string{fmt.Sprintf(
				"sub-process %q flattened into group %q", e.Label(), subGroup)},
		})

		// Rewire boundary flows around the removed sub-process element.
		for _, f := range p.Flows {
			switch {
			case f.Target == e.ID:
				for k, start := range starts {
					nf := f
					nf.ID = fmt.Sprintf("%s.in%d", f.ID, k)
					nf.Target = start
					flat.Flows = append(flat.Flows, nf)
				}
			case f.Source == e.ID:
				for k, end := range ends {
					nf := f
					nf.ID = fmt.Sprintf("%s.out%d", f.ID, k)
					nf.Source = end
					flat.Flows = append(flat.Flows, nf)
				}
			}
		}
	}

	for _, f := range p.Flows {
		if cv.subEndpoint(p, f) {
			continue
		}
		flat.Flows = append(flat.Flows, f)
	}
	return flat
}

// subEndpoint reports whether a flow touches a sub-process element and was
// therefore replaced by rewired flows.
func (cv *conversion) subEndpoint(p *bpmn.Process, f bpmn.Flow) bool {
	for i := range p.Elements {
		e := &p.Elements[i]
		if e.Kind == bpmn.KindSubProcess && (f.Source == e.ID || f.Target == e.ID) {
			return true
		}
	}
	return false
}

// prune marks elements unreachable from any start event. A process with no
// start event at all is converted in full, with a process-level note.
func (cv *conversion) prune(p *bpmn.Process) {
	cv.skipped = make(map[string]bool)
	if len(p.Elements) == 0 {
		return
	}
	if len(p.StartEvents()) == 0 {
		cv.report.Notes = append(cv.report.Notes,
			"process has no start event; reachability pruning skipped")
		return
	}
	reached := cv.graph.Reachable()
	for i := range p.Elements {
		id := p.Elements[i].ID
		if !reached[id] {
			cv.skipped[id] = true
			cv.report.Unreachable = append(cv.report.Unreachable, id)
		}
	}
}

// breakCycles removes back edges so the output dependency graph is acyclic.
func (cv *conversion) breakCycles() {
	for _, f := range cv.graph.BackEdges() {
		cv.dropped[f.ID] = true
		cv.report.DroppedFlows = append(cv.report.DroppedFlows, f.ID)
		cv.report.Notes = append(cv.report.Notes, fmt.Sprintf(
			"loop from %s back to %s cannot be represented; flow %s dropped",
			f.Source, f.Target, f.ID))
	}
}

// dispatchAll runs the rule table over every reachable element.
func (cv *conversion) dispatchAll(p *bpmn.Process) {
	loopTouched := make(map[string]bool)
	for _, f := range cv.graph.BackEdges() {
		loopTouched[f.Source] = true
		loopTouched[f.Target] = true
	}

	for i := range p.Elements {
		e := &p.Elements[i]
		if cv.skipped[e.ID] {
			continue
		}
		rc := &Context{Graph: cv.graph, Element: e, Group: cv.groups[e.ID]}
		ruleName, out := cv.conv.rules.Dispatch(rc)

		res := ElementResult{
			ElementID:   e.ID,
			ElementName: e.Name,
			Kind:        e.Kind,
			Rule:        ruleName,
			Confidence:  out.Confidence,
			Notes:       out.Notes,
		}
		if loopTouched[e.ID] {
			res.Confidence *= cycleAttenuation
		}

		if out.Step != nil {
			step := *out.Step
			step.ID = e.ID
			step.ExternalRef = e.ID
			step.Group = cv.groups[e.ID]
			cv.stepOf[e.ID] = &step
			res.StepID = step.ID
		}
		cv.report.Results = append(cv.report.Results, res)
	}
}

// depHit is one resolved predecessor: a step plus the conditions and
// deadline picked up along the path to it.
type depHit struct {
	stepID   string
	conds    []target.Condition
	deadline *target.Deadline
}

// resolveDependencies turns sequence flows into step dependencies, walking
// backwards through non-step elements (gateways, plain events). Conditions
// on exclusive and inclusive gateway branches attach to the successor step.
func (cv *conversion) resolveDependencies(p *bpmn.Process, w *target.Workflow) {
	for i := range p.Elements {
		e := &p.Elements[i]
		step := cv.stepOf[e.ID]
		if step == nil {
			continue
		}

		hits := cv.predecessors(e.ID, map[string]bool{e.ID: true})
		seenDep := make(map[string]bool)
		seenCond := make(map[string]bool)
		for _, h := range hits {
			if !seenDep[h.stepID] {
				seenDep[h.stepID] = true
				step.DependsOn = append(step.DependsOn, h.stepID)
			}
			for _, cond := range h.conds {
				key := cond.Field + "|" + cond.Operator + "|" + cond.Value + "|" + cond.Expression
				if !seenCond[key] {
					seenCond[key] = true
					step.Conditions = append(step.Conditions, cond)
				}
			}
			if step.Deadline == nil && h.deadline != nil {
				step.Deadline = h.deadline
			}
		}

		w.Steps = append(w.Steps, *step)
	}

	// Re-point stepOf at the copies held by the workflow so the deadline
	// pass below mutates the real steps.
	for i := range w.Steps {
		cv.stepOf[w.Steps[i].ID] = &w.Steps[i]
	}
}

// predecessors walks incoming flows of an element back to the nearest
// step-producing elements.
func (cv *conversion) predecessors(id string, seen map[string]bool) []depHit {
	var hits []depHit

	incoming := cv.graph.Incoming(id)
	e := cv.graph.Element(id)

	// Boundary events have no incoming flows; their predecessor is the
	// activity they are attached to.
	if e != nil && e.Kind == bpmn.KindBoundaryEvent && e.AttachedTo != "" {
		if s := cv.stepOf[e.AttachedTo]; s != nil {
			hits = append(hits, depHit{stepID: s.ID})
		}
		return hits
	}

	for _, f := range incoming {
		if cv.dropped[f.ID] {
			continue
		}
		src := cv.graph.Element(f.Source)
		if src == nil || cv.skipped[src.ID] {
			continue
		}

		var conds []target.Condition
		if f.Condition != "" {
			conds = append(conds, parseCondition(f.Condition))
		}

		if s := cv.stepOf[src.ID]; s != nil {
			hits = append(hits, depHit{stepID: s.ID, conds: conds})
			continue
		}
		if seen[src.ID] {
			continue
		}
		seen[src.ID] = true

		deeper := cv.predecessors(src.ID, seen)
		var deadline *target.Deadline
		if src.Kind == bpmn.KindIntermediateCatchEvent && src.Trigger == bpmn.TriggerTimer {
			if d, err := parseISODuration(src.TimerDuration); err == nil {
				deadline = &target.Deadline{Duration: d, Source: "timer_event"}
			}
		}
		for _, h := range deeper {
			h.conds = append(append([]target.Condition{}, h.conds...), conds...)
			if h.deadline == nil {
				h.deadline = deadline
			}
			hits = append(hits, h)
		}
	}
	return hits
}

// applyBoundaryDeadlines projects boundary timer events onto the deadline
// of the step of their attached activity.
func (cv *conversion) applyBoundaryDeadlines(p *bpmn.Process, w *target.Workflow) {
	for i := range p.Elements {
		e := &p.Elements[i]
		if cv.skipped[e.ID] || e.Kind != bpmn.KindBoundaryEvent || e.Trigger != bpmn.TriggerTimer {
			continue
		}
		step := cv.stepOf[e.AttachedTo]
		if step == nil {
			continue
		}
		d, err := parseISODuration(e.TimerDuration)
		if err != nil {
			continue
		}
		if step.Deadline == nil || d < step.Deadline.Duration {
			step.Deadline = &target.Deadline{Duration: d, Source: "boundary_timer"}
		}
	}
}
