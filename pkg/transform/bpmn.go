package transform

import (
	"context"

	"github.com/flowport/flowport/pkg/bpmn"
	"github.com/flowport/flowport/pkg/migrate"
	"github.com/flowport/flowport/pkg/rules"
	"github.com/flowport/flowport/pkg/telemetry"
)

// BPMNTransformer converts parsed BPMN processes through the rule
// engine. It serves both the bpmn-files and camunda vendors.
type BPMNTransformer struct {
	converter *rules.Converter
	overrides Overrides
	hooks     *HookSet
	log       *telemetry.Logger
}

// NewBPMNTransformer wraps a converter. A nil converter gets the
// default rule set.
func NewBPMNTransformer(c *rules.Converter, overrides Overrides, hooks *HookSet, log *telemetry.Logger) *BPMNTransformer {
	if c == nil {
		c = rules.NewConverter()
	}
	return &BPMNTransformer{
		converter: c,
		overrides: overrides,
		hooks:     hooks,
		log:       log.NewComponentLogger("transform.bpmn"),
	}
}

func (t *BPMNTransformer) Transform(ctx context.Context, e *migrate.Entity) (*migrate.TransformResult, error) {
	process, ok := e.Payload.(*bpmn.Process)
	if !ok {
		return nil, payloadError("bpmn", "*bpmn.Process", e.Payload)
	}

	w, report, err := t.converter.Convert(process)
	if err != nil {
		return nil, err
	}
	w.ExternalRef = e.Ref

	skipped := map[string]bool{}
	steps := w.Steps[:0]
	for i := range w.Steps {
		step := w.Steps[i]
		skip, oerr := applyOverride(ctx, t.overrides.Find(step.ExternalRef), &step, t.hooks)
		if oerr != nil {
			return nil, oerr
		}
		if skip {
			skipped[step.ID] = true
			continue
		}
		steps = append(steps, step)
	}
	w.Steps = steps

	// Skipped steps take their dependency edges with them.
	if len(skipped) > 0 {
		for i := range w.Steps {
			step := &w.Steps[i]
			deps := step.DependsOn[:0]
			for _, d := range step.DependsOn {
				if !skipped[d] {
					deps = append(deps, d)
				}
			}
			step.DependsOn = deps
		}
	}
	collectRoles(w)

	notes := make([]string, 0, len(report.Notes))
	notes = append(notes, report.Notes...)
	for _, r := range report.ReviewNeeded {
		notes = append(notes, "review: "+r)
	}

	t.log.WithEntity(e.Ref).Debugf("converted process: %d steps, confidence %.2f",
		len(w.Steps), report.Confidence)

	return &migrate.TransformResult{
		Workflow:   w,
		Confidence: report.Confidence,
		Notes:      notes,
	}, nil
}
