package rules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/flowport/flowport/pkg/bpmn"
)

// ElementResult records how one BPMN element was converted.
type ElementResult struct {
	// ElementID is the BPMN element ID (flattened form for sub-process
	// contents).
	ElementID string `json:"element_id" yaml:"element_id"`

	// ElementName is the element label.
	ElementName string `json:"element_name,omitempty" yaml:"element_name,omitempty"`

	// Kind is the BPMN element kind.
	Kind bpmn.ElementKind `json:"kind" yaml:"kind"`

	// Rule is the name of the rule that handled the element.
	Rule string `json:"rule" yaml:"rule"`

	// Confidence is the final per-element confidence in [0,1], after any
	// heuristic attenuation.
	Confidence float64 `json:"confidence" yaml:"confidence"`

	// StepID is the target step derived from the element, if any.
	StepID string `json:"step_id,omitempty" yaml:"step_id,omitempty"`

	// Notes are manual-review remarks.
	Notes []string `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// Report summarizes a process conversion.
type Report struct {
	// ProcessID and ProcessName identify the source process.
	ProcessID   string `json:"process_id" yaml:"process_id"`
	ProcessName string `json:"process_name,omitempty" yaml:"process_name,omitempty"`

	// Results holds one entry per converted element, in element order.
	Results []ElementResult `json:"results" yaml:"results"`

	// DroppedFlows lists sequence flow IDs removed to break cycles.
	DroppedFlows []string `json:"dropped_flows,omitempty" yaml:"dropped_flows,omitempty"`

	// Unreachable lists element IDs pruned as unreachable from any start
	// event.
	Unreachable []string `json:"unreachable,omitempty" yaml:"unreachable,omitempty"`

	// RemovedDependencies counts edges removed by transitive reduction.
	RemovedDependencies int `json:"removed_dependencies,omitempty" yaml:"removed_dependencies,omitempty"`

	// Confidence is the aggregate process confidence: a weighted mean of
	// element confidences where step-producing elements weigh double,
	// 1.0 for an empty process.
	Confidence float64 `json:"confidence" yaml:"confidence"`

	// ReviewNeeded lists element IDs whose confidence fell below the
	// review threshold, sorted.
	ReviewNeeded []string `json:"review_needed,omitempty" yaml:"review_needed,omitempty"`

	// Notes are process-level remarks.
	Notes []string `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// finalize computes the aggregate confidence and the review list.
func (r *Report) finalize(threshold float64) {
	if len(r.Results) == 0 {
		r.Confidence = 1.0
		return
	}
	sum, weight := 0.0, 0.0
	for i := range r.Results {
		res := &r.Results[i]
		w := 1.0
		if res.StepID != "" {
			w = 2.0
		}
		sum += res.Confidence * w
		weight += w
		if res.Confidence < threshold {
			r.ReviewNeeded = append(r.ReviewNeeded, res.ElementID)
		}
	}
	r.Confidence = sum / weight
	sort.Strings(r.ReviewNeeded)
}

// Summary renders a short human-readable report summary.
func (r *Report) Summary() string {
	var b strings.Builder
	name := r.ProcessName
	if name == "" {
		name = r.ProcessID
	}
	fmt.Fprintf(&b, "process %q: %d elements, confidence %.2f\n",
		name, len(r.Results), r.Confidence)
	if len(r.ReviewNeeded) > 0 {
		fmt.Fprintf(&b, "  review needed: %s\n", strings.Join(r.ReviewNeeded, ", "))
	}
	if len(r.DroppedFlows) > 0 {
		fmt.Fprintf(&b, "  cycle flows dropped: %s\n", strings.Join(r.DroppedFlows, ", "))
	}
	if len(r.Unreachable) > 0 {
		fmt.Fprintf(&b, "  unreachable elements pruned: %s\n", strings.Join(r.Unreachable, ", "))
	}
	for _, n := range r.Notes {
		fmt.Fprintf(&b, "  note: %s\n", n)
	}
	return b.String()
}
