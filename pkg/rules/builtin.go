package rules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/flowport/flowport/pkg/bpmn"
	"github.com/flowport/flowport/pkg/target"
)

// Confidence levels used by the builtin table. Exact mappings score high,
// approximations score low enough to land in the review list.
const (
	confExact       = 1.0
	confHigh        = 0.9
	confGood        = 0.8
	confModerate    = 0.7
	confApproximate = 0.5
	confWeak        = 0.4
	confPlaceholder = 0.3
	confFallback    = 0.2
)

// DefaultSet builds the builtin rule table. Rules for the same kind are
// ordered most-specific first.
func DefaultSet() *Set {
	s := NewSet(Rule{
		Name: "fallback/manual-review",
		Apply: func(c *Context) Outcome {
			return Outcome{
				Confidence: confFallback,
				Notes: []string{fmt.Sprintf(
					"no mapping for %s element %q, manual review required",
					c.Element.Kind, c.Element.Label())},
			}
		},
	})

	registerEventRules(s)
	registerTaskRules(s)
	registerGatewayRules(s)
	return s
}

func registerEventRules(s *Set) {
	s.Register(Rule{
		Name:  "event/start-plain",
		Kind:  bpmn.KindStartEvent,
		Match: func(c *Context) bool { return c.Element.Trigger == bpmn.TriggerNone },
		Apply: func(c *Context) Outcome { return Outcome{Confidence: confExact} },
	})
	s.Register(Rule{
		Name: "event/start-triggered",
		Kind: bpmn.KindStartEvent,
		Apply: func(c *Context) Outcome {
			return Outcome{
				Confidence: confModerate,
				Notes: []string{fmt.Sprintf(
					"%s start trigger is not migrated; workflow launches are manual",
					c.Element.Trigger)},
			}
		},
	})
	s.Register(Rule{
		Name:  "event/end-plain",
		Kind:  bpmn.KindEndEvent,
		Match: func(c *Context) bool { return c.Element.Trigger == bpmn.TriggerNone },
		Apply: func(c *Context) Outcome { return Outcome{Confidence: confExact} },
	})
	s.Register(Rule{
		Name: "event/end-triggered",
		Kind: bpmn.KindEndEvent,
		Apply: func(c *Context) Outcome {
			return Outcome{
				Confidence: confApproximate,
				Notes: []string{fmt.Sprintf(
					"%s end event has no equivalent; process simply completes",
					c.Element.Trigger)},
			}
		},
	})
	s.Register(Rule{
		Name:  "event/intermediate-timer",
		Kind:  bpmn.KindIntermediateCatchEvent,
		Match: func(c *Context) bool { return c.Element.Trigger == bpmn.TriggerTimer },
		Apply: func(c *Context) Outcome {
			// The timer becomes a deadline on the successor step; the
			// engine picks TimerDuration up during dependency resolution.
			out := Outcome{Confidence: confGood}
			if _, err := parseISODuration(c.Element.TimerDuration); err != nil {
				out.Confidence = confWeak
				out.Notes = append(out.Notes, fmt.Sprintf(
					"timer duration %q not understood, deadline dropped",
					c.Element.TimerDuration))
			}
			return out
		},
	})
	s.Register(Rule{
		Name: "event/intermediate-wait",
		Kind: bpmn.KindIntermediateCatchEvent,
		Apply: func(c *Context) Outcome {
			// Message and signal waits become approval steps: someone
			// confirms the external thing happened.
			return Outcome{
				Step: &target.Step{
					Name: "Confirm: " + c.Element.Label(),
					Kind: target.StepKindApproval,
				},
				Confidence: confWeak,
				Notes: []string{fmt.Sprintf(
					"%s wait mapped to a manual confirmation step",
					c.Element.Trigger)},
			}
		},
	})
	s.Register(Rule{
		Name: "event/intermediate-throw",
		Kind: bpmn.KindIntermediateThrowEvent,
		Apply: func(c *Context) Outcome {
			return Outcome{
				Confidence: confApproximate,
				Notes: []string{fmt.Sprintf(
					"throw event %q dropped; notify downstream systems manually",
					c.Element.Label())},
			}
		},
	})
	s.Register(Rule{
		Name:  "event/boundary-timer",
		Kind:  bpmn.KindBoundaryEvent,
		Match: func(c *Context) bool { return c.Element.Trigger == bpmn.TriggerTimer },
		Apply: func(c *Context) Outcome {
			// Deadline is applied to the attached activity's step by the
			// engine. Escalation paths off the boundary are dropped.
			out := Outcome{Confidence: confModerate}
			if len(c.Graph.Outgoing(c.Element.ID)) > 0 {
				out.Notes = append(out.Notes,
					"timer escalation path dropped; deadline kept on the attached step")
			}
			return out
		},
	})
	s.Register(Rule{
		Name: "event/boundary-other",
		Kind: bpmn.KindBoundaryEvent,
		Apply: func(c *Context) Outcome {
			return Outcome{
				Confidence: confWeak,
				Notes: []string{fmt.Sprintf(
					"%s boundary event has no equivalent and was dropped",
					c.Element.Trigger)},
			}
		},
	})
}

func registerTaskRules(s *Set) {
	humanTask := func(conf float64) func(c *Context) Outcome {
		return func(c *Context) Outcome {
			step := &target.Step{
				Name:        c.Element.Label(),
				Kind:        target.StepKindTask,
				Description: c.Element.Documentation,
			}
			if role := taskRole(c); role != "" {
				step.Roles = []string{role}
			}
			return Outcome{Step: step, Confidence: conf}
		}
	}

	s.Register(Rule{Name: "task/user", Kind: bpmn.KindUserTask, Apply: humanTask(confExact)})
	s.Register(Rule{Name: "task/manual", Kind: bpmn.KindManualTask, Apply: humanTask(confHigh)})
	s.Register(Rule{Name: "task/plain", Kind: bpmn.KindTask, Apply: humanTask(confGood)})

	s.Register(Rule{
		Name: "task/service",
		Kind: bpmn.KindServiceTask,
		Apply: func(c *Context) Outcome {
			return Outcome{
				Step: &target.Step{
					Name:        c.Element.Label(),
					Kind:        target.StepKindTask,
					Description: c.Element.Documentation,
				},
				Confidence: confApproximate,
				Notes: []string{
					"automated service call became a manual step; re-automate on the target side"},
			}
		},
	})
	s.Register(Rule{
		Name: "task/script",
		Kind: bpmn.KindScriptTask,
		Apply: func(c *Context) Outcome {
			return Outcome{
				Step: &target.Step{
					Name: c.Element.Label(),
					Kind: target.StepKindTask,
				},
				Confidence: confWeak,
				Notes:      []string{"script task logic is not migrated"},
			}
		},
	})
	s.Register(Rule{
		Name: "task/send",
		Kind: bpmn.KindSendTask,
		Apply: func(c *Context) Outcome {
			return Outcome{
				Step: &target.Step{
					Name: c.Element.Label(),
					Kind: target.StepKindTask,
				},
				Confidence: confApproximate,
				Notes:      []string{"send task became a manual notification step"},
			}
		},
	})
	s.Register(Rule{
		Name: "task/receive",
		Kind: bpmn.KindReceiveTask,
		Apply: func(c *Context) Outcome {
			return Outcome{
				Step: &target.Step{
					Name: "Confirm received: " + c.Element.Label(),
					Kind: target.StepKindApproval,
				},
				Confidence: confApproximate,
				Notes:      []string{"receive task mapped to a manual confirmation step"},
			}
		},
	})
	s.Register(Rule{
		Name: "task/business-rule",
		Kind: bpmn.KindBusinessRuleTask,
		Apply: func(c *Context) Outcome {
			return Outcome{
				Step: &target.Step{
					Name: c.Element.Label(),
					Kind: target.StepKindApproval,
				},
				Confidence: confWeak,
				Notes:      []string{"decision table became a manual approval; decision logic is not migrated"},
			}
		},
	})
	s.Register(Rule{
		Name: "task/call-activity",
		Kind: bpmn.KindCallActivity,
		Apply: func(c *Context) Outcome {
			note := "called process must be migrated separately"
			if c.Element.CalledElement != "" {
				note = fmt.Sprintf("called process %q must be migrated separately",
					c.Element.CalledElement)
			}
			return Outcome{
				Step: &target.Step{
					Name: "Run sub-workflow: " + c.Element.Label(),
					Kind: target.StepKindTask,
				},
				Confidence: confPlaceholder,
				Notes:      []string{note},
			}
		},
	})
}

func registerGatewayRules(s *Set) {
	s.Register(Rule{
		Name:  "gateway/dead-end",
		Kind:  bpmn.KindExclusiveGateway,
		Match: func(c *Context) bool { return c.OutDegree() == 0 },
		Apply: deadEndGateway,
	})
	s.Register(Rule{
		Name: "gateway/exclusive",
		Kind: bpmn.KindExclusiveGateway,
		Apply: func(c *Context) Outcome {
			// Branch conditions are attached to successor steps during
			// dependency resolution. A split with unconditioned,
			// non-default branches cannot be routed automatically.
			out := Outcome{Confidence: confHigh}
			if c.OutDegree() > 1 {
				for _, f := range c.Graph.Outgoing(c.Element.ID) {
					if f.Condition == "" && f.ID != c.Element.Default {
						out.Confidence = confApproximate
						out.Notes = append(out.Notes, fmt.Sprintf(
							"branch %s of gateway %q has no condition; routing must be reviewed",
							f.ID, c.Element.Label()))
					}
				}
			}
			return out
		},
	})
	s.Register(Rule{
		Name:  "gateway/parallel-dead-end",
		Kind:  bpmn.KindParallelGateway,
		Match: func(c *Context) bool { return c.OutDegree() == 0 },
		Apply: deadEndGateway,
	})
	s.Register(Rule{
		Name: "gateway/parallel",
		Kind: bpmn.KindParallelGateway,
		Apply: func(c *Context) Outcome {
			// Forks become independent branches; joins become
			// multi-dependencies on the successor. Lossless.
			return Outcome{Confidence: confExact}
		},
	})
	s.Register(Rule{
		Name: "gateway/inclusive",
		Kind: bpmn.KindInclusiveGateway,
		Apply: func(c *Context) Outcome {
			return Outcome{
				Confidence: confApproximate,
				Notes: []string{
					"inclusive gateway approximated with independent conditional branches"},
			}
		},
	})
	s.Register(Rule{
		Name: "gateway/event-based",
		Kind: bpmn.KindEventBasedGateway,
		Apply: func(c *Context) Outcome {
			return Outcome{
				Confidence: confWeak,
				Notes: []string{
					"event-based gateway approximated; racing event semantics are lost"},
			}
		},
	})
}

func deadEndGateway(c *Context) Outcome {
	return Outcome{
		Confidence: confWeak,
		Notes: []string{fmt.Sprintf(
			"gateway %q has no outgoing flows and was skipped", c.Element.Label())},
	}
}

// taskRole derives a role name from the task assignee or its lane.
func taskRole(c *Context) string {
	if c.Element.Assignee != "" {
		return c.Element.Assignee
	}
	return c.LaneName()
}

var condRe = regexp.MustCompile(`^\s*([\w.]+)\s*(==|!=|>=|<=|>|<)\s*(.+?)\s*$`)

// parseCondition decomposes a flow condition expression into the target
// condition model. Camunda-style "${...}" wrappers are stripped first.
// Expressions that do not decompose are preserved verbatim.
func parseCondition(expr string) target.Condition {
	raw := strings.TrimSpace(expr)
	inner := raw
	if strings.HasPrefix(inner, "${") && strings.HasSuffix(inner, "}") {
		inner = strings.TrimSpace(inner[2 : len(inner)-1])
	}
	m := condRe.FindStringSubmatch(inner)
	if m == nil {
		return target.Condition{Expression: raw}
	}
	op := map[string]string{
		"==": "equals",
		"!=": "not_equals",
		">":  "greater_than",
		"<":  "less_than",
		">=": "greater_than_or_equal",
		"<=": "less_than_or_equal",
	}[m[2]]
	value := strings.Trim(m[3], `"'`)
	return target.Condition{Field: m[1], Operator: op, Value: value}
}
