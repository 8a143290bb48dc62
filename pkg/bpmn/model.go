// Package bpmn provides a typed model for BPMN 2.0 process definitions and
// a parser for the BPMN XML interchange format. Only the control-flow subset
// relevant to workflow migration is modeled: events, tasks, gateways,
// sequence flows, lanes, and sub-processes.
package bpmn

// ElementKind identifies the BPMN type of a flow node.
type ElementKind string

const (
	KindStartEvent             ElementKind = "startEvent"
	KindEndEvent               ElementKind = "endEvent"
	KindIntermediateCatchEvent ElementKind = "intermediateCatchEvent"
	KindIntermediateThrowEvent ElementKind = "intermediateThrowEvent"
	KindBoundaryEvent          ElementKind = "boundaryEvent"
	KindTask                   ElementKind = "task"
	KindUserTask               ElementKind = "userTask"
	KindServiceTask            ElementKind = "serviceTask"
	KindScriptTask             ElementKind = "scriptTask"
	KindManualTask             ElementKind = "manualTask"
	KindSendTask               ElementKind = "sendTask"
	KindReceiveTask            ElementKind = "receiveTask"
	KindBusinessRuleTask       ElementKind = "businessRuleTask"
	KindCallActivity           ElementKind = "callActivity"
	KindSubProcess             ElementKind = "subProcess"
	KindExclusiveGateway       ElementKind = "exclusiveGateway"
	KindParallelGateway        ElementKind = "parallelGateway"
	KindInclusiveGateway       ElementKind = "inclusiveGateway"
	KindEventBasedGateway      ElementKind = "eventBasedGateway"
)

// IsGateway reports whether the kind is any gateway variant.
func (k ElementKind) IsGateway() bool {
	switch k {
	case KindExclusiveGateway, KindParallelGateway, KindInclusiveGateway, KindEventBasedGateway:
		return true
	}
	return false
}

// IsTask reports whether the kind is any task variant.
func (k ElementKind) IsTask() bool {
	switch k {
	case KindTask, KindUserTask, KindServiceTask, KindScriptTask,
		KindManualTask, KindSendTask, KindReceiveTask, KindBusinessRuleTask:
		return true
	}
	return false
}

// IsEvent reports whether the kind is any event variant.
func (k ElementKind) IsEvent() bool {
	switch k {
	case KindStartEvent, KindEndEvent, KindIntermediateCatchEvent,
		KindIntermediateThrowEvent, KindBoundaryEvent:
		return true
	}
	return false
}

// EventTrigger identifies the event definition attached to an event element.
type EventTrigger string

const (
	TriggerNone    EventTrigger = "none"
	TriggerTimer   EventTrigger = "timer"
	TriggerMessage EventTrigger = "message"
	TriggerSignal  EventTrigger = "signal"
	TriggerError   EventTrigger = "error"
)

// Element is a BPMN flow node.
type Element struct {
	// ID is the element ID, unique within the process.
	ID string

	// Name is the element label, possibly empty.
	Name string

	// Kind is the BPMN element type.
	Kind ElementKind

	// Documentation is the element's documentation text.
	Documentation string

	// Lane is the ID of the lane containing this element, if any.
	Lane string

	// Trigger is the event definition for event elements, TriggerNone
	// otherwise.
	Trigger EventTrigger

	// TimerDuration holds the ISO 8601 duration of a timer definition.
	TimerDuration string

	// AttachedTo is the activity ID a boundary event is attached to.
	AttachedTo string

	// Default is the default sequence flow ID of an exclusive or
	// inclusive gateway.
	Default string

	// Assignee is the resource assignment of a user task, if declared.
	Assignee string

	// CalledElement is the process referenced by a call activity.
	CalledElement string

	// Sub is the nested process of a subProcess element.
	Sub *Process
}

// Flow is a BPMN sequence flow.
type Flow struct {
	// ID is the flow ID, unique within the process.
	ID string

	// Name is the flow label, possibly empty.
	Name string

	// Source and Target are element IDs.
	Source string
	Target string

	// Condition is the condition expression text, if any.
	Condition string
}

// Lane is a BPMN lane, typically representing a role or team.
type Lane struct {
	// ID is the lane ID.
	ID string

	// Name is the lane label.
	Name string

	// ElementIDs lists the flow nodes assigned to this lane.
	ElementIDs []string
}

// Process is a parsed BPMN process definition.
type Process struct {
	// ID is the process ID.
	ID string

	// Name is the process name, possibly empty.
	Name string

	// Documentation is the process documentation text.
	Documentation string

	// Elements are all flow nodes in document order.
	Elements []Element

	// Flows are all sequence flows in document order.
	Flows []Flow

	// Lanes are the declared lanes.
	Lanes []Lane
}

// ElementByID returns the element with the given ID, or nil.
func (p *Process) ElementByID(id string) *Element {
	for i := range p.Elements {
		if p.Elements[i].ID == id {
			return &p.Elements[i]
		}
	}
	return nil
}

// StartEvents returns all start events of the process.
func (p *Process) StartEvents() []*Element {
	var starts []*Element
	for i := range p.Elements {
		if p.Elements[i].Kind == KindStartEvent {
			starts = append(starts, &p.Elements[i])
		}
	}
	return starts
}

// Label returns the element name, falling back to a kind-derived label for
// unnamed elements.
func (e *Element) Label() string {
	if e.Name != "" {
		return e.Name
	}
	return string(e.Kind) + " " + e.ID
}
