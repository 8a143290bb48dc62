package bpmn

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/flowport/flowport/pkg/migrate"
)

// Parse decodes a BPMN 2.0 XML document and returns the processes it
// defines. Duplicate element IDs within a process are a permanent error.
func Parse(data []byte) ([]*Process, error) {
	var defs xmlDefinitions
	if err := xml.Unmarshal(data, &defs); err != nil {
		return nil, migrate.NewPermanentError("failed to decode BPMN XML", err).
			WithCode(migrate.ErrCodeParse)
	}
	if len(defs.Processes) == 0 {
		return nil, migrate.NewPermanentError("BPMN document defines no process", nil).
			WithCode(migrate.ErrCodeParse)
	}

	processes := make([]*Process, 0, len(defs.Processes))
	for i := range defs.Processes {
		p, err := buildProcess(&defs.Processes[i])
		if err != nil {
			return nil, err
		}
		processes = append(processes, p)
	}
	return processes, nil
}

// ParseOne decodes a BPMN document expected to hold exactly one process.
// Documents with collaborations may carry multiple processes; the first
// non-empty one is returned.
func ParseOne(data []byte) (*Process, error) {
	processes, err := Parse(data)
	if err != nil {
		return nil, err
	}
	for _, p := range processes {
		if len(p.Elements) > 0 {
			return p, nil
		}
	}
	return processes[0], nil
}

func buildProcess(xp *xmlProcess) (*Process, error) {
	p := &Process{
		ID:            xp.ID,
		Name:          xp.Name,
		Documentation: strings.TrimSpace(xp.Documentation),
	}

	add := func(e Element) { p.Elements = append(p.Elements, e) }

	for i := range xp.StartEvents {
		add(xp.StartEvents[i].element(KindStartEvent))
	}
	for i := range xp.EndEvents {
		add(xp.EndEvents[i].element(KindEndEvent))
	}
	for i := range xp.IntermediateCatchEvents {
		add(xp.IntermediateCatchEvents[i].element(KindIntermediateCatchEvent))
	}
	for i := range xp.IntermediateThrowEvents {
		add(xp.IntermediateThrowEvents[i].element(KindIntermediateThrowEvent))
	}
	for i := range xp.BoundaryEvents {
		e := xp.BoundaryEvents[i].element(KindBoundaryEvent)
		e.AttachedTo = xp.BoundaryEvents[i].AttachedTo
		add(e)
	}
	for i := range xp.Tasks {
		add(xp.Tasks[i].element(KindTask))
	}
	for i := range xp.UserTasks {
		add(xp.UserTasks[i].element(KindUserTask))
	}
	for i := range xp.ServiceTasks {
		add(xp.ServiceTasks[i].element(KindServiceTask))
	}
	for i := range xp.ScriptTasks {
		add(xp.ScriptTasks[i].element(KindScriptTask))
	}
	for i := range xp.ManualTasks {
		add(xp.ManualTasks[i].element(KindManualTask))
	}
	for i := range xp.SendTasks {
		add(xp.SendTasks[i].element(KindSendTask))
	}
	for i := range xp.ReceiveTasks {
		add(xp.ReceiveTasks[i].element(KindReceiveTask))
	}
	for i := range xp.BusinessRuleTasks {
		add(xp.BusinessRuleTasks[i].element(KindBusinessRuleTask))
	}
	for i := range xp.CallActivities {
		e := xp.CallActivities[i].element(KindCallActivity)
		e.CalledElement = xp.CallActivities[i].CalledElement
		add(e)
	}
	for i := range xp.ExclusiveGateways {
		add(xp.ExclusiveGateways[i].element(KindExclusiveGateway))
	}
	for i := range xp.ParallelGateways {
		add(xp.ParallelGateways[i].element(KindParallelGateway))
	}
	for i := range xp.InclusiveGateways {
		add(xp.InclusiveGateways[i].element(KindInclusiveGateway))
	}
	for i := range xp.EventBasedGateways {
		add(xp.EventBasedGateways[i].element(KindEventBasedGateway))
	}
	for i := range xp.SubProcesses {
		sp := &xp.SubProcesses[i]
		sub, err := buildProcess(&sp.xmlProcess)
		if err != nil {
			return nil, err
		}
		add(Element{
			ID:            sp.ID,
			Name:          sp.Name,
			Kind:          KindSubProcess,
			Documentation: strings.TrimSpace(sp.Documentation),
			Trigger:       TriggerNone,
			Sub:           sub,
		})
	}

	for _, xf := range xp.SequenceFlows {
		p.Flows = append(p.Flows, Flow{
			ID:        xf.ID,
			Name:      xf.Name,
			Source:    xf.SourceRef,
			Target:    xf.TargetRef,
			Condition: strings.TrimSpace(xf.Condition),
		})
	}

	for _, ls := range xp.LaneSets {
		for _, xl := range ls.Lanes {
			lane := Lane{ID: xl.ID, Name: xl.Name, ElementIDs: xl.FlowNodeRefs}
			p.Lanes = append(p.Lanes, lane)
		}
	}
	assignLanes(p)

	if err := checkIDs(p); err != nil {
		return nil, err
	}
	return p, nil
}

// assignLanes back-fills Element.Lane from lane flowNodeRef lists.
func assignLanes(p *Process) {
	laneOf := make(map[string]string)
	for _, lane := range p.Lanes {
		for _, id := range lane.ElementIDs {
			laneOf[id] = lane.ID
		}
	}
	for i := range p.Elements {
		p.Elements[i].Lane = laneOf[p.Elements[i].ID]
	}
}

func checkIDs(p *Process) error {
	seen := make(map[string]bool, len(p.Elements)+len(p.Flows))
	for i := range p.Elements {
		id := p.Elements[i].ID
		if id == "" {
			return migrate.NewPermanentError(
				fmt.Sprintf("process %s contains an element without ID", p.ID), nil).
				WithCode(migrate.ErrCodeParse)
		}
		if seen[id] {
			return migrate.NewPermanentError(
				fmt.Sprintf("duplicate element ID %s in process %s", id, p.ID), nil).
				WithCode(migrate.ErrCodeParse)
		}
		seen[id] = true
	}
	for _, f := range p.Flows {
		if seen[f.ID] {
			return migrate.NewPermanentError(
				fmt.Sprintf("duplicate flow ID %s in process %s", f.ID, p.ID), nil).
				WithCode(migrate.ErrCodeParse)
		}
		seen[f.ID] = true
	}
	return nil
}

// XML mapping types. Struct tags use local names only, so any BPMN
// namespace prefix (bpmn:, bpmn2:, none) decodes the same way.

type xmlDefinitions struct {
	XMLName   xml.Name     `xml:"definitions"`
	Processes []xmlProcess `xml:"process"`
}

type xmlProcess struct {
	ID            string `xml:"id,attr"`
	Name          string `xml:"name,attr"`
	Documentation string `xml:"documentation"`

	StartEvents             []xmlEvent      `xml:"startEvent"`
	EndEvents               []xmlEvent      `xml:"endEvent"`
	IntermediateCatchEvents []xmlEvent      `xml:"intermediateCatchEvent"`
	IntermediateThrowEvents []xmlEvent      `xml:"intermediateThrowEvent"`
	BoundaryEvents          []xmlEvent      `xml:"boundaryEvent"`
	Tasks                   []xmlNode       `xml:"task"`
	UserTasks               []xmlNode       `xml:"userTask"`
	ServiceTasks            []xmlNode       `xml:"serviceTask"`
	ScriptTasks             []xmlNode       `xml:"scriptTask"`
	ManualTasks             []xmlNode       `xml:"manualTask"`
	SendTasks               []xmlNode       `xml:"sendTask"`
	ReceiveTasks            []xmlNode       `xml:"receiveTask"`
	BusinessRuleTasks       []xmlNode       `xml:"businessRuleTask"`
	CallActivities          []xmlNode       `xml:"callActivity"`
	ExclusiveGateways       []xmlNode       `xml:"exclusiveGateway"`
	ParallelGateways        []xmlNode       `xml:"parallelGateway"`
	InclusiveGateways       []xmlNode       `xml:"inclusiveGateway"`
	EventBasedGateways      []xmlNode       `xml:"eventBasedGateway"`
	SubProcesses            []xmlSubProcess `xml:"subProcess"`
	SequenceFlows           []xmlFlow       `xml:"sequenceFlow"`
	LaneSets                []xmlLaneSet    `xml:"laneSet"`
}

type xmlNode struct {
	ID            string `xml:"id,attr"`
	Name          string `xml:"name,attr"`
	Default       string `xml:"default,attr"`
	Assignee      string `xml:"assignee,attr"`
	CalledElement string `xml:"calledElement,attr"`
	AttachedTo    string `xml:"attachedToRef,attr"`
	Documentation string `xml:"documentation"`
}

func (n *xmlNode) element(kind ElementKind) Element {
	return Element{
		ID:            n.ID,
		Name:          n.Name,
		Kind:          kind,
		Documentation: strings.TrimSpace(n.Documentation),
		Default:       n.Default,
		Assignee:      n.Assignee,
		Trigger:       TriggerNone,
	}
}

type xmlEvent struct {
	xmlNode
	Timer   *xmlTimer `xml:"timerEventDefinition"`
	Message *struct{} `xml:"messageEventDefinition"`
	Signal  *struct{} `xml:"signalEventDefinition"`
	Error   *struct{} `xml:"errorEventDefinition"`
}

type xmlTimer struct {
	Duration string `xml:"timeDuration"`
	Date     string `xml:"timeDate"`
	Cycle    string `xml:"timeCycle"`
}

func (e *xmlEvent) element(kind ElementKind) Element {
	el := e.xmlNode.element(kind)
	switch {
	case e.Timer != nil:
		el.Trigger = TriggerTimer
		el.TimerDuration = strings.TrimSpace(e.Timer.Duration)
		if el.TimerDuration == "" {
			el.TimerDuration = strings.TrimSpace(e.Timer.Cycle)
		}
	case e.Message != nil:
		el.Trigger = TriggerMessage
	case e.Signal != nil:
		el.Trigger = TriggerSignal
	case e.Error != nil:
		el.Trigger = TriggerError
	}
	return el
}

type xmlSubProcess struct {
	xmlProcess
}

type xmlFlow struct {
	ID        string `xml:"id,attr"`
	Name      string `xml:"name,attr"`
	SourceRef string `xml:"sourceRef,attr"`
	TargetRef string `xml:"targetRef,attr"`
	Condition string `xml:"conditionExpression"`
}

type xmlLaneSet struct {
	Lanes []xmlLane `xml:"lane"`
}

type xmlLane struct {
	ID           string   `xml:"id,attr"`
	Name         string   `xml:"name,attr"`
	FlowNodeRefs []string `xml:"flowNodeRef"`
}
