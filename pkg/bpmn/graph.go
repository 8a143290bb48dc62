package bpmn

import "sort"

// Graph is an indexed view of a process with flow adjacency, used by the
// rule engine for structural analysis.
type Graph struct {
	Process *Process

	elements map[string]*Element
	outgoing map[string][]*Flow
	incoming map[string][]*Flow
}

// NewGraph indexes a process for traversal. Flows whose source or target
// does not resolve to an element are kept in the process but excluded from
// adjacency.
func NewGraph(p *Process) *Graph {
	g := &Graph{
		Process:  p,
		elements: make(map[string]*Element, len(p.Elements)),
		outgoing: make(map[string][]*Flow, len(p.Elements)),
		incoming: make(map[string][]*Flow, len(p.Elements)),
	}
	for i := range p.Elements {
		g.elements[p.Elements[i].ID] = &p.Elements[i]
	}
	for i := range p.Flows {
		f := &p.Flows[i]
		if _, ok := g.elements[f.Source]; !ok {
			continue
		}
		if _, ok := g.elements[f.Target]; !ok {
			continue
		}
		g.outgoing[f.Source] = append(g.outgoing[f.Source], f)
		g.incoming[f.Target] = append(g.incoming[f.Target], f)
	}
	return g
}

// Element returns the element with the given ID, or nil.
func (g *Graph) Element(id string) *Element {
	return g.elements[id]
}

// Outgoing returns the outgoing sequence flows of an element.
func (g *Graph) Outgoing(id string) []*Flow {
	return g.outgoing[id]
}

// Incoming returns the incoming sequence flows of an element.
func (g *Graph) Incoming(id string) []*Flow {
	return g.incoming[id]
}

// Reachable returns the set of element IDs reachable from any start event,
// following sequence flows. Boundary events count as reachable when their
// attached activity is.
func (g *Graph) Reachable() map[string]bool {
	reached := make(map[string]bool)
	var queue []string
	for _, start := range g.Process.StartEvents() {
		queue = append(queue, start.ID)
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if reached[id] {
			continue
		}
		reached[id] = true
		for _, f := range g.outgoing[id] {
			queue = append(queue, f.Target)
		}
	}
	// Second pass for boundary events attached to reachable activities.
	for i := range g.Process.Elements {
		e := &g.Process.Elements[i]
		if e.Kind == KindBoundaryEvent && reached[e.AttachedTo] && !reached[e.ID] {
			reached[e.ID] = true
			stack := []string{e.ID}
			for len(stack) > 0 {
				id := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				for _, f := range g.outgoing[id] {
					if !reached[f.Target] {
						reached[f.Target] = true
						stack = append(stack, f.Target)
					}
				}
			}
		}
	}
	return reached
}

// BackEdges returns the flows that close a cycle, found by DFS from every
// element. Dropping these flows makes the graph acyclic. Results are sorted
// by flow ID so output is deterministic.
func (g *Graph) BackEdges() []*Flow {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(g.elements))
	var back []*Flow

	var visit func(id string)
	visit = func(id string) {
		color[id] = gray
		for _, f := range g.outgoing[id] {
			switch color[f.Target] {
			case white:
				visit(f.Target)
			case gray:
				back = append(back, f)
			}
		}
		color[id] = black
	}

	// Iterate elements in declaration order for determinism.
	for i := range g.Process.Elements {
		id := g.Process.Elements[i].ID
		if color[id] == white {
			visit(id)
		}
	}

	sort.Slice(back, func(i, j int) bool { return back[i].ID < back[j].ID })
	return back
}
