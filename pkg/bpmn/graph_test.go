package bpmn

import "testing"

func graphProcess() *Process {
	return &Process{
		ID: "p1",
		Elements: []Element{
			{ID: "start", Kind: KindStartEvent},
			{ID: "a", Kind: KindUserTask},
			{ID: "b", Kind: KindUserTask},
			{ID: "end", Kind: KindEndEvent},
			{ID: "orphan", Kind: KindTask},
		},
		Flows: []Flow{
			{ID: "f1", Source: "start", Target: "a"},
			{ID: "f2", Source: "a", Target: "b"},
			{ID: "f3", Source: "b", Target: "end"},
		},
	}
}

func TestGraph_Adjacency(t *testing.T) {
	g := NewGraph(graphProcess())

	if g.Element("a") == nil || g.Element("nope") != nil {
		t.Error("Unexpected element lookup results")
	}
	out := g.Outgoing("a")
	if len(out) != 1 || out[0].ID != "f2" {
		t.Errorf("Unexpected outgoing flows: %v", out)
	}
	in := g.Incoming("b")
	if len(in) != 1 || in[0].ID != "f2" {
		t.Errorf("Unexpected incoming flows: %v", in)
	}
	if len(g.Outgoing("end")) != 0 {
		t.Errorf("Expected no outgoing flows from end")
	}
}

func TestGraph_DanglingFlowsExcluded(t *testing.T) {
	p := graphProcess()
	p.Flows = append(p.Flows, Flow{ID: "f-bad", Source: "a", Target: "ghost"})

	g := NewGraph(p)
	if len(g.Outgoing("a")) != 1 {
		t.Errorf("Expected dangling flow excluded from adjacency, got %v", g.Outgoing("a"))
	}
}

func TestGraph_Reachable(t *testing.T) {
	g := NewGraph(graphProcess())
	reached := g.Reachable()

	for _, id := range []string{"start", "a", "b", "end"} {
		if !reached[id] {
			t.Errorf("Expected %s reachable", id)
		}
	}
	if reached["orphan"] {
		t.Error("Expected orphan unreachable")
	}
}

func TestGraph_Reachable_BoundaryEvents(t *testing.T) {
	p := graphProcess()
	p.Elements = append(p.Elements,
		Element{ID: "timeout", Kind: KindBoundaryEvent, AttachedTo: "a", Trigger: TriggerTimer},
		Element{ID: "handle", Kind: KindUserTask},
	)
	p.Flows = append(p.Flows, Flow{ID: "f4", Source: "timeout", Target: "handle"})

	reached := NewGraph(p).Reachable()
	if !reached["timeout"] {
		t.Error("Expected boundary event on a reachable activity to be reachable")
	}
	if !reached["handle"] {
		t.Error("Expected the boundary handler path to be reachable")
	}
}

func TestGraph_Reachable_DetachedBoundaryEvent(t *testing.T) {
	p := graphProcess()
	p.Elements = append(p.Elements,
		Element{ID: "timeout", Kind: KindBoundaryEvent, AttachedTo: "orphan", Trigger: TriggerTimer})

	reached := NewGraph(p).Reachable()
	if reached["timeout"] {
		t.Error("Expected boundary event on an unreachable activity to stay unreachable")
	}
}

func TestGraph_BackEdges_Acyclic(t *testing.T) {
	g := NewGraph(graphProcess())
	if back := g.BackEdges(); len(back) != 0 {
		t.Errorf("Expected no back edges in an acyclic process, got %v", back)
	}
}

func TestGraph_BackEdges_SingleLoop(t *testing.T) {
	p := graphProcess()
	p.Flows = append(p.Flows, Flow{ID: "f-loop", Source: "b", Target: "a"})

	back := NewGraph(p).BackEdges()
	if len(back) != 1 || back[0].ID != "f-loop" {
		t.Errorf("Expected the loop flow as the back edge, got %v", back)
	}
}

func TestGraph_BackEdges_Sorted(t *testing.T) {
	p := &Process{
		ID: "p1",
		Elements: []Element{
			{ID: "start", Kind: KindStartEvent},
			{ID: "a", Kind: KindUserTask},
			{ID: "b", Kind: KindUserTask},
			{ID: "c", Kind: KindUserTask},
		},
		Flows: []Flow{
			{ID: "f1", Source: "start", Target: "a"},
			{ID: "f2", Source: "a", Target: "b"},
			{ID: "f3", Source: "b", Target: "c"},
			{ID: "z-back", Source: "c", Target: "a"},
			{ID: "a-back", Source: "b", Target: "a"},
		},
	}

	back := NewGraph(p).BackEdges()
	if len(back) != 2 {
		t.Fatalf("Expected 2 back edges, got %d", len(back))
	}
	if back[0].ID != "a-back" || back[1].ID != "z-back" {
		t.Errorf("Expected back edges sorted by ID, got %s, %s", back[0].ID, back[1].ID)
	}
}
