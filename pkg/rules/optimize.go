package rules

import "github.com/flowport/flowport/pkg/target"

// reduceDependencies performs transitive reduction on the step dependency
// graph: a direct dependency is redundant when it is already implied
// through another dependency chain. Returns the number of edges removed.
func reduceDependencies(w *target.Workflow) int {
	deps := make(map[string][]string, len(w.Steps))
	for i := range w.Steps {
		deps[w.Steps[i].ID] = w.Steps[i].DependsOn
	}

	removed := 0
	for i := range w.Steps {
		step := &w.Steps[i]
		if len(step.DependsOn) < 2 {
			continue
		}

		orig := append([]string{}, step.DependsOn...)
		kept := step.DependsOn[:0]
		for _, d := range orig {
			if impliedThroughOther(deps, orig, d) {
				removed++
				continue
			}
			kept = append(kept, d)
		}
		step.DependsOn = kept
		deps[step.ID] = kept
	}
	return removed
}

// impliedThroughOther reports whether dep is reachable from any other
// member of all by following dependency edges.
func impliedThroughOther(deps map[string][]string, all []string, dep string) bool {
	for _, other := range all {
		if other == dep {
			continue
		}
		if reaches(deps, other, dep, map[string]bool{}) {
			return true
		}
	}
	return false
}

func reaches(deps map[string][]string, from, to string, seen map[string]bool) bool {
	if seen[from] {
		return false
	}
	seen[from] = true
	for _, d := range deps[from] {
		if d == to || reaches(deps, d, to, seen) {
			return true
		}
	}
	return false
}
