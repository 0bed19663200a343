package kb

import "sync"

// tms tracks the justification dependency graph (dependents is the
// inverse of justifications) and recomputes the derived active flag per
// the justification-based TMS algorithm.
type tms struct {
	mu         sync.Mutex
	dependents map[string]map[string]bool // assertionId -> assertions that depend on it
}

func newTMS() *tms {
	return &tms{dependents: make(map[string]map[string]bool)}
}

func (t *tms) addDependency(justificationID, dependentID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	set, ok := t.dependents[justificationID]
	if !ok {
		set = make(map[string]bool)
		t.dependents[justificationID] = set
	}
	set[dependentID] = true
}

func (t *tms) removeAssertion(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.dependents, id)
	for _, set := range t.dependents {
		delete(set, id)
	}
}

func (t *tms) dependentsOf(id string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	set, ok := t.dependents[id]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(set))
	for dep := range set {
		out = append(out, dep)
	}
	return out
}

// computeActive derives an assertion's active flag: active iff it has no
// justifications, or every justification is itself active. A
// justification names either a dependency assertion (active iff that
// assertion is active) or the rule that fired to produce this assertion
// (active iff that rule still exists); isActive resolves either kind.
func computeActive(a *Assertion, isActive func(id string) (active, found bool)) bool {
	if len(a.Justifications) == 0 {
		return true
	}
	for j := range a.Justifications {
		active, found := isActive(j)
		if !found || !active {
			return false
		}
	}
	return true
}
