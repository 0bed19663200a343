package kb

import (
	"sync"

	"cogkernel/internal/term"
)

// predicateIndex maps an operator atom to the set of assertion IDs that
// reference it anywhere within their term (recursively), serving as the
// first filter in QueryAssertions.
type predicateIndex struct {
	mu  sync.RWMutex
	idx map[string]map[string]bool
}

func newPredicateIndex() *predicateIndex {
	return &predicateIndex{idx: make(map[string]map[string]bool)}
}

func (p *predicateIndex) Insert(id string, t term.Term) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, op := range operatorsOf(t) {
		set, ok := p.idx[op]
		if !ok {
			set = make(map[string]bool)
			p.idx[op] = set
		}
		set[id] = true
	}
}

func (p *predicateIndex) Delete(id string, t term.Term) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, op := range operatorsOf(t) {
		if set, ok := p.idx[op]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(p.idx, op)
			}
		}
	}
}

// CandidatesFor returns the assertion IDs whose term references
// operator, or nil if none are indexed under it.
func (p *predicateIndex) CandidatesFor(operator string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	set, ok := p.idx[operator]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// operatorsOf collects every operator atom referenced anywhere within t,
// deduplicated.
func operatorsOf(t term.Term) []string {
	seen := map[string]bool{}
	var out []string
	t.Walk(func(sub term.Term) {
		if op, ok := sub.Operator(); ok {
			if !seen[op] {
				seen[op] = true
				out = append(out, op)
			}
		}
	})
	return out
}
