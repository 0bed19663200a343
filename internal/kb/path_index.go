package kb

import (
	"fmt"
	"sync"

	"cogkernel/internal/term"
	"cogkernel/internal/unify"
)

// pathIndex is the discrimination-tree-equivalent structural index
// assertions are bucketed by a structural token
// derived from their term's root (an atom-value token, LIST_MARKER, or
// VAR_MARKER), and the three supported query shapes each run the
// appropriate unify/match relation against just the bucket's members
// rather than the full assertion set.
type pathIndex struct {
	mu      sync.RWMutex
	buckets map[string]map[string]bool
	terms   map[string]term.Term
}

const varBucket = "VAR_MARKER"

func newPathIndex() *pathIndex {
	return &pathIndex{
		buckets: make(map[string]map[string]bool),
		terms:   make(map[string]term.Term),
	}
}

func rootToken(t term.Term) string {
	switch {
	case t.IsVar():
		return varBucket
	case t.IsAtom():
		name, _ := t.AtomName()
		return "ATOM:" + name
	case t.IsStr():
		return "STR"
	case t.IsNum():
		return "NUM"
	case t.IsLst():
		if op, ok := t.Operator(); ok {
			return fmt.Sprintf("LIST:%s/%d", op, t.Arity())
		}
		return fmt.Sprintf("LIST_MARKER:%d", t.Arity())
	}
	return "UNKNOWN"
}

func (p *pathIndex) Insert(id string, t term.Term) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.terms[id] = t
	key := rootToken(t)
	set, ok := p.buckets[key]
	if !ok {
		set = make(map[string]bool)
		p.buckets[key] = set
	}
	set[id] = true
}

func (p *pathIndex) Delete(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.terms[id]
	if !ok {
		return
	}
	delete(p.terms, id)
	key := rootToken(t)
	if set, ok := p.buckets[key]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(p.buckets, key)
		}
	}
}

// candidateBuckets returns the bucket keys worth scanning for query: its
// own root bucket plus the variable bucket, since a stored bare variable
// unifies/matches against anything. An atom-headed list query also
// scans the LIST_MARKER bucket of its arity, where lists headed by a
// variable are kept; a variable query, or a list query not headed by an
// atom, scans every bucket.
func (p *pathIndex) candidateBuckets(query term.Term) []string {
	_, hasOp := query.Operator()
	if hasOp {
		return []string{rootToken(query), fmt.Sprintf("LIST_MARKER:%d", query.Arity()), varBucket}
	}
	if query.IsVar() || query.IsLst() {
		keys := make([]string, 0, len(p.buckets))
		for k := range p.buckets {
			keys = append(keys, k)
		}
		return keys
	}
	return []string{rootToken(query), varBucket}
}

func (p *pathIndex) scan(query term.Term, keep func(candidate term.Term) bool) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	seen := map[string]bool{}
	var out []string
	for _, key := range p.candidateBuckets(query) {
		for id := range p.buckets[key] {
			if seen[id] {
				continue
			}
			seen[id] = true
			if keep(p.terms[id]) {
				out = append(out, id)
			}
		}
	}
	return out
}

// Unifiable returns indexed IDs whose term could unify with query.
func (p *pathIndex) Unifiable(query term.Term) []string {
	return p.scan(query, func(candidate term.Term) bool {
		_, ok := unify.Unify(query, candidate, unify.Empty())
		return ok
	})
}

// InstancesOf returns indexed IDs that are instances of pattern (pattern
// binds its own variables against the candidate, which is treated as
// ground).
func (p *pathIndex) InstancesOf(pattern term.Term) []string {
	return p.scan(pattern, func(candidate term.Term) bool {
		_, ok := unify.Match(pattern, candidate, unify.Empty())
		return ok
	})
}

// GeneralizationsOf returns indexed IDs that are more general than
// query: the indexed term's variables bind against query.
func (p *pathIndex) GeneralizationsOf(query term.Term) []string {
	return p.scan(query, func(candidate term.Term) bool {
		_, ok := unify.Match(candidate, query, unify.Empty())
		return ok
	})
}
