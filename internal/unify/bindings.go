// Package unify implements Robinson unification with occurs check,
// one-sided matching, substitution, rewriting, and skolemization over
// internal/term's algebraic term type. This is the interpreter core that
// the knowledge base's query engine and the term-logic engine's rule
// matching both sit on top of.
package unify

import "cogkernel/internal/term"

// Bindings is an immutable variable->term binding map. Extend returns a
// new Bindings leaving the receiver untouched, so callers can backtrack
// by simply discarding a failed extension.
type Bindings struct {
	m map[string]term.Term
}

// Empty is the empty binding set.
func Empty() Bindings { return Bindings{} }

// Lookup returns the term bound to name and true, or the zero Term and
// false if name is unbound.
func (b Bindings) Lookup(name string) (term.Term, bool) {
	if b.m == nil {
		return term.Term{}, false
	}
	t, ok := b.m[name]
	return t, ok
}

// Extend returns a new Bindings with name bound to t. It does not check
// whether name was already bound; callers that need rebinding semantics
// should resolve through Lookup first (Unify's bindVar does this).
func (b Bindings) Extend(name string, t term.Term) Bindings {
	out := make(map[string]term.Term, len(b.m)+1)
	for k, v := range b.m {
		out[k] = v
	}
	out[name] = t
	return Bindings{m: out}
}

// Len reports the number of bound variables.
func (b Bindings) Len() int { return len(b.m) }

// Vars returns the bound variable names, order unspecified.
func (b Bindings) Vars() []string {
	out := make([]string, 0, len(b.m))
	for k := range b.m {
		out = append(out, k)
	}
	return out
}
