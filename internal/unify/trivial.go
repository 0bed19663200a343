package unify

import "cogkernel/internal/term"

// reflexivePredicates are the binary predicates treated as trivially true
// when both arguments are syntactically identical.
var reflexivePredicates = map[string]bool{
	"instance": true,
	"subclass": true,
	"equal":    true,
}

// IsTrivial reports whether t is a reflexive application of a recognized
// predicate (e.g. (equal ?x ?x), (instance Foo Foo)) or the literal term
// (not trivial), both of which the engine discards without assertion.
func IsTrivial(t term.Term) bool {
	if op, ok := t.Operator(); ok {
		if op == "not" && t.Arity() == 1 {
			inner, _ := t.Arg(0)
			if name, ok := inner.AtomName(); ok && name == "trivial" {
				return true
			}
		}
		if reflexivePredicates[op] && t.Arity() == 2 {
			a, _ := t.Arg(0)
			b, _ := t.Arg(1)
			return a.Equal(b)
		}
	}
	return false
}
