package unify

import (
	"fmt"
	"sync/atomic"

	"cogkernel/internal/term"
)

var skolemCounter uint64

// nextSkolemID returns a process-unique suffix for generated skolem
// names. Reset is exposed only for tests that need deterministic output.
func nextSkolemID() uint64 {
	return atomic.AddUint64(&skolemCounter, 1)
}

// ResetSkolemCounterForTest rewinds the skolem name generator. Tests only.
func ResetSkolemCounterForTest() {
	atomic.StoreUint64(&skolemCounter, 0)
}

// Skolemize eliminates a top-level (exists (?x ...) body) term, replacing
// each existentially bound variable with either a fresh skolem constant
// (if no free variable of body escapes the binder's own scope) or a
// skolem function applied to the deterministically-ordered list of
// escaping free variables. Returns (body-with-substitutions, true) on
// success, or (t, false) if t is not an exists-form.
func Skolemize(t term.Term) (term.Term, bool) {
	op, ok := t.Operator()
	if !ok || op != "exists" || t.Arity() != 2 {
		return t, false
	}
	binderTerm, _ := t.Arg(0)
	body, _ := t.Arg(1)
	if !binderTerm.IsLst() {
		return t, false
	}

	bound := map[string]bool{}
	var boundOrder []string
	for _, v := range binderTerm.Items() {
		name, ok := v.VarName()
		if !ok {
			return t, false
		}
		bound[name] = true
		boundOrder = append(boundOrder, name)
	}

	var escaping []term.Term
	for _, name := range body.Vars() {
		if !bound[name] {
			escaping = append(escaping, term.Var(name))
		}
	}

	result := body
	for _, name := range boundOrder {
		var skTerm term.Term
		if len(escaping) == 0 {
			skTerm = term.Atom(fmt.Sprintf("sk%d", nextSkolemID()))
		} else {
			fnArgs := make([]term.Term, 0, len(escaping)+1)
			fnArgs = append(fnArgs, term.Atom(fmt.Sprintf("skf%d", nextSkolemID())))
			fnArgs = append(fnArgs, escaping...)
			skTerm = term.Lst(fnArgs...)
		}
		bindName := name
		replacement := skTerm
		result = result.Transform(func(sub term.Term) term.Term {
			if v, ok := sub.VarName(); ok && v == bindName {
				return replacement
			}
			return sub
		})
	}
	return result, true
}

// IsSkolem reports whether t is a skolem constant/function application as
// generated by Skolemize, used by the engine to classify an assertion's
// type as SKOLEMIZED when its quantified form has been eliminated.
func IsSkolem(t term.Term) bool {
	if name, ok := t.AtomName(); ok {
		return hasSkolemPrefix(name)
	}
	if op, ok := t.Operator(); ok {
		return hasSkolemPrefix(op)
	}
	return false
}

func hasSkolemPrefix(name string) bool {
	return len(name) >= 2 && name[:2] == "sk"
}
