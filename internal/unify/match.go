package unify

import "cogkernel/internal/term"

// Match performs one-sided matching: only variables occurring in pattern
// may be bound; term is treated as ground with respect to binding (a
// variable appearing only in term is never bound, even if term itself
// happens to contain unbound variables). Used for rule antecedent
// matching and for the left-hand side of Rewrite.
func Match(pattern, target term.Term, b Bindings) (Bindings, bool) {
	if name, ok := pattern.VarName(); ok {
		if existing, bound := b.Lookup(name); bound {
			resolvedTarget, err := Resolve(target, b)
			if err != nil {
				return Bindings{}, false
			}
			return Match(existing, resolvedTarget, b)
		}
		return b.Extend(name, target), true
	}

	if pattern.Kind() != target.Kind() {
		return Bindings{}, false
	}

	switch pattern.Kind() {
	case term.KindAtom:
		pa, _ := pattern.AtomName()
		ta, _ := target.AtomName()
		if pa == ta {
			return b, true
		}
		return Bindings{}, false
	case term.KindStr:
		ps, _ := pattern.StrValue()
		ts, _ := target.StrValue()
		if ps == ts {
			return b, true
		}
		return Bindings{}, false
	case term.KindNum:
		pn, _ := pattern.NumValue()
		tn, _ := target.NumValue()
		if pn == tn {
			return b, true
		}
		return Bindings{}, false
	case term.KindLst:
		pi, ti := pattern.Items(), target.Items()
		if len(pi) != len(ti) {
			return Bindings{}, false
		}
		cur := b
		for i := range pi {
			var ok bool
			cur, ok = Match(pi[i], ti[i], cur)
			if !ok {
				return Bindings{}, false
			}
		}
		return cur, true
	}
	return Bindings{}, false
}
