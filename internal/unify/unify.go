package unify

import "cogkernel/internal/term"

// Unify attempts to unify x and y under the given starting bindings,
// returning the extended bindings on success. Failure is signaled by
// (Bindings{}, false) — callers must check the boolean, not just reuse a
// zero Bindings as "no constraints."
func Unify(x, y term.Term, b Bindings) (Bindings, bool) {
	if name, ok := x.VarName(); ok {
		return bindVar(name, y, b)
	}
	if name, ok := y.VarName(); ok {
		return bindVar(name, x, b)
	}

	if x.Kind() != y.Kind() {
		return Bindings{}, false
	}

	switch x.Kind() {
	case term.KindAtom:
		xa, _ := x.AtomName()
		ya, _ := y.AtomName()
		if xa == ya {
			return b, true
		}
		return Bindings{}, false
	case term.KindStr:
		xs, _ := x.StrValue()
		ys, _ := y.StrValue()
		if xs == ys {
			return b, true
		}
		return Bindings{}, false
	case term.KindNum:
		xn, _ := x.NumValue()
		yn, _ := y.NumValue()
		if xn == yn {
			return b, true
		}
		return Bindings{}, false
	case term.KindLst:
		xi, yi := x.Items(), y.Items()
		if len(xi) != len(yi) {
			return Bindings{}, false
		}
		cur := b
		for i := range xi {
			var ok bool
			cur, ok = Unify(xi[i], yi[i], cur)
			if !ok {
				return Bindings{}, false
			}
		}
		return cur, true
	}
	return Bindings{}, false
}

// bindVar binds variable name to value under b: if name is already bound,
// it unifies the existing image against value; otherwise it fully
// resolves value, performs the occurs check against the resolved form,
// and extends b with an immutable new binding.
func bindVar(name string, value term.Term, b Bindings) (Bindings, bool) {
	if existing, bound := b.Lookup(name); bound {
		return Unify(existing, value, b)
	}

	resolved, err := Resolve(value, b)
	if err != nil {
		return Bindings{}, false
	}

	// A variable unifying with itself is a no-op, not an occurs-check
	// failure (e.g. unify(?x, ?x) must succeed).
	if rv, ok := resolved.VarName(); ok && rv == name {
		return b, true
	}

	if occurs(name, resolved) {
		return Bindings{}, false
	}

	return b.Extend(name, resolved), true
}

// occurs reports whether variable name appears anywhere within t.
func occurs(name string, t term.Term) bool {
	if v, ok := t.VarName(); ok {
		return v == name
	}
	if !t.IsLst() {
		return false
	}
	for _, s := range t.Items() {
		if occurs(name, s) {
			return true
		}
	}
	return false
}
