package unify

import "cogkernel/internal/term"

// Rewrite attempts to rewrite target using the rule lhs -> rhs: it first
// tries Match(lhs, target); on success it returns Subst(rhs, sigma,
// Fully) and true. Otherwise it recurses into target's subterms looking
// for the first rewritable position (leftmost-innermost is not
// guaranteed; this performs a single top-down pass). Returns (target,
// false) if nothing rewrites anywhere in the term.
func Rewrite(target, lhs, rhs term.Term) (term.Term, bool) {
	if sigma, ok := Match(lhs, target, Empty()); ok {
		if result, err := Subst(rhs, sigma, Fully); err == nil {
			return result, true
		}
	}

	if !target.IsLst() {
		return target, false
	}

	items := target.Items()
	changed := false
	out := make([]term.Term, len(items))
	for i, s := range items {
		if r, ok := Rewrite(s, lhs, rhs); ok && !changed {
			out[i] = r
			changed = true
		} else {
			out[i] = s
		}
	}
	if !changed {
		return target, false
	}
	return term.Lst(out...), true
}

// RewriteAll applies Rewrite repeatedly (one match per subterm position,
// left to right) until no further rewrite succeeds or maxPasses is hit.
func RewriteAll(target, lhs, rhs term.Term, maxPasses int) term.Term {
	cur := target
	for i := 0; i < maxPasses; i++ {
		next, ok := Rewrite(cur, lhs, rhs)
		if !ok {
			return cur
		}
		cur = next
	}
	return cur
}

// simplifyMaxDepth bounds Simplify's fixed-point iteration by a depth
// cap so a malformed rewrite rule can't loop forever.
const simplifyMaxDepth = 50

// simplificationRules are the double-negation and distribution shapes the
// engine's Simplify helper iterates to a fixed point. They are expressed
// as KIF pattern/replacement pairs rather than Go-level pattern matching
// so new shapes can be added without touching Rewrite itself.
var simplificationRules = []struct{ lhs, rhs term.Term }{
	{mustParse(`(not (not ?x))`), mustParse(`?x`)},
	{mustParse(`(not (and ?x ?y))`), mustParse(`(or (not ?x) (not ?y))`)},
	{mustParse(`(not (or ?x ?y))`), mustParse(`(and (not ?x) (not ?y))`)},
}

func mustParse(s string) term.Term {
	t, err := term.Parse(s)
	if err != nil {
		panic("unify: invalid built-in simplification pattern: " + err.Error())
	}
	return t
}

// Simplify iteratively applies the fixed simplification shapes
// (double-negation elimination, De Morgan distribution) to t until a
// fixed point is reached or simplifyMaxDepth passes have run.
func Simplify(t term.Term) term.Term {
	cur := t
	for i := 0; i < simplifyMaxDepth; i++ {
		next := cur
		changedAny := false
		for _, r := range simplificationRules {
			if rewritten, ok := Rewrite(next, r.lhs, r.rhs); ok {
				next = rewritten
				changedAny = true
			}
		}
		if !changedAny {
			return cur
		}
		cur = next
	}
	return cur
}
