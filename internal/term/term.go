// Package term defines the universal data carrier for the cognitive kernel:
// an algebraic term type equivalent to KIF S-expressions, plus structural
// equality, printing, and a handful of traversal helpers shared by the
// unifier and the term-logic engine.
package term

import (
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
)

// Kind discriminates the concrete shape of a Term.
type Kind int

const (
	KindAtom Kind = iota
	KindStr
	KindNum
	KindVar
	KindLst
)

// Term is exactly one of Atom, Str, Num, Var, or Lst. Terms are immutable;
// once constructed, a Term's fields must not be mutated in place.
type Term struct {
	kind Kind

	atom string  // KindAtom: interned symbolic name
	str  string  // KindStr: opaque string literal
	num  float64 // KindNum: numeric literal
	v    string  // KindVar: variable name, without the leading '?'
	lst  []Term  // KindLst: ordered subterms
}

// Atom constructs an interned symbolic atom.
func Atom(name string) Term { return Term{kind: KindAtom, atom: name} }

// Str constructs an opaque string literal.
func Str(s string) Term { return Term{kind: KindStr, str: s} }

// Num constructs a numeric literal.
func Num(n float64) Term { return Term{kind: KindNum, num: n} }

// Var constructs a variable. name must not include the leading '?'.
func Var(name string) Term { return Term{kind: KindVar, v: name} }

// Lst constructs an ordered list of subterms.
func Lst(items ...Term) Term {
	cp := make([]Term, len(items))
	copy(cp, items)
	return Term{kind: KindLst, lst: cp}
}

func (t Term) Kind() Kind { return t.kind }
func (t Term) IsAtom() bool { return t.kind == KindAtom }
func (t Term) IsStr() bool  { return t.kind == KindStr }
func (t Term) IsNum() bool  { return t.kind == KindNum }
func (t Term) IsVar() bool  { return t.kind == KindVar }
func (t Term) IsLst() bool  { return t.kind == KindLst }

// AtomName returns the atom's name and true, or ("", false) if t is not an atom.
func (t Term) AtomName() (string, bool) {
	if t.kind != KindAtom {
		return "", false
	}
	return t.atom, true
}

// StrValue returns the string literal's value and true, or ("", false).
func (t Term) StrValue() (string, bool) {
	if t.kind != KindStr {
		return "", false
	}
	return t.str, true
}

// NumValue returns the numeric literal's value and true, or (0, false).
func (t Term) NumValue() (float64, bool) {
	if t.kind != KindNum {
		return 0, false
	}
	return t.num, true
}

// VarName returns the variable's name (without '?') and true, or ("", false).
func (t Term) VarName() (string, bool) {
	if t.kind != KindVar {
		return "", false
	}
	return t.v, true
}

// Items returns the subterms of a list, or nil if t is not a list.
func (t Term) Items() []Term {
	if t.kind != KindLst {
		return nil
	}
	return t.lst
}

// Arity returns the number of arguments of a list term: its items after
// the operator position, so Arg(i) is valid for 0 <= i < Arity(). It is
// 0 for non-lists and for the empty list.
func (t Term) Arity() int {
	if len(t.lst) == 0 {
		return 0
	}
	return len(t.lst) - 1
}

// Operator returns the leading atom of a list term, i.e. its predicate
// symbol, when the first element is an Atom. Used by the predicate index,
// the engine's action dispatch, and the API gateway's command translation.
func (t Term) Operator() (string, bool) {
	if t.kind != KindLst || len(t.lst) == 0 {
		return "", false
	}
	return t.lst[0].AtomName()
}

// Arg returns the i'th argument of a list term (1-indexed past the
// operator, i.e. Arg(0) is the first argument after the operator atom).
// Returns the zero Term and false if t is not a list or i is out of
// range; the first item is skipped whether or not it is an atom.
func (t Term) Arg(i int) (Term, bool) {
	if t.kind != KindLst || len(t.lst) < 2 {
		return Term{}, false
	}
	idx := i + 1
	if idx < 0 || idx >= len(t.lst) {
		return Term{}, false
	}
	return t.lst[idx], true
}

// Equal reports structural equality between two terms.
func (t Term) Equal(o Term) bool {
	if t.kind != o.kind {
		return false
	}
	switch t.kind {
	case KindAtom:
		return t.atom == o.atom
	case KindStr:
		return t.str == o.str
	case KindNum:
		return t.num == o.num
	case KindVar:
		return t.v == o.v
	case KindLst:
		if len(t.lst) != len(o.lst) {
			return false
		}
		for i := range t.lst {
			if !t.lst[i].Equal(o.lst[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// IsGround reports whether t contains no variables.
func (t Term) IsGround() bool {
	switch t.kind {
	case KindVar:
		return false
	case KindLst:
		for _, s := range t.lst {
			if !s.IsGround() {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// Vars collects the set of distinct variable names occurring in t, in
// first-occurrence order.
func (t Term) Vars() []string {
	seen := map[string]bool{}
	var out []string
	var walk func(Term)
	walk = func(x Term) {
		switch x.kind {
		case KindVar:
			if !seen[x.v] {
				seen[x.v] = true
				out = append(out, x.v)
			}
		case KindLst:
			for _, s := range x.lst {
				walk(s)
			}
		}
	}
	walk(t)
	return out
}

// Walk calls fn for t and, if t is a list, recursively for every subterm,
// depth-first pre-order.
func (t Term) Walk(fn func(Term)) {
	fn(t)
	if t.kind == KindLst {
		for _, s := range t.lst {
			s.Walk(fn)
		}
	}
}

// Transform rebuilds t by applying fn to every subterm bottom-up: fn is
// called on each leaf first, then on each list after its items have been
// transformed. Subst's Shallow mode and Skolemize use it; Rewrite and
// Subst's Fully mode walk list items themselves.
func (t Term) Transform(fn func(Term) Term) Term {
	if t.kind == KindLst {
		items := make([]Term, len(t.lst))
		for i, s := range t.lst {
			items[i] = s.Transform(fn)
		}
		return fn(Term{kind: KindLst, lst: items})
	}
	return fn(t)
}

// Hash returns a structural hash of t, used for rule content-addressing
// (Rules are content-addressable by form equality).
func (t Term) Hash() uint64 {
	h := fnv.New64a()
	t.hashInto(h)
	return h.Sum64()
}

func (t Term) hashInto(h interface{ Write([]byte) (int, error) }) {
	switch t.kind {
	case KindAtom:
		h.Write([]byte{'A'})
		h.Write([]byte(t.atom))
	case KindStr:
		h.Write([]byte{'S'})
		h.Write([]byte(t.str))
	case KindNum:
		h.Write([]byte{'N'})
		h.Write([]byte(strconv.FormatFloat(t.num, 'g', -1, 64)))
	case KindVar:
		h.Write([]byte{'V'})
		h.Write([]byte(t.v))
	case KindLst:
		h.Write([]byte{'('})
		for _, s := range t.lst {
			s.hashInto(h)
		}
		h.Write([]byte{')'})
	}
}

// String renders t in KIF-equivalent surface syntax.
func (t Term) String() string {
	var sb strings.Builder
	t.write(&sb)
	return sb.String()
}

func (t Term) write(sb *strings.Builder) {
	switch t.kind {
	case KindAtom:
		sb.WriteString(t.atom)
	case KindStr:
		sb.WriteByte('"')
		for _, r := range t.str {
			switch r {
			case '"':
				sb.WriteString(`\"`)
			case '\\':
				sb.WriteString(`\\`)
			default:
				sb.WriteRune(r)
			}
		}
		sb.WriteByte('"')
	case KindNum:
		sb.WriteString(strconv.FormatFloat(t.num, 'g', -1, 64))
	case KindVar:
		sb.WriteByte('?')
		sb.WriteString(t.v)
	case KindLst:
		sb.WriteByte('(')
		for i, s := range t.lst {
			if i > 0 {
				sb.WriteByte(' ')
			}
			s.write(sb)
		}
		sb.WriteByte(')')
	}
}

// SortedCopy returns a copy of items sorted by String
// representation; useful for tests and for canonicalizing sets of derived
// terms for comparison (the corpus's SortAtoms-equivalent).
func SortedCopy(items []Term) []Term {
	cp := make([]Term, len(items))
	copy(cp, items)
	sort.Slice(cp, func(i, j int) bool { return cp[i].String() < cp[j].String() })
	return cp
}
