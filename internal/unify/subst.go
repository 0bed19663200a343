package unify

import (
	"errors"

	"cogkernel/internal/term"
)

// maxResolveDepth caps variable-chain resolution and recursive
// substitution so a cyclic or very long binding chain fails cleanly
// instead of looping or blowing the Go stack.
const maxResolveDepth = 64

// ErrDepthExceeded is returned by Subst/resolve when a substitution chain
// exceeds maxResolveDepth.
var ErrDepthExceeded = errors.New("unify: substitution depth exceeded")

// Mode selects how Subst treats variables that are themselves bound to
// terms containing further variables.
type Mode int

const (
	// Shallow replaces a top-level bound variable with its image exactly
	// once; if that image itself contains unresolved variables, they are
	// left as-is.
	Shallow Mode = iota
	// Fully recursively resolves bound variables until reaching a fixed
	// point or the depth cap.
	Fully
)

// Subst applies bindings to t under the given mode. It never mutates t.
func Subst(t term.Term, b Bindings, mode Mode) (term.Term, error) {
	switch mode {
	case Shallow:
		return substShallow(t, b), nil
	default:
		return substFully(t, b, 0)
	}
}

func substShallow(t term.Term, b Bindings) term.Term {
	return t.Transform(func(sub term.Term) term.Term {
		if name, ok := sub.VarName(); ok {
			if img, bound := b.Lookup(name); bound {
				return img
			}
		}
		return sub
	})
}

func substFully(t term.Term, b Bindings, depth int) (term.Term, error) {
	if depth > maxResolveDepth {
		return term.Term{}, ErrDepthExceeded
	}
	if name, ok := t.VarName(); ok {
		img, bound := b.Lookup(name)
		if !bound {
			return t, nil
		}
		return substFully(img, b, depth+1)
	}
	if !t.IsLst() {
		return t, nil
	}
	items := t.Items()
	out := make([]term.Term, len(items))
	for i, s := range items {
		r, err := substFully(s, b, depth)
		if err != nil {
			return term.Term{}, err
		}
		out[i] = r
	}
	return term.Lst(out...), nil
}

// Resolve fully resolves a single term through the binding chain,
// returning ErrDepthExceeded on a runaway chain. It is the building
// block Unify's variable-binding helper uses to look at what a variable
// "really" points to before performing the occurs check.
func Resolve(t term.Term, b Bindings) (term.Term, error) {
	return substFully(t, b, 0)
}
