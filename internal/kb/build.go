package kb

import (
	"time"

	"cogkernel/internal/term"
	"cogkernel/internal/unify"
)

// ClassifyTerm derives the three boolean flags and the AssertionType a
// fresh Assertion over kif should carry: flags derived
// (negation from (not ...), equality from (= ...), orientation hint
// from rule); type derived (GROUND if no free vars, UNIVERSAL if
// forall, SKOLEMIZED if skolem constants/functions present).
func ClassifyTerm(kif term.Term) (isNegated, isEquality bool, assertionType AssertionType) {
	if op, ok := kif.Operator(); ok && op == "not" && kif.Arity() == 1 {
		isNegated = true
	}
	if op, ok := kif.Operator(); ok && op == "=" {
		isEquality = true
	}

	effective := kif
	if isNegated {
		if inner, ok := kif.Arg(0); ok {
			effective = inner
		}
	}

	forallOp, _ := effective.Operator()
	switch {
	case containsSkolem(effective):
		assertionType = Skolemized
	case forallOp == "forall":
		assertionType = Universal
	case effective.IsGround():
		assertionType = Ground
	default:
		// Free variables with no quantifier: treated as an implicitly
		// universally-quantified fact for matching purposes.
		assertionType = Universal
	}
	return isNegated, isEquality, assertionType
}

func containsSkolem(t term.Term) bool {
	found := false
	t.Walk(func(sub term.Term) {
		if found {
			return
		}
		if unify.IsSkolem(sub) {
			found = true
		}
	})
	return found
}

// NewAssertion constructs an Assertion over kif with derived flags/type,
// ready for KnowledgeBase.SaveAssertion. justifications may be nil for a
// root (unjustified) assertion.
func NewAssertion(id string, kif term.Term, priority float64, sourceNoteID, kbID string, justifications map[string]bool, depth int) *Assertion {
	isNegated, isEquality, assertionType := ClassifyTerm(kif)
	var quantified []string
	if assertionType == Universal {
		quantified = kif.Vars()
	}
	return &Assertion{
		ID:             id,
		Kif:            kif,
		Priority:       priority,
		Timestamp:      time.Now().UnixNano(),
		SourceNoteID:   sourceNoteID,
		Justifications: justifications,
		Type:           assertionType,
		IsEquality:     isEquality,
		IsNegated:      isNegated,
		QuantifiedVars: quantified,
		Depth:          depth,
		KbID:           kbID,
	}
}
