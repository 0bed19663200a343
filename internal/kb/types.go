// Package kb implements the knowledge base: predicate and path indices
// over asserted terms, a justification-based truth-maintenance system,
// and the note/rule/relationship records the rest of the kernel reasons
// over.
package kb

import (
	"cogkernel/internal/term"
)

// Reserved kbId values. Per-note knowledge bases use the note's own ID.
const (
	GlobalKB  = "global-kb"
	SystemKB  = "system"
	APIInbox  = "api-inbox"
	APIOutbox = "api-outbox"
)

// AssertionType classifies how an assertion's term is quantified.
type AssertionType string

const (
	Ground     AssertionType = "GROUND"
	Universal  AssertionType = "UNIVERSAL"
	Skolemized AssertionType = "SKOLEMIZED"
)

// Assertion is a single KB fact.
type Assertion struct {
	ID             string
	Kif            term.Term
	Priority       float64
	Timestamp      int64
	SourceNoteID   string
	Justifications map[string]bool
	Type           AssertionType
	IsEquality     bool
	IsOriented     bool
	IsNegated      bool
	QuantifiedVars []string
	Depth          int
	Active         bool
	KbID           string
}

// EffectiveTerm returns the body of a (not X) assertion, or Kif itself
// for a non-negated assertion. Matching always compares effective terms.
func (a *Assertion) EffectiveTerm() term.Term {
	if a.IsNegated {
		if inner, ok := a.Kif.Arg(0); ok {
			return inner
		}
	}
	return a.Kif
}

// Rule is a content-addressable antecedent/consequent pair.
type Rule struct {
	ID           string
	Form         term.Term
	Antecedent   term.Term
	Consequent   term.Term
	Priority     float64
	Depth        int
	SourceNoteID string
}

// Relationship is a typed directed edge stored inline on a Note.
type Relationship struct {
	TargetID string
	Type     string
	Metadata map[string]string
}

// Note is the universal addressable entity notes/rules/assertions hang
// off of.
type Note struct {
	ID            string
	Type          string
	Title         string
	Text          string
	Status        string
	Priority      float64
	Color         string
	UpdatedAt     int64
	Metadata      map[string]string
	Relationships []Relationship
	TermIDs       []string
}
