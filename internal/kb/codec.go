package kb

import (
	"encoding/json"
	"fmt"

	"cogkernel/internal/term"
)

// assertionRecord is the on-disk shape of an Assertion: the term itself
// is stored as KIF text, everything else round-trips as plain JSON
// fields.
type assertionRecord struct {
	ID             string          `json:"id"`
	Kif            string          `json:"kif"`
	Priority       float64         `json:"priority"`
	Timestamp      int64           `json:"timestamp"`
	SourceNoteID   string          `json:"sourceNoteId,omitempty"`
	Justifications []string        `json:"justifications,omitempty"`
	Type           AssertionType   `json:"type"`
	IsEquality     bool            `json:"isEquality,omitempty"`
	IsOriented     bool            `json:"isOriented,omitempty"`
	IsNegated      bool            `json:"isNegated,omitempty"`
	QuantifiedVars []string        `json:"quantifiedVars,omitempty"`
	Depth          int             `json:"depth"`
	Active         bool            `json:"active"`
	KbID           string          `json:"kbId"`
}

func encodeAssertion(a *Assertion) ([]byte, error) {
	rec := assertionRecord{
		ID:             a.ID,
		Kif:            a.Kif.String(),
		Priority:       a.Priority,
		Timestamp:      a.Timestamp,
		SourceNoteID:   a.SourceNoteID,
		Type:           a.Type,
		IsEquality:     a.IsEquality,
		IsOriented:     a.IsOriented,
		IsNegated:      a.IsNegated,
		QuantifiedVars: a.QuantifiedVars,
		Depth:          a.Depth,
		Active:         a.Active,
		KbID:           a.KbID,
	}
	for j := range a.Justifications {
		rec.Justifications = append(rec.Justifications, j)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("kb: encode assertion %s: %w", a.ID, err)
	}
	return data, nil
}

func decodeAssertion(data []byte) (*Assertion, error) {
	var rec assertionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("kb: decode assertion: %w", err)
	}
	kif, err := term.Parse(rec.Kif)
	if err != nil {
		return nil, fmt.Errorf("kb: decode assertion %s kif: %w", rec.ID, err)
	}
	just := make(map[string]bool, len(rec.Justifications))
	for _, j := range rec.Justifications {
		just[j] = true
	}
	return &Assertion{
		ID:             rec.ID,
		Kif:            kif,
		Priority:       rec.Priority,
		Timestamp:      rec.Timestamp,
		SourceNoteID:   rec.SourceNoteID,
		Justifications: just,
		Type:           rec.Type,
		IsEquality:     rec.IsEquality,
		IsOriented:     rec.IsOriented,
		IsNegated:      rec.IsNegated,
		QuantifiedVars: rec.QuantifiedVars,
		Depth:          rec.Depth,
		Active:         rec.Active,
		KbID:           rec.KbID,
	}, nil
}

type ruleRecord struct {
	ID           string  `json:"id"`
	Form         string  `json:"form"`
	Antecedent   string  `json:"antecedent"`
	Consequent   string  `json:"consequent"`
	Priority     float64 `json:"priority"`
	Depth        int     `json:"depth"`
	SourceNoteID string  `json:"sourceNoteId,omitempty"`
}

func encodeRule(r *Rule) ([]byte, error) {
	rec := ruleRecord{
		ID:           r.ID,
		Form:         r.Form.String(),
		Antecedent:   r.Antecedent.String(),
		Consequent:   r.Consequent.String(),
		Priority:     r.Priority,
		Depth:        r.Depth,
		SourceNoteID: r.SourceNoteID,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("kb: encode rule %s: %w", r.ID, err)
	}
	return data, nil
}

func decodeRule(data []byte) (*Rule, error) {
	var rec ruleRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("kb: decode rule: %w", err)
	}
	form, err := term.Parse(rec.Form)
	if err != nil {
		return nil, fmt.Errorf("kb: decode rule %s form: %w", rec.ID, err)
	}
	ante, err := term.Parse(rec.Antecedent)
	if err != nil {
		return nil, fmt.Errorf("kb: decode rule %s antecedent: %w", rec.ID, err)
	}
	cons, err := term.Parse(rec.Consequent)
	if err != nil {
		return nil, fmt.Errorf("kb: decode rule %s consequent: %w", rec.ID, err)
	}
	return &Rule{
		ID:           rec.ID,
		Form:         form,
		Antecedent:   ante,
		Consequent:   cons,
		Priority:     rec.Priority,
		Depth:        rec.Depth,
		SourceNoteID: rec.SourceNoteID,
	}, nil
}

type relationshipRecord struct {
	TargetID string            `json:"targetId"`
	Type     string            `json:"type"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type noteRecord struct {
	ID            string               `json:"id"`
	Type          string               `json:"type"`
	Title         string               `json:"title"`
	Text          string               `json:"text"`
	Status        string               `json:"status"`
	Priority      float64              `json:"priority"`
	Color         string               `json:"color"`
	UpdatedAt     int64                `json:"updatedAt"`
	Metadata      map[string]string    `json:"metadata,omitempty"`
	Relationships []relationshipRecord `json:"relationships,omitempty"`
	TermIDs       []string             `json:"termIds,omitempty"`
}

func encodeNote(n *Note) ([]byte, error) {
	rec := noteRecord{
		ID:        n.ID,
		Type:      n.Type,
		Title:     n.Title,
		Text:      n.Text,
		Status:    n.Status,
		Priority:  n.Priority,
		Color:     n.Color,
		UpdatedAt: n.UpdatedAt,
		Metadata:  n.Metadata,
		TermIDs:   n.TermIDs,
	}
	for _, rel := range n.Relationships {
		rec.Relationships = append(rec.Relationships, relationshipRecord{
			TargetID: rel.TargetID, Type: rel.Type, Metadata: rel.Metadata,
		})
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("kb: encode note %s: %w", n.ID, err)
	}
	return data, nil
}

func decodeNote(data []byte) (*Note, error) {
	var rec noteRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("kb: decode note: %w", err)
	}
	n := &Note{
		ID:        rec.ID,
		Type:      rec.Type,
		Title:     rec.Title,
		Text:      rec.Text,
		Status:    rec.Status,
		Priority:  rec.Priority,
		Color:     rec.Color,
		UpdatedAt: rec.UpdatedAt,
		Metadata:  rec.Metadata,
		TermIDs:   rec.TermIDs,
	}
	for _, rel := range rec.Relationships {
		n.Relationships = append(n.Relationships, Relationship{
			TargetID: rel.TargetID, Type: rel.Type, Metadata: rel.Metadata,
		})
	}
	return n, nil
}
