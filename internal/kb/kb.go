package kb

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"cogkernel/internal/events"
	"cogkernel/internal/logging"
	"cogkernel/internal/persist"
	"cogkernel/internal/term"
	"cogkernel/internal/unify"
)

// AssertionSavedEvent is the events.Bus event name SaveAssertion
// publishes, with Data set to the saved *Assertion, whenever it stores a
// genuinely new (not deduplicated) assertion that is active. Engines
// subscribe via SubscribeNewAssertions to re-enter matching on every
// fact the knowledge base admits, so multi-hop rule chains fire without
// an external driver re-invoking them.
const AssertionSavedEvent = "kb.assertion.saved"

const (
	notePrefix      = "notes/"
	assertionPrefix = "assertions/"
	rulePrefix      = "rules/"
)

// KnowledgeBase is the kernel's single shared mutable store: notes,
// assertions, and rules, their predicate/path indices, and the
// justification TMS that derives each assertion's active flag. Every
// public mutation is write-through to the backing persist.Store before
// it returns: persistence writes are linearizable.
type KnowledgeBase struct {
	mu sync.RWMutex

	store persist.Store

	assertions map[string]*Assertion
	rules      map[string]*Rule
	rulesByForm map[uint64]string // form hash -> rule id, for content-addressing
	notes      map[string]*Note

	predIdx *predicateIndex
	pathIdx *pathIndex
	tms     *tms
	bus     *events.Bus

	capacities map[string]int // kbId -> max assertion count, 0 = unbounded
}

// New constructs an empty KnowledgeBase backed by store. Call Load to
// populate it from existing persisted records.
func New(store persist.Store) *KnowledgeBase {
	return &KnowledgeBase{
		store:       store,
		assertions:  make(map[string]*Assertion),
		rules:       make(map[string]*Rule),
		rulesByForm: make(map[uint64]string),
		notes:       make(map[string]*Note),
		predIdx:     newPredicateIndex(),
		pathIdx:     newPathIndex(),
		tms:         newTMS(),
		capacities:  make(map[string]int),
	}
}

// SetCapacity configures the eviction ceiling for kbId; 0 disables
// enforcement (the default).
func (kb *KnowledgeBase) SetCapacity(kbID string, capacity int) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	kb.capacities[kbID] = capacity
}

// SetBus attaches the event bus SaveAssertion publishes
// AssertionSavedEvent to. Optional: a nil bus (the default) disables
// publishing entirely.
func (kb *KnowledgeBase) SetBus(bus *events.Bus) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	kb.bus = bus
}

// SubscribeNewAssertions registers fn to run for every assertion
// SaveAssertion newly admits as active, whether it was asserted by a
// rule's consequent or directly by a tool. Returns an unsubscribe
// function. A no-op returning a no-op unsubscribe if no bus is attached.
func (kb *KnowledgeBase) SubscribeNewAssertions(fn func(*Assertion)) func() {
	kb.mu.RLock()
	bus := kb.bus
	kb.mu.RUnlock()
	if bus == nil {
		return func() {}
	}
	return bus.Subscribe(AssertionSavedEvent, func(ev events.Event) {
		if a, ok := ev.Data.(*Assertion); ok {
			fn(a)
		}
	})
}

// Load reads every persisted note, rule, and assertion, rebuilds the
// in-memory indices, and runs one TMS pass from roots (assertions with
// no justifications) outward to recompute every assertion's active flag.
func (kb *KnowledgeBase) Load(ctx context.Context) error {
	kb.mu.Lock()
	defer kb.mu.Unlock()

	noteBlobs, err := kb.store.ListByPrefix(ctx, notePrefix)
	if err != nil {
		return fmt.Errorf("kb: load notes: %w", err)
	}
	for _, data := range noteBlobs {
		n, err := decodeNote(data)
		if err != nil {
			return err
		}
		kb.notes[n.ID] = n
	}

	ruleBlobs, err := kb.store.ListByPrefix(ctx, rulePrefix)
	if err != nil {
		return fmt.Errorf("kb: load rules: %w", err)
	}
	for _, data := range ruleBlobs {
		r, err := decodeRule(data)
		if err != nil {
			return err
		}
		kb.rules[r.ID] = r
		kb.rulesByForm[r.Form.Hash()] = r.ID
	}

	assertionBlobs, err := kb.store.ListByPrefix(ctx, assertionPrefix)
	if err != nil {
		return fmt.Errorf("kb: load assertions: %w", err)
	}
	for _, data := range assertionBlobs {
		a, err := decodeAssertion(data)
		if err != nil {
			return err
		}
		kb.assertions[a.ID] = a
		kb.predIdx.Insert(a.ID, a.Kif)
		kb.pathIdx.Insert(a.ID, a.EffectiveTerm())
		for j := range a.Justifications {
			kb.tms.addDependency(j, a.ID)
		}
	}

	kb.recomputeAllLocked()
	logging.Get(logging.CategoryKB).Infow("kb loaded",
		"notes", len(kb.notes), "rules", len(kb.rules), "assertions", len(kb.assertions))
	return nil
}

// justificationActiveLocked resolves a justification id to its active
// state: an assertion id is active iff that assertion's Active flag is
// set; a rule id is active iff the rule still exists (rules have no
// active flag of their own — their mere presence justifies what they
// fired). Caller must hold kb.mu.
func (kb *KnowledgeBase) justificationActiveLocked(id string) (active, found bool) {
	if dep, ok := kb.assertions[id]; ok {
		return dep.Active, true
	}
	if _, ok := kb.rules[id]; ok {
		return true, true
	}
	return false, false
}

// recomputeAllLocked reseeds the TMS worklist from root assertions
// (empty justification sets) and propagates to every dependent. Caller
// must hold kb.mu.
func (kb *KnowledgeBase) recomputeAllLocked() {
	worklist := make([]string, 0, len(kb.assertions))
	for id, a := range kb.assertions {
		if len(a.Justifications) == 0 {
			worklist = append(worklist, id)
		}
	}
	kb.propagateLocked(worklist)
}

// propagateLocked recomputes active for every id in worklist and, for
// each whose active flag actually changed, enqueues its dependents too.
// Caller must hold kb.mu.
func (kb *KnowledgeBase) propagateLocked(worklist []string) {
	seen := map[string]bool{}
	for len(worklist) > 0 {
		id := worklist[0]
		worklist = worklist[1:]
		if seen[id] {
			continue
		}
		seen[id] = true

		a, ok := kb.assertions[id]
		if !ok {
			continue
		}
		newActive := computeActive(a, kb.justificationActiveLocked)
		if newActive != a.Active {
			a.Active = newActive
			worklist = append(worklist, kb.tms.dependentsOf(id)...)
		}
	}
}

// persistAssertionLocked writes a to the store. Caller must hold kb.mu.
func (kb *KnowledgeBase) persistAssertionLocked(ctx context.Context, a *Assertion) error {
	data, err := encodeAssertion(a)
	if err != nil {
		return err
	}
	if err := kb.store.Save(ctx, assertionPrefix+a.ID, data); err != nil {
		return fmt.Errorf("kb: persist assertion %s: %w", a.ID, err)
	}
	return nil
}

// FindEquivalent returns an existing active assertion in the same kbId
// whose effective term is structurally equal to a's, if one exists. The
// engine/tools use this so that re-issuing an assertion that is
// structurally identical to an existing active one is a no-op.
func (kb *KnowledgeBase) FindEquivalent(a *Assertion) (*Assertion, bool) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	for _, existing := range kb.assertions {
		if !existing.Active || existing.KbID != a.KbID {
			continue
		}
		if existing.IsNegated == a.IsNegated && existing.EffectiveTerm().Equal(a.EffectiveTerm()) {
			return existing, true
		}
	}
	return nil, false
}

// SaveAssertion stores a (deduplicating against an existing active
// equivalent), updates indices and the TMS, persists, enforces capacity
// for a.KbID, and publishes AssertionSavedEvent so any subscribed engine
// re-enters matching against the new fact.
func (kb *KnowledgeBase) SaveAssertion(ctx context.Context, a *Assertion) (*Assertion, error) {
	if existing, ok := kb.FindEquivalent(a); ok {
		return existing, nil
	}

	kb.mu.Lock()

	kb.assertions[a.ID] = a
	kb.predIdx.Insert(a.ID, a.Kif)
	kb.pathIdx.Insert(a.ID, a.EffectiveTerm())
	for j := range a.Justifications {
		kb.tms.addDependency(j, a.ID)
	}

	a.Active = computeActive(a, kb.justificationActiveLocked)

	if err := kb.persistAssertionLocked(ctx, a); err != nil {
		kb.mu.Unlock()
		return nil, err
	}

	kb.enforceCapacityLocked(ctx, a.KbID)
	_, survivedEviction := kb.assertions[a.ID]
	bus := kb.bus
	kb.mu.Unlock()

	logging.Get(logging.CategoryKB).Debugw("assertion saved", "id", a.ID, "kbId", a.KbID, "kif", a.Kif.String())
	if bus != nil && survivedEviction && a.Active {
		bus.Publish(events.Event{Name: AssertionSavedEvent, Data: a})
	}
	return a, nil
}

// DeleteAssertion removes id from the KB and recomputes the active flag
// of every transitive dependent (they become inactive unless another
// live justification keeps them active). A dependent assertion's record
// may remain in storage with active=false rather than being deleted
// itself.
func (kb *KnowledgeBase) DeleteAssertion(ctx context.Context, id string) error {
	kb.mu.Lock()
	defer kb.mu.Unlock()

	a, ok := kb.assertions[id]
	if !ok {
		return nil
	}

	deps := kb.tms.dependentsOf(id)

	delete(kb.assertions, id)
	kb.predIdx.Delete(id, a.Kif)
	kb.pathIdx.Delete(id)
	kb.tms.removeAssertion(id)
	if err := kb.store.Delete(ctx, assertionPrefix+id); err != nil {
		return fmt.Errorf("kb: delete assertion %s: %w", id, err)
	}

	kb.propagateLocked(deps)
	for _, depID := range deps {
		if dep, ok := kb.assertions[depID]; ok {
			if err := kb.persistAssertionLocked(ctx, dep); err != nil {
				return err
			}
		}
	}

	logging.Get(logging.CategoryKB).Debugw("assertion deleted", "id", id, "kbId", a.KbID)
	return nil
}

// GetAssertion returns the assertion by id.
func (kb *KnowledgeBase) GetAssertion(id string) (*Assertion, bool) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	a, ok := kb.assertions[id]
	return a, ok
}

// QueryAssertions implements a four-step algorithm: peel a leading
// (not P), filter the predicate index's candidates to active assertions
// whose negation matches, then keep those that unify with pattern.
func (kb *KnowledgeBase) QueryAssertions(pattern term.Term, kbIDs ...string) []*Assertion {
	wantNegated := false
	query := pattern
	if op, ok := pattern.Operator(); ok && op == "not" && pattern.Arity() == 1 {
		wantNegated = true
		query, _ = pattern.Arg(0)
	}

	operator, hasOp := query.Operator()

	kb.mu.RLock()
	defer kb.mu.RUnlock()

	var candidateIDs []string
	if hasOp {
		candidateIDs = kb.predIdx.CandidatesFor(operator)
	} else {
		for id := range kb.assertions {
			candidateIDs = append(candidateIDs, id)
		}
	}

	scope := make(map[string]bool, len(kbIDs))
	for _, k := range kbIDs {
		scope[k] = true
	}

	var out []*Assertion
	for _, id := range candidateIDs {
		a, ok := kb.assertions[id]
		if !ok || !a.Active || a.IsNegated != wantNegated {
			continue
		}
		if a.Type == Universal {
			// UNIVERSAL assertions are not matched by
			// ground queryAssertions; only rules that explicitly handle
			// quantifier elimination see them.
			continue
		}
		if len(scope) > 0 && !scope[a.KbID] {
			continue
		}
		if _, ok := unify.Unify(query, a.EffectiveTerm(), unify.Empty()); ok {
			out = append(out, a)
		}
	}
	sortAssertions(out)
	return out
}

func sortAssertions(as []*Assertion) {
	sort.Slice(as, func(i, j int) bool {
		if as[i].Timestamp != as[j].Timestamp {
			return as[i].Timestamp < as[j].Timestamp
		}
		if as[i].Priority != as[j].Priority {
			return as[i].Priority > as[j].Priority
		}
		return as[i].ID < as[j].ID
	})
}

// FindMatchingRules returns every rule whose antecedent unifies with t,
// for the engine's rule-matching step.
func (kb *KnowledgeBase) FindMatchingRules(t term.Term) []*Rule {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	var out []*Rule
	for _, r := range kb.rules {
		if _, ok := unify.Unify(r.Antecedent, t, unify.Empty()); ok {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// SaveRule stores r, deduplicating on form equality (rules are
// content-addressable by form): if an existing rule has the same
// form, its id is returned instead of creating a duplicate.
func (kb *KnowledgeBase) SaveRule(ctx context.Context, r *Rule) (*Rule, error) {
	kb.mu.Lock()
	defer kb.mu.Unlock()

	h := r.Form.Hash()
	if existingID, ok := kb.rulesByForm[h]; ok {
		if existing, ok := kb.rules[existingID]; ok && existing.Form.Equal(r.Form) {
			return existing, nil
		}
	}

	kb.rules[r.ID] = r
	kb.rulesByForm[h] = r.ID

	data, err := encodeRule(r)
	if err != nil {
		return nil, err
	}
	if err := kb.store.Save(ctx, rulePrefix+r.ID, data); err != nil {
		return nil, fmt.Errorf("kb: persist rule %s: %w", r.ID, err)
	}
	logging.Get(logging.CategoryKB).Debugw("rule saved", "id", r.ID, "form", r.Form.String())
	return r, nil
}

// DeleteRule removes a rule by id and recomputes the active flag of
// every assertion it justified (they become inactive unless another
// live justification keeps them active). Rules are never evicted by
// capacity but may be deleted explicitly.
func (kb *KnowledgeBase) DeleteRule(ctx context.Context, id string) error {
	kb.mu.Lock()
	defer kb.mu.Unlock()

	r, ok := kb.rules[id]
	if !ok {
		return nil
	}

	deps := kb.tms.dependentsOf(id)

	delete(kb.rules, id)
	delete(kb.rulesByForm, r.Form.Hash())
	kb.tms.removeAssertion(id)
	if err := kb.store.Delete(ctx, rulePrefix+id); err != nil {
		return fmt.Errorf("kb: delete rule %s: %w", id, err)
	}

	kb.propagateLocked(deps)
	for _, depID := range deps {
		if dep, ok := kb.assertions[depID]; ok {
			if err := kb.persistAssertionLocked(ctx, dep); err != nil {
				return err
			}
		}
	}

	return nil
}

// GetRule returns the rule by id.
func (kb *KnowledgeBase) GetRule(id string) (*Rule, bool) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	r, ok := kb.rules[id]
	return r, ok
}

// SaveNote stores n (create or full replace).
func (kb *KnowledgeBase) SaveNote(ctx context.Context, n *Note) error {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	kb.notes[n.ID] = n
	data, err := encodeNote(n)
	if err != nil {
		return err
	}
	if err := kb.store.Save(ctx, notePrefix+n.ID, data); err != nil {
		return fmt.Errorf("kb: persist note %s: %w", n.ID, err)
	}
	return nil
}

// DeleteNote removes a note by id. It does not cascade to assertions
// sourced from the note; callers that want that must delete them
// explicitly.
func (kb *KnowledgeBase) DeleteNote(ctx context.Context, id string) error {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	delete(kb.notes, id)
	if err := kb.store.Delete(ctx, notePrefix+id); err != nil {
		return fmt.Errorf("kb: delete note %s: %w", id, err)
	}
	return nil
}

// GetNote returns the note by id.
func (kb *KnowledgeBase) GetNote(id string) (*Note, bool) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	n, ok := kb.notes[id]
	return n, ok
}

// ListNotes returns every stored note, order unspecified.
func (kb *KnowledgeBase) ListNotes() []*Note {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	out := make([]*Note, 0, len(kb.notes))
	for _, n := range kb.notes {
		out = append(out, n)
	}
	return out
}

// SaveRelationship appends or replaces (by TargetID+Type) a relationship
// on the source note.
func (kb *KnowledgeBase) SaveRelationship(ctx context.Context, sourceNoteID string, rel Relationship) error {
	kb.mu.Lock()
	n, ok := kb.notes[sourceNoteID]
	if !ok {
		kb.mu.Unlock()
		return fmt.Errorf("kb: save relationship: source note %s not found", sourceNoteID)
	}
	replaced := false
	for i, existing := range n.Relationships {
		if existing.TargetID == rel.TargetID && existing.Type == rel.Type {
			n.Relationships[i] = rel
			replaced = true
			break
		}
	}
	if !replaced {
		n.Relationships = append(n.Relationships, rel)
	}
	kb.mu.Unlock()
	return kb.SaveNote(ctx, n)
}

// DeleteRelationship removes the relationship identified by
// (targetId, type) from sourceNoteId.
func (kb *KnowledgeBase) DeleteRelationship(ctx context.Context, sourceNoteID, targetID, relType string) error {
	kb.mu.Lock()
	n, ok := kb.notes[sourceNoteID]
	if !ok {
		kb.mu.Unlock()
		return nil
	}
	out := n.Relationships[:0]
	for _, existing := range n.Relationships {
		if existing.TargetID == targetID && existing.Type == relType {
			continue
		}
		out = append(out, existing)
	}
	n.Relationships = out
	kb.mu.Unlock()
	return kb.SaveNote(ctx, n)
}

// Clear wipes every note, rule, and assertion from memory and the
// backing store.
func (kb *KnowledgeBase) Clear(ctx context.Context) error {
	kb.mu.Lock()
	defer kb.mu.Unlock()

	for _, prefix := range []string{notePrefix, assertionPrefix, rulePrefix} {
		if err := kb.store.Clear(ctx, prefix); err != nil {
			return fmt.Errorf("kb: clear %s: %w", prefix, err)
		}
	}
	kb.assertions = make(map[string]*Assertion)
	kb.rules = make(map[string]*Rule)
	kb.rulesByForm = make(map[uint64]string)
	kb.notes = make(map[string]*Note)
	kb.predIdx = newPredicateIndex()
	kb.pathIdx = newPathIndex()
	kb.tms = newTMS()
	logging.Get(logging.CategoryKB).Infow("kb cleared")
	return nil
}

// enforceCapacityLocked evicts the lowest-priority inactive assertion
// first, then the lowest-priority active leaf (no dependents), until
// kbId is at or under its configured capacity. Caller must hold kb.mu.
// A capacity of 0 disables enforcement.
func (kb *KnowledgeBase) enforceCapacityLocked(ctx context.Context, kbID string) {
	capacity := kb.capacities[kbID]
	if capacity <= 0 {
		return
	}

	for {
		var inScope []*Assertion
		for _, a := range kb.assertions {
			if a.KbID == kbID {
				inScope = append(inScope, a)
			}
		}
		if len(inScope) <= capacity {
			return
		}

		victim := kb.pickEvictionVictimLocked(inScope)
		if victim == nil {
			return
		}
		deps := kb.tms.dependentsOf(victim.ID)
		delete(kb.assertions, victim.ID)
		kb.predIdx.Delete(victim.ID, victim.Kif)
		kb.pathIdx.Delete(victim.ID)
		kb.tms.removeAssertion(victim.ID)
		_ = kb.store.Delete(ctx, assertionPrefix+victim.ID)
		kb.propagateLocked(deps)
		logging.Get(logging.CategoryKB).Debugw("assertion evicted", "id", victim.ID, "kbId", kbID)
	}
}

func (kb *KnowledgeBase) pickEvictionVictimLocked(inScope []*Assertion) *Assertion {
	var lowestInactive *Assertion
	var lowestLeaf *Assertion
	for _, a := range inScope {
		if !a.Active {
			if lowestInactive == nil || a.Priority < lowestInactive.Priority {
				lowestInactive = a
			}
			continue
		}
		if len(kb.tms.dependentsOf(a.ID)) == 0 {
			if lowestLeaf == nil || a.Priority < lowestLeaf.Priority {
				lowestLeaf = a
			}
		}
	}
	if lowestInactive != nil {
		return lowestInactive
	}
	return lowestLeaf
}

// KBStats reports per-kbId assertion and rule counts.
type KBStats struct {
	Assertions map[string]int
	ActiveOnly map[string]int
	Rules      int
	Notes      int
}

// Stats reports per-kbId assertion/rule counts; the knowledge base's
// dedup test reads it.
func (kb *KnowledgeBase) Stats() KBStats {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	s := KBStats{
		Assertions: make(map[string]int),
		ActiveOnly: make(map[string]int),
		Rules:      len(kb.rules),
		Notes:      len(kb.notes),
	}
	for _, a := range kb.assertions {
		s.Assertions[a.KbID]++
		if a.Active {
			s.ActiveOnly[a.KbID]++
		}
	}
	return s
}

// Snapshot is a deep-enough copy of the KB's state for round-trip
// equality tests, without re-reading from disk.
type Snapshot struct {
	Assertions map[string]Assertion
	Rules      map[string]Rule
	Notes      map[string]Note
}

// Snapshot captures the current in-memory state.
func (kb *KnowledgeBase) Snapshot() Snapshot {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	snap := Snapshot{
		Assertions: make(map[string]Assertion, len(kb.assertions)),
		Rules:      make(map[string]Rule, len(kb.rules)),
		Notes:      make(map[string]Note, len(kb.notes)),
	}
	for id, a := range kb.assertions {
		snap.Assertions[id] = *a
	}
	for id, r := range kb.rules {
		snap.Rules[id] = *r
	}
	for id, n := range kb.notes {
		snap.Notes[id] = *n
	}
	return snap
}
