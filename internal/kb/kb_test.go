package kb_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cogkernel/internal/kb"
	"cogkernel/internal/persist"
	"cogkernel/internal/term"
)

func newKB(t *testing.T) *kb.KnowledgeBase {
	t.Helper()
	k := kb.New(persist.NewMemStore())
	require.NoError(t, k.Load(context.Background()))
	return k
}

func mustTerm(t *testing.T, kif string) term.Term {
	t.Helper()
	parsed, err := term.Parse(kif)
	require.NoError(t, err)
	return parsed
}

// Save then delete returns the KB to its pre-state.
func TestKBRoundTrip(t *testing.T) {
	k := newKB(t)
	before := k.Snapshot()

	a := kb.NewAssertion("a1", mustTerm(t, "(parent alice bob)"), 1.0, "", kb.GlobalKB, nil, 0)
	_, err := k.SaveAssertion(context.Background(), a)
	require.NoError(t, err)
	require.NoError(t, k.DeleteAssertion(context.Background(), "a1"))

	after := k.Snapshot()
	if diff := cmp.Diff(before, after); diff != "" {
		t.Fatalf("KB state differs after save+delete round trip (-before +after):\n%s", diff)
	}
}

// active == (justifications empty OR every justification active).
func TestTMSConsistency(t *testing.T) {
	k := newKB(t)
	ctx := context.Background()

	root := kb.NewAssertion("root", mustTerm(t, "(parent alice bob)"), 1.0, "", kb.GlobalKB, nil, 0)
	_, err := k.SaveAssertion(ctx, root)
	require.NoError(t, err)

	derived := kb.NewAssertion("derived", mustTerm(t, "(ancestor alice bob)"), 0.9, "", kb.GlobalKB,
		map[string]bool{"root": true}, 1)
	_, err = k.SaveAssertion(ctx, derived)
	require.NoError(t, err)

	got, ok := k.GetAssertion("derived")
	require.True(t, ok)
	assert.True(t, got.Active, "derived assertion should be active while its justification is active")

	require.NoError(t, k.DeleteAssertion(ctx, "root"))

	got, ok = k.GetAssertion("derived")
	require.True(t, ok, "S3: the dependent's record remains in storage")
	assert.False(t, got.Active, "S3: the dependent becomes inactive once its only justification is gone")
}

// Every active assertion is found by querying with its own kif.
func TestIndexCoverage(t *testing.T) {
	k := newKB(t)
	ctx := context.Background()

	kifs := []string{
		"(parent alice bob)",
		"(likes alice chocolate)",
		"(likes bob chocolate)",
	}
	for i, kif := range kifs {
		a := kb.NewAssertion(kif, mustTerm(t, kif), 1.0, "", kb.GlobalKB, nil, 0)
		_, err := k.SaveAssertion(ctx, a)
		require.NoError(t, err, "assertion %d", i)
	}

	for _, kif := range kifs {
		matches := k.QueryAssertions(mustTerm(t, kif), kb.GlobalKB)
		require.Len(t, matches, 1, "querying with its own kif must return the assertion: %s", kif)
		assert.Equal(t, kif, matches[0].Kif.String())
	}
}

// Re-asserting a structurally identical active
// term is a no-op (dedup via FindEquivalent), which is what makes the
// engine/tools layer's trivial-rejection meaningful — see
// internal/tools for the (instance X X) rejection itself.
func TestSaveAssertionDedupsEquivalent(t *testing.T) {
	k := newKB(t)
	ctx := context.Background()

	first := kb.NewAssertion("first", mustTerm(t, "(likes alice bob)"), 1.0, "", kb.GlobalKB, nil, 0)
	saved, err := k.SaveAssertion(ctx, first)
	require.NoError(t, err)

	second := kb.NewAssertion("second", mustTerm(t, "(likes alice bob)"), 1.0, "", kb.GlobalKB, nil, 0)
	dedup, err := k.SaveAssertion(ctx, second)
	require.NoError(t, err)

	assert.Equal(t, saved.ID, dedup.ID, "re-asserting an equivalent active term must return the existing assertion")
	assert.Equal(t, 1, k.Stats().Assertions[kb.GlobalKB], "the dedup must not create a second stored assertion")
}

func TestQueryAssertionsScopesByKbIDAndSkipsUniversal(t *testing.T) {
	k := newKB(t)
	ctx := context.Background()

	inNote := kb.NewAssertion("note-a", mustTerm(t, "(task pending)"), 1.0, "", "note-1", nil, 0)
	_, err := k.SaveAssertion(ctx, inNote)
	require.NoError(t, err)

	global := kb.NewAssertion("global-a", mustTerm(t, "(task pending)"), 1.0, "", kb.GlobalKB, nil, 0)
	_, err = k.SaveAssertion(ctx, global)
	require.NoError(t, err)

	matches := k.QueryAssertions(mustTerm(t, "(task pending)"), "note-1")
	require.Len(t, matches, 1)
	assert.Equal(t, "note-a", matches[0].ID)

	universal := kb.NewAssertion("univ-a", mustTerm(t, "(forall (?x) (mortal ?x))"), 1.0, "", kb.GlobalKB, nil, 0)
	_, err = k.SaveAssertion(ctx, universal)
	require.NoError(t, err)

	none := k.QueryAssertions(mustTerm(t, "(forall (?x) (mortal ?x))"), kb.GlobalKB)
	assert.Empty(t, none, "Universal-typed assertions are not returned by ground queries")
}

func TestFindMatchingRulesOrdersByPriorityThenID(t *testing.T) {
	k := newKB(t)
	ctx := context.Background()

	low := &kb.Rule{ID: "r-low", Form: mustTerm(t, "(=> (trigger ?x) (Assert low))"),
		Antecedent: mustTerm(t, "(trigger ?x)"), Consequent: mustTerm(t, "(Assert low)"), Priority: 0.1}
	high := &kb.Rule{ID: "r-high", Form: mustTerm(t, "(=> (trigger ?x) (Assert high))"),
		Antecedent: mustTerm(t, "(trigger ?x)"), Consequent: mustTerm(t, "(Assert high)"), Priority: 0.9}

	_, err := k.SaveRule(ctx, low)
	require.NoError(t, err)
	_, err = k.SaveRule(ctx, high)
	require.NoError(t, err)

	matches := k.FindMatchingRules(mustTerm(t, "(trigger a)"))
	require.Len(t, matches, 2)
	assert.Equal(t, "r-high", matches[0].ID)
	assert.Equal(t, "r-low", matches[1].ID)
}
