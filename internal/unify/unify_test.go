package unify

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cogkernel/internal/term"
)

func parse(t *testing.T, s string) term.Term {
	t.Helper()
	tm, err := term.Parse(s)
	require.NoError(t, err, s)
	return tm
}

func TestUnifySoundness(t *testing.T) {
	x := parse(t, `(parent ?x bob)`)
	y := parse(t, `(parent alice bob)`)

	b, ok := Unify(x, y, Empty())
	require.True(t, ok)

	img, bound := b.Lookup("x")
	require.True(t, bound)
	assert.Equal(t, "alice", mustAtomName(t, img))
}

func TestUnifyFailsOnClash(t *testing.T) {
	x := parse(t, `(parent alice ?y)`)
	y := parse(t, `(parent bob ?y)`)

	_, ok := Unify(x, y, Empty())
	assert.False(t, ok)
}

func TestUnifySelfIsNoop(t *testing.T) {
	v := term.Var("x")
	b, ok := Unify(v, v, Empty())
	require.True(t, ok)
	assert.Equal(t, 0, b.Len())
}

func TestOccursCheckRejectsCycle(t *testing.T) {
	x := term.Var("x")
	fx := parse(t, `(f ?x)`)

	_, ok := Unify(x, fx, Empty())
	assert.False(t, ok, "unify(?x, f(?x)) must fail the occurs check")
}

func TestMatchIsOneSided(t *testing.T) {
	pattern := parse(t, `(parent ?x ?z)`)
	target := parse(t, `(parent alice ?y)`)

	b, ok := Match(pattern, target, Empty())
	require.True(t, ok)

	img, bound := b.Lookup("x")
	require.True(t, bound)
	assert.Equal(t, "alice", mustAtomName(t, img))

	// target-side ?y must never be bound, even though it is unbound.
	_, yBound := b.Lookup("y")
	assert.False(t, yBound)
}

func TestMatchFailsOnStructuralMismatch(t *testing.T) {
	pattern := parse(t, `(parent ?x bob)`)
	target := parse(t, `(parent alice carol)`)

	_, ok := Match(pattern, target, Empty())
	assert.False(t, ok)
}

func TestSubstIdempotent(t *testing.T) {
	tm := parse(t, `(parent ?x ?y)`)
	b := Empty().Extend("x", parse(t, "alice")).Extend("y", parse(t, "bob"))

	once, err := Subst(tm, b, Fully)
	require.NoError(t, err)

	twice, err := Subst(once, b, Fully)
	require.NoError(t, err)

	assert.True(t, once.Equal(twice))
	assert.Equal(t, "(parent alice bob)", once.String())
}

func TestSubstDepthExceeded(t *testing.T) {
	b := Empty()
	for i := 0; i < 100; i++ {
		b = b.Extend(varName(i), term.Var(varName(i+1)))
	}
	_, err := Subst(term.Var(varName(0)), b, Fully)
	assert.ErrorIs(t, err, ErrDepthExceeded)
}

func varName(i int) string {
	return fmt.Sprintf("v%d", i)
}

func TestRewriteRoundTrip(t *testing.T) {
	target := parse(t, `(likes alice bob)`)
	lhs := parse(t, `(likes ?x ?y)`)
	rhs := parse(t, `(likes ?y ?x)`)

	rewritten, ok := Rewrite(target, lhs, rhs)
	require.True(t, ok)
	assert.Equal(t, "(likes bob alice)", rewritten.String())

	back, ok := Rewrite(rewritten, lhs, rhs)
	require.True(t, ok)
	assert.True(t, back.Equal(target))
}

func TestSimplifyDoubleNegation(t *testing.T) {
	tm := parse(t, `(not (not (happy alice)))`)
	simplified := Simplify(tm)
	assert.Equal(t, "(happy alice)", simplified.String())
}

func TestSimplifyDeMorgan(t *testing.T) {
	tm := parse(t, `(not (and (happy alice) (sad bob)))`)
	simplified := Simplify(tm)
	assert.Equal(t, "(or (not (happy alice)) (not (sad bob)))", simplified.String())
}

func TestTrivialReflexive(t *testing.T) {
	assert.True(t, IsTrivial(parse(t, `(equal alice alice)`)))
	assert.True(t, IsTrivial(parse(t, `(instance Foo Foo)`)))
	assert.True(t, IsTrivial(parse(t, `(not trivial)`)))
	assert.False(t, IsTrivial(parse(t, `(equal alice bob)`)))
	assert.False(t, IsTrivial(parse(t, `(parent alice bob)`)))
}

func TestSkolemizeNoEscapingVars(t *testing.T) {
	ResetSkolemCounterForTest()
	tm := parse(t, `(exists (?x) (likes ?x alice))`)

	result, ok := Skolemize(tm)
	require.True(t, ok)
	assert.True(t, IsSkolem(mustArg(t, result, 0)))
	assert.Equal(t, "alice", mustAtomName(t, mustArg(t, result, 1)))
}

func TestSkolemizeWithEscapingVars(t *testing.T) {
	ResetSkolemCounterForTest()
	tm := parse(t, `(forall (?y) (exists (?x) (likes ?x ?y)))`)
	body, _ := tm.Arg(1)

	result, ok := Skolemize(body)
	require.True(t, ok)

	sk := mustArg(t, result, 0)
	assert.True(t, sk.IsLst(), "expected a skolem function application over the escaping variable ?y")
	op, ok := sk.Operator()
	require.True(t, ok)
	assert.True(t, hasSkolemPrefix(op))
}

func TestSkolemizeRejectsNonExists(t *testing.T) {
	tm := parse(t, `(likes alice bob)`)
	_, ok := Skolemize(tm)
	assert.False(t, ok)
}

func mustAtomName(t *testing.T, tm term.Term) string {
	t.Helper()
	s, ok := tm.AtomName()
	require.True(t, ok)
	return s
}

func mustArg(t *testing.T, tm term.Term, i int) term.Term {
	t.Helper()
	a, ok := tm.Arg(i)
	require.True(t, ok)
	return a
}
