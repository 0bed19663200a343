package term

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePrintRoundTrip(t *testing.T) {
	cases := []string{
		`(parent alice bob)`,
		`(not (parent ?x bob))`,
		`(= (f ?x) "hi there")`,
		`42`,
		`-3.5`,
		`"escaped \"quote\" and \\backslash"`,
		`?x`,
		`()`,
	}
	for _, s := range cases {
		tm, err := Parse(s)
		require.NoError(t, err, s)
		reparsed, err := Parse(tm.String())
		require.NoError(t, err, tm.String())
		assert.True(t, tm.Equal(reparsed), "round trip mismatch: %q -> %q", s, tm.String())
	}
}

func TestParseComments(t *testing.T) {
	tm, err := Parse("(parent alice bob) ; trailing comment\n")
	require.NoError(t, err)
	assert.Equal(t, "(parent alice bob)", tm.String())
}

func TestParseAllMultiple(t *testing.T) {
	terms, err := ParseAll(`(a 1) (b 2) ; comment
		(c 3)`)
	require.NoError(t, err)
	require.Len(t, terms, 3)
	assert.Equal(t, "(a 1)", terms[0].String())
	assert.Equal(t, "(c 3)", terms[2].String())
}

func TestOperatorAndArgs(t *testing.T) {
	tm, err := Parse(`(parent alice bob)`)
	require.NoError(t, err)
	op, ok := tm.Operator()
	require.True(t, ok)
	assert.Equal(t, "parent", op)

	a0, ok := tm.Arg(0)
	require.True(t, ok)
	assert.Equal(t, "alice", mustAtom(a0))

	a1, ok := tm.Arg(1)
	require.True(t, ok)
	assert.Equal(t, "bob", mustAtom(a1))

	_, ok = tm.Arg(2)
	assert.False(t, ok)
}

func mustAtom(t Term) string {
	s, _ := t.AtomName()
	return s
}

func TestEqualityAndGround(t *testing.T) {
	a, _ := Parse(`(parent alice bob)`)
	b, _ := Parse(`(parent alice bob)`)
	c, _ := Parse(`(parent ?x bob)`)

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.True(t, a.IsGround())
	assert.False(t, c.IsGround())

	if diff := cmp.Diff(a.String(), b.String()); diff != "" {
		t.Errorf("unexpected diff (-want +got):\n%s", diff)
	}
}

func TestVarsAndTransform(t *testing.T) {
	tm, _ := Parse(`(likes ?x (food ?y ?x))`)
	assert.Equal(t, []string{"x", "y"}, tm.Vars())

	renamed := tm.Transform(func(sub Term) Term {
		if name, ok := sub.VarName(); ok {
			return Var(name + "_1")
		}
		return sub
	})
	assert.Equal(t, "(likes ?x_1 (food ?y_1 ?x_1))", renamed.String())
}

func TestHashStableAndDiscriminating(t *testing.T) {
	a, _ := Parse(`(parent alice bob)`)
	b, _ := Parse(`(parent alice bob)`)
	c, _ := Parse(`(parent bob alice)`)

	assert.Equal(t, a.Hash(), b.Hash())
	assert.NotEqual(t, a.Hash(), c.Hash())
}
