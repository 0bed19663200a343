package logic_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cogkernel/internal/kb"
	"cogkernel/internal/logic"
	"cogkernel/internal/persist"
	"cogkernel/internal/term"
	"cogkernel/internal/tools"
)

func newTestEngine(t *testing.T) (*logic.Engine, *kb.KnowledgeBase, *tools.Registry) {
	t.Helper()
	knowledgeBase := kb.New(persist.NewMemStore())
	require.NoError(t, knowledgeBase.Load(context.Background()))
	registry := tools.NewRegistry()
	newTC := func(ruleID string) *tools.ToolContext {
		return &tools.ToolContext{KB: knowledgeBase, RuleID: ruleID}
	}
	return logic.New(knowledgeBase, registry, newTC), knowledgeBase, registry
}

func mustTerm(t *testing.T, kif string) term.Term {
	t.Helper()
	parsed, err := term.Parse(kif)
	require.NoError(t, err)
	return parsed
}

// Asserting (parent alice bob) in the presence of a rule
// (=> (parent ?x ?y) (Assert (ancestor ?x ?y))) fires the engine and
// produces a new (ancestor alice bob) assertion justified by the rule,
// at derivation depth 1.
func TestProcessTermForwardChainsAncestorRule(t *testing.T) {
	engine, knowledgeBase, _ := newTestEngine(t)
	ctx := context.Background()

	rule := &kb.Rule{
		ID:         "ancestor-rule",
		Form:       mustTerm(t, "(=> (parent ?x ?y) (Assert (ancestor ?x ?y)))"),
		Antecedent: mustTerm(t, "(parent ?x ?y)"),
		Consequent: mustTerm(t, "(Assert (ancestor ?x ?y))"),
		Priority:   1.0,
	}
	_, err := knowledgeBase.SaveRule(ctx, rule)
	require.NoError(t, err)

	completion, err := engine.ProcessTerm(ctx, mustTerm(t, "(parent alice bob)"))
	require.NoError(t, err)
	require.NoError(t, completion.Wait())

	matches := knowledgeBase.QueryAssertions(mustTerm(t, "(ancestor alice bob)"))
	require.Len(t, matches, 1)
	assert.Equal(t, 1, matches[0].Depth)
	assert.True(t, matches[0].Justifications["ancestor-rule"])
}

func TestProcessTermNoMatchingRuleIsNoop(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	completion, err := engine.ProcessTerm(context.Background(), mustTerm(t, "(unrelated fact)"))
	require.NoError(t, err)
	require.NoError(t, completion.Wait())
}

func TestDoRetractByAtomDeletesDirectly(t *testing.T) {
	engine, knowledgeBase, _ := newTestEngine(t)
	ctx := context.Background()

	a := kb.NewAssertion("target-1", mustTerm(t, "(likes alice bob)"), 1.0, "", kb.GlobalKB, nil, 0)
	_, err := knowledgeBase.SaveAssertion(ctx, a)
	require.NoError(t, err)

	rule := &kb.Rule{
		ID:         "retract-by-id",
		Form:       mustTerm(t, "(=> (doRetract) (Retract target-1))"),
		Antecedent: mustTerm(t, "(doRetract)"),
		Consequent: mustTerm(t, "(Retract target-1)"),
		Priority:   1.0,
	}
	_, err = knowledgeBase.SaveRule(ctx, rule)
	require.NoError(t, err)

	completion, err := engine.ProcessTerm(ctx, mustTerm(t, "(doRetract)"))
	require.NoError(t, err)
	require.NoError(t, completion.Wait())

	_, ok := knowledgeBase.GetAssertion("target-1")
	assert.False(t, ok)
}

func TestDoRetractByPatternDeletesMatches(t *testing.T) {
	engine, knowledgeBase, _ := newTestEngine(t)
	ctx := context.Background()

	a := kb.NewAssertion("target-2", mustTerm(t, "(likes alice bob)"), 1.0, "", kb.GlobalKB, nil, 0)
	_, err := knowledgeBase.SaveAssertion(ctx, a)
	require.NoError(t, err)

	rule := &kb.Rule{
		ID:         "retract-by-pattern",
		Form:       mustTerm(t, "(=> (doRetract) (Retract (likes alice bob)))"),
		Antecedent: mustTerm(t, "(doRetract)"),
		Consequent: mustTerm(t, "(Retract (likes alice bob))"),
		Priority:   1.0,
	}
	_, err = knowledgeBase.SaveRule(ctx, rule)
	require.NoError(t, err)

	completion, err := engine.ProcessTerm(ctx, mustTerm(t, "(doRetract)"))
	require.NoError(t, err)
	require.NoError(t, completion.Wait())

	assert.Empty(t, knowledgeBase.QueryAssertions(mustTerm(t, "(likes alice bob)")))
}

// doExecuteTool always mirrors a tool's success/failure into a generic
// ToolResult/ToolError term, independent of whatever bespoke assertion
// the tool itself made.
type stubEchoTool struct{}

func (stubEchoTool) Name() string        { return "echo" }
func (stubEchoTool) Description() string { return "echoes its params" }
func (stubEchoTool) Execute(ctx context.Context, params term.Term, tc *tools.ToolContext) (term.Term, error) {
	return term.Atom("echoed"), nil
}

func TestDoExecuteToolAssertsGenericToolResult(t *testing.T) {
	engine, knowledgeBase, registry := newTestEngine(t)
	ctx := context.Background()
	require.NoError(t, registry.Register(stubEchoTool{}))

	rule := &kb.Rule{
		ID:         "run-echo",
		Form:       mustTerm(t, "(=> (doEcho) (ExecuteTool echo))"),
		Antecedent: mustTerm(t, "(doEcho)"),
		Consequent: mustTerm(t, "(ExecuteTool echo)"),
		Priority:   0.5,
	}
	_, err := knowledgeBase.SaveRule(ctx, rule)
	require.NoError(t, err)

	completion, err := engine.ProcessTerm(ctx, mustTerm(t, "(doEcho)"))
	require.NoError(t, err)
	require.NoError(t, completion.Wait())

	matches := knowledgeBase.QueryAssertions(mustTerm(t, "(ToolResult echo echoed run-echo)"))
	assert.Len(t, matches, 1)
}

type stubFailingTool struct{}

func (stubFailingTool) Name() string        { return "fail" }
func (stubFailingTool) Description() string { return "always fails" }
func (stubFailingTool) Execute(ctx context.Context, params term.Term, tc *tools.ToolContext) (term.Term, error) {
	return term.Term{}, fmt.Errorf("always fails")
}

func TestDoExecuteToolAssertsGenericToolErrorOnFailure(t *testing.T) {
	engine, knowledgeBase, registry := newTestEngine(t)
	ctx := context.Background()
	require.NoError(t, registry.Register(stubFailingTool{}))

	rule := &kb.Rule{
		ID:         "run-fail",
		Form:       mustTerm(t, "(=> (doFail) (ExecuteTool fail))"),
		Antecedent: mustTerm(t, "(doFail)"),
		Consequent: mustTerm(t, "(ExecuteTool fail)"),
		Priority:   0.5,
	}
	_, err := knowledgeBase.SaveRule(ctx, rule)
	require.NoError(t, err)

	completion, err := engine.ProcessTerm(ctx, mustTerm(t, "(doFail)"))
	require.NoError(t, err)
	require.NoError(t, completion.Wait())

	matches := knowledgeBase.QueryAssertions(mustTerm(t, `(ToolError fail "always fails" run-fail)`))
	assert.Len(t, matches, 1)
}

func TestSimplifyEliminatesDoubleNegation(t *testing.T) {
	result := logic.Simplify(mustTerm(t, "(not (not (likes alice bob)))"))
	assert.Equal(t, "(likes alice bob)", result.String())
}

func TestRenameRuleVariablesAvoidsCaptureAcrossDepths(t *testing.T) {
	first := logic.RenameRuleVariables(mustTerm(t, "(parent ?x ?y)"), 1)
	second := logic.RenameRuleVariables(mustTerm(t, "(parent ?x ?y)"), 2)
	assert.NotEqual(t, first.String(), second.String())
}
