// Package logic implements the term-logic engine: given an input
// term, it finds every rule whose antecedent unifies with it, substitutes
// the match's bindings into the consequent, and interprets the result as
// one of the Assert/Retract/ExecuteTool action operators.
package logic

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"cogkernel/internal/kb"
	"cogkernel/internal/kerr"
	"cogkernel/internal/logging"
	"cogkernel/internal/term"
	"cogkernel/internal/tools"
	"cogkernel/internal/unify"
)

// priorityDecay is the per-firing decay applied to a derived assertion's
// priority relative to the rule that produced it ("priority = rule
// priority × decay").
const priorityDecay = 0.95

// Engine matches terms against the knowledge base's rules and executes
// the resulting action terms.
type Engine struct {
	kb       *kb.KnowledgeBase
	registry *tools.Registry
	newTC    func(ruleID string) *tools.ToolContext
}

// New constructs an Engine over knowledgeBase and registry. newToolContext
// builds a fresh *tools.ToolContext for each ExecuteTool invocation,
// tagging it with the firing rule's id for ToolResult/ToolError
// correlation.
func New(knowledgeBase *kb.KnowledgeBase, registry *tools.Registry, newToolContext func(ruleID string) *tools.ToolContext) *Engine {
	return &Engine{kb: knowledgeBase, registry: registry, newTC: newToolContext}
}

// WireAutoForwardChaining subscribes to the knowledge base's
// new-assertion event so that every fact the KB admits — whether
// produced by a rule's Assert consequent, a tool's ToolResult/ToolError,
// or a tool asserting directly — automatically re-enters matching.
// Without this, forward chaining would stop after one hop: nothing
// would drive a derived fact back through ProcessTerm to fire the next
// rule in a chain. Returns an unsubscribe function.
func (e *Engine) WireAutoForwardChaining(ctx context.Context) func() {
	return e.kb.SubscribeNewAssertions(func(a *kb.Assertion) {
		completion, err := e.ProcessTerm(ctx, a.EffectiveTerm())
		if err != nil {
			logging.Get(logging.CategoryLogic).Warnw("auto forward-chaining: process term failed", "assertion", a.ID, "error", err)
			return
		}
		if err := completion.Wait(); err != nil {
			logging.Get(logging.CategoryLogic).Warnw("auto forward-chaining: downstream action failed", "assertion", a.ID, "error", err)
		}
	})
}

// Completion joins the futures of every action a ProcessTerm call fired.
type Completion struct {
	group *errgroup.Group
}

// Wait blocks until every action has completed, returning the first
// error encountered (if any). The actions share a context from
// errgroup.WithContext, so the first failure cancels it for the others.
func (c *Completion) Wait() error {
	if c.group == nil {
		return nil
	}
	return c.group.Wait()
}

// ProcessTerm implements the engine's matching algorithm: find matching rules,
// substitute each match's bindings into its consequent, and interpret
// the resulting action term. Returns a Completion joining every fired
// action; action completion is asynchronous and unordered relative to
// each other.
func (e *Engine) ProcessTerm(ctx context.Context, input term.Term) (*Completion, error) {
	matches := e.kb.FindMatchingRules(input)
	if len(matches) == 0 {
		return &Completion{}, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, rule := range matches {
		rule := rule
		sigma, ok := unify.Unify(rule.Antecedent, input, unify.Empty())
		if !ok {
			continue
		}
		actionTerm, err := unify.Subst(rule.Consequent, sigma, unify.Fully)
		if err != nil {
			logging.Get(logging.CategoryLogic).Warnw("consequent substitution failed",
				"rule", rule.ID, "error", err)
			continue
		}
		g.Go(func() error {
			return e.runAction(gctx, rule, actionTerm)
		})
	}
	return &Completion{group: g}, nil
}

// runAction dispatches actionTerm by its operator atom.
// Unknown operators are logged as warnings, never returned as errors
// ("Unknown operators are warnings, not errors").
func (e *Engine) runAction(ctx context.Context, rule *kb.Rule, actionTerm term.Term) error {
	op, ok := actionTerm.Operator()
	if !ok {
		logging.Get(logging.CategoryLogic).Warnw("consequent is not an action term", "rule", rule.ID, "term", actionTerm.String())
		return nil
	}

	switch op {
	case "Assert":
		return e.doAssert(ctx, rule, actionTerm)
	case "Retract":
		return e.doRetract(ctx, rule, actionTerm)
	case "ExecuteTool":
		return e.doExecuteTool(ctx, rule, actionTerm)
	default:
		logging.Get(logging.CategoryLogic).Warnw("unknown action operator", "rule", rule.ID, "operator", op)
		return nil
	}
}

// doAssert builds and saves a new Assertion from Assert's argument, per
// Assert's semantics: priority decays from the rule's, justification is
// the firing rule, depth is rule depth+1, flags/type are derived, kbId
// comes from the rule's source note (falling back to global-kb), and
// trivial terms are rejected rather than asserted.
func (e *Engine) doAssert(ctx context.Context, rule *kb.Rule, actionTerm term.Term) error {
	kifTerm, ok := actionTerm.Arg(0)
	if !ok {
		return fmt.Errorf("logic: Assert: %w: missing argument in %s", kerr.ErrInvalidTerm, actionTerm.String())
	}
	if unify.IsTrivial(kifTerm) {
		return nil
	}

	kbID := kb.GlobalKB
	if rule.SourceNoteID != "" {
		kbID = rule.SourceNoteID
	}

	a := kb.NewAssertion(
		uuid.NewString(),
		kifTerm,
		clampPriority(rule.Priority*priorityDecay),
		rule.SourceNoteID,
		kbID,
		map[string]bool{rule.ID: true},
		rule.Depth+1,
	)
	_, err := e.kb.SaveAssertion(ctx, a)
	if err != nil {
		return fmt.Errorf("logic: Assert: %w", err)
	}
	return nil
}

// doRetract resolves Retract's argument to an assertion and deletes it,
// Retract's semantics: a KIF argument is matched (optionally scoped
// to the rule's source note), an atom argument is treated as a direct
// assertion id.
func (e *Engine) doRetract(ctx context.Context, rule *kb.Rule, actionTerm term.Term) error {
	arg, ok := actionTerm.Arg(0)
	if !ok {
		return fmt.Errorf("logic: Retract: %w: missing argument in %s", kerr.ErrInvalidTerm, actionTerm.String())
	}

	if name, isAtom := arg.AtomName(); isAtom {
		if _, found := e.kb.GetAssertion(name); found {
			return e.kb.DeleteAssertion(ctx, name)
		}
	}

	var scope []string
	if rule.SourceNoteID != "" {
		scope = []string{rule.SourceNoteID}
	}
	matches := e.kb.QueryAssertions(arg, scope...)
	if len(matches) == 0 {
		logging.Get(logging.CategoryLogic).Debugw("Retract: no matching assertion", "rule", rule.ID, "term", arg.String())
		return nil
	}
	for _, m := range matches {
		if err := e.kb.DeleteAssertion(ctx, m.ID); err != nil {
			return fmt.Errorf("logic: Retract: %w", err)
		}
	}
	return nil
}

// doExecuteTool resolves the named tool from the registry and invokes
// it. Success or failure is always mirrored
// into the KB as a generic (ToolResult ...)/(ToolError ...) term in
// addition to whatever bespoke term the tool itself asserted, so rules
// that only care about success/failure never need to know a given
// tool's specific vocabulary.
func (e *Engine) doExecuteTool(ctx context.Context, rule *kb.Rule, actionTerm term.Term) error {
	items := actionTerm.Items()
	if len(items) < 2 {
		return fmt.Errorf("logic: ExecuteTool: %w: missing tool name in %s", kerr.ErrInvalidTerm, actionTerm.String())
	}
	toolNameTerm := items[1]
	toolName, ok := toolNameTerm.AtomName()
	if !ok {
		return fmt.Errorf("logic: ExecuteTool: %w: tool name must be an atom in %s", kerr.ErrInvalidTerm, actionTerm.String())
	}
	var params term.Term
	if len(items) > 2 {
		params = term.Lst(items[2:]...)
	} else {
		params = term.Lst()
	}

	tc := e.newTC(rule.ID)
	result, err := e.registry.Execute(ctx, toolName, params, tc)

	kbID := kb.GlobalKB
	if rule.SourceNoteID != "" {
		kbID = rule.SourceNoteID
	}

	if err != nil {
		logging.Get(logging.CategoryLogic).Warnw("tool execution failed", "rule", rule.ID, "tool", toolName, "error", err)
		errTerm := term.Lst(term.Atom("ToolError"), term.Atom(toolName), term.Str(err.Error()), term.Atom(rule.ID))
		a := kb.NewAssertion(uuid.NewString(), errTerm, clampPriority(rule.Priority*priorityDecay), rule.SourceNoteID, kbID, map[string]bool{rule.ID: true}, rule.Depth+1)
		if _, saveErr := e.kb.SaveAssertion(ctx, a); saveErr != nil {
			return fmt.Errorf("logic: ExecuteTool: assert ToolError: %w", saveErr)
		}
		return nil
	}

	resultTerm := term.Lst(term.Atom("ToolResult"), term.Atom(toolName), result, term.Atom(rule.ID))
	a := kb.NewAssertion(uuid.NewString(), resultTerm, clampPriority(rule.Priority*priorityDecay), rule.SourceNoteID, kbID, map[string]bool{rule.ID: true}, rule.Depth+1)
	if _, err := e.kb.SaveAssertion(ctx, a); err != nil {
		return fmt.Errorf("logic: ExecuteTool: assert ToolResult: %w", err)
	}
	return nil
}

// Simplify iteratively applies the engine's fixed simplification shapes
// (double-negation elimination, De Morgan distribution) to t. Exposed so
// rules implementing backward chaining as data can invoke it.
func Simplify(t term.Term) term.Term {
	return unify.Simplify(t)
}

// RenameRuleVariables alpha-renames every variable in t with a
// depth-suffixed prefix, preventing capture when a rule is reused
// multiple times at different backward-chaining depths.
func RenameRuleVariables(t term.Term, depth int) term.Term {
	renamed := map[string]term.Term{}
	for _, v := range t.Vars() {
		renamed[v] = term.Var(fmt.Sprintf("%s_d%d", v, depth))
	}
	b := unify.Empty()
	for name, repl := range renamed {
		b = b.Extend(name, repl)
	}
	out, err := unify.Subst(t, b, unify.Fully)
	if err != nil {
		return t
	}
	return out
}

// clampPriority keeps derived priorities within [0, 1], defending
// against runaway decay chains producing a value indistinguishable from
// zero in float comparisons.
func clampPriority(p float64) float64 {
	if math.IsNaN(p) || p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
