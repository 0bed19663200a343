package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"cogkernel/internal/apigateway"
	"cogkernel/internal/kb"
	"cogkernel/internal/kerr"
	"cogkernel/internal/llm"
	"cogkernel/internal/logging"
	"cogkernel/internal/term"
	"cogkernel/internal/unify"
)

// --- _Assert -----------------------------------------------------------

// AssertTool is the callable equivalent of the engine's Assert action,
// for rules that need a runtime-computed term shape.
type AssertTool struct{}

func (AssertTool) Name() string        { return "_Assert" }
func (AssertTool) Description() string { return "Assert a KIF term into the knowledge base." }

func (AssertTool) Execute(ctx context.Context, params term.Term, tc *ToolContext) (term.Term, error) {
	items := params.Items()
	if len(items) == 0 {
		return term.Term{}, fmt.Errorf("tools: _Assert: %w: expected (<kif> <priority?> <sourceNoteId?>)", kerr.ErrValidation)
	}
	kif := items[0]
	priority := 0.5
	sourceNoteID := ""
	if len(items) > 1 {
		if n, ok := items[1].NumValue(); ok {
			priority = n
		}
	}
	if len(items) > 2 {
		if s, ok := items[2].AtomName(); ok {
			sourceNoteID = s
		}
	}

	if unify.IsTrivial(kif) {
		return term.Atom("rejected-trivial"), nil
	}

	kbID := kb.GlobalKB
	if sourceNoteID != "" {
		kbID = sourceNoteID
	}
	a := kb.NewAssertion(uuid.NewString(), kif, priority, sourceNoteID, kbID, nil, 0)
	saved, err := tc.KB.SaveAssertion(ctx, a)
	if err != nil {
		return term.Term{}, fmt.Errorf("tools: _Assert: %w", err)
	}
	return term.Atom(saved.ID), nil
}

// --- _Retract ------------------------------------------------------------

// RetractTool is the callable equivalent of the engine's Retract action.
type RetractTool struct{}

func (RetractTool) Name() string        { return "_Retract" }
func (RetractTool) Description() string { return "Retract an assertion by KIF term or assertion id." }

func (RetractTool) Execute(ctx context.Context, params term.Term, tc *ToolContext) (term.Term, error) {
	items := params.Items()
	if len(items) == 0 {
		return term.Term{}, fmt.Errorf("tools: _Retract: %w: expected (<kif|assertionId>)", kerr.ErrValidation)
	}
	target := items[0]

	if name, ok := target.AtomName(); ok {
		if _, ok := tc.KB.GetAssertion(name); ok {
			if err := tc.KB.DeleteAssertion(ctx, name); err != nil {
				return term.Term{}, fmt.Errorf("tools: _Retract: %w", err)
			}
			return term.Atom(name), nil
		}
	}

	matches := tc.KB.QueryAssertions(target)
	if len(matches) == 0 {
		return term.Term{}, fmt.Errorf("tools: _Retract: %w: no assertion matches %s", kerr.ErrNotFound, target.String())
	}
	for _, m := range matches {
		if err := tc.KB.DeleteAssertion(ctx, m.ID); err != nil {
			return term.Term{}, fmt.Errorf("tools: _Retract: %w", err)
		}
	}
	return term.Atom(matches[0].ID), nil
}

// --- _QueryKB ------------------------------------------------------------

// QueryKBTool runs a KB query and asserts its own ApiResponse.
type QueryKBTool struct{}

func (QueryKBTool) Name() string        { return "_QueryKB" }
func (QueryKBTool) Description() string { return "Query the knowledge base and publish the result." }

func (QueryKBTool) Execute(ctx context.Context, params term.Term, tc *ToolContext) (term.Term, error) {
	items := params.Items()
	if len(items) < 2 {
		err := fmt.Errorf("tools: _QueryKB: %w: expected (<queryType> <pattern> <requestId?> <options?>)", kerr.ErrValidation)
		publishQueryError(ctx, tc, "", "", err.Error())
		return term.Term{}, err
	}
	queryTypeAtom, _ := items[0].AtomName()
	pattern := items[1]
	requestID := ""
	if len(items) > 2 {
		requestID, _ = items[2].AtomName()
	}

	if queryTypeAtom != "query" {
		msg := fmt.Sprintf("unsupported query type %q", queryTypeAtom)
		publishQueryError(ctx, tc, requestID, queryTypeAtom, msg)
		return term.Term{}, fmt.Errorf("tools: _QueryKB: %s", msg)
	}

	matches := tc.KB.QueryAssertions(pattern)
	results := make([]term.Term, len(matches))
	for i, m := range matches {
		results[i] = m.Kif
	}

	resultTerm := term.Lst(term.Atom("QueryResult"), term.Atom(queryTypeAtom), term.Atom("SUCCESS"), term.Lst(results...))
	publishQueryResponse(ctx, tc, requestID, resultTerm)
	return resultTerm, nil
}

func publishQueryResponse(ctx context.Context, tc *ToolContext, requestID string, resultTerm term.Term) {
	a := kb.NewAssertion(uuid.NewString(),
		term.Lst(term.Atom("ApiResponse"), term.Atom(requestID), resultTerm),
		0.9, "", kb.APIOutbox, nil, 0)
	if _, err := tc.KB.SaveAssertion(ctx, a); err != nil {
		logging.Get(logging.CategoryTools).Errorw("_QueryKB: failed to publish response", "error", err)
	}
}

func publishQueryError(ctx context.Context, tc *ToolContext, requestID, queryType, message string) {
	resultTerm := term.Lst(term.Atom("QueryResult"), term.Atom(queryType), term.Atom("ERROR"), term.Lst(), term.Str(message))
	publishQueryResponse(ctx, tc, requestID, resultTerm)
}

// --- _CallLLM ------------------------------------------------------------

// CallLLMTool invokes the LLM service and asserts LLMResult/LLMError.
type CallLLMTool struct{}

func (CallLLMTool) Name() string        { return "_CallLLM" }
func (CallLLMTool) Description() string { return "Invoke the LLM service with a prompt." }

func (CallLLMTool) Execute(ctx context.Context, params term.Term, tc *ToolContext) (term.Term, error) {
	items := params.Items()
	if len(items) == 0 {
		return term.Term{}, fmt.Errorf("tools: _CallLLM: %w: expected (<prompt> <conversationId?> <options?>)", kerr.ErrValidation)
	}
	promptTerm := items[0]
	prompt, ok := promptTerm.StrValue()
	if !ok {
		prompt = promptTerm.String()
	}
	conversationID := ""
	if len(items) > 1 {
		conversationID, _ = items[1].AtomName()
	}

	if tc.LLM == nil {
		err := fmt.Errorf("tools: _CallLLM: %w", kerr.ErrLLMUnavailable)
		assertLLMError(ctx, tc, conversationID, err.Error())
		return term.Term{}, err
	}

	result := <-tc.LLM.ChatAsync(ctx, []llm.Message{{Role: "user", Content: prompt}})
	if result.Err != nil {
		assertLLMError(ctx, tc, conversationID, result.Err.Error())
		return term.Term{}, fmt.Errorf("tools: _CallLLM: %w", result.Err)
	}

	responseTerm := term.Str(result.Message)
	args := []term.Term{term.Atom("LLMResult")}
	if conversationID != "" {
		args = append(args, term.Atom(conversationID))
	}
	args = append(args, responseTerm)
	resultAssertion := term.Lst(args...)

	a := kb.NewAssertion(uuid.NewString(), resultAssertion, 0.7, "", kb.GlobalKB, nil, 0)
	if _, err := tc.KB.SaveAssertion(ctx, a); err != nil {
		return term.Term{}, fmt.Errorf("tools: _CallLLM: %w", err)
	}
	return resultAssertion, nil
}

func assertLLMError(ctx context.Context, tc *ToolContext, conversationID, message string) {
	args := []term.Term{term.Atom("LLMError")}
	if conversationID != "" {
		args = append(args, term.Atom(conversationID))
	}
	args = append(args, term.Str(message))
	a := kb.NewAssertion(uuid.NewString(), term.Lst(args...), 0.7, "", kb.GlobalKB, nil, 0)
	if _, err := tc.KB.SaveAssertion(ctx, a); err != nil {
		logging.Get(logging.CategoryTools).Errorw("_CallLLM: failed to assert LLMError", "error", err)
	}
}

// --- _SendApiMessage -------------------------------------------------------

// SendApiMessageTool resolves an ApiResponse assertion, serializes and
// sends it, and asserts a SentApiResponse marker for at-most-once
// delivery.
type SendApiMessageTool struct{}

func (SendApiMessageTool) Name() string        { return "_SendApiMessage" }
func (SendApiMessageTool) Description() string { return "Serialize and send an ApiResponse assertion." }

func (SendApiMessageTool) Execute(ctx context.Context, params term.Term, tc *ToolContext) (term.Term, error) {
	items := params.Items()
	if len(items) == 0 {
		return term.Term{}, fmt.Errorf("tools: _SendApiMessage: %w: expected (<assertionId>)", kerr.ErrValidation)
	}
	assertionID, _ := items[0].AtomName()

	sent := tc.KB.QueryAssertions(term.Lst(term.Atom("SentApiResponse"), term.Atom(assertionID)), kb.SystemKB)
	if len(sent) > 0 {
		return term.Term{}, fmt.Errorf("tools: _SendApiMessage: %w: %s already sent", kerr.ErrAlreadyProcessed, assertionID)
	}

	a, ok := tc.KB.GetAssertion(assertionID)
	if !ok {
		return term.Term{}, fmt.Errorf("tools: _SendApiMessage: %w: %s", kerr.ErrNotFound, assertionID)
	}

	msg, err := apigateway.ConvertApiResponseToMessage(a.Kif)
	if err != nil {
		return term.Term{}, fmt.Errorf("tools: _SendApiMessage: %w", err)
	}
	if tc.Sender != nil {
		if err := tc.Sender.Send(ctx, msg); err != nil {
			return term.Term{}, fmt.Errorf("tools: _SendApiMessage: send: %w", err)
		}
	}

	markerTerm := term.Lst(term.Atom("SentApiResponse"), term.Atom(assertionID))
	marker := kb.NewAssertion(uuid.NewString(), markerTerm, 1.0, "", kb.SystemKB, nil, 0)
	if _, err := tc.KB.SaveAssertion(ctx, marker); err != nil {
		return term.Term{}, fmt.Errorf("tools: _SendApiMessage: %w", err)
	}
	return markerTerm, nil
}

// --- _LogMessage -----------------------------------------------------------

// LogMessageTool emits a categorized log line and asserts a LogMessage
// term so rules can observe it.
type LogMessageTool struct{}

func (LogMessageTool) Name() string        { return "_LogMessage" }
func (LogMessageTool) Description() string { return "Emit a log line and assert a LogMessage term." }

func (LogMessageTool) Execute(ctx context.Context, params term.Term, tc *ToolContext) (term.Term, error) {
	items := params.Items()
	if len(items) == 0 {
		return term.Term{}, fmt.Errorf("tools: _LogMessage: %w: expected (<text> <level?>)", kerr.ErrValidation)
	}
	text, _ := items[0].StrValue()
	level := "info"
	if len(items) > 1 {
		if l, ok := items[1].AtomName(); ok {
			level = l
		}
	}

	log := logging.Get(logging.CategoryTools)
	switch level {
	case "debug":
		log.Debugw(text)
	case "warn":
		log.Warnw(text)
	case "error":
		log.Errorw(text)
	default:
		log.Infow(text)
	}

	now := time.Now().UnixNano()
	logTerm := term.Lst(term.Atom("LogMessage"), term.Atom(level), term.Str(text), term.Num(float64(now)))
	a := kb.NewAssertion(uuid.NewString(), logTerm, 0.3, "", kb.SystemKB, nil, 0)
	if _, err := tc.KB.SaveAssertion(ctx, a); err != nil {
		return term.Term{}, fmt.Errorf("tools: _LogMessage: %w", err)
	}
	return logTerm, nil
}

// --- _AskUser ---------------------------------------------------------------

// askUserPollInterval governs how often AskUserTool polls the KB for a
// matching DialogueResponse while suspended.
const askUserPollInterval = 50 * time.Millisecond

// AskUserTool asserts a DialogueRequest into api-outbox and suspends
// (on its own goroutine, never blocking the control loop) until a
// matching DialogueResponse appears or the context is cancelled/times
// out, asserting a DialogueTimeout in the latter case.
type AskUserTool struct{}

func (AskUserTool) Name() string { return "_AskUser" }
func (AskUserTool) Description() string {
	return "Ask the user a question and suspend for their response."
}

func (AskUserTool) Execute(ctx context.Context, params term.Term, tc *ToolContext) (term.Term, error) {
	items := params.Items()
	if len(items) < 3 {
		return term.Term{}, fmt.Errorf("tools: _AskUser: %w: expected (<prompt> <dialogueId> <kind> <options?>)", kerr.ErrValidation)
	}
	prompt, _ := items[0].StrValue()
	dialogueID, _ := items[1].AtomName()
	kind, _ := items[2].AtomName()
	var options term.Term
	if len(items) > 3 {
		options = items[3]
	} else {
		options = term.Lst()
	}

	reqTerm := term.Lst(term.Atom("DialogueRequest"), term.Atom(dialogueID), term.Str(prompt), term.Atom(kind), options)
	a := kb.NewAssertion(uuid.NewString(), reqTerm, 0.9, "", kb.APIOutbox, nil, 0)
	if _, err := tc.KB.SaveAssertion(ctx, a); err != nil {
		return term.Term{}, fmt.Errorf("tools: _AskUser: %w", err)
	}

	pattern := term.Lst(term.Atom("DialogueResponse"), term.Atom(dialogueID), term.Var("data"))
	ticker := time.NewTicker(askUserPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			timeoutTerm := term.Lst(term.Atom("DialogueTimeout"), term.Atom(dialogueID))
			timeoutAssertion := kb.NewAssertion(uuid.NewString(), timeoutTerm, 0.9, "", kb.SystemKB, nil, 0)
			_, _ = tc.KB.SaveAssertion(context.Background(), timeoutAssertion)
			return term.Term{}, fmt.Errorf("tools: _AskUser: dialogue %s: %w", dialogueID, kerr.ErrTimedOut)
		case <-ticker.C:
			matches := tc.KB.QueryAssertions(pattern)
			if len(matches) > 0 {
				return matches[0].Kif, nil
			}
		}
	}
}
