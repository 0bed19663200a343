// Package tools implements the primitive tool registry: named
// atomic actions a rule's consequent can invoke via ExecuteTool. A
// primitive reports failure by returning an error from Execute; the
// registry turns a panic into an ErrToolPanicked error, and the engine
// asserts every failure as a (ToolError ...) term.
package tools

import (
	"context"

	"cogkernel/internal/apigateway"
	"cogkernel/internal/events"
	"cogkernel/internal/kb"
	"cogkernel/internal/llm"
	"cogkernel/internal/term"
)

// Sender delivers a serialized outbound message to whatever external
// transport is attached; the concrete transport lives outside the
// kernel core.
type Sender interface {
	Send(ctx context.Context, message string) error
}

// ToolContext is the environment handed to every Tool.Execute call: the
// knowledge base, LLM service, outbound sender, event bus, and a name
// identifying the rule that requested the call (for ToolResult/ToolError
// correlation).
type ToolContext struct {
	KB       *kb.KnowledgeBase
	LLM      llm.Service
	Sender   Sender
	Bus      *events.Bus
	RuleID   string
}

// Tool is a named atomic action a rule's ExecuteTool consequent can
// invoke. Execute reports failure by returning an error; the registry
// recovers a panic as a backstop and returns it as an error too.
type Tool interface {
	Name() string
	Description() string
	Execute(ctx context.Context, params term.Term, tc *ToolContext) (term.Term, error)
}
