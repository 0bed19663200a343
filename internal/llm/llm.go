// Package llm implements the kernel's thin async LLM client: a
// stateless chat-completion interface whose configuration can be
// hot-reloaded without disturbing calls already in flight.
package llm

import "context"

// Message is a single turn in a chat-completion request.
type Message struct {
	Role    string // "system", "user", or "assistant"
	Content string
}

// Service is the LLM client contract. Reconfigure changes apply only to
// calls started after it returns; a ChatAsync call already running
// keeps using the settings it captured at call time ("in-flight
// calls use the settings they started with").
type Service interface {
	Reconfigure(baseURL, model string, temperature float64, timeoutSeconds int)
	ChatAsync(ctx context.Context, messages []Message) <-chan Result
}

// Result is what a ChatAsync call eventually delivers: either a
// completed assistant message or an error. The channel is the only
// signal ("the future is the only signal").
type Result struct {
	Message string
	Err     error
}
