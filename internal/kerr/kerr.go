// Package kerr collects the sentinel error values shared across the
// kernel's packages, so callers can classify a failure with errors.Is
// instead of string-matching messages.
package kerr

import "errors"

var (
	// ErrNotFound is returned when a lookup by id, name, or index
	// addresses something the store/registry does not hold.
	ErrNotFound = errors.New("kernel: not found")

	// ErrAlreadyExists is returned by registration operations when the
	// target name is already taken.
	ErrAlreadyExists = errors.New("kernel: already exists")

	// ErrUnificationFailed signals that a match or unify attempt did not
	// produce consistent bindings.
	ErrUnificationFailed = errors.New("kernel: unification failed")

	// ErrDepthExceeded signals a substitution or resolution chain ran
	// past its configured depth cap.
	ErrDepthExceeded = errors.New("kernel: depth exceeded")

	// ErrCapacityExceeded classifies an assertion that would push a
	// knowledge base past its configured capacity. Capacity enforcement
	// evicts without reporting an error, so no code path returns it.
	ErrCapacityExceeded = errors.New("kernel: capacity exceeded")

	// ErrToolNotRegistered is returned when ExecuteTool names a tool the
	// registry has no entry for.
	ErrToolNotRegistered = errors.New("kernel: tool not registered")

	// ErrToolPanicked wraps a recovered panic from inside a tool
	// invocation; it never escapes the registry as a Go panic.
	ErrToolPanicked = errors.New("kernel: tool panicked")

	// ErrInvalidTerm is returned when a term fails a well-formedness
	// check required by the operation (e.g. a malformed exists-form).
	ErrInvalidTerm = errors.New("kernel: invalid term")

	// ErrGatewayUnknownCommand is returned by ParseInbound when the
	// command field does not match any recognized inbound command.
	ErrGatewayUnknownCommand = errors.New("kernel: unknown inbound command")

	// ErrAlreadyProcessed signals that an inbound task or outbound
	// response has already been marked processed/sent and must not be
	// handled a second time.
	ErrAlreadyProcessed = errors.New("kernel: already processed")

	// ErrLLMUnavailable is returned when the configured LLM service has
	// no usable backend (e.g. hot-reconfigure left it without a client).
	ErrLLMUnavailable = errors.New("kernel: llm service unavailable")

	// ErrShuttingDown classifies work refused because SystemControl's
	// Stop has been called; no code path returns it.
	ErrShuttingDown = errors.New("kernel: system is shutting down")

	// ErrValidation classifies a request/params shape or type mismatch:
	// a validation error.
	ErrValidation = errors.New("kernel: validation error")

	// ErrParse classifies a malformed KIF or JSON payload: a parse
	// error.
	ErrParse = errors.New("kernel: parse error")

	// ErrToolFailure classifies a tool's own business-logic failure,
	// distinct from it panicking or the registry not finding it.
	ErrToolFailure = errors.New("kernel: tool failure")

	// ErrExternal classifies a failure in an external dependency (LLM
	// provider, network) outside the kernel's control.
	ErrExternal = errors.New("kernel: external failure")

	// ErrInternalFault classifies an internal invariant violation (index
	// or TMS inconsistency); surfaced as a KernelFault term, never a
	// crash.
	ErrInternalFault = errors.New("kernel: internal fault")

	// ErrCancelled is returned when a suspended tool/LLM future's context
	// is cancelled before completion.
	ErrCancelled = errors.New("kernel: cancelled")

	// ErrTimedOut is returned when a suspended tool/LLM future's context
	// deadline elapses before completion.
	ErrTimedOut = errors.New("kernel: timed out")
)
