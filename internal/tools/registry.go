package tools

import (
	"context"
	"fmt"
	"sync"

	"cogkernel/internal/kerr"
	"cogkernel/internal/logging"
	"cogkernel/internal/term"
)

// Registry holds the name -> Tool map of registered primitives.
// Registering a duplicate name fails.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds t under t.Name(). Returns kerr.ErrAlreadyExists if that
// name is already registered.
func (r *Registry) Register(t Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name()]; exists {
		return fmt.Errorf("tools: register %s: %w", t.Name(), kerr.ErrAlreadyExists)
	}
	r.tools[t.Name()] = t
	return nil
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns every registered tool name, order unspecified.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.tools))
	for name := range r.tools {
		out = append(out, name)
	}
	return out
}

// Execute resolves name and runs it, recovering any panic as a last
// line of defense so a misbehaving tool can never crash the engine
// (letting an exception reach the engine is itself a kernel
// fault). The returned error is kerr.ErrToolNotRegistered when name
// isn't registered, kerr.ErrToolPanicked (wrapping the recovered value)
// on a panic, or whatever the tool itself returned.
func (r *Registry) Execute(ctx context.Context, name string, params term.Term, tc *ToolContext) (result term.Term, err error) {
	t, ok := r.Lookup(name)
	if !ok {
		return term.Term{}, fmt.Errorf("tools: %s: %w", name, kerr.ErrToolNotRegistered)
	}

	defer func() {
		if rec := recover(); rec != nil {
			logging.Get(logging.CategoryTools).Errorw("tool panicked", "tool", name, "panic", rec)
			err = fmt.Errorf("tools: %s: %w: %v", name, kerr.ErrToolPanicked, rec)
		}
	}()

	result, err = t.Execute(ctx, params, tc)
	if err != nil {
		logging.Get(logging.CategoryTools).Warnw("tool execution failed", "tool", name, "error", err)
	}
	return result, err
}

// RegisterPrimitives registers the required minimal primitive set
// onto r.
func RegisterPrimitives(r *Registry) error {
	primitives := []Tool{
		&AssertTool{},
		&RetractTool{},
		&QueryKBTool{},
		&CallLLMTool{},
		&SendApiMessageTool{},
		&LogMessageTool{},
		&AskUserTool{},
	}
	for _, t := range primitives {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}
