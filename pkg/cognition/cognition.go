// Package cognition is a public shim re-exporting the cognitive
// kernel's embeddable surface, so external Go programs can host a
// kernel (cognition.New, cognition.Term, ...) without reaching into
// internal/. Trimmed to what a host program actually needs: building a
// kernel, asserting/querying/retracting terms, registering a tool, and
// driving the control loop.
package cognition

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"cogkernel/internal/config"
	"cogkernel/internal/control"
	"cogkernel/internal/events"
	"cogkernel/internal/kb"
	"cogkernel/internal/kerr"
	"cogkernel/internal/llm"
	"cogkernel/internal/logic"
	"cogkernel/internal/persist"
	"cogkernel/internal/term"
	"cogkernel/internal/tools"
)

// Term is the kernel's s-expression value type.
type Term = term.Term

// Parse parses a single KIF s-expression.
func Parse(src string) (Term, error) { return term.Parse(src) }

// Tool is the interface a host program implements to register a custom
// primitive, invocable from rule consequents via ExecuteTool.
type Tool = tools.Tool

// ToolContext is the environment handed to a Tool.Execute call.
type ToolContext = tools.ToolContext

// Sender delivers a serialized outbound message to whatever transport
// the host program wires up.
type Sender = tools.Sender

var (
	// ErrNotFound classifies a lookup that addressed nothing held by the
	// kernel.
	ErrNotFound = kerr.ErrNotFound
	// ErrToolNotRegistered classifies an ExecuteTool naming an
	// unregistered tool.
	ErrToolNotRegistered = kerr.ErrToolNotRegistered
)

// Kernel wraps a knowledge base, rule engine, tool registry, and
// control loop behind one embeddable handle.
type Kernel struct {
	KB       *kb.KnowledgeBase
	Registry *tools.Registry
	Engine   *logic.Engine
	Control  *control.SystemControl

	store  persist.Store
	unwire func()
}

// Options configures a Kernel built with New.
type Options struct {
	// PersistencePath is the sqlite file to persist to; empty or
	// ":memory:" uses an in-memory store.
	PersistencePath string
	// Sender receives every outbound wire message the control loop
	// produces; nil is valid if the host only drives the engine directly.
	Sender tools.Sender
	// LLM backs the _CallLLM primitive; nil disables it.
	LLM llm.Service
	// Control overrides the control loop's tick cadence and worker pool
	// size; the zero value uses control.DefaultOptions().
	Control control.Options
}

// New constructs a Kernel with the seven built-in primitives registered.
// Call RegisterTool to add host-specific tools before starting Control.
func New(opts Options) (*Kernel, error) {
	var store persist.Store
	if opts.PersistencePath == "" || opts.PersistencePath == ":memory:" {
		store = persist.NewMemStore()
	} else {
		sqliteStore, err := persist.NewSQLiteStore(opts.PersistencePath)
		if err != nil {
			return nil, fmt.Errorf("cognition: open persistence store: %w", err)
		}
		store = sqliteStore
	}

	knowledgeBase := kb.New(store)
	if err := knowledgeBase.Load(context.Background()); err != nil {
		return nil, fmt.Errorf("cognition: load knowledge base: %w", err)
	}

	registry := tools.NewRegistry()
	tools.RegisterPrimitives(registry)

	bus := events.NewBus()
	knowledgeBase.SetBus(bus)
	newTC := func(ruleID string) *tools.ToolContext {
		return &tools.ToolContext{KB: knowledgeBase, LLM: opts.LLM, Sender: opts.Sender, Bus: bus, RuleID: ruleID}
	}
	engine := logic.New(knowledgeBase, registry, newTC)
	unwire := engine.WireAutoForwardChaining(context.Background())

	controlOpts := opts.Control
	if controlOpts.PollInterval == 0 {
		controlOpts = control.DefaultOptions()
	}
	sc := control.New(knowledgeBase, engine, opts.Sender, controlOpts)

	return &Kernel{KB: knowledgeBase, Registry: registry, Engine: engine, Control: sc, store: store, unwire: unwire}, nil
}

// NewFromConfig constructs a Kernel from a loaded config.Config,
// matching what cmd/kernel serve wires up.
func NewFromConfig(cfg *config.Config, sender tools.Sender, llmService llm.Service) (*Kernel, error) {
	return New(Options{
		PersistencePath: cfg.PersistenceFilePath,
		Sender:          sender,
		LLM:             llmService,
		Control: control.Options{
			PollInterval: cfg.PollInterval(),
			Warmup:       cfg.Warmup(),
			Concurrency:  int64(cfg.Concurrency),
		},
	})
}

// RegisterTool adds a host-specific primitive to the kernel's registry.
func (k *Kernel) RegisterTool(t Tool) error {
	return k.Registry.Register(t)
}

// Assert parses and asserts a single KIF term into kbID (kb.GlobalKB if
// empty), returning the stored assertion's id.
func (k *Kernel) Assert(ctx context.Context, kif string, priority float64, kbID string) (string, error) {
	parsed, err := term.Parse(kif)
	if err != nil {
		return "", fmt.Errorf("cognition: parse: %w", err)
	}
	if kbID == "" {
		kbID = kb.GlobalKB
	}
	a := kb.NewAssertion(uuid.NewString(), parsed, priority, "", kbID, nil, 0)
	saved, err := k.KB.SaveAssertion(ctx, a)
	if err != nil {
		return "", err
	}
	return saved.ID, nil
}

// Query parses pattern and returns every active assertion in kbID
// (kb.GlobalKB if empty) that unifies with it.
func (k *Kernel) Query(pattern string, kbID string) ([]Term, error) {
	parsed, err := term.Parse(pattern)
	if err != nil {
		return nil, fmt.Errorf("cognition: parse: %w", err)
	}
	if kbID == "" {
		kbID = kb.GlobalKB
	}
	matches := k.KB.QueryAssertions(parsed, kbID)
	out := make([]Term, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.EffectiveTerm())
	}
	return out, nil
}

// Process drives input through the rule engine directly, bypassing the
// inbound-request machinery the control loop uses for wire traffic.
func (k *Kernel) Process(ctx context.Context, input Term) error {
	completion, err := k.Engine.ProcessTerm(ctx, input)
	if err != nil {
		return err
	}
	return completion.Wait()
}

// Start begins the kernel's control loop.
func (k *Kernel) Start(ctx context.Context) { k.Control.Start(ctx) }

// Stop halts the control loop, unsubscribes the engine's auto
// forward-chaining, and closes the persistence store.
func (k *Kernel) Stop() error {
	k.Control.Stop()
	if k.unwire != nil {
		k.unwire()
	}
	if closer, ok := k.store.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
