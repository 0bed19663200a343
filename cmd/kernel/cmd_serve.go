package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"cogkernel/internal/apigateway"
	"cogkernel/internal/config"
	"cogkernel/internal/control"
	"cogkernel/internal/events"
	"cogkernel/internal/kb"
	"cogkernel/internal/llm"
	"cogkernel/internal/logging"
	"cogkernel/internal/logic"
	"cogkernel/internal/persist"
	"cogkernel/internal/tools"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the control loop, reading commands and writing responses over stdio",
	Long: `serve reads newline-delimited JSON commands from stdin, feeds each
into the gateway's inbound-command translation, and drives the control
loop until stdin closes or the process receives an interrupt. Each
outbound ApiResponse is written to stdout as one JSON object per line;
event and dialogue-request terms are not written.`,
	RunE: runServe,
}

// stdioSender writes every outbound message as one line to w.
type stdioSender struct {
	w  io.Writer
	mu chan struct{} // 1-buffered mutex so concurrent Sends don't interleave lines
}

func newStdioSender(w io.Writer) *stdioSender {
	s := &stdioSender{w: w, mu: make(chan struct{}, 1)}
	s.mu <- struct{}{}
	return s
}

func (s *stdioSender) Send(ctx context.Context, message string) error {
	<-s.mu
	defer func() { s.mu <- struct{}{} }()
	_, err := fmt.Fprintln(s.w, message)
	return err
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("kernel serve: %w", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(store)

	knowledgeBase := kb.New(store)
	knowledgeBase.SetCapacity(kb.GlobalKB, cfg.GlobalKbCapacity)
	if err := knowledgeBase.Load(context.Background()); err != nil {
		return fmt.Errorf("kernel serve: load knowledge base: %w", err)
	}

	registry := tools.NewRegistry()
	tools.RegisterPrimitives(registry)

	llmService := llm.NewGenAIService(os.Getenv("GEMINI_API_KEY"), cfg.LLMApiURL, cfg.LLMModel, cfg.LLMTemperature, cfg.LLMTimeoutSeconds)
	bus := events.NewBus()
	knowledgeBase.SetBus(bus)
	sender := newStdioSender(os.Stdout)

	newTC := func(ruleID string) *tools.ToolContext {
		return &tools.ToolContext{KB: knowledgeBase, LLM: llmService, Sender: sender, Bus: bus, RuleID: ruleID}
	}
	engine := logic.New(knowledgeBase, registry, newTC)

	opts := control.DefaultOptions()
	opts.PollInterval = cfg.PollInterval()
	opts.Warmup = cfg.Warmup()
	opts.Concurrency = int64(cfg.Concurrency)
	sc := control.New(knowledgeBase, engine, sender, opts)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	unwire := engine.WireAutoForwardChaining(ctx)
	defer unwire()

	sc.Start(ctx)
	defer sc.Stop()

	log := logging.Get(logging.CategoryControl)
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := ingestLine(ctx, knowledgeBase, line); err != nil {
			log.Warnw("failed to ingest inbound line", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("kernel serve: reading stdin: %w", err)
	}
	return nil
}

func ingestLine(ctx context.Context, knowledgeBase *kb.KnowledgeBase, line string) error {
	requestTerm, err := apigateway.ParseInbound(line)
	if err != nil {
		return err
	}
	a := kb.NewAssertion(uuid.NewString(), requestTerm, 1.0, "", kb.APIInbox, nil, 0)
	_, err = knowledgeBase.SaveAssertion(ctx, a)
	return err
}

func openStore(cfg *config.Config) (persist.Store, error) {
	if cfg.PersistenceFilePath == "" || cfg.PersistenceFilePath == ":memory:" {
		return persist.NewMemStore(), nil
	}
	store, err := persist.NewSQLiteStore(cfg.PersistenceFilePath)
	if err != nil {
		return nil, fmt.Errorf("kernel: open persistence store %s: %w", cfg.PersistenceFilePath, err)
	}
	return store, nil
}

func closeStore(store persist.Store) {
	if closer, ok := store.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
}
