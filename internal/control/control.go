// Package control implements SystemControl: the single scheduled
// driver that polls the knowledge base for inbound API requests, sends
// pending outbound responses, and processes deferred events, dispatching
// the work it finds onto a bounded worker pool.
package control

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"cogkernel/internal/apigateway"
	"cogkernel/internal/kb"
	"cogkernel/internal/logging"
	"cogkernel/internal/logic"
	"cogkernel/internal/term"
	"cogkernel/internal/tools"
)

// Options configures a SystemControl loop.
type Options struct {
	PollInterval time.Duration
	Warmup       time.Duration
	Concurrency  int64
}

// DefaultOptions returns the default cadence: a 500ms poll interval
// after a 100ms warmup.
func DefaultOptions() Options {
	return Options{PollInterval: 500 * time.Millisecond, Warmup: 100 * time.Millisecond, Concurrency: 8}
}

// SystemControl is the kernel's scheduler: it owns no state of its own
// beyond its tick cadence, reading and writing everything through the KB.
type SystemControl struct {
	kb      *kb.KnowledgeBase
	engine  *logic.Engine
	sender  tools.Sender
	opts    Options
	sem     *semaphore.Weighted

	mu       sync.Mutex
	cancel   context.CancelFunc
	stopped  chan struct{}
	inflight sync.Map // request assertion ids dispatched and not yet finished
}

// New constructs a SystemControl driving knowledgeBase through engine,
// sending outbound wire messages via sender.
func New(knowledgeBase *kb.KnowledgeBase, engine *logic.Engine, sender tools.Sender, opts Options) *SystemControl {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	return &SystemControl{
		kb:     knowledgeBase,
		engine: engine,
		sender: sender,
		opts:   opts,
		sem:    semaphore.NewWeighted(opts.Concurrency),
	}
}

// Start begins the periodic loop in a background goroutine, after the
// configured warmup delay. Returns immediately; call Stop to halt it.
func (sc *SystemControl) Start(ctx context.Context) {
	sc.mu.Lock()
	ctx, cancel := context.WithCancel(ctx)
	sc.cancel = cancel
	sc.stopped = make(chan struct{})
	stopped := sc.stopped
	sc.mu.Unlock()

	go func() {
		defer close(stopped)
		select {
		case <-ctx.Done():
			return
		case <-time.After(sc.opts.Warmup):
		}

		ticker := time.NewTicker(sc.opts.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := sc.Tick(ctx); err != nil {
					logging.Get(logging.CategoryControl).Errorw("tick failed", "error", err)
				}
			}
		}
	}()
}

// Stop cancels the loop and waits for its goroutine to exit.
func (sc *SystemControl) Stop() {
	sc.mu.Lock()
	cancel := sc.cancel
	stopped := sc.stopped
	sc.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	if stopped != nil {
		<-stopped
	}
}

// Tick runs one pass of the three-phase cycle. Inbound requests are
// handed to worker goroutines that Tick does not wait for; the outbound
// and deferred-event phases finish before it returns. Exported so tests
// can step the loop without a real ticker.
func (sc *SystemControl) Tick(ctx context.Context) error {
	if err := sc.processInboundTasks(ctx); err != nil {
		return fmt.Errorf("control: inbound phase: %w", err)
	}
	if err := sc.sendOutboundResponses(ctx); err != nil {
		return fmt.Errorf("control: outbound phase: %w", err)
	}
	sc.processDeferredEvents(ctx)
	return nil
}

// processInboundTasks implements phase 1: every active
// (ApiRequest ...) assertion not yet marked Processed is driven through
// the engine; completion (success or failure) is recorded as a marker
// in system so a crash/restart never reprocesses it (a happens-before
// guarantee via markers). A request still being processed from an
// earlier tick is skipped.
func (sc *SystemControl) processInboundTasks(ctx context.Context) error {
	requests := sc.kb.QueryAssertions(term.Lst(term.Atom("ApiRequest"), term.Var("id"), term.Var("cmd")), kb.APIInbox)
	for _, req := range requests {
		if sc.isProcessed(req.ID) {
			continue
		}
		if _, busy := sc.inflight.LoadOrStore(req.ID, struct{}{}); busy {
			continue
		}
		if err := sc.sem.Acquire(ctx, 1); err != nil {
			sc.inflight.Delete(req.ID)
			return nil // context cancelled; let the next tick pick up remaining work
		}
		req := req
		go func() {
			defer sc.inflight.Delete(req.ID)
			defer sc.sem.Release(1)
			sc.processOneRequest(ctx, req)
		}()
	}
	return nil
}

func (sc *SystemControl) isProcessed(requestAssertionID string) bool {
	marker := sc.kb.QueryAssertions(term.Lst(term.Atom("Processed"), term.Atom(requestAssertionID)), kb.SystemKB)
	return len(marker) > 0
}

func (sc *SystemControl) processOneRequest(ctx context.Context, req *kb.Assertion) {
	cmdTerm, ok := req.Kif.Arg(1)
	if !ok {
		return
	}
	completion, err := sc.engine.ProcessTerm(ctx, cmdTerm)
	if err == nil && completion != nil {
		err = completion.Wait()
	}

	markerKif := term.Lst(term.Atom("Processed"), term.Atom(req.ID))
	marker := kb.NewAssertion(markerID(req.ID, "processed"), markerKif, 1.0, "", kb.SystemKB, nil, 0)
	if _, saveErr := sc.kb.SaveAssertion(ctx, marker); saveErr != nil {
		logging.Get(logging.CategoryControl).Errorw("failed to mark request processed", "request", req.ID, "error", saveErr)
	}

	if err != nil {
		logging.Get(logging.CategoryControl).Warnw("request processing failed", "request", req.ID, "error", err)
		errKif := term.Lst(term.Atom("TaskError"), term.Atom(req.ID), term.Str(err.Error()))
		errAssertion := kb.NewAssertion(markerID(req.ID, "error"), errKif, 0.9, "", kb.SystemKB, nil, 0)
		if _, saveErr := sc.kb.SaveAssertion(ctx, errAssertion); saveErr != nil {
			logging.Get(logging.CategoryControl).Errorw("failed to assert task error", "request", req.ID, "error", saveErr)
		}
	}
}

// sendOutboundResponses implements phase 2: every active
// (ApiResponse ...) assertion not yet marked SentApiResponse is
// converted and sent, then marked, guaranteeing at-most-once delivery
// at most once.
func (sc *SystemControl) sendOutboundResponses(ctx context.Context) error {
	responses := sc.kb.QueryAssertions(term.Lst(term.Atom("ApiResponse"), term.Var("id"), term.Var("content")), kb.APIOutbox)
	for _, resp := range responses {
		sent := sc.kb.QueryAssertions(term.Lst(term.Atom("SentApiResponse"), term.Atom(resp.ID)), kb.SystemKB)
		if len(sent) > 0 {
			continue
		}
		msg, err := apigateway.ConvertApiResponseToMessage(resp.Kif)
		if err != nil {
			logging.Get(logging.CategoryControl).Errorw("failed to convert response", "assertion", resp.ID, "error", err)
			continue
		}
		if sc.sender != nil {
			if err := sc.sender.Send(ctx, msg); err != nil {
				logging.Get(logging.CategoryControl).Errorw("failed to send response", "assertion", resp.ID, "error", err)
				continue
			}
		}
		markerKif := term.Lst(term.Atom("SentApiResponse"), term.Atom(resp.ID))
		marker := kb.NewAssertion(markerID(resp.ID, "sent"), markerKif, 1.0, "", kb.SystemKB, nil, 0)
		if _, err := sc.kb.SaveAssertion(ctx, marker); err != nil {
			logging.Get(logging.CategoryControl).Errorw("failed to mark response sent", "assertion", resp.ID, "error", err)
		}
	}
	return nil
}

// processDeferredEvents implements phase 3: any (SystemEvent ...)
// term whose due-time has passed is processed, unblocking whatever
// waiter registered it.
func (sc *SystemControl) processDeferredEvents(ctx context.Context) {
	now := float64(time.Now().UnixNano())
	events := sc.kb.QueryAssertions(term.Lst(term.Atom("SystemEvent"), term.Var("due"), term.Var("payload")), kb.SystemKB)
	for _, ev := range events {
		dueTerm, ok := ev.Kif.Arg(0)
		if !ok {
			continue
		}
		due, ok := dueTerm.NumValue()
		if !ok || due > now {
			continue
		}
		payload, _ := ev.Kif.Arg(1)
		if _, err := sc.engine.ProcessTerm(ctx, payload); err != nil {
			logging.Get(logging.CategoryControl).Errorw("deferred event processing failed", "event", ev.ID, "error", err)
		}
		if err := sc.kb.DeleteAssertion(ctx, ev.ID); err != nil {
			logging.Get(logging.CategoryControl).Errorw("failed to remove fired deferred event", "event", ev.ID, "error", err)
		}
	}
}

// markerID builds a deterministic id for a Processed/SentApiResponse/
// TaskError marker so re-deriving the same marker twice (e.g. a retried
// tick before the first save lands) is naturally idempotent via the
// KB's save-time dedup.
func markerID(assertionID, kind string) string {
	return fmt.Sprintf("%s-%s", kind, assertionID)
}
