package control_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"cogkernel/internal/control"
	"cogkernel/internal/kb"
	"cogkernel/internal/logic"
	"cogkernel/internal/persist"
	"cogkernel/internal/term"
	"cogkernel/internal/tools"
)

// Start/Stop spin up a ticker goroutine; TestMain confirms every test
// in this package leaves none behind.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeSender struct {
	sent []string
}

func (f *fakeSender) Send(ctx context.Context, message string) error {
	f.sent = append(f.sent, message)
	return nil
}

func newTestKernel(t *testing.T) (*kb.KnowledgeBase, *logic.Engine, *fakeSender) {
	t.Helper()
	store := persist.NewMemStore()
	knowledgeBase := kb.New(store)
	registry := tools.NewRegistry()
	tools.RegisterPrimitives(registry)
	sender := &fakeSender{}
	newTC := func(ruleID string) *tools.ToolContext {
		return &tools.ToolContext{KB: knowledgeBase, Sender: sender, RuleID: ruleID}
	}
	engine := logic.New(knowledgeBase, registry, newTC)
	return knowledgeBase, engine, sender
}

func mustSaveAssertion(t *testing.T, knowledgeBase *kb.KnowledgeBase, kif string, kbID string) *kb.Assertion {
	t.Helper()
	parsed, err := term.Parse(kif)
	require.NoError(t, err)
	a := kb.NewAssertion(kif+"-id-"+kbID, parsed, 1.0, "", kbID, nil, 0)
	saved, err := knowledgeBase.SaveAssertion(context.Background(), a)
	require.NoError(t, err)
	return saved
}

func TestTickProcessesInboundRequestAtMostOnce(t *testing.T) {
	knowledgeBase, engine, sender := newTestKernel(t)
	req := mustSaveAssertion(t, knowledgeBase, `(ApiRequest req1 (LogMessage "hello" info))`, kb.APIInbox)

	sc := control.New(knowledgeBase, engine, sender, control.DefaultOptions())
	require.NoError(t, sc.Tick(context.Background()))
	require.NoError(t, sc.Tick(context.Background()))

	marker := knowledgeBase.QueryAssertions(term.Lst(term.Atom("Processed"), term.Atom(req.ID)), kb.SystemKB)
	assert.Len(t, marker, 1)
}

func TestTickSendsOutboundResponseAtMostOnce(t *testing.T) {
	knowledgeBase, engine, sender := newTestKernel(t)
	resp := mustSaveAssertion(t, knowledgeBase, `(ApiResponse resp1 (QueryResult query SUCCESS (a b) done))`, kb.APIOutbox)

	sc := control.New(knowledgeBase, engine, sender, control.DefaultOptions())
	require.NoError(t, sc.Tick(context.Background()))
	require.NoError(t, sc.Tick(context.Background()))

	assert.Len(t, sender.sent, 1)
	marker := knowledgeBase.QueryAssertions(term.Lst(term.Atom("SentApiResponse"), term.Atom(resp.ID)), kb.SystemKB)
	assert.Len(t, marker, 1)
}

func TestTickFiresDueDeferredEventAndSkipsFuture(t *testing.T) {
	knowledgeBase, engine, sender := newTestKernel(t)
	now := float64(time.Now().UnixNano())

	due := term.Lst(term.Atom("SystemEvent"), term.Num(now-1), term.Lst(term.Atom("LogMessage"), term.Str("due"), term.Atom("info")))
	future := term.Lst(term.Atom("SystemEvent"), term.Num(now+float64(time.Hour.Nanoseconds())), term.Lst(term.Atom("LogMessage"), term.Str("future"), term.Atom("info")))

	dueA := kb.NewAssertion("due-event", due, 1.0, "", kb.SystemKB, nil, 0)
	futureA := kb.NewAssertion("future-event", future, 1.0, "", kb.SystemKB, nil, 0)
	_, err := knowledgeBase.SaveAssertion(context.Background(), dueA)
	require.NoError(t, err)
	_, err = knowledgeBase.SaveAssertion(context.Background(), futureA)
	require.NoError(t, err)

	sc := control.New(knowledgeBase, engine, sender, control.DefaultOptions())
	require.NoError(t, sc.Tick(context.Background()))

	_, dueStillThere := knowledgeBase.GetAssertion("due-event")
	assert.False(t, dueStillThere)
	_, futureStillThere := knowledgeBase.GetAssertion("future-event")
	assert.True(t, futureStillThere)
}

func TestStartStopIsClean(t *testing.T) {
	knowledgeBase, engine, sender := newTestKernel(t)
	opts := control.DefaultOptions()
	opts.Warmup = time.Millisecond
	opts.PollInterval = 5 * time.Millisecond
	sc := control.New(knowledgeBase, engine, sender, opts)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sc.Start(ctx)
	time.Sleep(20 * time.Millisecond)
	sc.Stop()
}
