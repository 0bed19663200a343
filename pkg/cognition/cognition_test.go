package cognition_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cogkernel/internal/kb"
	"cogkernel/pkg/cognition"
)

func TestKernelAssertAndQuery(t *testing.T) {
	k, err := cognition.New(cognition.Options{PersistencePath: ":memory:"})
	require.NoError(t, err)
	defer k.Stop()

	ctx := context.Background()
	id, err := k.Assert(ctx, "(likes alice bob)", 1.0, "")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	results, err := k.Query("(likes alice ?who)", "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "(likes alice bob)", results[0].String())
}

func TestKernelRegisterToolAndProcess(t *testing.T) {
	k, err := cognition.New(cognition.Options{PersistencePath: ":memory:"})
	require.NoError(t, err)
	defer k.Stop()

	invoked := make(chan struct{}, 1)
	require.NoError(t, k.RegisterTool(stubTool{onExecute: func() { invoked <- struct{}{} }}))

	antecedent, err := cognition.Parse("(trigger ?x)")
	require.NoError(t, err)
	consequent, err := cognition.Parse("(ExecuteTool stub)")
	require.NoError(t, err)
	form, err := cognition.Parse("(=> (trigger ?x) (ExecuteTool stub))")
	require.NoError(t, err)

	ctx := context.Background()
	_, err = k.KB.SaveRule(ctx, &kb.Rule{
		ID:         "rule-1",
		Form:       form,
		Antecedent: antecedent,
		Consequent: consequent,
		Priority:   1.0,
	})
	require.NoError(t, err)

	input, err := cognition.Parse("(trigger a)")
	require.NoError(t, err)
	require.NoError(t, k.Process(ctx, input))

	select {
	case <-invoked:
	default:
		t.Fatal("expected stub tool to have been invoked")
	}
}

type stubTool struct {
	onExecute func()
}

func (stubTool) Name() string        { return "stub" }
func (stubTool) Description() string { return "test stub" }
func (s stubTool) Execute(ctx context.Context, params cognition.Term, tc *cognition.ToolContext) (cognition.Term, error) {
	if s.onExecute != nil {
		s.onExecute()
	}
	return cognition.Term{}, nil
}
