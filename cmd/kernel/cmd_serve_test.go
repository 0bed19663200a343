package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cogkernel/internal/kb"
	"cogkernel/internal/persist"
	"cogkernel/internal/term"
)

func mustParseTerm(t *testing.T, kif string) term.Term {
	t.Helper()
	parsed, err := term.Parse(kif)
	require.NoError(t, err)
	return parsed
}

func TestIngestLineParsesKnownCommand(t *testing.T) {
	knowledgeBase := kb.New(persist.NewMemStore())
	err := ingestLine(context.Background(), knowledgeBase, `{"command":"runQuery","requestId":"r1","queryType":"query","pattern":"likes"}`)
	require.NoError(t, err)

	matches := knowledgeBase.QueryAssertions(mustParseTerm(t, `(ApiRequest r1 (RunQuery query "likes"))`), kb.APIInbox)
	assert.Len(t, matches, 1)
}

func TestIngestLineFallsBackToUnknownCommand(t *testing.T) {
	knowledgeBase := kb.New(persist.NewMemStore())
	err := ingestLine(context.Background(), knowledgeBase, `{"command":"doesNotExist","requestId":"r2"}`)
	require.NoError(t, err)

	matches := knowledgeBase.QueryAssertions(mustParseTerm(t, "(ApiRequest r2 (UnknownCommand ?name ?raw))"), kb.APIInbox)
	assert.Len(t, matches, 1)
}
