package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestGetReturnsUsableLoggerBeforeInitialize(t *testing.T) {
	mu.Lock()
	base = nil
	loggers = make(map[Category]*zap.SugaredLogger)
	mu.Unlock()

	l := Get(CategoryKB)
	require.NotNil(t, l)
	l.Infow("no-op before initialize")
}

func TestInitializeBuildsPerCategoryLoggers(t *testing.T) {
	require.NoError(t, Initialize(true))
	defer Sync()

	a := Get(CategoryLogic)
	b := Get(CategoryLogic)
	assert.Same(t, a, b, "Get must cache the sugared logger per category")

	other := Get(CategoryTools)
	assert.NotSame(t, a, other)
}
