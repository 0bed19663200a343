// Package logging provides config-driven categorized logging for the
// kernel. Every subsystem logs through a named Category so operators
// can filter by concern (store, kb, tools, control, ...) the same way
// the file-based category loggers this package is modeled on did, but
// backed by a structured zap.Logger instead of hand-rolled file output.
package logging

import (
	"sync"

	"go.uber.org/zap"
)

// Category identifies the subsystem emitting a log line.
type Category string

const (
	CategoryBoot    Category = "boot"
	CategoryKB      Category = "kb"
	CategoryTMS     Category = "tms"
	CategoryLogic   Category = "logic"
	CategoryTools   Category = "tools"
	CategoryLLM     Category = "llm"
	CategoryGateway Category = "gateway"
	CategoryControl Category = "control"
	CategoryStore   Category = "store"
	CategoryConfig  Category = "config"
)

var (
	mu       sync.RWMutex
	base     *zap.Logger
	loggers  = make(map[Category]*zap.SugaredLogger)
	debugSet bool
)

// Initialize installs the base zap logger. debug selects a development
// (human-readable, debug-level) config; otherwise a production JSON
// config is used. Safe to call once at startup; a second call replaces
// the base logger and clears cached per-category loggers.
func Initialize(debug bool) error {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	l, err := cfg.Build()
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	base = l
	debugSet = debug
	loggers = make(map[Category]*zap.SugaredLogger)
	return nil
}

// Get returns the sugared logger for category, lazily building one from
// the base logger (falling back to zap's global no-op logger if
// Initialize has not been called, so packages can log before startup
// without panicking).
func Get(category Category) *zap.SugaredLogger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}
	b := base
	if b == nil {
		b = zap.NewNop()
	}
	l := b.Sugar().With("category", string(category))
	loggers[category] = l
	return l
}

// Sync flushes every category logger's underlying writer. Call once at
// shutdown; errors from Sync are expected and ignorable on most
// platforms (e.g. stderr not supporting fsync) so callers typically
// discard it, as cobra's PersistentPostRun does for the base logger.
func Sync() error {
	mu.RLock()
	defer mu.RUnlock()
	if base == nil {
		return nil
	}
	return base.Sync()
}
