// Package logging provides config-driven categorized logging for cortex.
// Each subsystem logs under its own category; categories can be toggled
// individually and the whole system is silent until Initialize is called.
// The backend is zap; Get hands out a named SugaredLogger per category.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system.
type Category string

const (
	CategoryBoot          Category = "boot"          // Boot/initialization
	CategoryConfig        Category = "config"        // Config loading
	CategoryStore         Category = "store"         // Store operations (graph, tasks, thoughts, correlations)
	CategoryDispatch      Category = "dispatch"      // Handler dispatch and authorization
	CategoryConsolidation Category = "consolidation" // Trace consolidation
	CategoryAudit         Category = "audit"         // Audit sink
	CategoryPerformance   Category = "performance"   // Slow-operation timers
)

// Options controls logger construction.
type Options struct {
	// Debug enables debug-level output. When false only info and above
	// is emitted.
	Debug bool
	// Categories toggles individual categories; nil means all enabled.
	Categories map[string]bool
	// Dir, when set, additionally writes JSON logs to Dir/cortex.log.
	Dir string
}

var (
	mu      sync.RWMutex
	root    *zap.Logger
	nop     = zap.NewNop()
	byCat   = make(map[Category]*zap.SugaredLogger)
	options Options
)

// Initialize builds the zap backend. Before the first call every logger
// is a no-op, which keeps library consumers and tests silent by default.
func Initialize(opts Options) error {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	level := zapcore.InfoLevel
	if opts.Debug {
		level = zapcore.DebugLevel
	}

	consoleEnc := zapcore.NewConsoleEncoder(encCfg)
	cores := []zapcore.Core{
		zapcore.NewCore(consoleEnc, zapcore.Lock(os.Stderr), level),
	}

	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(filepath.Join(opts.Dir, "cortex.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.Lock(f), level))
	}

	mu.Lock()
	defer mu.Unlock()
	root = zap.New(zapcore.NewTee(cores...))
	options = opts
	byCat = make(map[Category]*zap.SugaredLogger)
	return nil
}

// IsCategoryEnabled returns whether a specific category is enabled.
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	if root == nil {
		return false
	}
	if options.Categories == nil {
		return true
	}
	enabled, exists := options.Categories[string(category)]
	if !exists {
		return true // enabled by default if not specified
	}
	return enabled
}

// Get returns (or creates) the logger for the given category. Disabled
// categories get a no-op logger so call sites never nil-check.
func Get(category Category) *zap.SugaredLogger {
	if !IsCategoryEnabled(category) {
		return nop.Sugar()
	}

	mu.RLock()
	if l, ok := byCat[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := byCat[category]; ok {
		return l
	}
	l := root.Named(string(category)).Sugar()
	byCat[category] = l
	return l
}

// Sync flushes buffered log entries. Safe to call on shutdown.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	if root != nil {
		_ = root.Sync()
	}
}

// Category convenience helpers, one pair per subsystem.

func Boot(format string, args ...interface{}) {
	Get(CategoryBoot).Infof(format, args...)
}

func BootDebug(format string, args ...interface{}) {
	Get(CategoryBoot).Debugf(format, args...)
}

func Store(format string, args ...interface{}) {
	Get(CategoryStore).Infof(format, args...)
}

func StoreDebug(format string, args ...interface{}) {
	Get(CategoryStore).Debugf(format, args...)
}

func Dispatch(format string, args ...interface{}) {
	Get(CategoryDispatch).Infof(format, args...)
}

func DispatchDebug(format string, args ...interface{}) {
	Get(CategoryDispatch).Debugf(format, args...)
}

func Consolidation(format string, args ...interface{}) {
	Get(CategoryConsolidation).Infof(format, args...)
}

func ConsolidationDebug(format string, args ...interface{}) {
	Get(CategoryConsolidation).Debugf(format, args...)
}

// =============================================================================
// PERFORMANCE TIMERS
// =============================================================================

// slowThreshold marks operations worth a warning in the performance log.
const slowThreshold = 500 * time.Millisecond

// Timer measures one operation for the performance category.
type Timer struct {
	category  Category
	operation string
	start     time.Time
}

// StartTimer begins timing an operation. Call Stop when done.
func StartTimer(category Category, operation string) *Timer {
	return &Timer{category: category, operation: operation, start: time.Now()}
}

// Stop logs the elapsed time, warning when the operation was slow.
func (t *Timer) Stop() {
	elapsed := time.Since(t.start)
	if elapsed >= slowThreshold {
		Get(CategoryPerformance).Warnf("%s/%s took %s", t.category, t.operation, elapsed)
		return
	}
	Get(CategoryPerformance).Debugf("%s/%s took %s", t.category, t.operation, elapsed)
}
