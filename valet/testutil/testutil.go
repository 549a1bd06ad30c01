// Package testutil provides shared test utilities and mocks.
//
// All mocks in this package are designed for testing the command core in
// isolation without requiring external dependencies.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/valet-assistant/valet-core/valet/store"
)

// =============================================================================
// MOCK INVOKER
// =============================================================================

// InvokerCall records a single executor invocation for assertion.
type InvokerCall struct {
	ActionType string
	Payload    map[string]any
}

// MockInvoker implements executor.Invoker for testing.
// Configure results per action type or use ExecuteFunc.
type MockInvoker struct {
	// Results maps action types to canned results.
	Results map[string]map[string]any

	// Error causes Execute to return this error.
	Error error

	// Delay simulates executor latency.
	Delay time.Duration

	// ExecuteFunc allows custom execution logic.
	// If set, this is called instead of using Results.
	ExecuteFunc func(ctx context.Context, actionType string, payload map[string]any) (map[string]any, error)

	// CallCount tracks the number of Execute calls.
	CallCount int

	// Calls records all calls for assertion.
	Calls []InvokerCall

	mu sync.Mutex
}

// NewMockInvoker creates a MockInvoker with sensible defaults.
func NewMockInvoker() *MockInvoker {
	return &MockInvoker{
		Results: make(map[string]map[string]any),
	}
}

// Execute implements executor.Invoker.
func (m *MockInvoker) Execute(ctx context.Context, actionType string, payload map[string]any) (map[string]any, error) {
	m.mu.Lock()
	m.CallCount++
	m.Calls = append(m.Calls, InvokerCall{ActionType: actionType, Payload: payload})
	customFunc := m.ExecuteFunc
	m.mu.Unlock()

	if customFunc != nil {
		return customFunc(ctx, actionType, payload)
	}

	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if m.Error != nil {
		return nil, m.Error
	}

	if result, ok := m.Results[actionType]; ok {
		return result, nil
	}
	return map[string]any{"ok": true}, nil
}

// Has implements executor.Invoker. The mock accepts every action type.
func (m *MockInvoker) Has(actionType string) bool { return true }

// CallsFor returns the recorded calls for one action type.
func (m *MockInvoker) CallsFor(actionType string) []InvokerCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	var calls []InvokerCall
	for _, call := range m.Calls {
		if call.ActionType == actionType {
			calls = append(calls, call)
		}
	}
	return calls
}

// =============================================================================
// CAPTURE LOGGER
// =============================================================================

// LogEntry is one captured log record.
type LogEntry struct {
	Level         string
	Msg           string
	KeysAndValues []any
}

// CaptureLogger records log calls for assertion. Satisfies the small
// Logger interfaces declared across the core packages.
type CaptureLogger struct {
	Entries []LogEntry
	mu      sync.Mutex
}

// NewCaptureLogger creates an empty CaptureLogger.
func NewCaptureLogger() *CaptureLogger {
	return &CaptureLogger{}
}

func (l *CaptureLogger) log(level, msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Entries = append(l.Entries, LogEntry{Level: level, Msg: msg, KeysAndValues: keysAndValues})
}

func (l *CaptureLogger) Debug(msg string, keysAndValues ...any) {
	l.log("debug", msg, keysAndValues...)
}
func (l *CaptureLogger) Info(msg string, keysAndValues ...any) { l.log("info", msg, keysAndValues...) }
func (l *CaptureLogger) Warn(msg string, keysAndValues ...any) { l.log("warn", msg, keysAndValues...) }
func (l *CaptureLogger) Error(msg string, keysAndValues ...any) {
	l.log("error", msg, keysAndValues...)
}

// Has reports whether a message was logged at any level.
func (l *CaptureLogger) Has(msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, entry := range l.Entries {
		if entry.Msg == msg {
			return true
		}
	}
	return false
}

// =============================================================================
// FAILING STORE
// =============================================================================

// FailingStore wraps a KeyValue and fails every operation once armed.
// Used to test StoreUnavailable handling.
type FailingStore struct {
	Inner store.KeyValue
	Err   error

	mu     sync.Mutex
	failed bool
}

// NewFailingStore wraps inner; until Fail is called it passes through.
func NewFailingStore(inner store.KeyValue) *FailingStore {
	return &FailingStore{Inner: inner, Err: store.ErrUnavailable}
}

// Fail arms the store: every subsequent operation returns Err.
func (f *FailingStore) Fail() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = true
}

// Recover disarms the store.
func (f *FailingStore) Recover() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = false
}

func (f *FailingStore) failing() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failed
}

func (f *FailingStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if f.failing() {
		return f.Err
	}
	return f.Inner.Put(ctx, key, value, ttl)
}

func (f *FailingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if f.failing() {
		return nil, false, f.Err
	}
	return f.Inner.Get(ctx, key)
}

func (f *FailingStore) DeleteIfPresent(ctx context.Context, key string) ([]byte, bool, error) {
	if f.failing() {
		return nil, false, f.Err
	}
	return f.Inner.DeleteIfPresent(ctx, key)
}

func (f *FailingStore) PutIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if f.failing() {
		return false, f.Err
	}
	return f.Inner.PutIfAbsent(ctx, key, value, ttl)
}

func (f *FailingStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	if f.failing() {
		return nil, f.Err
	}
	return f.Inner.Keys(ctx, prefix)
}

var _ store.KeyValue = (*FailingStore)(nil)
