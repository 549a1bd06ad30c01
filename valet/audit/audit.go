// Package audit provides the append-only action log.
//
// Every policy decision and every execution attempt produces exactly one
// Entry, including denials. Entries are never updated or deleted, and the
// command core itself never reads them back; the SQLite sink's query
// surface exists for operators and tests only.
package audit

import (
	"context"
	"sync"
	"time"
)

// Outcome classifies an action log entry.
type Outcome string

const (
	// OutcomeAllowed records a policy decision that let an action proceed,
	// immediately or behind a confirmation.
	OutcomeAllowed Outcome = "allowed"
	// OutcomeDenied records a policy denial or a user cancellation.
	OutcomeDenied Outcome = "denied"
	// OutcomeExecuted records a successful execution attempt.
	OutcomeExecuted Outcome = "executed"
	// OutcomeFailed records a failed execution attempt.
	OutcomeFailed Outcome = "failed"
)

// Entry is one append-only audit record.
type Entry struct {
	UserID         string    `json:"user_id"`
	ActionType     string    `json:"action_type"`
	Target         string    `json:"target,omitempty"`
	Outcome        Outcome   `json:"outcome"`
	Reason         string    `json:"reason,omitempty"`
	IdempotencyKey string    `json:"idempotency_key,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Sink accepts append-only entry writes.
// Implementations must tolerate concurrent writers.
type Sink interface {
	Record(ctx context.Context, entry Entry) error
}

// =============================================================================
// Memory Sink
// =============================================================================

// MemorySink keeps entries in memory. Used in tests and single-process
// deployments where durability is not required.
type MemorySink struct {
	entries []Entry
	mu      sync.Mutex
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Record appends an entry.
func (s *MemorySink) Record(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

// Entries returns a copy of all recorded entries.
func (s *MemorySink) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// CountByOutcome returns the number of entries with the given outcome.
func (s *MemorySink) CountByOutcome(outcome Outcome) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, e := range s.entries {
		if e.Outcome == outcome {
			count++
		}
	}
	return count
}

// NopSink discards all entries. Useful for isolated unit tests.
type NopSink struct{}

// Record discards the entry.
func (NopSink) Record(context.Context, Entry) error { return nil }

// Ensure implementations satisfy Sink.
var (
	_ Sink = (*MemorySink)(nil)
	_ Sink = NopSink{}
)
