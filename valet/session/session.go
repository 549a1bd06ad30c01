// Package session stores per-session conversational state: the last spoken
// response and the last executed intent, read back for "repeat" semantics.
//
// State is upserted after every successfully-answered command and only ever
// read (never mutated) by a repeat request. Sessions are logically
// partitioned by session ID, so concurrent users never contend.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valet-assistant/valet-core/valet/store"
)

// DefaultTTL is the default lifetime of idle session state.
const DefaultTTL = 24 * time.Hour

const keyPrefix = "session:"

// State is the replayable record of a session's last answered command.
type State struct {
	SessionID      string         `json:"session_id"`
	LastSpokenText string         `json:"last_spoken_text"`
	LastIntent     string         `json:"last_intent"`
	LastResponse   map[string]any `json:"last_response_payload,omitempty"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Store manages session state over a keyed store.
type Store struct {
	kv  store.KeyValue
	ttl time.Duration
}

// NewStore creates a session store. A non-positive ttl uses DefaultTTL.
func NewStore(kv store.KeyValue, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{kv: kv, ttl: ttl}
}

// Save upserts the state for its session, stamping UpdatedAt.
func (s *Store) Save(ctx context.Context, state State) error {
	if state.SessionID == "" {
		return fmt.Errorf("session state requires a session_id")
	}
	state.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(&state)
	if err != nil {
		return fmt.Errorf("failed to encode session state: %w", err)
	}
	return s.kv.Put(ctx, keyPrefix+state.SessionID, data, s.ttl)
}

// Get returns the state for a session, or nil when the session is fresh.
func (s *Store) Get(ctx context.Context, sessionID string) (*State, error) {
	data, ok, err := s.kv.Get(ctx, keyPrefix+sessionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to decode session state: %w", err)
	}
	return &state, nil
}

// Delete removes the state for a session. Missing state is not an error.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	_, _, err := s.kv.DeleteIfPresent(ctx, keyPrefix+sessionID)
	return err
}
