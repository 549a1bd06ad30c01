// Package pending provides the pending-action store: staged side effects
// awaiting user confirmation, addressed by a one-time token.
//
// Lifecycle: created -> {confirmed, cancelled, expired}, all terminal.
// A token is single-use: consume is an atomic fetch-and-delete against the
// keyed store, so two concurrent confirm calls for the same token cannot
// both succeed. An expired token is indistinguishable from a non-existent
// one to callers.
package pending

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/valet-assistant/valet-core/valet/store"
)

// Logger is the logging interface for the pending store.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// ErrTokenInvalid covers expired, consumed, and never-issued tokens
// uniformly, so callers cannot learn which tokens ever existed.
var ErrTokenInvalid = errors.New("pending action token is invalid or expired")

// DefaultTTL is the default lifetime of a pending action.
const DefaultTTL = 15 * time.Minute

const keyPrefix = "pending:"

// =============================================================================
// Pending Action
// =============================================================================

// Action is a staged, not-yet-executed side effect.
type Action struct {
	Token          string         `json:"token"`
	UserID         string         `json:"user_id"`
	SessionID      string         `json:"session_id,omitempty"`
	ActionType     string         `json:"action_type"`
	Target         string         `json:"target,omitempty"`
	Payload        map[string]any `json:"payload,omitempty"`
	Summary        string         `json:"summary"`
	CreatedAt      time.Time      `json:"created_at"`
	ExpiresAt      time.Time      `json:"expires_at"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
}

// Expired reports whether the action is past its expiry at the given
// instant. The lazy consume-time check and the background sweep both go
// through this method, so the two paths can never disagree on liveness.
func (a *Action) Expired(now time.Time) bool {
	return now.After(a.ExpiresAt)
}

// NewToken returns a fresh unguessable token.
// uuid.New is backed by crypto/rand.
func NewToken() string {
	return "pa_" + uuid.New().String()
}

// =============================================================================
// Store
// =============================================================================

// Store manages pending actions over a keyed store.
// Thread-safe: all mutation goes through the store's atomic primitives.
type Store struct {
	kv     store.KeyValue
	ttl    time.Duration
	logger Logger
}

// NewStore creates a pending-action store. A non-positive ttl uses
// DefaultTTL.
func NewStore(kv store.KeyValue, ttl time.Duration, logger Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{kv: kv, ttl: ttl, logger: logger}
}

// Create stages an action and returns it with a fresh token and expiry.
func (s *Store) Create(ctx context.Context, action Action) (*Action, error) {
	now := time.Now().UTC()
	action.Token = NewToken()
	action.CreatedAt = now
	action.ExpiresAt = now.Add(s.ttl)

	data, err := json.Marshal(&action)
	if err != nil {
		return nil, fmt.Errorf("failed to encode pending action: %w", err)
	}
	if err := s.kv.Put(ctx, keyPrefix+action.Token, data, s.ttl); err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info("pending_action_created",
			"token", action.Token,
			"user_id", action.UserID,
			"action_type", action.ActionType,
			"expires_at", action.ExpiresAt.Format(time.RFC3339),
		)
	}
	return &action, nil
}

// Consume atomically fetches and deletes the action for token.
// At most one concurrent caller succeeds for a given token; everyone else,
// and every caller with an expired or unknown token, gets ErrTokenInvalid.
func (s *Store) Consume(ctx context.Context, token string) (*Action, error) {
	data, ok, err := s.kv.DeleteIfPresent(ctx, keyPrefix+token)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrTokenInvalid
	}

	var action Action
	if err := json.Unmarshal(data, &action); err != nil {
		return nil, fmt.Errorf("failed to decode pending action: %w", err)
	}
	if action.Expired(time.Now().UTC()) {
		// The store's TTL and the payload expiry are set together, but a
		// store without native TTL support can hand back a stale entry.
		return nil, ErrTokenInvalid
	}
	return &action, nil
}

// Peek returns the action for token without consuming it, or nil when the
// token is invalid. Used for listing, never for execution.
func (s *Store) Peek(ctx context.Context, token string) (*Action, error) {
	data, ok, err := s.kv.Get(ctx, keyPrefix+token)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var action Action
	if err := json.Unmarshal(data, &action); err != nil {
		return nil, fmt.Errorf("failed to decode pending action: %w", err)
	}
	if action.Expired(time.Now().UTC()) {
		return nil, nil
	}
	return &action, nil
}

// ListForUser returns all live pending actions for a user.
func (s *Store) ListForUser(ctx context.Context, userID string) ([]*Action, error) {
	keys, err := s.kv.Keys(ctx, keyPrefix)
	if err != nil {
		return nil, err
	}

	var actions []*Action
	for _, key := range keys {
		action, err := s.Peek(ctx, key[len(keyPrefix):])
		if err != nil {
			return nil, err
		}
		if action != nil && action.UserID == userID {
			actions = append(actions, action)
		}
	}
	return actions, nil
}

// Count returns the number of live pending actions. Useful for tests and
// metrics.
func (s *Store) Count(ctx context.Context) (int, error) {
	keys, err := s.kv.Keys(ctx, keyPrefix)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, key := range keys {
		action, err := s.Peek(ctx, key[len(keyPrefix):])
		if err != nil {
			return 0, err
		}
		if action != nil {
			count++
		}
	}
	return count, nil
}
