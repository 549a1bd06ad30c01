// Package executor provides the action-executor registry: pluggable
// handlers for concrete side effects, invoked by the router only after a
// policy gate ALLOW or a confirmed pending action.
//
// Handlers own their external retries and backoff but never idempotency;
// the router guards every invocation with an idempotency key.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrUnknownAction is returned when no executor is registered for an
// action type.
var ErrUnknownAction = errors.New("no executor registered for action")

// Handler executes one side effect from its structured payload.
// Handlers must be safely retryable: the router may invoke them again for
// a different idempotency key after a failure.
type Handler func(ctx context.Context, payload map[string]any) (map[string]any, error)

// Definition defines an executor's metadata and handler.
type Definition struct {
	ActionType  string
	Description string
	Handler     Handler
}

// Registry maps action types to executors.
type Registry struct {
	executors map[string]*Definition
	mu        sync.RWMutex
}

// NewRegistry creates an empty executor registry.
func NewRegistry() *Registry {
	return &Registry{
		executors: make(map[string]*Definition),
	}
}

// Register registers an executor for its action type.
func (r *Registry) Register(def *Definition) error {
	if def.ActionType == "" {
		return fmt.Errorf("executor action type is required")
	}
	if def.Handler == nil {
		return fmt.Errorf("executor handler is required for '%s'", def.ActionType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.executors[def.ActionType] = def
	return nil
}

// Execute runs the executor for actionType.
func (r *Registry) Execute(ctx context.Context, actionType string, payload map[string]any) (map[string]any, error) {
	r.mu.RLock()
	def, exists := r.executors[actionType]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, actionType)
	}

	return def.Handler(ctx, payload)
}

// Has checks if an executor is registered for actionType.
func (r *Registry) Has(actionType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.executors[actionType]
	return exists
}

// List returns all registered action types.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.executors))
	for actionType := range r.executors {
		types = append(types, actionType)
	}
	return types
}

// Invoker is the execution interface the router depends on.
type Invoker interface {
	Execute(ctx context.Context, actionType string, payload map[string]any) (map[string]any, error)
	Has(actionType string) bool
}

// Ensure Registry implements Invoker
var _ Invoker = (*Registry)(nil)
