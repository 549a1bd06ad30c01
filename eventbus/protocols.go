// Package eventbus provides the in-process event bus and its protocols.
//
// Components depend on these protocols, not implementations.
//
// Protocol Categories:
//   - Bus Protocols: Message, Query, Bus, Middleware
//   - Handler Protocols: Handler, HandlerFunc
package eventbus

import (
	"context"
)

// =============================================================================
// BUS PROTOCOLS
// =============================================================================

// Message is the protocol for all bus messages.
// All messages (events, queries, commands) must have a category.
type Message interface {
	// Category returns the message category: "event", "query", or "command".
	Category() string
}

// Query is the protocol for query messages that expect a response.
// Queries are request-response: send query, get response.
type Query interface {
	Message
	// IsQuery is a marker method to distinguish queries from other messages.
	IsQuery()
}

// Handler is the protocol for message handlers.
// Handlers process messages and optionally return responses (for queries).
type Handler interface {
	// Handle processes a message and returns a response for queries.
	Handle(ctx context.Context, message Message) (any, error)
}

// HandlerFunc is a function type that implements Handler.
type HandlerFunc func(ctx context.Context, message Message) (any, error)

// Handle implements the Handler interface.
func (f HandlerFunc) Handle(ctx context.Context, message Message) (any, error) {
	return f(ctx, message)
}

// Middleware is the protocol for bus middleware.
// Middleware can intercept messages before/after handling.
// Used for logging, telemetry, circuit breaking, etc.
type Middleware interface {
	// Before is called before message is handled.
	// Returns modified message, or nil to abort processing.
	Before(ctx context.Context, message Message) (Message, error)

	// After is called after message is handled.
	// Returns modified result.
	After(ctx context.Context, message Message, result any, err error) (any, error)
}

// Bus is the protocol for the event bus.
//
// The bus provides three messaging patterns:
//   - Publish(event): Fire-and-forget, fan-out to all subscribers
//   - Send(command): Fire-and-forget, single handler
//   - QuerySync(query): Request-response, returns result
type Bus interface {
	// Publish publishes an event to all subscribers.
	Publish(ctx context.Context, event Message) error

	// Send sends a command to its single handler.
	Send(ctx context.Context, command Message) error

	// QuerySync sends a query and waits for the response.
	QuerySync(ctx context.Context, query Query) (any, error)

	// Subscribe subscribes to an event type; returns an unsubscribe func.
	Subscribe(eventType string, handler HandlerFunc) func()

	// RegisterHandler registers the single handler for a message type.
	RegisterHandler(messageType string, handler HandlerFunc) error

	// AddMiddleware adds middleware, executed in registration order.
	AddMiddleware(middleware Middleware)

	// HasHandler checks if a handler is registered for a message type.
	HasHandler(messageType string) bool
}
