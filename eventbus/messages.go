// Package eventbus provides bus message definitions.
//
// Messages are organized by domain.
//
// Categories:
//   - EVENT: Fire-and-forget, fan-out to subscribers
//   - QUERY: Request-response, single handler
//   - COMMAND: Fire-and-forget, single handler
package eventbus

// =============================================================================
// MESSAGE CATEGORIES
// =============================================================================

// MessageCategory represents message routing categories.
type MessageCategory string

const (
	// MessageCategoryEvent represents fire-and-forget, fan-out to all subscribers.
	MessageCategoryEvent MessageCategory = "event"
	// MessageCategoryQuery represents request-response, single handler.
	MessageCategoryQuery MessageCategory = "query"
	// MessageCategoryCommand represents fire-and-forget, single handler.
	MessageCategoryCommand MessageCategory = "command"
)

// =============================================================================
// COMMAND LIFECYCLE EVENTS
// =============================================================================

// CommandReceived is emitted when a transcript enters the router.
// Subscribers: telemetry, trace logging.
type CommandReceived struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Profile   string `json:"profile"`
	Text      string `json:"text"`
}

// Category implements the Message interface.
func (m *CommandReceived) Category() string { return string(MessageCategoryEvent) }

// CommandProcessed is emitted when the router finishes handling a command.
// Subscribers: telemetry, trace logging.
type CommandProcessed struct {
	UserID     string  `json:"user_id"`
	SessionID  string  `json:"session_id"`
	Intent     string  `json:"intent"`
	Status     string  `json:"status"` // "ok", "needs_confirmation", "error"
	DurationMS int     `json:"duration_ms"`
	Error      *string `json:"error,omitempty"`
}

// Category implements the Message interface.
func (m *CommandProcessed) Category() string { return string(MessageCategoryEvent) }

// =============================================================================
// PENDING ACTION EVENTS
// =============================================================================

// PendingActionStaged is emitted when a side effect is parked behind a
// confirmation token.
type PendingActionStaged struct {
	UserID     string `json:"user_id"`
	ActionType string `json:"action_type"`
	Target     string `json:"target,omitempty"`
	Token      string `json:"token"`
}

// Category implements the Message interface.
func (m *PendingActionStaged) Category() string { return string(MessageCategoryEvent) }

// ActionExecuted is emitted after an executor runs, whether it succeeded
// or failed.
type ActionExecuted struct {
	UserID     string  `json:"user_id"`
	ActionType string  `json:"action_type"`
	Target     string  `json:"target,omitempty"`
	Status     string  `json:"status"` // "executed", "failed"
	DurationMS int     `json:"duration_ms"`
	Error      *string `json:"error,omitempty"`
}

// Category implements the Message interface.
func (m *ActionExecuted) Category() string { return string(MessageCategoryEvent) }

// ActionDenied is emitted when the policy gate refuses an action.
type ActionDenied struct {
	UserID     string `json:"user_id"`
	ActionType string `json:"action_type"`
	Target     string `json:"target,omitempty"`
	Reason     string `json:"reason"`
}

// Category implements the Message interface.
func (m *ActionDenied) Category() string { return string(MessageCategoryEvent) }

// ActionCancelled is emitted when the user cancels a pending action.
type ActionCancelled struct {
	UserID     string `json:"user_id"`
	ActionType string `json:"action_type"`
	Token      string `json:"token"`
}

// Category implements the Message interface.
func (m *ActionCancelled) Category() string { return string(MessageCategoryEvent) }

// =============================================================================
// DELEGATION EVENTS
// =============================================================================

// TaskDelegated is emitted when a goal is handed to an external agent.
type TaskDelegated struct {
	UserID string `json:"user_id"`
	TaskID string `json:"task_id"`
	Goal   string `json:"goal"`
}

// Category implements the Message interface.
func (m *TaskDelegated) Category() string { return string(MessageCategoryEvent) }

// =============================================================================
// QUERIES
// =============================================================================

// GetPendingCount asks how many pending actions are currently staged.
// Handled by the pending-action store owner; used by health reporting.
type GetPendingCount struct{}

// Category implements the Message interface.
func (m *GetPendingCount) Category() string { return string(MessageCategoryQuery) }

// IsQuery implements the Query interface.
func (m *GetPendingCount) IsQuery() {}

// =============================================================================
// TYPE ROUTING
// =============================================================================

// TypedMessage lets a message declare its own routing type, for messages
// defined outside this package.
type TypedMessage interface {
	Message
	MessageType() string
}

// GetMessageType returns the type name of a message for routing.
func GetMessageType(msg Message) string {
	// First check if the message can provide its own type
	if typed, ok := msg.(TypedMessage); ok {
		return typed.MessageType()
	}

	// Otherwise use the static type switch
	switch msg.(type) {
	case *CommandReceived:
		return "CommandReceived"
	case *CommandProcessed:
		return "CommandProcessed"
	case *PendingActionStaged:
		return "PendingActionStaged"
	case *ActionExecuted:
		return "ActionExecuted"
	case *ActionDenied:
		return "ActionDenied"
	case *ActionCancelled:
		return "ActionCancelled"
	case *TaskDelegated:
		return "TaskDelegated"
	case *GetPendingCount:
		return "GetPendingCount"
	default:
		return "Unknown"
	}
}
