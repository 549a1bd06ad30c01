// Package provider defines the read-provider boundary: the upstream
// system that serves inbox items, pull-request summaries, and delegated
// task status. The router consumes it read-only; write operations go
// through the action-executor registry.
package provider

import (
	"context"
	"errors"
	"time"

	"github.com/valet-assistant/valet-core/valet/profile"
)

// ErrNotFound is returned when a target or task does not exist upstream.
var ErrNotFound = errors.New("provider: not found")

// InboxItem is one actionable item awaiting the user.
type InboxItem struct {
	ID       string    `json:"id"`
	Kind     string    `json:"kind"` // "review_requested", "mention", "assigned"
	Title    string    `json:"title"`
	Target   string    `json:"target,omitempty"` // e.g. "org/repo#7"
	Link     string    `json:"link,omitempty"`
	Received time.Time `json:"received"`
}

// Summary describes one pull request in enough detail for every privacy
// mode; the caller drops fields the active mode does not permit.
type Summary struct {
	Target      string `json:"target"`
	Title       string `json:"title"`
	State       string `json:"state"` // "open", "merged", "closed"
	Author      string `json:"author"`
	ChecksGreen bool   `json:"checks_green"`
	Approvals   int    `json:"approvals"`
	Overview    string `json:"overview"`
	Detail      string `json:"detail,omitempty"`
	CodeExcerpt string `json:"code_excerpt,omitempty"`
}

// TaskStatus is the state of a task delegated to an external agent.
type TaskStatus struct {
	TaskID    string    `json:"task_id"`
	Goal      string    `json:"goal"`
	State     string    `json:"state"` // "queued", "running", "done", "failed"
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ReadProvider is the read-only upstream surface.
type ReadProvider interface {
	// ListInbox returns the actor's inbox, newest first.
	ListInbox(ctx context.Context, actor string) ([]InboxItem, error)

	// Summarize returns a summary for a target such as "org/repo#42",
	// already filtered to what the privacy mode permits.
	Summarize(ctx context.Context, target string, privacy profile.PrivacyMode) (*Summary, error)

	// TaskStatus returns the state of a delegated task.
	TaskStatus(ctx context.Context, actor, taskID string) (*TaskStatus, error)

	// ActiveTasks returns the actor's non-terminal delegated tasks.
	ActiveTasks(ctx context.Context, actor string) ([]TaskStatus, error)
}
