package provider

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/valet-assistant/valet-core/valet/profile"
)

// Fixture is an in-memory provider backed by deterministic seed data.
// Used in tests and dev configurations; the live deployment swaps in a
// real upstream client behind the same interfaces.
//
// Fixture also implements the write side (review requests, merges,
// delegation) so the full confirm-then-execute flow can run without any
// external system. Thread-safe.
type Fixture struct {
	mu    sync.RWMutex
	prs   map[string]*Summary
	inbox map[string][]InboxItem
	tasks map[string]*TaskStatus // task ID -> status
	owner map[string]string      // task ID -> actor
}

// NewFixture creates a fixture provider with the standard seed data.
func NewFixture() *Fixture {
	f := &Fixture{
		prs:   make(map[string]*Summary),
		inbox: make(map[string][]InboxItem),
		tasks: make(map[string]*TaskStatus),
		owner: make(map[string]string),
	}
	f.seed()
	return f
}

// seed loads the deterministic dev dataset.
func (f *Fixture) seed() {
	seededAt := time.Date(2026, 8, 14, 9, 0, 0, 0, time.UTC)

	f.prs["org/repo#7"] = &Summary{
		Target:      "org/repo#7",
		Title:       "Harden retry backoff for webhook delivery",
		State:       "open",
		Author:      "carol",
		ChecksGreen: true,
		Approvals:   1,
		Overview:    "PR 7 hardens webhook retry backoff. Checks are green with one approval.",
		Detail:      "Switches the delivery worker to exponential backoff with jitter, caps retries at five attempts, and records each giving-up event. Touches the delivery worker and its config surface.",
		CodeExcerpt: "backoff := base * (1 << attempt); sleep(jitter(backoff))",
	}
	f.prs["org/repo#42"] = &Summary{
		Target:      "org/repo#42",
		Title:       "Add idempotency keys to the payments endpoint",
		State:       "open",
		Author:      "dave",
		ChecksGreen: true,
		Approvals:   2,
		Overview:    "PR 42 adds idempotency keys to the payments endpoint. Checks green, two approvals.",
		Detail:      "Callers may supply an Idempotency-Key header; replays within 24 hours return the recorded response instead of charging twice. Includes a migration for the key table and concurrency tests.",
		CodeExcerpt: "if prior, ok := keys.Lookup(key); ok { return prior }",
	}
	f.prs["org/repo#99"] = &Summary{
		Target:      "org/repo#99",
		Title:       "Bump base image; failing integration tests",
		State:       "open",
		Author:      "erin",
		ChecksGreen: false,
		Approvals:   0,
		Overview:    "PR 99 bumps the base image but integration tests are failing. No approvals yet.",
		Detail:      "The new base image drops a shared library the integration suite links against. Needs either a pinned package or a suite update before it can land.",
	}

	f.inbox["alice"] = []InboxItem{
		{ID: "in-1", Kind: "review_requested", Title: "Review requested on PR 42: payments idempotency", Target: "org/repo#42", Link: "https://git.example.com/org/repo/pull/42", Received: seededAt.Add(2 * time.Hour)},
		{ID: "in-2", Kind: "mention", Title: "carol mentioned you on PR 7", Target: "org/repo#7", Link: "https://git.example.com/org/repo/pull/7", Received: seededAt.Add(time.Hour)},
		{ID: "in-3", Kind: "assigned", Title: "Assigned: flaky webhook delivery test", Target: "org/repo#7", Received: seededAt},
	}
}

// =============================================================================
// Read side
// =============================================================================

// ListInbox returns the actor's inbox, newest first.
func (f *Fixture) ListInbox(ctx context.Context, actor string) ([]InboxItem, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	items := make([]InboxItem, len(f.inbox[actor]))
	copy(items, f.inbox[actor])
	sort.Slice(items, func(i, j int) bool { return items[i].Received.After(items[j].Received) })
	return items, nil
}

// Summarize returns the summary for target with fields the privacy mode
// does not permit already removed.
func (f *Fixture) Summarize(ctx context.Context, target string, privacy profile.PrivacyMode) (*Summary, error) {
	f.mu.RLock()
	pr, ok := f.prs[target]
	f.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, target)
	}

	out := *pr
	if !privacy.AllowExcerpts() {
		out.CodeExcerpt = ""
		out.Detail = ""
	}
	return &out, nil
}

// TaskStatus returns the state of a delegated task. Tasks are scoped to
// the actor that delegated them.
func (f *Fixture) TaskStatus(ctx context.Context, actor, taskID string) (*TaskStatus, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	task, ok := f.tasks[taskID]
	if !ok || f.owner[taskID] != actor {
		return nil, fmt.Errorf("%w: task %s", ErrNotFound, taskID)
	}
	out := *task
	return &out, nil
}

// ActiveTasks returns the actor's non-terminal tasks, oldest first.
func (f *Fixture) ActiveTasks(ctx context.Context, actor string) ([]TaskStatus, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var out []TaskStatus
	for id, task := range f.tasks {
		if f.owner[id] != actor {
			continue
		}
		if task.State == "done" || task.State == "failed" {
			continue
		}
		out = append(out, *task)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// =============================================================================
// Write side
// =============================================================================

// RequestReview asks reviewer for a review on target.
func (f *Fixture) RequestReview(ctx context.Context, target, reviewer string) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.prs[target]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, target)
	}
	return map[string]any{
		"target":   target,
		"reviewer": reviewer,
		"state":    "review_requested",
	}, nil
}

// Merge merges target. Merging a PR with failing checks is the policy
// gate's problem, not the provider's; the provider only rejects unknown
// and already-merged targets.
func (f *Fixture) Merge(ctx context.Context, target string) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	pr, ok := f.prs[target]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, target)
	}
	if pr.State == "merged" {
		return nil, fmt.Errorf("%s is already merged", target)
	}
	pr.State = "merged"
	return map[string]any{
		"target": target,
		"state":  "merged",
	}, nil
}

// Delegate hands a goal to an external agent and returns the new task.
// The fixture agent never actually runs; tasks stay "queued" until
// AdvanceTask moves them, which tests use to script progress.
func (f *Fixture) Delegate(ctx context.Context, actor, goal string) (*TaskStatus, error) {
	now := time.Now().UTC()
	task := &TaskStatus{
		TaskID:    "task_" + uuid.New().String(),
		Goal:      goal,
		State:     "queued",
		CreatedAt: now,
		UpdatedAt: now,
	}

	f.mu.Lock()
	f.tasks[task.TaskID] = task
	f.owner[task.TaskID] = actor
	f.mu.Unlock()

	out := *task
	return &out, nil
}

// AdvanceTask moves a task to a new state. Test hook.
func (f *Fixture) AdvanceTask(taskID, state, detail string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	task, ok := f.tasks[taskID]
	if !ok {
		return fmt.Errorf("%w: task %s", ErrNotFound, taskID)
	}
	task.State = state
	task.Detail = detail
	task.UpdatedAt = time.Now().UTC()
	return nil
}

var _ ReadProvider = (*Fixture)(nil)
