// Package intent turns normalized transcripts into structured intents.
//
// Parsing is deterministic by construction: a fixed, ordered list of
// pattern matchers is tried in declaration order and the first match wins.
// Confidence is a static property of the matched pattern, never computed,
// so identical input always yields byte-identical output.
package intent

// Name identifies an intent. The set is closed: adding an intent means
// adding a constant here plus a matcher in the ordered matcher list.
type Name string

const (
	// InboxList lists the actor's review inbox.
	InboxList Name = "inbox.list"
	// PRSummarize summarizes a pull request.
	PRSummarize Name = "pr.summarize"
	// PRRequestReview requests a review on a pull request.
	PRRequestReview Name = "pr.request_review"
	// PRMerge merges a pull request. Irreversible.
	PRMerge Name = "pr.merge"
	// AgentDelegate delegates a task to an external agent.
	AgentDelegate Name = "agent.delegate"
	// AgentStatus reports the status of delegated agent tasks.
	AgentStatus Name = "agent.status"
	// SystemRepeat replays the last spoken response for the session.
	SystemRepeat Name = "system.repeat"
	// SystemConfirm confirms the outstanding pending action.
	SystemConfirm Name = "system.confirm"
	// SystemCancel cancels the outstanding pending action.
	SystemCancel Name = "system.cancel"
	// SystemHelp lists what the assistant can do.
	SystemHelp Name = "system.help"
)

// ParsedIntent is the structured interpretation of a transcript.
// Immutable once produced; the router never mutates it.
type ParsedIntent struct {
	Name       Name           `json:"name"`
	Confidence float64        `json:"confidence"`
	Entities   map[string]any `json:"entities,omitempty"`
}

// sideEffecting is the set of intents that cause externally visible
// side effects and therefore pass through the policy gate.
var sideEffecting = map[Name]bool{
	PRRequestReview: true,
	PRMerge:         true,
	AgentDelegate:   true,
}

// irreversible is the subset of side-effecting intents that cannot be
// undone once executed. Their fail-closed policy default is DENY.
var irreversible = map[Name]bool{
	PRMerge: true,
}

// IsSideEffecting reports whether the intent causes a side effect.
func (n Name) IsSideEffecting() bool {
	return sideEffecting[n]
}

// IsIrreversible reports whether the intent's effect cannot be undone.
func (n Name) IsIrreversible() bool {
	return irreversible[n]
}

// IsSystem reports whether the intent is a session control intent
// (repeat/confirm/cancel/help) handled before policy evaluation.
func (n Name) IsSystem() bool {
	switch n {
	case SystemRepeat, SystemConfirm, SystemCancel, SystemHelp:
		return true
	default:
		return false
	}
}
