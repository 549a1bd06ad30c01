package policy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valet-assistant/valet-core/valet/audit"
)

// staticFacts is a FactsSource returning fixed facts.
type staticFacts struct {
	facts *Facts
	err   error
}

func (s staticFacts) TargetFacts(context.Context, string) (*Facts, error) {
	return s.facts, s.err
}

func boolPtr(b bool) *bool { return &b }
func intPtr(i int) *int    { return &i }

func mustRules(t *testing.T, yaml string) *RuleSet {
	t.Helper()
	rs, err := ParseRules([]byte(yaml))
	require.NoError(t, err)
	return rs
}

func TestGate_PrecedenceOrder(t *testing.T) {
	rules := mustRules(t, `
rules:
  - actor: alice
    action: pr.request_review
    target: org/repo#7
    effect: deny
  - actor: alice
    action: pr.request_review
    target: "*"
    effect: allow
  - actor: "*"
    action: pr.request_review
    target: "*"
    effect: require_confirmation
`)
	gate := NewGate(rules, nil, nil, nil)
	ctx := context.Background()

	// Tier 1: exact actor+target.
	d := gate.Evaluate(ctx, Request{Actor: "alice", ActionType: "pr.request_review", Target: "org/repo#7"})
	assert.Equal(t, Deny, d.Effect)

	// Tier 2: actor default.
	d = gate.Evaluate(ctx, Request{Actor: "alice", ActionType: "pr.request_review", Target: "org/repo#8"})
	assert.Equal(t, Allow, d.Effect)

	// Tier 3: global default for the action.
	d = gate.Evaluate(ctx, Request{Actor: "bob", ActionType: "pr.request_review", Target: "org/repo#8"})
	assert.Equal(t, RequireConfirmation, d.Effect)
}

func TestGate_FailClosedDefaults(t *testing.T) {
	gate := NewGate(nil, nil, nil, nil)
	ctx := context.Background()

	d := gate.Evaluate(ctx, Request{Actor: "anyone", ActionType: "agent.delegate"})
	assert.Equal(t, RequireConfirmation, d.Effect)
	assert.False(t, d.RuleMatched)

	d = gate.Evaluate(ctx, Request{Actor: "anyone", ActionType: "pr.merge", Irreversible: true})
	assert.Equal(t, Deny, d.Effect)
	assert.NotEmpty(t, d.Reason)
}

func TestGate_ConditionsSatisfied(t *testing.T) {
	rules := mustRules(t, `
rules:
  - actor: "*"
    action: pr.merge
    target: "*"
    effect: require_confirmation
    conditions:
      - type: checks_green
      - type: min_approvals
        min_approvals: 2
`)
	facts := staticFacts{facts: &Facts{ChecksGreen: boolPtr(true), Approvals: intPtr(2)}}
	gate := NewGate(rules, facts, nil, nil)

	d := gate.Evaluate(context.Background(), Request{Actor: "u", ActionType: "pr.merge", Target: "org/repo#1"})
	assert.Equal(t, RequireConfirmation, d.Effect)
}

func TestGate_ConditionUnmetDenies(t *testing.T) {
	rules := mustRules(t, `
rules:
  - actor: "*"
    action: pr.merge
    target: "*"
    effect: allow
    conditions:
      - type: min_approvals
        min_approvals: 2
`)
	facts := staticFacts{facts: &Facts{ChecksGreen: boolPtr(true), Approvals: intPtr(1)}}
	gate := NewGate(rules, facts, nil, nil)

	d := gate.Evaluate(context.Background(), Request{Actor: "u", ActionType: "pr.merge", Target: "t"})
	assert.Equal(t, Deny, d.Effect)
	assert.Contains(t, d.Reason, "approvals")
}

// Unavailable provider data must leave conditions unsatisfied, not skipped.
func TestGate_FactsUnavailableTreatedAsUnsatisfied(t *testing.T) {
	rules := mustRules(t, `
rules:
  - actor: "*"
    action: pr.merge
    target: "*"
    effect: allow
    conditions:
      - type: checks_green
`)
	for _, source := range []FactsSource{
		nil,
		staticFacts{err: errors.New("provider down")},
		staticFacts{facts: nil},
		staticFacts{facts: &Facts{}}, // fact itself missing
	} {
		gate := NewGate(rules, source, nil, nil)
		d := gate.Evaluate(context.Background(), Request{Actor: "u", ActionType: "pr.merge", Target: "t"})
		assert.Equal(t, Deny, d.Effect)
	}
}

func TestGate_EveryEvaluationAudited(t *testing.T) {
	rules := mustRules(t, `
rules:
  - actor: "*"
    action: pr.request_review
    target: "*"
    effect: require_confirmation
  - actor: "*"
    action: inbox.post
    target: "*"
    effect: allow
  - actor: "*"
    action: pr.merge
    target: "*"
    effect: deny
`)
	sink := audit.NewMemorySink()
	gate := NewGate(rules, nil, sink, nil)
	ctx := context.Background()

	gate.Evaluate(ctx, Request{Actor: "u", ActionType: "pr.request_review", Target: "t", IdempotencyKey: "k1"})
	gate.Evaluate(ctx, Request{Actor: "u", ActionType: "inbox.post", Target: "t"})
	gate.Evaluate(ctx, Request{Actor: "u", ActionType: "pr.merge", Target: "t"})

	entries := sink.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, audit.OutcomeAllowed, entries[0].Outcome)
	assert.Equal(t, "confirmation_required", entries[0].Reason)
	assert.Equal(t, "k1", entries[0].IdempotencyKey)
	assert.Equal(t, audit.OutcomeAllowed, entries[1].Outcome)
	assert.Equal(t, audit.OutcomeDenied, entries[2].Outcome)
}

func TestParseRules_Invalid(t *testing.T) {
	cases := map[string]string{
		"bad effect":     "rules:\n  - actor: \"*\"\n    action: a\n    target: \"*\"\n    effect: maybe\n",
		"missing action": "rules:\n  - actor: \"*\"\n    target: \"*\"\n    effect: allow\n",
		"missing actor":  "rules:\n  - action: a\n    target: \"*\"\n    effect: allow\n",
		"bad condition":  "rules:\n  - actor: \"*\"\n    action: a\n    target: \"*\"\n    effect: allow\n    conditions:\n      - type: vibes\n",
		"bad approvals":  "rules:\n  - actor: \"*\"\n    action: a\n    target: \"*\"\n    effect: allow\n    conditions:\n      - type: min_approvals\n        min_approvals: 0\n",
		"not yaml":       ":::nope",
	}
	for label, data := range cases {
		_, err := ParseRules([]byte(data))
		assert.Error(t, err, label)
	}
}
