package policy

import (
	"context"
	"time"

	"github.com/valet-assistant/valet-core/valet/audit"
)

// Logger is the logging interface for the gate.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// FactsSource supplies provider data for condition evaluation.
// A nil source, an error, or nil facts all leave conditions unsatisfied.
type FactsSource interface {
	TargetFacts(ctx context.Context, target string) (*Facts, error)
}

// Decision is the result of a gate evaluation.
type Decision struct {
	Effect Effect `json:"effect"`
	// Reason is a user-safe explanation, set for Deny and for effects
	// degraded by an unmet condition.
	Reason string `json:"reason,omitempty"`
	// RuleMatched is false when the decision came from the system
	// fail-closed default rather than a configured rule.
	RuleMatched bool `json:"rule_matched"`
}

// Request describes the action being evaluated.
type Request struct {
	Actor      string
	ActionType string
	Target     string
	// Irreversible switches the fail-closed default from
	// REQUIRE_CONFIRMATION to DENY.
	Irreversible bool
	// IdempotencyKey is carried through to the audit entry.
	IdempotencyKey string
}

// Gate evaluates action requests against the rule set.
//
// Evaluation order per request:
//  1. exact actor + exact target + action
//  2. exact actor + any target + action
//  3. any actor + action (global default for the action type)
//  4. system fail-closed default
//
// Every evaluation writes exactly one audit entry, whatever the outcome.
// Thread-safe: the rule set is immutable after construction.
type Gate struct {
	rules  *RuleSet
	facts  FactsSource
	sink   audit.Sink
	logger Logger
}

// NewGate creates a gate. A nil rule set fails closed; a nil sink discards
// audit entries (tests only).
func NewGate(rules *RuleSet, facts FactsSource, sink audit.Sink, logger Logger) *Gate {
	if rules == nil {
		rules = FailClosed()
	}
	if sink == nil {
		sink = audit.NopSink{}
	}
	return &Gate{rules: rules, facts: facts, sink: sink, logger: logger}
}

// Evaluate decides whether the requested action may proceed.
func (g *Gate) Evaluate(ctx context.Context, req Request) Decision {
	decision := g.decide(ctx, req)

	outcome := audit.OutcomeAllowed
	if decision.Effect == Deny {
		outcome = audit.OutcomeDenied
	}
	reason := decision.Reason
	if decision.Effect == RequireConfirmation && reason == "" {
		reason = "confirmation_required"
	}
	if err := g.sink.Record(ctx, audit.Entry{
		UserID:         req.Actor,
		ActionType:     req.ActionType,
		Target:         req.Target,
		Outcome:        outcome,
		Reason:         reason,
		IdempotencyKey: req.IdempotencyKey,
		Timestamp:      time.Now().UTC(),
	}); err != nil && g.logger != nil {
		g.logger.Error("audit_record_failed",
			"actor", req.Actor,
			"action_type", req.ActionType,
			"error", err.Error(),
		)
	}

	if g.logger != nil {
		g.logger.Info("policy_evaluated",
			"actor", req.Actor,
			"action_type", req.ActionType,
			"target", req.Target,
			"effect", string(decision.Effect),
			"rule_matched", decision.RuleMatched,
		)
	}
	return decision
}

// decide runs the precedence chain without side effects.
func (g *Gate) decide(ctx context.Context, req Request) Decision {
	// Tier 1: exact actor + exact target.
	if rule := g.match(req, false, false); rule != nil {
		return g.apply(ctx, *rule, req)
	}
	// Tier 2: exact actor + any target.
	if rule := g.match(req, false, true); rule != nil {
		return g.apply(ctx, *rule, req)
	}
	// Tier 3: global default for the action type.
	if rule := g.match(req, true, true); rule != nil {
		return g.apply(ctx, *rule, req)
	}
	// Tier 4: system fail-closed default.
	if req.Irreversible {
		return Decision{Effect: Deny, Reason: "no policy rule permits this irreversible action"}
	}
	return Decision{Effect: RequireConfirmation}
}

// match finds the first rule for the given tier. wildcardActor/wildcardTarget
// select whether that dimension must be the "*" wildcard or an exact match.
func (g *Gate) match(req Request, wildcardActor, wildcardTarget bool) *Rule {
	for i := range g.rules.Rules {
		rule := &g.rules.Rules[i]
		if rule.Action != req.ActionType {
			continue
		}
		if wildcardActor && rule.Actor != "*" {
			continue
		}
		if !wildcardActor && rule.Actor != req.Actor {
			continue
		}
		if wildcardTarget && rule.Target != "*" {
			continue
		}
		if !wildcardTarget && rule.Target != req.Target {
			continue
		}
		return rule
	}
	return nil
}

// apply enforces the rule's conditions. A rule whose conditions are not all
// satisfied denies: an unmet precondition must never widen into the rule's
// configured effect.
func (g *Gate) apply(ctx context.Context, rule Rule, req Request) Decision {
	if rule.Effect == Deny {
		return Decision{Effect: Deny, Reason: "denied by policy rule", RuleMatched: true}
	}
	if len(rule.Conditions) == 0 {
		return Decision{Effect: rule.Effect, RuleMatched: true}
	}

	facts := g.fetchFacts(ctx, req.Target)
	for _, cond := range rule.Conditions {
		if !cond.satisfied(facts) {
			return Decision{Effect: Deny, Reason: cond.describe(), RuleMatched: true}
		}
	}
	return Decision{Effect: rule.Effect, RuleMatched: true}
}

// fetchFacts asks the provider for target facts. Any failure yields nil,
// which leaves every condition unsatisfied.
func (g *Gate) fetchFacts(ctx context.Context, target string) *Facts {
	if g.facts == nil {
		return nil
	}
	facts, err := g.facts.TargetFacts(ctx, target)
	if err != nil {
		if g.logger != nil {
			g.logger.Warn("facts_unavailable", "target", target, "error", err.Error())
		}
		return nil
	}
	return facts
}
