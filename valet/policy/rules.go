// Package policy decides whether an action may proceed, must be confirmed,
// or is forbidden.
//
// Rules are loaded from configuration at startup. A missing or invalid rule
// set fails closed: evaluation falls through to the system default of
// REQUIRE_CONFIRMATION, or DENY for irreversible actions. There is no code
// path that defaults to ALLOW.
package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Effect
// =============================================================================

// Effect is the outcome of a policy rule.
type Effect string

const (
	// Allow lets the action execute without confirmation. Legitimate only
	// as an explicit, narrowly scoped opt-in per rule, never a default.
	Allow Effect = "allow"
	// RequireConfirmation stages the action behind a pending confirmation.
	RequireConfirmation Effect = "require_confirmation"
	// Deny forbids the action outright.
	Deny Effect = "deny"
)

// UnmarshalYAML validates the effect value while decoding.
func (e *Effect) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	incoming := Effect(s)
	switch incoming {
	case Allow, RequireConfirmation, Deny:
		*e = incoming
		return nil
	default:
		return fmt.Errorf("invalid value for effect: %q", incoming)
	}
}

// =============================================================================
// Conditions
// =============================================================================

// ConditionType identifies a provider-fact precondition on a rule.
type ConditionType string

const (
	// ConditionChecksGreen requires the target's CI checks to be passing.
	ConditionChecksGreen ConditionType = "checks_green"
	// ConditionMinApprovals requires a minimum number of review approvals.
	ConditionMinApprovals ConditionType = "min_approvals"
)

// Condition is a precondition evaluated against provider-supplied facts.
// Unavailable facts leave the condition unsatisfied, never skipped.
type Condition struct {
	Type         ConditionType `yaml:"type"`
	MinApprovals int           `yaml:"min_approvals,omitempty"`
}

// Facts is the provider-supplied data conditions are evaluated against.
// Nil pointers mean the fact is unavailable.
type Facts struct {
	ChecksGreen *bool
	Approvals   *int
}

// satisfied reports whether the condition holds given the facts.
func (c Condition) satisfied(facts *Facts) bool {
	if facts == nil {
		return false
	}
	switch c.Type {
	case ConditionChecksGreen:
		return facts.ChecksGreen != nil && *facts.ChecksGreen
	case ConditionMinApprovals:
		return facts.Approvals != nil && *facts.Approvals >= c.MinApprovals
	default:
		// Unknown condition types are unsatisfiable.
		return false
	}
}

// describe returns a user-safe description of the unmet condition.
func (c Condition) describe() string {
	switch c.Type {
	case ConditionChecksGreen:
		return "required checks are not green"
	case ConditionMinApprovals:
		return fmt.Sprintf("fewer than %d approvals", c.MinApprovals)
	default:
		return fmt.Sprintf("unknown condition %q", c.Type)
	}
}

// =============================================================================
// Rules
// =============================================================================

// Rule maps an (actor, action, target) scope to an effect.
// "*" in Actor or Target matches anything; Action is always exact.
type Rule struct {
	Actor      string      `yaml:"actor"`
	Action     string      `yaml:"action"`
	Target     string      `yaml:"target"`
	Effect     Effect      `yaml:"effect"`
	Conditions []Condition `yaml:"conditions,omitempty"`
}

// RuleSet is an ordered list of rules. Within a precedence tier the first
// declared rule wins, matching the parser's declaration-order semantics.
type RuleSet struct {
	Rules []Rule `yaml:"rules"`
}

// FailClosed returns an empty rule set: every evaluation falls through to
// the system default (REQUIRE_CONFIRMATION, or DENY for irreversible
// actions).
func FailClosed() *RuleSet {
	return &RuleSet{}
}

// LoadRules reads and validates a rule set from a YAML file.
func LoadRules(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy rules: %w", err)
	}
	return ParseRules(data)
}

// ParseRules parses and validates a YAML rule set.
func ParseRules(data []byte) (*RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal policy rules: %w", err)
	}
	for i, r := range rs.Rules {
		if r.Action == "" {
			return nil, fmt.Errorf("rule %d: action is required", i)
		}
		if r.Actor == "" {
			return nil, fmt.Errorf("rule %d: actor is required (use \"*\" for all actors)", i)
		}
		if r.Target == "" {
			return nil, fmt.Errorf("rule %d: target is required (use \"*\" for all targets)", i)
		}
		if r.Effect == "" {
			return nil, fmt.Errorf("rule %d: effect is required", i)
		}
		for _, c := range r.Conditions {
			switch c.Type {
			case ConditionChecksGreen:
			case ConditionMinApprovals:
				if c.MinApprovals <= 0 {
					return nil, fmt.Errorf("rule %d: min_approvals must be positive", i)
				}
			default:
				return nil, fmt.Errorf("rule %d: unknown condition type %q", i, c.Type)
			}
		}
	}
	return &rs, nil
}
