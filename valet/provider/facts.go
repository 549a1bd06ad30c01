package provider

import (
	"context"
	"errors"

	"github.com/valet-assistant/valet-core/valet/policy"
	"github.com/valet-assistant/valet-core/valet/profile"
)

// FactsAdapter exposes provider summaries as policy facts, so rule
// conditions like "checks green" and "minimum approvals" can be evaluated
// against live target state.
type FactsAdapter struct {
	reader ReadProvider
}

// NewFactsAdapter wraps a read provider as a policy facts source.
func NewFactsAdapter(reader ReadProvider) *FactsAdapter {
	return &FactsAdapter{reader: reader}
}

// TargetFacts fetches the facts for a target. An unknown target yields nil
// facts without error, which the gate treats as unsatisfied conditions.
func (a *FactsAdapter) TargetFacts(ctx context.Context, target string) (*policy.Facts, error) {
	// Facts feed the gate, never a user response, so the privacy mode
	// here does not leak anything.
	summary, err := a.reader.Summarize(ctx, target, profile.PrivacyStrict)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	checksGreen := summary.ChecksGreen
	approvals := summary.Approvals
	return &policy.Facts{
		ChecksGreen: &checksGreen,
		Approvals:   &approvals,
	}, nil
}

var _ policy.FactsSource = (*FactsAdapter)(nil)
