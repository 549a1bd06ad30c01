package pending

import (
	"context"
	"encoding/json"
	"time"
)

// SweepConfig holds configurable sweep parameters.
type SweepConfig struct {
	// Interval is how often to run the sweep (default: 1 minute).
	Interval time.Duration
}

// DefaultSweepConfig returns default sweep configuration.
func DefaultSweepConfig() SweepConfig {
	return SweepConfig{Interval: 1 * time.Minute}
}

// StartSweep starts a background goroutine that periodically removes
// expired pending actions. Stores with native TTL expire entries on their
// own; the sweep covers backing stores that do not, and keeps the two
// expiry paths on the same expires_at comparison.
//
// Returns a stop function that should be called on shutdown.
func (s *Store) StartSweep(cfg SweepConfig) func() {
	if cfg.Interval <= 0 {
		cfg = DefaultSweepConfig()
	}

	ticker := time.NewTicker(cfg.Interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				s.runSweep(context.Background())
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	return func() { close(done) }
}

// runSweep performs a single sweep cycle with panic recovery.
func (s *Store) runSweep(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			if s.logger != nil {
				s.logger.Error("sweep_panic_recovered", "error", r)
			}
		}
	}()

	swept := s.SweepExpired(ctx)
	if s.logger != nil && swept > 0 {
		s.logger.Info("pending_actions_expired", "count", swept)
	}
}

// SweepExpired removes all expired pending actions now.
// Returns the number removed.
func (s *Store) SweepExpired(ctx context.Context) int {
	keys, err := s.kv.Keys(ctx, keyPrefix)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("sweep_list_failed", "error", err.Error())
		}
		return 0
	}

	now := time.Now().UTC()
	swept := 0
	for _, key := range keys {
		data, ok, err := s.kv.Get(ctx, key)
		if err != nil || !ok {
			continue
		}
		var action Action
		if err := json.Unmarshal(data, &action); err != nil {
			continue
		}
		if action.Expired(now) {
			if _, ok, _ := s.kv.DeleteIfPresent(ctx, key); ok {
				swept++
			}
		}
	}
	return swept
}
