// Package ratelimit provides per-actor rate limiting using a sliding
// window algorithm.
//
// Features:
//   - Per-actor limits with a global default
//   - Minute and hour windows
//   - Thread-safe implementation
package ratelimit

import (
	"sync"
	"time"
)

// =============================================================================
// Config & Result
// =============================================================================

// Config defines rate limiting thresholds. A non-positive limit disables
// that window.
type Config struct {
	RequestsPerMinute int `json:"requests_per_minute"`
	RequestsPerHour   int `json:"requests_per_hour"`
}

// DefaultConfig returns sensible defaults for a voice assistant: a person
// speaking commands does not exceed these.
func DefaultConfig() *Config {
	return &Config{
		RequestsPerMinute: 30,
		RequestsPerHour:   400,
	}
}

// Result represents the result of a rate limit check.
type Result struct {
	Allowed    bool    `json:"allowed"`
	LimitType  string  `json:"limit_type,omitempty"` // "minute", "hour"
	Current    int     `json:"current"`
	Limit      int     `json:"limit"`
	Remaining  int     `json:"remaining"`
	RetryAfter float64 `json:"retry_after,omitempty"` // seconds
}

// =============================================================================
// Sliding Window
// =============================================================================

// slidingWindow counts events over a trailing window using sub-buckets.
type slidingWindow struct {
	windowSeconds int
	bucketCount   int
	buckets       map[int64]int
	mu            sync.RWMutex
}

func newSlidingWindow(windowSeconds int) *slidingWindow {
	return &slidingWindow{
		windowSeconds: windowSeconds,
		bucketCount:   10,
		buckets:       make(map[int64]int),
	}
}

// record records an event and drops buckets that fell out of the window.
func (w *slidingWindow) record(timestamp float64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	bucketSize := float64(w.windowSeconds) / float64(w.bucketCount)
	currentBucket := int64(timestamp / bucketSize)

	minBucket := currentBucket - int64(w.bucketCount)
	for b := range w.buckets {
		if b < minBucket {
			delete(w.buckets, b)
		}
	}

	w.buckets[currentBucket]++
}

// count returns the number of events currently inside the window.
func (w *slidingWindow) count(timestamp float64) int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.countLocked(timestamp)
}

func (w *slidingWindow) countLocked(timestamp float64) int {
	bucketSize := float64(w.windowSeconds) / float64(w.bucketCount)
	currentBucket := int64(timestamp / bucketSize)
	minBucket := currentBucket - int64(w.bucketCount)

	count := 0
	for bucket, bucketCount := range w.buckets {
		if bucket >= minBucket {
			count += bucketCount
		}
	}
	return count
}

// retryAfter estimates seconds until a slot frees up.
func (w *slidingWindow) retryAfter(timestamp float64, limit int) float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.countLocked(timestamp) < limit {
		return 0
	}

	bucketSize := float64(w.windowSeconds) / float64(w.bucketCount)
	currentBucket := int64(timestamp / bucketSize)
	minBucket := currentBucket - int64(w.bucketCount)

	var oldest int64 = -1
	for b := range w.buckets {
		if b >= minBucket && (oldest < 0 || b < oldest) {
			oldest = b
		}
	}
	if oldest < 0 {
		return 0
	}

	bucketEnd := float64(oldest+1) * bucketSize
	wait := bucketEnd - timestamp + float64(w.windowSeconds)
	if wait < 0 {
		return 0
	}
	return wait
}

// isEmpty returns true if the window has no activity at all.
func (w *slidingWindow) isEmpty() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.buckets) == 0
}

// =============================================================================
// Limiter
// =============================================================================

// windowKey identifies a rate limit window.
type windowKey struct {
	actor      string
	windowType string // "minute", "hour"
}

// Limiter enforces per-actor request limits. Thread-safe.
type Limiter struct {
	defaultConfig *Config
	actorConfigs  map[string]*Config
	windows       map[windowKey]*slidingWindow
	mu            sync.RWMutex
}

// NewLimiter creates a rate limiter.
func NewLimiter(defaultConfig *Config) *Limiter {
	if defaultConfig == nil {
		defaultConfig = DefaultConfig()
	}
	return &Limiter{
		defaultConfig: defaultConfig,
		actorConfigs:  make(map[string]*Config),
		windows:       make(map[windowKey]*slidingWindow),
	}
}

// SetActorLimits overrides the limits for a specific actor.
func (l *Limiter) SetActorLimits(actor string, config *Config) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.actorConfigs[actor] = config
}

// configFor returns the effective config for an actor.
func (l *Limiter) configFor(actor string) *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if cfg, ok := l.actorConfigs[actor]; ok {
		return cfg
	}
	return l.defaultConfig
}

// Check reports whether a request from actor is within limits, recording
// it when allowed.
func (l *Limiter) Check(actor string) *Result {
	now := float64(time.Now().UnixNano()) / 1e9
	config := l.configFor(actor)

	checks := []struct {
		windowType    string
		windowSeconds int
		limit         int
	}{
		{"minute", 60, config.RequestsPerMinute},
		{"hour", 3600, config.RequestsPerHour},
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, check := range checks {
		if check.limit <= 0 {
			continue
		}

		key := windowKey{actor, check.windowType}
		window, exists := l.windows[key]
		if !exists {
			window = newSlidingWindow(check.windowSeconds)
			l.windows[key] = window
		}

		current := window.count(now)
		if current >= check.limit {
			return &Result{
				Allowed:    false,
				LimitType:  check.windowType,
				Current:    current,
				Limit:      check.limit,
				RetryAfter: window.retryAfter(now, check.limit),
			}
		}
	}

	for _, check := range checks {
		if check.limit <= 0 {
			continue
		}
		l.windows[windowKey{actor, check.windowType}].record(now)
	}

	remaining := config.RequestsPerMinute
	if window, exists := l.windows[windowKey{actor, "minute"}]; exists {
		remaining = config.RequestsPerMinute - window.count(now)
		if remaining < 0 {
			remaining = 0
		}
	}

	return &Result{Allowed: true, Remaining: remaining}
}

// ResetActor drops all windows for an actor. Returns how many were dropped.
func (l *Limiter) ResetActor(actor string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	count := 0
	for key := range l.windows {
		if key.actor == actor {
			delete(l.windows, key)
			count++
		}
	}
	return count
}

// CleanupExpired drops idle windows. Should be called periodically to
// prevent memory growth across many actors.
func (l *Limiter) CleanupExpired() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cleaned := 0
	for key, window := range l.windows {
		if window.isEmpty() {
			delete(l.windows, key)
			cleaned++
		}
	}
	return cleaned
}
