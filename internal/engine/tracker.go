package engine

import "sync"

// TrackerConfig controls when a run of lossy readings becomes an outage.
type TrackerConfig struct {
	LossThresholdPercent float64
	ConsecutiveTrigger   int
	// ResetOnAlert clears the run after it fires. When false the run keeps
	// counting and fires once, when it first reaches the trigger.
	ResetOnAlert bool
}

// DefaultTrackerConfig mirrors the configuration defaults.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		LossThresholdPercent: 50,
		ConsecutiveTrigger:   3,
		ResetOnAlert:         true,
	}
}

type failureState struct {
	mu    sync.Mutex
	count int
}

// FailureTracker keeps one consecutive-loss counter per configured target.
// Each counter is written by a single tick at a time, so targets never
// contend with each other.
type FailureTracker struct {
	cfg    TrackerConfig
	states map[string]*failureState
}

// NewFailureTracker builds the per-target state from the startup target set.
func NewFailureTracker(targets []string, cfg TrackerConfig) *FailureTracker {
	if cfg.ConsecutiveTrigger < 1 {
		cfg.ConsecutiveTrigger = 1
	}
	states := make(map[string]*failureState, len(targets))
	for _, target := range targets {
		states[target] = &failureState{}
	}
	return &FailureTracker{cfg: cfg, states: states}
}

// Config returns the effective tracker configuration.
func (t *FailureTracker) Config() TrackerConfig {
	return t.cfg
}

// Record applies one loss reading and reports whether it completes an outage
// run along with the run length seen on this reading. Unknown targets are
// ignored.
func (t *FailureTracker) Record(target string, lossPercent float64) (bool, int) {
	state, ok := t.states[target]
	if !ok {
		return false, 0
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	if lossPercent < t.cfg.LossThresholdPercent {
		state.count = 0
		return false, 0
	}

	state.count++
	count := state.count
	if !t.cfg.ResetOnAlert {
		return count == t.cfg.ConsecutiveTrigger, count
	}
	if count >= t.cfg.ConsecutiveTrigger {
		state.count = 0
		return true, count
	}
	return false, count
}

// Count returns the current run length for target.
func (t *FailureTracker) Count(target string) int {
	state, ok := t.states[target]
	if !ok {
		return 0
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	return state.count
}

// Exceeds reports whether lossPercent counts toward an outage run.
func (t *FailureTracker) Exceeds(lossPercent float64) bool {
	return lossPercent >= t.cfg.LossThresholdPercent
}
