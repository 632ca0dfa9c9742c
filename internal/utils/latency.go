package utils

import (
	"sort"
	"sync"
)

// RTTWindow stores the most recent round-trip samples (milliseconds) and computes percentiles.
type RTTWindow struct {
	mu      sync.RWMutex
	samples []float64
	maxSize int
}

// NewRTTWindow creates a window storing up to maxSize samples.
func NewRTTWindow(maxSize int) *RTTWindow {
	if maxSize <= 0 {
		maxSize = 512
	}
	return &RTTWindow{maxSize: maxSize}
}

// Observe records a new round-trip time.
func (w *RTTWindow) Observe(ms float64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.samples = append(w.samples, ms)
	if len(w.samples) > w.maxSize {
		// Drop oldest sample to bound memory.
		copy(w.samples[0:], w.samples[1:])
		w.samples = w.samples[:w.maxSize]
	}
}

// Percentile returns the percentile (0-100) value. Returns zero if no samples.
func (w *RTTWindow) Percentile(p float64) float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if len(w.samples) == 0 {
		return 0
	}

	sorted := append([]float64(nil), w.samples...)
	sort.Float64s(sorted)

	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	index := int((p / 100.0) * float64(len(sorted)-1))
	return sorted[index]
}

// Count returns number of samples recorded.
func (w *RTTWindow) Count() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.samples)
}
