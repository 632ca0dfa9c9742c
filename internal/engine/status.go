package engine

import (
	"sync"
	"time"

	"github.com/miradorstack/pingwatch/internal/models"
	"github.com/miradorstack/pingwatch/internal/utils"
)

const defaultStatusWindow = 360

type targetStatus struct {
	mu        sync.RWMutex
	target    models.Target
	healthy   bool
	last      *models.Sample
	lastAlert models.Severity
	window    *utils.RTTWindow
}

func newTargetStatus(target models.Target, window int) *targetStatus {
	if window <= 0 {
		window = defaultStatusWindow
	}
	return &targetStatus{
		target:  target,
		healthy: true,
		window:  utils.NewRTTWindow(window),
	}
}

func (s *targetStatus) update(result TickResult, lossy bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sample := result.Sample
	s.last = &sample
	s.healthy = !lossy
	if result.Alert != nil {
		s.lastAlert = result.Alert.Severity
	}
	if sample.HasRTT() {
		s.window.Observe(sample.RTT())
	}
}

func (s *targetStatus) snapshot() models.TargetStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := models.TargetStatus{
		Target:         s.target,
		Healthy:        s.healthy,
		LastAlert:      s.lastAlert,
		RTTP50Ms:       s.window.Percentile(50),
		RTTP95Ms:       s.window.Percentile(95),
		RTTSampleCount: s.window.Count(),
	}
	if s.last != nil {
		st.LastTimestamp = s.last.Timestamp.Format(time.RFC3339Nano)
		if s.last.RTTMs != nil {
			st.LastRTTMs = models.Float(*s.last.RTTMs)
		}
		st.LastPacketLoss = models.Float(s.last.PacketLossPercent)
	}
	return st
}
