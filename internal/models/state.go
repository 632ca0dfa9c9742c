package models

// TargetStatus is a read-only snapshot of a target's engine state.
type TargetStatus struct {
	Target          Target   `json:"target"`
	Healthy         bool     `json:"healthy"`
	ConsecutiveLoss int      `json:"consecutive_loss"`
	ModelLoaded     bool     `json:"model_loaded"`
	LastTimestamp   string   `json:"last_timestamp,omitempty"`
	LastRTTMs       *float64 `json:"last_rtt_ms,omitempty"`
	LastPacketLoss  *float64 `json:"last_packet_loss_percent,omitempty"`
	LastAlert       Severity `json:"last_alert,omitempty"`
	RTTP50Ms        float64  `json:"rtt_p50_ms"`
	RTTP95Ms        float64  `json:"rtt_p95_ms"`
	RTTSampleCount  int      `json:"rtt_sample_count"`
}
