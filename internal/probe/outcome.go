package probe

import (
	"time"

	"github.com/miradorstack/pingwatch/internal/models"
)

// Outcome is the result of one probe round: either Success or Failure.
type Outcome interface {
	isOutcome()
}

// Success carries the averaged round-trip time and the loss observed in the round.
type Success struct {
	RTTMs       float64
	LossPercent float64
}

// Failure reports a probe that could not produce any reply.
type Failure struct {
	Reason string
}

func (Success) isOutcome() {}
func (Failure) isOutcome() {}

// WorstCaseLoss is the loss recorded for a failed probe.
const WorstCaseLoss = 100.0

// ToSample maps an outcome onto a sample. Failures become rtt-less, 100% loss samples.
func ToSample(target string, at time.Time, outcome Outcome) models.Sample {
	sample := models.Sample{Timestamp: at, Target: target, PacketLossPercent: WorstCaseLoss}
	if s, ok := outcome.(Success); ok {
		sample.RTTMs = models.Float(s.RTTMs)
		sample.PacketLossPercent = clampLoss(s.LossPercent)
	}
	return sample
}

func clampLoss(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}
