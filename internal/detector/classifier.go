package detector

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/miradorstack/pingwatch/internal/metrics"
	"github.com/miradorstack/pingwatch/internal/utils"
)

// ReasonNoModel is returned for targets without a loaded model.
const ReasonNoModel = "no model available"

// Classifier holds at most one loaded model per target. Models are installed
// before the engine starts and never change afterwards.
type Classifier struct {
	models map[string]*Model
}

// NewClassifier builds a classifier from already loaded models.
func NewClassifier(models map[string]*Model) *Classifier {
	c := &Classifier{models: make(map[string]*Model, len(models))}
	for target, m := range models {
		if m != nil && m.Forest != nil {
			c.models[target] = m
		}
	}
	return c
}

// LoadClassifier loads the artifact of every target present in dir. Targets
// without an artifact, or whose artifact fails to load, proceed without one.
func LoadClassifier(dir, prefix string, targets []string, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	loaded := make(map[string]*Model, len(targets))
	for _, target := range targets {
		m, err := LoadModel(dir, prefix, target)
		switch {
		case err == nil:
			loaded[target] = m
			logger.Info("model loaded",
				slog.String("target", target),
				slog.Int("samples", m.SampleCount),
				slog.Time("trained_at", m.TrainedAt))
		case errors.Is(err, fs.ErrNotExist):
			logger.Warn("no model for target, anomaly detection skipped",
				slog.String("target", target),
				slog.String("expected", FileName(prefix, target)))
		default:
			logger.Error("failed to load model", slog.String("target", target), utils.ErrAttr(err))
		}
	}
	metrics.SetModelsLoaded(len(loaded))
	return NewClassifier(loaded)
}

// HasModel reports whether a model is loaded for target.
func (c *Classifier) HasModel(target string) bool {
	_, ok := c.models[target]
	return ok
}

// Classify applies the target's model to a live observation.
func (c *Classifier) Classify(target string, rttMs float64, at time.Time) (bool, string) {
	m, ok := c.models[target]
	if !ok {
		return false, ReasonNoModel
	}
	outlier, score := m.Predict(rttMs, at)
	if outlier {
		return true, fmt.Sprintf("model detected anomalous RTT (%.2fms, score %.3f)", rttMs, score)
	}
	return false, "RTT is within normal range"
}
