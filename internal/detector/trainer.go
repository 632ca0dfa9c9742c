package detector

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/miradorstack/pingwatch/internal/models"
	"github.com/miradorstack/pingwatch/internal/utils"
)

// TrainerConfig controls offline model fitting.
type TrainerConfig struct {
	Dir        string
	Prefix     string
	MinSamples int
	Seed       int64
	NumTrees   int
}

// SampleReader supplies the recorded history.
type SampleReader interface {
	ReadAll(ctx context.Context) ([]models.Sample, error)
}

// TrainResult describes what happened to one target.
type TrainResult struct {
	Target  string
	Samples int
	Path    string
	Skipped bool
	Err     error
}

// Trainer fits one isolation forest per target from the sample log.
type Trainer struct {
	cfg    TrainerConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewTrainer constructs a Trainer.
func NewTrainer(cfg TrainerConfig, logger *slog.Logger) *Trainer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = 50
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "iforest_model"
	}
	if cfg.Dir == "" {
		cfg.Dir = "."
	}
	return &Trainer{cfg: cfg, logger: logger, now: time.Now}
}

// Run reads every sample, fits models for targets with enough RTT readings and
// writes them to disk. Per-target failures are reported in the results.
func (t *Trainer) Run(ctx context.Context, reader SampleReader) ([]TrainResult, error) {
	history, err := reader.ReadAll(ctx)
	if err != nil {
		return nil, err
	}

	grouped := GroupFeatures(history)
	if len(grouped) == 0 {
		t.logger.Warn("no samples with RTT readings; nothing to train")
		return nil, nil
	}

	targets := make([]string, 0, len(grouped))
	for target := range grouped {
		targets = append(targets, target)
	}
	sort.Strings(targets)

	results := make([]TrainResult, 0, len(targets))
	for _, target := range targets {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, t.trainTarget(target, grouped[target]))
	}
	return results, nil
}

func (t *Trainer) trainTarget(target string, data [][]float64) TrainResult {
	result := TrainResult{Target: target, Samples: len(data)}
	if len(data) < t.cfg.MinSamples {
		result.Skipped = true
		t.logger.Info("skipping target: not enough samples",
			slog.String("target", target),
			slog.Int("samples", len(data)),
			slog.Int("required", t.cfg.MinSamples))
		return result
	}

	model, err := Fit(target, data, t.cfg.Seed, t.cfg.NumTrees)
	if err != nil {
		result.Err = utils.Wrap(err, utils.CodeModelTrainFailure, "fit model", "target", target)
		t.logger.Error("training failed", slog.String("target", target), utils.ErrAttr(result.Err))
		return result
	}
	model.TrainedAt = t.now().UTC()

	path, err := model.Save(t.cfg.Dir, t.cfg.Prefix)
	if err != nil {
		result.Err = err
		t.logger.Error("saving model failed", slog.String("target", target), utils.ErrAttr(err))
		return result
	}
	result.Path = path
	t.logger.Info("model trained", slog.String("target", target), slog.Int("samples", len(data)), slog.String("path", path))
	return result
}

// Fit trains a model for target over prepared feature rows.
func Fit(target string, data [][]float64, seed int64, numTrees int) (*Model, error) {
	forest, err := FitForest(data, ForestParams{NumTrees: numTrees, Seed: seed})
	if err != nil {
		return nil, err
	}
	return &Model{
		Version:     ModelVersion,
		Target:      target,
		SampleCount: len(data),
		Seed:        seed,
		Forest:      forest,
	}, nil
}

// GroupFeatures turns samples with an RTT reading into per-target feature rows.
func GroupFeatures(history []models.Sample) map[string][][]float64 {
	grouped := make(map[string][][]float64)
	for _, s := range history {
		if !s.HasRTT() {
			continue
		}
		grouped[s.Target] = append(grouped[s.Target], Features(s.RTT(), s.Timestamp))
	}
	return grouped
}
