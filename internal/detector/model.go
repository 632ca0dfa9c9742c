package detector

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/miradorstack/pingwatch/internal/utils"
)

// ModelVersion is bumped whenever the artifact layout changes.
const ModelVersion = 1

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9]`)

// Model is the per-target outlier model persisted by the trainer.
type Model struct {
	Version     int       `json:"version"`
	Target      string    `json:"target"`
	TrainedAt   time.Time `json:"trained_at"`
	SampleCount int       `json:"sample_count"`
	Seed        int64     `json:"seed"`
	Forest      *Forest   `json:"forest"`
}

// Features builds the (rtt_ms, hour_of_day) vector the model was fitted on.
func Features(rttMs float64, at time.Time) []float64 {
	return []float64{rttMs, utils.HourOfDay(at)}
}

// Predict reports whether the observation is an outlier together with its score.
func (m *Model) Predict(rttMs float64, at time.Time) (bool, float64) {
	return m.Forest.IsOutlier(Features(rttMs, at))
}

// FileName derives the artifact name for target: prefix plus the target with
// every non-alphanumeric character replaced by an underscore.
func FileName(prefix, target string) string {
	return fmt.Sprintf("%s_%s.json", prefix, unsafeChars.ReplaceAllString(target, "_"))
}

// Save writes the model to dir atomically.
func (m *Model) Save(dir, prefix string) (string, error) {
	if m.Forest == nil {
		return "", errors.New("model has no forest")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", utils.Wrap(err, utils.CodeModelTrainFailure, "create model dir", "dir", dir)
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", utils.Wrap(err, utils.CodeModelTrainFailure, "encode model", "target", m.Target)
	}

	path := filepath.Join(dir, FileName(prefix, m.Target))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", utils.Wrap(err, utils.CodeModelTrainFailure, "write model", "path", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", utils.Wrap(err, utils.CodeModelTrainFailure, "install model", "path", path)
	}
	return path, nil
}

// LoadModel reads the artifact for target from dir. A missing file is reported
// with os.ErrNotExist in the chain.
func LoadModel(dir, prefix, target string) (*Model, error) {
	path := filepath.Join(dir, FileName(prefix, target))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, utils.Wrap(err, utils.CodeModelLoadFailure, "read model", "path", path)
	}

	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, utils.Wrap(err, utils.CodeModelLoadFailure, "decode model", "path", path)
	}
	if m.Version != ModelVersion {
		return nil, utils.New(utils.CodeModelLoadFailure, fmt.Sprintf("unsupported model version %d", m.Version), "path", path)
	}
	if m.Forest == nil || len(m.Forest.Trees) == 0 || m.Forest.Features != 2 {
		return nil, utils.New(utils.CodeModelLoadFailure, "model forest is empty or malformed", "path", path)
	}
	if m.Target != target {
		return nil, utils.New(utils.CodeModelLoadFailure, fmt.Sprintf("model was trained for %s", m.Target), "path", path)
	}
	return &m, nil
}
