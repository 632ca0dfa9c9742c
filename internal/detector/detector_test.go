package detector

import (
	"context"
	"errors"
	"io/fs"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/pingwatch/internal/models"
	"github.com/miradorstack/pingwatch/internal/utils"
)

var noon = time.Date(2025, 7, 14, 12, 0, 0, 0, time.UTC)

func TestClassifyWithoutModel(t *testing.T) {
	c := NewClassifier(nil)
	for _, rtt := range []float64{0, 20, 5000} {
		anomalous, reason := c.Classify("8.8.8.8", rtt, noon)
		assert.False(t, anomalous)
		assert.Equal(t, ReasonNoModel, reason)
	}
	assert.False(t, c.HasModel("8.8.8.8"))
}

func TestClassifySpikeAfterSteadyHistory(t *testing.T) {
	stream := []float64{20, 21, 19, 20, 250}
	train := make([][]float64, 0, 4)
	for _, rtt := range stream[:4] {
		train = append(train, Features(rtt, noon))
	}

	model, err := Fit("8.8.8.8", train, 42, 100)
	require.NoError(t, err)
	c := NewClassifier(map[string]*Model{"8.8.8.8": model})

	anomalous, reason := c.Classify("8.8.8.8", stream[4], noon)
	assert.True(t, anomalous)
	assert.Contains(t, reason, "250.00ms")

	anomalous, _ = c.Classify("8.8.8.8", 20, noon)
	assert.False(t, anomalous)
}

func TestFitIsReproducibleForSeed(t *testing.T) {
	data := syntheticHistory(rand.New(rand.NewSource(7)), 300)

	first, err := FitForest(data, ForestParams{NumTrees: 50, Seed: 42})
	require.NoError(t, err)
	second, err := FitForest(data, ForestParams{NumTrees: 50, Seed: 42})
	require.NoError(t, err)

	for _, row := range data {
		a, scoreA := first.IsOutlier(row)
		b, scoreB := second.IsOutlier(row)
		require.Equal(t, a, b)
		require.Equal(t, scoreA, scoreB)
	}
}

func TestForestScoresOutliersHigher(t *testing.T) {
	data := syntheticHistory(rand.New(rand.NewSource(1)), 500)
	forest, err := FitForest(data, ForestParams{NumTrees: 100, Seed: 42})
	require.NoError(t, err)

	assert.Equal(t, 256, forest.MaxSamples)
	normal := forest.Score([]float64{20, 12})
	spike := forest.Score([]float64{400, 12})
	assert.Greater(t, spike, normal)

	outlier, _ := forest.IsOutlier([]float64{400, 12})
	assert.True(t, outlier)
}

func TestFitForestRejectsBadInput(t *testing.T) {
	_, err := FitForest(nil, ForestParams{})
	assert.Error(t, err)
	_, err = FitForest([][]float64{{1, 2}, {1}}, ForestParams{})
	assert.Error(t, err)
}

func TestConstantFeaturesProduceLeaves(t *testing.T) {
	data := [][]float64{{5, 3}, {5, 3}, {5, 3}}
	forest, err := FitForest(data, ForestParams{NumTrees: 3, Seed: 1})
	require.NoError(t, err)
	for _, tr := range forest.Trees {
		require.Len(t, tr.Nodes, 1)
		assert.True(t, tr.Nodes[0].Leaf)
	}
}

func TestModelSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	model, err := Fit("1.1.1.1", syntheticHistory(rand.New(rand.NewSource(3)), 80), 42, 20)
	require.NoError(t, err)

	path, err := model.Save(dir, "iforest_model")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "iforest_model_1_1_1_1.json"), path)

	loaded, err := LoadModel(dir, "iforest_model", "1.1.1.1")
	require.NoError(t, err)
	probe := []float64{33, 4}
	assert.Equal(t, model.Forest.Score(probe), loaded.Forest.Score(probe))
}

func TestLoadModelErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadModel(dir, "iforest_model", "8.8.8.8")
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
	assert.True(t, utils.HasCode(err, utils.CodeModelLoadFailure))

	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName("iforest_model", "8.8.8.8")), []byte("{"), 0o644))
	_, err = LoadModel(dir, "iforest_model", "8.8.8.8")
	assert.True(t, utils.HasCode(err, utils.CodeModelLoadFailure))
}

func TestLoadClassifierSkipsMissingAndBroken(t *testing.T) {
	dir := t.TempDir()
	model, err := Fit("8.8.8.8", syntheticHistory(rand.New(rand.NewSource(5)), 60), 42, 10)
	require.NoError(t, err)
	_, err = model.Save(dir, "m")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName("m", "9.9.9.9")), []byte("not json"), 0o644))

	c := LoadClassifier(dir, "m", []string{"8.8.8.8", "1.1.1.1", "9.9.9.9"}, nil)
	assert.True(t, c.HasModel("8.8.8.8"))
	assert.False(t, c.HasModel("1.1.1.1"))
	assert.False(t, c.HasModel("9.9.9.9"))

	_, reason := c.Classify("1.1.1.1", 10, noon)
	assert.Equal(t, ReasonNoModel, reason)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "iforest_model_8_8_8_8.json", FileName("iforest_model", "8.8.8.8"))
	assert.Equal(t, "p_2001_db8__1.json", FileName("p", "2001:db8::1"))
	assert.Equal(t, "p_example_com.json", FileName("p", "example.com"))
}

type sliceReader []models.Sample

func (s sliceReader) ReadAll(context.Context) ([]models.Sample, error) { return s, nil }

func TestTrainerSkipsSparseTargets(t *testing.T) {
	dir := t.TempDir()
	rng := rand.New(rand.NewSource(11))

	var history []models.Sample
	for i := 0; i < 60; i++ {
		ts := noon.Add(time.Duration(i) * time.Minute)
		history = append(history, models.Sample{Timestamp: ts, Target: "8.8.8.8", RTTMs: models.Float(18 + rng.Float64()*4)})
		if i < 30 {
			history = append(history, models.Sample{Timestamp: ts, Target: "1.1.1.1", RTTMs: models.Float(9)})
		}
		// Failed probes never count towards the minimum.
		history = append(history, models.Sample{Timestamp: ts, Target: "10.0.0.1", PacketLossPercent: 100})
	}

	trainer := NewTrainer(TrainerConfig{Dir: dir, MinSamples: 50, Seed: 42, NumTrees: 20}, nil)
	results, err := trainer.Run(context.Background(), sliceReader(history))
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "1.1.1.1", results[0].Target)
	assert.True(t, results[0].Skipped)
	assert.Equal(t, 30, results[0].Samples)

	assert.Equal(t, "8.8.8.8", results[1].Target)
	assert.False(t, results[1].Skipped)
	require.NoError(t, results[1].Err)
	assert.FileExists(t, results[1].Path)

	c := LoadClassifier(dir, "iforest_model", []string{"8.8.8.8", "1.1.1.1", "10.0.0.1"}, nil)
	assert.True(t, c.HasModel("8.8.8.8"))
	assert.False(t, c.HasModel("1.1.1.1"))
	assert.False(t, c.HasModel("10.0.0.1"))
}

func syntheticHistory(rng *rand.Rand, n int) [][]float64 {
	out := make([][]float64, 0, n)
	for i := 0; i < n; i++ {
		hour := float64(i % 24)
		base := 20.0
		if hour >= 18 && hour <= 22 {
			base = 35
		}
		out = append(out, []float64{base + rng.NormFloat64()*2, hour})
	}
	return out
}
