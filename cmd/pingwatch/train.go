package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/miradorstack/pingwatch/internal/detector"
	"github.com/miradorstack/pingwatch/internal/samples"
	"github.com/miradorstack/pingwatch/internal/utils"
)

func newTrainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Fit one outlier model per target from the recorded sample log",
		RunE:  runTrain,
	}
	cmd.Flags().Int("min-samples", 0, "override models.min_samples")
	cmd.Flags().String("models-dir", "", "override models.dir")
	return cmd
}

func runTrain(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if v, _ := cmd.Flags().GetInt("min-samples"); v > 0 {
		cfg.Models.MinSamples = v
	}
	if v, _ := cmd.Flags().GetString("models-dir"); v != "" {
		cfg.Models.Dir = v
	}

	logger := newLogger(cfg)

	store, err := samples.Open(cfg.Storage.Backend, cfg.Storage.Path)
	if err != nil {
		return utils.Wrap(err, utils.CodePersistenceFailure, "open sample log", "path", cfg.Storage.Path)
	}
	defer store.Close()

	trainer := detector.NewTrainer(detector.TrainerConfig{
		Dir:        cfg.Models.Dir,
		Prefix:     cfg.Models.Prefix,
		MinSamples: cfg.Models.MinSamples,
		Seed:       cfg.Models.Seed,
		NumTrees:   cfg.Models.NumTrees,
	}, logger)

	results, err := trainer.Run(cmd.Context(), store)
	if err != nil {
		return err
	}
	failed := writeReport(cmd.OutOrStdout(), results, cfg.Models.MinSamples)
	if failed > 0 {
		return utils.New(utils.CodeModelTrainFailure, fmt.Sprintf("%d target(s) failed to train", failed))
	}
	logger.Info("training finished", slog.Int("targets", len(results)))
	return nil
}

// writeReport prints one line per target and returns the number of failures.
func writeReport(w io.Writer, results []detector.TrainResult, minSamples int) int {
	if len(results) == 0 {
		fmt.Fprintln(w, "no samples with an RTT reading found; nothing to train")
		return 0
	}
	failed := 0
	for _, r := range results {
		switch {
		case r.Err != nil:
			failed++
			fmt.Fprintf(w, "FAILED   %-20s %v\n", r.Target, r.Err)
		case r.Skipped:
			fmt.Fprintf(w, "SKIPPED  %-20s %d samples, need at least %d\n", r.Target, r.Samples, minSamples)
		default:
			fmt.Fprintf(w, "TRAINED  %-20s %d samples -> %s\n", r.Target, r.Samples, r.Path)
		}
	}
	return failed
}
