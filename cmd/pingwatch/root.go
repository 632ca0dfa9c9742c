package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/miradorstack/pingwatch/internal/config"
)

// NewRootCmd creates the root pingwatch command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "pingwatch",
		Short:         "pingwatch: ICMP monitoring with outage and latency-anomaly alerts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file (env PINGWATCH_CONFIG)")

	root.AddCommand(
		newRunCmd(),
		newTrainCmd(),
		newValidateCmd(),
	)
	return root
}

// loadConfig reads and validates the file named by --config.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration file and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration ok: %d targets, tick %s, storage %s:%s\n",
				len(cfg.Targets), cfg.TickInterval(), cfg.Storage.Backend, cfg.Storage.Path)
			return nil
		},
	}
}
