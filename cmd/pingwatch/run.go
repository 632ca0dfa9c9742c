package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/miradorstack/pingwatch/internal/api"
	"github.com/miradorstack/pingwatch/internal/detector"
	"github.com/miradorstack/pingwatch/internal/engine"
	"github.com/miradorstack/pingwatch/internal/metrics"
	"github.com/miradorstack/pingwatch/internal/notify"
	"github.com/miradorstack/pingwatch/internal/probe"
	"github.com/miradorstack/pingwatch/internal/samples"
	"github.com/miradorstack/pingwatch/internal/utils"
)

const alertFlushTimeout = 15 * time.Second

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Probe the configured targets and dispatch alerts until interrupted",
		RunE:  runMonitor,
	}
}

func runMonitor(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger := newLogger(cfg)
	logger.Info("starting pingwatch",
		slog.Any("targets", cfg.TargetAddresses()),
		slog.Duration("interval", cfg.TickInterval()),
		slog.String("storage", cfg.Storage.Backend),
	)

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return utils.Wrap(err, utils.CodeServerStartFailure, "register metrics")
	}

	store, err := samples.Open(cfg.Storage.Backend, cfg.Storage.Path)
	if err != nil {
		return utils.Wrap(err, utils.CodePersistenceFailure, "open sample log", "path", cfg.Storage.Path)
	}
	defer store.Close()

	classifier := detector.LoadClassifier(cfg.Models.Dir, cfg.Models.Prefix, cfg.TargetAddresses(), logger)
	prober := probe.NewICMPProber(probe.ICMPConfig{
		Count:      cfg.Probe.Count,
		Timeout:    cfg.Probe.Timeout,
		Privileged: cfg.Probe.Privileged,
	}, logger)

	eng := engine.New(engineConfig(cfg), prober, store, classifier, newDispatcher(cfg, logger), logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var grpcServer *api.Server
	if cfg.Server.GRPCAddress != "" {
		grpcServer, err = api.NewServer(cfg.Server, eng.Targets())
		if err != nil {
			return utils.Wrap(err, utils.CodeServerStartFailure, "create gRPC server")
		}
		eng.AddObserver(grpcServer)
		go func() {
			logger.Info("gRPC health server listening", slog.String("address", grpcServer.Address()))
			if serveErr := grpcServer.Start(); serveErr != nil {
				logger.Error("gRPC server exited", slog.Any("error", serveErr))
				stop()
			}
		}()
	}

	var httpServer *api.HTTPServer
	if cfg.Server.HTTPAddress != "" {
		httpServer, err = api.NewHTTPServer(cfg.Server.HTTPAddress, api.NewRouter(eng, prometheus.DefaultGatherer, logger))
		if err != nil {
			return utils.Wrap(err, utils.CodeServerStartFailure, "create status server")
		}
		go func() {
			logger.Info("status server listening", slog.String("address", httpServer.Address()))
			if serveErr := httpServer.Start(); serveErr != nil {
				logger.Error("status server exited", slog.Any("error", serveErr))
				stop()
			}
		}()
	}

	eng.Emit(ctx, notify.StartupAlert(eng.Targets(), time.Now()))

	runErr := eng.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("status server shutdown", slog.Any("error", err))
		}
	}

	alertCtx, cancelAlert := context.WithTimeout(context.Background(), alertFlushTimeout)
	defer cancelAlert()
	if runErr != nil {
		logger.Error("monitoring loop failed", utils.ErrAttr(runErr))
		eng.Emit(alertCtx, notify.FatalAlert(runErr, time.Now()))
		return runErr
	}

	logger.Info("shutdown signal received")
	eng.Emit(alertCtx, notify.ShutdownAlert(time.Now()))
	logger.Info("pingwatch stopped")
	return nil
}
