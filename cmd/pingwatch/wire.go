package main

import (
	"log/slog"

	"github.com/miradorstack/pingwatch/internal/config"
	"github.com/miradorstack/pingwatch/internal/engine"
	"github.com/miradorstack/pingwatch/internal/notify"
	"github.com/miradorstack/pingwatch/internal/utils"
)

func newLogger(cfg *config.Config) *slog.Logger {
	return utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON, utils.LogFile{
		Path:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
}

// newDispatcher builds the alert channels. With notifications disabled,
// alerts only reach the local log.
func newDispatcher(cfg *config.Config, logger *slog.Logger) notify.Dispatcher {
	if !cfg.NotificationsEnabled {
		logger.Info("notifications disabled, alerts are logged locally")
		return notify.NewLogDispatcher(logger)
	}

	telegram := notify.NewTelegramDispatcher(notify.TelegramConfig{
		BaseURL: cfg.Notifications.BaseURL,
		Token:   cfg.NotificationCredentials.Token,
		ChatID:  cfg.NotificationCredentials.ChatID,
		Timeout: cfg.Notifications.Timeout,
	}, nil, logger)
	if !telegram.Configured() {
		logger.Warn("telegram credentials are placeholders, telegram alerts will be skipped")
	}

	channels := []notify.Dispatcher{telegram}
	if email := cfg.Notifications.Email; email.Enabled {
		channels = append(channels, notify.NewEmailDispatcher(notify.EmailConfig{
			APIKey: email.APIKey,
			From:   email.From,
			To:     email.To,
		}, logger))
	}
	return notify.NewFanout(channels...)
}

func engineConfig(cfg *config.Config) engine.Config {
	return engine.Config{
		Targets:             cfg.Targets,
		TickInterval:        cfg.TickInterval(),
		MaxConcurrentProbes: cfg.Probe.MaxConcurrentProbes,
		Tracker: engine.TrackerConfig{
			LossThresholdPercent: cfg.Detection.LossThresholdPercent,
			ConsecutiveTrigger:   cfg.Detection.ConsecutiveTrigger,
			ResetOnAlert:         cfg.Detection.ResetAfterAlert(),
		},
	}
}
