package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/miradorstack/pingwatch/internal/models"
	"github.com/miradorstack/pingwatch/internal/utils"
)

// Config captures every setting the monitor and the trainer need.
type Config struct {
	Targets                 []models.Target     `yaml:"targets"`
	TickIntervalSeconds     int                 `yaml:"tick_interval_seconds"`
	Detection               DetectionConfig     `yaml:",inline"`
	NotificationsEnabled    bool                `yaml:"notifications_enabled"`
	NotificationCredentials CredentialsConfig   `yaml:"notification_credentials"`
	Notifications           NotificationsConfig `yaml:"notifications"`
	Server                  ServerConfig        `yaml:"server"`
	Logging                 LoggingConfig       `yaml:"logging"`
	Probe                   ProbeConfig         `yaml:"probe"`
	Storage                 StorageConfig       `yaml:"storage"`
	Models                  ModelsConfig        `yaml:"models"`
}

// ServerConfig controls the optional status listeners.
type ServerConfig struct {
	GRPCAddress     string        `yaml:"grpcAddress"`
	HTTPAddress     string        `yaml:"httpAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	JSON       bool   `yaml:"json"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
}

// ProbeConfig controls ICMP probing.
type ProbeConfig struct {
	Count               int           `yaml:"count"`
	Timeout             time.Duration `yaml:"timeout"`
	Privileged          bool          `yaml:"privileged"`
	MaxConcurrentProbes int           `yaml:"max_concurrent_probes"`
}

// DetectionConfig holds the outage thresholding policy. Its keys live at the top level.
type DetectionConfig struct {
	LossThresholdPercent float64 `yaml:"loss_threshold_percent"`
	ConsecutiveTrigger   int     `yaml:"consecutive_trigger"`
	ResetOnAlert         *bool   `yaml:"reset_on_alert"`
}

// ResetAfterAlert reports the effective reset-after-fire policy (default true).
func (d DetectionConfig) ResetAfterAlert() bool {
	return d.ResetOnAlert == nil || *d.ResetOnAlert
}

// StorageConfig selects the sample log backend.
type StorageConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// ModelsConfig locates serialized per-target models.
type ModelsConfig struct {
	Dir        string `yaml:"dir"`
	Prefix     string `yaml:"prefix"`
	MinSamples int    `yaml:"min_samples"`
	Seed       int64  `yaml:"seed"`
	NumTrees   int    `yaml:"num_trees"`
}

// NotificationsConfig holds transport details for alert delivery.
type NotificationsConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
	Email   EmailConfig   `yaml:"email"`
}

// CredentialsConfig holds chat bot credentials.
type CredentialsConfig struct {
	Token  string `yaml:"token"`
	ChatID string `yaml:"chat_id"`
}

// EmailConfig configures the optional Brevo email channel.
type EmailConfig struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"api_key"`
	From    string `yaml:"from"`
	To      string `yaml:"to"`
}

// TickInterval returns the tick interval as a duration.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalSeconds) * time.Second
}

// TargetAddresses returns the configured addresses in order.
func (c *Config) TargetAddresses() []string {
	out := make([]string, 0, len(c.Targets))
	for _, t := range c.Targets {
		out = append(out, t.Address)
	}
	return out
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("PINGWATCH_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, utils.Wrap(err, utils.CodeConfigReadFailure, fmt.Sprintf("config file %s not found", path))
			}
			return nil, utils.Wrap(err, utils.CodeConfigReadFailure, "read config")
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, utils.Wrap(err, utils.CodeConfigParseFailure, "parse config")
		}
	}

	applyEnvOverrides(&cfg)
	normaliseTargets(&cfg)
	return &cfg, nil
}

// Parse builds a Config from raw YAML without touching the environment.
func Parse(data []byte) (*Config, error) {
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, utils.Wrap(err, utils.CodeConfigParseFailure, "parse config")
	}
	normaliseTargets(&cfg)
	return &cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := defaultConfig()
	return &cfg
}

func defaultConfig() Config {
	return Config{
		Targets: []models.Target{
			{Address: "8.8.8.8"},
			{Address: "1.1.1.1"},
		},
		TickIntervalSeconds: 10,
		Server: ServerConfig{
			GracefulTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", JSON: false, MaxSizeMB: 50, MaxBackups: 5, MaxAgeDays: 28},
		Probe: ProbeConfig{
			Count:               4,
			Timeout:             15 * time.Second,
			MaxConcurrentProbes: 1,
		},
		Detection: DetectionConfig{
			LossThresholdPercent: 50.0,
			ConsecutiveTrigger:   3,
		},
		Storage: StorageConfig{Backend: "csv", Path: "ping_data.csv"},
		Models: ModelsConfig{
			Dir:        ".",
			Prefix:     "iforest_model",
			MinSamples: 50,
			Seed:       42,
			NumTrees:   100,
		},
		Notifications: NotificationsConfig{
			BaseURL: "https://api.telegram.org",
			Timeout: 10 * time.Second,
		},
	}
}

// normaliseTargets lets a bare address double as the display name.
func normaliseTargets(cfg *Config) {
	for i := range cfg.Targets {
		cfg.Targets[i].Address = strings.TrimSpace(cfg.Targets[i].Address)
		if cfg.Targets[i].Name == "" {
			cfg.Targets[i].Name = cfg.Targets[i].Address
		}
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PINGWATCH_TARGETS"); v != "" {
		cfg.Targets = cfg.Targets[:0]
		for _, addr := range strings.Split(v, ",") {
			if addr = strings.TrimSpace(addr); addr != "" {
				cfg.Targets = append(cfg.Targets, models.Target{Address: addr})
			}
		}
	}
	if v := os.Getenv("PINGWATCH_TICK_INTERVAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.TickIntervalSeconds = n
		}
	}
	if v := os.Getenv("PINGWATCH_LOSS_THRESHOLD_PERCENT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Detection.LossThresholdPercent = f
		}
	}
	if v := os.Getenv("PINGWATCH_CONSECUTIVE_TRIGGER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Detection.ConsecutiveTrigger = n
		}
	}
	if v := os.Getenv("PINGWATCH_GRPC_ADDRESS"); v != "" {
		cfg.Server.GRPCAddress = v
	}
	if v := os.Getenv("PINGWATCH_HTTP_ADDRESS"); v != "" {
		cfg.Server.HTTPAddress = v
	}
	if v := os.Getenv("PINGWATCH_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PINGWATCH_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("PINGWATCH_LOG_FILE"); v != "" {
		cfg.Logging.File = v
	}
	if v := os.Getenv("PINGWATCH_PROBE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Probe.Timeout = d
		}
	}
	if v := os.Getenv("PINGWATCH_PROBE_PRIVILEGED"); v != "" {
		cfg.Probe.Privileged = parseBool(v)
	}
	if v := os.Getenv("PINGWATCH_STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("PINGWATCH_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("PINGWATCH_MODELS_DIR"); v != "" {
		cfg.Models.Dir = v
	}
	if v := os.Getenv("PINGWATCH_NOTIFICATIONS_ENABLED"); v != "" {
		cfg.NotificationsEnabled = parseBool(v)
	}
	if v := os.Getenv("PINGWATCH_TELEGRAM_TOKEN"); v != "" {
		cfg.NotificationCredentials.Token = v
	}
	if v := os.Getenv("PINGWATCH_TELEGRAM_CHAT_ID"); v != "" {
		cfg.NotificationCredentials.ChatID = v
	}
	if v := os.Getenv("PINGWATCH_BREVO_API_KEY"); v != "" {
		cfg.Notifications.Email.APIKey = v
	}
}

func parseBool(v string) bool {
	return strings.EqualFold(v, "true") || v == "1"
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	problems := make([]string, 0)

	if len(c.Targets) == 0 {
		problems = append(problems, "at least one target must be configured")
	}
	seen := make(map[string]bool, len(c.Targets))
	for i, target := range c.Targets {
		if target.Address == "" {
			problems = append(problems, fmt.Sprintf("targets[%d].address cannot be empty", i))
			continue
		}
		if seen[target.Address] {
			problems = append(problems, fmt.Sprintf("duplicate target address: %s", target.Address))
		}
		seen[target.Address] = true
	}

	if c.TickIntervalSeconds <= 0 {
		problems = append(problems, "tick_interval_seconds must be greater than 0")
	}
	if c.Detection.LossThresholdPercent <= 0 || c.Detection.LossThresholdPercent > 100 {
		problems = append(problems, "loss_threshold_percent must be greater than 0 and at most 100")
	}
	if c.Detection.ConsecutiveTrigger < 1 {
		problems = append(problems, "consecutive_trigger must be at least 1")
	}
	if c.Probe.Count < 1 || c.Probe.Count > 10 {
		problems = append(problems, "probe.count must be between 1 and 10")
	}
	if c.Probe.Timeout <= 0 {
		problems = append(problems, "probe.timeout must be positive")
	}
	if c.Probe.MaxConcurrentProbes < 1 {
		problems = append(problems, "probe.max_concurrent_probes must be at least 1")
	}
	switch c.Storage.Backend {
	case "csv", "sqlite":
	default:
		problems = append(problems, fmt.Sprintf("storage.backend %q must be csv or sqlite", c.Storage.Backend))
	}
	if c.Storage.Path == "" {
		problems = append(problems, "storage.path cannot be empty")
	}
	if c.Models.MinSamples < 1 {
		problems = append(problems, "models.min_samples must be at least 1")
	}
	if c.Notifications.Email.Enabled {
		if c.Notifications.Email.APIKey == "" {
			problems = append(problems, "notifications.email.api_key is required when email is enabled")
		}
		if !strings.Contains(c.Notifications.Email.From, "@") || !strings.Contains(c.Notifications.Email.To, "@") {
			problems = append(problems, "notifications.email.from and .to must be email addresses")
		}
	}

	if len(problems) > 0 {
		return utils.New(utils.CodeConfigInvalidValue,
			fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(problems, "\n  - ")))
	}
	return nil
}
