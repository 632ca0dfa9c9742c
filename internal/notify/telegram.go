package notify

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/miradorstack/pingwatch/internal/models"
	"github.com/miradorstack/pingwatch/internal/utils"
)

const (
	// PlaceholderToken is the token value shipped in sample configs.
	PlaceholderToken = "YOUR_TELEGRAM_BOT_TOKEN"
	// PlaceholderChatID is the chat id value shipped in sample configs.
	PlaceholderChatID = "YOUR_TELEGRAM_CHAT_ID"

	defaultTelegramBaseURL = "https://api.telegram.org"
	maxErrorBody           = 512
)

// TelegramConfig describes the bot endpoint.
type TelegramConfig struct {
	BaseURL string
	Token   string
	ChatID  string
	Timeout time.Duration
}

// TelegramDispatcher posts alerts to the Telegram Bot API sendMessage method.
type TelegramDispatcher struct {
	cfg    TelegramConfig
	client *http.Client
	logger *slog.Logger
}

// NewTelegramDispatcher constructs a dispatcher. A nil client gets one bounded
// by cfg.Timeout.
func NewTelegramDispatcher(cfg TelegramConfig, client *http.Client, logger *slog.Logger) *TelegramDispatcher {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultTelegramBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TelegramDispatcher{cfg: cfg, client: client, logger: logger}
}

// Configured reports whether real credentials are present.
func (d *TelegramDispatcher) Configured() bool {
	token := strings.TrimSpace(d.cfg.Token)
	chatID := strings.TrimSpace(d.cfg.ChatID)
	return token != "" && chatID != "" && token != PlaceholderToken && chatID != PlaceholderChatID
}

// Dispatch sends the formatted alert. Any failure is logged and reported as false.
func (d *TelegramDispatcher) Dispatch(ctx context.Context, alert models.Alert) bool {
	logger := d.logger.With(
		slog.String("channel", "telegram"),
		slog.String("alert_id", alert.ID),
		slog.String("severity", string(alert.Severity)),
	)
	if !d.Configured() {
		logger.Warn("telegram credentials are not configured, skipping notification")
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	form := url.Values{}
	form.Set("chat_id", d.cfg.ChatID)
	form.Set("text", Format(alert))
	form.Set("parse_mode", "Markdown")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint(), strings.NewReader(form.Encode()))
	if err != nil {
		logger.Error("build telegram request", utils.ErrAttr(utils.Wrap(err, utils.CodeDispatchFailure, "build request")))
		return false
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := d.client.Do(req)
	if err != nil {
		logger.Error("send telegram alert", utils.ErrAttr(utils.Wrap(err, utils.CodeDispatchFailure, "telegram transport")))
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		err := utils.New(utils.CodeDispatchFailure, "telegram rejected alert",
			"status", resp.StatusCode,
			"body", strings.TrimSpace(string(body)),
		)
		logger.Error("send telegram alert", utils.ErrAttr(err))
		return false
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	logger.Info("alert sent to telegram")
	return true
}

func (d *TelegramDispatcher) endpoint() string {
	return d.cfg.BaseURL + "/bot" + d.cfg.Token + "/sendMessage"
}
