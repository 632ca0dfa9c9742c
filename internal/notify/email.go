package notify

import (
	"context"
	"html"
	"log/slog"
	"net/http"

	brevo "github.com/getbrevo/brevo-go/lib"

	"github.com/miradorstack/pingwatch/internal/models"
	"github.com/miradorstack/pingwatch/internal/utils"
)

// EmailConfig describes the Brevo transactional email channel.
type EmailConfig struct {
	APIKey string
	From   string
	To     string
}

// emailSender is the subset of the Brevo client used here.
type emailSender interface {
	SendTransacEmail(ctx context.Context, email brevo.SendSmtpEmail) (brevo.CreateSmtpEmail, *http.Response, error)
}

// EmailDispatcher mails alerts through Brevo.
type EmailDispatcher struct {
	cfg    EmailConfig
	sender emailSender
	logger *slog.Logger
}

// NewEmailDispatcher builds a Brevo client from cfg.
func NewEmailDispatcher(cfg EmailConfig, logger *slog.Logger) *EmailDispatcher {
	bcfg := brevo.NewConfiguration()
	bcfg.AddDefaultHeader("api-key", cfg.APIKey)
	client := brevo.NewAPIClient(bcfg)
	return newEmailDispatcher(cfg, client.TransactionalEmailsApi, logger)
}

func newEmailDispatcher(cfg EmailConfig, sender emailSender, logger *slog.Logger) *EmailDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmailDispatcher{cfg: cfg, sender: sender, logger: logger}
}

// Dispatch sends alert as a plain-text email with a preformatted HTML copy.
func (d *EmailDispatcher) Dispatch(ctx context.Context, alert models.Alert) bool {
	body := Format(alert)
	email := brevo.SendSmtpEmail{
		Sender: &brevo.SendSmtpEmailSender{
			Name:  "pingwatch",
			Email: d.cfg.From,
		},
		To: []brevo.SendSmtpEmailTo{
			{Email: d.cfg.To},
		},
		Subject:     Subject(alert),
		HtmlContent: "<pre>" + html.EscapeString(body) + "</pre>",
		TextContent: body,
	}

	_, resp, err := d.sender.SendTransacEmail(ctx, email)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		d.logger.Error("send email alert",
			slog.String("channel", "email"),
			slog.String("alert_id", alert.ID),
			utils.ErrAttr(utils.Wrap(err, utils.CodeDispatchFailure, "brevo send")),
		)
		return false
	}

	d.logger.Info("alert sent by email",
		slog.String("channel", "email"),
		slog.String("alert_id", alert.ID),
		slog.String("to", d.cfg.To),
	)
	return true
}
