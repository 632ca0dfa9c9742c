package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	brevo "github.com/getbrevo/brevo-go/lib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/pingwatch/internal/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var fixedTime = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func TestFormatOutageAlert(t *testing.T) {
	alert := OutageAlert(models.Target{Address: "8.8.8.8"}, 100, 3, 50, fixedTime)

	msg := Format(alert)
	assert.True(t, strings.HasPrefix(msg, "🚨 *[OUTAGE]* 🚨"), msg)
	assert.Contains(t, msg, "3 consecutive probe rounds with packet loss >= 50%")
	assert.Contains(t, msg, "*Target:* `8.8.8.8`")
	assert.Contains(t, msg, "*Current loss:* 100%")
	assert.Contains(t, msg, "*Time:* 2026-03-14 09:26:53")
	assert.False(t, strings.HasSuffix(msg, "\n"))
	assert.NotEmpty(t, alert.ID)
}

func TestFormatLatencyAlertCarriesReason(t *testing.T) {
	target := models.Target{Name: "dns", Address: "1.1.1.1"}
	alert := LatencyAlert(target, 250, "model detected anomalous RTT (250.00ms, score 0.571)", fixedTime)

	msg := Format(alert)
	assert.Contains(t, msg, "*[LATENCY ANOMALY]*")
	assert.Contains(t, msg, "model detected anomalous RTT (250.00ms")
	assert.Contains(t, msg, "`dns (1.1.1.1)`")
	assert.Contains(t, msg, "*RTT:* 250.00 ms")
}

func TestLifecycleAndFatalAlerts(t *testing.T) {
	start := StartupAlert([]models.Target{{Address: "8.8.8.8"}, {Address: "1.1.1.1"}}, fixedTime)
	assert.Equal(t, models.SeverityLifecycle, start.Severity)
	targets, ok := start.Field("Targets")
	require.True(t, ok)
	assert.Equal(t, "`8.8.8.8, 1.1.1.1`", targets)
	assert.NotContains(t, Format(start), "*Target:*")

	stop := ShutdownAlert(fixedTime)
	assert.Equal(t, models.SeverityLifecycle, stop.Severity)
	assert.NotEqual(t, start.ID, stop.ID)

	fatal := FatalAlert(errors.New("boom"), fixedTime)
	assert.Equal(t, models.SeverityFatal, fatal.Severity)
	assert.Contains(t, Format(fatal), "*Error:* `boom`")
	_, hasCode := fatal.Field("Code")
	assert.False(t, hasCode)
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "pingwatch OUTAGE: 8.8.8.8", Subject(models.Alert{Severity: models.SeverityOutage, Target: "8.8.8.8"}))
	assert.Equal(t, "pingwatch LIFECYCLE", Subject(models.Alert{Severity: models.SeverityLifecycle}))
}

func TestTelegramDispatchPostsForm(t *testing.T) {
	var got url.Values
	var path, method string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		method = r.Method
		_ = r.ParseForm()
		got = r.PostForm
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	d := NewTelegramDispatcher(TelegramConfig{
		BaseURL: srv.URL + "/",
		Token:   "123:abc",
		ChatID:  "-42",
		Timeout: time.Second,
	}, srv.Client(), discardLogger())

	alert := OutageAlert(models.Target{Address: "8.8.8.8"}, 100, 3, 50, fixedTime)
	require.True(t, d.Dispatch(context.Background(), alert))
	assert.Equal(t, http.MethodPost, method)
	assert.Equal(t, "/bot123:abc/sendMessage", path)
	assert.Equal(t, "-42", got.Get("chat_id"))
	assert.Equal(t, "Markdown", got.Get("parse_mode"))
	assert.Equal(t, Format(alert), got.Get("text"))
}

func TestTelegramDispatchNon2xxReturnsFalse(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "bad request: chat not found", http.StatusBadRequest)
	}))
	defer srv.Close()

	d := NewTelegramDispatcher(TelegramConfig{BaseURL: srv.URL, Token: "t", ChatID: "c"}, srv.Client(), discardLogger())
	assert.False(t, d.Dispatch(context.Background(), ShutdownAlert(fixedTime)))
	assert.Equal(t, 1, calls, "dispatch must not retry")
}

func TestTelegramDispatchTransportErrorReturnsFalse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	d := NewTelegramDispatcher(TelegramConfig{BaseURL: base, Token: "t", ChatID: "c", Timeout: time.Second}, nil, discardLogger())
	assert.False(t, d.Dispatch(context.Background(), ShutdownAlert(fixedTime)))
}

func TestTelegramPlaceholderCredentialsSkipSending(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	for _, cfg := range []TelegramConfig{
		{BaseURL: srv.URL, Token: PlaceholderToken, ChatID: "1"},
		{BaseURL: srv.URL, Token: "t", ChatID: PlaceholderChatID},
		{BaseURL: srv.URL},
	} {
		d := NewTelegramDispatcher(cfg, srv.Client(), discardLogger())
		assert.False(t, d.Configured())
		assert.False(t, d.Dispatch(context.Background(), ShutdownAlert(fixedTime)))
	}
	assert.Zero(t, calls)
}

type fakeEmailSender struct {
	sent []brevo.SendSmtpEmail
	err  error
}

func (f *fakeEmailSender) SendTransacEmail(_ context.Context, email brevo.SendSmtpEmail) (brevo.CreateSmtpEmail, *http.Response, error) {
	f.sent = append(f.sent, email)
	return brevo.CreateSmtpEmail{}, nil, f.err
}

func TestEmailDispatch(t *testing.T) {
	sender := &fakeEmailSender{}
	d := newEmailDispatcher(EmailConfig{From: "ops@example.com", To: "oncall@example.com"}, sender, discardLogger())

	alert := OutageAlert(models.Target{Address: "8.8.8.8"}, 100, 3, 50, fixedTime)
	require.True(t, d.Dispatch(context.Background(), alert))
	require.Len(t, sender.sent, 1)
	email := sender.sent[0]
	assert.Equal(t, "ops@example.com", email.Sender.Email)
	assert.Equal(t, "oncall@example.com", email.To[0].Email)
	assert.Equal(t, "pingwatch OUTAGE: 8.8.8.8", email.Subject)
	assert.Equal(t, Format(alert), email.TextContent)
	assert.True(t, strings.HasPrefix(email.HtmlContent, "<pre>"))

	sender.err = errors.New("401 unauthorized")
	assert.False(t, d.Dispatch(context.Background(), alert))
}

func TestFanoutSucceedsWhenAnyChannelDelivers(t *testing.T) {
	var order []string
	fail := DispatcherFunc(func(context.Context, models.Alert) bool {
		order = append(order, "fail")
		return false
	})
	ok := DispatcherFunc(func(context.Context, models.Alert) bool {
		order = append(order, "ok")
		return true
	})

	f := NewFanout(fail, nil, ok)
	assert.Equal(t, 2, f.Len())
	assert.True(t, f.Dispatch(context.Background(), ShutdownAlert(fixedTime)))
	assert.Equal(t, []string{"fail", "ok"}, order)

	assert.False(t, NewFanout(fail).Dispatch(context.Background(), ShutdownAlert(fixedTime)))
	assert.False(t, NewFanout().Dispatch(context.Background(), ShutdownAlert(fixedTime)))
}

func TestLogDispatcherAlwaysDelivers(t *testing.T) {
	var buf strings.Builder
	d := NewLogDispatcher(slog.New(slog.NewTextHandler(&buf, nil)))
	assert.True(t, d.Dispatch(context.Background(), ShutdownAlert(fixedTime)))
	assert.Contains(t, buf.String(), "notifications disabled")
}
