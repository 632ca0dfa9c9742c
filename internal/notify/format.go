package notify

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/miradorstack/pingwatch/internal/models"
	"github.com/miradorstack/pingwatch/internal/utils"
)

const timeLayout = "2006-01-02 15:04:05"

type severityTag struct {
	icon  string
	label string
}

var severityTags = map[models.Severity]severityTag{
	models.SeverityOutage:         {icon: "🚨", label: "OUTAGE"},
	models.SeverityLatencyAnomaly: {icon: "🟠", label: "LATENCY ANOMALY"},
	models.SeverityLifecycle:      {icon: "ℹ️", label: "LIFECYCLE"},
	models.SeverityFatal:          {icon: "🔥", label: "FATAL"},
}

// Format renders alert as a Telegram Markdown message.
func Format(alert models.Alert) string {
	tag, ok := severityTags[alert.Severity]
	if !ok {
		tag = severityTag{icon: "❔", label: strings.ToUpper(string(alert.Severity))}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s *[%s]* %s\n", tag.icon, tag.label, tag.icon)
	if alert.Summary != "" {
		b.WriteString("\n")
		b.WriteString(alert.Summary)
		b.WriteString("\n")
	}

	if alert.Target != "" || len(alert.Fields) > 0 || !alert.CreatedAt.IsZero() {
		b.WriteString("\n")
	}
	if alert.Target != "" {
		fmt.Fprintf(&b, "*Target:* `%s`\n", alert.Target)
	}
	for _, field := range alert.Fields {
		fmt.Fprintf(&b, "*%s:* %s\n", field.Name, field.Value)
	}
	if !alert.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "*Time:* %s\n", alert.CreatedAt.Format(timeLayout))
	}
	return strings.TrimRight(b.String(), "\n")
}

// Subject is a single-line title used by channels that carry one.
func Subject(alert models.Alert) string {
	tag, ok := severityTags[alert.Severity]
	label := strings.ToUpper(string(alert.Severity))
	if ok {
		label = tag.label
	}
	if alert.Target == "" {
		return fmt.Sprintf("pingwatch %s", label)
	}
	return fmt.Sprintf("pingwatch %s: %s", label, alert.Target)
}

// OutageAlert reports a run of loss-threshold-exceeding rounds.
func OutageAlert(target models.Target, lossPercent float64, count int, threshold float64, at time.Time) models.Alert {
	return models.Alert{
		ID:       uuid.NewString(),
		Severity: models.SeverityOutage,
		Target:   target.Label(),
		Summary:  fmt.Sprintf("%d consecutive probe rounds with packet loss >= %s%%", count, percent(threshold)),
		Fields: []models.AlertField{
			{Name: "Current loss", Value: percent(lossPercent) + "%"},
		},
		CreatedAt: at,
	}
}

// LatencyAlert reports an RTT the target's model rejected.
func LatencyAlert(target models.Target, rttMs float64, reason string, at time.Time) models.Alert {
	return models.Alert{
		ID:       uuid.NewString(),
		Severity: models.SeverityLatencyAnomaly,
		Target:   target.Label(),
		Summary:  reason,
		Fields: []models.AlertField{
			{Name: "RTT", Value: fmt.Sprintf("%.2f ms", rttMs)},
		},
		CreatedAt: at,
	}
}

// StartupAlert announces the monitored target set.
func StartupAlert(targets []models.Target, at time.Time) models.Alert {
	labels := make([]string, 0, len(targets))
	for _, t := range targets {
		labels = append(labels, t.Label())
	}
	return models.Alert{
		ID:       uuid.NewString(),
		Severity: models.SeverityLifecycle,
		Summary:  "pingwatch monitoring started",
		Fields: []models.AlertField{
			{Name: "Targets", Value: "`" + strings.Join(labels, ", ") + "`"},
		},
		CreatedAt: at,
	}
}

// ShutdownAlert announces an orderly stop.
func ShutdownAlert(at time.Time) models.Alert {
	return models.Alert{
		ID:        uuid.NewString(),
		Severity:  models.SeverityLifecycle,
		Summary:   "pingwatch monitoring stopped",
		CreatedAt: at,
	}
}

// FatalAlert reports the error that terminated the monitoring loop.
func FatalAlert(err error, at time.Time) models.Alert {
	detail := "unknown error"
	if err != nil {
		detail = err.Error()
	}
	fields := []models.AlertField{{Name: "Error", Value: "`" + detail + "`"}}
	if code := utils.CodeOf(err); code != "" {
		fields = append(fields, models.AlertField{Name: "Code", Value: string(code)})
	}
	return models.Alert{
		ID:        uuid.NewString(),
		Severity:  models.SeverityFatal,
		Summary:   "pingwatch monitoring loop terminated, check the host immediately",
		Fields:    fields,
		CreatedAt: at,
	}
}

func percent(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
