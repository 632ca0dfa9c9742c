package notify

import (
	"context"
	"log/slog"

	"github.com/miradorstack/pingwatch/internal/models"
)

// Dispatcher delivers an alert to one external channel. Implementations log
// their own failures and never retry.
type Dispatcher interface {
	Dispatch(ctx context.Context, alert models.Alert) bool
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, alert models.Alert) bool

// Dispatch calls f.
func (f DispatcherFunc) Dispatch(ctx context.Context, alert models.Alert) bool {
	return f(ctx, alert)
}

// LogDispatcher writes alerts to the local log. It is used when
// notifications are disabled.
type LogDispatcher struct {
	logger *slog.Logger
}

// NewLogDispatcher constructs a LogDispatcher.
func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogDispatcher{logger: logger}
}

// Dispatch logs the formatted alert and reports success.
func (d *LogDispatcher) Dispatch(_ context.Context, alert models.Alert) bool {
	d.logger.Info("alert (notifications disabled)",
		slog.String("alert_id", alert.ID),
		slog.String("severity", string(alert.Severity)),
		slog.String("target", alert.Target),
		slog.String("message", Format(alert)),
	)
	return true
}

// Fanout sends every alert to all channels. It reports success when at least
// one channel accepted the alert.
type Fanout struct {
	channels []Dispatcher
}

// NewFanout builds a Fanout over the non-nil channels.
func NewFanout(channels ...Dispatcher) *Fanout {
	f := &Fanout{}
	for _, ch := range channels {
		if ch != nil {
			f.channels = append(f.channels, ch)
		}
	}
	return f
}

// Dispatch delivers alert to every channel.
func (f *Fanout) Dispatch(ctx context.Context, alert models.Alert) bool {
	delivered := false
	for _, ch := range f.channels {
		if ch.Dispatch(ctx, alert) {
			delivered = true
		}
	}
	return delivered
}

// Len returns the number of channels.
func (f *Fanout) Len() int {
	return len(f.channels)
}
