package engine

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/miradorstack/pingwatch/internal/metrics"
	"github.com/miradorstack/pingwatch/internal/models"
	"github.com/miradorstack/pingwatch/internal/notify"
	"github.com/miradorstack/pingwatch/internal/probe"
	"github.com/miradorstack/pingwatch/internal/samples"
	"github.com/miradorstack/pingwatch/internal/utils"
)

// Classifier is the anomaly model lookup used for latency verdicts.
type Classifier interface {
	HasModel(target string) bool
	Classify(target string, rttMs float64, at time.Time) (bool, string)
}

// StatusObserver is notified with a target's status after each tick.
type StatusObserver interface {
	ObserveStatus(status models.TargetStatus)
}

// Config holds engine scheduling and detection settings.
type Config struct {
	Targets             []models.Target
	TickInterval        time.Duration
	MaxConcurrentProbes int
	Tracker             TrackerConfig
	// StatusWindow bounds the RTT history kept per target for percentiles.
	StatusWindow int
}

// TickResult describes what one tick did for one target.
type TickResult struct {
	Target     models.Target
	Sample     models.Sample
	Count      int
	Fired      bool
	Classified bool
	Anomalous  bool
	Reason     string
	Alert      *models.Alert
	Delivered  bool
	RecordErr  error
	// Cancelled is set when shutdown interrupted the probe; nothing was recorded.
	Cancelled bool
}

// Engine runs the probe, record, track, classify and alert cycle.
type Engine struct {
	cfg        Config
	logger     *slog.Logger
	prober     probe.Prober
	recorder   samples.Recorder
	classifier Classifier
	dispatcher notify.Dispatcher
	tracker    *FailureTracker
	status     map[string]*targetStatus
	now        func() time.Time

	obsMu     sync.RWMutex
	observers []StatusObserver
}

// New constructs an engine over the configured targets. Duplicate addresses
// are collapsed onto the first occurrence.
func New(
	cfg Config,
	prober probe.Prober,
	recorder samples.Recorder,
	classifier Classifier,
	dispatcher notify.Dispatcher,
	logger *slog.Logger,
) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 10 * time.Second
	}
	if cfg.MaxConcurrentProbes < 1 {
		cfg.MaxConcurrentProbes = 1
	}
	if cfg.Tracker == (TrackerConfig{}) {
		cfg.Tracker = DefaultTrackerConfig()
	}
	if dispatcher == nil {
		dispatcher = notify.NewLogDispatcher(logger)
	}

	targets := make([]models.Target, 0, len(cfg.Targets))
	addresses := make([]string, 0, len(cfg.Targets))
	status := make(map[string]*targetStatus, len(cfg.Targets))
	for _, t := range cfg.Targets {
		if _, dup := status[t.Address]; dup || t.Address == "" {
			continue
		}
		targets = append(targets, t)
		addresses = append(addresses, t.Address)
		status[t.Address] = newTargetStatus(t, cfg.StatusWindow)
	}
	cfg.Targets = targets

	return &Engine{
		cfg:        cfg,
		logger:     logger,
		prober:     prober,
		recorder:   recorder,
		classifier: classifier,
		dispatcher: dispatcher,
		tracker:    NewFailureTracker(addresses, cfg.Tracker),
		status:     status,
		now:        time.Now,
	}
}

// Targets returns the monitored targets in configured order.
func (e *Engine) Targets() []models.Target {
	out := make([]models.Target, len(e.cfg.Targets))
	copy(out, e.cfg.Targets)
	return out
}

// AddObserver registers obs for per-tick status updates.
func (e *Engine) AddObserver(obs StatusObserver) {
	if obs == nil {
		return
	}
	e.obsMu.Lock()
	e.observers = append(e.observers, obs)
	e.obsMu.Unlock()
}

// Run probes every target once per tick interval until ctx is cancelled. A
// panic escaping a tick is returned as a loop.fatal error.
func (e *Engine) Run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fatalFromPanic(r)
		}
	}()

	e.logger.Info("monitoring loop started",
		slog.Int("targets", len(e.cfg.Targets)),
		slog.Duration("interval", e.cfg.TickInterval),
		slog.Int("max_concurrent_probes", e.cfg.MaxConcurrentProbes),
	)

	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	for {
		if _, err := e.RunRound(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			e.logger.Info("monitoring loop stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// RunRound ticks every target once, at most MaxConcurrentProbes at a time.
// Results are returned in target order.
func (e *Engine) RunRound(ctx context.Context) ([]TickResult, error) {
	start := time.Now()
	results := make([]TickResult, len(e.cfg.Targets))

	var g errgroup.Group
	g.SetLimit(e.cfg.MaxConcurrentProbes)
	for i, target := range e.cfg.Targets {
		if ctx.Err() != nil {
			break
		}
		i, target := i, target
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fatalFromPanic(r)
				}
			}()
			results[i] = e.Tick(ctx, target)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}

	metrics.ObserveTick(time.Since(start))
	return results, nil
}

// Tick runs one probe cycle for target. Probe, persistence and dispatch
// failures are logged and never abort the tick. A probe interrupted by ctx
// cancellation is discarded without recording, tracking or alerting.
func (e *Engine) Tick(ctx context.Context, target models.Target) TickResult {
	logger := e.logger.With(slog.String("target", target.Address))
	at := e.now()
	result := TickResult{Target: target}

	outcome := e.prober.Probe(ctx, target.Address)
	if ctx.Err() != nil {
		logger.Debug("probe interrupted by shutdown, discarding round")
		result.Cancelled = true
		return result
	}
	if failure, ok := outcome.(probe.Failure); ok {
		logger.Warn("probe failed, recording worst case",
			utils.ErrAttr(utils.New(utils.CodeProbeFailure, failure.Reason, "target", target.Address)),
		)
	}
	sample := probe.ToSample(target.Address, at, outcome)
	result.Sample = sample
	metrics.ObserveProbe(target.Address, sample.RTTMs, sample.PacketLossPercent)

	logger.Debug("probe result",
		slog.Any("rtt_ms", sample.RTTMs),
		slog.Float64("packet_loss_percent", sample.PacketLossPercent),
	)

	if e.recorder != nil {
		if err := e.recorder.Append(ctx, sample); err != nil {
			result.RecordErr = utils.Wrap(err, utils.CodePersistenceFailure, "append sample", "target", target.Address)
			metrics.IncRecorderFailure()
			logger.Error("record sample", utils.ErrAttr(result.RecordErr))
		}
	}

	fired, count := e.tracker.Record(target.Address, sample.PacketLossPercent)
	result.Fired = fired
	result.Count = count
	metrics.SetConsecutiveLoss(target.Address, e.tracker.Count(target.Address))

	switch {
	case fired:
		alert := notify.OutageAlert(target, sample.PacketLossPercent, count, e.tracker.Config().LossThresholdPercent, at)
		result.Alert = &alert
		result.Delivered = e.Emit(ctx, alert)
	case sample.HasRTT() && !e.tracker.Exceeds(sample.PacketLossPercent) && e.classifier != nil:
		anomalous, reason := e.classifier.Classify(target.Address, sample.RTT(), at)
		result.Classified = true
		result.Anomalous = anomalous
		result.Reason = reason
		if e.classifier.HasModel(target.Address) {
			metrics.ObserveVerdict(target.Address, anomalous)
		}
		if anomalous {
			alert := notify.LatencyAlert(target, sample.RTT(), reason, at)
			result.Alert = &alert
			result.Delivered = e.Emit(ctx, alert)
		}
	}

	e.publish(result)
	return result
}

// Emit dispatches alert and records the delivery result.
func (e *Engine) Emit(ctx context.Context, alert models.Alert) bool {
	delivered := e.dispatcher.Dispatch(ctx, alert)
	metrics.ObserveAlert(string(alert.Severity), delivered)

	level := slog.LevelInfo
	if !delivered {
		level = slog.LevelWarn
	}
	e.logger.Log(ctx, level, "alert emitted",
		slog.String("alert_id", alert.ID),
		slog.String("severity", string(alert.Severity)),
		slog.String("target", alert.Target),
		slog.Bool("delivered", delivered),
	)
	return delivered
}

// Snapshot returns the current status of every target in configured order.
func (e *Engine) Snapshot() []models.TargetStatus {
	out := make([]models.TargetStatus, 0, len(e.cfg.Targets))
	for _, t := range e.cfg.Targets {
		out = append(out, e.statusOf(t.Address))
	}
	return out
}

// Status returns the status of a single target.
func (e *Engine) Status(address string) (models.TargetStatus, bool) {
	if _, ok := e.status[address]; !ok {
		return models.TargetStatus{}, false
	}
	return e.statusOf(address), true
}

func (e *Engine) statusOf(address string) models.TargetStatus {
	st := e.status[address].snapshot()
	st.ConsecutiveLoss = e.tracker.Count(address)
	if e.classifier != nil {
		st.ModelLoaded = e.classifier.HasModel(address)
	}
	return st
}

func (e *Engine) publish(result TickResult) {
	status, ok := e.status[result.Target.Address]
	if !ok {
		return
	}
	status.update(result, e.tracker.Exceeds(result.Sample.PacketLossPercent))

	e.obsMu.RLock()
	observers := e.observers
	e.obsMu.RUnlock()
	if len(observers) == 0 {
		return
	}
	st := e.statusOf(result.Target.Address)
	for _, obs := range observers {
		obs.ObserveStatus(st)
	}
}

func fatalFromPanic(r any) error {
	if err, ok := r.(error); ok {
		return utils.Wrap(err, utils.CodeLoopFatal, "monitoring loop panicked", "stack", string(debug.Stack()))
	}
	return utils.New(utils.CodeLoopFatal, fmt.Sprintf("monitoring loop panicked: %v", r), "stack", string(debug.Stack()))
}
