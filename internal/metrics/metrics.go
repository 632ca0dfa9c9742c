package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels probes that received at least one reply.
	OutcomeSuccess = "success"
	// OutcomeFailure labels probes that degraded to the worst-case sample.
	OutcomeFailure = "failure"
)

var (
	ticksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pingwatch",
			Name:      "ticks_total",
			Help:      "Total number of completed probe rounds.",
		},
	)

	tickDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "pingwatch",
			Name:      "tick_seconds",
			Help:      "Wall time of a full probe round in seconds.",
			Buckets:   []float64{0.5, 1, 2, 4, 8, 15, 30, 60},
		},
	)

	probesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pingwatch",
			Name:      "probes_total",
			Help:      "Probe rounds per target, partitioned by outcome.",
		},
		[]string{"target", "outcome"},
	)

	rttMilliseconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pingwatch",
			Name:      "rtt_milliseconds",
			Help:      "Average round-trip time per probe round.",
			Buckets:   []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
		},
		[]string{"target"},
	)

	packetLossPercent = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "pingwatch",
			Name:      "packet_loss_percent",
			Help:      "Packet loss observed on the most recent probe round.",
		},
		[]string{"target"},
	)

	consecutiveLoss = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "pingwatch",
			Name:      "consecutive_loss",
			Help:      "Current run of loss-threshold-exceeding rounds.",
		},
		[]string{"target"},
	)

	recorderFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pingwatch",
			Name:      "recorder_failures_total",
			Help:      "Samples that could not be appended to the sample log.",
		},
	)

	verdictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pingwatch",
			Name:      "classifications_total",
			Help:      "Anomaly classifier verdicts, partitioned by result.",
		},
		[]string{"target", "verdict"},
	)

	alertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pingwatch",
			Name:      "alerts_total",
			Help:      "Alerts emitted, partitioned by severity and delivery result.",
		},
		[]string{"severity", "delivered"},
	)

	modelsLoaded = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pingwatch",
			Name:      "models_loaded",
			Help:      "Number of targets with a loaded outlier model.",
		},
	)
)

// Register attaches pingwatch collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		ticksTotal,
		tickDurationSeconds,
		probesTotal,
		rttMilliseconds,
		packetLossPercent,
		consecutiveLoss,
		recorderFailuresTotal,
		verdictsTotal,
		alertsTotal,
		modelsLoaded,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveTick records a completed round.
func ObserveTick(duration time.Duration) {
	ticksTotal.Inc()
	if duration < 0 {
		duration = 0
	}
	tickDurationSeconds.Observe(duration.Seconds())
}

// ObserveProbe records the sample produced for target.
func ObserveProbe(target string, rttMs *float64, loss float64) {
	outcome := OutcomeFailure
	if rttMs != nil {
		outcome = OutcomeSuccess
		rttMilliseconds.WithLabelValues(target).Observe(*rttMs)
	}
	probesTotal.WithLabelValues(target, outcome).Inc()
	packetLossPercent.WithLabelValues(target).Set(loss)
}

// SetConsecutiveLoss publishes the tracker count for target.
func SetConsecutiveLoss(target string, count int) {
	consecutiveLoss.WithLabelValues(target).Set(float64(count))
}

// IncRecorderFailure counts a failed sample append.
func IncRecorderFailure() {
	recorderFailuresTotal.Inc()
}

// ObserveVerdict counts a classifier verdict.
func ObserveVerdict(target string, anomalous bool) {
	verdict := "normal"
	if anomalous {
		verdict = "anomalous"
	}
	verdictsTotal.WithLabelValues(target, verdict).Inc()
}

// ObserveAlert counts an alert by severity and delivery result.
func ObserveAlert(severity string, delivered bool) {
	label := "false"
	if delivered {
		label = "true"
	}
	alertsTotal.WithLabelValues(severity, label).Inc()
}

// SetModelsLoaded publishes how many targets have a model.
func SetModelsLoaded(n int) {
	modelsLoaded.Set(float64(n))
}
