package probe

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-ping/ping"

	"github.com/miradorstack/pingwatch/internal/utils"
)

// Prober issues one probe round against a target.
type Prober interface {
	Probe(ctx context.Context, target string) Outcome
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context, target string) Outcome

// Probe implements Prober.
func (f ProberFunc) Probe(ctx context.Context, target string) Outcome {
	return f(ctx, target)
}

// ICMPConfig controls the echo requests sent per round.
type ICMPConfig struct {
	Count      int
	Timeout    time.Duration
	Privileged bool
}

// ICMPProber probes targets with ICMP echo requests.
type ICMPProber struct {
	cfg    ICMPConfig
	logger *slog.Logger
}

// NewICMPProber constructs an ICMPProber with sane defaults for zero values.
func NewICMPProber(cfg ICMPConfig, logger *slog.Logger) *ICMPProber {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Count <= 0 {
		cfg.Count = 4
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &ICMPProber{cfg: cfg, logger: logger}
}

// Probe sends Count echo requests bounded by Timeout. It never returns an error:
// anything that prevents a reply is reported as a Failure.
func (p *ICMPProber) Probe(ctx context.Context, target string) Outcome {
	pinger, err := ping.NewPinger(target)
	if err != nil {
		return p.fail(target, utils.Wrap(err, utils.CodeProbeFailure, "create pinger", "target", target))
	}

	pinger.Count = p.cfg.Count
	pinger.Timeout = p.cfg.Timeout
	pinger.SetPrivileged(p.cfg.Privileged)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			pinger.Stop()
		case <-done:
		}
	}()

	if err := pinger.Run(); err != nil {
		return p.fail(target, utils.Wrap(err, utils.CodeProbeFailure, "run pinger", "target", target))
	}

	stats := pinger.Statistics()
	if stats.PacketsRecv == 0 {
		if ctx.Err() != nil {
			return p.fail(target, utils.Wrap(ctx.Err(), utils.CodeProbeFailure, "probe cancelled", "target", target))
		}
		return Failure{Reason: fmt.Sprintf("no replies (%d sent)", stats.PacketsSent)}
	}

	return Success{
		RTTMs:       float64(stats.AvgRtt) / float64(time.Millisecond),
		LossPercent: lossPercent(stats.PacketsSent, stats.PacketsRecv),
	}
}

func (p *ICMPProber) fail(target string, err error) Failure {
	p.logger.Debug("probe failed", slog.String("target", target), utils.ErrAttr(err))
	return Failure{Reason: err.Error()}
}

func lossPercent(sent, recv int) float64 {
	if sent <= 0 {
		return WorstCaseLoss
	}
	if recv > sent {
		// Duplicate replies can push recv above sent.
		recv = sent
	}
	return 100 * float64(sent-recv) / float64(sent)
}
