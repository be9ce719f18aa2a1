package connectivity

import (
	"context"
	"time"

	"fineprint-agent/internal/shared/telemetry"
)

// Pinger measures round-trip reachability of the cloud API.
type Pinger interface {
	Ping(ctx context.Context) (time.Duration, error)
}

// poorLatency is the round-trip time beyond which a reachable API is
// graded poor.
const poorLatency = 1500 * time.Millisecond

// Probe periodically pings the cloud API and feeds results into a monitor.
type Probe struct {
	monitor  *Monitor
	pinger   Pinger
	interval time.Duration
}

// NewProbe creates a probe. A non-positive interval disables Run.
func NewProbe(monitor *Monitor, pinger Pinger, interval time.Duration) *Probe {
	return &Probe{monitor: monitor, pinger: pinger, interval: interval}
}

// Check runs a single ping and updates the monitor.
func (p *Probe) Check(ctx context.Context) {
	latency, err := p.pinger.Ping(ctx)
	if err != nil {
		if p.monitor.Online() {
			telemetry.Warn("cloud api unreachable", map[string]any{"error": err.Error()})
		}
		p.monitor.ReportOffline()
		return
	}

	quality := QualityGood
	if latency > poorLatency {
		quality = QualityPoor
	}
	p.monitor.ReportOnline(quality)
}

// Run probes on the configured interval until the context is cancelled.
func (p *Probe) Run(ctx context.Context) {
	if p.interval <= 0 {
		return
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Check(ctx)
		}
	}
}
