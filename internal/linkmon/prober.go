package linkmon

import (
	"context"
	"time"

	probing "github.com/prometheus-community/pro-bing"
	"go.uber.org/zap"
)

// Prober performs a single reachability check against a host. Any error
// or timeout reports false; failures are not distinguished from loss.
type Prober interface {
	Probe(ctx context.Context, host string) bool
}

// ProbeFunc adapts a function to the Prober interface.
type ProbeFunc func(ctx context.Context, host string) bool

func (f ProbeFunc) Probe(ctx context.Context, host string) bool { return f(ctx, host) }

// Compile-time interface guards.
var (
	_ Prober = (*ICMPProber)(nil)
	_ Prober = ProbeFunc(nil)
)

// ICMPProber sends one ICMP echo request per probe.
type ICMPProber struct {
	timeout    time.Duration
	privileged bool
	logger     *zap.Logger
}

// NewICMPProber creates a prober bounded by timeout. Privileged mode uses
// raw sockets and is required on Windows; unprivileged mode uses UDP ICMP
// sockets (Linux needs net.ipv4.ping_group_range to allow it).
func NewICMPProber(timeout time.Duration, privileged bool, logger *zap.Logger) *ICMPProber {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ICMPProber{timeout: timeout, privileged: privileged, logger: logger}
}

// Probe reports whether host answered one echo request within the timeout.
func (p *ICMPProber) Probe(ctx context.Context, host string) bool {
	pinger, err := probing.NewPinger(host)
	if err != nil {
		p.logger.Debug("failed to create pinger", zap.String("host", host), zap.Error(err))
		return false
	}

	pinger.Count = 1
	pinger.Timeout = p.timeout
	pinger.SetPrivileged(p.privileged)

	if err := pinger.RunWithContext(ctx); err != nil {
		p.logger.Debug("ping failed", zap.String("host", host), zap.Error(err))
		return false
	}
	return pinger.Statistics().PacketsRecv > 0
}

// EstimateLoss calls prober attempts times, pausing interval between
// calls, and returns the failed share as a percentage in [0, 100].
// Context cancellation stops sampling; samples never taken count as lost.
func EstimateLoss(ctx context.Context, prober Prober, host string, attempts int, interval time.Duration) float64 {
	if attempts <= 0 {
		attempts = 1
	}

	successes := 0
	for i := 0; i < attempts; i++ {
		if i > 0 && interval > 0 {
			t := time.NewTimer(interval)
			select {
			case <-ctx.Done():
				t.Stop()
				return lossPercent(successes, attempts)
			case <-t.C:
			}
		}
		if ctx.Err() != nil {
			break
		}
		if prober.Probe(ctx, host) {
			successes++
		}
	}
	return lossPercent(successes, attempts)
}

func lossPercent(successes, attempts int) float64 {
	return 100 * (1 - float64(successes)/float64(attempts))
}
