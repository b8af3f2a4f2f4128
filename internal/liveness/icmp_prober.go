package liveness

import (
	"context"
	"fmt"
	"runtime"
	"time"

	probing "github.com/prometheus-community/pro-bing"
	"go.uber.org/zap"
)

// Compile-time interface guard.
var _ Prober = (*ICMPProber)(nil)

// ICMPProber sends a single ICMP echo request per probe.
type ICMPProber struct {
	privileged bool
	logger     *zap.Logger
}

// NewICMPProber creates an ICMP prober. Raw sockets are always used on
// Windows; elsewhere privileged selects raw sockets over unprivileged UDP
// ping sockets.
func NewICMPProber(privileged bool, logger *zap.Logger) *ICMPProber {
	return &ICMPProber{
		privileged: privileged || runtime.GOOS == "windows",
		logger:     logger,
	}
}

// Probe pings address once and waits at most timeout for the reply.
func (p *ICMPProber) Probe(ctx context.Context, address string, timeout time.Duration) Outcome {
	start := time.Now()

	pinger, err := probing.NewPinger(address)
	if err != nil {
		return UnreachableOutcome(address, fmt.Sprintf("create pinger: %v", err), time.Since(start), start.UTC())
	}
	pinger.Count = 1
	pinger.Timeout = timeout
	pinger.SetPrivileged(p.privileged)

	var runErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		runErr = pinger.Run()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		pinger.Stop()
		<-done
		return UnreachableOutcome(address, ctx.Err().Error(), time.Since(start), start.UTC())
	}
	elapsed := time.Since(start)

	if runErr != nil {
		p.logger.Debug("ping failed", zap.String("address", address), zap.Error(runErr))
		return UnreachableOutcome(address, runErr.Error(), elapsed, start.UTC())
	}

	stats := pinger.Statistics()
	if stats.PacketsRecv == 0 {
		return UnreachableOutcome(address, fmt.Sprintf("no reply within %s", timeout), elapsed, start.UTC())
	}
	if stats.AvgRtt <= 0 {
		return ReachableOutcome(address, durationMs(elapsed), true, elapsed, start.UTC())
	}
	return ReachableOutcome(address, durationMs(stats.AvgRtt), false, elapsed, start.UTC())
}
