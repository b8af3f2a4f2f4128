package liveness

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// Compile-time interface guard.
var _ Prober = (*CommandProber)(nil)

// CommandRunner runs an external command and returns its combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// CommandProber probes by running the platform ping utility with a
// single packet and parsing the round trip from its output.
type CommandProber struct {
	run  CommandRunner
	goos string
}

// NewCommandProber creates a prober that shells out to ping. A nil runner
// uses os/exec.
func NewCommandProber(run CommandRunner) *CommandProber {
	if run == nil {
		run = execRunner
	}
	return &CommandProber{run: run, goos: runtime.GOOS}
}

// Probe runs one ping against address bounded by timeout.
func (p *CommandProber) Probe(ctx context.Context, address string, timeout time.Duration) Outcome {
	start := time.Now()
	if address == "" || strings.HasPrefix(address, "-") {
		return UnreachableOutcome(address, fmt.Sprintf("invalid address %q", address), 0, start.UTC())
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := p.run(ctx, "ping", pingArgs(p.goos, address, timeout)...)
	elapsed := time.Since(start)
	if err != nil {
		detail := err.Error()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			detail = fmt.Sprintf("timeout after %s", timeout)
		}
		return UnreachableOutcome(address, detail, elapsed, start.UTC())
	}

	if ms, ok := ParseLatency(string(out)); ok {
		return ReachableOutcome(address, ms, false, elapsed, start.UTC())
	}
	return ReachableOutcome(address, durationMs(elapsed), true, elapsed, start.UTC())
}

// pingArgs builds single-packet ping arguments. Windows, macOS and FreeBSD
// take the reply wait in milliseconds; other platforms take whole seconds.
func pingArgs(goos, address string, timeout time.Duration) []string {
	ms := strconv.FormatInt(max(timeout.Milliseconds(), 1), 10)
	switch goos {
	case "windows":
		return []string{"-n", "1", "-w", ms, address}
	case "darwin", "freebsd":
		return []string{"-c", "1", "-W", ms, address}
	}
	secs := max(int64(math.Ceil(timeout.Seconds())), 1)
	return []string{"-c", "1", "-W", strconv.FormatInt(secs, 10), address}
}
