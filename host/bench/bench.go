// Package bench stands in for the motion-control firmware on a workstation:
// it owns the hook table, runs the realtime tick and prints the output stream.
package bench

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"edmpulser/core"
)

// StreamHost implements core.Host on top of a line-oriented writer
type StreamHost struct {
	mu      sync.Mutex
	w       io.Writer
	alarms  []core.Alarm
	motion  atomic.Bool
	clockHz uint32
	logger  *zap.Logger
}

var _ core.Host = (*StreamHost)(nil)

// NewStreamHost writes host output lines to w
func NewStreamHost(w io.Writer, clockHz uint32, logger *zap.Logger) *StreamHost {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamHost{w: w, clockHz: clockHz, logger: logger}
}

// MotionExecuting implements core.Host
func (h *StreamHost) MotionExecuting() bool { return h.motion.Load() }

// SetMotion marks coordinated motion as running or stopped
func (h *StreamHost) SetMotion(on bool) { h.motion.Store(on) }

// RaiseAlarm implements core.Host. The alarm is latched and reported on the stream.
func (h *StreamHost) RaiseAlarm(a core.Alarm) {
	h.logger.Error("alarm raised", zap.Stringer("alarm", a))
	h.mu.Lock()
	h.alarms = append(h.alarms, a)
	h.mu.Unlock()
	h.Write("ALARM:" + strconv.Itoa(int(a)))
}

// Alarms returns the alarms raised so far
func (h *StreamHost) Alarms() []core.Alarm {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]core.Alarm(nil), h.alarms...)
}

// Write implements core.Host
func (h *StreamHost) Write(line string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fmt.Fprintln(h.w, line)
}

// SamplingClockHz implements core.Host
func (h *StreamHost) SamplingClockHz() uint32 { return h.clockHz }

// Bench is the hook table plus the host it reports through
type Bench struct {
	Hooks *core.Hooks
	Host  *StreamHost

	state  atomic.Uint32
	logger *zap.Logger
}

// New returns a bench with an empty hook table
func New(host *StreamHost, logger *zap.Logger) *Bench {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bench{Hooks: &core.Hooks{}, Host: host, logger: logger}
}

// State returns the machine state word passed to hooks
func (b *Bench) State() core.SysState { return core.SysState(b.state.Load()) }

// AddRealtime chains fn onto the realtime hook, ahead of anything attached later
func (b *Bench) AddRealtime(fn func()) {
	prev := b.Hooks.OnExecuteRealtime
	b.Hooks.OnExecuteRealtime = func(s core.SysState) {
		if prev != nil {
			prev(s)
		}
		fn()
	}
}

// RunRealtime calls the realtime hook every tick until ctx is done
func (b *Bench) RunRealtime(ctx context.Context, tick time.Duration) error {
	t := time.NewTicker(tick)
	defer t.Stop()
	b.logger.Debug("realtime loop started", zap.Duration("tick", tick))
	for {
		select {
		case <-ctx.Done():
			b.logger.Debug("realtime loop stopped")
			return nil
		case <-t.C:
			if rt := b.Hooks.OnExecuteRealtime; rt != nil {
				rt(b.State())
			}
		}
	}
}

// ProbeCycle samples the probe slot every interval until it triggers or
// timeout passes, then fires the probe-completed hook. It reports whether
// contact was found.
func (b *Bench) ProbeCycle(ctx context.Context, timeout, interval time.Duration) (bool, error) {
	probe := b.Hooks.Probe
	if probe == nil {
		return false, fmt.Errorf("no probe registered")
	}
	probe.Configure(false, true)

	found := false
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	t := time.NewTicker(interval)
	defer t.Stop()

wait:
	for {
		if probe.GetState().Triggered {
			found = true
			break
		}
		select {
		case <-ctx.Done():
			break wait
		case <-deadline.C:
			break wait
		case <-t.C:
		}
	}

	probe.Configure(false, false)
	b.CompleteProbe(found)
	return found, ctx.Err()
}

// CompleteProbe fires the probe-completed hook
func (b *Bench) CompleteProbe(found bool) {
	if fn := b.Hooks.OnProbeCompleted; fn != nil {
		fn(found)
	}
}

// ReportOptions fires the options-report hook
func (b *Bench) ReportOptions(newopt bool) {
	if fn := b.Hooks.OnReportOptions; fn != nil {
		fn(newopt)
	}
}
