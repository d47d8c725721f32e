package core

import "go.uber.org/zap"

// Default poll settings
const (
	DefaultPollInterval      = 1000 // microseconds
	DefaultRetractShortRatio = 127
)

// Poller samples pulser telemetry from the host's realtime loop.
// Tick must only be called from one goroutine.
type Poller struct {
	bus      RegisterBus
	log      *Log
	state    *State
	host     Host
	clock    Clock
	logger   *zap.Logger
	interval uint64
	retract  uint8

	failing bool // last due tick failed its read
}

func newPoller(bus RegisterBus, log *Log, state *State, host Host, clock Clock, cfg Config, logger *zap.Logger) *Poller {
	return &Poller{
		bus:      bus,
		log:      log,
		state:    state,
		host:     host,
		clock:    clock,
		logger:   logger,
		interval: cfg.PollInterval,
		retract:  cfg.RetractShortRatio,
	}
}

// Tick runs one realtime iteration. Ticks that arrive before the poll
// interval has elapsed return without touching the bus.
func (p *Poller) Tick() {
	p.state.tickCount.Add(1)

	now := p.clock.Micros()
	if now-p.state.lastPoll.Load() < p.interval {
		return
	}
	p.state.lastPoll.Store(now)
	p.state.pollCount.Add(1)

	var buf [TelemetryLen]byte
	if err := p.bus.ReadRegisters(RegTelemetry, buf[:]); err != nil {
		if !p.failing {
			p.failing = true
			p.logger.Debug("telemetry read failed", zap.Error(err))
		}
		return
	}
	if p.failing {
		p.failing = false
		p.logger.Debug("telemetry read recovered")
	}

	t := DecodeTelemetry(buf[:])
	p.state.currentSensing.Store(t.Sensing())
	if t.ShortRatio > p.retract {
		p.state.retractRequested.Store(true)
	}

	delta := t.PulseCount - p.state.lastPulseCount
	p.state.lastPulseCount = t.PulseCount

	if p.log.Active() {
		var flags uint8
		if p.host.MotionExecuting() {
			flags |= StatusMotion
		}
		p.log.Append(LogEntry{
			Flags:           flags,
			OpenRatio:       t.OpenRatio,
			ShortRatio:      t.ShortRatio,
			PulseRatio:      t.PulseRatio,
			PulseCountDelta: delta,
		})
	}
}
