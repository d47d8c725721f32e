// EDM pulser driver
// Pulser ties the register bus, gate output, telemetry poller, discharge log
// and command handler together and registers them with the host.
package core

import (
	"fmt"

	"go.uber.org/zap"
)

// PluginReport is written on the host's options report
const PluginReport = "[PLUGIN:EDM v0.2]"

// Config holds driver tunables. Zero values select the defaults.
type Config struct {
	PollInterval      uint64 // microseconds between telemetry reads
	LogCapacity       int    // samples kept by the discharge log
	DumpChunk         int    // samples per dump line
	RetractShortRatio uint8  // short ratio above which retract is requested
}

func (c *Config) applyDefaults() {
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.LogCapacity <= 0 {
		c.LogCapacity = DefaultLogCapacity
	}
	if c.DumpChunk <= 0 {
		c.DumpChunk = DefaultDumpChunk
	}
	if c.RetractShortRatio == 0 {
		c.RetractShortRatio = DefaultRetractShortRatio
	}
}

// Option configures a Pulser
type Option func(*Pulser)

// WithLogger sets the driver logger
func WithLogger(l *zap.Logger) Option {
	return func(p *Pulser) {
		if l != nil {
			p.logger = l
		}
	}
}

// Stats is a point-in-time view of the driver counters and flags.
// Fields are loaded independently.
type Stats struct {
	Init      InitStatus
	Ticks     uint32
	Polls     uint32
	Sensing   bool
	Retract   bool
	GateOn    bool
	LogActive bool
	LogDepth  int
}

// Pulser is the driver instance
type Pulser struct {
	bus    RegisterBus
	out    DigitalOutput
	host   Host
	cfg    Config
	logger *zap.Logger

	state  *State
	log    *Log
	gate   *Gate
	poller *Poller
	probe  *Probe
}

// New builds a driver. Call Init, then Attach.
func New(bus RegisterBus, out DigitalOutput, host Host, clock Clock, cfg Config, opts ...Option) *Pulser {
	cfg.applyDefaults()
	p := &Pulser{
		bus:    bus,
		out:    out,
		host:   host,
		cfg:    cfg,
		logger: zap.NewNop(),
		state:  newState(),
		log:    NewLog(cfg.LogCapacity),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.gate = newGate(bus, out, p.state, host, p.logger.Named("gate"))
	p.poller = newPoller(bus, p.log, p.state, host, clock, cfg, p.logger.Named("poll"))
	p.probe = &Probe{state: p.state}
	return p
}

// Init puts the pulser in a known safe state and latches the result.
// A failed init blocks every energize and de-energize command.
func (p *Pulser) Init() error {
	p.log.Init()
	if err := p.out.Set(false); err != nil {
		return p.initFailed(fmt.Errorf("gate off: %w", err))
	}
	p.state.gateOn.Store(false)

	if err := p.bus.WriteRegister(RegPolarity, uint8(PolarityOff)); err != nil {
		return p.initFailed(fmt.Errorf("set polarity off: %w", err))
	}
	var temp [1]byte
	if err := p.bus.ReadRegisters(RegTemperature, temp[:]); err != nil {
		return p.initFailed(fmt.Errorf("read temperature: %w", err))
	}

	p.state.initStatus.Store(int32(InitReady))
	p.logger.Info("pulser ready", zap.Uint8("temperature", temp[0]))
	return nil
}

func (p *Pulser) initFailed(err error) error {
	p.state.initStatus.Store(int32(InitFault(StatusSelfTestFailed)))
	p.logger.Error("pulser init failed", zap.Error(err))
	return fmt.Errorf("pulser init: %w", err)
}

// Attach registers the driver with the host. Every chained hook calls the
// handler that was installed before it.
func (p *Pulser) Attach(h *Hooks) {
	prevRealtime := h.OnExecuteRealtime
	h.OnExecuteRealtime = func(s SysState) {
		if prevRealtime != nil {
			prevRealtime(s)
		}
		p.poller.Tick()
	}

	prevReport := h.OnReportOptions
	h.OnReportOptions = func(newopt bool) {
		if prevReport != nil {
			prevReport(newopt)
		}
		if !newopt {
			p.host.Write(PluginReport)
		}
	}

	prevProbe := h.OnProbeCompleted
	h.OnProbeCompleted = func(found bool) {
		_ = p.gate.Deenergize()
		if prevProbe != nil {
			prevProbe(found)
		}
	}

	h.UserMCode = &mcodeHandler{p: p, next: h.UserMCode}
	h.Probe = p.probe
}

// writeStatus emits the status line and, if asked and the log is idle, a dump
func (p *Pulser) writeStatus(dump bool) {
	r := p.Report()
	p.host.Write(r.String())
	if dump && !p.log.Active() {
		DumpLines(p.log.Entries(), p.cfg.DumpChunk, p.host.Write)
	}
}

// Report reads the temperature and collects a StatusReport
func (p *Pulser) Report() StatusReport {
	var temp [1]byte
	err := p.bus.ReadRegisters(RegTemperature, temp[:])
	return StatusReport{
		Init:        p.state.InitStatus(),
		BusOK:       err == nil,
		Temperature: temp[0],
		Polls:       p.state.PollCount(),
		LogDepth:    p.log.Len(),
		ClockHz:     p.host.SamplingClockHz(),
	}
}

// Stats returns the driver counters
func (p *Pulser) Stats() Stats {
	return Stats{
		Init:      p.state.InitStatus(),
		Ticks:     p.state.TickCount(),
		Polls:     p.state.PollCount(),
		Sensing:   p.state.CurrentSensing(),
		Retract:   p.state.RetractRequested(),
		GateOn:    p.state.GateOn(),
		LogActive: p.log.Active(),
		LogDepth:  p.log.Len(),
	}
}

// Shutdown de-energizes the pulser
func (p *Pulser) Shutdown() error {
	return p.gate.Deenergize()
}

// State returns the shared driver state
func (p *Pulser) State() *State { return p.state }

// Log returns the discharge log
func (p *Pulser) Log() *Log { return p.log }

// Gate returns the gate controller
func (p *Pulser) Gate() *Gate { return p.gate }

// Poller returns the telemetry poller
func (p *Pulser) Poller() *Poller { return p.poller }

// Probe returns the probe adapter
func (p *Pulser) Probe() *Probe { return p.probe }

// Config returns the effective configuration
func (p *Pulser) Config() Config { return p.cfg }
