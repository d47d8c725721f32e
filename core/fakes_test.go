package core

import (
	"errors"
	"sync"
)

var errNack = errors.New("nack")

type busWrite struct {
	Reg   uint8
	Value uint8
}

// fakeBus is a RegisterBus with a register file, a write journal and
// per-register failure injection.
type fakeBus struct {
	mu        sync.Mutex
	regs      [256]byte
	writes    []busWrite
	reads     int
	failWrite map[uint8]bool
	failRead  bool
	failNthW  int // fail the nth write (1-based), 0 disables
}

func newFakeBus() *fakeBus {
	return &fakeBus{failWrite: map[uint8]bool{}}
}

func (b *fakeBus) ReadRegisters(reg uint8, buf []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reads++
	if b.failRead {
		return errNack
	}
	for i := range buf {
		buf[i] = b.regs[int(reg)+i]
	}
	return nil
}

func (b *fakeBus) WriteRegister(reg uint8, value uint8) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writes = append(b.writes, busWrite{reg, value})
	if b.failWrite[reg] || (b.failNthW > 0 && len(b.writes) == b.failNthW) {
		return errNack
	}
	b.regs[reg] = value
	return nil
}

func (b *fakeBus) setTelemetry(t Telemetry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t.Encode(b.regs[RegTelemetry : RegTelemetry+TelemetryLen])
}

func (b *fakeBus) journal() []busWrite {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]busWrite(nil), b.writes...)
}

func (b *fakeBus) resetJournal() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writes = nil
}

var errPinStuck = errors.New("pin stuck")

// fakeOut records gate levels. failOn and failOff make the matching
// transition fail with the line left where it was.
type fakeOut struct {
	on      bool
	set     []bool
	failOn  bool
	failOff bool
}

func (o *fakeOut) Set(on bool) error {
	if (on && o.failOn) || (!on && o.failOff) {
		return errPinStuck
	}
	o.on = on
	o.set = append(o.set, on)
	return nil
}

type fakeHost struct {
	motion bool
	alarms []Alarm
	lines  []string
}

func (h *fakeHost) MotionExecuting() bool { return h.motion }
func (h *fakeHost) RaiseAlarm(a Alarm) { h.alarms = append(h.alarms, a) }
func (h *fakeHost) Write(line string) { h.lines = append(h.lines, line) }
func (h *fakeHost) SamplingClockHz() uint32 { return 1000000 }

type fakeClock struct {
	now uint64
}

func (c *fakeClock) Micros() uint64 { return c.now }

func (c *fakeClock) advance(us uint64) { c.now += us }

type fixture struct {
	bus   *fakeBus
	out   *fakeOut
	host  *fakeHost
	clock *fakeClock
	p     *Pulser
}

func newFixture(cfg Config) *fixture {
	f := &fixture{
		bus:   newFakeBus(),
		out:   &fakeOut{},
		host:  &fakeHost{},
		clock: &fakeClock{now: 10000},
	}
	f.p = New(f.bus, f.out, f.host, f.clock, cfg)
	return f
}

// newReadyFixture returns an initialized driver with an empty write journal
func newReadyFixture(cfg Config) *fixture {
	f := newFixture(cfg)
	if err := f.p.Init(); err != nil {
		panic(err)
	}
	f.bus.resetJournal()
	f.out.set = nil
	return f
}

// poll advances the clock one interval and runs a tick
func (f *fixture) poll() {
	f.clock.advance(f.p.Config().PollInterval)
	f.p.Poller().Tick()
}
