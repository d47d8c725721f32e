// Package sim is an in-memory pulser for bench runs and tests.
// It answers register transactions through drivers.I2C and drives the gate
// line through core.GPIODriver.
package sim

import (
	"errors"
	"fmt"
	"sync"

	"tinygo.org/x/drivers"

	"edmpulser/core"
)

var (
	ErrNack     = errors.New("sim: address not acknowledged")
	ErrInjected = errors.New("sim: injected fault")
	ErrBadTx    = errors.New("sim: empty transaction")
)

// Write is one register write seen by the simulator
type Write struct {
	Reg   uint8
	Value uint8
}

// Pulser simulates the pulser's register file and gate input
type Pulser struct {
	mu sync.Mutex

	addr    uint16
	regs    [256]byte
	journal []Write

	failRegs map[uint8]bool
	offline  bool

	gatePin    core.GPIOPin
	configured bool
	gate       bool
}

var (
	_ drivers.I2C     = (*Pulser)(nil)
	_ core.GPIODriver = (*Pulser)(nil)
)

// New returns a simulator answering at addr (core.DefaultAddress if 0) with
// its gate input on gatePin
func New(addr uint16, gatePin core.GPIOPin) *Pulser {
	if addr == 0 {
		addr = core.DefaultAddress
	}
	p := &Pulser{addr: addr, gatePin: gatePin, failRegs: map[uint8]bool{}}
	p.regs[core.RegTemperature] = 25
	p.regs[core.RegTelemetry+5] = 255 // open gap
	return p
}

// Tx implements drivers.I2C. The first written byte selects the register;
// any further written bytes are stored from there, and r is filled from there.
func (p *Pulser) Tx(addr uint16, w, r []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.offline || addr != p.addr {
		return ErrNack
	}
	if len(w) == 0 {
		return ErrBadTx
	}
	reg := int(w[0])
	for i := 1; i < len(w); i++ {
		if err := p.check(reg + i - 1); err != nil {
			return err
		}
	}
	for i := range r {
		if err := p.check(reg + i); err != nil {
			return err
		}
	}

	for i, v := range w[1:] {
		p.regs[reg+i] = v
		p.journal = append(p.journal, Write{uint8(reg + i), v})
	}
	for i := range r {
		r[i] = p.regs[reg+i]
	}
	return nil
}

func (p *Pulser) check(reg int) error {
	if reg > 0xFF {
		return fmt.Errorf("%w: register 0x%x out of range", ErrInjected, reg)
	}
	if p.failRegs[uint8(reg)] {
		return fmt.Errorf("%w: register 0x%02x", ErrInjected, reg)
	}
	return nil
}

// ConfigureOutput implements core.GPIODriver
func (p *Pulser) ConfigureOutput(pin core.GPIOPin) error {
	if pin != p.gatePin {
		return fmt.Errorf("sim: pin %d is not the gate pin", pin)
	}
	p.mu.Lock()
	p.configured = true
	p.mu.Unlock()
	return nil
}

// SetPin implements core.GPIODriver
func (p *Pulser) SetPin(pin core.GPIOPin, value bool) error {
	if pin != p.gatePin {
		return fmt.Errorf("sim: pin %d is not the gate pin", pin)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.configured {
		return errors.New("sim: gate pin not configured")
	}
	p.gate = value
	return nil
}

// FailRegister makes every transaction touching reg fail
func (p *Pulser) FailRegister(reg uint8, fail bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failRegs[reg] = fail
}

// SetOffline makes the device stop answering its address
func (p *Pulser) SetOffline(offline bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.offline = offline
}

// SetTelemetry loads the telemetry block
func (p *Pulser) SetTelemetry(t core.Telemetry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t.Encode(p.regs[core.RegTelemetry : core.RegTelemetry+core.TelemetryLen])
}

// SetTemperature sets the raw temperature register
func (p *Pulser) SetTemperature(v uint8) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.regs[core.RegTemperature] = v
}

// Live reports whether the discharge is enabled: gate high and polarity set
func (p *Pulser) Live() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.live()
}

func (p *Pulser) live() bool {
	return p.gate && core.Polarity(p.regs[core.RegPolarity]) != core.PolarityOff
}

// Gate returns the gate input level
func (p *Pulser) Gate() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gate
}

// Step advances the discharge model by one poll period. While live, the
// pulse counter advances in proportion to the duty setting.
func (p *Pulser) Step() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.live() {
		return
	}
	p.regs[core.RegTelemetry] += 1 + p.regs[core.RegMaxDuty]/10
}

// Snapshot returns the register file
func (p *Pulser) Snapshot() core.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return core.Snapshot{
		Polarity:       core.Polarity(p.regs[core.RegPolarity]),
		CurrentDeciAmp: p.regs[core.RegCurrent],
		Duration10us:   p.regs[core.RegDuration],
		MaxDuty:        p.regs[core.RegMaxDuty],
		Temperature:    p.regs[core.RegTemperature],
		Telemetry:      core.DecodeTelemetry(p.regs[core.RegTelemetry : core.RegTelemetry+core.TelemetryLen]),
	}
}

// Writes returns the register writes seen so far
func (p *Pulser) Writes() []Write {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Write(nil), p.journal...)
}

// ResetWrites clears the write journal
func (p *Pulser) ResetWrites() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.journal = nil
}
