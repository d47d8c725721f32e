// Gate and polarity control
// The gate line enables the discharge output stage; the polarity register
// selects which electrode is driven negative. Together they decide whether the
// discharge is physically live.
package core

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Energize parameter limits
const (
	MinPulseDurationUS = 100
	MaxPulseDurationUS = 1000
	MaxCurrentDeciAmp  = 200
	MinDutyPercent     = 1
	MaxDutyPercent     = 95
)

// ErrActuation is wrapped by every failed energize/de-energize sequence
var ErrActuation = errors.New("actuation failed")

// EnergizeParams are the settings for one energize sequence
type EnergizeParams struct {
	ToolNegative    bool
	PulseDurationUS uint16 // 100-1000
	CurrentDeciAmp  uint8  // 0-200, 0 drives the minimum of 1
	DutyPercent     uint8  // 1-95
}

// Validate checks every field against its range
func (p EnergizeParams) Validate() error {
	if p.PulseDurationUS < MinPulseDurationUS || p.PulseDurationUS > MaxPulseDurationUS {
		return StatusValueOutOfRange
	}
	if p.CurrentDeciAmp > MaxCurrentDeciAmp {
		return StatusValueOutOfRange
	}
	if p.DutyPercent < MinDutyPercent || p.DutyPercent > MaxDutyPercent {
		return StatusValueOutOfRange
	}
	return nil
}

// Polarity returns the polarity register code for p
func (p EnergizeParams) Polarity() Polarity {
	if p.ToolNegative {
		return PolarityToolNegative
	}
	return PolarityToolPositive
}

// registerWrite is one step of a write sequence
type registerWrite struct {
	reg   uint8
	value uint8
}

// Gate owns the gate output and the four settable registers.
// Only the command context calls into it.
type Gate struct {
	bus    RegisterBus
	out    DigitalOutput
	state  *State
	host   Host
	logger *zap.Logger
}

func newGate(bus RegisterBus, out DigitalOutput, state *State, host Host, logger *zap.Logger) *Gate {
	return &Gate{bus: bus, out: out, state: state, host: host, logger: logger}
}

// Energize programs the pulser and enables the gate.
// The writes are all-or-nothing: the first failure aborts the sequence, forces
// the gate off and raises AlarmSelfTestFailed. A gate line that cannot be
// driven is an actuation failure too.
func (g *Gate) Energize(p EnergizeParams) error {
	if !g.state.InitStatus().Ready() {
		return StatusSelfTestFailed
	}
	if err := p.Validate(); err != nil {
		return err
	}

	current := p.CurrentDeciAmp
	if current == 0 {
		current = 1
	}
	seq := []registerWrite{
		{RegCurrent, current},
		{RegDuration, uint8(p.PulseDurationUS / 10)},
		{RegMaxDuty, p.DutyPercent},
		{RegPolarity, uint8(p.Polarity())},
	}
	if err := g.apply(seq); err != nil {
		err = errors.Join(err, g.forceOff())
		g.fail("energize", err)
		return fmt.Errorf("energize: %w", err)
	}

	if err := g.out.Set(true); err != nil {
		err = errors.Join(fmt.Errorf("%w: enable gate: %w", ErrActuation, err), g.forceOff())
		g.fail("energize", err)
		return fmt.Errorf("energize: %w", err)
	}
	g.state.gateOn.Store(true)
	g.logger.Info("pulser energized",
		zap.Stringer("polarity", p.Polarity()),
		zap.Uint16("duration_us", p.PulseDurationUS),
		zap.Uint8("current_da", current),
		zap.Uint8("duty_pct", p.DutyPercent))
	return nil
}

// Deenergize disables the gate, then sets polarity off. Polarity is written
// even when the gate line fails.
// Safe to call at any time, including when already off.
func (g *Gate) Deenergize() error {
	offErr := g.forceOff()
	writeErr := g.apply([]registerWrite{{RegPolarity, uint8(PolarityOff)}})
	if err := errors.Join(offErr, writeErr); err != nil {
		g.fail("deenergize", err)
		return fmt.Errorf("deenergize: %w", err)
	}
	g.logger.Debug("pulser de-energized")
	return nil
}

// apply runs writes in order and stops at the first failure
func (g *Gate) apply(seq []registerWrite) error {
	for _, w := range seq {
		if err := g.bus.WriteRegister(w.reg, w.value); err != nil {
			return fmt.Errorf("%w: register 0x%02x: %w", ErrActuation, w.reg, err)
		}
	}
	return nil
}

// forceOff drives the gate low. gateOn is only cleared once the line is known
// to be low.
func (g *Gate) forceOff() error {
	if err := g.out.Set(false); err != nil {
		return fmt.Errorf("%w: disable gate: %w", ErrActuation, err)
	}
	g.state.gateOn.Store(false)
	return nil
}

func (g *Gate) fail(op string, err error) {
	g.logger.Error("pulser actuation failed",
		zap.String("op", op), zap.Error(err))
	g.host.RaiseAlarm(AlarmSelfTestFailed)
}
