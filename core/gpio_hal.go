package core

import "fmt"

// GPIOPin identifies a hardware GPIO pin number
type GPIOPin uint32

// GPIODriver is the abstract GPIO interface used for the gate enable line.
// Platform-specific implementations handle actual hardware control.
type GPIODriver interface {
	// ConfigureOutput configures a pin as a digital output
	ConfigureOutput(pin GPIOPin) error

	// SetPin sets the pin to high (true) or low (false)
	SetPin(pin GPIOPin, value bool) error
}

// DigitalOutput is a single output line (the pulser gate)
type DigitalOutput interface {
	Set(on bool) error
}

// PinOutput binds a GPIODriver pin as a DigitalOutput
type PinOutput struct {
	drv GPIODriver
	pin GPIOPin
}

// NewPinOutput configures pin as an output and drives it low
func NewPinOutput(drv GPIODriver, pin GPIOPin) (*PinOutput, error) {
	if err := drv.ConfigureOutput(pin); err != nil {
		return nil, fmt.Errorf("configure gate pin %d: %w", pin, err)
	}
	if err := drv.SetPin(pin, false); err != nil {
		return nil, fmt.Errorf("drive gate pin %d low: %w", pin, err)
	}
	return &PinOutput{drv: drv, pin: pin}, nil
}

// Set implements DigitalOutput
func (o *PinOutput) Set(on bool) error {
	if err := o.drv.SetPin(o.pin, on); err != nil {
		return fmt.Errorf("gate pin %d: %w", o.pin, err)
	}
	return nil
}

// Pin returns the bound pin
func (o *PinOutput) Pin() GPIOPin {
	return o.pin
}
