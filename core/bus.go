package core

import (
	"errors"
	"fmt"

	"tinygo.org/x/drivers"
)

// DefaultAddress is the 7-bit I2C address of the pulser
const DefaultAddress = 0x3B

// ErrTransfer is wrapped by every bus error returned from a RegisterBus
var ErrTransfer = errors.New("bus transfer failed")

// RegisterBus is the blocking register transport the driver is built on.
// Implementations enforce their own timeout and never retry; any error means
// the transfer failed and the contents of buf must not be used.
type RegisterBus interface {
	// ReadRegisters reads len(buf) consecutive registers starting at reg
	ReadRegisters(reg uint8, buf []byte) error

	// WriteRegister writes a single register
	WriteRegister(reg uint8, value uint8) error
}

// I2CBus implements RegisterBus on top of a TinyGo I2C bus.
// The bus must already be configured. Tx must perform the register write and
// the read as one repeated-start transaction.
type I2CBus struct {
	i2c  drivers.I2C
	addr uint16
}

// NewI2CBus binds a register bus to the device at addr (DefaultAddress if 0)
func NewI2CBus(i2c drivers.I2C, addr uint16) *I2CBus {
	if addr == 0 {
		addr = DefaultAddress
	}
	return &I2CBus{i2c: i2c, addr: addr}
}

// Address returns the 7-bit device address
func (b *I2CBus) Address() uint16 {
	return b.addr
}

// ReadRegisters implements RegisterBus
func (b *I2CBus) ReadRegisters(reg uint8, buf []byte) error {
	// No shared scratch: poll and command contexts both call in here.
	w := [1]byte{reg}
	if err := b.i2c.Tx(b.addr, w[:], buf); err != nil {
		return fmt.Errorf("%w: read 0x%02x+%d: %w", ErrTransfer, reg, len(buf), err)
	}
	return nil
}

// WriteRegister implements RegisterBus
func (b *I2CBus) WriteRegister(reg uint8, value uint8) error {
	w := [2]byte{reg, value}
	if err := b.i2c.Tx(b.addr, w[:], nil); err != nil {
		return fmt.Errorf("%w: write 0x%02x: %w", ErrTransfer, reg, err)
	}
	return nil
}
