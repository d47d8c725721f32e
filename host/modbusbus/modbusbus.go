// Package modbusbus reaches the pulser through a Modbus gateway.
// Pulser register r is holding register Base+r; only the low byte of each
// holding register is significant.
package modbusbus

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goburrow/modbus"

	"edmpulser/core"
)

// Client is the part of modbus.Client the bus uses
type Client interface {
	ReadHoldingRegisters(address, quantity uint16) ([]byte, error)
	WriteSingleRegister(address, value uint16) ([]byte, error)
}

// Config selects the gateway
type Config struct {
	// Endpoint is a serial device for RTU or host:port for TCP
	Endpoint string
	UnitID   uint8
	Baud     int
	Timeout  time.Duration
	Base     uint16
}

// Bus implements core.RegisterBus over Modbus holding registers
type Bus struct {
	mu     sync.Mutex
	client Client
	base   uint16
	closer func() error
}

var _ core.RegisterBus = (*Bus)(nil)

// New wraps an existing client
func New(client Client, base uint16) *Bus {
	return &Bus{client: client, base: base, closer: func() error { return nil }}
}

// DialRTU opens a Modbus RTU link on a serial device
func DialRTU(cfg Config) (*Bus, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("modbusbus: endpoint required")
	}
	h := modbus.NewRTUClientHandler(cfg.Endpoint)
	h.BaudRate = cfg.Baud
	h.DataBits = 8
	h.Parity = "N"
	h.StopBits = 1
	h.SlaveId = cfg.UnitID
	h.Timeout = cfg.Timeout

	if err := h.Connect(); err != nil {
		return nil, fmt.Errorf("modbusbus: connect %s: %w", cfg.Endpoint, err)
	}
	b := New(modbus.NewClient(h), cfg.Base)
	b.closer = h.Close
	return b, nil
}

// DialTCP connects to a Modbus TCP gateway
func DialTCP(cfg Config) (*Bus, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("modbusbus: endpoint required")
	}
	if !strings.Contains(cfg.Endpoint, ":") {
		cfg.Endpoint += ":502"
	}
	h := modbus.NewTCPClientHandler(cfg.Endpoint)
	h.SlaveId = cfg.UnitID
	h.Timeout = cfg.Timeout

	if err := h.Connect(); err != nil {
		return nil, fmt.Errorf("modbusbus: connect %s: %w", cfg.Endpoint, err)
	}
	b := New(modbus.NewClient(h), cfg.Base)
	b.closer = h.Close
	return b, nil
}

// ReadRegisters implements core.RegisterBus
func (b *Bus) ReadRegisters(reg uint8, buf []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	res, err := b.client.ReadHoldingRegisters(b.base+uint16(reg), uint16(len(buf)))
	if err != nil {
		return fmt.Errorf("%w: read 0x%02x+%d: %w", core.ErrTransfer, reg, len(buf), err)
	}
	if len(res) != 2*len(buf) {
		return fmt.Errorf("%w: read 0x%02x+%d: got %d bytes", core.ErrTransfer, reg, len(buf), len(res))
	}
	for i := range buf {
		buf[i] = res[2*i+1]
	}
	return nil
}

// WriteRegister implements core.RegisterBus
func (b *Bus) WriteRegister(reg uint8, value uint8) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.client.WriteSingleRegister(b.base+uint16(reg), uint16(value)); err != nil {
		return fmt.Errorf("%w: write 0x%02x: %w", core.ErrTransfer, reg, err)
	}
	return nil
}

// Close releases the link
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closer()
}
