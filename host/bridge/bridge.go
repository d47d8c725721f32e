// Package bridge drives an I2C bus on a USB serial bridge MCU.
// Each Tx is one framed request answered by exactly one framed response.
package bridge

import (
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"tinygo.org/x/drivers"

	"edmpulser/host/serial"
	"edmpulser/protocol"
)

// DefaultTimeout bounds one bridge round trip
const DefaultTimeout = 20 * time.Millisecond

var (
	ErrNack        = errors.New("bridge: device did not acknowledge")
	ErrBusTimeout  = errors.New("bridge: i2c bus timeout")
	ErrBadResponse = errors.New("bridge: bad response")
)

// Bridge implements drivers.I2C over a serial link
type Bridge struct {
	tr      *protocol.HostTransport
	timeout time.Duration
	logger  *zap.Logger
}

var _ drivers.I2C = (*Bridge)(nil)

// New runs the bridge protocol over an open port. The Bridge owns port.
func New(port io.ReadWriteCloser, timeout time.Duration, logger *zap.Logger) *Bridge {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{
		tr:      protocol.NewHostTransport(port),
		timeout: timeout,
		logger:  logger,
	}
}

// Open connects to the bridge on a serial device
func Open(cfg *serial.Config, timeout time.Duration, logger *zap.Logger) (*Bridge, error) {
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, err
	}
	b := New(port, timeout, logger)
	b.logger.Info("bridge connected", zap.String("device", cfg.Device), zap.Int("baud", cfg.Baud))
	return b, nil
}

// Tx implements drivers.I2C
func (b *Bridge) Tx(addr uint16, w, r []byte) error {
	out := protocol.NewScratchOutput()
	protocol.TxRequest{Addr: addr, Write: w, ReadLen: len(r)}.Encode(out)
	if out.Overflow() {
		return fmt.Errorf("bridge: request for 0x%02x too long", addr)
	}

	payload, err := b.tr.Exchange(out.Result(), b.timeout)
	if err != nil {
		return err
	}
	resp, err := protocol.DecodeTxResponse(payload)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBadResponse, err)
	}

	switch resp.Status {
	case protocol.StatusOK:
	case protocol.StatusNack:
		return ErrNack
	case protocol.StatusTimeout:
		return ErrBusTimeout
	default:
		return fmt.Errorf("%w: status %d", ErrBadResponse, resp.Status)
	}
	if len(resp.Read) != len(r) {
		return fmt.Errorf("%w: read %d bytes, want %d", ErrBadResponse, len(resp.Read), len(r))
	}
	copy(r, resp.Read)
	return nil
}

// Close shuts down the link
func (b *Bridge) Close() error {
	if n := b.tr.BadFrames(); n > 0 {
		b.logger.Warn("bridge link dropped frames", zap.Uint32("bad", n), zap.Uint32("stale", b.tr.StaleFrames()))
	}
	return b.tr.Close()
}
