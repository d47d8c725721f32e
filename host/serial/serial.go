// Package serial opens the USB serial link to the I2C bridge
package serial

import (
	"io"
	"time"
)

// Port is an open serial link
type Port interface {
	io.ReadWriteCloser

	// Flush discards unread input and unsent output
	Flush() error
}

// Config holds serial port settings
type Config struct {
	// Device path (e.g. "/dev/ttyACM0", "COM3")
	Device string

	// Baud rate; USB CDC bridges ignore it
	Baud int

	// ReadTimeout bounds each Read so the reader can notice shutdown
	ReadTimeout time.Duration
}

// DefaultConfig returns the settings used by the bridge firmware
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        250000,
		ReadTimeout: 50 * time.Millisecond,
	}
}
