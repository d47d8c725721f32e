//go:build rp2040 || rp2350

// I2C bridge firmware. Framed transactions arrive on the USB serial link and
// run on I2C0 (SDA GP4, SCL GP5); the pulser gate stays on the host side.
package main

import (
	"machine"
	"time"

	"edmpulser/protocol"
)

const i2cFrequency = 400 * machine.KHz

var (
	responder *protocol.Responder

	// USB connection state
	usbWasDisconnected       bool
	consecutiveWriteFailures uint32
	panics                   uint32
)

func main() {
	// clear any watchdog state left from a previous reset
	if err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0}); err != nil {
		return
	}

	InitUSB()

	bus := machine.I2C0
	if err := bus.Configure(machine.I2CConfig{Frequency: i2cFrequency}); err != nil {
		blink(machine.LED)
	}
	responder = protocol.NewResponder(bus)

	var buf [protocol.FrameMax]byte
	for {
		func() {
			defer func() {
				if r := recover(); r != nil {
					panics++
					responder.Reset()
				}
			}()

			n := USBRead(buf[:])
			if n == 0 {
				return
			}
			if usbWasDisconnected {
				usbWasDisconnected = false
				consecutiveWriteFailures = 0
				responder.Reset()
			}
			if err := responder.Feed(buf[:n], writeUSB); err != nil {
				responder.Reset()
			}
		}()

		time.Sleep(100 * time.Microsecond)
	}
}

// writeUSB sends one response frame, marking the link down after repeated failures
func writeUSB(msg []byte) error {
	written := 0
	for written < len(msg) {
		n, err := USBWriteBytes(msg[written:])
		if err != nil || n == 0 {
			consecutiveWriteFailures++
			if consecutiveWriteFailures > 10 {
				usbWasDisconnected = true
				consecutiveWriteFailures = 0
			}
			return errUSBWrite
		}
		written += n
	}
	consecutiveWriteFailures = 0
	return nil
}

// blink signals a fatal setup error forever
func blink(led machine.Pin) {
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})
	for {
		led.High()
		time.Sleep(100 * time.Millisecond)
		led.Low()
		time.Sleep(100 * time.Millisecond)
	}
}
