//go:build rp2040 || rp2350

package main

import (
	"errors"
	"machine"
)

var errUSBWrite = errors.New("usb write failed")

// InitUSB configures machine.Serial, which is USB CDC on the RP2040 and RP2350
func InitUSB() {
	_ = machine.Serial.Configure(machine.UARTConfig{})
}

// USBRead copies buffered USB bytes into buf and returns the count
func USBRead(buf []byte) int {
	n := 0
	for n < len(buf) && machine.Serial.Buffered() > 0 {
		b, err := machine.Serial.ReadByte()
		if err != nil {
			break
		}
		buf[n] = b
		n++
	}
	return n
}

// USBWriteBytes writes multiple bytes to USB
func USBWriteBytes(data []byte) (int, error) {
	return machine.Serial.Write(data)
}
