package core

import "time"

// Clock supplies the host's free-running microsecond counter
type Clock interface {
	Micros() uint64
}

// ClockFunc adapts a function to Clock
type ClockFunc func() uint64

// Micros implements Clock
func (f ClockFunc) Micros() uint64 { return f() }

// monotonicClock counts microseconds since it was created
type monotonicClock struct {
	boot time.Time
}

// NewMonotonicClock returns a Clock backed by the Go monotonic clock
func NewMonotonicClock() Clock {
	return &monotonicClock{boot: time.Now()}
}

func (c *monotonicClock) Micros() uint64 {
	return uint64(time.Since(c.boot) / time.Microsecond)
}

