// Discharge quality log
// A fixed-capacity ring of telemetry samples appended from the realtime
// context and dumped from the command context while logging is off.
package core

import (
	"iter"
	"sync/atomic"
)

// DefaultLogCapacity is the number of samples kept when none is configured
const DefaultLogCapacity = 10000

// LogEntry status flags
const (
	StatusMotion uint8 = 1 << 0 // Host was executing coordinated motion
)

// LogEntry is one logged poll
type LogEntry struct {
	Flags           uint8
	OpenRatio       uint8
	ShortRatio      uint8
	PulseRatio      uint8
	PulseCountDelta uint8
}

// Motion reports whether the StatusMotion flag is set
func (e LogEntry) Motion() bool { return e.Flags&StatusMotion != 0 }

func (e LogEntry) pack() uint64 {
	return uint64(e.Flags) |
		uint64(e.OpenRatio)<<8 |
		uint64(e.ShortRatio)<<16 |
		uint64(e.PulseRatio)<<24 |
		uint64(e.PulseCountDelta)<<32
}

func unpackEntry(v uint64) LogEntry {
	return LogEntry{
		Flags:           uint8(v),
		OpenRatio:       uint8(v >> 8),
		ShortRatio:      uint8(v >> 16),
		PulseRatio:      uint8(v >> 24),
		PulseCountDelta: uint8(v >> 32),
	}
}

// Log is a circular buffer of LogEntry.
//
// Append is only called from the realtime context and is the only writer of
// the indices. Enabling the log from the command context does not touch the
// indices; it bumps a reset generation that the next Append consumes before
// it writes. Entries are packed into atomic words so a dump racing a final
// append never observes a torn sample.
type Log struct {
	slots []atomic.Uint64

	writeIdx atomic.Uint32
	valid    atomic.Uint32
	active   atomic.Bool

	resetGen   atomic.Uint32 // bumped by SetActive(true)
	appliedGen atomic.Uint32 // last generation consumed by Append
}

// NewLog allocates a log of the given capacity (DefaultLogCapacity if <= 0)
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultLogCapacity
	}
	return &Log{slots: make([]atomic.Uint64, capacity)}
}

// Init empties the log and disables it. Call before the realtime context starts.
func (l *Log) Init() {
	l.active.Store(false)
	l.writeIdx.Store(0)
	l.valid.Store(0)
	l.appliedGen.Store(l.resetGen.Load())
}

// SetActive enables or disables logging. Enabling always discards the
// existing history, even if the log was already enabled. Disabling keeps it.
func (l *Log) SetActive(enabled bool) {
	if enabled {
		l.resetGen.Add(1)
		l.active.Store(true)
		return
	}
	l.active.Store(false)
}

// Active reports whether samples are being appended
func (l *Log) Active() bool { return l.active.Load() }

// Capacity returns the number of slots
func (l *Log) Capacity() int { return len(l.slots) }

// Len returns the number of retained entries
func (l *Log) Len() int {
	if l.resetPending() {
		return 0
	}
	return int(l.valid.Load())
}

func (l *Log) resetPending() bool {
	return l.resetGen.Load() != l.appliedGen.Load()
}

// Append records e, overwriting the oldest entry when full.
// It is a no-op while the log is disabled.
func (l *Log) Append(e LogEntry) {
	if !l.active.Load() {
		return
	}
	if g := l.resetGen.Load(); g != l.appliedGen.Load() {
		l.writeIdx.Store(0)
		l.valid.Store(0)
		l.appliedGen.Store(g)
	}

	n := uint32(len(l.slots))
	w := l.writeIdx.Load()
	l.slots[w].Store(e.pack())
	if w++; w == n {
		w = 0
	}
	l.writeIdx.Store(w)
	if v := l.valid.Load(); v < n {
		l.valid.Store(v + 1)
	}
}

// Entries returns the retained entries oldest to newest. The sequence can be
// ranged over more than once and yields nothing while the log is active.
func (l *Log) Entries() iter.Seq[LogEntry] {
	return func(yield func(LogEntry) bool) {
		if l.active.Load() || l.resetPending() {
			return
		}
		n := uint32(len(l.slots))
		valid := l.valid.Load()
		start := (l.writeIdx.Load() + n - valid) % n
		for i := uint32(0); i < valid; i++ {
			if !yield(unpackEntry(l.slots[(start+i)%n].Load())) {
				return
			}
		}
	}
}
