package core

import "sync/atomic"

// State is the driver state shared between the realtime (poll/probe) context
// and the command context. No locks: every field has exactly one writer
// context and is read from the other one with an atomic load. Fields are read
// independently, never as a consistent snapshot.
type State struct {
	// Written by the command context
	initStatus atomic.Int32
	gateOn     atomic.Bool

	// Written by the realtime context
	currentSensing   atomic.Bool
	retractRequested atomic.Bool
	pollCount        atomic.Uint32
	tickCount        atomic.Uint32
	lastPoll         atomic.Uint64 // Clock.Micros of the last due tick

	// Private to the realtime context
	lastPulseCount uint8
}

func newState() *State {
	s := &State{}
	s.initStatus.Store(int32(InitUnknown))
	return s
}

// InitStatus returns the latched init result
func (s *State) InitStatus() InitStatus { return InitStatus(s.initStatus.Load()) }

// GateOn reports whether the gate output is enabled
func (s *State) GateOn() bool { return s.gateOn.Load() }

// CurrentSensing reports whether the last successful poll saw discharge current
func (s *State) CurrentSensing() bool { return s.currentSensing.Load() }

// RetractRequested reports whether a short circuit above threshold was seen.
// The driver sets it and never clears it; the host motion layer owns that.
func (s *State) RetractRequested() bool { return s.retractRequested.Load() }

// PollCount returns the number of due poll ticks
func (s *State) PollCount() uint32 { return s.pollCount.Load() }

// TickCount returns the number of realtime ticks, due or not
func (s *State) TickCount() uint32 { return s.tickCount.Load() }

// LastPoll returns the clock value of the last due poll tick
func (s *State) LastPoll() uint64 { return s.lastPoll.Load() }
