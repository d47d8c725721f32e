package core

// SysState is the host's machine state word, passed through untouched
type SysState uint32

// Host is what the driver needs from the motion-control firmware
type Host interface {
	// MotionExecuting reports whether coordinated motion is in progress.
	// Called from the realtime context; must not block.
	MotionExecuting() bool

	// RaiseAlarm surfaces a fatal condition that needs operator attention
	RaiseAlarm(a Alarm)

	// Write sends one line to the host's output stream
	Write(line string)

	// SamplingClockHz is the frequency of the host's sampling (step) clock
	SamplingClockHz() uint32
}

// RealtimeFunc runs on every realtime tick
type RealtimeFunc func(state SysState)

// ReportFunc runs when the host prints its options report
type ReportFunc func(newopt bool)

// ProbeCompletedFunc runs when a probe cycle ends, with or without contact
type ProbeCompletedFunc func(found bool)

// Hooks is the host's registration table. Each chained hook is registered by
// saving the current value and installing a handler that calls the saved one,
// so co-resident plugins keep working. Probe is a capability slot and is
// replaced rather than chained.
type Hooks struct {
	OnExecuteRealtime RealtimeFunc
	OnReportOptions   ReportFunc
	OnProbeCompleted  ProbeCompletedFunc
	UserMCode         MCodeHandler
	Probe             ProbeHAL
}

// RunMCode drives a block through check, validate and execute the way the
// host parser does. It returns StatusUnhandled when no handler claims the code.
func RunMCode(h MCodeHandler, state SysState, b *Block) Status {
	if h == nil || h.Check(b.Code) == MCodeUnsupported {
		return StatusUnhandled
	}
	if st := h.Validate(b); st != StatusOK {
		return st
	}
	h.Execute(state, b)
	return StatusOK
}
