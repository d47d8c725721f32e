package core

import "strconv"

// Status is the result code handed back to the host command parser.
// It is comparable and implements error so validation can return it directly.
type Status uint8

const (
	StatusOK               Status = 0
	StatusBadNumberFormat  Status = 2
	StatusUnsupported      Status = 20
	StatusValueWordMissing Status = 28
	StatusSelfTestFailed   Status = 49
	StatusValueOutOfRange  Status = 67
	StatusUnhandled        Status = 84
)

func (s Status) Error() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusBadNumberFormat:
		return "bad number format"
	case StatusUnsupported:
		return "unsupported command"
	case StatusValueWordMissing:
		return "value word missing"
	case StatusSelfTestFailed:
		return "self test failed"
	case StatusValueOutOfRange:
		return "value out of range"
	case StatusUnhandled:
		return "unhandled"
	default:
		return "status " + strconv.Itoa(int(s))
	}
}

// Alarm is raised through the host when the driver cannot guarantee a safe state
type Alarm uint8

const (
	// AlarmSelfTestFailed is raised when a gate/polarity sequence fails
	AlarmSelfTestFailed Alarm = 14
)

func (a Alarm) String() string {
	switch a {
	case AlarmSelfTestFailed:
		return "self test failed"
	default:
		return "alarm " + strconv.Itoa(int(a))
	}
}

// InitStatus is the latched result of Pulser.Init.
// Negative is unknown, zero is ready, positive is the Status that failed init.
type InitStatus int32

const (
	InitUnknown InitStatus = -1
	InitReady   InitStatus = 0
)

// InitFault returns the InitStatus for a failed init
func InitFault(s Status) InitStatus {
	if s == StatusOK {
		s = StatusSelfTestFailed
	}
	return InitStatus(s)
}

// Ready reports whether init completed
func (s InitStatus) Ready() bool { return s == InitReady }

// Fault returns the failure code, if any
func (s InitStatus) Fault() (Status, bool) {
	if s <= 0 {
		return StatusOK, false
	}
	return Status(s), true
}

func (s InitStatus) String() string {
	switch {
	case s == InitReady:
		return "ready"
	case s < 0:
		return "unknown"
	default:
		return "fault(" + Status(s).Error() + ")"
	}
}
