// Pulser register map
// The pulser exposes its settings and discharge telemetry as single-byte registers
package core

// Register addresses
const (
	RegPolarity    uint8 = 0x01 // Polarity code (see Polarity)
	RegCurrent     uint8 = 0x02 // Pulse current in deci-amps (0-200)
	RegTemperature uint8 = 0x03 // Raw heatsink temperature
	RegDuration    uint8 = 0x04 // Pulse duration in 10us units
	RegMaxDuty     uint8 = 0x05 // Maximum duty in percent (1-95)
	RegTelemetry   uint8 = 0x10 // First register of the telemetry block
)

// TelemetryLen is the size of the block read at RegTelemetry:
// [pulse count, reserved, reserved, pulse ratio, short ratio, open ratio]
const TelemetryLen = 6

// Polarity is the value written to RegPolarity
type Polarity uint8

const (
	PolarityOff          Polarity = 0
	PolarityToolPositive Polarity = 1
	PolarityToolNegative Polarity = 2
)

func (p Polarity) String() string {
	switch p {
	case PolarityOff:
		return "off"
	case PolarityToolPositive:
		return "tool-positive"
	case PolarityToolNegative:
		return "tool-negative"
	default:
		return "invalid"
	}
}

// Telemetry is one decoded read of the telemetry block
type Telemetry struct {
	PulseCount uint8 // Cumulative pulse counter, wraps at 256
	PulseRatio uint8 // Fraction of cycles with a normal discharge (0-255)
	ShortRatio uint8 // Fraction of cycles with a short circuit (0-255)
	OpenRatio  uint8 // Fraction of cycles with no discharge (0-255)
}

// DecodeTelemetry decodes a TelemetryLen byte block
func DecodeTelemetry(b []byte) Telemetry {
	_ = b[TelemetryLen-1]
	return Telemetry{
		PulseCount: b[0],
		PulseRatio: b[3],
		ShortRatio: b[4],
		OpenRatio:  b[5],
	}
}

// Encode writes t into a TelemetryLen byte block. Reserved bytes are zeroed.
func (t Telemetry) Encode(b []byte) {
	_ = b[TelemetryLen-1]
	b[0] = t.PulseCount
	b[1] = 0
	b[2] = 0
	b[3] = t.PulseRatio
	b[4] = t.ShortRatio
	b[5] = t.OpenRatio
}

// Sensing reports whether discharge current is flowing
func (t Telemetry) Sensing() bool {
	return t.PulseRatio > 0 || t.ShortRatio > 0
}

// Snapshot is the full register file of the pulser
type Snapshot struct {
	Polarity       Polarity
	CurrentDeciAmp uint8
	Duration10us   uint8
	MaxDuty        uint8
	Temperature    uint8
	Telemetry      Telemetry
}
