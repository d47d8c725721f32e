// M-code command dispatch
// Commands arrive from the host parser as a code plus value words and pass
// through check, validate and execute. Codes this driver does not own are
// handed to the handler that was registered before it.
package core

import (
	"math"

	"go.uber.org/zap"
)

// MCode is a host M-code number
type MCode uint16

const (
	MCodeReadStatus       MCode = 550 // P1 dumps the log
	MCodeSetLog           MCode = 551 // P0/P1
	MCodeEnergizeNegative MCode = 552 // D duration us, I current A, Q duty %
	MCodeEnergizePositive MCode = 553
	MCodeDeenergize       MCode = 554
)

// Energize defaults when a word is omitted
const (
	DefaultPulseDurationUS = 500
	DefaultCurrentAmps     = 1
	DefaultDutyPercent     = 25
)

// MCodeType is the result of the check phase
type MCodeType uint8

const (
	MCodeUnsupported MCodeType = iota
	MCodeNormal
)

// Block is one parsed command line: the M-code and its value words
type Block struct {
	Code  MCode
	Words map[byte]float64
}

// Has reports whether word w was given
func (b *Block) Has(w byte) bool {
	_, ok := b.Words[w]
	return ok
}

// Value returns word w
func (b *Block) Value(w byte) (float64, bool) {
	v, ok := b.Words[w]
	return v, ok
}

// MCodeHandler is the host's three-phase user M-code interface
type MCodeHandler interface {
	Check(code MCode) MCodeType
	Validate(b *Block) Status
	Execute(state SysState, b *Block)
}

// mcodeHandler serves the pulser M-codes and forwards everything else
type mcodeHandler struct {
	p    *Pulser
	next MCodeHandler
}

func owned(code MCode) bool {
	return code >= MCodeReadStatus && code <= MCodeDeenergize
}

func (h *mcodeHandler) Check(code MCode) MCodeType {
	if owned(code) {
		return MCodeNormal
	}
	if h.next != nil {
		return h.next.Check(code)
	}
	return MCodeUnsupported
}

func (h *mcodeHandler) Validate(b *Block) Status {
	switch b.Code {
	case MCodeReadStatus:
		if _, st := flagWord(b, 'P'); st != StatusOK && st != StatusValueWordMissing {
			return st
		}
		return StatusOK
	case MCodeSetLog:
		_, st := flagWord(b, 'P')
		return st
	case MCodeEnergizeNegative, MCodeEnergizePositive:
		if _, st := energizeParams(b); st != StatusOK {
			return st
		}
		return h.requireReady()
	case MCodeDeenergize:
		return h.requireReady()
	}
	if h.next != nil {
		return h.next.Validate(b)
	}
	return StatusUnhandled
}

func (h *mcodeHandler) Execute(state SysState, b *Block) {
	p := h.p
	switch b.Code {
	case MCodeReadStatus:
		dump, _ := flagWord(b, 'P')
		p.writeStatus(dump)
	case MCodeSetLog:
		on, _ := flagWord(b, 'P')
		p.log.SetActive(on)
		p.logger.Info("discharge log", zap.Bool("active", on))
	case MCodeEnergizeNegative, MCodeEnergizePositive:
		params, _ := energizeParams(b)
		_ = p.gate.Energize(params)
	case MCodeDeenergize:
		_ = p.gate.Deenergize()
	default:
		if h.next != nil {
			h.next.Execute(state, b)
		}
	}
}

func (h *mcodeHandler) requireReady() Status {
	if !h.p.state.InitStatus().Ready() {
		return StatusSelfTestFailed
	}
	return StatusOK
}

// flagWord reads a 0/1 word
func flagWord(b *Block, w byte) (bool, Status) {
	v, ok := b.Value(w)
	if !ok {
		return false, StatusValueWordMissing
	}
	switch v {
	case 0:
		return false, StatusOK
	case 1:
		return true, StatusOK
	}
	if v != math.Trunc(v) {
		return false, StatusBadNumberFormat
	}
	return false, StatusValueOutOfRange
}

// energizeParams builds EnergizeParams from D, I and Q, applying defaults
func energizeParams(b *Block) (EnergizeParams, Status) {
	duration := float64(DefaultPulseDurationUS)
	amps := float64(DefaultCurrentAmps)
	duty := float64(DefaultDutyPercent)
	if v, ok := b.Value('D'); ok {
		duration = v
	}
	if v, ok := b.Value('I'); ok {
		amps = v
	}
	if v, ok := b.Value('Q'); ok {
		duty = v
	}

	if math.IsNaN(duration) || duration < MinPulseDurationUS || duration > MaxPulseDurationUS {
		return EnergizeParams{}, StatusValueOutOfRange
	}
	// range applies to the word as given, before rounding to 0.1 A
	if math.IsNaN(amps) || amps < 0 || amps*10 > MaxCurrentDeciAmp {
		return EnergizeParams{}, StatusValueOutOfRange
	}
	deciAmps := math.Round(amps * 10)
	if math.IsNaN(duty) || duty < MinDutyPercent || duty > MaxDutyPercent {
		return EnergizeParams{}, StatusValueOutOfRange
	}

	return EnergizeParams{
		ToolNegative:    b.Code == MCodeEnergizeNegative,
		PulseDurationUS: uint16(duration),
		CurrentDeciAmp:  uint8(deciAmps),
		DutyPercent:     uint8(duty),
	}, StatusOK
}
