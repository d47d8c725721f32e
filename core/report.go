package core

import (
	"iter"
	"strconv"
	"strings"
)

// DefaultDumpChunk is the number of samples per log dump line
const DefaultDumpChunk = 20

// dumpFiller renders a missing sample in the final chunk
const dumpFiller = "__"

// StatusReport is the data behind one status line
type StatusReport struct {
	Init        InitStatus
	BusOK       bool
	Temperature uint8 // valid if BusOK
	Polls       uint32
	LogDepth    int
	ClockHz     uint32
}

// String renders the bracketed status line
func (r StatusReport) String() string {
	var sb strings.Builder
	sb.WriteString("[EDM:init=")
	sb.WriteString(strconv.Itoa(int(r.Init)))
	if r.BusOK {
		sb.WriteString(",bus=ok,temp=")
		sb.WriteString(strconv.Itoa(int(r.Temperature)))
	} else {
		sb.WriteString(",bus=fail")
	}
	sb.WriteString(",polls=")
	sb.WriteString(strconv.FormatUint(uint64(r.Polls), 10))
	sb.WriteString(",log=")
	sb.WriteString(strconv.Itoa(r.LogDepth))
	sb.WriteString(",fclk=")
	sb.WriteString(strconv.FormatUint(uint64(r.ClockHz), 10))
	sb.WriteByte(']')
	return sb.String()
}

// Decile quantizes a ratio byte to 0-9
func Decile(b uint8) uint8 {
	d := (uint16(b)*10 + 127) / 255
	if d > 9 {
		d = 9
	}
	return uint8(d)
}

// DumpLines renders entries as one line per chunk samples and passes each to
// emit. The last line is padded with filler samples.
func DumpLines(entries iter.Seq[LogEntry], chunk int, emit func(string)) {
	if chunk <= 0 {
		chunk = DefaultDumpChunk
	}

	var (
		sb     strings.Builder
		n      int
		motion bool
		pc     uint32
	)
	flush := func() {
		for i := n; i < chunk; i++ {
			sb.WriteString(dumpFiller)
		}
		sb.WriteString(",m=")
		if motion {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
		sb.WriteString(",pc=")
		sb.WriteString(strconv.FormatUint(uint64(pc), 10))
		sb.WriteByte(']')
		emit(sb.String())
		sb.Reset()
		n, motion, pc = 0, false, 0
	}

	for e := range entries {
		if n == 0 {
			sb.WriteString("[EDMLOG:")
		}
		sb.WriteByte('0' + Decile(e.PulseRatio))
		sb.WriteByte('0' + Decile(e.ShortRatio))
		motion = motion || e.Motion()
		pc += uint32(e.PulseCountDelta)
		if n++; n == chunk {
			flush()
		}
	}
	if n > 0 {
		flush()
	}
}
