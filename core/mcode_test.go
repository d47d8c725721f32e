package core

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func block(code MCode, words map[byte]float64) *Block {
	return &Block{Code: code, Words: words}
}

// otherHandler stands in for a co-resident plugin's M-code
type otherHandler struct {
	code     MCode
	executed int
}

func (o *otherHandler) Check(code MCode) MCodeType {
	if code == o.code {
		return MCodeNormal
	}
	return MCodeUnsupported
}

func (o *otherHandler) Validate(b *Block) Status {
	if b.Code != o.code {
		return StatusUnhandled
	}
	return StatusOK
}

func (o *otherHandler) Execute(state SysState, b *Block) { o.executed++ }

func attached(f *fixture) *Hooks {
	h := &Hooks{}
	f.p.Attach(h)
	return h
}

func TestEnergizeValidation(t *testing.T) {
	tests := []struct {
		name  string
		words map[byte]float64
		want  Status
	}{
		{"defaults", nil, StatusOK},
		{"duration 100", map[byte]float64{'D': 100}, StatusOK},
		{"duration 1000", map[byte]float64{'D': 1000}, StatusOK},
		{"duration 99", map[byte]float64{'D': 99}, StatusValueOutOfRange},
		{"duration 1001", map[byte]float64{'D': 1001}, StatusValueOutOfRange},
		{"current 0", map[byte]float64{'I': 0}, StatusOK},
		{"current 20", map[byte]float64{'I': 20}, StatusOK},
		{"current -1", map[byte]float64{'I': -1}, StatusValueOutOfRange},
		{"current 21", map[byte]float64{'I': 21}, StatusValueOutOfRange},
		{"current -0.04", map[byte]float64{'I': -0.04}, StatusValueOutOfRange},
		{"current 20.04", map[byte]float64{'I': 20.04}, StatusValueOutOfRange},
		{"duty 1", map[byte]float64{'Q': 1}, StatusOK},
		{"duty 95", map[byte]float64{'Q': 95}, StatusOK},
		{"duty 0", map[byte]float64{'Q': 0}, StatusValueOutOfRange},
		{"duty 96", map[byte]float64{'Q': 96}, StatusValueOutOfRange},
	}
	for _, tt := range tests {
		for _, code := range []MCode{MCodeEnergizeNegative, MCodeEnergizePositive} {
			t.Run(tt.name, func(t *testing.T) {
				f := newReadyFixture(Config{})
				h := attached(f)

				assert.Equal(t, tt.want, h.UserMCode.Validate(block(code, tt.words)))
				assert.Empty(t, f.bus.journal(), "validation never touches the bus")
			})
		}
	}
}

func TestEnergizeCommand(t *testing.T) {
	f := newReadyFixture(Config{})
	h := attached(f)

	st := RunMCode(h.UserMCode, 0, block(MCodeEnergizeNegative, map[byte]float64{'D': 500, 'I': 1, 'Q': 25}))
	require.Equal(t, StatusOK, st)

	want := []busWrite{{RegCurrent, 10}, {RegDuration, 50}, {RegMaxDuty, 25}, {RegPolarity, 2}}
	if diff := cmp.Diff(want, f.bus.journal()); diff != "" {
		t.Errorf("write sequence mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, f.p.State().GateOn())

	require.Equal(t, StatusOK, RunMCode(h.UserMCode, 0, block(MCodeDeenergize, nil)))
	assert.False(t, f.p.State().GateOn())
	assert.False(t, f.out.on)
}

func TestEnergizeCurrentRounding(t *testing.T) {
	f := newReadyFixture(Config{})
	h := attached(f)

	require.Equal(t, StatusOK, RunMCode(h.UserMCode, 0, block(MCodeEnergizePositive, map[byte]float64{'I': 2.46})))
	assert.Equal(t, busWrite{RegCurrent, 25}, f.bus.journal()[0])
}

func TestCommandsRejectedWhenNotReady(t *testing.T) {
	f := newFixture(Config{})
	f.bus.failWrite[RegPolarity] = true
	require.Error(t, f.p.Init())
	f.bus.resetJournal()
	h := attached(f)

	assert.Equal(t, StatusSelfTestFailed, RunMCode(h.UserMCode, 0, block(MCodeEnergizeNegative, nil)))
	assert.Equal(t, StatusSelfTestFailed, RunMCode(h.UserMCode, 0, block(MCodeDeenergize, nil)))
	assert.Empty(t, f.bus.journal())

	// Status and log commands still work
	assert.Equal(t, StatusOK, RunMCode(h.UserMCode, 0, block(MCodeReadStatus, nil)))
	assert.Equal(t, StatusOK, RunMCode(h.UserMCode, 0, block(MCodeSetLog, map[byte]float64{'P': 1})))
}

func TestSetLogValidation(t *testing.T) {
	f := newReadyFixture(Config{})
	h := attached(f)

	assert.Equal(t, StatusValueWordMissing, h.UserMCode.Validate(block(MCodeSetLog, nil)))
	assert.Equal(t, StatusValueOutOfRange, h.UserMCode.Validate(block(MCodeSetLog, map[byte]float64{'P': 2})))
	assert.Equal(t, StatusBadNumberFormat, h.UserMCode.Validate(block(MCodeSetLog, map[byte]float64{'P': 0.5})))
	assert.Equal(t, StatusOK, h.UserMCode.Validate(block(MCodeSetLog, map[byte]float64{'P': 0})))
	assert.Equal(t, StatusOK, h.UserMCode.Validate(block(MCodeSetLog, map[byte]float64{'P': 1})))

	assert.Equal(t, StatusOK, h.UserMCode.Validate(block(MCodeReadStatus, nil)))
	assert.Equal(t, StatusValueOutOfRange, h.UserMCode.Validate(block(MCodeReadStatus, map[byte]float64{'P': 3})))
}

func TestSetLogTwiceClearsHistory(t *testing.T) {
	f := newReadyFixture(Config{})
	h := attached(f)
	on := block(MCodeSetLog, map[byte]float64{'P': 1})

	require.Equal(t, StatusOK, RunMCode(h.UserMCode, 0, on))
	for range 3 {
		f.poll()
	}
	assert.Equal(t, 3, f.p.Log().Len())

	require.Equal(t, StatusOK, RunMCode(h.UserMCode, 0, on))
	assert.Equal(t, 0, f.p.Log().Len())
	f.poll()
	assert.Equal(t, 1, f.p.Log().Len())
}

func TestReadStatusDump(t *testing.T) {
	f := newReadyFixture(Config{})
	h := attached(f)
	f.bus.regs[RegTemperature] = 31

	require.Equal(t, StatusOK, RunMCode(h.UserMCode, 0, block(MCodeSetLog, map[byte]float64{'P': 1})))
	f.bus.setTelemetry(Telemetry{PulseRatio: 255})
	for range 25 {
		f.poll()
	}

	// Dump is skipped while logging
	f.host.lines = nil
	require.Equal(t, StatusOK, RunMCode(h.UserMCode, 0, block(MCodeReadStatus, map[byte]float64{'P': 1})))
	assert.Len(t, f.host.lines, 1)

	require.Equal(t, StatusOK, RunMCode(h.UserMCode, 0, block(MCodeSetLog, map[byte]float64{'P': 0})))
	f.host.lines = nil
	require.Equal(t, StatusOK, RunMCode(h.UserMCode, 0, block(MCodeReadStatus, map[byte]float64{'P': 1})))
	require.Len(t, f.host.lines, 3)
	assert.Equal(t, "[EDM:init=0,bus=ok,temp=31,polls=25,log=25,fclk=1000000]", f.host.lines[0])
	assert.Contains(t, f.host.lines[2], "__")
}

func TestUnknownCodeDelegates(t *testing.T) {
	f := newReadyFixture(Config{})
	other := &otherHandler{code: 100}
	h := &Hooks{UserMCode: other}
	f.p.Attach(h)

	assert.Equal(t, MCodeNormal, h.UserMCode.Check(100))
	assert.Equal(t, StatusOK, RunMCode(h.UserMCode, 0, block(100, nil)))
	assert.Equal(t, 1, other.executed)

	assert.Equal(t, MCodeUnsupported, h.UserMCode.Check(999))
	assert.Equal(t, StatusUnhandled, RunMCode(h.UserMCode, 0, block(999, nil)))
	assert.Equal(t, 1, other.executed)
}

func TestUnknownCodeWithoutPrevious(t *testing.T) {
	f := newReadyFixture(Config{})
	h := attached(f)

	assert.Equal(t, MCodeUnsupported, h.UserMCode.Check(3))
	assert.Equal(t, StatusUnhandled, h.UserMCode.Validate(block(3, nil)))
	assert.Equal(t, StatusUnhandled, RunMCode(h.UserMCode, 0, block(3, nil)))
}
