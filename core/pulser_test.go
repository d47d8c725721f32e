package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestInitReady(t *testing.T) {
	bus := newFakeBus()
	out := &fakeOut{on: true}
	host := &fakeHost{}
	p := New(bus, out, host, &fakeClock{}, Config{}, WithLogger(zaptest.NewLogger(t)))

	assert.Equal(t, InitUnknown, p.State().InitStatus())
	require.NoError(t, p.Init())

	assert.Equal(t, InitReady, p.State().InitStatus())
	assert.False(t, out.on)
	assert.Equal(t, []busWrite{{RegPolarity, 0}}, bus.journal())
}

func TestInitFaultLatches(t *testing.T) {
	f := newFixture(Config{})
	f.bus.failRead = true

	err := f.p.Init()
	require.Error(t, err)
	assert.ErrorIs(t, err, errNack)

	code, faulted := f.p.State().InitStatus().Fault()
	assert.True(t, faulted)
	assert.Equal(t, StatusSelfTestFailed, code)
	assert.Equal(t, "fault(self test failed)", f.p.State().InitStatus().String())
}

func TestInitGateFailure(t *testing.T) {
	f := newFixture(Config{})
	f.out.failOff = true

	err := f.p.Init()
	require.Error(t, err)
	assert.ErrorIs(t, err, errPinStuck)

	code, faulted := f.p.State().InitStatus().Fault()
	assert.True(t, faulted)
	assert.Equal(t, StatusSelfTestFailed, code)
	assert.Empty(t, f.bus.journal())
}

func TestConfigDefaults(t *testing.T) {
	f := newFixture(Config{})
	cfg := f.p.Config()
	assert.Equal(t, uint64(DefaultPollInterval), cfg.PollInterval)
	assert.Equal(t, DefaultLogCapacity, cfg.LogCapacity)
	assert.Equal(t, DefaultDumpChunk, cfg.DumpChunk)
	assert.Equal(t, uint8(DefaultRetractShortRatio), cfg.RetractShortRatio)
	assert.Equal(t, DefaultLogCapacity, f.p.Log().Capacity())
}

func TestRealtimeHookChains(t *testing.T) {
	f := newReadyFixture(Config{})
	var order []string
	h := &Hooks{OnExecuteRealtime: func(SysState) { order = append(order, "prev") }}
	f.p.Attach(h)

	f.clock.advance(1000)
	h.OnExecuteRealtime(0)

	assert.Equal(t, []string{"prev"}, order)
	assert.Equal(t, uint32(1), f.p.State().TickCount())
	assert.Equal(t, uint32(1), f.p.State().PollCount())
}

func TestProbeCompletedDeenergizesOnce(t *testing.T) {
	for _, found := range []bool{true, false} {
		f := newReadyFixture(Config{})
		var forwarded []bool
		h := &Hooks{OnProbeCompleted: func(found bool) { forwarded = append(forwarded, found) }}
		f.p.Attach(h)

		require.NoError(t, f.p.Gate().Energize(EnergizeParams{PulseDurationUS: 500, CurrentDeciAmp: 10, DutyPercent: 25}))
		f.bus.resetJournal()

		h.OnProbeCompleted(found)

		assert.Equal(t, []busWrite{{RegPolarity, 0}}, f.bus.journal(), "found=%v", found)
		assert.Equal(t, []bool{found}, forwarded)
		assert.False(t, f.p.State().GateOn())
	}
}

func TestProbeSlotReplaced(t *testing.T) {
	f := newReadyFixture(Config{})
	h := &Hooks{}
	f.p.Attach(h)
	require.NotNil(t, h.Probe)

	h.Probe.Configure(true, true)
	h.Probe.ConnectedToggle()
	assert.Equal(t, ProbeState{Connected: true}, h.Probe.GetState())

	f.bus.setTelemetry(Telemetry{ShortRatio: 1})
	f.poll()
	assert.Equal(t, ProbeState{Triggered: true, Connected: true}, h.Probe.GetState())
}

func TestReportOptions(t *testing.T) {
	f := newReadyFixture(Config{})
	var prev []bool
	h := &Hooks{OnReportOptions: func(newopt bool) { prev = append(prev, newopt) }}
	f.p.Attach(h)

	h.OnReportOptions(true)
	assert.Empty(t, f.host.lines)

	h.OnReportOptions(false)
	assert.Equal(t, []string{PluginReport}, f.host.lines)
	assert.Equal(t, []bool{true, false}, prev)
}

func TestStatsAndShutdown(t *testing.T) {
	f := newReadyFixture(Config{})
	require.NoError(t, f.p.Gate().Energize(EnergizeParams{PulseDurationUS: 500, CurrentDeciAmp: 10, DutyPercent: 25}))
	f.p.Log().SetActive(true)
	f.bus.setTelemetry(Telemetry{PulseRatio: 4, ShortRatio: 200})
	f.poll()
	f.clock.advance(1)
	f.p.Poller().Tick()

	s := f.p.Stats()
	assert.Equal(t, Stats{
		Init:      InitReady,
		Ticks:     2,
		Polls:     1,
		Sensing:   true,
		Retract:   true,
		GateOn:    true,
		LogActive: true,
		LogDepth:  1,
	}, s)

	require.NoError(t, f.p.Shutdown())
	assert.False(t, f.p.Stats().GateOn)
	assert.False(t, f.out.on)
}
