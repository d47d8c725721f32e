package core

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollRateLimit(t *testing.T) {
	f := newReadyFixture(Config{PollInterval: 1000})
	readsAfterInit := f.bus.reads

	f.clock.advance(1000)
	f.p.Poller().Tick()
	for range 5 {
		f.clock.advance(100)
		f.p.Poller().Tick()
	}

	st := f.p.State()
	assert.Equal(t, uint32(6), st.TickCount())
	assert.Equal(t, uint32(1), st.PollCount())
	assert.Equal(t, 1, f.bus.reads-readsAfterInit)

	f.clock.advance(500) // 1000us since the due tick
	f.p.Poller().Tick()
	assert.Equal(t, uint32(2), st.PollCount())
	assert.Equal(t, f.clock.now, st.LastPoll())
}

func TestPollCurrentSensing(t *testing.T) {
	tests := []struct {
		name  string
		tel   Telemetry
		sense bool
	}{
		{"idle", Telemetry{OpenRatio: 255}, false},
		{"pulses", Telemetry{PulseRatio: 1}, true},
		{"short", Telemetry{ShortRatio: 3}, true},
		{"open only", Telemetry{OpenRatio: 40, PulseCount: 9}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newReadyFixture(Config{})
			f.bus.setTelemetry(tt.tel)
			f.poll()
			assert.Equal(t, tt.sense, f.p.State().CurrentSensing())
			assert.Equal(t, tt.sense, f.p.Probe().GetState().Triggered)
			assert.True(t, f.p.Probe().GetState().Connected)
		})
	}
}

func TestPollFailedReadKeepsState(t *testing.T) {
	f := newReadyFixture(Config{})
	f.bus.setTelemetry(Telemetry{PulseRatio: 200})
	f.poll()
	require.True(t, f.p.State().CurrentSensing())

	f.bus.setTelemetry(Telemetry{})
	f.bus.failRead = true
	before := f.bus.reads
	f.poll()
	f.poll()

	assert.Equal(t, before+2, f.bus.reads, "one read per due tick, no retry")
	assert.True(t, f.p.State().CurrentSensing())
	assert.Equal(t, uint32(3), f.p.State().PollCount(), "failed due ticks still count")

	f.bus.failRead = false
	f.poll()
	assert.False(t, f.p.State().CurrentSensing())
}

func TestPollRetractThreshold(t *testing.T) {
	f := newReadyFixture(Config{})

	f.bus.setTelemetry(Telemetry{ShortRatio: 127})
	f.poll()
	assert.False(t, f.p.State().RetractRequested())

	f.bus.setTelemetry(Telemetry{ShortRatio: 128})
	f.poll()
	assert.True(t, f.p.State().RetractRequested())

	// Latched until the host clears its own state
	f.bus.setTelemetry(Telemetry{})
	f.poll()
	assert.True(t, f.p.State().RetractRequested())
}

func TestPollAppendsWhenLogActive(t *testing.T) {
	f := newReadyFixture(Config{})

	f.bus.setTelemetry(Telemetry{PulseCount: 5, PulseRatio: 10})
	f.poll() // log off: nothing recorded, but the counter baseline moves
	assert.Equal(t, 0, f.p.Log().Len())

	f.p.Log().SetActive(true)
	f.bus.setTelemetry(Telemetry{PulseCount: 8, PulseRatio: 20, ShortRatio: 2, OpenRatio: 30})
	f.poll()
	f.host.motion = true
	f.bus.setTelemetry(Telemetry{PulseCount: 3, PulseRatio: 21}) // counter wrapped
	f.poll()
	f.p.Log().SetActive(false)

	want := []LogEntry{
		{OpenRatio: 30, ShortRatio: 2, PulseRatio: 20, PulseCountDelta: 3},
		{Flags: StatusMotion, PulseRatio: 21, PulseCountDelta: 251},
	}
	assert.Equal(t, want, slices.Collect(f.p.Log().Entries()))
}
