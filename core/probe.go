package core

// ProbeState is the sample returned to the host's stepping interrupt
type ProbeState struct {
	Triggered bool
	Connected bool
}

// ProbeHAL is the host's probe capability slot
type ProbeHAL interface {
	Configure(isProbeAway, probing bool)
	ConnectedToggle()
	GetState() ProbeState
}

// Probe reports discharge current as the probe trigger signal
type Probe struct {
	state *State
}

// Configure is a no-op; the discharge signal has no direction to invert
func (p *Probe) Configure(isProbeAway, probing bool) {}

// ConnectedToggle is a no-op; the probe is always connected
func (p *Probe) ConnectedToggle() {}

// GetState is called from the stepping interrupt and does a single atomic load
func (p *Probe) GetState() ProbeState {
	return ProbeState{Triggered: p.state.currentSensing.Load(), Connected: true}
}
