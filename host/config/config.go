// Package config loads the edm-host YAML configuration
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"edmpulser/core"
	"edmpulser/host/modbusbus"
	"edmpulser/host/serial"
)

// Transports
const (
	TransportSim       = "sim"
	TransportBridge    = "bridge"
	TransportModbusRTU = "modbus-rtu"
	TransportModbusTCP = "modbus-tcp"
)

type Config struct {
	Pulser PulserConfig `yaml:"pulser"`
	Driver DriverConfig `yaml:"driver"`
	Host   HostConfig   `yaml:"host"`
	Log    LogConfig    `yaml:"log"`
}

type PulserConfig struct {
	Transport string       `yaml:"transport"`
	Address   uint16       `yaml:"address"`
	Serial    SerialConfig `yaml:"serial"`
	Modbus    ModbusConfig `yaml:"modbus"`
	GatePin   uint32       `yaml:"gate_pin"`
}

type SerialConfig struct {
	Device        string `yaml:"device"`
	Baud          int    `yaml:"baud"`
	ReadTimeoutMs int    `yaml:"read_timeout_ms"`
	TxTimeoutMs   int    `yaml:"tx_timeout_ms"`
}

type ModbusConfig struct {
	Endpoint  string `yaml:"endpoint"`
	UnitID    uint8  `yaml:"unit_id"`
	Baud      int    `yaml:"baud"`
	TimeoutMs int    `yaml:"timeout_ms"`
	Base      uint16 `yaml:"base"`
}

type DriverConfig struct {
	PollIntervalUs    uint64 `yaml:"poll_interval_us"`
	LogCapacity       int    `yaml:"log_capacity"`
	DumpChunk         int    `yaml:"dump_chunk"`
	RetractShortRatio uint8  `yaml:"retract_short_ratio"`
}

type HostConfig struct {
	TickUs          uint64 `yaml:"tick_us"`
	SamplingClockHz uint32 `yaml:"sampling_clock_hz"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Load reads and validates a configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML, applies defaults and validates. Unknown keys are errors.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	p := &cfg.Pulser
	if p.Transport == "" {
		p.Transport = TransportSim
	}
	if p.Address == 0 {
		p.Address = core.DefaultAddress
	}
	if p.Serial.Device == "" {
		p.Serial.Device = "/dev/ttyACM0"
	}
	if p.Serial.Baud == 0 {
		p.Serial.Baud = 250000
	}
	if p.Serial.ReadTimeoutMs == 0 {
		p.Serial.ReadTimeoutMs = 50
	}
	if p.Serial.TxTimeoutMs == 0 {
		p.Serial.TxTimeoutMs = 20
	}
	if p.Modbus.UnitID == 0 {
		p.Modbus.UnitID = 1
	}
	if p.Modbus.Baud == 0 {
		p.Modbus.Baud = 19200
	}
	if p.Modbus.TimeoutMs == 0 {
		p.Modbus.TimeoutMs = 20
	}
	if p.GatePin == 0 {
		p.GatePin = 15
	}

	d := &cfg.Driver
	if d.PollIntervalUs == 0 {
		d.PollIntervalUs = core.DefaultPollInterval
	}
	if d.LogCapacity == 0 {
		d.LogCapacity = core.DefaultLogCapacity
	}
	if d.DumpChunk == 0 {
		d.DumpChunk = core.DefaultDumpChunk
	}
	if d.RetractShortRatio == 0 {
		d.RetractShortRatio = core.DefaultRetractShortRatio
	}

	if cfg.Host.TickUs == 0 {
		cfg.Host.TickUs = 250
	}
	if cfg.Host.SamplingClockHz == 0 {
		cfg.Host.SamplingClockHz = 1000000
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// Validate checks a defaulted configuration. It does not mutate cfg.
func Validate(cfg *Config) error {
	p := cfg.Pulser
	switch p.Transport {
	case TransportSim, TransportBridge:
		if p.Address > 0x7F {
			return fmt.Errorf("pulser.address 0x%x is not a 7-bit I2C address", p.Address)
		}
	case TransportModbusRTU, TransportModbusTCP:
		if p.Modbus.Endpoint == "" {
			return fmt.Errorf("pulser.modbus.endpoint is required for transport %q", p.Transport)
		}
		if p.Modbus.UnitID > 247 {
			return fmt.Errorf("pulser.modbus.unit_id %d out of range 1-247", p.Modbus.UnitID)
		}
	default:
		return fmt.Errorf("pulser.transport %q: want one of %s, %s, %s, %s",
			p.Transport, TransportSim, TransportBridge, TransportModbusRTU, TransportModbusTCP)
	}
	if p.Serial.Baud < 0 || p.Modbus.Baud < 0 {
		return fmt.Errorf("baud rate must be positive")
	}

	d := cfg.Driver
	if d.LogCapacity < 0 {
		return fmt.Errorf("driver.log_capacity %d must be positive", d.LogCapacity)
	}
	if d.DumpChunk < 0 || d.DumpChunk > 64 {
		return fmt.Errorf("driver.dump_chunk %d out of range 1-64", d.DumpChunk)
	}
	if cfg.Host.TickUs > d.PollIntervalUs {
		return fmt.Errorf("host.tick_us %d exceeds driver.poll_interval_us %d", cfg.Host.TickUs, d.PollIntervalUs)
	}

	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q: want debug, info, warn or error", cfg.Log.Level)
	}
	return nil
}

// Core returns the driver tunables
func (c *Config) Core() core.Config {
	return core.Config{
		PollInterval:      c.Driver.PollIntervalUs,
		LogCapacity:       c.Driver.LogCapacity,
		DumpChunk:         c.Driver.DumpChunk,
		RetractShortRatio: c.Driver.RetractShortRatio,
	}
}

// SerialPort returns the bridge serial settings
func (c *Config) SerialPort() *serial.Config {
	s := c.Pulser.Serial
	return &serial.Config{
		Device:      s.Device,
		Baud:        s.Baud,
		ReadTimeout: time.Duration(s.ReadTimeoutMs) * time.Millisecond,
	}
}

// TxTimeout bounds one bridge round trip
func (c *Config) TxTimeout() time.Duration {
	return time.Duration(c.Pulser.Serial.TxTimeoutMs) * time.Millisecond
}

// Modbus returns the Modbus gateway settings
func (c *Config) Modbus() modbusbus.Config {
	m := c.Pulser.Modbus
	return modbusbus.Config{
		Endpoint: m.Endpoint,
		UnitID:   m.UnitID,
		Baud:     m.Baud,
		Timeout:  time.Duration(m.TimeoutMs) * time.Millisecond,
		Base:     m.Base,
	}
}

// Tick returns the realtime tick period
func (c *Config) Tick() time.Duration {
	return time.Duration(c.Host.TickUs) * time.Microsecond
}
