// edm-host runs the EDM pulser driver on a workstation: it connects to the
// pulser over the configured transport, ticks the realtime hook and reads
// operator commands from stdin.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"edmpulser/core"
	"edmpulser/host/bench"
	"edmpulser/host/bridge"
	"edmpulser/host/config"
	"edmpulser/host/console"
	"edmpulser/host/modbusbus"
	"edmpulser/host/sim"
	"edmpulser/protocol"
)

var (
	configPath string
	forceSim   bool
)

var rootCmd = &cobra.Command{
	Use:           "edm-host",
	Short:         "EDM pulser bench host",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect to the pulser and start the console",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := config.Default()
		if configPath != "" {
			var err error
			if cfg, err = config.Load(configPath); err != nil {
				return err
			}
		}
		if forceSim {
			cfg.Pulser.Transport = config.TransportSim
		}

		logger, err := newLogger(cfg.Log)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		defer func() { _ = logger.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return run(ctx, cfg, logger, os.Stdin, os.Stdout)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "edm-host "+protocol.Version)
	},
}

func init() {
	runCmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	runCmd.Flags().BoolVar(&forceSim, "sim", false, "use the simulated pulser regardless of configuration")
	rootCmd.AddCommand(runCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newLogger(c config.LogConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// run wires the driver to the chosen transport and blocks until the console
// exits or ctx is cancelled. The gate is always forced off on the way out.
func run(ctx context.Context, cfg *config.Config, logger *zap.Logger, in io.Reader, out io.Writer) error {
	host := bench.NewStreamHost(out, cfg.Host.SamplingClockHz, logger.Named("host"))
	b := bench.New(host, logger.Named("bench"))

	var (
		bus     core.RegisterBus
		gpio    core.GPIODriver
		closeFn func() error
	)
	pin := core.GPIOPin(cfg.Pulser.GatePin)

	switch cfg.Pulser.Transport {
	case config.TransportSim:
		s := sim.New(cfg.Pulser.Address, pin)
		bus, gpio = core.NewI2CBus(s, cfg.Pulser.Address), s
		b.AddRealtime(s.Step)
	case config.TransportBridge:
		br, err := bridge.Open(cfg.SerialPort(), cfg.TxTimeout(), logger.Named("bridge"))
		if err != nil {
			return fmt.Errorf("open bridge: %w", err)
		}
		bus, gpio, closeFn = core.NewI2CBus(br, cfg.Pulser.Address), logGate{logger.Named("gate")}, br.Close
	case config.TransportModbusRTU, config.TransportModbusTCP:
		dial := modbusbus.DialRTU
		if cfg.Pulser.Transport == config.TransportModbusTCP {
			dial = modbusbus.DialTCP
		}
		mb, err := dial(cfg.Modbus())
		if err != nil {
			return fmt.Errorf("dial modbus: %w", err)
		}
		bus, gpio, closeFn = mb, logGate{logger.Named("gate")}, mb.Close
	default:
		return fmt.Errorf("unknown transport %q", cfg.Pulser.Transport)
	}
	if closeFn != nil {
		defer func() {
			if err := closeFn(); err != nil {
				logger.Warn("transport close", zap.Error(err))
			}
		}()
	}

	gate, err := core.NewPinOutput(gpio, pin)
	if err != nil {
		return err
	}
	p := core.New(bus, gate, host, core.NewMonotonicClock(), cfg.Core(), core.WithLogger(logger.Named("edm")))
	defer func() {
		if err := p.Shutdown(); err != nil {
			logger.Error("shutdown", zap.Error(err))
		}
	}()

	if err := p.Init(); err != nil {
		logger.Error("pulser init failed", zap.Error(err), zap.Stringer("status", p.State().InitStatus()))
	}
	p.Attach(b.Hooks)
	b.ReportOptions(false)

	logger.Info("edm host running",
		zap.String("transport", cfg.Pulser.Transport),
		zap.Duration("tick", cfg.Tick()),
		zap.Stringer("init", p.State().InitStatus()))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return b.RunRealtime(ctx, cfg.Tick())
	})
	g.Go(func() error {
		defer cancel()
		return console.New(b, p, logger.Named("console")).Run(ctx, in)
	})
	return g.Wait()
}

// logGate stands in for the gate enable line on transports that carry the
// gate over the pulser's own interlock rather than a host GPIO.
type logGate struct{ logger *zap.Logger }

func (g logGate) ConfigureOutput(pin core.GPIOPin) error {
	g.logger.Debug("gate pin configured", zap.Uint32("pin", uint32(pin)))
	return nil
}

func (g logGate) SetPin(pin core.GPIOPin, value bool) error {
	g.logger.Info("gate", zap.Uint32("pin", uint32(pin)), zap.Bool("on", value))
	return nil
}
