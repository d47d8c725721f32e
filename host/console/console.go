// Package console is the operator command line of the bench host.
// Lines that start with a G or M word are run as G-code blocks. Anything else
// is split with shell quoting rules and run through a cobra command tree;
// pulser commands are issued as M-code blocks through the host's user M-code
// hook, the same path a G-code program takes.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/shlex"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"edmpulser/core"
	"edmpulser/host/bench"
	"edmpulser/host/gcode"
)

// ErrExit is returned by Exec for the exit command
var ErrExit = errors.New("exit")

// Console executes operator commands against a bench
type Console struct {
	bench  *bench.Bench
	pulser *core.Pulser
	logger *zap.Logger

	ctx context.Context
}

// New returns a console for p attached to b
func New(b *bench.Bench, p *core.Pulser, logger *zap.Logger) *Console {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Console{bench: b, pulser: p, logger: logger, ctx: context.Background()}
}

// Run executes lines from r until EOF, exit or ctx is done
func (c *Console) Run(ctx context.Context, r io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.ctx = ctx
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					return err
				default:
					return nil
				}
			}
			if err := c.Exec(line); errors.Is(err, ErrExit) {
				return nil
			}
		}
	}
}

// Exec runs one command line. Command failures are reported on the host
// stream; only ErrExit and line-splitting errors are returned.
func (c *Console) Exec(line string) error {
	args, err := shlex.Split(line)
	if err != nil {
		c.out("error: " + err.Error())
		return err
	}
	if len(args) == 0 {
		return nil
	}
	if isGCode(args[0]) {
		c.block(line)
		return nil
	}

	root := c.commands()
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		if errors.Is(err, ErrExit) {
			return err
		}
		c.out("error: " + err.Error())
	}
	return nil
}

func (c *Console) out(line string) {
	c.bench.Host.Write(line)
}

// mcode runs a pulser M-code with the given words
func (c *Console) mcode(code core.MCode, words map[byte]float64) error {
	c.run(&core.Block{Code: code, Words: words})
	return nil
}

// run passes a block through the hook chain and reports the result
func (c *Console) run(b *core.Block) {
	st := core.RunMCode(c.bench.Hooks.UserMCode, c.bench.State(), b)
	c.logger.Debug("mcode", zap.Uint16("code", uint16(b.Code)), zap.Uint8("status", uint8(st)))
	c.status(st)
}

func (c *Console) status(st core.Status) {
	if st != core.StatusOK {
		c.out(fmt.Sprintf("error:%d (%s)", st, st.Error()))
		return
	}
	c.out("ok")
}

func (c *Console) commands() *cobra.Command {
	root := &cobra.Command{
		Use:           "edm",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetOut(hostWriter{c})
	root.SetErr(hostWriter{c})

	root.AddCommand(
		c.statusCmd(),
		c.logCmd(),
		c.energizeCmd(),
		&cobra.Command{
			Use:   "deenergize",
			Short: "Turn the discharge off",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				return c.mcode(core.MCodeDeenergize, nil)
			},
		},
		c.probeCmd(),
		c.mcodeCmd(),
		c.motionCmd(),
		&cobra.Command{
			Use:   "stats",
			Short: "Print driver counters",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				s := c.pulser.Stats()
				c.out(fmt.Sprintf("init=%s ticks=%d polls=%d sensing=%t retract=%t gate=%t log=%t/%d",
					s.Init, s.Ticks, s.Polls, s.Sensing, s.Retract, s.GateOn, s.LogActive, s.LogDepth))
				return nil
			},
		},
		&cobra.Command{
			Use:   "options",
			Short: "Print the options report",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				c.bench.ReportOptions(false)
				return nil
			},
		},
		&cobra.Command{
			Use:     "exit",
			Aliases: []string{"quit"},
			Short:   "Leave the console",
			RunE: func(*cobra.Command, []string) error {
				return ErrExit
			},
		},
	)
	return root
}

func (c *Console) statusCmd() *cobra.Command {
	var dump bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the pulser status line",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			p := 0.0
			if dump {
				p = 1
			}
			return c.mcode(core.MCodeReadStatus, map[byte]float64{'P': p})
		},
	}
	cmd.Flags().BoolVar(&dump, "dump", false, "also dump the discharge log (log must be off)")
	return cmd
}

func (c *Console) logCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "log on|off",
		Short:     "Enable (and clear) or disable the discharge log",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"on", "off"},
		RunE: func(_ *cobra.Command, args []string) error {
			p := 0.0
			if args[0] == "on" {
				p = 1
			}
			return c.mcode(core.MCodeSetLog, map[byte]float64{'P': p})
		},
	}
}

func (c *Console) energizeCmd() *cobra.Command {
	var (
		polarity string
		duration float64
		current  float64
		duty     float64
	)
	cmd := &cobra.Command{
		Use:   "energize",
		Short: "Program the pulser and turn the discharge on",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var code core.MCode
			switch polarity {
			case "neg", "negative":
				code = core.MCodeEnergizeNegative
			case "pos", "positive":
				code = core.MCodeEnergizePositive
			default:
				return fmt.Errorf("--polarity %q: want neg or pos", polarity)
			}
			words := map[byte]float64{}
			if cmd.Flags().Changed("duration") {
				words['D'] = duration
			}
			if cmd.Flags().Changed("current") {
				words['I'] = current
			}
			if cmd.Flags().Changed("duty") {
				words['Q'] = duty
			}
			return c.mcode(code, words)
		},
	}
	f := cmd.Flags()
	f.StringVar(&polarity, "polarity", "", "tool polarity: neg or pos")
	f.Float64Var(&duration, "duration", core.DefaultPulseDurationUS, "pulse duration in us")
	f.Float64Var(&current, "current", core.DefaultCurrentAmps, "pulse current in A")
	f.Float64Var(&duty, "duty", core.DefaultDutyPercent, "max duty in percent")
	_ = cmd.MarkFlagRequired("polarity")
	return cmd
}

func (c *Console) probeCmd() *cobra.Command {
	var (
		found   bool
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Run a probe cycle, or complete one with --found",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("found") {
				c.bench.CompleteProbe(found)
				c.out("[PRB:" + boolDigit(found) + "]")
				return nil
			}
			hit, err := c.bench.ProbeCycle(c.ctx, timeout, 100*time.Microsecond)
			if err != nil {
				return err
			}
			c.out("[PRB:" + boolDigit(hit) + "]")
			return nil
		},
	}
	cmd.Flags().BoolVar(&found, "found", false, "complete the cycle immediately with this result")
	cmd.Flags().DurationVar(&timeout, "timeout", time.Second, "probe cycle timeout")
	return cmd
}

func (c *Console) motionCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "motion on|off",
		Short:     "Mark coordinated motion as running",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"on", "off"},
		RunE: func(_ *cobra.Command, args []string) error {
			c.bench.Host.SetMotion(args[0] == "on")
			return nil
		},
	}
}

// mcodeCmd sends a raw block: "m 552 D300 I2.5 Q20"
func (c *Console) mcodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "m CODE [WORD...]",
		Short: "Send a raw M-code block",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			line := strings.Join(args, " ")
			if !strings.HasPrefix(strings.ToUpper(line), "M") {
				line = "M" + line
			}
			c.block(line)
			return nil
		},
	}
}

// block runs one G-code line the way the host parser would
func (c *Console) block(line string) {
	l, err := gcode.Parse(line)
	switch {
	case errors.Is(err, gcode.ErrBadNumber):
		c.status(core.StatusBadNumberFormat)
		return
	case err != nil:
		c.out("error: " + err.Error())
		return
	case l == nil || l.Letter == 0:
		c.out("ok")
		return
	}
	b, err := l.Block()
	if err != nil {
		c.status(core.StatusUnsupported)
		return
	}
	c.run(b)
}

// isGCode reports whether a console word starts a G-code block, like M552 or g1
func isGCode(word string) bool {
	if len(word) < 2 {
		return false
	}
	switch word[0] {
	case 'G', 'g', 'M', 'm':
		return word[1] >= '0' && word[1] <= '9'
	}
	return false
}

func boolDigit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// hostWriter sends cobra's own output (help, usage) to the host stream
type hostWriter struct{ c *Console }

func (w hostWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		w.c.out(line)
	}
	return len(p), nil
}
