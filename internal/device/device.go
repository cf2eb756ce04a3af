// Package device emulates the strip controller that sits on the other end of
// the command channel: it parses command lines, keeps its own palette and
// pushes frames to an LED driver.
package device

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/coreman2200/spiraltree/internal/command"
	"github.com/coreman2200/spiraltree/internal/led"
	"github.com/coreman2200/spiraltree/internal/render"
	"github.com/coreman2200/spiraltree/internal/render/scenes/palette"
	"github.com/coreman2200/spiraltree/internal/settings"
)

type Mode string

const (
	ModeRandom Mode = "random" // re-drawn every Interval
	ModeStatic Mode = "static" // held after OFF or ALL
)

type Options struct {
	Strips     int              `yaml:"strips" mapstructure:"strips"`
	PerStrip   int              `yaml:"per_strip" mapstructure:"per_strip"`
	Brightness int              `yaml:"brightness" mapstructure:"brightness"`
	Percent    settings.Percent `yaml:"percent" mapstructure:"percent"`
	Interval   time.Duration    `yaml:"interval" mapstructure:"interval"`
	Seed       int64            `yaml:"seed" mapstructure:"seed"`
}

// DefaultOptions matches the stock firmware: four strips of 600 at 20/255.
func DefaultOptions() Options {
	return Options{
		Strips:     4,
		PerStrip:   600,
		Brightness: 20,
		Percent:    settings.Percent{Green: 80, Red: 15, Blue: 5},
		Interval:   3 * time.Second,
	}
}

// Device is safe for concurrent use; Serve is the usual entry point.
type Device struct {
	Log   zerolog.Logger
	Clock render.Clock

	mu    sync.Mutex
	opts  Options
	out   *led.Output
	pal   *palette.Illuminator
	frame *render.Frame
	u     *render.Uniforms
	mode  Mode
	rps   float64
	start time.Time
}

func New(opts Options, d led.Driver, log zerolog.Logger) (*Device, error) {
	if opts.Strips <= 0 || opts.PerStrip <= 0 {
		return nil, fmt.Errorf("invalid strip layout %dx%d", opts.Strips, opts.PerStrip)
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultOptions().Interval
	}
	u := render.NewUniforms(settings.Defaults())
	u.Settings.HWBrightness = clampByte(opts.Brightness)
	dev := &Device{
		Log:   log,
		Clock: render.SystemClock{},
		opts:  opts,
		out:   led.NewOutput(d),
		pal:   palette.New(opts.Seed),
		frame: render.NewFrame(opts.Strips, opts.PerStrip),
		u:     u,
		mode:  ModeRandom,
		rps:   1,
	}
	dev.start = dev.Clock.Now()
	return dev, nil
}

func (d *Device) n() int { return d.opts.Strips * d.opts.PerStrip }

// Start draws the first pattern and returns the banner.
func (d *Device) Start() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.start = d.Clock.Now()
	d.pal.Randomize(d.n(), d.opts.Percent)
	d.show()
	rule := strings.Repeat("=", 38)
	return []string{
		rule,
		fmt.Sprintf("Spiral Tree Controller (%d Strips)", d.opts.Strips),
		rule,
		fmt.Sprintf("LED Count per strip: %d", d.opts.PerStrip),
		fmt.Sprintf("Brightness: %d/255 (%d%%)", d.u.Settings.HWBrightness, d.u.Settings.HWBrightness*100/255),
		fmt.Sprintf("Colors: %d%% Green, %d%% Red, %d%% Blue", d.opts.Percent.Green, d.opts.Percent.Red, d.opts.Percent.Blue),
		fmt.Sprintf("Pattern changes every %s", d.opts.Interval),
		rule,
		"Effect started!",
	}
}

// Handle applies one command line and returns the lines to send back.
// Unknown or malformed lines answer ERR:<line>.
func (d *Device) Handle(line string) []string {
	cmd, err := command.Parse(line)
	if err != nil {
		d.Log.Debug().Err(err).Str("line", line).Msg("rejected")
		return []string{"ERR:" + strings.TrimSpace(line)}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	switch cmd.Kind {
	case command.KindInfo:
		return []string{d.info()}
	case command.KindBright:
		d.u.Settings.HWBrightness = clampByte(cmd.Int(0))
	case command.KindRPS:
		d.rps = cmd.Float(0)
	case command.KindPercent:
		d.opts.Percent = settings.Percent{Green: cmd.Int(0), Red: cmd.Int(1), Blue: cmd.Int(2)}
	case command.KindRandom:
		d.mode = ModeRandom
		d.pal.Randomize(d.n(), d.opts.Percent)
	case command.KindOff:
		d.mode = ModeStatic
		d.pal.Off(d.n())
	case command.KindAll:
		d.mode = ModeStatic
		d.pal.SetAll(d.n(), palette.FromRGB(settings.RGB{
			R: uint8(clampByte(cmd.Int(0))), G: uint8(clampByte(cmd.Int(1))), B: uint8(clampByte(cmd.Int(2))),
		}))
	}
	d.Log.Debug().Str("cmd", cmd.String()).Msg("applied")
	d.show()
	return nil
}

// Tick re-draws the pattern when in random mode.
func (d *Device) Tick() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mode != ModeRandom {
		return nil
	}
	d.pal.Randomize(d.n(), d.opts.Percent)
	d.show()
	return []string{
		"Changing pattern...",
		fmt.Sprintf("Uptime: %d seconds", int(d.Clock.Now().Sub(d.start).Seconds())),
	}
}

func (d *Device) Mode() Mode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mode
}

func (d *Device) info() string {
	p := d.opts.Percent
	return fmt.Sprintf("STRIPS:%d LEDS:%d BRIGHT:%d RPS:%g PERCENT:%d,%d,%d MODE:%s UPTIME:%d",
		d.opts.Strips, d.opts.PerStrip, d.u.Settings.HWBrightness, d.rps,
		p.Green, p.Red, p.Blue, d.mode, int(d.Clock.Now().Sub(d.start).Seconds()))
}

// show must be called with mu held.
func (d *Device) show() {
	copy(d.frame.Colors, d.pal.Colors())
	for i := range d.frame.Visible {
		d.frame.Visible[i] = true
	}
	if err := d.out.Present(d.frame, render.Pose{}, d.u); err != nil {
		d.Log.Warn().Err(err).Msg("led write failed")
	}
}

// Serve runs the controller over rw until ctx ends or the stream closes.
func (d *Device) Serve(ctx context.Context, rw io.ReadWriter) error {
	w := bufio.NewWriter(rw)
	send := func(lines []string) error {
		for _, l := range lines {
			if _, err := w.WriteString(l + "\r\n"); err != nil {
				return err
			}
		}
		return w.Flush()
	}
	if err := send(d.Start()); err != nil {
		return fmt.Errorf("banner: %w", err)
	}

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(rw)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	d.mu.Lock()
	every := d.opts.Interval
	d.mu.Unlock()
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			if err == nil || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		case l := <-lines:
			if strings.TrimSpace(l) == "" {
				continue
			}
			if err := send(d.Handle(l)); err != nil {
				return fmt.Errorf("write: %w", err)
			}
		case <-t.C:
			if err := send(d.Tick()); err != nil {
				return fmt.Errorf("write: %w", err)
			}
		}
	}
}

// Close releases the LED driver.
func (d *Device) Close() error { return d.out.Close() }

func clampByte(v int) int {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}
