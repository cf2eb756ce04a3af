// Package app wires the display together: settings store, render loop,
// illuminators, show player, LED output and the serial command channel.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/physic"

	"github.com/coreman2200/spiraltree/internal/command"
	"github.com/coreman2200/spiraltree/internal/config"
	diag "github.com/coreman2200/spiraltree/internal/diagnostics"
	"github.com/coreman2200/spiraltree/internal/geometry"
	"github.com/coreman2200/spiraltree/internal/led"
	"github.com/coreman2200/spiraltree/internal/preview"
	"github.com/coreman2200/spiraltree/internal/render"
	"github.com/coreman2200/spiraltree/internal/render/scenes/calib"
	"github.com/coreman2200/spiraltree/internal/render/scenes/palette"
	"github.com/coreman2200/spiraltree/internal/render/scenes/rainbow"
	"github.com/coreman2200/spiraltree/internal/render/scenes/solid"
	"github.com/coreman2200/spiraltree/internal/render/scenes/tide"
	"github.com/coreman2200/spiraltree/internal/render/scenes/tree"
	"github.com/coreman2200/spiraltree/internal/selftest"
	"github.com/coreman2200/spiraltree/internal/sequence"
	"github.com/coreman2200/spiraltree/internal/settings"
	"github.com/coreman2200/spiraltree/internal/telemetry"
)

// frames each self-test step is held for
const testHold = 30

var openNRZ = led.OpenNRZ

type Options struct {
	Config     *config.Config
	ConfigPath string // settings are written back here when set
	Clock      render.Clock
	Log        zerolog.Logger
}

type Core struct {
	Cfg     *config.Config
	Geo     *geometry.Model
	Store   *settings.Store
	Reg     *render.Registry
	Eng     *render.Engine
	Loop    *render.Loop
	Show    *sequence.SafePlayer
	Channel *command.Channel
	Diag    *diag.Log
	Tests   *selftest.Illuminator
	Palette *palette.Illuminator
	Output  *led.Output // nil when driver is "none"
	Driver  string

	log  zerolog.Logger
	path string
}

// New builds a Core from opts.Config. Hardware that cannot be opened falls
// back to the simulator and is reported on the diagnostics log.
func New(opts Options) (*Core, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	if err := cfg.Hardware.Validate(); err != nil {
		return nil, fmt.Errorf("hardware: %w", err)
	}

	c := &Core{
		Cfg:     cfg,
		Geo:     geometry.Build(cfg.Hardware),
		Store:   settings.NewStore(cfg.Settings()),
		Reg:     render.NewRegistry(),
		Channel: command.NewChannel(),
		Diag:    diag.NewLog(128),
		Tests:   selftest.New(testHold),
		Palette: palette.New(cfg.Seed),
		log:     opts.Log,
		path:    opts.ConfigPath,
	}

	tr := tree.New()
	tr.SetShape(tree.ShapeFor(cfg.Hardware))
	c.Reg.Register(tr)
	c.Reg.Register(solid.New(render.Solid, render.Hex(0xff0000)))
	c.Reg.Register(c.Palette)
	c.Reg.Register(c.Tests)
	c.Reg.Register(rainbow.New("rainbow"))
	c.Reg.Register(calib.New("calib"))
	c.Reg.Register(tide.New("tide"))

	u := render.NewUniforms(c.Store.Snapshot())
	for k, v := range cfg.Power.Params() {
		u.Params[k] = v
	}
	eng, err := render.NewEngine(c.Geo, tr, u)
	if err != nil {
		return nil, err
	}
	// each sink runs its own post stage
	eng.SetPost(render.PostPipeline{})
	c.Eng = eng

	c.Loop = render.NewLoop(eng, c.Reg, c.Store)
	if opts.Clock != nil {
		c.Loop.Clock = opts.Clock
	}

	if err := c.openDriver(); err != nil {
		return nil, err
	}
	c.wireChannel()
	c.wireStore()
	c.Tests.OnDone = func(k selftest.Kind) {
		c.Diag.Push(diag.Diagnostic{
			Severity: diag.Info,
			Code:     diag.TestDone,
			Summary:  fmt.Sprintf("self-test %s finished", k),
		})
		// OnDone runs inside the render tick
		go c.Store.Dispatch(settings.Event{Kind: settings.StopTest})
	}
	c.loadShow()

	if cfg.Serial.AutoConnect && cfg.Serial.Port != "" {
		if err := c.Channel.Connect(cfg.Serial.Port, cfg.Serial.Baud); err != nil {
			c.log.Warn().Err(err).Str("port", cfg.Serial.Port).Msg("auto-connect failed")
		}
	}
	return c, nil
}

func (c *Core) openDriver() error {
	name := strings.ToLower(c.Cfg.Driver)
	n := c.Geo.Count()
	var (
		d   led.Driver
		err error
	)
	switch name {
	case "", "sim":
		name = "sim"
		d = led.NewSim(c.log)
	case "none":
		c.Driver = name
		return nil
	case "console":
		d = led.NewConsole(n)
	case "nrz", "spi":
		name = "nrz"
		freq := led.DefaultFreq
		if c.Cfg.SPI.SpeedHz > 0 {
			freq = physic.Frequency(c.Cfg.SPI.SpeedHz) * physic.Hertz
		}
		d, err = openNRZ(c.Cfg.SPI.Dev, n, freq)
	default:
		err = fmt.Errorf("unknown driver %q", name)
	}
	if err != nil {
		c.log.Warn().Err(err).Str("driver", name).Msg("driver init failed; falling back to sim")
		c.Diag.Push(diag.Diagnostic{
			Severity:       diag.Warn,
			Code:           diag.DriverFallback,
			Summary:        fmt.Sprintf("LED driver %q unavailable, using simulator", name),
			Detail:         err.Error(),
			LikelyCauses:   []string{"SPI disabled or not present", "insufficient permissions on the SPI device"},
			SuggestedFixes: []string{"enable SPI in the boot config", "run with driver: sim"},
			Evidence:       map[string]any{"driver": name, "dev": c.Cfg.SPI.Dev},
		})
		name = "sim"
		d = led.NewSim(c.log)
	}
	c.Driver = name
	c.Output = led.NewOutput(d)
	c.Output.Inst = telemetry.Default()
	c.Eng.AddSink(c.Output)
	c.log.Info().Str("driver", name).Int("leds", n).Msg("LED output ready")
	return nil
}

func (c *Core) wireChannel() {
	c.Channel.OnStatus = func(st command.State, detail string) {
		switch {
		case st == command.Failed && detail != "":
			c.Diag.Push(diag.Diagnostic{
				Severity:       diag.Err,
				Code:           diag.SerialConnectFailed,
				Summary:        "serial port error",
				Detail:         detail,
				LikelyCauses:   []string{"controller unplugged", "port held by another program"},
				SuggestedFixes: []string{"check the cable and pick the port again"},
			})
		case st == command.Disconnected && detail == "":
			c.Diag.Push(diag.Diagnostic{
				Severity: diag.Info,
				Code:     diag.SerialStreamEnded,
				Summary:  "serial port closed",
			})
		}
	}
	c.Channel.OnLine = func(line string) {
		c.Diag.Push(diag.Diagnostic{
			Severity: diag.Info,
			Code:     diag.SerialDevice,
			Summary:  line,
		})
	}
}

// send queues cmd for the controller. Nothing is sent while disconnected.
func (c *Core) send(cmd command.Command) {
	if err := c.Channel.Send(cmd); err != nil && !errors.Is(err, command.ErrNotConnected) {
		c.log.Warn().Err(err).Str("cmd", cmd.String()).Msg("command not sent")
	}
}

func (c *Core) wireStore() {
	c.Store.Subscribe(func(prev, next settings.Settings, ev settings.Event, cmds []command.Command) {
		for _, cmd := range cmds {
			c.send(cmd)
		}
	})
	if c.path == "" {
		return
	}
	c.Store.Subscribe(func(prev, next settings.Settings, ev settings.Event, _ []command.Command) {
		if !persisted(prev, next) {
			return
		}
		c.Cfg.Capture(next)
		if err := config.Save(c.path, c.Cfg); err != nil {
			c.log.Warn().Err(err).Str("path", c.path).Msg("config save failed")
		}
	})
}

// persisted reports whether a field written to the config file changed.
func persisted(a, b settings.Settings) bool {
	return a.Speed != b.Speed ||
		a.Brightness != b.Brightness ||
		a.HWBrightness != b.HWBrightness ||
		a.RPS != b.RPS ||
		a.Percent != b.Percent ||
		a.ArmSpacing != b.ArmSpacing ||
		a.Demo() != b.Demo()
}

func (c *Core) loadShow() {
	path := c.Cfg.Show
	if path == "" {
		return
	}
	fail := func(err error) {
		c.log.Warn().Err(err).Str("show", path).Msg("show not loaded")
		c.Diag.Push(diag.Diagnostic{
			Severity: diag.Warn,
			Code:     diag.ShowLoadFailed,
			Summary:  "show file could not be loaded",
			Detail:   err.Error(),
			Evidence: map[string]any{"path": path},
		})
	}
	prog, err := sequence.LoadFile(path)
	if err != nil {
		fail(err)
		return
	}
	if err := prog.Validate(func(n string) bool { _, ok := c.Reg.Get(n); return ok }); err != nil {
		fail(err)
		return
	}
	eng, reg := c.Eng, c.Reg
	sp := sequence.NewSafePlayer(sequence.Hooks{
		SetIlluminator: func(name, preset string) { _ = eng.SetIlluminator(name, preset, reg) },
		ArmNext:        func(name, preset string) { _ = eng.ArmNext(name, preset, reg) },
		SetCrossfade:   eng.SetCrossfade,
		SetParam:       eng.SetParam,
		SetBool:        eng.SetBool,
		Send:           c.send,
	})
	if err := sp.Load(prog); err != nil {
		fail(err)
		return
	}
	sp.Start()
	c.Show = sp
	c.Loop.Show = sp
	c.log.Info().Str("show", path).Int("clips", len(prog.Clips)).Msg("show loaded")
}

// Preview returns a browser preview server bound to this core. The caller
// adds it as a sink and runs it.
func (c *Core) Preview() *preview.Server {
	return preview.NewServer(preview.Deps{
		Store:   c.Store,
		Channel: c.Channel,
		Diag:    c.Diag,
		Loop:    c.Loop,
		Spec:    c.Cfg.Hardware,
		Driver:  c.Driver,
		FPS:     c.Cfg.FPS,
		Baud:    c.Cfg.Serial.Baud,
	})
}

// Run drives the render loop at the configured rate until ctx ends.
func (c *Core) Run(ctx context.Context) {
	c.Loop.Run(ctx, c.Cfg.FPS)
}

func (c *Core) Close() error {
	var errs []error
	errs = append(errs, c.Channel.Close())
	if c.Output != nil {
		errs = append(errs, c.Output.Close())
	}
	return errors.Join(errs...)
}
