// Command treesim runs the display headless against the simulator driver and
// logs what the render loop is doing. With -fast it drives a manual clock
// instead of waiting on wall time.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/spiraltree/internal/app"
	"github.com/coreman2200/spiraltree/internal/config"
	"github.com/coreman2200/spiraltree/internal/led"
	"github.com/coreman2200/spiraltree/internal/render"
	"github.com/coreman2200/spiraltree/internal/settings"
)

func main() {
	var (
		configPath = flag.String("config", "", "optional config file")
		show       = flag.String("show", "", "show file to play")
		seconds    = flag.Float64("seconds", 12, "simulated run time")
		fps        = flag.Int("fps", 30, "frames per second")
		fast       = flag.Bool("fast", false, "run on a manual clock as fast as possible")
		test       = flag.String("test", "", "start this self-test instead of demo mode")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	cfg.Driver = "sim"
	cfg.FPS = *fps
	if *show != "" {
		cfg.Show = *show
	}

	opts := app.Options{Config: cfg, Log: log.Logger}
	var clk *render.ManualClock
	if *fast {
		clk = render.NewManualClock(time.Now())
		opts.Clock = clk
	}
	core, err := app.New(opts)
	if err != nil {
		log.Fatal().Err(err).Msg("startup")
	}
	defer core.Close()
	sim := core.Output.Driver.(*led.Sim)

	if *test != "" {
		core.Store.Dispatch(settings.Event{Kind: settings.RunTest, Value: *test})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report := func() {
		st := core.Loop.Stats()
		ev := log.Info().
			Float64("sim_time", st.SimTime).
			Str("illuminator", st.Illuminator).
			Str("mode", string(core.Store.Snapshot().Mode)).
			Int("frames", sim.Frames()).
			Float64("render_ms", st.RenderMS)
		if st.Fading {
			ev = ev.Float64("xfade", st.Alpha)
		}
		if core.Show != nil {
			st := core.Show.Status()
			ev = ev.Str("clip", st.Clip).Str("show", string(st.State))
		}
		ev.Msg("tick")
	}

	if *fast {
		period := time.Second / time.Duration(*fps)
		n := int(*seconds * float64(*fps))
		for i := 0; i < n && ctx.Err() == nil; i++ {
			core.Loop.Tick(ctx)
			clk.Advance(period)
			if i%*fps == 0 {
				report()
			}
		}
		report()
		return
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(*seconds*float64(time.Second)))
	defer cancel()
	go core.Run(ctx)
	tick := time.NewTicker(time.Second)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			report()
			return
		case <-tick.C:
			report()
		}
	}
}
