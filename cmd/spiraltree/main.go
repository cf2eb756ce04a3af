package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/spiraltree/internal/app"
	"github.com/coreman2200/spiraltree/internal/config"
	"github.com/coreman2200/spiraltree/internal/preview/rlview"
	"github.com/coreman2200/spiraltree/internal/preview/term"
	"github.com/coreman2200/spiraltree/internal/settings"
)

func main() {
	var (
		configPath = flag.String("config", "spiraltree.yaml", "path to config file")
		driver     = flag.String("driver", "", "LED driver: sim | nrz | console | none")
		addr       = flag.String("addr", "", "HTTP listen address")
		fps        = flag.Int("fps", 0, "target frames per second")
		port       = flag.String("port", "", "serial port of the controller")
		show       = flag.String("show", "", "show file to play in demo mode")
		persist    = flag.Bool("persist", true, "write setting changes back to the config file")
		termView   = flag.Bool("term", false, "draw the tree in this terminal")
		rlView     = flag.Bool("rl", false, "open the 3D preview window")
		logFile    = flag.String("log-file", "", "write logs here instead of stdout")
	)
	flag.Parse()

	// ---- Logging ----
	var out io.Writer = os.Stdout
	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Fatal().Err(err).Str("path", *logFile).Msg("open log file")
		}
		defer f.Close()
		out = f
	} else if *termView {
		out = io.Discard
	}
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen, NoColor: *logFile != ""})

	// ---- Config (flags override file and env) ----
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *configPath).Msg("config load failed")
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "driver":
			cfg.Driver = *driver
		case "addr":
			cfg.Addr = *addr
		case "fps":
			cfg.FPS = *fps
		case "port":
			cfg.Serial.Port = *port
			cfg.Serial.AutoConnect = *port != ""
		case "show":
			cfg.Show = *show
		}
	})
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	saveTo := ""
	if *persist {
		saveTo = *configPath
	}
	core, err := app.New(app.Options{Config: cfg, ConfigPath: saveTo, Log: log.Logger})
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- Preview server ----
	srv := core.Preview()
	core.Eng.AddSink(srv)
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{StackSize: 4 << 10}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))
	srv.Register(e)

	go srv.Run(ctx)
	go func() {
		log.Info().Str("addr", cfg.Addr).Str("driver", core.Driver).Msg("HTTP server starting")
		if err := e.Start(cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server stopped")
			stop()
		}
	}()

	dispatch := func(ev settings.Event) { core.Store.Dispatch(ev) }

	// ---- Local views ----
	if *termView {
		screen, err := tcell.NewScreen()
		if err != nil {
			log.Fatal().Err(err).Msg("terminal unavailable")
		}
		v, err := term.New(screen, core.Geo)
		if err != nil {
			log.Fatal().Err(err).Msg("terminal unavailable")
		}
		v.OnKey = dispatch
		core.Eng.AddSink(v)
		go func() {
			v.Run(ctx)
			stop()
		}()
		defer v.Close()
	}

	var win *rlview.Window
	if *rlView {
		sc := rlview.NewScene(core.Geo)
		core.Eng.AddSink(sc)
		win = &rlview.Window{Scene: sc, OnKey: dispatch, Title: "Spiral Tree"}
	}

	go core.Run(ctx)

	if win != nil {
		// the window owns the main thread until it closes
		if err := win.Run(ctx); err != nil {
			log.Warn().Err(err).Msg("3D preview unavailable")
		} else {
			stop()
		}
	}
	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := e.Shutdown(shutCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	if err := core.Close(); err != nil {
		log.Warn().Err(err).Msg("close")
	}
}
