// Command treedev is a stand-in for the strip controller. It speaks the
// controller's line protocol on a serial port (or stdio) and drives an LED
// driver of its own, so the display can be exercised without the real board.
package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/physic"

	"github.com/coreman2200/spiraltree/internal/command"
	"github.com/coreman2200/spiraltree/internal/config"
	"github.com/coreman2200/spiraltree/internal/device"
	"github.com/coreman2200/spiraltree/internal/led"
)

type stdio struct {
	io.Reader
	io.Writer
}

func main() {
	var (
		configPath = flag.String("config", "", "optional config file (device: section)")
		port       = flag.String("port", "", "serial port to listen on")
		baud       = flag.Int("baud", command.DefaultBaud, "serial baud rate")
		useStdio   = flag.Bool("stdio", false, "speak the protocol on stdin/stdout")
		driver     = flag.String("driver", "sim", "LED driver: sim | nrz | console")
		spiDev     = flag.String("spi", "", "SPI port for the nrz driver")
		seed       = flag.Int64("seed", 0, "palette seed, 0 = clock")
	)
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	opts := cfg.Device
	if *seed != 0 {
		opts.Seed = *seed
	}
	n := opts.Strips * opts.PerStrip

	var d led.Driver
	switch *driver {
	case "nrz":
		d, err = led.OpenNRZ(*spiDev, n, physic.Frequency(cfg.SPI.SpeedHz)*physic.Hertz)
	case "console":
		d = led.NewConsole(n)
	default:
		d = led.NewSim(log.Logger)
	}
	if err != nil {
		log.Fatal().Err(err).Str("driver", *driver).Msg("LED driver")
	}

	dev, err := device.New(opts, d, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("device")
	}
	defer dev.Close()

	var rw io.ReadWriter
	switch {
	case *useStdio:
		rw = stdio{os.Stdin, os.Stdout}
	case *port != "":
		p, err := command.OpenSerial(*port, *baud)
		if err != nil {
			log.Fatal().Err(err).Str("port", *port).Msg("open serial")
		}
		defer p.Close()
		rw = p
	default:
		log.Fatal().Msg("need -port or -stdio")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	log.Info().Int("strips", opts.Strips).Int("per_strip", opts.PerStrip).Str("driver", *driver).Msg("controller running")
	if err := dev.Serve(ctx, rw); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("serve")
	}
}
