package led

import (
	"errors"
	"fmt"
	"image"
	"io"

	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/nrzled"
	"periph.io/x/devices/v3/screen1d"
	"periph.io/x/host/v3"
)

// DefaultFreq drives WS2812 strips over SPI with three SPI bits per data bit.
const DefaultFreq = 2500 * physic.KiloHertz

// Strip draws RGB frames onto a one-row periph display: an nrzled strip or
// the ANSI console stand-in.
type Strip struct {
	dev  display.Drawer
	img  *image.NRGBA
	port io.Closer
}

// NewStrip wraps dev. port, when set, is closed after the device halts.
func NewStrip(dev display.Drawer, port io.Closer) *Strip {
	b := dev.Bounds()
	return &Strip{dev: dev, img: image.NewNRGBA(image.Rect(0, 0, b.Dx(), 1)), port: port}
}

// OpenNRZ opens the named SPI port ("" picks the first one) and drives count
// WS2812 pixels on it.
func OpenNRZ(name string, count int, freq physic.Frequency) (*Strip, error) {
	if count <= 0 {
		return nil, fmt.Errorf("invalid LED count: %d", count)
	}
	if freq <= 0 {
		freq = DefaultFreq
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph init: %w", err)
	}
	p, err := spireg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open spi %q: %w", name, err)
	}
	s, err := NewNRZ(p, count, freq)
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	s.port = p
	return s, nil
}

// NewNRZ drives count pixels over an already opened port.
func NewNRZ(p spi.Port, count int, freq physic.Frequency) (*Strip, error) {
	d, err := nrzled.NewSPI(p, &nrzled.Opts{NumPixels: count, Channels: 3, Freq: freq})
	if err != nil {
		return nil, fmt.Errorf("nrzled: %w", err)
	}
	return NewStrip(d, nil), nil
}

// NewConsole renders count pixels as a colored line on the terminal.
func NewConsole(count int) *Strip {
	return NewStrip(screen1d.New(&screen1d.Opts{X: count}), nil)
}

func (s *Strip) String() string { return s.dev.String() }

func (s *Strip) Write(rgb []byte) error {
	w := s.img.Rect.Dx()
	for x := 0; x < w; x++ {
		o := x * 4
		if 3*x+2 < len(rgb) {
			s.img.Pix[o], s.img.Pix[o+1], s.img.Pix[o+2] = rgb[3*x], rgb[3*x+1], rgb[3*x+2]
		} else {
			s.img.Pix[o], s.img.Pix[o+1], s.img.Pix[o+2] = 0, 0, 0
		}
		s.img.Pix[o+3] = 0xff
	}
	return s.dev.Draw(s.dev.Bounds(), s.img, image.Point{})
}

func (s *Strip) Close() error {
	err := s.dev.Halt()
	if s.port != nil {
		err = errors.Join(err, s.port.Close())
	}
	return err
}
