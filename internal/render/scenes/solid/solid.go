package solid

import (
	"math"
	"strings"

	"github.com/coreman2200/spiraltree/internal/geometry"
	"github.com/coreman2200/spiraltree/internal/render"
)

// Solid lights every LED with one color. It supports presets and an optional
// "PulseHz" param that modulates brightness.
type Solid struct {
	name string
	c    render.Color
}

func New(name string, c render.Color) *Solid { return &Solid{name: name, c: c} }

func (s *Solid) Name() string { return s.name }

func (s *Solid) Presets() []string { return []string{"Red", "Green", "Blue", "White", "Black"} }

func (s *Solid) Color() render.Color { return s.c }

func (s *Solid) ApplyPreset(name string, u *render.Uniforms) {
	switch strings.ToLower(name) {
	case "red":
		s.c = render.Hex(0xff0000)
	case "green":
		s.c = render.Hex(0x00ff00)
	case "blue":
		s.c = render.Hex(0x0000ff)
	case "white":
		s.c = render.Hex(0xffffff)
	case "black":
		s.c = render.Color{}
	}
}

func (s *Solid) Illuminate(dst *render.Frame, _ *geometry.Model, p render.Pose, u *render.Uniforms) {
	scale := float32(1.0)
	if hz := u.Param("PulseHz", 0); hz > 0 {
		scale = float32(0.5 + 0.5*math.Sin(2*math.Pi*hz*p.Time))
	}
	dst.Fill(s.c.Scale(scale), true)
}
