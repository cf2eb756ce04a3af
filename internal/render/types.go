package render

import (
	"sort"

	"github.com/coreman2200/spiraltree/internal/geometry"
	"github.com/coreman2200/spiraltree/internal/settings"
)

// Color is linear RGB, nominally 0..1 per channel.
type Color struct{ R, G, B float32 }

// Hex builds a Color from 0xRRGGBB.
func Hex(v uint32) Color {
	return Color{
		R: float32((v>>16)&0xff) / 255,
		G: float32((v>>8)&0xff) / 255,
		B: float32(v&0xff) / 255,
	}
}

func (c Color) Scale(s float32) Color { return Color{c.R * s, c.G * s, c.B * s} }
func (c Color) Add(o Color) Color     { return Color{c.R + o.R, c.G + o.G, c.B + o.B} }

// RGB8 quantizes to bytes with clamping.
func (c Color) RGB8() (r, g, b uint8) {
	return to8(c.R), to8(c.G), to8(c.B)
}

func to8(x float32) uint8 {
	if x <= 0 {
		return 0
	}
	if x >= 1 {
		return 255
	}
	return uint8(x*255 + 0.5)
}

// Pose is the per-frame motion state: simulated time and the current
// rotation of every arm in radians. Seq counts frames from 1.
type Pose struct {
	Seq    uint64
	Time   float64
	Angles []float64
}

// Uniforms are the inputs shared by every LED in a frame.
type Uniforms struct {
	Settings settings.Settings
	Params   map[string]float64
	Bools    map[string]bool
}

func NewUniforms(s settings.Settings) *Uniforms {
	return &Uniforms{Settings: s, Params: map[string]float64{}, Bools: map[string]bool{}}
}

// Clone copies the maps so the result can be mutated independently.
func (u *Uniforms) Clone() *Uniforms {
	if u == nil {
		return NewUniforms(settings.Defaults())
	}
	c := NewUniforms(u.Settings)
	for k, v := range u.Params {
		c.Params[k] = v
	}
	for k, v := range u.Bools {
		c.Bools[k] = v
	}
	return c
}

// Param returns a numeric parameter or def when unset.
func (u *Uniforms) Param(name string, def float64) float64 {
	if u == nil || u.Params == nil {
		return def
	}
	if v, ok := u.Params[name]; ok {
		return v
	}
	return def
}

// Illuminator computes the color and visibility of every LED for one frame.
// Implementations write only into dst and must not keep references to it.
type Illuminator interface {
	Name() string
	Presets() []string
	ApplyPreset(name string, u *Uniforms)
	Illuminate(dst *Frame, g *geometry.Model, p Pose, u *Uniforms)
}

type Registry struct{ m map[string]Illuminator }

func NewRegistry() *Registry { return &Registry{m: map[string]Illuminator{}} }

func (r *Registry) Register(il Illuminator) {
	if il == nil {
		return
	}
	r.m[il.Name()] = il
}

func (r *Registry) Get(name string) (Illuminator, bool) { il, ok := r.m[name]; return il, ok }

// List returns the registered names in sorted order.
func (r *Registry) List() []string {
	out := make([]string, 0, len(r.m))
	for k := range r.m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
