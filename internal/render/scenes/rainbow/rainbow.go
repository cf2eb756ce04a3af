package rainbow

import (
	"github.com/coreman2200/spiraltree/internal/geometry"
	"github.com/coreman2200/spiraltree/internal/render"
)

// Rainbow chases a color wheel along the display.
// Params:
//   - "Speed" (wheel positions per simulated second, default 50)
//   - "Axis"  (0 = along each arm, 1 = up the stack; default 0)
type Rainbow struct {
	name string
}

func New(name string) *Rainbow { return &Rainbow{name: name} }

func (r *Rainbow) Name() string { return r.name }

func (r *Rainbow) Presets() []string { return []string{"Chase", "Spiral", "Still"} }

func (r *Rainbow) ApplyPreset(name string, u *render.Uniforms) {
	if u == nil {
		return
	}
	if u.Params == nil {
		u.Params = map[string]float64{}
	}
	switch name {
	case "Chase":
		u.Params["Axis"] = 0
		u.Params["Speed"] = 50
	case "Spiral":
		u.Params["Axis"] = 1
		u.Params["Speed"] = 50
	case "Still":
		u.Params["Speed"] = 0
	}
}

// Wheel maps 0..255 around red -> blue -> green -> red.
func Wheel(pos int) render.Color {
	pos &= 255
	var r, g, b int
	switch {
	case pos < 85:
		r, g, b = pos*3, 255-pos*3, 0
	case pos < 170:
		pos -= 85
		r, g, b = 255-pos*3, 0, pos*3
	default:
		pos -= 170
		r, g, b = 0, pos*3, 255-pos*3
	}
	return render.Color{R: float32(r) / 255, G: float32(g) / 255, B: float32(b) / 255}
}

func (r *Rainbow) Illuminate(dst *render.Frame, g *geometry.Model, p render.Pose, u *render.Uniforms) {
	axis := int(u.Param("Axis", 0))
	offset := int(p.Time * u.Param("Speed", 50))
	n := dst.PerArm
	if axis == 1 {
		n = dst.Arms
	}
	if n <= 0 {
		return
	}
	for a := 0; a < dst.Arms; a++ {
		for j := 0; j < dst.PerArm; j++ {
			i := j
			if axis == 1 {
				i = a
			}
			dst.Set(a, j, Wheel(i*256/n+offset), true)
		}
	}
}
