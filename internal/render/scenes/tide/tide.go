// Package tide floods the tree with a moving waterline. A small wave field
// wraps around the trunk (angle × radius); LEDs below the local surface are
// water, LEDs above it are sky.
package tide

import (
	"math"

	"github.com/coreman2200/spiraltree/internal/geometry"
	"github.com/coreman2200/spiraltree/internal/render"
)

// angular resolution of the wave field
const ring = 32

type Tide struct {
	name string

	// wave field, ring × radial bins
	h, v  []float64
	radii int
	tmp   []float64
}

func New(name string) *Tide { return &Tide{name: name} }

func (t *Tide) Name() string { return t.name }

func (t *Tide) Presets() []string { return []string{"CalmDawn", "SunnyDay", "Sunset", "NightStorm"} }

func assign(u *render.Uniforms, kv map[string]float64) {
	if u == nil {
		return
	}
	if u.Params == nil {
		u.Params = map[string]float64{}
	}
	for k, v := range kv {
		u.Params[k] = v
	}
}

func (t *Tide) ApplyPreset(p string, u *render.Uniforms) {
	switch p {
	case "CalmDawn":
		assign(u, map[string]float64{
			"TideAmp": 0.2, "TidePeriodS": 120, "WaveSpeed": 0.9, "Damping": 0.015, "Wind": 0.05,
			"Foaminess": 0.15, "WaterHue": 0.58, "WaterAbsorb": 0.2, "SunElev": -0.1, "Storminess": 0,
		})
	case "SunnyDay":
		assign(u, map[string]float64{
			"TideAmp": 0.25, "TidePeriodS": 180, "WaveSpeed": 1.2, "Damping": 0.01, "Wind": 0.1,
			"Foaminess": 0.18, "WaterHue": 0.55, "WaterAbsorb": 0.15, "SunElev": 0.8, "Storminess": 0,
		})
	case "Sunset":
		assign(u, map[string]float64{
			"TideAmp": 0.22, "TidePeriodS": 180, "WaveSpeed": 1.0, "Damping": 0.012, "Wind": 0.08,
			"Foaminess": 0.14, "WaterHue": 0.53, "WaterAbsorb": 0.18, "SunElev": 0.05, "Storminess": 0,
		})
	case "NightStorm":
		assign(u, map[string]float64{
			"TideAmp": 0.3, "TidePeriodS": 150, "WaveSpeed": 1.3, "Damping": 0.02, "Wind": 0.35,
			"Foaminess": 0.3, "WaterHue": 0.6, "WaterAbsorb": 0.25, "SunElev": -0.9, "Storminess": 0.8,
			"LightningRate": 0.15,
		})
	}
}

func (t *Tide) reset(radii int) {
	t.radii = radii
	n := ring * radii
	t.h, t.v, t.tmp = make([]float64, n), make([]float64, n), make([]float64, n)
	for a := 0; a < ring; a++ {
		for j := 0; j < radii; j++ {
			t.h[t.idx(a, j)] = math.Sin(float64(37*a+57*j))*0.03 + math.Sin(float64(11*a+23*j))*0.02
		}
	}
}

// idx wraps around the ring and clamps along the radius.
func (t *Tide) idx(a, j int) int {
	a = ((a % ring) + ring) % ring
	if j < 0 {
		j = 0
	} else if j >= t.radii {
		j = t.radii - 1
	}
	return a*t.radii + j
}

// step advances the wave equation one fixed 16 ms step, then removes the
// mean and clips so the field cannot drift or run away.
func (t *Tide) step(c, damping, wind, hMax float64) {
	const dt = 0.016
	for a := 0; a < ring; a++ {
		for j := 0; j < t.radii; j++ {
			i := t.idx(a, j)
			lap := t.h[t.idx(a-1, j)] + t.h[t.idx(a+1, j)] + t.h[t.idx(a, j-1)] + t.h[t.idx(a, j+1)] - 4*t.h[i]
			t.v[i] += c * c * lap * dt
			t.v[i] *= 1 - damping
			t.v[i] += wind * 0.02 * math.Sin(0.4*float64(a)+0.13*float64(j))
		}
	}
	for i := range t.h {
		t.h[i] += t.v[i] * dt
	}
	// 1-4-1 smoothing around the ring
	for a := 0; a < ring; a++ {
		for j := 0; j < t.radii; j++ {
			t.tmp[t.idx(a, j)] = (t.h[t.idx(a-1, j)] + 4*t.h[t.idx(a, j)] + t.h[t.idx(a+1, j)]) / 6
		}
	}
	var sum float64
	for _, x := range t.tmp {
		sum += x
	}
	mean := sum / float64(len(t.tmp))
	for i, x := range t.tmp {
		t.h[i] = clamp(x-mean, -hMax, hMax)
	}
}

func (t *Tide) foamy(i int, foaminess float64) bool {
	return math.Abs(t.v[i])*4 > 0.15+0.8*(1-foaminess)
}

func (t *Tide) Illuminate(dst *render.Frame, g *geometry.Model, p render.Pose, u *render.Uniforms) {
	if g == nil || dst.PerArm == 0 {
		dst.Fill(render.Color{}, false)
		return
	}
	if t.radii != dst.PerArm {
		t.reset(dst.PerArm)
	}
	t.step(u.Param("WaveSpeed", 1.1), u.Param("Damping", 0.012), u.Param("Wind", 0.08), clamp01(u.Param("HMax", 0.35)))

	tide := u.Param("TideAmp", 0.22) * math.Sin(2*math.Pi*p.Time/math.Max(1e-6, u.Param("TidePeriodS", 180)))
	level := clamp01(u.Param("SeaLevel", 0.45) + tide)
	waveAmp := u.Param("WaveAmp", 0.1)
	hue, absorb := u.Param("WaterHue", 0.56), u.Param("WaterAbsorb", 0.18)
	foaminess := u.Param("Foaminess", 0.18)
	sun := u.Param("SunElev", 0.5)

	flash := 0.0
	if rate := u.Param("LightningRate", 0); u.Param("Storminess", 0) > 0 && rate > 0 {
		if fract(math.Sin(p.Time*13.37)*43758.5453) < rate*0.02 {
			flash = 1
		}
	}

	top := g.StackHeight()
	if top <= 0 {
		top = 1
	}
	wr, wg, wb := hsv(hue, 0.85, 0.9)
	for a := 0; a < dst.Arms; a++ {
		ang := g.Arms[a].BaseAngle
		if a < len(p.Angles) {
			ang = p.Angles[a]
		}
		bin := int(math.Floor(fract(ang/(2*math.Pi)) * ring))
		y := g.Arms[a].Height / top
		for j := 0; j < dst.PerArm; j++ {
			i := t.idx(bin, j)
			surf := level + waveAmp*t.h[i]
			var r, gg, b float64
			if y <= surf {
				depth := clamp((surf-y)*4, 0, 1)
				r, gg, b = wr*(1-absorb*0.8*depth), wg*(1-absorb*0.5*depth), wb
				near := clamp(1-math.Abs(surf-y)*20, 0, 1)
				glint := 0.3 * near * clamp(0.2+0.8*sun, 0, 1)
				r, gg, b = r+glint, gg+glint, b+glint
				if near > 0.5 && t.foamy(i, foaminess) {
					r, gg, b = r+0.8*near, gg+0.8*near, b+0.8*near
				}
			} else {
				r, gg, b = sky(y, sun)
				r, gg, b = r+flash, gg+flash, b+flash
			}
			dst.Set(a, j, render.Color{R: float32(clamp01(r)), G: float32(clamp01(gg)), B: float32(clamp01(b))}, true)
		}
	}
}

// sky blends night, day and a touch of dusk by sun elevation (-1..1).
func sky(y, sun float64) (float64, float64, float64) {
	day := clamp01((sun + 0.2) * 0.7)
	dusk := clamp01(1-math.Abs(sun)*1.8) * 0.35
	top := mix3([3]float64{0.02, 0.04, 0.10}, [3]float64{0.30, 0.55, 1.00}, day)
	bot := mix3([3]float64{0.05, 0.07, 0.12}, [3]float64{0.65, 0.80, 1.00}, day)
	top = mix3(top, [3]float64{0.35, 0.20, 0.45}, dusk)
	bot = mix3(bot, [3]float64{1.00, 0.50, 0.20}, dusk)
	c := mix3(bot, top, y)
	return c[0], c[1], c[2]
}

func hsv(h, s, v float64) (float64, float64, float64) {
	h = fract(h)
	i := int(h * 6)
	f := h*6 - float64(i)
	p, q, t := v*(1-s), v*(1-f*s), v*(1-(1-f)*s)
	switch i % 6 {
	case 0:
		return v, t, p
	case 1:
		return q, v, p
	case 2:
		return p, v, t
	case 3:
		return p, q, v
	case 4:
		return t, p, v
	default:
		return v, p, q
	}
}

func mix3(a, b [3]float64, t float64) [3]float64 {
	return [3]float64{a[0] + (b[0]-a[0])*t, a[1] + (b[1]-a[1])*t, a[2] + (b[2]-a[2])*t}
}

func clamp(x, lo, hi float64) float64 { return math.Max(lo, math.Min(hi, x)) }
func clamp01(x float64) float64       { return clamp(x, 0, 1) }
func fract(x float64) float64         { return x - math.Floor(x) }
