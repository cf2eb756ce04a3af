package calib

import (
	"math"

	"github.com/coreman2200/spiraltree/internal/geometry"
	"github.com/coreman2200/spiraltree/internal/render"
)

// Renderer lights arm i in channel i%3 (red, green, blue), darkens along the
// arm from trunk to tip and pulls toward white going up the stack. Wiring
// faults show up as a broken channel rhythm or a reversed fade.
type Renderer struct {
	name   string
	preset string
}

func New(name string) *Renderer {
	return &Renderer{name: name, preset: "ArmChanSweep"}
}

func (r *Renderer) Name() string      { return r.name }
func (r *Renderer) Presets() []string { return []string{"ArmChanSweep", "Quadrants"} }

func (r *Renderer) ApplyPreset(p string, u *render.Uniforms) {
	r.preset = p
	if u == nil {
		return
	}
	ensure(u, map[string]float64{
		"Gamma":         1.7,
		"TipGamma":      1.4,
		"TopWhitePow":   2.0,
		"TopWhiteMix":   0.6,
		"BaseIntensity": 1.0,
		"TipFloor":      0.0,
		"Saturation":    1.0,
	})
}

// --- tiny helpers ---

func pget(u *render.Uniforms, key string, def float64) float64 {
	return u.Param(key, def)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func ensure(u *render.Uniforms, kv map[string]float64) {
	if u.Params == nil {
		u.Params = map[string]float64{}
	}
	for k, v := range kv {
		if _, ok := u.Params[k]; !ok {
			u.Params[k] = v
		}
	}
}

func norm(i, n int) float64 {
	if n <= 1 {
		return 0
	}
	return float64(i) / float64(n-1)
}

// Illuminate ignores time; the pattern is static so it can be photographed.
func (r *Renderer) Illuminate(dst *render.Frame, _ *geometry.Model, _ render.Pose, u *render.Uniforms) {
	gamma := pget(u, "Gamma", 1.8)
	if gamma <= 0 {
		gamma = 1
	}
	tipPow := pget(u, "TipGamma", 1.2)
	topPow := pget(u, "TopWhitePow", 0.6)
	topMix := clamp01(pget(u, "TopWhiteMix", 1.0))
	tipFloor := clamp01(pget(u, "TipFloor", 0.0))
	baseInt := clamp01(pget(u, "BaseIntensity", 1.0))
	sat := clamp01(pget(u, "Saturation", 1.0))

	for a := 0; a < dst.Arms; a++ {
		// base channel per arm; Quadrants uses the shared spiral angle instead
		ch := a % 3
		if r.preset == "Quadrants" {
			ch = a % 4
		}
		r0, g0, b0 := 0.0, 0.0, 0.0
		switch ch {
		case 0:
			r0 = 1
		case 1:
			g0 = 1
		case 2:
			b0 = 1
		case 3:
			r0, g0 = 1, 1
		}

		ny := norm(a, dst.Arms)
		bt := math.Pow(ny, topPow)
		if a == dst.Arms-1 {
			bt = 1.0
		} else {
			bt *= topMix
		}

		for j := 0; j < dst.PerArm; j++ {
			// trunk -> tip: darken with curve + floor
			nx := norm(j, dst.PerArm)
			lr := 1.0 - math.Pow(nx, tipPow)
			lr = tipFloor + (1.0-tipFloor)*lr

			R, G, B := r0*lr, g0*lr, b0*lr

			R = R + (1.0-R)*bt
			G = G + (1.0-G)*bt
			B = B + (1.0-B)*bt

			if sat < 1.0 {
				Yl := 0.2126*R + 0.7152*G + 0.0722*B
				R = Yl + (R-Yl)*sat
				G = Yl + (G-Yl)*sat
				B = Yl + (B-Yl)*sat
			}

			R = clamp01(R * baseInt)
			G = clamp01(G * baseInt)
			B = clamp01(B * baseInt)

			ig := 1.0 / math.Max(1e-6, gamma)
			dst.Set(a, j, render.Color{
				R: float32(math.Pow(R, ig)),
				G: float32(math.Pow(G, ig)),
				B: float32(math.Pow(B, ig)),
			}, true)
		}
	}
}
