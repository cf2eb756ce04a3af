package tree

import (
	"math"

	"github.com/coreman2200/spiraltree/internal/geometry"
	"github.com/coreman2200/spiraltree/internal/render"
)

var (
	Brown = render.Hex(0x4a3520)
	Green = render.Color{R: 0, G: 0.35, B: 0.1}
	Red   = render.Hex(0xff0000)
	White = render.Hex(0xffffff)
	Gold  = render.Hex(0xffd700)
	// Off is shown where no sample hits the shape.
	Off = render.Color{R: 0.05, G: 0.05, B: 0.05}
)

const (
	ornamentSpacing = 80.0
	ornamentSize    = 25.0
	garlandTurns    = 4.0
	garlandWidth    = 0.3
	starBand        = 100.0
	taper           = 0.95
)

// Shape holds the tree dimensions derived from the display.
type Shape struct {
	TrunkHeight float64
	TrunkRadius float64
	TreeHeight  float64
	BaseRadius  float64
}

func ShapeFor(spec geometry.HardwareSpec) Shape {
	return Shape{
		TrunkHeight: spec.TotalHeightMM * 0.15,
		TrunkRadius: 30,
		TreeHeight:  spec.TotalHeightMM * 0.85,
		BaseRadius:  spec.ArmLengthMM * 0.85,
	}
}

// Features toggles the overlays.
type Features struct {
	Ornaments bool
	Garland   bool
	Star      bool
}

var AllFeatures = Features{Ornaments: true, Garland: true, Star: true}

// Shade tests one sample point at cylindrical (radius, angle, height) and
// simulated time t. It returns the color and whether the point is inside the
// tree.
func Shade(radius, angle, y, t float64, sh Shape, f Features) (render.Color, bool) {
	x := radius * math.Cos(angle)
	z := radius * math.Sin(angle)
	d := math.Sqrt(x*x + z*z)

	switch {
	case y < sh.TrunkHeight && d < sh.TrunkRadius:
		return Brown, true

	case y >= sh.TrunkHeight && y <= sh.TreeHeight:
		h := (y - sh.TrunkHeight) / (sh.TreeHeight - sh.TrunkHeight)
		cone := sh.BaseRadius * (1 - h*taper)
		if d >= cone {
			return render.Color{}, false
		}
		c := Green
		if f.Ornaments {
			c = ornament(c, y, angle, d, cone)
		}
		if f.Garland {
			phase := (y/sh.TreeHeight)*math.Pi*garlandTurns + t*0.5
			diff := math.Abs(math.Mod(angle-phase, 2*math.Pi) - math.Pi)
			if diff < garlandWidth && d > cone*0.7 {
				c = Gold
			}
		}
		return c, true

	case f.Star && y > sh.TreeHeight && y < sh.TreeHeight+starBand:
		r := 40 + 20*math.Sin(t*3)
		if d < r && d > r*0.3 {
			pulse := 0.7 + 0.3*math.Sin(t*4)
			return render.Color{R: 1, G: float32(0.843 * pulse), B: 0}, true
		}
	}
	return render.Color{}, false
}

// ornament places red and white balls from a hash of the height and angle
// buckets, inside an 80mm repeating band.
func ornament(c render.Color, y, angle, d, cone float64) render.Color {
	hash := int64(math.Floor(y/ornamentSpacing))*7 + int64(math.Floor(angle/(math.Pi/6)))*13
	inBand := math.Abs(math.Mod(y, ornamentSpacing)-ornamentSpacing/2) < ornamentSize
	switch {
	case hash%11 == 0 && d > cone*0.6:
		if inBand {
			return Red
		}
	case hash%13 == 0 && d > cone*0.5:
		if inBand {
			return White
		}
	}
	return c
}

// Illuminator renders the volumetric tree. Above speed 10 each LED averages
// several angular samples spread across one arm pitch.
type Illuminator struct {
	name   string
	preset string
	shape  Shape
	sized  bool
}

func New() *Illuminator { return &Illuminator{name: render.Tree, preset: "Classic"} }

func (il *Illuminator) Name() string { return il.name }
func (il *Illuminator) Presets() []string {
	return []string{"Classic", "Plain", "GarlandOnly", "StarOnly"}
}

func (il *Illuminator) ApplyPreset(p string, u *render.Uniforms) {
	il.preset = p
	if u == nil {
		return
	}
	if u.Bools == nil {
		u.Bools = map[string]bool{}
	}
	f := AllFeatures
	switch p {
	case "Plain":
		f = Features{}
	case "GarlandOnly":
		f = Features{Garland: true}
	case "StarOnly":
		f = Features{Star: true}
	}
	u.Bools["Ornaments"] = f.Ornaments
	u.Bools["Garland"] = f.Garland
	u.Bools["Star"] = f.Star
}

// Shape overrides the dimensions derived from the geometry.
func (il *Illuminator) SetShape(sh Shape) { il.shape, il.sized = sh, true }

func (il *Illuminator) Illuminate(dst *render.Frame, g *geometry.Model, p render.Pose, u *render.Uniforms) {
	sh := il.shape
	if !il.sized {
		sh = ShapeFor(g.Spec)
	}
	f := Features{
		Ornaments: bget(u, "Ornaments", true),
		Garland:   bget(u, "Garland", true),
		Star:      bget(u, "Star", true),
	}
	samples, showOff := 1, true
	if u != nil {
		samples = u.Settings.Samples()
		showOff = u.Settings.ShowLEDs
	}
	step := 2 * math.Pi / float64(g.ArmCount())

	for a, arm := range g.Arms {
		angle := arm.BaseAngle + p.Time
		if a < len(p.Angles) {
			angle = p.Angles[a]
		}
		for j, led := range g.LEDs[a] {
			c, ok := Sample(led.Radius, angle, arm.Height, p.Time, samples, step, sh, f)
			if ok {
				dst.Set(a, j, c, true)
			} else {
				dst.Set(a, j, Off, showOff)
			}
		}
	}
}

// Sample averages n shape tests at angle + (s/n)*step. It reports false when
// no sample hits.
func Sample(radius, angle, y, t float64, n int, step float64, sh Shape, f Features) (render.Color, bool) {
	if n < 1 {
		n = 1
	}
	var acc render.Color
	hits := 0
	for s := 0; s < n; s++ {
		a := angle + float64(s)/float64(n)*step
		if c, ok := Shade(radius, a, y, t, sh, f); ok {
			acc = acc.Add(c)
			hits++
		}
	}
	if hits == 0 {
		return render.Color{}, false
	}
	if hits == 1 {
		return acc, true
	}
	return acc.Scale(1 / float32(hits)), true
}

func bget(u *render.Uniforms, key string, def bool) bool {
	if u == nil || u.Bools == nil {
		return def
	}
	if v, ok := u.Bools[key]; ok {
		return v
	}
	return def
}
