package palette

import (
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/coreman2200/spiraltree/internal/geometry"
	"github.com/coreman2200/spiraltree/internal/render"
	"github.com/coreman2200/spiraltree/internal/settings"
)

// Category colors, matching the controller's pure CRGB values.
var (
	Green = render.Color{G: 1}
	Red   = render.Color{R: 1}
	Blue  = render.Color{B: 1}
	Black = render.Color{}
)

// Pick maps a uniform draw v in [0,100) to a category. The weights are not
// renormalized: anything past green+red is blue.
func Pick(v int, p settings.Percent) render.Color {
	switch {
	case v < p.Green:
		return Green
	case v < p.Green+p.Red:
		return Red
	default:
		return Blue
	}
}

// FromRGB converts an 8-bit broadcast color.
func FromRGB(c settings.RGB) render.Color {
	return render.Color{R: float32(c.R) / 255, G: float32(c.G) / 255, B: float32(c.B) / 255}
}

// Illuminator holds a command-driven color per LED. Frames only re-present the
// stored colors; the colors change when a new palette op arrives.
type Illuminator struct {
	mu     sync.Mutex
	rng    *rand.Rand
	colors []render.Color
	epoch  uint64
	seeded bool
}

// New seeds from seed, or from the clock when seed is 0.
func New(seed int64) *Illuminator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Illuminator{rng: rand.New(rand.NewSource(seed))}
}

func (il *Illuminator) Name() string                                { return render.Palette }
func (il *Illuminator) Presets() []string                           { return []string{"Random"} }
func (il *Illuminator) ApplyPreset(name string, u *render.Uniforms) {}

func (il *Illuminator) ensure(n int) {
	if len(il.colors) != n {
		il.colors = make([]render.Color, n)
		il.seeded = false
	}
}

// Randomize draws a category for every LED independently.
func (il *Illuminator) Randomize(n int, p settings.Percent) {
	il.mu.Lock()
	defer il.mu.Unlock()
	il.randomize(n, p)
}

func (il *Illuminator) randomize(n int, p settings.Percent) {
	il.ensure(n)
	for i := range il.colors {
		il.colors[i] = Pick(il.rng.Intn(100), p)
	}
	il.seeded = true
}

// SetAll broadcasts c to every LED.
func (il *Illuminator) SetAll(n int, c render.Color) {
	il.mu.Lock()
	defer il.mu.Unlock()
	il.setAll(n, c)
}

func (il *Illuminator) setAll(n int, c render.Color) {
	il.ensure(n)
	for i := range il.colors {
		il.colors[i] = c
	}
	il.seeded = true
}

// Off is SetAll(black).
func (il *Illuminator) Off(n int) { il.SetAll(n, Black) }

// Colors returns a copy of the stored assignment.
func (il *Illuminator) Colors() []render.Color {
	il.mu.Lock()
	defer il.mu.Unlock()
	return append([]render.Color(nil), il.colors...)
}

func (il *Illuminator) Illuminate(dst *render.Frame, g *geometry.Model, p render.Pose, u *render.Uniforms) {
	n := dst.Len()
	il.mu.Lock()
	if u != nil {
		op := u.Settings.Palette
		if op.Epoch != il.epoch || !il.seeded || len(il.colors) != n {
			il.apply(n, op, u.Settings.Percent)
			il.epoch = op.Epoch
		}
	}
	il.ensure(n)
	copy(dst.Colors, il.colors)
	il.mu.Unlock()
	for i := range dst.Visible {
		dst.Visible[i] = true
	}
}

// apply runs with il.mu held.
func (il *Illuminator) apply(n int, op settings.PaletteOp, pct settings.Percent) {
	if op.Randomize || op.Epoch == 0 {
		il.randomize(n, pct)
		log.Debug().Uint64("epoch", op.Epoch).Ints("percent", []int{pct.Green, pct.Red, pct.Blue}).Msg("palette randomized")
		return
	}
	il.setAll(n, FromRGB(op.Color))
	log.Debug().Uint64("epoch", op.Epoch).Msg("palette broadcast")
}
