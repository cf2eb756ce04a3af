package selftest

import (
	"strings"
	"sync"

	"github.com/coreman2200/spiraltree/internal/geometry"
	"github.com/coreman2200/spiraltree/internal/render"
)

type Kind string

const (
	None       Kind = ""
	ArmSweep   Kind = "arm_sweep"   // one arm at a time, white
	LEDSweep   Kind = "led_sweep"   // one radial index across every arm, cyan
	Individual Kind = "individual"  // LEDs fill in one by one through a 7-color cycle
	RGBTest    Kind = "rgb_channels"
	AllSame    Kind = "all_same" // red, green, blue, white
)

var Kinds = []Kind{ArmSweep, LEDSweep, Individual, RGBTest, AllSame}

var cycle = []render.Color{
	render.Hex(0xff0000),
	render.Hex(0x00ff00),
	render.Hex(0x0000ff),
	render.Hex(0xffff00),
	render.Hex(0xff00ff),
	render.Hex(0x00ffff),
	render.Hex(0xffffff),
}

type Plan struct {
	Kind Kind
	Hold int // frames per step; 0 means 1
}

type Runner struct {
	plan  Plan
	step  int
	frame int
}

func NewRunner(plan Plan) *Runner {
	if plan.Hold < 1 {
		plan.Hold = 1
	}
	return &Runner{plan: plan}
}

func (r *Runner) Kind() Kind { return r.plan.Kind }

// Steps is the number of distinct steps the plan shows on dst's shape.
func (r *Runner) Steps(arms, perArm int) int {
	switch r.plan.Kind {
	case ArmSweep:
		return arms
	case LEDSweep:
		return perArm
	case Individual:
		return arms * perArm
	case RGBTest:
		return 3
	case AllSame:
		return 4
	}
	return 0
}

// Step fills dst for the current step; returns false when complete.
func (r *Runner) Step(dst *render.Frame) bool {
	dst.Fill(render.Color{}, true)
	if r.step >= r.Steps(dst.Arms, dst.PerArm) {
		return false
	}

	switch r.plan.Kind {
	case ArmSweep:
		for j := 0; j < dst.PerArm; j++ {
			dst.Set(r.step, j, render.Hex(0xffffff), true)
		}
	case LEDSweep:
		for a := 0; a < dst.Arms; a++ {
			dst.Set(a, r.step, render.Hex(0x00ffff), true)
		}
	case Individual:
		for i := 0; i <= r.step; i++ {
			dst.Colors[i] = cycle[i%len(cycle)]
		}
	case RGBTest:
		dst.Fill(cycle[r.step], true)
	case AllSame:
		c := render.Hex(0xffffff)
		if r.step < 3 {
			c = cycle[r.step]
		}
		dst.Fill(c, true)
	}

	r.frame++
	if r.frame >= r.plan.Hold {
		r.frame = 0
		r.step++
	}
	return true
}

// Illuminator runs one plan at a time. The plan is chosen by preset name.
type Illuminator struct {
	Hold   int
	OnDone func(k Kind)

	mu     sync.Mutex
	runner *Runner
	done   bool
}

func New(hold int) *Illuminator { return &Illuminator{Hold: hold} }

func (il *Illuminator) Name() string { return render.SelfTest }

func (il *Illuminator) Presets() []string {
	out := make([]string, len(Kinds))
	for i, k := range Kinds {
		out[i] = string(k)
	}
	return out
}

// ApplyPreset starts the named plan from its first step.
func (il *Illuminator) ApplyPreset(name string, _ *render.Uniforms) {
	k := Kind(strings.ToLower(strings.TrimSpace(name)))
	il.mu.Lock()
	defer il.mu.Unlock()
	il.runner = NewRunner(Plan{Kind: k, Hold: il.Hold})
	il.done = false
}

func (il *Illuminator) Running() (Kind, bool) {
	il.mu.Lock()
	defer il.mu.Unlock()
	if il.runner == nil || il.done {
		return None, false
	}
	return il.runner.Kind(), true
}

func (il *Illuminator) Illuminate(dst *render.Frame, _ *geometry.Model, _ render.Pose, _ *render.Uniforms) {
	il.mu.Lock()
	r := il.runner
	if r == nil || il.done {
		il.mu.Unlock()
		dst.Fill(render.Color{}, true)
		return
	}
	more := r.Step(dst)
	finished := !more && !il.done
	if finished {
		il.done = true
	}
	fn := il.OnDone
	il.mu.Unlock()

	if finished && fn != nil {
		fn(r.Kind())
	}
}
