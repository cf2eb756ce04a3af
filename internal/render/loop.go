package render

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/coreman2200/spiraltree/internal/geometry"
	"github.com/coreman2200/spiraltree/internal/settings"
	"github.com/coreman2200/spiraltree/internal/telemetry"
)

// Illuminator names the loop selects by mode.
const (
	Tree     = "tree"
	Solid    = "solid"
	Palette  = "palette"
	SelfTest = "selftest"
)

const DefaultFPS = 60

// Snapshotter yields the settings for one frame.
type Snapshotter interface {
	Snapshot() settings.Settings
}

// Show is a timeline that picks illuminators itself while demo mode is on.
type Show interface {
	Running() bool
	Tick(dt float64)
	Resync()
}

// Loop advances simulated time, rotates the arms and renders one frame per
// tick. It has no pause state; it runs until its context ends.
type Loop struct {
	Engine   *Engine
	Registry *Registry
	Settings Snapshotter
	Clock    Clock
	Show     Show
	Inst     *telemetry.Instruments

	mu       sync.Mutex
	started  bool
	last     time.Time
	simTime  float64
	seq      uint64
	angles   []float64
	selected string
	showing  bool
}

func NewLoop(e *Engine, reg *Registry, st Snapshotter) *Loop {
	return &Loop{
		Engine:   e,
		Registry: reg,
		Settings: st,
		Clock:    SystemClock{},
		Inst:     telemetry.Default(),
		angles:   make([]float64, e.Geo.ArmCount()),
	}
}

// SimTime is the simulated time reached by the last tick.
func (l *Loop) SimTime() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.simTime
}

// Stats is a consistent view of the loop and engine between ticks.
type Stats struct {
	SimTime     float64
	Frames      uint64
	Illuminator string
	RenderMS    float64
	Alpha       float64
	Fading      bool
}

// Stats reads engine state under the loop lock, so it is safe while Run is
// ticking on another goroutine.
func (l *Loop) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	st := Stats{
		SimTime:     l.simTime,
		Frames:      l.seq,
		Illuminator: l.Engine.ActiveName(),
		RenderMS:    l.Engine.Last.TotalMS,
	}
	st.Alpha, st.Fading = l.Engine.Fading()
	return st
}

// Tick renders one frame. The first tick after construction has dt = 0.
// Render errors are logged and returned; they never stop the loop.
func (l *Loop) Tick(ctx context.Context) (Pose, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.Clock.Now()
	dt := 0.0
	if l.started {
		dt = now.Sub(l.last).Seconds()
	}
	l.started, l.last = true, now

	s := l.Settings.Snapshot()
	l.simTime += dt * s.Speed

	g := l.Engine.Geo
	if s.ArmSpacing > 0 {
		g.Respace(s.ArmSpacing)
	}
	for i, a := range g.Arms {
		l.angles[i] = a.BaseAngle + l.simTime
	}

	l.choose(s, dt)
	l.Engine.SetSettings(s)

	l.seq++
	p := Pose{Seq: l.seq, Time: l.simTime, Angles: l.angles}
	err := l.Engine.RenderOnce(p)
	if err != nil {
		log.Debug().Err(err).Uint64("frame", l.seq).Msg("present failed")
	}
	l.Inst.FrameRendered(ctx, l.Engine.ActiveName(), l.Engine.Last.TotalMS)
	return p, err
}

// choose maps the settings mode to an illuminator. In demo mode a running
// show takes over.
func (l *Loop) choose(s settings.Settings, dt float64) {
	if s.Mode == settings.ModeDemo && l.Show != nil && l.Show.Running() {
		if !l.showing {
			l.Show.Resync()
			l.showing = true
		}
		l.Show.Tick(dt)
		l.selected = ""
		return
	}
	l.showing = false

	name, preset := Tree, ""
	switch s.Mode {
	case settings.ModeAllOn:
		name, preset = Solid, "red"
	case settings.ModePalette:
		name = Palette
	case settings.ModeTest:
		name, preset = SelfTest, s.Test
	}
	key := name + "/" + preset
	if key == l.selected {
		return
	}
	if err := l.Engine.SetIlluminator(name, preset, l.Registry); err != nil {
		log.Warn().Err(err).Str("mode", string(s.Mode)).Msg("no illuminator for mode")
	} else {
		log.Info().Str("mode", string(s.Mode)).Str("illuminator", name).Str("preset", preset).Msg("illuminator selected")
	}
	l.selected = key
}

// Run ticks at fps until ctx is done. Each wait is shortened by the time the
// frame took so the rate holds under load.
func (l *Loop) Run(ctx context.Context, fps int) {
	if fps <= 0 {
		fps = DefaultFPS
	}
	period := time.Second / time.Duration(fps)
	timer := time.NewTimer(period)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			start := time.Now()
			_, _ = l.Tick(ctx)
			wait := period - time.Since(start)
			if wait < time.Millisecond {
				wait = time.Millisecond
			}
			timer.Reset(wait)
		}
	}
}

// Positions returns world positions of every LED for the last pose.
func (l *Loop) Positions(dst []geometry.Vec3) []geometry.Vec3 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Engine.Geo.Positions(l.angles, dst)
}
