package render

import (
	"errors"
	"fmt"
	"time"

	"github.com/coreman2200/spiraltree/internal/geometry"
	"github.com/coreman2200/spiraltree/internal/settings"
)

// Sink consumes finished frames (LED strip, preview clients, terminal).
// Sinks must copy what they keep; the frame is reused next tick.
type Sink interface {
	Present(f *Frame, p Pose, u *Uniforms) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(f *Frame, p Pose, u *Uniforms) error

func (fn SinkFunc) Present(f *Frame, p Pose, u *Uniforms) error { return fn(f, p, u) }

// Engine renders frames using an active Illuminator, optional next Illuminator
// for crossfades, applies post-processing, then presents to the sinks.
type Engine struct {
	Geo   *geometry.Model
	Sinks []Sink

	// active + next illuminator and uniforms
	Active  Illuminator
	Next    Illuminator
	UActive *Uniforms
	UNext   *Uniforms

	// framebuffers
	BufA *Frame // active
	BufB *Frame // next (during crossfade)
	Out  *Frame // mixed + post

	// crossfade
	alpha  float64 // 0..1
	fading bool

	post PostPipeline

	// last durations in ms
	Last struct {
		RenderMS float64
		PostMS   float64
		TotalMS  float64
	}
}

// PostPipeline groups post stages; all are optional.
type PostPipeline struct {
	Limiter func([]Color, *Uniforms)
}

// NewEngine allocates frames for g and returns an Engine with defaults wired.
func NewEngine(g *geometry.Model, il Illuminator, u *Uniforms) (*Engine, error) {
	if g == nil || g.Count() == 0 {
		return nil, errors.New("empty geometry")
	}
	if u == nil {
		u = NewUniforms(settings.Defaults())
	}
	arms, per := g.ArmCount(), g.LEDsPerArm()
	return &Engine{
		Geo:     g,
		Active:  il,
		UActive: u,
		BufA:    NewFrame(arms, per),
		BufB:    NewFrame(arms, per),
		Out:     NewFrame(arms, per),
		post:    PostPipeline{Limiter: DefaultLimiter},
	}, nil
}

func (e *Engine) AddSink(s Sink) {
	if s != nil {
		e.Sinks = append(e.Sinks, s)
	}
}

func (e *Engine) SetPost(p PostPipeline) { e.post = p }

// SetSettings publishes the frame's settings snapshot to both uniform sets.
func (e *Engine) SetSettings(s settings.Settings) {
	if e.UActive != nil {
		e.UActive.Settings = s
	}
	if e.UNext != nil {
		e.UNext.Settings = s
	}
}

// RenderOnce renders a single frame at pose p and presents it. Sink errors are
// collected and returned after every sink has had the frame.
func (e *Engine) RenderOnce(p Pose) error {
	start := time.Now()

	if e.Active != nil {
		e.Active.Illuminate(e.BufA, e.Geo, p, e.UActive)
	} else {
		e.BufA.Fill(Color{}, false)
	}

	if e.fading && e.Next != nil {
		e.Next.Illuminate(e.BufB, e.Geo, p, e.UNext)
		Mix(e.Out, e.BufA, e.BufB, e.alpha)
	} else {
		e.Out.CopyFrom(e.BufA)
	}

	postStart := time.Now()
	if e.post.Limiter != nil {
		e.post.Limiter(e.Out.Colors, e.UActive)
	}
	e.Last.PostMS = float64(time.Since(postStart).Microseconds()) / 1000.0
	e.Last.RenderMS = float64(postStart.Sub(start).Microseconds()) / 1000.0

	var errs []error
	for _, s := range e.Sinks {
		if err := s.Present(e.Out, p, e.UActive); err != nil {
			errs = append(errs, err)
		}
	}
	e.Last.TotalMS = float64(time.Since(start).Microseconds()) / 1000.0
	return errors.Join(errs...)
}

// ActiveName is the name of the active illuminator, or "".
func (e *Engine) ActiveName() string {
	if e.Active == nil {
		return ""
	}
	return e.Active.Name()
}

// ---- Hooks that match Player expectations ----

// SetIlluminator becomes the active illuminator immediately.
// If preset != "", ApplyPreset is called on it with UActive.
func (e *Engine) SetIlluminator(name string, preset string, reg *Registry) error {
	if reg == nil {
		return errors.New("registry is nil")
	}
	il, ok := reg.Get(name)
	if !ok {
		return fmt.Errorf("illuminator not found: %s", name)
	}
	e.Active = il
	if preset != "" {
		il.ApplyPreset(preset, e.UActive)
	}
	e.fading = false
	e.alpha = 0
	e.Next = nil
	return nil
}

// ArmNext prepares the next illuminator for crossfade.
func (e *Engine) ArmNext(name string, preset string, reg *Registry) error {
	if reg == nil {
		return errors.New("registry is nil")
	}
	il, ok := reg.Get(name)
	if !ok {
		return fmt.Errorf("illuminator not found: %s", name)
	}
	e.Next = il
	e.UNext = e.UActive.Clone()
	if preset != "" {
		il.ApplyPreset(preset, e.UNext)
	}
	e.fading = true
	return nil
}

// SetCrossfade sets mix alpha 0..1. Reaching 1 promotes next to active.
func (e *Engine) SetCrossfade(alpha float64) {
	switch {
	case alpha <= 0:
		e.alpha = 0
		e.fading = false
	case alpha >= 1:
		e.alpha = 0
		e.fading = false
		if e.Next != nil {
			e.Active = e.Next
			e.UActive = e.UNext
		}
		e.Next = nil
	default:
		e.alpha = alpha
		e.fading = true
	}
}

func (e *Engine) Fading() (float64, bool) { return e.alpha, e.fading }

// SetParam updates active uniforms.
func (e *Engine) SetParam(name string, v float64) {
	if e.UActive == nil {
		return
	}
	if e.UActive.Params == nil {
		e.UActive.Params = map[string]float64{}
	}
	e.UActive.Params[name] = v
}

// SetBool updates active uniforms.
func (e *Engine) SetBool(name string, b bool) {
	if e.UActive == nil {
		return
	}
	if e.UActive.Bools == nil {
		e.UActive.Bools = map[string]bool{}
	}
	e.UActive.Bools[name] = b
}
