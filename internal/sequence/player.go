package sequence

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/coreman2200/spiraltree/internal/command"
)

// cue is where a playhead position lands in a program.
type cue struct {
	lap   int     // completed passes of a looping program
	clip  int     // index into Clips
	local float64 // seconds into the clip
	next  int     // clip that follows, -1 at the end of a one-shot program
	alpha float64 // crossfade toward next, 0 outside the fade window
	done  bool
}

// timeline maps absolute show time onto clips through their start offsets.
type timeline struct {
	clips  []Clip
	starts []float64
	total  float64
	loop   bool
}

func newTimeline(p Program) timeline {
	tl := timeline{clips: p.Clips, starts: make([]float64, len(p.Clips)), loop: p.Loop}
	for i, c := range p.Clips {
		tl.starts[i] = tl.total
		tl.total += c.DurationS
	}
	return tl
}

func (tl timeline) at(pos float64) cue {
	n := len(tl.clips)
	if pos < 0 {
		pos = 0
	}
	var c cue
	if pos >= tl.total {
		if !tl.loop {
			last := tl.clips[n-1]
			return cue{clip: n - 1, local: last.DurationS, next: -1, done: true}
		}
		c.lap = int(pos / tl.total)
		pos = math.Mod(pos, tl.total)
	}
	c.clip = sort.Search(n, func(i int) bool { return tl.starts[i] > pos }) - 1
	c.local = pos - tl.starts[c.clip]

	c.next = c.clip + 1
	if c.next == n {
		c.next = -1
		if tl.loop {
			c.next = 0
		}
	}
	clip := tl.clips[c.clip]
	if remain := clip.DurationS - c.local; c.next >= 0 && clip.XFadeS > 0 && remain < clip.XFadeS {
		c.alpha = 1 - remain/clip.XFadeS
	}
	return c
}

// Player walks a Program on show time and drives Hooks. Illuminator changes
// and commands fire when the playhead enters a clip; envelopes and crossfade
// are re-evaluated every tick. Commands of clips skipped by one long step are
// not sent.
type Player struct {
	State PlayerState

	prog  Program
	tl    timeline
	cmds  [][]command.Command
	pos   float64
	cur   cue
	armed bool
	alpha float64

	hooks Hooks
}

func NewPlayer(h Hooks) *Player {
	return &Player{State: Idle, hooks: h}
}

// Load replaces the program and rewinds. Empty clips and malformed commands
// are rejected.
func (p *Player) Load(prog Program) error {
	if len(prog.Clips) == 0 {
		return errors.New("program has no clips")
	}
	cmds := make([][]command.Command, len(prog.Clips))
	for i, c := range prog.Clips {
		if c.DurationS <= 0 {
			return fmt.Errorf("clip %d (%s): duration must be positive", i, c.Name)
		}
		parsed, err := parseCommands(c.Commands)
		if err != nil {
			return err
		}
		cmds[i] = parsed
	}
	p.prog, p.tl, p.cmds = prog, newTimeline(prog), cmds
	p.State = Idle
	p.pos = 0
	p.cur = p.tl.at(0)
	return nil
}

// Start plays from the current position.
func (p *Player) Start() {
	if p.State == Running || len(p.prog.Clips) == 0 {
		return
	}
	p.State = Running
	p.cur = p.tl.at(p.pos)
	p.enter()
}

// Stop rewinds to the top and goes idle.
func (p *Player) Stop() {
	p.State = Idle
	p.pos = 0
	p.cur = p.tl.at(0)
	p.fade(0)
}

// Seek moves the playhead to t seconds. A one-shot program is clamped to
// just before its end.
func (p *Player) Seek(t float64) {
	if len(p.prog.Clips) == 0 {
		return
	}
	t = math.Max(t, 0)
	if !p.tl.loop && t >= p.tl.total {
		t = math.Nextafter(p.tl.total, 0)
	}
	p.pos = t
	p.cur = p.tl.at(t)
	if p.State == Running {
		p.enter()
	}
}

// Tick advances the playhead by dt seconds.
func (p *Player) Tick(dt float64) {
	if p.State != Running || dt <= 0 {
		return
	}
	p.pos += dt
	c := p.tl.at(p.pos)
	if c.done {
		p.State = Idle
		p.fade(0)
		return
	}
	moved := c.clip != p.cur.clip || c.lap != p.cur.lap
	p.cur = c
	if moved {
		p.enter()
	}
	p.automate()
}

// Resync re-applies the current clip, commands included, after something
// else drove the engine or the controller.
func (p *Player) Resync() {
	if len(p.prog.Clips) == 0 {
		return
	}
	p.enter()
}

func (p *Player) enter() {
	clip := p.prog.Clips[p.cur.clip]
	if p.hooks.SetIlluminator != nil {
		p.hooks.SetIlluminator(clip.Illuminator, clip.Preset)
	}
	p.armed = false
	p.alpha = -1
	p.fade(0)
	if p.hooks.Send != nil {
		for _, cmd := range p.cmds[p.cur.clip] {
			p.hooks.Send(cmd)
		}
	}
	p.automate()
}

func (p *Player) automate() {
	clip := p.prog.Clips[p.cur.clip]
	if p.hooks.SetParam != nil {
		for name, env := range clip.Params {
			p.hooks.SetParam(name, env.Eval(p.cur.local))
		}
	}
	if p.hooks.SetBool != nil {
		for name, env := range clip.Bools {
			p.hooks.SetBool(name, env.On(p.cur.local))
		}
	}
	if p.cur.alpha <= 0 {
		return
	}
	if !p.armed && p.hooks.ArmNext != nil {
		nc := p.prog.Clips[p.cur.next]
		p.hooks.ArmNext(nc.Illuminator, nc.Preset)
		p.armed = true
	}
	p.fade(p.cur.alpha)
}

func (p *Player) fade(a float64) {
	if a == p.alpha {
		return
	}
	p.alpha = a
	if p.hooks.SetCrossfade != nil {
		p.hooks.SetCrossfade(a)
	}
}

// Status is a point-in-time view for control clients.
type Status struct {
	State    PlayerState `json:"state"`
	Clip     string      `json:"clip,omitempty"`
	Position float64     `json:"position"` // within the current pass
	Total    float64     `json:"total"`
	Lap      int         `json:"lap,omitempty"`
}

func (p *Player) Status() Status {
	st := Status{State: p.State, Total: p.tl.total, Lap: p.cur.lap}
	if len(p.prog.Clips) == 0 {
		return st
	}
	st.Clip = p.prog.Clips[p.cur.clip].Name
	st.Position = p.tl.starts[p.cur.clip] + p.cur.local
	return st
}

// SafePlayer serializes access so control handlers and the render loop can
// share one Player. It satisfies the render loop's Show interface.
type SafePlayer struct {
	mu sync.Mutex
	P  *Player
}

func NewSafePlayer(h Hooks) *SafePlayer {
	return &SafePlayer{P: NewPlayer(h)}
}

func (s *SafePlayer) With(f func(p *Player)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f(s.P)
}

func (s *SafePlayer) Load(prog Program) (err error) {
	s.With(func(p *Player) { err = p.Load(prog) })
	return err
}

func (s *SafePlayer) Start() { s.With(func(p *Player) { p.Start() }) }
func (s *SafePlayer) Stop()  { s.With(func(p *Player) { p.Stop() }) }

func (s *SafePlayer) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.P.State == Running
}

func (s *SafePlayer) Tick(dt float64) { s.With(func(p *Player) { p.Tick(dt) }) }
func (s *SafePlayer) Resync()         { s.With(func(p *Player) { p.Resync() }) }

func (s *SafePlayer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.P.Status()
}
