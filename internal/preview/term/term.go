// Package term draws the tree side-on in a terminal and maps a few keys to
// settings events.
package term

import (
	"context"
	"fmt"

	"github.com/gdamore/tcell/v2"

	"github.com/coreman2200/spiraltree/internal/geometry"
	"github.com/coreman2200/spiraltree/internal/render"
	"github.com/coreman2200/spiraltree/internal/render/post"
	"github.com/coreman2200/spiraltree/internal/settings"
)

const glyph = '●'

var keys = map[rune]settings.EventKind{
	'd': settings.ToggleDemo,
	'r': settings.Randomize,
	'o': settings.AllOff,
	'g': settings.AllGreen,
	'x': settings.AllRed,
	'i': settings.RequestInfo,
	'v': settings.ResetView,
}

// View is a render.Sink. Present must be called from the render loop only.
type View struct {
	Screen tcell.Screen
	Geo    *geometry.Model
	OnKey  func(settings.Event)

	pos   []geometry.Vec3
	depth []float64
	work  *render.Frame
	bg    tcell.Style
}

// New initializes s. Pass tcell.NewScreen() in production and a simulation
// screen in tests.
func New(s tcell.Screen, g *geometry.Model) (*View, error) {
	if err := s.Init(); err != nil {
		return nil, fmt.Errorf("terminal: %w", err)
	}
	bg := tcell.StyleDefault.Background(tcell.NewRGBColor(6, 10, 40))
	s.SetStyle(bg)
	s.Clear()
	return &View{Screen: s, Geo: g, bg: bg}, nil
}

func (v *View) Present(f *render.Frame, p render.Pose, u *render.Uniforms) error {
	if v.work == nil || v.work.Len() != f.Len() {
		v.work = render.NewFrame(f.Arms, f.PerArm)
	}
	v.work.CopyFrom(f)
	post.ApplyPreview(v.work.Colors, u)

	w, h := v.Screen.Size()
	rows := h - 1 // status line
	if w < 2 || rows < 2 {
		return nil
	}
	if len(v.depth) != w*rows {
		v.depth = make([]float64, w*rows)
	}
	for i := range v.depth {
		v.depth[i] = -1
	}

	v.Screen.Clear()
	v.pos = v.Geo.Positions(p.Angles, v.pos)
	for i, at := range v.pos {
		if i >= v.work.Len() || !v.work.Visible[i] {
			continue
		}
		n := v.Geo.Normalized(at)
		x := int(n.X * float64(w-1))
		y := rows - 1 - int(n.Y*float64(rows-1))
		if x < 0 || x >= w || y < 0 || y >= rows {
			continue
		}
		// nearest LED wins the cell
		if n.Z <= v.depth[y*w+x] {
			continue
		}
		v.depth[y*w+x] = n.Z
		r, g, b := v.work.Colors[i].RGB8()
		st := v.bg.Foreground(tcell.NewRGBColor(int32(r), int32(g), int32(b)))
		v.Screen.SetContent(x, y, glyph, nil, st)
	}

	status := fmt.Sprintf(" t=%.1f", p.Time)
	if u != nil {
		status += fmt.Sprintf(" mode=%s speed=%.2f", u.Settings.Mode, u.Settings.Speed)
	}
	status += "  [d]emo [r]andom [o]ff [g]reen [x]red [q]uit"
	st := tcell.StyleDefault.Reverse(true)
	for i, c := range status {
		if i >= w {
			break
		}
		v.Screen.SetContent(i, h-1, c, nil, st)
	}
	v.Screen.Show()
	return nil
}

// Run handles input until q/Esc or ctx ends.
func (v *View) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		_ = v.Screen.PostEvent(tcell.NewEventInterrupt(nil))
	}()
	for {
		switch ev := v.Screen.PollEvent().(type) {
		case nil:
			return
		case *tcell.EventInterrupt:
			if ctx.Err() != nil {
				return
			}
		case *tcell.EventResize:
			v.Screen.Sync()
		case *tcell.EventKey:
			if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC || ev.Rune() == 'q' {
				return
			}
			if k, ok := keys[ev.Rune()]; ok && v.OnKey != nil {
				v.OnKey(settings.Event{Kind: k})
			}
		}
	}
}

func (v *View) Close() { v.Screen.Fini() }
