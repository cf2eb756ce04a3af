// Package rlview is the native 3D preview. The scene half is plain Go and
// always built; the window needs raylib and the "raylib" build tag.
package rlview

import (
	"errors"
	"sync"

	"github.com/coreman2200/spiraltree/internal/geometry"
	"github.com/coreman2200/spiraltree/internal/render"
	"github.com/coreman2200/spiraltree/internal/render/post"
	"github.com/coreman2200/spiraltree/internal/settings"
)

var ErrUnavailable = errors.New("raylib preview not built in (use -tags raylib)")

// Snapshot is everything the window draws for one frame, in millimetres.
type Snapshot struct {
	Seq     uint64
	Time    float64
	Pos     []geometry.Vec3
	Colors  [][3]uint8
	Visible []bool

	Arms        [][2]geometry.Vec3 // trunk surface to tip
	TrunkRadius float64
	TrunkHeight float64

	ShowArms  bool
	ShowTrunk bool
	ViewEpoch uint64
	Mode      settings.Mode
}

// Scene double-buffers snapshots between the render loop (Present) and the
// window thread (Read).
type Scene struct {
	Geo *geometry.Model

	mu    sync.Mutex
	front *Snapshot
	back  *Snapshot
	work  *render.Frame
}

func NewScene(g *geometry.Model) *Scene {
	return &Scene{Geo: g, front: &Snapshot{}, back: &Snapshot{}}
}

func (s *Scene) Present(f *render.Frame, p render.Pose, u *render.Uniforms) error {
	if s.work == nil || s.work.Len() != f.Len() {
		s.work = render.NewFrame(f.Arms, f.PerArm)
	}
	s.work.CopyFrom(f)
	post.ApplyPreview(s.work.Colors, u)

	b := s.back
	b.Seq, b.Time = p.Seq, p.Time
	b.Pos = s.Geo.Positions(p.Angles, b.Pos)
	n := s.work.Len()
	if cap(b.Colors) < n {
		b.Colors = make([][3]uint8, n)
		b.Visible = make([]bool, n)
	}
	b.Colors, b.Visible = b.Colors[:n], b.Visible[:n]
	for i, c := range s.work.Colors {
		r, g, bl := c.RGB8()
		b.Colors[i] = [3]uint8{r, g, bl}
	}
	copy(b.Visible, s.work.Visible)

	sp := s.Geo.Spec
	tip := sp.TrunkRadius() + float64(s.Geo.LEDsPerArm()-1)*sp.LEDPitchMM
	b.Arms = b.Arms[:0]
	for i, arm := range s.Geo.Arms {
		a := arm.BaseAngle
		if i < len(p.Angles) {
			a = p.Angles[i]
		}
		b.Arms = append(b.Arms, [2]geometry.Vec3{
			geometry.Cylindrical(sp.TrunkRadius(), a, arm.Height),
			geometry.Cylindrical(tip, a, arm.Height),
		})
	}
	b.TrunkRadius = sp.TrunkRadius()
	b.TrunkHeight = s.Geo.StackHeight()
	if u != nil {
		b.ShowArms, b.ShowTrunk = u.Settings.ShowArms, u.Settings.ShowTrunk
		b.ViewEpoch, b.Mode = u.Settings.ViewEpoch, u.Settings.Mode
	}

	s.mu.Lock()
	s.front, s.back = s.back, s.front
	s.mu.Unlock()
	return nil
}

// Read calls fn with the newest snapshot. fn must not keep it.
func (s *Scene) Read(fn func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.front)
}
