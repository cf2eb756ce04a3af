//go:build raylib

package rlview

import (
	"context"
	"fmt"
	"runtime"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/coreman2200/spiraltree/internal/settings"
)

// mm to world units
const scale = 0.01

var keymap = map[int32]settings.EventKind{
	rl.KeyD: settings.ToggleDemo,
	rl.KeyR: settings.Randomize,
	rl.KeyO: settings.AllOff,
	rl.KeyG: settings.AllGreen,
	rl.KeyX: settings.AllRed,
	rl.KeyV: settings.ResetView,
}

// Window must run on the main goroutine on most platforms.
type Window struct {
	Scene  *Scene
	OnKey  func(settings.Event)
	Title  string
	Width  int
	Height int
}

func (w *Window) camera(h float64) rl.Camera3D {
	mid := float32(h * scale / 2)
	return rl.Camera3D{
		Position:   rl.NewVector3(0, mid+2, 12),
		Target:     rl.NewVector3(0, mid, 0),
		Up:         rl.NewVector3(0, 1, 0),
		Fovy:       45,
		Projection: rl.CameraPerspective,
	}
}

func (w *Window) Run(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	width, height := w.Width, w.Height
	if width <= 0 || height <= 0 {
		width, height = 1024, 768
	}
	title := w.Title
	if title == "" {
		title = "spiraltree"
	}
	rl.SetConfigFlags(rl.FlagWindowResizable)
	rl.InitWindow(int32(width), int32(height), title)
	defer rl.CloseWindow()
	rl.SetTargetFPS(60)

	var epoch uint64
	cam := w.camera(w.Scene.Geo.StackHeight())

	for !rl.WindowShouldClose() {
		if ctx.Err() != nil {
			return nil
		}
		for k, ev := range keymap {
			if rl.IsKeyPressed(k) && w.OnKey != nil {
				w.OnKey(settings.Event{Kind: ev})
			}
		}
		rl.UpdateCamera(&cam, rl.CameraOrbital)

		rl.BeginDrawing()
		rl.ClearBackground(rl.NewColor(6, 10, 40, 255))
		w.Scene.Read(func(s *Snapshot) {
			if s.ViewEpoch != epoch {
				epoch = s.ViewEpoch
				cam = w.camera(s.TrunkHeight)
			}
			rl.BeginMode3D(cam)
			if s.ShowTrunk && s.TrunkHeight > 0 {
				rl.DrawCylinder(rl.NewVector3(0, 0, 0), float32(s.TrunkRadius*scale), float32(s.TrunkRadius*scale),
					float32(s.TrunkHeight*scale), 12, rl.NewColor(0x4a, 0x35, 0x20, 255))
			}
			if s.ShowArms {
				for _, a := range s.Arms {
					rl.DrawLine3D(vec(a[0].X, a[0].Y, a[0].Z), vec(a[1].X, a[1].Y, a[1].Z), rl.Gray)
				}
			}
			for i, p := range s.Pos {
				if i >= len(s.Visible) || !s.Visible[i] {
					continue
				}
				c := s.Colors[i]
				rl.DrawCube(vec(p.X, p.Y, p.Z), 0.06, 0.06, 0.06, rl.NewColor(c[0], c[1], c[2], 255))
			}
			rl.EndMode3D()
			rl.DrawText(fmt.Sprintf("t=%.1f  mode=%s  frame=%d", s.Time, s.Mode, s.Seq), 10, 10, 18, rl.RayWhite)
		})
		rl.EndDrawing()
	}
	return nil
}

func vec(x, y, z float64) rl.Vector3 {
	return rl.NewVector3(float32(x*scale), float32(y*scale), float32(z*scale))
}
