package rlview

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/spiraltree/internal/geometry"
	"github.com/coreman2200/spiraltree/internal/render"
	"github.com/coreman2200/spiraltree/internal/settings"
)

func TestScenePublishesLatestFrame(t *testing.T) {
	g := geometry.Build(geometry.HardwareSpec{
		ArmCount: 4, ArmLengthMM: 20, ArmSpacingMM: 10, LEDPitchMM: 10, TrunkDiameterMM: 10, TotalHeightMM: 100,
	})
	sc := NewScene(g)
	f := render.NewFrame(4, 3)
	f.Fill(render.Hex(0x0000ff), true)
	f.Set(2, 0, render.Color{}, false)

	u := render.NewUniforms(settings.Defaults())
	u.Settings.ShowArms = false
	u.Settings.ViewEpoch = 3
	angles := []float64{math.Pi / 2, 0, 0, 0}
	require.NoError(t, sc.Present(f, render.Pose{Seq: 7, Time: 1, Angles: angles}, u))

	sc.Read(func(s *Snapshot) {
		assert.Equal(t, uint64(7), s.Seq)
		require.Len(t, s.Pos, 12)
		assert.InDelta(t, 5.0, s.Pos[0].Z, 1e-9, "arm 0 rotated a quarter turn")
		assert.Equal(t, [3]uint8{0, 0, 255}, s.Colors[1])
		assert.False(t, s.Visible[6])
		require.Len(t, s.Arms, 4)
		assert.InDelta(t, 25.0, s.Arms[1][1].X, 1e-9)
		assert.Equal(t, 30.0, s.TrunkHeight)
		assert.False(t, s.ShowArms)
		assert.True(t, s.ShowTrunk)
		assert.Equal(t, uint64(3), s.ViewEpoch)
	})

	f.Fill(render.Hex(0xffffff), true)
	require.NoError(t, sc.Present(f, render.Pose{Seq: 8, Angles: angles}, u))
	sc.Read(func(s *Snapshot) {
		assert.Equal(t, uint64(8), s.Seq)
		assert.Equal(t, [3]uint8{255, 255, 255}, s.Colors[6])
	})
}
