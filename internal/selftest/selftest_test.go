package selftest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/spiraltree/internal/render"
)

func lit(f *render.Frame) int {
	n := 0
	for _, c := range f.Colors {
		if c != (render.Color{}) {
			n++
		}
	}
	return n
}

func TestArmSweep(t *testing.T) {
	f := render.NewFrame(4, 5)
	r := NewRunner(Plan{Kind: ArmSweep})
	for arm := 0; arm < 4; arm++ {
		require.True(t, r.Step(f))
		assert.Equal(t, 5, lit(f))
		c, _ := f.At(arm, 2)
		assert.Equal(t, render.Hex(0xffffff), c)
	}
	assert.False(t, r.Step(f))
	assert.Equal(t, 0, lit(f))
}

func TestLEDSweepHoldsFrames(t *testing.T) {
	f := render.NewFrame(3, 4)
	r := NewRunner(Plan{Kind: LEDSweep, Hold: 2})
	steps := 0
	for r.Step(f) {
		steps++
		assert.Equal(t, 3, lit(f))
	}
	assert.Equal(t, 8, steps)
}

func TestIndividualFillsCumulatively(t *testing.T) {
	f := render.NewFrame(2, 5)
	r := NewRunner(Plan{Kind: Individual})
	for i := 0; i < 10; i++ {
		require.True(t, r.Step(f))
		assert.Equal(t, i+1, lit(f))
	}
	assert.Equal(t, cycle[7%len(cycle)], f.Colors[7])
	assert.False(t, r.Step(f))
}

func TestAllSameSequence(t *testing.T) {
	f := render.NewFrame(2, 2)
	r := NewRunner(Plan{Kind: AllSame})
	want := []render.Color{render.Hex(0xff0000), render.Hex(0x00ff00), render.Hex(0x0000ff), render.Hex(0xffffff)}
	for _, c := range want {
		require.True(t, r.Step(f))
		for i := range f.Colors {
			assert.Equal(t, c, f.Colors[i])
		}
	}
	assert.False(t, r.Step(f))
}

func TestUnknownPlanIsDoneImmediately(t *testing.T) {
	f := render.NewFrame(2, 2)
	assert.False(t, NewRunner(Plan{Kind: "nope"}).Step(f))
}

func TestIlluminatorReportsDoneOnce(t *testing.T) {
	var done []Kind
	il := New(1)
	il.OnDone = func(k Kind) { done = append(done, k) }
	il.ApplyPreset("rgb_channels", nil)

	f := render.NewFrame(2, 3)
	for i := 0; i < 6; i++ {
		il.Illuminate(f, nil, render.Pose{}, nil)
	}
	assert.Equal(t, []Kind{RGBTest}, done)
	_, running := il.Running()
	assert.False(t, running)
	assert.Equal(t, 0, lit(f))
}
