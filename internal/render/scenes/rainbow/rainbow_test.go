package rainbow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/coreman2200/spiraltree/internal/render"
	"github.com/coreman2200/spiraltree/internal/settings"
)

func TestWheel(t *testing.T) {
	assert.Equal(t, render.Color{R: 0, G: 1, B: 0}, Wheel(0))
	assert.Equal(t, render.Color{R: 1, G: 0, B: 0}, Wheel(85))
	assert.Equal(t, render.Color{R: 0, G: 0, B: 1}, Wheel(170))
	assert.Equal(t, Wheel(3), Wheel(259))
}

func TestChaseMovesWithTime(t *testing.T) {
	r := New("rainbow")
	u := render.NewUniforms(settings.Defaults())
	r.ApplyPreset("Chase", u)

	a := render.NewFrame(2, 10)
	b := render.NewFrame(2, 10)
	r.Illuminate(a, nil, render.Pose{Time: 0}, u)
	r.Illuminate(b, nil, render.Pose{Time: 1}, u)

	assert.Equal(t, Wheel(0), a.Colors[0])
	assert.Equal(t, Wheel(50), b.Colors[0])
	// along-arm axis: every arm shows the same gradient
	c0, _ := a.At(0, 4)
	c1, _ := a.At(1, 4)
	assert.Equal(t, c0, c1)
}

func TestSpiralUsesArmIndex(t *testing.T) {
	r := New("rainbow")
	u := render.NewUniforms(settings.Defaults())
	r.ApplyPreset("Spiral", u)

	f := render.NewFrame(4, 3)
	r.Illuminate(f, nil, render.Pose{}, u)
	c, _ := f.At(2, 0)
	assert.Equal(t, Wheel(128), c)
	c2, _ := f.At(2, 2)
	assert.Equal(t, c, c2)
}
