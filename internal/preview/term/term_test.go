package term

import (
	"context"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/spiraltree/internal/geometry"
	"github.com/coreman2200/spiraltree/internal/render"
	"github.com/coreman2200/spiraltree/internal/settings"
)

func newView(t *testing.T) (*View, tcell.SimulationScreen) {
	t.Helper()
	sim := tcell.NewSimulationScreen("UTF-8")
	g := geometry.Build(geometry.HardwareSpec{
		ArmCount: 8, ArmLengthMM: 100, ArmSpacingMM: 10, LEDPitchMM: 10, TrunkDiameterMM: 20, TotalHeightMM: 100,
	})
	v, err := New(sim, g)
	require.NoError(t, err)
	sim.SetSize(60, 20)
	t.Cleanup(v.Close)
	return v, sim
}

func TestPresentDrawsVisibleLEDs(t *testing.T) {
	v, sim := newView(t)
	f := render.NewFrame(v.Geo.ArmCount(), v.Geo.LEDsPerArm())
	f.Fill(render.Hex(0xff0000), true)
	f.Set(0, 0, render.Hex(0x00ff00), false)

	angles := make([]float64, v.Geo.ArmCount())
	for i, a := range v.Geo.Arms {
		angles[i] = a.BaseAngle
	}
	require.NoError(t, v.Present(f, render.Pose{Time: 2, Angles: angles}, render.NewUniforms(settings.Defaults())))

	cells, w, h := sim.GetContents()
	require.Equal(t, 60*20, len(cells))
	lit := 0
	for _, c := range cells[:w*(h-1)] {
		if len(c.Runes) == 0 || c.Runes[0] != glyph {
			continue
		}
		lit++
		fg, _, _ := c.Style.Decompose()
		r, g, b := fg.RGB()
		assert.Equal(t, [3]int32{255, 0, 0}, [3]int32{r, g, b})
	}
	assert.Greater(t, lit, 4)

	var status []rune
	for _, c := range cells[w*(h-1):] {
		if len(c.Runes) > 0 {
			status = append(status, c.Runes[0])
		}
	}
	assert.Contains(t, string(status), "t=2.0 mode=demo")
}

func TestKeysDispatchEvents(t *testing.T) {
	v, sim := newView(t)
	var got []settings.EventKind
	v.OnKey = func(ev settings.Event) { got = append(got, ev.Kind) }

	sim.InjectKey(tcell.KeyRune, 'r', tcell.ModNone)
	sim.InjectKey(tcell.KeyRune, 'z', tcell.ModNone)
	sim.InjectKey(tcell.KeyRune, 'd', tcell.ModNone)
	sim.InjectKey(tcell.KeyRune, 'q', tcell.ModNone)

	done := make(chan struct{})
	go func() {
		v.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return on q")
	}
	assert.Equal(t, []settings.EventKind{settings.Randomize, settings.ToggleDemo}, got)
}

func TestRunStopsOnCancel(t *testing.T) {
	v, _ := newView(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		v.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run ignored cancellation")
	}
}
