package render

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/spiraltree/internal/settings"
)

type fixedSettings struct{ s settings.Settings }

func (f *fixedSettings) Snapshot() settings.Settings { return f.s }

type fakeShow struct {
	running bool
	ticks   []float64
	resyncs int
}

func (f *fakeShow) Running() bool   { return f.running }
func (f *fakeShow) Tick(dt float64) { f.ticks = append(f.ticks, dt) }
func (f *fakeShow) Resync()         { f.resyncs++ }

func newTestLoop(t *testing.T, s settings.Settings) (*Loop, *ManualClock, *fixedSettings, *captureSink) {
	t.Helper()
	reg := NewRegistry()
	for _, n := range []string{Tree, Solid, Palette, SelfTest} {
		reg.Register(&fakeIlluminator{name: n, c: Color{1, 1, 1}})
	}
	e, err := NewEngine(smallModel(), nil, nil)
	require.NoError(t, err)
	sink := &captureSink{}
	e.AddSink(sink)

	st := &fixedSettings{s: s}
	l := NewLoop(e, reg, st)
	clk := NewManualClock(time.Unix(1700000000, 0))
	l.Clock = clk
	return l, clk, st, sink
}

func TestLoopIntegratesSimulatedTime(t *testing.T) {
	s := settings.Defaults()
	s.Speed = 2
	s.ArmSpacing = 10
	l, clk, st, _ := newTestLoop(t, s)
	ctx := context.Background()

	p, err := l.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0.0, p.Time)
	assert.Equal(t, uint64(1), p.Seq)

	clk.Advance(500 * time.Millisecond)
	p, _ = l.Tick(ctx)
	assert.InDelta(t, 1.0, p.Time, 1e-9)

	st.s.Speed = 0.5
	clk.Advance(time.Second)
	p, _ = l.Tick(ctx)
	assert.InDelta(t, 1.5, p.Time, 1e-9)
	assert.InDelta(t, 1.5, l.SimTime(), 1e-9)

	for i, a := range p.Angles {
		want := float64(i%4)*math.Pi/2 + 1.5
		assert.InDelta(t, want, a, 1e-9, "arm %d", i)
	}
}

func TestLoopSelectsByMode(t *testing.T) {
	l, clk, st, _ := newTestLoop(t, settings.Defaults())
	ctx := context.Background()

	_, _ = l.Tick(ctx)
	assert.Equal(t, Tree, l.Engine.ActiveName())

	st.s.Mode = settings.ModeAllOn
	clk.Advance(time.Millisecond)
	_, _ = l.Tick(ctx)
	assert.Equal(t, Solid, l.Engine.ActiveName())

	st.s.Mode = settings.ModePalette
	_, _ = l.Tick(ctx)
	assert.Equal(t, Palette, l.Engine.ActiveName())

	st.s.Mode = settings.ModeTest
	st.s.Test = "arm_sweep"
	_, _ = l.Tick(ctx)
	assert.Equal(t, SelfTest, l.Engine.ActiveName())
}

func TestLoopRespacesArms(t *testing.T) {
	s := settings.Defaults()
	s.ArmSpacing = 25
	l, _, _, _ := newTestLoop(t, s)
	_, _ = l.Tick(context.Background())
	assert.Equal(t, 25.0, l.Engine.Geo.Spacing())
	assert.Equal(t, 75.0, l.Engine.Geo.Arms[3].Height)
}

func TestLoopHandsDemoToRunningShow(t *testing.T) {
	l, clk, st, _ := newTestLoop(t, settings.Defaults())
	show := &fakeShow{running: true}
	l.Show = show
	ctx := context.Background()

	_, _ = l.Tick(ctx)
	clk.Advance(100 * time.Millisecond)
	_, _ = l.Tick(ctx)
	assert.Equal(t, 1, show.resyncs)
	require.Len(t, show.ticks, 2)
	assert.InDelta(t, 0.1, show.ticks[1], 1e-9)

	// leaving demo returns control to the mode mapping
	st.s.Mode = settings.ModeAllOn
	_, _ = l.Tick(ctx)
	assert.Equal(t, Solid, l.Engine.ActiveName())
	assert.Len(t, show.ticks, 2)
}

func TestLoopRunStopsOnCancel(t *testing.T) {
	l, _, _, sink := newTestLoop(t, settings.Defaults())
	l.Clock = SystemClock{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx, 200)
		close(done)
	}()
	time.Sleep(60 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Greater(t, sink.n, 0)
}

func TestLoopStatsWhileRunning(t *testing.T) {
	l, _, _, _ := newTestLoop(t, settings.Defaults())
	l.Clock = SystemClock{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx, 200)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return l.Stats().Frames >= 3
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-done

	st := l.Stats()
	assert.Equal(t, Tree, st.Illuminator)
	assert.False(t, st.Fading)
	assert.GreaterOrEqual(t, st.RenderMS, 0.0)
}
