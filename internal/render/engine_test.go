package render

import (
	"errors"
	"testing"

	"github.com/coreman2200/spiraltree/internal/geometry"
	"github.com/coreman2200/spiraltree/internal/settings"
)

// fakeIlluminator writes a constant color for testing.
type fakeIlluminator struct {
	name string
	c    Color
}

func (f *fakeIlluminator) Name() string                         { return f.name }
func (f *fakeIlluminator) Presets() []string                    { return []string{"default"} }
func (f *fakeIlluminator) ApplyPreset(name string, u *Uniforms) {}
func (f *fakeIlluminator) Illuminate(dst *Frame, g *geometry.Model, p Pose, u *Uniforms) {
	dst.Fill(f.c, true)
}

// captureSink keeps a copy of the last frame presented.
type captureSink struct {
	last *Frame
	n    int
	err  error
}

func (s *captureSink) Present(f *Frame, p Pose, u *Uniforms) error {
	s.last = f.Clone()
	s.n++
	return s.err
}

func smallModel() *geometry.Model {
	return geometry.Build(geometry.HardwareSpec{
		ArmCount: 4, ArmLengthMM: 20, ArmSpacingMM: 10, LEDPitchMM: 10,
		TrunkDiameterMM: 10, TotalHeightMM: 40,
	})
}

func TestMixAlpha(t *testing.T) {
	a, b, dst := NewFrame(2, 5), NewFrame(2, 5), NewFrame(2, 5)
	a.Fill(Color{1, 0, 0}, true)  // red
	b.Fill(Color{0, 0, 1}, false) // blue
	Mix(dst, a, b, 0.5)
	c, vis := dst.At(1, 4)
	if c.R < 0.49 || c.R > 0.51 || c.B < 0.49 || c.B > 0.51 {
		t.Fatalf("expected ~purple at alpha=0.5, got %#v", c)
	}
	if vis {
		t.Fatalf("visibility should follow the dominant side at alpha=0.5")
	}
	Mix(dst, a, b, 0.25)
	if _, vis := dst.At(0, 0); !vis {
		t.Fatalf("expected visible from side a at alpha=0.25")
	}
}

func TestEngineRenderOnceAndCrossfade(t *testing.T) {
	sink := &captureSink{}
	reg := NewRegistry()
	ra := &fakeIlluminator{name: "A", c: Color{1, 0, 0}}
	rb := &fakeIlluminator{name: "B", c: Color{0, 0, 1}}
	reg.Register(ra)
	reg.Register(rb)

	e, err := NewEngine(smallModel(), ra, NewUniforms(settings.Defaults()))
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	e.AddSink(sink)
	e.SetPost(PostPipeline{})

	if err := e.RenderOnce(Pose{}); err != nil {
		t.Fatalf("render: %v", err)
	}
	if c := sink.last.Colors[0]; c.R < 0.99 || c.B > 0.01 {
		t.Fatalf("expected red frame, got %#v", c)
	}
	if sink.last.Len() != 12 {
		t.Fatalf("expected 12 LEDs, got %d", sink.last.Len())
	}

	if err := e.ArmNext("B", "default", reg); err != nil {
		t.Fatalf("arm: %v", err)
	}
	e.SetCrossfade(0.5)
	if err := e.RenderOnce(Pose{}); err != nil {
		t.Fatalf("render 2: %v", err)
	}
	if c := sink.last.Colors[0]; c.R < 0.49 || c.R > 0.51 || c.B < 0.49 || c.B > 0.51 {
		t.Fatalf("expected purple during fade, got %#v", c)
	}

	e.SetCrossfade(1.0)
	if err := e.RenderOnce(Pose{}); err != nil {
		t.Fatalf("render 3: %v", err)
	}
	if c := sink.last.Colors[0]; c.B < 0.99 || c.R > 0.01 {
		t.Fatalf("expected blue frame after complete fade, got %#v", c)
	}
	if e.ActiveName() != "B" {
		t.Fatalf("expected B promoted, got %q", e.ActiveName())
	}
}

func TestEngineSinkErrorsDoNotStopPresentation(t *testing.T) {
	bad := &captureSink{err: errors.New("unplugged")}
	good := &captureSink{}
	e, err := NewEngine(smallModel(), &fakeIlluminator{name: "A", c: Color{0, 1, 0}}, nil)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	e.AddSink(bad)
	e.AddSink(good)
	if err := e.RenderOnce(Pose{}); err == nil {
		t.Fatalf("expected joined sink error")
	}
	if good.n != 1 {
		t.Fatalf("second sink should still get the frame")
	}
}

func TestSetIlluminatorUnknown(t *testing.T) {
	e, _ := NewEngine(smallModel(), nil, nil)
	if err := e.SetIlluminator("nope", "", NewRegistry()); err == nil {
		t.Fatalf("expected error for unknown illuminator")
	}
	if err := e.RenderOnce(Pose{}); err != nil {
		t.Fatalf("render with no illuminator: %v", err)
	}
	if _, vis := e.Out.At(0, 0); vis {
		t.Fatalf("no illuminator should leave LEDs dark")
	}
}

func TestHexBrown(t *testing.T) {
	c := Hex(0x4a3520)
	r, g, b := c.RGB8()
	if r != 0x4a || g != 0x35 || b != 0x20 {
		t.Fatalf("hex round trip: %02x%02x%02x", r, g, b)
	}
}
