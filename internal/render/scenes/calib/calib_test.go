package calib

import (
	"testing"

	"github.com/coreman2200/spiraltree/internal/render"
	"github.com/coreman2200/spiraltree/internal/settings"
)

func TestArmChanSweep(t *testing.T) {
	dst := render.NewFrame(9, 6)
	r := New("calib")
	u := render.NewUniforms(settings.Defaults())

	r.ApplyPreset("ArmChanSweep", u)
	r.Illuminate(dst, nil, render.Pose{}, u)

	redRoot, _ := dst.At(0, 0)
	greenRoot, _ := dst.At(1, 0)
	blueRoot, _ := dst.At(2, 0)

	t.Logf("arm 0 root (red): %+v", redRoot)
	t.Logf("arm 1 root (green): %+v", greenRoot)
	t.Logf("arm 2 root (blue): %+v", blueRoot)

	if redRoot.R < 0.3 {
		t.Fatalf("expected visible red at arm 0; got %+v", redRoot)
	}
	if greenRoot.G < 0.3 {
		t.Fatalf("expected visible green at arm 1; got %+v", greenRoot)
	}
	if blueRoot.B < 0.3 {
		t.Fatalf("expected visible blue at arm 2; got %+v", blueRoot)
	}
}

func TestFadesTowardTip(t *testing.T) {
	dst := render.NewFrame(9, 6)
	r := New("calib")
	u := render.NewUniforms(settings.Defaults())
	r.ApplyPreset("ArmChanSweep", u)
	r.Illuminate(dst, nil, render.Pose{}, u)

	prev := float32(2)
	for j := 0; j < dst.PerArm; j++ {
		c, vis := dst.At(0, j)
		if !vis {
			t.Fatalf("led %d not visible", j)
		}
		if c.R > prev+1e-4 {
			t.Fatalf("arm 0 not monotonic at led %d: %.4f -> %.4f", j, prev, c.R)
		}
		prev = c.R
	}
	tip, _ := dst.At(0, dst.PerArm-1)
	if tip.R > 0.05 || tip.G > 0.05 || tip.B > 0.05 {
		t.Fatalf("expected near-black at the tip of the bottom arm, got %+v", tip)
	}

	top, _ := dst.At(dst.Arms-1, dst.PerArm-1)
	if top.R < 0.9 || top.G < 0.9 || top.B < 0.9 {
		t.Fatalf("expected white on the top arm, got %+v", top)
	}
}
