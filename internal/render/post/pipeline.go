package post

import "github.com/coreman2200/spiraltree/internal/render"

// ApplyPreview scales by the on-screen brightness slider (0..100), no limiter.
func ApplyPreview(buf []render.Color, u *render.Uniforms) {
	if u == nil {
		return
	}
	render.ScaleBrightness(buf, float32(u.Settings.Brightness)/100)
	render.Clamp01(buf)
}

// ApplyLED scales by the controller brightness (0..255), then runs the
// current limiter. Output stays linear 0..1.
func ApplyLED(buf []render.Color, u *render.Uniforms) {
	if u == nil {
		return
	}
	render.ScaleBrightness(buf, float32(u.Settings.HWBrightness)/255)
	render.DefaultLimiter(buf, u)
	render.Clamp01(buf)
}
