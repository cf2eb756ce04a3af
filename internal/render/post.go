package render

// DefaultLimiter applies a two-stage limiter:
// 1) Per-LED "white cap": scales (R,G,B) so R+G+B <= WhiteCap (default 3.0 = no cap)
// 2) Global current budget: estimates current and scales the whole frame to stay under Budget_mA
//
// Parameters (read from uniforms.Params):
//   - "WhiteCap" (sum of channels cap in linear space, default 3.0)
//   - "LEDChan_mA" (mA per color channel at full scale; WS2812 ≈ 20, default 20)
//   - "Budget_mA" (global budget in mA; if 0 or missing, the budget stage is skipped)
//   - "LimiterKnee" (fraction of budget where soft limiting begins; default 0.9)
func DefaultLimiter(buf []Color, u *Uniforms) {
	if u == nil {
		return
	}
	if u.Bools["PreviewBypass"] {
		return
	}

	whiteCap := 3.0
	chanmA := 20.0
	budget := 0.0
	knee := 0.9
	if v := u.Param("WhiteCap", 0); v > 0 {
		whiteCap = v
	}
	if v := u.Param("LEDChan_mA", 0); v > 0 {
		chanmA = v
	}
	if v := u.Param("Budget_mA", 0); v > 0 {
		budget = v
	}
	if v := u.Param("LimiterKnee", 0); v > 0 && v < 1 {
		knee = v
	}

	// 1) per-LED white cap
	wc := float32(whiteCap)
	for i := range buf {
		s := buf[i].R + buf[i].G + buf[i].B
		if s > wc && s > 0 {
			buf[i] = buf[i].Scale(wc / s)
		}
	}

	// 2) global budget
	if budget <= 0 {
		return
	}
	var total float64
	cm := float32(chanmA)
	for i := range buf {
		total += float64((buf[i].R + buf[i].G + buf[i].B) * cm)
	}
	if total <= 0 {
		return
	}
	ratio := total / budget
	if ratio <= 1.0 {
		if ratio <= knee {
			return
		}
		// map ratio in [knee,1] to scale in [1, budget/total]
		minS := budget / total
		t := (ratio - knee) / (1.0 - knee)
		applyGlobalScale(buf, float32(1.0-t*(1.0-minS)))
		return
	}
	applyGlobalScale(buf, float32(budget/total))
}

// ScaleBrightness multiplies every channel by s.
func ScaleBrightness(buf []Color, s float32) {
	if s == 1 {
		return
	}
	for i := range buf {
		buf[i] = buf[i].Scale(s)
	}
}

// Clamp01 clamps every channel into [0,1].
func Clamp01(buf []Color) {
	for i := range buf {
		buf[i] = Color{clamp01(buf[i].R), clamp01(buf[i].G), clamp01(buf[i].B)}
	}
}

func applyGlobalScale(buf []Color, s float32) {
	if s >= 1.0 {
		return
	}
	for i := range buf {
		buf[i] = buf[i].Scale(s)
	}
}

func clamp01(x float32) float32 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
