package render

// Mix blends frames a and b into dst using alpha (0..1).
// Channels are linear; no gamma assumed. An LED is visible if it is visible
// in whichever side dominates.
func Mix(dst, a, b *Frame, alpha float64) {
	if alpha <= 0 {
		dst.CopyFrom(a)
		return
	}
	if alpha >= 1 {
		dst.CopyFrom(b)
		return
	}
	af := float32(1.0 - alpha)
	bf := float32(alpha)
	n := len(dst.Colors)
	for i := 0; i < n; i++ {
		ca, cb := a.Colors[i], b.Colors[i]
		dst.Colors[i] = Color{
			R: ca.R*af + cb.R*bf,
			G: ca.G*af + cb.G*bf,
			B: ca.B*af + cb.B*bf,
		}
		if alpha < 0.5 {
			dst.Visible[i] = a.Visible[i]
		} else {
			dst.Visible[i] = b.Visible[i]
		}
	}
}
