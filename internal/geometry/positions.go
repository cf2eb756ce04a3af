package geometry

import "math"

type Vec3 struct{ X, Y, Z float64 }

// Cylindrical converts (radius, angle, height) to world space with Y up,
// x = r cos(a), z = r sin(a).
func Cylindrical(r, a, h float64) Vec3 {
	return Vec3{X: r * math.Cos(a), Y: h, Z: r * math.Sin(a)}
}

// Positions writes the world position of every LED for the given arm angles
// into dst (arm-major) and returns it. dst is grown when too short.
func (m *Model) Positions(angles []float64, dst []Vec3) []Vec3 {
	n := m.Count()
	if cap(dst) < n {
		dst = make([]Vec3, n)
	}
	dst = dst[:n]
	idx := 0
	for i, arm := range m.Arms {
		a := arm.BaseAngle
		if i < len(angles) {
			a = angles[i]
		}
		for _, l := range m.LEDs[i] {
			dst[idx] = Cylindrical(l.Radius, a, arm.Height)
			idx++
		}
	}
	return dst
}

// Normalized maps positions into [0,1]^3 using the tree's bounding cylinder.
// Previews with no notion of millimetres use this.
func (m *Model) Normalized(p Vec3) Vec3 {
	reach := m.Spec.TrunkRadius() + float64(max(1, m.perArm-1))*m.Spec.LEDPitchMM
	h := m.StackHeight()
	if h <= 0 {
		h = 1
	}
	return Vec3{
		X: (p.X/reach + 1) / 2,
		Y: p.Y / h,
		Z: (p.Z/reach + 1) / 2,
	}
}
