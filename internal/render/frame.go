package render

// Frame is the color arena for one frame, indexed arm*PerArm+led.
type Frame struct {
	Arms    int
	PerArm  int
	Colors  []Color
	Visible []bool
}

func NewFrame(arms, perArm int) *Frame {
	n := arms * perArm
	return &Frame{
		Arms:    arms,
		PerArm:  perArm,
		Colors:  make([]Color, n),
		Visible: make([]bool, n),
	}
}

func (f *Frame) Len() int              { return len(f.Colors) }
func (f *Frame) Index(arm, led int) int { return arm*f.PerArm + led }

func (f *Frame) At(arm, led int) (Color, bool) {
	i := f.Index(arm, led)
	return f.Colors[i], f.Visible[i]
}

func (f *Frame) Set(arm, led int, c Color, visible bool) {
	i := f.Index(arm, led)
	f.Colors[i] = c
	f.Visible[i] = visible
}

// Fill writes c to every LED.
func (f *Frame) Fill(c Color, visible bool) {
	for i := range f.Colors {
		f.Colors[i] = c
		f.Visible[i] = visible
	}
}

// CopyFrom copies src; both frames must share a shape.
func (f *Frame) CopyFrom(src *Frame) {
	copy(f.Colors, src.Colors)
	copy(f.Visible, src.Visible)
}

// Clone returns an independent copy.
func (f *Frame) Clone() *Frame {
	c := NewFrame(f.Arms, f.PerArm)
	c.CopyFrom(f)
	return c
}
