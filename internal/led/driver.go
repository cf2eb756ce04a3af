package led

import (
	"context"

	"github.com/coreman2200/spiraltree/internal/render"
	"github.com/coreman2200/spiraltree/internal/render/post"
	"github.com/coreman2200/spiraltree/internal/telemetry"
)

// Driver abstracts an LED output sink.
type Driver interface {
	// Write pushes an RGB frame to hardware. len(rgb) must be 3*N.
	Write(rgb []byte) error
	// Close releases resources.
	Close() error
}

// Pack quantizes f into dst as RGB triplets in arm-major order. Hidden LEDs
// are written dark. dst is grown when short and returned.
func Pack(f *render.Frame, dst []byte) []byte {
	n := 3 * f.Len()
	if cap(dst) < n {
		dst = make([]byte, n)
	}
	dst = dst[:n]
	for i, c := range f.Colors {
		if !f.Visible[i] {
			dst[3*i], dst[3*i+1], dst[3*i+2] = 0, 0, 0
			continue
		}
		dst[3*i], dst[3*i+1], dst[3*i+2] = c.RGB8()
	}
	return dst
}

// Output is a render.Sink that runs the LED post chain on a private copy of
// each frame and writes it to a Driver.
type Output struct {
	Driver Driver
	Inst   *telemetry.Instruments

	work *render.Frame
	buf  []byte
}

func NewOutput(d Driver) *Output { return &Output{Driver: d} }

func (o *Output) Present(f *render.Frame, _ render.Pose, u *render.Uniforms) error {
	if o.Driver == nil {
		return nil
	}
	if o.work == nil || o.work.Len() != f.Len() {
		o.work = render.NewFrame(f.Arms, f.PerArm)
	}
	o.work.CopyFrom(f)
	post.ApplyLED(o.work.Colors, u)
	o.buf = Pack(o.work, o.buf)
	if err := o.Driver.Write(o.buf); err != nil {
		return err
	}
	o.Inst.FrameWritten(context.Background(), len(o.buf)/3)
	return nil
}

func (o *Output) Close() error {
	if o.Driver == nil {
		return nil
	}
	return o.Driver.Close()
}
