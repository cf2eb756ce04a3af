package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/coreman2200/spiraltree"

// Instruments are recorded against the global MeterProvider; they are no-ops
// until the host installs one.
type Instruments struct {
	frames        metric.Int64Counter
	frameDuration metric.Float64Histogram
	commandsSent  metric.Int64Counter
	commandsDrop  metric.Int64Counter
	pixels        metric.Int64Counter
}

var (
	once sync.Once
	inst *Instruments
)

// Default returns the process-wide instruments.
func Default() *Instruments {
	once.Do(func() {
		inst = New(otel.Meter(meterName))
	})
	return inst
}

// New builds instruments on m. Creation errors leave the instrument nil,
// which the record methods skip.
func New(m metric.Meter) *Instruments {
	i := &Instruments{}
	i.frames, _ = m.Int64Counter("spiraltree.frames",
		metric.WithDescription("Frames rendered by the loop"))
	i.frameDuration, _ = m.Float64Histogram("spiraltree.frame.duration",
		metric.WithDescription("Render time per frame"), metric.WithUnit("ms"))
	i.commandsSent, _ = m.Int64Counter("spiraltree.commands.sent",
		metric.WithDescription("Commands written to the controller"))
	i.commandsDrop, _ = m.Int64Counter("spiraltree.commands.dropped",
		metric.WithDescription("Commands dropped because the send queue was full"))
	i.pixels, _ = m.Int64Counter("spiraltree.led.pixels",
		metric.WithDescription("Pixels written to LED drivers"))
	return i
}

func (i *Instruments) FrameRendered(ctx context.Context, illuminator string, ms float64) {
	if i == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("illuminator", illuminator))
	if i.frames != nil {
		i.frames.Add(ctx, 1, attrs)
	}
	if i.frameDuration != nil {
		i.frameDuration.Record(ctx, ms, attrs)
	}
}

// FrameWritten counts pixels pushed to an LED driver.
func (i *Instruments) FrameWritten(ctx context.Context, pixels int) {
	if i == nil || i.pixels == nil {
		return
	}
	i.pixels.Add(ctx, int64(pixels))
}

func (i *Instruments) CommandSent(ctx context.Context, kind string) {
	if i == nil || i.commandsSent == nil {
		return
	}
	i.commandsSent.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (i *Instruments) CommandDropped(ctx context.Context, kind string) {
	if i == nil || i.commandsDrop == nil {
		return
	}
	i.commandsDrop.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}
