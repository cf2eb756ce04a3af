package device

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/spiraltree/internal/led"
	"github.com/coreman2200/spiraltree/internal/render"
)

func newDevice(t *testing.T) (*Device, *led.Sim) {
	t.Helper()
	sim := led.NewSim(zerolog.Nop())
	opts := DefaultOptions()
	opts.Strips, opts.PerStrip, opts.Seed = 2, 50, 7
	d, err := New(opts, sim, zerolog.Nop())
	require.NoError(t, err)
	return d, sim
}

// pixels splits an RGB buffer into triplets.
func pixels(b []byte) [][3]byte {
	out := make([][3]byte, len(b)/3)
	for i := range out {
		out[i] = [3]byte{b[3*i], b[3*i+1], b[3*i+2]}
	}
	return out
}

func TestStartRandomizesAtBootBrightness(t *testing.T) {
	d, sim := newDevice(t)
	banner := d.Start()
	assert.Contains(t, banner, "LED Count per strip: 50")
	assert.Contains(t, banner, "Brightness: 20/255 (7%)")

	px := pixels(sim.Last())
	require.Len(t, px, 100)
	for _, p := range px {
		lit := 0
		for _, c := range p {
			if c != 0 {
				lit++
				assert.Equal(t, byte(20), c)
			}
		}
		assert.Equal(t, 1, lit, "one pure channel per LED")
	}
}

func TestHandleCommands(t *testing.T) {
	d, sim := newDevice(t)
	d.Start()

	assert.Nil(t, d.Handle("BRIGHT:255"))
	assert.Nil(t, d.Handle("ALL:255,128,0\r\n"))
	assert.Equal(t, ModeStatic, d.Mode())
	for _, p := range pixels(sim.Last()) {
		assert.Equal(t, [3]byte{255, 128, 0}, p)
	}

	assert.Nil(t, d.Handle("OFF"))
	for _, p := range pixels(sim.Last()) {
		assert.Equal(t, [3]byte{}, p)
	}
	assert.Nil(t, d.Tick(), "static mode holds")

	assert.Nil(t, d.Handle("PERCENT:0,0,100"))
	assert.Nil(t, d.Handle("RANDOM"))
	assert.Equal(t, ModeRandom, d.Mode())
	for _, p := range pixels(sim.Last()) {
		assert.Equal(t, [3]byte{0, 0, 255}, p)
	}

	assert.Nil(t, d.Handle("RPS:2.5"))
	info := d.Handle("INFO")
	require.Len(t, info, 1)
	assert.True(t, strings.HasPrefix(info[0], "STRIPS:2 LEDS:50 BRIGHT:255 RPS:2.5 PERCENT:0,0,100 MODE:random"), info[0])

	assert.Equal(t, []string{"ERR:FLASH"}, d.Handle("FLASH"))
	assert.Equal(t, []string{"ERR:BRIGHT"}, d.Handle("BRIGHT"))
}

func TestAllClampsChannels(t *testing.T) {
	d, sim := newDevice(t)
	d.Start()

	assert.Nil(t, d.Handle("BRIGHT:255"))
	assert.Nil(t, d.Handle("ALL:300,-5,128"))
	c := d.pal.Colors()[0]
	assert.Equal(t, float32(1), c.R)
	assert.Equal(t, float32(0), c.G)
	for _, p := range pixels(sim.Last()) {
		assert.Equal(t, [3]byte{255, 0, 128}, p)
	}
}

func TestTickReportsUptime(t *testing.T) {
	d, _ := newDevice(t)
	clk := render.NewManualClock(time.Unix(100, 0))
	d.Clock = clk
	d.Start()
	clk.Advance(9 * time.Second)
	assert.Equal(t, []string{"Changing pattern...", "Uptime: 9 seconds"}, d.Tick())
}

func TestServeOverPipe(t *testing.T) {
	d, sim := newDevice(t)
	host, ctrl := net.Pipe()
	defer host.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- d.Serve(ctx, ctrl) }()

	r := bufio.NewReader(host)
	var banner []string
	for {
		l, err := r.ReadString('\n')
		require.NoError(t, err)
		banner = append(banner, strings.TrimRight(l, "\r\n"))
		if strings.HasPrefix(l, "Effect started") {
			break
		}
	}
	assert.Equal(t, "Spiral Tree Controller (2 Strips)", banner[1])

	_, err := host.Write([]byte("ALL:0,255,0\nNOPE\n"))
	require.NoError(t, err)
	l, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "ERR:NOPE\r\n", l)
	assert.Equal(t, [3]byte{0, 20, 0}, pixels(sim.Last())[0])

	require.NoError(t, host.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not stop at end of stream")
	}
}

func TestNewRejectsEmptyLayout(t *testing.T) {
	_, err := New(Options{}, led.NewSim(zerolog.Nop()), zerolog.Nop())
	assert.Error(t, err)
}
