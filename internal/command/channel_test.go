package command

import (
	"bufio"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendWithoutPort(t *testing.T) {
	c := NewChannel()
	assert.ErrorIs(t, c.Send(Info()), ErrNotConnected)
	assert.Equal(t, "disconnected", c.Status())
	assert.ErrorIs(t, c.Disconnect(), ErrNotConnected)
}

func TestConnectFailureSurfacesStatus(t *testing.T) {
	c := NewChannel()
	var states []State
	c.OnStatus = func(s State, _ string) { states = append(states, s) }
	c.Open = func(name string, baud int) (io.ReadWriteCloser, error) {
		return nil, errors.New("no such port")
	}
	err := c.Connect("/dev/ttyUSB9", DefaultBaud)
	require.Error(t, err)
	assert.Equal(t, Failed, c.State())
	assert.Equal(t, "error: no such port", c.Status())
	assert.Equal(t, []State{Connecting, Failed}, states)
}

func TestSendWritesLines(t *testing.T) {
	host, dev := net.Pipe()
	c := NewChannel()
	c.Open = func(name string, baud int) (io.ReadWriteCloser, error) {
		assert.Equal(t, DefaultBaud, baud)
		return host, nil
	}
	require.NoError(t, c.Connect("pipe", DefaultBaud))
	assert.Equal(t, "connected: pipe", c.Status())

	require.NoError(t, c.Send(Bright(128)))
	require.NoError(t, c.Send(Percent(80, 15, 5)))

	r := bufio.NewReader(dev)
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "BRIGHT:128\n", line)
	line, err = r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "PERCENT:80,15,5\n", line)

	require.NoError(t, c.Close())
	assert.Equal(t, Disconnected, c.State())
	assert.ErrorIs(t, c.Send(Off()), ErrNotConnected)
}

func TestInboundLinesAreForwarded(t *testing.T) {
	host, dev := net.Pipe()
	c := NewChannel()

	var mu sync.Mutex
	var lines []string
	got := make(chan struct{}, 4)
	c.OnLine = func(l string) {
		mu.Lock()
		lines = append(lines, l)
		mu.Unlock()
		got <- struct{}{}
	}
	c.Attach("pipe", host)

	_, err := io.WriteString(dev, "Christmas tree effect started!\nUptime: 3 seconds\n")
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		select {
		case <-got:
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for inbound line")
		}
	}
	mu.Lock()
	assert.Equal(t, []string{"Christmas tree effect started!", "Uptime: 3 seconds"}, lines)
	mu.Unlock()
	require.NoError(t, c.Close())
}

func TestEndOfStreamStopsWithoutRetry(t *testing.T) {
	host, dev := net.Pipe()
	c := NewChannel()
	done := make(chan State, 4)
	c.OnStatus = func(s State, _ string) { done <- s }
	c.Attach("pipe", host)
	<-done // connected

	require.NoError(t, dev.Close())
	select {
	case s := <-done:
		assert.Contains(t, []State{Disconnected, Failed}, s)
	case <-time.After(time.Second):
		t.Fatal("read loop did not stop")
	}
	assert.ErrorIs(t, c.Send(Info()), ErrNotConnected)
	require.NoError(t, c.Close())
}

func TestSendDropsOldestWhenFull(t *testing.T) {
	c := NewChannel()
	s := &session{
		name:  "stuck",
		port:  nopPort{},
		queue: make(chan Command, 2),
		done:  make(chan struct{}),
	}
	c.cur = s
	require.NoError(t, c.Send(Bright(1)))
	require.NoError(t, c.Send(Bright(2)))
	require.NoError(t, c.Send(Bright(3)))

	first := <-s.queue
	second := <-s.queue
	assert.Equal(t, "BRIGHT:2", first.String())
	assert.Equal(t, "BRIGHT:3", second.String())
}

type nopPort struct{}

func (nopPort) Read(p []byte) (int, error)  { return 0, io.EOF }
func (nopPort) Write(p []byte) (int, error) { return len(p), nil }
func (nopPort) Close() error                { return nil }
