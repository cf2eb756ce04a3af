package command

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"go.bug.st/serial"

	"github.com/coreman2200/spiraltree/internal/telemetry"
)

const (
	DefaultBaud = 115200
	queueDepth  = 32
)

var (
	ErrNotConnected = errors.New("command channel not connected")
	ErrClosed       = errors.New("command channel closed")
)

// OpenFunc opens a byte stream to the controller.
type OpenFunc func(name string, baud int) (io.ReadWriteCloser, error)

// OpenSerial opens a serial port in 8N1 at baud.
func OpenSerial(name string, baud int) (io.ReadWriteCloser, error) {
	if baud <= 0 {
		baud = DefaultBaud
	}
	return serial.Open(name, &serial.Mode{BaudRate: baud})
}

// Ports lists serial ports present on the host.
func Ports() ([]string, error) { return serial.GetPortsList() }

// State is the connection state shown to the user.
type State string

const (
	Disconnected State = "disconnected"
	Connecting   State = "connecting"
	Connected    State = "connected"
	Failed       State = "error"
)

// session is one open port with its writer queue and reader.
type session struct {
	name  string
	port  io.ReadWriteCloser
	queue chan Command
	done  chan struct{}
	once  sync.Once
}

func (s *session) close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.port.Close()
	})
	return err
}

// Channel forwards commands to the controller without blocking the caller.
// Inbound bytes are logged per line and never interpreted.
type Channel struct {
	Open     OpenFunc
	OnLine   func(line string)
	OnStatus func(state State, detail string)

	mu     sync.Mutex
	cur    *session
	state  State
	detail string
	wg     sync.WaitGroup
	inst   *telemetry.Instruments
}

func NewChannel() *Channel {
	return &Channel{
		Open:  OpenSerial,
		state: Disconnected,
		inst:  telemetry.Default(),
	}
}

// Status renders the state as user-facing text.
func (c *Channel) Status() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.detail == "" {
		return string(c.state)
	}
	return fmt.Sprintf("%s: %s", c.state, c.detail)
}

func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Channel) setState(st State, detail string) {
	c.mu.Lock()
	c.state, c.detail = st, detail
	fn := c.OnStatus
	c.mu.Unlock()
	if fn != nil {
		fn(st, detail)
	}
}

// Connect opens name at baud, replacing any current port. On failure the
// state becomes Failed with the error text; nothing is retried.
func (c *Channel) Connect(name string, baud int) error {
	c.release()
	c.setState(Connecting, name)
	open := c.Open
	if open == nil {
		open = OpenSerial
	}
	port, err := open(name, baud)
	if err != nil {
		log.Warn().Err(err).Str("port", name).Int("baud", baud).Msg("serial open failed")
		c.setState(Failed, err.Error())
		return fmt.Errorf("open %s: %w", name, err)
	}
	c.Attach(name, port)
	return nil
}

// Attach adopts an already open stream.
func (c *Channel) Attach(name string, port io.ReadWriteCloser) {
	c.release()
	s := &session{
		name:  name,
		port:  port,
		queue: make(chan Command, queueDepth),
		done:  make(chan struct{}),
	}
	c.mu.Lock()
	c.cur = s
	c.mu.Unlock()
	c.setState(Connected, name)
	log.Info().Str("port", name).Msg("command channel connected")

	c.wg.Add(2)
	go c.writeLoop(s)
	go c.readLoop(s)
}

// Disconnect releases the port. The read loop exits on its own.
func (c *Channel) Disconnect() error {
	c.mu.Lock()
	s := c.cur
	c.mu.Unlock()
	if s == nil {
		return ErrNotConnected
	}
	err := c.release()
	c.setState(Disconnected, "")
	return err
}

// Close disconnects and waits for the loops to finish.
func (c *Channel) Close() error {
	err := c.release()
	c.wg.Wait()
	c.setState(Disconnected, "")
	return err
}

func (c *Channel) release() error {
	c.mu.Lock()
	s := c.cur
	c.cur = nil
	c.mu.Unlock()
	if s == nil {
		return nil
	}
	log.Info().Str("port", s.name).Msg("command channel released")
	return s.close()
}

// Send queues cmd for the writer. When the queue is full the oldest pending
// command is dropped so callers never wait on the device.
func (c *Channel) Send(cmd Command) error {
	c.mu.Lock()
	s := c.cur
	c.mu.Unlock()
	if s == nil {
		return ErrNotConnected
	}
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	select {
	case s.queue <- cmd:
		return nil
	default:
	}
	select {
	case old := <-s.queue:
		c.inst.CommandDropped(context.Background(), string(old.Kind))
		log.Debug().Str("cmd", old.String()).Msg("send queue full; dropped oldest")
	default:
	}
	select {
	case s.queue <- cmd:
	default:
		c.inst.CommandDropped(context.Background(), string(cmd.Kind))
	}
	return nil
}

func (c *Channel) writeLoop(s *session) {
	defer c.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case cmd := <-s.queue:
			if _, err := io.WriteString(s.port, cmd.Line()); err != nil {
				log.Warn().Err(err).Str("port", s.name).Str("cmd", cmd.String()).Msg("serial write failed")
				c.drop(s, err)
				return
			}
			c.inst.CommandSent(context.Background(), string(cmd.Kind))
			log.Debug().Str("port", s.name).Str("cmd", cmd.String()).Msg("sent")
		}
	}
}

func (c *Channel) readLoop(s *session) {
	defer c.wg.Done()
	sc := bufio.NewScanner(s.port)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		log.Info().Str("port", s.name).Str("line", line).Msg("device")
		if c.OnLine != nil {
			c.OnLine(line)
		}
	}
	err := sc.Err()
	select {
	case <-s.done:
		// released by the caller
		return
	default:
	}
	if err != nil {
		log.Warn().Err(err).Str("port", s.name).Msg("serial read stopped")
	} else {
		log.Info().Str("port", s.name).Msg("serial stream ended")
	}
	c.drop(s, err)
}

// drop ends a session after an I/O fault or end of stream.
func (c *Channel) drop(s *session, err error) {
	c.mu.Lock()
	current := c.cur == s
	if current {
		c.cur = nil
	}
	c.mu.Unlock()
	_ = s.close()
	if !current {
		return
	}
	if err != nil {
		c.setState(Failed, err.Error())
		return
	}
	c.setState(Disconnected, "")
}
