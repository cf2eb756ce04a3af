// Package preview serves the browser control panel: a frame stream, a control
// socket that feeds the settings store, diagnostics and a small REST surface
// for the serial port.
package preview

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/coreman2200/spiraltree/internal/command"
	diag "github.com/coreman2200/spiraltree/internal/diagnostics"
	"github.com/coreman2200/spiraltree/internal/geometry"
	"github.com/coreman2200/spiraltree/internal/render"
	"github.com/coreman2200/spiraltree/internal/render/post"
	"github.com/coreman2200/spiraltree/internal/settings"
)

const writeWait = 200 * time.Millisecond

// Deps are the collaborators the server reads and drives. Channel, Diag and
// Loop are optional.
type Deps struct {
	Store   *settings.Store
	Channel *command.Channel
	Diag    *diag.Log
	Loop    *render.Loop
	Spec    geometry.HardwareSpec
	Driver  string
	FPS     int
	Baud    int
	Ports   func() ([]string, error)
}

// FrameMsg is one binary frame on /ws. Visible holds 0 or 1 per LED.
type FrameMsg struct {
	T       int64     `msgpack:"t"`
	FrameID uint64    `msgpack:"frame_id"`
	SimTime float64   `msgpack:"sim_time"`
	Arms    int       `msgpack:"arms"`
	PerArm  int       `msgpack:"per_arm"`
	Angles  []float32 `msgpack:"angles"`
	RGB     []byte    `msgpack:"rgb"`
	Visible []byte    `msgpack:"visible"`
}

// ControlReply answers every message on /control.
type ControlReply struct {
	Settings settings.Settings `json:"settings"`
	Serial   string            `json:"serial"`
	Commands []string          `json:"commands,omitempty"`
	Error    string            `json:"error,omitempty"`
}

type Topology struct {
	Arms          int       `json:"arms"`
	LEDsPerArm    int       `json:"leds_per_arm"`
	ArmLengthMM   float64   `json:"arm_length_mm"`
	ArmSpacingMM  float64   `json:"arm_spacing_mm"`
	LEDPitchMM    float64   `json:"led_pitch_mm"`
	TrunkRadiusMM float64   `json:"trunk_radius_mm"`
	TotalHeightMM float64   `json:"total_height_mm"`
	BaseAngles    []float64 `json:"base_angles"`
	Radii         []float64 `json:"radii"`
	Driver        string    `json:"driver"`
}

// Server is also a render.Sink: frames are throttled, scaled for display and
// handed to a broadcaster so slow clients never stall the render loop.
type Server struct {
	Throttle time.Duration

	deps     Deps
	model    *geometry.Model
	upgrader websocket.Upgrader
	start    time.Time

	mu          sync.RWMutex
	clients     map[string]*peer
	diagClients map[string]*peer
	frameID     atomic.Uint64

	// loop goroutine only
	lastEmit time.Time
	work     *render.Frame

	latest     chan []byte
	cancelDiag func()
}

// peer serializes writes to one websocket.
type peer struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (p *peer) write(kind int, b []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return p.conn.WriteMessage(kind, b)
}

func (p *peer) writeJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.write(websocket.TextMessage, b)
}

func NewServer(d Deps) *Server {
	if d.Ports == nil {
		d.Ports = command.Ports
	}
	if d.Baud <= 0 {
		d.Baud = command.DefaultBaud
	}
	s := &Server{
		Throttle:    time.Second / 30,
		deps:        d,
		model:       geometry.Build(d.Spec),
		upgrader:    websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		start:       time.Now(),
		clients:     map[string]*peer{},
		diagClients: map[string]*peer{},
		latest:      make(chan []byte, 1),
	}
	if d.Diag != nil {
		s.cancelDiag = d.Diag.Listen(s.pushDiag)
	}
	return s
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/health", s.HandleHealth)
	e.GET("/ws", s.HandleFramesWS)
	e.GET("/control", s.HandleControlWS)
	e.GET("/diag", s.HandleDiagWS)

	api := e.Group("/api")
	api.GET("/ports", s.HandlePorts)
	api.POST("/connect", s.HandleConnect)
	api.POST("/disconnect", s.HandleDisconnect)
	api.GET("/topology", s.HandleTopology)
	api.GET("/settings", s.HandleSettings)
	api.POST("/event", s.HandleEvent)
}

// Run broadcasts frames until ctx ends, then drops every client.
func (s *Server) Run(ctx context.Context) {
	defer s.closeAll()
	for {
		select {
		case <-ctx.Done():
			return
		case b := <-s.latest:
			s.broadcast(b)
		}
	}
}

func (s *Server) Present(f *render.Frame, p render.Pose, u *render.Uniforms) error {
	now := time.Now()
	if s.Throttle > 0 && now.Sub(s.lastEmit) < s.Throttle {
		return nil
	}
	s.lastEmit = now

	if s.work == nil || s.work.Len() != f.Len() {
		s.work = render.NewFrame(f.Arms, f.PerArm)
	}
	s.work.CopyFrom(f)
	post.ApplyPreview(s.work.Colors, u)

	id := s.frameID.Add(1)

	msg := FrameMsg{
		T:       now.UnixNano(),
		FrameID: id,
		SimTime: p.Time,
		Arms:    f.Arms,
		PerArm:  f.PerArm,
		Angles:  make([]float32, len(p.Angles)),
		RGB:     make([]byte, 3*f.Len()),
		Visible: make([]byte, f.Len()),
	}
	for i, a := range p.Angles {
		msg.Angles[i] = float32(a)
	}
	for i, c := range s.work.Colors {
		msg.RGB[3*i], msg.RGB[3*i+1], msg.RGB[3*i+2] = c.RGB8()
		if s.work.Visible[i] {
			msg.Visible[i] = 1
		}
	}
	b, err := msgpack.Marshal(&msg)
	if err != nil {
		return err
	}
	// keep only the newest frame
	select {
	case <-s.latest:
	default:
	}
	select {
	case s.latest <- b:
	default:
	}
	return nil
}

func (s *Server) HandleFramesWS(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	id := uuid.NewString()
	p := &peer{conn: conn}
	_ = p.writeJSON(s.topology())
	s.mu.Lock()
	s.clients[id] = p
	s.mu.Unlock()
	log.Debug().Str("client", id).Msg("frames client connected")

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.clients, id)
			s.mu.Unlock()
			conn.Close()
			log.Debug().Str("client", id).Msg("frames client gone")
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return nil
}

func (s *Server) HandleDiagWS(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	id := uuid.NewString()
	p := &peer{conn: conn}
	if s.deps.Diag != nil {
		for _, d := range s.deps.Diag.Recent() {
			_ = p.writeJSON(d)
		}
	}
	s.mu.Lock()
	s.diagClients[id] = p
	s.mu.Unlock()
	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.diagClients, id)
			s.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return nil
}

// HandleControlWS applies one settings event per text message and answers
// with the resulting snapshot.
func (s *Server) HandleControlWS(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	id := uuid.NewString()
	p := &peer{conn: conn}
	log.Debug().Str("client", id).Msg("control client connected")
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("client", id).Msg("control read")
			}
			return nil
		}
		var ev settings.Event
		if err := json.Unmarshal(data, &ev); err != nil || ev.Kind == "" {
			_ = p.writeJSON(s.reply(nil, "bad control message"))
			continue
		}
		if err := p.writeJSON(s.apply(ev)); err != nil {
			return nil
		}
	}
}

func (s *Server) HandleEvent(c echo.Context) error {
	var ev settings.Event
	if err := c.Bind(&ev); err != nil || ev.Kind == "" {
		return c.JSON(http.StatusBadRequest, s.reply(nil, "bad event"))
	}
	return c.JSON(http.StatusOK, s.apply(ev))
}

func (s *Server) apply(ev settings.Event) ControlReply {
	next, cmds := s.deps.Store.Dispatch(ev)
	r := s.reply(cmds, "")
	r.Settings = next
	return r
}

func (s *Server) reply(cmds []command.Command, msg string) ControlReply {
	r := ControlReply{Settings: s.deps.Store.Snapshot(), Serial: s.serialStatus(), Error: msg}
	for _, c := range cmds {
		r.Commands = append(r.Commands, c.String())
	}
	return r
}

func (s *Server) HandleHealth(c echo.Context) error {
	s.mu.RLock()
	resp := map[string]any{
		"frame_id":     s.frameID.Load(),
		"uptime_s":     time.Since(s.start).Seconds(),
		"count":        s.model.Count(),
		"fps":          s.deps.FPS,
		"driver":       s.deps.Driver,
		"clients":      len(s.clients),
		"diag_clients": len(s.diagClients),
		"serial":       s.serialStatus(),
	}
	s.mu.RUnlock()
	if s.deps.Loop != nil {
		resp["sim_time"] = s.deps.Loop.SimTime()
	}
	if s.deps.Store != nil {
		resp["mode"] = s.deps.Store.Snapshot().Mode
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) HandleSettings(c echo.Context) error {
	return c.JSON(http.StatusOK, s.deps.Store.Snapshot())
}

func (s *Server) HandleTopology(c echo.Context) error {
	return c.JSON(http.StatusOK, s.topology())
}

func (s *Server) HandlePorts(c echo.Context) error {
	ports, err := s.deps.Ports()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if ports == nil {
		ports = []string{}
	}
	return c.JSON(http.StatusOK, map[string]any{"ports": ports})
}

type connectRequest struct {
	Port string `json:"port"`
	Baud int    `json:"baud"`
}

func (s *Server) HandleConnect(c echo.Context) error {
	if s.deps.Channel == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "no command channel"})
	}
	var req connectRequest
	if err := c.Bind(&req); err != nil || req.Port == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "port is required"})
	}
	if req.Baud <= 0 {
		req.Baud = s.deps.Baud
	}
	if err := s.deps.Channel.Connect(req.Port, req.Baud); err != nil {
		return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error(), "serial": s.serialStatus()})
	}
	return c.JSON(http.StatusOK, map[string]string{"serial": s.serialStatus()})
}

func (s *Server) HandleDisconnect(c echo.Context) error {
	if s.deps.Channel != nil {
		_ = s.deps.Channel.Disconnect()
	}
	return c.JSON(http.StatusOK, map[string]string{"serial": s.serialStatus()})
}

// Clients counts connected frame viewers.
func (s *Server) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *Server) serialStatus() string {
	if s.deps.Channel == nil {
		return string(command.Disconnected)
	}
	return s.deps.Channel.Status()
}

func (s *Server) topology() Topology {
	sp := s.deps.Spec
	if s.deps.Store != nil {
		sp.ArmSpacingMM = s.deps.Store.Snapshot().ArmSpacing
	}
	t := Topology{
		Arms:          sp.ArmCount,
		LEDsPerArm:    s.model.LEDsPerArm(),
		ArmLengthMM:   sp.ArmLengthMM,
		ArmSpacingMM:  sp.ArmSpacingMM,
		LEDPitchMM:    sp.LEDPitchMM,
		TrunkRadiusMM: sp.TrunkRadius(),
		TotalHeightMM: sp.TotalHeightMM,
		Driver:        s.deps.Driver,
	}
	for i := 0; i < 4 && i < sp.ArmCount; i++ {
		t.BaseAngles = append(t.BaseAngles, geometry.BaseAngle(i))
	}
	if len(s.model.LEDs) > 0 {
		for _, l := range s.model.LEDs[0] {
			t.Radii = append(t.Radii, l.Radius)
		}
	}
	return t
}

func (s *Server) broadcast(b []byte) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, p := range s.clients {
		if err := p.write(websocket.BinaryMessage, b); err != nil {
			log.Debug().Err(err).Str("client", id).Msg("write frame")
		}
	}
}

func (s *Server) pushDiag(d diag.Diagnostic) {
	b, err := json.Marshal(d)
	if err != nil {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.diagClients {
		_ = p.write(websocket.TextMessage, b)
	}
}

func (s *Server) closeAll() {
	if s.cancelDiag != nil {
		s.cancelDiag()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.clients {
		p.conn.Close()
		delete(s.clients, id)
	}
	for id, p := range s.diagClients {
		p.conn.Close()
		delete(s.diagClients, id)
	}
}
