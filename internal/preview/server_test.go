package preview

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/coreman2200/spiraltree/internal/command"
	diag "github.com/coreman2200/spiraltree/internal/diagnostics"
	"github.com/coreman2200/spiraltree/internal/geometry"
	"github.com/coreman2200/spiraltree/internal/render"
	"github.com/coreman2200/spiraltree/internal/settings"
)

type fixture struct {
	srv   *Server
	e     *echo.Echo
	ts    *httptest.Server
	store *settings.Store
	ch    *command.Channel
	log   *diag.Log
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	spec := geometry.HardwareSpec{ArmCount: 4, ArmLengthMM: 20, ArmSpacingMM: 10, LEDPitchMM: 10, TrunkDiameterMM: 10, TotalHeightMM: 100}
	f := &fixture{
		store: settings.NewStore(settings.Defaults()),
		ch:    command.NewChannel(),
		log:   diag.NewLog(8),
	}
	f.ch.Open = func(name string, baud int) (io.ReadWriteCloser, error) {
		return nil, errors.New("no such port")
	}
	f.srv = NewServer(Deps{
		Store:   f.store,
		Channel: f.ch,
		Diag:    f.log,
		Spec:    spec,
		Driver:  "sim",
		FPS:     60,
		Ports:   func() ([]string, error) { return []string{"/dev/ttyUSB0"}, nil },
	})
	f.srv.Throttle = 0
	f.e = echo.New()
	f.srv.Register(f.e)
	f.ts = httptest.NewServer(f.e)
	t.Cleanup(f.ts.Close)
	return f
}

func (f *fixture) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.ts.URL, "http") + path
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndTopology(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var health map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, 12.0, health["count"])
	assert.Equal(t, "disconnected", health["serial"])
	assert.Equal(t, "demo", health["mode"])

	rec = f.do(http.MethodGet, "/api/topology", "")
	var top Topology
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &top))
	assert.Equal(t, 3, top.LEDsPerArm)
	assert.Equal(t, []float64{5, 15, 25}, top.Radii)
	assert.Len(t, top.BaseAngles, 4)
	assert.Equal(t, 16.0, top.ArmSpacingMM, "spacing follows the live settings")
}

func TestPortsAndConnectFailure(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/ports", "")
	assert.JSONEq(t, `{"ports":["/dev/ttyUSB0"]}`, rec.Body.String())

	rec = f.do(http.MethodPost, "/api/connect", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPost, "/api/connect", `{"port":"/dev/nope"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "no such port")
	assert.Equal(t, command.Failed, f.ch.State())

	rec = f.do(http.MethodPost, "/api/disconnect", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestEventEndpoint(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPost, "/api/event", `{"type":"setHWBrightness","value":"128"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var r ControlReply
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r))
	assert.Equal(t, 128, r.Settings.HWBrightness)
	assert.Equal(t, []string{"BRIGHT:128"}, r.Commands)

	rec = f.do(http.MethodPost, "/api/event", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestControlSocket(t *testing.T) {
	f := newFixture(t)
	c := f.dial(t, "/control")

	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte(`{"type":"setRPS","value":"2.5"}`)))
	var r ControlReply
	require.NoError(t, c.ReadJSON(&r))
	assert.Equal(t, 2.5, r.Settings.RPS)
	assert.Equal(t, []string{"RPS:2.5"}, r.Commands)
	assert.Equal(t, 2.5, f.store.Snapshot().RPS)

	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	r = ControlReply{}
	require.NoError(t, c.ReadJSON(&r))
	assert.Equal(t, "bad control message", r.Error)
}

func TestFrameStream(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.srv.Run(ctx)

	c := f.dial(t, "/ws")
	kind, data, err := c.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, kind)
	assert.Contains(t, string(data), `"leds_per_arm":3`)
	require.Eventually(t, func() bool { return f.srv.Clients() == 1 }, time.Second, 5*time.Millisecond)

	fr := render.NewFrame(4, 3)
	fr.Fill(render.Hex(0xff0000), true)
	fr.Set(1, 1, render.Hex(0x00ff00), false)
	u := render.NewUniforms(settings.Defaults())
	u.Settings.Brightness = 50
	pose := render.Pose{Seq: 1, Time: 1.5, Angles: []float64{0, 1, 2, 3}}
	require.NoError(t, f.srv.Present(fr, pose, u))

	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	kind, data, err = c.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, kind)

	var msg FrameMsg
	require.NoError(t, msgpack.Unmarshal(data, &msg))
	assert.Equal(t, uint64(1), msg.FrameID)
	assert.Equal(t, 1.5, msg.SimTime)
	assert.Equal(t, []float32{0, 1, 2, 3}, msg.Angles)
	require.Len(t, msg.RGB, 36)
	assert.Equal(t, []byte{128, 0, 0}, msg.RGB[:3])
	assert.Equal(t, byte(0), msg.Visible[4])
	assert.Equal(t, byte(1), msg.Visible[0])
	assert.Equal(t, render.Hex(0xff0000), fr.Colors[0], "sink works on a copy")
}

func TestDiagSocketReplaysAndStreams(t *testing.T) {
	f := newFixture(t)
	f.log.Push(diag.Diagnostic{Severity: diag.Warn, Code: diag.SerialConnectFailed, Summary: "open failed"})

	c := f.dial(t, "/diag")
	var d diag.Diagnostic
	require.NoError(t, c.ReadJSON(&d))
	assert.Equal(t, diag.SerialConnectFailed, d.Code)

	// the socket registers right after the replay; push until it lands
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	got := make(chan string, 1)
	go func() {
		var next diag.Diagnostic
		if err := c.ReadJSON(&next); err == nil {
			got <- next.Code
		}
	}()
	require.Eventually(t, func() bool {
		f.log.Push(diag.Diagnostic{Severity: diag.Info, Code: diag.TestDone})
		select {
		case code := <-got:
			return code == diag.TestDone
		default:
			return false
		}
	}, 2*time.Second, 20*time.Millisecond)
}
